package main

import (
	"authclient/internal/app"
	"authclient/internal/config"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

const (
	Version = "0.1.0"
	appName = "authclient"
)

// errRejected makes the process exit with status 1 without printing usage.
var errRejected = errors.New("session rejected")

func main() {
	if err := rootCmd().Execute(); err != nil {
		if !errors.Is(err, errRejected) {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		os.Exit(1)
	}
}

type globals struct {
	configPath string
	logLevel   string
	cfg        *config.Config
	log        *slog.Logger
}

func rootCmd() *cobra.Command {
	g := &globals{}

	cmd := &cobra.Command{
		Use:           appName,
		Short:         "Client-side session management against an auth API",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Name() == "version" {
				return nil
			}
			_ = godotenv.Load(".env")

			cfg, err := config.Load(g.configPath)
			if err != nil {
				return err
			}
			g.cfg = cfg
			g.log = setupSlog(cfg.Env, g.logLevel, cmd.ErrOrStderr())
			return nil
		},
	}

	cmd.PersistentFlags().StringVarP(&g.configPath, "config", "c", "", "Config file path (YAML); defaults to $CONFIG_PATH")
	cmd.PersistentFlags().StringVar(&g.logLevel, "log-level", "", "Log level override (debug, info, warn, error)")
	cmd.SetUsageTemplate(cmd.UsageTemplate() + "\nEnvironment:\n" + config.Usage() + "\n")

	cmd.AddCommand(
		loginCmd(g),
		registerCmd(g),
		verifyEmailCmd(g),
		forgotPasswordCmd(g),
		resetPasswordCmd(g),
		logoutCmd(g),
		whoamiCmd(g),
		statusCmd(g),
		serveCmd(g),
		&cobra.Command{
			Use:   "version",
			Short: "Print version information",
			Run: func(cmd *cobra.Command, _ []string) {
				fmt.Fprintf(cmd.OutOrStdout(), "%s version %s\n", appName, Version)
			},
		},
	)

	return cmd
}

// withApp builds the application for one command and closes it afterwards.
func withApp(cmd *cobra.Command, g *globals, fn func(ctx context.Context, a *app.App) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	a, err := app.New(ctx, *g.cfg, g.log)
	if err != nil {
		return err
	}
	defer func() {
		if err := a.Close(); err != nil {
			g.log.Warn("close app", slog.String("error", err.Error()))
		}
	}()

	return fn(ctx, a)
}

func setupSlog(env, level string, w io.Writer) *slog.Logger {
	var log *slog.Logger

	switch env {
	case config.EnvLocal:
		log = slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: parseLevel(level, slog.LevelDebug)}))
	case config.EnvDev:
		log = slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: parseLevel(level, slog.LevelDebug)}))
	default:
		log = slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: parseLevel(level, slog.LevelInfo)}))
	}
	return log
}

func parseLevel(s string, def slog.Level) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return def
}
