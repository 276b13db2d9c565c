package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

const (
	EnvLocal = "local"
	EnvDev   = "dev"
	EnvProd  = "prod"

	EnvConfigPath = "CONFIG_PATH"
)

const (
	DriverMemory = "memory"
	DriverFile   = "file"
	DriverRedis  = "redis"

	TransportHTTP = "http"
	TransportSSO  = "sso"
)

type Config struct {
	Env     string        `yaml:"env" env:"AUTH_ENV" env-default:"local"`
	API     APIConfig     `yaml:"api"`
	Storage StorageConfig `yaml:"storage"`
	Redis   StorageRedis  `yaml:"redis"`
	SSO     SSOConfig     `yaml:"sso"`
	Console ConsoleConfig `yaml:"console"`
	Assets  AssetsConfig  `yaml:"assets"`
}

type APIConfig struct {
	Transport string        `yaml:"transport" env:"AUTH_TRANSPORT" env-default:"http"`
	BaseURL   string        `yaml:"base_url" env:"AUTH_API_URL" env-default:"http://localhost:8000/api"`
	Timeout   time.Duration `yaml:"timeout" env:"AUTH_API_TIMEOUT" env-default:"10s"`
	Rate      float64       `yaml:"rate" env:"AUTH_API_RATE" env-default:"5"`
	Burst     int           `yaml:"burst" env:"AUTH_API_BURST" env-default:"5"`
}

type StorageConfig struct {
	Driver     string        `yaml:"driver" env:"AUTH_STORAGE" env-default:"file"`
	Path       string        `yaml:"path" env:"AUTH_STORAGE_PATH"`
	Namespace  string        `yaml:"namespace" env:"AUTH_STORAGE_NAMESPACE" env-default:"default"`
	AppVersion string        `yaml:"app_version" env:"AUTH_APP_VERSION" env-default:"v1.0.0"`
	Key        string        `yaml:"key" env:"AUTH_USERDATA_KEY" env-default:"authf649fc9a5f55"`
	TTL        time.Duration `yaml:"ttl" env:"AUTH_STORAGE_TTL" env-default:"0s"`
}

type StorageRedis struct {
	Host     string `yaml:"host" env:"REDIS_HOST" env-default:"localhost"`
	Port     string `yaml:"port" env:"REDIS_PORT" env-default:"6379"`
	Username string `yaml:"username" env:"REDIS_USERNAME"`
	Password string `yaml:"password" env:"REDIS_PASSWORD"`
	DB       int    `yaml:"db" env:"REDIS_DB" env-default:"0"`
	Attempts int    `yaml:"attempts" env:"REDIS_ATTEMPTS" env-default:"3"`
}

type SSOConfig struct {
	Addr     string        `yaml:"addr" env:"SSO_ADDR" env-default:"localhost:44044"`
	DeviceID string        `yaml:"device_id" env:"SSO_DEVICE_ID"`
	Timeout  time.Duration `yaml:"timeout" env:"SSO_TIMEOUT" env-default:"5s"`
}

type ConsoleConfig struct {
	Addr      string `yaml:"addr" env:"CONSOLE_ADDR" env-default:"127.0.0.1:8787"`
	LoginPath string `yaml:"login_path" env:"CONSOLE_LOGIN_PATH" env-default:"/auth/login"`
	Follow    bool   `yaml:"follow" env:"CONSOLE_FOLLOW" env-default:"true"`
}

type AssetsConfig struct {
	BlankAvatar string `yaml:"blank_avatar" env:"AUTH_BLANK_AVATAR" env-default:"./assets/media/avatars/blank.png"`
}

// Load reads the optional YAML file at path, then applies environment
// overrides. An empty path falls back to CONFIG_PATH.
func Load(path string) (*Config, error) {
	if path == "" {
		path = os.Getenv(EnvConfigPath)
	}

	cfg := &Config{}
	if path != "" {
		if err := cleanenv.ReadConfig(path, cfg); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	} else if err := cleanenv.ReadEnv(cfg); err != nil {
		return nil, fmt.Errorf("read env: %w", err)
	}

	if cfg.Storage.Driver == DriverFile && cfg.Storage.Path == "" {
		cfg.Storage.Path = defaultSessionPath()
	}

	if err := validateConfig(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// Usage describes every env variable, for --help output.
func Usage() string {
	desc, err := cleanenv.GetDescription(&Config{}, nil)
	if err != nil {
		return ""
	}
	return desc
}

// CompositeKey is the versioned storage key kept for compatibility with
// older session layouts.
func (c StorageConfig) CompositeKey() string {
	return c.AppVersion + "-" + c.Key
}

func validateConfig(cfg *Config) error {
	var errs []error

	switch cfg.Env {
	case EnvLocal, EnvDev, EnvProd:
	default:
		errs = append(errs, fmt.Errorf("env must be one of local, dev, prod; got %q", cfg.Env))
	}

	switch strings.ToLower(cfg.API.Transport) {
	case TransportHTTP:
		u, err := url.Parse(cfg.API.BaseURL)
		if err != nil || u.Scheme == "" || u.Host == "" {
			errs = append(errs, fmt.Errorf("api.base_url must be an absolute URL; got %q", cfg.API.BaseURL))
		}
	case TransportSSO:
		if cfg.SSO.Addr == "" {
			errs = append(errs, errors.New("sso.addr is required for the sso transport"))
		}
	default:
		errs = append(errs, fmt.Errorf("api.transport must be http or sso; got %q", cfg.API.Transport))
	}

	switch cfg.Storage.Driver {
	case DriverMemory, DriverRedis:
	case DriverFile:
		if cfg.Storage.Path == "" {
			errs = append(errs, errors.New("storage.path is required for the file driver"))
		}
	default:
		errs = append(errs, fmt.Errorf("storage.driver must be memory, file or redis; got %q", cfg.Storage.Driver))
	}

	if cfg.API.Rate < 0 || cfg.API.Burst < 0 {
		errs = append(errs, errors.New("api.rate and api.burst must not be negative"))
	}

	return errors.Join(errs...)
}

func defaultSessionPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		dir = os.TempDir()
	}
	return filepath.Join(dir, "authclient", "session.json")
}
