package sso

import (
	"authclient/internal/model"
	"authclient/internal/provider"
	"authclient/internal/token"
	"context"
	"io"
	"log/slog"
	"net"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/s10n41k/protos/gen/go/sso"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
)

type fakeSSO struct {
	sso.UnimplementedAuthServer

	signer     *token.Signer
	lastDevice string
	lastBearer string

	mu      sync.Mutex
	pending map[string]string
	logins  int
}

// Login accepts Password123 for any account that is not awaiting email
// verification.
func (f *fakeSSO) Login(_ context.Context, in *sso.LoginRequest) (*sso.LoginResponse, error) {
	f.mu.Lock()
	f.logins++
	_, unverified := f.pending["user:"+in.GetEmail()]
	f.mu.Unlock()

	if unverified || in.GetPassword() != "Password123" {
		return nil, status.Error(codes.NotFound, "user not found")
	}
	f.lastDevice = in.GetDeviceID()
	access, err := f.signer.Sign("user-1", in.GetEmail(), "user")
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	return &sso.LoginResponse{TokenAccess: access, TokenRefresh: "refresh-1"}, nil
}

func (f *fakeSSO) Register(_ context.Context, in *sso.RegisterRequest) (*sso.RegisterResponse, error) {
	if in.GetEmail() == "taken@gmail.com" {
		return nil, status.Error(codes.AlreadyExists, "user already exists")
	}
	session := "user:" + in.GetEmail()
	f.mu.Lock()
	f.pending[session] = in.GetEmail()
	f.mu.Unlock()
	return &sso.RegisterResponse{Session: session}, nil
}

func (f *fakeSSO) VerifyEmail(_ context.Context, in *sso.VerifyEmailRequest) (*sso.VerifyEmailResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if _, ok := f.pending[in.GetSession()]; !ok {
		return nil, status.Error(codes.NotFound, "session not found")
	}
	if in.GetCode() != "1234" {
		return nil, status.Error(codes.InvalidArgument, "wrong code")
	}
	delete(f.pending, in.GetSession())
	return &sso.VerifyEmailResponse{UserId: "user-2"}, nil
}

func (f *fakeSSO) loginCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.logins
}

func (f *fakeSSO) Logout(ctx context.Context, _ *sso.LogoutRequest) (*sso.LogoutResponse, error) {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok || len(md.Get("authorization")) == 0 {
		return nil, status.Error(codes.InvalidArgument, "missing token")
	}
	f.lastBearer = strings.TrimPrefix(md.Get("authorization")[0], "Bearer ")
	return &sso.LogoutResponse{}, nil
}

func startSSO(t *testing.T) (*fakeSSO, sso.AuthClient) {
	t.Helper()

	lis := bufconn.Listen(1 << 20)
	srv := grpc.NewServer()
	fake := &fakeSSO{signer: token.NewSigner("test", time.Hour), pending: map[string]string{}}
	sso.RegisterAuthServer(srv, fake)

	go func() {
		_ = srv.Serve(lis)
	}()

	conn, err := Dial("passthrough:///bufnet", grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
		return lis.DialContext(ctx)
	}))
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = conn.Close()
		srv.Stop()
	})

	return fake, sso.NewAuthClient(conn)
}

var quiet = slog.New(slog.NewTextHandler(io.Discard, nil))

func TestLogin(t *testing.T) {
	fake, client := startSSO(t)
	p := New(client, "device-123", time.Second, nil, quiet)

	res, err := p.Login(context.Background(), "test@gmail.com", "Password123")
	require.NoError(t, err)

	assert.NotEmpty(t, res.Auth.AuthToken)
	assert.Equal(t, "refresh-1", res.Auth.RefreshToken)
	assert.WithinDuration(t, time.Now().Add(time.Hour), res.Auth.ExpiresIn, 5*time.Second)
	assert.Nil(t, res.User)
	assert.Equal(t, "device-123", fake.lastDevice)
}

func TestLogin_Rejected(t *testing.T) {
	_, client := startSSO(t)
	p := New(client, "", time.Second, nil, quiet)

	_, err := p.Login(context.Background(), "test@gmail.com", "nope")
	require.ErrorIs(t, err, provider.ErrAuthRejected)
	assert.NotEmpty(t, p.DeviceID())
}

func TestRegister(t *testing.T) {
	_, client := startSSO(t)
	p := New(client, "d", time.Second, nil, quiet)

	out, err := p.Register(context.Background(), model.User{
		Email:     "new@gmail.com",
		Firstname: "Grace",
		Lastname:  "Hopper",
		Password:  "Password123",
	})
	require.ErrorIs(t, err, provider.ErrVerificationRequired)
	assert.Nil(t, out)

	var pending *provider.VerificationError
	require.ErrorAs(t, err, &pending)
	assert.Equal(t, "new@gmail.com", pending.Email)
	assert.Equal(t, "user:new@gmail.com", pending.Session)

	_, err = p.Register(context.Background(), model.User{Email: "taken@gmail.com"})
	require.ErrorIs(t, err, provider.ErrUserExists)
}

func TestVerifyEmail(t *testing.T) {
	_, client := startSSO(t)
	p := New(client, "d", time.Second, nil, quiet)
	ctx := context.Background()

	_, err := p.Register(ctx, model.User{Email: "new@gmail.com", Fullname: "Grace Hopper", Password: "Password123"})
	require.ErrorIs(t, err, provider.ErrVerificationRequired)

	_, err = p.Login(ctx, "new@gmail.com", "Password123")
	require.ErrorIs(t, err, provider.ErrAuthRejected)

	_, err = p.VerifyEmail(ctx, "user:new@gmail.com", "9999")
	require.ErrorIs(t, err, provider.ErrAuthRejected)

	id, err := p.VerifyEmail(ctx, "user:new@gmail.com", "1234")
	require.NoError(t, err)
	assert.Equal(t, "user-2", id)

	_, err = p.Login(ctx, "new@gmail.com", "Password123")
	require.NoError(t, err)

	_, err = p.VerifyEmail(ctx, "", "1234")
	require.ErrorIs(t, err, provider.ErrMissingData)
}

func TestLogout_SendsBearer(t *testing.T) {
	fake, client := startSSO(t)
	p := New(client, "d", time.Second, nil, quiet)

	require.NoError(t, p.Logout(context.Background(), "access-1"))
	assert.Equal(t, "access-1", fake.lastBearer)

	require.ErrorIs(t, p.Logout(context.Background(), ""), provider.ErrMissingSession)
}

func TestUnsupported(t *testing.T) {
	_, client := startSSO(t)
	p := New(client, "d", time.Second, nil, quiet)

	_, err := p.ForgotPassword(context.Background(), "a@b.c")
	require.ErrorIs(t, err, provider.ErrUnsupported)
	_, err = p.ResetPassword(context.Background(), model.ResetPasswordRequest{})
	require.ErrorIs(t, err, provider.ErrUnsupported)
	_, err = p.Me(context.Background(), "tok")
	require.ErrorIs(t, err, provider.ErrUnsupported)
}

func TestMapStatus(t *testing.T) {
	assert.ErrorIs(t, mapStatus(status.Error(codes.Unavailable, "down")), provider.ErrNetwork)
	assert.ErrorIs(t, mapStatus(status.Error(codes.Internal, "x")), provider.ErrServer)
	assert.ErrorIs(t, mapStatus(status.Error(codes.Unimplemented, "x")), provider.ErrUnsupported)
	assert.ErrorIs(t, mapStatus(io.EOF), provider.ErrNetwork)
}
