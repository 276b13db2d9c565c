package tests

import (
	"authclient/internal/model"
	"authclient/internal/provider"
	"authclient/internal/tests/suite"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegister_LogsIn(t *testing.T) {
	s := suite.New(t)

	user, err := s.Auth.Register(context.Background(), model.User{
		Fullname: "Grace Brewster Hopper",
		Email:    "grace@gmail.com",
		Password: "Password123",
	})
	require.NoError(t, err)
	assert.Equal(t, "Grace", user.Firstname)
	assert.Equal(t, "Brewster Hopper", user.Lastname)
	assert.Equal(t, 1, s.API.LoginCalls())
	assert.Len(t, s.Updates(), 1)
}

func TestRegister_Duplicate(t *testing.T) {
	s := suite.New(t)
	s.API.AddUser("grace@gmail.com", "Grace Hopper", "Password123", "user")

	_, err := s.Auth.Register(context.Background(), model.User{
		Fullname: "Grace Hopper",
		Email:    "grace@gmail.com",
		Password: "Password999",
	})
	require.ErrorIs(t, err, provider.ErrUserExists)
	assert.Equal(t, 0, s.API.LoginCalls())
	assert.Empty(t, s.Updates())
}
