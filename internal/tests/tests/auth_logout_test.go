package tests

import (
	"authclient/internal/guard"
	"authclient/internal/tests/suite"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogout_ClearsEverything(t *testing.T) {
	s := suite.New(t)
	ctx := context.Background()
	s.API.AddUser("ada@gmail.com", "Ada Lovelace", "Password123", "user")

	_, err := s.Auth.Login(ctx, "ada@gmail.com", "Password123")
	require.NoError(t, err)
	require.NoError(t, s.Storage.Set(ctx, suite.CompositeKey, "legacy"))

	s.Auth.Logout(ctx)

	assert.Empty(t, s.Storage.Keys())
	sess, err := s.Sessions.Load(ctx)
	require.NoError(t, err)
	assert.Nil(t, sess)

	d := s.Guard.CanActivate(ctx)
	assert.Equal(t, guard.Rejected, d.State)
	assert.Equal(t, guard.ReasonMissingSession, d.Reason)

	updates := s.Updates()
	require.Len(t, updates, 3)
	assert.NotNil(t, updates[0])
	assert.Nil(t, updates[1])
	assert.Nil(t, updates[2])
	assert.Nil(t, s.Auth.CurrentUser().Get())
}

func TestRestore_AfterRestart(t *testing.T) {
	s := suite.New(t)
	ctx := context.Background()
	s.API.AddUser("ada@gmail.com", "Ada Lovelace", "Password123", "user")

	user, err := s.Auth.Login(ctx, "ada@gmail.com", "Password123")
	require.NoError(t, err)

	s.Auth.CurrentUser().Set(nil)
	restored := s.Auth.Restore(ctx)
	require.NotNil(t, restored)
	assert.Equal(t, *user, *restored)
	assert.Equal(t, restored, s.Auth.CurrentUser().Get())
}
