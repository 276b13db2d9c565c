package redis

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDoWithTries_SucceedsAfterFailures(t *testing.T) {
	calls := 0
	err := doWithTries(func() error {
		calls++
		if calls < 3 {
			return errors.New("not yet")
		}
		return nil
	}, 5, time.Millisecond)

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestDoWithTries_GivesUp(t *testing.T) {
	calls := 0
	boom := errors.New("boom")
	err := doWithTries(func() error {
		calls++
		return boom
	}, 2, time.Millisecond)

	require.ErrorIs(t, err, boom)
	assert.Equal(t, 2, calls)
}
