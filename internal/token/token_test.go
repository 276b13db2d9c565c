package token

import (
	"encoding/base64"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func tokenWithPayload(payload string) string {
	header := base64.RawURLEncoding.EncodeToString([]byte(`{"alg":"none","typ":"JWT"}`))
	body := base64.RawURLEncoding.EncodeToString([]byte(payload))
	return header + "." + body + ".sig"
}

func TestDecode_SegmentCount(t *testing.T) {
	for _, tok := range []string{"abc", "nodots", "x"} {
		_, err := Decode(tok)
		require.ErrorIs(t, err, ErrMalformedToken, tok)
		assert.False(t, IsValid(tok, time.Now()))
	}

	_, err := Decode("")
	require.ErrorIs(t, err, ErrEmptyToken)
}

func TestDecode_TwoSegmentsAccepted(t *testing.T) {
	body := base64.RawURLEncoding.EncodeToString([]byte(`{"sub":"1"}`))
	claims, err := Decode("header." + body)
	require.NoError(t, err)
	assert.Equal(t, "1", claims["sub"])
}

func TestDecode_PaddedSegment(t *testing.T) {
	body := base64.URLEncoding.EncodeToString([]byte(`{"sub":"42"}`))
	claims, err := Decode("h." + body + ".s")
	require.NoError(t, err)
	assert.Equal(t, "42", claims["sub"])
}

func TestDecode_BadPayload(t *testing.T) {
	tests := map[string]string{
		"not base64":  "h.%%%.s",
		"not json":    "h." + base64.RawURLEncoding.EncodeToString([]byte("hello")) + ".s",
		"json number": tokenWithPayload("123"),
		"json null":   tokenWithPayload("null"),
		"json array":  tokenWithPayload("[1,2]"),
	}
	for name, tok := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := Decode(tok)
			require.ErrorIs(t, err, ErrMalformedToken)
			assert.False(t, IsValid(tok, time.Now()))
		})
	}
}

func TestIsValid_Expiry(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)

	assert.True(t, IsValid(tokenWithPayload(`{}`), now), "no exp never expires")
	assert.True(t, IsValid(tokenWithPayload(`{"exp":"soon"}`), now), "non-numeric exp is ignored")
	assert.True(t, IsValid(tokenWithPayload(`{"exp":1700000060}`), now))
	assert.False(t, IsValid(tokenWithPayload(`{"exp":1699999940}`), now))
	assert.False(t, IsValid(tokenWithPayload(`{"exp":1700000000}`), now), "exp equal to now is expired")
	assert.True(t, IsValid(tokenWithPayload(`{"exp":1700000000.5}`), now))
}

func TestExpiresAt(t *testing.T) {
	at, ok := ExpiresAt(tokenWithPayload(`{"exp":1700000000}`))
	require.True(t, ok)
	assert.Equal(t, int64(1_700_000_000), at.Unix())

	_, ok = ExpiresAt(tokenWithPayload(`{}`))
	assert.False(t, ok)

	_, ok = ExpiresAt("broken")
	assert.False(t, ok)
}

func TestSigner_RoundTrip(t *testing.T) {
	s := NewSigner("secret", time.Hour)

	tok, err := s.Sign("7", "ada@example.com", "admin")
	require.NoError(t, err)
	assert.True(t, IsValid(tok, time.Now()))

	claims, err := Decode(tok)
	require.NoError(t, err)
	assert.Equal(t, "ada@example.com", claims["email"])

	verified, err := s.Verify(tok)
	require.NoError(t, err)
	assert.Equal(t, "7", verified["sub"])

	_, err = NewSigner("other", time.Hour).Verify(tok)
	require.Error(t, err)
}

func TestSigner_Expired(t *testing.T) {
	s := NewSigner("secret", time.Minute)

	tok, err := s.SignAt("7", "ada@example.com", "user", time.Now().Add(-time.Hour))
	require.NoError(t, err)

	assert.False(t, IsValid(tok, time.Now()))
	_, err = s.Verify(tok)
	require.Error(t, err)
}
