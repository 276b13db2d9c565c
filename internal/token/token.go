package token

import (
	"authclient/internal/model"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrMalformedToken = errors.New("malformed token")
	ErrEmptyToken     = errors.New("token is empty")
)

var segmentParser = jwt.NewParser(jwt.WithPaddingAllowed())

// Decode reads the payload segment of a JWT-shaped token without verifying
// the signature. The payload must be a JSON object.
func Decode(tokenString string) (model.Claims, error) {
	if tokenString == "" {
		return nil, ErrEmptyToken
	}

	parts := strings.Split(tokenString, ".")
	if len(parts) < 2 {
		return nil, fmt.Errorf("%w: expected at least 2 segments, got %d", ErrMalformedToken, len(parts))
	}

	raw, err := segmentParser.DecodeSegment(parts[1])
	if err != nil {
		return nil, fmt.Errorf("%w: decode payload: %v", ErrMalformedToken, err)
	}

	var claims jwt.MapClaims
	if err := json.Unmarshal(raw, &claims); err != nil {
		return nil, fmt.Errorf("%w: parse payload: %v", ErrMalformedToken, err)
	}
	if claims == nil {
		return nil, fmt.Errorf("%w: payload is null", ErrMalformedToken)
	}

	return model.Claims(claims), nil
}

// IsValid reports whether the token is structurally sound and not expired at
// now. A payload without a numeric exp never expires.
func IsValid(tokenString string, now time.Time) bool {
	claims, err := Decode(tokenString)
	if err != nil {
		return false
	}
	return !Expired(claims, now)
}

// Expired compares exp (seconds) against now at millisecond resolution.
func Expired(claims model.Claims, now time.Time) bool {
	exp, ok := claims.Exp()
	if !ok {
		return false
	}
	return exp*1000 <= float64(now.UnixMilli())
}

// ExpiresAt returns the exp claim as a time when the token carries one.
func ExpiresAt(tokenString string) (time.Time, bool) {
	claims, err := Decode(tokenString)
	if err != nil {
		return time.Time{}, false
	}
	exp, ok := claims.Exp()
	if !ok {
		return time.Time{}, false
	}
	sec, frac := math.Modf(exp)
	return time.Unix(int64(sec), int64(frac*1e9)), true
}

// Signer mints HS256 tokens. The local console and the test API use it to
// stand in for a real backend.
type Signer struct {
	secret []byte
	ttl    time.Duration
}

func NewSigner(secret string, ttl time.Duration) *Signer {
	return &Signer{secret: []byte(secret), ttl: ttl}
}

func (s *Signer) Sign(subject, email, role string) (string, error) {
	return s.SignAt(subject, email, role, time.Now())
}

func (s *Signer) SignAt(subject, email, role string, issuedAt time.Time) (string, error) {
	claims := jwt.MapClaims{
		"sub":   subject,
		"email": email,
		"role":  role,
		"iat":   issuedAt.Unix(),
		"exp":   issuedAt.Add(s.ttl).Unix(),
	}

	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return tok.SignedString(s.secret)
}

// Verify checks the signature and expiry of a token minted by this signer.
func (s *Signer) Verify(tokenString string) (jwt.MapClaims, error) {
	if tokenString == "" {
		return nil, ErrEmptyToken
	}

	tok, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("token validation failed: %w", err)
	}

	if claims, ok := tok.Claims.(jwt.MapClaims); ok && tok.Valid {
		return claims, nil
	}

	return nil, errors.New("invalid token")
}
