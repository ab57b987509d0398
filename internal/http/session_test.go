package http

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessionRoundTrip(t *testing.T) {
	s := NewSessions("secret", false)
	token, err := s.Issue("alice")
	require.NoError(t, err)

	author, err := s.Parse(token)
	require.NoError(t, err)
	assert.Equal(t, "alice", author)
}

func TestSessionRejectsTampering(t *testing.T) {
	s := NewSessions("secret", false)
	token, err := s.Issue("alice")
	require.NoError(t, err)

	_, err = NewSessions("another", false).Parse(token)
	assert.Error(t, err)

	none, err := jwt.NewWithClaims(jwt.SigningMethodNone, sessionClaims{Author: "mallory"}).
		SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	_, err = s.Parse(none)
	assert.Error(t, err)
}

func TestSessionExpires(t *testing.T) {
	s := NewSessions("secret", false)
	issued := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return issued }
	token, err := s.Issue("alice")
	require.NoError(t, err)

	s.now = func() time.Time { return issued.Add(sessionTTL - time.Minute) }
	_, err = s.Parse(token)
	assert.NoError(t, err)

	s.now = func() time.Time { return issued.Add(sessionTTL + time.Minute) }
	_, err = s.Parse(token)
	assert.ErrorIs(t, err, jwt.ErrTokenExpired)
}

func TestSessionWithoutAuthor(t *testing.T) {
	s := NewSessions("secret", false)
	token, err := s.Issue("")
	require.NoError(t, err)
	_, err = s.Parse(token)
	assert.Error(t, err)
}
