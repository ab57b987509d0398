package http

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

const (
	sessionCookie = "murmur_session"
	sessionTTL    = 30 * 24 * time.Hour
	authorKey     = "author"
)

type sessionClaims struct {
	Author string `json:"author"`
	jwt.RegisteredClaims
}

// Sessions keeps the chosen display name in a signed cookie.
type Sessions struct {
	secret []byte
	secure bool
	now    func() time.Time
}

func NewSessions(secret string, secure bool) *Sessions {
	return &Sessions{secret: []byte(secret), secure: secure, now: time.Now}
}

func (s *Sessions) Issue(author string) (string, error) {
	now := s.now()
	claims := sessionClaims{
		Author: author,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(sessionTTL)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
}

func (s *Sessions) Parse(token string) (string, error) {
	claims := &sessionClaims{}
	_, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return s.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(s.now))
	if err != nil {
		return "", err
	}
	if claims.Author == "" {
		return "", errors.New("session carries no author")
	}
	return claims.Author, nil
}

// Set writes the session cookie for author.
func (s *Sessions) Set(c *gin.Context, author string) error {
	token, err := s.Issue(author)
	if err != nil {
		return err
	}
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(sessionCookie, token, int(sessionTTL.Seconds()), "/", "", s.secure, true)
	return nil
}

func (s *Sessions) Clear(c *gin.Context) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(sessionCookie, "", -1, "/", "", s.secure, true)
}

// IdentityMiddleware resolves the session cookie into the request's author.
// Requests without a valid session continue anonymously.
func IdentityMiddleware(s *Sessions) gin.HandlerFunc {
	return func(c *gin.Context) {
		if token, err := c.Cookie(sessionCookie); err == nil && token != "" {
			if author, err := s.Parse(token); err == nil {
				c.Set(authorKey, author)
			}
		}
		c.Next()
	}
}

// currentAuthor returns the request's display name, or "" when anonymous.
func currentAuthor(c *gin.Context) string {
	return c.GetString(authorKey)
}
