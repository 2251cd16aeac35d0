package ws

import (
	"crypto/rand"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// sessionTTL bounds how long a dropped player can resume the same identity.
const sessionTTL = 24 * time.Hour

// SessionManager issues and verifies the signed reconnect tokens that let a
// returning connection claim its previous seat.
type SessionManager struct {
	secret []byte
}

type sessionClaims struct {
	Username string `json:"username,omitempty"`
	jwt.RegisteredClaims
}

// NewSessionManager creates a manager with the given HMAC secret. An empty
// secret gets a random one, which invalidates sessions across restarts.
func NewSessionManager(secret string) *SessionManager {
	key := []byte(secret)
	if len(key) == 0 {
		key = make([]byte, 32)
		_, _ = rand.Read(key)
		logrus.Warn("SESSION_SECRET not set, sessions will not survive a restart")
	}
	return &SessionManager{secret: key}
}

// IssueToken signs a session token for the player.
func (s *SessionManager) IssueToken(playerID uuid.UUID, username string) (string, error) {
	now := time.Now()
	claims := sessionClaims{
		Username: username,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   playerID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(sessionTTL)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
}

// ParseToken verifies a session token and returns the player identity it
// carries.
func (s *SessionManager) ParseToken(token string) (uuid.UUID, string, error) {
	var claims sessionClaims
	parsed, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil {
		return uuid.Nil, "", err
	}
	if !parsed.Valid {
		return uuid.Nil, "", fmt.Errorf("invalid session token")
	}
	playerID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return uuid.Nil, "", fmt.Errorf("bad subject: %w", err)
	}
	return playerID, claims.Username, nil
}
