package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/maildesk/maildesk-server/internal/config"
	"github.com/maildesk/maildesk-server/internal/models"
	"github.com/maildesk/maildesk-server/pkg/crypto"
)

// JWTManager issues and validates access tokens and creates the server-side
// sessions they are bound to.
type JWTManager struct {
	config *config.JWTConfig
}

// NewJWTManager creates a new JWT manager
func NewJWTManager(cfg *config.JWTConfig) *JWTManager {
	return &JWTManager{
		config: cfg,
	}
}

// Claims represents JWT claims
type Claims struct {
	jwt.RegisteredClaims
	UserID     uuid.UUID   `json:"user_id"`
	Email      string      `json:"email"`
	Role       models.Role `json:"role"`
	BusinessID *uuid.UUID  `json:"business_id,omitempty"`

	// SessionToken binds the access token to its server-side session, so
	// every request can be reconciled against current tenancy state.
	SessionToken string `json:"session_token"`
}

// NewSession creates a server-side session for a user with a random opaque
// token. The caller persists it.
func (m *JWTManager) NewSession(user *models.User) (*models.Session, error) {
	token, err := crypto.GenerateRandomString(32)
	if err != nil {
		return nil, fmt.Errorf("generate session token: %w", err)
	}

	now := time.Now()
	return &models.Session{
		Token:      token,
		UserID:     user.ID,
		Email:      user.Email,
		BusinessID: user.BusinessID,
		CreatedAt:  now,
		ExpiresAt:  now.Add(m.config.SessionTTL),
	}, nil
}

// GenerateAccessToken generates a signed access token bound to a session
func (m *JWTManager) GenerateAccessToken(user *models.User, sessionToken string) (string, error) {
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID.String(),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(m.config.AccessTokenTTL)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			NotBefore: jwt.NewNumericDate(time.Now()),
			Issuer:    "maildesk-server",
		},
		UserID:       user.ID,
		Email:        user.Email,
		Role:         user.Role,
		BusinessID:   user.BusinessID,
		SessionToken: sessionToken,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(m.config.Secret))
	if err != nil {
		return "", fmt.Errorf("sign access token: %w", err)
	}

	return signed, nil
}

// ValidateToken validates a token
func (m *JWTManager) ValidateToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(m.config.Secret), nil
	})

	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid token")
	}

	return claims, nil
}

// AccessTokenTTL exposes the configured access token lifetime
func (m *JWTManager) AccessTokenTTL() time.Duration {
	return m.config.AccessTokenTTL
}

// VerifyPassword verifies a password against a hash
func (m *JWTManager) VerifyPassword(password, hash string) bool {
	if hash == models.GoogleOAuthSentinel {
		return false
	}
	return crypto.VerifyPassword(password, hash)
}
