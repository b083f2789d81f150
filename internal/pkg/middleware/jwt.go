package middleware

import (
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	jwt "github.com/golang-jwt/jwt/v5"

	"github.com/clearmarkhq/clearmark/internal/pkg/env"
)

const (
	// Locals key the auth middleware stores the authenticated user id under.
	KeyUserID = "USER_ID"

	authHeaderPrefix = "Bearer "
	defaultTokenTTL  = 30 * 24 * time.Hour
)

var ErrInvalidToken = errors.New("invalid token")

// TokenManager issues and validates the HS256 access tokens the API uses.
type TokenManager struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewTokenManager(secret string, ttl time.Duration) *TokenManager {
	if ttl <= 0 {
		ttl = defaultTokenTTL
	}
	return &TokenManager{
		secret: []byte(secret),
		ttl:    ttl,
		now:    time.Now,
	}
}

func NewTokenManagerFromEnv() *TokenManager {
	ttl := defaultTokenTTL
	if hours, err := strconv.Atoi(env.GetEnv("JWT_TTL_HOURS", "")); err == nil && hours > 0 {
		ttl = time.Duration(hours) * time.Hour
	}
	return NewTokenManager(env.GetEnv("JWT_SECRET", ""), ttl)
}

// GenerateToken signs an access token for the given user.
func (m *TokenManager) GenerateToken(userID uint) (string, error) {
	if len(m.secret) == 0 {
		return "", errors.New("JWT_SECRET is not configured")
	}

	now := m.now().UTC()
	claims := jwt.RegisteredClaims{
		Subject:   strconv.FormatUint(uint64(userID), 10),
		IssuedAt:  jwt.NewNumericDate(now),
		NotBefore: jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(m.ttl)),
	}

	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
}

// ParseToken validates a token and returns the user id it carries.
func (m *TokenManager) ParseToken(raw string) (uint, error) {
	if strings.TrimSpace(raw) == "" {
		return 0, ErrInvalidToken
	}

	claims := &jwt.RegisteredClaims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(_ *jwt.Token) (interface{}, error) {
		return m.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Name}))
	if err != nil || token == nil || !token.Valid {
		return 0, ErrInvalidToken
	}

	userID, err := strconv.ParseUint(claims.Subject, 10, 32)
	if err != nil || userID == 0 {
		return 0, ErrInvalidToken
	}
	return uint(userID), nil
}

// RequireAuth validates the Authorization header and stores the user id in
// the request locals. API routes return JSON 401, never a redirect.
func RequireAuth(tm *TokenManager) fiber.Handler {
	return func(c *fiber.Ctx) error {
		header := c.Get(fiber.HeaderAuthorization)
		if header == "" || !strings.HasPrefix(header, authHeaderPrefix) {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error":   "unauthorized",
				"message": "Missing bearer token",
			})
		}

		userID, err := tm.ParseToken(strings.TrimPrefix(header, authHeaderPrefix))
		if err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error":   "unauthorized",
				"message": "Invalid or expired token",
			})
		}

		c.Locals(KeyUserID, userID)
		return c.Next()
	}
}

// UserID reads the authenticated user id set by RequireAuth.
func UserID(c *fiber.Ctx) uint {
	if id, ok := c.Locals(KeyUserID).(uint); ok {
		return id
	}
	return 0
}
