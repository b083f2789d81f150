package middleware

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
)

func TestTokenRoundTrip(t *testing.T) {
	tm := NewTokenManager("test-secret", time.Hour)

	token, err := tm.GenerateToken(42)
	assert.NoError(t, err)
	assert.NotEmpty(t, token)

	userID, err := tm.ParseToken(token)
	assert.NoError(t, err)
	assert.Equal(t, uint(42), userID)
}

func TestParseTokenRejectsBadInput(t *testing.T) {
	tm := NewTokenManager("test-secret", time.Hour)

	_, err := tm.ParseToken("")
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = tm.ParseToken("not.a.token")
	assert.ErrorIs(t, err, ErrInvalidToken)

	// Token signed with a different secret.
	other := NewTokenManager("other-secret", time.Hour)
	token, err := other.GenerateToken(42)
	assert.NoError(t, err)
	_, err = tm.ParseToken(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestParseTokenRejectsExpired(t *testing.T) {
	tm := NewTokenManager("test-secret", time.Hour)
	tm.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }

	token, err := tm.GenerateToken(42)
	assert.NoError(t, err)

	tm.now = time.Now
	_, err = tm.ParseToken(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestRequireAuth(t *testing.T) {
	tm := NewTokenManager("test-secret", time.Hour)
	app := fiber.New()
	app.Get("/me", RequireAuth(tm), func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"user_id": UserID(c)})
	})

	// No header.
	req := httptest.NewRequest("GET", "/me", nil)
	resp, err := app.Test(req)
	assert.NoError(t, err)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)

	// Garbage token.
	req = httptest.NewRequest("GET", "/me", nil)
	req.Header.Set("Authorization", "Bearer nope")
	resp, err = app.Test(req)
	assert.NoError(t, err)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)

	// Valid token.
	token, err := tm.GenerateToken(7)
	assert.NoError(t, err)
	req = httptest.NewRequest("GET", "/me", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err = app.Test(req)
	assert.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
}
