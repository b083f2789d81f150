package controllers

import (
	"errors"
	"log"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/clearmarkhq/clearmark/app/models"
	"github.com/clearmarkhq/clearmark/app/repository"
	"github.com/clearmarkhq/clearmark/internal/pkg/mail"
	"github.com/clearmarkhq/clearmark/internal/pkg/middleware"
)

// Activation links expire after a day; a fresh resend replaces the token.
const activationTokenTTL = 24 * time.Hour

type RegisterRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type AuthResponse struct {
	Token                string `json:"token,omitempty"`
	UserID               uint   `json:"user_id"`
	VerificationRequired bool   `json:"verification_required"`
}

// HandleRegister creates an account and sends the activation email. The
// account cannot log in until the email is verified.
func HandleRegister(c *fiber.Ctx) error {
	var req RegisterRequest
	if err := c.BodyParser(&req); err != nil {
		return jsonError(c, fiber.StatusBadRequest, "bad_request", "Invalid request body")
	}

	username := strings.TrimSpace(req.Username)
	if username == "" {
		username = strings.Split(req.Email, "@")[0]
	}

	user, err := models.CreateUser(username, strings.TrimSpace(req.Email), req.Password)
	if err != nil {
		return jsonError(c, fiber.StatusBadRequest, "bad_request", "Invalid registration data")
	}

	token, err := models.GenerateActivationToken()
	if err != nil {
		return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "Failed to create activation token")
	}
	now := time.Now()
	user.ActivationToken = token
	user.ActivationSentAt = &now

	repo := repository.GetGlobalFactory().GetUserRepository()
	if err := repo.Create(user); err != nil {
		return jsonError(c, fiber.StatusBadRequest, "bad_request", "User already exists or invalid data")
	}

	if err := mail.SendActivationMail(user.Email, token); err != nil {
		log.Printf("activation mail for user %d failed: %v", user.ID, err)
	}

	return c.JSON(AuthResponse{UserID: user.ID, VerificationRequired: true})
}

// HandleLogin checks credentials and issues an access token. Unverified
// accounts are rejected with 403.
func HandleLogin(tm *middleware.TokenManager) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req LoginRequest
		if err := c.BodyParser(&req); err != nil {
			return jsonError(c, fiber.StatusBadRequest, "bad_request", "Invalid request body")
		}

		repo := repository.GetGlobalFactory().GetUserRepository()
		user, err := repo.GetByEmail(strings.TrimSpace(req.Email))
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return jsonError(c, fiber.StatusUnauthorized, "unauthorized", "Invalid credentials")
			}
			return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "Login failed")
		}

		if !models.CheckPasswordHash(req.Password, user.PasswordHash) {
			return jsonError(c, fiber.StatusUnauthorized, "unauthorized", "Invalid credentials")
		}

		if !user.EmailVerified {
			return jsonError(c, fiber.StatusForbidden, "forbidden", "Email not verified")
		}
		if user.Status == models.STATUS_DISABLED {
			return jsonError(c, fiber.StatusForbidden, "forbidden", "Account disabled")
		}

		token, err := tm.GenerateToken(user.ID)
		if err != nil {
			return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "Failed to issue token")
		}

		if err := repo.UpdateLastLogin(user.ID); err != nil {
			log.Printf("last login update for user %d failed: %v", user.ID, err)
		}

		return c.JSON(AuthResponse{Token: token, UserID: user.ID})
	}
}

// HandleVerifyEmail consumes an activation token from the mail link.
func HandleVerifyEmail(c *fiber.Ctx) error {
	token := strings.TrimSpace(c.Query("token"))
	if token == "" {
		return jsonError(c, fiber.StatusBadRequest, "bad_request", "Missing token")
	}

	repo := repository.GetGlobalFactory().GetUserRepository()
	user, err := repo.GetByActivationToken(token)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return jsonError(c, fiber.StatusBadRequest, "bad_request", "Invalid or expired token")
		}
		return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "Verification failed")
	}

	if user.ActivationSentAt == nil || time.Since(*user.ActivationSentAt) > activationTokenTTL {
		return jsonError(c, fiber.StatusBadRequest, "bad_request", "Invalid or expired token")
	}

	user.EmailVerified = true
	user.Status = models.STATUS_ACTIVE
	user.ActivationToken = ""
	user.ActivationSentAt = nil
	if err := repo.Update(user); err != nil {
		return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "Verification failed")
	}

	return c.JSON(fiber.Map{"ok": true})
}

// HandleResendVerification re-sends the activation mail. Unknown emails get
// the same response as known ones.
func HandleResendVerification(c *fiber.Ctx) error {
	var req struct {
		Email string `json:"email"`
	}
	if err := c.BodyParser(&req); err != nil {
		return jsonError(c, fiber.StatusBadRequest, "bad_request", "Invalid request body")
	}

	repo := repository.GetGlobalFactory().GetUserRepository()
	user, err := repo.GetByEmail(strings.TrimSpace(req.Email))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.JSON(fiber.Map{"ok": true})
		}
		return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "Resend failed")
	}

	if user.EmailVerified {
		return c.JSON(fiber.Map{"ok": true, "already_verified": true})
	}

	token, err := models.GenerateActivationToken()
	if err != nil {
		return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "Failed to create activation token")
	}
	now := time.Now()
	user.ActivationToken = token
	user.ActivationSentAt = &now
	if err := repo.Update(user); err != nil {
		return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "Resend failed")
	}

	if err := mail.SendActivationMail(user.Email, token); err != nil {
		log.Printf("activation mail for user %d failed: %v", user.ID, err)
		return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "Failed to send email")
	}

	return c.JSON(fiber.Map{"ok": true})
}
