package controllers

import (
	"fmt"
	"log"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/clearmarkhq/clearmark/app/models"
	"github.com/clearmarkhq/clearmark/app/repository"
	"github.com/clearmarkhq/clearmark/internal/pkg/env"
	"github.com/clearmarkhq/clearmark/internal/pkg/payment"
	"github.com/clearmarkhq/clearmark/internal/pkg/storage"
	"github.com/clearmarkhq/clearmark/internal/pkg/videojob"
)

type UploadResponse struct {
	Message  string `json:"message"`
	UploadID uint   `json:"upload_id"`
	TaskID   string `json:"task_id"`
}

// HandleUpload accepts a video (multipart file or a remote URL), charges one
// credit and submits the watermark-removal job. The row settles later via
// callback or the status poller.
func HandleUpload(engine *payment.Engine, store *storage.Client, jobs *videojob.Client) fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID := currentUserID(c)
		if userID == 0 {
			return jsonError(c, fiber.StatusUnauthorized, "unauthorized", "Login required")
		}
		log.Printf("upload start user_id=%d", userID)

		creditKind, err := engine.CanConsume(c.UserContext(), userID)
		if err != nil {
			log.Printf("upload billing error user_id=%d: %v", userID, err)
			return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "Billing error")
		}
		if creditKind == "" {
			log.Printf("upload no credits user_id=%d", userID)
			return jsonError(c, fiber.StatusPaymentRequired, "payment_required", "Insufficient credits")
		}

		originalFilename := "video.mp4"
		externalURL := strings.TrimSpace(c.FormValue("url"))
		file, fileErr := c.FormFile("file")

		var objectKey, publicURL string
		switch {
		case fileErr == nil && file != nil:
			originalFilename = sanitizeFilename(file.Filename)
			objectKey = store.Config().OriginalObjectKey(userID)

			src, err := file.Open()
			if err != nil {
				return jsonError(c, fiber.StatusBadRequest, "bad_request", "Unreadable file")
			}
			defer src.Close()

			if err := store.PutVideo(c.UserContext(), objectKey, src, file.Size); err != nil {
				log.Printf("upload s3 error user_id=%d: %v", userID, err)
				return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "Failed to save video")
			}
			publicURL = store.PublicURL(objectKey)
		case externalURL != "":
			log.Printf("upload using external url user_id=%d url=%s", userID, externalURL)
			objectKey = externalURL
			publicURL = externalURL
			if name := filenameFromURL(externalURL); name != "" {
				originalFilename = name
			}
		default:
			return jsonError(c, fiber.StatusBadRequest, "bad_request", "No file or URL provided")
		}

		uploads := repository.GetGlobalFactory().GetUploadRepository()
		upload := &models.Upload{
			UserID:           userID,
			OriginalFilename: originalFilename,
			OriginalS3Key:    objectKey,
			Status:           models.UploadStatusProcessing,
			UsedCreditType:   creditKind,
		}
		if err := uploads.Create(upload); err != nil {
			log.Printf("upload db insert error user_id=%d: %v", userID, err)
			return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "Failed to record upload")
		}

		if err := engine.Consume(c.UserContext(), userID, creditKind); err != nil {
			log.Printf("upload credit charge error user_id=%d upload_id=%d: %v", userID, upload.ID, err)
		}

		callbackURL := fmt.Sprintf("%s/api/watermark-callback",
			strings.TrimRight(env.GetEnv("CALLBACK_BASE_URL", env.GetEnv("PUBLIC_DOMAIN", "")), "/"))

		taskID, err := jobs.SubmitRemoveWatermark(c.UserContext(), publicURL, callbackURL)
		if err != nil {
			log.Printf("upload job submit error user_id=%d upload_id=%d: %v", userID, upload.ID, err)
			return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "Failed to start processing")
		}

		if err := uploads.SetTaskID(upload.ID, taskID); err != nil {
			log.Printf("upload task id save error upload_id=%d: %v", upload.ID, err)
		}

		log.Printf("upload started task user_id=%d upload_id=%d task_id=%s", userID, upload.ID, taskID)
		return c.JSON(UploadResponse{
			Message:  "Processing started",
			UploadID: upload.ID,
			TaskID:   taskID,
		})
	}
}

// HandleCreditsStatus reports the user's remaining balance across all three
// credit kinds.
func HandleCreditsStatus(engine *payment.Engine) fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID := currentUserID(c)
		if userID == 0 {
			return jsonError(c, fiber.StatusUnauthorized, "unauthorized", "Login required")
		}

		if err := engine.RefreshMonthlyQuota(c.UserContext(), userID); err != nil {
			log.Printf("credits status: quota refresh for user %d failed: %v", userID, err)
		}

		user, err := repository.GetGlobalFactory().GetUserRepository().GetByID(userID)
		if err != nil {
			return jsonError(c, fiber.StatusNotFound, "not_found", "User not found")
		}

		return c.JSON(fiber.Map{
			"credits":              user.Credits,
			"monthly_quota":        user.MonthlyQuota,
			"free_generation_used": user.FreeGenerationUsed,
		})
	}
}

// HandleListUploads returns the user's uploads, newest first.
func HandleListUploads(c *fiber.Ctx) error {
	userID := currentUserID(c)
	if userID == 0 {
		return jsonError(c, fiber.StatusUnauthorized, "unauthorized", "Login required")
	}

	limit := clampQueryInt(c, "limit", 100, 1, 1000)
	offset := clampQueryInt(c, "offset", 0, 0, 1<<30)

	uploads, err := repository.GetGlobalFactory().GetUploadRepository().ListByUser(userID, offset, limit)
	if err != nil {
		log.Printf("list uploads db error user_id=%d: %v", userID, err)
		return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "Failed to load uploads")
	}

	items := make([]fiber.Map, 0, len(uploads))
	for _, u := range uploads {
		items = append(items, fiber.Map{
			"id":                u.ID,
			"status":            u.Status,
			"original_filename": u.OriginalFilename,
			"cleaned_url":       u.CleanedURL,
			"created_at":        u.CreatedAt,
		})
	}
	return c.JSON(items)
}

func clampQueryInt(c *fiber.Ctx, key string, def, min, max int) int {
	v, err := strconv.Atoi(c.Query(key))
	if err != nil {
		return def
	}
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}

// sanitizeFilename strips everything but alphanumerics, dots, dashes and
// underscores.
func sanitizeFilename(name string) string {
	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9',
			r == '.', r == '_', r == '-':
			b.WriteRune(r)
		}
	}
	if b.Len() == 0 {
		return "video.mp4"
	}
	return b.String()
}

func filenameFromURL(rawURL string) string {
	name := rawURL
	if idx := strings.LastIndex(name, "/"); idx >= 0 {
		name = name[idx+1:]
	}
	name = strings.SplitN(name, "?", 2)[0]
	name = strings.SplitN(name, "#", 2)[0]
	if name == "" {
		return ""
	}
	return sanitizeFilename(name)
}
