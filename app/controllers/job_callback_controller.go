package controllers

import (
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/clearmarkhq/clearmark/app/repository"
	"github.com/clearmarkhq/clearmark/internal/pkg/storage"
	"github.com/clearmarkhq/clearmark/internal/pkg/videojob"
)

var callbackDownloadClient = &http.Client{Timeout: 5 * time.Minute}

// HandleWatermarkCallback receives the job API's completion push. On success
// it re-hosts the cleaned video in our bucket and settles the upload row; the
// poller covers endpoints that never call back.
func HandleWatermarkCallback(store *storage.Client) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var payload videojob.CallbackPayload
		if err := c.BodyParser(&payload); err != nil {
			return jsonError(c, fiber.StatusBadRequest, "bad_request", "Invalid callback payload")
		}

		taskID := payload.Data.TaskID
		log.Printf("watermark callback task_id=%s code=%d status=%s", taskID, payload.Code, payload.Data.Status)

		uploads := repository.GetGlobalFactory().GetUploadRepository()

		if !payload.Succeeded() {
			if taskID != "" {
				if err := uploads.MarkUploadFailed(taskID); err != nil {
					log.Printf("watermark callback: mark failed task_id=%s: %v", taskID, err)
				}
			}
			return jsonError(c, fiber.StatusBadRequest, "bad_request", "Task failed")
		}
		if payload.Data.OutputURL == "" {
			return jsonError(c, fiber.StatusBadRequest, "bad_request", "Missing output URL")
		}

		if err := rehostCleanedVideo(c, store, taskID, payload.Data.OutputURL); err != nil {
			log.Printf("watermark callback: rehost task_id=%s: %v", taskID, err)
			return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "Failed to store result")
		}
		return c.SendString("OK")
	}
}

func rehostCleanedVideo(c *fiber.Ctx, store *storage.Client, taskID, outputURL string) error {
	req, err := http.NewRequestWithContext(c.UserContext(), http.MethodGet, outputURL, nil)
	if err != nil {
		return err
	}
	resp, err := callbackDownloadClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("download returned status %d", resp.StatusCode)
	}

	key := store.Config().CleanedObjectKey(taskID)
	if err := store.PutVideo(c.UserContext(), key, resp.Body, resp.ContentLength); err != nil {
		return err
	}

	uploads := repository.GetGlobalFactory().GetUploadRepository()
	return uploads.SettleCleaned(taskID, key, store.PublicURL(key))
}
