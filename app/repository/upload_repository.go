package repository

import (
	"github.com/clearmarkhq/clearmark/app/models"
	"gorm.io/gorm"
)

// uploadRepository implements the UploadRepository interface
type uploadRepository struct {
	db *gorm.DB
}

// NewUploadRepository creates a new upload repository instance
func NewUploadRepository(db *gorm.DB) UploadRepository {
	return &uploadRepository{db: db}
}

// Create creates a new upload row
func (r *uploadRepository) Create(upload *models.Upload) error {
	return r.db.Create(upload).Error
}

// GetByID retrieves an upload by its ID
func (r *uploadRepository) GetByID(id uint) (*models.Upload, error) {
	var upload models.Upload
	err := r.db.First(&upload, id).Error
	if err != nil {
		return nil, err
	}
	return &upload, nil
}

// GetByTaskID retrieves an upload by its provider task id
func (r *uploadRepository) GetByTaskID(taskID string) (*models.Upload, error) {
	var upload models.Upload
	err := r.db.Where("task_id = ?", taskID).First(&upload).Error
	if err != nil {
		return nil, err
	}
	return &upload, nil
}

// ListByUser retrieves a user's uploads, newest first
func (r *uploadRepository) ListByUser(userID uint, offset, limit int) ([]models.Upload, error) {
	var uploads []models.Upload
	err := r.db.Where("user_id = ?", userID).
		Order("created_at DESC").
		Offset(offset).Limit(limit).
		Find(&uploads).Error
	if err != nil {
		return nil, err
	}
	return uploads, nil
}

// SetTaskID records the provider task id after job submission
func (r *uploadRepository) SetTaskID(id uint, taskID string) error {
	return r.db.Model(&models.Upload{}).Where("id = ?", id).Update("task_id", taskID).Error
}

// SettleCleaned stores the re-hosted cleaned object and marks the row ready.
// Used by the job callback after the result is copied into our bucket.
func (r *uploadRepository) SettleCleaned(taskID, cleanedKey, cleanedURL string) error {
	return r.db.Model(&models.Upload{}).
		Where("task_id = ?", taskID).
		Updates(map[string]interface{}{
			"cleaned_s3_key": cleanedKey,
			"cleaned_url":    cleanedURL,
			"status":         models.UploadStatusReady,
		}).Error
}

// MarkUploadReady records the provider-hosted result URL. Used by the
// status poller when the callback was lost; already-ready rows are left
// untouched.
func (r *uploadRepository) MarkUploadReady(taskID, cleanedURL string) error {
	return r.db.Model(&models.Upload{}).
		Where("task_id = ? AND status <> ?", taskID, models.UploadStatusReady).
		Updates(map[string]interface{}{
			"cleaned_url": cleanedURL,
			"status":      models.UploadStatusReady,
		}).Error
}

// MarkUploadFailed settles a row whose job failed
func (r *uploadRepository) MarkUploadFailed(taskID string) error {
	return r.db.Model(&models.Upload{}).
		Where("task_id = ? AND status <> ?", taskID, models.UploadStatusFailed).
		Update("status", models.UploadStatusFailed).Error
}

// PendingTaskIDs lists task ids of uploads still processing, oldest first
func (r *uploadRepository) PendingTaskIDs(limit int) ([]string, error) {
	var taskIDs []string
	err := r.db.Model(&models.Upload{}).
		Where("status = ? AND task_id <> ''", models.UploadStatusProcessing).
		Order("created_at ASC").
		Limit(limit).
		Pluck("task_id", &taskIDs).Error
	if err != nil {
		return nil, err
	}
	return taskIDs, nil
}
