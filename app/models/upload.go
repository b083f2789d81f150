package models

import "time"

const (
	UploadStatusProcessing = "processing"
	UploadStatusReady      = "ready"
	UploadStatusFailed     = "failed"
)

const (
	CreditKindMonthly = "monthly"
	CreditKindOneTime = "one_time"
	CreditKindFree    = "free"
)

// Upload is one video submitted for watermark removal. The AI job API
// updates status/cleaned fields through its callback; billing only records
// which credit kind paid for the run.
type Upload struct {
	ID               uint      `gorm:"primaryKey" json:"id"`
	UserID           uint      `gorm:"not null;index" json:"user_id"`
	OriginalFilename string    `gorm:"type:varchar(255);not null" json:"original_filename"`
	OriginalS3Key    string    `gorm:"type:varchar(255);not null" json:"-"`
	CleanedS3Key     string    `gorm:"type:varchar(255)" json:"-"`
	CleanedURL       string    `gorm:"type:varchar(512)" json:"cleaned_url,omitempty"`
	TaskID           string    `gorm:"type:varchar(191);index" json:"task_id,omitempty"`
	Status           string    `gorm:"type:varchar(20);not null;default:'processing';index" json:"status"`
	UsedCreditType   string    `gorm:"type:varchar(20);not null" json:"used_credit_type"`
	CreatedAt        time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt        time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}
