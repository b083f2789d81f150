package repository

import (
	"github.com/clearmarkhq/clearmark/app/models"
	"gorm.io/gorm"
)

// UserRepository defines the interface for user-related database operations
type UserRepository interface {
	Create(user *models.User) error
	GetByID(id uint) (*models.User, error)
	GetByEmail(email string) (*models.User, error)
	GetByActivationToken(token string) (*models.User, error)
	Update(user *models.User) error
	UpdateLastLogin(id uint) error
}

// ProductRepository defines the interface for catalog database operations
type ProductRepository interface {
	Create(product *models.Product) error
	GetByID(id uint) (*models.Product, error)
	GetBySlug(slug string) (*models.Product, error)
	ListActive() ([]models.Product, error)
	Update(product *models.Product) error
}

// UploadRepository defines the interface for upload-related database
// operations. It also backs the video job status poller.
type UploadRepository interface {
	Create(upload *models.Upload) error
	GetByID(id uint) (*models.Upload, error)
	GetByTaskID(taskID string) (*models.Upload, error)
	ListByUser(userID uint, offset, limit int) ([]models.Upload, error)
	SetTaskID(id uint, taskID string) error
	SettleCleaned(taskID, cleanedKey, cleanedURL string) error
	MarkUploadReady(taskID, cleanedURL string) error
	MarkUploadFailed(taskID string) error
	PendingTaskIDs(limit int) ([]string, error)
}

// Repositories struct holds all repository instances
type Repositories struct {
	User    UserRepository
	Product ProductRepository
	Upload  UploadRepository
}

// NewRepositories creates a new instance of all repositories
func NewRepositories(db *gorm.DB) *Repositories {
	return &Repositories{
		User:    NewUserRepository(db),
		Product: NewProductRepository(db),
		Upload:  NewUploadRepository(db),
	}
}
