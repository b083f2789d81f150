package repository

import (
	"github.com/clearmarkhq/clearmark/app/models"
	"gorm.io/gorm"
)

// productRepository implements the ProductRepository interface
type productRepository struct {
	db *gorm.DB
}

// NewProductRepository creates a new product repository instance
func NewProductRepository(db *gorm.DB) ProductRepository {
	return &productRepository{db: db}
}

// Create creates a new catalog product
func (r *productRepository) Create(product *models.Product) error {
	return r.db.Create(product).Error
}

// GetByID retrieves a product by its ID
func (r *productRepository) GetByID(id uint) (*models.Product, error) {
	var product models.Product
	err := r.db.First(&product, id).Error
	if err != nil {
		return nil, err
	}
	return &product, nil
}

// GetBySlug retrieves an active product by its slug
func (r *productRepository) GetBySlug(slug string) (*models.Product, error) {
	var product models.Product
	err := r.db.Where("slug = ? AND is_active = ?", slug, true).First(&product).Error
	if err != nil {
		return nil, err
	}
	return &product, nil
}

// ListActive retrieves all purchasable products, one-time packs first
func (r *productRepository) ListActive() ([]models.Product, error) {
	var products []models.Product
	err := r.db.Where("is_active = ?", true).
		Order("product_type ASC, price ASC").
		Find(&products).Error
	if err != nil {
		return nil, err
	}
	return products, nil
}

// Update saves changes to an existing product
func (r *productRepository) Update(product *models.Product) error {
	return r.db.Save(product).Error
}
