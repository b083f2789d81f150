package models

import "time"

const (
	ProductTypeOneTime      = "one_time"
	ProductTypeSubscription = "subscription"
)

// Product is a purchasable catalog entry. Catalog management writes these
// rows; the payment engine only reads them.
type Product struct {
	ID             uint      `gorm:"primaryKey" json:"id"`
	Slug           string    `gorm:"type:varchar(100);uniqueIndex;not null" json:"slug"`
	Name           string    `gorm:"type:varchar(200);not null" json:"name"`
	Description    string    `gorm:"type:text" json:"description,omitempty"`
	Price          string    `gorm:"type:decimal(10,2);not null" json:"price"`
	Currency       string    `gorm:"type:varchar(8);not null;default:'RUB'" json:"currency"`
	ProductType    string    `gorm:"type:varchar(20);not null;index" json:"product_type"`
	CreditsGranted *int      `gorm:"default:null" json:"credits_granted,omitempty"`
	MonthlyCredits *int      `gorm:"default:null" json:"monthly_credits,omitempty"`
	LavaOfferID    string    `gorm:"type:varchar(191);index" json:"lava_offer_id,omitempty"`
	IsActive       bool      `gorm:"default:true;index" json:"is_active"`
	CreatedAt      time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}
