package models

import "time"

const (
	TransactionStatusPending   = "pending"
	TransactionStatusSucceeded = "succeeded"
	TransactionStatusFailed    = "failed"
	TransactionStatusRefunded  = "refunded"
)

const TransactionTypePayment = "payment"

// Transaction is one purchase attempt/settlement. (provider,
// provider_order_id) is globally unique and acts as the idempotency key for
// a single payment event; the payload column accumulates every provider
// delivery for audit.
type Transaction struct {
	ID                    uint       `gorm:"primaryKey" json:"id"`
	UserID                uint       `gorm:"not null;index" json:"user_id"`
	ProductID             *uint      `gorm:"index" json:"product_id,omitempty"`
	SubscriptionID        *uint      `gorm:"index" json:"subscription_id,omitempty"`
	Provider              string     `gorm:"type:varchar(20);not null;index:ux_transactions_provider_order,unique,priority:1" json:"provider"`
	ProviderOrderID       string     `gorm:"type:varchar(191);not null;index:ux_transactions_provider_order,unique,priority:2" json:"provider_order_id"`
	ProviderParentOrderID *string    `gorm:"type:varchar(191);index" json:"provider_parent_order_id,omitempty"`
	Amount                string     `gorm:"type:decimal(10,2);not null" json:"amount"`
	Currency              string     `gorm:"type:varchar(8);not null" json:"currency"`
	Status                string     `gorm:"type:varchar(20);not null;default:'pending';index" json:"status"`
	Type                  string     `gorm:"type:varchar(20);not null;default:'payment'" json:"type"`
	Payload               string     `gorm:"type:json" json:"payload,omitempty"`
	PaidAt                *time.Time `gorm:"type:timestamp;default:null" json:"paid_at,omitempty"`
	CreatedAt             time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt             time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

// IsTerminal reports whether the transaction reached a final state. Terminal
// rows are never mutated again for the same provider order id.
func (t *Transaction) IsTerminal() bool {
	return t.Status == TransactionStatusSucceeded || t.Status == TransactionStatusFailed
}
