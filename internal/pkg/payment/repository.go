package payment

import (
	"time"

	"github.com/clearmarkhq/clearmark/app/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Repository provides the DB operations the payment engine relies on. The
// relational store is the sole synchronization point: conditional updates
// and unique constraints here are what make reconciliation idempotent under
// concurrent duplicate deliveries.
type Repository interface {
	FindTransactionByOrderID(provider, orderID string) (*models.Transaction, error)
	FindTransactionByParentOrderID(provider, parentOrderID string) (*models.Transaction, error)
	CreateTransactionIfNotExists(tx *models.Transaction) (bool, *models.Transaction, error)
	CreateTransaction(tx *models.Transaction) error
	MarkTransactionFailed(id uint, parentOrderID string, rawPayload string) error
	MarkTransactionSucceeded(id uint, parentOrderID string, rawPayload string, paidAt time.Time) (bool, error)
	LinkTransactionSubscription(id, subscriptionID uint) error

	GetUserByID(id uint) (*models.User, error)
	GetUserByEmail(email string) (*models.User, error)
	GetProductByID(id uint) (*models.Product, error)
	GetProductBySlug(slug string) (*models.Product, error)
	GetProductByOfferID(offerID string) (*models.Product, error)

	UpsertSubscriptionActive(userID, productID uint, provider, providerSubscriptionID string, periodStart, periodEnd time.Time) (uint, error)
	CancelSubscriptionByProviderID(provider, providerSubscriptionID string, canceledAt time.Time) error
	CancelUserSubscription(userID, subscriptionID uint, canceledAt time.Time) error
	ListSubscriptionsByUser(userID uint) ([]models.Subscription, error)
	EffectiveSubscription(userID uint) (*models.Subscription, int, error)

	GrantOneTimeCredits(userID uint, credits int) error
	SetMonthlyQuota(userID uint, monthlyCredits int, resetAt time.Time) error
	ConsumeMonthlyQuota(userID uint) error
	ConsumeOneTimeCredit(userID uint) error
	MarkFreeGenerationUsed(userID uint) error

	// InTransaction runs fn against a repository bound to a single DB
	// transaction; the success status flip and its ledger effects commit as
	// one unit or not at all.
	InTransaction(fn func(Repository) error) error
}

type gormRepository struct {
	db *gorm.DB
}

// NewRepository creates a payment repository backed by GORM.
func NewRepository(db *gorm.DB) Repository {
	return &gormRepository{db: db}
}

func (r *gormRepository) FindTransactionByOrderID(provider, orderID string) (*models.Transaction, error) {
	var tx models.Transaction
	err := r.db.Where("provider = ? AND provider_order_id = ?", provider, orderID).First(&tx).Error
	if err != nil {
		return nil, err
	}
	return &tx, nil
}

func (r *gormRepository) FindTransactionByParentOrderID(provider, parentOrderID string) (*models.Transaction, error) {
	var tx models.Transaction
	err := r.db.
		Where("provider = ? AND (provider_order_id = ? OR provider_parent_order_id = ?)",
			provider, parentOrderID, parentOrderID).
		First(&tx).Error
	if err != nil {
		return nil, err
	}
	return &tx, nil
}

func (r *gormRepository) CreateTransactionIfNotExists(tx *models.Transaction) (bool, *models.Transaction, error) {
	res := r.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "provider"},
			{Name: "provider_order_id"},
		},
		DoNothing: true,
	}).Create(tx)
	if res.Error != nil {
		return false, nil, res.Error
	}

	created := res.RowsAffected > 0
	var stored models.Transaction
	if err := r.db.Where("provider = ? AND provider_order_id = ?", tx.Provider, tx.ProviderOrderID).
		First(&stored).Error; err != nil {
		return false, nil, err
	}
	return created, &stored, nil
}

func (r *gormRepository) CreateTransaction(tx *models.Transaction) error {
	return r.db.Create(tx).Error
}

func (r *gormRepository) MarkTransactionFailed(id uint, parentOrderID string, rawPayload string) error {
	return r.db.Model(&models.Transaction{}).
		Where("id = ? AND status = ?", id, models.TransactionStatusPending).
		Updates(map[string]interface{}{
			"status":                   models.TransactionStatusFailed,
			"provider_parent_order_id": parentExpr(parentOrderID),
			"payload":                  mergePayloadExpr(rawPayload),
		}).Error
}

// MarkTransactionSucceeded flips pending -> succeeded. The conditional WHERE
// is the serialization point for duplicate deliveries: only the first caller
// observes RowsAffected > 0 and goes on to apply ledger effects.
func (r *gormRepository) MarkTransactionSucceeded(id uint, parentOrderID string, rawPayload string, paidAt time.Time) (bool, error) {
	res := r.db.Model(&models.Transaction{}).
		Where("id = ? AND status = ?", id, models.TransactionStatusPending).
		Updates(map[string]interface{}{
			"status":                   models.TransactionStatusSucceeded,
			"paid_at":                  paidAt,
			"provider_parent_order_id": parentExpr(parentOrderID),
			"payload":                  mergePayloadExpr(rawPayload),
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func parentExpr(parentOrderID string) interface{} {
	if parentOrderID == "" {
		return gorm.Expr("provider_parent_order_id")
	}
	return gorm.Expr("COALESCE(provider_parent_order_id, ?)", parentOrderID)
}

// mergePayloadExpr appends the raw delivery into the JSON audit column
// instead of overwriting it, preserving forensic history across duplicates.
func mergePayloadExpr(rawPayload string) interface{} {
	if rawPayload == "" {
		return gorm.Expr("payload")
	}
	return gorm.Expr("JSON_MERGE_PATCH(COALESCE(payload, '{}'), CAST(? AS JSON))", rawPayload)
}

func (r *gormRepository) LinkTransactionSubscription(id, subscriptionID uint) error {
	return r.db.Model(&models.Transaction{}).
		Where("id = ?", id).
		Update("subscription_id", subscriptionID).Error
}

func (r *gormRepository) GetUserByID(id uint) (*models.User, error) {
	var user models.User
	if err := r.db.First(&user, id).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *gormRepository) GetUserByEmail(email string) (*models.User, error) {
	var user models.User
	if err := r.db.Where("email = ?", email).First(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *gormRepository) GetProductByID(id uint) (*models.Product, error) {
	var product models.Product
	if err := r.db.First(&product, id).Error; err != nil {
		return nil, err
	}
	return &product, nil
}

func (r *gormRepository) GetProductBySlug(slug string) (*models.Product, error) {
	var product models.Product
	if err := r.db.Where("slug = ? AND is_active = ?", slug, true).First(&product).Error; err != nil {
		return nil, err
	}
	return &product, nil
}

func (r *gormRepository) GetProductByOfferID(offerID string) (*models.Product, error) {
	var product models.Product
	if err := r.db.Where("lava_offer_id = ?", offerID).First(&product).Error; err != nil {
		return nil, err
	}
	return &product, nil
}

func (r *gormRepository) UpsertSubscriptionActive(userID, productID uint, provider, providerSubscriptionID string, periodStart, periodEnd time.Time) (uint, error) {
	sub := &models.Subscription{
		UserID:                 userID,
		ProductID:              productID,
		Provider:               provider,
		ProviderSubscriptionID: providerSubscriptionID,
		Status:                 models.SubscriptionStatusActive,
		CurrentPeriodStart:     &periodStart,
		CurrentPeriodEnd:       &periodEnd,
	}
	// A renewal always un-cancels: status is forced back to active and a
	// prior cancellation timestamp is cleared.
	if err := r.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "provider"},
			{Name: "provider_subscription_id"},
		},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"product_id":           productID,
			"status":               models.SubscriptionStatusActive,
			"current_period_start": periodStart,
			"current_period_end":   periodEnd,
			"canceled_at":          nil,
			"updated_at":           time.Now(),
		}),
	}).Create(sub).Error; err != nil {
		return 0, err
	}

	// Ensure ID is populated after upsert.
	var stored models.Subscription
	if err := r.db.Where("provider = ? AND provider_subscription_id = ?", provider, providerSubscriptionID).
		First(&stored).Error; err != nil {
		return 0, err
	}
	return stored.ID, nil
}

func (r *gormRepository) CancelSubscriptionByProviderID(provider, providerSubscriptionID string, canceledAt time.Time) error {
	return r.db.Model(&models.Subscription{}).
		Where("provider = ? AND provider_subscription_id = ?", provider, providerSubscriptionID).
		Updates(map[string]interface{}{
			"status":      models.SubscriptionStatusCanceled,
			"canceled_at": canceledAt,
		}).Error
}

func (r *gormRepository) CancelUserSubscription(userID, subscriptionID uint, canceledAt time.Time) error {
	return r.db.Model(&models.Subscription{}).
		Where("id = ? AND user_id = ?", subscriptionID, userID).
		Updates(map[string]interface{}{
			"status":      models.SubscriptionStatusCanceled,
			"canceled_at": canceledAt,
		}).Error
}

func (r *gormRepository) ListSubscriptionsByUser(userID uint) ([]models.Subscription, error) {
	var subs []models.Subscription
	err := r.db.Where("user_id = ?", userID).Order("created_at DESC").Find(&subs).Error
	return subs, err
}

// EffectiveSubscription returns the subscription granting quota right now.
// A canceled subscription still counts until its paid period elapses.
func (r *gormRepository) EffectiveSubscription(userID uint) (*models.Subscription, int, error) {
	var sub models.Subscription
	err := r.db.
		Where("user_id = ? AND status IN ? AND (current_period_end IS NULL OR current_period_end > ?)",
			userID,
			[]string{models.SubscriptionStatusActive, models.SubscriptionStatusCanceled},
			time.Now()).
		Order("created_at DESC").
		First(&sub).Error
	if err != nil {
		return nil, 0, err
	}

	var product models.Product
	if err := r.db.First(&product, sub.ProductID).Error; err != nil {
		return nil, 0, err
	}
	monthlyCredits := 0
	if product.MonthlyCredits != nil {
		monthlyCredits = *product.MonthlyCredits
	}
	return &sub, monthlyCredits, nil
}

func (r *gormRepository) GrantOneTimeCredits(userID uint, credits int) error {
	return r.db.Model(&models.User{}).
		Where("id = ?", userID).
		Update("credits", gorm.Expr("credits + ?", credits)).Error
}

func (r *gormRepository) SetMonthlyQuota(userID uint, monthlyCredits int, resetAt time.Time) error {
	return r.db.Model(&models.User{}).
		Where("id = ?", userID).
		Updates(map[string]interface{}{
			"monthly_quota":  monthlyCredits,
			"quota_reset_at": resetAt,
		}).Error
}

func (r *gormRepository) ConsumeMonthlyQuota(userID uint) error {
	return r.db.Model(&models.User{}).
		Where("id = ?", userID).
		Update("monthly_quota", gorm.Expr("GREATEST(monthly_quota - 1, 0)")).Error
}

func (r *gormRepository) ConsumeOneTimeCredit(userID uint) error {
	return r.db.Model(&models.User{}).
		Where("id = ?", userID).
		Update("credits", gorm.Expr("GREATEST(credits - 1, 0)")).Error
}

func (r *gormRepository) MarkFreeGenerationUsed(userID uint) error {
	return r.db.Model(&models.User{}).
		Where("id = ?", userID).
		Update("free_generation_used", true).Error
}

func (r *gormRepository) InTransaction(fn func(Repository) error) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		return fn(&gormRepository{db: tx})
	})
}
