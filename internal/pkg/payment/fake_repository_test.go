package payment

import (
	"errors"
	"time"

	"github.com/clearmarkhq/clearmark/app/models"
	"gorm.io/gorm"
)

// fakeRepository is an in-memory Repository used by the engine tests. It
// mirrors the documented semantics of the GORM implementation: unique
// (provider, order id) rows, conditional pending->terminal transitions and
// the un-canceling subscription upsert.
type fakeRepository struct {
	users    map[uint]*models.User
	products map[uint]*models.Product
	txs      []*models.Transaction
	subs     []*models.Subscription

	nextTxID  uint
	nextSubID uint

	// failOn makes the named operation return errBoom, for storage-error
	// propagation tests.
	failOn string
}

var errBoom = errors.New("boom")

func newFakeRepository() *fakeRepository {
	return &fakeRepository{
		users:    map[uint]*models.User{},
		products: map[uint]*models.Product{},
	}
}

func (f *fakeRepository) addUser(u *models.User) *models.User {
	f.users[u.ID] = u
	return u
}

func (f *fakeRepository) addProduct(p *models.Product) *models.Product {
	f.products[p.ID] = p
	return p
}

func (f *fakeRepository) addTransaction(tx *models.Transaction) *models.Transaction {
	f.nextTxID++
	tx.ID = f.nextTxID
	tx.CreatedAt = time.Now()
	f.txs = append(f.txs, tx)
	return tx
}

func (f *fakeRepository) fails(op string) bool { return f.failOn == op }

func (f *fakeRepository) FindTransactionByOrderID(provider, orderID string) (*models.Transaction, error) {
	if f.fails("FindTransactionByOrderID") {
		return nil, errBoom
	}
	for _, tx := range f.txs {
		if tx.Provider == provider && tx.ProviderOrderID == orderID {
			return tx, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeRepository) FindTransactionByParentOrderID(provider, parentOrderID string) (*models.Transaction, error) {
	for _, tx := range f.txs {
		if tx.Provider != provider {
			continue
		}
		if tx.ProviderOrderID == parentOrderID {
			return tx, nil
		}
		if tx.ProviderParentOrderID != nil && *tx.ProviderParentOrderID == parentOrderID {
			return tx, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeRepository) CreateTransactionIfNotExists(tx *models.Transaction) (bool, *models.Transaction, error) {
	if f.fails("CreateTransactionIfNotExists") {
		return false, nil, errBoom
	}
	for _, existing := range f.txs {
		if existing.Provider == tx.Provider && existing.ProviderOrderID == tx.ProviderOrderID {
			return false, existing, nil
		}
	}
	return true, f.addTransaction(tx), nil
}

func (f *fakeRepository) CreateTransaction(tx *models.Transaction) error {
	if f.fails("CreateTransaction") {
		return errBoom
	}
	f.addTransaction(tx)
	return nil
}

func (f *fakeRepository) MarkTransactionFailed(id uint, parentOrderID string, rawPayload string) error {
	if f.fails("MarkTransactionFailed") {
		return errBoom
	}
	for _, tx := range f.txs {
		if tx.ID == id && tx.Status == models.TransactionStatusPending {
			tx.Status = models.TransactionStatusFailed
			if tx.ProviderParentOrderID == nil && parentOrderID != "" {
				p := parentOrderID
				tx.ProviderParentOrderID = &p
			}
			tx.Payload = rawPayload
		}
	}
	return nil
}

func (f *fakeRepository) MarkTransactionSucceeded(id uint, parentOrderID string, rawPayload string, paidAt time.Time) (bool, error) {
	if f.fails("MarkTransactionSucceeded") {
		return false, errBoom
	}
	for _, tx := range f.txs {
		if tx.ID != id {
			continue
		}
		if tx.Status != models.TransactionStatusPending {
			return false, nil
		}
		tx.Status = models.TransactionStatusSucceeded
		tx.PaidAt = &paidAt
		if tx.ProviderParentOrderID == nil && parentOrderID != "" {
			p := parentOrderID
			tx.ProviderParentOrderID = &p
		}
		tx.Payload = rawPayload
		return true, nil
	}
	return false, gorm.ErrRecordNotFound
}

func (f *fakeRepository) LinkTransactionSubscription(id, subscriptionID uint) error {
	for _, tx := range f.txs {
		if tx.ID == id {
			s := subscriptionID
			tx.SubscriptionID = &s
		}
	}
	return nil
}

func (f *fakeRepository) GetUserByID(id uint) (*models.User, error) {
	if f.fails("GetUserByID") {
		return nil, errBoom
	}
	if u, ok := f.users[id]; ok {
		return u, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeRepository) GetUserByEmail(email string) (*models.User, error) {
	if f.fails("GetUserByEmail") {
		return nil, errBoom
	}
	for _, u := range f.users {
		if u.Email == email {
			return u, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeRepository) GetProductByID(id uint) (*models.Product, error) {
	if p, ok := f.products[id]; ok {
		return p, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeRepository) GetProductBySlug(slug string) (*models.Product, error) {
	for _, p := range f.products {
		if p.Slug == slug && p.IsActive {
			return p, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeRepository) GetProductByOfferID(offerID string) (*models.Product, error) {
	for _, p := range f.products {
		if p.LavaOfferID == offerID {
			return p, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeRepository) UpsertSubscriptionActive(userID, productID uint, provider, providerSubscriptionID string, periodStart, periodEnd time.Time) (uint, error) {
	if f.fails("UpsertSubscriptionActive") {
		return 0, errBoom
	}
	for _, sub := range f.subs {
		if sub.Provider == provider && sub.ProviderSubscriptionID == providerSubscriptionID {
			sub.ProductID = productID
			sub.Status = models.SubscriptionStatusActive
			sub.CurrentPeriodStart = &periodStart
			sub.CurrentPeriodEnd = &periodEnd
			sub.CanceledAt = nil
			return sub.ID, nil
		}
	}
	f.nextSubID++
	sub := &models.Subscription{
		ID:                     f.nextSubID,
		UserID:                 userID,
		ProductID:              productID,
		Provider:               provider,
		ProviderSubscriptionID: providerSubscriptionID,
		Status:                 models.SubscriptionStatusActive,
		CurrentPeriodStart:     &periodStart,
		CurrentPeriodEnd:       &periodEnd,
		CreatedAt:              time.Now(),
	}
	f.subs = append(f.subs, sub)
	return sub.ID, nil
}

func (f *fakeRepository) CancelSubscriptionByProviderID(provider, providerSubscriptionID string, canceledAt time.Time) error {
	if f.fails("CancelSubscriptionByProviderID") {
		return errBoom
	}
	for _, sub := range f.subs {
		if sub.Provider == provider && sub.ProviderSubscriptionID == providerSubscriptionID {
			sub.Status = models.SubscriptionStatusCanceled
			t := canceledAt
			sub.CanceledAt = &t
		}
	}
	return nil
}

func (f *fakeRepository) CancelUserSubscription(userID, subscriptionID uint, canceledAt time.Time) error {
	for _, sub := range f.subs {
		if sub.ID == subscriptionID && sub.UserID == userID {
			sub.Status = models.SubscriptionStatusCanceled
			t := canceledAt
			sub.CanceledAt = &t
		}
	}
	return nil
}

func (f *fakeRepository) ListSubscriptionsByUser(userID uint) ([]models.Subscription, error) {
	var out []models.Subscription
	for _, sub := range f.subs {
		if sub.UserID == userID {
			out = append(out, *sub)
		}
	}
	return out, nil
}

func (f *fakeRepository) EffectiveSubscription(userID uint) (*models.Subscription, int, error) {
	if f.fails("EffectiveSubscription") {
		return nil, 0, errBoom
	}
	var best *models.Subscription
	now := time.Now()
	for _, sub := range f.subs {
		if sub.UserID != userID {
			continue
		}
		if sub.Status != models.SubscriptionStatusActive && sub.Status != models.SubscriptionStatusCanceled {
			continue
		}
		if sub.CurrentPeriodEnd != nil && !sub.CurrentPeriodEnd.After(now) {
			continue
		}
		if best == nil || sub.CreatedAt.After(best.CreatedAt) {
			best = sub
		}
	}
	if best == nil {
		return nil, 0, gorm.ErrRecordNotFound
	}
	monthlyCredits := 0
	if p, ok := f.products[best.ProductID]; ok && p.MonthlyCredits != nil {
		monthlyCredits = *p.MonthlyCredits
	}
	return best, monthlyCredits, nil
}

func (f *fakeRepository) GrantOneTimeCredits(userID uint, credits int) error {
	if f.fails("GrantOneTimeCredits") {
		return errBoom
	}
	if u, ok := f.users[userID]; ok {
		u.Credits += credits
	}
	return nil
}

func (f *fakeRepository) SetMonthlyQuota(userID uint, monthlyCredits int, resetAt time.Time) error {
	if f.fails("SetMonthlyQuota") {
		return errBoom
	}
	if u, ok := f.users[userID]; ok {
		u.MonthlyQuota = monthlyCredits
		t := resetAt
		u.QuotaResetAt = &t
	}
	return nil
}

func (f *fakeRepository) ConsumeMonthlyQuota(userID uint) error {
	if u, ok := f.users[userID]; ok {
		if u.MonthlyQuota > 0 {
			u.MonthlyQuota--
		}
	}
	return nil
}

func (f *fakeRepository) ConsumeOneTimeCredit(userID uint) error {
	if u, ok := f.users[userID]; ok {
		if u.Credits > 0 {
			u.Credits--
		}
	}
	return nil
}

func (f *fakeRepository) MarkFreeGenerationUsed(userID uint) error {
	if u, ok := f.users[userID]; ok {
		u.FreeGenerationUsed = true
	}
	return nil
}

func (f *fakeRepository) InTransaction(fn func(Repository) error) error {
	return fn(f)
}
