package payment

import (
	"context"
	"errors"
	"time"

	"github.com/clearmarkhq/clearmark/app/models"
	"gorm.io/gorm"
)

// EffectiveSubscription returns the subscription currently granting quota,
// together with the product's monthly credit allotment. Entitlement is
// governed by the period window, not the status: canceled subscriptions keep
// counting until current_period_end elapses.
func (e *Engine) EffectiveSubscription(ctx context.Context, userID uint) (*models.Subscription, int, error) {
	_ = ctx
	sub, monthlyCredits, err := e.repo.EffectiveSubscription(userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, 0, nil
		}
		return nil, 0, err
	}
	return sub, monthlyCredits, nil
}

// ListSubscriptions returns the user's subscriptions, newest first.
func (e *Engine) ListSubscriptions(ctx context.Context, userID uint) ([]models.Subscription, error) {
	_ = ctx
	return e.repo.ListSubscriptionsByUser(userID)
}

// CancelSubscription is the user-initiated cancellation: a future-dated
// revocation that marks the row canceled but leaves the paid period intact.
func (e *Engine) CancelSubscription(ctx context.Context, userID, subscriptionID uint) error {
	_ = ctx
	return e.repo.CancelUserSubscription(userID, subscriptionID, time.Now())
}
