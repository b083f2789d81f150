package payment

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/clearmarkhq/clearmark/app/models"
	"gorm.io/gorm"
)

// The billing cadence is a fixed 30 days, deliberately not calendar-month
// aware, so quota scheduling never depends on provider-sent period dates.
const (
	subscriptionPeriod = 30 * 24 * time.Hour
	quotaResetInterval = 30 * 24 * time.Hour
)

// RefreshMonthlyQuota lazily resets the user's monthly quota when an
// effective subscription exists and the scheduled reset is due. The reset is
// a set, not an increment: running it twice in one window never exceeds the
// product's monthly allotment.
func (e *Engine) RefreshMonthlyQuota(ctx context.Context, userID uint) error {
	_ = ctx

	_, monthlyCredits, err := e.repo.EffectiveSubscription(userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		return err
	}

	user, err := e.repo.GetUserByID(userID)
	if err != nil {
		return err
	}

	now := e.now()
	needReset := user.QuotaResetAt == nil || !user.QuotaResetAt.After(now)
	if !needReset {
		return nil
	}
	return e.repo.SetMonthlyQuota(userID, monthlyCredits, now.Add(quotaResetInterval))
}

// CanConsume reports which credit kind would pay for a feature use right
// now: monthly quota first, then one-time credits, then the one-shot free
// allowance. Empty string means the user has nothing left.
func (e *Engine) CanConsume(ctx context.Context, userID uint) (string, error) {
	if err := e.RefreshMonthlyQuota(ctx, userID); err != nil {
		log.Printf("payment: quota refresh for user %d failed: %v", userID, err)
	}

	user, err := e.repo.GetUserByID(userID)
	if err != nil {
		return "", err
	}

	switch {
	case user.MonthlyQuota > 0:
		return models.CreditKindMonthly, nil
	case user.Credits > 0:
		return models.CreditKindOneTime, nil
	case !user.FreeGenerationUsed:
		return models.CreditKindFree, nil
	default:
		return "", nil
	}
}

// Consume charges one feature use against the given credit kind. Counters
// floor at zero; the free kind flips the one-shot flag instead.
func (e *Engine) Consume(ctx context.Context, userID uint, kind string) error {
	_ = ctx

	switch kind {
	case models.CreditKindMonthly:
		return e.repo.ConsumeMonthlyQuota(userID)
	case models.CreditKindFree:
		return e.repo.MarkFreeGenerationUsed(userID)
	default:
		return e.repo.ConsumeOneTimeCredit(userID)
	}
}

// GrantOneTimeCredits adds to the user's one-time balance; used by the
// reconciliation path and by support tooling.
func (e *Engine) GrantOneTimeCredits(ctx context.Context, userID uint, credits int) error {
	_ = ctx
	return e.repo.GrantOneTimeCredits(userID, credits)
}
