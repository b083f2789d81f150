package payment

import (
	"context"
	"crypto/subtle"
	"errors"
	"log"
	"strconv"
	"time"

	"github.com/clearmarkhq/clearmark/app/models"
	"gorm.io/gorm"
)

// Config carries everything the engine needs at construction time; the
// package reads no process environment.
type Config struct {
	// Provider is the payment provider tag stored on ledger rows.
	Provider string
	// WebhookSecret is the shared secret the provider sends back with every
	// webhook call.
	WebhookSecret string
}

// Engine reconciles asynchronous payment-provider events against the
// transaction ledger and applies credit/subscription effects exactly once
// per provider order id.
type Engine struct {
	cfg  Config
	repo Repository
	now  func() time.Time
}

// NewEngine creates a reconciliation engine from an injected repository.
func NewEngine(cfg Config, repo Repository) *Engine {
	return &Engine{cfg: cfg, repo: repo, now: time.Now}
}

// NewEngineFromDB creates an engine from a GORM DB handle.
func NewEngineFromDB(cfg Config, db *gorm.DB) *Engine {
	return NewEngine(cfg, NewRepository(db))
}

// WebhookRequest is one raw inbound delivery plus the secret candidates the
// transport layer extracted. Header beats query beats an embedded field.
type WebhookRequest struct {
	Body      []byte
	HeaderKey string
	QueryKey  string
}

// ResultStatus maps to the HTTP response class the provider sees.
type ResultStatus int

const (
	StatusOK ResultStatus = iota
	StatusBadRequest
	StatusUnauthorized
	StatusInternalError
)

// Result reports what reconciliation did with a delivery. Ignored and
// Idempotent are observability markers: both still acknowledge the event so
// the provider stops retrying.
type Result struct {
	Status     ResultStatus
	Ignored    bool
	Idempotent bool
	Canceled   bool
	Err        error
}

func resultOK() Result         { return Result{Status: StatusOK} }
func resultIgnored() Result    { return Result{Status: StatusOK, Ignored: true} }
func resultIdempotent() Result { return Result{Status: StatusOK, Idempotent: true} }

func resultInternal(err error) Result {
	return Result{Status: StatusInternalError, Err: err}
}

// Reconcile processes one webhook delivery end to end: authentication gate,
// normalization, classification, ledger matching and the exactly-once
// application of business effects.
func (e *Engine) Reconcile(ctx context.Context, req WebhookRequest) Result {
	_ = ctx

	raw, err := ParseWebhookBody(req.Body)
	if err != nil {
		log.Printf("payment webhook: invalid payload: %v", err)
		return Result{Status: StatusBadRequest, Err: err}
	}

	if !e.authenticate(req, raw) {
		return Result{Status: StatusUnauthorized}
	}

	ev := Normalize(raw)
	outcome := ClassifyOutcome(ev)
	kind := ClassifyKind(ev.EventType)

	log.Printf("payment webhook: event_type=%q order_id=%q parent=%q buyer=%q",
		ev.EventType, ev.OrderID, ev.ParentOrderID, ev.BuyerEmail)

	if outcome == OutcomeCancellation {
		return e.applyCancellation(ev)
	}

	tx, err := e.matchTransaction(ev)
	if err != nil {
		return resultInternal(err)
	}

	if tx == nil {
		if outcome != OutcomeSuccess {
			return resultIgnored()
		}
		var res *Result
		tx, res = e.synthesizeTransaction(ev, kind)
		if res != nil {
			return *res
		}
	}

	// A new child payment under an already-settled parent contract gets its
	// own ledger row; the terminal row is never reused.
	createdFresh := false
	if tx.Status == models.TransactionStatusSucceeded &&
		ev.ParentOrderID != "" && ev.OrderID != "" &&
		tx.ProviderOrderID != ev.OrderID {
		fresh, err := e.createRenewalTransaction(ev, tx)
		if err != nil {
			return resultInternal(err)
		}
		tx = fresh
		createdFresh = true
	}

	if !createdFresh && tx.IsTerminal() {
		return resultIdempotent()
	}

	switch outcome {
	case OutcomeFailure:
		if err := e.repo.MarkTransactionFailed(tx.ID, ev.ParentOrderID, ev.RawJSON()); err != nil {
			return resultInternal(err)
		}
		return resultOK()
	case OutcomeSuccess:
		return e.applySuccess(ev, kind, tx)
	default:
		return resultIgnored()
	}
}

// authenticate compares the shared secret, trying header, query parameter
// and an embedded payload field in that order. Precedes all business logic.
func (e *Engine) authenticate(req WebhookRequest, raw map[string]interface{}) bool {
	provided := req.HeaderKey
	if provided == "" {
		provided = req.QueryKey
	}
	if provided == "" {
		provided = extractString(raw, "apiKey", "api_key", "key")
	}
	if provided == "" || e.cfg.WebhookSecret == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(provided), []byte(e.cfg.WebhookSecret)) == 1
}

// applyCancellation marks the subscription canceled without touching the
// period window; repeated cancellation events are harmless.
func (e *Engine) applyCancellation(ev *Event) Result {
	contractID := ev.ParentOrderID
	if contractID == "" {
		contractID = ev.OrderID
	}
	if contractID != "" {
		if err := e.repo.CancelSubscriptionByProviderID(e.cfg.Provider, contractID, e.now()); err != nil {
			return resultInternal(err)
		}
	}
	return Result{Status: StatusOK, Canceled: true}
}

func (e *Engine) matchTransaction(ev *Event) (*models.Transaction, error) {
	if ev.OrderID != "" {
		tx, err := e.repo.FindTransactionByOrderID(e.cfg.Provider, ev.OrderID)
		if err == nil {
			return tx, nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
	}
	if ev.ParentOrderID != "" {
		tx, err := e.repo.FindTransactionByParentOrderID(e.cfg.Provider, ev.ParentOrderID)
		if err == nil {
			return tx, nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
	}
	return nil, nil
}

// synthesizeTransaction handles the walk-up case: a success event with no
// locally tracked purchase intent. Unknown or unresolvable events are
// acknowledged without effect so the provider never retries them.
func (e *Engine) synthesizeTransaction(ev *Event, kind Kind) (*models.Transaction, *Result) {
	ignored := resultIgnored()
	if ev.OrderID == "" {
		return nil, &ignored
	}

	userID, res := e.resolveUser(ev)
	if res != nil {
		return nil, res
	}

	product, res := e.resolveProduct(ev)
	if res != nil {
		return nil, res
	}

	if !kindMatchesProduct(kind, product.ProductType) {
		log.Printf("payment webhook: mismatch: %s event for %s product id=%d; ignoring",
			kind, product.ProductType, product.ID)
		return nil, &ignored
	}

	amount := ev.Amount
	if amount == "" {
		amount = product.Price
	}
	currency := ev.Currency
	if currency == "" {
		currency = product.Currency
	}

	productID := product.ID
	tx := &models.Transaction{
		UserID:          userID,
		ProductID:       &productID,
		Provider:        e.cfg.Provider,
		ProviderOrderID: ev.OrderID,
		Amount:          amount,
		Currency:        currency,
		Status:          models.TransactionStatusPending,
		Type:            models.TransactionTypePayment,
		Payload:         ev.RawJSON(),
	}
	if ev.ParentOrderID != "" {
		parent := ev.ParentOrderID
		tx.ProviderParentOrderID = &parent
	}

	_, stored, err := e.repo.CreateTransactionIfNotExists(tx)
	if err != nil {
		internal := resultInternal(err)
		return nil, &internal
	}
	return stored, nil
}

func (e *Engine) resolveUser(ev *Event) (uint, *Result) {
	if idStr := customFieldString(ev.CustomFields, "user_id"); idStr != "" {
		if id, err := strconv.ParseUint(idStr, 10, 32); err == nil {
			return uint(id), nil
		}
	}

	ignored := resultIgnored()
	if ev.BuyerEmail == "" {
		return 0, &ignored
	}
	user, err := e.repo.GetUserByEmail(ev.BuyerEmail)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, &ignored
		}
		internal := resultInternal(err)
		return 0, &internal
	}
	return user.ID, nil
}

func (e *Engine) resolveProduct(ev *Event) (*models.Product, *Result) {
	ignored := resultIgnored()

	if ev.ProductOfferID != "" {
		product, err := e.repo.GetProductByOfferID(ev.ProductOfferID)
		if err == nil {
			return product, nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			internal := resultInternal(err)
			return nil, &internal
		}
	}

	if slug := customFieldString(ev.CustomFields, "product_slug"); slug != "" {
		product, err := e.repo.GetProductBySlug(slug)
		if err == nil {
			return product, nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			internal := resultInternal(err)
			return nil, &internal
		}
	}

	return nil, &ignored
}

func (e *Engine) createRenewalTransaction(ev *Event, settled *models.Transaction) (*models.Transaction, error) {
	amount := ev.Amount
	if amount == "" {
		amount = settled.Amount
	}
	currency := ev.Currency
	if currency == "" {
		currency = settled.Currency
	}

	parent := ev.ParentOrderID
	fresh := &models.Transaction{
		UserID:                settled.UserID,
		ProductID:             settled.ProductID,
		Provider:              e.cfg.Provider,
		ProviderOrderID:       ev.OrderID,
		ProviderParentOrderID: &parent,
		Amount:                amount,
		Currency:              currency,
		Status:                models.TransactionStatusPending,
		Type:                  models.TransactionTypePayment,
		Payload:               ev.RawJSON(),
	}
	if err := e.repo.CreateTransaction(fresh); err != nil {
		return nil, err
	}
	return fresh, nil
}

// applySuccess flips the transaction terminal and applies the product's
// business effects inside a single DB transaction. Duplicate concurrent
// deliveries lose the conditional update and no-op.
func (e *Engine) applySuccess(ev *Event, kind Kind, tx *models.Transaction) Result {
	paidAt := e.now()
	var out Result
	err := e.repo.InTransaction(func(repo Repository) error {
		applied, err := repo.MarkTransactionSucceeded(tx.ID, ev.ParentOrderID, ev.RawJSON(), paidAt)
		if err != nil {
			return err
		}
		if !applied {
			out = resultIdempotent()
			return nil
		}

		if tx.ProductID == nil {
			out = resultOK()
			return nil
		}

		product, err := repo.GetProductByID(*tx.ProductID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				out = resultIgnored()
				return nil
			}
			return err
		}

		if !kindMatchesProduct(kind, product.ProductType) {
			log.Printf("payment webhook: mismatch: %s event for %s product id=%d; effects skipped",
				kind, product.ProductType, product.ID)
			out = resultIgnored()
			return nil
		}

		if product.ProductType == models.ProductTypeOneTime {
			if product.CreditsGranted != nil {
				if err := repo.GrantOneTimeCredits(tx.UserID, *product.CreditsGranted); err != nil {
					return err
				}
			}
			out = resultOK()
			return nil
		}

		subscriptionID := ev.ParentOrderID
		if subscriptionID == "" {
			subscriptionID = ev.OrderID
		}
		periodEnd := paidAt.Add(subscriptionPeriod)
		subID, err := repo.UpsertSubscriptionActive(tx.UserID, product.ID, e.cfg.Provider, subscriptionID, paidAt, periodEnd)
		if err != nil {
			return err
		}
		if err := repo.LinkTransactionSubscription(tx.ID, subID); err != nil {
			return err
		}
		if product.MonthlyCredits != nil {
			if err := repo.SetMonthlyQuota(tx.UserID, *product.MonthlyCredits, paidAt.Add(quotaResetInterval)); err != nil {
				return err
			}
		}
		out = resultOK()
		return nil
	})
	if err != nil {
		return resultInternal(err)
	}
	return out
}
