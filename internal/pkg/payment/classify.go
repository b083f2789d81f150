package payment

import "github.com/clearmarkhq/clearmark/app/models"

// Outcome is the semantic result of a provider event.
type Outcome string

const (
	OutcomeSuccess       Outcome = "success"
	OutcomeFailure       Outcome = "failure"
	OutcomeCancellation  Outcome = "cancellation"
	OutcomeIndeterminate Outcome = "indeterminate"
)

// Kind distinguishes a first payment from a recurring charge; it is only
// used to sanity-check the resolved product's type.
type Kind string

const (
	KindFirstPayment Kind = "first_payment"
	KindRecurring    Kind = "recurring_payment"
	KindUnclassified Kind = "unclassified"
)

var successStatuses = map[string]bool{
	"succeeded": true, "success": true, "paid": true, "completed": true, "done": true,
}

var failureStatuses = map[string]bool{
	"failed": true, "fail": true, "canceled": true, "cancelled": true,
	"error": true, "expired": true, "declined": true,
}

func isSuccessEvent(eventType string) bool {
	return eventType == "payment.success" || eventType == "subscription.recurring.payment.success"
}

func isFailureEvent(eventType string) bool {
	return eventType == "payment.failed" || eventType == "subscription.recurring.payment.failed"
}

func isCancellationEvent(eventType string) bool {
	return eventType == "subscription.cancelled"
}

// ClassifyOutcome decides what the event means. The explicit paid flag wins
// for success when it disagrees with the status text; failure and
// cancellation have no boolean equivalent and rely on the text vocabularies
// alone. Unrecognized statuses stay indeterminate rather than guessing.
func ClassifyOutcome(ev *Event) Outcome {
	if isCancellationEvent(ev.EventType) {
		return OutcomeCancellation
	}
	if ev.Paid != nil && *ev.Paid {
		return OutcomeSuccess
	}
	if isFailureEvent(ev.EventType) || failureStatuses[ev.Status] {
		return OutcomeFailure
	}
	if isSuccessEvent(ev.EventType) || successStatuses[ev.Status] {
		return OutcomeSuccess
	}
	return OutcomeIndeterminate
}

// ClassifyKind derives the payment kind from the event type taxonomy.
func ClassifyKind(eventType string) Kind {
	switch eventType {
	case "payment.success", "payment.failed":
		return KindFirstPayment
	case "subscription.recurring.payment.success", "subscription.recurring.payment.failed":
		return KindRecurring
	default:
		return KindUnclassified
	}
}

// kindMatchesProduct guards against a recurring event settling a one-time
// product (or vice versa) when two differently configured products share a
// provider account. A first payment is valid for subscriptions too: the
// provider reports the initial charge of a contract as a plain payment.
func kindMatchesProduct(kind Kind, productType string) bool {
	switch kind {
	case KindRecurring:
		return productType == models.ProductTypeSubscription
	case KindFirstPayment:
		return productType == models.ProductTypeOneTime || productType == models.ProductTypeSubscription
	default:
		return true
	}
}
