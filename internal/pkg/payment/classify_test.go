package payment

import (
	"testing"

	"github.com/clearmarkhq/clearmark/app/models"
)

func TestClassifyOutcome(t *testing.T) {
	tests := []struct {
		name string
		ev   Event
		want Outcome
	}{
		{"success event type", Event{EventType: "payment.success"}, OutcomeSuccess},
		{"recurring success event type", Event{EventType: "subscription.recurring.payment.success"}, OutcomeSuccess},
		{"success status word", Event{Status: "succeeded"}, OutcomeSuccess},
		{"completed status word", Event{Status: "completed"}, OutcomeSuccess},
		{"paid status word", Event{Status: "paid"}, OutcomeSuccess},
		{"failure event type", Event{EventType: "payment.failed"}, OutcomeFailure},
		{"recurring failure event type", Event{EventType: "subscription.recurring.payment.failed"}, OutcomeFailure},
		{"failed status word", Event{Status: "failed"}, OutcomeFailure},
		{"declined status word", Event{Status: "declined"}, OutcomeFailure},
		{"expired status word", Event{Status: "expired"}, OutcomeFailure},
		{"cancellation event type", Event{EventType: "subscription.cancelled"}, OutcomeCancellation},
		{"cancellation beats paid flag", Event{EventType: "subscription.cancelled", Paid: boolPtr(true)}, OutcomeCancellation},
		{"paid flag beats failed status", Event{Status: "failed", Paid: boolPtr(true)}, OutcomeSuccess},
		{"paid flag beats failure event type", Event{EventType: "payment.failed", Paid: boolPtr(true)}, OutcomeSuccess},
		{"paid false alone decides nothing", Event{Paid: boolPtr(false)}, OutcomeIndeterminate},
		{"paid false does not undo success status", Event{Status: "succeeded", Paid: boolPtr(false)}, OutcomeSuccess},
		{"unknown status", Event{Status: "on hold"}, OutcomeIndeterminate},
		{"empty event", Event{}, OutcomeIndeterminate},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ClassifyOutcome(&tt.ev); got != tt.want {
				t.Fatalf("ClassifyOutcome = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestClassifyKind(t *testing.T) {
	tests := []struct {
		eventType string
		want      Kind
	}{
		{"payment.success", KindFirstPayment},
		{"payment.failed", KindFirstPayment},
		{"subscription.recurring.payment.success", KindRecurring},
		{"subscription.recurring.payment.failed", KindRecurring},
		{"subscription.cancelled", KindUnclassified},
		{"", KindUnclassified},
		{"something.else", KindUnclassified},
	}

	for _, tt := range tests {
		if got := ClassifyKind(tt.eventType); got != tt.want {
			t.Errorf("ClassifyKind(%q) = %q, want %q", tt.eventType, got, tt.want)
		}
	}
}

func TestKindMatchesProduct(t *testing.T) {
	tests := []struct {
		kind        Kind
		productType string
		want        bool
	}{
		{KindRecurring, models.ProductTypeSubscription, true},
		{KindRecurring, models.ProductTypeOneTime, false},
		{KindFirstPayment, models.ProductTypeOneTime, true},
		{KindFirstPayment, models.ProductTypeSubscription, true},
		{KindUnclassified, models.ProductTypeOneTime, true},
		{KindUnclassified, models.ProductTypeSubscription, true},
	}

	for _, tt := range tests {
		if got := kindMatchesProduct(tt.kind, tt.productType); got != tt.want {
			t.Errorf("kindMatchesProduct(%q, %q) = %v, want %v", tt.kind, tt.productType, got, tt.want)
		}
	}
}
