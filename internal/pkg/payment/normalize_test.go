package payment

import (
	"testing"
)

const paymentSuccessJSON = `{
	"eventType": "payment.success",
	"contractId": "7ea82675-bf38-4c07-9c3c-c2e0e1b9d9f1",
	"parentContractId": "2fc2fbbc-ab10-49c8-a0ab-c0e1a2b3c4d5",
	"buyer": {"email": "buyer@example.com"},
	"product": {"id": "offer-credits-3", "title": "3 Credits"},
	"status": "completed",
	"amount": 499,
	"currency": "rub",
	"customFields": "{\"user_id\": \"42\", \"product_slug\": \"credits-3\"}"
}`

func TestNormalizePaymentSuccess(t *testing.T) {
	raw, err := ParseWebhookBody([]byte(paymentSuccessJSON))
	if err != nil {
		t.Fatalf("ParseWebhookBody: %v", err)
	}

	ev := Normalize(raw)

	if ev.EventType != "payment.success" {
		t.Fatalf("event type = %q", ev.EventType)
	}
	if ev.OrderID != "7ea82675-bf38-4c07-9c3c-c2e0e1b9d9f1" {
		t.Fatalf("order id = %q", ev.OrderID)
	}
	if ev.ParentOrderID != "2fc2fbbc-ab10-49c8-a0ab-c0e1a2b3c4d5" {
		t.Fatalf("parent order id = %q", ev.ParentOrderID)
	}
	if ev.BuyerEmail != "buyer@example.com" {
		t.Fatalf("buyer email = %q", ev.BuyerEmail)
	}
	if ev.ProductOfferID != "offer-credits-3" {
		t.Fatalf("product offer id = %q", ev.ProductOfferID)
	}
	if ev.Status != "completed" {
		t.Fatalf("status = %q", ev.Status)
	}
	if ev.Amount != "499" {
		t.Fatalf("amount = %q", ev.Amount)
	}
	if ev.Currency != "RUB" {
		t.Fatalf("currency = %q", ev.Currency)
	}
	if got := customFieldString(ev.CustomFields, "user_id"); got != "42" {
		t.Fatalf("custom user_id = %q", got)
	}
	if got := customFieldString(ev.CustomFields, "product_slug"); got != "credits-3" {
		t.Fatalf("custom product_slug = %q", got)
	}
}

func TestNormalizeFieldAliases(t *testing.T) {
	tests := []struct {
		name string
		body string
		want Event
	}{
		{
			name: "snake case ids",
			body: `{"event_type": "PAYMENT.SUCCESS", "order_id": "o-1", "parent_order_id": "p-1", "buyer_email": "a@b.c"}`,
			want: Event{EventType: "payment.success", OrderID: "o-1", ParentOrderID: "p-1", BuyerEmail: "a@b.c"},
		},
		{
			name: "invoice id and flat email",
			body: `{"type": "payment.failed", "invoiceId": "inv-9", "email": "x@y.z", "status": "Failed"}`,
			want: Event{EventType: "payment.failed", OrderID: "inv-9", BuyerEmail: "x@y.z", Status: "failed"},
		},
		{
			name: "data wrapper",
			body: `{"event": "subscription.cancelled", "data": {"contractId": "c-5", "currency": "usd"}}`,
			want: Event{EventType: "subscription.cancelled", OrderID: "c-5", Currency: "USD"},
		},
		{
			name: "numeric id and sum",
			body: `{"paymentId": 1009, "sum": 12.5}`,
			want: Event{OrderID: "1009", Amount: "12.5"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw, err := ParseWebhookBody([]byte(tt.body))
			if err != nil {
				t.Fatalf("ParseWebhookBody: %v", err)
			}
			ev := Normalize(raw)
			if ev.EventType != tt.want.EventType {
				t.Errorf("event type = %q, want %q", ev.EventType, tt.want.EventType)
			}
			if ev.OrderID != tt.want.OrderID {
				t.Errorf("order id = %q, want %q", ev.OrderID, tt.want.OrderID)
			}
			if ev.ParentOrderID != tt.want.ParentOrderID {
				t.Errorf("parent order id = %q, want %q", ev.ParentOrderID, tt.want.ParentOrderID)
			}
			if ev.BuyerEmail != tt.want.BuyerEmail {
				t.Errorf("buyer email = %q, want %q", ev.BuyerEmail, tt.want.BuyerEmail)
			}
			if ev.Status != tt.want.Status {
				t.Errorf("status = %q, want %q", ev.Status, tt.want.Status)
			}
			if ev.Amount != tt.want.Amount {
				t.Errorf("amount = %q, want %q", ev.Amount, tt.want.Amount)
			}
			if ev.Currency != tt.want.Currency {
				t.Errorf("currency = %q, want %q", ev.Currency, tt.want.Currency)
			}
		})
	}
}

func TestParseWebhookBodyForm(t *testing.T) {
	raw, err := ParseWebhookBody([]byte("order_id=o-77&status=succeeded&paid=true&amount=99.00"))
	if err != nil {
		t.Fatalf("ParseWebhookBody: %v", err)
	}

	ev := Normalize(raw)
	if ev.OrderID != "o-77" {
		t.Fatalf("order id = %q", ev.OrderID)
	}
	if ev.Status != "succeeded" {
		t.Fatalf("status = %q", ev.Status)
	}
	if ev.Paid == nil || !*ev.Paid {
		t.Fatalf("paid = %v, want true", ev.Paid)
	}
	if ev.Amount != "99.00" {
		t.Fatalf("amount = %q", ev.Amount)
	}
}

func TestParseWebhookBodyRejectsGarbage(t *testing.T) {
	for _, body := range []string{"", "%zz%"} {
		if _, err := ParseWebhookBody([]byte(body)); err == nil {
			t.Errorf("ParseWebhookBody(%q): expected error", body)
		}
	}
}

func TestExtractBoolFromString(t *testing.T) {
	tests := []struct {
		body string
		want *bool
	}{
		{`{"paid": true}`, boolPtr(true)},
		{`{"paid": "false"}`, boolPtr(false)},
		{`{"isPaid": "1"}`, boolPtr(true)},
		{`{"success": "no"}`, boolPtr(false)},
		{`{"paid": "maybe"}`, nil},
		{`{"status": "paid"}`, nil},
	}

	for _, tt := range tests {
		raw, err := ParseWebhookBody([]byte(tt.body))
		if err != nil {
			t.Fatalf("ParseWebhookBody(%q): %v", tt.body, err)
		}
		got := Normalize(raw).Paid
		switch {
		case tt.want == nil && got != nil:
			t.Errorf("%q: paid = %v, want nil", tt.body, *got)
		case tt.want != nil && (got == nil || *got != *tt.want):
			t.Errorf("%q: paid = %v, want %v", tt.body, got, *tt.want)
		}
	}
}

func TestCustomFieldsObjectPassthrough(t *testing.T) {
	raw, err := ParseWebhookBody([]byte(`{"custom_fields": {"user_id": 42}}`))
	if err != nil {
		t.Fatalf("ParseWebhookBody: %v", err)
	}
	ev := Normalize(raw)
	if got := customFieldString(ev.CustomFields, "user_id"); got != "42" {
		t.Fatalf("custom user_id = %q", got)
	}
}

func boolPtr(b bool) *bool { return &b }
