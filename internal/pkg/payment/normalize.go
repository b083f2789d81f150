package payment

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

// Event is the canonical, provider-agnostic view of one webhook delivery.
// All fields are optional; Raw keeps the full decoded payload so nothing the
// extraction skips is lost for the audit trail.
type Event struct {
	EventType      string
	OrderID        string
	ParentOrderID  string
	Status         string
	Paid           *bool
	Amount         string
	Currency       string
	BuyerEmail     string
	ProductOfferID string
	CustomFields   interface{}
	Raw            map[string]interface{}
}

// RawJSON renders the full decoded payload for audit storage.
func (e *Event) RawJSON() string {
	b, err := json.Marshal(e.Raw)
	if err != nil {
		return "{}"
	}
	return string(b)
}

// ParseWebhookBody decodes a webhook body. Providers deliver either a JSON
// object or a URL-encoded form; anything else is a parse error.
func ParseWebhookBody(body []byte) (map[string]interface{}, error) {
	if len(body) == 0 {
		return nil, errors.New("empty body")
	}

	var obj map[string]interface{}
	if err := json.Unmarshal(body, &obj); err == nil {
		return obj, nil
	}

	form, err := url.ParseQuery(string(body))
	if err != nil {
		return nil, fmt.Errorf("invalid body: %w", err)
	}
	obj = make(map[string]interface{}, len(form))
	for k, vs := range form {
		if len(vs) > 0 {
			obj[k] = vs[0]
		}
	}
	if len(obj) == 0 {
		return nil, errors.New("invalid body: no fields")
	}
	return obj, nil
}

// Normalize resolves the known provider field aliases into an Event.
// event_type and status are lowercased, currency uppercased; everything else
// is passed through trimmed.
func Normalize(raw map[string]interface{}) *Event {
	ev := &Event{Raw: raw}

	ev.EventType = strings.ToLower(extractString(raw, "type", "eventType", "event_type", "event"))
	ev.OrderID = extractString(raw,
		"orderId", "order_id", "contractId", "contract_id",
		"invoiceId", "invoice_id", "paymentId", "payment_id", "id")
	ev.ParentOrderID = extractString(raw,
		"parentContractId", "parent_contract_id", "parentOrderId", "parent_order_id")

	ev.BuyerEmail = extractStringPath(raw, "buyer", "email")
	if ev.BuyerEmail == "" {
		ev.BuyerEmail = extractString(raw, "buyerEmail", "buyer_email", "email")
	}
	ev.ProductOfferID = extractStringPath(raw, "product", "id")
	if ev.ProductOfferID == "" {
		ev.ProductOfferID = extractString(raw, "productId", "product_id", "offerId", "offer_id")
	}

	ev.Status = strings.ToLower(extractString(raw, "status", "paymentStatus", "payment_status", "result"))
	ev.Paid = extractBool(raw, "paid", "isPaid", "success")
	ev.Amount = extractString(raw, "amount", "sum", "price")
	ev.Currency = strings.ToUpper(extractString(raw, "currency"))
	ev.CustomFields = extractCustomFields(raw)

	return ev
}

// getNested looks a key up at the top level and under the common wrapper
// keys some providers nest their payload in.
func getNested(raw map[string]interface{}, key string) (interface{}, bool) {
	if v, ok := raw[key]; ok {
		return v, true
	}
	for _, container := range []string{"data", "payload"} {
		if inner, ok := raw[container].(map[string]interface{}); ok {
			if v, ok := inner[key]; ok {
				return v, true
			}
		}
	}
	return nil, false
}

func valueToString(v interface{}) string {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case json.Number:
		return t.String()
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	default:
		return ""
	}
}

func extractString(raw map[string]interface{}, keys ...string) string {
	for _, key := range keys {
		if v, ok := getNested(raw, key); ok {
			if s := valueToString(v); s != "" {
				return s
			}
		}
	}
	return ""
}

func extractStringPath(raw map[string]interface{}, path ...string) string {
	var current interface{} = raw
	for _, key := range path {
		obj, ok := current.(map[string]interface{})
		if !ok {
			return ""
		}
		current, ok = obj[key]
		if !ok {
			return ""
		}
	}
	return valueToString(current)
}

func extractBool(raw map[string]interface{}, keys ...string) *bool {
	for _, key := range keys {
		v, ok := getNested(raw, key)
		if !ok {
			continue
		}
		if b, ok := v.(bool); ok {
			return &b
		}
		if s, ok := v.(string); ok {
			switch strings.ToLower(strings.TrimSpace(s)) {
			case "true", "1", "yes":
				t := true
				return &t
			case "false", "0", "no":
				f := false
				return &f
			}
		}
	}
	return nil
}

// extractCustomFields keeps the custom payload opaque but decodes
// JSON-encoded strings so embedded user/product identifiers are reachable.
func extractCustomFields(raw map[string]interface{}) interface{} {
	v, ok := getNested(raw, "customFields")
	if !ok {
		v, ok = getNested(raw, "custom_fields")
	}
	if !ok {
		return nil
	}

	if s, ok := v.(string); ok {
		trimmed := strings.TrimSpace(s)
		if strings.HasPrefix(trimmed, "{") || strings.HasPrefix(trimmed, "[") {
			var decoded interface{}
			if err := json.Unmarshal([]byte(trimmed), &decoded); err == nil {
				return decoded
			}
		}
		return s
	}
	return v
}

// customFieldString reads one scalar out of the opaque custom fields.
func customFieldString(fields interface{}, key string) string {
	obj, ok := fields.(map[string]interface{})
	if !ok {
		return ""
	}
	v, ok := obj[key]
	if !ok {
		return ""
	}
	return valueToString(v)
}
