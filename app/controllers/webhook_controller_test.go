package controllers

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/clearmarkhq/clearmark/app/models"
	"github.com/clearmarkhq/clearmark/internal/pkg/payment"
)

// emptyLedger satisfies the engine repository with an empty ledger. Methods
// not listed here are never reached by these tests.
type emptyLedger struct {
	payment.Repository
}

func (emptyLedger) FindTransactionByOrderID(provider, orderID string) (*models.Transaction, error) {
	return nil, gorm.ErrRecordNotFound
}

func (emptyLedger) FindTransactionByParentOrderID(provider, parentOrderID string) (*models.Transaction, error) {
	return nil, gorm.ErrRecordNotFound
}

func newWebhookTestApp() *fiber.App {
	engine := payment.NewEngine(payment.Config{
		Provider:      "lava",
		WebhookSecret: "whsec-controller",
	}, emptyLedger{})

	app := fiber.New()
	app.Post("/api/webhooks/lava", HandlePaymentWebhook(engine))
	return app
}

func postWebhook(t *testing.T, app *fiber.App, target, body string, header map[string]string) *http.Response {
	t.Helper()

	req := httptest.NewRequest(http.MethodPost, target, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range header {
		req.Header.Set(k, v)
	}
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	return resp
}

func TestPaymentWebhookRejectsBadBody(t *testing.T) {
	app := newWebhookTestApp()

	resp := postWebhook(t, app, "/api/webhooks/lava", "%zz%", map[string]string{
		"X-Api-Key": "whsec-controller",
	})
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestPaymentWebhookRejectsMissingKey(t *testing.T) {
	app := newWebhookTestApp()

	resp := postWebhook(t, app, "/api/webhooks/lava", `{"status":"completed"}`, nil)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
}

func TestPaymentWebhookRejectsWrongKey(t *testing.T) {
	app := newWebhookTestApp()

	resp := postWebhook(t, app, "/api/webhooks/lava", `{"status":"completed"}`, map[string]string{
		"X-Api-Key": "nope",
	})
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
}

func TestPaymentWebhookAcceptsQueryKey(t *testing.T) {
	app := newWebhookTestApp()

	// An indeterminate event against an empty ledger is acknowledged as
	// ignored.
	resp := postWebhook(t, app, "/api/webhooks/lava?api_key=whsec-controller",
		`{"eventType":"payment.updated","contractId":"ord-1"}`, nil)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(raw, &body))
	assert.Equal(t, true, body["ok"])
	assert.Equal(t, true, body["ignored"])
}
