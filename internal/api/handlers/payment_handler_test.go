package handlers_test

import (
	"bytes"
	"context"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"postqueue/internal/api/handlers"
	"postqueue/internal/billing"
	"postqueue/internal/models"
	"postqueue/internal/quota"
)

type subscriptionStore struct {
	mu       sync.Mutex
	upserted *models.Subscription
}

func (s *subscriptionStore) GetByUserID(context.Context, int64) (*models.Subscription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.upserted, nil
}

func (s *subscriptionStore) Upsert(_ context.Context, subscription *models.Subscription) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.upserted = subscription
	return nil
}

func webhookApp(store *subscriptionStore) *fiber.App {
	app := fiber.New()
	payment := handlers.NewPaymentHandler(billing.NewService(store))
	app.Post("/api/webhook/payment", payment.PaymentWebhook)
	return app
}

func postWebhook(t *testing.T, app *fiber.App, payload string) int {
	t.Helper()
	req := httptest.NewRequest(fiber.MethodPost, "/api/webhook/payment", bytes.NewReader([]byte(payload)))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	resp.Body.Close()
	return resp.StatusCode
}

func TestPaymentWebhook(t *testing.T) {
	paidPayload := `{
		"eventType": "subscription.paid",
		"object": {
			"id": "sub_123",
			"object": "subscription",
			"status": "active",
			"product": {"id": "prod_1", "name": "Business Plan (monthly)"},
			"customer": {"id": "cus_1", "email": "owner@example.com"},
			"current_period_end_date": "2026-09-23T00:00:00Z",
			"metadata": {"internal_customer_id": "42"}
		}
	}`

	t.Run("paid event activates the plan", func(t *testing.T) {
		store := &subscriptionStore{}
		app := webhookApp(store)

		require.Equal(t, fiber.StatusOK, postWebhook(t, app, paidPayload))

		require.NotNil(t, store.upserted)
		assert.Equal(t, int64(42), store.upserted.UserID)
		assert.Equal(t, "sub_123", store.upserted.SubscriptionID)
		assert.Equal(t, quota.PlanBusiness, store.upserted.Plan)
		assert.Equal(t, models.SubscriptionStatusActive, store.upserted.Status)
		assert.Equal(t, time.Date(2026, 9, 23, 0, 0, 0, 0, time.UTC), store.upserted.SubscriptionEndDate.UTC())
	})

	t.Run("cancel event downgrades the plan", func(t *testing.T) {
		store := &subscriptionStore{}
		app := webhookApp(store)

		cancelPayload := strings.Replace(paidPayload, "subscription.paid", "subscription.canceled", 1)
		require.Equal(t, fiber.StatusOK, postWebhook(t, app, cancelPayload))

		require.NotNil(t, store.upserted)
		assert.Equal(t, models.SubscriptionStatusCancelled, store.upserted.Status)
	})

	t.Run("event without a customer id fails", func(t *testing.T) {
		store := &subscriptionStore{}
		app := webhookApp(store)

		anonymous := strings.Replace(paidPayload, `"internal_customer_id": "42"`, `"internal_customer_id": ""`, 1)
		assert.Equal(t, fiber.StatusInternalServerError, postWebhook(t, app, anonymous))
		assert.Nil(t, store.upserted)
	})

	t.Run("malformed payload", func(t *testing.T) {
		store := &subscriptionStore{}
		app := webhookApp(store)

		assert.Equal(t, fiber.StatusBadRequest, postWebhook(t, app, "{not json"))
	})

	t.Run("unrelated events are acknowledged", func(t *testing.T) {
		store := &subscriptionStore{}
		app := webhookApp(store)

		checkout := strings.Replace(paidPayload, "subscription.paid", "checkout.completed", 1)
		assert.Equal(t, fiber.StatusOK, postWebhook(t, app, checkout))
		assert.Nil(t, store.upserted)
	})
}
