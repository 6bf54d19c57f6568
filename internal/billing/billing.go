// Package billing turns payment provider webhook events into subscription
// rows, which is where quota plan resolution reads from.
package billing

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"postqueue/internal/models"
	"postqueue/internal/quota"
	"postqueue/internal/repository"
	"postqueue/internal/transfer"
)

const (
	EventSubscriptionPaid     = "subscription.paid"
	EventSubscriptionCanceled = "subscription.canceled"
	EventSubscriptionExpired  = "subscription.expired"
)

type Service interface {
	HandleSubscription(ctx context.Context, payload *transfer.SubscriptionEvent) error
}

type billingService struct {
	s repository.SubscriptionRepository
}

func NewService(s repository.SubscriptionRepository) Service {
	return &billingService{s: s}
}

func (b *billingService) HandleSubscription(ctx context.Context, payload *transfer.SubscriptionEvent) error {
	switch payload.EventType {
	case EventSubscriptionPaid:
		return b.applyEvent(ctx, payload, models.SubscriptionStatusActive)
	case EventSubscriptionCanceled, EventSubscriptionExpired:
		return b.applyEvent(ctx, payload, models.SubscriptionStatusCancelled)
	}
	return nil
}

func (b *billingService) applyEvent(ctx context.Context, payload *transfer.SubscriptionEvent, status string) error {
	userID, err := strconv.ParseInt(payload.Object.Metadata.InternalCustomerID, 10, 64)
	if err != nil {
		return fmt.Errorf("webhook event %s carries no usable internal customer id: %w", payload.ID, err)
	}

	subscription := &models.Subscription{
		UserID:              userID,
		SubscriptionID:      payload.Object.ID,
		Plan:                planFromProduct(payload.Object.Product.Name),
		Status:              status,
		SubscriptionEndDate: payload.Object.CurrentPeriodEndDate,
	}

	if err := b.s.Upsert(ctx, subscription); err != nil {
		return fmt.Errorf("upsert subscription for user %d: %w", userID, err)
	}
	return nil
}

// planFromProduct maps a billing product name onto a plan tier. Any paid
// product we cannot place lands on the lowest paid tier rather than free.
func planFromProduct(name string) string {
	lowered := strings.ToLower(name)
	switch {
	case strings.Contains(lowered, "business"):
		return quota.PlanBusiness
	case strings.Contains(lowered, "starter"):
		return quota.PlanStarter
	default:
		return quota.PlanStarter
	}
}
