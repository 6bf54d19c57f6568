// Package quota enforces per-plan monthly usage limits. The scheduler
// consults it before accepting a post and charges it after.
package quota

import (
	"context"
	"fmt"
	"time"

	"postqueue/internal/models"
	"postqueue/internal/repository"
)

const (
	PlanFree     = "free"
	PlanStarter  = "starter"
	PlanBusiness = "business"

	// Unlimited disables counting for a feature.
	Unlimited = -1
)

var planLimits = map[string]map[string]int64{
	PlanFree:     {"social_posts": 10},
	PlanStarter:  {"social_posts": 100},
	PlanBusiness: {"social_posts": Unlimited},
}

// LimitFor returns the monthly allowance of a feature under a plan. Unknown
// plans fall back to the free tier; unknown features get no allowance.
func LimitFor(plan, feature string) int64 {
	limits, ok := planLimits[plan]
	if !ok {
		limits = planLimits[PlanFree]
	}
	return limits[feature]
}

// PlanResolver maps a user to their current plan name.
type PlanResolver interface {
	PlanFor(ctx context.Context, userID int64) (string, error)
}

// UsageCounter tracks monthly feature consumption per key.
type UsageCounter interface {
	Get(ctx context.Context, key string) (int64, error)
	Increment(ctx context.Context, key string, by int64, expiry time.Duration) (int64, error)
}

type Service interface {
	CanUseFeature(ctx context.Context, userID int64, feature string) (bool, error)
	IncrementUsage(ctx context.Context, userID int64, feature string, count int64) error
	GetUsage(ctx context.Context, userID int64, feature string) (int64, error)
}

type quotaService struct {
	plans   PlanResolver
	counter UsageCounter
}

func NewService(plans PlanResolver, counter UsageCounter) Service {
	return &quotaService{
		plans:   plans,
		counter: counter,
	}
}

func (s *quotaService) CanUseFeature(ctx context.Context, userID int64, feature string) (bool, error) {
	plan, err := s.plans.PlanFor(ctx, userID)
	if err != nil {
		return false, fmt.Errorf("resolve plan: %w", err)
	}

	limit := LimitFor(plan, feature)
	if limit == Unlimited {
		return true, nil
	}
	if limit <= 0 {
		return false, nil
	}

	used, err := s.counter.Get(ctx, usageKey(userID, feature, time.Now()))
	if err != nil {
		return false, fmt.Errorf("read usage: %w", err)
	}
	return used < limit, nil
}

func (s *quotaService) IncrementUsage(ctx context.Context, userID int64, feature string, count int64) error {
	now := time.Now()
	_, err := s.counter.Increment(ctx, usageKey(userID, feature, now), count, untilMonthEnd(now))
	if err != nil {
		return fmt.Errorf("increment usage: %w", err)
	}
	return nil
}

// GetUsage reports how much of the feature the user has consumed in the
// current calendar month.
func (s *quotaService) GetUsage(ctx context.Context, userID int64, feature string) (int64, error) {
	return s.counter.Get(ctx, usageKey(userID, feature, time.Now()))
}

// usageKey buckets consumption per calendar month, so counters reset by
// key rotation instead of an explicit cleanup job.
func usageKey(userID int64, feature string, now time.Time) string {
	now = now.UTC()
	return fmt.Sprintf("usage:%d:%s:%d:%02d", userID, feature, now.Year(), int(now.Month()))
}

func untilMonthEnd(now time.Time) time.Duration {
	now = now.UTC()
	next := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC).AddDate(0, 1, 0)
	return next.Sub(now)
}

// subscriptionPlanResolver reads the plan off the user's subscription row.
// No row, a non-active status or a lapsed period all resolve to free.
type subscriptionPlanResolver struct {
	subscriptions repository.SubscriptionRepository
}

func NewSubscriptionPlanResolver(subscriptions repository.SubscriptionRepository) PlanResolver {
	return &subscriptionPlanResolver{subscriptions: subscriptions}
}

func (r *subscriptionPlanResolver) PlanFor(ctx context.Context, userID int64) (string, error) {
	subscription, err := r.subscriptions.GetByUserID(ctx, userID)
	if err != nil {
		return "", err
	}
	if subscription == nil {
		return PlanFree, nil
	}
	if subscription.Status != models.SubscriptionStatusActive {
		return PlanFree, nil
	}
	if !subscription.SubscriptionEndDate.IsZero() && subscription.SubscriptionEndDate.Before(time.Now()) {
		return PlanFree, nil
	}
	if _, ok := planLimits[subscription.Plan]; !ok {
		return PlanFree, nil
	}
	return subscription.Plan, nil
}

// StaticPlanResolver answers with a fixed plan for every user.
type StaticPlanResolver string

func (p StaticPlanResolver) PlanFor(context.Context, int64) (string, error) {
	return string(p), nil
}
