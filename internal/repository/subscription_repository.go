package repository

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"postqueue/internal/models"
)

type SubscriptionRepository interface {
	GetByUserID(ctx context.Context, userID int64) (*models.Subscription, error)
	Upsert(ctx context.Context, subscription *models.Subscription) error
}

type subscriptionRepository struct {
	db *sql.DB
}

func NewSubscriptionRepository(db *sql.DB) SubscriptionRepository {
	return &subscriptionRepository{db: db}
}

// EnsureSubscriptionSchema creates the subscriptions table if it does not
// exist yet.
func EnsureSubscriptionSchema(ctx context.Context, db *sql.DB) error {
	schema := `
		CREATE TABLE IF NOT EXISTS subscriptions (
			id BIGSERIAL PRIMARY KEY,
			user_id BIGINT NOT NULL UNIQUE,
			subscription_id TEXT NOT NULL,
			plan TEXT NOT NULL,
			status TEXT NOT NULL,
			subscription_end_date TIMESTAMPTZ NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		);
	`
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("ensure subscription schema: %w", err)
	}
	return nil
}

func (r *subscriptionRepository) GetByUserID(ctx context.Context, userID int64) (*models.Subscription, error) {
	query := `
		SELECT id, user_id, subscription_id, plan, status, subscription_end_date, created_at, updated_at
		FROM subscriptions
		WHERE user_id = $1
	`

	var subscription models.Subscription
	err := r.db.QueryRowContext(ctx, query, userID).Scan(
		&subscription.ID, &subscription.UserID, &subscription.SubscriptionID, &subscription.Plan,
		&subscription.Status, &subscription.SubscriptionEndDate, &subscription.CreatedAt,
		&subscription.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		slog.Info(err.Error())
		return nil, err
	}
	return &subscription, nil
}

func (r *subscriptionRepository) Upsert(ctx context.Context, subscription *models.Subscription) error {
	query := `
		INSERT INTO subscriptions (user_id, subscription_id, plan, status, subscription_end_date)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (user_id) DO UPDATE SET
			subscription_id = EXCLUDED.subscription_id,
			plan = EXCLUDED.plan,
			status = EXCLUDED.status,
			subscription_end_date = EXCLUDED.subscription_end_date,
			updated_at = $6
	`
	_, err := r.db.ExecContext(ctx, query, subscription.UserID, subscription.SubscriptionID,
		subscription.Plan, subscription.Status, subscription.SubscriptionEndDate, time.Now())
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	return nil
}
