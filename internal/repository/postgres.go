package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/lib/pq"

	"postqueue/internal/models"
)

const postColumns = `id, user_id, platform, scheduled_time, content_type, caption, hashtags,
	account_name, media_reference, platform_config, status, error_message, retry_count,
	retry_errors, created_at, published_at, failed_at`

type postgresPostRepository struct {
	db *sql.DB
}

func NewPostgresPostRepository(db *sql.DB) PostRepository {
	return &postgresPostRepository{db: db}
}

// EnsurePostSchema creates the post tables if they do not exist yet.
func EnsurePostSchema(ctx context.Context, db *sql.DB) error {
	schema := `
		CREATE TABLE IF NOT EXISTS scheduled_posts (
			id TEXT PRIMARY KEY,
			user_id BIGINT NOT NULL,
			platform TEXT NOT NULL,
			scheduled_time TIMESTAMPTZ NOT NULL,
			content_type TEXT NOT NULL,
			caption TEXT NOT NULL DEFAULT '',
			hashtags TEXT[] NOT NULL DEFAULT '{}',
			account_name TEXT NOT NULL DEFAULT '',
			media_reference TEXT NOT NULL DEFAULT '',
			platform_config JSONB NOT NULL DEFAULT '{}',
			status TEXT NOT NULL,
			error_message TEXT NOT NULL DEFAULT '',
			retry_count INT NOT NULL DEFAULT 0,
			retry_errors TEXT[] NOT NULL DEFAULT '{}',
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			published_at TIMESTAMPTZ,
			failed_at TIMESTAMPTZ
		);
		CREATE INDEX IF NOT EXISTS idx_scheduled_posts_user ON scheduled_posts (user_id);
		CREATE INDEX IF NOT EXISTS idx_scheduled_posts_due ON scheduled_posts (status, scheduled_time);
		CREATE TABLE IF NOT EXISTS dlq_posts (
			post_id TEXT PRIMARY KEY REFERENCES scheduled_posts (id) ON DELETE CASCADE,
			failed_at TIMESTAMPTZ NOT NULL
		);
	`
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("ensure post schema: %w", err)
	}
	return nil
}

func (r *postgresPostRepository) Create(ctx context.Context, post *models.ScheduledPost) error {
	query := `
		INSERT INTO scheduled_posts (id, user_id, platform, scheduled_time, content_type, caption,
			hashtags, account_name, media_reference, platform_config, status, error_message,
			retry_count, retry_errors, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
	`

	config, err := json.Marshal(post.PlatformConfig)
	if err != nil {
		return err
	}

	_, err = r.db.ExecContext(ctx, query,
		post.ID, post.UserID, post.Platform, post.ScheduledTime, post.ContentType, post.Caption,
		pq.Array(post.Hashtags), post.AccountName, post.MediaReference, config, post.Status,
		post.ErrorMessage, post.RetryCount, pq.Array(post.RetryErrors), post.CreatedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return ErrDuplicateID
		}
		slog.Info(err.Error())
		return err
	}

	return nil
}

func (r *postgresPostRepository) GetByID(ctx context.Context, id string) (*models.ScheduledPost, error) {
	query := `SELECT ` + postColumns + ` FROM scheduled_posts WHERE id = $1`
	post, err := scanPost(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrPostNotFound
		}
		slog.Info(err.Error())
		return nil, err
	}
	return post, nil
}

func (r *postgresPostRepository) Claim(ctx context.Context, id string, from, to models.PostStatus) (bool, error) {
	query := `UPDATE scheduled_posts SET status = $1 WHERE id = $2 AND status = $3`
	res, err := r.db.ExecContext(ctx, query, to, id, from)
	if err != nil {
		slog.Info(err.Error())
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (r *postgresPostRepository) Update(ctx context.Context, id string, upd models.UpdatePost) error {
	set := make([]string, 0, 7)
	args := make([]any, 0, 8)
	add := func(column string, value any) {
		set = append(set, fmt.Sprintf("%s = $%d", column, len(args)+1))
		args = append(args, value)
	}

	if upd.Status != nil {
		add("status", *upd.Status)
	}
	if upd.ScheduledTime != nil {
		add("scheduled_time", *upd.ScheduledTime)
	}
	if upd.ErrorMessage != nil {
		add("error_message", *upd.ErrorMessage)
	}
	if upd.RetryCount != nil {
		add("retry_count", *upd.RetryCount)
	}
	if upd.RetryErrors != nil {
		add("retry_errors", pq.Array(*upd.RetryErrors))
	}
	if upd.PublishedAt != nil {
		add("published_at", *upd.PublishedAt)
	}
	if upd.FailedAt != nil {
		add("failed_at", *upd.FailedAt)
	}
	if len(set) == 0 {
		return nil
	}

	args = append(args, id)
	query := fmt.Sprintf("UPDATE scheduled_posts SET %s WHERE id = $%d", strings.Join(set, ", "), len(args))

	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrPostNotFound
	}
	return nil
}

func (r *postgresPostRepository) MoveToDLQ(ctx context.Context, id, errorMessage string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	res, err := tx.ExecContext(ctx,
		`UPDATE scheduled_posts SET status = $1, error_message = $2, failed_at = $3 WHERE id = $4`,
		models.PostStatusFailed, errorMessage, now, id)
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrPostNotFound
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO dlq_posts (post_id, failed_at) VALUES ($1, $2)
		 ON CONFLICT (post_id) DO UPDATE SET failed_at = EXCLUDED.failed_at`,
		id, now)
	if err != nil {
		slog.Info(err.Error())
		return err
	}

	return tx.Commit()
}

func (r *postgresPostRepository) RemoveFromDLQ(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM dlq_posts WHERE post_id = $1`, id)
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	return nil
}

func (r *postgresPostRepository) Delete(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM scheduled_posts WHERE id = $1`, id)
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	return nil
}

func (r *postgresPostRepository) ListByUser(ctx context.Context, userID int64) ([]*models.ScheduledPost, error) {
	query := `SELECT ` + postColumns + ` FROM scheduled_posts WHERE user_id = $1 ORDER BY scheduled_time DESC`
	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	defer rows.Close()

	return collectPosts(rows)
}

func (r *postgresPostRepository) ListDLQ(ctx context.Context, limit int) ([]*models.ScheduledPost, error) {
	query := `
		SELECT ` + postColumns + `
		FROM scheduled_posts p
		JOIN dlq_posts d ON d.post_id = p.id
		ORDER BY d.failed_at DESC
		LIMIT $1
	`
	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	defer rows.Close()

	return collectPosts(rows)
}

func (r *postgresPostRepository) ListDue(ctx context.Context, now time.Time, limit int) ([]string, error) {
	query := `
		SELECT id FROM scheduled_posts
		WHERE status = $1 AND scheduled_time <= $2
		ORDER BY scheduled_time
		LIMIT $3
	`
	rows, err := r.db.QueryContext(ctx, query, models.PostStatusScheduled, now, limit)
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			slog.Info(err.Error())
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPost(row rowScanner) (*models.ScheduledPost, error) {
	var (
		post        models.ScheduledPost
		config      []byte
		publishedAt sql.NullTime
		failedAt    sql.NullTime
	)

	err := row.Scan(&post.ID, &post.UserID, &post.Platform, &post.ScheduledTime, &post.ContentType,
		&post.Caption, pq.Array(&post.Hashtags), &post.AccountName, &post.MediaReference, &config,
		&post.Status, &post.ErrorMessage, &post.RetryCount, pq.Array(&post.RetryErrors),
		&post.CreatedAt, &publishedAt, &failedAt)
	if err != nil {
		return nil, err
	}

	if len(config) > 0 {
		if err := json.Unmarshal(config, &post.PlatformConfig); err != nil {
			return nil, err
		}
	}
	if publishedAt.Valid {
		post.PublishedAt = &publishedAt.Time
	}
	if failedAt.Valid {
		post.FailedAt = &failedAt.Time
	}

	return &post, nil
}

func collectPosts(rows *sql.Rows) ([]*models.ScheduledPost, error) {
	var posts []*models.ScheduledPost
	for rows.Next() {
		post, err := scanPost(rows)
		if err != nil {
			slog.Info(err.Error())
			return nil, err
		}
		posts = append(posts, post)
	}
	return posts, rows.Err()
}
