package repository

import (
	"context"
	"encoding/json"
	"log/slog"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"postqueue/internal/models"
)

// Key layout:
//
//	post:{id}            hash   full post record
//	posts:user:{userID}  zset   member=post id, score=scheduled unix
//	posts:due            zset   member=post id, score=scheduled unix, dispatchable posts only
//	posts:dlq            list   post ids, LPUSH so newest failure is first
const (
	postKeyPrefix   = "post:"
	userPostsPrefix = "posts:user:"
	duePostsKey     = "posts:due"
	dlqPostsKey     = "posts:dlq"
)

func postKey(id string) string { return postKeyPrefix + id }

func userPostsKey(userID int64) string {
	return userPostsPrefix + strconv.FormatInt(userID, 10)
}

// claimScript flips status only when it still has the expected value, and
// drops the id from the due index so the winner owns the post exclusively.
var claimScript = redis.NewScript(`
	local status = redis.call('HGET', KEYS[1], 'status')
	if not status then return 0 end
	if status ~= ARGV[1] then return 0 end
	redis.call('HSET', KEYS[1], 'status', ARGV[2])
	redis.call('ZREM', KEYS[2], ARGV[3])
	return 1
`)

// dlqScript records the failure and the DLQ membership as one operation.
var dlqScript = redis.NewScript(`
	if redis.call('EXISTS', KEYS[1]) == 0 then return 0 end
	redis.call('HSET', KEYS[1], 'status', ARGV[1], 'error_message', ARGV[2], 'failed_at', ARGV[3])
	redis.call('ZREM', KEYS[2], ARGV[4])
	redis.call('LREM', KEYS[3], 0, ARGV[4])
	redis.call('LPUSH', KEYS[3], ARGV[4])
	return 1
`)

type redisPostRepository struct {
	client *redis.Client
}

func NewRedisPostRepository(client *redis.Client) PostRepository {
	return &redisPostRepository{client: client}
}

func (r *redisPostRepository) Create(ctx context.Context, post *models.ScheduledPost) error {
	key := postKey(post.ID)

	created, err := r.client.HSetNX(ctx, key, "id", post.ID).Result()
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	if !created {
		return ErrDuplicateID
	}

	fields, err := postToFields(post)
	if err != nil {
		return err
	}

	score := float64(post.ScheduledTime.Unix())
	pipe := r.client.TxPipeline()
	pipe.HSet(ctx, key, fields)
	pipe.ZAdd(ctx, userPostsKey(post.UserID), redis.Z{Score: score, Member: post.ID})
	if post.Status == models.PostStatusScheduled {
		pipe.ZAdd(ctx, duePostsKey, redis.Z{Score: score, Member: post.ID})
	}
	if _, err := pipe.Exec(ctx); err != nil {
		slog.Info(err.Error())
		return err
	}
	return nil
}

func (r *redisPostRepository) GetByID(ctx context.Context, id string) (*models.ScheduledPost, error) {
	fields, err := r.client.HGetAll(ctx, postKey(id)).Result()
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	if len(fields) == 0 {
		return nil, ErrPostNotFound
	}
	return postFromFields(fields)
}

func (r *redisPostRepository) Claim(ctx context.Context, id string, from, to models.PostStatus) (bool, error) {
	keys := []string{postKey(id), duePostsKey}
	n, err := claimScript.Run(ctx, r.client, keys, string(from), string(to), id).Int()
	if err != nil {
		slog.Info(err.Error())
		return false, err
	}
	return n == 1, nil
}

func (r *redisPostRepository) Update(ctx context.Context, id string, upd models.UpdatePost) error {
	key := postKey(id)

	userField, err := r.client.HGet(ctx, key, "user_id").Result()
	if err != nil {
		if err == redis.Nil {
			return ErrPostNotFound
		}
		slog.Info(err.Error())
		return err
	}
	userID, err := strconv.ParseInt(userField, 10, 64)
	if err != nil {
		return err
	}

	fields := make(map[string]any)
	if upd.Status != nil {
		fields["status"] = string(*upd.Status)
	}
	if upd.ScheduledTime != nil {
		fields["scheduled_time"] = upd.ScheduledTime.UTC().Format(time.RFC3339Nano)
	}
	if upd.ErrorMessage != nil {
		fields["error_message"] = *upd.ErrorMessage
	}
	if upd.RetryCount != nil {
		fields["retry_count"] = strconv.Itoa(*upd.RetryCount)
	}
	if upd.RetryErrors != nil {
		encoded, err := json.Marshal(*upd.RetryErrors)
		if err != nil {
			return err
		}
		fields["retry_errors"] = string(encoded)
	}
	if upd.PublishedAt != nil {
		fields["published_at"] = upd.PublishedAt.UTC().Format(time.RFC3339Nano)
	}
	if upd.FailedAt != nil {
		fields["failed_at"] = upd.FailedAt.UTC().Format(time.RFC3339Nano)
	}
	if len(fields) == 0 {
		return nil
	}

	pipe := r.client.TxPipeline()
	pipe.HSet(ctx, key, fields)
	if upd.ScheduledTime != nil {
		score := float64(upd.ScheduledTime.Unix())
		pipe.ZAdd(ctx, duePostsKey, redis.Z{Score: score, Member: id})
		pipe.ZAdd(ctx, userPostsKey(userID), redis.Z{Score: score, Member: id})
	}
	if upd.Status != nil && *upd.Status != models.PostStatusScheduled {
		pipe.ZRem(ctx, duePostsKey, id)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		slog.Info(err.Error())
		return err
	}
	return nil
}

func (r *redisPostRepository) MoveToDLQ(ctx context.Context, id, errorMessage string) error {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	keys := []string{postKey(id), duePostsKey, dlqPostsKey}
	n, err := dlqScript.Run(ctx, r.client, keys, string(models.PostStatusFailed), errorMessage, now, id).Int()
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	if n == 0 {
		return ErrPostNotFound
	}
	return nil
}

func (r *redisPostRepository) RemoveFromDLQ(ctx context.Context, id string) error {
	if err := r.client.LRem(ctx, dlqPostsKey, 0, id).Err(); err != nil {
		slog.Info(err.Error())
		return err
	}
	return nil
}

func (r *redisPostRepository) Delete(ctx context.Context, id string) error {
	key := postKey(id)

	userField, err := r.client.HGet(ctx, key, "user_id").Result()
	if err != nil {
		if err == redis.Nil {
			return nil
		}
		slog.Info(err.Error())
		return err
	}
	userID, err := strconv.ParseInt(userField, 10, 64)
	if err != nil {
		return err
	}

	pipe := r.client.TxPipeline()
	pipe.Del(ctx, key)
	pipe.ZRem(ctx, userPostsKey(userID), id)
	pipe.ZRem(ctx, duePostsKey, id)
	pipe.LRem(ctx, dlqPostsKey, 0, id)
	if _, err := pipe.Exec(ctx); err != nil {
		slog.Info(err.Error())
		return err
	}
	return nil
}

func (r *redisPostRepository) ListByUser(ctx context.Context, userID int64) ([]*models.ScheduledPost, error) {
	ids, err := r.client.ZRevRange(ctx, userPostsKey(userID), 0, -1).Result()
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	return r.hydrate(ctx, ids)
}

func (r *redisPostRepository) ListDLQ(ctx context.Context, limit int) ([]*models.ScheduledPost, error) {
	end := int64(-1)
	if limit > 0 {
		end = int64(limit) - 1
	}
	ids, err := r.client.LRange(ctx, dlqPostsKey, 0, end).Result()
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	return r.hydrate(ctx, ids)
}

func (r *redisPostRepository) ListDue(ctx context.Context, now time.Time, limit int) ([]string, error) {
	ids, err := r.client.ZRangeByScore(ctx, duePostsKey, &redis.ZRangeBy{
		Min:   "-inf",
		Max:   strconv.FormatInt(now.Unix(), 10),
		Count: int64(limit),
	}).Result()
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	return ids, nil
}

// hydrate loads post records for ids, skipping ids whose record is gone.
func (r *redisPostRepository) hydrate(ctx context.Context, ids []string) ([]*models.ScheduledPost, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	pipe := r.client.Pipeline()
	cmds := make([]*redis.MapStringStringCmd, len(ids))
	for i, id := range ids {
		cmds[i] = pipe.HGetAll(ctx, postKey(id))
	}
	if _, err := pipe.Exec(ctx); err != nil {
		slog.Info(err.Error())
		return nil, err
	}

	posts := make([]*models.ScheduledPost, 0, len(ids))
	for _, cmd := range cmds {
		fields, err := cmd.Result()
		if err != nil || len(fields) == 0 {
			continue
		}
		post, err := postFromFields(fields)
		if err != nil {
			slog.Info(err.Error())
			continue
		}
		posts = append(posts, post)
	}
	return posts, nil
}

func postToFields(post *models.ScheduledPost) (map[string]any, error) {
	hashtags, err := json.Marshal(post.Hashtags)
	if err != nil {
		return nil, err
	}
	retryErrors, err := json.Marshal(post.RetryErrors)
	if err != nil {
		return nil, err
	}
	config, err := json.Marshal(post.PlatformConfig)
	if err != nil {
		return nil, err
	}

	fields := map[string]any{
		"id":              post.ID,
		"user_id":         strconv.FormatInt(post.UserID, 10),
		"platform":        string(post.Platform),
		"scheduled_time":  post.ScheduledTime.UTC().Format(time.RFC3339Nano),
		"content_type":    post.ContentType,
		"caption":         post.Caption,
		"hashtags":        string(hashtags),
		"account_name":    post.AccountName,
		"media_reference": post.MediaReference,
		"platform_config": string(config),
		"status":          string(post.Status),
		"error_message":   post.ErrorMessage,
		"retry_count":     strconv.Itoa(post.RetryCount),
		"retry_errors":    string(retryErrors),
		"created_at":      post.CreatedAt.UTC().Format(time.RFC3339Nano),
	}
	if post.PublishedAt != nil {
		fields["published_at"] = post.PublishedAt.UTC().Format(time.RFC3339Nano)
	}
	if post.FailedAt != nil {
		fields["failed_at"] = post.FailedAt.UTC().Format(time.RFC3339Nano)
	}
	return fields, nil
}

func postFromFields(fields map[string]string) (*models.ScheduledPost, error) {
	post := &models.ScheduledPost{
		ID:             fields["id"],
		Platform:       models.Platform(fields["platform"]),
		ContentType:    fields["content_type"],
		Caption:        fields["caption"],
		AccountName:    fields["account_name"],
		MediaReference: fields["media_reference"],
		Status:         models.PostStatus(fields["status"]),
		ErrorMessage:   fields["error_message"],
	}

	var err error
	if post.UserID, err = strconv.ParseInt(fields["user_id"], 10, 64); err != nil {
		return nil, err
	}
	if post.ScheduledTime, err = time.Parse(time.RFC3339Nano, fields["scheduled_time"]); err != nil {
		return nil, err
	}
	if post.CreatedAt, err = time.Parse(time.RFC3339Nano, fields["created_at"]); err != nil {
		return nil, err
	}
	if raw := fields["retry_count"]; raw != "" {
		if post.RetryCount, err = strconv.Atoi(raw); err != nil {
			return nil, err
		}
	}
	if raw := fields["hashtags"]; raw != "" {
		if err := json.Unmarshal([]byte(raw), &post.Hashtags); err != nil {
			return nil, err
		}
	}
	if raw := fields["retry_errors"]; raw != "" {
		if err := json.Unmarshal([]byte(raw), &post.RetryErrors); err != nil {
			return nil, err
		}
	}
	if raw := fields["platform_config"]; raw != "" {
		if err := json.Unmarshal([]byte(raw), &post.PlatformConfig); err != nil {
			return nil, err
		}
	}
	if raw := fields["published_at"]; raw != "" {
		t, err := time.Parse(time.RFC3339Nano, raw)
		if err != nil {
			return nil, err
		}
		post.PublishedAt = &t
	}
	if raw := fields["failed_at"]; raw != "" {
		t, err := time.Parse(time.RFC3339Nano, raw)
		if err != nil {
			return nil, err
		}
		post.FailedAt = &t
	}

	return post, nil
}
