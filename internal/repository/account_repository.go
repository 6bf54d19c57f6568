package repository

import (
	"context"
	"encoding/json"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"postqueue/internal/models"
)

// Key layout:
//
//	account:{userID}:{platform}:{name}  string  account record JSON
//	accounts:user:{userID}              set     "{platform}:{name}" members
const (
	accountKeyPrefix   = "account:"
	userAccountsPrefix = "accounts:user:"
)

func accountKey(userID int64, platform models.Platform, name string) string {
	return accountKeyPrefix + strconv.FormatInt(userID, 10) + ":" + string(platform) + ":" + name
}

func userAccountsKey(userID int64) string {
	return userAccountsPrefix + strconv.FormatInt(userID, 10)
}

// accountRecord is the stored form. SocialAccount hides Credentials from
// JSON so API responses never leak them; the record re-adds the field for
// persistence only.
type accountRecord struct {
	models.SocialAccount
	Credentials string `json:"credentials,omitempty"`
}

type redisAccountRepository struct {
	client *redis.Client
}

func NewRedisAccountRepository(client *redis.Client) AccountRepository {
	return &redisAccountRepository{client: client}
}

func (r *redisAccountRepository) Save(ctx context.Context, account *models.SocialAccount) error {
	if account.CreatedAt.IsZero() {
		account.CreatedAt = time.Now().UTC()
	}

	raw, err := json.Marshal(accountRecord{SocialAccount: *account, Credentials: account.Credentials})
	if err != nil {
		return err
	}

	pipe := r.client.TxPipeline()
	pipe.Set(ctx, accountKey(account.UserID, account.Platform, account.AccountName), raw, 0)
	pipe.SAdd(ctx, userAccountsKey(account.UserID), string(account.Platform)+":"+account.AccountName)
	if _, err := pipe.Exec(ctx); err != nil {
		slog.Info(err.Error())
		return err
	}
	return nil
}

func (r *redisAccountRepository) Get(ctx context.Context, userID int64, platform models.Platform, accountName string) (*models.SocialAccount, error) {
	if accountName == "" {
		name, err := r.firstAccountName(ctx, userID, platform)
		if err != nil {
			return nil, err
		}
		accountName = name
	}

	raw, err := r.client.Get(ctx, accountKey(userID, platform, accountName)).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, ErrAccountNotFound
		}
		slog.Info(err.Error())
		return nil, err
	}

	var record accountRecord
	if err := json.Unmarshal([]byte(raw), &record); err != nil {
		return nil, err
	}
	account := record.SocialAccount
	account.Credentials = record.Credentials
	return &account, nil
}

func (r *redisAccountRepository) ListByUser(ctx context.Context, userID int64) ([]*models.SocialAccount, error) {
	members, err := r.client.SMembers(ctx, userAccountsKey(userID)).Result()
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	sort.Strings(members)

	accounts := make([]*models.SocialAccount, 0, len(members))
	for _, member := range members {
		platform, name, ok := strings.Cut(member, ":")
		if !ok {
			continue
		}
		account, err := r.Get(ctx, userID, models.Platform(platform), name)
		if err != nil {
			continue
		}
		accounts = append(accounts, account)
	}
	return accounts, nil
}

func (r *redisAccountRepository) Remove(ctx context.Context, userID int64, platform models.Platform, accountName string) error {
	pipe := r.client.TxPipeline()
	del := pipe.Del(ctx, accountKey(userID, platform, accountName))
	pipe.SRem(ctx, userAccountsKey(userID), string(platform)+":"+accountName)
	if _, err := pipe.Exec(ctx); err != nil {
		slog.Info(err.Error())
		return err
	}
	if del.Val() == 0 {
		return ErrAccountNotFound
	}
	return nil
}

func (r *redisAccountRepository) firstAccountName(ctx context.Context, userID int64, platform models.Platform) (string, error) {
	members, err := r.client.SMembers(ctx, userAccountsKey(userID)).Result()
	if err != nil {
		slog.Info(err.Error())
		return "", err
	}
	sort.Strings(members)

	prefix := string(platform) + ":"
	for _, member := range members {
		if strings.HasPrefix(member, prefix) {
			return strings.TrimPrefix(member, prefix), nil
		}
	}
	return "", ErrAccountNotFound
}

type memoryAccountRepository struct {
	mu       sync.RWMutex
	accounts map[string]*models.SocialAccount
}

func NewMemoryAccountRepository() AccountRepository {
	return &memoryAccountRepository{
		accounts: make(map[string]*models.SocialAccount),
	}
}

func (r *memoryAccountRepository) Save(_ context.Context, account *models.SocialAccount) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if account.CreatedAt.IsZero() {
		account.CreatedAt = time.Now().UTC()
	}
	clone := *account
	r.accounts[accountKey(account.UserID, account.Platform, account.AccountName)] = &clone
	return nil
}

func (r *memoryAccountRepository) Get(_ context.Context, userID int64, platform models.Platform, accountName string) (*models.SocialAccount, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if accountName == "" {
		var names []string
		for key := range r.accounts {
			if strings.HasPrefix(key, accountKey(userID, platform, "")) {
				names = append(names, key)
			}
		}
		if len(names) == 0 {
			return nil, ErrAccountNotFound
		}
		sort.Strings(names)
		clone := *r.accounts[names[0]]
		return &clone, nil
	}

	account, ok := r.accounts[accountKey(userID, platform, accountName)]
	if !ok {
		return nil, ErrAccountNotFound
	}
	clone := *account
	return &clone, nil
}

func (r *memoryAccountRepository) ListByUser(_ context.Context, userID int64) ([]*models.SocialAccount, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	prefix := accountKeyPrefix + strconv.FormatInt(userID, 10) + ":"
	var keys []string
	for key := range r.accounts {
		if strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)

	accounts := make([]*models.SocialAccount, 0, len(keys))
	for _, key := range keys {
		clone := *r.accounts[key]
		accounts = append(accounts, &clone)
	}
	return accounts, nil
}

func (r *memoryAccountRepository) Remove(_ context.Context, userID int64, platform models.Platform, accountName string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := accountKey(userID, platform, accountName)
	if _, ok := r.accounts[key]; !ok {
		return ErrAccountNotFound
	}
	delete(r.accounts, key)
	return nil
}
