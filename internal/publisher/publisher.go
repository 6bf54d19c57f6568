// Package publisher sends scheduled posts to their platforms. A Registry
// routes each post to the publisher registered for its platform, after
// resolving and decrypting the user's connected account credentials.
package publisher

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"postqueue/internal/models"
	"postqueue/internal/repository"
	"postqueue/pkg/utils"
)

// PlatformPublisher performs the actual platform API calls for one network.
type PlatformPublisher interface {
	Publish(ctx context.Context, post *models.ScheduledPost, account *models.SocialAccount, creds *models.AccountCredentials) error
}

type Registry struct {
	accounts   repository.AccountRepository
	secret     []byte
	publishers map[models.Platform]PlatformPublisher
}

func NewRegistry(accounts repository.AccountRepository, secret []byte) *Registry {
	return &Registry{
		accounts:   accounts,
		secret:     secret,
		publishers: make(map[models.Platform]PlatformPublisher),
	}
}

func (r *Registry) Register(platform models.Platform, p PlatformPublisher) {
	r.publishers[platform] = p
}

// Publish routes the post to its platform publisher. The error text matters
// downstream: it is what gets classified for retry reporting.
func (r *Registry) Publish(ctx context.Context, post *models.ScheduledPost) error {
	p, ok := r.publishers[post.Platform]
	if !ok {
		return fmt.Errorf("no publisher configured for platform %q", post.Platform)
	}

	account, err := r.accounts.Get(ctx, post.UserID, post.Platform, post.AccountName)
	if err != nil {
		if errors.Is(err, repository.ErrAccountNotFound) {
			return fmt.Errorf("no connected %s account: authorize one before posting", post.Platform)
		}
		return fmt.Errorf("resolve %s account: %w", post.Platform, err)
	}

	creds, err := decryptCredentials(account, r.secret)
	if err != nil {
		return fmt.Errorf("%s account token unusable: %w", post.Platform, err)
	}

	return p.Publish(ctx, post, account, creds)
}

func decryptCredentials(account *models.SocialAccount, secret []byte) (*models.AccountCredentials, error) {
	plain, err := utils.Decrypt(account.Credentials, secret)
	if err != nil {
		return nil, err
	}
	var creds models.AccountCredentials
	if err := json.Unmarshal([]byte(plain), &creds); err != nil {
		return nil, err
	}
	return &creds, nil
}

// EncryptCredentials serializes and seals credentials for storage on a
// SocialAccount.
func EncryptCredentials(creds *models.AccountCredentials, secret []byte) (string, error) {
	raw, err := json.Marshal(creds)
	if err != nil {
		return "", err
	}
	return utils.Encrypt(raw, secret)
}

// buildCaption appends the hashtag line the way the composer UIs do.
func buildCaption(post *models.ScheduledPost) string {
	caption := post.Caption
	if len(post.Hashtags) == 0 {
		return caption
	}

	tags := make([]string, 0, len(post.Hashtags))
	for _, tag := range post.Hashtags {
		tag = strings.TrimSpace(tag)
		if tag == "" {
			continue
		}
		if !strings.HasPrefix(tag, "#") {
			tag = "#" + tag
		}
		tags = append(tags, tag)
	}
	if len(tags) == 0 {
		return caption
	}
	if caption != "" {
		caption += "\n\n"
	}
	return caption + strings.Join(tags, " ")
}
