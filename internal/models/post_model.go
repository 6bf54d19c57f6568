package models

import "time"

type Platform string

const (
	PlatformInstagram Platform = "instagram"
	PlatformTikTok    Platform = "tiktok"
	PlatformYouTube   Platform = "youtube"
	PlatformWhatsApp  Platform = "whatsapp"
)

func (p Platform) Valid() bool {
	switch p {
	case PlatformInstagram, PlatformTikTok, PlatformYouTube, PlatformWhatsApp:
		return true
	}
	return false
}

type PostStatus string

const (
	PostStatusScheduled  PostStatus = "scheduled"
	PostStatusPublishing PostStatus = "publishing"
	PostStatusPublished  PostStatus = "published"
	PostStatusFailed     PostStatus = "failed"
	PostStatusCancelled  PostStatus = "cancelled"
)

const (
	ContentTypePhoto = "photo"
	ContentTypeVideo = "video"
	ContentTypeReel  = "reel"
	ContentTypeStory = "story"
	ContentTypeText  = "text"
	ContentTypeShort = "short"
)

type ScheduledPost struct {
	ID             string            `db:"id" json:"id"`
	UserID         int64             `db:"user_id" json:"user_id"`
	Platform       Platform          `db:"platform" json:"platform"`
	ScheduledTime  time.Time         `db:"scheduled_time" json:"scheduled_time"`
	ContentType    string            `db:"content_type" json:"content_type"`
	Caption        string            `db:"caption" json:"caption"`
	Hashtags       []string          `db:"hashtags" json:"hashtags,omitempty"`
	AccountName    string            `db:"account_name" json:"account_name,omitempty"`
	MediaReference string            `db:"media_reference" json:"media_reference,omitempty"`
	PlatformConfig map[string]string `db:"platform_config" json:"platform_config,omitempty"`
	Status         PostStatus        `db:"status" json:"status"`
	ErrorMessage   string            `db:"error_message" json:"error_message,omitempty"`
	RetryCount     int               `db:"retry_count" json:"retry_count"`
	RetryErrors    []string          `db:"retry_errors" json:"retry_errors,omitempty"`
	CreatedAt      time.Time         `db:"created_at" json:"created_at"`
	PublishedAt    *time.Time        `db:"published_at" json:"published_at,omitempty"`
	FailedAt       *time.Time        `db:"failed_at" json:"failed_at,omitempty"`
}

// UpdatePost is a partial update of a ScheduledPost. Nil fields are left
// untouched.
type UpdatePost struct {
	Status        *PostStatus
	ScheduledTime *time.Time
	ErrorMessage  *string
	RetryCount    *int
	RetryErrors   *[]string
	PublishedAt   *time.Time
	FailedAt      *time.Time
}
