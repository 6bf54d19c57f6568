package transfer

import "time"

type SchedulePostRequest struct {
	Platform       string            `json:"platform"`
	ScheduledTime  time.Time         `json:"scheduled_time"`
	ContentType    string            `json:"content_type"`
	Caption        string            `json:"caption"`
	Hashtags       []string          `json:"hashtags"`
	AccountName    string            `json:"account_name"`
	MediaReference string            `json:"media_reference"`
	PlatformConfig map[string]string `json:"platform_config"`
}

type BulkActionRequest struct {
	IDs []string `json:"ids"`
}

// PostListItem is the listing view of a post; captions are truncated so list
// payloads stay small.
type PostListItem struct {
	ID             string     `json:"id"`
	Platform       string     `json:"platform"`
	ScheduledTime  time.Time  `json:"scheduled_time"`
	ContentType    string     `json:"content_type"`
	Caption        string     `json:"caption"`
	AccountName    string     `json:"account_name,omitempty"`
	MediaReference string     `json:"media_reference,omitempty"`
	Status         string     `json:"status"`
	ErrorMessage   string     `json:"error_message,omitempty"`
	RetryCount     int        `json:"retry_count"`
	CreatedAt      time.Time  `json:"created_at"`
	PublishedAt    *time.Time `json:"published_at,omitempty"`
}

// DLQEntry is the operator view of a dead-lettered post.
type DLQEntry struct {
	ID             string     `json:"id"`
	UserID         int64      `json:"user_id"`
	Platform       string     `json:"platform"`
	ScheduledTime  time.Time  `json:"scheduled_time"`
	FailedAt       *time.Time `json:"failed_at,omitempty"`
	Attempts       int        `json:"attempts"`
	MaxAttempts    int        `json:"max_attempts"`
	LastError      string     `json:"last_error"`
	ErrorType      string     `json:"error_type"`
	ContentType    string     `json:"content_type"`
	Caption        string     `json:"caption"`
	MediaReference string     `json:"media_reference,omitempty"`
}

type ConnectAccountRequest struct {
	Platform    string            `json:"platform"`
	AccountName string            `json:"account_name"`
	AccountID   string            `json:"account_id"`
	AccessToken string            `json:"access_token"`
	APIKey      string            `json:"api_key"`
	Extra       map[string]string `json:"extra"`
}

type RemoveAccountRequest struct {
	Platform    string `json:"platform"`
	AccountName string `json:"account_name"`
}
