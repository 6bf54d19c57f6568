package models

import "time"

type SocialAccount struct {
	UserID      int64     `json:"user_id"`
	Platform    Platform  `json:"platform"`
	AccountName string    `json:"account_name"`
	AccountID   string    `json:"account_id"`
	Credentials string    `json:"-"`
	CreatedAt   time.Time `json:"created_at"`
}

// AccountCredentials is the decrypted form of SocialAccount.Credentials.
type AccountCredentials struct {
	AccessToken string            `json:"access_token,omitempty"`
	APIKey      string            `json:"api_key,omitempty"`
	Extra       map[string]string `json:"extra,omitempty"`
}
