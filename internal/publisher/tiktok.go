package publisher

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"postqueue/internal/models"
	"postqueue/internal/transfer"
)

const defaultTikTokAPIBase = "https://open.tiktokapis.com/v2"

// TikTokPublisher posts through the TikTok content posting API in
// PULL_FROM_URL mode, so TikTok fetches the media itself.
type TikTokPublisher struct {
	APIBase string
	Client  *http.Client
}

func NewTikTokPublisher(apiBase string) *TikTokPublisher {
	if apiBase == "" {
		apiBase = defaultTikTokAPIBase
	}
	return &TikTokPublisher{
		APIBase: apiBase,
		Client:  http.DefaultClient,
	}
}

func (p *TikTokPublisher) Publish(ctx context.Context, post *models.ScheduledPost, _ *models.SocialAccount, creds *models.AccountCredentials) error {
	switch post.ContentType {
	case models.ContentTypePhoto, models.ContentTypeStory:
		return p.postPhoto(ctx, post, creds.AccessToken)
	default:
		return p.postVideo(ctx, post, creds.AccessToken)
	}
}

func (p *TikTokPublisher) postVideo(ctx context.Context, post *models.ScheduledPost, accessToken string) error {
	uploadRequest := transfer.TiktokVideoUploadRequest{
		PostInfo: transfer.TiktokVideoPostInfo{
			Title:                 buildCaption(post),
			PrivacyLevel:          "PUBLIC_TO_EVERYONE",
			VideoCoverTimestampMs: 1000,
		},
		SourceInfo: transfer.TiktokVideoSourceInfo{
			Source:   "PULL_FROM_URL",
			VideoURL: post.MediaReference,
		},
	}

	return p.initPublish(ctx, "/post/publish/video/init/", uploadRequest, accessToken)
}

func (p *TikTokPublisher) postPhoto(ctx context.Context, post *models.ScheduledPost, accessToken string) error {
	uploadRequest := transfer.TiktokPhotoUploadRequest{
		PostInfo: transfer.TiktokPhotoPostInfo{
			Title:        post.Caption,
			Description:  buildCaption(post),
			PrivacyLevel: "PUBLIC_TO_EVERYONE",
			AutoAddMusic: true,
		},
		SourceInfo: transfer.TiktokPhotoSourceInfo{
			Source:          "PULL_FROM_URL",
			PhotoCoverIndex: 1,
			PhotoImages:     []string{post.MediaReference},
		},
		PostMode:  "DIRECT_POST",
		MediaType: "PHOTO",
	}

	return p.initPublish(ctx, "/post/publish/content/init/", uploadRequest, accessToken)
}

func (p *TikTokPublisher) initPublish(ctx context.Context, path string, payload interface{}, accessToken string) error {
	jsonData, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("error marshalling payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.APIBase+path, bytes.NewBuffer(jsonData))
	if err != nil {
		return fmt.Errorf("error creating request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Content-Type", "application/json; charset=UTF-8")

	resp, err := p.Client.Do(req)
	if err != nil {
		return fmt.Errorf("HTTP request error: %w", err)
	}
	defer resp.Body.Close()

	var result transfer.TiktokUploadResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return fmt.Errorf("error parsing response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		if result.Error.Message != "" {
			return fmt.Errorf("TikTok API error (status %d): %s", resp.StatusCode, result.Error.Message)
		}
		return fmt.Errorf("unexpected status code from TikTok: %d", resp.StatusCode)
	}
	if result.Data.PublishID == "" {
		return fmt.Errorf("no publish ID returned from TikTok")
	}
	return nil
}
