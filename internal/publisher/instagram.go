package publisher

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"postqueue/internal/models"
)

const defaultInstagramAPIBase = "https://graph.instagram.com/v21.0"

// InstagramPublisher posts through the Instagram Graph API: create a media
// container, wait until the container is processed, then publish it.
type InstagramPublisher struct {
	APIBase      string
	Client       *http.Client
	PollInterval time.Duration
	MaxPolls     int
}

func NewInstagramPublisher(apiBase string) *InstagramPublisher {
	if apiBase == "" {
		apiBase = defaultInstagramAPIBase
	}
	return &InstagramPublisher{
		APIBase:      apiBase,
		Client:       http.DefaultClient,
		PollInterval: 2 * time.Second,
		MaxPolls:     15,
	}
}

func (p *InstagramPublisher) Publish(ctx context.Context, post *models.ScheduledPost, account *models.SocialAccount, creds *models.AccountCredentials) error {
	payload := map[string]interface{}{
		"caption":      buildCaption(post),
		"access_token": creds.AccessToken,
	}

	isVideo := false
	switch post.ContentType {
	case models.ContentTypeVideo, models.ContentTypeReel:
		payload["media_type"] = "REELS"
		payload["video_url"] = post.MediaReference
		isVideo = true
	case models.ContentTypeStory:
		payload["media_type"] = "STORIES"
		payload["image_url"] = post.MediaReference
	default:
		payload["image_url"] = post.MediaReference
	}

	containerID, err := p.createContainer(ctx, account.AccountID, payload)
	if err != nil {
		return err
	}

	// Video containers process asynchronously; publishing before the
	// container reaches FINISHED gets rejected by the API.
	if isVideo {
		if err := p.waitForContainer(ctx, containerID, creds.AccessToken); err != nil {
			return err
		}
	}

	return p.publishContainer(ctx, account.AccountID, containerID, creds.AccessToken)
}

func (p *InstagramPublisher) createContainer(ctx context.Context, accountID string, payload map[string]interface{}) (string, error) {
	url := fmt.Sprintf("%s/%s/media", p.APIBase, accountID)

	var result struct {
		ID string `json:"id"`
	}
	if err := p.postJSON(ctx, url, payload, &result); err != nil {
		return "", err
	}
	if result.ID == "" {
		return "", fmt.Errorf("no media container ID returned from Instagram")
	}
	return result.ID, nil
}

func (p *InstagramPublisher) waitForContainer(ctx context.Context, containerID, accessToken string) error {
	url := fmt.Sprintf("%s/%s?fields=status_code&access_token=%s", p.APIBase, containerID, accessToken)

	for i := 0; i < p.MaxPolls; i++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return err
		}
		resp, err := p.Client.Do(req)
		if err != nil {
			return fmt.Errorf("HTTP request error: %w", err)
		}

		var status struct {
			StatusCode string `json:"status_code"`
		}
		err = json.NewDecoder(resp.Body).Decode(&status)
		resp.Body.Close()
		if err != nil {
			return fmt.Errorf("error parsing container status: %w", err)
		}

		switch status.StatusCode {
		case "FINISHED":
			return nil
		case "ERROR", "EXPIRED":
			return fmt.Errorf("Instagram media container ended in status %s", status.StatusCode)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(p.PollInterval):
		}
	}
	return fmt.Errorf("Instagram media container not ready after %d checks", p.MaxPolls)
}

func (p *InstagramPublisher) publishContainer(ctx context.Context, accountID, containerID, accessToken string) error {
	url := fmt.Sprintf("%s/%s/media_publish", p.APIBase, accountID)
	payload := map[string]interface{}{
		"creation_id":  containerID,
		"access_token": accessToken,
	}

	var result struct {
		ID string `json:"id"`
	}
	if err := p.postJSON(ctx, url, payload, &result); err != nil {
		return err
	}
	if result.ID == "" {
		return fmt.Errorf("no media ID returned from Instagram")
	}
	return nil
}

func (p *InstagramPublisher) postJSON(ctx context.Context, url string, payload map[string]interface{}, out interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("error marshalling payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(body))
	if err != nil {
		return fmt.Errorf("error creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.Client.Do(req)
	if err != nil {
		return fmt.Errorf("HTTP request error: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("error reading response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		var apiErr struct {
			Error struct {
				Message string `json:"message"`
			} `json:"error"`
		}
		if json.Unmarshal(respBody, &apiErr) == nil && apiErr.Error.Message != "" {
			return fmt.Errorf("Instagram API error (status %d): %s", resp.StatusCode, apiErr.Error.Message)
		}
		return fmt.Errorf("unexpected status code from Instagram: %d", resp.StatusCode)
	}

	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("error parsing response: %w", err)
	}
	return nil
}
