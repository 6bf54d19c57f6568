package publisher

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"postqueue/internal/models"
)

const defaultWhatsAppAPIBase = "https://graph.facebook.com/v21.0"

// WhatsAppPublisher sends through the WhatsApp Cloud API. The connected
// account's AccountID is the business phone number ID; the recipient comes
// from the post's platform config.
type WhatsAppPublisher struct {
	APIBase string
	Client  *http.Client
}

func NewWhatsAppPublisher(apiBase string) *WhatsAppPublisher {
	if apiBase == "" {
		apiBase = defaultWhatsAppAPIBase
	}
	return &WhatsAppPublisher{
		APIBase: apiBase,
		Client:  http.DefaultClient,
	}
}

func (p *WhatsAppPublisher) Publish(ctx context.Context, post *models.ScheduledPost, account *models.SocialAccount, creds *models.AccountCredentials) error {
	recipient := post.PlatformConfig["to"]
	if recipient == "" {
		recipient = creds.Extra["default_recipient"]
	}
	if recipient == "" {
		return fmt.Errorf("no WhatsApp recipient configured for this post")
	}

	payload := map[string]interface{}{
		"messaging_product": "whatsapp",
		"to":                recipient,
	}

	switch post.ContentType {
	case models.ContentTypeVideo:
		payload["type"] = "video"
		payload["video"] = map[string]string{
			"link":    post.MediaReference,
			"caption": buildCaption(post),
		}
	case models.ContentTypeText:
		payload["type"] = "text"
		payload["text"] = map[string]interface{}{
			"body": buildCaption(post),
		}
	default:
		payload["type"] = "image"
		payload["image"] = map[string]string{
			"link":    post.MediaReference,
			"caption": buildCaption(post),
		}
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("error marshalling payload: %w", err)
	}

	url := fmt.Sprintf("%s/%s/messages", p.APIBase, account.AccountID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(body))
	if err != nil {
		return fmt.Errorf("error creating request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+creds.AccessToken)
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
			return fmt.Errorf("WhatsApp API error (status %d): %s", resp.StatusCode, apiErr.Error.Message)
		}
		return fmt.Errorf("unexpected status code from WhatsApp: %d", resp.StatusCode)
	}

	var result struct {
		Messages []struct {
			ID string `json:"id"`
		} `json:"messages"`
	}
	if err := json.Unmarshal(respBody, &result); err != nil {
		return fmt.Errorf("error parsing response: %w", err)
	}
	if len(result.Messages) == 0 || result.Messages[0].ID == "" {
		return fmt.Errorf("no message ID returned from WhatsApp")
	}
	return nil
}
