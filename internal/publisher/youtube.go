package publisher

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	"golang.org/x/oauth2"
	"google.golang.org/api/option"
	"google.golang.org/api/youtube/v3"

	"postqueue/internal/models"
)

// YouTubePublisher uploads videos with the user's OAuth access token. YouTube
// has no pull-from-URL ingest, so the media is fetched to a temporary file
// and streamed into the resumable upload.
type YouTubePublisher struct {
	// Endpoint overrides the YouTube API base URL when set.
	Endpoint string
	Client   *http.Client
}

func NewYouTubePublisher() *YouTubePublisher {
	return &YouTubePublisher{Client: http.DefaultClient}
}

func (p *YouTubePublisher) Publish(ctx context.Context, post *models.ScheduledPost, _ *models.SocialAccount, creds *models.AccountCredentials) error {
	token := &oauth2.Token{AccessToken: creds.AccessToken}
	httpClient := oauth2.NewClient(ctx, oauth2.StaticTokenSource(token))

	opts := []option.ClientOption{option.WithHTTPClient(httpClient)}
	if p.Endpoint != "" {
		opts = append(opts, option.WithEndpoint(p.Endpoint))
	}
	service, err := youtube.NewService(ctx, opts...)
	if err != nil {
		return fmt.Errorf("error creating YouTube service: %w", err)
	}

	tempFile, err := p.downloadMedia(ctx, post.MediaReference)
	if err != nil {
		return err
	}
	defer os.Remove(tempFile)

	file, err := os.Open(tempFile)
	if err != nil {
		return fmt.Errorf("error opening video file: %w", err)
	}
	defer file.Close()

	video := &youtube.Video{
		Snippet: &youtube.VideoSnippet{
			Title:       videoTitle(post),
			Description: buildCaption(post),
			Tags:        post.Hashtags,
			CategoryId:  "22",
		},
		Status: &youtube.VideoStatus{
			PrivacyStatus: "public",
		},
	}

	call := service.Videos.Insert([]string{"snippet", "status"}, video)
	response, err := call.Media(file).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("error uploading video: %w", err)
	}
	if response.Id == "" {
		return fmt.Errorf("no video ID returned from YouTube")
	}
	return nil
}

func (p *YouTubePublisher) downloadMedia(ctx context.Context, mediaURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, mediaURL, nil)
	if err != nil {
		return "", fmt.Errorf("error creating download request: %w", err)
	}

	resp, err := p.Client.Do(req)
	if err != nil {
		return "", fmt.Errorf("error downloading video: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("unexpected response status downloading video: %d", resp.StatusCode)
	}

	tempFile, err := os.CreateTemp("", "upload-*.mp4")
	if err != nil {
		return "", fmt.Errorf("error creating temporary file: %w", err)
	}
	defer tempFile.Close()

	if _, err := io.Copy(tempFile, resp.Body); err != nil {
		os.Remove(tempFile.Name())
		return "", fmt.Errorf("error saving video to temporary file: %w", err)
	}
	return tempFile.Name(), nil
}

// videoTitle derives the video title from the first caption line; YouTube
// caps titles at 100 characters.
func videoTitle(post *models.ScheduledPost) string {
	title, _, _ := strings.Cut(strings.TrimSpace(post.Caption), "\n")
	title = strings.TrimSpace(title)
	if title == "" {
		return "Scheduled upload"
	}
	runes := []rune(title)
	if len(runes) > 100 {
		return string(runes[:97]) + "..."
	}
	return title
}
