// Package media stores uploaded post media and hands back the public URL
// that platform publishers pull from.
package media

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"strings"

	"github.com/h2non/filetype"
	"github.com/h2non/filetype/types"
	gonanoid "github.com/matoous/go-nanoid/v2"
)

// MaxUploadSize bounds a single media file.
const MaxUploadSize = 100 << 20

var ErrUnsupportedMedia = errors.New("unsupported media file type")

var allowedTypes = map[string]struct{}{
	"mp4": {}, "mov": {}, "jpeg": {}, "png": {}, "jpg": {}, "gif": {},
}

// Uploader writes one object to the backing store.
type Uploader interface {
	Upload(ctx context.Context, key string, body []byte, contentType string) error
}

type Service interface {
	StorePostMedia(ctx context.Context, userID int64, file *multipart.FileHeader) (string, error)
}

type mediaService struct {
	uploader  Uploader
	publicURL string
}

func NewService(uploader Uploader, publicURL string) Service {
	return &mediaService{
		uploader:  uploader,
		publicURL: strings.TrimSuffix(publicURL, "/"),
	}
}

// StorePostMedia sniffs the real file type from content, never the claimed
// filename, and stores the file under an unguessable per-user key.
func (s *mediaService) StorePostMedia(ctx context.Context, userID int64, file *multipart.FileHeader) (string, error) {
	if file.Size > MaxUploadSize {
		return "", fmt.Errorf("media file too large: %d bytes", file.Size)
	}

	fileContent, err := file.Open()
	if err != nil {
		return "", fmt.Errorf("error opening uploaded file: %w", err)
	}
	defer fileContent.Close()

	fileBytes, err := io.ReadAll(fileContent)
	if err != nil {
		return "", fmt.Errorf("error reading file content: %w", err)
	}

	fileType, err := filetype.Match(fileBytes)
	if err != nil || fileType == types.Unknown {
		return "", ErrUnsupportedMedia
	}
	if _, ok := allowedTypes[fileType.Extension]; !ok {
		return "", fmt.Errorf("%w: %s", ErrUnsupportedMedia, fileType.Extension)
	}

	id, err := gonanoid.New()
	if err != nil {
		return "", err
	}
	key := fmt.Sprintf("%d/%s.%s", userID, id, fileType.Extension)

	if err := s.uploader.Upload(ctx, key, fileBytes, fileType.MIME.Value); err != nil {
		return "", fmt.Errorf("error uploading media: %w", err)
	}
	return s.publicURL + "/" + key, nil
}
