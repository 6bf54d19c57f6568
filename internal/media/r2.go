package media

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// R2Config carries the Cloudflare R2 connection settings.
type R2Config struct {
	AccountID string
	AccessKey string
	SecretKey string
	Bucket    string
}

type r2Uploader struct {
	client *s3.Client
	bucket string
}

// NewR2Uploader builds the S3 client once up front; R2 speaks the S3 API
// behind an account-scoped endpoint.
func NewR2Uploader(ctx context.Context, cfg R2Config) (Uploader, error) {
	awsCfg, err := config.LoadDefaultConfig(ctx,
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, "")),
		config.WithRegion("auto"),
	)
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(fmt.Sprintf("https://%s.r2.cloudflarestorage.com", cfg.AccountID))
	})

	return &r2Uploader{client: client, bucket: cfg.Bucket}, nil
}

func (u *r2Uploader) Upload(ctx context.Context, key string, body []byte, contentType string) error {
	input := &s3.PutObjectInput{
		Bucket:      aws.String(u.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String(contentType),
	}

	if _, err := u.client.PutObject(ctx, input); err != nil {
		slog.Info(err.Error())
		return err
	}
	return nil
}
