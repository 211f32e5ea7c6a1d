package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"roomchat/internal/app/store"
	"roomchat/internal/pkg/logx"
)

// uploader is the part of manager.Uploader the archive needs.
type uploader interface {
	Upload(ctx context.Context, input *s3.PutObjectInput, opts ...func(*manager.Uploader)) (*manager.UploadOutput, error)
}

// s3Client implements TranscriptArchiver against S3-compatible storage.
type s3Client struct {
	bucket   string
	uploader uploader
	now      func() time.Time
}

// newS3Client initializes the S3 client using a custom configuration that supports S3-compatible endpoints.
func newS3Client(ctx context.Context, cfg ServiceConfig) (*s3Client, error) {
	sdkCfg, err := config.LoadDefaultConfig(ctx,
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.S3AccessKeyID,
			cfg.S3SecretAccessKey,
			"",
		)),
		config.WithRegion("auto"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize S3 client configuration: %w", err)
	}

	client := s3.NewFromConfig(sdkCfg, func(o *s3.Options) {
		if cfg.S3Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.S3Endpoint)
		}
		o.UsePathStyle = true
	})

	return &s3Client{
		bucket:   cfg.S3BucketName,
		uploader: manager.NewUploader(client),
		now:      time.Now,
	}, nil
}

// ArchiveRoom uploads the transcript as one JSON object.
func (c *s3Client) ArchiveRoom(ctx context.Context, room string, messages []store.Message) error {
	archivedAt := c.now().UTC()

	body, err := json.Marshal(Transcript{
		Room:       room,
		ArchivedAt: archivedAt,
		Messages:   messages,
	})
	if err != nil {
		return fmt.Errorf("encode transcript: %w", err)
	}

	key := TranscriptKey(room, archivedAt)
	_, err = c.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(c.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return fmt.Errorf("upload transcript %s: %w", key, err)
	}

	logx.Debug("Transcript uploaded", "room", room, "key", key, "bytes", len(body))
	return nil
}
