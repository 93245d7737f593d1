package storage

import (
	"bytes"
	"context"
	"fmt"

	"smartschedule/core/config"
	"smartschedule/core/logger"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// Archive stores raw provider payloads for later inspection.
type Archive interface {
	Put(ctx context.Context, key string, body []byte) error
	Enabled() bool
}

type s3Archive struct {
	client *s3.Client
	bucket string
}

type noopArchive struct{}

// NewArchive returns an S3-backed archive, or a no-op one when no bucket is configured.
func NewArchive(cfg config.ArchiveConfig) Archive {
	if cfg.Bucket == "" {
		logger.Info("Storage:NewArchive:Disabled")
		return noopArchive{}
	}

	opts := s3.Options{
		Region: cfg.Region,
	}
	if cfg.AccessKeyID != "" {
		opts.Credentials = credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, "")
	}
	if cfg.Endpoint != "" {
		opts.BaseEndpoint = aws.String(cfg.Endpoint)
		opts.UsePathStyle = true
	}

	logger.Info("Storage:NewArchive:Enabled", "bucket", cfg.Bucket, "region", cfg.Region)
	return &s3Archive{client: s3.New(opts), bucket: cfg.Bucket}
}

func (a *s3Archive) Put(ctx context.Context, key string, body []byte) error {
	_, err := a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return fmt.Errorf("put %s: %w", key, err)
	}
	return nil
}

func (a *s3Archive) Enabled() bool { return true }

func (noopArchive) Put(context.Context, string, []byte) error { return nil }

func (noopArchive) Enabled() bool { return false }
