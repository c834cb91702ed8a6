package services

import (
	"context"
	"fmt"
	"io"
	"time"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"

	"github.com/slotter-org/gemini-chat/internal/errs"
	"github.com/slotter-org/gemini-chat/internal/logger"
)

// BucketService stores history exports in a Cloud Storage bucket.
type BucketService interface {
	UploadFile(ctx context.Context, key string, contentType string, r io.Reader) error
	GetPublicURL(key string) string
	Close() error
}

type bucketService struct {
	log    *logger.Logger
	client *storage.Client
	bucket string
}

// NewBucketService returns errs.ErrExportUnavailable when no bucket is
// configured. An empty credentialsFile falls back to application default
// credentials.
func NewBucketService(ctx context.Context, log *logger.Logger, bucket string, credentialsFile string) (BucketService, error) {
	serviceLog := log.With("service", "BucketService")
	if bucket == "" {
		return nil, fmt.Errorf("%w: EXPORT_BUCKET not set", errs.ErrExportUnavailable)
	}
	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		serviceLog.Warn("Failed to create storage client", "error", err)
		return nil, fmt.Errorf("failed to create storage client: %w", err)
	}
	return &bucketService{log: serviceLog, client: client, bucket: bucket}, nil
}

func (bs *bucketService) UploadFile(ctx context.Context, key string, contentType string, r io.Reader) error {
	w := bs.client.Bucket(bs.bucket).Object(key).NewWriter(ctx)
	w.ContentType = contentType
	if _, err := io.Copy(w, r); err != nil {
		_ = w.Close()
		bs.log.Warn("Upload copy failed", "key", key, "error", err)
		return fmt.Errorf("upload %s: %w", key, err)
	}
	if err := w.Close(); err != nil {
		bs.log.Warn("Upload close failed", "key", key, "error", err)
		return fmt.Errorf("upload %s: %w", key, err)
	}
	bs.log.Info("Uploaded object", "bucket", bs.bucket, "key", key)
	return nil
}

func (bs *bucketService) GetPublicURL(key string) string {
	return PublicObjectURL(bs.bucket, key)
}

func (bs *bucketService) Close() error {
	return bs.client.Close()
}

func PublicObjectURL(bucket, key string) string {
	return fmt.Sprintf("https://storage.googleapis.com/%s/%s", bucket, key)
}

// ExportObjectKey names an export object by its UTC creation time.
func ExportObjectKey(at time.Time) string {
	return fmt.Sprintf("exports/chat_history_%s.csv", at.UTC().Format("20060102T150405Z"))
}
