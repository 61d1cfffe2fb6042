package report

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	minio "github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/iglennon-qualys/ResetAssetGroups/pkg/config"
)

// Uploader stores summaries in a bucket.
type Uploader struct {
	mc     *minio.Client
	bucket string
	prefix string
}

// NewUploader builds a minio client for cfg.
func NewUploader(cfg config.S3Config) (*Uploader, error) {
	mc, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("s3 client: %w", err)
	}
	return &Uploader{mc: mc, bucket: cfg.Bucket, prefix: cfg.KeyPrefix}, nil
}

// Upload puts s under ObjectKey and returns the key.
func (u *Uploader) Upload(ctx context.Context, s Summary) (string, error) {
	var buf bytes.Buffer
	if err := s.WriteJSON(&buf); err != nil {
		return "", err
	}
	key := ObjectKey(u.prefix, s.RunID, s.FinishedAt)
	_, err := u.mc.PutObject(ctx, u.bucket, key, bytes.NewReader(buf.Bytes()), int64(buf.Len()), minio.PutObjectOptions{
		ContentType: "application/json",
	})
	if err != nil {
		return "", fmt.Errorf("upload report to %s/%s: %w", u.bucket, key, err)
	}
	return key, nil
}

// ObjectKey lays reports out by UTC day: <prefix>YYYY/MM/DD/<run id>.json.
func ObjectKey(prefix, runID string, at time.Time) string {
	if prefix != "" && !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	if at.IsZero() {
		at = time.Now()
	}
	return prefix + at.UTC().Format("2006/01/02/") + runID + ".json"
}
