// Package mirror keeps a best-effort off-host replica of committed records in
// an S3-compatible bucket. Uploads run after the save response is sent and
// never fail a client request.
package mirror

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/mdreader/mdreader/internal/config"
)

// Mirror is a thin wrapper around the minio client.
type Mirror struct {
	client *minio.Client
	bucket string
}

// New creates the mirror client and ensures the bucket exists.
func New(cfg config.MirrorConfig) (*Mirror, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("mirror endpoint missing")
	}
	mc, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("minio new: %w", err)
	}
	m := &Mirror{client: mc, bucket: cfg.Bucket}
	// ensure bucket exists (idempotent)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := mc.MakeBucket(ctx, m.bucket, minio.MakeBucketOptions{}); err != nil {
		exist, xerr := mc.BucketExists(ctx, m.bucket)
		if xerr != nil || !exist {
			return nil, fmt.Errorf("minio bucket ensure: %w", err)
		}
	}
	return m, nil
}

// UploadRecord copies a committed record's artifacts to the bucket under the
// same `<id>.md` / `<id>.json` keys.
func (m *Mirror) UploadRecord(ctx context.Context, id string, content, metadata []byte) error {
	if err := m.put(ctx, id+".md", content, "text/markdown; charset=utf-8"); err != nil {
		return fmt.Errorf("mirror content %s: %w", id, err)
	}
	if err := m.put(ctx, id+".json", metadata, "application/json"); err != nil {
		return fmt.Errorf("mirror metadata %s: %w", id, err)
	}
	return nil
}

func (m *Mirror) put(ctx context.Context, key string, data []byte, contentType string) error {
	_, err := m.client.PutObject(ctx, m.bucket, key, bytes.NewReader(data), int64(len(data)),
		minio.PutObjectOptions{ContentType: contentType})
	return err
}
