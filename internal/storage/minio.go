package storage

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/rs/zerolog"

	"lab-report-access/internal/domain"
)

const defaultPresignExpiry = 5 * time.Minute

// MinioStore backs report handles with short-lived objects: the handle URL is
// a presigned GET and revoking it deletes the object.
type MinioStore struct {
	client        *minio.Client
	bucket        string
	presignExpiry time.Duration
	logger        zerolog.Logger
}

func NewMinioStore(endpoint, accessKey, secretKey string, useSSL bool, bucket string, presignExpiry time.Duration, logger zerolog.Logger) (*MinioStore, error) {
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: useSSL,
	})
	if err != nil {
		return nil, err
	}

	ctx := context.Background()
	exists, err := client.BucketExists(ctx, bucket)
	if err != nil {
		return nil, err
	}
	if !exists {
		if err := client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, err
		}
	}

	if presignExpiry <= 0 {
		presignExpiry = defaultPresignExpiry
	}
	return &MinioStore{client: client, bucket: bucket, presignExpiry: presignExpiry, logger: logger}, nil
}

func (m *MinioStore) Put(ctx context.Context, key string, p domain.NormalizedPayload) (string, error) {
	if _, _, err := parseBlobKey(key); err != nil {
		return "", err
	}
	_, err := m.client.PutObject(ctx, m.bucket, key, bytes.NewReader(p.Bytes), int64(len(p.Bytes)), minio.PutObjectOptions{
		ContentType:        p.Mime,
		ContentDisposition: "inline",
	})
	if err != nil {
		return "", fmt.Errorf("put report object: %w", err)
	}

	u, err := m.client.PresignedGetObject(ctx, m.bucket, key, m.presignExpiry, url.Values{})
	if err != nil {
		_ = m.client.RemoveObject(ctx, m.bucket, key, minio.RemoveObjectOptions{})
		return "", fmt.Errorf("presign report object: %w", err)
	}
	return u.String(), nil
}

func (m *MinioStore) Remove(ctx context.Context, key string) error {
	return m.client.RemoveObject(ctx, m.bucket, key, minio.RemoveObjectOptions{})
}

// Sweep deletes report objects whose handles were never revoked, e.g. after a
// crash between materialize and revoke.
func (m *MinioStore) Sweep(ctx context.Context, maxAge time.Duration) (int, error) {
	cutoff := time.Now().Add(-maxAge)
	removed := 0
	for obj := range m.client.ListObjects(ctx, m.bucket, minio.ListObjectsOptions{Recursive: true}) {
		if obj.Err != nil {
			return removed, fmt.Errorf("list report objects: %w", obj.Err)
		}
		if !isOrphan(obj.Key, obj.LastModified, cutoff) {
			continue
		}
		if err := m.Remove(ctx, obj.Key); err != nil {
			return removed, fmt.Errorf("remove orphan %s: %w", obj.Key, err)
		}
		m.logger.Info().Str("blob_key", obj.Key).Time("last_modified", obj.LastModified).Msg("removed orphaned report object")
		removed++
	}
	return removed, nil
}

func (m *MinioStore) Ping(ctx context.Context) error {
	_, err := m.client.BucketExists(ctx, m.bucket)
	return err
}
