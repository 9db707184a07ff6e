// Package archive writes raw click events to object storage so the
// pipeline's input can be replayed or reprocessed offline.
package archive

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/arpitbanna/url-shortener/internal/models"
)

type MinIOArchiver struct {
	client *minio.Client
	bucket string
}

// NewMinIOArchiver connects to the object store and creates the bucket if
// it does not exist yet.
func NewMinIOArchiver(ctx context.Context, endpoint, accessKey, secretKey, bucket string) (*MinIOArchiver, error) {
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: false,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}

	exists, err := client.BucketExists(ctx, bucket)
	if err != nil {
		return nil, fmt.Errorf("check bucket %s: %w", bucket, err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("create bucket %s: %w", bucket, err)
		}
	}

	return &MinIOArchiver{
		client: client,
		bucket: bucket,
	}, nil
}

// Archive stores one click event as JSON under a date-partitioned path.
func (m *MinIOArchiver) Archive(ctx context.Context, eventID string, event *models.ClickEvent, timestamp time.Time) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal click event: %w", err)
	}

	path := objectPath(eventID, timestamp)
	_, err = m.client.PutObject(ctx, m.bucket, path,
		bytes.NewReader(payload), int64(len(payload)),
		minio.PutObjectOptions{ContentType: "application/json"})
	if err != nil {
		return fmt.Errorf("put object %s: %w", path, err)
	}
	return nil
}

// objectPath partitions events by calendar day so a day's clicks can be
// listed with a single prefix scan.
func objectPath(eventID string, timestamp time.Time) string {
	return fmt.Sprintf("clicks/%04d/%02d/%02d/%s.json",
		timestamp.Year(),
		timestamp.Month(),
		timestamp.Day(),
		eventID,
	)
}
