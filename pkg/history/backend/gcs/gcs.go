// Package gcs implements a Google Cloud Storage history backend.
package gcs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"

	"github.com/Nikolaikolya/deploy-commander/pkg/history/backend"
)

func init() {
	backend.Register("gcs", NewBackend)
}

// Backend stores objects in a GCS bucket.
type Backend struct {
	client *storage.Client
	bucket string
	prefix string
}

// NewBackend creates a GCS backend. Recognised keys: bucket (required),
// prefix, credentials (file), credentials_json, endpoint (emulator).
func NewBackend(cfg map[string]string) (backend.Backend, error) {
	bucketName := cfg["bucket"]
	if bucketName == "" {
		return nil, fmt.Errorf("gcs backend requires 'bucket' configuration")
	}

	var opts []option.ClientOption
	if credentialsFile := cfg["credentials"]; credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}
	if credentialsJSON := cfg["credentials_json"]; credentialsJSON != "" {
		opts = append(opts, option.WithCredentialsJSON([]byte(credentialsJSON)))
	}
	if endpoint := cfg["endpoint"]; endpoint != "" {
		opts = append(opts, option.WithEndpoint(endpoint), option.WithoutAuthentication())
	}

	client, err := storage.NewClient(context.Background(), opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCS client: %w", err)
	}

	return &Backend{
		client: client,
		bucket: bucketName,
		prefix: cfg["prefix"],
	}, nil
}

func (b *Backend) Type() string {
	return "gcs"
}

func (b *Backend) Read(ctx context.Context, objectPath string) (io.ReadCloser, error) {
	name := b.fullPath(objectPath)

	reader, err := b.client.Bucket(b.bucket).Object(name).NewReader(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) {
			return nil, backend.ErrNotFound
		}
		return nil, fmt.Errorf("failed to read gs://%s/%s: %w", b.bucket, name, err)
	}
	return reader, nil
}

func (b *Backend) Write(ctx context.Context, objectPath string, data io.Reader) error {
	name := b.fullPath(objectPath)

	writer := b.client.Bucket(b.bucket).Object(name).NewWriter(ctx)
	writer.ContentType = "application/json"

	if _, err := io.Copy(writer, data); err != nil {
		writer.Close()
		return fmt.Errorf("failed to write gs://%s/%s: %w", b.bucket, name, err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("failed to close writer: %w", err)
	}
	return nil
}

func (b *Backend) Delete(ctx context.Context, objectPath string) error {
	name := b.fullPath(objectPath)

	err := b.client.Bucket(b.bucket).Object(name).Delete(ctx)
	if err != nil && !errors.Is(err, storage.ErrObjectNotExist) {
		return fmt.Errorf("failed to delete gs://%s/%s: %w", b.bucket, name, err)
	}
	return nil
}

func (b *Backend) Exists(ctx context.Context, objectPath string) (bool, error) {
	name := b.fullPath(objectPath)

	_, err := b.client.Bucket(b.bucket).Object(name).Attrs(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("failed to check gs://%s/%s: %w", b.bucket, name, err)
	}
	return true, nil
}

// Close releases the GCS client.
func (b *Backend) Close() error {
	return b.client.Close()
}

func (b *Backend) fullPath(objectPath string) string {
	if b.prefix == "" {
		return objectPath
	}
	return path.Join(b.prefix, objectPath)
}

var _ backend.Backend = (*Backend)(nil)
