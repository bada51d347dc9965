package blob

import (
	"context"
	"errors"
	"fmt"
	"io"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"
)

type GCSStore struct {
	client *storage.Client
	bucket string
}

// NewGCSStore uses the credentials file when given, application default credentials otherwise.
func NewGCSStore(ctx context.Context, bucket, credentialsPath string) (*GCSStore, error) {
	if bucket == "" {
		return nil, errors.New("bucket is required")
	}

	var opts []option.ClientOption
	if credentialsPath != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsPath))
	}
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCS storage client: %w", err)
	}
	return &GCSStore{client: client, bucket: bucket}, nil
}

func (s *GCSStore) Read(ctx context.Context, key string) ([]byte, error) {
	r, err := s.client.Bucket(s.bucket).Object(key).NewReader(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) {
			return nil, fmt.Errorf("gs://%s/%s: %w", s.bucket, key, ErrNotFound)
		}
		return nil, fmt.Errorf("open gs://%s/%s: %w", s.bucket, key, err)
	}
	defer r.Close()

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read gs://%s/%s: %w", s.bucket, key, err)
	}
	return data, nil
}

func (s *GCSStore) Close() error {
	return s.client.Close()
}
