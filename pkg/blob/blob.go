// Package blob reads small objects (prompt templates) from a bucket or a local directory.
package blob

import (
	"context"
	"errors"
	"fmt"
)

var ErrNotFound = errors.New("object not found")

type Store interface {
	Read(ctx context.Context, key string) ([]byte, error)
}

type Config struct {
	Backend         string // "gcs" or "file"
	Bucket          string
	CredentialsPath string
	LocalDir        string
}

// NewStore opens the configured backend. The returned close func is never nil.
func NewStore(ctx context.Context, cfg Config) (Store, func() error, error) {
	switch cfg.Backend {
	case "gcs":
		s, err := NewGCSStore(ctx, cfg.Bucket, cfg.CredentialsPath)
		if err != nil {
			return nil, func() error { return nil }, err
		}
		return s, s.Close, nil
	case "file", "":
		s, err := NewFileStore(cfg.LocalDir)
		return s, func() error { return nil }, err
	}
	return nil, func() error { return nil }, fmt.Errorf("unknown storage backend %q", cfg.Backend)
}
