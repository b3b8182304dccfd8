// Package objectstore provides a NATS JetStream backed core.ObjectStore that
// holds mirrored candidate audio.
package objectstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/book-expert/tortoise-client/internal/core"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

// ErrEmptyKey is returned for an empty object key.
var ErrEmptyKey = errors.New("object key cannot be empty")

// Store implements core.ObjectStore on a JetStream object store bucket.
type Store struct {
	bucket string
	store  jetstream.ObjectStore
}

var _ core.ObjectStore = (*Store)(nil)

// New creates the bucket, or binds to it when it already exists.
func New(ctx context.Context, natsConnection *nats.Conn, bucketName string) (*Store, error) {
	js, err := jetstream.New(natsConnection)
	if err != nil {
		return nil, fmt.Errorf("failed to create JetStream context: %w", err)
	}

	store, err := js.CreateObjectStore(ctx, jetstream.ObjectStoreConfig{
		Bucket:      bucketName,
		Description: fmt.Sprintf("Synthesized candidates mirrored into %s.", bucketName),
		Storage:     jetstream.FileStorage,
		Replicas:    1,
	})
	if err != nil {
		if !errors.Is(err, jetstream.ErrBucketExists) {
			return nil, fmt.Errorf("failed to create object store bucket '%s': %w", bucketName, err)
		}

		store, err = js.ObjectStore(ctx, bucketName)
		if err != nil {
			return nil, fmt.Errorf("failed to bind to existing object store bucket '%s': %w", bucketName, err)
		}
	}

	return &Store{bucket: bucketName, store: store}, nil
}

// Bucket returns the bucket name.
func (s *Store) Bucket() string {
	return s.bucket
}

// Download retrieves an object.
func (s *Store) Download(ctx context.Context, key string) ([]byte, error) {
	if key == "" {
		return nil, ErrEmptyKey
	}

	data, err := s.store.GetBytes(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("failed to get object '%s' from bucket '%s': %w", key, s.bucket, err)
	}

	return data, nil
}

// Upload stores data under key, replacing any previous object of that name.
func (s *Store) Upload(ctx context.Context, key string, data []byte) error {
	if key == "" {
		return ErrEmptyKey
	}

	_, err := s.store.PutBytes(ctx, key, data)
	if err != nil {
		return fmt.Errorf("failed to put object '%s' to bucket '%s': %w", key, s.bucket, err)
	}

	return nil
}
