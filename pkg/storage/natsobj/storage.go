package natsobj

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"ai-notetaking-pipeline/pkg/storage"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

// Storage keeps objects in a JetStream object store bucket.
type Storage struct {
	store  jetstream.ObjectStore
	signer *storage.Signer
}

var _ storage.ObjectStorage = (*Storage)(nil)

func New(ctx context.Context, js jetstream.JetStream, bucket string, signer *storage.Signer) (*Storage, error) {
	store, err := js.CreateOrUpdateObjectStore(ctx, jetstream.ObjectStoreConfig{
		Bucket:      bucket,
		Description: "Source media and rendered assets",
		Storage:     jetstream.FileStorage,
	})
	if err != nil {
		return nil, fmt.Errorf("object store %s: %w", bucket, err)
	}
	return &Storage{store: store, signer: signer}, nil
}

func (s *Storage) Upload(ctx context.Context, localPath, key, contentType string) (string, error) {
	f, err := os.Open(localPath)
	if err != nil {
		return "", fmt.Errorf("open upload: %w", err)
	}
	defer f.Close()

	meta := jetstream.ObjectMeta{Name: key}
	if contentType != "" {
		meta.Headers = nats.Header{"Content-Type": []string{contentType}}
	}
	if _, err := s.store.Put(ctx, meta, f); err != nil {
		return "", fmt.Errorf("put object: %w", err)
	}
	return key, nil
}

func (s *Storage) Download(ctx context.Context, key, localPath string) error {
	rc, err := s.Open(ctx, key)
	if err != nil {
		return err
	}
	defer rc.Close()
	return storage.WriteFileAtomic(localPath, rc)
}

func (s *Storage) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	obj, err := s.store.Get(ctx, key)
	if errors.Is(err, jetstream.ErrObjectNotFound) {
		return nil, fmt.Errorf("%w: %s", storage.ErrObjectNotFound, key)
	}
	if err != nil {
		return nil, fmt.Errorf("get object: %w", err)
	}
	return obj, nil
}

func (s *Storage) SignedURL(ctx context.Context, key string, ttl time.Duration) (string, error) {
	if _, err := s.store.GetInfo(ctx, key); err != nil {
		if errors.Is(err, jetstream.ErrObjectNotFound) {
			return "", fmt.Errorf("%w: %s", storage.ErrObjectNotFound, key)
		}
		return "", fmt.Errorf("object info: %w", err)
	}
	return s.signer.Sign(key, ttl)
}

func (s *Storage) Delete(ctx context.Context, key string) (bool, error) {
	err := s.store.Delete(ctx, key)
	if errors.Is(err, jetstream.ErrObjectNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("delete object: %w", err)
	}
	return true, nil
}
