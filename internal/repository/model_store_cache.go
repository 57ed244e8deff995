package repository

import (
	"context"
	"errors"
	"strings"

	domrepo "PriceCast/internal/domain/repository"
	"PriceCast/pkg/cache"
)

// CacheBlobStore stores blobs in a cache.Service without expiry. With a
// Redis-backed service every Put is a single SET.
type CacheBlobStore struct {
	svc       cache.Service
	namespace string
}

func NewCacheBlobStore(svc cache.Service, namespace string) *CacheBlobStore {
	if namespace == "" {
		namespace = "model"
	}
	return &CacheBlobStore{svc: svc, namespace: namespace + ":"}
}

func (s *CacheBlobStore) Put(ctx context.Context, key string, data []byte) error {
	return s.svc.Set(ctx, s.namespace+key, data, 0)
}

func (s *CacheBlobStore) Get(ctx context.Context, key string) ([]byte, error) {
	data, err := s.svc.Get(ctx, s.namespace+key)
	if errors.Is(err, cache.ErrCacheMiss) {
		return nil, domrepo.ErrBlobNotFound
	}
	return data, err
}

func (s *CacheBlobStore) Keys(ctx context.Context) ([]string, error) {
	raw, err := s.svc.Keys(ctx, s.namespace)
	if err != nil {
		return nil, err
	}
	keys := make([]string, len(raw))
	for i, k := range raw {
		keys[i] = strings.TrimPrefix(k, s.namespace)
	}
	return keys, nil
}

var _ domrepo.BlobStore = (*CacheBlobStore)(nil)
