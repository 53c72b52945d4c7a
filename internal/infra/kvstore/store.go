// Package kvstore provides the small key-value persistence used for accounts
// and admin settings. Values are JSON documents.
package kvstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"studio/internal/domain"
)

// Store is the injected persistence contract. Get returns domain.ErrNotFound
// for missing keys. Init must be called once before use.
type Store interface {
	Init(ctx context.Context) error
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
}

// GetJSON decodes the value stored under key into dst. It reports false when
// the key is absent.
func GetJSON(ctx context.Context, s Store, key string, dst any) (bool, error) {
	raw, err := s.Get(ctx, key)
	if errors.Is(err, domain.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return false, fmt.Errorf("kvstore: decode %s: %w", key, err)
	}
	return true, nil
}

// PutJSON encodes v and stores it under key.
func PutJSON(ctx context.Context, s Store, key string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("kvstore: encode %s: %w", key, err)
	}
	return s.Put(ctx, key, raw)
}
