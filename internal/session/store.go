// Package session holds the client's bearer-token session: where the token
// is persisted, how it is read back, and the Manager that turns it into a
// live authentication check and a cached identity.
package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// TokenKey is the single key under which the raw bearer token is persisted
const TokenKey = "access_token"

var (
	// ErrKeyNotFound is returned by a Store when the key has no value
	ErrKeyNotFound = errors.New("key not found")
)

// Store defines the durable key-value slot the session is kept in.
// Implementations hold no expiry logic.
type Store interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value string) error
	Delete(ctx context.Context, key string) error
	Close() error
}

// TokenStore is the persisted holder of the current bearer token
type TokenStore struct {
	store Store
}

// NewTokenStore creates a token slot on top of the given store
func NewTokenStore(store Store) *TokenStore {
	return &TokenStore{store: store}
}

// Get returns the persisted token. ok is false when no token is stored.
func (t *TokenStore) Get(ctx context.Context) (token string, ok bool, err error) {
	value, err := t.store.Get(ctx, TokenKey)
	if errors.Is(err, ErrKeyNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to read token: %w", err)
	}
	if strings.TrimSpace(value) == "" {
		return "", false, nil
	}
	return value, true, nil
}

// Set persists token, replacing any previous one
func (t *TokenStore) Set(ctx context.Context, token string) error {
	if err := t.store.Set(ctx, TokenKey, token); err != nil {
		return fmt.Errorf("failed to store token: %w", err)
	}
	return nil
}

// Clear removes the persisted token. Clearing an empty slot is not an error.
func (t *TokenStore) Clear(ctx context.Context) error {
	err := t.store.Delete(ctx, TokenKey)
	if err != nil && !errors.Is(err, ErrKeyNotFound) {
		return fmt.Errorf("failed to clear token: %w", err)
	}
	return nil
}

// Token returns the persisted token for outgoing API calls, empty when absent
func (t *TokenStore) Token(ctx context.Context) (string, error) {
	token, _, err := t.Get(ctx)
	return token, err
}
