// Package storage keeps small durable client state (session identity, token,
// display language) behind a key/value interface.
package storage

import (
	"context"
	"errors"
	"strings"
)

// Keys written by the client.
const (
	KeyCurrentUser = "currentUser"
	KeyToken       = "token"
	KeyLanguage    = "language"
)

// ErrInvalidKey is returned for empty or path-like keys.
var ErrInvalidKey = errors.New("storage: invalid key")

// Storage is a durable key/value store.
type Storage interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Put(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
}

func checkKey(key string) error {
	if strings.TrimSpace(key) == "" || strings.ContainsAny(key, `/\`) || key == "." || key == ".." {
		return ErrInvalidKey
	}
	return nil
}
