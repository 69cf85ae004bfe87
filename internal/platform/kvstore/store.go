// Package kvstore provides the string key-value storage the cart persistence adapter writes to.
package kvstore

import (
	"context"
	"errors"
)

// ErrClosed is returned by stores used after Close.
var ErrClosed = errors.New("kvstore: store is closed")

// Store is a minimal string key-value store. Get reports found=false for missing keys.
type Store interface {
	Get(ctx context.Context, key string) (value string, found bool, err error)
	Set(ctx context.Context, key, value string) error
	Remove(ctx context.Context, key string) error
}
