package cache

import (
	"context"
	"encoding/json"
	"errors"
)

var (
	ErrCacheMiss = errors.New("cache: key not found")
)

// Service is the process cache for whole record sets keyed by
// (dataset, ticker). Entries are replaced wholesale and never expire;
// invalidation is explicit. A Get must never surface partial data: an
// entry either holds the full known set for its key or is absent.
type Service interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}) error
	Delete(ctx context.Context, keys ...string) error
	Exists(ctx context.Context, key string) (bool, error)
	Close() error
}

// GetTyped retrieves a key into a typed value, with (zero, false) on miss.
func GetTyped[T any](ctx context.Context, c Service, key string) (T, bool, error) {
	var out T
	err := c.Get(ctx, key, &out)
	if errors.Is(err, ErrCacheMiss) {
		return out, false, nil
	}
	if err != nil {
		return out, false, err
	}
	return out, true, nil
}

func encode(value interface{}) ([]byte, error) {
	return json.Marshal(value)
}

func decode(b []byte, dest interface{}) error {
	return json.Unmarshal(b, dest)
}
