package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"
)

var (
	ErrCacheMiss = errors.New("cache: key not found")
)

// DefaultExpiration applies when Set is called with a non-positive ttl.
const DefaultExpiration = 7 * 24 * time.Hour

// Service defines cache operations interface. Every backend stores values
// JSON-encoded so Get yields an independent copy with identical semantics.
type Service interface {
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error
	Get(ctx context.Context, key string, dest interface{}) error
	Delete(ctx context.Context, keys ...string) error
	Close() error
}

// Sweeper is implemented by caches that hold expired entries until swept.
type Sweeper interface {
	Sweep(now time.Time) int
}

// GetTyped retrieves key and decodes it into a T.
func GetTyped[T any](ctx context.Context, c Service, key string) (T, error) {
	var obj T
	if err := c.Get(ctx, key, &obj); err != nil {
		var zero T
		return zero, err
	}
	return obj, nil
}

func encode(value interface{}) ([]byte, error) {
	switch v := value.(type) {
	case []byte:
		return v, nil
	case string:
		return []byte(v), nil
	default:
		return json.Marshal(value)
	}
}

func decode(data []byte, dest interface{}) error {
	switch d := dest.(type) {
	case *string:
		*d = string(data)
		return nil
	case *[]byte:
		*d = append((*d)[:0], data...)
		return nil
	default:
		return json.Unmarshal(data, dest)
	}
}
