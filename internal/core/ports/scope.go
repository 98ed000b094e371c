package ports

import "context"

// Scope is one key/value storage lifetime (durable or ephemeral).
type Scope interface {
	// Get returns the value and whether the key exists.
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	// CompareAndSwap replaces the value only while it still equals old.
	CompareAndSwap(ctx context.Context, key, old, value string) (bool, error)
	// CompareAndDelete removes key, and the keys in also, only while key
	// still equals old.
	CompareAndDelete(ctx context.Context, key, old string, also ...string) (bool, error)
	Delete(ctx context.Context, keys ...string) error
}
