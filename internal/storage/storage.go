package storage

import "context"

// Store abstracts the object backend so asset persistence is swappable
// between the local filesystem and Supabase Storage.
type Store interface {
	// Write persists data under key and returns the canonical storage key.
	Write(ctx context.Context, key string, data []byte, contentType string) (string, error)
	// PublicURL returns the externally reachable URL for a stored key.
	PublicURL(key string) string
}

// Reader loads previously stored assets back, for serving and archive export.
// Both built-in backends implement it alongside Store.
type Reader interface {
	Read(ctx context.Context, key string) ([]byte, error)
}
