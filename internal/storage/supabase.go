package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"

	storage_go "github.com/supabase-community/storage-go"
)

// SupabaseStore persists assets into a Supabase Storage bucket.
type SupabaseStore struct {
	client  *storage_go.Client
	bucket  string
	baseURL string
}

// NewSupabaseStore connects to the storage API of the given Supabase project.
func NewSupabaseStore(projectURL, serviceKey, bucket string) (*SupabaseStore, error) {
	projectURL = strings.TrimRight(strings.TrimSpace(projectURL), "/")
	if projectURL == "" || serviceKey == "" {
		return nil, errors.New("storage: supabase url and service key are required")
	}
	if bucket == "" {
		return nil, errors.New("storage: bucket is required")
	}
	client := storage_go.NewClient(projectURL+"/storage/v1", serviceKey, nil)
	return &SupabaseStore{client: client, bucket: bucket, baseURL: projectURL}, nil
}

func (s *SupabaseStore) Write(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	cleanKey, err := sanitizeKey(key)
	if err != nil {
		return "", err
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	upsert := true
	if _, err := s.client.UploadFile(s.bucket, cleanKey, bytes.NewReader(data), storage_go.FileOptions{
		ContentType: &contentType,
		Upsert:      &upsert,
	}); err != nil {
		return "", fmt.Errorf("storage: supabase upload: %w", err)
	}
	return cleanKey, nil
}

func (s *SupabaseStore) PublicURL(key string) string {
	return fmt.Sprintf("%s/storage/v1/object/public/%s/%s", s.baseURL, s.bucket, strings.TrimLeft(key, "/"))
}

// Read downloads a stored object from the bucket.
func (s *SupabaseStore) Read(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	cleanKey, err := sanitizeKey(key)
	if err != nil {
		return nil, err
	}
	data, err := s.client.DownloadFile(s.bucket, cleanKey)
	if err != nil {
		return nil, fmt.Errorf("storage: supabase download: %w", err)
	}
	return data, nil
}

var _ Store = (*SupabaseStore)(nil)
var _ Reader = (*SupabaseStore)(nil)
