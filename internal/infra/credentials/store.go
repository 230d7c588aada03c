package credentials

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"monetiq/internal/infra"
	"monetiq/internal/sqlinline"
)

// Provider identifiers for stored API keys. Keys set via cmd/providerkey
// override empty env configuration at startup.
const (
	ProviderGemini     = "gemini"
	ProviderMiniMax    = "minimax"
	ProviderElevenLabs = "elevenlabs"
)

var knownProviders = map[string]struct{}{
	ProviderGemini:     {},
	ProviderMiniMax:    {},
	ProviderElevenLabs: {},
}

type Store struct {
	sql infra.SQLExecutor
}

func NewStore(sql infra.SQLExecutor) *Store {
	return &Store{sql: sql}
}

// APIKey returns the stored key for provider, or "" when none is configured.
func (s *Store) APIKey(ctx context.Context, provider string) (string, error) {
	row := s.sql.QueryRow(ctx, sqlinline.QSelectIntegrationToken, provider)
	var token string
	if err := row.Scan(&token); err != nil {
		if infra.IsNoRows(err) {
			return "", nil
		}
		return "", err
	}
	return strings.TrimSpace(token), nil
}

// SetAPIKey upserts the key for a known provider.
func (s *Store) SetAPIKey(ctx context.Context, provider, key string) error {
	provider = strings.ToLower(strings.TrimSpace(provider))
	if _, ok := knownProviders[provider]; !ok {
		return errors.New("credentials: unknown provider " + provider)
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return errors.New("credentials: api key is required")
	}
	raw, err := json.Marshal(map[string]any{"source": "providerkey"})
	if err != nil {
		return err
	}
	_, err = s.sql.Exec(ctx, sqlinline.QUpsertIntegrationToken, provider, key, raw)
	return err
}
