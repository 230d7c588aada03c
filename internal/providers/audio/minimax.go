package audio

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"monetiq/internal/domain"
)

const minimaxProviderName = "minimax"

// MiniMaxGenerator produces background music tracks. Without an API key it
// returns deterministic synthetic audio.
type MiniMaxGenerator struct {
	apiKey     string
	baseURL    string
	model      string
	httpClient *http.Client
}

type MiniMaxOptions struct {
	APIKey     string
	BaseURL    string
	Model      string
	HTTPClient *http.Client
}

func NewMiniMaxGenerator(opts MiniMaxOptions) *MiniMaxGenerator {
	g := &MiniMaxGenerator{
		apiKey:     opts.APIKey,
		baseURL:    opts.BaseURL,
		model:      opts.Model,
		httpClient: opts.HTTPClient,
	}
	if g.baseURL == "" {
		g.baseURL = "https://api.minimax.io/v1"
	}
	if g.model == "" {
		g.model = "music-1.5"
	}
	if g.httpClient == nil {
		g.httpClient = &http.Client{Timeout: 120 * time.Second}
	}
	return g
}

func (g *MiniMaxGenerator) Name() string { return minimaxProviderName }

type minimaxMusicRequest struct {
	Model       string `json:"model"`
	Prompt      string `json:"prompt"`
	DurationSec int    `json:"duration_seconds"`
}

type minimaxMusicResponse struct {
	Data struct {
		Audio  string `json:"audio"`
		Format string `json:"format"`
	} `json:"data"`
	BaseResp struct {
		StatusCode int    `json:"status_code"`
		StatusMsg  string `json:"status_msg"`
	} `json:"base_resp"`
}

func (g *MiniMaxGenerator) Generate(ctx context.Context, req GenerateRequest) (*Asset, error) {
	if g.apiKey == "" {
		return &Asset{Data: synthWAV("minimax:"+req.JobID+":"+req.Preset, req.DurationSec), MIME: "audio/wav"}, nil
	}

	prompt := req.Preset
	if prompt == "" {
		prompt = "instrumental background music for a product advertisement"
	}
	payload, err := json.Marshal(minimaxMusicRequest{
		Model:       g.model,
		Prompt:      prompt,
		DurationSec: req.DurationSec,
	})
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/music_generation", bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Authorization", "Bearer "+g.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := g.httpClient.Do(httpReq)
	if err != nil {
		return nil, &domain.ProviderError{Provider: minimaxProviderName, Code: CodeUnavailable, Message: "request failed", Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 64<<20))
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, httpProviderError(minimaxProviderName, resp.StatusCode, body)
	}

	var parsed minimaxMusicResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("minimax: decode response: %w", err)
	}
	if parsed.BaseResp.StatusCode != 0 {
		return nil, &domain.ProviderError{
			Provider: minimaxProviderName,
			Code:     CodeBadRequest,
			Message:  parsed.BaseResp.StatusMsg,
		}
	}
	if parsed.Data.Audio == "" {
		return nil, &domain.ProviderError{Provider: minimaxProviderName, Code: CodeEmptyResponse, Message: "no audio in response"}
	}

	// MiniMax returns hex-encoded MP3 bytes.
	data, err := hex.DecodeString(parsed.Data.Audio)
	if err != nil {
		return nil, fmt.Errorf("minimax: decode audio payload: %w", err)
	}
	return &Asset{Data: data, MIME: "audio/mpeg"}, nil
}

var _ Generator = (*MiniMaxGenerator)(nil)
