package audio

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"monetiq/internal/domain"
)

const elevenLabsProviderName = "elevenlabs"

const defaultElevenLabsVoice = "21m00Tcm4TlvDq8ikWAM"

// ElevenLabsGenerator produces spoken voice-over from text.
type ElevenLabsGenerator struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

type ElevenLabsOptions struct {
	APIKey     string
	BaseURL    string
	HTTPClient *http.Client
}

func NewElevenLabsGenerator(opts ElevenLabsOptions) *ElevenLabsGenerator {
	g := &ElevenLabsGenerator{
		apiKey:     opts.APIKey,
		baseURL:    opts.BaseURL,
		httpClient: opts.HTTPClient,
	}
	if g.baseURL == "" {
		g.baseURL = "https://api.elevenlabs.io/v1"
	}
	if g.httpClient == nil {
		g.httpClient = &http.Client{Timeout: 60 * time.Second}
	}
	return g
}

func (g *ElevenLabsGenerator) Name() string { return elevenLabsProviderName }

type elevenLabsRequest struct {
	Text          string `json:"text"`
	ModelID       string `json:"model_id"`
	VoiceSettings struct {
		Stability       float64 `json:"stability"`
		SimilarityBoost float64 `json:"similarity_boost"`
	} `json:"voice_settings"`
}

func (g *ElevenLabsGenerator) Generate(ctx context.Context, req GenerateRequest) (*Asset, error) {
	if req.Text == "" {
		return nil, &domain.ProviderError{Provider: elevenLabsProviderName, Code: CodeBadRequest, Message: "text is required"}
	}
	if g.apiKey == "" {
		return &Asset{Data: synthWAV("elevenlabs:"+req.JobID+":"+req.Text, req.DurationSec), MIME: "audio/wav"}, nil
	}

	voice := req.VoiceID
	if voice == "" {
		voice = defaultElevenLabsVoice
	}
	body := elevenLabsRequest{Text: req.Text, ModelID: "eleven_multilingual_v2"}
	body.VoiceSettings.Stability = 0.5
	body.VoiceSettings.SimilarityBoost = 0.75
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/text-to-speech/"+voice, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("xi-api-key", g.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "audio/mpeg")

	resp, err := g.httpClient.Do(httpReq)
	if err != nil {
		return nil, &domain.ProviderError{Provider: elevenLabsProviderName, Code: CodeUnavailable, Message: "request failed", Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 64<<20))
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, httpProviderError(elevenLabsProviderName, resp.StatusCode, data)
	}
	if len(data) == 0 {
		return nil, &domain.ProviderError{Provider: elevenLabsProviderName, Code: CodeEmptyResponse, Message: "empty audio stream"}
	}
	return &Asset{Data: data, MIME: "audio/mpeg"}, nil
}

var _ Generator = (*ElevenLabsGenerator)(nil)
