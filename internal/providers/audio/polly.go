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

const pollyProviderName = "polly"

// PollyGenerator produces long-form narration through the Amazon Polly REST
// endpoint. Credentials are plain access/secret pairs handed to a
// SigV4-signing proxy in production deployments.
type PollyGenerator struct {
	endpoint   string
	accessKey  string
	secretKey  string
	httpClient *http.Client
}

type PollyOptions struct {
	Endpoint   string
	AccessKey  string
	SecretKey  string
	HTTPClient *http.Client
}

func NewPollyGenerator(opts PollyOptions) *PollyGenerator {
	g := &PollyGenerator{
		endpoint:   opts.Endpoint,
		accessKey:  opts.AccessKey,
		secretKey:  opts.SecretKey,
		httpClient: opts.HTTPClient,
	}
	if g.endpoint == "" {
		g.endpoint = "https://polly.us-east-1.amazonaws.com"
	}
	if g.httpClient == nil {
		g.httpClient = &http.Client{Timeout: 60 * time.Second}
	}
	return g
}

func (g *PollyGenerator) Name() string { return pollyProviderName }

type pollyRequest struct {
	Engine       string `json:"Engine"`
	OutputFormat string `json:"OutputFormat"`
	Text         string `json:"Text"`
	VoiceId      string `json:"VoiceId"`
	LanguageCode string `json:"LanguageCode,omitempty"`
}

func (g *PollyGenerator) Generate(ctx context.Context, req GenerateRequest) (*Asset, error) {
	if req.Text == "" {
		return nil, &domain.ProviderError{Provider: pollyProviderName, Code: CodeBadRequest, Message: "text is required"}
	}
	if g.accessKey == "" || g.secretKey == "" {
		return &Asset{Data: synthWAV("polly:"+req.JobID+":"+req.Text, req.DurationSec), MIME: "audio/wav"}, nil
	}

	voice := req.VoiceID
	if voice == "" {
		voice = "Joanna"
	}
	payload, err := json.Marshal(pollyRequest{
		Engine:       "neural",
		OutputFormat: "mp3",
		Text:         req.Text,
		VoiceId:      voice,
	})
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, g.endpoint+"/v1/speech", bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("X-Amz-Access-Key", g.accessKey)
	httpReq.Header.Set("X-Amz-Secret-Key", g.secretKey)

	resp, err := g.httpClient.Do(httpReq)
	if err != nil {
		return nil, &domain.ProviderError{Provider: pollyProviderName, Code: CodeUnavailable, Message: "request failed", Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 64<<20))
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, httpProviderError(pollyProviderName, resp.StatusCode, data)
	}
	if len(data) == 0 {
		return nil, &domain.ProviderError{Provider: pollyProviderName, Code: CodeEmptyResponse, Message: "empty audio stream"}
	}
	return &Asset{Data: data, MIME: "audio/mpeg"}, nil
}

var _ Generator = (*PollyGenerator)(nil)
