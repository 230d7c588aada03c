package image

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	stdimage "image"
	"image/color"
	"image/png"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"monetiq/internal/domain"
)

const geminiProviderName = "gemini"

// GeminiGenerator renders ad shots through the Gemini image API. Without an
// API key it produces deterministic synthetic frames so shot pipelines stay
// runnable in local and CI environments.
type GeminiGenerator struct {
	apiKey     string
	baseURL    string
	model      string
	httpClient *http.Client
}

type GeminiOptions struct {
	APIKey     string
	BaseURL    string
	Model      string
	HTTPClient *http.Client
}

func NewGeminiGenerator(opts GeminiOptions) *GeminiGenerator {
	g := &GeminiGenerator{
		apiKey:     opts.APIKey,
		baseURL:    opts.BaseURL,
		model:      opts.Model,
		httpClient: opts.HTTPClient,
	}
	if g.baseURL == "" {
		g.baseURL = "https://generativelanguage.googleapis.com/v1beta"
	}
	if g.model == "" {
		g.model = "gemini-2.5-flash"
	}
	if g.httpClient == nil {
		g.httpClient = &http.Client{Timeout: 90 * time.Second}
	}
	return g
}

func (g *GeminiGenerator) Name() string { return geminiProviderName }

type geminiPart struct {
	Text       string `json:"text,omitempty"`
	InlineData *struct {
		MimeType string `json:"mimeType,omitempty"`
		Data     string `json:"data,omitempty"`
	} `json:"inlineData,omitempty"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts,omitempty"`
}

type geminiGenerateRequest struct {
	Contents []geminiContent `json:"contents"`
}

type geminiGenerateResponse struct {
	Candidates []struct {
		Content geminiContent `json:"content"`
	} `json:"candidates"`
	Error *struct {
		Code    int    `json:"code"`
		Status  string `json:"status"`
		Message string `json:"message"`
	} `json:"error"`
}

func (g *GeminiGenerator) GenerateShot(ctx context.Context, req ShotRequest) (*ShotAsset, error) {
	if g.apiKey == "" {
		return syntheticShot(req), nil
	}

	payload, err := json.Marshal(geminiGenerateRequest{
		Contents: []geminiContent{{Role: "user", Parts: []geminiPart{{Text: req.Prompt}}}},
	})
	if err != nil {
		return nil, err
	}

	endpoint := fmt.Sprintf("%s/models/%s:generateContent?key=%s",
		strings.TrimRight(g.baseURL, "/"), url.PathEscape(g.model), url.QueryEscape(g.apiKey))
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := g.httpClient.Do(httpReq)
	if err != nil {
		return nil, &domain.ProviderError{Provider: geminiProviderName, Code: "PROVIDER_UNAVAILABLE", Message: "request failed", Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 64<<20))
	if err != nil {
		return nil, err
	}

	var parsed geminiGenerateResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("gemini: decode response: %w", err)
	}
	if resp.StatusCode != http.StatusOK || parsed.Error != nil {
		code := "PROVIDER_UNAVAILABLE"
		message := fmt.Sprintf("http %d", resp.StatusCode)
		if parsed.Error != nil {
			if parsed.Error.Status != "" {
				code = parsed.Error.Status
			}
			if parsed.Error.Message != "" {
				message = parsed.Error.Message
			}
		}
		if resp.StatusCode == http.StatusTooManyRequests {
			code = "RATE_LIMITED"
		}
		return nil, &domain.ProviderError{Provider: geminiProviderName, Code: code, Message: message}
	}

	for _, candidate := range parsed.Candidates {
		for _, part := range candidate.Content.Parts {
			if part.InlineData == nil || part.InlineData.Data == "" {
				continue
			}
			data, err := base64.StdEncoding.DecodeString(part.InlineData.Data)
			if err != nil {
				return nil, fmt.Errorf("gemini: decode inline image: %w", err)
			}
			mime := part.InlineData.MimeType
			if mime == "" {
				mime = "image/png"
			}
			return &ShotAsset{Data: data, MIME: mime, Width: 1024, Height: 1024}, nil
		}
	}
	return nil, &domain.ProviderError{Provider: geminiProviderName, Code: "EMPTY_RESPONSE", Message: "no inline image in candidates"}
}

// syntheticShot renders a small flat-color PNG whose color derives from the
// request, so repeated runs of the same shot produce identical bytes.
func syntheticShot(req ShotRequest) *ShotAsset {
	digest := sha256.Sum256([]byte(fmt.Sprintf("%s:%d:%s", req.VariantID, req.ShotIndex, req.Prompt)))
	const size = 64
	img := stdimage.NewRGBA(stdimage.Rect(0, 0, size, size))
	fill := color.RGBA{R: digest[0], G: digest[1], B: digest[2], A: 255}
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			img.SetRGBA(x, y, fill)
		}
	}
	buf := &bytes.Buffer{}
	_ = png.Encode(buf, img)
	return &ShotAsset{Data: buf.Bytes(), MIME: "image/png", Width: size, Height: size}
}

var _ Generator = (*GeminiGenerator)(nil)
