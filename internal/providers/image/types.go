package image

import "context"

// ShotRequest is the normalized request for one shot generation call.
type ShotRequest struct {
	VariantID   string
	ShotIndex   int
	Prompt      string
	AspectRatio string
}

// ShotAsset is a generated still image.
type ShotAsset struct {
	Data   []byte
	MIME   string
	Width  int
	Height int
}

// Generator is the contract implemented by shot image providers.
type Generator interface {
	Name() string
	GenerateShot(ctx context.Context, req ShotRequest) (*ShotAsset, error)
}
