package domain

import "time"

// VariantStatus enumerates the shot-generation lifecycle of one ad variant.
// Terminal states are shots_ready, shots_partial and generation_failed;
// callers observe them by polling.
type VariantStatus string

const (
	VariantStatusQueued          VariantStatus = "queued"
	VariantStatusGenerating      VariantStatus = "generating_shots"
	VariantStatusShotsReady      VariantStatus = "shots_ready"
	VariantStatusShotsPartial    VariantStatus = "shots_partial"
	VariantStatusGenerationError VariantStatus = "generation_failed"
)

// AdPack groups variants for A/B testing against one product.
type AdPack struct {
	ID          string
	UserID      string
	ProductName string
	Brief       string
	// ReferenceImageURLs are additional product references. They are never
	// passed to the image model directly; the planner folds them into
	// textual constraints instead.
	ReferenceImageURLs []string
	CreatedAt          time.Time
}

// Variant is one candidate ad within a pack.
type Variant struct {
	ID           string
	PackID       string
	UserID       string
	Angle        string
	Status       VariantStatus
	ErrorMessage string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// ShotResult records the outcome of one shot slot within a variant's accepted
// plan, from the attempt that succeeded (or the last failing one).
type ShotResult struct {
	VariantID  string
	Index      int
	Type       ShotType
	Role       ShotRole
	Attempt    int
	StorageKey string
	Error      string
	CreatedAt  time.Time
}
