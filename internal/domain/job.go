package domain

import "time"

// AudioType enumerates the supported audio generation job categories. Each
// type binds to exactly one provider adapter at dispatch time.
type AudioType string

const (
	AudioTypeMusic     AudioType = "music"
	AudioTypeSpeech    AudioType = "speech"
	AudioTypeNarration AudioType = "narration"
)

// AudioTypes lists the closed set of valid job categories.
func AudioTypes() []AudioType {
	return []AudioType{AudioTypeMusic, AudioTypeSpeech, AudioTypeNarration}
}

// Valid reports whether t is a member of the closed type set.
func (t AudioType) Valid() bool {
	switch t {
	case AudioTypeMusic, AudioTypeSpeech, AudioTypeNarration:
		return true
	}
	return false
}

// QuotaTier maps the job category to the quota pool it consumes. Music
// generation runs on the premium model family; speech and narration draw
// from the standard pool.
func (t AudioType) QuotaTier() QuotaTier {
	if t == AudioTypeMusic {
		return QuotaTierPremium
	}
	return QuotaTierStandard
}

// JobStatus enumerates the audio job lifecycle.
type JobStatus string

const (
	JobStatusQueued    JobStatus = "queued"
	JobStatusRunning   JobStatus = "running"
	JobStatusSucceeded JobStatus = "succeeded"
	JobStatusFailed    JobStatus = "failed"
)

// AudioJob is a queued unit of audio generation work. Once a worker
// transitions the row queued->running it owns the job exclusively via
// WorkerID; every subsequent status mutation carries that ownership token.
type AudioJob struct {
	ID           string
	UserID       string
	Type         AudioType
	Status       JobStatus
	DurationSec  int
	Preset       string
	Text         string
	VoiceID      string
	WorkerID     string
	ErrorMessage string
	CreatedAt    time.Time
	StartedAt    *time.Time
	CompletedAt  *time.Time
}
