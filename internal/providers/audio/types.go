package audio

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/binary"
)

// GenerateRequest is the normalized request passed to any audio provider.
type GenerateRequest struct {
	JobID       string
	UserID      string
	DurationSec int
	Preset      string
	Text        string
	VoiceID     string
	Locale      string
}

// Asset is a generated audio blob plus its metadata.
type Asset struct {
	Data []byte
	MIME string
}

// Generator is the contract implemented by all audio providers.
type Generator interface {
	Name() string
	Generate(ctx context.Context, req GenerateRequest) (*Asset, error)
}

const (
	synthSampleRate = 8000
	maxSynthSeconds = 30
)

// synthWAV produces a small deterministic PCM WAV derived from the seed.
// Providers fall back to it when no API key is configured, which keeps the
// worker operational in local and CI environments.
func synthWAV(seed string, seconds int) []byte {
	if seconds <= 0 {
		seconds = 1
	}
	if seconds > maxSynthSeconds {
		seconds = maxSynthSeconds
	}
	samples := synthSampleRate * seconds

	digest := sha256.Sum256([]byte(seed))
	pcm := make([]byte, samples)
	state := digest[:]
	for i := 0; i < samples; i += len(state) {
		copy(pcm[i:], state)
		next := sha256.Sum256(state)
		state = next[:]
	}

	buf := &bytes.Buffer{}
	buf.WriteString("RIFF")
	binary.Write(buf, binary.LittleEndian, uint32(36+samples))
	buf.WriteString("WAVEfmt ")
	binary.Write(buf, binary.LittleEndian, uint32(16))
	binary.Write(buf, binary.LittleEndian, uint16(1)) // PCM
	binary.Write(buf, binary.LittleEndian, uint16(1)) // mono
	binary.Write(buf, binary.LittleEndian, uint32(synthSampleRate))
	binary.Write(buf, binary.LittleEndian, uint32(synthSampleRate))
	binary.Write(buf, binary.LittleEndian, uint16(1)) // block align
	binary.Write(buf, binary.LittleEndian, uint16(8)) // bits per sample
	buf.WriteString("data")
	binary.Write(buf, binary.LittleEndian, uint32(samples))
	buf.Write(pcm)
	return buf.Bytes()
}
