// Package core defines the core types and collaborator interfaces for the synthesis client.
package core

import (
	"context"
	"fmt"

	"github.com/book-expert/tortoise-client/internal/tts/audio"
)

// SampleRate is the rate, in Hz, of every reference clip handed to the engine
// and of every candidate written to disk.
const SampleRate = 22050

// Mode is a named quality/speed preset consumed opaquely by the engine.
type Mode string

// Supported generation modes.
const (
	ModeFast      Mode = "fast"
	ModeUltraFast Mode = "ultra_fast"
	ModeStandard  Mode = "standard"
)

// ParseMode maps a preset name to a Mode. An empty name selects ModeFast.
func ParseMode(name string) (Mode, error) {
	switch Mode(name) {
	case "":
		return ModeFast, nil
	case ModeFast, ModeUltraFast, ModeStandard:
		return Mode(name), nil
	default:
		return "", fmt.Errorf("%w: unknown mode %q", ErrInvalidRequest, name)
	}
}

// EngineConfig holds the runtime flags an engine session is loaded with.
type EngineConfig struct {
	ModelsDir         string
	AcceleratedDecode bool
	KVCache           bool
	ReducedPrecision  bool
}

// EngineOutput is the raw result of one engine invocation. The engine fills
// Single when exactly one candidate was requested and Batch otherwise.
type EngineOutput struct {
	Single *audio.Buffer
	Batch  []audio.Buffer
}

// EngineSession is a loaded synthesis model. Sessions are expensive to create
// and are reused for the lifetime of a client. Implementations are not
// required to be safe for concurrent use.
type EngineSession interface {
	Synthesize(ctx context.Context, text string, samples []audio.Buffer, mode Mode, k int) (EngineOutput, error)
	Close() error
}

// Decoder reads an audio file into a mono buffer at the target sample rate.
type Decoder interface {
	Decode(path string, targetRate int) (audio.Buffer, error)
}

// Encoder writes a buffer to path at the given sample rate.
type Encoder interface {
	Encode(path string, buf audio.Buffer, sampleRate int) error
}

// ObjectStore defines the interface for interacting with a key-value blob store.
type ObjectStore interface {
	Download(ctx context.Context, key string) ([]byte, error)
	Upload(ctx context.Context, key string, data []byte) error
}

// CandidateSink receives every candidate file that was written for a run.
type CandidateSink interface {
	Publish(ctx context.Context, runID string, paths []string, total int) error
}
