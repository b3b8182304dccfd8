// Package engine provides the out-of-process synthesis engine sessions the
// client drives: a command-line backend and an HTTP backend.
package engine

import (
	"errors"
	"fmt"
	"time"

	"github.com/book-expert/logger"
	"github.com/book-expert/tortoise-client/internal/core"
	"github.com/book-expert/tortoise-client/internal/tts/audio"
)

// Backend names.
const (
	BackendCommand = "command"
	BackendHTTP    = "http"
)

// DefaultBinary is the synthesis executable used when none is configured.
const DefaultBinary = "tortoise-cli"

// candidateFileFormat is the name the engine gives candidate i in its output directory.
const candidateFileFormat = "candidate_%d.wav"

// Static errors.
var (
	ErrUnknownBackend  = errors.New("unknown engine backend")
	ErrMalformedOutput = errors.New("malformed engine output")
)

// Settings selects and parameterizes the engine backend.
type Settings struct {
	Backend    string
	BinaryPath string
	ServiceURL string
	Timeout    time.Duration
}

// New loads an engine session. It is expensive and is meant to be called once
// per client; the returned session is not safe for concurrent use.
func New(settings Settings, cfg core.EngineConfig, log *logger.Logger) (core.EngineSession, error) {
	var (
		session core.EngineSession
		err     error
	)

	switch settings.Backend {
	case "", BackendCommand:
		session, err = NewCommandSession(settings.BinaryPath, cfg, log)
	case BackendHTTP:
		session, err = NewHTTPSession(settings.ServiceURL, settings.Timeout, cfg)
	default:
		return nil, fmt.Errorf("%w: %w %q", core.ErrConfiguration, ErrUnknownBackend, settings.Backend)
	}

	if err != nil {
		return nil, err
	}

	log.Info("Engine session loaded (backend: %s, models: %s)", backendName(settings.Backend), cfg.ModelsDir)

	return session, nil
}

func backendName(backend string) string {
	if backend == "" {
		return BackendCommand
	}

	return backend
}

// asOutput shapes decoded candidates the way the engine contract does: a bare
// buffer for k == 1, the full collection otherwise.
func asOutput(candidates []audio.Buffer, k int) (core.EngineOutput, error) {
	if k != 1 {
		return core.EngineOutput{Batch: candidates}, nil
	}

	if len(candidates) != 1 {
		return core.EngineOutput{}, fmt.Errorf("%w: expected a single candidate, got %d", ErrMalformedOutput, len(candidates))
	}

	single := candidates[0]

	return core.EngineOutput{Single: &single}, nil
}
