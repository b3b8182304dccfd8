// Package tts turns a text and a named voice into synthesized candidate WAV
// files. It drives one long-lived engine session, normalizes the engine's
// output and persists every candidate independently.
package tts

import (
	"context"
	"fmt"
	"strings"

	"github.com/book-expert/logger"
	"github.com/book-expert/tortoise-client/internal/core"
	"github.com/book-expert/tortoise-client/internal/tts/audio"
	"github.com/book-expert/tortoise-client/internal/tts/text"
)

// Candidate count bounds.
const (
	MinCandidates     = 1
	MaxCandidates     = 10
	DefaultCandidates = 3
)

// Error messages.
const (
	errFmtShapeMismatch = "%w: engine returned %d candidates, expected %d"
	errFmtSynthesis     = "%w: synthesis failed: %w"
)

// ClampCount bounds a requested candidate count to [MinCandidates, MaxCandidates].
// Out of range values are adjusted, never rejected.
func ClampCount(n int) int {
	return max(MinCandidates, min(MaxCandidates, n))
}

// Orchestrator invokes the engine session and hands back a uniform candidate
// collection whatever the requested count.
type Orchestrator struct {
	session         core.EngineSession
	normalizer      *text.Normalizer
	allowEmptyVoice bool
	log             *logger.Logger
}

// NewOrchestrator wraps session. A nil normalizer passes text through untouched.
func NewOrchestrator(session core.EngineSession, normalizer *text.Normalizer, allowEmptyVoice bool, log *logger.Logger) *Orchestrator {
	return &Orchestrator{
		session:         session,
		normalizer:      normalizer,
		allowEmptyVoice: allowEmptyVoice,
		log:             log,
	}
}

// Generate clamps count, calls the engine exactly once and returns exactly
// ClampCount(count) candidates in generation order. Engine failures are
// wrapped in core.ErrEngine and are not retried.
func (o *Orchestrator) Generate(
	ctx context.Context,
	input string,
	samples []audio.Buffer,
	mode core.Mode,
	count int,
) ([]audio.Buffer, error) {
	k := ClampCount(count)
	if k != count {
		o.log.Info("Candidate count %d adjusted to %d", count, k)
	}

	prompt, err := o.prepareText(input)
	if err != nil {
		return nil, err
	}

	if len(samples) == 0 && !o.allowEmptyVoice {
		return nil, fmt.Errorf("%w: %w", core.ErrInvalidRequest, core.ErrNoVoiceSamples)
	}

	out, err := o.session.Synthesize(ctx, prompt, samples, mode, k)
	if err != nil {
		return nil, fmt.Errorf(errFmtSynthesis, core.ErrEngine, err)
	}

	return normalizeOutput(out, k)
}

func (o *Orchestrator) prepareText(input string) (string, error) {
	prompt := input
	if o.normalizer != nil {
		prompt = o.normalizer.Normalize(input)
	}

	if strings.TrimSpace(prompt) == "" {
		return "", fmt.Errorf("%w: text cannot be empty", core.ErrInvalidRequest)
	}

	return prompt, nil
}

// normalizeOutput folds the bare single-candidate shape and the collection
// shape into one slice of length k.
func normalizeOutput(out core.EngineOutput, k int) ([]audio.Buffer, error) {
	if out.Single != nil {
		if k != 1 || len(out.Batch) != 0 {
			return nil, fmt.Errorf(errFmtShapeMismatch, core.ErrEngine, 1+len(out.Batch), k)
		}

		return []audio.Buffer{*out.Single}, nil
	}

	if len(out.Batch) != k {
		return nil, fmt.Errorf(errFmtShapeMismatch, core.ErrEngine, len(out.Batch), k)
	}

	return out.Batch, nil
}
