package tts

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/book-expert/logger"
	"github.com/book-expert/tortoise-client/internal/batch"
	"github.com/book-expert/tortoise-client/internal/core"
	"github.com/book-expert/tortoise-client/internal/tts/audio"
	"github.com/book-expert/tortoise-client/internal/tts/ttsutils"
)

// Log formats.
const (
	logFmtSaved      = "Saved audio file: %s (%s, %s)"
	logFmtSaveFailed = "Failed to save audio file: %v"
)

// Writer persists candidates as <outputDir>/<runID>_<index>.wav.
type Writer struct {
	outputDir string
	encoder   core.Encoder
	log       *logger.Logger
}

// NewWriter creates a writer into outputDir.
func NewWriter(outputDir string, encoder core.Encoder, log *logger.Logger) *Writer {
	return &Writer{
		outputDir: outputDir,
		encoder:   encoder,
		log:       log,
	}
}

// Path returns the file a candidate index of runID is written to.
func (w *Writer) Path(runID string, index int) string {
	return filepath.Join(w.outputDir, ttsutils.CandidateFileName(runID, index))
}

// WriteAll writes every candidate at core.SampleRate, resampling candidates
// that carry a different rate. Each write is isolated:
// a failed candidate is logged and left out, and the remaining candidates
// are still written. The result lists the paths actually written, in index
// order; it may be empty but is never nil.
func (w *Writer) WriteAll(runID string, candidates []audio.Buffer) []string {
	return batch.Collect(
		candidates,
		func(index int, candidate audio.Buffer) (string, error) {
			return w.write(runID, index, candidate)
		},
		func(_ int, err error) {
			w.log.Error(logFmtSaveFailed, err)
		},
	)
}

func (w *Writer) write(runID string, index int, candidate audio.Buffer) (string, error) {
	path := w.Path(runID, index)

	if candidate.SampleRate > 0 && candidate.SampleRate != core.SampleRate {
		candidate = audio.Resample(candidate, core.SampleRate)
	}

	err := w.encoder.Encode(path, candidate, core.SampleRate)
	if err != nil {
		return "", fmt.Errorf("%w: candidate %d to %s: %w", core.ErrSave, index, path, err)
	}

	size := "unknown size"
	if info, statErr := os.Stat(path); statErr == nil {
		size = ttsutils.FormatFileSize(info.Size())
	}

	written := audio.Buffer{Samples: candidate.Samples, SampleRate: core.SampleRate}
	w.log.Info(logFmtSaved, path, ttsutils.FormatDuration(written.Duration()), size)

	return path, nil
}
