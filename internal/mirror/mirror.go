// Package mirror copies the candidates of a finished run to a shared object
// store and announces each one with an AudioChunkCreatedEvent.
package mirror

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"time"

	"github.com/book-expert/events"
	"github.com/book-expert/logger"
	"github.com/book-expert/tortoise-client/internal/batch"
	"github.com/book-expert/tortoise-client/internal/core"
	"github.com/book-expert/tortoise-client/internal/tts/ttsutils"
	"github.com/google/uuid"
)

// Log formats.
const (
	logFmtMirrored     = "Mirrored %s to %s"
	logFmtMirrorFailed = "Failed to mirror candidate %d of run %s: %v"
)

// ErrSubjectEmpty is returned when no event subject is configured.
var ErrSubjectEmpty = errors.New("event subject cannot be empty")

// Publisher sends a message on a subject. *nats.Conn satisfies it.
type Publisher interface {
	Publish(subject string, data []byte) error
}

// Mirror implements core.CandidateSink.
type Mirror struct {
	store     core.ObjectStore
	publisher Publisher
	subject   string
	log       *logger.Logger
	now       func() time.Time
}

var _ core.CandidateSink = (*Mirror)(nil)

// New creates a mirror that uploads into store and publishes on subject.
func New(store core.ObjectStore, publisher Publisher, subject string, log *logger.Logger) (*Mirror, error) {
	if subject == "" {
		return nil, fmt.Errorf("%w: %w", core.ErrConfiguration, ErrSubjectEmpty)
	}

	return &Mirror{
		store:     store,
		publisher: publisher,
		subject:   subject,
		log:       log,
		now:       time.Now,
	}, nil
}

// ObjectKey is the key a candidate file of runID is stored under.
func ObjectKey(runID, filePath string) string {
	return path.Join(runID, filepath.Base(filePath))
}

// Publish mirrors every file independently. Files that fail are logged and
// reported together in the returned error; the others are still mirrored.
func (m *Mirror) Publish(ctx context.Context, runID string, paths []string, total int) error {
	var failures []error

	batch.Collect(
		paths,
		func(position int, filePath string) (string, error) {
			return m.mirrorOne(ctx, runID, position, filePath, total)
		},
		func(position int, err error) {
			m.log.Error(logFmtMirrorFailed, position, runID, err)
			failures = append(failures, err)
		},
	)

	if len(failures) > 0 {
		return fmt.Errorf("%w: %d of %d candidate(s) not mirrored: %w",
			core.ErrMirror, len(failures), len(paths), errors.Join(failures...))
	}

	return nil
}

func (m *Mirror) mirrorOne(ctx context.Context, runID string, position int, filePath string, total int) (string, error) {
	// #nosec G304 -- paths come from the writer's own output directory
	data, err := os.ReadFile(filePath)
	if err != nil {
		return "", fmt.Errorf("failed to read '%s': %w", filePath, err)
	}

	key := ObjectKey(runID, filePath)

	err = m.store.Upload(ctx, key, data)
	if err != nil {
		return "", err
	}

	index, ok := ttsutils.CandidateIndex(runID, filepath.Base(filePath))
	if !ok {
		index = position
	}

	event := events.AudioChunkCreatedEvent{
		Header: events.EventHeader{
			Timestamp:  m.now(),
			WorkflowID: runID,
			EventID:    uuid.NewString(),
		},
		AudioKey:   key,
		PageNumber: index,
		TotalPages: total,
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return "", fmt.Errorf("failed to marshal event for '%s': %w", key, err)
	}

	err = m.publisher.Publish(m.subject, payload)
	if err != nil {
		return "", fmt.Errorf("failed to publish event for '%s' on %s: %w", key, m.subject, err)
	}

	m.log.Info(logFmtMirrored, filePath, key)

	return key, nil
}
