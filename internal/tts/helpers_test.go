package tts_test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/book-expert/logger"
	"github.com/book-expert/tortoise-client/internal/core"
	"github.com/book-expert/tortoise-client/internal/tts/audio"
	"github.com/stretchr/testify/require"
)

var (
	errMockEngine = errors.New("mock engine error")
	errMockWrite  = errors.New("mock write error")
)

// fakeSession stands in for the synthesis engine. It follows the engine
// contract (bare buffer for k == 1) unless output is set.
type fakeSession struct {
	mu         sync.Mutex
	calls      int
	gotK       []int
	gotText    []string
	gotSamples []int
	gotMode    []core.Mode
	failWith   error
	output     func(k int) core.EngineOutput
	closed     bool
	sampleRate int
}

func (f *fakeSession) Synthesize(
	_ context.Context,
	text string,
	samples []audio.Buffer,
	mode core.Mode,
	k int,
) (core.EngineOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls++
	f.gotK = append(f.gotK, k)
	f.gotText = append(f.gotText, text)
	f.gotSamples = append(f.gotSamples, len(samples))
	f.gotMode = append(f.gotMode, mode)

	if f.failWith != nil {
		return core.EngineOutput{}, f.failWith
	}

	if f.output != nil {
		return f.output(k), nil
	}

	rate := f.sampleRate
	if rate == 0 {
		rate = core.SampleRate
	}

	// the first sample marks the call, the second the candidate index
	candidates := make([]audio.Buffer, k)
	for i := range candidates {
		candidates[i] = audio.Buffer{
			Samples:    []float32{float32(f.calls) / 100, float32(i) / 100},
			SampleRate: rate,
		}
	}

	if k == 1 {
		return core.EngineOutput{Single: &candidates[0]}, nil
	}

	return core.EngineOutput{Batch: candidates}, nil
}

func (f *fakeSession) Close() error {
	f.closed = true

	return nil
}

// failingCodec is the WAV codec with writes of one candidate index failing.
type failingCodec struct {
	audio.WAVCodec

	failIndex int
}

func (c failingCodec) Encode(path string, buf audio.Buffer, sampleRate int) error {
	if strings.HasSuffix(filepath.Base(path), fmt.Sprintf("_%d.wav", c.failIndex)) {
		return errMockWrite
	}

	return c.WAVCodec.Encode(path, buf, sampleRate)
}

// alwaysFailingCodec fails every write.
type alwaysFailingCodec struct {
	audio.WAVCodec
}

func (alwaysFailingCodec) Encode(string, audio.Buffer, int) error {
	return errMockWrite
}

func createTestLogger(t *testing.T) *logger.Logger {
	t.Helper()

	lg, err := logger.New(t.TempDir(), "tts-test.log")
	require.NoError(t, err)

	t.Cleanup(func() { _ = lg.Close() })

	return lg
}

// writeVoice creates a voice directory holding count reference clips.
func writeVoice(t *testing.T, library, name string, count int) {
	t.Helper()

	dir := filepath.Join(library, name)
	require.NoError(t, os.MkdirAll(dir, 0o750))

	for i := range count {
		data, err := audio.EncodeWAV(audio.Buffer{Samples: []float32{0.1, 0.2, 0.3}, SampleRate: 44100})
		require.NoError(t, err)
		require.NoError(t, os.WriteFile(filepath.Join(dir, fmt.Sprintf("clip%d.wav", i)), data, 0o600))
	}
}
