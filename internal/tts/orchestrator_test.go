package tts_test

import (
	"context"
	"testing"

	"github.com/book-expert/tortoise-client/internal/core"
	"github.com/book-expert/tortoise-client/internal/tts"
	"github.com/book-expert/tortoise-client/internal/tts/audio"
	"github.com/book-expert/tortoise-client/internal/tts/text"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func oneSample() []audio.Buffer {
	return []audio.Buffer{{Samples: []float32{0}, SampleRate: core.SampleRate}}
}

func TestClampCount(t *testing.T) {
	t.Parallel()

	for n := -20; n <= 30; n++ {
		assert.Equal(t, max(1, min(10, n)), tts.ClampCount(n), "n=%d", n)
	}
}

func TestOrchestrator_InvokesEngineOnceWithClampedCount(t *testing.T) {
	t.Parallel()

	for _, requested := range []int{-3, 0, 1, 2, 5, 10, 11, 15, 1000} {
		session := &fakeSession{}
		orchestrator := tts.NewOrchestrator(session, nil, false, createTestLogger(t))

		candidates, err := orchestrator.Generate(context.Background(), "hello world", oneSample(), core.ModeFast, requested)
		require.NoError(t, err)

		want := max(1, min(10, requested))
		assert.Equal(t, 1, session.calls)
		assert.Equal(t, []int{want}, session.gotK)
		assert.Len(t, candidates, want, "requested=%d", requested)
	}
}

func TestOrchestrator_NormalizesSingleCandidate(t *testing.T) {
	t.Parallel()

	session := &fakeSession{}
	orchestrator := tts.NewOrchestrator(session, nil, false, createTestLogger(t))

	candidates, err := orchestrator.Generate(context.Background(), "hello", oneSample(), core.ModeFast, 1)
	require.NoError(t, err)
	require.Len(t, candidates, 1)
	assert.InDelta(t, 0.01, candidates[0].Samples[0], 1e-6)
}

func TestOrchestrator_AcceptsBatchOfOne(t *testing.T) {
	t.Parallel()

	session := &fakeSession{output: func(int) core.EngineOutput {
		return core.EngineOutput{Batch: oneSample()}
	}}
	orchestrator := tts.NewOrchestrator(session, nil, false, createTestLogger(t))

	candidates, err := orchestrator.Generate(context.Background(), "hello", oneSample(), core.ModeFast, 1)
	require.NoError(t, err)
	assert.Len(t, candidates, 1)
}

func TestOrchestrator_RejectsShapeMismatch(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		output core.EngineOutput
		count  int
	}{
		{name: "short batch", output: core.EngineOutput{Batch: oneSample()}, count: 3},
		{name: "bare buffer for many", output: core.EngineOutput{Single: &oneSample()[0]}, count: 2},
		{name: "empty output", output: core.EngineOutput{}, count: 1},
	}

	for _, testCase := range tests {
		t.Run(testCase.name, func(t *testing.T) {
			t.Parallel()

			session := &fakeSession{output: func(int) core.EngineOutput { return testCase.output }}
			orchestrator := tts.NewOrchestrator(session, nil, false, createTestLogger(t))

			_, err := orchestrator.Generate(context.Background(), "hello", oneSample(), core.ModeFast, testCase.count)
			require.ErrorIs(t, err, core.ErrEngine)
		})
	}
}

func TestOrchestrator_PropagatesEngineFailureWithoutRetry(t *testing.T) {
	t.Parallel()

	session := &fakeSession{failWith: errMockEngine}
	orchestrator := tts.NewOrchestrator(session, nil, false, createTestLogger(t))

	_, err := orchestrator.Generate(context.Background(), "hello", oneSample(), core.ModeStandard, 3)
	require.ErrorIs(t, err, core.ErrEngine)
	require.ErrorIs(t, err, errMockEngine)
	assert.Equal(t, 1, session.calls)
}

func TestOrchestrator_RejectsEmptyText(t *testing.T) {
	t.Parallel()

	session := &fakeSession{}
	orchestrator := tts.NewOrchestrator(session, text.NewNormalizer(), false, createTestLogger(t))

	_, err := orchestrator.Generate(context.Background(), "  \n ", oneSample(), core.ModeFast, 3)
	require.ErrorIs(t, err, core.ErrInvalidRequest)
	assert.Zero(t, session.calls)
}

func TestOrchestrator_EmptyVoice(t *testing.T) {
	t.Parallel()

	strict := &fakeSession{}

	_, err := tts.NewOrchestrator(strict, nil, false, createTestLogger(t)).
		Generate(context.Background(), "hello", nil, core.ModeFast, 2)
	require.ErrorIs(t, err, core.ErrNoVoiceSamples)
	require.ErrorIs(t, err, core.ErrInvalidRequest)
	assert.Zero(t, strict.calls)

	lenient := &fakeSession{}

	candidates, err := tts.NewOrchestrator(lenient, nil, true, createTestLogger(t)).
		Generate(context.Background(), "hello", nil, core.ModeFast, 2)
	require.NoError(t, err)
	assert.Len(t, candidates, 2)
	assert.Equal(t, []int{0}, lenient.gotSamples)
}

func TestOrchestrator_NormalizesText(t *testing.T) {
	t.Parallel()

	session := &fakeSession{}
	orchestrator := tts.NewOrchestrator(session, text.NewNormalizer(), false, createTestLogger(t))

	_, err := orchestrator.Generate(context.Background(), "Dr. Who has 2 hearts", oneSample(), core.ModeFast, 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"Doctor Who has two hearts."}, session.gotText)
}
