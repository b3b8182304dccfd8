package engine_test

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/book-expert/tortoise-client/internal/core"
	"github.com/book-expert/tortoise-client/internal/tts/audio"
	"github.com/book-expert/tortoise-client/internal/tts/engine"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// The tests in this file run serially: writing an executable while another
// test forks can fail with ETXTBSY.

// fakeEngineScript copies the first voice sample to every candidate slot and
// records its arguments next to itself.
const fakeEngineScript = `#!/bin/sh
echo "$@" > "$(dirname "$0")/args.txt"
out=""
k=1
sample=""
while [ $# -gt 0 ]; do
	case "$1" in
		--output-dir) out="$2"; shift 2 ;;
		--candidates) k="$2"; shift 2 ;;
		--voice-sample) [ -z "$sample" ] && sample="$2"; shift 2 ;;
		*) shift ;;
	esac
done
i=0
while [ "$i" -lt "$k" ]; do
	cp "$sample" "$out/candidate_$i.wav"
	i=$((i + 1))
done
`

const failingEngineScript = `#!/bin/sh
echo "CUDA out of memory" >&2
exit 3
`

func writeScript(t *testing.T, body string) string {
	t.Helper()

	if runtime.GOOS == "windows" {
		t.Skip("shell scripts are not available on windows")
	}

	path := filepath.Join(t.TempDir(), "fake-tortoise")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o700))

	return path
}

func testSamples() []audio.Buffer {
	return []audio.Buffer{
		{Samples: []float32{0.25, -0.25, 0.5}, SampleRate: core.SampleRate},
		{Samples: []float32{0}, SampleRate: core.SampleRate},
	}
}

func TestCommandSession_SynthesizeBatch(t *testing.T) {
	script := writeScript(t, fakeEngineScript)
	cfg := core.EngineConfig{ModelsDir: "/models", AcceleratedDecode: true, KVCache: true}

	session, err := engine.NewCommandSession(script, cfg, createTestLogger(t))
	require.NoError(t, err)

	out, err := session.Synthesize(context.Background(), "hello world", testSamples(), core.ModeUltraFast, 4)
	require.NoError(t, err)
	assert.Nil(t, out.Single)
	require.Len(t, out.Batch, 4)
	assert.Len(t, out.Batch[3].Samples, 3)

	args, err := os.ReadFile(filepath.Join(filepath.Dir(script), "args.txt"))
	require.NoError(t, err)
	assert.Contains(t, string(args), "--models-dir /models")
	assert.Contains(t, string(args), "--preset ultra_fast")
	assert.Contains(t, string(args), "--candidates 4")
	assert.Contains(t, string(args), "--use-deepspeed")
	assert.Contains(t, string(args), "--kv-cache")
	assert.NotContains(t, string(args), "--half")
	assert.Contains(t, string(args), "--text hello world")
}

func TestCommandSession_SingleCandidateIsBare(t *testing.T) {
	session, err := engine.NewCommandSession(writeScript(t, fakeEngineScript), core.EngineConfig{}, createTestLogger(t))
	require.NoError(t, err)

	out, err := session.Synthesize(context.Background(), "hi", testSamples(), core.ModeFast, 1)
	require.NoError(t, err)
	require.NotNil(t, out.Single)
	assert.Empty(t, out.Batch)
}

func TestCommandSession_ExecutableFailure(t *testing.T) {
	session, err := engine.NewCommandSession(writeScript(t, failingEngineScript), core.EngineConfig{}, createTestLogger(t))
	require.NoError(t, err)

	_, err = session.Synthesize(context.Background(), "hi", testSamples(), core.ModeFast, 2)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "CUDA out of memory")
}

func TestCommandSession_MissingCandidates(t *testing.T) {
	session, err := engine.NewCommandSession(writeScript(t, "#!/bin/sh\nexit 0\n"), core.EngineConfig{}, createTestLogger(t))
	require.NoError(t, err)

	_, err = session.Synthesize(context.Background(), "hi", testSamples(), core.ModeFast, 2)
	require.ErrorIs(t, err, engine.ErrMalformedOutput)
}

func TestCommandSession_Closed(t *testing.T) {
	session, err := engine.NewCommandSession(writeScript(t, fakeEngineScript), core.EngineConfig{}, createTestLogger(t))
	require.NoError(t, err)
	require.NoError(t, session.Close())

	_, err = session.Synthesize(context.Background(), "hi", testSamples(), core.ModeFast, 1)
	require.ErrorIs(t, err, engine.ErrSessionClosed)
}

func TestNewCommandSession_MissingExecutable(t *testing.T) {
	_, err := engine.NewCommandSession(filepath.Join(t.TempDir(), "absent"), core.EngineConfig{}, createTestLogger(t))
	require.ErrorIs(t, err, core.ErrConfiguration)
}
