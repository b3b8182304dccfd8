package engine

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"

	"github.com/book-expert/logger"
	"github.com/book-expert/tortoise-client/internal/core"
	"github.com/book-expert/tortoise-client/internal/tts/audio"
)

// Command line flags understood by the synthesis executable.
const (
	flagModelsDir    = "--models-dir"
	flagPreset       = "--preset"
	flagCandidates   = "--candidates"
	flagOutputDir    = "--output-dir"
	flagText         = "--text"
	flagVoiceSample  = "--voice-sample"
	flagUseDeepSpeed = "--use-deepspeed"
	flagKVCache      = "--kv-cache"
	flagHalf         = "--half"

	voiceSampleFormat = "voice_%02d.wav"
	tempDirPattern    = "tortoise-run-*"
)

// ErrSessionClosed is returned when a closed session is used.
var ErrSessionClosed = errors.New("engine session is closed")

// CommandSession runs the synthesis executable once per call. Reference clips
// are handed over as WAV files in a private temporary directory and the
// candidates are read back from it.
type CommandSession struct {
	binary string
	config core.EngineConfig
	log    *logger.Logger
	closed bool
}

// NewCommandSession resolves binary on PATH (DefaultBinary when empty).
func NewCommandSession(binary string, cfg core.EngineConfig, log *logger.Logger) (*CommandSession, error) {
	if binary == "" {
		binary = DefaultBinary
	}

	resolved, err := exec.LookPath(binary)
	if err != nil {
		return nil, fmt.Errorf("%w: synthesis executable %q not found: %w", core.ErrConfiguration, binary, err)
	}

	return &CommandSession{
		binary: resolved,
		config: cfg,
		log:    log,
	}, nil
}

// Synthesize runs the executable and returns k candidates; a bare buffer when k == 1.
func (s *CommandSession) Synthesize(
	ctx context.Context,
	text string,
	samples []audio.Buffer,
	mode core.Mode,
	k int,
) (core.EngineOutput, error) {
	if s.closed {
		return core.EngineOutput{}, ErrSessionClosed
	}

	workDir, err := os.MkdirTemp("", tempDirPattern)
	if err != nil {
		return core.EngineOutput{}, fmt.Errorf("failed to create engine work directory: %w", err)
	}

	defer func() {
		removeErr := os.RemoveAll(workDir)
		if removeErr != nil {
			s.log.Warn("Failed to remove engine work directory '%s': %v", workDir, removeErr)
		}
	}()

	samplePaths, err := writeSamples(workDir, samples)
	if err != nil {
		return core.EngineOutput{}, err
	}

	outputDir := filepath.Join(workDir, "out")

	err = os.Mkdir(outputDir, 0o700)
	if err != nil {
		return core.EngineOutput{}, fmt.Errorf("failed to create engine output directory: %w", err)
	}

	args := s.buildArgs(text, samplePaths, mode, k, outputDir)

	// #nosec G204 -- binary is resolved once at construction, arguments are passed without a shell
	cmd := exec.CommandContext(ctx, s.binary, args...)

	output, err := cmd.CombinedOutput()
	if err != nil {
		return core.EngineOutput{}, fmt.Errorf("synthesis executable failed: %w - output: %s", err, string(output))
	}

	candidates, err := readCandidates(outputDir, k)
	if err != nil {
		return core.EngineOutput{}, err
	}

	return asOutput(candidates, k)
}

// Close marks the session unusable.
func (s *CommandSession) Close() error {
	s.closed = true

	return nil
}

func (s *CommandSession) buildArgs(text string, samplePaths []string, mode core.Mode, k int, outputDir string) []string {
	args := []string{
		flagModelsDir, s.config.ModelsDir,
		flagPreset, string(mode),
		flagCandidates, strconv.Itoa(k),
		flagOutputDir, outputDir,
	}

	for _, path := range samplePaths {
		args = append(args, flagVoiceSample, path)
	}

	if s.config.AcceleratedDecode {
		args = append(args, flagUseDeepSpeed)
	}

	if s.config.KVCache {
		args = append(args, flagKVCache)
	}

	if s.config.ReducedPrecision {
		args = append(args, flagHalf)
	}

	return append(args, flagText, text)
}

func writeSamples(workDir string, samples []audio.Buffer) ([]string, error) {
	paths := make([]string, 0, len(samples))

	for index, sample := range samples {
		data, err := audio.EncodeWAV(sample)
		if err != nil {
			return nil, fmt.Errorf("failed to encode voice sample %d: %w", index, err)
		}

		path := filepath.Join(workDir, fmt.Sprintf(voiceSampleFormat, index))

		err = os.WriteFile(path, data, 0o600)
		if err != nil {
			return nil, fmt.Errorf("failed to write voice sample %d: %w", index, err)
		}

		paths = append(paths, path)
	}

	return paths, nil
}

func readCandidates(outputDir string, k int) ([]audio.Buffer, error) {
	candidates := make([]audio.Buffer, 0, k)

	for index := range k {
		path := filepath.Join(outputDir, fmt.Sprintf(candidateFileFormat, index))

		// #nosec G304 -- path is built inside the session's own work directory
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("%w: missing candidate %d: %w", ErrMalformedOutput, index, err)
		}

		buf, err := audio.DecodeWAV(data)
		if err != nil {
			return nil, fmt.Errorf("%w: candidate %d: %w", ErrMalformedOutput, index, err)
		}

		candidates = append(candidates, buf)
	}

	return candidates, nil
}
