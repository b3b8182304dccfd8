package tts

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/book-expert/logger"
	"github.com/book-expert/tortoise-client/internal/core"
	"github.com/book-expert/tortoise-client/internal/layout"
	"github.com/book-expert/tortoise-client/internal/runid"
	"github.com/book-expert/tortoise-client/internal/tts/audio"
	"github.com/book-expert/tortoise-client/internal/tts/engine"
	"github.com/book-expert/tortoise-client/internal/tts/text"
	"github.com/book-expert/tortoise-client/internal/tts/voice"
)

// Log and error formats.
const (
	logFmtClientReady   = "Synthesis client ready (models: %s, voices: %s, output: %s)"
	logFmtSynthesizing  = "Synthesizing run %s: voice %q, mode %s, %d candidate(s), %d reference clip(s)"
	logFmtRunComplete   = "Run %s complete: %d of %d candidate(s) saved"
	logFmtEmptyVoice    = "Voice %q has no reference clips in %s"
	logFmtMirrorFailed  = "Failed to mirror run %s: %v"
	logFmtCloseFailed   = "Failed to close engine session: %v"
	errFmtClientClosed  = "%w: client is closed"
	errFmtSessionCreate = "failed to create engine session: %w"
)

// Codec reads reference clips and writes candidates.
type Codec interface {
	core.Decoder
	core.Encoder
}

// SessionFactory loads an engine session for the given runtime flags.
type SessionFactory func(cfg core.EngineConfig) (core.EngineSession, error)

// Options configures a Client. The zero value uses the default layout, the
// command engine backend, sorted clip order and no mirroring.
type Options struct {
	Dirs layout.Overrides

	Engine            engine.Settings
	AcceleratedDecode bool
	KVCache           bool
	ReducedPrecision  bool

	SampleOrder     voice.Order
	AllowEmptyVoice bool
	NormalizeText   bool

	// Sink, when set, receives every run's written files. Its failures are
	// logged and never affect the returned Result.
	Sink core.CandidateSink

	// Codec and NewSession replace the WAV codec and the engine backend.
	Codec      Codec
	NewSession SessionFactory
}

// Request describes one synthesis call.
type Request struct {
	Text  string
	Voice string
	// Mode defaults to core.ModeFast when empty.
	Mode core.Mode
	// Count is clamped to [MinCandidates, MaxCandidates].
	Count int
	// RunID is optional. When empty a fresh identifier is generated. Reusing
	// an identifier overwrites the files of the earlier run with the same
	// indices, which makes re-runs with a fixed identifier idempotent.
	RunID string
}

// NewRequest returns a request with the default mode and candidate count.
func NewRequest(input, voiceName string) Request {
	return Request{
		Text:  input,
		Voice: voiceName,
		Mode:  core.ModeFast,
		Count: DefaultCandidates,
	}
}

// Result lists the candidate files written by one call, in index order.
// Paths may hold fewer entries than Requested when individual saves failed.
type Result struct {
	RunID     string
	Paths     []string
	Requested int
}

// Client owns the engine session and the working layout. Synthesize calls
// are serialized on the session.
type Client struct {
	mu           sync.Mutex
	layout       layout.Layout
	session      core.EngineSession
	loader       *voice.Loader
	orchestrator *Orchestrator
	writer       *Writer
	sink         core.CandidateSink
	log          *logger.Logger
}

// NewClient resolves and provisions the working layout and loads the engine
// session once.
func NewClient(log *logger.Logger, opts Options) (*Client, error) {
	resolved, err := layout.Resolve(opts.Dirs)
	if err != nil {
		return nil, err
	}

	err = resolved.Provision()
	if err != nil {
		return nil, err
	}

	codec := opts.Codec
	if codec == nil {
		codec = audio.NewWAVCodec()
	}

	newSession := opts.NewSession
	if newSession == nil {
		newSession = func(cfg core.EngineConfig) (core.EngineSession, error) {
			return engine.New(opts.Engine, cfg, log)
		}
	}

	session, err := newSession(core.EngineConfig{
		ModelsDir:         resolved.ModelsDir,
		AcceleratedDecode: opts.AcceleratedDecode,
		KVCache:           opts.KVCache,
		ReducedPrecision:  opts.ReducedPrecision,
	})
	if err != nil {
		return nil, fmt.Errorf(errFmtSessionCreate, err)
	}

	var normalizer *text.Normalizer
	if opts.NormalizeText {
		normalizer = text.NewNormalizer()
	}

	log.Info(logFmtClientReady, resolved.ModelsDir, resolved.VoiceLibraryDir, resolved.OutputDir)

	return &Client{
		layout:       resolved,
		session:      session,
		loader:       voice.NewLoader(resolved.VoiceLibraryDir, codec, opts.SampleOrder),
		orchestrator: NewOrchestrator(session, normalizer, opts.AllowEmptyVoice, log),
		writer:       NewWriter(resolved.OutputDir, codec, log),
		sink:         opts.Sink,
		log:          log,
	}, nil
}

// Layout returns the resolved working directories.
func (c *Client) Layout() layout.Layout {
	return c.layout
}

// Synthesize generates candidates for req and writes them to the output
// directory. Setup and engine failures are returned as errors; failures to
// save individual candidates only shorten Result.Paths.
func (c *Client) Synthesize(ctx context.Context, req Request) (Result, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.session == nil {
		return Result{}, fmt.Errorf(errFmtClientClosed, core.ErrEngine)
	}

	mode, err := core.ParseMode(string(req.Mode))
	if err != nil {
		return Result{}, err
	}

	id, err := runid.Resolve(req.RunID)
	if err != nil {
		return Result{}, err
	}

	loaded, err := c.loader.Load(req.Voice)
	if err != nil {
		return Result{}, err
	}

	if len(loaded.Samples) == 0 {
		c.log.Warn(logFmtEmptyVoice, req.Voice, c.layout.VoiceDir(req.Voice))
	}

	k := ClampCount(req.Count)
	c.log.Info(logFmtSynthesizing, id, req.Voice, mode, k, len(loaded.Samples))

	candidates, err := c.orchestrator.Generate(ctx, req.Text, loaded.Samples, mode, req.Count)
	if err != nil {
		return Result{}, err
	}

	paths := c.writer.WriteAll(id, candidates)
	c.log.Info(logFmtRunComplete, id, len(paths), k)

	if c.sink != nil && len(paths) > 0 {
		mirrorErr := c.sink.Publish(ctx, id, paths, k)
		if mirrorErr != nil {
			c.log.Warn(logFmtMirrorFailed, id, fmt.Errorf("%w: %w", core.ErrMirror, mirrorErr))
		}
	}

	return Result{RunID: id, Paths: paths, Requested: k}, nil
}

// Close releases the engine session. The client cannot be used afterwards.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.session == nil {
		return nil
	}

	err := c.session.Close()
	c.session = nil

	if err != nil {
		c.log.Error(logFmtCloseFailed, err)

		return errors.Join(core.ErrEngine, err)
	}

	return nil
}
