// Package config provides the configuration structure for the synthesis client.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/book-expert/configurator"
	"github.com/book-expert/logger"
	"github.com/book-expert/tortoise-client/internal/core"
	"github.com/book-expert/tortoise-client/internal/layout"
	"github.com/book-expert/tortoise-client/internal/tts"
	"github.com/book-expert/tortoise-client/internal/tts/engine"
	"github.com/book-expert/tortoise-client/internal/tts/voice"
	"github.com/caarlos0/env/v11"
	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// Defaults applied by Validate.
const (
	DefaultBaseLogsDir         = "logs"
	DefaultAudioBucket         = "AUDIO_FILES"
	DefaultAudioCreatedSubject = "audio.chunk.created"
)

// PathsConfig holds the working directories. Empty values select the
// layout defaults.
type PathsConfig struct {
	ModelsDir       string `toml:"models_dir"        yaml:"models_dir"        env:"TORTOISE_MODELS_DIR"`
	VoiceLibraryDir string `toml:"voice_library_dir" yaml:"voice_library_dir" env:"TORTOISE_VOICE_LIBRARY_DIR"`
	OutputDir       string `toml:"output_dir"        yaml:"output_dir"        env:"TORTOISE_OUTPUT_DIR"`
	BaseLogsDir     string `toml:"base_logs_dir"     yaml:"base_logs_dir"     env:"TORTOISE_LOGS_DIR"`
}

// EngineConfig selects the synthesis backend and its runtime flags.
type EngineConfig struct {
	Backend           string `toml:"backend"            yaml:"backend"            env:"TORTOISE_ENGINE_BACKEND"`
	BinaryPath        string `toml:"binary_path"        yaml:"binary_path"        env:"TORTOISE_ENGINE_BINARY"`
	ServiceURL        string `toml:"service_url"        yaml:"service_url"        env:"TORTOISE_ENGINE_URL"`
	TimeoutSeconds    int    `toml:"timeout_seconds"    yaml:"timeout_seconds"    env:"TORTOISE_ENGINE_TIMEOUT_SECONDS"`
	AcceleratedDecode bool   `toml:"accelerated_decode" yaml:"accelerated_decode" env:"TORTOISE_ACCELERATED_DECODE"`
	KVCache           bool   `toml:"kv_cache"           yaml:"kv_cache"           env:"TORTOISE_KV_CACHE"`
	ReducedPrecision  bool   `toml:"reduced_precision"  yaml:"reduced_precision"  env:"TORTOISE_REDUCED_PRECISION"`
}

// SynthesisConfig holds request defaults and loading behavior. A nil
// Candidates means the request default applies; an explicit value, zero
// included, is passed through and clamped by the request.
type SynthesisConfig struct {
	Mode            string `toml:"mode"              yaml:"mode"              env:"TORTOISE_MODE"`
	Candidates      *int   `toml:"candidates"        yaml:"candidates"        env:"TORTOISE_CANDIDATES"`
	SampleOrder     string `toml:"sample_order"      yaml:"sample_order"      env:"TORTOISE_SAMPLE_ORDER"`
	AllowEmptyVoice bool   `toml:"allow_empty_voice" yaml:"allow_empty_voice" env:"TORTOISE_ALLOW_EMPTY_VOICE"`
	NormalizeText   bool   `toml:"normalize_text"    yaml:"normalize_text"    env:"TORTOISE_NORMALIZE_TEXT"`
}

// NATSConfig holds the configuration for result mirroring. Mirroring is
// disabled when URL is empty.
type NATSConfig struct {
	URL                    string `toml:"url"                       yaml:"url"                       env:"TORTOISE_NATS_URL"`
	AudioObjectStoreBucket string `toml:"audio_object_store_bucket" yaml:"audio_object_store_bucket" env:"TORTOISE_NATS_BUCKET"`
	AudioCreatedSubject    string `toml:"audio_created_subject"     yaml:"audio_created_subject"     env:"TORTOISE_NATS_SUBJECT"`
}

// Config is the root configuration structure. Environment variables
// override file values.
type Config struct {
	Paths     PathsConfig     `toml:"paths"     yaml:"paths"`
	Engine    EngineConfig    `toml:"engine"    yaml:"engine"`
	Synthesis SynthesisConfig `toml:"synthesis" yaml:"synthesis"`
	NATS      NATSConfig      `toml:"nats"      yaml:"nats"`
}

// Load loads the configuration through the shared configurator and validates it.
func Load(log *logger.Logger) (*Config, error) {
	var cfg Config

	err := configurator.Load(&cfg, log)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration from configurator: %w", err)
	}

	return finish(&cfg)
}

// LoadFile reads a configuration file and validates it. Files ending in
// .yaml or .yml are parsed as YAML, everything else as TOML.
func LoadFile(path string) (*Config, error) {
	// #nosec G304 -- the configuration path is chosen by the operator
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read config file '%s': %w", core.ErrConfiguration, path, err)
	}

	var cfg Config

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &cfg)
	default:
		err = toml.Unmarshal(data, &cfg)
	}

	if err != nil {
		return nil, fmt.Errorf("%w: failed to parse config file '%s': %w", core.ErrConfiguration, path, err)
	}

	return finish(&cfg)
}

// ApplyEnv overrides cfg with the TORTOISE_* environment variables that are set.
func ApplyEnv(cfg *Config) error {
	err := env.Parse(cfg)
	if err != nil {
		return fmt.Errorf("%w: invalid environment override: %w", core.ErrConfiguration, err)
	}

	return nil
}

func finish(cfg *Config) (*Config, error) {
	err := ApplyEnv(cfg)
	if err != nil {
		return nil, err
	}

	err = cfg.Validate()
	if err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate fills in defaults and rejects values the client cannot use.
// Candidate counts are not range checked; requests clamp them.
func (c *Config) Validate() error {
	if c.Paths.BaseLogsDir == "" {
		c.Paths.BaseLogsDir = DefaultBaseLogsDir
	}

	switch c.Engine.Backend {
	case "":
		c.Engine.Backend = engine.BackendCommand
	case engine.BackendCommand:
	case engine.BackendHTTP:
		if c.Engine.ServiceURL == "" {
			return fmt.Errorf("%w: engine.service_url is required for the http backend", core.ErrConfiguration)
		}
	default:
		return fmt.Errorf("%w: %w %q", core.ErrConfiguration, engine.ErrUnknownBackend, c.Engine.Backend)
	}

	if c.Engine.TimeoutSeconds < 0 {
		return fmt.Errorf("%w: engine.timeout_seconds must be non-negative, got %d", core.ErrConfiguration, c.Engine.TimeoutSeconds)
	}

	mode, err := core.ParseMode(c.Synthesis.Mode)
	if err != nil {
		return fmt.Errorf("%w: %w", core.ErrConfiguration, err)
	}

	c.Synthesis.Mode = string(mode)

	_, err = voice.ParseOrder(c.Synthesis.SampleOrder)
	if err != nil {
		return err
	}

	if c.NATS.URL != "" {
		if c.NATS.AudioObjectStoreBucket == "" {
			c.NATS.AudioObjectStoreBucket = DefaultAudioBucket
		}

		if c.NATS.AudioCreatedSubject == "" {
			c.NATS.AudioCreatedSubject = DefaultAudioCreatedSubject
		}
	}

	return nil
}

// MirrorEnabled reports whether written candidates are mirrored to NATS.
func (c *Config) MirrorEnabled() bool {
	return c.NATS.URL != ""
}

// Options maps the configuration onto client options. The sink is left for
// the caller to attach.
func (c *Config) Options() (tts.Options, error) {
	order, err := voice.ParseOrder(c.Synthesis.SampleOrder)
	if err != nil {
		return tts.Options{}, err
	}

	return tts.Options{
		Dirs: layout.Overrides{
			ModelsDir:       c.Paths.ModelsDir,
			VoiceLibraryDir: c.Paths.VoiceLibraryDir,
			OutputDir:       c.Paths.OutputDir,
		},
		Engine: engine.Settings{
			Backend:    c.Engine.Backend,
			BinaryPath: c.Engine.BinaryPath,
			ServiceURL: c.Engine.ServiceURL,
			Timeout:    time.Duration(c.Engine.TimeoutSeconds) * time.Second,
		},
		AcceleratedDecode: c.Engine.AcceleratedDecode,
		KVCache:           c.Engine.KVCache,
		ReducedPrecision:  c.Engine.ReducedPrecision,
		SampleOrder:       order,
		AllowEmptyVoice:   c.Synthesis.AllowEmptyVoice,
		NormalizeText:     c.Synthesis.NormalizeText,
	}, nil
}

// Request builds a request carrying the configured mode and candidate count.
func (c *Config) Request(input, voiceName string) tts.Request {
	req := tts.NewRequest(input, voiceName)
	req.Mode = core.Mode(c.Synthesis.Mode)

	if c.Synthesis.Candidates != nil {
		req.Count = *c.Synthesis.Candidates
	}

	return req
}
