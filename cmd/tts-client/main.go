// main package for the tts-client
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"io/fs"
	"os"
	"os/signal"
	"syscall"

	"github.com/book-expert/logger"
	"github.com/book-expert/tortoise-client/internal/config"
	"github.com/book-expert/tortoise-client/internal/core"
	"github.com/book-expert/tortoise-client/internal/mirror"
	"github.com/book-expert/tortoise-client/internal/objectstore"
	"github.com/book-expert/tortoise-client/internal/tts"
	"github.com/book-expert/tortoise-client/internal/tts/ttsutils"
	"github.com/joho/godotenv"
	"github.com/nats-io/nats.go"
)

// Flag names.
const (
	flagText   = "text"
	flagVoice  = "voice"
	flagMode   = "mode"
	flagCount  = "count"
	flagID     = "id"
	flagConfig = "config"
	flagEnv    = "env"
)

// Flag descriptions.
const (
	flagTextDesc   = "Text to synthesize"
	flagVoiceDesc  = "Name of the voice directory in the voice library"
	flagModeDesc   = "Generation mode: fast, ultra_fast or standard (defaults to the configured mode)"
	flagCountDesc  = "Number of candidates, clamped to [1, 10] (defaults to the configured count)"
	flagIDDesc     = "Run identifier; reusing one overwrites that run's files"
	flagConfigDesc = "Path to a TOML or YAML config file (defaults to the shared configurator)"
	flagEnvDesc    = "Optional dotenv file with TORTOISE_* overrides"
)

// File names.
const (
	bootstrapLogFile = "tts-client-bootstrap.log"
	logFile          = "tts-client.log"
	defaultEnvFile   = ".env"
)

// Static errors.
var (
	ErrTextRequired  = errors.New("-text must be provided")
	ErrVoiceRequired = errors.New("-voice must be provided")
)

// appFlags holds the parsed command-line flag values. countSet records
// whether -count appeared on the command line, so an explicit zero still
// overrides the configured count.
type appFlags struct {
	text     string
	voice    string
	mode     string
	id       string
	config   string
	env      string
	count    int
	countSet bool
}

func main() {
	err := run(os.Args[1:], os.Stdout)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Client exited with error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string, stdout io.Writer) error {
	flags, err := parseFlags(args)
	if err != nil {
		return err
	}

	bootstrapLog, err := logger.New(os.TempDir(), bootstrapLogFile)
	if err != nil {
		return fmt.Errorf("failed to create bootstrap logger: %w", err)
	}

	defer closeLogger(bootstrapLog)

	err = loadDotEnv(flags.env)
	if err != nil {
		bootstrapLog.Error("Failed to load environment file: %v", err)

		return err
	}

	cfg, err := loadConfig(flags.config, bootstrapLog)
	if err != nil {
		bootstrapLog.Error("Failed to load configuration: %v", err)

		return err
	}

	err = ttsutils.EnsureDir(cfg.Paths.BaseLogsDir)
	if err != nil {
		bootstrapLog.Error("Failed to create log directory: %v", err)

		return fmt.Errorf("%w: %w", core.ErrFilesystem, err)
	}

	finalLog, err := logger.New(cfg.Paths.BaseLogsDir, logFile)
	if err != nil {
		bootstrapLog.Error("Failed to create final logger: %v", err)

		return fmt.Errorf("failed to create final logger: %w", err)
	}

	defer closeLogger(finalLog)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return synthesize(ctx, cfg, flags, finalLog, stdout)
}

func synthesize(ctx context.Context, cfg *config.Config, flags appFlags, log *logger.Logger, stdout io.Writer) error {
	opts, err := cfg.Options()
	if err != nil {
		return err
	}

	if cfg.MirrorEnabled() {
		sink, closeMirror, mirrorErr := connectMirror(ctx, cfg.NATS, log)
		if mirrorErr != nil {
			return mirrorErr
		}

		defer closeMirror()

		opts.Sink = sink
	}

	client, err := tts.NewClient(log, opts)
	if err != nil {
		log.Error("Failed to create synthesis client: %v", err)

		return err
	}

	defer func() {
		closeErr := client.Close()
		if closeErr != nil {
			fmt.Fprintf(os.Stderr, "error closing synthesis client: %v\n", closeErr)
		}
	}()

	result, err := client.Synthesize(ctx, buildRequest(cfg, flags))
	if err != nil {
		log.Error("Synthesis failed: %v", err)

		return err
	}

	log.System("Run %s wrote %d of %d candidate(s)", result.RunID, len(result.Paths), result.Requested)

	for _, path := range result.Paths {
		fmt.Fprintln(stdout, path)
	}

	return nil
}

// parseFlags parses args into appFlags and checks the required ones.
func parseFlags(args []string) (appFlags, error) {
	var flags appFlags

	flagSet := flag.NewFlagSet("tts-client", flag.ContinueOnError)
	flagSet.StringVar(&flags.text, flagText, "", flagTextDesc)
	flagSet.StringVar(&flags.voice, flagVoice, "", flagVoiceDesc)
	flagSet.StringVar(&flags.mode, flagMode, "", flagModeDesc)
	flagSet.IntVar(&flags.count, flagCount, 0, flagCountDesc)
	flagSet.StringVar(&flags.id, flagID, "", flagIDDesc)
	flagSet.StringVar(&flags.config, flagConfig, "", flagConfigDesc)
	flagSet.StringVar(&flags.env, flagEnv, defaultEnvFile, flagEnvDesc)

	err := flagSet.Parse(args)
	if err != nil {
		return appFlags{}, fmt.Errorf("failed to parse flags: %w", err)
	}

	flagSet.Visit(func(set *flag.Flag) {
		if set.Name == flagCount {
			flags.countSet = true
		}
	})

	if flags.text == "" {
		return appFlags{}, ErrTextRequired
	}

	if flags.voice == "" {
		return appFlags{}, ErrVoiceRequired
	}

	return flags, nil
}

// buildRequest starts from the configured defaults and applies flag overrides.
func buildRequest(cfg *config.Config, flags appFlags) tts.Request {
	req := cfg.Request(flags.text, flags.voice)

	if flags.mode != "" {
		req.Mode = core.Mode(flags.mode)
	}

	if flags.countSet {
		req.Count = flags.count
	}

	req.RunID = flags.id

	return req
}

func loadConfig(path string, log *logger.Logger) (*config.Config, error) {
	if path != "" {
		return config.LoadFile(path)
	}

	return config.Load(log)
}

// loadDotEnv exports the variables of path that are not already set. A
// missing file is not an error.
func loadDotEnv(path string) error {
	if path == "" {
		return nil
	}

	err := godotenv.Load(path)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%w: failed to load %s: %w", core.ErrConfiguration, path, err)
	}

	return nil
}

func connectMirror(ctx context.Context, cfg config.NATSConfig, log *logger.Logger) (*mirror.Mirror, func(), error) {
	natsConnection, err := nats.Connect(cfg.URL)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: failed to connect to NATS at %s: %w", core.ErrMirror, cfg.URL, err)
	}

	store, err := objectstore.New(ctx, natsConnection, cfg.AudioObjectStoreBucket)
	if err != nil {
		natsConnection.Close()

		return nil, nil, fmt.Errorf("%w: %w", core.ErrMirror, err)
	}

	sink, err := mirror.New(store, natsConnection, cfg.AudioCreatedSubject, log)
	if err != nil {
		natsConnection.Close()

		return nil, nil, err
	}

	log.Info("Mirroring candidates to bucket %s, events on %s", cfg.AudioObjectStoreBucket, cfg.AudioCreatedSubject)

	closeMirror := func() {
		drainErr := natsConnection.Drain()
		if drainErr != nil {
			log.Warn("Failed to drain NATS connection: %v", drainErr)
		}
	}

	return sink, closeMirror, nil
}

func closeLogger(log *logger.Logger) {
	closeErr := log.Close()
	if closeErr != nil {
		fmt.Fprintf(os.Stderr, "error closing logger: %v\n", closeErr)
	}
}
