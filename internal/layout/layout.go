// Package layout resolves and provisions the working directories of the
// synthesis client: the models directory, the voice library and the output
// directory.
package layout

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/book-expert/tortoise-client/internal/core"
	"github.com/book-expert/tortoise-client/internal/tts/ttsutils"
)

// Default directory names.
const (
	DefaultModelsDirName  = "tortoise_models"
	DefaultVoicesDirName  = "voices"
	DefaultResultsDirName = "results"
)

// Overrides carries caller supplied directories. Empty fields select defaults.
type Overrides struct {
	ModelsDir       string
	VoiceLibraryDir string
	OutputDir       string
}

// Layout is the resolved set of absolute working directories.
type Layout struct {
	ModelsDir       string
	VoiceLibraryDir string
	OutputDir       string
}

// Resolve turns overrides into absolute paths, filling in defaults:
// models and output live under the current working directory, the voice
// library is the one bundled next to the running executable.
// Resolve never touches the filesystem beyond reading the working directory.
func Resolve(overrides Overrides) (Layout, error) {
	workDir, err := os.Getwd()
	if err != nil {
		return Layout{}, fmt.Errorf("%w: cannot determine working directory: %w", core.ErrConfiguration, err)
	}

	modelsDir, err := resolveDir("models", overrides.ModelsDir, filepath.Join(workDir, DefaultModelsDirName))
	if err != nil {
		return Layout{}, err
	}

	voicesDir, err := resolveDir("voice library", overrides.VoiceLibraryDir, bundledVoicesDir(workDir))
	if err != nil {
		return Layout{}, err
	}

	outputDir, err := resolveDir("output", overrides.OutputDir, filepath.Join(workDir, DefaultResultsDirName))
	if err != nil {
		return Layout{}, err
	}

	return Layout{
		ModelsDir:       modelsDir,
		VoiceLibraryDir: voicesDir,
		OutputDir:       outputDir,
	}, nil
}

// Provision creates the models and output directories, with parents, when
// they are missing. It is idempotent. The voice library is never created;
// a missing voice simply yields no samples at load time.
func (l Layout) Provision() error {
	for _, dir := range []string{l.ModelsDir, l.OutputDir} {
		err := ttsutils.EnsureDir(dir)
		if err != nil {
			return fmt.Errorf("%w: %w", core.ErrFilesystem, err)
		}
	}

	return nil
}

// VoiceDir returns the directory holding the reference clips of voice.
func (l Layout) VoiceDir(voice string) string {
	return filepath.Join(l.VoiceLibraryDir, voice)
}

func resolveDir(label, override, fallback string) (string, error) {
	if override == "" {
		return fallback, nil
	}

	if strings.TrimSpace(override) == "" || strings.ContainsRune(override, 0) {
		return "", fmt.Errorf("%w: invalid %s directory %q", core.ErrConfiguration, label, override)
	}

	abs, err := filepath.Abs(override)
	if err != nil {
		return "", fmt.Errorf("%w: cannot resolve %s directory %q: %w", core.ErrConfiguration, label, override, err)
	}

	return abs, nil
}

func bundledVoicesDir(workDir string) string {
	executable, err := os.Executable()
	if err != nil {
		return filepath.Join(workDir, DefaultVoicesDirName)
	}

	return filepath.Join(filepath.Dir(executable), DefaultVoicesDirName)
}
