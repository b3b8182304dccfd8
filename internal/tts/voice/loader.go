// Package voice loads the reference clips that condition synthesis toward a
// target speaker.
package voice

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/book-expert/tortoise-client/internal/core"
	"github.com/book-expert/tortoise-client/internal/tts/audio"
	"github.com/book-expert/tortoise-client/internal/tts/ttsutils"
)

// Order selects how the clips of a voice are ordered before they reach the engine.
type Order int

const (
	// OrderSorted orders clips by file name, giving reproducible conditioning.
	OrderSorted Order = iota
	// OrderRaw keeps the order of the underlying directory listing, which
	// varies across platforms and runs.
	OrderRaw
)

// Order names as used in configuration files.
const (
	orderSortedName = "sorted"
	orderRawName    = "raw"
)

// ParseOrder maps a configuration value to an Order. An empty value selects OrderSorted.
func ParseOrder(name string) (Order, error) {
	switch name {
	case "", orderSortedName:
		return OrderSorted, nil
	case orderRawName:
		return OrderRaw, nil
	default:
		return OrderSorted, fmt.Errorf("%w: unknown sample order %q", core.ErrConfiguration, name)
	}
}

func (o Order) String() string {
	if o == OrderRaw {
		return orderRawName
	}

	return orderSortedName
}

// Voice is a named, ordered collection of decoded reference clips.
type Voice struct {
	Name    string
	Samples []audio.Buffer
}

// Loader reads voices from a voice library directory. Voices are decoded on
// every call and never cached.
type Loader struct {
	libraryDir string
	decoder    core.Decoder
	order      Order
}

// NewLoader creates a loader over libraryDir.
func NewLoader(libraryDir string, decoder core.Decoder, order Order) *Loader {
	return &Loader{
		libraryDir: libraryDir,
		decoder:    decoder,
		order:      order,
	}
}

// Load decodes every .wav clip directly under <library>/<name> at
// core.SampleRate. A voice without a directory yields zero samples and no
// error; callers decide whether an empty voice is acceptable.
func (l *Loader) Load(name string) (Voice, error) {
	if !ttsutils.IsSafeName(name) {
		return Voice{}, fmt.Errorf("%w: invalid voice name %q", core.ErrInvalidRequest, name)
	}

	dir := filepath.Join(l.libraryDir, name)

	files, err := l.listClips(dir)
	if err != nil {
		return Voice{}, err
	}

	samples := make([]audio.Buffer, 0, len(files))

	for _, file := range files {
		buf, decodeErr := l.decoder.Decode(file, core.SampleRate)
		if decodeErr != nil {
			return Voice{}, fmt.Errorf("%w: failed to decode clip %s: %w", core.ErrVoice, file, decodeErr)
		}

		samples = append(samples, buf)
	}

	return Voice{Name: name, Samples: samples}, nil
}

func (l *Loader) listClips(dir string) ([]string, error) {
	handle, err := os.Open(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}

		return nil, fmt.Errorf("%w: failed to open voice directory %s: %w", core.ErrVoice, dir, err)
	}
	defer handle.Close()

	// File.ReadDir returns entries in directory order, unlike os.ReadDir.
	entries, err := handle.ReadDir(-1)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to list voice directory %s: %w", core.ErrVoice, dir, err)
	}

	files := make([]string, 0, len(entries))

	for _, entry := range entries {
		if entry.IsDir() || !ttsutils.IsVoiceSample(entry.Name()) {
			continue
		}

		files = append(files, filepath.Join(dir, entry.Name()))
	}

	if l.order == OrderSorted {
		sort.Strings(files)
	}

	return files, nil
}
