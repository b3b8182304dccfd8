// Package audio provides the mono sample buffer exchanged with the synthesis
// engine and a WAV codec that reads reference clips and writes candidates.
package audio

import (
	"errors"
	"fmt"
	"math"
	"time"
)

// Limits for buffer validation.
const (
	MaxSampleRate = 192000
	MaxChannels   = 8
)

// Error message formats.
const (
	errFmtSampleRateRange = "%w: sample rate must be between 1 and %d Hz, got %d"
	errFmtChannelsRange   = "%w: channels must be between 1 and %d, got %d"
)

// ErrInvalidFormat is returned when audio parameters are out of range.
var ErrInvalidFormat = errors.New("invalid audio format")

// Buffer is a mono waveform. Samples are nominally in [-1, 1].
type Buffer struct {
	Samples    []float32
	SampleRate int
}

// Duration returns the playback length of the buffer.
func (b Buffer) Duration() time.Duration {
	if b.SampleRate <= 0 {
		return 0
	}

	return time.Duration(float64(len(b.Samples)) / float64(b.SampleRate) * float64(time.Second))
}

// Validate checks that the buffer carries a usable sample rate.
func (b Buffer) Validate() error {
	return validateSampleRate(b.SampleRate)
}

// Resample converts the buffer to targetRate using linear interpolation.
func Resample(buf Buffer, targetRate int) Buffer {
	if buf.SampleRate == targetRate || buf.SampleRate <= 0 || len(buf.Samples) == 0 {
		return Buffer{Samples: buf.Samples, SampleRate: targetRate}
	}

	step := float64(buf.SampleRate) / float64(targetRate)
	outLen := int(math.Round(float64(len(buf.Samples)) / step))
	out := make([]float32, outLen)
	last := len(buf.Samples) - 1

	for i := range out {
		pos := float64(i) * step
		idx := int(pos)

		if idx >= last {
			out[i] = buf.Samples[last]

			continue
		}

		frac := float32(pos - float64(idx))
		out[i] = buf.Samples[idx] + (buf.Samples[idx+1]-buf.Samples[idx])*frac
	}

	return Buffer{Samples: out, SampleRate: targetRate}
}

func validateSampleRate(sampleRate int) error {
	if sampleRate <= 0 || sampleRate > MaxSampleRate {
		return fmt.Errorf(errFmtSampleRateRange, ErrInvalidFormat, MaxSampleRate, sampleRate)
	}

	return nil
}

func validateChannels(channels int) error {
	if channels <= 0 || channels > MaxChannels {
		return fmt.Errorf(errFmtChannelsRange, ErrInvalidFormat, MaxChannels, channels)
	}

	return nil
}
