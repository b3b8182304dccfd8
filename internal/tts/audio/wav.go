package audio

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// WAV format codes and output layout.
const (
	formatPCM        = 1
	formatIEEEFloat  = 3
	formatExtensible = 0xFFFE

	outputBitDepth  = 16
	outputChannels  = 1
	filePermissions = 0o600
)

// Error messages.
const (
	errFmtReadFile       = "failed to read wav file %s: %w"
	errFmtWriteFile      = "failed to write wav file %s: %w"
	errFmtUnsupportedFmt = "%w: unsupported wav encoding (format %d, %d bits)"
)

// Static errors. Each is reported wrapped in ErrInvalidFormat.
var (
	ErrNotWAV        = errors.New("not a RIFF/WAVE stream")
	ErrMissingFormat = errors.New("wav stream has no usable fmt chunk")
	ErrMissingData   = errors.New("wav stream has no data chunk")
)

// WAVCodec decodes PCM and IEEE float WAV files into mono buffers and encodes
// buffers as 16-bit mono PCM WAV files.
type WAVCodec struct{}

// NewWAVCodec returns a WAV codec.
func NewWAVCodec() WAVCodec {
	return WAVCodec{}
}

// Decode reads the WAV file at path, down-mixes it to mono and resamples it to targetRate.
func (WAVCodec) Decode(path string, targetRate int) (Buffer, error) {
	// #nosec G304 -- path comes from the configured voice library listing
	data, err := os.ReadFile(path)
	if err != nil {
		return Buffer{}, fmt.Errorf(errFmtReadFile, path, err)
	}

	buf, err := DecodeWAV(data)
	if err != nil {
		return Buffer{}, fmt.Errorf("%s: %w", path, err)
	}

	return Resample(buf, targetRate), nil
}

// Encode writes buf to path as a 16-bit mono PCM WAV at sampleRate.
func (WAVCodec) Encode(path string, buf Buffer, sampleRate int) error {
	out := Buffer{Samples: buf.Samples, SampleRate: sampleRate}

	err := out.Validate()
	if err != nil {
		return err
	}

	// #nosec G304 -- path is built by the writer inside the output directory
	file, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, filePermissions)
	if err != nil {
		return fmt.Errorf(errFmtWriteFile, path, err)
	}

	err = encodeTo(file, out)
	closeErr := file.Close()

	if err != nil {
		return fmt.Errorf(errFmtWriteFile, path, err)
	}

	if closeErr != nil {
		return fmt.Errorf(errFmtWriteFile, path, closeErr)
	}

	return nil
}

// DecodeWAV parses an in-memory WAV stream at its native sample rate.
// Integer PCM (8, 16, 24 and 32 bit) goes through the go-audio decoder;
// IEEE float payloads are converted here since that decoder only yields
// integer samples.
func DecodeWAV(data []byte) (Buffer, error) {
	if len(data) < 12 || string(data[0:4]) != "RIFF" || string(data[8:12]) != "WAVE" {
		return Buffer{}, fmt.Errorf("%w: %w", ErrInvalidFormat, ErrNotWAV)
	}

	decoder := wav.NewDecoder(bytes.NewReader(data))
	decoder.ReadInfo()

	err := decoder.Err()
	if err != nil {
		return Buffer{}, fmt.Errorf("%w: %w: %w", ErrInvalidFormat, ErrMissingFormat, err)
	}

	channels := int(decoder.NumChans)
	sampleRate := int(decoder.SampleRate)
	bitDepth := int(decoder.BitDepth)

	if channels == 0 || sampleRate == 0 || bitDepth == 0 {
		return Buffer{}, fmt.Errorf("%w: %w", ErrInvalidFormat, ErrMissingFormat)
	}

	err = validateChannels(channels)
	if err != nil {
		return Buffer{}, err
	}

	err = validateSampleRate(sampleRate)
	if err != nil {
		return Buffer{}, err
	}

	var interleaved []float32

	switch {
	case decoder.WavAudioFormat == formatIEEEFloat:
		interleaved, err = decodeFloat(decoder, bitDepth)
	case decoder.WavAudioFormat == formatPCM || decoder.WavAudioFormat == formatExtensible:
		interleaved, err = decodePCM(decoder, bitDepth)
	default:
		err = fmt.Errorf(errFmtUnsupportedFmt, ErrInvalidFormat, decoder.WavAudioFormat, bitDepth)
	}

	if err != nil {
		return Buffer{}, err
	}

	return Buffer{Samples: downmix(interleaved, channels), SampleRate: sampleRate}, nil
}

// EncodeWAV serializes buf as a 16-bit mono PCM WAV stream.
func EncodeWAV(buf Buffer) ([]byte, error) {
	err := buf.Validate()
	if err != nil {
		return nil, err
	}

	var out seekBuffer

	err = encodeTo(&out, buf)
	if err != nil {
		return nil, err
	}

	return out.data, nil
}

func encodeTo(w io.WriteSeeker, buf Buffer) error {
	encoder := wav.NewEncoder(w, buf.SampleRate, outputBitDepth, outputChannels, formatPCM)

	ints := make([]int, len(buf.Samples))
	for i, sample := range buf.Samples {
		ints[i] = int(floatToInt16(sample))
	}

	err := encoder.Write(&goaudio.IntBuffer{
		Format:         &goaudio.Format{NumChannels: outputChannels, SampleRate: buf.SampleRate},
		Data:           ints,
		SourceBitDepth: outputBitDepth,
	})
	if err != nil {
		return fmt.Errorf("failed to encode wav samples: %w", err)
	}

	err = encoder.Close()
	if err != nil {
		return fmt.Errorf("failed to finalize wav stream: %w", err)
	}

	return nil
}

func decodePCM(decoder *wav.Decoder, bitDepth int) ([]float32, error) {
	if bitDepth != 8 && bitDepth != 16 && bitDepth != 24 && bitDepth != 32 {
		return nil, fmt.Errorf(errFmtUnsupportedFmt, ErrInvalidFormat, decoder.WavAudioFormat, bitDepth)
	}

	pcm, err := decoder.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("%w: %w: %w", ErrInvalidFormat, ErrMissingData, err)
	}

	scale := float32(int64(1) << (bitDepth - 1))
	out := make([]float32, len(pcm.Data))

	for i, value := range pcm.Data {
		// 8-bit PCM is unsigned
		if bitDepth == 8 {
			value -= 128
		}

		out[i] = float32(value) / scale
	}

	return out, nil
}

func decodeFloat(decoder *wav.Decoder, bitDepth int) ([]float32, error) {
	if bitDepth != 32 && bitDepth != 64 {
		return nil, fmt.Errorf(errFmtUnsupportedFmt, ErrInvalidFormat, decoder.WavAudioFormat, bitDepth)
	}

	err := decoder.FwdToPCM()
	if err != nil || decoder.PCMChunk == nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidFormat, ErrMissingData)
	}

	payload, err := io.ReadAll(io.LimitReader(decoder.PCMChunk, int64(decoder.PCMChunk.Size)))
	if err != nil {
		return nil, fmt.Errorf("%w: %w: %w", ErrInvalidFormat, ErrMissingData, err)
	}

	width := bitDepth / 8
	out := make([]float32, len(payload)/width)

	for i := range out {
		chunk := payload[i*width : (i+1)*width]
		if width == 4 {
			out[i] = math.Float32frombits(binary.LittleEndian.Uint32(chunk))
		} else {
			out[i] = float32(math.Float64frombits(binary.LittleEndian.Uint64(chunk)))
		}
	}

	return out, nil
}

func downmix(interleaved []float32, channels int) []float32 {
	if channels == 1 {
		return interleaved
	}

	frames := len(interleaved) / channels
	out := make([]float32, frames)

	for frame := range frames {
		var sum float32
		for _, sample := range interleaved[frame*channels : (frame+1)*channels] {
			sum += sample
		}

		out[frame] = sum / float32(channels)
	}

	return out
}

func floatToInt16(sample float32) int16 {
	switch {
	case sample >= 1:
		return math.MaxInt16
	case sample <= -1:
		return math.MinInt16
	default:
		return int16(sample * math.MaxInt16)
	}
}

// seekBuffer is an in-memory io.WriteSeeker; the wav encoder seeks back to
// patch chunk sizes on Close.
type seekBuffer struct {
	data []byte
	pos  int
}

func (b *seekBuffer) Write(p []byte) (int, error) {
	end := b.pos + len(p)
	if end > len(b.data) {
		b.data = append(b.data, make([]byte, end-len(b.data))...)
	}

	copy(b.data[b.pos:end], p)
	b.pos = end

	return len(p), nil
}

func (b *seekBuffer) Seek(offset int64, whence int) (int64, error) {
	var base int

	switch whence {
	case io.SeekStart:
		base = 0
	case io.SeekCurrent:
		base = b.pos
	case io.SeekEnd:
		base = len(b.data)
	default:
		return 0, fmt.Errorf("invalid whence %d", whence)
	}

	next := base + int(offset)
	if next < 0 {
		return 0, fmt.Errorf("negative seek position %d", next)
	}

	b.pos = next

	return int64(next), nil
}
