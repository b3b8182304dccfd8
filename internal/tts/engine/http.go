package engine

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/book-expert/tortoise-client/internal/core"
	"github.com/book-expert/tortoise-client/internal/tts/audio"
)

// API endpoints and paths.
const (
	apiSynthesize = "/v1/synthesize"
	apiHealth     = "/health"
)

// HTTP headers.
const (
	headerContentType = "Content-Type"
	headerAccept      = "Accept"
	contentTypeJSON   = "application/json"
)

// Default values.
const (
	defaultHTTPTimeout = 10 * time.Minute
	healthCheckTimeout = 10 * time.Second
)

// Error messages.
const (
	errFmtServiceErrorWithCode = "synthesis service error (%s): %s (code: %s)"
	errFmtServiceNonOKStatus   = "synthesis service returned non-OK status: %s, body: %s"
	errFmtUnexpectedType       = "unexpected content type: expected application/json, got %s"
)

// ErrServiceURLEmpty is returned when the HTTP backend has no service URL.
var ErrServiceURLEmpty = errors.New("service URL cannot be empty")

// SynthesisRequest is the JSON payload posted to the synthesis service.
type SynthesisRequest struct {
	Text string `json:"text"`

	// Preset is the generation mode: fast, ultra_fast or standard.
	Preset string `json:"preset"`

	// K is the number of candidates to generate, in [1, 10].
	K int `json:"k"`

	// VoiceSamples are base64 encoded 16-bit mono WAV clips at 22050 Hz.
	VoiceSamples []string `json:"voice_samples"`

	ModelsDir    string `json:"models_dir"`
	UseDeepSpeed bool   `json:"use_deepspeed"`
	KVCache      bool   `json:"kv_cache"`
	Half         bool   `json:"half"`
}

// SynthesisResponse carries the generated candidates as base64 encoded WAV streams, in generation order.
type SynthesisResponse struct {
	Candidates []string `json:"candidates"`
}

// ErrorResponse represents a structured error response from the synthesis service.
type ErrorResponse struct {
	Detail    string `json:"detail"`
	ErrorCode string `json:"error_code,omitempty"`
}

// HTTPSession drives a synthesis service that keeps the model loaded in its
// own process. Construction performs a health check.
type HTTPSession struct {
	httpClient *http.Client
	baseURL    string
	config     core.EngineConfig
}

// NewHTTPSession creates a session against baseURL. A zero timeout selects a
// generous default, since a single synthesis can run for minutes.
func NewHTTPSession(baseURL string, timeout time.Duration, cfg core.EngineConfig) (*HTTPSession, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("%w: %w", core.ErrConfiguration, ErrServiceURLEmpty)
	}

	if timeout <= 0 {
		timeout = defaultHTTPTimeout
	}

	session := &HTTPSession{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		config:     cfg,
	}

	ctx, cancel := context.WithTimeout(context.Background(), healthCheckTimeout)
	defer cancel()

	err := session.HealthCheck(ctx)
	if err != nil {
		return nil, err
	}

	return session, nil
}

// Synthesize posts one request and returns k candidates; a bare buffer when k == 1.
func (s *HTTPSession) Synthesize(
	ctx context.Context,
	text string,
	samples []audio.Buffer,
	mode core.Mode,
	k int,
) (core.EngineOutput, error) {
	payload, err := s.buildRequest(text, samples, mode, k)
	if err != nil {
		return core.EngineOutput{}, err
	}

	requestBody, err := json.Marshal(payload)
	if err != nil {
		return core.EngineOutput{}, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+apiSynthesize, bytes.NewReader(requestBody))
	if err != nil {
		return core.EngineOutput{}, fmt.Errorf("failed to create request: %w", err)
	}

	httpReq.Header.Set(headerContentType, contentTypeJSON)
	httpReq.Header.Set(headerAccept, contentTypeJSON)

	resp, err := s.httpClient.Do(httpReq)
	if err != nil {
		return core.EngineOutput{}, fmt.Errorf("failed to send request to synthesis service at %s: %w", s.baseURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return core.EngineOutput{}, parseErrorResponse(resp)
	}

	contentType := resp.Header.Get(headerContentType)
	if !strings.HasPrefix(contentType, contentTypeJSON) {
		return core.EngineOutput{}, fmt.Errorf(errFmtUnexpectedType, contentType)
	}

	var body SynthesisResponse

	err = json.NewDecoder(resp.Body).Decode(&body)
	if err != nil {
		return core.EngineOutput{}, fmt.Errorf("%w: failed to decode response: %w", ErrMalformedOutput, err)
	}

	candidates := make([]audio.Buffer, 0, len(body.Candidates))

	for index, encoded := range body.Candidates {
		buf, decodeErr := decodeCandidate(encoded)
		if decodeErr != nil {
			return core.EngineOutput{}, fmt.Errorf("%w: candidate %d: %w", ErrMalformedOutput, index, decodeErr)
		}

		candidates = append(candidates, buf)
	}

	return asOutput(candidates, k)
}

// HealthCheck verifies that the synthesis service is running and operational.
func (s *HTTPSession) HealthCheck(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+apiHealth, http.NoBody)
	if err != nil {
		return fmt.Errorf("failed to create health check request: %w", err)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("health check failed for service at %s: %w", s.baseURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check failed with status: %s", resp.Status)
	}

	return nil
}

// Close releases idle connections.
func (s *HTTPSession) Close() error {
	s.httpClient.CloseIdleConnections()

	return nil
}

func (s *HTTPSession) buildRequest(text string, samples []audio.Buffer, mode core.Mode, k int) (SynthesisRequest, error) {
	encoded := make([]string, 0, len(samples))

	for index, sample := range samples {
		data, err := audio.EncodeWAV(sample)
		if err != nil {
			return SynthesisRequest{}, fmt.Errorf("failed to encode voice sample %d: %w", index, err)
		}

		encoded = append(encoded, base64.StdEncoding.EncodeToString(data))
	}

	return SynthesisRequest{
		Text:         text,
		Preset:       string(mode),
		K:            k,
		VoiceSamples: encoded,
		ModelsDir:    s.config.ModelsDir,
		UseDeepSpeed: s.config.AcceleratedDecode,
		KVCache:      s.config.KVCache,
		Half:         s.config.ReducedPrecision,
	}, nil
}

func decodeCandidate(encoded string) (audio.Buffer, error) {
	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return audio.Buffer{}, fmt.Errorf("invalid base64: %w", err)
	}

	return audio.DecodeWAV(data)
}

// parseErrorResponse decodes a structured JSON error from the service and
// falls back to the raw body.
func parseErrorResponse(resp *http.Response) error {
	body, _ := io.ReadAll(resp.Body)

	var errorResp ErrorResponse

	err := json.Unmarshal(body, &errorResp)
	if err == nil && errorResp.Detail != "" {
		return fmt.Errorf(errFmtServiceErrorWithCode, resp.Status, errorResp.Detail, errorResp.ErrorCode)
	}

	return fmt.Errorf(errFmtServiceNonOKStatus, resp.Status, string(body))
}
