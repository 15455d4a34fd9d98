package cognition

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/duplexline/turnbridge/internal/audio"
	"github.com/duplexline/turnbridge/internal/metrics"
)

// STTClient sends audio to a whisper.cpp-compatible server and returns transcriptions.
type STTClient struct {
	url    string
	client *http.Client
}

// NewSTTClient creates a client pointing at the whisper.cpp server URL.
func NewSTTClient(url string, poolSize int) *STTClient {
	return &STTClient{
		url:    url,
		client: NewPooledHTTPClient(poolSize, 30*time.Second),
	}
}

// STTResult holds the transcription output.
type STTResult struct {
	Text      string  `json:"text"`
	LatencyMs float64 `json:"latency_ms"`
}

// Transcriber is satisfied by any speech-to-text backend.
type Transcriber interface {
	Transcribe(ctx context.Context, samples []int16) (*STTResult, error)
}

// STTRouter dispatches to the correct STT backend based on engine name.
type STTRouter struct {
	*Router[Transcriber]
}

// NewSTTRouter creates a router with registered STT backends and a fallback default.
func NewSTTRouter(backends map[string]Transcriber, fallback string) *STTRouter {
	return &STTRouter{Router: NewRouter(backends, fallback)}
}

// Transcribe routes to the correct backend and transcribes audio.
func (r *STTRouter) Transcribe(ctx context.Context, samples []int16, engine string) (*STTResult, error) {
	backend, err := r.Route(engine)
	if err != nil {
		return nil, err
	}
	return backend.Transcribe(ctx, samples)
}

// Transcribe sends int16 PCM samples (16kHz mono) to whisper.cpp and returns the transcript.
func (c *STTClient) Transcribe(ctx context.Context, samples []int16) (*STTResult, error) {
	start := time.Now()

	body, contentType, err := buildMultipartAudio(samples)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.url+"/inference", body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := c.client.Do(req)
	if err != nil {
		metrics.Errors.WithLabelValues("stt", "http").Inc()
		return nil, fmt.Errorf("stt request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		metrics.Errors.WithLabelValues("stt", "status").Inc()
		return nil, fmt.Errorf("stt status %d: %s", resp.StatusCode, string(respBody))
	}

	var whisperResp whisperResponse
	if err = json.NewDecoder(resp.Body).Decode(&whisperResp); err != nil {
		return nil, fmt.Errorf("decode stt response: %w", err)
	}

	latency := time.Since(start)
	metrics.StageDuration.WithLabelValues("stt").Observe(latency.Seconds())

	return &STTResult{
		Text:      whisperResp.Text,
		LatencyMs: float64(latency.Milliseconds()),
	}, nil
}

type whisperResponse struct {
	Text string `json:"text"`
}

func buildMultipartAudio(samples []int16) (*bytes.Buffer, string, error) {
	wavData := audio.EncodeWAV(samples, 16000)

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	part, err := writer.CreateFormFile("file", "audio.wav")
	if err != nil {
		return nil, "", fmt.Errorf("create form file: %w", err)
	}

	if _, err = part.Write(wavData); err != nil {
		return nil, "", fmt.Errorf("write wav data: %w", err)
	}

	if err = writer.Close(); err != nil {
		return nil, "", fmt.Errorf("close writer: %w", err)
	}

	return &body, writer.FormDataContentType(), nil
}
