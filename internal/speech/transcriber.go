// Package speech converts uploaded audio into text via the OpenAI
// transcription API.
package speech

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"timelogger/pkg/clients"
	"timelogger/pkg/logging"
	"timelogger/pkg/models"
)

// DefaultModel is the transcription model used when none is configured.
const DefaultModel = "whisper-1"

// supportedFormats mirrors what the transcription API accepts.
var supportedFormats = map[string]bool{
	"mp3":  true,
	"wav":  true,
	"m4a":  true,
	"mpeg": true,
	"mpga": true,
	"webm": true,
}

// IsSupportedFormat reports whether the file extension (without dot) can be
// transcribed.
func IsSupportedFormat(ext string) bool {
	return supportedFormats[strings.ToLower(strings.TrimPrefix(ext, "."))]
}

// SupportedFormats lists the accepted audio file extensions.
func SupportedFormats() []string {
	return []string{"mp3", "wav", "m4a", "mpeg", "mpga", "webm"}
}

// Config stores transcription client settings.
type Config struct {
	APIKey  string
	APIURL  string
	Model   string
	Timeout time.Duration
}

// Transcriber calls the speech-to-text API.
type Transcriber struct {
	client *http.Client
	apiKey string
	apiURL string
	model  string
	retry  clients.RetryConfig
	logger logging.Logger
}

func NewTranscriber(cfg Config, logger logging.Logger) (*Transcriber, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("speech: API key is required")
	}
	apiURL := strings.TrimRight(cfg.APIURL, "/")
	if apiURL == "" {
		apiURL = "https://api.openai.com/v1"
	}
	model := cfg.Model
	if model == "" {
		model = DefaultModel
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	return &Transcriber{
		client: &http.Client{Timeout: timeout},
		apiKey: cfg.APIKey,
		apiURL: apiURL,
		model:  model,
		retry:  clients.DefaultRetryConfig(),
		logger: logger,
	}, nil
}

// Transcribe sends the audio bytes to the transcription API and returns the
// transcribed text.
func (t *Transcriber) Transcribe(ctx context.Context, filename string, audio []byte) (models.TranscriptionResult, error) {
	if len(audio) == 0 {
		return models.TranscriptionResult{ProcessingStatus: models.ProcessingFailed}, errors.New("speech: empty audio payload")
	}

	t.logger.WithFields(logging.Fields{
		"filename": filename,
		"bytes":    len(audio),
		"model":    t.model,
	}).Info("Transcribing audio")

	resp, err := clients.DoWithRetry(ctx, t.client, t.retry, func() (*http.Request, error) {
		return t.newRequest(ctx, filename, audio)
	})
	if err != nil {
		return models.TranscriptionResult{ProcessingStatus: models.ProcessingFailed}, fmt.Errorf("speech: transcription request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		body, _ := io.ReadAll(resp.Body)
		return models.TranscriptionResult{ProcessingStatus: models.ProcessingFailed},
			fmt.Errorf("speech: unexpected status %s: %s", resp.Status, strings.TrimSpace(string(body)))
	}

	var decoded struct {
		Text     string  `json:"text"`
		Duration float64 `json:"duration"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return models.TranscriptionResult{ProcessingStatus: models.ProcessingFailed}, fmt.Errorf("speech: decode response: %w", err)
	}

	return models.TranscriptionResult{
		Text:             decoded.Text,
		DurationSeconds:  decoded.Duration,
		ProcessingStatus: models.ProcessingCompleted,
	}, nil
}

func (t *Transcriber) newRequest(ctx context.Context, filename string, audio []byte) (*http.Request, error) {
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	if err := writer.WriteField("model", t.model); err != nil {
		return nil, err
	}
	part, err := writer.CreateFormFile("file", filename)
	if err != nil {
		return nil, err
	}
	if _, err := part.Write(audio); err != nil {
		return nil, err
	}
	if err := writer.Close(); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.apiURL+"/audio/transcriptions", &body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+t.apiKey)
	return req, nil
}
