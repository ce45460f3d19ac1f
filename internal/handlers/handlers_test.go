package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"timelogger/internal/notify"
	"timelogger/pkg/logging"
	"timelogger/pkg/models"
)

type fakeTranscriber struct {
	result models.TranscriptionResult
	err    error
	calls  int
}

func (f *fakeTranscriber) Transcribe(ctx context.Context, filename string, audio []byte) (models.TranscriptionResult, error) {
	f.calls++
	return f.result, f.err
}

type fakeExtractor struct {
	record   models.MeetingRecord
	err      error
	lastText string
}

func (f *fakeExtractor) Extract(ctx context.Context, text string) (models.MeetingRecord, error) {
	f.lastText = text
	return f.record, f.err
}

type fakeStorage struct {
	err   error
	calls int
}

func (f *fakeStorage) StoreMeeting(ctx context.Context, record models.MeetingRecord) error {
	f.calls++
	return f.err
}

type fakeNotifier struct {
	envelope notify.Envelope
	lastOpts notify.Options
	calls    int
}

func (f *fakeNotifier) Dispatch(ctx context.Context, record models.MeetingRecord, opts notify.Options) notify.Envelope {
	f.calls++
	f.lastOpts = opts
	return f.envelope
}

type testDeps struct {
	transcriber *fakeTranscriber
	extractor   *fakeExtractor
	storage     *fakeStorage
	notifier    *fakeNotifier
}

func setupRouter(t *testing.T) (*gin.Engine, *testDeps) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	deps := &testDeps{
		transcriber: &fakeTranscriber{result: models.TranscriptionResult{
			Text:             "Met with Acme Corp for ninety minutes",
			ProcessingStatus: models.ProcessingCompleted,
		}},
		extractor: &fakeExtractor{record: models.MeetingRecord{
			CustomerName: "Acme Corp",
			MeetingDate:  "2025-04-06",
			TotalHours:   1.5,
		}},
		storage: &fakeStorage{},
		notifier: &fakeNotifier{envelope: notify.Envelope{
			NotificationID: "notify_20250406120000",
			OverallStatus:  notify.StatusSent,
		}},
	}

	h := New(Config{
		Transcriber: deps.transcriber,
		Extractor:   deps.extractor,
		Storage:     deps.storage,
		Notifier:    deps.notifier,
		Logger:      logging.NewLogger(),
	})
	router := gin.New()
	h.RegisterRoutes(router)
	return router, deps
}

func multipartAudio(t *testing.T, filename string, content []byte, fields map[string]string) (*bytes.Buffer, string) {
	t.Helper()
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("file", filename)
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	if _, err := part.Write(content); err != nil {
		t.Fatalf("write part: %v", err)
	}
	for k, v := range fields {
		if err := writer.WriteField(k, v); err != nil {
			t.Fatalf("write field: %v", err)
		}
	}
	writer.Close()
	return &body, writer.FormDataContentType()
}

func TestUploadFullPipeline(t *testing.T) {
	router, deps := setupRouter(t)

	body, contentType := multipartAudio(t, "meeting.mp3", []byte("fake-audio"), nil)
	req := httptest.NewRequest(http.MethodPost, "/speech/upload", body)
	req.Header.Set("Content-Type", contentType)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	var resp ProcessResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Status != models.ProcessingCompleted {
		t.Errorf("status = %q", resp.Status)
	}
	if resp.MeetingData == nil || resp.MeetingData.CustomerName != "Acme Corp" {
		t.Errorf("meeting_data = %+v", resp.MeetingData)
	}
	if resp.StorageStatus != models.StorageStored {
		t.Errorf("storage_status = %q", resp.StorageStatus)
	}
	if resp.Notification == nil || resp.Notification.OverallStatus != notify.StatusSent {
		t.Errorf("notification = %+v", resp.Notification)
	}
	if deps.storage.calls != 1 || deps.notifier.calls != 1 {
		t.Errorf("storage calls = %d, notifier calls = %d", deps.storage.calls, deps.notifier.calls)
	}
}

func TestUploadRejectsUnsupportedFormat(t *testing.T) {
	router, deps := setupRouter(t)

	body, contentType := multipartAudio(t, "notes.txt", []byte("hello"), nil)
	req := httptest.NewRequest(http.MethodPost, "/speech/upload", body)
	req.Header.Set("Content-Type", contentType)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
	if deps.transcriber.calls != 0 {
		t.Error("transcriber should not be called for unsupported formats")
	}
}

func TestUploadRejectsEmptyFile(t *testing.T) {
	router, _ := setupRouter(t)

	body, contentType := multipartAudio(t, "meeting.mp3", nil, nil)
	req := httptest.NewRequest(http.MethodPost, "/speech/upload", body)
	req.Header.Set("Content-Type", contentType)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
}

func TestUploadMissingFile(t *testing.T) {
	router, _ := setupRouter(t)

	req := httptest.NewRequest(http.MethodPost, "/speech/upload", strings.NewReader(""))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
}

func TestUploadTranscriptionFailure(t *testing.T) {
	router, deps := setupRouter(t)
	deps.transcriber.err = errors.New("api unavailable")

	body, contentType := multipartAudio(t, "meeting.mp3", []byte("fake-audio"), nil)
	req := httptest.NewRequest(http.MethodPost, "/speech/upload", body)
	req.Header.Set("Content-Type", contentType)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusBadGateway {
		t.Fatalf("status = %d, want 502", w.Code)
	}
	if deps.storage.calls != 0 {
		t.Error("storage should not be called when transcription fails")
	}
}

func TestUploadNotifyToggleForwarded(t *testing.T) {
	router, deps := setupRouter(t)

	body, contentType := multipartAudio(t, "meeting.mp3", []byte("fake-audio"), map[string]string{"notify": "false"})
	req := httptest.NewRequest(http.MethodPost, "/speech/upload", body)
	req.Header.Set("Content-Type", contentType)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if deps.notifier.lastOpts.Notify == nil || *deps.notifier.lastOpts.Notify {
		t.Errorf("notify option = %v, want false", deps.notifier.lastOpts.Notify)
	}
}

func TestUploadHintsAppendedToText(t *testing.T) {
	router, deps := setupRouter(t)

	body, contentType := multipartAudio(t, "meeting.mp3", []byte("fake-audio"), map[string]string{
		"customer_name": "Globex",
		"meeting_date":  "2025-05-01",
	})
	req := httptest.NewRequest(http.MethodPost, "/speech/upload", body)
	req.Header.Set("Content-Type", contentType)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if !strings.Contains(deps.extractor.lastText, "Globex") || !strings.Contains(deps.extractor.lastText, "2025-05-01") {
		t.Errorf("extractor text missing hints: %q", deps.extractor.lastText)
	}
}

func TestTranscribeOnly(t *testing.T) {
	router, deps := setupRouter(t)

	body, contentType := multipartAudio(t, "meeting.wav", []byte("fake-audio"), nil)
	req := httptest.NewRequest(http.MethodPost, "/speech/transcribe", body)
	req.Header.Set("Content-Type", contentType)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var result models.TranscriptionResult
	if err := json.Unmarshal(w.Body.Bytes(), &result); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if result.Text != "Met with Acme Corp for ninety minutes" {
		t.Errorf("text = %q", result.Text)
	}
	if deps.storage.calls != 0 || deps.notifier.calls != 0 {
		t.Error("transcribe endpoint must not store or notify")
	}
}

func TestProcessAudioStopsAfterExtraction(t *testing.T) {
	router, deps := setupRouter(t)

	body, contentType := multipartAudio(t, "meeting.mp3", []byte("fake-audio"), nil)
	req := httptest.NewRequest(http.MethodPost, "/speech/process", body)
	req.Header.Set("Content-Type", contentType)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	var resp ProcessResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if deps.transcriber.calls != 1 {
		t.Errorf("transcriber calls = %d, want 1", deps.transcriber.calls)
	}
	if deps.storage.calls != 0 {
		t.Error("process endpoint must not store")
	}
	if deps.notifier.calls != 0 {
		t.Error("process endpoint must not notify")
	}
	if resp.MeetingData == nil || resp.MeetingData.CustomerName != "Acme Corp" {
		t.Errorf("meeting_data = %+v", resp.MeetingData)
	}
	if resp.Transcription == "" {
		t.Error("transcription missing from response")
	}
	if resp.StorageStatus != "" || resp.Notification != nil {
		t.Errorf("unexpected storage/notification fields: %+v", resp)
	}
}

func TestProcessRejectsUnsupportedFormat(t *testing.T) {
	router, deps := setupRouter(t)

	body, contentType := multipartAudio(t, "notes.txt", []byte("hello"), nil)
	req := httptest.NewRequest(http.MethodPost, "/speech/process", body)
	req.Header.Set("Content-Type", contentType)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
	if deps.transcriber.calls != 0 {
		t.Error("transcriber should not be called for unsupported formats")
	}
}

func TestProcessExtractionFailure(t *testing.T) {
	router, deps := setupRouter(t)
	deps.extractor.err = errors.New("model refused")

	body, contentType := multipartAudio(t, "meeting.mp3", []byte("fake-audio"), nil)
	req := httptest.NewRequest(http.MethodPost, "/speech/process", body)
	req.Header.Set("Content-Type", contentType)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422", w.Code)
	}
	if deps.storage.calls != 0 {
		t.Error("storage should not be called when extraction fails")
	}
}

func TestUploadStorageFailureKeepsData(t *testing.T) {
	router, deps := setupRouter(t)
	deps.storage.err = errors.New("sheet unavailable")

	body, contentType := multipartAudio(t, "meeting.mp3", []byte("fake-audio"), nil)
	req := httptest.NewRequest(http.MethodPost, "/speech/upload", body)
	req.Header.Set("Content-Type", contentType)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var resp ProcessResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.StorageStatus != models.StorageFailed {
		t.Errorf("storage_status = %q, want failed", resp.StorageStatus)
	}
	if resp.MeetingData == nil {
		t.Error("extracted data should survive a storage failure")
	}
	if deps.notifier.calls != 0 {
		t.Error("notifications must not fire when storage failed")
	}
}

func TestExtractText(t *testing.T) {
	router, deps := setupRouter(t)

	payload := `{"text":"Met with Acme Corp","customer_name":"Globex","meeting_date":"2025-05-01"}`
	req := httptest.NewRequest(http.MethodPost, "/extraction/extract", strings.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	var resp ProcessResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.MeetingData == nil || resp.MeetingData.CustomerName != "Acme Corp" {
		t.Errorf("meeting_data = %+v", resp.MeetingData)
	}
	if deps.transcriber.calls != 0 || deps.storage.calls != 0 || deps.notifier.calls != 0 {
		t.Error("extract endpoint must only extract")
	}
	if !strings.Contains(deps.extractor.lastText, "Globex") || !strings.Contains(deps.extractor.lastText, "2025-05-01") {
		t.Errorf("extractor text missing hints: %q", deps.extractor.lastText)
	}
}

func TestExtractMissingText(t *testing.T) {
	router, _ := setupRouter(t)

	req := httptest.NewRequest(http.MethodPost, "/extraction/extract", strings.NewReader(`{}`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
}

func TestExtractFailure(t *testing.T) {
	router, deps := setupRouter(t)
	deps.extractor.err = errors.New("model refused")

	req := httptest.NewRequest(http.MethodPost, "/extraction/extract", strings.NewReader(`{"text":"Met with Acme"}`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422", w.Code)
	}
}
