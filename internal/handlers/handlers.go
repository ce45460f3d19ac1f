// Package handlers exposes the speech processing pipeline over HTTP.
package handlers

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"timelogger/internal/notify"
	"timelogger/internal/speech"
	"timelogger/pkg/logging"
	"timelogger/pkg/models"
)

// maxUploadBytes caps audio uploads at 25 MB, the transcription API's limit.
const maxUploadBytes = 25 << 20

// Transcriber converts audio bytes into text.
type Transcriber interface {
	Transcribe(ctx context.Context, filename string, audio []byte) (models.TranscriptionResult, error)
}

// Extractor pulls structured meeting data out of free-form text.
type Extractor interface {
	Extract(ctx context.Context, text string) (models.MeetingRecord, error)
}

// Storage persists meeting records.
type Storage interface {
	StoreMeeting(ctx context.Context, record models.MeetingRecord) error
}

// Notifier fans a stored record out to the configured channels.
type Notifier interface {
	Dispatch(ctx context.Context, record models.MeetingRecord, opts notify.Options) notify.Envelope
}

type Handlers struct {
	transcriber Transcriber
	extractor   Extractor
	storage     Storage
	notifier    Notifier
	sendTimeout time.Duration
	logger      logging.Logger
}

type Config struct {
	Transcriber Transcriber
	Extractor   Extractor
	Storage     Storage
	Notifier    Notifier
	SendTimeout time.Duration
	Logger      logging.Logger
}

func New(cfg Config) *Handlers {
	if cfg.SendTimeout <= 0 {
		cfg.SendTimeout = 30 * time.Second
	}
	return &Handlers{
		transcriber: cfg.Transcriber,
		extractor:   cfg.Extractor,
		storage:     cfg.Storage,
		notifier:    cfg.Notifier,
		sendTimeout: cfg.SendTimeout,
		logger:      cfg.Logger,
	}
}

// RegisterRoutes attaches the speech endpoints to the router.
func (h *Handlers) RegisterRoutes(router *gin.Engine) {
	group := router.Group("/speech")
	{
		group.POST("/upload", h.Upload)
		group.POST("/transcribe", h.Transcribe)
		group.POST("/process", h.Process)
	}
	router.POST("/extraction/extract", h.Extract)
}

// ProcessResponse is the result of running the full pipeline.
type ProcessResponse struct {
	Status        string                `json:"status"`
	MeetingData   *models.MeetingRecord `json:"meeting_data,omitempty"`
	Transcription string                `json:"transcription,omitempty"`
	StorageStatus string                `json:"storage_status,omitempty"`
	Notification  *notify.Envelope      `json:"notification,omitempty"`
	Error         string                `json:"error,omitempty"`
}

// readAudioUpload pulls the multipart audio file out of the request,
// validating format and size. It writes the error response itself and
// reports ok=false when the request cannot proceed.
func (h *Handlers) readAudioUpload(c *gin.Context) (audio []byte, filename string, ok bool) {
	file, header, err := c.Request.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing audio file upload"})
		return nil, "", false
	}
	defer file.Close()

	ext := filepath.Ext(header.Filename)
	if !speech.IsSupportedFormat(ext) {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": fmt.Sprintf("unsupported audio format %q, supported: %s",
				ext, strings.Join(speech.SupportedFormats(), ", ")),
		})
		return nil, "", false
	}

	audio, err = io.ReadAll(io.LimitReader(file, maxUploadBytes+1))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "failed to read upload"})
		return nil, "", false
	}
	if len(audio) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "empty audio file"})
		return nil, "", false
	}
	if len(audio) > maxUploadBytes {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "audio file exceeds 25MB limit"})
		return nil, "", false
	}
	return audio, header.Filename, true
}

// Upload accepts an audio file and runs the full pipeline: transcribe,
// extract, store, notify. Storage and notification failures are reported in
// the response but never fail the request once transcription succeeded.
func (h *Handlers) Upload(c *gin.Context) {
	audio, filename, ok := h.readAudioUpload(c)
	if !ok {
		return
	}

	result, err := h.transcriber.Transcribe(c.Request.Context(), filename, audio)
	if err != nil {
		h.logger.WithField("error", err.Error()).Error("Transcription failed")
		c.JSON(http.StatusBadGateway, ProcessResponse{
			Status: models.ProcessingFailed,
			Error:  "transcription failed: " + err.Error(),
		})
		return
	}

	text := withHints(result.Text, c.PostForm("customer_name"), c.PostForm("meeting_date"))
	resp := h.runPipeline(c.Request.Context(), text, parseNotifyToggle(c.PostForm("notify")))
	resp.Transcription = result.Text
	c.JSON(statusFor(resp), resp)
}

// Transcribe converts an uploaded audio file to text without running the
// rest of the pipeline.
func (h *Handlers) Transcribe(c *gin.Context) {
	audio, filename, ok := h.readAudioUpload(c)
	if !ok {
		return
	}

	result, err := h.transcriber.Transcribe(c.Request.Context(), filename, audio)
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{
			"status": models.ProcessingFailed,
			"error":  err.Error(),
		})
		return
	}
	c.JSON(http.StatusOK, result)
}

// Process transcribes an audio file and extracts the meeting fields without
// storing the record or dispatching notifications. Callers use it to preview
// what Upload would log.
func (h *Handlers) Process(c *gin.Context) {
	audio, filename, ok := h.readAudioUpload(c)
	if !ok {
		return
	}

	result, err := h.transcriber.Transcribe(c.Request.Context(), filename, audio)
	if err != nil {
		h.logger.WithField("error", err.Error()).Error("Transcription failed")
		c.JSON(http.StatusBadGateway, ProcessResponse{
			Status: models.ProcessingFailed,
			Error:  "transcription failed: " + err.Error(),
		})
		return
	}

	text := withHints(result.Text, c.PostForm("customer_name"), c.PostForm("meeting_date"))
	record, err := h.extractor.Extract(c.Request.Context(), text)
	if err != nil {
		h.logger.WithField("error", err.Error()).Error("Meeting data extraction failed")
		c.JSON(http.StatusUnprocessableEntity, ProcessResponse{
			Status:        models.ProcessingFailed,
			Transcription: result.Text,
			Error:         "extraction failed: " + err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, ProcessResponse{
		Status:        models.ProcessingCompleted,
		MeetingData:   &record,
		Transcription: result.Text,
	})
}

type extractRequest struct {
	Text         string `json:"text" binding:"required"`
	CustomerName string `json:"customer_name"`
	MeetingDate  string `json:"meeting_date"`
}

// Extract pulls the meeting fields out of already-transcribed text. Like
// Process, it never stores or notifies.
func (h *Handlers) Extract(c *gin.Context) {
	var req extractRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "text is required"})
		return
	}

	text := withHints(req.Text, req.CustomerName, req.MeetingDate)
	record, err := h.extractor.Extract(c.Request.Context(), text)
	if err != nil {
		h.logger.WithField("error", err.Error()).Error("Meeting data extraction failed")
		c.JSON(http.StatusUnprocessableEntity, ProcessResponse{
			Status: models.ProcessingFailed,
			Error:  "extraction failed: " + err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, ProcessResponse{
		Status:      models.ProcessingCompleted,
		MeetingData: &record,
	})
}

// runPipeline extracts meeting data, stores it, and dispatches notifications
// for stored records. Notifications are only attempted after a successful
// store; a storage failure downgrades the response but keeps the extracted
// data so the caller can retry.
func (h *Handlers) runPipeline(ctx context.Context, text string, notifyToggle *bool) ProcessResponse {
	record, err := h.extractor.Extract(ctx, text)
	if err != nil {
		h.logger.WithField("error", err.Error()).Error("Meeting data extraction failed")
		return ProcessResponse{
			Status: models.ProcessingFailed,
			Error:  "extraction failed: " + err.Error(),
		}
	}

	resp := ProcessResponse{
		Status:      models.ProcessingCompleted,
		MeetingData: &record,
	}

	if err := h.storage.StoreMeeting(ctx, record); err != nil {
		h.logger.WithField("error", err.Error()).Error("Failed to store meeting record")
		resp.StorageStatus = models.StorageFailed
		return resp
	}
	resp.StorageStatus = models.StorageStored

	sendCtx, cancel := context.WithTimeout(ctx, h.sendTimeout)
	defer cancel()
	envelope := h.notifier.Dispatch(sendCtx, record, notify.Options{Notify: notifyToggle})
	resp.Notification = &envelope

	return resp
}

// withHints appends caller-provided overrides so the extractor treats them as
// authoritative.
func withHints(text, customer, meetingDate string) string {
	var b strings.Builder
	b.WriteString(text)
	if customer != "" {
		fmt.Fprintf(&b, "\nThe customer name is: %s.", customer)
	}
	if meetingDate != "" {
		fmt.Fprintf(&b, "\nThe meeting date is: %s.", meetingDate)
	}
	return b.String()
}

func parseNotifyToggle(value string) *bool {
	if value == "" {
		return nil
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return nil
	}
	return &parsed
}

func statusFor(resp ProcessResponse) int {
	if resp.Status == models.ProcessingFailed {
		return http.StatusUnprocessableEntity
	}
	return http.StatusOK
}
