// Package extraction turns transcribed meeting text into a structured
// MeetingRecord using a language model.
package extraction

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"timelogger/pkg/llm"
	"timelogger/pkg/logging"
	"timelogger/pkg/models"
)

const systemPrompt = `You are an AI assistant specialized in extracting structured meeting data from text.
Given a transcription of someone describing a meeting, extract the following information:

1. Customer/Client Name: The company or organization name (avoid including dates or other info here)
2. Meeting Date: In YYYY-MM-DD format
3. Start Time: The time the meeting started
4. End Time: The time the meeting ended
5. Total Hours: Numeric duration in hours, calculated from start and end time if not explicitly mentioned
6. Notes: Any other relevant information about the meeting

Format your response as a JSON object with these exact keys:
{"customer_name": string, "meeting_date": string, "start_time": string, "end_time": string, "total_hours": number, "notes": string}

If any field is missing in the text, use null for that field. For total_hours, calculate from start and end times if both are provided.
For dates, convert relative dates like "today" or "yesterday" to actual dates.`

// Extractor extracts meeting fields from free-form text.
type Extractor struct {
	provider llm.Provider
	logger   logging.Logger
}

func NewExtractor(provider llm.Provider, logger logging.Logger) *Extractor {
	return &Extractor{provider: provider, logger: logger}
}

// Extract asks the model for the six meeting fields and normalizes its
// answer. The raw transcription is preserved as notes when the model offers
// none, and total hours are derived from start/end times when omitted.
func (e *Extractor) Extract(ctx context.Context, text string) (models.MeetingRecord, error) {
	e.logger.WithField("text_length", len(text)).Info("Starting meeting data extraction")

	temp := 0.1
	content, err := e.provider.Complete(ctx, []llm.Message{
		{Role: "system", Content: systemPrompt},
		{Role: "user", Content: text},
	}, llm.CompletionOptions{Temperature: &temp, JSONResponse: true})
	if err != nil {
		return models.MeetingRecord{}, fmt.Errorf("extraction: completion failed: %w", err)
	}

	rec, err := parseResponse(content)
	if err != nil {
		return models.MeetingRecord{}, fmt.Errorf("extraction: %w", err)
	}

	if rec.Notes == "" {
		rec.Notes = text
	}
	if rec.TotalHours == 0 {
		if hours, ok := hoursBetween(rec.StartTime, rec.EndTime); ok {
			rec.TotalHours = hours
		}
	}
	rec.Timestamp = time.Now().Format("2006-01-02 15:04:05")

	e.logger.WithFields(logging.Fields{
		"customer":    rec.CustomerName,
		"total_hours": rec.TotalHours,
	}).Info("Meeting data extracted")

	return rec, nil
}

type rawExtraction struct {
	CustomerName *string         `json:"customer_name"`
	MeetingDate  *string         `json:"meeting_date"`
	StartTime    *string         `json:"start_time"`
	EndTime      *string         `json:"end_time"`
	TotalHours   json.RawMessage `json:"total_hours"`
	Notes        *string         `json:"notes"`
}

func parseResponse(content string) (models.MeetingRecord, error) {
	content = stripCodeFence(content)

	var raw rawExtraction
	if err := json.Unmarshal([]byte(content), &raw); err != nil {
		return models.MeetingRecord{}, fmt.Errorf("parse model response: %w", err)
	}

	rec := models.MeetingRecord{
		CustomerName: deref(raw.CustomerName),
		MeetingDate:  deref(raw.MeetingDate),
		StartTime:    deref(raw.StartTime),
		EndTime:      deref(raw.EndTime),
		Notes:        deref(raw.Notes),
	}
	rec.TotalHours = parseHours(raw.TotalHours)
	return rec, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// parseHours accepts the model emitting total_hours as a number or a numeric
// string. Anything else counts as missing.
func parseHours(raw json.RawMessage) float64 {
	if len(raw) == 0 || string(raw) == "null" {
		return 0
	}
	var n float64
	if err := json.Unmarshal(raw, &n); err == nil {
		return n
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if n, err := strconv.ParseFloat(strings.TrimSpace(s), 64); err == nil {
			return n
		}
	}
	return 0
}

var timeLayouts = []string{"3:04 PM", "3:04PM", "15:04"}

// hoursBetween derives a duration in hours from clock-time strings like
// "10:00 AM" and "11:30 AM". Meetings crossing midnight wrap forward.
func hoursBetween(start, end string) (float64, bool) {
	startT, ok := parseClock(start)
	if !ok {
		return 0, false
	}
	endT, ok := parseClock(end)
	if !ok {
		return 0, false
	}
	diff := endT.Sub(startT)
	if diff < 0 {
		diff += 24 * time.Hour
	}
	return diff.Hours(), true
}

func parseClock(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, strings.ToUpper(s)); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
		s = strings.TrimSuffix(s, "```")
		s = strings.TrimSpace(s)
	}
	return s
}
