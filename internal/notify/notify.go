// Package notify dispatches meeting notifications across the configured
// channels and aggregates the per-channel outcomes into a single envelope.
package notify

import (
	"context"
	"time"

	"timelogger/pkg/models"
)

// Status is the outcome of a notification attempt, per channel or overall.
type Status string

const (
	// StatusPending is reserved for a future queued delivery mode. No
	// synchronous dispatch path returns it.
	StatusPending Status = "pending"
	StatusSent    Status = "sent"
	StatusFailed  Status = "failed"
	StatusSkipped Status = "skipped"
	StatusPartial Status = "partial"
)

// Channel identifies one notification transport.
type Channel string

const (
	ChannelEmail Channel = "email"
	ChannelChat  Channel = "chat"
)

// ChannelResult is the outcome of one sender's delivery attempt. It is
// created by the sender and never mutated afterwards.
type ChannelResult struct {
	Channel   Channel                `json:"type"`
	Status    Status                 `json:"status"`
	Details   map[string]interface{} `json:"details,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

// Envelope is the aggregated result of one dispatch call. Channels holds one
// entry per enabled channel, in configuration order; disabled channels never
// appear. OverallStatus is derived purely from the per-channel statuses.
type Envelope struct {
	NotificationID string          `json:"notification_id"`
	Timestamp      string          `json:"timestamp"`
	Channels       []ChannelResult `json:"channels"`
	OverallStatus  Status          `json:"overall_status"`
}

// Sender delivers one notification through one transport. Implementations
// must not return transport errors to the caller: every failure is converted
// into a failed ChannelResult so one channel can never abort another.
type Sender interface {
	Channel() Channel
	Send(ctx context.Context, rec models.MeetingRecord) ChannelResult
}
