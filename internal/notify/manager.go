package notify

import (
	"context"
	"fmt"
	"sync"
	"time"

	"timelogger/pkg/logging"
	"timelogger/pkg/models"
)

// Config is the immutable notification configuration the Manager is
// constructed with. It is resolved once at startup and threaded down
// explicitly so tests can inject their own.
type Config struct {
	EmailEnabled bool
	ChatEnabled  bool
	// NotifyByDefault applies when a dispatch carries no per-call override.
	NotifyByDefault bool
}

// Options carry per-dispatch overrides.
type Options struct {
	// Notify suppresses every channel when explicitly false, regardless of
	// the static configuration. Nil means "use the configured default".
	Notify *bool
}

// Manager fans one dispatch out to every enabled channel sender and
// aggregates the per-channel results. It holds no mutable state between
// dispatches.
type Manager struct {
	cfg     Config
	senders []Sender
	logger  logging.Logger
}

// NewManager creates a Manager. Sender order fixes the order of the channel
// results in every envelope.
func NewManager(cfg Config, logger logging.Logger, senders ...Sender) *Manager {
	return &Manager{cfg: cfg, senders: senders, logger: logger}
}

// Dispatch sends a meeting notification through every enabled channel and
// returns the aggregated envelope. Each sender gets exactly one attempt;
// senders run concurrently and a failure in one never affects another.
func (m *Manager) Dispatch(ctx context.Context, rec models.MeetingRecord, opts Options) Envelope {
	now := time.Now()
	env := Envelope{
		NotificationID: fmt.Sprintf("notify_%s", now.Format("20060102150405")),
		Timestamp:      now.Format("2006-01-02 15:04:05"),
		OverallStatus:  StatusSkipped,
	}

	enabled := m.enabledSenders(opts)
	if len(enabled) == 0 {
		m.logger.WithField("notification_id", env.NotificationID).Info("No notification channels enabled, skipping dispatch")
		dispatchesTotal.WithLabelValues(string(StatusSkipped)).Inc()
		return env
	}

	// Fan out concurrently; results land in fixed slots so the envelope
	// order follows configuration, not completion.
	results := make([]ChannelResult, len(enabled))
	var wg sync.WaitGroup
	for i, sender := range enabled {
		wg.Add(1)
		go func(i int, sender Sender) {
			defer wg.Done()
			results[i] = m.sendSafely(ctx, sender, rec)
		}(i, sender)
	}
	wg.Wait()

	env.Channels = results
	env.OverallStatus = aggregate(results)

	for _, r := range results {
		channelSendsTotal.WithLabelValues(string(r.Channel), string(r.Status)).Inc()
	}
	dispatchesTotal.WithLabelValues(string(env.OverallStatus)).Inc()

	m.logger.WithFields(logging.Fields{
		"notification_id": env.NotificationID,
		"channels":        len(env.Channels),
		"overall_status":  env.OverallStatus,
	}).Info("Notification dispatch complete")

	return env
}

// sendSafely invokes one sender and converts an escaping panic into a failed
// result for that channel only.
func (m *Manager) sendSafely(ctx context.Context, sender Sender, rec models.MeetingRecord) (result ChannelResult) {
	defer func() {
		if r := recover(); r != nil {
			m.logger.WithFields(logging.Fields{
				"channel": sender.Channel(),
				"panic":   r,
			}).Error("Channel sender panicked")
			result = ChannelResult{
				Channel:   sender.Channel(),
				Status:    StatusFailed,
				Details:   map[string]interface{}{"error": fmt.Sprintf("sender panic: %v", r)},
				Timestamp: time.Now().UTC(),
			}
		}
	}()
	return sender.Send(ctx, rec)
}

func (m *Manager) enabledSenders(opts Options) []Sender {
	notify := m.cfg.NotifyByDefault
	if opts.Notify != nil {
		notify = *opts.Notify
	}
	if !notify {
		return nil
	}

	var enabled []Sender
	for _, sender := range m.senders {
		switch sender.Channel() {
		case ChannelEmail:
			if m.cfg.EmailEnabled {
				enabled = append(enabled, sender)
			}
		case ChannelChat:
			if m.cfg.ChatEnabled {
				enabled = append(enabled, sender)
			}
		}
	}
	return enabled
}

// aggregate derives the overall status from the per-channel statuses:
// all sent is sent, at least one sent alongside any other outcome is partial,
// no sends but at least one failure is failed, everything else is skipped.
func aggregate(results []ChannelResult) Status {
	var sent, failed int
	for _, r := range results {
		switch r.Status {
		case StatusSent:
			sent++
		case StatusFailed:
			failed++
		}
	}

	switch {
	case sent == len(results) && sent > 0:
		return StatusSent
	case sent > 0:
		return StatusPartial
	case failed > 0:
		return StatusFailed
	default:
		return StatusSkipped
	}
}
