// Package monitor reports exam-session activity to the backend's proctor
// channel over a WebSocket. Reporting is best-effort: a broken channel is
// retried with backoff and never interrupts the exam flow.
package monitor

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

// Event types sent over the monitor channel.
const (
	EventHeartbeat  = "HEARTBEAT"
	EventFocusLost  = "FOCUS_LOST"
	EventFocusBack  = "FOCUS_BACK"
	EventSuspicious = "SUSPICIOUS"
)

// Event is one activity report for an attempt.
type Event struct {
	Type      string    `json:"type"`
	AttemptID uuid.UUID `json:"attempt_id"`
	At        time.Time `json:"at"`
	Detail    string    `json:"detail,omitempty"`
}

// Reporter maintains the monitor WebSocket for one active attempt.
type Reporter struct {
	url       string
	token     string
	attemptID uuid.UUID
	interval  time.Duration
	log       zerolog.Logger

	events chan Event
	done   chan struct{}
}

// NewReporter creates a reporter for an attempt. url is the monitor
// endpoint; token is the current access token (the backend authenticates
// the upgrade via the token query parameter).
func NewReporter(url, token string, attemptID uuid.UUID, interval time.Duration, log zerolog.Logger) *Reporter {
	if interval <= 0 {
		interval = 15 * time.Second
	}
	return &Reporter{
		url:       url,
		token:     token,
		attemptID: attemptID,
		interval:  interval,
		log:       log.With().Str("component", "monitor").Logger(),
		events:    make(chan Event, 32),
		done:      make(chan struct{}),
	}
}

// Start runs the reporting loop until ctx is cancelled or Stop is called.
// Call in a goroutine.
func (r *Reporter) Start(ctx context.Context) {
	backoff := time.Second

	for {
		conn, _, err := websocket.DefaultDialer.DialContext(ctx, r.url+"?token="+r.token, nil)
		if err != nil {
			r.log.Warn().Err(err).Dur("retry_in", backoff).Msg("monitor dial failed")
			select {
			case <-ctx.Done():
				return
			case <-r.done:
				return
			case <-time.After(backoff):
			}
			if backoff < 30*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second
		r.log.Debug().Msg("monitor channel connected")

		if !r.pump(ctx, conn) {
			conn.Close()
			return
		}
		conn.Close()
	}
}

// Report queues an activity event. It never blocks: when the buffer is full
// the event is dropped (heartbeats make the channel self-healing).
func (r *Reporter) Report(evtType, detail string) {
	evt := Event{Type: evtType, AttemptID: r.attemptID, At: time.Now(), Detail: detail}
	select {
	case r.events <- evt:
	default:
		r.log.Debug().Str("type", evtType).Msg("monitor buffer full, event dropped")
	}
}

// Stop ends the reporting loop.
func (r *Reporter) Stop() {
	select {
	case <-r.done:
	default:
		close(r.done)
	}
}

// pump writes queued events and periodic heartbeats until the connection
// breaks (returns true, reconnect) or the reporter stops (returns false).
func (r *Reporter) pump(ctx context.Context, conn *websocket.Conn) bool {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return false
		case <-r.done:
			return false
		case evt := <-r.events:
			if err := conn.WriteJSON(evt); err != nil {
				r.log.Warn().Err(err).Msg("monitor write failed")
				return true
			}
		case <-ticker.C:
			evt := Event{Type: EventHeartbeat, AttemptID: r.attemptID, At: time.Now()}
			if err := conn.WriteJSON(evt); err != nil {
				r.log.Warn().Err(err).Msg("monitor heartbeat failed")
				return true
			}
		}
	}
}
