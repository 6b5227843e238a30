package monitor

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/luthfiadilal/front-end-CBT-sub000/internal/api"
	"github.com/luthfiadilal/front-end-CBT-sub000/internal/mockserver"
	"github.com/luthfiadilal/front-end-CBT-sub000/internal/model"
)

func newMonitorEnv(t *testing.T) (*mockserver.Server, string) {
	t.Helper()
	s := mockserver.New(zerolog.Nop())
	s.SeedDefaults()
	srv := httptest.NewServer(s.Handler())
	t.Cleanup(srv.Close)
	return s, srv.URL
}

func loginToken(t *testing.T, base string) string {
	t.Helper()
	body, err := json.Marshal(model.LoginRequest{Username: "siswa1", Password: "siswa123"})
	if err != nil {
		t.Fatal(err)
	}
	resp, err := http.Post(base+"/api/v1/auth/login", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	defer resp.Body.Close()
	var out model.LoginResponse
	if err := api.Decode(resp, &out); err != nil {
		t.Fatalf("login: %v", err)
	}
	return out.AccessToken
}

func wsMonitorURL(base string) string {
	return "ws" + strings.TrimPrefix(base, "http") + "/api/v1/student/monitor"
}

// waitForEvent polls the sink until an event with the given type arrives.
func waitForEvent(t *testing.T, s *mockserver.Server, evtType string) mockserver.Event {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for {
		for _, evt := range s.MonitorEvents() {
			if evt.Type == evtType {
				return evt
			}
		}
		if time.Now().After(deadline) {
			t.Fatalf("no %s event recorded, got %+v", evtType, s.MonitorEvents())
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestReporterDeliversEventsAndHeartbeats(t *testing.T) {
	s, base := newMonitorEnv(t)
	token := loginToken(t, base)
	attemptID := uuid.New()

	r := NewReporter(wsMonitorURL(base), token, attemptID, 30*time.Millisecond, zerolog.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go r.Start(ctx)
	defer r.Stop()

	r.Report(EventFocusLost, "window blur")

	evt := waitForEvent(t, s, EventFocusLost)
	if evt.AttemptID != attemptID {
		t.Errorf("event attempt id = %s, want %s", evt.AttemptID, attemptID)
	}
	if evt.Detail != "window blur" {
		t.Errorf("event detail = %q, want %q", evt.Detail, "window blur")
	}
	if evt.At.IsZero() {
		t.Error("event timestamp is zero")
	}

	// Heartbeats flow on their own at the configured interval.
	hb := waitForEvent(t, s, EventHeartbeat)
	if hb.AttemptID != attemptID {
		t.Errorf("heartbeat attempt id = %s, want %s", hb.AttemptID, attemptID)
	}
}

// A severed connection is re-dialed and later events still arrive.
func TestReporterReconnects(t *testing.T) {
	s, base := newMonitorEnv(t)
	token := loginToken(t, base)

	s.DropMonitorNext(1)

	r := NewReporter(wsMonitorURL(base), token, uuid.New(), 30*time.Millisecond, zerolog.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go r.Start(ctx)
	defer r.Stop()

	// The first heartbeat trips the drop knob. Events recorded after it can
	// only have arrived over a fresh connection.
	deadline := time.Now().Add(3 * time.Second)
	for len(s.MonitorEvents()) < 2 {
		if time.Now().After(deadline) {
			t.Fatal("reporter never reconnected after the dropped connection")
		}
		time.Sleep(10 * time.Millisecond)
	}

	r.Report(EventFocusBack, "window focus")
	evt := waitForEvent(t, s, EventFocusBack)
	if evt.Detail != "window focus" {
		t.Errorf("event detail = %q, want %q", evt.Detail, "window focus")
	}
}

// Report never blocks the exam flow: with no connection draining the buffer,
// overflow events are dropped silently.
func TestReportNeverBlocks(t *testing.T) {
	r := NewReporter("ws://127.0.0.1:1/api/v1/student/monitor", "t", uuid.New(), time.Second, zerolog.Nop())

	done := make(chan struct{})
	go func() {
		for i := 0; i < 100; i++ {
			r.Report(EventSuspicious, "burst")
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Report blocked on a full buffer")
	}
}

// Stop ends the loop even while the dial target is unreachable, and is safe
// to call twice.
func TestReporterStopWhileUnreachable(t *testing.T) {
	r := NewReporter("ws://127.0.0.1:1/api/v1/student/monitor", "t", uuid.New(), time.Second, zerolog.Nop())

	done := make(chan struct{})
	go func() {
		r.Start(context.Background())
		close(done)
	}()

	time.Sleep(50 * time.Millisecond)
	r.Stop()
	r.Stop()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Start did not return after Stop")
	}
}
