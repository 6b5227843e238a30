package mockserver

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/luthfiadilal/front-end-CBT-sub000/internal/api"
	"github.com/luthfiadilal/front-end-CBT-sub000/internal/model"
)

func newSeededServer(t *testing.T) (*Server, *httptest.Server, model.Exam) {
	t.Helper()
	s := New(zerolog.Nop())
	exam, _ := s.SeedDefaults()
	srv := httptest.NewServer(s.Handler())
	t.Cleanup(srv.Close)
	return s, srv, exam
}

func doJSON(t *testing.T, method, url, token string, body, dst any) (*api.Envelope, int) {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req, err := http.NewRequest(method, url, &buf)
	if err != nil {
		t.Fatal(err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, url, err)
	}
	defer resp.Body.Close()

	var env api.Envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		t.Fatalf("decode envelope: %v", err)
	}
	if dst != nil && env.Data != nil {
		if err := json.Unmarshal(env.Data, dst); err != nil {
			t.Fatalf("decode data: %v", err)
		}
	}
	return &env, resp.StatusCode
}

func loginRaw(t *testing.T, base, username, password string) model.LoginResponse {
	t.Helper()
	var out model.LoginResponse
	env, status := doJSON(t, http.MethodPost, base+"/api/v1/auth/login", "",
		model.LoginRequest{Username: username, Password: password}, &out)
	if status != http.StatusOK {
		t.Fatalf("login %s: status %d, error %+v", username, status, env.Error)
	}
	return out
}

func TestRefreshRotation(t *testing.T) {
	_, srv, _ := newSeededServer(t)
	session := loginRaw(t, srv.URL, "siswa1", "siswa123")

	var first model.RefreshResponse
	_, status := doJSON(t, http.MethodPost, srv.URL+"/api/v1/auth/refresh", "",
		model.RefreshRequest{RefreshToken: session.RefreshToken}, &first)
	if status != http.StatusOK {
		t.Fatalf("first refresh: status %d", status)
	}
	if first.RefreshToken == session.RefreshToken {
		t.Error("refresh token was not rotated")
	}

	// The consumed token is single-use.
	env, status := doJSON(t, http.MethodPost, srv.URL+"/api/v1/auth/refresh", "",
		model.RefreshRequest{RefreshToken: session.RefreshToken}, nil)
	if status != http.StatusUnauthorized || env.Error == nil || env.Error.Code != api.ErrRefreshRejected {
		t.Errorf("replayed refresh: status %d, error %+v, want REFRESH_REJECTED", status, env.Error)
	}

	// The rotated token still works.
	_, status = doJSON(t, http.MethodPost, srv.URL+"/api/v1/auth/refresh", "",
		model.RefreshRequest{RefreshToken: first.RefreshToken}, nil)
	if status != http.StatusOK {
		t.Errorf("rotated refresh: status %d", status)
	}
}

func TestForcedExpiryKnob(t *testing.T) {
	s, srv, _ := newSeededServer(t)
	session := loginRaw(t, srv.URL, "siswa1", "siswa123")

	s.ForceExpireNext(1)

	env, status := doJSON(t, http.MethodGet, srv.URL+"/api/v1/auth/me", session.AccessToken, nil, nil)
	if status != http.StatusUnauthorized || env.Error == nil || env.Error.Code != api.ErrTokenExpired {
		t.Fatalf("forced request: status %d error %+v, want TOKEN_EXPIRED", status, env.Error)
	}

	// Knob consumed; the same token is accepted again.
	_, status = doJSON(t, http.MethodGet, srv.URL+"/api/v1/auth/me", session.AccessToken, nil, nil)
	if status != http.StatusOK {
		t.Errorf("second request: status %d, want 200", status)
	}
}

// An attempt whose duration plus grace has elapsed is closed server-side and
// reported as completed on the next status query, with the answers submitted
// so far scored.
func TestServerSideExpiry(t *testing.T) {
	s, srv, exam := newSeededServer(t)
	session := loginRaw(t, srv.URL, "siswa1", "siswa123")

	var started model.StartAttemptResponse
	_, status := doJSON(t, http.MethodPost,
		srv.URL+"/api/v1/student/exams/"+exam.ID.String()+"/attempts",
		session.AccessToken, nil, &started)
	if status != http.StatusCreated {
		t.Fatalf("start attempt: status %d", status)
	}

	s.SetAttemptStart(started.AttemptID, time.Now().Add(-exam.Duration()-time.Minute))

	var statusResp model.ExamStatusResponse
	_, code := doJSON(t, http.MethodGet,
		srv.URL+"/api/v1/student/exams/"+exam.ID.String()+"/status",
		session.AccessToken, nil, &statusResp)
	if code != http.StatusOK {
		t.Fatalf("status query: %d", code)
	}
	if statusResp.Status != model.AttemptCompleted {
		t.Errorf("status = %s, want completed after expiry", statusResp.Status)
	}

	// Late submissions are rejected.
	env, code := doJSON(t, http.MethodPost,
		srv.URL+"/api/v1/student/attempts/"+started.AttemptID.String()+"/answers",
		session.AccessToken,
		model.SubmitAnswerRequest{QuestionID: uuid.New(), OptionID: "A"}, nil)
	if code != http.StatusConflict || env.Error == nil || env.Error.Code != api.ErrAttemptTimeExpired {
		t.Errorf("late submit: status %d error %+v, want ATTEMPT_TIME_EXPIRED", code, env.Error)
	}

	// The expired attempt has a scored result.
	var result model.Result
	_, code = doJSON(t, http.MethodGet,
		srv.URL+"/api/v1/student/attempts/"+started.AttemptID.String()+"/result",
		session.AccessToken, nil, &result)
	if code != http.StatusOK {
		t.Fatalf("result query: %d", code)
	}
	if result.UnansweredCount != 4 {
		t.Errorf("unanswered = %d, want all 4", result.UnansweredCount)
	}
}

func TestFinishIdentityMismatch(t *testing.T) {
	_, srv, exam := newSeededServer(t)
	session := loginRaw(t, srv.URL, "siswa1", "siswa123")

	var started model.StartAttemptResponse
	_, _ = doJSON(t, http.MethodPost,
		srv.URL+"/api/v1/student/exams/"+exam.ID.String()+"/attempts",
		session.AccessToken, nil, &started)

	env, code := doJSON(t, http.MethodPost,
		srv.URL+"/api/v1/student/attempts/"+started.AttemptID.String()+"/finish",
		session.AccessToken,
		model.FinishAttemptRequest{UserID: 9999, ExamID: exam.ID}, nil)
	if code != http.StatusConflict || env.Error == nil || env.Error.Code != api.ErrStaleAttemptMismatch {
		t.Errorf("finish with wrong identity: status %d error %+v, want ATTEMPT_MISMATCH", code, env.Error)
	}
}

func TestKriteriaWeightsDriveScoring(t *testing.T) {
	s, srv, exam := newSeededServer(t)
	admin := loginRaw(t, srv.URL, "admin", "admin123")

	// Shift all weight onto accuracy.
	var list struct {
		Kriteria []model.Kriteria `json:"kriteria"`
	}
	_, _ = doJSON(t, http.MethodGet, srv.URL+"/api/v1/admin/kriteria", admin.AccessToken, nil, &list)
	weights := map[string]float64{"C1": 1.0, "C2": 0.0001, "C3": 0.0001, "C4": 0.0001}
	for _, k := range list.Kriteria {
		_, code := doJSON(t, http.MethodPut,
			srv.URL+"/api/v1/admin/kriteria/"+strconv.Itoa(k.ID),
			admin.AccessToken,
			model.UpdateKriteriaRequest{Weight: weights[k.Code]}, nil)
		if code != http.StatusOK {
			t.Fatalf("update %s: status %d", k.Code, code)
		}
	}

	session := loginRaw(t, srv.URL, "siswa1", "siswa123")
	var started model.StartAttemptResponse
	_, _ = doJSON(t, http.MethodPost,
		srv.URL+"/api/v1/student/exams/"+exam.ID.String()+"/attempts",
		session.AccessToken, nil, &started)

	var questions struct {
		Questions []model.Question `json:"questions"`
	}
	_, _ = doJSON(t, http.MethodGet,
		srv.URL+"/api/v1/student/exams/"+exam.ID.String()+"/questions",
		session.AccessToken, nil, &questions)

	key := []string{"B", "C", "A", "B"}
	for i, q := range questions.Questions {
		_, code := doJSON(t, http.MethodPost,
			srv.URL+"/api/v1/student/attempts/"+started.AttemptID.String()+"/answers",
			session.AccessToken,
			model.SubmitAnswerRequest{QuestionID: q.ID, OptionID: key[i]}, nil)
		if code != http.StatusOK {
			t.Fatalf("submit %d: status %d", i, code)
		}
	}

	var result model.Result
	_, code := doJSON(t, http.MethodPost,
		srv.URL+"/api/v1/student/attempts/"+started.AttemptID.String()+"/finish",
		session.AccessToken,
		model.FinishAttemptRequest{UserID: session.User.ID, ExamID: exam.ID}, &result)
	if code != http.StatusOK {
		t.Fatalf("finish: status %d", code)
	}

	// Perfect accuracy with weight ~1 on C1 puts the final score at ~100
	// regardless of the time criterion.
	if result.FinalScore < 99 {
		t.Errorf("final = %v, want ~100 with accuracy-only weights", result.FinalScore)
	}
	if got := s.LastFinishUserID(); got != session.User.ID {
		t.Errorf("last finish user = %d, want %d", got, session.User.ID)
	}
}

func TestMonitorWebSocket(t *testing.T) {
	s, srv, exam := newSeededServer(t)
	session := loginRaw(t, srv.URL, "siswa1", "siswa123")

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") +
		"/api/v1/student/monitor?token=" + session.AccessToken
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	evt := Event{
		Type:      "FOCUS_LOST",
		AttemptID: exam.ID,
		At:        time.Now(),
		Detail:    "window blur",
	}
	if err := conn.WriteJSON(evt); err != nil {
		t.Fatalf("write: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for {
		events := s.MonitorEvents()
		if len(events) > 0 {
			if events[0].Type != "FOCUS_LOST" || events[0].Detail != "window blur" {
				t.Errorf("event = %+v", events[0])
			}
			return
		}
		if time.Now().After(deadline) {
			t.Fatal("event never recorded")
		}
		time.Sleep(10 * time.Millisecond)
	}
}
