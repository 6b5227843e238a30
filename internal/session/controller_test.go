package session

import (
	"context"
	"errors"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/luthfiadilal/front-end-CBT-sub000/internal/api"
	"github.com/luthfiadilal/front-end-CBT-sub000/internal/auth"
	"github.com/luthfiadilal/front-end-CBT-sub000/internal/client"
	"github.com/luthfiadilal/front-end-CBT-sub000/internal/mockserver"
	"github.com/luthfiadilal/front-end-CBT-sub000/internal/model"
	"github.com/luthfiadilal/front-end-CBT-sub000/internal/store"
)

// fakeClock is an adjustable wall clock for timer assertions.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Now()}
}

func (f *fakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *fakeClock) Advance(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = f.now.Add(d)
}

type testEnv struct {
	mock   *mockserver.Server
	client *client.Client
	state  *store.State
	exam   model.Exam
	users  []model.User
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	mock := mockserver.New(zerolog.Nop())
	exam, users := mock.SeedDefaults()

	srv := httptest.NewServer(mock.Handler())
	t.Cleanup(srv.Close)

	state := store.NewState(store.NewMemory())
	pipe := auth.NewPipeline(state, auth.Options{
		RefreshURL: srv.URL + "/api/v1/auth/refresh",
	}, zerolog.Nop())
	c := client.New(srv.URL+"/api/v1", pipe, state, zerolog.Nop())

	return &testEnv{mock: mock, client: c, state: state, exam: exam, users: users}
}

func (e *testEnv) login(t *testing.T, username, password string) model.User {
	t.Helper()
	res, err := e.client.Login(context.Background(), model.LoginRequest{
		Username: username,
		Password: password,
	})
	if err != nil {
		t.Fatalf("login %s: %v", username, err)
	}
	return res.User
}

func (e *testEnv) newController(t *testing.T, hooks Hooks, opts ...Option) *Controller {
	t.Helper()
	ctrl := NewController(e.client, e.state, hooks, zerolog.Nop(), opts...)
	t.Cleanup(ctrl.Abandon)
	return ctrl
}

func TestEnterStartsFreshAttempt(t *testing.T) {
	env := newTestEnv(t)
	siswa := env.login(t, "siswa1", "siswa123")

	ctrl := env.newController(t, Hooks{})
	if err := ctrl.Enter(context.Background(), env.exam.ID); err != nil {
		t.Fatalf("Enter: %v", err)
	}

	if ctrl.Phase() != PhaseActive {
		t.Errorf("phase = %s, want ACTIVE", ctrl.Phase())
	}
	if ctrl.Resumed() {
		t.Error("fresh attempt reported as resumed")
	}
	if got := len(ctrl.Questions()); got != 4 {
		t.Errorf("question count = %d, want 4", got)
	}

	rec, ok, err := env.state.AttemptRecord(env.exam.ID.String())
	if err != nil || !ok {
		t.Fatalf("persisted record: ok=%v err=%v", ok, err)
	}
	if rec.UserID != siswa.ID {
		t.Errorf("record user id = %d, want %d", rec.UserID, siswa.ID)
	}
	if rec.ExamID != env.exam.ID {
		t.Errorf("record exam id = %s, want %s", rec.ExamID, env.exam.ID)
	}
	if rec.StartedAt.IsZero() {
		t.Error("record started_at is zero")
	}
}

func TestEnterTwice(t *testing.T) {
	env := newTestEnv(t)
	env.login(t, "siswa1", "siswa123")

	ctrl := env.newController(t, Hooks{})
	if err := ctrl.Enter(context.Background(), env.exam.ID); err != nil {
		t.Fatalf("Enter: %v", err)
	}
	if err := ctrl.Enter(context.Background(), env.exam.ID); !errors.Is(err, ErrAlreadyEntered) {
		t.Errorf("second Enter = %v, want ErrAlreadyEntered", err)
	}
}

func TestEnterWithoutProfile(t *testing.T) {
	env := newTestEnv(t)
	env.login(t, "siswa1", "siswa123")
	if err := env.state.ClearProfile(); err != nil {
		t.Fatal(err)
	}

	ctrl := env.newController(t, Hooks{})
	if err := ctrl.Enter(context.Background(), env.exam.ID); !errors.Is(err, ErrNoProfile) {
		t.Errorf("Enter = %v, want ErrNoProfile", err)
	}
	if ctrl.Phase() != PhaseUninitialized {
		t.Errorf("phase after failed Enter = %s, want UNINITIALIZED", ctrl.Phase())
	}
}

// The remaining time is recomputed from the wall clock on every read: a
// clock jump (tab suspension, machine sleep) is reflected immediately
// instead of drifting.
func TestRemainingDerivedFromWallClock(t *testing.T) {
	env := newTestEnv(t)
	env.login(t, "siswa1", "siswa123")

	clock := newFakeClock()
	ctrl := env.newController(t, Hooks{}, WithClock(clock.Now))
	if err := ctrl.Enter(context.Background(), env.exam.ID); err != nil {
		t.Fatalf("Enter: %v", err)
	}

	total := env.exam.Duration()
	tolerance := 2 * time.Second

	if got := ctrl.Remaining(); total-got > tolerance {
		t.Errorf("initial remaining = %s, want about %s", got, total)
	}

	clock.Advance(10 * time.Minute)
	want := total - 10*time.Minute
	if got := ctrl.Remaining(); got < want-tolerance || got > want+tolerance {
		t.Errorf("remaining after 10m = %s, want about %s", got, want)
	}

	// Jump far past the deadline: the derived value clamps at zero.
	clock.Advance(2 * time.Hour)
	if got := ctrl.Remaining(); got != 0 {
		t.Errorf("remaining past deadline = %s, want 0", got)
	}
}

// When the derived remaining time reaches zero the controller times out
// exactly once, clears the persisted record, and suppresses any later
// finish call entirely.
func TestTimeoutSuppressesFinish(t *testing.T) {
	env := newTestEnv(t)
	env.login(t, "siswa1", "siswa123")

	timedOut := make(chan struct{})
	clock := newFakeClock()
	ctrl := env.newController(t, Hooks{
		OnTimeout: func() { close(timedOut) },
	}, WithClock(clock.Now))
	if err := ctrl.Enter(context.Background(), env.exam.ID); err != nil {
		t.Fatalf("Enter: %v", err)
	}

	clock.Advance(env.exam.Duration() + time.Minute)

	select {
	case <-timedOut:
	case <-time.After(3 * time.Second):
		t.Fatal("OnTimeout did not fire")
	}

	if ctrl.Phase() != PhaseTimedOut {
		t.Errorf("phase = %s, want TIMED_OUT", ctrl.Phase())
	}
	if _, ok, _ := env.state.AttemptRecord(env.exam.ID.String()); ok {
		t.Error("attempt record survived the timeout")
	}

	if _, err := ctrl.Finish(context.Background()); !errors.Is(err, ErrTimedOut) {
		t.Errorf("Finish after timeout = %v, want ErrTimedOut", err)
	}
	if got := env.mock.LastFinishUserID(); got != 0 {
		t.Errorf("a finish request reached the backend (user %d), want none", got)
	}

	// Answer selection is rejected as well.
	q := ctrl.Questions()[0]
	if err := ctrl.SelectAnswer(context.Background(), q.ID, "A"); !errors.Is(err, ErrTimedOut) {
		t.Errorf("SelectAnswer after timeout = %v, want ErrTimedOut", err)
	}
}

// A persisted record whose attempt the backend no longer confirms is
// discarded silently and a fresh attempt starts.
func TestStaleRecordSelfHeal(t *testing.T) {
	env := newTestEnv(t)
	siswa := env.login(t, "siswa1", "siswa123")

	stale := model.AttemptRecord{
		AttemptID: uuid.New(),
		ExamID:    env.exam.ID,
		UserID:    siswa.ID,
		StartedAt: time.Now().Add(-3 * time.Hour),
	}
	if err := env.state.SetAttemptRecord(env.exam.ID.String(), stale); err != nil {
		t.Fatal(err)
	}

	ctrl := env.newController(t, Hooks{})
	if err := ctrl.Enter(context.Background(), env.exam.ID); err != nil {
		t.Fatalf("Enter: %v", err)
	}

	if ctrl.Resumed() {
		t.Error("stale record was resumed instead of discarded")
	}
	rec, ok, _ := env.state.AttemptRecord(env.exam.ID.String())
	if !ok {
		t.Fatal("no fresh record persisted")
	}
	if rec.AttemptID == stale.AttemptID {
		t.Error("stale attempt id survived in the record")
	}
}

// Re-entering after an abandon resumes the confirmed attempt with its
// original identity and start time.
func TestAbandonThenResume(t *testing.T) {
	env := newTestEnv(t)
	env.login(t, "siswa1", "siswa123")

	first := env.newController(t, Hooks{})
	if err := first.Enter(context.Background(), env.exam.ID); err != nil {
		t.Fatalf("Enter: %v", err)
	}
	q := first.Questions()[0]
	if err := first.SelectAnswer(context.Background(), q.ID, "B"); err != nil {
		t.Fatalf("SelectAnswer: %v", err)
	}
	rec := first.Record()
	first.Abandon()
	if first.Phase() != PhaseAbandoned {
		t.Errorf("phase after Abandon = %s, want ABANDONED", first.Phase())
	}

	second := env.newController(t, Hooks{})
	if err := second.Enter(context.Background(), env.exam.ID); err != nil {
		t.Fatalf("re-Enter: %v", err)
	}
	if !second.Resumed() {
		t.Error("confirmed attempt was not resumed")
	}
	got := second.Record()
	if got.AttemptID != rec.AttemptID {
		t.Errorf("resumed attempt id = %s, want %s", got.AttemptID, rec.AttemptID)
	}
	if !got.StartedAt.Equal(rec.StartedAt) {
		t.Errorf("resumed started_at = %v, want the original %v", got.StartedAt, rec.StartedAt)
	}
}

func TestSelectAnswerConfirmation(t *testing.T) {
	env := newTestEnv(t)
	env.login(t, "siswa1", "siswa123")

	ctrl := env.newController(t, Hooks{})
	if err := ctrl.Enter(context.Background(), env.exam.ID); err != nil {
		t.Fatalf("Enter: %v", err)
	}

	q := ctrl.Questions()[0]
	if err := ctrl.SelectAnswer(context.Background(), q.ID, "B"); err != nil {
		t.Fatalf("SelectAnswer: %v", err)
	}
	opt, confirmed := ctrl.Answer(q.ID)
	if opt != "B" || !confirmed {
		t.Errorf("Answer = (%q, %v), want (B, true)", opt, confirmed)
	}
	if got := ctrl.AnswerCount(); got != 1 {
		t.Errorf("AnswerCount = %d, want 1", got)
	}

	// Re-selecting overwrites the previous choice.
	if err := ctrl.SelectAnswer(context.Background(), q.ID, "C"); err != nil {
		t.Fatalf("re-select: %v", err)
	}
	if opt, _ := ctrl.Answer(q.ID); opt != "C" {
		t.Errorf("Answer after re-select = %q, want C", opt)
	}
	if got := ctrl.AnswerCount(); got != 1 {
		t.Errorf("AnswerCount after re-select = %d, want 1", got)
	}
}

// A failed submission keeps the local selection as unconfirmed intent and
// surfaces a retryable error; re-selecting the same option confirms it.
func TestSelectAnswerFailureKeepsIntent(t *testing.T) {
	env := newTestEnv(t)
	env.login(t, "siswa1", "siswa123")

	ctrl := env.newController(t, Hooks{})
	if err := ctrl.Enter(context.Background(), env.exam.ID); err != nil {
		t.Fatalf("Enter: %v", err)
	}

	q := ctrl.Questions()[0]
	env.mock.SetFailSubmitNext(1)

	err := ctrl.SelectAnswer(context.Background(), q.ID, "B")
	if err == nil {
		t.Fatal("expected an error from the failed submission")
	}
	var apiErr *api.Error
	if !errors.As(err, &apiErr) || !apiErr.Retryable() {
		t.Fatalf("err = %v, want a retryable *api.Error", err)
	}

	opt, confirmed := ctrl.Answer(q.ID)
	if opt != "B" || confirmed {
		t.Errorf("Answer after failure = (%q, %v), want (B, false)", opt, confirmed)
	}
	if ctrl.Phase() != PhaseActive {
		t.Errorf("phase after failed submission = %s, want ACTIVE", ctrl.Phase())
	}

	// The retry succeeds and confirms the same selection.
	if err := ctrl.SelectAnswer(context.Background(), q.ID, "B"); err != nil {
		t.Fatalf("retry: %v", err)
	}
	if opt, confirmed := ctrl.Answer(q.ID); opt != "B" || !confirmed {
		t.Errorf("Answer after retry = (%q, %v), want (B, true)", opt, confirmed)
	}
}

// The finish call carries the identity recorded at session start, even when
// the ambient login changed mid-session.
func TestFinishCarriesSessionIdentity(t *testing.T) {
	env := newTestEnv(t)
	siswa1 := env.login(t, "siswa1", "siswa123")

	ctrl := env.newController(t, Hooks{})
	if err := ctrl.Enter(context.Background(), env.exam.ID); err != nil {
		t.Fatalf("Enter: %v", err)
	}
	for _, q := range ctrl.Questions() {
		if err := ctrl.SelectAnswer(context.Background(), q.ID, "B"); err != nil {
			t.Fatalf("SelectAnswer: %v", err)
		}
	}

	// A different account logs in mid-session. The session record, not the
	// ambient profile, must drive the finish payload.
	siswa2 := env.login(t, "siswa2", "siswa123")
	if siswa2.ID == siswa1.ID {
		t.Fatal("fixture users share an id")
	}

	result, err := ctrl.Finish(context.Background())
	if err != nil {
		t.Fatalf("Finish: %v", err)
	}

	if got := env.mock.LastFinishUserID(); got != siswa1.ID {
		t.Errorf("backend saw finish user %d, want the session identity %d", got, siswa1.ID)
	}
	if result.UserID != siswa1.ID {
		t.Errorf("result user id = %d, want %d", result.UserID, siswa1.ID)
	}
	if ctrl.Phase() != PhaseFinished {
		t.Errorf("phase = %s, want FINISHED", ctrl.Phase())
	}
	if _, ok, _ := env.state.AttemptRecord(env.exam.ID.String()); ok {
		t.Error("attempt record survived the finish")
	}
}

func TestFinishScoresAttempt(t *testing.T) {
	env := newTestEnv(t)
	env.login(t, "siswa1", "siswa123")

	ctrl := env.newController(t, Hooks{})
	if err := ctrl.Enter(context.Background(), env.exam.ID); err != nil {
		t.Fatalf("Enter: %v", err)
	}

	// Answer key for the seeded exam: B, C, A, B.
	key := []string{"B", "C", "A", "B"}
	for i, q := range ctrl.Questions() {
		if err := ctrl.SelectAnswer(context.Background(), q.ID, key[i]); err != nil {
			t.Fatalf("SelectAnswer: %v", err)
		}
	}

	result, err := ctrl.Finish(context.Background())
	if err != nil {
		t.Fatalf("Finish: %v", err)
	}
	if result.CorrectCount != 4 || result.WrongCount != 0 || result.UnansweredCount != 0 {
		t.Errorf("counts = %d/%d/%d, want 4/0/0",
			result.CorrectCount, result.WrongCount, result.UnansweredCount)
	}
	if result.Criteria.C1 != 1 {
		t.Errorf("C1 = %v, want 1 for a perfect run", result.Criteria.C1)
	}
	if result.FinalScore < 85 {
		t.Errorf("final score = %v, want at least 85 for a fast perfect run", result.FinalScore)
	}
	if result.StatusLabel != "Sangat Baik" {
		t.Errorf("status label = %q, want Sangat Baik", result.StatusLabel)
	}
}

func TestEnterCompletedAttempt(t *testing.T) {
	env := newTestEnv(t)
	env.login(t, "siswa1", "siswa123")

	first := env.newController(t, Hooks{})
	if err := first.Enter(context.Background(), env.exam.ID); err != nil {
		t.Fatalf("Enter: %v", err)
	}
	if _, err := first.Finish(context.Background()); err != nil {
		t.Fatalf("Finish: %v", err)
	}

	second := env.newController(t, Hooks{})
	err := second.Enter(context.Background(), env.exam.ID)
	var apiErr *api.Error
	if !errors.As(err, &apiErr) || apiErr.Code != api.ErrAttemptCompleted {
		t.Fatalf("Enter on completed exam = %v, want ATTEMPT_ALREADY_COMPLETED", err)
	}
	if second.Phase() != PhaseUninitialized {
		t.Errorf("phase = %s, want UNINITIALIZED", second.Phase())
	}
}
