// Package session implements the exam attempt session controller: the
// lifecycle of one exam-taking session, from validating a locally persisted
// record through the active countdown to finish, timeout or abandonment.
package session

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/luthfiadilal/front-end-CBT-sub000/internal/api"
	"github.com/luthfiadilal/front-end-CBT-sub000/internal/client"
	"github.com/luthfiadilal/front-end-CBT-sub000/internal/model"
	"github.com/luthfiadilal/front-end-CBT-sub000/internal/store"
)

// Phase enumerates the controller states.
type Phase int

const (
	PhaseUninitialized Phase = iota
	PhaseValidating
	PhaseResumed
	PhaseStarting
	PhaseActive
	PhaseFinished
	PhaseTimedOut
	PhaseAbandoned
)

func (p Phase) String() string {
	switch p {
	case PhaseUninitialized:
		return "UNINITIALIZED"
	case PhaseValidating:
		return "VALIDATING"
	case PhaseResumed:
		return "RESUMED"
	case PhaseStarting:
		return "STARTING"
	case PhaseActive:
		return "ACTIVE"
	case PhaseFinished:
		return "FINISHED"
	case PhaseTimedOut:
		return "TIMED_OUT"
	case PhaseAbandoned:
		return "ABANDONED"
	}
	return "UNKNOWN"
}

// Controller lifecycle errors.
var (
	ErrAlreadyEntered = errors.New("session: already entered")
	ErrNotActive      = errors.New("session: no active attempt")
	ErrTimedOut       = errors.New("session: attempt timed out")
	ErrNoProfile      = errors.New("session: no cached profile, login required")
)

// Hooks are the UI callbacks fired by the countdown goroutine.
type Hooks struct {
	// OnTick receives the recomputed remaining time every second.
	OnTick func(remaining time.Duration)
	// OnTimeout fires once, when the derived remaining time reaches zero.
	OnTimeout func()
}

// Controller manages one exam attempt session.
type Controller struct {
	api   *client.Client
	state *store.State
	clock func() time.Time
	hooks Hooks
	log   zerolog.Logger

	mu        sync.Mutex
	phase     Phase
	resumed   bool
	exam      *model.Exam
	questions []model.Question
	record    model.AttemptRecord
	// answers holds the user's intent per question; it is volatile and
	// advisory for rendering. The backend owns the submitted truth.
	answers   map[uuid.UUID]string
	confirmed map[uuid.UUID]bool

	stop     chan struct{}
	stopOnce *sync.Once
}

// Option configures a Controller.
type Option func(*Controller)

// WithClock substitutes the wall clock, for tests.
func WithClock(clock func() time.Time) Option {
	return func(c *Controller) { c.clock = clock }
}

// NewController creates a controller in the Uninitialized phase.
func NewController(apiClient *client.Client, state *store.State, hooks Hooks, log zerolog.Logger, opts ...Option) *Controller {
	c := &Controller{
		api:       apiClient,
		state:     state,
		clock:     time.Now,
		hooks:     hooks,
		log:       log.With().Str("component", "session").Logger(),
		phase:     PhaseUninitialized,
		answers:   make(map[uuid.UUID]string),
		confirmed: make(map[uuid.UUID]bool),
		stop:      make(chan struct{}),
		stopOnce:  &sync.Once{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Enter validates any locally persisted session for examID against the
// backend, then either resumes the confirmed attempt or discards the stale
// record and starts fresh. On success the controller is Active and the
// countdown is running.
func (c *Controller) Enter(ctx context.Context, examID uuid.UUID) error {
	c.mu.Lock()
	if c.phase != PhaseUninitialized {
		c.mu.Unlock()
		return ErrAlreadyEntered
	}
	c.phase = PhaseValidating
	c.mu.Unlock()

	profile, ok, err := c.state.Profile()
	if err != nil || !ok {
		c.reset()
		if err != nil {
			return err
		}
		return ErrNoProfile
	}

	rec, haveLocal, err := c.state.AttemptRecord(examID.String())
	if err != nil {
		c.reset()
		return err
	}

	status, err := c.api.ExamStatus(ctx, examID)
	if err != nil {
		c.reset()
		return err
	}

	if status.Status == model.AttemptCompleted {
		// Nothing to resume or start; drop any leftover record.
		_ = c.state.ClearAttemptRecord(examID.String())
		c.reset()
		return api.NewError(api.ErrAttemptCompleted, http.StatusConflict)
	}

	resume := haveLocal &&
		status.Status == model.AttemptInProgress &&
		status.AttemptID != nil &&
		*status.AttemptID == rec.AttemptID

	if resume {
		c.setPhase(PhaseResumed)
		c.resumed = true
	} else {
		// Stale or foreign record: self-heal silently before starting.
		if haveLocal {
			c.log.Info().
				Str("exam_id", examID.String()).
				Str("stale_attempt_id", rec.AttemptID.String()).
				Msg("discarding stale session record")
			if err := c.state.ClearAttemptRecord(examID.String()); err != nil {
				c.reset()
				return err
			}
		}
		c.setPhase(PhaseStarting)

		started, err := c.api.StartAttempt(ctx, examID)
		if err != nil {
			c.reset()
			return err
		}
		startTime := started.StartedAt
		if startTime.IsZero() {
			startTime = c.clock()
		}
		// UserID is captured here, at session start. The finish call
		// reports THIS identity, not whatever the ambient token says
		// at finish time.
		rec = model.AttemptRecord{
			AttemptID: started.AttemptID,
			ExamID:    examID,
			UserID:    profile.UserID,
			StartedAt: startTime,
		}
		if err := c.state.SetAttemptRecord(examID.String(), rec); err != nil {
			c.reset()
			return err
		}
	}

	exam, err := c.api.Exam(ctx, examID)
	if err != nil {
		c.reset()
		return err
	}
	questions, err := c.api.Questions(ctx, examID)
	if err != nil {
		c.reset()
		return err
	}

	c.mu.Lock()
	c.exam = exam
	c.questions = questions
	c.record = rec
	c.phase = PhaseActive
	c.mu.Unlock()

	c.log.Info().
		Str("exam_id", examID.String()).
		Str("attempt_id", rec.AttemptID.String()).
		Bool("resumed", c.resumed).
		Msg("attempt active")

	go c.run()
	return nil
}

// Remaining recomputes the remaining time from the recorded start and the
// wall clock. It is derived, never decremented, so skipped ticks (tab
// suspension, process sleep) cannot make it drift.
func (c *Controller) Remaining() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.remainingLocked()
}

func (c *Controller) remainingLocked() time.Duration {
	if c.exam == nil {
		return 0
	}
	total := int64(c.exam.Duration() / time.Second)
	elapsed := int64(c.clock().Sub(c.record.StartedAt) / time.Second)
	left := total - elapsed
	if left < 0 {
		left = 0
	}
	return time.Duration(left) * time.Second
}

// SelectAnswer records the user's choice locally and submits it to the
// backend. On submission failure the local selection is kept as the user's
// intent and a retryable error is returned; the caller may simply call
// SelectAnswer again.
func (c *Controller) SelectAnswer(ctx context.Context, questionID uuid.UUID, optionID string) error {
	c.mu.Lock()
	if c.phase != PhaseActive {
		err := ErrNotActive
		if c.phase == PhaseTimedOut {
			err = ErrTimedOut
		}
		c.mu.Unlock()
		return err
	}
	c.answers[questionID] = optionID
	c.confirmed[questionID] = false
	attemptID := c.record.AttemptID
	c.mu.Unlock()

	if err := c.api.SubmitAnswer(ctx, attemptID, questionID, optionID); err != nil {
		c.log.Warn().Err(err).
			Str("question_id", questionID.String()).
			Msg("answer submission failed, selection kept")
		return err
	}

	c.mu.Lock()
	// Confirm only if the intent has not changed while in flight.
	if c.answers[questionID] == optionID {
		c.confirmed[questionID] = true
	}
	c.mu.Unlock()
	return nil
}

// Finish completes the attempt with explicit user confirmation. The user id
// sent is the one recorded at session start. After a local timeout the
// finish call is suppressed entirely.
func (c *Controller) Finish(ctx context.Context) (*model.Result, error) {
	c.mu.Lock()
	switch c.phase {
	case PhaseTimedOut:
		c.mu.Unlock()
		return nil, ErrTimedOut
	case PhaseActive:
		// proceed
	default:
		c.mu.Unlock()
		return nil, ErrNotActive
	}
	rec := c.record
	c.mu.Unlock()

	result, err := c.api.FinishAttempt(ctx, rec.AttemptID, rec.UserID, rec.ExamID)
	if err != nil {
		// Still Active; the caller may retry.
		return nil, err
	}

	c.mu.Lock()
	c.phase = PhaseFinished
	c.mu.Unlock()
	c.stopTicker()

	if err := c.state.ClearAttemptRecord(rec.ExamID.String()); err != nil {
		c.log.Warn().Err(err).Msg("clear attempt record failed")
	}

	c.log.Info().
		Str("attempt_id", rec.AttemptID.String()).
		Float64("final_score", result.FinalScore).
		Msg("attempt finished")
	return result, nil
}

// Abandon intercepts navigation away from the exam. No cleanup happens:
// the next Enter revalidates the persisted record against the backend.
func (c *Controller) Abandon() {
	c.stopTicker()
	c.mu.Lock()
	if c.phase == PhaseActive {
		c.phase = PhaseAbandoned
	}
	c.mu.Unlock()
}

// Phase returns the current lifecycle phase.
func (c *Controller) Phase() Phase {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.phase
}

// Resumed reports whether Enter resumed an existing attempt.
func (c *Controller) Resumed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.resumed
}

// Exam returns the active exam metadata.
func (c *Controller) Exam() *model.Exam {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.exam
}

// Questions returns the ordered question list.
func (c *Controller) Questions() []model.Question {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.questions
}

// Record returns the session record backing this attempt.
func (c *Controller) Record() model.AttemptRecord {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.record
}

// Answer returns the locally selected option for a question and whether the
// backend has acknowledged it.
func (c *Controller) Answer(questionID uuid.UUID) (optionID string, confirmed bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.answers[questionID], c.confirmed[questionID]
}

// AnswerCount returns how many questions have a local selection.
func (c *Controller) AnswerCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.answers)
}

// ─── Internal ───────────────────────────────────────────────────────────────

// run is the countdown goroutine. Each tick recomputes the remaining time
// from the wall clock; in-flight submissions are never cancelled by the
// deadline.
func (c *Controller) run() {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-c.stop:
			return
		case <-ticker.C:
			c.mu.Lock()
			if c.phase != PhaseActive {
				c.mu.Unlock()
				return
			}
			left := c.remainingLocked()
			if left <= 0 {
				c.phase = PhaseTimedOut
				rec := c.record
				c.mu.Unlock()

				if err := c.state.ClearAttemptRecord(rec.ExamID.String()); err != nil {
					c.log.Warn().Err(err).Msg("clear attempt record failed")
				}
				c.log.Info().
					Str("attempt_id", rec.AttemptID.String()).
					Msg("attempt timed out locally")
				if c.hooks.OnTimeout != nil {
					c.hooks.OnTimeout()
				}
				return
			}
			c.mu.Unlock()

			if c.hooks.OnTick != nil {
				c.hooks.OnTick(left)
			}
		}
	}
}

func (c *Controller) stopTicker() {
	c.stopOnce.Do(func() { close(c.stop) })
}

func (c *Controller) setPhase(p Phase) {
	c.mu.Lock()
	c.phase = p
	c.mu.Unlock()
}

// reset returns the controller to Uninitialized after a failed Enter so the
// view can retry.
func (c *Controller) reset() {
	c.mu.Lock()
	c.phase = PhaseUninitialized
	c.mu.Unlock()
}
