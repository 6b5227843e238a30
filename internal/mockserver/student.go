package mockserver

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/luthfiadilal/front-end-CBT-sub000/internal/api"
	"github.com/luthfiadilal/front-end-CBT-sub000/internal/model"
)

var wsUpgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

func (s *Server) handleListExams(c *gin.Context) {
	s.mu.Lock()
	exams := make([]model.Exam, 0, len(s.exams))
	for _, e := range s.exams {
		if e.Status == model.ExamStatusPublished {
			exams = append(exams, *e)
		}
	}
	s.mu.Unlock()
	success(c, http.StatusOK, gin.H{"exams": exams})
}

func (s *Server) handleGetExam(c *gin.Context) {
	examID, err := uuid.Parse(c.Param("examID"))
	if err != nil {
		fail(c, http.StatusBadRequest, api.ErrInvalidID)
		return
	}

	s.mu.Lock()
	e, ok := s.exams[examID]
	s.mu.Unlock()
	if !ok {
		fail(c, http.StatusNotFound, api.ErrNotFound)
		return
	}
	success(c, http.StatusOK, *e)
}

func (s *Server) handleExamStatus(c *gin.Context) {
	cl := getClaims(c)
	examID, err := uuid.Parse(c.Param("examID"))
	if err != nil {
		fail(c, http.StatusBadRequest, api.ErrInvalidID)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	exam, ok := s.exams[examID]
	if !ok {
		fail(c, http.StatusNotFound, api.ErrNotFound)
		return
	}

	att := s.currentAttemptLocked(cl.UserID, examID)
	if att == nil {
		success(c, http.StatusOK, model.ExamStatusResponse{Status: model.AttemptNotStarted})
		return
	}

	s.expireIfDueLocked(att, exam)

	if att.Status == model.AttemptCompleted {
		success(c, http.StatusOK, model.ExamStatusResponse{Status: model.AttemptCompleted})
		return
	}
	id := att.ID
	success(c, http.StatusOK, model.ExamStatusResponse{
		Status:    model.AttemptInProgress,
		AttemptID: &id,
	})
}

func (s *Server) handleStartAttempt(c *gin.Context) {
	cl := getClaims(c)
	examID, err := uuid.Parse(c.Param("examID"))
	if err != nil {
		fail(c, http.StatusBadRequest, api.ErrInvalidID)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	exam, ok := s.exams[examID]
	if !ok || exam.Status != model.ExamStatusPublished {
		fail(c, http.StatusNotFound, api.ErrExamNotAvailable)
		return
	}

	if att := s.currentAttemptLocked(cl.UserID, examID); att != nil {
		s.expireIfDueLocked(att, exam)
		switch att.Status {
		case model.AttemptInProgress:
			// Idempotent: rejoining an open attempt returns it unchanged,
			// preserving the original start time.
			success(c, http.StatusOK, model.StartAttemptResponse{
				AttemptID: att.ID,
				StartedAt: att.StartedAt,
			})
			return
		case model.AttemptCompleted:
			fail(c, http.StatusConflict, api.ErrAttemptCompleted)
			return
		}
	}

	att := &attemptRecord{
		ID:        uuid.New(),
		ExamID:    examID,
		UserID:    cl.UserID,
		StartedAt: time.Now(),
		Status:    model.AttemptInProgress,
	}
	s.attempts[att.ID] = att
	s.currentAttempt[attemptKey{UserID: cl.UserID, ExamID: examID}] = att.ID
	s.answers[att.ID] = make(map[uuid.UUID]string)

	success(c, http.StatusCreated, model.StartAttemptResponse{
		AttemptID: att.ID,
		StartedAt: att.StartedAt,
	})
}

func (s *Server) handleExamQuestions(c *gin.Context) {
	examID, err := uuid.Parse(c.Param("examID"))
	if err != nil {
		fail(c, http.StatusBadRequest, api.ErrInvalidID)
		return
	}

	s.mu.Lock()
	stored, ok := s.questions[examID]
	questions := make([]model.Question, 0, len(stored))
	for _, q := range stored {
		questions = append(questions, q.Question) // correct option stripped
	}
	s.mu.Unlock()

	if !ok {
		fail(c, http.StatusNotFound, api.ErrNotFound)
		return
	}
	success(c, http.StatusOK, gin.H{"questions": questions})
}

func (s *Server) handleSubmitAnswer(c *gin.Context) {
	cl := getClaims(c)
	attemptID, err := uuid.Parse(c.Param("attemptID"))
	if err != nil {
		fail(c, http.StatusBadRequest, api.ErrInvalidID)
		return
	}

	var req model.SubmitAnswerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, api.ErrInvalidPayload)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	att, ok := s.attempts[attemptID]
	if !ok || att.UserID != cl.UserID {
		fail(c, http.StatusNotFound, api.ErrAttemptNotFound)
		return
	}
	exam := s.exams[att.ExamID]
	s.expireIfDueLocked(att, exam)
	if att.Status != model.AttemptInProgress {
		fail(c, http.StatusConflict, api.ErrAttemptTimeExpired)
		return
	}

	found := false
	for _, q := range s.questions[att.ExamID] {
		if q.ID == req.QuestionID {
			found = true
			break
		}
	}
	if !found {
		fail(c, http.StatusNotFound, api.ErrNotFound)
		return
	}

	// Forced-failure knob: simulate a transient storage failure.
	for {
		n := s.failSubmit.Load()
		if n <= 0 {
			break
		}
		if s.failSubmit.CompareAndSwap(n, n-1) {
			fail(c, http.StatusServiceUnavailable, api.ErrSubmitFailed)
			return
		}
	}

	// Upsert: the latest submission per question wins.
	s.answers[attemptID][req.QuestionID] = req.OptionID
	success(c, http.StatusOK, gin.H{"ok": true})
}

func (s *Server) handleFinishAttempt(c *gin.Context) {
	attemptID, err := uuid.Parse(c.Param("attemptID"))
	if err != nil {
		fail(c, http.StatusBadRequest, api.ErrInvalidID)
		return
	}

	var req model.FinishAttemptRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, api.ErrInvalidPayload)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	att, ok := s.attempts[attemptID]
	if !ok {
		fail(c, http.StatusNotFound, api.ErrAttemptNotFound)
		return
	}
	s.lastFinishUser = req.UserID

	// The finish must carry the identity that started the attempt. The
	// ambient token may legitimately differ (refreshed mid-session), so
	// the attempt owner — not the claims — is the reference.
	if req.UserID != att.UserID || req.ExamID != att.ExamID {
		fail(c, http.StatusConflict, api.ErrStaleAttemptMismatch)
		return
	}

	exam := s.exams[att.ExamID]
	s.expireIfDueLocked(att, exam)
	if att.Status == model.AttemptCompleted {
		fail(c, http.StatusConflict, api.ErrAttemptCompleted)
		return
	}

	result := s.completeLocked(att, exam, time.Now())
	success(c, http.StatusOK, *result)
}

func (s *Server) handleAttemptResult(c *gin.Context) {
	cl := getClaims(c)
	attemptID, err := uuid.Parse(c.Param("attemptID"))
	if err != nil {
		fail(c, http.StatusBadRequest, api.ErrInvalidID)
		return
	}

	s.mu.Lock()
	att, ok := s.attempts[attemptID]
	var result *model.Result
	if ok {
		result = s.results[attemptID]
	}
	s.mu.Unlock()

	if !ok || result == nil {
		fail(c, http.StatusNotFound, api.ErrNotFound)
		return
	}
	// Students may only view their own result.
	if att.UserID != cl.UserID && cl.Role == "student" {
		fail(c, http.StatusForbidden, api.ErrForbidden)
		return
	}
	success(c, http.StatusOK, *result)
}

func (s *Server) handleMonitorWS(c *gin.Context) {
	conn, err := wsUpgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	for {
		var evt Event
		if err := conn.ReadJSON(&evt); err != nil {
			return
		}
		s.mu.Lock()
		s.monitorEvents = append(s.monitorEvents, evt)
		s.mu.Unlock()

		// Drop knob: sever the connection after recording the event.
		if n := s.dropMonitor.Load(); n > 0 && s.dropMonitor.CompareAndSwap(n, n-1) {
			return
		}
	}
}

// ─── Internal helpers (callers hold s.mu) ───────────────────────────────────

func (s *Server) currentAttemptLocked(userID int, examID uuid.UUID) *attemptRecord {
	id, ok := s.currentAttempt[attemptKey{UserID: userID, ExamID: examID}]
	if !ok {
		return nil
	}
	return s.attempts[id]
}

// expireIfDueLocked enforces the server-side timeout: an in-progress attempt
// whose duration (plus grace) has elapsed is completed with the answers
// submitted so far.
func (s *Server) expireIfDueLocked(att *attemptRecord, exam *model.Exam) {
	if att == nil || exam == nil || att.Status != model.AttemptInProgress {
		return
	}
	deadline := att.StartedAt.Add(exam.Duration() + timeoutGrace)
	if time.Now().After(deadline) {
		s.completeLocked(att, exam, att.StartedAt.Add(exam.Duration()))
		s.log.Debug().
			Str("attempt_id", att.ID.String()).
			Msg("attempt expired server-side")
	}
}

// completeLocked scores and closes an attempt.
func (s *Server) completeLocked(att *attemptRecord, exam *model.Exam, finishedAt time.Time) *model.Result {
	criteria, preference, final, label, reviews, correct, wrong, unanswered := computeSAW(sawInput{
		Questions: s.questions[att.ExamID],
		Answers:   s.answers[att.ID],
		Duration:  exam.Duration(),
		Started:   att.StartedAt,
		Finished:  finishedAt,
	}, s.weightsLocked())

	att.Status = model.AttemptCompleted
	att.FinishedAt = finishedAt

	result := &model.Result{
		AttemptID:       att.ID,
		ExamID:          att.ExamID,
		UserID:          att.UserID,
		CorrectCount:    correct,
		WrongCount:      wrong,
		UnansweredCount: unanswered,
		Criteria:        criteria,
		PreferenceScore: preference,
		FinalScore:      final,
		StatusLabel:     label,
		Answers:         reviews,
		FinishedAt:      finishedAt,
	}
	s.results[att.ID] = result
	return result
}

// weightsLocked resolves SAW weights from the kriteria table, falling back
// to the defaults for any missing code.
func (s *Server) weightsLocked() sawWeights {
	w := sawWeights{
		C1: defaultWeightC1,
		C2: defaultWeightC2,
		C3: defaultWeightC3,
		C4: defaultWeightC4,
	}
	for _, k := range s.kriteria {
		switch k.Code {
		case "C1":
			w.C1 = k.Weight
		case "C2":
			w.C2 = k.Weight
		case "C3":
			w.C3 = k.Weight
		case "C4":
			w.C4 = k.Weight
		}
	}
	return w
}
