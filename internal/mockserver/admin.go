package mockserver

import (
	"net/http"
	"sort"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/luthfiadilal/front-end-CBT-sub000/internal/api"
	"github.com/luthfiadilal/front-end-CBT-sub000/internal/model"
	"github.com/luthfiadilal/front-end-CBT-sub000/internal/role"
)

// ─── Users ──────────────────────────────────────────────────────────────────

func (s *Server) handleListUsers(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	perPage, _ := strconv.Atoi(c.DefaultQuery("per_page", "20"))
	if page < 1 {
		page = 1
	}
	if perPage < 1 || perPage > 100 {
		perPage = 20
	}

	s.mu.Lock()
	users := make([]model.User, 0, len(s.users))
	for _, u := range s.users {
		users = append(users, u.User)
	}
	s.mu.Unlock()

	sort.Slice(users, func(i, j int) bool { return users[i].ID < users[j].ID })

	total := len(users)
	start := (page - 1) * perPage
	if start > total {
		start = total
	}
	end := start + perPage
	if end > total {
		end = total
	}

	totalPages := (total + perPage - 1) / perPage
	raw := gin.H{"users": users[start:end]}
	pg := &api.Pagination{Page: page, PerPage: perPage, TotalItems: total, TotalPages: totalPages}
	successWithPagination(c, http.StatusOK, raw, pg)
}

func (s *Server) handleCreateUser(c *gin.Context) {
	var req model.CreateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, api.ErrInvalidPayload)
		return
	}
	if _, ok := role.Lookup(req.Role); !ok {
		failWithFields(c, http.StatusBadRequest, api.ErrValidation, map[string]string{"role": "unknown role"})
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.byUsername[req.Username]; exists {
		fail(c, http.StatusConflict, api.ErrConflict)
		return
	}

	now := time.Now()
	u := &userRecord{
		User: model.User{
			ID:        s.nextUserID,
			Username:  req.Username,
			Name:      req.Name,
			Role:      role.Role(req.Role),
			CreatedAt: now,
			UpdatedAt: now,
		},
		Password: req.Password,
		Profile: model.Profile{
			UserID: s.nextUserID,
			Name:   req.Name,
			Email:  req.Email,
			NISN:   req.NISN,
			Class:  req.Class,
			NIP:    req.NIP,
		},
	}
	s.users[u.ID] = u
	s.byUsername[u.Username] = u.ID
	s.nextUserID++

	success(c, http.StatusCreated, u.User)
}

func (s *Server) handleUpdateUser(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		fail(c, http.StatusBadRequest, api.ErrInvalidID)
		return
	}
	var req model.UpdateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, api.ErrInvalidPayload)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[id]
	if !ok {
		fail(c, http.StatusNotFound, api.ErrNotFound)
		return
	}
	if req.Name != "" {
		u.Name = req.Name
		u.Profile.Name = req.Name
	}
	if req.Password != "" {
		u.Password = req.Password
	}
	if req.Email != "" {
		u.Profile.Email = req.Email
	}
	if req.Class != "" {
		u.Profile.Class = req.Class
	}
	u.UpdatedAt = time.Now()

	success(c, http.StatusOK, u.User)
}

func (s *Server) handleDeleteUser(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		fail(c, http.StatusBadRequest, api.ErrInvalidID)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[id]
	if !ok {
		fail(c, http.StatusNotFound, api.ErrNotFound)
		return
	}
	delete(s.byUsername, u.Username)
	delete(s.users, id)

	success(c, http.StatusOK, gin.H{"ok": true})
}

// ─── Exams ──────────────────────────────────────────────────────────────────

func (s *Server) handleAdminListExams(c *gin.Context) {
	s.mu.Lock()
	exams := make([]model.Exam, 0, len(s.exams))
	for _, e := range s.exams {
		exams = append(exams, *e)
	}
	s.mu.Unlock()

	sort.Slice(exams, func(i, j int) bool { return exams[i].CreatedAt.Before(exams[j].CreatedAt) })
	success(c, http.StatusOK, gin.H{"exams": exams})
}

func (s *Server) handleCreateExam(c *gin.Context) {
	cl := getClaims(c)
	var req model.CreateExamRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, api.ErrInvalidPayload)
		return
	}
	if req.Title == "" || req.DurationMinutes < 1 {
		fail(c, http.StatusBadRequest, api.ErrValidation)
		return
	}

	now := time.Now()
	exam := &model.Exam{
		ID:              uuid.New(),
		Title:           req.Title,
		Subject:         req.Subject,
		AuthorID:        cl.UserID,
		DurationMinutes: req.DurationMinutes,
		ScheduledStart:  req.ScheduledStart,
		ScheduledEnd:    req.ScheduledEnd,
		Status:          model.ExamStatusDraft,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	s.mu.Lock()
	s.exams[exam.ID] = exam
	s.questions[exam.ID] = nil
	s.mu.Unlock()

	success(c, http.StatusCreated, *exam)
}

func (s *Server) handleUpdateExam(c *gin.Context) {
	examID, err := uuid.Parse(c.Param("examID"))
	if err != nil {
		fail(c, http.StatusBadRequest, api.ErrInvalidID)
		return
	}
	var req model.UpdateExamRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, api.ErrInvalidPayload)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	exam, ok := s.exams[examID]
	if !ok {
		fail(c, http.StatusNotFound, api.ErrNotFound)
		return
	}
	if req.Title != "" {
		exam.Title = req.Title
	}
	if req.Subject != "" {
		exam.Subject = req.Subject
	}
	if req.DurationMinutes > 0 {
		exam.DurationMinutes = req.DurationMinutes
	}
	if req.ScheduledStart != nil {
		exam.ScheduledStart = req.ScheduledStart
	}
	if req.ScheduledEnd != nil {
		exam.ScheduledEnd = req.ScheduledEnd
	}
	if req.Status != "" {
		exam.Status = req.Status
	}
	exam.UpdatedAt = time.Now()

	success(c, http.StatusOK, *exam)
}

func (s *Server) handleDeleteExam(c *gin.Context) {
	examID, err := uuid.Parse(c.Param("examID"))
	if err != nil {
		fail(c, http.StatusBadRequest, api.ErrInvalidID)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.exams[examID]; !ok {
		fail(c, http.StatusNotFound, api.ErrNotFound)
		return
	}
	delete(s.exams, examID)
	delete(s.questions, examID)

	success(c, http.StatusOK, gin.H{"ok": true})
}

// ─── Questions ──────────────────────────────────────────────────────────────

func (s *Server) handleAdminListQuestions(c *gin.Context) {
	examID, err := uuid.Parse(c.Param("examID"))
	if err != nil {
		fail(c, http.StatusBadRequest, api.ErrInvalidID)
		return
	}

	s.mu.Lock()
	stored, ok := s.questions[examID]
	questions := make([]model.Question, 0, len(stored))
	for _, q := range stored {
		questions = append(questions, q.Question)
	}
	s.mu.Unlock()

	if !ok {
		fail(c, http.StatusNotFound, api.ErrNotFound)
		return
	}
	success(c, http.StatusOK, gin.H{"questions": questions})
}

func (s *Server) handleAddQuestion(c *gin.Context) {
	examID, err := uuid.Parse(c.Param("examID"))
	if err != nil {
		fail(c, http.StatusBadRequest, api.ErrInvalidID)
		return
	}
	var req model.AddQuestionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, api.ErrInvalidPayload)
		return
	}
	if req.Text == "" || len(req.Options) < 2 {
		fail(c, http.StatusBadRequest, api.ErrValidation)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.exams[examID]; !ok {
		fail(c, http.StatusNotFound, api.ErrNotFound)
		return
	}

	difficulty := req.Difficulty
	if difficulty < 1 {
		difficulty = 1
	}
	q := storedQuestion{
		Question: model.Question{
			ID:         uuid.New(),
			ExamID:     examID,
			Text:       req.Text,
			Options:    req.Options,
			OrderNum:   req.OrderNum,
			PairGroup:  req.PairGroup,
			Difficulty: difficulty,
		},
		Correct: req.CorrectOption,
	}
	s.questions[examID] = append(s.questions[examID], q)
	s.exams[examID].QuestionCount = len(s.questions[examID])

	success(c, http.StatusCreated, q.Question)
}

func (s *Server) handleUpdateQuestion(c *gin.Context) {
	examID, err := uuid.Parse(c.Param("examID"))
	if err != nil {
		fail(c, http.StatusBadRequest, api.ErrInvalidID)
		return
	}
	questionID, err := uuid.Parse(c.Param("questionID"))
	if err != nil {
		fail(c, http.StatusBadRequest, api.ErrInvalidID)
		return
	}
	var req model.UpdateQuestionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, api.ErrInvalidPayload)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	stored := s.questions[examID]
	for i := range stored {
		if stored[i].ID != questionID {
			continue
		}
		if req.Text != "" {
			stored[i].Text = req.Text
		}
		if len(req.Options) > 0 {
			stored[i].Options = req.Options
		}
		if req.CorrectOption != "" {
			stored[i].Correct = req.CorrectOption
		}
		if req.OrderNum > 0 {
			stored[i].OrderNum = req.OrderNum
		}
		if req.PairGroup != "" {
			stored[i].PairGroup = req.PairGroup
		}
		if req.Difficulty > 0 {
			stored[i].Difficulty = req.Difficulty
		}
		success(c, http.StatusOK, stored[i].Question)
		return
	}
	fail(c, http.StatusNotFound, api.ErrNotFound)
}

func (s *Server) handleDeleteQuestion(c *gin.Context) {
	examID, err := uuid.Parse(c.Param("examID"))
	if err != nil {
		fail(c, http.StatusBadRequest, api.ErrInvalidID)
		return
	}
	questionID, err := uuid.Parse(c.Param("questionID"))
	if err != nil {
		fail(c, http.StatusBadRequest, api.ErrInvalidID)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	stored := s.questions[examID]
	for i := range stored {
		if stored[i].ID == questionID {
			s.questions[examID] = append(stored[:i], stored[i+1:]...)
			s.exams[examID].QuestionCount = len(s.questions[examID])
			success(c, http.StatusOK, gin.H{"ok": true})
			return
		}
	}
	fail(c, http.StatusNotFound, api.ErrNotFound)
}

// ─── Kriteria ───────────────────────────────────────────────────────────────

func (s *Server) handleListKriteria(c *gin.Context) {
	s.mu.Lock()
	list := make([]model.Kriteria, 0, len(s.kriteria))
	for _, k := range s.kriteria {
		list = append(list, *k)
	}
	s.mu.Unlock()

	sort.Slice(list, func(i, j int) bool { return list[i].Code < list[j].Code })
	success(c, http.StatusOK, gin.H{"kriteria": list})
}

func (s *Server) handleCreateKriteria(c *gin.Context) {
	var req model.CreateKriteriaRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, api.ErrInvalidPayload)
		return
	}
	if req.Code == "" || req.Weight <= 0 || req.Weight > 1 {
		fail(c, http.StatusBadRequest, api.ErrValidation)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, k := range s.kriteria {
		if k.Code == req.Code {
			fail(c, http.StatusConflict, api.ErrConflict)
			return
		}
	}
	k := &model.Kriteria{
		ID:     s.nextKriteriaID,
		Code:   req.Code,
		Name:   req.Name,
		Weight: req.Weight,
	}
	s.kriteria[k.ID] = k
	s.nextKriteriaID++

	success(c, http.StatusCreated, *k)
}

func (s *Server) handleUpdateKriteria(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		fail(c, http.StatusBadRequest, api.ErrInvalidID)
		return
	}
	var req model.UpdateKriteriaRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, api.ErrInvalidPayload)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	k, ok := s.kriteria[id]
	if !ok {
		fail(c, http.StatusNotFound, api.ErrNotFound)
		return
	}
	if req.Name != "" {
		k.Name = req.Name
	}
	if req.Weight > 0 {
		k.Weight = req.Weight
	}

	success(c, http.StatusOK, *k)
}

func (s *Server) handleDeleteKriteria(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		fail(c, http.StatusBadRequest, api.ErrInvalidID)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.kriteria[id]; !ok {
		fail(c, http.StatusNotFound, api.ErrNotFound)
		return
	}
	delete(s.kriteria, id)

	success(c, http.StatusOK, gin.H{"ok": true})
}

// ─── Report ─────────────────────────────────────────────────────────────────

func (s *Server) handleExamReport(c *gin.Context) {
	examID, err := uuid.Parse(c.Param("examID"))
	if err != nil {
		fail(c, http.StatusBadRequest, api.ErrInvalidID)
		return
	}

	s.mu.Lock()
	if _, ok := s.exams[examID]; !ok {
		s.mu.Unlock()
		fail(c, http.StatusNotFound, api.ErrNotFound)
		return
	}

	var entries []model.RankingEntry
	for attemptID, att := range s.attempts {
		if att.ExamID != examID || att.Status != model.AttemptCompleted {
			continue
		}
		result := s.results[attemptID]
		if result == nil {
			continue
		}
		name := ""
		if u := s.users[att.UserID]; u != nil {
			name = u.Name
		}
		entries = append(entries, model.RankingEntry{
			UserID:      att.UserID,
			Name:        name,
			FinalScore:  result.FinalScore,
			StatusLabel: result.StatusLabel,
		})
	}
	s.mu.Unlock()

	sort.Slice(entries, func(i, j int) bool {
		if entries[i].FinalScore != entries[j].FinalScore {
			return entries[i].FinalScore > entries[j].FinalScore
		}
		return entries[i].UserID < entries[j].UserID
	})
	for i := range entries {
		entries[i].Rank = i + 1
	}

	success(c, http.StatusOK, gin.H{"ranking": entries})
}
