package mockserver

import (
	"time"

	"github.com/google/uuid"

	"github.com/luthfiadilal/front-end-CBT-sub000/internal/model"
	"github.com/luthfiadilal/front-end-CBT-sub000/internal/role"
)

// SeedUser registers an account directly, bypassing the API. Test/dev only.
func (s *Server) SeedUser(username, password, name string, r role.Role, profile model.Profile) model.User {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	profile.UserID = s.nextUserID
	if profile.Name == "" {
		profile.Name = name
	}
	u := &userRecord{
		User: model.User{
			ID:        s.nextUserID,
			Username:  username,
			Name:      name,
			Role:      r,
			CreatedAt: now,
			UpdatedAt: now,
		},
		Password: password,
		Profile:  profile,
	}
	s.users[u.ID] = u
	s.byUsername[username] = u.ID
	s.nextUserID++
	return u.User
}

// SeedExam registers a published exam directly. Test/dev only.
func (s *Server) SeedExam(title, subject string, durationMinutes int) model.Exam {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	exam := &model.Exam{
		ID:              uuid.New(),
		Title:           title,
		Subject:         subject,
		AuthorID:        0,
		DurationMinutes: durationMinutes,
		Status:          model.ExamStatusPublished,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	s.exams[exam.ID] = exam
	return *exam
}

// SeedQuestion registers a question with its answer key. Test/dev only.
func (s *Server) SeedQuestion(examID uuid.UUID, text string, options []model.Option, correct, pairGroup string, difficulty int) model.Question {
	s.mu.Lock()
	defer s.mu.Unlock()

	if difficulty < 1 {
		difficulty = 1
	}
	q := storedQuestion{
		Question: model.Question{
			ID:         uuid.New(),
			ExamID:     examID,
			Text:       text,
			Options:    options,
			OrderNum:   len(s.questions[examID]) + 1,
			PairGroup:  pairGroup,
			Difficulty: difficulty,
		},
		Correct: correct,
	}
	s.questions[examID] = append(s.questions[examID], q)
	if e, ok := s.exams[examID]; ok {
		e.QuestionCount = len(s.questions[examID])
	}
	return q.Question
}

// SetAttemptStart rewrites an attempt's start time. Test knob for timer and
// timeout scenarios.
func (s *Server) SetAttemptStart(attemptID uuid.UUID, startedAt time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if att, ok := s.attempts[attemptID]; ok {
		att.StartedAt = startedAt
	}
}

// SeedDefaults populates a small working dataset: one admin, one teacher,
// two students, one published exam with four questions (two sharing a pair
// group), and the four SAW criteria.
func (s *Server) SeedDefaults() (model.Exam, []model.User) {
	admin := s.SeedUser("admin", "admin123", "Administrator", role.RoleAdmin, model.Profile{Email: "admin@sekolah.sch.id"})
	teacher := s.SeedUser("guru1", "guru123", "Budi Santoso", role.RoleTeacher, model.Profile{Email: "budi@sekolah.sch.id", NIP: "19801231"})
	siswa1 := s.SeedUser("siswa1", "siswa123", "Andi Wijaya", role.RoleStudent, model.Profile{NISN: "0051234567", Class: "XII-RPL-1"})
	siswa2 := s.SeedUser("siswa2", "siswa123", "Siti Rahma", role.RoleStudent, model.Profile{NISN: "0057654321", Class: "XII-RPL-1"})

	exam := s.SeedExam("Ujian Matematika Dasar", "Matematika", 60)
	opts := []model.Option{{ID: "A", Text: "3"}, {ID: "B", Text: "4"}, {ID: "C", Text: "5"}, {ID: "D", Text: "6"}}
	s.SeedQuestion(exam.ID, "Berapa hasil 2+2?", opts, "B", "", 1)
	s.SeedQuestion(exam.ID, "Berapa hasil 2+3?", opts, "C", "", 2)
	s.SeedQuestion(exam.ID, "Jika x=2, berapa x+1?", opts, "A", "aljabar-1", 3)
	s.SeedQuestion(exam.ID, "Jika x=2, berapa 2x?", opts, "B", "aljabar-1", 3)

	s.mu.Lock()
	weights := []struct {
		code, name string
		weight     float64
	}{
		{"C1", "Ketepatan", defaultWeightC1},
		{"C2", "Tingkat Kesulitan", defaultWeightC2},
		{"C3", "Konsistensi", defaultWeightC3},
		{"C4", "Waktu Pengerjaan", defaultWeightC4},
	}
	for _, w := range weights {
		k := &model.Kriteria{ID: s.nextKriteriaID, Code: w.code, Name: w.name, Weight: w.weight}
		s.kriteria[k.ID] = k
		s.nextKriteriaID++
	}
	s.mu.Unlock()

	return exam, []model.User{admin, teacher, siswa1, siswa2}
}
