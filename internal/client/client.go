// Package client implements the REST contract consumer: every backend
// operation the dashboards and the exam flow need, layered on the
// authenticated request pipeline.
package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/luthfiadilal/front-end-CBT-sub000/internal/api"
	"github.com/luthfiadilal/front-end-CBT-sub000/internal/auth"
	"github.com/luthfiadilal/front-end-CBT-sub000/internal/model"
	"github.com/luthfiadilal/front-end-CBT-sub000/internal/store"
	"github.com/luthfiadilal/front-end-CBT-sub000/internal/validator"
)

// Client is the typed REST client for the CBT backend.
type Client struct {
	base  string
	pipe  *auth.Pipeline
	state *store.State
	log   zerolog.Logger
}

// New creates a Client. base is the API root, e.g. "http://host/api/v1".
func New(base string, pipe *auth.Pipeline, state *store.State, log zerolog.Logger) *Client {
	return &Client{
		base:  strings.TrimRight(base, "/"),
		pipe:  pipe,
		state: state,
		log:   log.With().Str("component", "client").Logger(),
	}
}

// ─── Auth ───────────────────────────────────────────────────────────────────

// Login authenticates and persists the token pair and profile snapshot.
func (c *Client) Login(ctx context.Context, req model.LoginRequest) (*model.LoginResponse, error) {
	if fields := validator.Struct(req); fields != nil {
		return nil, &api.Error{Code: api.ErrValidation, Message: api.GetMessage(api.ErrValidation), Fields: fields}
	}

	var out model.LoginResponse
	if err := c.do(ctx, http.MethodPost, "/auth/login", req, &out, true); err != nil {
		return nil, err
	}

	if err := c.state.SetTokenPair(model.TokenPair{
		AccessToken:  out.AccessToken,
		RefreshToken: out.RefreshToken,
	}); err != nil {
		return nil, fmt.Errorf("persist tokens: %w", err)
	}
	if err := c.state.SetProfile(out.Profile); err != nil {
		return nil, fmt.Errorf("persist profile: %w", err)
	}

	c.log.Info().Str("role", string(out.User.Role)).Msg("logged in")
	return &out, nil
}

// Logout clears all persisted auth state. The backend call is best-effort.
func (c *Client) Logout(ctx context.Context) error {
	_ = c.do(ctx, http.MethodPost, "/auth/logout", nil, nil, false)
	c.pipe.Reset()
	return c.state.ClearAll()
}

// Me returns the authenticated account.
func (c *Client) Me(ctx context.Context) (*model.User, error) {
	var out model.User
	if err := c.do(ctx, http.MethodGet, "/auth/me", nil, &out, false); err != nil {
		return nil, err
	}
	return &out, nil
}

// ─── Student exam flow ──────────────────────────────────────────────────────

// Exams lists the exams available to the student (the lobby).
func (c *Client) Exams(ctx context.Context) ([]model.Exam, error) {
	var out struct {
		Exams []model.Exam `json:"exams"`
	}
	if err := c.do(ctx, http.MethodGet, "/student/exams", nil, &out, false); err != nil {
		return nil, err
	}
	return out.Exams, nil
}

// Exam fetches one exam's metadata.
func (c *Client) Exam(ctx context.Context, examID uuid.UUID) (*model.Exam, error) {
	var out model.Exam
	path := fmt.Sprintf("/student/exams/%s", examID)
	if err := c.do(ctx, http.MethodGet, path, nil, &out, false); err != nil {
		return nil, err
	}
	return &out, nil
}

// ExamStatus queries the backend's view of this student's attempt on an exam.
func (c *Client) ExamStatus(ctx context.Context, examID uuid.UUID) (*model.ExamStatusResponse, error) {
	var out model.ExamStatusResponse
	path := fmt.Sprintf("/student/exams/%s/status", examID)
	if err := c.do(ctx, http.MethodGet, path, nil, &out, false); err != nil {
		return nil, err
	}
	return &out, nil
}

// StartAttempt creates a new attempt server-side.
func (c *Client) StartAttempt(ctx context.Context, examID uuid.UUID) (*model.StartAttemptResponse, error) {
	var out model.StartAttemptResponse
	path := fmt.Sprintf("/student/exams/%s/attempts", examID)
	if err := c.do(ctx, http.MethodPost, path, nil, &out, false); err != nil {
		return nil, err
	}
	return &out, nil
}

// Questions fetches the ordered question list for an exam (student view,
// no correct options).
func (c *Client) Questions(ctx context.Context, examID uuid.UUID) ([]model.Question, error) {
	var out struct {
		Questions []model.Question `json:"questions"`
	}
	path := fmt.Sprintf("/student/exams/%s/questions", examID)
	if err := c.do(ctx, http.MethodGet, path, nil, &out, false); err != nil {
		return nil, err
	}
	return out.Questions, nil
}

// SubmitAnswer stores one answer server-side. Answers are upserted; the
// backend keeps the latest submission per question.
func (c *Client) SubmitAnswer(ctx context.Context, attemptID, questionID uuid.UUID, optionID string) error {
	req := model.SubmitAnswerRequest{QuestionID: questionID, OptionID: optionID}
	path := fmt.Sprintf("/student/attempts/%s/answers", attemptID)
	return c.do(ctx, http.MethodPost, path, req, nil, false)
}

// FinishAttempt completes the attempt and returns the scoring payload.
// userID must be the identity recorded when the attempt started.
func (c *Client) FinishAttempt(ctx context.Context, attemptID uuid.UUID, userID int, examID uuid.UUID) (*model.Result, error) {
	req := model.FinishAttemptRequest{UserID: userID, ExamID: examID}
	var out model.Result
	path := fmt.Sprintf("/student/attempts/%s/finish", attemptID)
	if err := c.do(ctx, http.MethodPost, path, req, &out, false); err != nil {
		return nil, err
	}
	return &out, nil
}

// Result fetches a completed attempt's scoring payload.
func (c *Client) Result(ctx context.Context, attemptID uuid.UUID) (*model.Result, error) {
	var out model.Result
	path := fmt.Sprintf("/student/attempts/%s/result", attemptID)
	if err := c.do(ctx, http.MethodGet, path, nil, &out, false); err != nil {
		return nil, err
	}
	return &out, nil
}

// ─── Admin / teacher CRUD ───────────────────────────────────────────────────

// Users lists accounts (paginated).
func (c *Client) Users(ctx context.Context, page, perPage int) ([]model.User, *api.Pagination, error) {
	var out struct {
		Users []model.User `json:"users"`
	}
	path := fmt.Sprintf("/admin/users?page=%d&per_page=%d", page, perPage)
	pg, err := c.doPage(ctx, http.MethodGet, path, nil, &out)
	if err != nil {
		return nil, nil, err
	}
	return out.Users, pg, nil
}

// CreateUser creates an account.
func (c *Client) CreateUser(ctx context.Context, req model.CreateUserRequest) (*model.User, error) {
	if fields := validator.Struct(req); fields != nil {
		return nil, &api.Error{Code: api.ErrValidation, Message: api.GetMessage(api.ErrValidation), Fields: fields}
	}
	var out model.User
	if err := c.do(ctx, http.MethodPost, "/admin/users", req, &out, false); err != nil {
		return nil, err
	}
	return &out, nil
}

// UpdateUser updates an account.
func (c *Client) UpdateUser(ctx context.Context, id int, req model.UpdateUserRequest) (*model.User, error) {
	if fields := validator.Struct(req); fields != nil {
		return nil, &api.Error{Code: api.ErrValidation, Message: api.GetMessage(api.ErrValidation), Fields: fields}
	}
	var out model.User
	path := fmt.Sprintf("/admin/users/%d", id)
	if err := c.do(ctx, http.MethodPut, path, req, &out, false); err != nil {
		return nil, err
	}
	return &out, nil
}

// DeleteUser removes an account.
func (c *Client) DeleteUser(ctx context.Context, id int) error {
	return c.do(ctx, http.MethodDelete, fmt.Sprintf("/admin/users/%d", id), nil, nil, false)
}

// AllExams lists every exam for management views.
func (c *Client) AllExams(ctx context.Context) ([]model.Exam, error) {
	var out struct {
		Exams []model.Exam `json:"exams"`
	}
	if err := c.do(ctx, http.MethodGet, "/admin/exams", nil, &out, false); err != nil {
		return nil, err
	}
	return out.Exams, nil
}

// CreateExam creates an exam.
func (c *Client) CreateExam(ctx context.Context, req model.CreateExamRequest) (*model.Exam, error) {
	if fields := validator.Struct(req); fields != nil {
		return nil, &api.Error{Code: api.ErrValidation, Message: api.GetMessage(api.ErrValidation), Fields: fields}
	}
	var out model.Exam
	if err := c.do(ctx, http.MethodPost, "/admin/exams", req, &out, false); err != nil {
		return nil, err
	}
	return &out, nil
}

// UpdateExam updates an exam.
func (c *Client) UpdateExam(ctx context.Context, id uuid.UUID, req model.UpdateExamRequest) (*model.Exam, error) {
	if fields := validator.Struct(req); fields != nil {
		return nil, &api.Error{Code: api.ErrValidation, Message: api.GetMessage(api.ErrValidation), Fields: fields}
	}
	var out model.Exam
	path := fmt.Sprintf("/admin/exams/%s", id)
	if err := c.do(ctx, http.MethodPut, path, req, &out, false); err != nil {
		return nil, err
	}
	return &out, nil
}

// DeleteExam removes an exam.
func (c *Client) DeleteExam(ctx context.Context, id uuid.UUID) error {
	return c.do(ctx, http.MethodDelete, fmt.Sprintf("/admin/exams/%s", id), nil, nil, false)
}

// ExamQuestions lists an exam's questions including answer keys (author view).
func (c *Client) ExamQuestions(ctx context.Context, examID uuid.UUID) ([]model.Question, error) {
	var out struct {
		Questions []model.Question `json:"questions"`
	}
	path := fmt.Sprintf("/admin/exams/%s/questions", examID)
	if err := c.do(ctx, http.MethodGet, path, nil, &out, false); err != nil {
		return nil, err
	}
	return out.Questions, nil
}

// AddQuestion adds a question to an exam.
func (c *Client) AddQuestion(ctx context.Context, examID uuid.UUID, req model.AddQuestionRequest) (*model.Question, error) {
	if fields := validator.Struct(req); fields != nil {
		return nil, &api.Error{Code: api.ErrValidation, Message: api.GetMessage(api.ErrValidation), Fields: fields}
	}
	var out model.Question
	path := fmt.Sprintf("/admin/exams/%s/questions", examID)
	if err := c.do(ctx, http.MethodPost, path, req, &out, false); err != nil {
		return nil, err
	}
	return &out, nil
}

// UpdateQuestion updates a question.
func (c *Client) UpdateQuestion(ctx context.Context, examID, questionID uuid.UUID, req model.UpdateQuestionRequest) (*model.Question, error) {
	if fields := validator.Struct(req); fields != nil {
		return nil, &api.Error{Code: api.ErrValidation, Message: api.GetMessage(api.ErrValidation), Fields: fields}
	}
	var out model.Question
	path := fmt.Sprintf("/admin/exams/%s/questions/%s", examID, questionID)
	if err := c.do(ctx, http.MethodPut, path, req, &out, false); err != nil {
		return nil, err
	}
	return &out, nil
}

// DeleteQuestion removes a question.
func (c *Client) DeleteQuestion(ctx context.Context, examID, questionID uuid.UUID) error {
	path := fmt.Sprintf("/admin/exams/%s/questions/%s", examID, questionID)
	return c.do(ctx, http.MethodDelete, path, nil, nil, false)
}

// Kriteria lists the SAW criteria with their weights.
func (c *Client) Kriteria(ctx context.Context) ([]model.Kriteria, error) {
	var out struct {
		Kriteria []model.Kriteria `json:"kriteria"`
	}
	if err := c.do(ctx, http.MethodGet, "/admin/kriteria", nil, &out, false); err != nil {
		return nil, err
	}
	return out.Kriteria, nil
}

// CreateKriteria creates a criterion.
func (c *Client) CreateKriteria(ctx context.Context, req model.CreateKriteriaRequest) (*model.Kriteria, error) {
	if fields := validator.Struct(req); fields != nil {
		return nil, &api.Error{Code: api.ErrValidation, Message: api.GetMessage(api.ErrValidation), Fields: fields}
	}
	var out model.Kriteria
	if err := c.do(ctx, http.MethodPost, "/admin/kriteria", req, &out, false); err != nil {
		return nil, err
	}
	return &out, nil
}

// UpdateKriteria updates a criterion's name or weight.
func (c *Client) UpdateKriteria(ctx context.Context, id int, req model.UpdateKriteriaRequest) (*model.Kriteria, error) {
	if fields := validator.Struct(req); fields != nil {
		return nil, &api.Error{Code: api.ErrValidation, Message: api.GetMessage(api.ErrValidation), Fields: fields}
	}
	var out model.Kriteria
	path := fmt.Sprintf("/admin/kriteria/%d", id)
	if err := c.do(ctx, http.MethodPut, path, req, &out, false); err != nil {
		return nil, err
	}
	return &out, nil
}

// DeleteKriteria removes a criterion.
func (c *Client) DeleteKriteria(ctx context.Context, id int) error {
	return c.do(ctx, http.MethodDelete, fmt.Sprintf("/admin/kriteria/%d", id), nil, nil, false)
}

// Report returns the scoring/ranking report for an exam.
func (c *Client) Report(ctx context.Context, examID uuid.UUID) ([]model.RankingEntry, error) {
	var out struct {
		Ranking []model.RankingEntry `json:"ranking"`
	}
	path := fmt.Sprintf("/admin/exams/%s/report", examID)
	if err := c.do(ctx, http.MethodGet, path, nil, &out, false); err != nil {
		return nil, err
	}
	return out.Ranking, nil
}

// ─── Internal helpers ───────────────────────────────────────────────────────

func (c *Client) do(ctx context.Context, method, path string, in, out any, noAuth bool) error {
	req, err := c.build(method, path, in, noAuth)
	if err != nil {
		return err
	}
	resp, err := c.pipe.Do(ctx, req)
	if err != nil {
		return err
	}
	return api.Decode(resp, out)
}

func (c *Client) doPage(ctx context.Context, method, path string, in, out any) (*api.Pagination, error) {
	req, err := c.build(method, path, in, false)
	if err != nil {
		return nil, err
	}
	resp, err := c.pipe.Do(ctx, req)
	if err != nil {
		return nil, err
	}
	return api.DecodePage(resp, out)
}

func (c *Client) build(method, path string, in any, noAuth bool) (*auth.Request, error) {
	var body []byte
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return nil, fmt.Errorf("encode request: %w", err)
		}
		body = raw
	}
	return &auth.Request{
		Method: method,
		URL:    c.base + path,
		Body:   body,
		NoAuth: noAuth,
	}, nil
}
