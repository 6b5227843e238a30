// Package mockserver is a self-contained in-memory implementation of the
// CBT backend contract, used for offline development and as the test
// backend for the client packages. It is a test double, not a production
// server: all state lives in process memory.
package mockserver

import (
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/luthfiadilal/front-end-CBT-sub000/internal/api"
	"github.com/luthfiadilal/front-end-CBT-sub000/internal/model"
	"github.com/luthfiadilal/front-end-CBT-sub000/internal/role"
)

// timeoutGrace is how far past the exam duration a submission is still
// accepted, covering clock skew between client and server.
const timeoutGrace = 5 * time.Second

type userRecord struct {
	model.User
	Password string
	Profile  model.Profile
}

type storedQuestion struct {
	model.Question
	Correct string
}

type attemptRecord struct {
	ID         uuid.UUID
	ExamID     uuid.UUID
	UserID     int
	StartedAt  time.Time
	Status     model.AttemptStatus
	FinishedAt time.Time
}

type attemptKey struct {
	UserID int
	ExamID uuid.UUID
}

// Server is the in-memory mock backend.
type Server struct {
	log       zerolog.Logger
	jwtSecret []byte
	accessTTL time.Duration
	router    *gin.Engine

	mu             sync.Mutex
	users          map[int]*userRecord
	byUsername     map[string]int
	nextUserID     int
	exams          map[uuid.UUID]*model.Exam
	questions      map[uuid.UUID][]storedQuestion
	attempts       map[uuid.UUID]*attemptRecord
	currentAttempt map[attemptKey]uuid.UUID
	answers        map[uuid.UUID]map[uuid.UUID]string
	results        map[uuid.UUID]*model.Result
	refreshTokens  map[string]int
	kriteria       map[int]*model.Kriteria
	nextKriteriaID int
	monitorEvents  []Event
	lastFinishUser int

	// Test knobs.
	forceExpire  atomic.Int32
	failSubmit   atomic.Int32
	dropMonitor  atomic.Int32
	failRefresh  atomic.Bool
	refreshCalls atomic.Int32
}

// Event mirrors the monitor channel payload received from clients.
type Event struct {
	Type      string    `json:"type"`
	AttemptID uuid.UUID `json:"attempt_id"`
	At        time.Time `json:"at"`
	Detail    string    `json:"detail,omitempty"`
}

// New creates a mock server with empty state.
func New(log zerolog.Logger) *Server {
	s := &Server{
		log:            log.With().Str("component", "mockserver").Logger(),
		jwtSecret:      []byte("mock-backend-secret"),
		accessTTL:      15 * time.Minute,
		users:          make(map[int]*userRecord),
		byUsername:     make(map[string]int),
		nextUserID:     1,
		exams:          make(map[uuid.UUID]*model.Exam),
		questions:      make(map[uuid.UUID][]storedQuestion),
		attempts:       make(map[uuid.UUID]*attemptRecord),
		currentAttempt: make(map[attemptKey]uuid.UUID),
		answers:        make(map[uuid.UUID]map[uuid.UUID]string),
		results:        make(map[uuid.UUID]*model.Result),
		refreshTokens:  make(map[string]int),
		kriteria:       make(map[int]*model.Kriteria),
		nextKriteriaID: 1,
	}
	s.router = s.setupRouter()
	return s
}

// Handler returns the HTTP handler, suitable for httptest.NewServer.
func (s *Server) Handler() http.Handler {
	return s.router
}

// SetAccessTTL overrides the access-token lifetime (test knob).
func (s *Server) SetAccessTTL(d time.Duration) {
	s.accessTTL = d
}

// ForceExpireNext makes the next n authenticated requests fail with a 401
// regardless of the presented token (test knob for the refresh flow).
func (s *Server) ForceExpireNext(n int) {
	s.forceExpire.Store(int32(n))
}

// SetFailSubmitNext makes the next n answer submissions fail with a
// retryable SUBMIT_FAILED, without recording the answer (test knob).
func (s *Server) SetFailSubmitNext(n int) {
	s.failSubmit.Store(int32(n))
}

// DropMonitorNext severs the monitor WebSocket after each of the next n
// received events (test knob for client reconnect behavior).
func (s *Server) DropMonitorNext(n int) {
	s.dropMonitor.Store(int32(n))
}

// SetFailRefresh makes every refresh call fail (test knob).
func (s *Server) SetFailRefresh(fail bool) {
	s.failRefresh.Store(fail)
}

// RefreshCalls reports how many refresh requests reached the server.
func (s *Server) RefreshCalls() int {
	return int(s.refreshCalls.Load())
}

// LastFinishUserID reports the user id carried by the most recent finish
// request (test observability for session identity).
func (s *Server) LastFinishUserID() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastFinishUser
}

// MonitorEvents returns a copy of all activity events received so far.
func (s *Server) MonitorEvents() []Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Event, len(s.monitorEvents))
	copy(out, s.monitorEvents)
	return out
}

// ─── Router ─────────────────────────────────────────────────────────────────

func (s *Server) setupRouter() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(requestIDMiddleware())
	r.Use(cors.New(cors.Config{
		AllowAllOrigins:  true,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", "X-Request-ID"},
		ExposeHeaders:    []string{"X-Request-ID"},
		AllowCredentials: false,
		MaxAge:           12 * time.Hour,
	}))

	v1 := r.Group("/api/v1")

	authGroup := v1.Group("/auth")
	{
		authGroup.POST("/login", s.handleLogin)
		authGroup.POST("/refresh", s.handleRefresh)
		authGroup.POST("/logout", s.requireAuth(), s.handleLogout)
		authGroup.GET("/me", s.requireAuth(), s.handleMe)
	}

	student := v1.Group("/student", s.requireAuth())
	{
		student.GET("/exams", s.handleListExams)
		student.GET("/exams/:examID", s.handleGetExam)
		student.GET("/exams/:examID/status", s.handleExamStatus)
		student.POST("/exams/:examID/attempts", s.handleStartAttempt)
		student.GET("/exams/:examID/questions", s.handleExamQuestions)
		student.POST("/attempts/:attemptID/answers", s.handleSubmitAnswer)
		student.POST("/attempts/:attemptID/finish", s.handleFinishAttempt)
		student.GET("/attempts/:attemptID/result", s.handleAttemptResult)
		student.GET("/monitor", s.handleMonitorWS)
	}

	admin := v1.Group("/admin", s.requireAuth(), s.requireRole(role.RoleAdmin, role.RoleTeacher))
	{
		admin.GET("/users", s.handleListUsers)
		admin.POST("/users", s.handleCreateUser)
		admin.PUT("/users/:id", s.handleUpdateUser)
		admin.DELETE("/users/:id", s.handleDeleteUser)

		admin.GET("/exams", s.handleAdminListExams)
		admin.POST("/exams", s.handleCreateExam)
		admin.PUT("/exams/:examID", s.handleUpdateExam)
		admin.DELETE("/exams/:examID", s.handleDeleteExam)

		admin.GET("/exams/:examID/questions", s.handleAdminListQuestions)
		admin.POST("/exams/:examID/questions", s.handleAddQuestion)
		admin.PUT("/exams/:examID/questions/:questionID", s.handleUpdateQuestion)
		admin.DELETE("/exams/:examID/questions/:questionID", s.handleDeleteQuestion)

		admin.GET("/kriteria", s.handleListKriteria)
		admin.POST("/kriteria", s.handleCreateKriteria)
		admin.PUT("/kriteria/:id", s.handleUpdateKriteria)
		admin.DELETE("/kriteria/:id", s.handleDeleteKriteria)

		admin.GET("/exams/:examID/report", s.handleExamReport)
	}

	return r
}

// ─── Auth ───────────────────────────────────────────────────────────────────

type claims struct {
	jwt.RegisteredClaims
	UserID int    `json:"user_id"`
	Role   string `json:"role"`
}

const contextKeyClaims = "claims"

func (s *Server) requireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		// Forced-expiry knob: simulate an expired access token.
		for {
			n := s.forceExpire.Load()
			if n <= 0 {
				break
			}
			if s.forceExpire.CompareAndSwap(n, n-1) {
				abortFail(c, http.StatusUnauthorized, api.ErrTokenExpired)
				return
			}
		}

		tokenStr := ""
		if h := c.GetHeader("Authorization"); h != "" {
			parts := strings.SplitN(h, " ", 2)
			if len(parts) == 2 && strings.EqualFold(parts[0], "bearer") {
				tokenStr = parts[1]
			}
		}
		// Fallback for WebSocket upgrades which cannot send headers.
		if tokenStr == "" {
			tokenStr = c.Query("token")
		}
		if tokenStr == "" {
			abortFail(c, http.StatusUnauthorized, api.ErrTokenRequired)
			return
		}

		cl, err := s.parseToken(tokenStr)
		if err != nil {
			abortFail(c, http.StatusUnauthorized, api.ErrTokenInvalid)
			return
		}
		c.Set(contextKeyClaims, cl)
		c.Next()
	}
}

func (s *Server) requireRole(roles ...role.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		cl := getClaims(c)
		if cl == nil {
			abortFail(c, http.StatusUnauthorized, api.ErrTokenRequired)
			return
		}
		for _, r := range roles {
			if string(r) == cl.Role {
				c.Next()
				return
			}
		}
		abortFail(c, http.StatusForbidden, api.ErrForbidden)
	}
}

func getClaims(c *gin.Context) *claims {
	val, exists := c.Get(contextKeyClaims)
	if !exists {
		return nil
	}
	cl, ok := val.(*claims)
	if !ok {
		return nil
	}
	return cl
}

func (s *Server) mintAccess(u *userRecord) (string, error) {
	now := time.Now()
	cl := claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.New().String(),
			Subject:   u.Username,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.accessTTL)),
		},
		UserID: u.ID,
		Role:   string(u.Role),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, cl)
	return token.SignedString(s.jwtSecret)
}

func (s *Server) parseToken(tokenStr string) (*claims, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &claims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return s.jwtSecret, nil
	})
	if err != nil {
		return nil, err
	}
	cl, ok := token.Claims.(*claims)
	if !ok || !token.Valid {
		return nil, jwt.ErrTokenInvalidClaims
	}
	return cl, nil
}

func (s *Server) handleLogin(c *gin.Context) {
	var req model.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, api.ErrInvalidPayload)
		return
	}

	s.mu.Lock()
	id, ok := s.byUsername[req.Username]
	var u *userRecord
	if ok {
		u = s.users[id]
	}
	s.mu.Unlock()

	if u == nil || u.Password != req.Password {
		fail(c, http.StatusUnauthorized, api.ErrInvalidCredentials)
		return
	}

	access, err := s.mintAccess(u)
	if err != nil {
		fail(c, http.StatusInternalServerError, api.ErrInternal)
		return
	}
	refresh := s.mintRefresh(u.ID)

	success(c, http.StatusOK, model.LoginResponse{
		AccessToken:  access,
		RefreshToken: refresh,
		User:         u.User,
		Profile:      u.Profile,
	})
}

func (s *Server) mintRefresh(userID int) string {
	token := uuid.New().String()
	s.mu.Lock()
	s.refreshTokens[token] = userID
	s.mu.Unlock()
	return token
}

func (s *Server) handleRefresh(c *gin.Context) {
	s.refreshCalls.Add(1)

	if s.failRefresh.Load() {
		fail(c, http.StatusUnauthorized, api.ErrRefreshRejected)
		return
	}

	var req model.RefreshRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.RefreshToken == "" {
		fail(c, http.StatusBadRequest, api.ErrInvalidPayload)
		return
	}

	s.mu.Lock()
	userID, ok := s.refreshTokens[req.RefreshToken]
	if ok {
		// Rotation: a refresh token is single-use.
		delete(s.refreshTokens, req.RefreshToken)
	}
	u := s.users[userID]
	s.mu.Unlock()

	if !ok || u == nil {
		fail(c, http.StatusUnauthorized, api.ErrRefreshRejected)
		return
	}

	access, err := s.mintAccess(u)
	if err != nil {
		fail(c, http.StatusInternalServerError, api.ErrInternal)
		return
	}
	refresh := s.mintRefresh(u.ID)

	success(c, http.StatusOK, model.RefreshResponse{
		AccessToken:  access,
		RefreshToken: refresh,
	})
}

func (s *Server) handleLogout(c *gin.Context) {
	cl := getClaims(c)
	s.mu.Lock()
	for token, uid := range s.refreshTokens {
		if uid == cl.UserID {
			delete(s.refreshTokens, token)
		}
	}
	s.mu.Unlock()
	success(c, http.StatusOK, gin.H{"ok": true})
}

func (s *Server) handleMe(c *gin.Context) {
	cl := getClaims(c)
	s.mu.Lock()
	u := s.users[cl.UserID]
	s.mu.Unlock()
	if u == nil {
		fail(c, http.StatusNotFound, api.ErrNotFound)
		return
	}
	success(c, http.StatusOK, u.User)
}
