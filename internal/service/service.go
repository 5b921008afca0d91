// ABOUTME: Concurrent multi-session manager shared by the CLI, HTTP and MCP front ends
// ABOUTME: Caches live sessions, serialises work per session and persists every mutation
package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/harper/dermacheck/internal/core"
	"github.com/harper/dermacheck/internal/engine"
	"github.com/harper/dermacheck/internal/knowledge"
	"github.com/harper/dermacheck/internal/llm"
	"github.com/harper/dermacheck/internal/models"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"go.uber.org/zap"
)

var (
	// ErrSessionNotFound is returned for unknown session IDs
	ErrSessionNotFound = errors.New("session not found")
	// ErrNotCompleted is returned when a result is requested before the consultation ended
	ErrNotCompleted = errors.New("consultation is not complete")
)

// Progress estimation
const (
	ExpectedQuestions  = 12
	MaxPendingProgress = 95
)

// Live-session cache defaults
const (
	DefaultCacheSize = 256
	DefaultCacheTTL  = 30 * time.Minute
)

// Explanation sources
const (
	SourceTemplate = "template"
	SourceLLM      = "llm"
)

const sessionIDPrefix = "sess_"

// Store is the persistence the service needs
type Store interface {
	SaveSession(rec *models.SessionRecord, facts []models.FactRecord, firings []models.FiringRecord) error
	LoadSession(sessionID string) (*models.SessionRecord, []models.FactRecord, error)
	ListSessions() ([]models.SessionRecord, error)
	DeleteSession(sessionID string) (bool, error)
	GetFirings(sessionID string) ([]models.FiringRecord, error)
}

// Status is a session's current position in the consultation
type Status struct {
	SessionID string           `json:"session_id"`
	State     core.EngineState `json:"state"`
	Answers   []models.Answer  `json:"answers"`
	Answered  int              `json:"answered"`
	Progress  int              `json:"progress"`
	CreatedAt time.Time        `json:"created_at"`
	UpdatedAt time.Time        `json:"updated_at"`
}

// Report is the outcome of a completed consultation
type Report struct {
	SessionID string              `json:"session_id"`
	Diagnosis *models.Diagnosis   `json:"diagnosis"`
	Ranked    []models.Diagnosis  `json:"ranked"`
	Disease   *models.DiseaseInfo `json:"disease,omitempty"`
}

// Explanation is patient-facing prose for a completed consultation
type Explanation struct {
	SessionID string            `json:"session_id"`
	Diagnosis *models.Diagnosis `json:"diagnosis"`
	Text      string            `json:"text"`
	Source    string            `json:"source"`
}

// Option configures a Service
type Option func(*Service)

// WithLogger sets the logger
func WithLogger(logger *zap.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

// WithMaxCycles bounds the firings of a single run
func WithMaxCycles(n int) Option {
	return func(s *Service) { s.maxCycles = n }
}

// WithCache sizes the live-session cache. A ttl of zero keeps sessions until evicted by size.
func WithCache(size int, ttl time.Duration) Option {
	return func(s *Service) {
		s.cacheSize = size
		s.cacheTTL = ttl
	}
}

// WithExplainer sets the explanation generator
func WithExplainer(e llm.Explainer) Option {
	return func(s *Service) { s.explainer = e }
}

// Service manages consultations
type Service struct {
	kb        *knowledge.Base
	store     Store
	explainer llm.Explainer
	logger    *zap.Logger
	maxCycles int
	cacheSize int
	cacheTTL  time.Duration

	mu   sync.Mutex
	live *expirable.LRU[string, *liveSession]
}

// liveSession is a cached session. mu serialises all work on it.
type liveSession struct {
	mu      sync.Mutex
	sess    *core.Session
	rec     models.SessionRecord
	firings []models.FiringRecord
	deleted bool
}

// New creates a service over a knowledge base and a store
func New(kb *knowledge.Base, store Store, opts ...Option) (*Service, error) {
	if kb == nil {
		return nil, errors.New("service requires a knowledge base")
	}
	if store == nil {
		return nil, errors.New("service requires a store")
	}

	s := &Service{
		kb:        kb,
		store:     store,
		explainer: llm.TemplateExplainer{},
		logger:    zap.NewNop(),
		cacheSize: DefaultCacheSize,
		cacheTTL:  DefaultCacheTTL,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.cacheSize < 1 {
		return nil, fmt.Errorf("cache size must be positive, got %d", s.cacheSize)
	}
	s.live = expirable.NewLRU[string, *liveSession](s.cacheSize, nil, s.cacheTTL)
	return s, nil
}

// Knowledge returns the knowledge base sessions run against
func (s *Service) Knowledge() *knowledge.Base {
	return s.kb
}

// Create starts a consultation and runs it to the first question
func (s *Service) Create(ctx context.Context) (Status, error) {
	if err := ctx.Err(); err != nil {
		return Status{}, err
	}

	id := sessionIDPrefix + uuid.New().String()
	now := time.Now().UTC()
	ls := &liveSession{rec: models.SessionRecord{SessionID: id, CreatedAt: now, UpdatedAt: now}}

	sess, err := core.NewSession(s.sessionConfig(id, ls))
	if err != nil {
		return Status{}, fmt.Errorf("failed to create session: %w", err)
	}
	ls.sess = sess

	ls.mu.Lock()
	defer ls.mu.Unlock()

	state := sess.Run()
	if err := s.persist(ls, state); err != nil {
		return Status{}, err
	}
	s.live.Add(id, ls)

	s.logger.Info("consultation started", zap.String("session_id", id), zap.String("state", string(state.Kind)))
	return ls.status(state), nil
}

// Answer records an answer to the pending question and runs to the next stopping point.
// Rejected answers return a *core.ValidationError and change nothing.
func (s *Service) Answer(ctx context.Context, sessionID, ident, text string) (Status, error) {
	if err := ctx.Err(); err != nil {
		return Status{}, err
	}

	ls, err := s.lock(sessionID)
	if err != nil {
		return Status{}, err
	}
	defer ls.mu.Unlock()

	if ls.rec.Status == models.StatusFailed {
		return Status{}, fmt.Errorf("%w: %s", core.ErrSessionFailed, ls.rec.FailureReason)
	}
	if err := ls.sess.AssertAnswer(ident, text); err != nil {
		var verr *core.ValidationError
		if errors.As(err, &verr) {
			s.logger.Debug("answer rejected", zap.String("session_id", sessionID), zap.Error(err))
			return Status{}, err
		}
		state := core.Failed(err.Error())
		if perr := s.persist(ls, state); perr != nil {
			s.logger.Error("failed to persist failed session", zap.String("session_id", sessionID), zap.Error(perr))
		}
		return Status{}, err
	}

	state := ls.sess.Run()
	if err := s.persist(ls, state); err != nil {
		return Status{}, err
	}
	return ls.status(state), nil
}

// Status reports where a consultation stands without running it
func (s *Service) Status(ctx context.Context, sessionID string) (Status, error) {
	if err := ctx.Err(); err != nil {
		return Status{}, err
	}

	ls, err := s.lock(sessionID)
	if err != nil {
		return Status{}, err
	}
	defer ls.mu.Unlock()

	return ls.status(ls.state()), nil
}

// Diagnosis returns the result of a completed consultation
func (s *Service) Diagnosis(ctx context.Context, sessionID string) (Report, error) {
	if err := ctx.Err(); err != nil {
		return Report{}, err
	}

	ls, err := s.lock(sessionID)
	if err != nil {
		return Report{}, err
	}
	defer ls.mu.Unlock()

	if ls.state().Kind != core.StateCompleted {
		return Report{}, ErrNotCompleted
	}
	return ls.report(), nil
}

// Explain renders the result of a completed consultation as prose. A failing
// explainer falls back to the built-in template.
func (s *Service) Explain(ctx context.Context, sessionID string) (Explanation, error) {
	report, err := s.Diagnosis(ctx, sessionID)
	if err != nil {
		return Explanation{}, err
	}

	out := Explanation{SessionID: sessionID, Diagnosis: report.Diagnosis, Source: SourceLLM}
	if _, ok := s.explainer.(llm.TemplateExplainer); ok {
		out.Source = SourceTemplate
	}

	text, err := s.explainer.Explain(ctx, report.Diagnosis, report.Disease)
	if err != nil {
		s.logger.Warn("explanation failed, using template", zap.String("session_id", sessionID), zap.Error(err))
		text, _ = llm.TemplateExplainer{}.Explain(ctx, report.Diagnosis, report.Disease)
		out.Source = SourceTemplate
	}
	out.Text = text
	return out, nil
}

// Delete removes a consultation everywhere
func (s *Service) Delete(ctx context.Context, sessionID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// wait out any call already working on the session so it cannot write it back
	if ls, ok := s.live.Peek(sessionID); ok {
		ls.mu.Lock()
		defer ls.mu.Unlock()
		ls.deleted = true
		s.live.Remove(sessionID)
	}
	deleted, err := s.store.DeleteSession(sessionID)
	if err != nil {
		return fmt.Errorf("failed to delete session %s: %w", sessionID, err)
	}
	if !deleted {
		return ErrSessionNotFound
	}
	s.logger.Info("consultation deleted", zap.String("session_id", sessionID))
	return nil
}

// List returns all stored consultations, most recently updated first
func (s *Service) List(ctx context.Context) ([]models.SessionRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return s.store.ListSessions()
}

// Firings returns the rule firing audit log of a consultation
func (s *Service) Firings(ctx context.Context, sessionID string) ([]models.FiringRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	rec, _, err := s.store.LoadSession(sessionID)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, ErrSessionNotFound
	}
	return s.store.GetFirings(sessionID)
}

// Import stores a consultation taken from elsewhere after checking it restores
// cleanly against this knowledge base
func (s *Service) Import(ctx context.Context, rec models.SessionRecord, facts []models.FactRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := rec.Validate(); err != nil {
		return err
	}

	snap := core.Snapshot{Version: core.SnapshotVersion, SessionID: rec.SessionID, Facts: facts}
	if _, err := core.Restore(snap, s.kb.SessionConfig(rec.SessionID)); err != nil {
		return fmt.Errorf("session %s does not restore: %w", rec.SessionID, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.live.Remove(rec.SessionID)
	return s.store.SaveSession(&rec, facts, nil)
}

// Close drops all cached sessions. Their state is already persisted.
func (s *Service) Close() {
	s.live.Purge()
}

// acquire returns the cached session, restoring it from the store on a miss
func (s *Service) acquire(sessionID string) (*liveSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if ls, ok := s.live.Get(sessionID); ok {
		return ls, nil
	}

	rec, facts, err := s.store.LoadSession(sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to load session %s: %w", sessionID, err)
	}
	if rec == nil {
		return nil, ErrSessionNotFound
	}

	ls := &liveSession{rec: *rec}
	snap := core.Snapshot{Version: core.SnapshotVersion, SessionID: sessionID, Facts: facts}
	sess, err := core.Restore(snap, s.sessionConfig(sessionID, ls))
	if err != nil {
		return nil, fmt.Errorf("failed to restore session %s: %w", sessionID, err)
	}
	ls.sess = sess

	s.live.Add(sessionID, ls)
	s.logger.Debug("session restored", zap.String("session_id", sessionID), zap.Int("facts", len(facts)))
	return ls, nil
}

// lock acquires the session and holds its mutex. A session deleted while the
// caller waited reports ErrSessionNotFound.
func (s *Service) lock(sessionID string) (*liveSession, error) {
	ls, err := s.acquire(sessionID)
	if err != nil {
		return nil, err
	}
	ls.mu.Lock()
	if ls.deleted {
		ls.mu.Unlock()
		return nil, ErrSessionNotFound
	}
	return ls, nil
}

func (s *Service) sessionConfig(sessionID string, ls *liveSession) core.Config {
	cfg := s.kb.SessionConfig(sessionID)
	cfg.Logger = s.logger
	cfg.MaxCycles = s.maxCycles
	cfg.Observer = func(f engine.Firing) {
		rec, err := models.NewFiringRecord(sessionID, f.Cycle, f.Rule, f.Salience, map[string]any(f.Bindings))
		if err != nil {
			s.logger.Warn("failed to record firing", zap.String("rule", f.Rule), zap.Error(err))
			return
		}
		ls.firings = append(ls.firings, *rec)
	}
	return cfg
}

// persist writes the session record, snapshot and pending firings. Callers hold ls.mu.
func (s *Service) persist(ls *liveSession, state core.EngineState) error {
	if ls.deleted {
		return ErrSessionNotFound
	}
	rec := ls.rec
	rec.AnswerCount = len(ls.sess.Answers())
	rec.PendingQuestion = ""
	rec.Result = ""
	rec.ResultCF = 0
	rec.FailureReason = ""

	switch state.Kind {
	case core.StateNeedInput:
		rec.Status = models.StatusAwaitingInput
		rec.PendingQuestion = state.Question.Ident
	case core.StateCompleted:
		rec.Status = models.StatusCompleted
		if state.Diagnosis != nil {
			rec.Result = state.Diagnosis.Disease
			rec.ResultCF = state.Diagnosis.CF
		}
	case core.StateError:
		rec.Status = models.StatusFailed
		rec.FailureReason = state.Reason
	}
	rec.Touch()

	snap, err := ls.sess.Snapshot()
	if err != nil {
		return fmt.Errorf("failed to snapshot session %s: %w", rec.SessionID, err)
	}
	if err := s.store.SaveSession(&rec, snap.Facts, ls.firings); err != nil {
		return fmt.Errorf("failed to persist session %s: %w", rec.SessionID, err)
	}
	ls.rec = rec
	ls.firings = nil
	return nil
}

// state derives the engine state from working memory. Callers hold ls.mu.
func (ls *liveSession) state() core.EngineState {
	if ls.rec.Status == models.StatusFailed {
		return core.Failed(ls.rec.FailureReason)
	}
	if err := ls.sess.Err(); err != nil {
		return core.Failed(err.Error())
	}
	if q, ok := ls.sess.Pending(); ok {
		return core.NeedInput(q)
	}
	return core.Completed(ls.sess.Result())
}

func (ls *liveSession) status(state core.EngineState) Status {
	answers := ls.sess.Answers()
	return Status{
		SessionID: ls.rec.SessionID,
		State:     state,
		Answers:   answers,
		Answered:  len(answers),
		Progress:  Progress(state, len(answers)),
		CreatedAt: ls.rec.CreatedAt,
		UpdatedAt: ls.rec.UpdatedAt,
	}
}

func (ls *liveSession) report() Report {
	r := Report{
		SessionID: ls.rec.SessionID,
		Diagnosis: ls.sess.Result(),
		Ranked:    ls.sess.Diagnoses(),
	}
	if r.Diagnosis != nil {
		if info, ok := ls.sess.Disease(r.Diagnosis.Disease); ok {
			r.Disease = &info
		}
	}
	return r
}

// Progress estimates how far through the consultation a session is
func Progress(state core.EngineState, answered int) int {
	if state.Kind == core.StateCompleted {
		return 100
	}
	return min(MaxPendingProgress, answered*100/ExpectedQuestions)
}
