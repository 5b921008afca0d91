// ABOUTME: Session lifecycle around one working memory and engine
// ABOUTME: Create, answer, run to the next suspension, snapshot and restore
package core

import (
	"errors"
	"fmt"

	"github.com/harper/dermacheck/internal/engine"
	"github.com/harper/dermacheck/internal/models"
	"go.uber.org/zap"
)

// SnapshotVersion is the current snapshot layout version
const SnapshotVersion = 1

// StateKind discriminates EngineState
type StateKind string

const (
	StateNeedInput StateKind = "need_input"
	StateCompleted StateKind = "completed"
	StateError     StateKind = "error"
)

// EngineState is the outcome of running a session to its next stopping point
type EngineState struct {
	Kind      StateKind         `json:"kind"`
	Question  *models.Question  `json:"question,omitempty"`
	Diagnosis *models.Diagnosis `json:"diagnosis,omitempty"`
	Reason    string            `json:"reason,omitempty"`
}

// NeedInput builds a state asking for q
func NeedInput(q models.Question) EngineState {
	return EngineState{Kind: StateNeedInput, Question: &q}
}

// Completed builds a terminal state; best is nil when no diagnosis could be made
func Completed(best *models.Diagnosis) EngineState {
	return EngineState{Kind: StateCompleted, Diagnosis: best}
}

// Failed builds an error state
func Failed(reason string) EngineState {
	return EngineState{Kind: StateError, Reason: reason}
}

// Snapshot captures a session's full fact set in handle order
type Snapshot struct {
	Version   int                 `json:"version" yaml:"version"`
	SessionID string              `json:"session_id" yaml:"session_id"`
	Facts     []models.FactRecord `json:"facts" yaml:"facts"`
}

// Config supplies a session's collaborators
type Config struct {
	SessionID string
	Catalog   Catalog
	Diseases  []models.DiseaseInfo
	Rules     *engine.RuleTable
	Logger    *zap.Logger
	MaxCycles int
	Observer  engine.Observer
}

// Session owns one working memory and engine. Not safe for concurrent use.
type Session struct {
	id      string
	catalog Catalog
	wm      *engine.WorkingMemory
	eng     *engine.Engine
	logger  *zap.Logger
	failure error
}

// NewSession seeds a fresh working memory with disease reference data and the
// start marker, then checks the rules against the catalog and diseases
func NewSession(cfg Config) (*Session, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	wm := engine.NewWorkingMemory()
	names := make(map[string]struct{}, len(cfg.Diseases))
	for _, d := range cfg.Diseases {
		if err := d.Validate(); err != nil {
			return nil, &ConfigurationError{Problems: []string{err.Error()}}
		}
		if _, dup := names[d.Name]; dup {
			return nil, &ConfigurationError{Problems: []string{fmt.Sprintf("duplicate disease %q", d.Name)}}
		}
		names[d.Name] = struct{}{}
		if _, err := wm.Assert(d); err != nil {
			return nil, fmt.Errorf("failed to seed disease %s: %w", d.Name, err)
		}
	}

	if err := CheckConsistency(cfg.Rules, cfg.Catalog, names); err != nil {
		return nil, err
	}

	if _, err := wm.Assert(models.Marker{Name: models.MarkerStart}); err != nil {
		return nil, fmt.Errorf("failed to seed start marker: %w", err)
	}

	return newSession(cfg, wm), nil
}

// Restore rebuilds a session from a snapshot. Disease data comes from the
// snapshot; cfg.Diseases is ignored.
func Restore(snap Snapshot, cfg Config) (*Session, error) {
	if snap.Version != SnapshotVersion {
		return nil, fmt.Errorf("unsupported snapshot version %d", snap.Version)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	wm := engine.NewWorkingMemory()
	names := make(map[string]struct{})
	for i, rec := range snap.Facts {
		f, err := models.DecodeFact(rec)
		if err != nil {
			return nil, fmt.Errorf("snapshot fact %d: %w", i, err)
		}
		if _, err := wm.Assert(f); err != nil {
			return nil, fmt.Errorf("snapshot fact %d: %w", i, err)
		}
		if f.Kind() == models.KindDiseaseInfo {
			names[f.Key()] = struct{}{}
		}
	}

	if err := CheckConsistency(cfg.Rules, cfg.Catalog, names); err != nil {
		return nil, err
	}

	cfg.SessionID = snap.SessionID
	return newSession(cfg, wm), nil
}

func (cfg *Config) validate() error {
	if cfg.Catalog == nil {
		return errors.New("session requires a question catalog")
	}
	if cfg.Rules == nil {
		cfg.Rules = engine.MustRuleTable()
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.MaxCycles == 0 {
		cfg.MaxCycles = engine.DefaultMaxCycles
	}
	return nil
}

func newSession(cfg Config, wm *engine.WorkingMemory) *Session {
	logger := cfg.Logger.With(zap.String("session_id", cfg.SessionID))
	opts := []engine.Option{
		engine.WithLogger(logger),
		engine.WithMaxCycles(cfg.MaxCycles),
	}
	if cfg.Observer != nil {
		opts = append(opts, engine.WithObserver(cfg.Observer))
	}
	return &Session{
		id:      cfg.SessionID,
		catalog: cfg.Catalog,
		wm:      wm,
		eng:     engine.New(wm, cfg.Rules, opts...),
		logger:  logger,
	}
}

// ID returns the session identifier
func (s *Session) ID() string {
	return s.id
}

// Memory exposes the working memory for inspection
func (s *Session) Memory() *engine.WorkingMemory {
	return s.wm
}

// Err returns the error that aborted the session, if any
func (s *Session) Err() error {
	return s.failure
}

// AssertAnswer validates and records an answer to the pending question.
// Rejected answers leave working memory untouched.
func (s *Session) AssertAnswer(ident, text string) error {
	if s.failure != nil {
		return fmt.Errorf("%w: %v", ErrSessionFailed, s.failure)
	}

	q, ok := s.catalog.Question(ident)
	if !ok {
		return &ValidationError{Ident: ident, Value: text, Reason: "unknown question"}
	}
	pending, ok := s.wm.Lookup(models.KindNextQuestion, ident)
	if !ok {
		reason := "question is not pending"
		if StateOf(s.wm, ident) == QuestionAnswered {
			reason = "question was already answered"
		}
		return &ValidationError{Ident: ident, Value: text, Reason: reason}
	}

	normalized, err := NormalizeAnswer(q, text)
	if err != nil {
		return err
	}
	answer, err := models.NewAnswer(ident, normalized)
	if err != nil {
		return &ValidationError{Ident: ident, Value: text, Reason: err.Error()}
	}

	if err := s.wm.Retract(pending.Handle); err != nil {
		return fmt.Errorf("failed to clear pending question %s: %w", ident, err)
	}
	if _, err := s.wm.Assert(answer); err != nil {
		s.fail(err)
		return fmt.Errorf("%w: %v", ErrSessionFailed, err)
	}

	s.logger.Debug("answer recorded", zap.String("ident", ident), zap.String("text", normalized))
	return nil
}

// Run fires rules until the session needs input, completes or fails
func (s *Session) Run() EngineState {
	if s.failure != nil {
		return Failed(s.failure.Error())
	}

	res, err := s.eng.Run()
	if err != nil {
		return s.fail(err)
	}
	if err := s.wm.Verify(); err != nil {
		return s.fail(err)
	}

	ident := ""
	if res.Status == engine.StatusSuspended {
		ident = res.Suspend.Subject
	} else if pending, ok := PendingQuestion(s.wm); ok {
		ident = pending
	}
	if ident != "" {
		q, ok := s.catalog.Question(ident)
		if !ok {
			return s.fail(&ConfigurationError{Problems: []string{fmt.Sprintf("pending question %q is not in the catalog", ident)}})
		}
		return NeedInput(q)
	}

	return Completed(s.Result())
}

// Result returns the selected diagnosis, or nil when none could be made.
// Before the selection rule has run it falls back to the current best.
func (s *Session) Result() *models.Diagnosis {
	if e, ok := s.wm.Lookup(models.KindMarker, models.MarkerResultsProcessed); ok {
		name := e.Fact.(models.Marker).Value
		if name == "" {
			return nil
		}
		if d, ok := s.wm.Lookup(models.KindDiagnosis, name); ok {
			diag := d.Fact.(models.Diagnosis)
			return &diag
		}
		return nil
	}
	if best, ok := BestDiagnosis(s.wm.Facts(models.KindDiagnosis)); ok {
		return &best
	}
	return nil
}

// Completed reports whether the selection rule has run
func (s *Session) Completed() bool {
	_, ok := s.wm.Lookup(models.KindMarker, models.MarkerResultsProcessed)
	return ok
}

// Pending returns the question awaiting an answer
func (s *Session) Pending() (models.Question, bool) {
	ident, ok := PendingQuestion(s.wm)
	if !ok {
		return models.Question{}, false
	}
	return s.catalog.Question(ident)
}

// Answers returns the recorded answers in the order they were given
func (s *Session) Answers() []models.Answer {
	var out []models.Answer
	for _, e := range s.wm.Facts(models.KindAnswer) {
		out = append(out, e.Fact.(models.Answer))
	}
	return out
}

// Diagnoses returns all live diagnoses ranked best first
func (s *Session) Diagnoses() []models.Diagnosis {
	return RankDiagnoses(s.wm.Facts(models.KindDiagnosis))
}

// Disease returns the reference data for a disease seeded into this session
func (s *Session) Disease(name string) (models.DiseaseInfo, bool) {
	e, ok := s.wm.Lookup(models.KindDiseaseInfo, name)
	if !ok {
		return models.DiseaseInfo{}, false
	}
	return e.Fact.(models.DiseaseInfo), true
}

// Snapshot captures the full fact set
func (s *Session) Snapshot() (Snapshot, error) {
	entries := s.wm.Facts()
	snap := Snapshot{Version: SnapshotVersion, SessionID: s.id, Facts: make([]models.FactRecord, 0, len(entries))}
	for _, e := range entries {
		rec, err := models.EncodeFact(e.Fact)
		if err != nil {
			return Snapshot{}, err
		}
		snap.Facts = append(snap.Facts, rec)
	}
	return snap, nil
}

// fail aborts the session. Invariant violations dump the whole fact set.
func (s *Session) fail(err error) EngineState {
	var inv *engine.InvariantError
	if errors.As(err, &inv) {
		var dump []models.FactRecord
		if snap, serr := s.Snapshot(); serr == nil {
			dump = snap.Facts
		}
		s.logger.Error("engine invariant violated, aborting session",
			zap.Error(err),
			zap.Any("facts", dump))
	} else {
		s.logger.Error("session aborted", zap.Error(err))
	}
	s.failure = err
	return Failed(err.Error())
}
