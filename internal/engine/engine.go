// ABOUTME: Engine runs the recognize-act cycle over a working memory and rule table
// ABOUTME: Fires one instantiation per cycle until quiescence or a suspension request
package engine

import (
	"errors"
	"fmt"

	"github.com/harper/dermacheck/internal/models"
	"go.uber.org/zap"
)

// DefaultMaxCycles bounds a single Run call
const DefaultMaxCycles = 10000

// ErrCycleLimit is returned when Run fires more rules than its bound allows
var ErrCycleLimit = errors.New("cycle limit reached")

// Status is the outcome of a Run
type Status int

const (
	// StatusQuiescent means no instantiation is satisfied
	StatusQuiescent Status = iota
	// StatusSuspended means an action asked the engine to wait for external input
	StatusSuspended
)

func (s Status) String() string {
	switch s {
	case StatusQuiescent:
		return "quiescent"
	case StatusSuspended:
		return "suspended"
	}
	return fmt.Sprintf("status(%d)", int(s))
}

// Suspend is the signal an action raises to stop the loop
type Suspend struct {
	Rule    string
	Subject string
	Reason  string
}

// Result summarises one Run
type Result struct {
	Status  Status
	Suspend *Suspend
	Fired   int
}

// Firing records one fired instantiation
type Firing struct {
	Cycle    int
	Rule     string
	Salience int
	Bindings Bindings
	Handles  []Handle
}

// Observer is notified after every successful firing
type Observer func(Firing)

// FireError wraps an error returned by a rule action
type FireError struct {
	Rule string
	Err  error
}

func (e *FireError) Error() string {
	return fmt.Sprintf("rule %s: %v", e.Rule, e.Err)
}

func (e *FireError) Unwrap() error { return e.Err }

// Option configures an Engine
type Option func(*Engine)

// WithLogger sets the engine logger
func WithLogger(logger *zap.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithMaxCycles bounds how many rules one Run may fire. Zero disables the bound.
func WithMaxCycles(n int) Option {
	return func(e *Engine) { e.maxCycles = n }
}

// WithObserver registers a firing observer
func WithObserver(fn Observer) Option {
	return func(e *Engine) {
		if fn != nil {
			e.observers = append(e.observers, fn)
		}
	}
}

// Engine is single-threaded; one instance per session
type Engine struct {
	wm        *WorkingMemory
	rules     *RuleTable
	matcher   *Matcher
	logger    *zap.Logger
	maxCycles int
	observers []Observer
	cycle     int
}

// New creates an engine over wm and rules
func New(wm *WorkingMemory, rules *RuleTable, opts ...Option) *Engine {
	e := &Engine{
		wm:        wm,
		rules:     rules,
		logger:    zap.NewNop(),
		maxCycles: DefaultMaxCycles,
	}
	for _, opt := range opts {
		opt(e)
	}
	e.matcher = NewMatcher(e.logger)
	return e
}

// Memory returns the working memory
func (e *Engine) Memory() *WorkingMemory {
	return e.wm
}

// Cycle returns the number of firings so far
func (e *Engine) Cycle() int {
	return e.cycle
}

// Agenda computes the current instantiations in firing order
func (e *Engine) Agenda() *Agenda {
	return NewAgenda(e.matcher.Instantiations(e.wm, e.rules))
}

// Step fires the first instantiation of a freshly computed agenda.
// fired is false when nothing was satisfied.
func (e *Engine) Step() (fired bool, suspend *Suspend, err error) {
	inst, ok := e.Agenda().Next()
	if !ok {
		return false, nil, nil
	}

	e.cycle++
	ctx := &Context{engine: e, inst: inst}
	if err := inst.Rule.Then(ctx); err != nil {
		return true, nil, &FireError{Rule: inst.Rule.Name, Err: err}
	}

	firing := Firing{
		Cycle:    e.cycle,
		Rule:     inst.Rule.Name,
		Salience: inst.Rule.Salience,
		Bindings: inst.Bindings,
		Handles:  inst.Handles,
	}
	e.logger.Debug("rule fired",
		zap.Int("cycle", e.cycle),
		zap.String("rule", inst.Rule.Name),
		zap.Int("salience", inst.Rule.Salience))
	for _, obs := range e.observers {
		obs(firing)
	}

	return true, ctx.suspend, nil
}

// Run steps until quiescence, suspension or an error
func (e *Engine) Run() (Result, error) {
	var res Result
	for {
		if e.maxCycles > 0 && res.Fired >= e.maxCycles {
			return res, fmt.Errorf("%w after %d firings", ErrCycleLimit, res.Fired)
		}
		fired, suspend, err := e.Step()
		if fired {
			res.Fired++
		}
		if err != nil {
			return res, err
		}
		if !fired {
			res.Status = StatusQuiescent
			return res, nil
		}
		if suspend != nil {
			res.Status = StatusSuspended
			res.Suspend = suspend
			return res, nil
		}
	}
}

// Context is handed to a firing action
type Context struct {
	engine  *Engine
	inst    Instantiation
	suspend *Suspend
}

// RuleName returns the firing rule's name
func (c *Context) RuleName() string {
	return c.inst.Rule.Name
}

// Bindings returns the instantiation's variable bindings
func (c *Context) Bindings() Bindings {
	return c.inst.Bindings
}

// Handles returns the matched fact handles in pattern order
func (c *Context) Handles() []Handle {
	return c.inst.Handles
}

// Assert adds a fact to working memory
func (c *Context) Assert(f models.Fact) (Handle, error) {
	return c.engine.wm.Assert(f)
}

// Retract removes a fact from working memory
func (c *Context) Retract(h Handle) error {
	return c.engine.wm.Retract(h)
}

// Lookup finds a live fact by (kind, key)
func (c *Context) Lookup(kind models.FactKind, key string) (Entry, bool) {
	return c.engine.wm.Lookup(kind, key)
}

// Facts returns a snapshot of live facts
func (c *Context) Facts(kinds ...models.FactKind) []Entry {
	return c.engine.wm.Facts(kinds...)
}

// Logger returns the engine logger scoped to the firing rule
func (c *Context) Logger() *zap.Logger {
	return c.engine.logger.With(zap.String("rule", c.inst.Rule.Name))
}

// Suspend stops the loop after this action returns
func (c *Context) Suspend(subject, reason string) {
	c.suspend = &Suspend{Rule: c.inst.Rule.Name, Subject: subject, Reason: reason}
}
