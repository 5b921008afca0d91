// ABOUTME: Benchmark runner driving scripted consultations through the session service
// ABOUTME: Runs every scenario twice in parallel and checks outcome and determinism
package scenarios

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/harper/dermacheck/internal/core"
	"github.com/harper/dermacheck/internal/knowledge"
	"github.com/harper/dermacheck/internal/models"
	"github.com/harper/dermacheck/internal/service"
	"github.com/harper/dermacheck/internal/storage/sqlite"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// maxAnswers bounds a scripted consultation
const maxAnswers = 100

// Runner executes benchmark scenarios
type Runner struct {
	kb       *knowledge.Base
	logger   *zap.Logger
	parallel int
}

// NewRunner creates a runner over kb. parallel bounds concurrent scenarios.
func NewRunner(kb *knowledge.Base, logger *zap.Logger, parallel int) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	if parallel < 1 {
		parallel = 1
	}
	return &Runner{kb: kb, logger: logger, parallel: parallel}
}

// RunAll runs every scenario and returns results in scenario order
func (r *Runner) RunAll(ctx context.Context, list []Scenario) ([]Result, error) {
	results := make([]Result, len(list))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(r.parallel)

	for i, s := range list {
		g.Go(func() error {
			res, err := r.Run(ctx, s)
			if err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				res = Failed(s, err)
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// Run plays a scenario twice on fresh storage and scores it
func (r *Runner) Run(ctx context.Context, s Scenario) (Result, error) {
	first, err := r.play(ctx, s)
	if err != nil {
		return Result{}, err
	}
	second, err := r.play(ctx, s)
	if err != nil {
		return Result{}, err
	}
	res := Evaluate(s, first, second)
	r.logger.Debug("scenario finished",
		zap.String("scenario", s.ID),
		zap.String("status", res.Status),
		zap.String("disease", res.Disease),
		zap.Float64("cf", res.CF),
		zap.Int("questions", len(res.Questions)))
	return res, nil
}

func (r *Runner) play(ctx context.Context, s Scenario) (run, error) {
	store, err := sqlite.NewStorageInMemory()
	if err != nil {
		return run{}, err
	}
	defer func() { _ = store.Close() }()

	// No ttl keeps the cache free of background goroutines
	svc, err := service.New(r.kb, store,
		service.WithLogger(r.logger.With(zap.String("scenario", s.ID))),
		service.WithCache(1, 0))
	if err != nil {
		return run{}, err
	}
	defer svc.Close()

	st, err := svc.Create(ctx)
	if err != nil {
		return run{}, err
	}

	var out run
	for st.State.Kind == core.StateNeedInput {
		if len(out.questions) >= maxAnswers {
			return run{}, fmt.Errorf("scenario %s asked more than %d questions", s.ID, maxAnswers)
		}
		q := st.State.Question
		out.questions = append(out.questions, q.Ident)
		if st, err = svc.Answer(ctx, st.SessionID, q.Ident, s.answer(q.Ident, q.InputKind == models.InputMultiChoice)); err != nil {
			return run{}, fmt.Errorf("scenario %s: %w", s.ID, err)
		}
	}
	if st.State.Kind == core.StateError {
		return run{}, fmt.Errorf("scenario %s failed: %s", s.ID, st.State.Reason)
	}
	if d := st.State.Diagnosis; d != nil {
		out.disease = d.Disease
		out.cf = d.CF
	}

	firings, err := svc.Firings(ctx, st.SessionID)
	if err != nil {
		return run{}, err
	}
	out.firings = len(firings)
	return out, nil
}

// ExportResults writes the summary and results as JSON
func ExportResults(results []Result, outputPath string) error {
	report := struct {
		Timestamp string   `json:"timestamp"`
		Summary   Summary  `json:"summary"`
		Results   []Result `json:"results"`
	}{
		Timestamp: time.Now().Format(time.RFC3339),
		Summary:   Summarize(results),
		Results:   results,
	}

	jsonData, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal results: %w", err)
	}
	if err := os.WriteFile(outputPath, jsonData, 0o644); err != nil {
		return fmt.Errorf("failed to write results file: %w", err)
	}
	return nil
}
