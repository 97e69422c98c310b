// Package evaluate scores AI-generated ticket replies against a fixed
// rubric by delegating judgment to a model-scoring backend. Calls run
// under a shared admission gate with bounded concurrency; transient
// backend failures are retried with exponential backoff, and tickets
// that still fail are dropped without aborting the batch.
package evaluate

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/pdiddy/ticket-grader/pkg/types"
)

// Scorer abstracts the model-scoring API so tests can supply a mock.
// Implementations return a TransientError for retryable failures
// (rate limiting, connection problems, upstream status errors); any
// other error is terminal for the ticket.
type Scorer interface {
	Score(ctx context.Context, t types.Ticket) (types.ScoreResult, error)
}

// backoffBase controls the base duration for exponential backoff. Tests
// override this to avoid real sleeps.
var backoffBase = time.Second

// Engine evaluates tickets through a Scorer under a shared concurrency
// gate. The gate is injected at construction and its capacity is fixed
// for the engine's lifetime.
type Engine struct {
	backend    Scorer
	gate       *semaphore.Weighted
	maxRetries int
}

// New constructs an Engine. The gate bounds simultaneous backend calls
// across everything this engine evaluates; all tickets of one batch
// share it.
func New(backend Scorer, gate *semaphore.Weighted, maxRetries int) *Engine {
	if maxRetries <= 0 {
		maxRetries = 3
	}
	return &Engine{
		backend:    backend,
		gate:       gate,
		maxRetries: maxRetries,
	}
}

// Evaluate obtains exactly one score for one ticket. Transient backend
// failures are retried up to the engine's attempt limit, sleeping
// 2^attempt backoff units between attempts (2s, 4s, 8s, ...). Terminal
// failures, including payloads the backend could not parse and scores
// outside the rubric range, abort immediately without retry. Retry
// warnings are written to w.
func (e *Engine) Evaluate(ctx context.Context, t types.Ticket, w io.Writer) (types.ScoreResult, error) {
	var lastErr error

	for attempt := 1; attempt <= e.maxRetries; attempt++ {
		result, err := e.attempt(ctx, t)
		if err == nil {
			if verr := result.Validate(); verr != nil {
				return types.ScoreResult{}, fmt.Errorf("backend returned invalid score: %w", verr)
			}
			return result, nil
		}

		if !IsTransient(err) {
			return types.ScoreResult{}, err
		}
		lastErr = err

		if attempt < e.maxRetries {
			wait := time.Duration(1<<attempt) * backoffBase
			fmt.Fprintf(w, "warning: scoring attempt %d/%d failed, retrying in %v: %v\n",
				attempt, e.maxRetries, wait, err)
			select {
			case <-ctx.Done():
				return types.ScoreResult{}, ctx.Err()
			case <-time.After(wait):
			}
		}
	}

	return types.ScoreResult{}, &ExhaustedError{Attempts: e.maxRetries, Last: lastErr}
}

// attempt runs a single gated backend call. The slot is held only for
// the call itself and is released on every exit path.
func (e *Engine) attempt(ctx context.Context, t types.Ticket) (types.ScoreResult, error) {
	if err := e.gate.Acquire(ctx, 1); err != nil {
		return types.ScoreResult{}, err
	}
	defer e.gate.Release(1)

	return e.backend.Score(ctx, t)
}

// BatchSummary holds counts from one batch evaluation run.
type BatchSummary struct {
	Attempted int
	Succeeded int
	Failed    int
}

// HasFailures reports whether any tickets were dropped.
func (s BatchSummary) HasFailures() bool {
	return s.Failed > 0
}

// EvaluateBatch evaluates all tickets concurrently, one goroutine per
// ticket, all sharing the engine's admission gate. Tickets whose
// evaluation ultimately fails are logged to w and dropped; one ticket's
// failure never cancels its siblings and never fails the batch. The
// returned slice preserves input order among the survivors, so output
// rows correspond positionally to the surviving input rows. An empty
// input yields an empty result with no backend calls.
func (e *Engine) EvaluateBatch(ctx context.Context, tickets []types.Ticket, w io.Writer) ([]types.EvaluatedTicket, BatchSummary) {
	summary := BatchSummary{Attempted: len(tickets)}
	if len(tickets) == 0 {
		return nil, summary
	}

	lw := &lockedWriter{w: w}
	slots := make([]*types.EvaluatedTicket, len(tickets))
	var wg sync.WaitGroup

	for i, t := range tickets {
		wg.Add(1)
		go func(i int, t types.Ticket) {
			defer wg.Done()
			result, err := e.Evaluate(ctx, t, lw)
			if err != nil {
				fmt.Fprintf(lw, "warning: dropping ticket %d: %v\n", i+1, err)
				return
			}
			merged := types.Evaluated(t, result)
			slots[i] = &merged
		}(i, t)
	}

	wg.Wait()

	evaluated := make([]types.EvaluatedTicket, 0, len(tickets))
	for _, slot := range slots {
		if slot != nil {
			evaluated = append(evaluated, *slot)
		}
	}

	summary.Succeeded = len(evaluated)
	summary.Failed = summary.Attempted - summary.Succeeded

	fmt.Fprintf(lw, "evaluated %d/%d tickets (%d failed)\n",
		summary.Succeeded, summary.Attempted, summary.Failed)

	return evaluated, summary
}

// Averages returns the mean content and format scores of the evaluated
// tickets, or zeros for an empty slice.
func Averages(tickets []types.EvaluatedTicket) (content, format float64) {
	if len(tickets) == 0 {
		return 0, 0
	}
	for _, t := range tickets {
		content += float64(t.ContentScore)
		format += float64(t.FormatScore)
	}
	n := float64(len(tickets))
	return content / n, format / n
}

// lockedWriter serializes log lines written from concurrent evaluations.
type lockedWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (l *lockedWriter) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.w.Write(p)
}
