// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package evaluate

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/semaphore"

	"github.com/pdiddy/ticket-grader/pkg/types"
)

func TestMain(m *testing.M) {
	// Override backoff to avoid real sleeps in retry tests.
	backoffBase = time.Millisecond
	os.Exit(m.Run())
}

// scorerFunc adapts a function to the Scorer interface.
type scorerFunc func(ctx context.Context, t types.Ticket) (types.ScoreResult, error)

func (f scorerFunc) Score(ctx context.Context, t types.Ticket) (types.ScoreResult, error) {
	return f(ctx, t)
}

// stubScorer always returns the same result (or error) and counts calls.
type stubScorer struct {
	result types.ScoreResult
	err    error
	calls  int32
}

func (s *stubScorer) Score(_ context.Context, _ types.Ticket) (types.ScoreResult, error) {
	atomic.AddInt32(&s.calls, 1)
	if s.err != nil {
		return types.ScoreResult{}, s.err
	}
	return s.result, nil
}

// failNTimesScorer fails transiently for the first N calls, then succeeds.
type failNTimesScorer struct {
	failures int
	calls    int32
	result   types.ScoreResult
}

func (f *failNTimesScorer) Score(_ context.Context, _ types.Ticket) (types.ScoreResult, error) {
	n := atomic.AddInt32(&f.calls, 1)
	if int(n) <= f.failures {
		return types.ScoreResult{}, &TransientError{Err: fmt.Errorf("connection reset (call %d)", n)}
	}
	return f.result, nil
}

// countingScorer tracks the maximum number of simultaneous in-flight calls.
type countingScorer struct {
	mu          sync.Mutex
	inFlight    int
	maxInFlight int
	delay       time.Duration
	result      types.ScoreResult
}

func (c *countingScorer) Score(_ context.Context, _ types.Ticket) (types.ScoreResult, error) {
	c.mu.Lock()
	c.inFlight++
	if c.inFlight > c.maxInFlight {
		c.maxInFlight = c.inFlight
	}
	c.mu.Unlock()

	time.Sleep(c.delay)

	c.mu.Lock()
	c.inFlight--
	c.mu.Unlock()
	return c.result, nil
}

func testEngine(backend Scorer, maxConcurrency int64, maxRetries int) *Engine {
	return New(backend, semaphore.NewWeighted(maxConcurrency), maxRetries)
}

func goodResult() types.ScoreResult {
	return types.ScoreResult{
		ContentScore:       4,
		ContentExplanation: "Addresses the delay and gives an ETA.",
		FormatScore:        5,
		FormatExplanation:  "Clear and professional.",
	}
}

func ticket(request string) types.Ticket {
	return types.Ticket{Request: request, Reply: "Arriving tomorrow"}
}

// --- Evaluate ---

func TestEvaluate_Success(t *testing.T) {
	backend := &stubScorer{result: goodResult()}
	e := testEngine(backend, 3, 3)

	result, err := e.Evaluate(context.Background(), ticket("Order #1234 late"), os.Stderr)
	require.NoError(t, err)
	assert.Equal(t, goodResult(), result)
	assert.Equal(t, int32(1), atomic.LoadInt32(&backend.calls))
}

func TestEvaluate_Deterministic(t *testing.T) {
	backend := &stubScorer{result: goodResult()}
	e := testEngine(backend, 3, 3)

	first, err := e.Evaluate(context.Background(), ticket("Order #1234 late"), os.Stderr)
	require.NoError(t, err)
	second, err := e.Evaluate(context.Background(), ticket("Order #1234 late"), os.Stderr)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestEvaluate_RetriesThenSucceeds(t *testing.T) {
	backend := &failNTimesScorer{failures: 2, result: goodResult()}
	e := testEngine(backend, 3, 3)

	var buf bytes.Buffer
	result, err := e.Evaluate(context.Background(), ticket("Order #1234 late"), &buf)
	require.NoError(t, err)
	assert.Equal(t, goodResult(), result)
	assert.Equal(t, int32(3), atomic.LoadInt32(&backend.calls))

	// Two backoff sleeps: 2 and 4 base units.
	assert.Contains(t, buf.String(), "attempt 1/3")
	assert.Contains(t, buf.String(), "retrying in 2ms")
	assert.Contains(t, buf.String(), "attempt 2/3")
	assert.Contains(t, buf.String(), "retrying in 4ms")
}

func TestEvaluate_ExhaustsRetries(t *testing.T) {
	backend := &stubScorer{err: &TransientError{Err: errors.New("rate limited")}}
	e := testEngine(backend, 3, 3)

	_, err := e.Evaluate(context.Background(), ticket("Order #1234 late"), os.Stderr)
	require.Error(t, err)

	var exhausted *ExhaustedError
	require.ErrorAs(t, err, &exhausted)
	assert.Equal(t, 3, exhausted.Attempts)
	assert.Contains(t, exhausted.Last.Error(), "rate limited")
	// Exactly max_retries attempts, no more.
	assert.Equal(t, int32(3), atomic.LoadInt32(&backend.calls))
}

func TestEvaluate_TerminalFailureNotRetried(t *testing.T) {
	// An empty or unparseable payload is terminal, unlike network errors.
	backend := &stubScorer{err: errors.New("OpenAI API returned empty output")}
	e := testEngine(backend, 3, 3)

	_, err := e.Evaluate(context.Background(), ticket("Order #1234 late"), os.Stderr)
	require.Error(t, err)

	var exhausted *ExhaustedError
	assert.False(t, errors.As(err, &exhausted), "terminal failure must not reach the retry path")
	assert.Equal(t, int32(1), atomic.LoadInt32(&backend.calls))
}

func TestEvaluate_OutOfRangeScoreRejected(t *testing.T) {
	tests := []struct {
		name   string
		result types.ScoreResult
	}{
		{"content too high", types.ScoreResult{ContentScore: 6, FormatScore: 3}},
		{"content too low", types.ScoreResult{ContentScore: 0, FormatScore: 3}},
		{"format too high", types.ScoreResult{ContentScore: 3, FormatScore: 9}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			backend := &stubScorer{result: tt.result}
			e := testEngine(backend, 3, 3)

			_, err := e.Evaluate(context.Background(), ticket("Order #1234 late"), os.Stderr)
			require.Error(t, err)
			assert.Contains(t, err.Error(), "out of range")
			// Contract violations are terminal, never retried or clamped.
			assert.Equal(t, int32(1), atomic.LoadInt32(&backend.calls))
		})
	}
}

// --- EvaluateBatch ---

func TestEvaluateBatch_AllSucceed(t *testing.T) {
	backend := &stubScorer{result: goodResult()}
	e := testEngine(backend, 3, 3)

	tickets := []types.Ticket{
		ticket("first"), ticket("second"), ticket("third"),
	}
	results, summary := e.EvaluateBatch(context.Background(), tickets, os.Stderr)

	require.Len(t, results, 3)
	assert.Equal(t, BatchSummary{Attempted: 3, Succeeded: 3, Failed: 0}, summary)
	assert.False(t, summary.HasFailures())

	// Input order is preserved.
	for i, want := range []string{"first", "second", "third"} {
		assert.Equal(t, want, results[i].Request)
	}
}

func TestEvaluateBatch_PartialFailureIsAbsorbed(t *testing.T) {
	backend := scorerFunc(func(_ context.Context, tk types.Ticket) (types.ScoreResult, error) {
		if tk.Request == "broken" {
			return types.ScoreResult{}, &TransientError{Err: errors.New("connection refused")}
		}
		return goodResult(), nil
	})
	e := testEngine(backend, 3, 2)

	tickets := []types.Ticket{
		ticket("first"), ticket("broken"), ticket("third"),
	}
	var buf bytes.Buffer
	results, summary := e.EvaluateBatch(context.Background(), tickets, &buf)

	require.Len(t, results, 2)
	assert.Equal(t, "first", results[0].Request)
	assert.Equal(t, "third", results[1].Request)
	assert.Equal(t, BatchSummary{Attempted: 3, Succeeded: 2, Failed: 1}, summary)
	assert.Contains(t, buf.String(), "dropping ticket 2")
}

func TestEvaluateBatch_TotalFailureIsNotAnError(t *testing.T) {
	backend := &stubScorer{err: &TransientError{Err: errors.New("connection refused")}}
	e := testEngine(backend, 3, 2)

	tickets := []types.Ticket{ticket("first"), ticket("second")}
	results, summary := e.EvaluateBatch(context.Background(), tickets, os.Stderr)

	assert.Empty(t, results)
	assert.Equal(t, BatchSummary{Attempted: 2, Succeeded: 0, Failed: 2}, summary)
}

func TestEvaluateBatch_EmptyInput(t *testing.T) {
	backend := &stubScorer{result: goodResult()}
	e := testEngine(backend, 3, 3)

	results, summary := e.EvaluateBatch(context.Background(), nil, os.Stderr)

	assert.Empty(t, results)
	assert.Equal(t, BatchSummary{}, summary)
	assert.Equal(t, int32(0), atomic.LoadInt32(&backend.calls), "no backend calls for empty input")
}

func TestEvaluateBatch_ConcurrencyCap(t *testing.T) {
	backend := &countingScorer{delay: 5 * time.Millisecond, result: goodResult()}
	e := testEngine(backend, 3, 1)

	tickets := make([]types.Ticket, 20)
	for i := range tickets {
		tickets[i] = ticket(fmt.Sprintf("ticket %d", i))
	}
	results, summary := e.EvaluateBatch(context.Background(), tickets, os.Stderr)

	require.Len(t, results, 20)
	assert.Equal(t, 20, summary.Succeeded)
	assert.LessOrEqual(t, backend.maxInFlight, 3, "in-flight calls must never exceed the gate capacity")
	assert.Greater(t, backend.maxInFlight, 1, "batch should actually run concurrently")
}

// --- Averages ---

func TestAverages(t *testing.T) {
	content, format := Averages(nil)
	assert.Zero(t, content)
	assert.Zero(t, format)

	evaluated := []types.EvaluatedTicket{
		{ContentScore: 4, FormatScore: 5},
		{ContentScore: 2, FormatScore: 3},
	}
	content, format = Averages(evaluated)
	assert.InDelta(t, 3.0, content, 1e-9)
	assert.InDelta(t, 4.0, format, 1e-9)
}
