// Package orchestrator drives one chunk of a translation through the
// provider adapter: retry with exponential backoff for transient failures,
// immediate abort on cancellation, immediate fatal exit for failures that
// would repeat identically, and the optional draft-then-polish two-pass
// sequence.
package orchestrator

import (
	"context"
	"fmt"
	"time"

	"github.com/valpere/kazkar/internal/errclass"
	"github.com/valpere/kazkar/internal/postprocess"
	"github.com/valpere/kazkar/internal/prompt"
	"github.com/valpere/kazkar/internal/provider"
)

// State is the terminal or in-progress condition of one chunk.
type State int

const (
	Pending State = iota
	InFlight
	Retrying
	Succeeded
	FailedFatal
	Aborted
)

func (s State) String() string {
	switch s {
	case Pending:
		return "pending"
	case InFlight:
		return "in_flight"
	case Retrying:
		return "retrying"
	case Succeeded:
		return "succeeded"
	case FailedFatal:
		return "failed_fatal"
	case Aborted:
		return "aborted"
	default:
		return "unknown"
	}
}

// Config tunes the per-chunk retry behaviour.
type Config struct {
	// MaxAttempts is the total attempts per call including the first.
	MaxAttempts int
	// BackoffBase scales the exponential backoff: attempt n waits
	// BackoffBase * 2^n before retrying.
	BackoffBase time.Duration
}

// Job is one chunk's worth of work. In two-pass mode DraftSystem drives the
// non-streamed draft call and System drives the streamed polish call; the
// draft never reaches OnDelta or the result.
type Job struct {
	Index       int
	SourceText  string
	System      string
	DraftSystem string
	TwoPass     bool
	OnDelta     func(string)
}

// Result is the explicit accumulator returned for a chunk: the final text,
// how many provider calls were made across all passes and retries, and the
// terminal state.
type Result struct {
	Text     string
	Attempts int
	State    State
}

type Orchestrator struct {
	provider provider.Provider
	config   Config
}

func New(p provider.Provider, config Config) *Orchestrator {
	if config.MaxAttempts <= 0 {
		config.MaxAttempts = 3
	}
	if config.BackoffBase <= 0 {
		config.BackoffBase = time.Second
	}
	return &Orchestrator{provider: p, config: config}
}

// Translate runs job to a terminal state. The returned error is non-nil
// exactly when the state is FailedFatal or Aborted, and wraps the classified
// cause so errclass.Classify works on it.
func (o *Orchestrator) Translate(ctx context.Context, job Job) (Result, error) {
	if !job.TwoPass {
		text, attempts, state, err := o.run(ctx, job.System, job.SourceText, job.OnDelta)
		return Result{Text: text, Attempts: attempts, State: state}, err
	}

	// Draft pass: literal accuracy, never streamed. Doubling latency and
	// cost here is the documented tradeoff of two-pass mode.
	draft, draftAttempts, state, err := o.run(ctx, job.DraftSystem, job.SourceText, nil)
	if err != nil {
		return Result{Attempts: draftAttempts, State: state}, fmt.Errorf("draft pass: %w", err)
	}
	draft = postprocess.Clean(draft)
	if draft == "" {
		return Result{Attempts: draftAttempts, State: FailedFatal},
			fmt.Errorf("draft pass returned no text")
	}

	polished, polishAttempts, state, err := o.run(ctx, job.System, prompt.PolishUser(job.SourceText, draft), job.OnDelta)
	attempts := draftAttempts + polishAttempts
	if err != nil {
		return Result{Attempts: attempts, State: state}, fmt.Errorf("polish pass: %w", err)
	}
	return Result{Text: polished, Attempts: attempts, State: Succeeded}, nil
}

// run executes one provider call to a terminal state, retrying transient
// failures up to MaxAttempts. Cancellation is observed before every attempt
// and during every backoff wait, and is never retried.
func (o *Orchestrator) run(ctx context.Context, system, text string, onDelta func(string)) (string, int, State, error) {
	var lastErr error

	for attempt := 0; attempt < o.config.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return "", attempt, Aborted, err
		}

		out, err := o.call(ctx, system, text, onDelta)
		if err == nil {
			return out, attempt + 1, Succeeded, nil
		}
		lastErr = err

		// Aborted is reserved for the caller's token. A call error that merely
		// looks like a cancellation (an http.Client timeout satisfies
		// errors.Is(err, context.DeadlineExceeded)) stays on the retry path.
		if ctx.Err() != nil {
			return "", attempt + 1, Aborted, ctx.Err()
		}
		if !errclass.Retryable(err) {
			return "", attempt + 1, FailedFatal, err
		}
		if attempt+1 >= o.config.MaxAttempts {
			break
		}

		select {
		case <-ctx.Done():
			return "", attempt + 1, Aborted, ctx.Err()
		case <-time.After(o.config.BackoffBase << attempt):
		}
	}

	return "", o.config.MaxAttempts, FailedFatal,
		fmt.Errorf("all %d attempts failed: %w", o.config.MaxAttempts, lastErr)
}

// call dispatches to the streaming or non-streaming operation. A backend
// without streaming support degrades to one non-incremental delta.
func (o *Orchestrator) call(ctx context.Context, system, text string, onDelta func(string)) (string, error) {
	if onDelta == nil || !o.provider.SupportsStreaming() {
		out, err := o.provider.Generate(ctx, system, text)
		if err != nil {
			return "", err
		}
		out = postprocess.Clean(out)
		if onDelta != nil {
			onDelta(out)
		}
		return out, nil
	}
	return o.provider.GenerateStream(ctx, system, text, onDelta)
}
