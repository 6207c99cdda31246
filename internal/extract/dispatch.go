package extract

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/lexgate/lexgate/internal/engine"
)

// OutcomeKind classifies a dispatch result.
type OutcomeKind int

const (
	OutcomeSuccess OutcomeKind = iota
	OutcomeTimeout
	OutcomeFailure
)

// Outcome is the classified result of one engine dispatch. RequestID and
// Elapsed are always set.
type Outcome struct {
	Kind      OutcomeKind
	RequestID string
	Elapsed   time.Duration
	Raw       any   // set on success
	Err       error // set on failure; logged server-side, never surfaced to callers
}

// Dispatcher runs engine invocations off the request path: one goroutine
// per dispatch, bounded by the admission gate, guarded by a deadline.
type Dispatcher struct {
	gate    *Gate
	engine  engine.Engine
	timeout time.Duration
	logger  *slog.Logger
}

// NewDispatcher creates a dispatcher. timeout guards each engine call.
func NewDispatcher(gate *Gate, eng engine.Engine, timeout time.Duration, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		gate:    gate,
		engine:  eng,
		timeout: timeout,
		logger:  logger,
	}
}

// Gate returns the admission gate.
func (d *Dispatcher) Gate() *Gate {
	return d.gate
}

// Dispatch acquires an admission slot, invokes the engine under the
// configured deadline, and classifies the outcome. The slot is released
// on every exit path. On deadline expiry the caller's wait is abandoned
// but the engine call is not guaranteed to stop; it receives a cancelled
// context and may keep running in the background until it notices.
func (d *Dispatcher) Dispatch(ctx context.Context, req *Request, examples []engine.ExampleData) *Outcome {
	requestID := uuid.New().String()
	log := d.logger.With("request_id", requestID)

	log.Info("extract request started",
		"model_id", req.ModelID,
		"text_len", utf8.RuneCountInString(req.Text),
		"examples", len(examples),
	)
	started := time.Now()

	if err := d.gate.Acquire(ctx); err != nil {
		log.Error("extract request abandoned while queued", "error", err)
		return &Outcome{
			Kind:      OutcomeFailure,
			RequestID: requestID,
			Elapsed:   time.Since(started),
			Err:       err,
		}
	}
	defer d.gate.Release()

	callCtx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	type result struct {
		raw any
		err error
	}
	// Buffered so the engine goroutine can complete after a timeout
	// without leaking.
	resCh := make(chan result, 1)
	go func() {
		// The engine is a pluggable black box; a panic in it must come
		// back as a failed outcome, not take down the process.
		defer func() {
			if r := recover(); r != nil {
				resCh <- result{err: fmt.Errorf("engine panic: %v", r)}
			}
		}()
		raw, err := d.engine.Extract(callCtx, engine.Request{
			Text:              req.Text,
			PromptDescription: req.PromptDescription,
			Examples:          examples,
			ModelID:           req.ModelID,
			ExtractionPasses:  req.ExtractionPasses,
			MaxWorkers:        req.MaxWorkers,
			MaxCharBuffer:     req.MaxCharBuffer,
			Params:            req.EngineParams,
		})
		resCh <- result{raw: raw, err: err}
	}()

	select {
	case res := <-resCh:
		elapsed := time.Since(started)
		if res.err != nil {
			if errors.Is(res.err, context.DeadlineExceeded) {
				log.Error("extract request timeout", "timeout", d.timeout)
				return &Outcome{Kind: OutcomeTimeout, RequestID: requestID, Elapsed: elapsed, Err: res.err}
			}
			log.Error("extract request failed", "error", res.err)
			return &Outcome{Kind: OutcomeFailure, RequestID: requestID, Elapsed: elapsed, Err: res.err}
		}
		log.Info("extract request succeeded", "timing_ms", elapsed.Milliseconds())
		return &Outcome{Kind: OutcomeSuccess, RequestID: requestID, Elapsed: elapsed, Raw: res.raw}

	case <-callCtx.Done():
		elapsed := time.Since(started)
		if errors.Is(callCtx.Err(), context.DeadlineExceeded) {
			log.Error("extract request timeout", "timeout", d.timeout)
			return &Outcome{Kind: OutcomeTimeout, RequestID: requestID, Elapsed: elapsed, Err: callCtx.Err()}
		}
		// Caller went away before the deadline.
		log.Error("extract request cancelled", "error", callCtx.Err())
		return &Outcome{Kind: OutcomeFailure, RequestID: requestID, Elapsed: elapsed, Err: callCtx.Err()}
	}
}
