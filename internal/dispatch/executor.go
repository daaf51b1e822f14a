package dispatch

import (
	"context"
	"fmt"
	"time"

	"komandir/internal/command"
	"komandir/internal/observer"
)

// DefaultBudget is the handler timeout when none is configured. Generous on
// purpose: handlers do real I/O and only runaways should trip it.
const DefaultBudget = 2 * time.Minute

// Executor runs admitted handlers. Each handler is invoked exactly once
// (side effects are not assumed idempotent, so no retries), panics are
// captured, and a handler that outlives its budget is abandoned, not killed.
type Executor struct {
	Budget  time.Duration
	Sink    observer.Sink
	ShardID int
}

// NewExecutor builds an executor reporting failures to the given sink.
func NewExecutor(budget time.Duration, sink observer.Sink, shardID int) *Executor {
	if budget <= 0 {
		budget = DefaultBudget
	}
	if sink == nil {
		sink = observer.Nop{}
	}
	return &Executor{Budget: budget, Sink: sink, ShardID: shardID}
}

// Execute runs the handler under the timeout budget. The returned error is
// an *ExecutionError or *TimeoutError, already reported to the sink; it is
// returned only so the caller can degrade to a generic failure reply. It
// never propagates a panic and never blocks past the budget.
func (e *Executor) Execute(ctx context.Context, inv command.Invocation, spec *command.Spec) error {
	runCtx, cancel := context.WithTimeout(ctx, e.Budget)

	done := make(chan error, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- fmt.Errorf("panic: %v", r)
			}
		}()
		done <- spec.Handler(runCtx, inv)
	}()

	select {
	case err := <-done:
		cancel()
		if err != nil {
			execErr := &ExecutionError{Command: spec.Name, Cause: err}
			e.Sink.LogError(e.observerContext(inv, spec), execErr)
			return execErr
		}
		return nil
	case <-runCtx.Done():
		// Stop waiting; the goroutine keeps the cancelled context and is
		// expected to wind down on its own.
		cancel()
		if ctx.Err() != nil {
			// Parent cancellation (shutdown), not a runaway handler.
			return ctx.Err()
		}
		timeoutErr := &TimeoutError{Command: spec.Name, Budget: e.Budget}
		e.Sink.LogError(e.observerContext(inv, spec), timeoutErr)
		return timeoutErr
	}
}

func (e *Executor) observerContext(inv command.Invocation, spec *command.Spec) observer.Context {
	return observer.Context{
		Command:   spec.Name,
		ActorID:   inv.ActorID(),
		GuildID:   inv.GuildID(),
		ChannelID: inv.ChannelID(),
		Kind:      inv.Kind().String(),
		ShardID:   e.ShardID,
	}
}
