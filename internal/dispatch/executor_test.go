package dispatch

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"komandir/internal/command"
	"komandir/internal/observer"
)

// recordingSink captures observer calls for assertions.
type recordingSink struct {
	mu     sync.Mutex
	errors []error
	uses   []observer.Context
}

func (s *recordingSink) LogError(_ observer.Context, err error) {
	s.mu.Lock()
	s.errors = append(s.errors, err)
	s.mu.Unlock()
}

func (s *recordingSink) LogCommandUse(ctx observer.Context) {
	s.mu.Lock()
	s.uses = append(s.uses, ctx)
	s.mu.Unlock()
}

func (s *recordingSink) LogGuildEvent(string, string)      {}
func (s *recordingSink) LogShardEvent(int, string, string) {}

func (s *recordingSink) errorCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.errors)
}

func specWithHandler(name string, h command.Handler) *command.Spec {
	return &command.Spec{Name: name, Handler: h}
}

func TestExecuteSuccess(t *testing.T) {
	sink := &recordingSink{}
	e := NewExecutor(time.Second, sink, 0)

	ran := false
	spec := specWithHandler("ping", func(ctx context.Context, inv command.Invocation) error {
		ran = true
		return nil
	})

	err := e.Execute(context.Background(), guildInvocation("u1"), spec)
	require.NoError(t, err)
	assert.True(t, ran)
	assert.Zero(t, sink.errorCount())
}

func TestExecuteHandlerError(t *testing.T) {
	sink := &recordingSink{}
	e := NewExecutor(time.Second, sink, 0)

	cause := errors.New("boom")
	spec := specWithHandler("ping", func(ctx context.Context, inv command.Invocation) error {
		return cause
	})

	err := e.Execute(context.Background(), guildInvocation("u1"), spec)
	var execErr *ExecutionError
	require.ErrorAs(t, err, &execErr)
	assert.Equal(t, "ping", execErr.Command)
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, 1, sink.errorCount())
}

func TestExecuteRecoversPanic(t *testing.T) {
	sink := &recordingSink{}
	e := NewExecutor(time.Second, sink, 0)

	spec := specWithHandler("ping", func(ctx context.Context, inv command.Invocation) error {
		panic("kaboom")
	})

	err := e.Execute(context.Background(), guildInvocation("u1"), spec)
	var execErr *ExecutionError
	require.ErrorAs(t, err, &execErr)
	assert.Contains(t, execErr.Cause.Error(), "kaboom")

	// The executor survives: the next invocation runs normally.
	ok := specWithHandler("ping", func(ctx context.Context, inv command.Invocation) error {
		return nil
	})
	assert.NoError(t, e.Execute(context.Background(), guildInvocation("u1"), ok))
}

func TestExecuteTimeout(t *testing.T) {
	sink := &recordingSink{}
	e := NewExecutor(20*time.Millisecond, sink, 0)

	release := make(chan struct{})
	spec := specWithHandler("slow", func(ctx context.Context, inv command.Invocation) error {
		<-release
		return nil
	})

	start := time.Now()
	err := e.Execute(context.Background(), guildInvocation("u1"), spec)
	close(release)

	var timeoutErr *TimeoutError
	require.ErrorAs(t, err, &timeoutErr)
	assert.Equal(t, "slow", timeoutErr.Command)
	assert.Less(t, time.Since(start), time.Second, "caller is released at the budget, not when the handler finishes")
	assert.Equal(t, 1, sink.errorCount())
}

func TestExecuteParentCancelIsNotTimeout(t *testing.T) {
	sink := &recordingSink{}
	e := NewExecutor(time.Minute, sink, 0)

	ctx, cancel := context.WithCancel(context.Background())
	release := make(chan struct{})
	spec := specWithHandler("slow", func(ctx context.Context, inv command.Invocation) error {
		<-release
		return nil
	})

	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	err := e.Execute(ctx, guildInvocation("u1"), spec)
	close(release)

	require.ErrorIs(t, err, context.Canceled)
	var timeoutErr *TimeoutError
	assert.False(t, errors.As(err, &timeoutErr))
	assert.Zero(t, sink.errorCount(), "shutdown is not a handler failure")
}

func TestExecuteHandlerSeesDeadline(t *testing.T) {
	e := NewExecutor(time.Minute, observer.Nop{}, 0)

	spec := specWithHandler("ping", func(ctx context.Context, inv command.Invocation) error {
		if _, ok := ctx.Deadline(); !ok {
			return errors.New("no deadline on handler context")
		}
		return nil
	})

	assert.NoError(t, e.Execute(context.Background(), guildInvocation("u1"), spec))
}
