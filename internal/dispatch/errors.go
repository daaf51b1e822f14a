package dispatch

import (
	"fmt"
	"time"
)

// ParseError means the raw event could not be normalized; it is dropped
// before dispatch and never reported as a failure.
type ParseError struct {
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse error: %s", e.Reason)
}

// ErrNotPrefixed marks a text message without the configured prefix.
var ErrNotPrefixed = &ParseError{Reason: "message is not prefixed"}

// ErrEmptyCommand marks a prefixed message with no command token.
var ErrEmptyCommand = &ParseError{Reason: "no command after prefix"}

// Gate names in chain order.
const (
	GateGuildOnly      = "guild_only"
	GateNSFW           = "nsfw"
	GateAdmin          = "admin"
	GateBotPermission  = "bot_permission"
	GateUserPermission = "user_permission"
	GateCooldown       = "cooldown"
	GateRateLimit      = "rate_limit"
)

// Denial is an admission failure: expected, terminal for the invocation,
// and free of any user-facing formatting. RetryAfter is set for the
// cooldown and rate-limit gates only.
type Denial struct {
	Gate       string
	Detail     string
	RetryAfter time.Duration
}

// ExecutionError wraps a handler failure, including recovered panics.
type ExecutionError struct {
	Command string
	Cause   error
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("command %s failed: %v", e.Command, e.Cause)
}

func (e *ExecutionError) Unwrap() error { return e.Cause }

// TimeoutError means the handler outlived its budget. The executor stops
// waiting but cannot terminate the handler; abandonment is best-effort.
type TimeoutError struct {
	Command string
	Budget  time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("command %s exceeded its %s budget", e.Command, e.Budget)
}
