// Package shard tracks this process's shard identity and runs cross-shard
// queries over NATS request/reply. Siblings share no memory; the only
// inter-process traffic is a closed set of named operations with typed JSON
// payloads, never code.
package shard

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/nats-io/nats.go"

	"komandir/internal/observer"
)

// State is one step of the shard lifecycle.
type State int

const (
	Spawning State = iota
	Ready
	Disconnected
	Reconnecting
	Destroyed
)

func (s State) String() string {
	switch s {
	case Spawning:
		return "spawning"
	case Ready:
		return "ready"
	case Disconnected:
		return "disconnected"
	case Reconnecting:
		return "reconnecting"
	}
	return "destroyed"
}

// transitions is the legal lifecycle graph. Destroyed is reachable from
// anywhere via Shutdown.
var transitions = map[State][]State{
	Spawning:     {Ready},
	Ready:        {Disconnected},
	Disconnected: {Reconnecting},
	Reconnecting: {Ready},
}

// ErrShardUnavailable means a sibling did not answer within the timeout.
// Aggregates omit such shards instead of failing outright.
var ErrShardUnavailable = errors.New("shard unavailable")

// Operation is one named remote query. Args arrive as raw JSON; the return
// value is marshalled into the response envelope.
type Operation func(ctx context.Context, args json.RawMessage) (any, error)

// Request is the wire envelope for an eval.
type Request struct {
	Op   string          `json:"op"`
	Args json.RawMessage `json:"args,omitempty"`
}

// Response is the wire envelope for an eval result.
type Response struct {
	ShardID int             `json:"shard_id"`
	Value   json.RawMessage `json:"value,omitempty"`
	Error   string          `json:"error,omitempty"`
}

// Result is one shard's contribution to a broadcast eval.
type Result struct {
	ShardID int
	Value   json.RawMessage
}

// Descriptor identifies this process within the fleet. ID is stable for the
// process lifetime.
type Descriptor struct {
	ID    int
	Total int
}

// Coordinator owns the local descriptor and the eval plumbing. Lifecycle
// transitions are surfaced to the observability sink; reconnection itself
// belongs to the gateway host.
type Coordinator struct {
	desc    Descriptor
	nc      *nats.Conn
	sink    observer.Sink
	timeout time.Duration

	mu    sync.Mutex
	state State
	ops   map[string]Operation
	sub   *nats.Subscription
}

// NewCoordinator builds a coordinator in the Spawning state. timeout bounds
// every per-shard remote call.
func NewCoordinator(desc Descriptor, nc *nats.Conn, sink observer.Sink, timeout time.Duration) *Coordinator {
	if sink == nil {
		sink = observer.Nop{}
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Coordinator{
		desc:    desc,
		nc:      nc,
		sink:    sink,
		timeout: timeout,
		state:   Spawning,
		ops:     make(map[string]Operation),
	}
}

// Descriptor returns the local shard identity.
func (c *Coordinator) Descriptor() Descriptor { return c.desc }

// State returns the current lifecycle state.
func (c *Coordinator) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Transition moves the lifecycle to a new state, surfacing the change to
// the sink. Invalid transitions are rejected.
func (c *Coordinator) Transition(to State) error {
	c.mu.Lock()
	from := c.state
	if from == to {
		c.mu.Unlock()
		return nil
	}
	if to != Destroyed && !allowed(from, to) {
		c.mu.Unlock()
		return fmt.Errorf("invalid shard transition %s -> %s", from, to)
	}
	c.state = to
	c.mu.Unlock()

	c.sink.LogShardEvent(c.desc.ID, from.String(), to.String())
	return nil
}

func allowed(from, to State) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// RegisterOp adds a named operation. The op set is closed at startup;
// nothing registers after Serve.
func (c *Coordinator) RegisterOp(name string, op Operation) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ops[name] = op
}

// Serve subscribes this shard's eval subject and answers sibling requests
// until Shutdown.
func (c *Coordinator) Serve() error {
	sub, err := c.nc.Subscribe(evalSubject(c.desc.ID), c.handle)
	if err != nil {
		return fmt.Errorf("failed to subscribe shard eval subject: %w", err)
	}
	c.mu.Lock()
	c.sub = sub
	c.mu.Unlock()
	return nil
}

func (c *Coordinator) handle(msg *nats.Msg) {
	var req Request
	resp := Response{ShardID: c.desc.ID}

	if err := json.Unmarshal(msg.Data, &req); err != nil {
		resp.Error = "malformed request"
		c.respond(msg, resp)
		return
	}

	c.mu.Lock()
	op, ok := c.ops[req.Op]
	c.mu.Unlock()
	if !ok {
		resp.Error = fmt.Sprintf("unknown operation: %s", req.Op)
		c.respond(msg, resp)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()

	value, err := op(ctx, req.Args)
	if err != nil {
		resp.Error = err.Error()
		c.respond(msg, resp)
		return
	}
	raw, err := json.Marshal(value)
	if err != nil {
		resp.Error = fmt.Sprintf("failed to encode result: %v", err)
		c.respond(msg, resp)
		return
	}
	resp.Value = raw
	c.respond(msg, resp)
}

func (c *Coordinator) respond(msg *nats.Msg, resp Response) {
	data, err := json.Marshal(resp)
	if err != nil {
		return
	}
	_ = msg.Respond(data)
}

// EvalOnOne runs a named operation on one shard (possibly this one, through
// the same channel) and returns its raw result. A shard that does not
// answer in time yields ErrShardUnavailable.
func (c *Coordinator) EvalOnOne(ctx context.Context, shardID int, op string, args any) (json.RawMessage, error) {
	if shardID < 0 || shardID >= c.desc.Total {
		return nil, fmt.Errorf("shard id out of range: %d", shardID)
	}

	data, err := encodeRequest(op, args)
	if err != nil {
		return nil, err
	}

	reqCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	msg, err := c.nc.RequestWithContext(reqCtx, evalSubject(shardID), data)
	if err != nil {
		if errors.Is(err, nats.ErrNoResponders) || errors.Is(err, nats.ErrTimeout) || errors.Is(err, context.DeadlineExceeded) {
			return nil, ErrShardUnavailable
		}
		return nil, err
	}

	var resp Response
	if err := json.Unmarshal(msg.Data, &resp); err != nil {
		return nil, fmt.Errorf("malformed shard response: %w", err)
	}
	if resp.Error != "" {
		return nil, fmt.Errorf("shard %d: %s", resp.ShardID, resp.Error)
	}
	return resp.Value, nil
}

// EvalOnAll runs a named operation on every shard concurrently and returns
// the results ordered by ascending shard id. Shards that do not answer
// within the per-shard timeout are omitted from the result set.
func (c *Coordinator) EvalOnAll(ctx context.Context, op string, args any) []Result {
	results := make([]Result, 0, c.desc.Total)
	var mu sync.Mutex
	var wg sync.WaitGroup

	for id := 0; id < c.desc.Total; id++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			value, err := c.EvalOnOne(ctx, id, op, args)
			if err != nil {
				return
			}
			mu.Lock()
			results = append(results, Result{ShardID: id, Value: value})
			mu.Unlock()
		}(id)
	}
	wg.Wait()

	sort.Slice(results, func(i, j int) bool { return results[i].ShardID < results[j].ShardID })
	return results
}

// Shutdown drains the subscription and moves the lifecycle to Destroyed.
func (c *Coordinator) Shutdown() {
	c.mu.Lock()
	sub := c.sub
	c.sub = nil
	c.mu.Unlock()
	if sub != nil {
		_ = sub.Drain()
	}
	_ = c.Transition(Destroyed)
}

func encodeRequest(op string, args any) ([]byte, error) {
	req := Request{Op: op}
	if args != nil {
		raw, err := json.Marshal(args)
		if err != nil {
			return nil, fmt.Errorf("failed to encode args: %w", err)
		}
		req.Args = raw
	}
	return json.Marshal(req)
}

func evalSubject(shardID int) string {
	return fmt.Sprintf("komandir.shard.%d.eval", shardID)
}
