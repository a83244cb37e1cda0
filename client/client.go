// Package client wires the aggregate reader and the insert strategy behind
// one connection lifecycle, with statement hooks, logging and timeouts.
package client

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/dan-strohschein/syndrdb-aggregates/aggregate"
	"github.com/dan-strohschein/syndrdb-aggregates/dialect"
	"github.com/dan-strohschein/syndrdb-aggregates/insert"
	"github.com/dan-strohschein/syndrdb-aggregates/schema"
	"github.com/dan-strohschein/syndrdb-aggregates/transport"
)

// Client reads aggregates and runs inserts through one transport.
type Client struct {
	opts      ClientOptions
	stateMgr  *StateManager
	logger    Logger
	debugMode atomic.Bool
	hooks     *hookChain

	mu        sync.RWMutex
	dialect   dialect.Dialect
	transport transport.Transport
	reader    *aggregate.Reader
	inserts   *insert.Strategy
}

// NewClient creates a new client with the given options.
// If opts is nil, default options are used.
func NewClient(opts *ClientOptions) *Client {
	if opts == nil {
		defaultOpts := DefaultOptions()
		opts = &defaultOpts
	}

	logger := opts.Logger
	if logger == nil {
		logger = NewLogger(opts.LogLevel, nil)
	}

	c := &Client{
		opts:     *opts,
		stateMgr: NewStateManager(),
		logger:   logger,
		hooks:    &hookChain{logger: logger},
	}
	c.debugMode.Store(opts.DebugMode)

	if opts.OnConnected != nil || opts.OnDisconnected != nil {
		c.stateMgr.OnStateChange(func(transition StateTransition) {
			switch {
			case transition.To == CONNECTED && opts.OnConnected != nil:
				opts.OnConnected(transition)
			case transition.To == DISCONNECTED && opts.OnDisconnected != nil:
				opts.OnDisconnected(transition)
			}
		})
	}

	return c
}

// Connect creates the transport with factory and prepares the reader and
// insert strategy on it.
func (c *Client) Connect(ctx context.Context, factory transport.Factory) error {
	c.logger.Info("connecting", String("dialect", c.opts.Dialect), Bool("singleQuery", c.opts.SingleQuery))

	if err := c.stateMgr.TransitionTo(CONNECTING, nil, map[string]any{"reason": "user_initiated"}); err != nil {
		return err
	}

	d, err := dialect.ByName(c.opts.Dialect)
	if err != nil {
		err = errConnect("UNKNOWN_DIALECT", "unknown dialect", err, map[string]any{"dialect": c.opts.Dialect})
		c.stateMgr.TransitionTo(DISCONNECTED, err, map[string]any{"reason": "error"})
		return err
	}

	tr, err := factory(ctx)
	if err != nil {
		err = errConnect("CONNECT_FAILED", "failed to create transport", err, nil)
		c.stateMgr.TransitionTo(DISCONNECTED, err, map[string]any{"reason": "error"})
		c.logger.Error("connect failed", Error("error", err))
		return err
	}

	hooked := &hookedTransport{
		next:   tr,
		hooks:  c.hooks,
		logger: c.logger,
		debug:  c.IsDebugMode,
	}

	readerOpts := []aggregate.Option{
		aggregate.WithDialect(d),
		aggregate.WithSingleQuery(c.opts.SingleQuery),
	}
	if c.opts.Converter != nil {
		readerOpts = append(readerOpts, aggregate.WithConverter(c.opts.Converter))
	}
	if c.opts.Resolvers != nil {
		readerOpts = append(readerOpts, aggregate.WithResolverFactory(c.opts.Resolvers))
	}

	c.mu.Lock()
	c.dialect = d
	c.transport = hooked
	c.reader = aggregate.NewReader(hooked, readerOpts...)
	c.inserts = insert.NewStrategy(hooked)
	c.mu.Unlock()

	c.stateMgr.TransitionTo(CONNECTED, nil, map[string]any{"dialect": d.Name()})
	c.logger.Info("connected", String("dialect", d.Name()))
	return nil
}

// Disconnect closes the transport.
func (c *Client) Disconnect(ctx context.Context) error {
	if err := c.stateMgr.TransitionTo(DISCONNECTING, nil, map[string]any{"reason": "user_initiated"}); err != nil {
		return err
	}

	c.mu.Lock()
	tr := c.transport
	c.transport, c.reader, c.inserts = nil, nil, nil
	c.mu.Unlock()

	var closeErr error
	if err := tr.Close(); err != nil {
		closeErr = errConnect("CLOSE_FAILED", "failed to close transport", err, nil)
		c.logger.Warn("error closing transport", Error("error", err))
	}

	c.stateMgr.TransitionTo(DISCONNECTED, closeErr, map[string]any{"reason": "user_initiated"})
	c.logger.Info("disconnected")
	return closeErr
}

// GetState returns the current connection state.
func (c *Client) GetState() ConnectionState {
	return c.stateMgr.GetState()
}

// OnStateChange registers a handler for state transitions.
func (c *Client) OnStateChange(handler StateChangeHandler) {
	c.stateMgr.OnStateChange(handler)
}

// GetVersion returns the client version.
func (c *Client) GetVersion() string {
	return Version
}

// EnableDebugMode turns on statement logging and verbose errors.
func (c *Client) EnableDebugMode() {
	c.debugMode.Store(true)
	c.logger.Info("debug mode enabled")
}

// DisableDebugMode turns debug mode off.
func (c *Client) DisableDebugMode() {
	c.debugMode.Store(false)
	c.logger.Info("debug mode disabled")
}

// IsDebugMode reports whether debug mode is on.
func (c *Client) IsDebugMode() bool {
	return c.debugMode.Load()
}

// RegisterHook adds a hook to the statement hook chain. Hooks run in
// registration order; a hook with the same name is replaced in place.
func (c *Client) RegisterHook(hook Hook) {
	c.hooks.register(hook)
}

// UnregisterHook removes a hook by name and reports whether it existed.
func (c *Client) UnregisterHook(name string) bool {
	return c.hooks.unregister(name)
}

// GetHooks returns the names of all registered hooks in execution order.
func (c *Client) GetHooks() []string {
	return c.hooks.names()
}

// Dialect returns the dialect of the connected transport.
func (c *Client) Dialect() dialect.Dialect {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.dialect
}

// GetMetrics returns the transport's statement counters.
func (c *Client) GetMetrics() transport.TransportMetrics {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.transport == nil {
		return transport.TransportMetrics{}
	}
	return c.transport.GetMetrics()
}

// call runs fn with a fresh trace id and the client timeout.
func (c *Client) call(ctx context.Context, operation string, fn func(ctx context.Context, r *aggregate.Reader, s *insert.Strategy) error) error {
	if state := c.stateMgr.GetState(); state != CONNECTED {
		return ErrInvalidState(operation, CONNECTED, state)
	}

	c.mu.RLock()
	reader, inserts := c.reader, c.inserts
	c.mu.RUnlock()
	if reader == nil {
		return ErrInvalidState(operation, CONNECTED, c.stateMgr.GetState())
	}

	traceID := uuid.New().String()
	ctx = withCall(ctx, callInfo{operation: operation, traceID: traceID})
	if timeout := c.opts.timeout(); timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	start := time.Now()
	err := fn(ctx, reader, inserts)
	if err != nil {
		c.logger.Error("call failed",
			String("operation", operation),
			String("trace_id", traceID),
			String("error", FormatError(err, c.IsDebugMode())),
			Duration("duration", time.Since(start)))
		return err
	}

	c.logger.Debug("call completed",
		String("operation", operation),
		String("trace_id", traceID),
		Duration("duration", time.Since(start)))
	return nil
}

// FindByID loads the aggregate of shape with root id.
func (c *Client) FindByID(ctx context.Context, id any, shape *schema.Entity) (result any, found bool, err error) {
	err = c.call(ctx, "FindByID", func(ctx context.Context, r *aggregate.Reader, _ *insert.Strategy) error {
		result, found, err = r.FindByID(ctx, id, shape)
		return err
	})
	return result, found, err
}

// ExistsByID reports whether an aggregate with root id exists.
func (c *Client) ExistsByID(ctx context.Context, id any, shape *schema.Entity) (found bool, err error) {
	err = c.call(ctx, "ExistsByID", func(ctx context.Context, r *aggregate.Reader, _ *insert.Strategy) error {
		found, err = r.ExistsByID(ctx, id, shape)
		return err
	})
	return found, err
}

// FindAll loads every aggregate of shape.
func (c *Client) FindAll(ctx context.Context, shape *schema.Entity) (results []any, err error) {
	err = c.call(ctx, "FindAll", func(ctx context.Context, r *aggregate.Reader, _ *insert.Strategy) error {
		results, err = r.FindAll(ctx, shape)
		return err
	})
	return results, err
}

// FindAllByID loads the aggregates with the given root ids.
func (c *Client) FindAllByID(ctx context.Context, ids []any, shape *schema.Entity) (results []any, err error) {
	err = c.call(ctx, "FindAllByID", func(ctx context.Context, r *aggregate.Reader, _ *insert.Strategy) error {
		results, err = r.FindAllByID(ctx, ids, shape)
		return err
	})
	return results, err
}

// FindOne loads the single aggregate matching query.
func (c *Client) FindOne(ctx context.Context, query aggregate.Query, shape *schema.Entity) (result any, found bool, err error) {
	err = c.call(ctx, "FindOne", func(ctx context.Context, r *aggregate.Reader, _ *insert.Strategy) error {
		result, found, err = r.FindOne(ctx, query, shape)
		return err
	})
	return result, found, err
}

// FindAllByQuery loads every aggregate matching query.
func (c *Client) FindAllByQuery(ctx context.Context, query aggregate.Query, shape *schema.Entity) (results []any, err error) {
	err = c.call(ctx, "FindAllByQuery", func(ctx context.Context, r *aggregate.Reader, _ *insert.Strategy) error {
		results, err = r.FindAllByQuery(ctx, query, shape)
		return err
	})
	return results, err
}

// Execute runs one statement and returns the generated key of the first
// key column, if any.
func (c *Client) Execute(ctx context.Context, sql string, params transport.Params, keyColumns ...string) (key any, ok bool, err error) {
	err = c.call(ctx, "Execute", func(ctx context.Context, _ *aggregate.Reader, s *insert.Strategy) error {
		key, ok, err = s.Execute(ctx, sql, params, keyColumns...)
		return err
	})
	return key, ok, err
}

// BatchExecute runs sql once per parameter set. See insert.Strategy.
func (c *Client) BatchExecute(ctx context.Context, sql string, batch []transport.Params, holder *transport.KeyHolder, keyColumns ...string) (outcomes []transport.Outcome, err error) {
	err = c.call(ctx, "BatchExecute", func(ctx context.Context, _ *aggregate.Reader, s *insert.Strategy) error {
		outcomes, err = s.BatchExecute(ctx, sql, batch, holder, keyColumns...)
		return err
	})
	return outcomes, err
}

// InsertAll runs a batch insert and returns the generated keys in order.
func (c *Client) InsertAll(ctx context.Context, sql string, batch []transport.Params, keyColumns ...string) (keys []any, err error) {
	err = c.call(ctx, "InsertAll", func(ctx context.Context, _ *aggregate.Reader, s *insert.Strategy) error {
		keys, err = s.InsertAll(ctx, sql, batch, keyColumns...)
		return err
	})
	return keys, err
}
