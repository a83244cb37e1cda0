package client

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/dan-strohschein/syndrdb-aggregates/transport"
)

// Statement types reported in HookContext.StatementType.
const (
	StatementQuery    = "query"
	StatementMutation = "mutation"
	StatementSchema   = "schema"
	StatementUnknown  = "unknown"
)

// HookContext describes one statement sent to the database. A single client
// call may send several statements, for example one per select-fetched
// relation; they share the call's TraceID.
type HookContext struct {
	// Statement is the SQL text with named parameters. Before hooks may
	// rewrite it.
	Statement string

	// StatementType is query, mutation, schema or unknown.
	StatementType string

	// Operation is the client call that issued the statement, e.g. FindByID.
	Operation string

	// Params holds the parameter sets; one for Query and Exec, one per row
	// for batches.
	Params []transport.Params

	StartTime time.Time

	// Metadata allows hooks to pass data from Before to After.
	Metadata map[string]any

	TraceID string

	// Result is set for After hooks: transport.Result for Exec and
	// []transport.Outcome for batches. Queries leave it nil.
	Result any

	// Error is the statement error, available in After hooks.
	Error error

	// Duration is the execution time, available in After hooks.
	Duration time.Duration
}

// Hook inspects statements before and after they run.
type Hook interface {
	// Name returns the unique name of this hook.
	Name() string

	// Before is called before the statement runs. Returning an error aborts
	// the statement.
	Before(ctx context.Context, hookCtx *HookContext) error

	// After is called after the statement, also when it failed. Returning
	// an error replaces the statement's error.
	After(ctx context.Context, hookCtx *HookContext) error
}

// hookChain holds hooks in registration order.
type hookChain struct {
	mu     sync.RWMutex
	hooks  []Hook
	logger Logger
}

// register adds hook, or replaces the hook of the same name in place.
func (h *hookChain) register(hook Hook) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for i, existing := range h.hooks {
		if existing.Name() == hook.Name() {
			h.hooks[i] = hook
			h.logger.Info("hook replaced", String("hook", hook.Name()))
			return
		}
	}

	h.hooks = append(h.hooks, hook)
	h.logger.Info("hook registered", String("hook", hook.Name()), Int("order", len(h.hooks)-1))
}

func (h *hookChain) unregister(name string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	for i, existing := range h.hooks {
		if existing.Name() == name {
			h.hooks = append(h.hooks[:i], h.hooks[i+1:]...)
			h.logger.Info("hook unregistered", String("hook", name))
			return true
		}
	}
	return false
}

func (h *hookChain) names() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()

	names := make([]string, len(h.hooks))
	for i, hook := range h.hooks {
		names[i] = hook.Name()
	}
	return names
}

func (h *hookChain) snapshot() []Hook {
	h.mu.RLock()
	defer h.mu.RUnlock()

	hooks := make([]Hook, len(h.hooks))
	copy(hooks, h.hooks)
	return hooks
}

// before runs Before hooks in order and stops at the first error.
func (h *hookChain) before(ctx context.Context, hookCtx *HookContext) error {
	for _, hook := range h.snapshot() {
		if err := hook.Before(ctx, hookCtx); err != nil {
			h.logger.Debug("hook aborted statement",
				String("hook", hook.Name()),
				String("statement", hookCtx.Statement),
				Error("error", err))
			return err
		}
	}
	return nil
}

// after runs every After hook and returns the last error.
func (h *hookChain) after(ctx context.Context, hookCtx *HookContext) error {
	var lastErr error
	for _, hook := range h.snapshot() {
		if err := hook.After(ctx, hookCtx); err != nil {
			h.logger.Debug("hook returned error in After",
				String("hook", hook.Name()),
				String("statement", hookCtx.Statement),
				Error("error", err))
			lastErr = err
		}
	}
	return lastErr
}

// classifyStatement derives the statement type from the leading keyword.
func classifyStatement(statement string) string {
	fields := strings.Fields(statement)
	if len(fields) == 0 {
		return StatementUnknown
	}

	switch strings.ToUpper(fields[0]) {
	case "SELECT", "WITH", "SHOW":
		return StatementQuery
	case "INSERT", "UPDATE", "DELETE", "MERGE":
		return StatementMutation
	case "CREATE", "DROP", "ALTER":
		return StatementSchema
	default:
		return StatementUnknown
	}
}
