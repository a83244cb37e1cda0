package client

import (
	"fmt"
	"sync"
	"time"
)

// ConnectionState is the lifecycle state of a client's transport.
type ConnectionState int

const (
	DISCONNECTED ConnectionState = iota
	CONNECTING
	CONNECTED
	DISCONNECTING
)

var stateNames = [...]string{"DISCONNECTED", "CONNECTING", "CONNECTED", "DISCONNECTING"}

func (cs ConnectionState) String() string {
	if cs < 0 || int(cs) >= len(stateNames) {
		return "UNKNOWN"
	}
	return stateNames[cs]
}

// next reports whether to may follow cs. A failed connect falls back to
// DISCONNECTED; a connected client must disconnect through DISCONNECTING.
func (cs ConnectionState) next(to ConnectionState) bool {
	switch cs {
	case DISCONNECTED:
		return to == CONNECTING
	case CONNECTING:
		return to == CONNECTED || to == DISCONNECTED
	case CONNECTED:
		return to == DISCONNECTING
	case DISCONNECTING:
		return to == DISCONNECTED
	}
	return false
}

// StateTransition describes one state change. The client sets Metadata
// "reason" ("user_initiated" or "error") and, once connected, "dialect".
type StateTransition struct {
	From      ConnectionState
	To        ConnectionState
	Timestamp time.Time
	Error     error

	// Duration is how long From was held.
	Duration time.Duration
	Metadata map[string]any
}

// StateChangeHandler is called after every state change.
type StateChangeHandler func(transition StateTransition)

// StateManager tracks the connection state of one client.
type StateManager struct {
	mu       sync.RWMutex
	state    ConnectionState
	since    time.Time
	handlers []StateChangeHandler
}

// NewStateManager returns a manager in DISCONNECTED state.
func NewStateManager() *StateManager {
	return &StateManager{state: DISCONNECTED, since: time.Now()}
}

// TransitionTo moves to state, or fails without change when state may not
// follow the current one. Handlers run outside the lock.
func (sm *StateManager) TransitionTo(state ConnectionState, cause error, metadata map[string]any) error {
	sm.mu.Lock()
	from := sm.state
	if !from.next(state) {
		sm.mu.Unlock()
		return fmt.Errorf("illegal state transition: %s to %s", from, state)
	}

	now := time.Now()
	tr := StateTransition{
		From:      from,
		To:        state,
		Timestamp: now,
		Error:     cause,
		Duration:  now.Sub(sm.since),
		Metadata:  metadata,
	}
	sm.state, sm.since = state, now
	handlers := append([]StateChangeHandler(nil), sm.handlers...)
	sm.mu.Unlock()

	for _, h := range handlers {
		h(tr)
	}
	return nil
}

// OnStateChange registers handler.
func (sm *StateManager) OnStateChange(handler StateChangeHandler) {
	sm.mu.Lock()
	sm.handlers = append(sm.handlers, handler)
	sm.mu.Unlock()
}

// GetState returns the current state.
func (sm *StateManager) GetState() ConnectionState {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return sm.state
}
