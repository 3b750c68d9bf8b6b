package protocol

import (
	"fmt"
	"sync"

	"github.com/wagiedev/omegga-sdk-go/internal/errors"
	"github.com/wagiedev/omegga-sdk-go/internal/rpc"
)

// Table correlates in-flight request ids with the channel that will carry
// their response. Every operation removes or inserts an entry atomically,
// so a response is delivered to at most one waiter and an id can never be
// claimed twice.
type Table struct {
	mu      sync.Mutex
	pending map[rpc.ID]chan *rpc.Response
}

// NewTable creates an empty correlation table.
func NewTable() *Table {
	return &Table{
		pending: make(map[rpc.ID]chan *rpc.Response, 10),
	}
}

// Register inserts a delivery channel for id and returns its receive side.
//
// Registering an id that is already live is a logic error in the caller,
// since the generator never repeats ids; it is rejected with
// ErrDuplicateRequestID rather than silently clobbering the live entry.
func (t *Table) Register(id rpc.ID) (<-chan *rpc.Response, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, exists := t.pending[id]; exists {
		return nil, fmt.Errorf("%w: %s", errors.ErrDuplicateRequestID, id)
	}

	ch := make(chan *rpc.Response, 1)
	t.pending[id] = ch

	return ch, nil
}

// Resolve removes the entry for id and delivers resp through it.
//
// It reports whether an entry was live. Late responses, duplicate
// responses, and responses to ids never issued all return false and have
// no other effect.
func (t *Table) Resolve(id rpc.ID, resp *rpc.Response) bool {
	t.mu.Lock()

	ch, exists := t.pending[id]
	if exists {
		delete(t.pending, id)
	}

	t.mu.Unlock()

	if !exists {
		return false
	}

	// The entry is claimed; the buffered channel makes this send safe even
	// if the waiter already gave up.
	ch <- resp

	return true
}

// Cancel removes the entry for id without delivering a response and closes
// its channel so a parked waiter observes the abandonment. It reports
// whether an entry was live.
func (t *Table) Cancel(id rpc.ID) bool {
	t.mu.Lock()

	ch, exists := t.pending[id]
	if exists {
		delete(t.pending, id)
	}

	t.mu.Unlock()

	if !exists {
		return false
	}

	close(ch)

	return true
}

// CancelAll drops every live entry. This is called during shutdown so
// abandoned waiters fail fast instead of parking forever.
func (t *Table) CancelAll() {
	t.mu.Lock()

	pending := t.pending
	t.pending = make(map[rpc.ID]chan *rpc.Response)

	t.mu.Unlock()

	for _, ch := range pending {
		close(ch)
	}
}

// Len reports the number of live entries.
func (t *Table) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()

	return len(t.pending)
}
