package protocol

import (
	"sync/atomic"

	"github.com/wagiedev/omegga-sdk-go/internal/rpc"
)

// Generator hands out wire ids for outgoing requests. It is safe for
// concurrent use and never produces the same id twice within a process.
//
// Ids advance one at a time starting from -1: the first call to Next
// returns -1, then 0, 1, 2, and so on. Starting below zero keeps early
// plugin ids visually distinct from the small non-negative ids hosts tend
// to use for their own requests, and existing hosts expect the sequence,
// so changing it would break request correlation on their side.
type Generator struct {
	counter atomic.Int64
}

// NewGenerator creates a generator positioned before the first id.
func NewGenerator() *Generator {
	g := &Generator{}
	g.counter.Store(-2)

	return g
}

// Next returns a fresh integer id.
func (g *Generator) Next() rpc.ID {
	return rpc.IntID(g.counter.Add(1))
}
