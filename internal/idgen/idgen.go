// Package idgen hands out process-lifetime-unique order identifiers.
//
// Order identity only needs to be unique for the life of the process; an
// atomic counter is sufficient and avoids pulling in a clock- or
// node-id-based scheme a single-process engine has no use for.
package idgen

import "sync/atomic"

// Generator produces a monotonically increasing sequence of positive
// integers, starting at 1.
type Generator struct {
	counter uint64
}

// New returns a ready-to-use Generator.
func New() *Generator {
	return &Generator{}
}

// Next returns the next unique id. Safe for concurrent use.
func (g *Generator) Next() uint64 {
	return atomic.AddUint64(&g.counter, 1)
}
