package grid

// Pair is a double buffer over two storage arenas of the same shape.
// Exactly one side is the read side at any time; Swap exchanges the roles
// by flipping a single index bit and never copies data.
type Pair[T any] struct {
	bufs   [2]T
	active uint8
}

// NewPair wraps two arenas. a starts as the read side.
func NewPair[T any](a, b T) *Pair[T] {
	return &Pair[T]{bufs: [2]T{a, b}}
}

// Read returns the side that currently holds the state.
func (p *Pair[T]) Read() T { return p.bufs[p.active] }

// Write returns the side the next pass writes into.
func (p *Pair[T]) Write() T { return p.bufs[p.active^1] }

// Swap makes the write side the new read side.
func (p *Pair[T]) Swap() { p.active ^= 1 }

// Both returns the two arenas in storage order, independent of the active
// bit. Used when releasing or clearing the pair.
func (p *Pair[T]) Both() [2]T { return p.bufs }
