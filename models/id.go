package models

import "sync"

// SequentialIDGenerator hands out increasing ids, starting at 1. Released ids
// are handed out again before new ones, most recently released first.
type SequentialIDGenerator struct {
	mutex    sync.Mutex
	last     uint32
	released []uint32
}

// New returns an unused id.
func (g *SequentialIDGenerator) New() uint32 {
	g.mutex.Lock()
	defer g.mutex.Unlock()

	if n := len(g.released); n != 0 {
		id := g.released[n-1]
		g.released = g.released[:n-1]
		return id
	}

	g.last++
	return g.last
}

// Reuse releases an id previously returned by New.
func (g *SequentialIDGenerator) Reuse(id uint32) {
	g.mutex.Lock()
	defer g.mutex.Unlock()

	g.released = append(g.released, id)
}
