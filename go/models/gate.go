package models

import (
	"sync"
)

// Gate serializes every call into the file-system layer across all processes.
// It is held for the whole of each call and never released part way through.
type Gate struct {
	sync.Mutex
}

func (g *Gate) Run(fn func()) {
	g.Lock()
	defer g.Unlock()
	fn()
}
