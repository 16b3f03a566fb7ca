package dev

import "sync"

type Power struct {
	once sync.Once
	off  chan struct{}
}

func NewPower() *Power {
	return &Power{off: make(chan struct{})}
}

func (p *Power) Off() {
	p.once.Do(func() { close(p.off) })
}

// Done is closed once the machine has been powered off.
func (p *Power) Done() <-chan struct{} {
	return p.off
}

func (p *Power) IsOff() bool {
	select {
	case <-p.off:
		return true
	default:
		return false
	}
}
