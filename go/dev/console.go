// Package dev holds the simple devices a System runs against: a console and
// a power switch.
package dev

import (
	"io"
	"sync"

	"github.com/pkg/errors"
)

// Console writes each buffer in one locked Write, so output from different
// processes never interleaves inside a single request. Input is fed in by the
// host and handed out a byte at a time.
type Console struct {
	mu      sync.Mutex
	w       io.Writer
	written uint64
	err     error

	inMu   sync.Mutex
	cond   *sync.Cond
	in     []byte
	closed bool
}

func NewConsole(w io.Writer) *Console {
	c := &Console{w: w}
	c.cond = sync.NewCond(&c.inMu)
	return c
}

// Putbuf writes p. After the first failed write the console drops all
// further output; Err reports that failure.
func (c *Console) Putbuf(p []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return
	}
	n, err := c.w.Write(p)
	c.written += uint64(n)
	if err != nil {
		c.err = errors.Wrap(err, "console write failed")
	}
}

func (c *Console) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

// Written is the number of bytes the console has output.
func (c *Console) Written() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.written
}

// Feed queues input for Getc.
func (c *Console) Feed(p []byte) {
	c.inMu.Lock()
	c.in = append(c.in, p...)
	c.inMu.Unlock()
	c.cond.Broadcast()
}

// Getc blocks until a byte of input is available. Once the console is
// closed and its input used up, Getc returns 0 without blocking.
func (c *Console) Getc() byte {
	c.inMu.Lock()
	defer c.inMu.Unlock()
	for len(c.in) == 0 && !c.closed {
		c.cond.Wait()
	}
	if len(c.in) == 0 {
		return 0
	}
	b := c.in[0]
	c.in = c.in[1:]
	return b
}

// Close releases every reader blocked in Getc. The machine closes its
// console when it powers off.
func (c *Console) Close() {
	c.inMu.Lock()
	c.closed = true
	c.inMu.Unlock()
	c.cond.Broadcast()
}
