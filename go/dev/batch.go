package dev

import (
	"io"
	"sync"
	"time"

	"github.com/pkg/errors"
)

// BatchWriter moves writes onto a background goroutine and hands them to the
// underlying writer in batches. Each Write reaches w whole and in order.
type BatchWriter struct {
	w        io.WriteCloser
	interval time.Duration

	// mu orders Write against Close: once closed is set nothing more is
	// sent on write, so the final drain sees every accepted Write.
	mu     sync.RWMutex
	closed bool

	write chan []byte
	close chan chan error
	err   error

	buffer [][]byte
	count  int
}

func NewBatchWriter(w io.WriteCloser, interval time.Duration) *BatchWriter {
	b := &BatchWriter{
		w:        w,
		interval: interval,
		write:    make(chan []byte, 1000),
		close:    make(chan chan error),
	}
	go b.run()
	return b
}

func (b *BatchWriter) flush() {
	for _, p := range b.buffer {
		if b.err != nil {
			break
		}
		_, b.err = b.w.Write(p)
	}
	b.buffer = b.buffer[:0]
	b.count = 0
}

func (b *BatchWriter) run() {
	t := time.NewTimer(b.interval)
	t.Stop()
	timer := false
	for {
		select {
		case <-t.C:
			b.flush()
			timer = false
		case p := <-b.write:
			b.buffer = append(b.buffer, p)
			b.count += len(p)
			if len(b.buffer) > 1000 || b.count > 64000 {
				b.flush()
			}
		case reply := <-b.close:
			// drain anything queued before Close was called
			for {
				select {
				case p := <-b.write:
					b.buffer = append(b.buffer, p)
					continue
				default:
				}
				break
			}
			b.flush()
			t.Stop()
			err := b.w.Close()
			if b.err != nil {
				err = b.err
			}
			reply <- err
			return
		}
		if len(b.buffer) > 0 && !timer {
			timer = true
			t.Reset(b.interval)
		}
	}
}

func (b *BatchWriter) Write(p []byte) (int, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return 0, errors.New("batch writer is closed")
	}
	tmp := make([]byte, len(p))
	copy(tmp, p)
	b.write <- tmp
	return len(tmp), nil
}

// Close flushes pending writes and closes the underlying writer.
func (b *BatchWriter) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return errors.New("batch writer was already closed")
	}
	b.closed = true
	b.mu.Unlock()

	reply := make(chan error, 1)
	b.close <- reply
	return <-reply
}
