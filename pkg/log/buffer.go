package log

import (
	"fmt"
	"io"
	"os"
	"sync"
	"sync/atomic"
)

// Buffer delivers entries to transporters on a single worker goroutine.
// When the queue is full the oldest entry is dropped.
type Buffer struct {
	queue        chan Entry
	transporters []Transporter
	fallback     io.Writer

	dropped atomic.Int64
	closed  atomic.Bool
	done    chan struct{}
	wg      sync.WaitGroup
}

// NewBuffer starts a buffer holding up to capacity pending entries.
func NewBuffer(capacity int, transporters ...Transporter) *Buffer {
	if capacity < 1 {
		capacity = 1
	}
	b := &Buffer{
		queue:        make(chan Entry, capacity),
		transporters: transporters,
		fallback:     os.Stderr,
		done:         make(chan struct{}),
	}

	b.wg.Add(1)
	go b.run()

	return b
}

// Send queues entry without blocking. Entries sent after Close are ignored.
func (b *Buffer) Send(entry Entry) {
	if b.closed.Load() {
		return
	}

	select {
	case b.queue <- entry:
		return
	default:
	}

	// Full: evict the oldest, then retry once.
	select {
	case <-b.queue:
		b.dropped.Add(1)
	default:
	}
	select {
	case b.queue <- entry:
	default:
		b.dropped.Add(1)
	}
}

// DroppedCount returns the number of entries lost to overflow.
func (b *Buffer) DroppedCount() int64 {
	return b.dropped.Load()
}

// Close drains the queue and closes every transporter. Idempotent.
func (b *Buffer) Close() {
	if !b.closed.CompareAndSwap(false, true) {
		return
	}

	close(b.done)
	b.wg.Wait()

	for drained := false; !drained; {
		select {
		case entry := <-b.queue:
			b.deliver(entry)
		default:
			drained = true
		}
	}

	for _, t := range b.transporters {
		if err := t.Close(); err != nil {
			fmt.Fprintf(b.fallback, "log transporter %q close failed: %v\n", t.Name(), err)
		}
	}
}

func (b *Buffer) run() {
	defer b.wg.Done()

	for {
		select {
		case entry := <-b.queue:
			b.deliver(entry)
		case <-b.done:
			return
		}
	}
}

// deliver writes entry to each transporter, reporting failures on stderr.
func (b *Buffer) deliver(entry Entry) {
	for _, t := range b.transporters {
		if err := t.Write(entry); err != nil {
			fmt.Fprintf(b.fallback, "log transporter %q failed: %v\n", t.Name(), err)
		}
	}
}
