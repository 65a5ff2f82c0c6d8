package ipc

import (
	"io"
	"sync"
	"time"
)

// BufferedWriter coalesces frames written in quick succession, such as the
// edits and done event of one composition step, into fewer socket writes.
// Data is flushed when the buffer would overflow, after maxDelay, or on an
// explicit Flush.
type BufferedWriter struct {
	w         io.Writer
	buf       []byte
	mu        sync.Mutex
	err       error
	flushChan chan struct{}
	done      chan struct{}
	closeOnce sync.Once
	maxDelay  time.Duration
	maxSize   int
}

// NewBufferedWriter creates a buffered writer that flushes on its own.
func NewBufferedWriter(w io.Writer, maxDelay time.Duration, maxSize int) *BufferedWriter {
	bw := &BufferedWriter{
		w:         w,
		buf:       make([]byte, 0, maxSize),
		flushChan: make(chan struct{}, 1),
		done:      make(chan struct{}),
		maxDelay:  maxDelay,
		maxSize:   maxSize,
	}

	go bw.flushLoop()
	return bw
}

// Write implements io.Writer. A frame larger than the buffer is written
// through directly.
func (bw *BufferedWriter) Write(p []byte) (int, error) {
	bw.mu.Lock()
	defer bw.mu.Unlock()

	if bw.err != nil {
		return 0, bw.err
	}

	if len(bw.buf)+len(p) > bw.maxSize {
		if err := bw.flushLocked(); err != nil {
			return 0, err
		}
		if len(p) > bw.maxSize {
			n, err := bw.w.Write(p)
			bw.err = err
			return n, err
		}
	}

	bw.buf = append(bw.buf, p...)

	// First data since the last flush arms the timer
	if len(bw.buf) == len(p) {
		select {
		case bw.flushChan <- struct{}{}:
		default:
		}
	}

	return len(p), nil
}

// Flush writes out any buffered data.
func (bw *BufferedWriter) Flush() error {
	bw.mu.Lock()
	defer bw.mu.Unlock()
	return bw.flushLocked()
}

// Buffered returns the number of bytes waiting to be flushed.
func (bw *BufferedWriter) Buffered() int {
	bw.mu.Lock()
	defer bw.mu.Unlock()
	return len(bw.buf)
}

func (bw *BufferedWriter) flushLocked() error {
	if bw.err != nil {
		return bw.err
	}
	if len(bw.buf) == 0 {
		return nil
	}

	_, err := bw.w.Write(bw.buf)
	bw.buf = bw.buf[:0]
	// A failed write leaves the stream mid-frame; refuse further writes.
	bw.err = err
	return err
}

func (bw *BufferedWriter) flushLoop() {
	timer := time.NewTimer(bw.maxDelay)
	timer.Stop()

	for {
		select {
		case <-bw.done:
			timer.Stop()
			return
		case <-bw.flushChan:
			timer.Reset(bw.maxDelay)
		case <-timer.C:
			_ = bw.Flush()
		}
	}
}

// Close flushes remaining data and stops the flush goroutine. It does not
// close the underlying writer.
func (bw *BufferedWriter) Close() error {
	bw.closeOnce.Do(func() { close(bw.done) })
	return bw.Flush()
}
