package logger

import (
	"bufio"
	"errors"
	"io"
	"sync"
)

var errWriterClosed = errors.New("logger: writer closed")

// asyncWriter hands lines to a single goroutine that writes them in order.
// The buffer is flushed whenever the queue runs dry.
type asyncWriter struct {
	mu     sync.RWMutex
	closed bool
	lines  chan []byte
	flush  chan chan error
	done   chan struct{}
	out    *bufio.Writer

	errMu sync.Mutex
	err   error
}

func newAsyncWriter(w io.Writer, queue int) *asyncWriter {
	aw := &asyncWriter{
		lines: make(chan []byte, queue),
		flush: make(chan chan error),
		done:  make(chan struct{}),
		out:   bufio.NewWriterSize(w, 64<<10),
	}
	go aw.run()
	return aw
}

// Write queues a copy of p. It blocks only while the queue is full.
func (w *asyncWriter) Write(p []byte) (int, error) {
	if err := w.firstErr(); err != nil {
		return 0, err
	}
	line := append([]byte(nil), p...)
	w.mu.RLock()
	defer w.mu.RUnlock()
	if w.closed {
		return 0, errWriterClosed
	}
	w.lines <- line
	return len(p), nil
}

// Flush returns once every line queued before the call is written out.
func (w *asyncWriter) Flush() error {
	ack := make(chan error, 1)
	select {
	case w.flush <- ack:
		return <-ack
	case <-w.done:
		return w.firstErr()
	}
}

// Close drains the queue and stops the writer goroutine.
func (w *asyncWriter) Close() error {
	w.mu.Lock()
	if !w.closed {
		w.closed = true
		close(w.lines)
	}
	w.mu.Unlock()
	<-w.done
	return w.firstErr()
}

func (w *asyncWriter) run() {
	defer close(w.done)
	for {
		select {
		case line, ok := <-w.lines:
			if !ok {
				w.keep(w.out.Flush())
				return
			}
			w.write(line)
			if len(w.lines) == 0 {
				w.keep(w.out.Flush())
			}
		case ack := <-w.flush:
			w.drain()
			ack <- w.out.Flush()
		}
	}
}

func (w *asyncWriter) drain() {
	for {
		select {
		case line, ok := <-w.lines:
			if !ok {
				return
			}
			w.write(line)
		default:
			return
		}
	}
}

func (w *asyncWriter) write(line []byte) {
	_, err := w.out.Write(line)
	w.keep(err)
}

func (w *asyncWriter) keep(err error) {
	if err == nil {
		return
	}
	w.errMu.Lock()
	if w.err == nil {
		w.err = err
	}
	w.errMu.Unlock()
}

func (w *asyncWriter) firstErr() error {
	w.errMu.Lock()
	defer w.errMu.Unlock()
	return w.err
}
