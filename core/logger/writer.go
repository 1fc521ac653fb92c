package logger

import (
	"bufio"
	"errors"
	"io"
	"sync"
)

var errSinkClosed = errors.New("logger: sink closed")

// lineSink copies formatted lines to every output from a single goroutine.
// Outputs are buffered and flushed whenever the queue runs empty.
type lineSink struct {
	lines   chan []byte
	drained chan struct{}
	outs    []*bufio.Writer

	gate   sync.RWMutex
	closed bool

	errMu sync.Mutex
	err   error
}

func newLineSink(outs []io.Writer, bufSize int) *lineSink {
	if bufSize <= 0 {
		bufSize = 64 << 10
	}
	s := &lineSink{
		lines:   make(chan []byte, 256),
		drained: make(chan struct{}),
	}
	for _, w := range outs {
		if w != nil {
			s.outs = append(s.outs, bufio.NewWriterSize(w, bufSize))
		}
	}
	go s.run()
	return s
}

func (s *lineSink) run() {
	defer close(s.drained)
	for line := range s.lines {
		s.record(s.emit(line))
		if len(s.lines) == 0 {
			s.record(s.flush())
		}
	}
	s.record(s.flush())
}

// Write queues a copy of line. It blocks while the queue is full and
// returns the first output error seen so far.
func (s *lineSink) Write(line []byte) error {
	if err := s.firstErr(); err != nil {
		return err
	}
	if len(line) == 0 {
		return nil
	}
	s.gate.RLock()
	defer s.gate.RUnlock()
	if s.closed {
		return errSinkClosed
	}
	s.lines <- append([]byte(nil), line...)
	return nil
}

// Close waits until every queued line reached the outputs.
func (s *lineSink) Close() error {
	s.gate.Lock()
	if !s.closed {
		s.closed = true
		close(s.lines)
	}
	s.gate.Unlock()
	<-s.drained
	return s.firstErr()
}

func (s *lineSink) emit(line []byte) error {
	var errs []error
	for _, out := range s.outs {
		if _, err := out.Write(line); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (s *lineSink) flush() error {
	var errs []error
	for _, out := range s.outs {
		if err := out.Flush(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (s *lineSink) record(err error) {
	if err == nil {
		return
	}
	s.errMu.Lock()
	if s.err == nil {
		s.err = err
	}
	s.errMu.Unlock()
}

func (s *lineSink) firstErr() error {
	s.errMu.Lock()
	defer s.errMu.Unlock()
	return s.err
}
