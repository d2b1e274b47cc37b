// Package asr adapts external speech recognizers to the session loop. A
// Source yields final transcripts one at a time; audio capture and
// recognition happen elsewhere.
package asr

import (
	"bufio"
	"context"
	"io"
	"sync"
)

// Source yields recognized utterances. Next blocks until a transcript is
// available, the source is exhausted (io.EOF) or ctx is done.
type Source interface {
	Next(ctx context.Context) (string, error)
	Close() error
}

type result struct {
	text string
	err  error
}

// maxLineSize bounds a single transcript line.
const maxLineSize = 1 << 20

// LineSource reads one utterance per line, e.g. from stdin or a pipe fed by
// an external recognizer.
type LineSource struct {
	r       io.Reader
	lines   chan result
	done    chan struct{}
	start   sync.Once
	stopped sync.Once
}

// NewLineSource creates a LineSource over r. Reading starts on the first
// call to Next.
func NewLineSource(r io.Reader) *LineSource {
	return &LineSource{
		r:     r,
		lines: make(chan result),
		done:  make(chan struct{}),
	}
}

// Next returns the next line. Blank lines are returned as-is; filtering is
// up to the caller.
func (s *LineSource) Next(ctx context.Context) (string, error) {
	s.start.Do(func() { go s.scan() })

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case <-s.done:
		return "", io.EOF
	case r, ok := <-s.lines:
		if !ok {
			return "", io.EOF
		}
		return r.text, r.err
	}
}

func (s *LineSource) scan() {
	defer close(s.lines)

	scanner := bufio.NewScanner(s.r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	for scanner.Scan() {
		select {
		case s.lines <- result{text: scanner.Text()}:
		case <-s.done:
			return
		}
	}
	if err := scanner.Err(); err != nil {
		select {
		case s.lines <- result{err: err}:
		case <-s.done:
		}
	}
}

// Close stops the source. The underlying reader is not closed.
func (s *LineSource) Close() error {
	s.stopped.Do(func() { close(s.done) })
	return nil
}
