package pagination

import (
	"context"
	"iter"
	"time"

	"github.com/Sternrassler/fireblocks-client/pkg/params"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Source builds and executes the request for one page.
type Source[C, P any] interface {
	// BuildParams materializes the request for cursor. It must not perform I/O.
	BuildParams(limit uint16, cursor C) (params.Query, error)
	// FetchPage performs one round trip. It should return promptly once ctx
	// is cancelled.
	FetchPage(ctx context.Context, q params.Query) (P, error)
}

// PageCounter is optionally implemented by a Source to report how many
// items a page holds.
type PageCounter[P any] interface {
	Count(page P) int
}

// Status is the outcome of a Poll.
type Status int

const (
	// Pending means a fetch is in flight; wait on Wait and poll again.
	Pending Status = iota
	// Ready means Poll returned a page, or the terminal error.
	Ready
	// Done means the stream is exhausted.
	Done
)

func (s Status) String() string {
	switch s {
	case Pending:
		return "pending"
	case Ready:
		return "ready"
	case Done:
		return "done"
	default:
		return "unknown"
	}
}

type state int

const (
	stateUninitialized state = iota
	stateFetching
	stateIdle
	stateExhausted
)

func (s state) String() string {
	switch s {
	case stateUninitialized:
		return "uninitialized"
	case stateFetching:
		return "fetching"
	case stateIdle:
		return "idle"
	case stateExhausted:
		return "exhausted"
	default:
		return "unknown"
	}
}

// fetchCall is the single in-flight fetch of a stream. page and err are
// written before done is closed.
type fetchCall[P any] struct {
	done   chan struct{}
	page   P
	err    error
	cancel context.CancelFunc
}

var closedChan = func() chan struct{} {
	c := make(chan struct{})
	close(c)
	return c
}()

// StreamOption configures a Stream.
type StreamOption func(*streamOptions)

type streamOptions struct {
	name   string
	logger zerolog.Logger
	ctx    context.Context
}

// WithName sets the stream name used in logs and metric labels.
func WithName(name string) StreamOption {
	return func(o *streamOptions) { o.name = name }
}

// WithStreamLogger sets the stream logger.
func WithStreamLogger(logger zerolog.Logger) StreamOption {
	return func(o *streamOptions) { o.logger = logger }
}

// WithContext sets the parent context of every fetch issued by the stream.
func WithContext(ctx context.Context) StreamOption {
	return func(o *streamOptions) { o.ctx = ctx }
}

// Stream is a pull-driven sequence of pages. It issues at most one fetch at
// a time and only when polled. A Stream is owned by a single consumer and is
// not safe for concurrent use.
type Stream[C, P any] struct {
	name   string
	source Source[C, P]
	policy Policy[C, P]
	limit  uint16
	logger zerolog.Logger

	ctx    context.Context
	cancel context.CancelFunc

	state  state
	cursor C
	call   *fetchCall[P]
}

// NewStream returns a stream that starts at cursor initial and requests
// pages of limit items.
func NewStream[C, P any](src Source[C, P], policy Policy[C, P], limit uint16, initial C, opts ...StreamOption) *Stream[C, P] {
	o := streamOptions{
		name:   "stream",
		logger: log.Logger,
		ctx:    context.Background(),
	}
	for _, opt := range opts {
		opt(&o)
	}

	ctx, cancel := context.WithCancel(o.ctx)
	return &Stream[C, P]{
		name:   o.name,
		source: src,
		policy: policy,
		limit:  limit,
		logger: o.logger.With().Str("stream", o.name).Logger(),
		ctx:    ctx,
		cancel: cancel,
		state:  stateUninitialized,
		cursor: initial,
	}
}

// Name returns the stream name.
func (s *Stream[C, P]) Name() string { return s.name }

// Limit returns the page size requested by every fetch.
func (s *Stream[C, P]) Limit() uint16 { return s.limit }

// Cursor returns the cursor the next fetch will use.
func (s *Stream[C, P]) Cursor() C { return s.cursor }

// Exhausted reports whether the stream has terminated.
func (s *Stream[C, P]) Exhausted() bool { return s.state == stateExhausted }

// Poll advances the stream without blocking.
//
// It returns Pending while a fetch is in flight, launching one first when
// none is. It returns Ready with a page, or Ready with a non-nil error as the
// final element of the stream. After exhaustion, an error, or Close it
// returns Done.
func (s *Stream[C, P]) Poll() (P, Status, error) {
	var zero P

	switch s.state {
	case stateExhausted:
		return zero, Done, nil

	case stateUninitialized, stateIdle:
		if err := s.launch(); err != nil {
			s.logger.Error().Err(err).Msg("Request parameters rejected")
			s.terminate(reasonValidation)
			return zero, Ready, err
		}
		return zero, Pending, nil
	}

	call := s.call
	select {
	case <-call.done:
	default:
		s.logger.Trace().Msg("Fetch still in flight")
		return zero, Pending, nil
	}

	s.call = nil
	call.cancel()

	if call.err != nil {
		s.logger.Error().Err(call.err).Interface("cursor", s.cursor).Msg("Page fetch failed")
		s.terminate(reasonFetch)
		return zero, Ready, call.err
	}

	step := s.policy.Step(s.cursor, call.page)
	if step.Err != nil {
		s.logger.Error().Err(step.Err).Interface("cursor", s.cursor).Msg("Page rejected by cursor policy")
		s.terminate(reasonCursor)
		return zero, Ready, step.Err
	}
	s.cursor = step.Cursor
	if step.Exhausted {
		s.terminate(reasonExhausted)
	} else {
		s.state = stateIdle
	}

	if !step.Deliver {
		return zero, Done, nil
	}

	streamPagesTotal.WithLabelValues(s.name).Inc()
	if counter, ok := s.source.(PageCounter[P]); ok {
		n := counter.Count(call.page)
		streamItemsTotal.WithLabelValues(s.name).Add(float64(n))
		s.logger.Debug().Int("page_size", n).Interface("next_cursor", s.cursor).Msg("Page received")
	}

	return call.page, Ready, nil
}

// Wait returns a channel that is closed once the in-flight fetch resolves.
// When no fetch is in flight the returned channel is already closed.
func (s *Stream[C, P]) Wait() <-chan struct{} {
	if s.state == stateFetching && s.call != nil {
		return s.call.done
	}
	return closedChan
}

// Next blocks until the next page is available. It returns (zero, false, nil)
// once the stream is exhausted. A cancelled ctx abandons the wait but leaves
// the fetch in flight, so Next may be called again.
func (s *Stream[C, P]) Next(ctx context.Context) (P, bool, error) {
	var zero P
	for {
		page, status, err := s.Poll()
		switch status {
		case Ready:
			if err != nil {
				return zero, false, err
			}
			return page, true, nil
		case Done:
			return zero, false, nil
		}

		select {
		case <-ctx.Done():
			return zero, false, ctx.Err()
		case <-s.Wait():
		}
	}
}

// All returns an iterator over the remaining pages. An error is yielded as
// the last element. The stream is closed when iteration stops.
func (s *Stream[C, P]) All(ctx context.Context) iter.Seq2[P, error] {
	return func(yield func(P, error) bool) {
		defer s.Close()
		for {
			page, ok, err := s.Next(ctx)
			if err != nil {
				yield(page, err)
				return
			}
			if !ok || !yield(page, nil) {
				return
			}
		}
	}
}

// Close discards the stream. An in-flight fetch is cancelled and its result
// is never observed. Close is idempotent.
func (s *Stream[C, P]) Close() error {
	s.call = nil
	s.cancel()
	if s.state != stateExhausted {
		s.terminate(reasonClosed)
	}
	return nil
}

func (s *Stream[C, P]) launch() error {
	q, err := s.source.BuildParams(s.limit, s.cursor)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(s.ctx)
	call := &fetchCall[P]{
		done:   make(chan struct{}),
		cancel: cancel,
	}
	s.call = call
	s.state = stateFetching

	s.logger.Debug().
		Interface("cursor", s.cursor).
		Uint16("limit", s.limit).
		Msg("Launching page fetch")

	name := s.name
	src := s.source
	streamInflightFetches.WithLabelValues(name).Inc()
	go func() {
		start := time.Now()
		defer func() {
			streamInflightFetches.WithLabelValues(name).Dec()
			streamFetchDuration.WithLabelValues(name).Observe(time.Since(start).Seconds())
			close(call.done)
		}()
		call.page, call.err = src.FetchPage(ctx, q)
	}()

	return nil
}

func (s *Stream[C, P]) terminate(reason string) {
	s.state = stateExhausted
	streamTerminationsTotal.WithLabelValues(s.name, reason).Inc()

	event := s.logger.Info()
	if reason == reasonClosed {
		event = s.logger.Debug()
	}
	event.Str("reason", reason).Interface("cursor", s.cursor).Msg("Stream terminated")
}
