package depth

import (
	"context"
	"errors"
	"io"
	"iter"
	"sync"

	counter "github.com/IvanTurko/depthstream-go/internal/sync"
	"github.com/IvanTurko/depthstream-go/sdkerr"
	"github.com/IvanTurko/depthstream-go/ws"
)

const maxLoggedPayload = 200

// FrameSource yields raw frames in arrival order. *ws.Session satisfies it.
type FrameSource interface {
	ReadFrame(ctx context.Context) (ws.Frame, error)
}

// StreamOption configures a Stream.
type StreamOption func(*Stream)

// Stats counts what a Stream has seen so far.
type Stats struct {
	Frames    uint64
	Delivered uint64
	Invalid   uint64
}

// Stream pulls frames from a FrameSource, decodes them and hands out depth
// updates one at a time. A frame that fails to decode is reported and
// skipped; a transport failure ends the stream.
type Stream struct {
	src       FrameSource
	logger    ws.Logger
	onInvalid func(frame ws.Frame, err error)

	frames    counter.Counter
	delivered counter.Counter
	invalid   counter.Counter

	mu  sync.Mutex
	end error
}

// NewStream creates a Stream reading from src.
//
// Panics if src is nil.
func NewStream(src FrameSource, opts ...StreamOption) *Stream {
	if src == nil {
		panic("NewStream: frame source must not be nil")
	}

	s := &Stream{
		src: src,
	}

	for _, opt := range opts {
		opt(s)
	}
	return s
}

// WithOnInvalid registers a callback fired for every frame that could not be
// decoded. The stream keeps going afterwards.
func WithOnInvalid(f func(frame ws.Frame, err error)) StreamOption {
	return func(s *Stream) {
		s.onInvalid = f
	}
}

// WithLogger sets the logger used for per-frame diagnostics.
func WithLogger(l ws.Logger) StreamOption {
	return func(s *Stream) {
		s.logger = l
	}
}

// Next returns the next decoded update.
//
// Frames that fail to decode are reported through WithOnInvalid and skipped.
// Next returns io.EOF once the session was closed, and the session error
// (sdkerr.ErrConnect / sdkerr.ErrRead) once the transport failed. Both are
// final: later calls return the same value without reading.
func (s *Stream) Next(ctx context.Context) (*StreamEnvelope, error) {
	for {
		env, err := s.step(ctx)
		if err != nil && sdkerr.IsRecoverable(err) {
			continue
		}
		return env, err
	}
}

// Updates returns the stream as a lazy sequence. Decoded frames are yielded
// as (env, nil) and decode failures as (nil, err) with a recoverable err.
// A transport failure is yielded once as (nil, err) and ends the sequence;
// end of stream ends it silently.
func (s *Stream) Updates(ctx context.Context) iter.Seq2[*StreamEnvelope, error] {
	return func(yield func(*StreamEnvelope, error) bool) {
		for {
			env, err := s.step(ctx)
			switch {
			case err == nil:
				if !yield(env, nil) {
					return
				}
			case sdkerr.IsRecoverable(err):
				if !yield(nil, err) {
					return
				}
			case errors.Is(err, io.EOF):
				return
			default:
				yield(nil, err)
				return
			}
		}
	}
}

// Stats returns the frame counters.
func (s *Stream) Stats() Stats {
	return Stats{
		Frames:    s.frames.Load(),
		Delivered: s.delivered.Load(),
		Invalid:   s.invalid.Load(),
	}
}

func (s *Stream) step(ctx context.Context) (*StreamEnvelope, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.end != nil {
		return nil, s.end
	}

	frame, err := s.src.ReadFrame(ctx)
	if err != nil {
		return nil, s.finish(ctx, err)
	}
	s.frames.Inc()

	env, err := DecodeFrame(frame)
	if err != nil {
		s.invalid.Inc()
		s.reportInvalid(frame, err)
		return nil, err
	}

	s.delivered.Inc()
	return env, nil
}

func (s *Stream) finish(ctx context.Context, err error) error {
	switch {
	case errors.Is(err, ws.ErrSessionClosed):
		s.end = io.EOF
		return io.EOF
	case ctx.Err() != nil && errors.Is(err, ctx.Err()):
		// the caller gave up; the next call observes the closed session
		return err
	default:
		s.end = err
		if s.logger != nil {
			s.logger.Errorf("depth stream ended: %v", err)
		}
		return err
	}
}

func (s *Stream) reportInvalid(frame ws.Frame, err error) {
	if s.logger != nil {
		sample := frame.Payload
		if len(sample) > maxLoggedPayload {
			sample = sample[:maxLoggedPayload]
		}
		s.logger.Errorf("skipping %s frame: %v, payload: %q", frame.Kind, err, sample)
	}
	if s.onInvalid != nil {
		s.onInvalid(frame, err)
	}
}

var _ FrameSource = (*ws.Session)(nil)
