package ws

import (
	"context"
	"errors"
	"fmt"
	"unicode/utf8"

	"github.com/IvanTurko/depthstream-go/internal/wsutil"
	"github.com/IvanTurko/depthstream-go/sdkerr"
)

// Connect performs the websocket handshake.
//
// It may only be called once, on a Disconnected session. A failed handshake
// leaves the session Failed; the caller owns any retry policy and should
// create a new Session for it.
func (s *Session) Connect(ctx context.Context) (*Handshake, error) {
	s.mu.Lock()
	if s.state != StateDisconnected {
		state := s.state
		s.mu.Unlock()
		return nil, s.errFactory("Connect", sdkerr.ErrConnect).
			WithMessagef("session is %s", state)
	}
	s.state = StateConnecting
	s.mu.Unlock()

	s.debugf("[%s] connecting to %s", s.id, s.endpoint)

	conn, resp, err := s.dial(ctx, s.endpoint, s.header.Clone())
	if err != nil {
		s.errorf("[%s] connect failed: %v", s.id, err)
		e := s.errFactory("Connect", sdkerr.ErrConnect).WithCause(classifyWSError(err))
		if resp != nil {
			e.WithMessagef("handshake answered with status %d", resp.StatusCode)
		}
		s.mu.Lock()
		if s.state == StateConnecting {
			s.state = StateFailed
			s.failErr = e
		}
		s.mu.Unlock()
		return nil, e
	}

	if s.readLimit > 0 {
		conn.SetReadLimit(s.readLimit)
	}

	s.mu.Lock()
	if s.state != StateConnecting {
		// Close won the race with the dial.
		s.mu.Unlock()
		_ = conn.Close()
		return nil, s.errFactory("Connect", sdkerr.ErrConnect).WithCause(ErrSessionClosed)
	}
	s.conn = conn
	s.state = StateOpen
	s.mu.Unlock()

	hs := &Handshake{}
	if resp != nil {
		hs.StatusCode = resp.StatusCode
		hs.Header = resp.Header.Clone()
	}

	s.debugf("[%s] connected to %s (status %d)", s.id, s.endpoint, hs.StatusCode)
	return hs, nil
}

// ReadFrame blocks until the next frame arrives and returns it.
//
// Errors:
//   - ErrSessionClosed (via errors.Is): the session was closed by the caller
//     or the server closed the stream normally. This is end of stream.
//   - sdkerr.ErrRead: the transport failed. The session is Failed and every
//     later call returns the same error.
//   - the context error: ctx ended while waiting. The transport is aborted
//     and the session is Closed.
//
// Concurrent calls are serialised.
func (s *Session) ReadFrame(ctx context.Context) (Frame, error) {
	s.readMu.Lock()
	defer s.readMu.Unlock()

	s.mu.Lock()
	state, conn, failErr := s.state, s.conn, s.failErr
	s.mu.Unlock()

	switch state {
	case StateOpen:
	case StateFailed:
		return Frame{}, failErr
	case StateClosing, StateClosed:
		return Frame{}, s.closedErr()
	default:
		return Frame{}, s.errFactory("ReadFrame", nil).WithCause(ErrNotConnected)
	}

	if s.readTimeout > 0 {
		if err := conn.SetReadDeadline(s.now().Add(s.readTimeout)); err != nil {
			return Frame{}, s.onReadError(err)
		}
	}

	promise := wsutil.NewPromise[Frame]()
	go func() {
		msgType, buf, err := conn.ReadMessage()
		if err != nil {
			promise.Reject(err)
			return
		}
		promise.Resolve(Frame{Kind: FrameKind(msgType), Payload: buf})
	}()

	frame, err := promise.Await(ctx)
	if err != nil {
		var perr *wsutil.PromiseError
		if errors.As(err, &perr) && perr.Source == wsutil.FromContext {
			s.debugf("[%s] read abandoned: %v", s.id, perr.Err)
			_ = s.Close()
			return Frame{}, perr.Err
		}
		return Frame{}, s.onReadError(errors.Unwrap(err))
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateOpen {
		// shutdown was requested while the read was in flight
		return Frame{}, s.closedErr()
	}

	logFrame(s, frame)
	return frame, nil
}

func (s *Session) onReadError(err error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.state {
	case StateClosing, StateClosed:
		return s.closedErr()
	case StateFailed:
		return s.failErr
	}

	if s.conn != nil {
		_ = s.conn.Close()
	}

	if isNormalClosure(err) {
		s.state = StateClosed
		s.debugf("[%s] server closed the stream: %v", s.id, err)
		return s.closedErr()
	}

	s.state = StateFailed
	s.failErr = s.errFactory("ReadFrame", sdkerr.ErrRead).WithCause(classifyWSError(err))
	s.errorf("[%s] read failed: %v", s.id, err)
	return s.failErr
}

// Close shuts the session down. An in-flight read is aborted and no frame is
// delivered after Close returns. Safe to call multiple times.
func (s *Session) Close() error {
	s.mu.Lock()
	switch s.state {
	case StateClosing, StateClosed, StateFailed:
		s.mu.Unlock()
		return nil
	case StateDisconnected, StateConnecting:
		s.state = StateClosed
		s.mu.Unlock()
		return nil
	}

	s.state = StateClosing
	conn := s.conn
	s.mu.Unlock()

	err := conn.Close()

	s.setState(StateClosed)
	s.debugf("[%s] closed", s.id)

	if err != nil && !isInterrupted(err) {
		s.errorf("[%s] connection close failed: %v", s.id, err)
		return s.errFactory("Close", nil).WithCause(classifyWSError(err))
	}
	return nil
}

func (s *Session) setState(state State) {
	s.mu.Lock()
	s.state = state
	s.mu.Unlock()
}

func (s *Session) closedErr() error {
	return s.errFactory("ReadFrame", nil).WithCause(ErrSessionClosed)
}

func (s *Session) errFactory(op string, kind error) *sdkerr.SDKError {
	return sdkerr.New(subsys, fmt.Sprintf("Session.%s", op), kind)
}

func logFrame(s *Session, f Frame) {
	if s.logger == nil {
		return
	}
	switch {
	case len(f.Payload) == 0:
		s.debugf("[%s] recv [%s]: <empty>", s.id, f.Kind)
	case utf8.Valid(f.Payload):
		s.debugf("[%s] recv [%s]: %s", s.id, f.Kind, string(f.Payload))
	default:
		s.debugf("[%s] recv [%s]: <binary> %x", s.id, f.Kind, f.Payload)
	}
}

func (s *Session) debugf(format string, args ...any) {
	if s.logger != nil {
		s.logger.Debugf(format, args...)
	}
}

func (s *Session) errorf(format string, args ...any) {
	if s.logger != nil {
		s.logger.Errorf(format, args...)
	}
}
