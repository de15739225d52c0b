package ws

import (
	"errors"
	"fmt"
	"io"
	"net"
	"strings"

	"github.com/gorilla/websocket"
)

var (
	// ErrSessionClosed is returned once the session has been shut down, either
	// by Close or by a normal closure from the server. It marks end of stream.
	ErrSessionClosed = errors.New("session closed")
	// ErrNotConnected is returned when reading from a session that was never opened.
	ErrNotConnected = errors.New("session not connected")
	// ErrHandshakeRejected is returned when the server refused the protocol upgrade.
	ErrHandshakeRejected = errors.New("handshake rejected")
)

// Transport failure classes, attached as the cause of ErrConnect and ErrRead.
var (
	ErrNormalClosure   = errors.New("connection closed normally")
	ErrAbnormalClosure = errors.New("connection closed abnormally")
	ErrInterrupted     = errors.New("read interrupted")
	ErrUnexpectedEOF   = errors.New("unexpected EOF")
	ErrNetwork         = errors.New("network issue")
	ErrCorruptPayload  = errors.New("invalid/corrupted payload")
	ErrInternal        = errors.New("internal client error")
)

// failureClasses is evaluated in order; the first match wins.
var failureClasses = []struct {
	class error
	match func(error) bool
}{
	{ErrHandshakeRejected, func(err error) bool { return errors.Is(err, websocket.ErrBadHandshake) }},
	{ErrNormalClosure, isNormalClosure},
	{ErrAbnormalClosure, func(err error) bool { return websocket.IsCloseError(err, websocket.CloseAbnormalClosure) }},
	{ErrInterrupted, isInterrupted},
	{ErrUnexpectedEOF, func(err error) bool {
		return errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF)
	}},
	{ErrNetwork, func(err error) bool {
		var netErr net.Error
		return errors.As(err, &netErr)
	}},
	{ErrCorruptPayload, func(err error) bool {
		return containsAny(err.Error(), "invalid UTF-8", "malformed", "unexpected opcode", "read limit exceeded")
	}},
}

// classifyWSError wraps err with the failure class it belongs to, keeping
// the original text.
func classifyWSError(err error) error {
	for _, fc := range failureClasses {
		if fc.match(err) {
			return fmt.Errorf("%w: %v", fc.class, err)
		}
	}
	return fmt.Errorf("%w: %v", ErrInternal, err)
}

func isNormalClosure(err error) bool {
	return websocket.IsCloseError(err, websocket.CloseNormalClosure)
}

func isInterrupted(err error) bool {
	return errors.Is(err, net.ErrClosed) ||
		errors.Is(err, io.ErrClosedPipe) ||
		containsAny(err.Error(), "use of closed network connection", "close sent")
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
