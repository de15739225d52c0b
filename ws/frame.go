package ws

import (
	"fmt"
	"net/http"

	"github.com/gorilla/websocket"
)

// FrameKind is the websocket opcode a frame arrived with.
type FrameKind int

const (
	TextFrame   FrameKind = websocket.TextMessage
	BinaryFrame FrameKind = websocket.BinaryMessage
	CloseFrame  FrameKind = websocket.CloseMessage
	PingFrame   FrameKind = websocket.PingMessage
	PongFrame   FrameKind = websocket.PongMessage
)

func (k FrameKind) String() string {
	switch k {
	case TextFrame:
		return "Text"
	case BinaryFrame:
		return "Binary"
	case CloseFrame:
		return "Close"
	case PingFrame:
		return "Ping"
	case PongFrame:
		return "Pong"
	default:
		return fmt.Sprintf("Unknown(%d)", int(k))
	}
}

// IsControl reports whether k is a control opcode.
func (k FrameKind) IsControl() bool {
	return k == CloseFrame || k == PingFrame || k == PongFrame
}

// Frame is one unit of data delivered by the transport.
type Frame struct {
	Kind    FrameKind
	Payload []byte
}

// Handshake is the server's answer to the protocol upgrade. It is exposed
// for diagnostics only.
type Handshake struct {
	StatusCode int
	Header     http.Header
}
