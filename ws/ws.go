package ws

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const subsys = "ws"

// State is the lifecycle position of a Session.
type State int32

const (
	StateDisconnected State = iota
	StateConnecting
	StateOpen
	StateClosing
	StateClosed
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateClosing:
		return "closing"
	case StateClosed:
		return "closed"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Conn is the part of a websocket connection the session needs.
// *websocket.Conn satisfies it.
type Conn interface {
	ReadMessage() (messageType int, p []byte, err error)
	SetReadDeadline(t time.Time) error
	SetReadLimit(limit int64)
	Close() error
}

// DialFunc opens a connection to url. On a rejected upgrade the response
// should be returned alongside the error.
type DialFunc func(ctx context.Context, url string, header http.Header) (Conn, *http.Response, error)

// Option is a function type for session options.
type Option func(*Session)

// Logger is an interface for logging.
type Logger interface {
	Debugf(format string, args ...any)
	Errorf(format string, args ...any)
}

// Session owns one websocket connection to a push feed and hands out its
// frames one at a time, in arrival order.
type Session struct {
	id       string
	endpoint string
	logger   Logger

	header           http.Header
	handshakeTimeout time.Duration
	readTimeout      time.Duration
	readLimit        int64
	dial             DialFunc
	now              func() time.Time

	// mu guards state, conn and failErr. Frame delivery checks state under
	// mu, which is what keeps frames from leaking past Close.
	mu      sync.Mutex
	state   State
	conn    Conn
	failErr error

	// readMu serialises ReadFrame: one read outstanding per connection.
	readMu sync.Mutex
}

// NewSession creates a session for the given endpoint.
//
// endpoint is the fully-formed address, including any combined-stream query.
// The session does not connect until Connect is called.
//
// By default:
//   - the handshake times out after 10 seconds;
//   - reads have no deadline.
//
// Panics if the endpoint is empty.
func NewSession(endpoint string, opts ...Option) *Session {
	if endpoint == "" {
		panic("NewSession: endpoint must not be empty")
	}

	s := &Session{
		id:               uuid.NewString(),
		endpoint:         endpoint,
		header:           make(http.Header),
		handshakeTimeout: 10 * time.Second,
		now:              time.Now,
	}

	for _, opt := range opts {
		opt(s)
	}

	if s.dial == nil {
		s.dial = gorillaDialer(s.handshakeTimeout)
	}
	return s
}

// WithLogger sets the logger for the session.
func WithLogger(l Logger) Option {
	return func(s *Session) {
		s.logger = l
	}
}

// WithHeader adds a request header sent with the upgrade request.
func WithHeader(key, value string) Option {
	return func(s *Session) {
		s.header.Add(key, value)
	}
}

// WithHandshakeTimeout overrides the 10 second handshake timeout.
func WithHandshakeTimeout(d time.Duration) Option {
	return func(s *Session) {
		s.handshakeTimeout = d
	}
}

// WithReadTimeout sets a deadline applied to every read. A read that exceeds
// it fails the session. Zero disables the deadline.
func WithReadTimeout(d time.Duration) Option {
	return func(s *Session) {
		s.readTimeout = d
	}
}

// WithReadLimit caps the size of a single incoming message in bytes.
func WithReadLimit(n int64) Option {
	return func(s *Session) {
		s.readLimit = n
	}
}

// WithDialer replaces the gorilla dialer, mostly for tests.
func WithDialer(d DialFunc) Option {
	return func(s *Session) {
		s.dial = d
	}
}

// ID returns the session id used in log lines.
func (s *Session) ID() string {
	return s.id
}

// Endpoint returns the address the session dials.
func (s *Session) Endpoint() string {
	return s.endpoint
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func gorillaDialer(handshakeTimeout time.Duration) DialFunc {
	d := &websocket.Dialer{
		Proxy:            http.ProxyFromEnvironment,
		HandshakeTimeout: handshakeTimeout,
	}
	return func(ctx context.Context, url string, header http.Header) (Conn, *http.Response, error) {
		conn, resp, err := d.DialContext(ctx, url, header)
		if err != nil {
			return nil, resp, err
		}
		return conn, resp, nil
	}
}

var _ Conn = (*websocket.Conn)(nil)
