// File: session/session.go
// Package session owns per-connection state: the
// CONNECTING -> OPEN -> CLOSING -> CLOSED lifecycle, the close handshake,
// idle tracking, fragment reassembly, and the send paths.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package session

import (
	"fmt"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/momentics/endpoint-ws/api"
	"github.com/momentics/endpoint-ws/control"
	"github.com/momentics/endpoint-ws/protocol"
)

// State enumerates the session lifecycle. Closed is terminal.
type State int32

const (
	StateConnecting State = iota
	StateOpen
	StateClosing
	StateClosed
)

// String returns the state mnemonic.
func (s State) String() string {
	switch s {
	case StateConnecting:
		return "CONNECTING"
	case StateOpen:
		return "OPEN"
	case StateClosing:
		return "CLOSING"
	case StateClosed:
		return "CLOSED"
	default:
		return "UNKNOWN"
	}
}

// MessageKind classifies payloads delivered to the message callback.
type MessageKind int

const (
	KindText MessageKind = iota
	KindBinary
	KindPong
)

// Message is one payload delivered to the endpoint dispatcher. In
// whole-message mode Last is always true; in streaming mode it marks the
// final fragment.
type Message struct {
	Kind MessageKind
	Data []byte
	Last bool
}

// Sink receives session events. The endpoint dispatcher implements it;
// per session, sink methods are never invoked concurrently with each
// other.
type Sink interface {
	HandleOpen(*Session)
	HandleMessage(*Session, Message)
	HandleError(*Session, error)
	HandleClose(*Session, protocol.CloseReason)
}

// Config carries per-session limits and timeouts, typically derived from
// the endpoint registration.
type Config struct {
	IdleTimeout          time.Duration
	MaxTextMessageSize   int64
	MaxBinaryMessageSize int64
	AsyncSendTimeout     time.Duration
	CloseTimeout         time.Duration
	ReadBufferSize       int
	StreamFragments      bool
	WantPong             bool
	Metrics              *control.Metrics
	Logger               *slog.Logger
}

func (c Config) withDefaults() Config {
	if c.MaxTextMessageSize == 0 {
		c.MaxTextMessageSize = control.DefaultMaxTextBufferSize
	}
	if c.MaxBinaryMessageSize == 0 {
		c.MaxBinaryMessageSize = control.DefaultMaxBinaryBufferSize
	}
	if c.AsyncSendTimeout == 0 {
		c.AsyncSendTimeout = control.DefaultAsyncSendTimeout
	}
	if c.CloseTimeout <= 0 {
		c.CloseTimeout = control.DefaultCloseTimeout
	}
	if c.ReadBufferSize <= 0 {
		c.ReadBufferSize = control.DefaultReadBufferSize
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	return c
}

// Info carries the handshake-derived identity of a session.
type Info struct {
	// RequestURI is the entire original request target including the
	// query string, independent of the path-only routing match.
	RequestURI  string
	Query       string
	Subprotocol string
	Extensions  []string
	PathParams  map[string]string
	// Masked selects the initiating role: outbound frames are masked
	// and inbound frames must not be.
	Masked bool
}

var sessionIDs atomic.Uint64

// pendingMessage is the single in-progress reassembly buffer. Framing
// never interleaves two logical messages on one connection, so one
// suffices.
type pendingMessage struct {
	kind MessageKind
	size int64
	buf  []byte
}

// Session is the live, stateful representation of one open connection,
// bound to exactly one handler instance through its sink.
type Session struct {
	id   string
	tr   api.Transport
	sink Sink
	cfg  Config
	log  *slog.Logger

	requestURI  string
	query       string
	subprotocol string
	extensions  []string
	params      map[string]string
	masked      bool

	state atomic.Int32

	propsMu sync.RWMutex
	props   map[string]any

	// writeMu serializes every frame write; sentClose is guarded by it
	// so the close frame goes out at most once.
	writeMu   sync.Mutex
	sentClose bool

	// pending is touched only by the read loop.
	pending    *pendingMessage
	idleClosed atomic.Bool

	reasonMu  sync.Mutex
	reason    protocol.CloseReason
	reasonSet bool

	closeOnce sync.Once
	done      chan struct{}

	sendq *sendQueue
}

// New constructs a session in CONNECTING state.
func New(tr api.Transport, sink Sink, cfg Config, info Info) *Session {
	s := &Session{
		id:          fmt.Sprintf("%d", sessionIDs.Add(1)),
		tr:          tr,
		sink:        sink,
		cfg:         cfg.withDefaults(),
		requestURI:  info.RequestURI,
		query:       info.Query,
		subprotocol: info.Subprotocol,
		extensions:  info.Extensions,
		params:      info.PathParams,
		masked:      info.Masked,
		props:       make(map[string]any),
		done:        make(chan struct{}),
	}
	s.log = s.cfg.Logger.With("session", s.id)
	s.sendq = newSendQueue(s)
	// Path variables are part of the session's property surface.
	for k, v := range info.PathParams {
		s.props[k] = v
	}
	return s
}

// Open transitions CONNECTING -> OPEN and fires the open callback before
// any message frame is dispatched.
func (s *Session) Open() {
	if !s.state.CompareAndSwap(int32(StateConnecting), int32(StateOpen)) {
		return
	}
	s.cfg.Metrics.SessionOpened()
	s.sendq.start()
	s.sink.HandleOpen(s)
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// RequestURI returns the full original request target including the
// query string.
func (s *Session) RequestURI() string { return s.requestURI }

// QueryString returns the query component alone.
func (s *Session) QueryString() string { return s.query }

// Subprotocol returns the negotiated subprotocol, empty when none.
func (s *Session) Subprotocol() string { return s.subprotocol }

// Extensions returns the client-offered extensions recorded at
// handshake time. The container negotiates none.
func (s *Session) Extensions() []string { return s.extensions }

// Secure reports whether the underlying transport is secured.
func (s *Session) Secure() bool { return s.tr.Secure() }

// ProtocolVersion returns the WebSocket protocol version string.
func (s *Session) ProtocolVersion() string { return protocol.RequiredVersion }

// RemoteAddr returns the peer address, or nil if unknown.
func (s *Session) RemoteAddr() net.Addr { return s.tr.RemoteAddr() }

// State returns the current lifecycle state.
func (s *Session) State() State { return State(s.state.Load()) }

// Done is closed once the session reaches CLOSED.
func (s *Session) Done() <-chan struct{} { return s.done }

// PathParameters returns the path variables bound by the matched
// endpoint pattern.
func (s *Session) PathParameters() map[string]string {
	out := make(map[string]string, len(s.params))
	for k, v := range s.params {
		out[k] = v
	}
	return out
}

// Set stores a user property on the session.
func (s *Session) Set(key string, value any) {
	s.propsMu.Lock()
	s.props[key] = value
	s.propsMu.Unlock()
}

// Get reads a user property.
func (s *Session) Get(key string) (any, bool) {
	s.propsMu.RLock()
	v, ok := s.props[key]
	s.propsMu.RUnlock()
	return v, ok
}

// Delete removes a user property.
func (s *Session) Delete(key string) {
	s.propsMu.Lock()
	delete(s.props, key)
	s.propsMu.Unlock()
}

// SendText writes a text message synchronously, blocking until the bytes
// are handed to the transport.
func (s *Session) SendText(msg string) error {
	return s.sendData(protocol.OpcodeText, []byte(msg))
}

// SendBinary writes a binary message synchronously.
func (s *Session) SendBinary(p []byte) error {
	return s.sendData(protocol.OpcodeBinary, p)
}

// SendTextAsync enqueues a text message on the per-session ordered send
// queue and returns its completion handle.
func (s *Session) SendTextAsync(msg string) *SendResult {
	return s.sendq.enqueue(protocol.OpcodeText, []byte(msg))
}

// SendBinaryAsync enqueues a binary message and returns its completion
// handle.
func (s *Session) SendBinaryAsync(p []byte) *SendResult {
	return s.sendq.enqueue(protocol.OpcodeBinary, p)
}

// Ping sends a ping control frame; payload must not exceed 125 bytes.
func (s *Session) Ping(payload []byte) error {
	return s.sendControl(protocol.OpcodePing, payload)
}

// Pong sends an unsolicited pong control frame.
func (s *Session) Pong(payload []byte) error {
	return s.sendControl(protocol.OpcodePong, payload)
}

func (s *Session) sendData(opcode protocol.Opcode, payload []byte) error {
	if s.State() != StateOpen {
		return api.ErrSessionNotOpen
	}
	limit := s.cfg.MaxBinaryMessageSize
	if opcode == protocol.OpcodeText {
		limit = s.cfg.MaxTextMessageSize
	}
	if limit > 0 && int64(len(payload)) > limit {
		return api.WrapError(api.ErrCodeMessageTooLarge, "outbound message exceeds configured maximum", nil)
	}
	return s.writeFrame(protocol.NewFrame(opcode, payload, true))
}

func (s *Session) sendControl(opcode protocol.Opcode, payload []byte) error {
	if len(payload) > protocol.MaxControlPayload {
		return api.ErrInvalidArgument
	}
	if st := s.State(); st != StateOpen && st != StateClosing {
		return api.ErrSessionNotOpen
	}
	return s.writeFrame(protocol.NewFrame(opcode, payload, true))
}

// writeFrame serializes and writes one frame under the write lock. No
// frame may follow the close frame (RFC 6455 5.5.1), so the auto-pong
// and send paths are refused once it has gone out.
func (s *Session) writeFrame(f *protocol.Frame) error {
	data := protocol.EncodeFrame(f, s.masked)
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if s.sentClose {
		return api.ErrSessionClosed
	}
	if err := s.tr.Write(data); err != nil {
		return api.WrapError(api.ErrCodeIO, "frame write", err)
	}
	s.cfg.Metrics.FrameSent()
	return nil
}

// writeClose writes the close frame at most once per session.
func (s *Session) writeClose(reason protocol.CloseReason) error {
	f := protocol.NewFrame(protocol.OpcodeClose, reason.EncodePayload(), true)
	data := protocol.EncodeFrame(f, s.masked)
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if s.sentClose {
		return nil
	}
	s.sentClose = true
	if err := s.tr.Write(data); err != nil {
		return api.WrapError(api.ErrCodeIO, "close frame write", err)
	}
	s.cfg.Metrics.FrameSent()
	return nil
}

// setReason records the close reason; the first recorded reason wins.
func (s *Session) setReason(reason protocol.CloseReason) protocol.CloseReason {
	s.reasonMu.Lock()
	defer s.reasonMu.Unlock()
	if !s.reasonSet {
		s.reason = reason
		s.reasonSet = true
	}
	return s.reason
}

func (s *Session) closeReason(fallback protocol.CloseReason) protocol.CloseReason {
	s.reasonMu.Lock()
	defer s.reasonMu.Unlock()
	if s.reasonSet {
		return s.reason
	}
	return fallback
}

// Close initiates the closing handshake: OPEN -> CLOSING on sending the
// close frame. The read loop bounds the wait for the peer's close frame
// by the configured close timeout.
func (s *Session) Close(reason protocol.CloseReason) error {
	if !s.state.CompareAndSwap(int32(StateOpen), int32(StateClosing)) {
		return nil
	}
	s.setReason(reason)
	err := s.writeClose(reason)
	// Wake a blocked read so the closing phase runs on the close
	// timeout rather than the idle window.
	_ = s.tr.SetReadDeadline(time.Now().Add(s.cfg.CloseTimeout))
	return err
}

// Fail terminates the session abnormally: best-effort close frame, then
// forced transport termination and the terminal transition.
func (s *Session) Fail(reason protocol.CloseReason) {
	s.setReason(reason)
	if st := s.State(); st == StateOpen || st == StateClosing {
		s.state.Store(int32(StateClosing))
		_ = s.writeClose(reason)
	}
	_ = s.tr.Close()
	s.finish(reason)
}

// ForceClose terminates the transport without a close frame. Used when a
// cooperative close has exhausted its bounded wait.
func (s *Session) ForceClose() {
	_ = s.tr.Close()
	s.finish(s.closeReason(protocol.CloseReason{Code: protocol.CloseAbnormal, Reason: "forced closure"}))
}

// finish performs the terminal transition. The close callback fires
// exactly once regardless of which path led here, and no frame is
// dispatched afterwards.
func (s *Session) finish(reason protocol.CloseReason) {
	s.state.Store(int32(StateClosed))
	s.closeOnce.Do(func() {
		reason = s.closeReason(reason)
		s.sendq.stop()
		close(s.done)
		s.cfg.Metrics.SessionClosed(reason.Code)
		s.sink.HandleClose(s, reason)
	})
}
