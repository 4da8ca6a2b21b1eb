// File: session/serve.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// The per-connection read loop: pull bytes from the transport, feed the
// incremental decoder, and route frames through the state machine.
// Inbound processing is single-threaded per session, so handler
// callbacks never run concurrently with each other.

package session

import (
	"errors"
	"io"
	"os"
	"time"

	"github.com/momentics/endpoint-ws/api"
	"github.com/momentics/endpoint-ws/protocol"
)

// errSessionDone signals the read loop that the session has reached its
// terminal state through the normal close handshake.
var errSessionDone = errors.New("session done")

// Serve runs the read loop until the session is closed. r is usually the
// buffered reader left over from the handshake; read deadlines are
// applied on the transport underneath it.
func (s *Session) Serve(r io.Reader) {
	frameMax := s.frameLimit()
	dec := protocol.NewDecoder(frameMax, !s.masked)
	buf := make([]byte, s.cfg.ReadBufferSize)

	for {
		if s.State() == StateClosed {
			return
		}
		s.armReadDeadline()
		n, err := r.Read(buf)
		if n > 0 {
			dec.Push(buf[:n])
			for {
				f, derr := dec.Next()
				if derr != nil {
					s.violation(derr.(*protocol.ViolationError))
					return
				}
				if f == nil {
					break
				}
				if herr := s.handleFrame(f); herr != nil {
					var verr *protocol.ViolationError
					if errors.As(herr, &verr) {
						s.violation(verr)
					}
					return
				}
			}
		}
		if err != nil {
			if !s.readFailure(err) {
				return
			}
		}
	}
}

// frameLimit derives the decoder's single-frame payload bound from the
// configured message maxima. Zero disables the bound.
func (s *Session) frameLimit() int64 {
	t, b := s.cfg.MaxTextMessageSize, s.cfg.MaxBinaryMessageSize
	if t <= 0 || b <= 0 {
		return 0
	}
	return max(t, b)
}

func (s *Session) armReadDeadline() {
	switch s.State() {
	case StateOpen:
		if s.cfg.IdleTimeout > 0 {
			_ = s.tr.SetReadDeadline(time.Now().Add(s.cfg.IdleTimeout))
		} else {
			_ = s.tr.SetReadDeadline(time.Time{})
		}
	case StateClosing:
		_ = s.tr.SetReadDeadline(time.Now().Add(s.cfg.CloseTimeout))
	}
}

// handleFrame routes one decoded frame through the state machine. A
// returned error stops the read loop; errSessionDone marks the normal
// close path.
func (s *Session) handleFrame(f *protocol.Frame) error {
	if s.State() == StateClosed {
		return errSessionDone
	}
	s.cfg.Metrics.FrameReceived()

	switch f.Opcode {
	case protocol.OpcodePing:
		// Auto-answer with the same payload (RFC 6455 5.5.2); failures
		// surface through the write path on the next send.
		_ = s.writeFrame(protocol.NewFrame(protocol.OpcodePong, f.Payload, true))
		return nil

	case protocol.OpcodePong:
		if s.cfg.WantPong {
			s.dispatch(Message{Kind: KindPong, Data: f.Payload, Last: true})
		}
		return nil

	case protocol.OpcodeClose:
		reason, err := protocol.ParseClosePayload(f.Payload)
		if err != nil {
			return err
		}
		return s.peerClose(reason)
	}

	return s.handleData(f)
}

// peerClose completes the close handshake after the peer's close frame.
// A side still OPEN echoes a close frame before transitioning; a side
// that already sent one transitions immediately.
func (s *Session) peerClose(reason protocol.CloseReason) error {
	reason = s.setReason(reason)
	if s.state.CompareAndSwap(int32(StateOpen), int32(StateClosing)) {
		_ = s.writeClose(reason)
	}
	_ = s.tr.Close()
	s.finish(reason)
	return errSessionDone
}

// handleData performs fragment accounting and message delivery.
func (s *Session) handleData(f *protocol.Frame) error {
	if f.Opcode == protocol.OpcodeContinuation {
		if s.pending == nil {
			return &protocol.ViolationError{Code: protocol.CloseProtocolError, Reason: "continuation frame without a message in progress"}
		}
	} else if s.pending != nil {
		return &protocol.ViolationError{Code: protocol.CloseProtocolError, Reason: "data frame interleaved with a fragmented message"}
	}

	if s.pending == nil {
		kind := KindBinary
		if f.Opcode == protocol.OpcodeText {
			kind = KindText
		}
		s.pending = &pendingMessage{kind: kind}
	}
	p := s.pending

	p.size += int64(len(f.Payload))
	limit := s.cfg.MaxBinaryMessageSize
	if p.kind == KindText {
		limit = s.cfg.MaxTextMessageSize
	}
	if limit > 0 && p.size > limit {
		return &protocol.ViolationError{Code: protocol.CloseMessageTooBig, Reason: "message exceeds configured maximum"}
	}

	if s.cfg.StreamFragments {
		msg := Message{Kind: p.kind, Data: f.Payload, Last: f.Fin}
		if f.Fin {
			s.pending = nil
		}
		s.dispatch(msg)
		return nil
	}

	p.buf = append(p.buf, f.Payload...)
	if !f.Fin {
		return nil
	}
	s.pending = nil
	s.dispatch(Message{Kind: p.kind, Data: p.buf, Last: true})
	return nil
}

func (s *Session) dispatch(msg Message) {
	s.cfg.Metrics.MessageDispatched()
	s.sink.HandleMessage(s, msg)
}

// violation terminates the session per the ProtocolViolation policy:
// close frame with the violation's code, error callback, forced CLOSED.
func (s *Session) violation(verr *protocol.ViolationError) {
	reason := s.setReason(protocol.CloseReason{Code: verr.Code, Reason: verr.Reason})
	if s.state.CompareAndSwap(int32(StateOpen), int32(StateClosing)) {
		_ = s.writeClose(reason)
	}
	s.sink.HandleError(s, verr)
	_ = s.tr.Close()
	s.finish(reason)
}

// readFailure handles a transport read error. It returns true when the
// read loop should continue (the idle-timeout close-initiation path).
func (s *Session) readFailure(err error) bool {
	if s.State() == StateClosed {
		return false
	}

	if isTimeout(err) {
		if s.State() == StateOpen && s.cfg.IdleTimeout > 0 && !s.idleClosed.Swap(true) {
			// Idle window expired: initiate a policy-violation close and
			// keep reading, now bounded by the close timeout.
			s.log.Debug("idle timeout, closing", "idle", s.cfg.IdleTimeout)
			_ = s.Close(protocol.CloseReason{Code: protocol.ClosePolicyViolation, Reason: "idle timeout"})
			return true
		}
		// The peer did not cooperate within the bounded wait.
		_ = s.tr.Close()
		s.finish(s.closeReason(protocol.CloseReason{Code: protocol.CloseAbnormal, Reason: "close handshake timeout"}))
		return false
	}

	if s.State() == StateClosing {
		// We sent a close frame and the peer dropped the transport
		// without echoing; treat the closure as complete.
		_ = s.tr.Close()
		s.finish(s.closeReason(protocol.CloseReason{Code: protocol.CloseAbnormal, Reason: "transport closed"}))
		return false
	}

	// Transport error while OPEN: error callback, then the close
	// callback with an abnormal-closure code.
	s.sink.HandleError(s, api.WrapError(api.ErrCodeIO, "transport read", err))
	_ = s.tr.Close()
	s.finish(protocol.CloseReason{Code: protocol.CloseAbnormal, Reason: "abnormal closure"})
	return false
}

func isTimeout(err error) bool {
	if errors.Is(err, os.ErrDeadlineExceeded) {
		return true
	}
	var nerr interface{ Timeout() bool }
	return errors.As(err, &nerr) && nerr.Timeout()
}
