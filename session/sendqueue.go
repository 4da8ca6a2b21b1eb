// File: session/sendqueue.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Per-session ordered asynchronous send queue. Concurrent callers may
// enqueue from any goroutine; a single writer drains the queue, so
// frames reach the wire in submission order.

package session

import (
	"sync"
	"time"

	"github.com/eapache/queue"

	"github.com/momentics/endpoint-ws/api"
	"github.com/momentics/endpoint-ws/protocol"
)

// SendResult is the completion handle of an asynchronous send.
type SendResult struct {
	done chan struct{}
	err  error
}

func newSendResult() *SendResult {
	return &SendResult{done: make(chan struct{})}
}

func (r *SendResult) complete(err error) {
	r.err = err
	close(r.done)
}

// Done is closed once the send completed or failed.
func (r *SendResult) Done() <-chan struct{} { return r.done }

// Err returns the outcome; it blocks until completion.
func (r *SendResult) Err() error {
	<-r.done
	return r.err
}

type pendingSend struct {
	opcode   protocol.Opcode
	payload  []byte
	enqueued time.Time
	res      *SendResult
}

type sendQueue struct {
	s *Session

	mu      sync.Mutex
	cond    *sync.Cond
	q       *queue.Queue
	stopped bool
}

func newSendQueue(s *Session) *sendQueue {
	sq := &sendQueue{s: s, q: queue.New()}
	sq.cond = sync.NewCond(&sq.mu)
	return sq
}

func (sq *sendQueue) start() {
	go sq.run()
}

// enqueue appends a send and returns its handle. Submission order under
// the queue lock defines wire order.
func (sq *sendQueue) enqueue(opcode protocol.Opcode, payload []byte) *SendResult {
	res := newSendResult()
	sq.mu.Lock()
	if sq.stopped {
		sq.mu.Unlock()
		res.complete(api.ErrSessionClosed)
		return res
	}
	sq.q.Add(&pendingSend{
		opcode:   opcode,
		payload:  payload,
		enqueued: time.Now(),
		res:      res,
	})
	sq.cond.Signal()
	sq.mu.Unlock()
	return res
}

// stop fails all queued sends and terminates the writer.
func (sq *sendQueue) stop() {
	sq.mu.Lock()
	if sq.stopped {
		sq.mu.Unlock()
		return
	}
	sq.stopped = true
	var drained []*pendingSend
	for sq.q.Length() > 0 {
		drained = append(drained, sq.q.Remove().(*pendingSend))
	}
	sq.cond.Broadcast()
	sq.mu.Unlock()

	for _, p := range drained {
		p.res.complete(api.ErrSessionClosed)
	}
}

func (sq *sendQueue) run() {
	for {
		sq.mu.Lock()
		for sq.q.Length() == 0 && !sq.stopped {
			sq.cond.Wait()
		}
		if sq.stopped {
			sq.mu.Unlock()
			return
		}
		p := sq.q.Remove().(*pendingSend)
		sq.mu.Unlock()

		p.res.complete(sq.write(p))
	}
}

// write hands one queued send to the transport, honoring the async send
// timeout from submission time.
func (sq *sendQueue) write(p *pendingSend) error {
	timeout := sq.s.cfg.AsyncSendTimeout
	if timeout > 0 {
		remaining := timeout - time.Since(p.enqueued)
		if remaining <= 0 {
			return api.ErrOperationTimeout
		}
		_ = sq.s.tr.SetWriteDeadline(time.Now().Add(remaining))
		defer sq.s.tr.SetWriteDeadline(time.Time{})
	}
	return sq.s.sendData(p.opcode, p.payload)
}
