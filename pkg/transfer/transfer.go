// Package transfer moves bytes over established streams without blocking
// the caller.
//
// Send and Recv return a Request at once; the caller polls Request.Test
// until it reports Complete or Failed. Each Stream keeps its requests in a
// FIFO queue and only ever transfers bytes for the queue head, so the bytes
// of concurrent requests against one stream are never interleaved. The
// offset of the head request survives any number of polls.
package transfer

import (
	"errors"
	"io"
	"net"
	"sync"

	"bagua-net/pkg/errs"
)

type State int

const (
	Pending State = iota
	Complete
	Failed
)

func (s State) String() string {
	switch s {
	case Pending:
		return "pending"
	case Complete:
		return "complete"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// Status is the outcome of one poll. Bytes counts what has been moved so
// far; Err is set only when State is Failed.
type Status struct {
	State State
	Bytes int
	Err   error
}

type Direction int

const (
	Send Direction = iota
	Recv
)

func (d Direction) String() string {
	if d == Send {
		return "send"
	}
	return "recv"
}

type Stream struct {
	mu     sync.Mutex
	dir    Direction
	conn   net.Conn
	port   port
	queue  []*Request
	closed bool
	err    error
}

type Request struct {
	stream *Stream
	buf    []byte
	done   int
	state  State
	err    error
}

// NewStream takes ownership of conn and switches it to non-blocking mode.
func NewStream(conn net.Conn, dir Direction) (*Stream, error) {
	p, err := newPort(conn)
	if err != nil {
		return nil, errs.IO("set nonblocking", err)
	}
	return &Stream{dir: dir, conn: conn, port: p}, nil
}

func (s *Stream) Direction() Direction {
	return s.dir
}

func (s *Stream) LocalAddr() net.Addr {
	return s.conn.LocalAddr()
}

func (s *Stream) RemoteAddr() net.Addr {
	return s.conn.RemoteAddr()
}

// Submit queues buf for transfer and makes one attempt at progress. For a
// send stream buf is written out; for a recv stream it is filled. The caller
// must not touch buf until the request reaches a terminal state.
func (s *Stream) Submit(buf []byte) *Request {
	r := &Request{stream: s, buf: buf}

	s.mu.Lock()
	defer s.mu.Unlock()
	switch {
	case s.closed:
		r.state = Failed
		r.err = errs.NotFound(s.dir.String(), "communicator closed")
	case s.err != nil:
		r.state = Failed
		r.err = s.err
	default:
		s.queue = append(s.queue, r)
		s.progressLocked()
	}
	return r
}

// Pending is the number of queued, unfinished requests.
func (s *Stream) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queue)
}

// Close fails every queued request and releases the socket. Requests polled
// afterwards report Failed with a NotFound cause.
func (s *Stream) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.failLocked(errs.NotFound(s.dir.String(), "communicator closed"))
	s.mu.Unlock()

	if err := s.conn.Close(); err != nil {
		return errs.IO("close", err)
	}
	return nil
}

func (s *Stream) progressLocked() {
	for len(s.queue) > 0 {
		r := s.queue[0]
		if r.done < len(r.buf) {
			n, err := s.attempt(r.buf[r.done:])
			r.done += n
			if err != nil {
				if errors.Is(err, io.EOF) {
					err = io.ErrUnexpectedEOF
				}
				s.err = errs.IO(s.dir.String(), err)
				s.failLocked(s.err)
				return
			}
			if r.done < len(r.buf) {
				if n == 0 {
					return
				}
				continue
			}
		}
		r.state = Complete
		s.queue[0] = nil
		s.queue = s.queue[1:]
	}
}

func (s *Stream) attempt(p []byte) (int, error) {
	if s.dir == Send {
		return s.port.write(p)
	}
	return s.port.read(p)
}

func (s *Stream) failLocked(err error) {
	for _, r := range s.queue {
		r.state = Failed
		r.err = err
	}
	s.queue = nil
}

// Test drives the stream forward and reports this request's state.
func (r *Request) Test() Status {
	s := r.stream
	s.mu.Lock()
	defer s.mu.Unlock()

	if r.state == Pending && !s.closed {
		s.progressLocked()
	}
	return Status{State: r.state, Bytes: r.done, Err: r.err}
}

func (r *Request) Direction() Direction {
	return r.stream.dir
}

func (r *Request) Len() int {
	return len(r.buf)
}
