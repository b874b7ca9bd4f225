package transfer

import (
	"errors"
	"net"
	"os"
	"time"
)

// port performs one non-blocking transfer attempt. (0, nil) means the
// socket could not make progress right now; read reports io.EOF when the
// peer has closed.
type port interface {
	write(p []byte) (int, error)
	read(p []byte) (int, error)
}

// pollWindow bounds how long a deadline-driven attempt may wait.
const pollWindow = time.Millisecond

// deadlinePort emulates non-blocking I/O with short deadlines, for
// connections that expose no raw descriptor.
type deadlinePort struct {
	conn net.Conn
}

func (p deadlinePort) write(b []byte) (int, error) {
	if err := p.conn.SetWriteDeadline(time.Now().Add(pollWindow)); err != nil {
		return 0, err
	}
	n, err := p.conn.Write(b)
	if isTimeout(err) {
		return n, nil
	}
	return n, err
}

func (p deadlinePort) read(b []byte) (int, error) {
	if err := p.conn.SetReadDeadline(time.Now().Add(pollWindow)); err != nil {
		return 0, err
	}
	n, err := p.conn.Read(b)
	if isTimeout(err) {
		return n, nil
	}
	return n, err
}

func isTimeout(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, os.ErrDeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}
