//go:build unix

package transfer

import (
	"io"
	"net"
	"syscall"

	"golang.org/x/sys/unix"
)

// rawPort issues read(2)/write(2) directly on the socket descriptor. The
// calls run inside RawConn.Read/Write, which pin the descriptor so a
// concurrent Close cannot release it mid-call.
type rawPort struct {
	rc syscall.RawConn
}

func newPort(conn net.Conn) (port, error) {
	sc, ok := conn.(syscall.Conn)
	if !ok {
		return deadlinePort{conn: conn}, nil
	}
	rc, err := sc.SyscallConn()
	if err != nil {
		return nil, err
	}
	var nbErr error
	if err := rc.Control(func(fd uintptr) {
		nbErr = unix.SetNonblock(int(fd), true)
	}); err != nil {
		return nil, err
	}
	if nbErr != nil {
		return nil, nbErr
	}
	return &rawPort{rc: rc}, nil
}

func (p *rawPort) write(b []byte) (int, error) {
	var n int
	var opErr error
	err := p.rc.Write(func(fd uintptr) bool {
		for {
			n, opErr = unix.Write(int(fd), b)
			if opErr != unix.EINTR {
				return true
			}
		}
	})
	if err != nil {
		return 0, err
	}
	if wouldBlock(opErr) {
		return 0, nil
	}
	if opErr != nil {
		return 0, opErr
	}
	return n, nil
}

func (p *rawPort) read(b []byte) (int, error) {
	var n int
	var opErr error
	err := p.rc.Read(func(fd uintptr) bool {
		for {
			n, opErr = unix.Read(int(fd), b)
			if opErr != unix.EINTR {
				return true
			}
		}
	})
	if err != nil {
		return 0, err
	}
	if wouldBlock(opErr) {
		return 0, nil
	}
	if opErr != nil {
		return 0, opErr
	}
	if n == 0 {
		return 0, io.EOF
	}
	return n, nil
}

func wouldBlock(err error) bool {
	return err == unix.EAGAIN || err == unix.EWOULDBLOCK
}
