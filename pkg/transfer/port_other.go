//go:build !unix

package transfer

import "net"

func newPort(conn net.Conn) (port, error) {
	return deadlinePort{conn: conn}, nil
}
