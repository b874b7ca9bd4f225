package backend

import (
	"net"
	"net/netip"

	"bagua-net/pkg/errs"
	"bagua-net/pkg/transfer"
)

type Kind int

const (
	KindListen Kind = iota
	KindSend
	KindRecv
)

func (k Kind) String() string {
	switch k {
	case KindListen:
		return "listen"
	case KindSend:
		return "send"
	case KindRecv:
		return "recv"
	default:
		return "unknown"
	}
}

type comm interface {
	kind() Kind
	close() error
	info() CommInfo
}

// CommInfo describes a live communicator.
type CommInfo struct {
	ID      uint64 `json:"id"`
	Kind    string `json:"kind"`
	Device  int    `json:"device"`
	Local   string `json:"local"`
	Remote  string `json:"remote,omitempty"`
	Pending int    `json:"pending"`
}

type listenComm struct {
	dev int
	ln  *net.TCPListener
}

func (c *listenComm) kind() Kind { return KindListen }

func (c *listenComm) close() error {
	return errs.IO("close listen", c.ln.Close())
}

func (c *listenComm) info() CommInfo {
	return CommInfo{Kind: KindListen.String(), Device: c.dev, Local: c.ln.Addr().String()}
}

type sendComm struct {
	dev    int
	stream *transfer.Stream
}

func (c *sendComm) kind() Kind { return KindSend }

func (c *sendComm) close() error {
	return c.stream.Close()
}

func (c *sendComm) info() CommInfo {
	return CommInfo{
		Kind:    KindSend.String(),
		Device:  c.dev,
		Local:   c.stream.LocalAddr().String(),
		Remote:  c.stream.RemoteAddr().String(),
		Pending: c.stream.Pending(),
	}
}

type recvComm struct {
	dev    int
	stream *transfer.Stream
	peer   netip.AddrPort
}

func (c *recvComm) kind() Kind { return KindRecv }

func (c *recvComm) close() error {
	return c.stream.Close()
}

func (c *recvComm) info() CommInfo {
	return CommInfo{
		Kind:    KindRecv.String(),
		Device:  c.dev,
		Local:   c.stream.LocalAddr().String(),
		Remote:  c.peer.String(),
		Pending: c.stream.Pending(),
	}
}
