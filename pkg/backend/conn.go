package backend

import (
	"errors"
	"net"
	"net/netip"

	"bagua-net/pkg/errs"
	"bagua-net/pkg/handles"
	"bagua-net/pkg/network"
	"bagua-net/pkg/transfer"
)

func tcpAddr(a netip.Addr, port uint16) *net.TCPAddr {
	return &net.TCPAddr{IP: a.AsSlice(), Port: int(port), Zone: a.Zone()}
}

func tcpNetwork(a netip.Addr) string {
	if a.Unmap().Is4() {
		return "tcp4"
	}
	return "tcp6"
}

// Listen opens a listener on an ephemeral port of the device address and
// returns the handle a peer needs to reach it.
func (b *Backend) Listen(dev int) (network.SocketHandle, handles.ID, error) {
	const op = "listen"
	d, err := b.devices.Device(dev)
	if err != nil {
		return network.SocketHandle{}, handles.Invalid, b.fail(op, err)
	}

	ln, err := net.ListenTCP(tcpNetwork(d.Addr), tcpAddr(d.Addr, 0))
	if err != nil {
		return network.SocketHandle{}, handles.Invalid, b.fail(op, errs.IO(op, err))
	}
	h, err := network.HandleFromAddr(ln.Addr())
	if err != nil {
		_ = ln.Close()
		return network.SocketHandle{}, handles.Invalid, b.fail(op, err)
	}

	id, err := b.register(op, &listenComm{dev: dev, ln: ln})
	if err != nil {
		return network.SocketHandle{}, handles.Invalid, b.fail(op, err)
	}
	b.log.Info("listening", map[string]any{"device": d.Name, "addr": h.String(), "id": id.String()})
	return h, id, nil
}

// Connect dials the listener described by h and returns a send
// communicator.
func (b *Backend) Connect(dev int, h network.SocketHandle) (handles.ID, error) {
	const op = "connect"
	d, err := b.devices.Device(dev)
	if err != nil {
		return handles.Invalid, b.fail(op, err)
	}
	if !h.Addr.IsValid() || h.Addr.Port() == 0 {
		return handles.Invalid, b.fail(op, errs.InvalidArgument(op, "invalid peer handle %q", h.String()))
	}

	var dialer net.Dialer
	if b.bindConnect && d.Addr.Unmap().Is4() == h.Addr.Addr().Unmap().Is4() {
		dialer.LocalAddr = tcpAddr(d.Addr, 0)
	}
	conn, err := dialer.Dial(tcpNetwork(h.Addr.Addr()), h.TCPAddr().String())
	if err != nil {
		return handles.Invalid, b.fail(op, errs.IO(op, err))
	}
	stream, err := transfer.NewStream(conn, transfer.Send)
	if err != nil {
		_ = conn.Close()
		return handles.Invalid, b.fail(op, err)
	}

	id, err := b.register(op, &sendComm{dev: dev, stream: stream})
	if err != nil {
		return handles.Invalid, b.fail(op, err)
	}
	b.log.Info("connected", map[string]any{
		"device": d.Name,
		"local":  conn.LocalAddr().String(),
		"peer":   h.String(),
		"id":     id.String(),
	})
	return id, nil
}

// Accept blocks until a peer connects to the listener and returns a recv
// communicator with the peer's address. If the listener is closed while
// Accept waits, Accept returns NotFound.
func (b *Backend) Accept(listenID handles.ID) (handles.ID, netip.AddrPort, error) {
	const op = "accept"
	c, err := b.lookup(op, listenID, KindListen)
	if err != nil {
		return handles.Invalid, netip.AddrPort{}, b.fail(op, err)
	}
	lc := c.(*listenComm)

	conn, err := lc.ln.AcceptTCP()
	if err != nil {
		if _, live := b.comms.Get(listenID); !live || errors.Is(err, net.ErrClosed) {
			return handles.Invalid, netip.AddrPort{}, b.fail(op, errs.NotFound(op, "listen communicator %d closed", uint64(listenID)))
		}
		return handles.Invalid, netip.AddrPort{}, b.fail(op, errs.IO(op, err))
	}

	peer := conn.RemoteAddr().(*net.TCPAddr).AddrPort()
	peer = netip.AddrPortFrom(peer.Addr().Unmap(), peer.Port())
	stream, err := transfer.NewStream(conn, transfer.Recv)
	if err != nil {
		_ = conn.Close()
		return handles.Invalid, netip.AddrPort{}, b.fail(op, err)
	}

	id, err := b.register(op, &recvComm{dev: lc.dev, stream: stream, peer: peer})
	if err != nil {
		return handles.Invalid, netip.AddrPort{}, b.fail(op, err)
	}
	b.log.Info("accepted", map[string]any{"listener": listenID.String(), "peer": peer.String(), "id": id.String()})
	return id, peer, nil
}

func (b *Backend) CloseListen(id handles.ID) error {
	return b.closeComm("close_listen", id, KindListen)
}

// CloseSend fails any queued send requests and releases the connection.
func (b *Backend) CloseSend(id handles.ID) error {
	return b.closeComm("close_send", id, KindSend)
}

func (b *Backend) CloseRecv(id handles.ID) error {
	return b.closeComm("close_recv", id, KindRecv)
}

func (b *Backend) closeComm(op string, id handles.ID, kind Kind) error {
	c, ok := b.comms.RemoveIf(id, func(c comm) bool { return c.kind() == kind })
	if !ok {
		return b.fail(op, errs.NotFound(op, "no %s communicator %d", kind, uint64(id)))
	}
	b.rec.CommClosed(kind.String())
	if err := c.close(); err != nil {
		b.log.Warn("close failed", map[string]any{"op": op, "id": id.String(), "err": err.Error()})
		return b.fail(op, err)
	}
	b.log.Info("communicator closed", map[string]any{"kind": kind.String(), "id": id.String()})
	return nil
}

// Comms lists every live communicator.
func (b *Backend) Comms() []CommInfo {
	var out []CommInfo
	b.comms.Range(func(id handles.ID, c comm) bool {
		info := c.info()
		info.ID = uint64(id)
		out = append(out, info)
		return true
	})
	return out
}
