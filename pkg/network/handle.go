package network

import (
	"encoding/binary"
	"net"
	"net/netip"
	"strconv"
	"syscall"

	"bagua-net/pkg/errs"
)

const (
	// HandleMaxSize is the size of the opaque handle slot the host runtime
	// reserves for a SocketHandle.
	HandleMaxSize = 64

	sockaddrInetLen  = 16
	sockaddrInet6Len = 28
)

// SocketHandle is the address a listener is reachable at. It is produced by
// Listen, carried to the peer out of band, and consumed by Connect.
type SocketHandle struct {
	Addr netip.AddrPort
}

func (h SocketHandle) String() string {
	return h.Addr.String()
}

func (h SocketHandle) Family() int {
	if h.Addr.Addr().Is4() {
		return syscall.AF_INET
	}
	return syscall.AF_INET6
}

// TCPAddr converts the handle to a dialable address.
func (h SocketHandle) TCPAddr() *net.TCPAddr {
	return net.TCPAddrFromAddrPort(h.Addr)
}

func HandleFromAddr(addr net.Addr) (SocketHandle, error) {
	tcp, ok := addr.(*net.TCPAddr)
	if !ok {
		return SocketHandle{}, errs.Unsupported("handle", "address type %T", addr)
	}
	ap := tcp.AddrPort()
	return SocketHandle{Addr: netip.AddrPortFrom(ap.Addr().Unmap(), ap.Port())}, nil
}

// MarshalBinary encodes the handle as a raw sockaddr_in or sockaddr_in6:
// family in host byte order, port in network byte order, IPv6 scope id from
// the address zone.
func (h SocketHandle) MarshalBinary() ([]byte, error) {
	addr := h.Addr.Addr()
	if !addr.IsValid() {
		return nil, errs.InvalidArgument("marshal handle", "invalid address")
	}
	if addr.Is4() || addr.Is4In6() {
		buf := make([]byte, sockaddrInetLen)
		binary.NativeEndian.PutUint16(buf[0:2], uint16(syscall.AF_INET))
		binary.BigEndian.PutUint16(buf[2:4], h.Addr.Port())
		ip := addr.Unmap().As4()
		copy(buf[4:8], ip[:])
		return buf, nil
	}

	scope, err := scopeID(addr.Zone())
	if err != nil {
		return nil, err
	}
	buf := make([]byte, sockaddrInet6Len)
	binary.NativeEndian.PutUint16(buf[0:2], uint16(syscall.AF_INET6))
	binary.BigEndian.PutUint16(buf[2:4], h.Addr.Port())
	ip := addr.As16()
	copy(buf[8:24], ip[:])
	binary.NativeEndian.PutUint32(buf[24:28], scope)
	return buf, nil
}

// UnmarshalBinary decodes a raw sockaddr. Trailing bytes beyond the family's
// structure size are ignored so a full handle slot can be passed as is.
func (h *SocketHandle) UnmarshalBinary(data []byte) error {
	if len(data) < 2 {
		return errs.InvalidArgument("unmarshal handle", "need at least 2 bytes, got %d", len(data))
	}
	family := int(binary.NativeEndian.Uint16(data[0:2]))
	switch family {
	case syscall.AF_INET:
		if len(data) < sockaddrInetLen {
			return errs.InvalidArgument("unmarshal handle", "sockaddr_in needs %d bytes, got %d", sockaddrInetLen, len(data))
		}
		port := binary.BigEndian.Uint16(data[2:4])
		addr := netip.AddrFrom4([4]byte(data[4:8]))
		h.Addr = netip.AddrPortFrom(addr, port)
		return nil
	case syscall.AF_INET6:
		if len(data) < sockaddrInet6Len {
			return errs.InvalidArgument("unmarshal handle", "sockaddr_in6 needs %d bytes, got %d", sockaddrInet6Len, len(data))
		}
		port := binary.BigEndian.Uint16(data[2:4])
		addr := netip.AddrFrom16([16]byte(data[8:24]))
		if scope := binary.NativeEndian.Uint32(data[24:28]); scope != 0 {
			addr = addr.WithZone(strconv.FormatUint(uint64(scope), 10))
		}
		h.Addr = netip.AddrPortFrom(addr, port)
		return nil
	default:
		return errs.Unsupported("unmarshal handle", "address family %d", family)
	}
}

func scopeID(zone string) (uint32, error) {
	if zone == "" {
		return 0, nil
	}
	if n, err := strconv.ParseUint(zone, 10, 32); err == nil {
		return uint32(n), nil
	}
	iface, err := net.InterfaceByName(zone)
	if err != nil {
		return 0, errs.InvalidArgument("marshal handle", "unknown zone %q", zone)
	}
	return uint32(iface.Index), nil
}
