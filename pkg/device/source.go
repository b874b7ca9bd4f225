package device

import "net"

// InterfaceAddrs is one row of the OS interface address table.
type InterfaceAddrs struct {
	Name  string
	Flags net.Flags
	Addrs []net.Addr
}

type Source func() ([]InterfaceAddrs, error)

// SystemSource reads the host interface table. Interfaces whose addresses
// cannot be listed are reported without addresses and so never become
// devices.
func SystemSource() ([]InterfaceAddrs, error) {
	ifaces, err := net.Interfaces()
	if err != nil {
		return nil, err
	}
	out := make([]InterfaceAddrs, 0, len(ifaces))
	for _, iface := range ifaces {
		addrs, err := iface.Addrs()
		if err != nil {
			addrs = nil
		}
		out = append(out, InterfaceAddrs{Name: iface.Name, Flags: iface.Flags, Addrs: addrs})
	}
	return out, nil
}

// StaticSource serves a fixed table.
func StaticSource(ifaces ...InterfaceAddrs) Source {
	return func() ([]InterfaceAddrs, error) {
		return ifaces, nil
	}
}
