// Package device enumerates the host network interfaces usable for transport
// and derives their properties.
//
// The interface table is read exactly once, when the Registry is built. A
// device's index in the registry is its GUID for the process lifetime.
package device

import (
	"net"
	"net/netip"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"bagua-net/internal/logger"
	"bagua-net/pkg/errs"
)

// Pointer support flags reported in Properties.PtrSupport.
const (
	PtrHost int32 = 1
	PtrCUDA int32 = 2
)

const (
	DefaultSpeedMbps int32 = 10000
	DefaultMaxComms  int32 = 65536

	// MaxNameLen is IFNAMSIZ less the terminating NUL.
	MaxNameLen = 15
)

type Device struct {
	Name    string
	Addr    netip.Addr
	PCIPath string
	GUID    uint64
}

type Properties struct {
	Name       string `json:"name"`
	PCIPath    string `json:"pci_path"`
	GUID       uint64 `json:"guid"`
	PtrSupport int32  `json:"ptr_support"`
	Speed      int32  `json:"speed"`
	Port       int32  `json:"port"`
	MaxComms   int32  `json:"max_comms"`
}

type Registry struct {
	devices      []Device
	sysfsRoot    string
	defaultSpeed int32
	maxComms     int32
	log          *logger.Logger
}

type options struct {
	source       Source
	sysfsRoot    string
	filter       []string
	defaultSpeed int32
	maxComms     int32
	log          *logger.Logger
}

type Option func(*options)

func WithSource(src Source) Option {
	return func(o *options) { o.source = src }
}

func WithSysfsRoot(root string) Option {
	return func(o *options) {
		if root != "" {
			o.sysfsRoot = root
		}
	}
}

// WithFilter restricts enumeration to interfaces selected by patterns, see
// Select.
func WithFilter(patterns []string) Option {
	return func(o *options) { o.filter = patterns }
}

func WithDefaultSpeed(mbps int) Option {
	return func(o *options) {
		if mbps > 0 {
			o.defaultSpeed = int32(mbps)
		}
	}
}

func WithMaxComms(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.maxComms = int32(n)
		}
	}
}

func WithLogger(log *logger.Logger) Option {
	return func(o *options) { o.log = log }
}

func New(opts ...Option) (*Registry, error) {
	o := options{
		source:       SystemSource,
		sysfsRoot:    "/sys",
		defaultSpeed: DefaultSpeedMbps,
		maxComms:     DefaultMaxComms,
	}
	for _, opt := range opts {
		opt(&o)
	}

	ifaces, err := o.source()
	if err != nil {
		return nil, errs.IO("enumerate interfaces", err)
	}

	r := &Registry{
		sysfsRoot:    o.sysfsRoot,
		defaultSpeed: o.defaultSpeed,
		maxComms:     o.maxComms,
		log:          o.log,
	}
	r.devices = enumerate(ifaces, o.filter, o.sysfsRoot, o.log)
	return r, nil
}

func (r *Registry) Len() int {
	return len(r.devices)
}

func (r *Registry) Devices() []Device {
	out := make([]Device, len(r.devices))
	copy(out, r.devices)
	return out
}

func (r *Registry) Device(id int) (Device, error) {
	if id < 0 || id >= len(r.devices) {
		return Device{}, errs.InvalidArgument("device", "device id %d out of range [0, %d)", id, len(r.devices))
	}
	return r.devices[id], nil
}

func (r *Registry) Properties(id int) (Properties, error) {
	dev, err := r.Device(id)
	if err != nil {
		return Properties{}, err
	}
	return Properties{
		Name:       dev.Name,
		PCIPath:    dev.PCIPath,
		GUID:       dev.GUID,
		PtrSupport: PtrHost,
		Speed:      r.Speed(dev.Name),
		Port:       0,
		MaxComms:   r.maxComms,
	}, nil
}

// Speed reads the link speed in Mbps from sysfs. Missing, unparsable and
// non-positive values (a down link reports -1) fall back to the default.
func (r *Registry) Speed(name string) int32 {
	path := filepath.Join(r.sysfsRoot, "class", "net", name, "speed")
	data, err := os.ReadFile(path)
	if err != nil {
		r.log.Debug("link speed unavailable, using default", map[string]any{"path": path, "default_mbps": r.defaultSpeed})
		return r.defaultSpeed
	}
	speed, err := strconv.ParseInt(strings.TrimSpace(string(data)), 10, 32)
	if err != nil || speed <= 0 {
		r.log.Debug("link speed unparsable, using default", map[string]any{"path": path, "value": strings.TrimSpace(string(data))})
		return r.defaultSpeed
	}
	return int32(speed)
}

func enumerate(ifaces []InterfaceAddrs, filter []string, sysfsRoot string, log *logger.Logger) []Device {
	var out []Device
	seen := map[string]bool{}
	for _, iface := range ifaces {
		for _, a := range iface.Addrs {
			addr, ok := ipOf(a)
			if !ok {
				log.Debug("skipping non-ip address", map[string]any{"interface": iface.Name, "addr": a.String()})
				continue
			}
			if iface.Flags&net.FlagLoopback != 0 {
				break
			}
			if len(iface.Name) > MaxNameLen {
				log.Warn("skipping interface with overlong name", map[string]any{"interface": iface.Name, "max": MaxNameLen})
				break
			}
			if seen[iface.Name] {
				break
			}
			if !Select(iface.Name, filter) {
				seen[iface.Name] = true
				break
			}
			if addr.Is6() && addr.IsLinkLocalUnicast() {
				addr = addr.WithZone(iface.Name)
			}
			seen[iface.Name] = true
			out = append(out, Device{
				Name:    iface.Name,
				Addr:    addr,
				PCIPath: filepath.Join(sysfsRoot, "class", "net", iface.Name, "device"),
				GUID:    uint64(len(out)),
			})
			log.Info("network device", map[string]any{"guid": len(out) - 1, "interface": iface.Name, "addr": addr.String()})
		}
	}
	return out
}

func ipOf(a net.Addr) (netip.Addr, bool) {
	var ip net.IP
	switch v := a.(type) {
	case *net.IPNet:
		ip = v.IP
	case *net.IPAddr:
		ip = v.IP
	default:
		return netip.Addr{}, false
	}
	addr, ok := netip.AddrFromSlice(ip)
	if !ok {
		return netip.Addr{}, false
	}
	return addr.Unmap(), true
}

// Select reports whether name passes the interface patterns. Entries
// prefixed with "^" exclude, all others include; a "=" prefix (after any
// "^") requires an exact match instead of a prefix match. With no include
// entries every non-excluded name is selected.
func Select(name string, patterns []string) bool {
	included := false
	hasInclude := false
	for _, p := range patterns {
		p = strings.TrimSpace(p)
		exclude := strings.HasPrefix(p, "^")
		p = strings.TrimPrefix(p, "^")
		exact := strings.HasPrefix(p, "=")
		p = strings.TrimPrefix(p, "=")
		if p == "" {
			continue
		}
		match := strings.HasPrefix(name, p)
		if exact {
			match = name == p
		}
		if exclude {
			if match {
				return false
			}
			continue
		}
		hasInclude = true
		if match {
			included = true
		}
	}
	return !hasInclude || included
}
