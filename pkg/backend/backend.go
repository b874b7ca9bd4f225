// Package backend is the socket transport engine driven by the host
// runtime. A Backend owns its device registry and every communicator it
// creates; several Backends may coexist in one process.
//
// All communicators live in one handle table keyed by opaque IDs. The table
// lock covers bookkeeping only: blocking accepts and socket I/O run without
// it, and each stream serializes its own I/O behind a per-stream lock.
package backend

import (
	"sync/atomic"

	"bagua-net/internal/config"
	"bagua-net/internal/logger"
	"bagua-net/pkg/device"
	"bagua-net/pkg/errs"
	"bagua-net/pkg/handles"
	"bagua-net/pkg/transfer"
)

// Recorder receives lifecycle and transfer events, typically for metrics.
type Recorder interface {
	CommOpened(kind string)
	CommClosed(kind string)
	RequestDone(op string, bytes int, err error)
	OpFailed(op string, err error)
}

type nopRecorder struct{}

func (nopRecorder) CommOpened(string)              {}
func (nopRecorder) CommClosed(string)              {}
func (nopRecorder) RequestDone(string, int, error) {}
func (nopRecorder) OpFailed(string, error)         {}

type Backend struct {
	devices     *device.Registry
	comms       *handles.Table[comm]
	requests    *handles.Table[*request]
	bindConnect bool
	log         *logger.Logger
	rec         Recorder
	closed      atomic.Bool
}

type request struct {
	req  *transfer.Request
	comm handles.ID
}

type options struct {
	deviceOpts  []device.Option
	bindConnect bool
	log         *logger.Logger
	rec         Recorder
}

type Option func(*options)

func WithDeviceOptions(opts ...device.Option) Option {
	return func(o *options) { o.deviceOpts = append(o.deviceOpts, opts...) }
}

// WithBindConnect controls whether Connect binds the local endpoint to the
// device address when the address families match.
func WithBindConnect(enabled bool) Option {
	return func(o *options) { o.bindConnect = enabled }
}

func WithLogger(log *logger.Logger) Option {
	return func(o *options) { o.log = log }
}

func WithRecorder(rec Recorder) Option {
	return func(o *options) { o.rec = rec }
}

// WithTransportConfig applies the transport section of the config file.
func WithTransportConfig(cfg config.TransportConfig) Option {
	return func(o *options) {
		o.bindConnect = cfg.BindConnect
		o.deviceOpts = append(o.deviceOpts,
			device.WithFilter(cfg.Interfaces),
			device.WithSysfsRoot(cfg.SysfsRoot),
			device.WithDefaultSpeed(cfg.DefaultSpeedMbps),
			device.WithMaxComms(cfg.MaxComms),
		)
	}
}

// New enumerates devices and returns a ready backend.
func New(opts ...Option) (*Backend, error) {
	o := options{bindConnect: true, rec: nopRecorder{}}
	for _, opt := range opts {
		opt(&o)
	}
	if o.rec == nil {
		o.rec = nopRecorder{}
	}

	devOpts := append([]device.Option{device.WithLogger(o.log)}, o.deviceOpts...)
	reg, err := device.New(devOpts...)
	if err != nil {
		return nil, err
	}
	o.log.Info("backend ready", map[string]any{"devices": reg.Len(), "bind_connect": o.bindConnect})

	return &Backend{
		devices:     reg,
		comms:       handles.NewTable[comm](),
		requests:    handles.NewTable[*request](),
		bindConnect: o.bindConnect,
		log:         o.log,
		rec:         o.rec,
	}, nil
}

func (b *Backend) Devices() int {
	return b.devices.Len()
}

func (b *Backend) Device(id int) (device.Device, error) {
	return b.devices.Device(id)
}

func (b *Backend) Properties(id int) (device.Properties, error) {
	props, err := b.devices.Properties(id)
	if err != nil {
		b.rec.OpFailed("properties", err)
		return device.Properties{}, err
	}
	return props, nil
}

// Close releases every communicator and request. Every later operation on
// an ID fails NotFound.
func (b *Backend) Close() error {
	if !b.closed.CompareAndSwap(false, true) {
		return nil
	}
	var firstErr error
	b.comms.Range(func(id handles.ID, c comm) bool {
		if _, ok := b.comms.Remove(id); !ok {
			return true
		}
		if err := c.close(); err != nil && firstErr == nil {
			firstErr = err
		}
		b.rec.CommClosed(c.kind().String())
		return true
	})
	b.requests.Range(func(id handles.ID, _ *request) bool {
		b.requests.Remove(id)
		return true
	})
	b.log.Info("backend closed", nil)
	return firstErr
}

type Stats struct {
	Devices  int `json:"devices"`
	Listen   int `json:"listen"`
	Send     int `json:"send"`
	Recv     int `json:"recv"`
	Requests int `json:"requests"`
}

func (b *Backend) Stats() Stats {
	s := Stats{Devices: b.devices.Len(), Requests: b.requests.Len()}
	b.comms.Range(func(_ handles.ID, c comm) bool {
		switch c.kind() {
		case KindListen:
			s.Listen++
		case KindSend:
			s.Send++
		case KindRecv:
			s.Recv++
		}
		return true
	})
	return s
}

// register stores c unless the backend is closed, in which case c is
// released and the caller gets NotFound.
func (b *Backend) register(op string, c comm) (handles.ID, error) {
	if b.closed.Load() {
		_ = c.close()
		return handles.Invalid, errs.NotFound(op, "backend closed")
	}
	id := b.comms.Insert(c)
	if b.closed.Load() {
		if _, ok := b.comms.Remove(id); ok {
			_ = c.close()
		}
		return handles.Invalid, errs.NotFound(op, "backend closed")
	}
	b.rec.CommOpened(c.kind().String())
	return id, nil
}

func (b *Backend) lookup(op string, id handles.ID, kind Kind) (comm, error) {
	c, ok := b.comms.Get(id)
	if !ok || c.kind() != kind {
		return nil, errs.NotFound(op, "no %s communicator %d", kind, uint64(id))
	}
	return c, nil
}

func (b *Backend) fail(op string, err error) error {
	b.rec.OpFailed(op, err)
	b.log.Debug("operation failed", map[string]any{"op": op, "kind": errs.KindName(err), "err": err.Error()})
	return err
}
