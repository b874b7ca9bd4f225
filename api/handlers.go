package api

import (
	"errors"
	"net/http"
	"strconv"

	"bagua-net/internal/metrics"
	"bagua-net/internal/observability"
	"bagua-net/pkg/backend"
	"bagua-net/pkg/device"
	"bagua-net/pkg/errs"

	"github.com/gin-gonic/gin"
)

type Handlers struct {
	Backend *backend.Backend
	Metrics *metrics.Metrics
	Events  *observability.Store
	Alerts  *observability.AlertStore
}

type deviceView struct {
	ID   int    `json:"id"`
	Addr string `json:"addr"`
	device.Properties
}

func (h *Handlers) deviceView(id int) (deviceView, error) {
	props, err := h.Backend.Properties(id)
	if err != nil {
		return deviceView{}, err
	}
	d, err := h.Backend.Device(id)
	if err != nil {
		return deviceView{}, err
	}
	return deviceView{ID: id, Addr: d.Addr.String(), Properties: props}, nil
}

func (h *Handlers) GetDevices(c *gin.Context) {
	n := h.Backend.Devices()
	out := make([]deviceView, 0, n)
	for i := 0; i < n; i++ {
		v, err := h.deviceView(i)
		if err != nil {
			writeError(c, err)
			return
		}
		out = append(out, v)
	}
	c.JSON(http.StatusOK, out)
}

func (h *Handlers) GetDevice(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid device id"})
		return
	}
	v, err := h.deviceView(id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, v)
}

func (h *Handlers) GetComms(c *gin.Context) {
	comms := h.Backend.Comms()
	if comms == nil {
		comms = []backend.CommInfo{}
	}
	c.JSON(http.StatusOK, comms)
}

func (h *Handlers) GetStats(c *gin.Context) {
	resp := gin.H{"backend": h.Backend.Stats()}
	if h.Metrics != nil {
		resp["metrics"] = h.Metrics.Snapshot()
	}
	c.JSON(http.StatusOK, resp)
}

func (h *Handlers) GetEvents(c *gin.Context) {
	if h.Events == nil {
		c.JSON(http.StatusOK, []observability.Event{})
		return
	}
	c.JSON(http.StatusOK, h.Events.List())
}

func (h *Handlers) GetAlerts(c *gin.Context) {
	if h.Alerts == nil {
		c.JSON(http.StatusOK, []observability.Alert{})
		return
	}
	c.JSON(http.StatusOK, h.Alerts.List())
}

func (h *Handlers) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "devices": h.Backend.Devices()})
}

func writeError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, errs.ErrInvalidArgument), errors.Is(err, errs.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, errs.ErrUnsupported):
		status = http.StatusNotImplemented
	}
	c.JSON(status, gin.H{"error": err.Error(), "code": errs.Code(err)})
}
