package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"bagua-net/api"
	"bagua-net/internal/config"
	"bagua-net/internal/logger"
	"bagua-net/internal/metrics"
	"bagua-net/internal/observability"
	"bagua-net/pkg/backend"
	"bagua-net/pkg/integrations/logs"

	"github.com/gin-gonic/gin"
)

func main() {
	configPath := flag.String("config", "", "path to config file; empty uses defaults and BAGUA_NET_* env")
	selftest := flag.Bool("selftest", false, "run a loopback transfer on -device and exit")
	dev := flag.Int("device", 0, "device used by -selftest")
	size := flag.Int("size", 64<<20, "payload size in bytes for -selftest")
	flag.Parse()

	if err := run(*configPath, *selftest, *dev, *size); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(configPath string, selftest bool, dev, size int) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log := logger.New(cfg.Logging.Level)
	defer log.Sync()
	events := observability.NewStore(cfg.Observability.EventHistory)
	log.AddHook(events.Hook())
	log.AddHook(logs.NewLokiHook(ctx, cfg.Logging.LokiURL))
	log.AddHook(logs.NewElasticHook(ctx, cfg.Logging.ElasticURL))
	log.Info("config loaded", map[string]any{"path": configPath})

	metricsSrv := metrics.New()
	b, err := backend.New(
		backend.WithTransportConfig(cfg.Transport),
		backend.WithLogger(log),
		backend.WithRecorder(metricsSrv),
	)
	if err != nil {
		return fmt.Errorf("init backend: %w", err)
	}
	defer b.Close()

	if selftest {
		res, err := runSelfTest(ctx, b, dev, size)
		if err != nil {
			return fmt.Errorf("selftest: %w", err)
		}
		log.Info("selftest passed", res.fields())
		return nil
	}

	logDevices(b, log)
	if b.Devices() == 0 {
		log.Warn("no usable network devices", map[string]any{"interfaces": cfg.Transport.Interfaces})
	}

	go func() {
		if err := metrics.StartServer(ctx, cfg.Metrics); err != nil {
			log.Error("metrics server error", map[string]any{"err": err.Error()})
		}
	}()
	metrics.StartRemoteWrite(ctx, cfg.MetricsExport, metricsSrv, log)

	alerts := observability.NewAlertStore(cfg.Observability.AlertHistory)
	observability.StartAlerts(ctx,
		time.Duration(cfg.Observability.AlertIntervalSeconds)*time.Second,
		observability.AlertsConfig{
			ErrorsThreshold:         cfg.Observability.ErrorsThreshold,
			FailedRequestsThreshold: cfg.Observability.FailedRequestsThreshold,
		},
		metricsSrv, alerts, log)

	if cfg.API.Enabled {
		gin.SetMode(gin.ReleaseMode)
		router := api.NewRouter(cfg.API, &api.Handlers{
			Backend: b,
			Metrics: metricsSrv,
			Events:  events,
			Alerts:  alerts,
		}, log)
		srv := &http.Server{Addr: cfg.API.Address, Handler: router}
		go func() {
			<-ctx.Done()
			_ = srv.Close()
		}()
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error("api server error", map[string]any{"err": err.Error()})
			}
		}()
		log.Info("api listening", map[string]any{"addr": cfg.API.Address, "pprof": cfg.API.Pprof})
	}

	<-ctx.Done()
	st := b.Stats()
	log.Info("shutdown", map[string]any{"listen": st.Listen, "send": st.Send, "recv": st.Recv, "requests": st.Requests})
	return nil
}

func logDevices(b *backend.Backend, log *logger.Logger) {
	for i := 0; i < b.Devices(); i++ {
		props, err := b.Properties(i)
		if err != nil {
			log.Warn("device properties unavailable", map[string]any{"device": i, "err": err.Error()})
			continue
		}
		log.Info("device", map[string]any{
			"id":        i,
			"name":      props.Name,
			"speed":     props.Speed,
			"pci_path":  props.PCIPath,
			"max_comms": props.MaxComms,
		})
	}
}
