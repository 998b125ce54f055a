package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"rcrx/internal/capture"
	"rcrx/internal/config"
	"rcrx/internal/linkled"
	"rcrx/internal/logging"
	"rcrx/internal/metrics"
	"rcrx/internal/receiver"
	"rcrx/internal/rx/sumd"
	"rcrx/internal/udp"
	"rcrx/internal/web"
)

func main() {
	var (
		configPath string
		source     string
		device     string
	)
	flag.StringVar(&configPath, "config", "", "Path to YAML config, e.g. ./dev.yaml (defaults apply when empty)")
	flag.StringVar(&source, "source", "", "Override rx.source: serial, sim or replay")
	flag.StringVar(&device, "device", "", "Override rx.device")
	flag.Parse()

	cfg, err := loadConfig(configPath, source, device)
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}

	logs := web.NewLogBuffer(2000)
	logger, err := logging.New(cfg.Logging, logs)
	if err != nil {
		log.Fatalf("logger init failed: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, cfg, logger, logs); err != nil {
		logger.Error("rcrx stopped", zap.Error(err))
		os.Exit(1)
	}
}

func loadConfig(path, source, device string) (config.Config, error) {
	var raw []byte
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return config.Config{}, err
		}
		raw = b
	}
	cfg, err := config.Parse(raw)
	if err != nil {
		return config.Config{}, err
	}
	if source != "" {
		cfg.RX.Source = source
	}
	if device != "" {
		cfg.RX.Device = device
	}
	if err := cfg.Normalize(); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}

// run wires the receiver, sinks and status API, and blocks until ctx ends.
func run(ctx context.Context, cfg config.Config, logger *zap.Logger, logs *web.LogBuffer) error {
	instanceID := uuid.New().String()[:8]
	logger = logger.With(zap.String("instance", instanceID))

	reg := metrics.NewRegistry()
	rxm := metrics.NewRXMetrics(reg)

	var sinks []receiver.Sink
	if cfg.UDP.Enable {
		b, err := udp.NewBroadcaster(cfg.UDP.Dest)
		if err != nil {
			return fmt.Errorf("udp: %w", err)
		}
		sinks = append(sinks, udp.NewFrameSink(b, cfg.UDP.Interval))
		logger.Info("udp output enabled", zap.String("dest", cfg.UDP.Dest), zap.Duration("interval", cfg.UDP.Interval))
	}
	if cfg.LED.Enable {
		led, err := linkled.Open(cfg.LED.Chip, cfg.LED.Line)
		if err != nil {
			// The LED is cosmetic; keep running without it.
			logger.Warn("link led unavailable", zap.String("line", cfg.LED.Line), zap.Error(err))
		} else {
			sinks = append(sinks, led)
		}
	}

	var capw *capture.Writer
	if cfg.Capture.Enable {
		w, err := capture.CreateWriter(cfg.Capture.Path)
		if err != nil {
			return fmt.Errorf("capture: %w", err)
		}
		capw = w
		logger.Info("capturing raw serial", zap.String("path", cfg.Capture.Path), zap.String("session", w.Session()))
	}

	src, err := newSource(cfg, logger)
	if err != nil {
		return err
	}

	svc, err := receiver.New(receiver.Config{
		Format:          sumd.Format(cfg.RX.StaleTimeout),
		SourceName:      src.name,
		RefreshInterval: cfg.RX.RefreshInterval,
		FailsafeTimeout: cfg.RX.FailsafeTimeout,
		ErrorLogRate:    cfg.RX.ErrorLogRate,
		Capture:         capw,
	}, src.open, logger, rxm, sinks...)
	if err != nil {
		return err
	}
	defer svc.Close()

	if attached, err := svc.Start(ctx); !attached {
		// Keep serving status so the failure is visible remotely.
		logger.Error("receiver not attached", zap.Error(err))
	}

	if !cfg.HTTP.Enable {
		<-ctx.Done()
		return nil
	}

	srv := web.New(cfg.HTTP.Addr, web.Deps{
		Status:     svc.Snapshot,
		Metrics:    metrics.Handler(reg),
		Logs:       logs,
		InstanceID: instanceID,
	})
	logger.Info("status api listening", zap.String("addr", cfg.HTTP.Addr))
	if err := srv.Serve(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("http: %w", err)
	}
	return nil
}
