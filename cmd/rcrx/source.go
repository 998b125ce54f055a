package main

import (
	"fmt"

	"go.uber.org/zap"

	"rcrx/internal/capture"
	"rcrx/internal/config"
	"rcrx/internal/receiver"
	"rcrx/internal/serial"
	"rcrx/internal/sim"
)

type byteSource struct {
	name string
	open receiver.Opener
}

func newSource(cfg config.Config, logger *zap.Logger) (byteSource, error) {
	switch cfg.RX.Source {
	case config.SourceSerial:
		return byteSource{
			name: "serial " + cfg.RX.Device,
			open: func() (receiver.Source, error) {
				device := cfg.RX.Device
				if device == "auto" {
					device = serial.AutoDetect(serial.DefaultCandidates())
					if device == "" {
						return nil, fmt.Errorf("serial auto-detect failed: no UART found")
					}
				}
				logger.Info("opening serial", zap.String("device", device), zap.Int("baud", cfg.RX.Baud))
				return serial.Open(device, cfg.RX.Baud)
			},
		}, nil

	case config.SourceSim:
		tx := sim.Transmitter{
			Channels:      cfg.Sim.Channels,
			Period:        cfg.Sim.Period,
			FailsafeEvery: cfg.Sim.FailsafeEvery,
			FailsafeFor:   cfg.Sim.FailsafeFor,
			CorruptEvery:  cfg.Sim.CorruptEvery,
		}
		return byteSource{
			name: "sim",
			open: func() (receiver.Source, error) { return sim.NewSource(tx, 0), nil },
		}, nil

	case config.SourceReplay:
		recs, session, err := capture.ReadFile(cfg.Replay.Path)
		if err != nil {
			return byteSource{}, fmt.Errorf("replay: %w", err)
		}
		logger.Info("replay loaded",
			zap.String("path", cfg.Replay.Path),
			zap.String("session", session),
			zap.Int("records", len(recs)),
			zap.Float64("speed", cfg.Replay.Speed),
			zap.Bool("loop", cfg.Replay.Loop),
		)
		return byteSource{
			name: "replay " + cfg.Replay.Path,
			open: func() (receiver.Source, error) {
				return capture.NewSource(recs, cfg.Replay.Speed, cfg.Replay.Loop, nil, serial.ReadTimeout)
			},
		}, nil
	}
	return byteSource{}, fmt.Errorf("unknown rx.source %q", cfg.RX.Source)
}
