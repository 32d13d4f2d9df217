package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/fako1024/progressor/pkg/api"
	"github.com/fako1024/progressor/pkg/config"
	"github.com/fako1024/progressor/pkg/emulator"
	"github.com/fako1024/progressor/pkg/hx711"
	"github.com/fako1024/progressor/pkg/mock"
	"github.com/fako1024/progressor/pkg/peripheral"
	"github.com/fako1024/progressor/pkg/scale"
	"github.com/fako1024/progressor/pkg/serialbridge"
	"github.com/fako1024/progressor/pkg/store"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", err)
		os.Exit(1)
	}
}

func run() error {

	// Parse command line options
	var (
		cfgPath   string
		useMock   bool
		transport string
		logLevel  string
	)
	flag.StringVar(&cfgPath, "config", config.DefaultConfigPath(), "path to the configuration file")
	flag.BoolVar(&useMock, "mock", false, "simulate the load cell (overrides mock.enabled)")
	flag.StringVar(&transport, "transport", "", "link to serve: ble, serial or none (overrides transport.kind)")
	flag.StringVar(&logLevel, "log-level", "", "log level (overrides log_level)")
	flag.Parse()

	cfg, err := config.Load(cfgPath)
	if err != nil {
		return err
	}
	if useMock {
		cfg.Mock.Enabled = true
	}
	if transport != "" {
		cfg.Transport.Kind = transport
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	logger := scale.NewDefaultLogger(cfg.LogLevel)
	defer func() {
		_ = logger.Sync()
	}()

	cell, err := newLoadCell(cfg, logger)
	if err != nil {
		return err
	}
	defer cell.PowerDown()

	calibrationStore, closeStore, err := newStore(cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	emuOptions := []func(*emulator.Emulator){
		emulator.WithProgressorID(cfg.Device.ID),
		emulator.WithAppVersion(cfg.Device.Version),
		emulator.WithPeriod(cfg.Sampling.Period),
		emulator.WithQueueSize(cfg.Sampling.QueueSize),
		emulator.WithTareSamples(cfg.HX711.TareSamples),
		emulator.WithCalibrationSamples(cfg.HX711.CalibrationSamples),
		emulator.WithLogger(logger),
	}
	if calibrationStore != nil {
		emuOptions = append(emuOptions, emulator.WithStore(calibrationStore))
	}
	emu, err := emulator.New(cell, emuOptions...)
	if err != nil {
		return fmt.Errorf("failed to initialize emulator: %w", err)
	}
	if err := emu.Restore(); err != nil {
		logger.Warnf("continuing with default calibration: %s", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	link, err := startLink(ctx, cfg, emu, logger)
	if err != nil {
		return err
	}
	if link != nil {
		link.SetStateChangeHandler(func(status scale.ConnectionStatus) {
			if status.Error != nil {
				logger.Warnf("link state changed to %s: %s", status.State, status.Error)
				return
			}
			logger.Infof("link state changed to %s", status.State)
		})
		defer func() {
			if err := link.Close(); err != nil {
				logger.Warnf("failed to close link: %s", err)
			}
		}()
	}

	if cfg.API.Listen != "" {
		apiOptions := []func(*api.API){api.WithLogger(logger)}
		if link != nil {
			apiOptions = append(apiOptions, api.WithLink(link))
		}
		srv := api.New(emu, apiOptions...)
		emu.SetReadingHandler(srv.HandleReading)
		go func() {
			if err := srv.Listen(cfg.API.Listen); err != nil {
				logger.Errorf("API terminated: %s", err)
			}
		}()
		defer func() {
			_ = srv.Shutdown()
		}()
	}

	logger.Infof("emulating `%s` (id %#x, version %s)", cfg.Device.Name, cfg.Device.ID, cfg.Device.Version)

	if err := emu.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	logger.Info("got signal, shutting down")

	return nil
}

func newLoadCell(cfg *config.Config, logger scale.Logger) (*hx711.Device, error) {
	gain, err := hx711.ParseGainMode(cfg.HX711.Gain)
	if err != nil {
		return nil, err
	}

	var (
		clock hx711.ClockPin
		data  hx711.DataPin
	)
	if cfg.Mock.Enabled {
		chip := mock.NewGenerator(mock.PullCurve(cfg.Mock.Zero, cfg.Mock.CountsPerKg, cfg.Mock.PeakKg, cfg.Mock.Period, cfg.Mock.Noise), mock.DefaultConversionInterval)
		clock, data = chip, chip
		logger.Info("using simulated load cell")
	} else {
		c, d, err := hx711.NewPeriphPins(cfg.HX711.ClockPin, cfg.HX711.DataPin)
		if err != nil {
			return nil, err
		}
		clock, data = c, d
	}

	return hx711.New(clock, data,
		hx711.WithGainMode(gain),
		hx711.WithPulseDelay(cfg.HX711.PulseDelay),
		hx711.WithMeasurementSamples(cfg.HX711.MeasurementSamples),
		hx711.WithCalibration(scale.Calibration{
			Factor: cfg.HX711.Factor,
			Offset: cfg.HX711.Offset,
		}),
		hx711.WithLogger(logger),
	), nil
}

func newStore(cfg *config.Config) (store.Store, func(), error) {
	switch cfg.Store.Kind {
	case config.StoreFile:
		return store.NewFileStore(cfg.Store.Path), func() {}, nil
	case config.StoreRedis:
		s := store.NewRedisStore(cfg.Store.RedisAddr, cfg.Store.RedisKey)
		if err := s.Ping(); err != nil {
			_ = s.Close()
			return nil, nil, fmt.Errorf("failed to connect to redis at %s: %w", cfg.Store.RedisAddr, err)
		}
		return s, func() { _ = s.Close() }, nil
	}

	return nil, func() {}, nil
}

func startLink(ctx context.Context, cfg *config.Config, emu *emulator.Emulator, logger scale.Logger) (scale.Link, error) {
	switch cfg.Transport.Kind {
	case config.TransportBLE:
		p, err := peripheral.New(emu,
			peripheral.WithDeviceName(cfg.Device.Name),
			peripheral.WithLogger(logger),
		)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize bluetooth peripheral: %w", err)
		}
		return p, nil

	case config.TransportSerial:
		b, err := serialbridge.Open(cfg.Transport.Port, cfg.Transport.BaudRate, emu, serialbridge.WithLogger(logger))
		if err != nil {
			return nil, err
		}
		go func() {
			if err := b.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Errorf("serial link terminated: %s", err)
			}
		}()
		return b, nil
	}

	// Without a link, data points are only logged
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case dp := <-emu.Outbox().C():
				logger.Debugf("data point: %s", dp)
			}
		}
	}()

	return nil, nil
}
