// Package app wires the two deployable variants: the local meter and the
// MQTT-connected gateway.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"luxgate/internal/config"
	"luxgate/internal/i2cbus"
	"luxgate/internal/poller"
	"luxgate/internal/statusled"
	"luxgate/internal/store"
	"luxgate/internal/telemetry"
	"luxgate/internal/tsl2561"
)

// initSensor opens the I2C bus, powers the sensor ADC up and verifies the
// device identity. Both steps are fatal: without a verified sensor neither
// variant can do anything useful.
func initSensor(cfg config.Config, logger *slog.Logger) (*i2cbus.Bus, *tsl2561.Driver, error) {
	bus, err := i2cbus.Open(cfg.I2CBus, cfg.SensorAddress, logger)
	if err != nil {
		return nil, nil, exitErr(ExitBusOpen, err)
	}

	drv := tsl2561.New(bus, logger)
	if err := drv.PowerUp(); err != nil {
		closeQuietly(bus.Close, "i2c bus", logger)
		return nil, nil, exitErr(ExitPowerUp, err)
	}
	if err := drv.Identify(); err != nil {
		closeQuietly(bus.Close, "i2c bus", logger)
		return nil, nil, exitErr(ExitIdentity, err)
	}
	return bus, drv, nil
}

// closeQuietly releases a resource during shutdown. Release failures are
// logged, never escalated to a different exit status.
func closeQuietly(close func() error, name string, logger *slog.Logger) {
	if err := close(); err != nil {
		logger.Error("close failed", "resource", name, "error", err)
	}
}

// RunMeter polls the sensor on a fixed period and logs every reading,
// optionally persisting them.
func RunMeter(ctx context.Context, cfg config.Config, logger *slog.Logger) error {
	logger.Info("initializing meter",
		"i2c_bus", cfg.I2CBus,
		"poll_interval", cfg.PollInterval.String(),
	)

	bus, drv, err := initSensor(cfg, logger)
	if err != nil {
		return err
	}
	defer closeQuietly(bus.Close, "i2c bus", logger)

	var st *store.Store
	if cfg.ReadingsDB != "" {
		st, err = store.Open(cfg.ReadingsDB)
		if err != nil {
			return exitErr(ExitStore, err)
		}
		defer closeQuietly(st.Close, "readings store", logger)
		logger.Info("readings store open", "path", cfg.ReadingsDB)
	}

	tick := func(ctx context.Context) (time.Duration, error) {
		reading, err := drv.Read()
		if err != nil {
			// Transport trouble on this cycle; try again next tick.
			logger.Error("sensor read failed", "error", err)
			return 0, nil
		}
		logger.Info("light reading",
			"lux", reading.Lux,
			"broadband", reading.Ch0,
			"infrared", reading.Ch1,
			"degraded", reading.Degraded,
		)
		if st != nil {
			if err := st.Save(ctx, reading); err != nil {
				logger.Warn("reading not persisted", "error", err)
			}
		}
		return 0, nil
	}

	if err := poller.New(cfg.PollInterval, tick, logger).Run(ctx); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return exitErr(ExitPollLoop, fmt.Errorf("poll loop: %w", err))
	}
	return nil
}

// RunGateway runs the cloud-connected variant: the same polling cycle, with
// readings forwarded to the MQTT endpoint, reconnect backoff stretching the
// poll period while the endpoint is down, and a desired-config channel
// driving the status LED.
func RunGateway(ctx context.Context, cfg config.Config, logger *slog.Logger) error {
	logger.Info("initializing gateway",
		"mqtt_broker", cfg.MQTTBroker,
		"mqtt_port", cfg.MQTTPort,
		"mqtt_client_id", cfg.MQTTClientID,
		"device_id", cfg.DeviceID,
	)

	bus, drv, err := initSensor(cfg, logger)
	if err != nil {
		return err
	}
	defer closeQuietly(bus.Close, "i2c bus", logger)

	var led *statusled.LED
	if cfg.StatusLEDPin != "" {
		led, err = statusled.Open(cfg.StatusLEDPin, logger)
		if err != nil {
			return exitErr(ExitStatusLED, err)
		}
		defer closeQuietly(led.Close, "status led", logger)
	}

	var st *store.Store
	if cfg.ReadingsDB != "" {
		st, err = store.Open(cfg.ReadingsDB)
		if err != nil {
			return exitErr(ExitStore, err)
		}
		defer closeQuietly(st.Close, "readings store", logger)
		logger.Info("readings store open", "path", cfg.ReadingsDB)
	}

	client := telemetry.NewClient(cfg, logger)
	defer client.Disconnect()

	opts := telemetry.Options{
		DeviceID:      cfg.DeviceID,
		DefaultPeriod: cfg.PollInterval,
		ReconnectMin:  cfg.ReconnectMinInterval,
		ReconnectMax:  cfg.ReconnectMaxInterval,
		Logger:        logger,
	}
	if led != nil {
		opts.LED = led
	}
	if st != nil {
		opts.Store = st
	}
	reporter := telemetry.NewReporter(client, drv, opts)

	if err := poller.New(cfg.PollInterval, reporter.Tick, logger).Run(ctx); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return exitErr(ExitPollLoop, fmt.Errorf("poll loop: %w", err))
	}
	return nil
}
