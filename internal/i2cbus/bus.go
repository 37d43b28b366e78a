// Package i2cbus binds the sensor driver's transport contract to a real I2C
// bus via periph.
package i2cbus

import (
	"fmt"
	"log/slog"
	"sync"

	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/host/v3"

	"luxgate/internal/utils"
)

var hostInit sync.Once

// Bus is an open I2C master bound to one target device address. It is opened
// once at startup and closed once at shutdown; all register traffic for the
// device goes through it.
type Bus struct {
	bus    i2c.BusCloser
	dev    i2c.Dev
	logger *slog.Logger
}

// Open initializes the periph host, opens the named bus (empty name selects
// the first available, usually /dev/i2c-1), sets standard 100 kHz speed and
// binds the target address.
func Open(name string, addr uint16, logger *slog.Logger) (*Bus, error) {
	if logger == nil {
		logger = slog.Default()
	}

	var initErr error
	hostInit.Do(func() { _, initErr = host.Init() })
	if initErr != nil {
		return nil, fmt.Errorf("host init: %w", initErr)
	}

	bus, err := i2creg.Open(name)
	if err != nil {
		return nil, fmt.Errorf("open i2c bus %q: %w", name, err)
	}

	if err := bus.SetSpeed(100 * physic.KiloHertz); err != nil {
		// Some adapters do not support runtime speed changes; the kernel
		// default is the same standard mode.
		logger.Warn("could not set i2c bus speed", "bus", bus.String(), "error", err)
	}

	logger.Info("i2c bus open", "bus", bus.String(), "address", "0x"+utils.Hex4(addr))
	return &Bus{
		bus:    bus,
		dev:    i2c.Dev{Bus: bus, Addr: addr},
		logger: logger,
	}, nil
}

// Write sends p to the bound device. Returns len(p) on success, -1 on error,
// matching the driver's transfer-count contract.
func (b *Bus) Write(p []byte) (int, error) {
	if err := b.dev.Tx(p, nil); err != nil {
		return -1, err
	}
	return len(p), nil
}

// WriteRead sends w then reads len(r) bytes in a single transaction.
func (b *Bus) WriteRead(w, r []byte) (int, error) {
	if err := b.dev.Tx(w, r); err != nil {
		return -1, err
	}
	return len(w) + len(r), nil
}

// Close releases the bus. Failures are logged by the caller; after Close the
// Bus must not be used.
func (b *Bus) Close() error {
	return b.bus.Close()
}
