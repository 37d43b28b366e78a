// Package statusled drives the remote-controlled indicator LED over GPIO.
package statusled

import (
	"fmt"
	"log/slog"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
)

// LED is an active-low indicator: driving the line low turns it on. Wired
// that way on the reference board; Set hides the inversion.
type LED struct {
	pin    gpio.PinIO
	logger *slog.Logger
}

// Open resolves the pin by name (e.g. "GPIO17") and starts with the LED off.
func Open(name string, logger *slog.Logger) (*LED, error) {
	if logger == nil {
		logger = slog.Default()
	}
	pin := gpioreg.ByName(name)
	if pin == nil {
		return nil, fmt.Errorf("gpio pin %q not found", name)
	}
	if err := pin.Out(gpio.High); err != nil {
		return nil, fmt.Errorf("configure %s as output: %w", name, err)
	}
	logger.Info("status led ready", "pin", pin.Name())
	return &LED{pin: pin, logger: logger}, nil
}

func (l *LED) Set(on bool) error {
	level := gpio.High
	if on {
		level = gpio.Low
	}
	if err := l.pin.Out(level); err != nil {
		return fmt.Errorf("set %s: %w", l.pin.Name(), err)
	}
	l.logger.Debug("status led", "on", on)
	return nil
}

// Close turns the LED off. Halt is not called; the pin stays an output so
// the level is defined after exit.
func (l *LED) Close() error {
	return l.pin.Out(gpio.High)
}
