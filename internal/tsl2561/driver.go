// Package tsl2561 drives a TSL2561 ambient light sensor over I2C.
//
// The driver owns the register protocol only; the bus itself is injected as a
// Transport so the same code runs against periph hardware and test fakes.
package tsl2561

import (
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"luxgate/internal/utils"
)

// Transport is a synchronous I2C exchange with a fixed target device.
// Implementations report the number of bytes actually moved so transfers can
// be validated; a negative count or an error both mean the exchange failed.
type Transport interface {
	// Write sends p to the device and returns the transferred byte count.
	Write(p []byte) (int, error)
	// WriteRead sends w, then reads len(r) bytes into r, returning the
	// total transferred count (len(w)+len(r) on success).
	WriteRead(w, r []byte) (int, error)
}

// TransferError reports an I2C exchange that moved the wrong number of bytes
// or failed outright. It is never fatal at this layer; callers decide.
type TransferError struct {
	Op   string
	Want int
	Got  int
	Err  error
}

func (e *TransferError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("%s: transferred %d bytes, expected %d", e.Op, e.Got, e.Want)
}

func (e *TransferError) Unwrap() error { return e.Err }

// ErrUnexpectedIdentity means the ID register did not carry the TSL2561 part
// number; most likely the wrong device is on the configured address.
var ErrUnexpectedIdentity = errors.New("unexpected device identity")

// Reading is one polling cycle's result.
type Reading struct {
	Ch0       uint16    // broadband (visible + IR)
	Ch1       uint16    // IR only
	Lux       float64
	Degraded  bool // channel 1 read failed; lux derived from channel 0 alone
	Timestamp time.Time
}

type Driver struct {
	tr     Transport
	logger *slog.Logger
}

func New(tr Transport, logger *slog.Logger) *Driver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Driver{tr: tr, logger: logger}
}

// checkTransfer validates a transfer result against the expected byte count.
// Failures are logged with the operation and both counts, never swallowed.
func (d *Driver) checkTransfer(op string, want, got int, err error) error {
	if err == nil && got == want {
		return nil
	}
	terr := &TransferError{Op: op, Want: want, Got: got, Err: err}
	d.logger.Error("i2c transfer failed",
		"op", op,
		"expected_bytes", want,
		"actual_bytes", got,
		"error", err,
	)
	return terr
}

func (d *Driver) writeByte(reg byte, value byte) error {
	cmd := []byte{command(reg), value}
	n, err := d.tr.Write(cmd)
	return d.checkTransfer("write byte", len(cmd), n, err)
}

func (d *Driver) readByte(reg byte) (byte, error) {
	cmd := []byte{command(reg)}
	buf := make([]byte, 1)
	n, err := d.tr.WriteRead(cmd, buf)
	if err := d.checkTransfer("read byte", len(cmd)+len(buf), n, err); err != nil {
		return 0, err
	}
	return buf[0], nil
}

func (d *Driver) readWord(lowReg byte) (uint16, error) {
	cmd := []byte{command(lowReg)}
	buf := make([]byte, 2)
	n, err := d.tr.WriteRead(cmd, buf)
	if err := d.checkTransfer("read word", len(cmd)+len(buf), n, err); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(buf), nil
}

// PowerUp enables the ADC. Required once before readings; the sensor powers
// up in the off state.
func (d *Driver) PowerUp() error {
	if err := d.writeByte(regControl, controlPowerUp); err != nil {
		return fmt.Errorf("power up: %w", err)
	}
	return nil
}

// Identify reads the ID register and verifies the part-number nibble, as a
// presence test for the sensor.
func (d *Driver) Identify() error {
	id, err := d.readByte(regID)
	if err != nil {
		return fmt.Errorf("identity read: %w", err)
	}
	d.logger.Debug("sensor identity", "id", "0x"+utils.Hex2(id))
	if id&idPartMask != idPartTSL2561 {
		return fmt.Errorf("%w: id 0x%02X, want part 0x%02X", ErrUnexpectedIdentity, id, idPartTSL2561)
	}
	return nil
}

// ReadChannels reads both ADC channels. A channel-0 failure fails the whole
// read. A channel-1 failure is the degraded path: the reading proceeds with
// ch1=0 and degraded=true so callers can mark the derived lux accordingly.
func (d *Driver) ReadChannels() (ch0, ch1 uint16, degraded bool, err error) {
	ch0, err = d.readWord(regData0Low)
	if err != nil {
		return 0, 0, false, fmt.Errorf("read channel 0: %w", err)
	}
	ch1, err = d.readWord(regData1Low)
	if err != nil {
		d.logger.Warn("channel 1 read failed, continuing with channel 0 only", "error", err)
		return ch0, 0, true, nil
	}
	return ch0, ch1, false, nil
}

// Read performs one full read-and-convert cycle.
func (d *Driver) Read() (Reading, error) {
	ch0, ch1, degraded, err := d.ReadChannels()
	if err != nil {
		return Reading{}, err
	}
	return Reading{
		Ch0:       ch0,
		Ch1:       ch1,
		Lux:       ToLux(ch0, ch1),
		Degraded:  degraded,
		Timestamp: time.Now(),
	}, nil
}
