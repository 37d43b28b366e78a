package telemetry

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"

	"luxgate/internal/tsl2561"
)

// Conn is the subset of Client the reporter drives. Split out so the backoff
// state machine is testable without a broker.
type Conn interface {
	Connect(ctx context.Context) error
	IsConnected() bool
	PublishTelemetry(t Telemetry) error
	PublishReported(r ReportedConfig) error
	SubscribeDesiredConfig(handler func(payload []byte)) error
}

// Sensor yields one reading per call.
type Sensor interface {
	Read() (tsl2561.Reading, error)
}

// LED is the local output driven by desired config.
type LED interface {
	Set(on bool) error
}

// Recorder persists readings locally. Optional.
type Recorder interface {
	Save(ctx context.Context, r tsl2561.Reading) error
}

// Options configures a Reporter. DefaultPeriod is the telemetry cadence while
// connected; ReconnectMin/ReconnectMax bound the backoff applied to the poll
// period while the endpoint is unreachable.
type Options struct {
	DeviceID      string
	DefaultPeriod time.Duration
	ReconnectMin  time.Duration
	ReconnectMax  time.Duration

	LED       LED         // nil disables the status LED
	Store     Recorder    // nil disables local persistence
	Reachable func() bool // nil means "assume reachable"
	Logger    *slog.Logger
}

// Reporter owns connectivity to the telemetry endpoint and the per-tick
// read-and-report cycle. Tick is only ever called from the poller's single
// goroutine; the desired-config handler runs on paho's dispatch goroutine and
// touches only the LED and the connection.
type Reporter struct {
	conn   Conn
	sensor Sensor
	opts   Options

	bo  *backoff.ExponentialBackOff
	seq int
}

func NewReporter(conn Conn, sensor Sensor, opts Options) *Reporter {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	bo := &backoff.ExponentialBackOff{
		InitialInterval:     opts.ReconnectMin,
		RandomizationFactor: 0, // the retry schedule is the poll period; keep it exact
		Multiplier:          2,
		MaxInterval:         opts.ReconnectMax,
		MaxElapsedTime:      0, // never give up
		Stop:                backoff.Stop,
		Clock:               backoff.SystemClock,
	}
	bo.Reset()
	return &Reporter{conn: conn, sensor: sensor, opts: opts, bo: bo}
}

// Tick runs one cycle and returns the poll period until the next one.
//
// Disconnected with the network down: do nothing, keep the current cadence.
// Disconnected with the network up: one connect attempt; failure stretches
// the period per the backoff schedule, success restores the default period
// and re-registers the desired-config subscription, then falls through to
// the read-and-report cycle in the same tick.
func (r *Reporter) Tick(ctx context.Context) (time.Duration, error) {
	if !r.conn.IsConnected() {
		if r.opts.Reachable != nil && !r.opts.Reachable() {
			r.opts.Logger.Warn("network not ready, skipping connect")
			return 0, nil
		}
		if err := r.conn.Connect(ctx); err != nil {
			if ctx.Err() != nil {
				return 0, ctx.Err()
			}
			next := r.bo.NextBackOff()
			r.opts.Logger.Warn("telemetry endpoint unreachable",
				"error", err,
				"retry_in", next.String(),
			)
			return next, nil
		}
		if err := r.conn.SubscribeDesiredConfig(r.handleDesired); err != nil {
			// Telemetry still flows without the config channel.
			r.opts.Logger.Warn("desired-config subscribe failed", "error", err)
		}
		r.bo.Reset()
	}

	r.cycle(ctx)
	return r.opts.DefaultPeriod, nil
}

// cycle reads the sensor and forwards the reading. A failed read skips the
// publish and waits for the next tick; it is never fatal.
func (r *Reporter) cycle(ctx context.Context) {
	reading, err := r.sensor.Read()
	if err != nil {
		r.opts.Logger.Error("sensor read failed", "error", err)
		return
	}

	r.seq++
	seq := r.seq
	lux := reading.Lux
	t := Telemetry{
		DeviceID:  r.opts.DeviceID,
		Timestamp: reading.Timestamp,
		Lux:       &lux,
		Broadband: &reading.Ch0,
		Degraded:  reading.Degraded,
		Sequence:  &seq,
	}
	if !reading.Degraded {
		t.Infrared = &reading.Ch1
	}

	if err := r.conn.PublishTelemetry(t); err != nil {
		r.opts.Logger.Warn("telemetry publish failed", "error", err)
	}

	if r.opts.Store != nil {
		if err := r.opts.Store.Save(ctx, reading); err != nil {
			r.opts.Logger.Warn("reading not persisted", "error", err)
		}
	}
}

// handleDesired applies a remote configuration update. Malformed payloads are
// logged and discarded. Applied settings are acknowledged on the reported
// topic; the publish is async and piggybacks on the client's dispatch.
func (r *Reporter) handleDesired(payload []byte) {
	// Accept both a bare desired document and a full twin-style wrapper.
	var doc struct {
		Desired *DesiredConfig `json:"desired"`
		DesiredConfig
	}
	if err := json.Unmarshal(payload, &doc); err != nil {
		r.opts.Logger.Warn("discarding malformed desired config", "error", err)
		return
	}
	desired := doc.DesiredConfig
	if doc.Desired != nil {
		desired = *doc.Desired
	}

	if desired.StatusLED == nil {
		return
	}
	on := desired.StatusLED.Value
	if r.opts.LED != nil {
		if err := r.opts.LED.Set(on); err != nil {
			r.opts.Logger.Error("status led update failed", "error", err)
			return
		}
	}
	r.opts.Logger.Info("status led set by remote config", "on", on)

	ack := ReportedConfig{StatusLED: &BoolProperty{Value: on}}
	if err := r.conn.PublishReported(ack); err != nil {
		r.opts.Logger.Warn("reported config not sent", "error", err)
	}
}
