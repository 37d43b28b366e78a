package telemetry

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"luxgate/internal/tsl2561"
)

type fakeConn struct {
	connected  bool
	connectErr error
	connects   int

	published []Telemetry
	reported  []ReportedConfig
	handler   func([]byte)
}

func (f *fakeConn) Connect(ctx context.Context) error {
	f.connects++
	if f.connectErr != nil {
		return f.connectErr
	}
	f.connected = true
	return nil
}

func (f *fakeConn) IsConnected() bool { return f.connected }

func (f *fakeConn) PublishTelemetry(t Telemetry) error {
	f.published = append(f.published, t)
	return nil
}

func (f *fakeConn) PublishReported(r ReportedConfig) error {
	f.reported = append(f.reported, r)
	return nil
}

func (f *fakeConn) SubscribeDesiredConfig(h func(payload []byte)) error {
	f.handler = h
	return nil
}

type fakeSensor struct {
	reading tsl2561.Reading
	err     error
	reads   int
}

func (f *fakeSensor) Read() (tsl2561.Reading, error) {
	f.reads++
	return f.reading, f.err
}

type fakeLED struct {
	on  bool
	set int
	err error
}

func (f *fakeLED) Set(on bool) error {
	if f.err != nil {
		return f.err
	}
	f.on = on
	f.set++
	return nil
}

func newTestReporter(conn Conn, sensor Sensor, led LED) *Reporter {
	return NewReporter(conn, sensor, Options{
		DeviceID:      "lab",
		DefaultPeriod: 5 * time.Second,
		ReconnectMin:  60 * time.Second,
		ReconnectMax:  600 * time.Second,
		LED:           led,
		Logger:        slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
}

func TestTick_BackoffSequence(t *testing.T) {
	conn := &fakeConn{connectErr: errors.New("refused")}
	r := newTestReporter(conn, &fakeSensor{}, nil)

	// Five consecutive failures from a 5s default with Dmin=60s, Dmax=600s.
	want := []time.Duration{
		60 * time.Second,
		120 * time.Second,
		240 * time.Second,
		480 * time.Second,
		600 * time.Second, // capped
		600 * time.Second, // stays capped
	}
	for i, w := range want {
		got, err := r.Tick(context.Background())
		if err != nil {
			t.Fatalf("Tick #%d error = %v", i+1, err)
		}
		if got != w {
			t.Errorf("Tick #%d period = %v, want %v", i+1, got, w)
		}
	}
}

func TestTick_SuccessResetsBackoff(t *testing.T) {
	conn := &fakeConn{connectErr: errors.New("refused")}
	sensor := &fakeSensor{reading: tsl2561.Reading{Ch0: 1000, Ch1: 450, Lux: 10.1, Timestamp: time.Now()}}
	r := newTestReporter(conn, sensor, nil)
	ctx := context.Background()

	// Two failures advance the schedule.
	if got, _ := r.Tick(ctx); got != 60*time.Second {
		t.Fatalf("first failure period = %v, want 60s", got)
	}
	if got, _ := r.Tick(ctx); got != 120*time.Second {
		t.Fatalf("second failure period = %v, want 120s", got)
	}

	// Success restores the default period in the same tick.
	conn.connectErr = nil
	got, err := r.Tick(ctx)
	if err != nil {
		t.Fatalf("Tick error = %v", err)
	}
	if got != 5*time.Second {
		t.Errorf("period after success = %v, want 5s", got)
	}
	if len(conn.published) != 1 {
		t.Fatalf("published %d messages after connect, want 1", len(conn.published))
	}
	if conn.handler == nil {
		t.Error("desired-config subscription not registered")
	}

	// A later disconnect starts the schedule over at Dmin.
	conn.connected = false
	conn.connectErr = errors.New("refused")
	if got, _ := r.Tick(ctx); got != 60*time.Second {
		t.Errorf("period after reset = %v, want 60s", got)
	}
}

func TestTick_UnreachableNetworkLeavesStateAlone(t *testing.T) {
	conn := &fakeConn{}
	r := NewReporter(conn, &fakeSensor{}, Options{
		DeviceID:      "lab",
		DefaultPeriod: 5 * time.Second,
		ReconnectMin:  60 * time.Second,
		ReconnectMax:  600 * time.Second,
		Reachable:     func() bool { return false },
		Logger:        slog.New(slog.NewTextHandler(io.Discard, nil)),
	})

	got, err := r.Tick(context.Background())
	if err != nil {
		t.Fatalf("Tick error = %v", err)
	}
	if got != 0 {
		t.Errorf("period = %v, want 0 (unchanged)", got)
	}
	if conn.connects != 0 {
		t.Errorf("connect attempts = %d, want 0", conn.connects)
	}
}

func TestTick_ConnectedPublishesReading(t *testing.T) {
	conn := &fakeConn{connected: true}
	sensor := &fakeSensor{reading: tsl2561.Reading{Ch0: 1000, Ch1: 450, Lux: 10.128, Timestamp: time.Now()}}
	r := newTestReporter(conn, sensor, nil)

	for i := 0; i < 3; i++ {
		if _, err := r.Tick(context.Background()); err != nil {
			t.Fatalf("Tick error = %v", err)
		}
	}
	if len(conn.published) != 3 {
		t.Fatalf("published %d messages, want 3", len(conn.published))
	}
	last := conn.published[2]
	if last.Lux == nil || *last.Lux != 10.128 {
		t.Errorf("Lux = %v, want 10.128", last.Lux)
	}
	if last.Broadband == nil || *last.Broadband != 1000 {
		t.Errorf("Broadband = %v, want 1000", last.Broadband)
	}
	if last.Infrared == nil || *last.Infrared != 450 {
		t.Errorf("Infrared = %v, want 450", last.Infrared)
	}
	if last.Sequence == nil || *last.Sequence != 3 {
		t.Errorf("Sequence = %v, want 3", last.Sequence)
	}
}

func TestTick_DegradedReadingOmitsInfrared(t *testing.T) {
	conn := &fakeConn{connected: true}
	sensor := &fakeSensor{reading: tsl2561.Reading{Ch0: 1000, Lux: 30.4, Degraded: true, Timestamp: time.Now()}}
	r := newTestReporter(conn, sensor, nil)

	if _, err := r.Tick(context.Background()); err != nil {
		t.Fatalf("Tick error = %v", err)
	}
	if len(conn.published) != 1 {
		t.Fatalf("published %d messages, want 1", len(conn.published))
	}
	got := conn.published[0]
	if !got.Degraded {
		t.Error("Degraded = false, want true")
	}
	if got.Infrared != nil {
		t.Errorf("Infrared = %v, want omitted for degraded reading", *got.Infrared)
	}
}

func TestTick_ReadFailureSkipsPublish(t *testing.T) {
	conn := &fakeConn{connected: true}
	sensor := &fakeSensor{err: errors.New("read channel 0: i/o error")}
	r := newTestReporter(conn, sensor, nil)

	got, err := r.Tick(context.Background())
	if err != nil {
		t.Fatalf("Tick error = %v, sensor failure must not be fatal", err)
	}
	if got != 5*time.Second {
		t.Errorf("period = %v, want default 5s", got)
	}
	if len(conn.published) != 0 {
		t.Errorf("published %d messages, want 0", len(conn.published))
	}
}

func TestHandleDesired(t *testing.T) {
	t.Run("applies led state and acks", func(t *testing.T) {
		conn := &fakeConn{connected: true}
		led := &fakeLED{}
		r := newTestReporter(conn, &fakeSensor{}, led)

		r.handleDesired([]byte(`{"status_led": {"value": true}}`))

		if !led.on {
			t.Error("led not turned on")
		}
		if len(conn.reported) != 1 {
			t.Fatalf("reported %d acks, want 1", len(conn.reported))
		}
		if conn.reported[0].StatusLED == nil || !conn.reported[0].StatusLED.Value {
			t.Error("reported ack does not carry the applied state")
		}
	})

	t.Run("accepts twin-style wrapper", func(t *testing.T) {
		conn := &fakeConn{connected: true}
		led := &fakeLED{on: true, set: 1}
		r := newTestReporter(conn, &fakeSensor{}, led)

		r.handleDesired([]byte(`{"desired": {"status_led": {"value": false}}}`))

		if led.on {
			t.Error("led not turned off")
		}
	})

	t.Run("malformed payload is discarded", func(t *testing.T) {
		conn := &fakeConn{connected: true}
		led := &fakeLED{}
		r := newTestReporter(conn, &fakeSensor{}, led)

		r.handleDesired([]byte(`{not json`))

		if led.set != 0 {
			t.Error("led touched by malformed payload")
		}
		if len(conn.reported) != 0 {
			t.Error("ack sent for malformed payload")
		}
	})

	t.Run("unrelated settings are ignored", func(t *testing.T) {
		conn := &fakeConn{connected: true}
		led := &fakeLED{}
		r := newTestReporter(conn, &fakeSensor{}, led)

		r.handleDesired([]byte(`{"sample_rate": {"value": 10}}`))

		if led.set != 0 || len(conn.reported) != 0 {
			t.Error("unrelated setting triggered led or ack")
		}
	})

	t.Run("led failure suppresses ack", func(t *testing.T) {
		conn := &fakeConn{connected: true}
		led := &fakeLED{err: errors.New("gpio: pin busy")}
		r := newTestReporter(conn, &fakeSensor{}, led)

		r.handleDesired([]byte(`{"status_led": {"value": true}}`))

		if len(conn.reported) != 0 {
			t.Error("ack sent although the led update failed")
		}
	})
}
