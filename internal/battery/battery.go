package battery

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"runtime"
	"sync"
	"time"

	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/host/v3"

	"walldash/internal/config"
)

// ErrUnavailable is returned when no I2C bus can be used on this host.
var ErrUnavailable = errors.New("battery: i2c unavailable on this platform")

// PiSugar-style registers.
const (
	regVoltageHigh = 0x22
	regVoltageLow  = 0x23
	regPercent     = 0x2A
)

// Status is the gauge reading served at /api/battery.
type Status struct {
	// Percent is the battery level in 0–100%.
	Percent int `json:"percent"`
	// VoltageMv is the battery voltage in millivolts, 0 if unknown.
	VoltageMv int `json:"voltage_mv"`
}

// Reader obtains a battery reading.
type Reader interface {
	Read(ctx context.Context) (Status, error)
}

// mockReader returns pseudo-random levels for sample mode.
type mockReader struct{}

// NewMockReader returns a Reader reporting 20–100% and no voltage.
func NewMockReader() Reader {
	return mockReader{}
}

func (mockReader) Read(context.Context) (Status, error) {
	return Status{Percent: 20 + rand.Intn(81)}, nil
}

var (
	hostOnce sync.Once
	hostErr  error
)

// i2cReader talks to the gauge over I2C. The bus is opened per read so a
// display that sleeps between captures does not hold the device.
type i2cReader struct {
	busName string
	addr    uint16
}

// NewI2CReader returns a Reader for the gauge at addr on busName ("" picks
// the first bus, /dev/i2c-1 on a Raspberry Pi).
func NewI2CReader(busName string, addr uint16) Reader {
	return &i2cReader{busName: busName, addr: addr}
}

func (r *i2cReader) Read(ctx context.Context) (Status, error) {
	if runtime.GOOS != "linux" {
		return Status{}, ErrUnavailable
	}
	hostOnce.Do(func() { _, hostErr = host.Init() })
	if hostErr != nil {
		return Status{}, fmt.Errorf("battery: host init: %w", hostErr)
	}
	if err := ctx.Err(); err != nil {
		return Status{}, err
	}

	bus, err := i2creg.Open(r.busName)
	if err != nil {
		return Status{}, fmt.Errorf("battery: open bus %q: %w", r.busName, err)
	}
	defer bus.Close()

	dev := &i2c.Dev{Bus: bus, Addr: r.addr}
	readReg := func(reg byte) (byte, error) {
		buf := []byte{0}
		if err := dev.Tx([]byte{reg}, buf); err != nil {
			return 0, fmt.Errorf("battery: read register 0x%02x: %w", reg, err)
		}
		return buf[0], nil
	}

	high, err := readReg(regVoltageHigh)
	if err != nil {
		return Status{}, err
	}
	low, err := readReg(regVoltageLow)
	if err != nil {
		return Status{}, err
	}
	pct, err := readReg(regPercent)
	if err != nil {
		return Status{}, err
	}

	return Status{
		Percent:   min(int(pct), 100),
		VoltageMv: int(uint16(high)<<8 | uint16(low)),
	}, nil
}

// FromConfig picks the reader for cfg: the mock in sample mode, the I2C
// gauge when enabled, nil otherwise.
func FromConfig(cfg *config.Config) Reader {
	switch {
	case cfg.Settings.Test:
		return NewMockReader()
	case cfg.Battery.Enabled:
		return NewCached(NewI2CReader(cfg.Battery.Bus, cfg.Battery.Address), 30*time.Second)
	default:
		return nil
	}
}

// Cached keeps the last successful reading for ttl so HTTP polling does not
// hit the bus on every request.
type Cached struct {
	next Reader
	ttl  time.Duration
	now  func() time.Time

	mu        sync.Mutex
	last      Status
	updatedAt time.Time
}

// NewCached wraps next.
func NewCached(next Reader, ttl time.Duration) *Cached {
	return &Cached{next: next, ttl: ttl, now: time.Now}
}

func (c *Cached) Read(ctx context.Context) (Status, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.updatedAt.IsZero() && c.now().Sub(c.updatedAt) < c.ttl {
		return c.last, nil
	}
	st, err := c.next.Read(ctx)
	if err != nil {
		return Status{}, err
	}
	c.last, c.updatedAt = st, c.now()
	return st, nil
}
