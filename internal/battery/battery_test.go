package battery

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"walldash/internal/config"
)

type countingReader struct {
	calls int
	err   error
}

func (r *countingReader) Read(context.Context) (Status, error) {
	r.calls++
	if r.err != nil {
		return Status{}, r.err
	}
	return Status{Percent: 50 + r.calls, VoltageMv: 3900}, nil
}

// TestCached_ReusesFreshReading verifies the wrapped reader is hit once per ttl
func TestCached_ReusesFreshReading(t *testing.T) {
	next := &countingReader{}
	c := NewCached(next, 30*time.Second)
	now := time.Date(2024, 5, 14, 9, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }

	first, err := c.Read(context.Background())
	require.NoError(t, err)
	second, err := c.Read(context.Background())
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, 1, next.calls)

	now = now.Add(31 * time.Second)
	third, err := c.Read(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 52, third.Percent)
	assert.Equal(t, 2, next.calls)
}

// TestCached_ErrorsAreNotCached verifies failures are retried on the next read
func TestCached_ErrorsAreNotCached(t *testing.T) {
	next := &countingReader{err: errors.New("nack")}
	c := NewCached(next, time.Minute)

	_, err := c.Read(context.Background())
	require.Error(t, err)
	_, err = c.Read(context.Background())
	require.Error(t, err)
	assert.Equal(t, 2, next.calls)
}

// TestMockReader_Range verifies sample readings stay within 20 and 100
func TestMockReader_Range(t *testing.T) {
	r := NewMockReader()
	for i := 0; i < 100; i++ {
		st, err := r.Read(context.Background())
		require.NoError(t, err)
		assert.GreaterOrEqual(t, st.Percent, 20)
		assert.LessOrEqual(t, st.Percent, 100)
	}
}

// TestFromConfig verifies reader selection
func TestFromConfig(t *testing.T) {
	cfg := config.DefaultConfig()
	assert.Nil(t, FromConfig(cfg))

	cfg.Battery.Enabled = true
	assert.IsType(t, &Cached{}, FromConfig(cfg))

	cfg.Settings.Test = true
	assert.IsType(t, mockReader{}, FromConfig(cfg))
}
