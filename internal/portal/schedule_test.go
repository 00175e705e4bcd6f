package portal

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap/zaptest"

	"github.com/xkilldash9x/banner-cli/internal/clock"
)

func TestParseClock(t *testing.T) {
	valid := map[string]TimeOfDay{
		"21:00":   {Hour: 21, Minute: 0},
		"07:30":   {Hour: 7, Minute: 30},
		"00:00":   {Hour: 0, Minute: 0},
		" 23:59 ": {Hour: 23, Minute: 59},
	}
	for in, want := range valid {
		got, err := ParseClock(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	for _, in := range []string{"", "24:00", "12:60", "noon", "21", "21:00:00", "-1:00"} {
		_, err := ParseClock(in)
		assert.ErrorIs(t, err, ErrInvalidTime, in)
	}
}

func TestTimeOfDay(t *testing.T) {
	est := time.FixedZone("EST", -5*60*60)
	day := time.Date(2016, 9, 1, 8, 15, 42, 999, est)

	got := TimeOfDay{Hour: 21, Minute: 0}.On(day)
	assert.Equal(t, time.Date(2016, 9, 1, 21, 0, 0, 0, est), got)
	assert.Equal(t, "21:00", TimeOfDay{Hour: 21}.String())
	assert.Equal(t, "07:05", TimeOfDay{Hour: 7, Minute: 5}.String())
}

func TestWaitDuration(t *testing.T) {
	now := time.Date(2016, 9, 1, 20, 55, 0, 0, time.UTC)
	target := time.Date(2016, 9, 1, 21, 0, 0, 0, time.UTC)

	assert.Equal(t, 5*time.Minute, WaitDuration(now, target, 0))
	assert.Equal(t, time.Duration(0), WaitDuration(now, target, 5*time.Minute))
	assert.Equal(t, 4*time.Minute, WaitDuration(now, target, time.Minute))
	assert.Equal(t, 6*time.Minute, WaitDuration(now, target, -time.Minute), "a server behind us means waiting longer")
	assert.Equal(t, time.Duration(0), WaitDuration(now, now.Add(-time.Hour), 0), "past targets never go negative")
}

func TestTrigger_Wait(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	now := time.Date(2016, 9, 1, 20, 55, 0, 0, time.UTC)

	t.Run("empty time proceeds immediately", func(t *testing.T) {
		clk := &fakeClock{now: now}
		require.NoError(t, NewTrigger(clk, 0, zaptest.NewLogger(t)).Wait(context.Background(), ""))
		assert.Empty(t, clk.recordedWaits())
	})

	t.Run("waits exactly the corrected duration", func(t *testing.T) {
		clk := &fakeClock{now: now}
		require.NoError(t, NewTrigger(clk, 90*time.Second, zaptest.NewLogger(t)).Wait(context.Background(), "21:00"))
		assert.Equal(t, []time.Duration{3*time.Minute + 30*time.Second}, clk.recordedWaits())
	})

	t.Run("past time fires without rollover", func(t *testing.T) {
		clk := &fakeClock{now: now}
		require.NoError(t, NewTrigger(clk, 0, zaptest.NewLogger(t)).Wait(context.Background(), "08:00"))
		assert.Empty(t, clk.recordedWaits())
	})

	t.Run("malformed time", func(t *testing.T) {
		clk := &fakeClock{now: now}
		err := NewTrigger(clk, 0, nil).Wait(context.Background(), "9pm")
		assert.ErrorIs(t, err, ErrInvalidTime)
	})

	t.Run("cancellation interrupts the wait", func(t *testing.T) {
		clk := &fakeClock{now: now, block: true}
		ctx, cancel := context.WithCancel(context.Background())

		done := make(chan error, 1)
		go func() { done <- NewTrigger(clk, 0, zaptest.NewLogger(t)).Wait(ctx, "21:00") }()

		assert.Eventually(t, func() bool { return len(clk.recordedWaits()) == 1 }, time.Second, 5*time.Millisecond)
		cancel()

		select {
		case err := <-done:
			assert.ErrorIs(t, err, context.Canceled)
		case <-time.After(2 * time.Second):
			t.Fatal("Wait did not return after cancellation")
		}
	})

	t.Run("defaults to the system clock", func(t *testing.T) {
		trigger := NewTrigger(nil, 0, nil)
		assert.IsType(t, clock.SystemClock{}, trigger.clock)
		assert.NotNil(t, trigger.logger)
	})
}
