package portal

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/banner-cli/internal/clock"
)

// TimeOfDay is a wall-clock time with minute precision.
type TimeOfDay struct {
	Hour   int
	Minute int
}

// ParseClock parses an "HH:MM" string.
func ParseClock(s string) (TimeOfDay, error) {
	t, err := time.Parse("15:04", strings.TrimSpace(s))
	if err != nil {
		return TimeOfDay{}, fmt.Errorf("%w: %q is not HH:MM", ErrInvalidTime, s)
	}
	return TimeOfDay{Hour: t.Hour(), Minute: t.Minute()}, nil
}

// On returns the instant at this time of day, second zero, on day's date in day's location.
func (t TimeOfDay) On(day time.Time) time.Time {
	y, m, d := day.Date()
	return time.Date(y, m, d, t.Hour, t.Minute, 0, 0, day.Location())
}

func (t TimeOfDay) String() string { return fmt.Sprintf("%02d:%02d", t.Hour, t.Minute) }

// WaitDuration returns how long to wait so that target is reached on the
// server's clock, which runs offset ahead of now. Past targets yield zero.
func WaitDuration(now, target time.Time, offset time.Duration) time.Duration {
	wait := target.Sub(now) - offset
	if wait < 0 {
		return 0
	}
	return wait
}

// Trigger blocks until a scheduled time of day, corrected for the server clock offset.
type Trigger struct {
	clock  clock.Clock
	offset time.Duration
	logger *zap.Logger
}

// NewTrigger creates a Trigger reading time from c.
func NewTrigger(c clock.Clock, offset time.Duration, logger *zap.Logger) *Trigger {
	if c == nil {
		c = clock.SystemClock{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Trigger{clock: c, offset: offset, logger: logger}
}

// Wait blocks until at ("HH:MM", today, local time) on the server's clock.
// An empty at returns immediately, as does a time already past; there is
// no rollover to the next day.
func (t *Trigger) Wait(ctx context.Context, at string) error {
	if at == "" {
		return nil
	}
	tod, err := ParseClock(at)
	if err != nil {
		return err
	}

	now := t.clock.Now()
	wait := WaitDuration(now, tod.On(now), t.offset)
	if wait == 0 {
		t.logger.Info("Scheduled time already reached, firing now.", zap.Stringer("at", tod))
		return nil
	}

	t.logger.Info("Waiting for scheduled time.",
		zap.Stringer("at", tod),
		zap.Duration("wait", wait),
		zap.Duration("server_offset", t.offset))

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.clock.After(wait):
		return nil
	}
}
