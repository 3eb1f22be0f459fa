package app

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/rickgao/kospi-sync/internal/calendar"
	"github.com/rickgao/kospi-sync/internal/config"
	"github.com/rickgao/kospi-sync/internal/store"
)

// systemGate refines calendar decisions with the latest backend state.
type systemGate struct {
	gate   *calendar.Gate
	system *store.SystemStore
}

func (g systemGate) ShouldConnect(now time.Time) calendar.Decision {
	d := g.gate.ShouldConnect(now)
	if st, ok := g.system.Snapshot(); ok {
		return g.gate.Refine(d, &st)
	}
	return d
}

func newGate(cfg config.GateConfig, logger *slog.Logger) (*calendar.Gate, error) {
	gc := calendar.DefaultGateConfig()

	if cfg.Timezone != "" {
		loc, err := time.LoadLocation(cfg.Timezone)
		if err != nil {
			return nil, fmt.Errorf("load timezone: %w", err)
		}
		gc.Location = loc
	}

	clocks := []struct {
		value string
		dst   *calendar.Clock
	}{
		{cfg.DayOpen, &gc.DayOpen},
		{cfg.DelayedOpen, &gc.DelayedOpen},
		{cfg.DayClose, &gc.DayClose},
		{cfg.NightOpen, &gc.NightOpen},
		{cfg.NightClose, &gc.NightClose},
	}
	for _, c := range clocks {
		if c.value == "" {
			continue
		}
		v, err := calendar.ParseClock(c.value)
		if err != nil {
			return nil, err
		}
		*c.dst = v
	}

	var cal calendar.Calendar
	if cfg.CalendarFile != "" {
		fc, err := calendar.Load(cfg.CalendarFile)
		if err != nil {
			return nil, fmt.Errorf("load calendar: %w", err)
		}
		logger.Info("calendar loaded", "file", cfg.CalendarFile, "years", fc.Years())
		cal = fc
	}

	return calendar.NewGate(gc, cal, logger), nil
}
