package calendar

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/rickgao/kospi-sync/internal/model"
)

// Session classifies an instant against the trading schedule.
type Session string

const (
	DaySession   Session = "day"
	NightSession Session = "night"
	Weekend      Session = "weekend"
	Holiday      Session = "holiday"
	Closed       Session = "closed"
)

// Decision is the result of a gate check.
type Decision struct {
	Allow   bool
	Session Session

	// Bypassed is set when the backend runs without market hours
	// (demo mode) and the time rules were skipped.
	Bypassed bool
}

// IsHolidayVeto reports whether the decision vetoes for a non-trading day.
func (d Decision) IsHolidayVeto() bool {
	return !d.Allow && (d.Session == Weekend || d.Session == Holiday)
}

// Clock is a time of day in minutes since midnight.
type Clock int

// NewClock builds a Clock from hour and minute.
func NewClock(hour, minute int) Clock {
	return Clock(hour*60 + minute)
}

// ParseClock parses "HH:MM".
func ParseClock(s string) (Clock, error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, fmt.Errorf("parse clock %q: %w", s, err)
	}
	return NewClock(t.Hour(), t.Minute()), nil
}

// String formats the clock as "HH:MM".
func (c Clock) String() string {
	return fmt.Sprintf("%02d:%02d", int(c)/60, int(c)%60)
}

func clockOf(t time.Time) Clock {
	return NewClock(t.Hour(), t.Minute())
}

// GateConfig holds the session boundaries.
type GateConfig struct {
	Location    *time.Location
	DayOpen     Clock // regular day session open
	DelayedOpen Clock // day session open on delayed-open days
	DayClose    Clock // inclusive
	NightOpen   Clock // inclusive
	NightClose  Clock // exclusive, next calendar day
}

// DefaultGateConfig returns the KRX derivatives schedule.
func DefaultGateConfig() GateConfig {
	return GateConfig{
		Location:    SeoulLocation(),
		DayOpen:     NewClock(9, 0),
		DelayedOpen: NewClock(10, 0),
		DayClose:    NewClock(15, 45),
		NightOpen:   NewClock(18, 0),
		NightClose:  NewClock(5, 0),
	}
}

// SeoulLocation returns Asia/Seoul, or a fixed +09:00 zone when the
// tz database is unavailable.
func SeoulLocation() *time.Location {
	loc, err := time.LoadLocation("Asia/Seoul")
	if err != nil {
		return time.FixedZone("KST", 9*60*60)
	}
	return loc
}

// Gate decides whether a connection attempt should be made.
// It has no side effects besides a one-time warning per uncovered year.
type Gate struct {
	cfg    GateConfig
	cal    Calendar
	logger *slog.Logger

	mu     sync.Mutex
	warned map[int]bool
}

// NewGate creates a Gate. A nil calendar uses the built-in tables.
func NewGate(cfg GateConfig, cal Calendar, logger *slog.Logger) *Gate {
	if logger == nil {
		logger = slog.Default()
	}
	if cal == nil {
		cal = Default()
	}
	if cfg.Location == nil {
		cfg.Location = SeoulLocation()
	}
	return &Gate{
		cfg:    cfg,
		cal:    cal,
		logger: logger,
		warned: make(map[int]bool),
	}
}

// Calendar returns the gate's calendar.
func (g *Gate) Calendar() Calendar {
	return g.cal
}

// Location returns the market time zone.
func (g *Gate) Location() *time.Location {
	return g.cfg.Location
}

// ShouldConnect classifies now. Rules are checked in order and the first
// match wins: weekend, holiday, day session, night session.
func (g *Gate) ShouldConnect(now time.Time) Decision {
	local := now.In(g.cfg.Location)

	if isWeekend(local) {
		return Decision{Session: Weekend}
	}

	g.checkYear(local.Year())
	if g.cal.IsHoliday(local) {
		return Decision{Session: Holiday}
	}

	open := g.cfg.DayOpen
	if g.cal.IsDelayedOpen(local) {
		open = g.cfg.DelayedOpen
	}

	c := clockOf(local)
	if c >= open && c <= g.cfg.DayClose {
		return Decision{Allow: true, Session: DaySession}
	}
	if c >= g.cfg.NightOpen || c < g.cfg.NightClose {
		return Decision{Allow: true, Session: NightSession}
	}

	return Decision{Session: Closed}
}

// Refine applies the backend's reported system state to a decision.
// A backend running without market hours allows any time; a backend that
// reports a holiday vetoes. A nil state leaves the decision unchanged.
func (g *Gate) Refine(d Decision, state *model.SystemState) Decision {
	if state == nil {
		return d
	}
	if !state.MarketHoursEnabled {
		d.Allow = true
		d.Bypassed = true
		return d
	}
	if state.IsHoliday && d.Session != Weekend {
		return Decision{Session: Holiday}
	}
	return d
}

// OpenTime returns the day session open for the date of now.
func (g *Gate) OpenTime(now time.Time) Clock {
	if g.cal.IsDelayedOpen(now.In(g.cfg.Location)) {
		return g.cfg.DelayedOpen
	}
	return g.cfg.DayOpen
}

func (g *Gate) checkYear(year int) {
	if g.cal.HasYear(year) {
		return
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.warned[year] {
		return
	}
	g.warned[year] = true
	g.logger.Warn("calendar has no data for year, assuming no holidays", "year", year)
}
