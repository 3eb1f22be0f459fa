package calendar

import (
	_ "embed"
	"fmt"
	"os"
	"sort"
	"time"

	"gopkg.in/yaml.v3"
)

//go:embed krx.yaml
var defaultCalendarYAML []byte

const dateLayout = "2006-01-02"

// Calendar answers exchange calendar questions for a date.
// Dates are compared by year, month and day only.
type Calendar interface {
	// IsHoliday reports whether the exchange is closed all day.
	IsHoliday(date time.Time) bool

	// IsDelayedOpen reports whether the day session opens late
	// (first trading day of the year, exam days).
	IsDelayedOpen(date time.Time) bool

	// HasYear reports whether the calendar has data for the year.
	HasYear(year int) bool
}

// FileCalendar is a Calendar backed by explicit date lists.
type FileCalendar struct {
	holidays map[string]struct{}
	delayed  map[string]struct{}
	years    map[int]struct{}
}

// fileFormat is the on-disk YAML layout.
type fileFormat struct {
	Holidays        []string `yaml:"holidays"`
	DelayedOpenDays []string `yaml:"delayed_open_days"`
}

// Load reads a calendar YAML file.
func Load(path string) (*FileCalendar, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read calendar file: %w", err)
	}
	return Parse(data)
}

// Parse decodes calendar YAML.
func Parse(data []byte) (*FileCalendar, error) {
	var f fileFormat
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse calendar yaml: %w", err)
	}

	c := &FileCalendar{
		holidays: make(map[string]struct{}, len(f.Holidays)),
		delayed:  make(map[string]struct{}, len(f.DelayedOpenDays)),
		years:    make(map[int]struct{}),
	}

	for _, s := range f.Holidays {
		d, err := time.Parse(dateLayout, s)
		if err != nil {
			return nil, fmt.Errorf("holiday %q: %w", s, err)
		}
		c.holidays[s] = struct{}{}
		c.years[d.Year()] = struct{}{}
	}
	for _, s := range f.DelayedOpenDays {
		d, err := time.Parse(dateLayout, s)
		if err != nil {
			return nil, fmt.Errorf("delayed open day %q: %w", s, err)
		}
		c.delayed[s] = struct{}{}
		c.years[d.Year()] = struct{}{}
	}

	return c, nil
}

// Default returns the built-in KRX calendar.
func Default() *FileCalendar {
	c, err := Parse(defaultCalendarYAML)
	if err != nil {
		panic(fmt.Sprintf("built-in calendar: %v", err))
	}
	return c
}

// IsHoliday implements Calendar.
func (c *FileCalendar) IsHoliday(date time.Time) bool {
	_, ok := c.holidays[date.Format(dateLayout)]
	return ok
}

// IsDelayedOpen implements Calendar.
func (c *FileCalendar) IsDelayedOpen(date time.Time) bool {
	if _, ok := c.delayed[date.Format(dateLayout)]; ok {
		return true
	}
	return isFirstTradingDay(c, date)
}

// HasYear implements Calendar.
func (c *FileCalendar) HasYear(year int) bool {
	_, ok := c.years[year]
	return ok
}

// Years returns the covered years in ascending order.
func (c *FileCalendar) Years() []int {
	years := make([]int, 0, len(c.years))
	for y := range c.years {
		years = append(years, y)
	}
	sort.Ints(years)
	return years
}

// IsTradingDay reports whether the exchange trades on date.
func IsTradingDay(cal Calendar, date time.Time) bool {
	if isWeekend(date) {
		return false
	}
	return !cal.IsHoliday(date)
}

// PreviousTradingDay returns the closest trading day strictly before date.
// The search gives up after a year and returns the day before date.
func PreviousTradingDay(cal Calendar, date time.Time) time.Time {
	d := date.AddDate(0, 0, -1)
	for i := 0; i < 366; i++ {
		if IsTradingDay(cal, d) {
			return d
		}
		d = d.AddDate(0, 0, -1)
	}
	return date.AddDate(0, 0, -1)
}

// isFirstTradingDay reports whether date is the first trading day of its year.
func isFirstTradingDay(cal Calendar, date time.Time) bool {
	if !IsTradingDay(cal, date) {
		return false
	}
	day := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, date.Location())
	d := time.Date(date.Year(), time.January, 1, 0, 0, 0, 0, date.Location())
	for d.Before(day) {
		if IsTradingDay(cal, d) {
			return false
		}
		d = d.AddDate(0, 0, 1)
	}
	return true
}

func isWeekend(date time.Time) bool {
	wd := date.Weekday()
	return wd == time.Saturday || wd == time.Sunday
}
