package clock

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/dealmatch/groupbuy/services/api/internal/domain"
)

// Date is a calendar day in the business location.
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

// DateOf returns the calendar day of t in t's own location.
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return Date{Year: y, Month: m, Day: d}
}

// ParseDate parses YYYY-MM-DD.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(time.DateOnly, strings.TrimSpace(s))
	if err != nil {
		return Date{}, domain.ErrInvalidConfig.Withf("invalid date %q", s)
	}
	return DateOf(t), nil
}

// String formats d as YYYY-MM-DD.
func (d Date) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, int(d.Month), d.Day)
}

// MarshalText encodes d as YYYY-MM-DD, so it works as a JSON value and map key.
func (d Date) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// Calendar reports configured holidays.
type Calendar interface {
	IsHoliday(d Date) bool
}

// Holiday is a named non-working day.
type Holiday struct {
	Date Date   `json:"date"`
	Name string `json:"name"`
}

// HolidaySet is a static Calendar.
type HolidaySet map[Date]struct{}

func NewHolidaySet(dates ...Date) HolidaySet {
	s := make(HolidaySet, len(dates))
	for _, d := range dates {
		s[d] = struct{}{}
	}
	return s
}

func (s HolidaySet) IsHoliday(d Date) bool {
	_, ok := s[d]
	return ok
}

// WorkingHours configures which instants count as business time. Start and
// End are offsets from local midnight.
type WorkingHours struct {
	Location *time.Location
	Start    time.Duration
	End      time.Duration
	Weekend  []time.Weekday
	Calendar Calendar
}

// DefaultWorkingHours is weekdays 09:00-18:00 in Asia/Seoul.
func DefaultWorkingHours() WorkingHours {
	loc, err := time.LoadLocation("Asia/Seoul")
	if err != nil {
		loc = time.FixedZone("KST", 9*60*60)
	}
	return WorkingHours{
		Location: loc,
		Start:    9 * time.Hour,
		End:      18 * time.Hour,
		Weekend:  []time.Weekday{time.Saturday, time.Sunday},
	}
}

// WorkingTime computes deadlines that only advance during business hours.
// It is pure: every method is a function of its arguments and the config.
type WorkingTime struct {
	loc      *time.Location
	start    time.Duration
	end      time.Duration
	weekend  [7]bool
	calendar Calendar
}

func NewWorkingTime(h WorkingHours) (*WorkingTime, error) {
	if h.Location == nil {
		return nil, domain.ErrInvalidConfig.Withf("working hours: location required")
	}
	if h.Start < 0 || h.End > 24*time.Hour || h.Start >= h.End {
		return nil, domain.ErrInvalidConfig.Withf("working hours: start %s must be before end %s within a day", h.Start, h.End)
	}
	wt := &WorkingTime{
		loc:      h.Location,
		start:    h.Start,
		end:      h.End,
		calendar: h.Calendar,
	}
	for _, d := range h.Weekend {
		if d < time.Sunday || d > time.Saturday {
			return nil, domain.ErrInvalidConfig.Withf("working hours: invalid weekday %d", d)
		}
		wt.weekend[d] = true
	}
	working := 0
	for _, off := range wt.weekend {
		if !off {
			working++
		}
	}
	if working == 0 {
		return nil, domain.ErrInvalidConfig.Withf("working hours: every weekday is a weekend day")
	}
	if wt.calendar == nil {
		wt.calendar = HolidaySet(nil)
	}
	return wt, nil
}

func (w *WorkingTime) Location() *time.Location { return w.loc }

// IsDeadTime reports whether ts falls on a weekend day, a holiday, or
// outside [start, end) local time. The end instant itself is dead.
func (w *WorkingTime) IsDeadTime(ts time.Time) bool {
	local := ts.In(w.loc)
	if w.offDay(local) {
		return true
	}
	tod := sinceMidnight(local)
	return tod < w.start || tod >= w.end
}

// NextResume returns the first non-dead instant at or after ts.
func (w *WorkingTime) NextResume(ts time.Time) time.Time {
	cur := ts.In(w.loc)
	for {
		if w.offDay(cur) {
			cur = w.at(cur.AddDate(0, 0, 1), w.start)
			continue
		}
		tod := sinceMidnight(cur)
		if tod >= w.end {
			cur = w.at(cur.AddDate(0, 0, 1), w.start)
			continue
		}
		if tod < w.start {
			cur = w.at(cur, w.start)
			continue
		}
		return cur.UTC()
	}
}

// AddWorkingDuration advances start by d counted only across business
// time. It jumps whole blocks: dead stretches are skipped in one step and
// each business window is consumed at most once per iteration.
func (w *WorkingTime) AddWorkingDuration(start time.Time, d time.Duration) time.Time {
	if d <= 0 {
		return start
	}
	cur := start.UTC()
	remaining := d
	for remaining > 0 {
		if w.IsDeadTime(cur) {
			cur = w.NextResume(cur)
			continue
		}
		blockEnd := w.at(cur.In(w.loc), w.end)
		span := blockEnd.Sub(cur)
		if span <= 0 {
			cur = w.NextResume(cur)
			continue
		}
		step := min(remaining, span)
		cur = cur.Add(step)
		remaining -= step
	}
	return cur.UTC()
}

func (w *WorkingTime) AddWorkingMinutes(start time.Time, minutes int) time.Time {
	return w.AddWorkingDuration(start, time.Duration(minutes)*time.Minute)
}

// AddWorkingHours accepts fractional hours, rounded to the nearest second.
func (w *WorkingTime) AddWorkingHours(start time.Time, hours float64) time.Time {
	return w.AddWorkingDuration(start, time.Duration(math.Round(hours*3600))*time.Second)
}

func (w *WorkingTime) offDay(local time.Time) bool {
	return w.weekend[local.Weekday()] || w.calendar.IsHoliday(DateOf(local))
}

// at returns the instant offset past local midnight of day's date.
func (w *WorkingTime) at(day time.Time, offset time.Duration) time.Time {
	y, m, d := day.Date()
	h := int(offset / time.Hour)
	mi := int(offset % time.Hour / time.Minute)
	sec := int(offset % time.Minute / time.Second)
	return time.Date(y, m, d, h, mi, sec, 0, w.loc)
}

func sinceMidnight(local time.Time) time.Duration {
	h, m, s := local.Clock()
	return time.Duration(h)*time.Hour + time.Duration(m)*time.Minute +
		time.Duration(s)*time.Second + time.Duration(local.Nanosecond())
}

// ParseTimeOfDay parses HH:MM into an offset from midnight. "24:00" is
// accepted as the end of the day.
func ParseTimeOfDay(s string) (time.Duration, error) {
	hh, mm, ok := strings.Cut(strings.TrimSpace(s), ":")
	if !ok {
		return 0, domain.ErrInvalidConfig.Withf("invalid time of day %q", s)
	}
	h, err := strconv.Atoi(hh)
	if err != nil {
		return 0, domain.ErrInvalidConfig.Withf("invalid time of day %q", s)
	}
	m, err := strconv.Atoi(mm)
	if err != nil {
		return 0, domain.ErrInvalidConfig.Withf("invalid time of day %q", s)
	}
	if h < 0 || m < 0 || m > 59 || h > 24 || (h == 24 && m != 0) {
		return 0, domain.ErrInvalidConfig.Withf("invalid time of day %q", s)
	}
	return time.Duration(h)*time.Hour + time.Duration(m)*time.Minute, nil
}
