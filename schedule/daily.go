package schedule

import (
	"regexp"
	"sort"
	"strconv"
	"time"
)

// identifierPattern matches scripted daily identifiers. Lettered or suffixed
// sub-variants such as "week1_day2b" are rejected.
var identifierPattern = regexp.MustCompile(`^week(\d+)_day(\d+)$`)

// Key is the sortable position of a week/day pair: week*100 + day.
type Key int

// MakeKey builds the key of a week/day pair.
func MakeKey(week, day int) Key {
	return Key(week*100 + day)
}

// KeyForDays maps elapsed calendar days onto the week/day key. Week numbers
// start at 1 and days at 0.
func KeyForDays(days int) Key {
	if days < 0 {
		days = 0
	}
	return MakeKey(days/7+1, days%7)
}

// ParseIdentifier extracts the key of a "weekN_dayD" identifier.
func ParseIdentifier(id string) (Key, bool) {
	m := identifierPattern.FindStringSubmatch(id)
	if m == nil {
		return 0, false
	}
	week, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, false
	}
	day, err := strconv.Atoi(m[2])
	if err != nil {
		return 0, false
	}
	return MakeKey(week, day), true
}

// Identifier formats the canonical identifier for a week/day pair.
func Identifier(week, day int) string {
	return "week" + strconv.Itoa(week) + "_day" + strconv.Itoa(day)
}

// civil returns t's calendar date as a UTC midnight in loc.
func civil(t time.Time, loc *time.Location) time.Time {
	if loc != nil {
		t = t.In(loc)
	}
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// DaysBetween returns the whole calendar days from start to now, both read in
// now's location. DST transitions do not shift the count.
func DaysBetween(start, now time.Time) int {
	loc := now.Location()
	diff := civil(now, loc).Sub(civil(start, loc))
	return int(diff / (24 * time.Hour))
}

// HasNewDayStarted reports whether now's calendar date is strictly later than
// last's. A zero last means there is no history, which always counts as a new
// day.
func HasNewDayStarted(last, now time.Time) bool {
	if last.IsZero() {
		return true
	}
	return DaysBetween(last, now) > 0
}

// NextIdentifier picks the scripted identifier closest to the position of now
// relative to the conversation start. Only exact "weekN_dayD" identifiers are
// candidates. Equal distances resolve to the lexicographically smallest
// identifier.
func NextIdentifier(start, now time.Time, identifiers []string) (string, bool) {
	target := KeyForDays(DaysBetween(start, now))

	candidates := append([]string(nil), identifiers...)
	sort.Strings(candidates)

	best := ""
	bestDist := -1
	for _, id := range candidates {
		key, ok := ParseIdentifier(id)
		if !ok {
			continue
		}
		dist := int(key - target)
		if dist < 0 {
			dist = -dist
		}
		if bestDist < 0 || dist < bestDist {
			best, bestDist = id, dist
		}
	}
	return best, bestDist >= 0
}

// =============================================================================
// Scheduler
// =============================================================================

// Scheduler evaluates day boundaries with a fixed clock and location.
type Scheduler struct {
	now func() time.Time
	loc *time.Location
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) {
		if now != nil {
			s.now = now
		}
	}
}

// WithLocation fixes the timezone calendar dates are read in.
func WithLocation(loc *time.Location) Option {
	return func(s *Scheduler) {
		if loc != nil {
			s.loc = loc
		}
	}
}

// New creates a Scheduler using the local clock and time.Local.
func New(opts ...Option) *Scheduler {
	s := &Scheduler{now: time.Now, loc: time.Local}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Now returns the current time in the scheduler's location.
func (s *Scheduler) Now() time.Time {
	return s.now().In(s.loc)
}

// Location returns the timezone calendar dates are read in.
func (s *Scheduler) Location() *time.Location {
	return s.loc
}

// NewDay reports whether a new calendar day started since last.
func (s *Scheduler) NewDay(last time.Time) bool {
	return HasNewDayStarted(last, s.Now())
}

// Next picks the scripted identifier due for a conversation started at start.
func (s *Scheduler) Next(start time.Time, identifiers []string) (string, bool) {
	return NextIdentifier(start, s.Now(), identifiers)
}
