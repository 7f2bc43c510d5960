package schedule

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestHasNewDayStarted(t *testing.T) {
	loc := time.FixedZone("UTC+2", 2*60*60)

	tests := []struct {
		name string
		last time.Time
		now  time.Time
		want bool
	}{
		{
			name: "no history",
			now:  time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC),
			want: true,
		},
		{
			name: "same date morning and evening",
			last: time.Date(2024, 3, 1, 0, 1, 0, 0, time.UTC),
			now:  time.Date(2024, 3, 1, 23, 59, 0, 0, time.UTC),
			want: false,
		},
		{
			name: "midnight boundary",
			last: time.Date(2024, 3, 1, 23, 59, 0, 0, time.UTC),
			now:  time.Date(2024, 3, 2, 0, 1, 0, 0, time.UTC),
			want: true,
		},
		{
			name: "dates read in now's location",
			last: time.Date(2024, 3, 1, 21, 30, 0, 0, time.UTC), // 23:30 in UTC+2
			now:  time.Date(2024, 3, 2, 0, 10, 0, 0, loc),
			want: true,
		},
		{
			name: "now before last",
			last: time.Date(2024, 3, 2, 8, 0, 0, 0, time.UTC),
			now:  time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC),
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, HasNewDayStarted(tt.last, tt.now))
		})
	}
}

func TestDaysBetween_DSTSafe(t *testing.T) {
	loc, err := time.LoadLocation("Europe/Amsterdam")
	if err != nil {
		t.Skipf("tzdata unavailable: %v", err)
	}
	// Spring forward happens on 2024-03-31.
	start := time.Date(2024, 3, 30, 12, 0, 0, 0, loc)
	now := time.Date(2024, 4, 1, 0, 30, 0, 0, loc)

	assert.Equal(t, 2, DaysBetween(start, now))
}

func TestKeyForDays(t *testing.T) {
	assert.Equal(t, Key(100), KeyForDays(0))
	assert.Equal(t, Key(106), KeyForDays(6))
	assert.Equal(t, Key(200), KeyForDays(7))
	assert.Equal(t, Key(302), KeyForDays(16))
	assert.Equal(t, Key(100), KeyForDays(-3))
}

func TestParseIdentifier(t *testing.T) {
	key, ok := ParseIdentifier("week2_day3")
	require.True(t, ok)
	assert.Equal(t, Key(203), key)

	for _, id := range []string{"week2_day3b", "week2_day3_a", "offtopic", "week_day1", "xweek1_day1"} {
		_, ok := ParseIdentifier(id)
		assert.False(t, ok, id)
	}
}

func TestNextIdentifier(t *testing.T) {
	start := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	catalog := []string{"week1_day0", "week1_day1", "week1_day3", "week2_day0", "week1_day1b", "offtopic"}

	tests := []struct {
		name    string
		days    int
		want    string
		wantOK  bool
		catalog []string
	}{
		{name: "exact day one", days: 1, want: "week1_day1", wantOK: true, catalog: catalog},
		{name: "exact week two", days: 7, want: "week2_day0", wantOK: true, catalog: catalog},
		{name: "closest below", days: 4, want: "week1_day3", wantOK: true, catalog: catalog},
		{name: "tie picks smallest identifier", days: 2, want: "week1_day1", wantOK: true, catalog: catalog},
		{name: "far future", days: 60, want: "week2_day0", wantOK: true, catalog: catalog},
		{name: "no candidates", days: 1, wantOK: false, catalog: []string{"offtopic", "week1_day1b"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			now := start.AddDate(0, 0, tt.days).Add(3 * time.Hour)
			got, ok := NextIdentifier(start, now, tt.catalog)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestScheduler_UsesClockAndLocation(t *testing.T) {
	loc := time.FixedZone("UTC-5", -5*60*60)
	fixed := time.Date(2024, 3, 2, 3, 0, 0, 0, time.UTC) // 22:00 on Mar 1 in UTC-5
	s := New(WithClock(func() time.Time { return fixed }), WithLocation(loc))

	assert.Equal(t, loc, s.Now().Location())
	assert.False(t, s.NewDay(time.Date(2024, 3, 1, 14, 0, 0, 0, loc)))

	id, ok := s.Next(time.Date(2024, 2, 29, 12, 0, 0, 0, loc), []string{"week1_day0", "week1_day1"})
	require.True(t, ok)
	assert.Equal(t, "week1_day1", id)
}

func TestProperty_NextIdentifierStaysInCatalog(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		n := rapid.IntRange(0, 12).Draw(rt, "n")
		ids := make([]string, 0, n+2)
		for i := 0; i < n; i++ {
			week := rapid.IntRange(1, 6).Draw(rt, "week")
			day := rapid.IntRange(0, 6).Draw(rt, "day")
			ids = append(ids, Identifier(week, day))
		}
		ids = append(ids, "offtopic", "week1_day2b")

		start := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
		days := rapid.IntRange(0, 60).Draw(rt, "days")
		now := start.AddDate(0, 0, days)

		got, ok := NextIdentifier(start, now, ids)
		if n == 0 {
			if ok {
				rt.Fatalf("expected no candidate, got %q", got)
			}
			return
		}
		if !ok {
			rt.Fatalf("expected a candidate")
		}
		if _, valid := ParseIdentifier(got); !valid {
			rt.Fatalf("returned non-daily identifier %q", got)
		}
		found := false
		for _, id := range ids {
			if id == got {
				found = true
				break
			}
		}
		if !found {
			rt.Fatalf("returned identifier %q outside catalog", got)
		}
	})
}

func TestProperty_ExactKeyMatch(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		days := rapid.IntRange(0, 120).Draw(rt, "days")
		exact := Identifier(days/7+1, days%7)
		ids := []string{exact}
		for i := rapid.IntRange(0, 6).Draw(rt, "extra"); i > 0; i-- {
			ids = append(ids, Identifier(rapid.IntRange(1, 20).Draw(rt, "week"), rapid.IntRange(0, 6).Draw(rt, "day")))
		}

		start := time.Date(2024, 6, 1, 18, 0, 0, 0, time.UTC)
		now := start.AddDate(0, 0, days).Add(time.Duration(rapid.IntRange(-17, 5).Draw(rt, "hours")) * time.Hour)

		got, ok := NextIdentifier(start, now, ids)
		if !ok || got != exact {
			rt.Fatalf("days=%d: expected %q, got %q", days, exact, got)
		}
	})
}

func TestProperty_SameDateNeverNewDay(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, rapid.IntRange(0, 365).Draw(rt, "day"))
		a := base.Add(time.Duration(rapid.IntRange(0, 86399).Draw(rt, "a")) * time.Second)
		b := base.Add(time.Duration(rapid.IntRange(0, 86399).Draw(rt, "b")) * time.Second)
		if HasNewDayStarted(a, b) {
			rt.Fatalf("same date %v / %v reported new day", a, b)
		}
		if !HasNewDayStarted(a, b.AddDate(0, 0, 1)) {
			rt.Fatalf("next date not reported as new day")
		}
	})
}
