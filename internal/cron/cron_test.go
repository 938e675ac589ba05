package cron

import (
	"testing"
	"time"
)

func mustParse(t *testing.T, layout, value string) time.Time {
	t.Helper()
	tm, err := time.Parse(layout, value)
	if err != nil {
		t.Fatalf("time.Parse(%q): %v", value, err)
	}
	return tm
}

func TestParseValid(t *testing.T) {
	tests := []struct {
		name string
		expr string
	}{
		{"every second", "* * * * * *"},
		{"daily macro", "@daily"},
		{"hourly macro", "@hourly"},
		{"weekly macro", "@weekly"},
		{"step seconds", "*/15 * * * * *"},
		{"explicit list", "0,30 * * * * *"},
		{"range", "0 0 9-17 * * *"},
		{"day of week", "0 0 0 * * 1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Parse(tt.expr); err != nil {
				t.Errorf("Parse(%q) returned error: %v", tt.expr, err)
			}
		})
	}
}

func TestParseInvalid(t *testing.T) {
	tests := []struct {
		name string
		expr string
	}{
		{"too few fields", "* * * * *"},
		{"too many fields", "* * * * * * *"},
		{"out of range second", "60 * * * * *"},
		{"out of range day of month", "0 0 0 32 * *"},
		{"bad range order", "0 0 17-9 * * *"},
		{"non-numeric", "x * * * * *"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Parse(tt.expr); err == nil {
				t.Errorf("Parse(%q) expected error, got nil", tt.expr)
			}
		})
	}
}

func TestValidate(t *testing.T) {
	if !Validate("0 0 * * * *") {
		t.Error("Validate(valid expr) = false, want true")
	}
	if Validate("not a cron expression") {
		t.Error("Validate(invalid expr) = true, want false")
	}
}

func TestNextEveryMinute(t *testing.T) {
	base := mustParse(t, "2006-01-02 15:04:05", "2026-07-31 10:00:30")
	got, err := Next("0 * * * * *", base)
	if err != nil {
		t.Fatalf("Next returned error: %v", err)
	}
	want := mustParse(t, "2006-01-02 15:04:05", "2026-07-31 10:01:00")
	if !got.Equal(want) {
		t.Errorf("Next() = %v, want %v", got, want)
	}
}

func TestNextExactMatchSkipsToNextOccurrence(t *testing.T) {
	base := mustParse(t, "2006-01-02 15:04:05", "2026-07-31 10:01:00")
	got, err := Next("0 * * * * *", base)
	if err != nil {
		t.Fatalf("Next returned error: %v", err)
	}
	want := mustParse(t, "2006-01-02 15:04:05", "2026-07-31 10:02:00")
	if !got.Equal(want) {
		t.Errorf("Next() = %v, want %v (strictly greater than base)", got, want)
	}
}

func TestNextCrossesMonthBoundary(t *testing.T) {
	base := mustParse(t, "2006-01-02 15:04:05", "2026-01-31 23:59:59")
	got, err := Next("0 0 0 1 * *", base)
	if err != nil {
		t.Fatalf("Next returned error: %v", err)
	}
	want := mustParse(t, "2006-01-02 15:04:05", "2026-02-01 00:00:00")
	if !got.Equal(want) {
		t.Errorf("Next() = %v, want %v", got, want)
	}
}

func TestPrevIsInverseOfNext(t *testing.T) {
	base := mustParse(t, "2006-01-02 15:04:05", "2026-07-31 10:05:00")
	next, err := Next("0 */5 * * * *", base)
	if err != nil {
		t.Fatalf("Next returned error: %v", err)
	}
	prev, err := Prev("0 */5 * * * *", next.Add(time.Second))
	if err != nil {
		t.Fatalf("Prev returned error: %v", err)
	}
	if !prev.Equal(next) {
		t.Errorf("Prev(Next(base)+1s) = %v, want %v", prev, next)
	}
}

// dateMatches applies the conventional CRON OR-rule when both day-of-month
// and day-of-week are restricted: the 15th of the month is a Wednesday in
// July 2026, but the rule should also fire on Mondays that aren't the 15th.
func TestDayOfMonthOrDayOfWeekSemantics(t *testing.T) {
	s, err := Parse("0 0 0 15 * 1")
	if err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}

	monday := mustParse(t, "2006-01-02", "2026-07-06") // a Monday, not the 15th
	if !s.dateMatches(monday) {
		t.Errorf("dateMatches(%v) = false, want true (matches day-of-week)", monday)
	}

	fifteenth := mustParse(t, "2006-01-02", "2026-07-15") // a Wednesday
	if !s.dateMatches(fifteenth) {
		t.Errorf("dateMatches(%v) = false, want true (matches day-of-month)", fifteenth)
	}

	neither := mustParse(t, "2006-01-02", "2026-07-16") // a Thursday, not the 15th
	if s.dateMatches(neither) {
		t.Errorf("dateMatches(%v) = true, want false (matches neither)", neither)
	}
}

func TestDescribe(t *testing.T) {
	tests := []struct {
		expr string
		want string
	}{
		{"*/30 * * * * *", "every 30 seconds"},
		{"0 */5 * * * *", "every 5 minutes"},
		{"0 0 * * * *", "hourly"},
		{"0 30 9 * * *", "daily at 09:30:00"},
		{"0 0 0 1 1 *", "0 0 0 1 1 *"},
	}
	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			if got := Describe(tt.expr); got != tt.want {
				t.Errorf("Describe(%q) = %q, want %q", tt.expr, got, tt.want)
			}
		})
	}
}
