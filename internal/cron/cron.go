// Package cron parses 6-field CRON expressions (with seconds) and computes
// next/previous fire instants.
package cron

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

// ErrInvalidSchedule is returned when an expression does not parse under the
// evaluator's grammar or a field value is outside its domain range.
var ErrInvalidSchedule = errors.New("invalid cron schedule")

// searchWindow bounds how far Next/Prev will search before giving up.
const searchWindow = 4 * 365 * 24 * time.Hour

var predefinedSchedules = map[string]string{
	"@yearly":   "0 0 0 1 1 *",
	"@annually": "0 0 0 1 1 *",
	"@monthly":  "0 0 0 1 * *",
	"@weekly":   "0 0 0 * * 0",
	"@daily":    "0 0 0 * * *",
	"@midnight": "0 0 0 * * *",
	"@hourly":   "0 0 * * * *",
}

// Schedule is a parsed 6-field CRON expression: second, minute, hour,
// day-of-month, month, day-of-week.
type Schedule struct {
	seconds     []int
	minutes     []int
	hours       []int
	daysOfMonth []int
	months      []int
	daysOfWeek  []int
	domRestricted bool
	dowRestricted bool
	expr        string
}

// Parse parses a 6-field CRON expression, or one of the recognized macros
// (@yearly, @annually, @monthly, @weekly, @daily, @midnight, @hourly).
// Returns ErrInvalidSchedule if the expression is malformed.
func Parse(expr string) (*Schedule, error) {
	trimmed := strings.TrimSpace(expr)

	if replacement, ok := predefinedSchedules[strings.ToLower(trimmed)]; ok {
		trimmed = replacement
	}

	fields := strings.Fields(trimmed)
	if len(fields) != 6 {
		return nil, fmt.Errorf("%w: expected 6 fields, got %d", ErrInvalidSchedule, len(fields))
	}

	s := &Schedule{expr: expr}
	var err error

	if s.seconds, err = parseField(fields[0], 0, 59); err != nil {
		return nil, fmt.Errorf("%w: second field: %v", ErrInvalidSchedule, err)
	}
	if s.minutes, err = parseField(fields[1], 0, 59); err != nil {
		return nil, fmt.Errorf("%w: minute field: %v", ErrInvalidSchedule, err)
	}
	if s.hours, err = parseField(fields[2], 0, 23); err != nil {
		return nil, fmt.Errorf("%w: hour field: %v", ErrInvalidSchedule, err)
	}
	if s.daysOfMonth, err = parseField(fields[3], 1, 31); err != nil {
		return nil, fmt.Errorf("%w: day-of-month field: %v", ErrInvalidSchedule, err)
	}
	if s.months, err = parseField(fields[4], 1, 12); err != nil {
		return nil, fmt.Errorf("%w: month field: %v", ErrInvalidSchedule, err)
	}
	if s.daysOfWeek, err = parseField(fields[5], 0, 6); err != nil {
		return nil, fmt.Errorf("%w: day-of-week field: %v", ErrInvalidSchedule, err)
	}
	s.domRestricted = strings.TrimSpace(fields[3]) != "*"
	s.dowRestricted = strings.TrimSpace(fields[5]) != "*"

	return s, nil
}

// Validate reports whether expr parses as a well-formed 6-field CRON
// expression.
func Validate(expr string) bool {
	_, err := Parse(expr)
	return err == nil
}

// String returns the original expression text.
func (s *Schedule) String() string {
	return s.expr
}

// dateMatches reports whether the day-of-month/month/day-of-week fields
// match t, applying the conventional CRON OR-rule: when both day-of-month
// and day-of-week are restricted, either one matching is sufficient.
func (s *Schedule) dateMatches(t time.Time) bool {
	if !intContains(s.months, int(t.Month())) {
		return false
	}
	domMatch := intContains(s.daysOfMonth, t.Day())
	dowMatch := intContains(s.daysOfWeek, int(t.Weekday()))
	switch {
	case s.domRestricted && s.dowRestricted:
		return domMatch || dowMatch
	case s.domRestricted:
		return domMatch
	case s.dowRestricted:
		return dowMatch
	default:
		return true
	}
}

func (s *Schedule) timeMatches(t time.Time) bool {
	return intContains(s.hours, t.Hour()) &&
		intContains(s.minutes, t.Minute()) &&
		intContains(s.seconds, t.Second())
}

// Next returns the smallest instant strictly greater than base at which all
// six fields match. base's sub-second component is ignored (floored to the
// second before searching).
func Next(expr string, base time.Time) (time.Time, error) {
	s, err := Parse(expr)
	if err != nil {
		return time.Time{}, err
	}
	return s.Next(base), nil
}

// Prev returns the largest instant strictly smaller than base at which all
// six fields match.
func Prev(expr string, base time.Time) (time.Time, error) {
	s, err := Parse(expr)
	if err != nil {
		return time.Time{}, err
	}
	return s.Prev(base), nil
}

// Next is the method form of the package-level Next.
func (s *Schedule) Next(base time.Time) time.Time {
	t := base.Truncate(time.Second).Add(time.Second)
	limit := t.Add(searchWindow)

	for t.Before(limit) {
		if !intContains(s.months, int(t.Month())) {
			t = time.Date(t.Year(), t.Month()+1, 1, 0, 0, 0, 0, t.Location())
			continue
		}
		if !s.dateMatches(t) {
			t = time.Date(t.Year(), t.Month(), t.Day()+1, 0, 0, 0, 0, t.Location())
			continue
		}
		if !intContains(s.hours, t.Hour()) {
			t = time.Date(t.Year(), t.Month(), t.Day(), t.Hour()+1, 0, 0, 0, t.Location())
			continue
		}
		if !intContains(s.minutes, t.Minute()) {
			t = t.Add(time.Minute - time.Duration(t.Second())*time.Second)
			continue
		}
		if !intContains(s.seconds, t.Second()) {
			t = t.Add(time.Second)
			continue
		}
		return t
	}
	return time.Time{}
}

// Prev is the method form of the package-level Prev, searching backward.
func (s *Schedule) Prev(base time.Time) time.Time {
	t := base.Truncate(time.Second).Add(-time.Second)
	limit := t.Add(-searchWindow)

	for t.After(limit) {
		if !intContains(s.months, int(t.Month())) {
			t = time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location()).Add(-time.Second)
			continue
		}
		if !s.dateMatches(t) {
			t = time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location()).Add(-time.Second)
			continue
		}
		if !intContains(s.hours, t.Hour()) {
			t = time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), 0, 0, 0, t.Location()).Add(-time.Second)
			continue
		}
		if !intContains(s.minutes, t.Minute()) {
			t = time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), 0, 0, t.Location()).Add(-time.Second)
			continue
		}
		if !intContains(s.seconds, t.Second()) {
			t = t.Add(-time.Second)
			continue
		}
		return t
	}
	return time.Time{}
}

// Describe returns a short human-readable description of the expression,
// covering the common shapes produced by the REST API (every-N-seconds,
// hourly, daily, weekday schedules) and falling back to the raw expression
// for anything else.
func Describe(expr string) string {
	trimmed := strings.TrimSpace(expr)
	fields := strings.Fields(trimmed)
	if len(fields) != 6 {
		return trimmed
	}
	sec, min, hour, dom, mon, dow := fields[0], fields[1], fields[2], fields[3], fields[4], fields[5]

	if dom == "*" && mon == "*" && dow == "*" {
		if strings.HasPrefix(sec, "*/") && min == "*" && hour == "*" {
			return "every " + sec[2:] + " seconds"
		}
		if sec == "0" && strings.HasPrefix(min, "*/") && hour == "*" {
			return "every " + min[2:] + " minutes"
		}
		if sec == "0" && min == "0" && hour == "*" {
			return "hourly"
		}
		if sec == "0" && min != "*" && hour != "*" {
			return fmt.Sprintf("daily at %s:%s:%s", pad2(hour), pad2(min), pad2(sec))
		}
	}
	return trimmed
}

func pad2(v string) string {
	if len(v) == 1 {
		return "0" + v
	}
	return v
}

func parseField(field string, min, max int) ([]int, error) {
	if field == "*" {
		return makeRange(min, max, 1), nil
	}

	var values []int
	for _, part := range strings.Split(field, ",") {
		partValues, err := parsePart(part, min, max)
		if err != nil {
			return nil, err
		}
		values = append(values, partValues...)
	}

	values = uniqueInts(values)
	sort.Ints(values)
	if len(values) == 0 {
		return nil, fmt.Errorf("no values resolved for field: %s", field)
	}
	return values, nil
}

func parsePart(part string, min, max int) ([]int, error) {
	stepParts := strings.SplitN(part, "/", 2)

	step := 1
	if len(stepParts) == 2 {
		var err error
		step, err = strconv.Atoi(stepParts[1])
		if err != nil || step <= 0 {
			return nil, fmt.Errorf("invalid step value: %s", stepParts[1])
		}
	}

	rangeStr := stepParts[0]

	if rangeStr == "*" {
		return makeRange(min, max, step), nil
	}

	rangeParts := strings.SplitN(rangeStr, "-", 2)
	if len(rangeParts) == 2 {
		rangeMin, err := strconv.Atoi(rangeParts[0])
		if err != nil {
			return nil, fmt.Errorf("invalid range start: %s", rangeParts[0])
		}
		rangeMax, err := strconv.Atoi(rangeParts[1])
		if err != nil {
			return nil, fmt.Errorf("invalid range end: %s", rangeParts[1])
		}
		if rangeMin < min || rangeMax > max || rangeMin > rangeMax {
			return nil, fmt.Errorf("range %d-%d out of bounds [%d, %d]", rangeMin, rangeMax, min, max)
		}
		return makeRange(rangeMin, rangeMax, step), nil
	}

	val, err := strconv.Atoi(rangeStr)
	if err != nil {
		return nil, fmt.Errorf("invalid value: %s", rangeStr)
	}
	if val < min || val > max {
		return nil, fmt.Errorf("value %d out of bounds [%d, %d]", val, min, max)
	}
	return []int{val}, nil
}

func makeRange(start, end, step int) []int {
	var result []int
	for i := start; i <= end; i += step {
		result = append(result, i)
	}
	return result
}

func intContains(slice []int, val int) bool {
	idx := sort.SearchInts(slice, val)
	return idx < len(slice) && slice[idx] == val
}

func uniqueInts(slice []int) []int {
	seen := make(map[int]bool, len(slice))
	result := make([]int, 0, len(slice))
	for _, v := range slice {
		if !seen[v] {
			seen[v] = true
			result = append(result, v)
		}
	}
	return result
}
