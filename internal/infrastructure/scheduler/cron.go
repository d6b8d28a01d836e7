package scheduler

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

// CronExpression represents a parsed cron expression and implements Schedule.
// Supports standard 5-field format: minute hour day-of-month month day-of-week
// Examples:
//   - "*/5 * * * *"   - every 5 minutes
//   - "0 9 * * 1-5"   - weekdays at 09:00
//   - "30 8 1,15 * *" - 08:30 on the 1st and 15th
//   - "@daily"        - midnight
type CronExpression struct {
	raw      string
	minutes  []int // 0-59
	hours    []int // 0-23
	days     []int // 1-31
	months   []int // 1-12
	weekdays []int // 0-6 (0 = Sunday)

	// standard cron: when both day fields are restricted either one may match
	dayRestricted     bool
	weekdayRestricted bool
}

var cronMacros = map[string]string{
	"@hourly":   "0 * * * *",
	"@daily":    "0 0 * * *",
	"@midnight": "0 0 * * *",
	"@weekly":   "0 0 * * 0",
	"@monthly":  "0 0 1 * *",
}

// ParseCronExpression parses a cron expression string.
// Format: minute hour day-of-month month day-of-week
// Supports: *, */n, n, n-m, n-m/s, n,m,o and the @hourly/@daily/@weekly/@monthly macros.
func ParseCronExpression(expr string) (*CronExpression, error) {
	raw := strings.TrimSpace(expr)
	if m, ok := cronMacros[raw]; ok {
		expr = m
	}

	fields := strings.Fields(expr)
	if len(fields) != 5 {
		return nil, fmt.Errorf("invalid cron expression %q: expected 5 fields, got %d", raw, len(fields))
	}

	ce := &CronExpression{
		raw:               raw,
		dayRestricted:     fields[2] != "*",
		weekdayRestricted: fields[4] != "*",
	}
	var err error

	if ce.minutes, err = parseField(fields[0], 0, 59); err != nil {
		return nil, fmt.Errorf("invalid minute field: %w", err)
	}
	if ce.hours, err = parseField(fields[1], 0, 23); err != nil {
		return nil, fmt.Errorf("invalid hour field: %w", err)
	}
	if ce.days, err = parseField(fields[2], 1, 31); err != nil {
		return nil, fmt.Errorf("invalid day field: %w", err)
	}
	if ce.months, err = parseField(fields[3], 1, 12); err != nil {
		return nil, fmt.Errorf("invalid month field: %w", err)
	}
	// 7 is accepted as Sunday
	if ce.weekdays, err = parseField(fields[4], 0, 7); err != nil {
		return nil, fmt.Errorf("invalid weekday field: %w", err)
	}
	if n := len(ce.weekdays); n > 0 && ce.weekdays[n-1] == 7 {
		ce.weekdays = ce.weekdays[:n-1]
		if !contains(ce.weekdays, 0) {
			ce.weekdays = append([]int{0}, ce.weekdays...)
		}
	}

	return ce, nil
}

// parseField parses one field into a sorted, de-duplicated value list.
func parseField(field string, min, max int) ([]int, error) {
	seen := make(map[int]bool)
	for _, part := range strings.Split(field, ",") {
		values, err := parsePart(strings.TrimSpace(part), min, max)
		if err != nil {
			return nil, err
		}
		for _, v := range values {
			seen[v] = true
		}
	}

	result := make([]int, 0, len(seen))
	for v := range seen {
		result = append(result, v)
	}
	sort.Ints(result)
	return result, nil
}

func parsePart(part string, min, max int) ([]int, error) {
	if part == "" {
		return nil, fmt.Errorf("empty value")
	}

	step := 1
	if base, s, ok := strings.Cut(part, "/"); ok {
		n, err := strconv.Atoi(s)
		if err != nil || n <= 0 {
			return nil, fmt.Errorf("invalid step value: %s", s)
		}
		step = n
		part = base
	}

	start, end := min, max
	switch {
	case part == "*":
	case strings.Contains(part, "-"):
		lo, hi, _ := strings.Cut(part, "-")
		var err error
		if start, err = atoiInRange(lo, min, max); err != nil {
			return nil, err
		}
		if end, err = atoiInRange(hi, min, max); err != nil {
			return nil, err
		}
		if start > end {
			return nil, fmt.Errorf("invalid range: %s", part)
		}
	default:
		v, err := atoiInRange(part, min, max)
		if err != nil {
			return nil, err
		}
		start = v
		if step == 1 {
			end = v
		}
	}

	var out []int
	for i := start; i <= end; i += step {
		out = append(out, i)
	}
	return out, nil
}

func atoiInRange(s string, min, max int) (int, error) {
	v, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("invalid value: %s", s)
	}
	if v < min || v > max {
		return 0, fmt.Errorf("value out of range [%d-%d]: %d", min, max, v)
	}
	return v, nil
}

// String returns the original cron expression.
func (ce *CronExpression) String() string {
	return ce.raw
}

// Next calculates the next time the cron expression matches after the given
// time, in the location of after. Zero time if nothing matches within 5 years.
func (ce *CronExpression) Next(after time.Time) time.Time {
	t := after.Truncate(time.Minute).Add(time.Minute)
	limit := t.AddDate(5, 0, 0)

	for t.Before(limit) {
		if !contains(ce.months, int(t.Month())) {
			t = time.Date(t.Year(), t.Month()+1, 1, 0, 0, 0, 0, t.Location())
			continue
		}
		if !ce.dayMatches(t) {
			t = time.Date(t.Year(), t.Month(), t.Day()+1, 0, 0, 0, 0, t.Location())
			continue
		}
		if !contains(ce.hours, t.Hour()) {
			t = time.Date(t.Year(), t.Month(), t.Day(), t.Hour()+1, 0, 0, 0, t.Location())
			continue
		}
		if !contains(ce.minutes, t.Minute()) {
			t = t.Add(time.Minute)
			continue
		}
		return t
	}
	return time.Time{}
}

func (ce *CronExpression) dayMatches(t time.Time) bool {
	dom := contains(ce.days, t.Day())
	dow := contains(ce.weekdays, int(t.Weekday()))
	if ce.dayRestricted && ce.weekdayRestricted {
		return dom || dow
	}
	return dom && dow
}

func contains(slice []int, val int) bool {
	i := sort.SearchInts(slice, val)
	return i < len(slice) && slice[i] == val
}

// MustParseCronExpression parses a cron expression or panics.
// Use only for compile-time constants.
func MustParseCronExpression(expr string) *CronExpression {
	ce, err := ParseCronExpression(expr)
	if err != nil {
		panic(fmt.Sprintf("invalid cron expression %q: %v", expr, err))
	}
	return ce
}
