package cronexpr

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

// ErrConfig is returned (wrapped) for every expression that cannot be scheduled.
var ErrConfig = errors.New("invalid cron expression")

// parser expects seconds first; Parse moves the trailing seconds field there.
var parser = cron.NewParser(cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// Expression is a validated cron expression. The zero value never fires.
type Expression struct {
	raw    string
	fields int
	sched  cron.Schedule
}

// Parse validates raw and returns the compiled expression.
//
// Exactly 5 or 6 whitespace separated fields are accepted. When the seconds
// field is omitted it defaults to 0.
func Parse(raw string) (Expression, error) {
	fields := strings.Fields(raw)
	var spec []string
	switch len(fields) {
	case 5:
		spec = append([]string{"0"}, fields...)
	case 6:
		spec = append([]string{fields[5]}, fields[:5]...)
	default:
		return Expression{}, fmt.Errorf("%w %q: want 5 or 6 fields (minute hour day month weekday [second]), got %d",
			ErrConfig, raw, len(fields))
	}
	spec[5] = normalizeWeekday(spec[5])
	sched, err := parser.Parse(strings.Join(spec, " "))
	if err != nil {
		return Expression{}, fmt.Errorf("%w %q: %v", ErrConfig, raw, err)
	}
	return Expression{raw: strings.Join(fields, " "), fields: len(fields), sched: sched}, nil
}

// normalizeWeekday rewrites weekday 7 (Sunday in classic crontab) to 0, the
// only form robfig accepts. Lists, ranges ending in 7 and stepped ranges are
// handled; anything else is passed through for the parser to judge.
func normalizeWeekday(field string) string {
	parts := strings.Split(field, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		out = append(out, normalizeWeekdayPart(p))
	}
	return strings.Join(out, ",")
}

func normalizeWeekdayPart(p string) string {
	base, step, hasStep := strings.Cut(p, "/")
	if base == "7" && !hasStep {
		return "0"
	}
	lo, hi, isRange := strings.Cut(base, "-")
	if !isRange || hi != "7" {
		return p
	}
	from, err := strconv.Atoi(lo)
	if err != nil || from < 0 || from > 7 {
		return p
	}
	by := 1
	if hasStep {
		if by, err = strconv.Atoi(step); err != nil || by <= 0 {
			return p
		}
	}
	if !hasStep {
		switch from {
		case 0:
			return "0-6"
		case 7:
			return "0"
		case 6:
			return "6,0"
		}
		return lo + "-6,0"
	}
	days := make([]string, 0, 8)
	for d := from; d <= 7; d += by {
		days = append(days, strconv.Itoa(d%7))
	}
	return strings.Join(days, ",")
}

// MustParse is like Parse but panics on error. Intended for package-level vars and tests.
func MustParse(raw string) Expression {
	e, err := Parse(raw)
	if err != nil {
		panic(err)
	}
	return e
}

func (e Expression) String() string { return e.raw }

// Fields reports how many fields the source expression had (5 or 6).
func (e Expression) Fields() int { return e.fields }

func (e Expression) HasSeconds() bool { return e.fields == 6 }

func (e Expression) IsZero() bool { return e.sched == nil }

// Next returns the first matching instant strictly after ref, evaluated in
// ref's location. A zero time means there is no further match.
func (e Expression) Next(ref time.Time) time.Time {
	if e.sched == nil {
		return time.Time{}
	}
	return e.sched.Next(ref)
}

// Preview returns up to n upcoming fire times after from.
func Preview(e Expression, from time.Time, n int) []time.Time {
	out := make([]time.Time, 0, max(n, 0))
	t := from
	for i := 0; i < n; i++ {
		t = e.Next(t)
		if t.IsZero() {
			break
		}
		out = append(out, t)
	}
	return out
}

// FormatPreview renders Preview as a short, human friendly list.
func FormatPreview(e Expression, from time.Time, n int) string {
	var b strings.Builder
	for i, t := range Preview(e, from, n) {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(t.Format("2006-01-02 15:04:05"))
	}
	return b.String()
}

// LoadLocation resolves an IANA zone name. Empty and "UTC" map to time.UTC,
// "Local" to time.Local.
func LoadLocation(name string) (*time.Location, error) {
	name = strings.TrimSpace(name)
	switch {
	case name == "", strings.EqualFold(name, "utc"):
		return time.UTC, nil
	case strings.EqualFold(name, "local"):
		return time.Local, nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("load location %q: %w", name, err)
	}
	return loc, nil
}
