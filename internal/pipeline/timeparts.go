package pipeline

import (
	"time"

	"starschema/internal/dataset"
)

// Calendar is the decomposition of one timestamp as stored in the time
// dimension. Week is the ISO-8601 week number; Weekday runs 1 (Monday)
// through 7 (Sunday).
type Calendar struct {
	Hour, Day, Week, Month, Year, Weekday int32
}

// Decompose breaks t down in loc.
func Decompose(t time.Time, loc *time.Location) Calendar {
	t = t.In(loc)
	_, week := t.ISOWeek()
	wd := int32(t.Weekday())
	if wd == 0 {
		wd = 7
	}
	return Calendar{
		Hour:    int32(t.Hour()),
		Day:     int32(t.Day()),
		Week:    int32(week),
		Month:   int32(t.Month()),
		Year:    int32(t.Year()),
		Weekday: wd,
	}
}

// EpochMillis converts a millisecond epoch into an instant. NULL stays NULL.
func EpochMillis(v any) any {
	ms, ok := v.(int64)
	if !ok {
		return nil
	}
	return time.UnixMilli(ms).UTC()
}

// withCalendar appends the named calendar parts of the timestamp column src.
func withCalendar(d *dataset.Dataset, src string, loc *time.Location, parts ...string) (*dataset.Dataset, error) {
	get, err := d.Getter(src)
	if err != nil {
		return nil, err
	}
	pick := map[string]func(Calendar) int32{
		"hour":    func(c Calendar) int32 { return c.Hour },
		"day":     func(c Calendar) int32 { return c.Day },
		"week":    func(c Calendar) int32 { return c.Week },
		"month":   func(c Calendar) int32 { return c.Month },
		"year":    func(c Calendar) int32 { return c.Year },
		"weekday": func(c Calendar) int32 { return c.Weekday },
	}
	for _, p := range parts {
		fn := pick[p]
		d, err = d.WithColumn(p, dataset.Int, func(r dataset.Row) any {
			t, ok := get(r).(time.Time)
			if !ok {
				return nil
			}
			return fn(Decompose(t, loc))
		})
		if err != nil {
			return nil, err
		}
	}
	return d, nil
}
