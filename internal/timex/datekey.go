package timex

import "time"

// DateKeyLayout is the calendar-day key format, e.g. "2024-03-01".
const DateKeyLayout = "2006-01-02"

// DateKey returns the calendar day of t in loc.
func DateKey(t time.Time, loc *time.Location) string {
	if loc == nil {
		loc = time.UTC
	}
	return t.In(loc).Format(DateKeyLayout)
}

// DateKeyFromMillis converts an epoch-millis timestamp to a date key in loc.
func DateKeyFromMillis(ms int64, loc *time.Location) string {
	return DateKey(time.UnixMilli(ms), loc)
}

// ParseDateKey parses a key produced by DateKey. The result is midnight UTC,
// which is enough for day arithmetic.
func ParseDateKey(key string) (time.Time, error) {
	return time.Parse(DateKeyLayout, key)
}

// PrevDateKey returns the calendar day before key.
func PrevDateKey(key string) (string, error) {
	t, err := ParseDateKey(key)
	if err != nil {
		return "", err
	}
	return t.AddDate(0, 0, -1).Format(DateKeyLayout), nil
}

// NextDateKey returns the calendar day after key.
func NextDateKey(key string) (string, error) {
	t, err := ParseDateKey(key)
	if err != nil {
		return "", err
	}
	return t.AddDate(0, 0, 1).Format(DateKeyLayout), nil
}
