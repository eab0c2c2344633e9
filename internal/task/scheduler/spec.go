package scheduler

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var reHHMM = regexp.MustCompile(`^\s*(\d{1,2}):(\d{2})\s*$`)

// ParseHHMM parses a wall-clock time "HH:MM" (24h).
func ParseHHMM(raw string) (hour, minute int, err error) {
	m := reHHMM.FindStringSubmatch(raw)
	if len(m) != 3 {
		return 0, 0, fmt.Errorf("invalid time %q (use HH:MM, e.g. 09:00)", raw)
	}
	hour, _ = strconv.Atoi(m[1])
	minute, _ = strconv.Atoi(m[2])
	if hour > 23 {
		return 0, 0, fmt.Errorf("invalid hour in %q", raw)
	}
	if minute > 59 {
		return 0, 0, fmt.Errorf("invalid minutes in %q", raw)
	}
	return hour, minute, nil
}

// DailySpec converts "HH:MM" into a five-field cron expression.
func DailySpec(dailyAt string) (string, error) {
	h, m, err := ParseHHMM(dailyAt)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%d %d * * *", m, h), nil
}

// LoadLocation resolves an IANA zone name. Empty means time.Local.
func LoadLocation(tz string) (*time.Location, error) {
	tz = strings.TrimSpace(tz)
	if tz == "" {
		return time.Local, nil
	}
	return time.LoadLocation(tz)
}
