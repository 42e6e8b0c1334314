package config

import (
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/jonathanpberger/typingpool/internal/domain"
)

const (
	day   = 24 * time.Hour
	month = 30 * day
	year  = 365 * day
)

var timespecPattern = regexp.MustCompile(`^(\d+(?:\.\d+)?|\.\d+)\s*(y|Mo|mo|M|d|h|m|s)?$`)

var timespecUnits = map[string]time.Duration{
	"y":  year,
	"Mo": month,
	"mo": month,
	"M":  month,
	"d":  day,
	"h":  time.Hour,
	"m":  time.Minute,
	"s":  time.Second,
	"":   time.Second,
}

// ParseTimespec converts a human timespec such as "3h", "1.5d" or "2Mo" into a
// duration. A bare number is seconds. Lower-case "m" is minutes; "M" and "Mo"
// are 30-day months; "y" is 365 days.
func ParseTimespec(spec string) (time.Duration, error) {
	m := timespecPattern.FindStringSubmatch(strings.TrimSpace(spec))
	if m == nil {
		return 0, &domain.ArgumentError{Field: "timespec", Value: spec, Reason: "can't convert to time"}
	}
	n, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0, &domain.ArgumentError{Field: "timespec", Value: spec, Reason: "can't convert to time"}
	}
	d := n * float64(timespecUnits[m[2]])
	if d > math.MaxInt64 {
		return 0, &domain.ArgumentError{Field: "timespec", Value: spec, Reason: "too long"}
	}
	return time.Duration(d).Round(time.Second), nil
}
