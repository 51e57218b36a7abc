package auth

import (
	"fmt"
	"regexp"
	"strconv"
	"time"
)

var durationPattern = regexp.MustCompile(`^(\d+)([smhd])$`)

// ParseDuration parses human-readable lifetimes such as "15m" or "7d".
// Accepted units are s, m, h and d. A malformed string is a configuration
// error and must abort startup, never surface at request time.
func ParseDuration(raw string) (time.Duration, error) {
	m := durationPattern.FindStringSubmatch(raw)
	if m == nil {
		return 0, fmt.Errorf("invalid duration %q: want <number><s|m|h|d>", raw)
	}
	n, err := strconv.ParseInt(m[1], 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid duration %q: %w", raw, err)
	}
	switch m[2] {
	case "s":
		return time.Duration(n) * time.Second, nil
	case "m":
		return time.Duration(n) * time.Minute, nil
	case "h":
		return time.Duration(n) * time.Hour, nil
	case "d":
		return time.Duration(n) * 24 * time.Hour, nil
	}
	return 0, fmt.Errorf("invalid duration %q", raw)
}
