package stats

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"
	"time"

	json "github.com/goccy/go-json"
)

// Seconds is a duration in whole seconds. The upstream service reports play
// times both as numbers and as formatted strings, so decoding accepts either
// while encoding always produces a plain number.
type Seconds int64

// Duration converts s to a time.Duration
func (s Seconds) Duration() time.Duration {
	return time.Duration(s) * time.Second
}

// String formats s for display (e.g., "18h 32m", "4m 05s")
func (s Seconds) String() string {
	neg := s < 0
	if neg {
		s = -s
	}
	hours := int64(s) / 3600
	minutes := (int64(s) % 3600) / 60
	secs := int64(s) % 60

	var out string
	if hours > 0 {
		out = fmt.Sprintf("%dh %dm", hours, minutes)
	} else {
		out = fmt.Sprintf("%dm %02ds", minutes, secs)
	}
	if neg {
		return "-" + out
	}
	return out
}

// MarshalJSON encodes s as a number of seconds
func (s Seconds) MarshalJSON() ([]byte, error) {
	return []byte(strconv.FormatInt(int64(s), 10)), nil
}

// UnmarshalJSON decodes a number or a formatted duration string
func (s *Seconds) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*s = 0
		return nil
	}

	if data[0] == '"' {
		var str string
		if err := json.Unmarshal(data, &str); err != nil {
			return fmt.Errorf("decode duration: %w", err)
		}
		v, err := ParseSeconds(str)
		if err != nil {
			return err
		}
		*s = v
		return nil
	}

	f, err := strconv.ParseFloat(string(data), 64)
	if err != nil {
		return fmt.Errorf("decode duration %s: %w", data, err)
	}
	*s = Seconds(f)
	return nil
}

// ParseSeconds parses the duration formats seen upstream: a bare number of
// seconds ("754"), a clock ("01:02:03" or "02:03") or unit tokens
// ("1d 2h 03m 09s", "12h03m").
func ParseSeconds(str string) (Seconds, error) {
	str = strings.TrimSpace(str)
	if str == "" {
		return 0, nil
	}

	if f, err := strconv.ParseFloat(str, 64); err == nil {
		return Seconds(f), nil
	}

	if strings.Contains(str, ":") {
		return parseClock(str)
	}

	return parseUnits(str)
}

func parseClock(str string) (Seconds, error) {
	parts := strings.Split(str, ":")
	if len(parts) > 3 {
		return 0, fmt.Errorf("invalid duration %q", str)
	}

	var total int64
	for _, p := range parts {
		n, err := strconv.ParseInt(strings.TrimSpace(p), 10, 64)
		if err != nil {
			return 0, fmt.Errorf("invalid duration %q: %w", str, err)
		}
		total = total*60 + n
	}
	return Seconds(total), nil
}

func parseUnits(str string) (Seconds, error) {
	var total int64
	var num strings.Builder
	seen := false

	for _, r := range strings.ToLower(str) {
		switch {
		case r >= '0' && r <= '9':
			num.WriteRune(r)
		case r == ' ' || r == ',':
			continue
		default:
			if num.Len() == 0 {
				return 0, fmt.Errorf("invalid duration %q", str)
			}
			n, _ := strconv.ParseInt(num.String(), 10, 64)
			num.Reset()

			switch r {
			case 'd':
				total += n * 86400
			case 'h':
				total += n * 3600
			case 'm':
				total += n * 60
			case 's':
				total += n
			default:
				return 0, fmt.Errorf("invalid duration unit %q in %q", r, str)
			}
			seen = true
		}
	}

	// Trailing digits without a unit count as seconds.
	if num.Len() > 0 {
		n, _ := strconv.ParseInt(num.String(), 10, 64)
		total += n
		seen = true
	}
	if !seen {
		return 0, fmt.Errorf("invalid duration %q", str)
	}
	return Seconds(total), nil
}
