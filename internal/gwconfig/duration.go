package gwconfig

import (
	"fmt"
	"strconv"
	"time"
)

// Duration unmarshals from either a Go duration string ("10s", "2m30s") or
// a bare integer of nanoseconds, since yaml.v3 has no native notion of
// time.Duration.
type Duration time.Duration

// Dur returns d as a time.Duration.
func (d Duration) Dur() time.Duration { return time.Duration(d) }

func (d *Duration) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var s string
	if err := unmarshal(&s); err == nil {
		parsed, err := time.ParseDuration(s)
		if err != nil {
			// An integer scalar also decodes into a string; read it as
			// nanoseconds.
			if n, nerr := strconv.ParseInt(s, 10, 64); nerr == nil {
				*d = Duration(n)
				return nil
			}
			return fmt.Errorf("invalid duration %q: %w", s, err)
		}
		*d = Duration(parsed)
		return nil
	}

	var n int64
	if err := unmarshal(&n); err != nil {
		return fmt.Errorf("duration must be a string or integer nanoseconds: %w", err)
	}
	*d = Duration(n)
	return nil
}

func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}
