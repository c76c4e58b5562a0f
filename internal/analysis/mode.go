package analysis

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrInvalidMode is returned by ParseMode for anything but quick or full
var ErrInvalidMode = errors.New("invalid analysis mode")

// Mode selects analysis depth and the polling schedule that goes with it
type Mode string

const (
	ModeQuick Mode = "quick"
	ModeFull  Mode = "full"
)

// Schedule is the polling schedule of a mode
type Schedule struct {
	// InitialDelay elapses before the first status request
	InitialDelay time.Duration
	// Timeout bounds the time from submission to a terminal status
	Timeout time.Duration
	// Interval is the first delay between status requests
	Interval time.Duration
	// Backoff multiplies Interval after each pending status; 1 keeps it fixed
	Backoff float64
	// MaxInterval caps the backed-off interval
	MaxInterval time.Duration
}

var schedules = map[Mode]Schedule{
	ModeQuick: {
		InitialDelay: 20 * time.Second,
		Timeout:      180 * time.Second,
		Interval:     5 * time.Second,
		Backoff:      1,
		MaxInterval:  5 * time.Second,
	},
	ModeFull: {
		InitialDelay: 300 * time.Second,
		Timeout:      2400 * time.Second,
		Interval:     30 * time.Second,
		Backoff:      1.5,
		MaxInterval:  120 * time.Second,
	},
}

// ParseMode parses "quick" or "full" (case-insensitive)
func ParseMode(s string) (Mode, error) {
	m := Mode(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := schedules[m]; !ok {
		return "", fmt.Errorf("%w %q (must be quick or full)", ErrInvalidMode, s)
	}
	return m, nil
}

// Schedule returns the polling schedule of m; unknown modes get the quick schedule
func (m Mode) Schedule() Schedule {
	if s, ok := schedules[m]; ok {
		return s
	}
	return schedules[ModeQuick]
}

func (s Schedule) next(interval time.Duration) time.Duration {
	if s.Backoff <= 1 {
		return interval
	}
	n := time.Duration(float64(interval) * s.Backoff)
	if s.MaxInterval > 0 && n > s.MaxInterval {
		n = s.MaxInterval
	}
	return n
}
