package model

import (
	"time"

	"github.com/rotisserie/eris"
)

// DateFormat is the calendar-date layout used throughout the pipeline.
const DateFormat = "2006-01-02"

// TimeWindow is a validated before/after date pair. Construct via
// NewTimeWindow; After is always strictly later than Before.
type TimeWindow struct {
	Before time.Time `json:"before"`
	After  time.Time `json:"after"`
}

// NewTimeWindow parses and validates a before/after date pair.
func NewTimeWindow(before, after string) (TimeWindow, error) {
	b, err := time.Parse(DateFormat, before)
	if err != nil {
		return TimeWindow{}, eris.Wrapf(err, "model: parse before date %q", before)
	}
	a, err := time.Parse(DateFormat, after)
	if err != nil {
		return TimeWindow{}, eris.Wrapf(err, "model: parse after date %q", after)
	}
	if !a.After(b) {
		return TimeWindow{}, eris.Errorf("model: after date %s must be later than before date %s", after, before)
	}
	return TimeWindow{Before: b, After: a}, nil
}

// ElapsedDays returns the whole days between Before and After.
func (w TimeWindow) ElapsedDays() int {
	return int(w.After.Sub(w.Before).Hours() / 24)
}
