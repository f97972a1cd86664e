package fixture

import (
	"fmt"
	"regexp"
	"strconv"
)

// repeatKeyRegex matches repeat-range fixture keys like `user_{1...20}`.
// Both bounds are inclusive.
var repeatKeyRegex = regexp.MustCompile(`^(.+)_\{(\d+)\.\.\.(\d+)\}$`)

// RepeatRange is a parsed repeat-range key.
type RepeatRange struct {
	Base  string
	Start int
	End   int
}

// ParseRepeatKey parses a repeat-range fixture key. Keys that do not match
// the pattern, including ranges with non-numeric or out-of-range bounds,
// report false and pass through as ordinary fixture names.
func ParseRepeatKey(key string) (*RepeatRange, bool) {
	matches := repeatKeyRegex.FindStringSubmatch(key)
	if matches == nil {
		return nil, false
	}
	start, err := strconv.Atoi(matches[2])
	if err != nil {
		return nil, false
	}
	end, err := strconv.Atoi(matches[3])
	if err != nil {
		return nil, false
	}
	return &RepeatRange{Base: matches[1], Start: start, End: end}, true
}

// Name returns the expanded fixture name for one ordinal.
func (r *RepeatRange) Name(ordinal int) string {
	return fmt.Sprintf("%s_%d", r.Base, ordinal)
}

// Names returns every expanded name in ascending ordinal order. An inverted
// range yields nothing.
func (r *RepeatRange) Names() []string {
	if r.End < r.Start {
		return nil
	}
	out := make([]string, 0, r.End-r.Start+1)
	for i := r.Start; i <= r.End; i++ {
		out = append(out, r.Name(i))
	}
	return out
}
