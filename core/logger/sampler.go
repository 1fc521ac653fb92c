package logger

import (
	"strconv"
	"strings"
	"sync/atomic"
)

// sampler lets the first keep events of every window through.
// A zero window disables sampling.
type sampler struct {
	keep   atomic.Uint64
	window atomic.Uint64
	seen   atomic.Uint64
}

func (s *sampler) configure(keep, window uint64) {
	if keep == 0 || window == 0 {
		keep, window = 0, 0
	}
	s.keep.Store(min(keep, window))
	s.window.Store(window)
	s.seen.Store(0)
}

func (s *sampler) allow() bool {
	window := s.window.Load()
	if window == 0 {
		return true
	}
	n := s.seen.Add(1) - 1
	return n%window < s.keep.Load()
}

// parseSampleRatio reads "keep/window" or a bare "window" meaning 1/window.
// "off", "all" and "0" disable sampling.
func parseSampleRatio(raw string) (keep, window uint64, ok bool) {
	raw = strings.ToLower(strings.TrimSpace(raw))
	switch raw {
	case "":
		return 0, 0, false
	case "off", "all", "0":
		return 0, 0, true
	}
	num, den, hasSlash := strings.Cut(raw, "/")
	if !hasSlash {
		num, den = "1", raw
	}
	k, err := strconv.ParseUint(strings.TrimSpace(num), 10, 32)
	if err != nil || k == 0 {
		return 0, 0, false
	}
	w, err := strconv.ParseUint(strings.TrimSpace(den), 10, 32)
	if err != nil || w == 0 {
		return 0, 0, false
	}
	return k, w, true
}
