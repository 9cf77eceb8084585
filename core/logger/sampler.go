package logger

import (
	"strconv"
	"strings"
	"sync/atomic"
)

// sampler lets num out of every den calls through. A zero ratio lets
// everything through.
type sampler struct {
	ratio atomic.Uint64 // num<<32 | den
	calls atomic.Uint64
}

func (s *sampler) set(num, den int) {
	if num <= 0 || den <= 0 {
		s.ratio.Store(0)
		return
	}
	if num > den {
		num = den
	}
	s.calls.Store(0)
	s.ratio.Store(uint64(num)<<32 | uint64(den))
}

func (s *sampler) allow() bool {
	r := s.ratio.Load()
	if r == 0 {
		return true
	}
	num, den := r>>32, r&0xffffffff
	return (s.calls.Add(1)-1)%den < num
}

// parseSampleRate reads "num/den" or "den" (meaning 1/den). "0" and "off"
// disable sampling; anything unparsable falls back to the default rate.
func parseSampleRate(s string) (int, int) {
	s = strings.ToLower(strings.TrimSpace(s))
	switch s {
	case "":
		return defaultSampleNum, defaultSampleDen
	case "0", "off", "none":
		return 0, 0
	}
	numStr, denStr, ratio := strings.Cut(s, "/")
	if !ratio {
		numStr, denStr = "1", s
	}
	num, err1 := strconv.Atoi(strings.TrimSpace(numStr))
	den, err2 := strconv.Atoi(strings.TrimSpace(denStr))
	if err1 != nil || err2 != nil || num < 0 || den <= 0 {
		return defaultSampleNum, defaultSampleDen
	}
	return num, den
}
