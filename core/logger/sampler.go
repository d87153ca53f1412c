package logger

import (
	"strconv"
	"strings"
	"sync/atomic"
)

type ratio struct{ num, den uint64 }

// ratioSampler lets num out of every den events through. A zero ratio lets
// everything through.
type ratioSampler struct {
	ratio   atomic.Pointer[ratio]
	counter atomic.Uint64
}

func newRatioSampler(numerator, denominator int) *ratioSampler {
	s := &ratioSampler{}
	s.Set(numerator, denominator)
	return s
}

// Set replaces the ratio and restarts the cycle.
func (s *ratioSampler) Set(numerator, denominator int) {
	r := &ratio{}
	if numerator > 0 && denominator > 0 {
		r.num, r.den = uint64(min(numerator, denominator)), uint64(denominator)
	}
	s.ratio.Store(r)
	s.counter.Store(0)
}

// Allow reports whether the current event passes sampling.
func (s *ratioSampler) Allow() bool {
	r := s.ratio.Load()
	if r == nil || r.den == 0 {
		return true
	}
	return (s.counter.Add(1)-1)%r.den < r.num
}

// parseRatioSpec accepts "n/d", "p%" or "d" (meaning 1/d). Anything
// unparsable or non-positive yields 0/0.
func parseRatioSpec(spec string) (int, int) {
	spec = strings.TrimSpace(spec)
	atoi := func(s string) int {
		v, err := strconv.Atoi(strings.TrimSpace(s))
		if err != nil || v <= 0 {
			return 0
		}
		return v
	}
	var num, den int
	switch {
	case strings.Contains(spec, "/"):
		n, d, _ := strings.Cut(spec, "/")
		num, den = atoi(n), atoi(d)
	case strings.HasSuffix(spec, "%"):
		num, den = atoi(strings.TrimSuffix(spec, "%")), 100
	default:
		num, den = 1, atoi(spec)
	}
	if num == 0 || den == 0 {
		return 0, 0
	}
	return num, den
}
