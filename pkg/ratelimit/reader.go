package ratelimit

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"golang.org/x/time/rate"
)

// minBurst keeps small reads from being split into many waits
const minBurst = 64 * 1024

// Limiter caps the transfer rate shared by every reader it wraps
type Limiter struct {
	limiter *rate.Limiter
	burst   int
}

// NewLimiter creates a limiter for bytesPerSecond. A non-positive rate means
// no limit and returns nil.
func NewLimiter(bytesPerSecond int64) *Limiter {
	if bytesPerSecond <= 0 {
		return nil
	}
	burst := int(bytesPerSecond)
	if burst < minBurst {
		burst = minBurst
	}
	return &Limiter{
		limiter: rate.NewLimiter(rate.Limit(bytesPerSecond), burst),
		burst:   burst,
	}
}

// Reader wraps an io.Reader with bandwidth limiting
type Reader struct {
	reader  io.Reader
	limiter *Limiter
	ctx     context.Context
}

// NewReader wraps reader; a nil limiter returns reader unchanged
func NewReader(ctx context.Context, reader io.Reader, limiter *Limiter) io.Reader {
	if limiter == nil {
		return reader
	}
	return &Reader{reader: reader, limiter: limiter, ctx: ctx}
}

// Read reads at most one burst and waits until the limiter admits it
func (r *Reader) Read(p []byte) (int, error) {
	if len(p) > r.limiter.burst {
		p = p[:r.limiter.burst]
	}

	n, err := r.reader.Read(p)
	if n > 0 {
		if werr := r.limiter.limiter.WaitN(r.ctx, n); werr != nil {
			return n, werr
		}
	}
	return n, err
}

// ParseBandwidth parses values like "512K", "10M", "1G" or plain bytes per
// second. Suffixes are binary multiples.
func ParseBandwidth(s string) (int64, error) {
	s = strings.TrimSpace(strings.ToUpper(s))
	if s == "" || s == "0" {
		return 0, nil
	}

	multiplier := int64(1)
	switch s[len(s)-1] {
	case 'K':
		multiplier = 1 << 10
	case 'M':
		multiplier = 1 << 20
	case 'G':
		multiplier = 1 << 30
	}
	if multiplier > 1 {
		s = s[:len(s)-1]
	}

	value, err := strconv.ParseFloat(s, 64)
	if err != nil || value < 0 {
		return 0, fmt.Errorf("invalid bandwidth %q", s)
	}
	return int64(value * float64(multiplier)), nil
}
