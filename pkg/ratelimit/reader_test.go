package ratelimit

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"
)

// TestNewLimiter tests limiter creation
func TestNewLimiter(t *testing.T) {
	t.Run("Unlimited", func(t *testing.T) {
		for _, bps := range []int64{0, -1} {
			if l := NewLimiter(bps); l != nil {
				t.Errorf("NewLimiter(%d) = %v, want nil", bps, l)
			}
		}
	})

	t.Run("MinimumBurst", func(t *testing.T) {
		l := NewLimiter(1024)
		if l.burst != minBurst {
			t.Errorf("burst = %d, want %d", l.burst, minBurst)
		}
	})

	t.Run("LargeRate", func(t *testing.T) {
		l := NewLimiter(10 << 20)
		if l.burst != 10<<20 {
			t.Errorf("burst = %d, want %d", l.burst, 10<<20)
		}
	})
}

// TestReader tests the limited reader
func TestReader(t *testing.T) {
	t.Run("NilLimiterPassesThrough", func(t *testing.T) {
		src := strings.NewReader("data")
		if r := NewReader(context.Background(), src, nil); r != src {
			t.Error("NewReader() with nil limiter should return the reader unchanged")
		}
	})

	t.Run("CopiesAllData", func(t *testing.T) {
		data := bytes.Repeat([]byte("abcdef"), 50000)
		r := NewReader(context.Background(), bytes.NewReader(data), NewLimiter(100<<20))

		got, err := io.ReadAll(r)
		if err != nil {
			t.Fatalf("ReadAll() error = %v", err)
		}
		if !bytes.Equal(got, data) {
			t.Errorf("read %d bytes, want %d identical bytes", len(got), len(data))
		}
	})

	t.Run("ReadsAtMostOneBurst", func(t *testing.T) {
		limiter := NewLimiter(1024)
		r := NewReader(context.Background(), bytes.NewReader(make([]byte, 4*minBurst)), limiter)

		buf := make([]byte, 2*minBurst)
		n, err := r.Read(buf)
		if err != nil {
			t.Fatalf("Read() error = %v", err)
		}
		if n != minBurst {
			t.Errorf("Read() = %d bytes, want %d", n, minBurst)
		}
	})

	t.Run("Throttles", func(t *testing.T) {
		// The first burst is free; the second must wait about one second
		limiter := NewLimiter(minBurst)
		r := NewReader(context.Background(), bytes.NewReader(make([]byte, minBurst+minBurst/2)), limiter)

		start := time.Now()
		if _, err := io.ReadAll(r); err != nil {
			t.Fatalf("ReadAll() error = %v", err)
		}
		if elapsed := time.Since(start); elapsed < 300*time.Millisecond {
			t.Errorf("transfer took %v, expected throttling", elapsed)
		}
	})

	t.Run("CancelledContext", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		r := NewReader(ctx, bytes.NewReader(make([]byte, 1024)), NewLimiter(1))
		_, err := r.Read(make([]byte, 1024))
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Read() error = %v, want context.Canceled", err)
		}
	})
}

// TestParseBandwidth tests bandwidth string parsing
func TestParseBandwidth(t *testing.T) {
	tests := []struct {
		input   string
		want    int64
		wantErr bool
	}{
		{"", 0, false},
		{"0", 0, false},
		{"2048", 2048, false},
		{"512K", 512 << 10, false},
		{"10m", 10 << 20, false},
		{"1G", 1 << 30, false},
		{"1.5M", 3 << 19, false},
		{" 4k ", 4 << 10, false},
		{"fast", 0, true},
		{"-5M", 0, true},
		{"M", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseBandwidth(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseBandwidth(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseBandwidth(%q) = %d, want %d", tt.input, got, tt.want)
			}
		})
	}
}
