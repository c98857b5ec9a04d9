package backup

import "time"

// DefaultWindowSize is the number of recent copies the speed estimate covers
const DefaultWindowSize = 20

// minSampleDuration floors per-file elapsed time so instant copies of small
// files cannot divide by zero
const minSampleDuration = time.Millisecond

type speedSample struct {
	bytes int64
	secs  float64
}

// SpeedWindow is a fixed-capacity ring buffer of (bytes, elapsed) samples.
// Pushing beyond capacity overwrites the oldest sample.
type SpeedWindow struct {
	samples []speedSample
	next    int
	count   int
}

// NewSpeedWindow creates a window holding at most capacity samples
func NewSpeedWindow(capacity int) *SpeedWindow {
	if capacity <= 0 {
		capacity = DefaultWindowSize
	}
	return &SpeedWindow{samples: make([]speedSample, capacity)}
}

// Push records one copied file
func (w *SpeedWindow) Push(bytes int64, elapsed time.Duration) {
	if elapsed < minSampleDuration {
		elapsed = minSampleDuration
	}
	w.samples[w.next] = speedSample{bytes: bytes, secs: elapsed.Seconds()}
	w.next = (w.next + 1) % len(w.samples)
	if w.count < len(w.samples) {
		w.count++
	}
}

// Len returns the number of samples currently held
func (w *SpeedWindow) Len() int {
	return w.count
}

// Cap returns the window capacity
func (w *SpeedWindow) Cap() int {
	return len(w.samples)
}

// Rate returns sum(bytes) / sum(seconds) over the held samples, or 0 when
// the window is empty
func (w *SpeedWindow) Rate() float64 {
	if w.count == 0 {
		return 0
	}
	var bytes int64
	var secs float64
	for i := 0; i < w.count; i++ {
		s := w.samples[i]
		bytes += s.bytes
		secs += s.secs
	}
	return float64(bytes) / secs
}
