package downloader

import (
	"math"
	"sync"
	"time"
)

// SpeedUnknown is reported as the average speed until the sample window
// has filled once.
const SpeedUnknown int64 = -1

// speedMeter estimates throughput over a fixed trailing window. Bytes
// reported through recordWrite accumulate into a pending counter until
// the next periodic tick pushes them onto a ring of per-period samples.
// The published average only moves at tick boundaries, at most once per
// recompute interval, and never before the ring has filled, so noisy
// early estimates stay internal.
type speedMeter struct {
	period    time.Duration
	window    time.Duration
	recompute time.Duration

	mu            sync.Mutex
	samples       []int64
	next          int
	full          bool
	pending       int64
	speed         int64
	lastRecompute time.Time

	ticker   *time.Ticker
	done     chan struct{}
	stopOnce sync.Once
}

func newSpeedMeter(period, window, recompute time.Duration) *speedMeter {
	capacity := int(window / period)
	if capacity < 1 {
		capacity = 1
	}
	return &speedMeter{
		period:    period,
		window:    window,
		recompute: recompute,
		samples:   make([]int64, capacity),
		speed:     SpeedUnknown,
		done:      make(chan struct{}),
	}
}

// start launches the periodic tick. Call at most once.
func (s *speedMeter) start() {
	s.mu.Lock()
	s.lastRecompute = time.Now()
	s.mu.Unlock()

	s.ticker = time.NewTicker(s.period)
	go func() {
		for {
			select {
			case <-s.done:
				return
			case now := <-s.ticker.C:
				s.tick(now)
			}
		}
	}()
}

// tick pushes the pending byte count onto the ring, evicting the oldest
// sample once the ring is full, then recomputes the published average
// when the ring is full and the recompute interval has elapsed.
func (s *speedMeter) tick(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.samples[s.next] = s.pending
	s.pending = 0
	s.next++
	if s.next == len(s.samples) {
		s.next = 0
		s.full = true
	}

	if !s.full || now.Sub(s.lastRecompute) < s.recompute {
		return
	}

	var sum int64
	for _, n := range s.samples {
		sum += n
	}
	s.speed = int64(math.Round(float64(sum) / s.window.Seconds()))
	s.lastRecompute = now
}

// recordWrite accounts for bytes written since the last tick. Safe to
// call concurrently with the tick.
func (s *speedMeter) recordWrite(n int64) {
	s.mu.Lock()
	s.pending += n
	s.mu.Unlock()
}

// Speed returns the last published average in bytes per second, or
// SpeedUnknown before the first recompute.
func (s *speedMeter) Speed() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.speed
}

// stop cancels the periodic tick. Safe to call more than once.
func (s *speedMeter) stop() {
	s.stopOnce.Do(func() {
		if s.ticker != nil {
			s.ticker.Stop()
		}
		close(s.done)
	})
}
