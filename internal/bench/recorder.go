package bench

import (
	"fmt"
	"io"
	"math"
	"sync"
	"time"

	"github.com/Zereker/framer"
)

// Stat keeps count, min, max and sum of a series of durations.
type Stat struct {
	Count int
	Min   time.Duration
	Max   time.Duration
	Sum   time.Duration
}

// Add folds d into the stat.
func (s *Stat) Add(d time.Duration) {
	if s.Count == 0 || d < s.Min {
		s.Min = d
	}
	if s.Count == 0 || d > s.Max {
		s.Max = d
	}
	s.Count++
	s.Sum += d
}

// Avg returns the mean in nanoseconds, or 0 for an empty stat.
func (s Stat) Avg() float64 {
	if s.Count == 0 {
		return 0
	}
	return float64(s.Sum) / float64(s.Count)
}

type entry struct {
	read, write Stat
}

// Recorder aggregates per-strategy read and write timings of transfers.
type Recorder struct {
	mu      sync.Mutex
	entries map[string]*entry
}

func NewRecorder() *Recorder {
	return &Recorder{entries: make(map[string]*entry)}
}

// Reset drops everything recorded for strategy.
func (r *Recorder) Reset(strategy string) {
	r.mu.Lock()
	delete(r.entries, strategy)
	r.mu.Unlock()
}

// Record adds one transfer's timings under strategy.
func (r *Recorder) Record(strategy string, tr framer.Transfer) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entries[strategy]
	if !ok {
		e = &entry{}
		r.entries[strategy] = e
	}
	e.read.Add(tr.ReadTime)
	e.write.Add(tr.WriteTime)
}

// Stats returns the read and write stats recorded for strategy.
func (r *Recorder) Stats(strategy string) (read, write Stat, ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entries[strategy]
	if !ok {
		return Stat{}, Stat{}, false
	}
	return e.read, e.write, true
}

// Report writes one CSV row per recorded strategy, in registry order. Times
// are nanoseconds per transfer scaled by 1000/size, which reads as ms/GB.
func (r *Recorder) Report(w io.Writer, size int64) error {
	scale := 1000 / math.Max(float64(size), 1)

	if _, err := fmt.Fprintln(w, "test, rmin, ravg, rmax, wmin, wavg, wmax"); err != nil {
		return err
	}
	for _, s := range framer.Strategies() {
		read, write, ok := r.Stats(s.Name)
		if !ok {
			continue
		}
		_, err := fmt.Fprintf(w, "%s [ms/GB], %f, %f, %f, %f, %f, %f\n", s.Name,
			float64(read.Min)*scale,
			read.Avg()*scale,
			float64(read.Max)*scale,
			float64(write.Min)*scale,
			write.Avg()*scale,
			float64(write.Max)*scale)
		if err != nil {
			return err
		}
	}
	return nil
}
