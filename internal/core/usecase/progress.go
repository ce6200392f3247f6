package usecase

import (
	"context"
	"math/rand/v2"
	"sync"
	"time"
)

// ProgressProfile describes how fast the optimistic progress bar moves.
type ProgressProfile struct {
	Interval time.Duration
	MinStep  int
	MaxStep  int
	Cap      int
}

var (
	QuestionsProgress = ProgressProfile{Interval: 2 * time.Second, MinStep: 2, MaxStep: 6, Cap: 95}
	AnalysisProgress  = ProgressProfile{Interval: 1500 * time.Millisecond, MinStep: 3, MaxStep: 7, Cap: 95}
)

// tickerFunc returns a tick channel and a release func.
type tickerFunc func(d time.Duration) (<-chan time.Time, func())

// ProgressSimulator nudges a cosmetic progress value upward while a remote
// call is in flight. It has no knowledge of the real remote progress.
type ProgressSimulator struct {
	intn   func(n int) int
	ticker tickerFunc
}

func NewProgressSimulator() *ProgressSimulator {
	return &ProgressSimulator{
		intn: rand.IntN,
		ticker: func(d time.Duration) (<-chan time.Time, func()) {
			t := time.NewTicker(d)
			return t.C, t.Stop
		},
	}
}

// Start launches the simulator. The returned stop func is idempotent and
// returns only after the goroutine has exited, so onTick is never invoked
// after stop returns.
func (s *ProgressSimulator) Start(ctx context.Context, profile ProgressProfile, initial int, onTick func(ctx context.Context, progress int)) (stop func()) {
	ctx, cancel := context.WithCancel(ctx)
	ticks, release := s.ticker(profile.Interval)
	done := make(chan struct{})

	go func() {
		defer close(done)
		defer release()

		progress := initial
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticks:
				if ctx.Err() != nil {
					return
				}
				next := min(progress+s.increment(profile), profile.Cap)
				if next <= progress {
					continue
				}
				progress = next
				onTick(ctx, progress)
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(cancel)
		<-done
	}
}

func (s *ProgressSimulator) increment(profile ProgressProfile) int {
	span := profile.MaxStep - profile.MinStep
	if span <= 0 {
		return profile.MinStep
	}
	return profile.MinStep + s.intn(span+1)
}
