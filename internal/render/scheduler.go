package render

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// Options configures a Scheduler. Zero values take the defaults below.
type Options struct {
	Pixels int

	// Fast is the frame interval after a changed frame, Slow after an
	// unchanged one.
	Fast time.Duration
	Slow time.Duration

	// MaxOverdue is how many consecutive late frames are caught up before
	// the schedule is re-anchored to the current time.
	MaxOverdue int

	Epsilon float64

	// Locker, when set, is held while the Ticker runs so other goroutines
	// can serialize access to the effects.
	Locker sync.Locker

	// OnTick runs after every frame whether or not it changed. It must not
	// block.
	OnTick func()

	// OnOverrun runs when the schedule is re-anchored.
	OnOverrun func(behind time.Duration)
}

const (
	DefaultFast       = 16660 * time.Microsecond
	DefaultSlow       = 33330 * time.Microsecond
	DefaultMaxOverdue = 5
)

// Stats are cumulative frame counters.
type Stats struct {
	Frames  uint64
	Emitted uint64
	Resets  uint64
}

// Scheduler evaluates effects on an adaptive cadence: Fast while the
// frame keeps changing, Slow while it is static. Deadlines are anchored to
// the previous deadline rather than to when the frame finished, so
// execution jitter does not accumulate into drift.
type Scheduler struct {
	src  Ticker
	sink Sink
	opts Options

	now     func() time.Time
	anchor  time.Time
	overdue int

	last Buffer // last emitted frame, before the perceptual transform
	out  Buffer

	statsMu sync.Mutex
	stats   Stats
}

// NewScheduler returns a Scheduler pulling frames from src and pushing
// changed ones to sink.
func NewScheduler(src Ticker, sink Sink, opts Options) (*Scheduler, error) {
	if src == nil {
		return nil, errors.New("scheduler needs a ticker")
	}
	if opts.Pixels <= 0 {
		return nil, errors.New("invalid pixel count")
	}
	if opts.Fast <= 0 {
		opts.Fast = DefaultFast
	}
	if opts.Slow <= 0 {
		opts.Slow = DefaultSlow
	}
	if opts.MaxOverdue <= 0 {
		opts.MaxOverdue = DefaultMaxOverdue
	}
	if opts.Epsilon <= 0 {
		opts.Epsilon = DefaultEpsilon
	}
	return &Scheduler{
		src:  src,
		sink: sink,
		opts: opts,
		now:  time.Now,
		out:  make(Buffer, opts.Pixels),
	}, nil
}

// Frame computes one frame and emits it if it changed. It returns whether
// the frame changed.
func (s *Scheduler) Frame() bool {
	buf := s.compute()

	changed := s.last == nil || Changed(s.last, buf, s.opts.Epsilon)

	if s.opts.OnTick != nil {
		s.opts.OnTick()
	}

	s.statsMu.Lock()
	s.stats.Frames++
	if changed {
		s.stats.Emitted++
	}
	s.statsMu.Unlock()

	if !changed {
		return false
	}
	s.last = buf
	if s.sink != nil {
		Perceptual(s.out, buf)
		if err := s.sink.Emit(s.out); err != nil {
			log.Warn().Err(err).Msg("frame sink failed")
		}
	}
	return true
}

// compute runs one tick into a fresh buffer, holding Locker if set.
func (s *Scheduler) compute() Buffer {
	buf := make(Buffer, s.opts.Pixels)
	if s.opts.Locker != nil {
		s.opts.Locker.Lock()
		defer s.opts.Locker.Unlock()
	}
	s.src.Tick(buf)
	return buf
}

// next advances the schedule by d and returns how long to wait before the
// following frame. Zero means the frame is already due.
func (s *Scheduler) next(d time.Duration) time.Duration {
	deadline := s.anchor.Add(d)
	now := s.now()
	if now.Before(deadline) {
		s.anchor = deadline
		s.overdue = 0
		return deadline.Sub(now)
	}
	if s.overdue >= s.opts.MaxOverdue {
		behind, overdue := now.Sub(deadline), s.overdue
		s.anchor = now
		s.overdue = 0
		s.statsMu.Lock()
		s.stats.Resets++
		s.statsMu.Unlock()
		log.Warn().Dur("behind", behind).Int("overdue", overdue).Msg("poor performance, delayed update schedule")
		if s.opts.OnOverrun != nil {
			s.opts.OnOverrun(behind)
		}
	}
	s.anchor = s.anchor.Add(d)
	s.overdue++
	return 0
}

// Run drives frames until ctx is done.
func (s *Scheduler) Run(ctx context.Context) error {
	s.anchor = s.now()
	timer := time.NewTimer(time.Hour)
	timer.Stop()
	defer timer.Stop()

	for {
		interval := s.opts.Slow
		if s.Frame() {
			interval = s.opts.Fast
		}

		wait := s.next(interval)
		if wait <= 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
			continue
		}
		timer.Reset(wait)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
		}
	}
}

func (s *Scheduler) Stats() Stats {
	s.statsMu.Lock()
	defer s.statsMu.Unlock()
	return s.stats
}
