package render

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeTicker writes a fixed color into pixel 0.
type fakeTicker struct {
	c     Color
	calls int
}

func (f *fakeTicker) Tick(buf Buffer) {
	f.calls++
	buf[0] = f.c
}

// fakeSink captures every emitted frame.
type fakeSink struct {
	frames []Buffer
}

func (s *fakeSink) Emit(buf Buffer) error {
	s.frames = append(s.frames, append(Buffer(nil), buf...))
	return nil
}

type fakeClock struct{ t time.Time }

func (c *fakeClock) Now() time.Time          { return c.t }
func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestScheduler(t *testing.T, src Ticker, sink Sink) (*Scheduler, *fakeClock) {
	t.Helper()
	s, err := NewScheduler(src, sink, Options{Pixels: 2, Fast: 10 * time.Millisecond, Slow: 20 * time.Millisecond})
	require.NoError(t, err)
	clk := &fakeClock{t: time.Unix(1000, 0)}
	s.now = clk.Now
	s.anchor = clk.Now()
	return s, clk
}

func TestFrameEmitsOnlyOnChange(t *testing.T) {
	src := &fakeTicker{c: Color{R: 0.5}}
	sink := &fakeSink{}
	ticks := 0
	s, _ := newTestScheduler(t, src, sink)
	s.opts.OnTick = func() { ticks++ }

	assert.True(t, s.Frame(), "first frame always changes")
	assert.False(t, s.Frame())

	src.c = Color{R: 0.5005}
	assert.False(t, s.Frame(), "within epsilon")

	src.c = Color{R: 1}
	assert.True(t, s.Frame())

	require.Len(t, sink.frames, 2)
	assert.InDelta(t, 0.25, sink.frames[0][0].R, 1e-9, "perceptual transform squares")
	assert.Equal(t, 1.0, sink.frames[1][0].R)
	assert.Equal(t, 4, ticks, "OnTick runs every frame")
	assert.Equal(t, Stats{Frames: 4, Emitted: 2}, s.Stats())
}

func TestFrameComparesAgainstLastEmitted(t *testing.T) {
	src := &fakeTicker{}
	sink := &fakeSink{}
	s, _ := newTestScheduler(t, src, sink)

	s.Frame()
	for i := 1; i <= 5; i++ {
		src.c = Color{G: 0.0006 * float64(i)}
		s.Frame()
	}
	// Slow creep accumulates past epsilon relative to the emitted frame:
	// 0, 0.0012 and 0.0024 go out, the steps in between do not.
	require.Len(t, sink.frames, 3)
	for i := 1; i < len(sink.frames); i++ {
		assert.True(t, Changed(sink.frames[i-1], sink.frames[i], 0))
	}
}

func TestNextWaitsForDeadline(t *testing.T) {
	s, clk := newTestScheduler(t, &fakeTicker{}, nil)
	start := clk.Now()

	clk.Advance(3 * time.Millisecond)
	assert.Equal(t, 7*time.Millisecond, s.next(10*time.Millisecond))
	assert.Equal(t, start.Add(10*time.Millisecond), s.anchor)

	clk.Advance(9 * time.Millisecond)
	assert.Equal(t, 18*time.Millisecond, s.next(20*time.Millisecond), "anchored to previous deadline, not completion")
}

func TestNextOverdueKeepsAnchorAndResets(t *testing.T) {
	s, clk := newTestScheduler(t, &fakeTicker{}, nil)
	start := clk.Now()
	overruns := 0
	s.opts.OnOverrun = func(time.Duration) { overruns++ }

	clk.Advance(time.Second)
	for i := 1; i <= DefaultMaxOverdue; i++ {
		assert.Zero(t, s.next(10*time.Millisecond))
		assert.Equal(t, start.Add(time.Duration(i)*10*time.Millisecond), s.anchor, "anchor advances by the interval")
	}
	assert.Equal(t, 0, overruns)

	assert.Zero(t, s.next(10*time.Millisecond))
	assert.Equal(t, 1, overruns)
	assert.Equal(t, clk.Now().Add(10*time.Millisecond), s.anchor, "re-anchored to now")
	assert.Equal(t, uint64(1), s.Stats().Resets)

	clk.Advance(2 * time.Millisecond)
	assert.Equal(t, 18*time.Millisecond, s.next(10*time.Millisecond))
	assert.Equal(t, 0, s.overdue)
}

func TestRunStopsOnCancel(t *testing.T) {
	src := &fakeTicker{c: Color{B: 1}}
	sink := &fakeSink{}
	s, err := NewScheduler(src, sink, Options{Pixels: 1, Fast: time.Millisecond, Slow: time.Millisecond})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, s.Run(ctx), context.DeadlineExceeded)
	assert.Greater(t, src.calls, 1)
	assert.Len(t, sink.frames, 1)
}

type panicTicker struct{}

func (panicTicker) Tick(Buffer) { panic("broken source") }

func TestFrameReleasesLockerOnPanic(t *testing.T) {
	var mu sync.Mutex
	s, err := NewScheduler(panicTicker{}, &fakeSink{}, Options{Pixels: 1, Locker: &mu})
	require.NoError(t, err)

	assert.Panics(t, func() { s.Frame() })
	require.True(t, mu.TryLock(), "locker still held after a panicking tick")
	mu.Unlock()
}

func TestNewSchedulerValidates(t *testing.T) {
	_, err := NewScheduler(nil, nil, Options{Pixels: 1})
	assert.Error(t, err)
	_, err = NewScheduler(&fakeTicker{}, nil, Options{})
	assert.Error(t, err)
}

func TestBytesQuantizes(t *testing.T) {
	b := Bytes(Buffer{{R: 1, G: 0.5, B: -1}}, nil)
	assert.Equal(t, []byte{255, 128, 0}, b)
}
