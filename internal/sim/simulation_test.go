package sim

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/annel0/blockworld/internal/vec"
	"github.com/annel0/blockworld/internal/world"
	"github.com/annel0/blockworld/internal/world/block"
	"github.com/annel0/blockworld/internal/world/block/implementations"
)

type countingStore struct {
	mu    sync.Mutex
	saves int
}

func (s *countingStore) LoadChunk(context.Context, vec.Vec3) (*world.ChunkData, error) {
	return nil, nil
}

func (s *countingStore) SaveChunk(context.Context, *world.ChunkData) error {
	s.mu.Lock()
	s.saves++
	s.mu.Unlock()
	return nil
}

func (s *countingStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saves
}

func newSim(t *testing.T, opts Options, store world.ChunkStore) (*Simulation, *implementations.Blocks, *tracetest.SpanRecorder) {
	t.Helper()
	reg, b, err := implementations.NewDefaultRegistry()
	require.NoError(t, err)
	var wopts []world.Option
	if store != nil {
		wopts = append(wopts, world.WithStore(store))
	}
	w := world.New(reg, world.Config{RandomTickSpeed: 0}, wopts...)
	require.NoError(t, w.LoadChunk(context.Background(), vec.Vec3{}))

	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	opts.Tracer = tp.Tracer("test")

	s := New(w, opts)
	ctx, cancel := context.WithCancel(context.Background())
	go s.Run(ctx)
	t.Cleanup(func() {
		cancel()
		<-s.Done()
	})
	return s, b, sr
}

func spanCount(sr *tracetest.SpanRecorder, name string) int {
	n := 0
	for _, span := range sr.Ended() {
		if span.Name() == name {
			n++
		}
	}
	return n
}

func TestDoRunsOnSimulation(t *testing.T) {
	s, b, _ := newSim(t, Options{Paused: true}, nil)
	ctx := context.Background()
	pos := vec.Vec3{X: 1, Y: 1, Z: 1}

	err := s.Do(ctx, func(w *world.World) error {
		w.Set(pos, b.Stone.DefaultState(), block.UpdateAll)
		return nil
	})
	require.NoError(t, err)

	var got *block.State
	require.NoError(t, s.Do(ctx, func(w *world.World) error {
		got = w.Get(pos)
		return nil
	}))
	assert.True(t, got.Is(b.Stone))
}

func TestStepWhilePaused(t *testing.T) {
	s, _, sr := newSim(t, Options{Paused: true, TickInterval: time.Millisecond}, nil)
	ctx := context.Background()

	time.Sleep(10 * time.Millisecond)
	stats, err := s.Step(ctx, 3)
	require.NoError(t, err)
	assert.Equal(t, int64(3), stats.GameTime)
	assert.Equal(t, stats, s.Stats())
	assert.Equal(t, 3, spanCount(sr, "sim.tick"))
}

func TestTickerAdvancesTime(t *testing.T) {
	s, _, _ := newSim(t, Options{TickInterval: time.Millisecond}, nil)
	ctx := context.Background()

	assert.Eventually(t, func() bool {
		var gt int64
		_ = s.Do(ctx, func(w *world.World) error {
			gt = w.GameTime()
			return nil
		})
		return gt >= 5
	}, time.Second, 5*time.Millisecond)

	s.Pause()
	assert.True(t, s.Paused())
	s.Resume()
	assert.False(t, s.Paused())
}

func TestDoRecoversPanic(t *testing.T) {
	s, _, sr := newSim(t, Options{Paused: true}, nil)
	ctx := context.Background()

	err := s.Do(ctx, func(*world.World) error { panic("boom") })
	require.Error(t, err)
	assert.Contains(t, err.Error(), "boom")

	assert.NoError(t, s.Do(ctx, func(*world.World) error { return nil }), "симуляция продолжает работу")
	assert.Equal(t, 2, spanCount(sr, "sim.command"))
}

func TestDoAfterStop(t *testing.T) {
	s, _, _ := newSim(t, Options{Paused: true}, nil)
	s.Stop()
	s.Stop()

	err := s.Do(context.Background(), func(*world.World) error { return nil })
	assert.ErrorIs(t, err, ErrStopped)
}

func TestDoRespectsContext(t *testing.T) {
	s, _, _ := newSim(t, Options{Paused: true}, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	called := false
	err := s.Do(ctx, func(*world.World) error {
		called = true
		return nil
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, called)
}

func TestAutosaveAndSaveOnStop(t *testing.T) {
	store := &countingStore{}
	s, b, sr := newSim(t, Options{Paused: true, AutosaveInterval: 5 * time.Millisecond}, store)
	ctx := context.Background()

	require.NoError(t, s.Do(ctx, func(w *world.World) error {
		w.Set(vec.Vec3{}, b.Stone.DefaultState(), block.UpdateNone)
		return nil
	}))
	assert.Eventually(t, func() bool { return store.count() == 1 }, time.Second, 5*time.Millisecond)

	require.NoError(t, s.Do(ctx, func(w *world.World) error {
		w.Set(vec.Vec3{}, b.Dirt.DefaultState(), block.UpdateNone)
		return nil
	}))
	s.Stop()
	assert.GreaterOrEqual(t, store.count(), 2)
	assert.Positive(t, spanCount(sr, "sim.autosave"))
}
