package eventbus

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/annel0/blockworld/internal/vec"
	"github.com/annel0/blockworld/internal/world"
	"github.com/annel0/blockworld/internal/world/block"
	"github.com/annel0/blockworld/internal/world/block/implementations"
)

// collector собирает доставленные события
type collector struct {
	mu     sync.Mutex
	events []*Envelope
}

func (c *collector) handle(_ context.Context, ev *Envelope) {
	c.mu.Lock()
	c.events = append(c.events, ev)
	c.mu.Unlock()
}

func (c *collector) snapshot() []*Envelope {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]*Envelope(nil), c.events...)
}

func TestMemoryBusDeliversInOrderWithFilter(t *testing.T) {
	bus := NewMemoryBus(16)
	ctx := context.Background()

	var all, breaks collector
	_, err := bus.Subscribe(ctx, Filter{}, all.handle)
	require.NoError(t, err)
	_, err = bus.Subscribe(ctx, Filter{Types: []string{EventBlockBreak}}, breaks.handle)
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		ev := NewEnvelope("test", EventBlockChange, []byte{byte(i)})
		require.NoError(t, bus.Publish(ctx, ev))
	}
	require.NoError(t, bus.Publish(ctx, NewEnvelope("test", EventBlockBreak, nil)))
	require.NoError(t, bus.Close())

	got := all.snapshot()
	require.Len(t, got, 6)
	for i := 0; i < 5; i++ {
		assert.Equal(t, []byte{byte(i)}, got[i].Payload)
	}
	assert.Len(t, breaks.snapshot(), 1)

	stats := bus.Metrics()
	assert.Equal(t, uint64(6), stats.Published)
	assert.Equal(t, uint64(7), stats.Consumed)
	assert.Equal(t, 0, stats.InFlight)
}

func TestMemoryBusUnsubscribeAndClose(t *testing.T) {
	bus := NewMemoryBus(4)
	ctx := context.Background()

	var c collector
	sub, err := bus.Subscribe(ctx, Filter{}, c.handle)
	require.NoError(t, err)
	sub.Unsubscribe()

	require.NoError(t, bus.Publish(ctx, NewEnvelope("test", EventBlockChange, nil)))
	require.NoError(t, bus.Close())
	assert.Empty(t, c.snapshot())

	assert.ErrorIs(t, bus.Publish(ctx, NewEnvelope("test", EventBlockChange, nil)), ErrClosed)
	assert.NoError(t, bus.Close(), "повторное закрытие")
}

func TestNewEnvelope(t *testing.T) {
	a := NewEnvelope("src", EventBlockChange, []byte("x"))
	b := NewEnvelope("src", EventBlockChange, []byte("x"))
	assert.NotEqual(t, a.ID, b.ID)
	assert.Len(t, a.ID, 36)
	assert.Equal(t, 1, a.Version)
	assert.Equal(t, time.UTC, a.Timestamp.Location())
}

func TestMetricsExporterCollectsDeltas(t *testing.T) {
	bus := NewMemoryBus(8)
	defer bus.Close()
	me := NewMetricsExporter(bus, nil)

	ctx := context.Background()
	require.NoError(t, bus.Publish(ctx, NewEnvelope("test", EventBlockChange, nil)))
	require.NoError(t, bus.Publish(ctx, NewEnvelope("test", EventBlockChange, nil)))
	me.Collect()
	me.Collect()
	assert.Equal(t, float64(2), testutil.ToFloat64(me.published))

	require.NoError(t, bus.Publish(ctx, NewEnvelope("test", EventBlockChange, nil)))
	me.Collect()
	assert.Equal(t, float64(3), testutil.ToFloat64(me.published))
}

func TestBlockChangePublisherDropsOnOverflow(t *testing.T) {
	bus := NewMemoryBus(8)
	defer bus.Close()
	reg, b, err := implementations.NewDefaultRegistry()
	require.NoError(t, err)

	p := NewBlockChangePublisher(bus, "test", 1)
	change := world.BlockChange{Pos: vec.Vec3{}, Old: reg.Air(), New: b.Stone.DefaultState()}
	p.OnBlockChange(change)
	p.OnBlockChange(change)
	assert.Equal(t, uint64(1), p.Dropped())
}

func TestBlockChangePublisherFromWorld(t *testing.T) {
	bus := NewMemoryBus(64)
	ctx, cancel := context.WithCancel(context.Background())

	var c collector
	_, err := bus.Subscribe(context.Background(), Filter{}, c.handle)
	require.NoError(t, err)

	reg, b, err := implementations.NewDefaultRegistry()
	require.NoError(t, err)
	pub := NewBlockChangePublisher(bus, "blockworld", 64)
	w := world.New(reg, world.Config{}, world.WithListener(pub))
	require.NoError(t, w.LoadChunk(context.Background(), vec.Vec3{}))

	done := make(chan struct{})
	go func() {
		pub.Run(ctx)
		close(done)
	}()

	w.Set(vec.Vec3{X: 1, Y: 1, Z: 1}, b.Stone.DefaultState(), block.UpdateAll)
	w.Destroy(vec.Vec3{X: 1, Y: 1, Z: 1})

	cancel()
	<-done
	require.NoError(t, bus.Close())

	got := c.snapshot()
	require.Len(t, got, 2)
	assert.Equal(t, EventBlockChange, got[0].EventType)
	assert.Equal(t, EventBlockBreak, got[1].EventType)

	var ev BlockChangeEvent
	require.NoError(t, json.Unmarshal(got[0].Payload, &ev))
	assert.Equal(t, vec.Vec3{X: 1, Y: 1, Z: 1}, ev.Pos)
	assert.Equal(t, "air", ev.Old)
	assert.Equal(t, "stone", ev.New)
	assert.Equal(t, "notify_neighbors|notify_clients", ev.Flags)
}
