package physics

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/annel0/blockworld/internal/vec"
	"github.com/annel0/blockworld/internal/world/block"
	"github.com/annel0/blockworld/internal/world/block/implementations"
)

// mapView мир из карты состояний; позиции вне bounds незагружены
type mapView struct {
	reg    *block.Registry
	blocks map[vec.Vec3]*block.State
	bound  int
}

func (m *mapView) Get(pos vec.Vec3) *block.State {
	if !m.IsLoaded(pos) {
		return m.reg.VoidAir()
	}
	if s, ok := m.blocks[pos]; ok {
		return s
	}
	return m.reg.Air()
}

func (m *mapView) FluidState(pos vec.Vec3) block.FluidState { return m.Get(pos).FluidState() }

func (m *mapView) IsLoaded(pos vec.Vec3) bool {
	return abs(pos.X) <= m.bound && abs(pos.Y) <= m.bound && abs(pos.Z) <= m.bound
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

func newView(t *testing.T) (*mapView, *implementations.Blocks) {
	t.Helper()
	reg, b, err := implementations.NewDefaultRegistry()
	require.NoError(t, err)
	return &mapView{reg: reg, blocks: make(map[vec.Vec3]*block.State), bound: 8}, b
}

func TestAABBIntersects(t *testing.T) {
	a := NewAABB(1, 1, 1, 0, 0, 0)
	assert.Equal(t, AABB{MaxX: 1, MaxY: 1, MaxZ: 1}, a)

	tests := []struct {
		name string
		b    AABB
		want bool
	}{
		{"overlap", NewAABB(0.5, 0.5, 0.5, 2, 2, 2), true},
		{"touching", NewAABB(1, 0, 0, 2, 1, 1), false},
		{"inside", NewAABB(0.2, 0.2, 0.2, 0.4, 0.4, 0.4), true},
		{"apart", a.Offset(3, 0, 0), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, a.Intersects(tt.b))
			assert.Equal(t, tt.want, tt.b.Intersects(a))
		})
	}
}

func TestCanStandAt(t *testing.T) {
	view, b := newView(t)
	view.blocks[vec.Vec3{X: 0, Y: 0, Z: 0}] = b.Stone.DefaultState()
	view.blocks[vec.Vec3{X: 2, Y: 0, Z: 0}] = b.BottomSlab.DefaultState()

	assert.True(t, CanStandAt(view, vec.Vec3{X: 0, Y: 1, Z: 0}, 0.6, 1.8))
	assert.False(t, CanStandAt(view, vec.Vec3{X: 0, Y: 2, Z: 0}, 0.6, 1.8), "нет опоры")
	assert.False(t, CanStandAt(view, vec.Vec3{X: 0, Y: 0, Z: 0}, 0.6, 1.8), "внутри камня")
	assert.False(t, CanStandAt(view, vec.Vec3{X: 2, Y: 1, Z: 0}, 0.6, 1.8), "полублок ниже ног")

	// Потолок мешает высокой сущности
	view.blocks[vec.Vec3{X: 0, Y: 2, Z: 0}] = b.Stone.DefaultState()
	assert.False(t, CanStandAt(view, vec.Vec3{X: 0, Y: 1, Z: 0}, 0.6, 1.8))
	assert.True(t, CanStandAt(view, vec.Vec3{X: 0, Y: 1, Z: 0}, 0.6, 0.9))
}

func TestSurfaceHeight(t *testing.T) {
	view, b := newView(t)
	view.blocks[vec.Vec3{X: 2, Y: 0, Z: 0}] = b.BottomSlab.DefaultState()

	h, ok := SurfaceHeight(view, EntityBox(2.5, 1, 0.5, 0.6, 1.8))
	require.True(t, ok)
	assert.InDelta(t, 0.5, h, 1e-9)

	_, ok = SurfaceHeight(view, EntityBox(4.5, 1, 0.5, 0.6, 1.8))
	assert.False(t, ok)
}

func TestCollidesUsesCollisionShape(t *testing.T) {
	view, b := newView(t)
	torch := vec.Vec3{X: 1, Y: 1, Z: 1}
	view.blocks[torch] = b.Torch.DefaultState()
	bars := vec.Vec3{X: 3, Y: 1, Z: 1}
	view.blocks[bars] = b.IronBars.DefaultState()

	assert.False(t, Collides(view, NewAABB(1.4, 1, 1.4, 1.6, 1.5, 1.6)), "факел проходим")

	assert.True(t, Collides(view, NewAABB(3.45, 1.2, 1.45, 3.55, 1.3, 1.55)), "столб решётки")
	assert.False(t, Collides(view, NewAABB(3.0, 1.2, 1.0, 3.2, 1.3, 1.2)), "угол без рукавов")
}

func TestVoidIsSolid(t *testing.T) {
	view, _ := newView(t)
	assert.True(t, Collides(view, NewAABB(100, 0, 0, 100.5, 0.5, 0.5)))
	assert.Len(t, BlockBoxes(view, vec.Vec3{X: 100}), 1)
	assert.Empty(t, BlockBoxes(view, vec.Vec3{}))
}
