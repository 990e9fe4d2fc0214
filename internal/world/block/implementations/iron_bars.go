package implementations

import (
	"math/rand"

	"github.com/annel0/blockworld/internal/vec"
	"github.com/annel0/blockworld/internal/world/block"
	"github.com/annel0/blockworld/internal/world/shape"
)

var (
	barsPost = shape.Column(2, 0, 16)
	barsArms = map[vec.Direction]shape.Shape{
		vec.North: shape.Box(7, 0, 0, 9, 16, 8),
		vec.South: shape.Box(7, 0, 8, 9, 16, 16),
		vec.West:  shape.Box(0, 0, 7, 8, 16, 9),
		vec.East:  shape.Box(8, 0, 7, 16, 16, 9),
	}
)

// ironBarsType решётка соединяется с соседними решётками и полными гранями
// по четырём сторонам света.
func ironBarsType() block.Type {
	return block.Type{
		Name:        IronBarsName,
		Connectable: true,
		Properties: []block.Property{
			block.North, block.South, block.West, block.East, block.Waterlogged,
		},
		Behavior: block.Waterloggable(block.Behavior{
			Placement: func(t *block.Type, ctx block.PlaceContext) *block.State {
				s := t.DefaultState()
				for _, dir := range vec.Horizontal {
					s = s.WithBool(block.ConnectionProperty(dir), block.ConnectsTo(ctx.Neighbor(dir), dir))
				}
				return s
			},
			UpdateShape: func(s *block.State, _ block.ShapeLevel, _ vec.Vec3, dir vec.Direction, _ vec.Vec3, neighbor *block.State, _ *rand.Rand) *block.State {
				if !dir.IsHorizontal() {
					return s
				}
				return s.WithBool(block.ConnectionProperty(dir), block.ConnectsTo(neighbor, dir))
			},
			Shape: func(s *block.State) shape.Shape {
				out := barsPost
				for _, dir := range vec.Horizontal {
					if s.Bool(block.ConnectionProperty(dir)) {
						out = shape.Union(out, barsArms[dir])
					}
				}
				return out
			},
		}),
	}
}
