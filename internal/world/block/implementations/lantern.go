package implementations

import (
	"github.com/annel0/blockworld/internal/vec"
	"github.com/annel0/blockworld/internal/world/block"
	"github.com/annel0/blockworld/internal/world/shape"
)

var (
	lanternStanding = shape.Union(shape.Box(5, 0, 5, 11, 7, 11), shape.Box(6, 7, 6, 10, 9, 10))
	lanternHanging  = shape.Union(shape.Box(5, 1, 5, 11, 8, 11), shape.Box(6, 8, 6, 10, 10, 10))
)

// lanternType фонарь: стоит на опоре снизу или висит под опорой сверху,
// может быть затоплен.
func lanternType() block.Type {
	return block.Type{
		Name:       LanternName,
		Properties: []block.Property{block.Hanging, block.Waterlogged},
		Behavior: block.Waterloggable(block.Behavior{
			Placement: func(t *block.Type, ctx block.PlaceContext) *block.State {
				first := ctx.ClickedFace == vec.Down
				for _, hanging := range []bool{first, !first} {
					s := t.DefaultState().WithBool(block.Hanging, hanging)
					if s.CanSurvive(ctx.Level, ctx.Pos) {
						return s
					}
				}
				return nil
			},
			CanSurvive: func(s *block.State, view block.WorldView, pos vec.Vec3) bool {
				dir := attachDirection(s)
				return view.Get(pos.Offset(dir)).IsFaceSturdy(dir.Opposite(), shape.SupportCenter)
			},
			Shape: func(s *block.State) shape.Shape {
				if s.Bool(block.Hanging) {
					return lanternHanging
				}
				return lanternStanding
			},
		}),
	}
}

// attachDirection направление к опоре фонаря
func attachDirection(s *block.State) vec.Direction {
	if s.Bool(block.Hanging) {
		return vec.Up
	}
	return vec.Down
}
