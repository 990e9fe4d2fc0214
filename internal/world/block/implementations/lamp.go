package implementations

import (
	"math/rand"

	"github.com/annel0/blockworld/internal/vec"
	"github.com/annel0/blockworld/internal/world/block"
)

// LampOffDelay задержка выключения лампы
const LampOffDelay = 4

// lampType лампа загорается сразу, как только рядом появляется источник
// сигнала, и гаснет отложенным тиком после его исчезновения.
func lampType(sources ...*block.Type) block.Type {
	powered := func(view block.WorldView, pos vec.Vec3) bool {
		for _, n := range pos.Neighbors() {
			s := view.Get(n)
			for _, src := range sources {
				if s.Is(src) {
					return true
				}
			}
		}
		return false
	}

	return block.Type{
		Name:       LampName,
		Properties: []block.Property{block.Lit},
		Behavior: block.Behavior{
			Placement: func(t *block.Type, ctx block.PlaceContext) *block.State {
				return t.DefaultState().WithBool(block.Lit, powered(ctx.Level, ctx.Pos))
			},
			NeighborChanged: func(s *block.State, level block.Level, pos vec.Vec3, _ *block.Type, _ vec.Vec3) {
				lit := s.Bool(block.Lit)
				on := powered(level, pos)
				switch {
				case lit && !on:
					if !level.HasBlockTick(pos, s.Type()) {
						level.ScheduleBlockTick(pos, s.Type(), LampOffDelay)
					}
				case !lit && on:
					level.Set(pos, s.WithBool(block.Lit, true), block.NotifyClients)
				}
			},
			Tick: func(s *block.State, level block.Level, pos vec.Vec3, _ *rand.Rand) {
				if s.Bool(block.Lit) && !powered(level, pos) {
					level.Set(pos, s.WithBool(block.Lit, false), block.NotifyClients)
				}
			},
		},
	}
}
