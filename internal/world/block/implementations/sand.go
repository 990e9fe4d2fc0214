package implementations

import (
	"math/rand"

	"github.com/annel0/blockworld/internal/vec"
	"github.com/annel0/blockworld/internal/world/block"
)

// SandFallDelay задержка падения песка в тиках
const SandFallDelay = 2

// sandType песок падает, если под ним пусто. Падение выполняется
// запланированным тиком: блок переносится на одну клетку вниз, а новый
// блок снизу планирует собственный тик.
func sandType() block.Type {
	return block.Type{
		Name: SandName,
		Behavior: block.Behavior{
			OnPlace: func(s *block.State, level block.Level, pos vec.Vec3, _ *block.State) {
				scheduleFall(level, s.Type(), pos)
			},
			UpdateShape: func(s *block.State, level block.ShapeLevel, pos vec.Vec3, _ vec.Direction, _ vec.Vec3, _ *block.State, _ *rand.Rand) *block.State {
				scheduleFall(level, s.Type(), pos)
				return s
			},
			Tick: func(s *block.State, level block.Level, pos vec.Vec3, _ *rand.Rand) {
				below := pos.Below()
				if !canFallInto(level, below) {
					return
				}
				level.Set(pos, level.Registry().Air(), block.UpdateAll)
				level.Set(below, s, block.UpdateAll)
			},
		},
	}
}

func scheduleFall(level block.ShapeLevel, t *block.Type, pos vec.Vec3) {
	if !canFallInto(level, pos.Below()) || level.HasBlockTick(pos, t) {
		return
	}
	level.ScheduleBlockTick(pos, t, SandFallDelay)
}

// canFallInto свободна ли клетка: воздух или заменяемый блок.
// void_air за пределами мира падение останавливает.
func canFallInto(view block.ShapeLevel, pos vec.Vec3) bool {
	s := view.Get(pos)
	if s == view.Registry().VoidAir() {
		return false
	}
	return s.IsReplaceable()
}
