package implementations

import (
	"math/rand"

	"github.com/annel0/blockworld/internal/vec"
	"github.com/annel0/blockworld/internal/world/block"
	"github.com/annel0/blockworld/internal/world/shape"
)

// grassType трава: случайные тики. Закрытая сверху трава превращается в
// землю, открытая распространяется на соседнюю землю.
func grassType(dirt *block.Type) block.Type {
	return block.Type{
		Name:        GrassName,
		RandomTicks: true,
		Behavior: block.Behavior{
			RandomTick: func(s *block.State, level block.Level, pos vec.Vec3, rnd *rand.Rand) {
				if covered(level, pos) {
					level.Set(pos, dirt.DefaultState(), block.UpdateAll)
					return
				}
				// Пытаемся распространиться на случайную соседнюю землю
				target := pos.Add(vec.Vec3{
					X: rnd.Intn(3) - 1,
					Y: rnd.Intn(3) - 1,
					Z: rnd.Intn(3) - 1,
				})
				if level.Get(target).Is(dirt) && !covered(level, target) {
					level.Set(target, s.Type().DefaultState(), block.UpdateAll)
				}
			},
		},
	}
}

// covered сообщает, закрыт ли блок сверху полной гранью
func covered(view block.WorldView, pos vec.Vec3) bool {
	above := view.Get(pos.Above())
	return shape.IsFaceFull(above.Shape(), vec.Down)
}
