package block

import (
	"math/rand"

	"github.com/annel0/blockworld/internal/vec"
	"github.com/annel0/blockworld/internal/world/shape"
)

// SurviveOn возвращает проверку выживания: сосед в направлении dir должен
// предоставлять опору типа support своей гранью, обращённой к блоку.
func SurviveOn(dir vec.Direction, support shape.SupportType) func(*State, WorldView, vec.Vec3) bool {
	return func(_ *State, view WorldView, pos vec.Vec3) bool {
		return view.Get(pos.Offset(dir)).IsFaceSturdy(dir.Opposite(), support)
	}
}

// ScheduleFluid планирует тик жидкости с её собственной задержкой.
// Для незарегистрированной жидкости ничего не делает.
func ScheduleFluid(level ShapeLevel, pos vec.Vec3, id FluidID) {
	f := level.Registry().Fluid(id)
	if f == nil || f.Tick == nil {
		return
	}
	level.ScheduleFluidTick(pos, id, f.TickDelay)
}

// Waterloggable добавляет поведению поддержку свойства Waterlogged.
// Тип должен объявить Waterlogged в Properties.
//   - при установке в источник воды состояние получает waterlogged=true;
//   - при любом обновлении соседа затопленный блок планирует тик воды;
//   - FluidState затопленного блока это источник воды.
func Waterloggable(b Behavior) Behavior {
	place := b.Placement
	update := b.UpdateShape
	fluid := b.FluidState

	b.Placement = func(t *Type, ctx PlaceContext) *State {
		var s *State
		if place != nil {
			s = place(t, ctx)
		} else {
			s = t.DefaultState()
		}
		if s == nil {
			return nil
		}
		fs := ctx.Level.FluidState(ctx.Pos)
		return s.WithBool(Waterlogged, fs.Is(FluidWater) && fs.Source)
	}
	b.UpdateShape = func(s *State, level ShapeLevel, pos vec.Vec3, dir vec.Direction, neighborPos vec.Vec3, neighbor *State, rnd *rand.Rand) *State {
		if s.Bool(Waterlogged) {
			ScheduleFluid(level, pos, FluidWater)
		}
		if update == nil {
			return s
		}
		return update(s, level, pos, dir, neighborPos, neighbor, rnd)
	}
	b.FluidState = func(s *State) FluidState {
		if s.Bool(Waterlogged) {
			return SourceOf(FluidWater)
		}
		if fluid == nil {
			return FluidState{}
		}
		return fluid(s)
	}
	return b
}

// ConnectsTo сообщает, соединяется ли блок-решётка с соседом через грань dir
// (dir направление от блока к соседу).
func ConnectsTo(neighbor *State, dir vec.Direction) bool {
	if neighbor.IsAir() {
		return false
	}
	if neighbor.Type().Connectable {
		return true
	}
	return neighbor.IsFaceSturdy(dir.Opposite(), shape.SupportFull)
}

// ConnectionProperty возвращает свойство соединения для горизонтального направления
func ConnectionProperty(dir vec.Direction) *BoolProperty {
	switch dir {
	case vec.North:
		return North
	case vec.South:
		return South
	case vec.West:
		return West
	case vec.East:
		return East
	}
	return nil
}
