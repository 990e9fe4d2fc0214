package implementations

import (
	"math/rand"

	"github.com/annel0/blockworld/internal/vec"
	"github.com/annel0/blockworld/internal/world/block"
	"github.com/annel0/blockworld/internal/world/shape"
)

// WaterTickDelay задержка тика воды
const WaterTickDelay = 5

// waterType блок воды. Свойство level: 0 источник, 1..7 растекающаяся вода
// (чем больше, тем меньше воды), 8..15 падающая.
func waterType() block.Type {
	return block.Type{
		Name:        WaterName,
		Replaceable: true,
		Properties:  []block.Property{block.LiquidLevel},
		Behavior: block.Behavior{
			Shape:      block.FixedShape(shape.Empty()),
			FluidState: waterFluidState,
			OnPlace: func(_ *block.State, level block.Level, pos vec.Vec3, _ *block.State) {
				scheduleWater(level, pos)
			},
			UpdateShape: func(s *block.State, level block.ShapeLevel, pos vec.Vec3, _ vec.Direction, _ vec.Vec3, _ *block.State, _ *rand.Rand) *block.State {
				scheduleWater(level, pos)
				return s
			},
		},
	}
}

func waterFluidState(s *block.State) block.FluidState {
	level := s.Int(block.LiquidLevel)
	switch {
	case level == 0:
		return block.SourceOf(block.FluidWater)
	case level >= 8:
		return block.FluidState{Fluid: block.FluidWater, Level: block.MaxFluidLevel, Falling: true}
	default:
		return block.FluidState{Fluid: block.FluidWater, Level: block.MaxFluidLevel - level}
	}
}

// waterBlockState обратное отображение жидкости в состояние блока воды
func waterBlockState(water *block.Type, fs block.FluidState) *block.State {
	switch {
	case fs.Source:
		return water.DefaultState()
	case fs.Falling:
		return water.DefaultState().WithInt(block.LiquidLevel, 8)
	default:
		return water.DefaultState().WithInt(block.LiquidLevel, block.MaxFluidLevel-fs.Level)
	}
}

func scheduleWater(level block.ShapeLevel, pos vec.Vec3) {
	if level.HasFluidTick(pos, block.FluidWater) {
		return
	}
	block.ScheduleFluid(level, pos, block.FluidWater)
}

func waterFluid() block.Fluid {
	return block.Fluid{
		ID:        block.FluidWater,
		Name:      WaterName,
		TickDelay: WaterTickDelay,
		Tick:      waterTick,
	}
}

// waterTick пересчитывает уровень растекающейся воды и растекается:
// сначала вниз, затем в стороны с уменьшением уровня.
func waterTick(level block.Level, pos vec.Vec3, fs block.FluidState, _ *rand.Rand) {
	water, ok := level.Registry().ByName(WaterName)
	if !ok {
		return
	}
	if !fs.Source {
		next := computeFlow(level, pos)
		if next.IsEmpty() {
			if level.Get(pos).Is(water) {
				level.Set(pos, level.Registry().Air(), block.UpdateAll)
			}
			return
		}
		if next != fs {
			if level.Get(pos).Is(water) {
				level.Set(pos, waterBlockState(water, next), block.UpdateAll)
			}
			fs = next
		}
	}
	spread(level, water, pos, fs)
}

// computeFlow ожидаемое состояние нерастекающейся воды по соседям
func computeFlow(view block.WorldView, pos vec.Vec3) block.FluidState {
	if view.FluidState(pos.Above()).Is(block.FluidWater) {
		return block.FluidState{Fluid: block.FluidWater, Level: block.MaxFluidLevel, Falling: true}
	}
	best := 0
	sources := 0
	for _, dir := range vec.Horizontal {
		n := view.FluidState(pos.Offset(dir))
		if !n.Is(block.FluidWater) {
			continue
		}
		if n.Source {
			sources++
		}
		best = max(best, n.Level)
	}
	if sources >= 2 {
		below := view.Get(pos.Below())
		if below.IsFaceSturdy(vec.Up, shape.SupportFull) || below.FluidState().Source {
			return block.SourceOf(block.FluidWater)
		}
	}
	if best-1 <= 0 {
		return block.FluidState{}
	}
	return block.FluidState{Fluid: block.FluidWater, Level: best - 1}
}

func spread(level block.Level, water *block.Type, pos vec.Vec3, fs block.FluidState) {
	below := pos.Below()
	if canFlowInto(level, below) {
		level.Set(below, waterBlockState(water, block.FluidState{Fluid: block.FluidWater, Level: block.MaxFluidLevel, Falling: true}), block.UpdateAll)
		if !fs.Source {
			return
		}
	}

	side := fs.Level - 1
	if fs.Falling {
		side = block.MaxFluidLevel - 1
	}
	if side <= 0 {
		return
	}
	for _, dir := range vec.Horizontal {
		n := pos.Offset(dir)
		target := level.Get(n)
		nfs := target.FluidState()
		switch {
		case nfs.Is(block.FluidWater):
			if nfs.Source || nfs.Falling || nfs.Level >= side || !target.Is(water) {
				continue
			}
		case !canFlowInto(level, n):
			continue
		}
		level.Set(n, waterBlockState(water, block.FluidState{Fluid: block.FluidWater, Level: side}), block.UpdateAll)
	}
}

// canFlowInto может ли вода занять клетку
func canFlowInto(level block.ShapeLevel, pos vec.Vec3) bool {
	s := level.Get(pos)
	if s == level.Registry().VoidAir() || !s.FluidState().IsEmpty() {
		return false
	}
	return s.IsReplaceable()
}
