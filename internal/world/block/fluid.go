package block

import (
	"math/rand"

	"github.com/annel0/blockworld/internal/vec"
)

// FluidID идентификатор жидкости
type FluidID uint8

const (
	FluidEmpty FluidID = iota
	FluidWater
	FluidLava
)

func (f FluidID) String() string {
	switch f {
	case FluidWater:
		return "water"
	case FluidLava:
		return "lava"
	default:
		return "empty"
	}
}

// MaxFluidLevel уровень источника и падающей жидкости
const MaxFluidLevel = 8

// FluidState жидкость в позиции
type FluidState struct {
	Fluid   FluidID
	Level   int // 1..8, 8 у источника
	Source  bool
	Falling bool
}

// IsEmpty сообщает об отсутствии жидкости
func (f FluidState) IsEmpty() bool { return f.Fluid == FluidEmpty }

// Is проверяет тип жидкости
func (f FluidState) Is(id FluidID) bool { return f.Fluid == id }

// SourceOf возвращает состояние источника жидкости
func SourceOf(id FluidID) FluidState {
	return FluidState{Fluid: id, Level: MaxFluidLevel, Source: true}
}

// Fluid описывает тип жидкости. Тики жидкости планируются отдельно от
// тиков блоков и выполняются после них.
type Fluid struct {
	ID        FluidID
	Name      string
	TickDelay int
	Tick      func(level Level, pos vec.Vec3, fs FluidState, rnd *rand.Rand)
}

// ParseFluid находит жидкость по имени
func ParseFluid(name string) (FluidID, bool) {
	for _, id := range []FluidID{FluidEmpty, FluidWater, FluidLava} {
		if id.String() == name {
			return id, true
		}
	}
	return FluidEmpty, false
}
