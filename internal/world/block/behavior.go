package block

import (
	"math/rand"

	"github.com/annel0/blockworld/internal/vec"
	"github.com/annel0/blockworld/internal/world/shape"
)

// Behavior таблица обработчиков типа блока.
// Незаданные поля получают поведение по умолчанию при регистрации,
// поэтому общее поведение собирается композицией, а не наследованием.
type Behavior struct {
	// Placement возвращает состояние для установки или nil, если установка невозможна.
	Placement func(t *Type, ctx PlaceContext) *State

	// CanSurvive проверяет, может ли состояние существовать в позиции.
	// Распространитель заменяет не выжившего соседа воздухом.
	CanSurvive func(s *State, view WorldView, pos vec.Vec3) bool

	// UpdateShape пересчитывает состояние после изменения соседа в направлении dir.
	// Не должен менять мир: результат возвращается, отложенная работа
	// планируется через тики.
	UpdateShape func(s *State, level ShapeLevel, pos vec.Vec3, dir vec.Direction, neighborPos vec.Vec3, neighbor *State, rnd *rand.Rand) *State

	// NeighborChanged вызывается после обновления форм; может вызывать Set.
	NeighborChanged func(s *State, level Level, pos vec.Vec3, source *Type, sourcePos vec.Vec3)

	// Tick запланированный тик.
	Tick func(s *State, level Level, pos vec.Vec3, rnd *rand.Rand)

	// RandomTick случайный тик, только для типов с RandomTicks.
	RandomTick func(s *State, level Level, pos vec.Vec3, rnd *rand.Rand)

	// AnimateTick клиентский тик частиц и звуков, мир не меняет.
	AnimateTick func(s *State, view WorldView, pos vec.Vec3, rnd *rand.Rand)

	// OnPlace и OnRemove вызываются при смене типа блока в позиции.
	OnPlace  func(s *State, level Level, pos vec.Vec3, old *State)
	OnRemove func(s *State, level Level, pos vec.Vec3, replacement *State)

	Shape          func(s *State) shape.Shape
	CollisionShape func(s *State) shape.Shape
	FluidState     func(s *State) FluidState
}

// DefaultBehavior возвращает полностью заполненную таблицу поведения
// обычного твёрдого блока.
func DefaultBehavior() Behavior {
	return Behavior{}.withDefaults()
}

func (b Behavior) withDefaults() Behavior {
	if b.Placement == nil {
		b.Placement = defaultPlacement
	}
	if b.CanSurvive == nil {
		b.CanSurvive = alwaysSurvive
	}
	if b.UpdateShape == nil {
		b.UpdateShape = keepShape
	}
	if b.NeighborChanged == nil {
		b.NeighborChanged = func(*State, Level, vec.Vec3, *Type, vec.Vec3) {}
	}
	if b.Tick == nil {
		b.Tick = noTick
	}
	if b.RandomTick == nil {
		b.RandomTick = noTick
	}
	if b.AnimateTick == nil {
		b.AnimateTick = func(*State, WorldView, vec.Vec3, *rand.Rand) {}
	}
	if b.OnPlace == nil {
		b.OnPlace = func(*State, Level, vec.Vec3, *State) {}
	}
	if b.OnRemove == nil {
		b.OnRemove = func(*State, Level, vec.Vec3, *State) {}
	}
	if b.Shape == nil {
		b.Shape = fullShape
	}
	if b.CollisionShape == nil {
		b.CollisionShape = func(s *State) shape.Shape { return s.Shape() }
	}
	if b.FluidState == nil {
		b.FluidState = func(*State) FluidState { return FluidState{} }
	}
	return b
}

func defaultPlacement(t *Type, _ PlaceContext) *State { return t.DefaultState() }

func alwaysSurvive(*State, WorldView, vec.Vec3) bool { return true }

func keepShape(s *State, _ ShapeLevel, _ vec.Vec3, _ vec.Direction, _ vec.Vec3, _ *State, _ *rand.Rand) *State {
	return s
}

func noTick(*State, Level, vec.Vec3, *rand.Rand) {}

func fullShape(*State) shape.Shape  { return shape.Block() }
func emptyShape(*State) shape.Shape { return shape.Empty() }

// FixedShape возвращает обработчик формы, не зависящий от состояния
func FixedShape(s shape.Shape) func(*State) shape.Shape {
	return func(*State) shape.Shape { return s }
}

// CanSurvive вызывает обработчик выживания типа
func (s *State) CanSurvive(view WorldView, pos vec.Vec3) bool {
	return s.typ.Behavior.CanSurvive(s, view, pos)
}

// UpdateShape вызывает обработчик пересчёта формы типа
func (s *State) UpdateShape(level ShapeLevel, pos vec.Vec3, dir vec.Direction, neighborPos vec.Vec3, neighbor *State, rnd *rand.Rand) *State {
	next := s.typ.Behavior.UpdateShape(s, level, pos, dir, neighborPos, neighbor, rnd)
	if next == nil {
		return s
	}
	return next
}

// NeighborChanged вызывает обработчик изменения соседа
func (s *State) NeighborChanged(level Level, pos vec.Vec3, source *Type, sourcePos vec.Vec3) {
	s.typ.Behavior.NeighborChanged(s, level, pos, source, sourcePos)
}

// Tick вызывает обработчик запланированного тика
func (s *State) Tick(level Level, pos vec.Vec3, rnd *rand.Rand) {
	s.typ.Behavior.Tick(s, level, pos, rnd)
}

// RandomTick вызывает обработчик случайного тика
func (s *State) RandomTick(level Level, pos vec.Vec3, rnd *rand.Rand) {
	s.typ.Behavior.RandomTick(s, level, pos, rnd)
}

// AnimateTick вызывает клиентский обработчик
func (s *State) AnimateTick(view WorldView, pos vec.Vec3, rnd *rand.Rand) {
	s.typ.Behavior.AnimateTick(s, view, pos, rnd)
}

// OnPlace вызывает обработчик установки
func (s *State) OnPlace(level Level, pos vec.Vec3, old *State) {
	s.typ.Behavior.OnPlace(s, level, pos, old)
}

// OnRemove вызывает обработчик удаления
func (s *State) OnRemove(level Level, pos vec.Vec3, replacement *State) {
	s.typ.Behavior.OnRemove(s, level, pos, replacement)
}
