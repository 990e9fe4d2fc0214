package block

import "github.com/annel0/blockworld/internal/vec"

// WorldView определяет доступ блоков к миру только на чтение.
type WorldView interface {
	// Get возвращает состояние в позиции. Для незагруженных координат
	// возвращается void_air.
	Get(pos vec.Vec3) *State

	// FluidState возвращает жидкость в позиции.
	FluidState(pos vec.Vec3) FluidState

	// IsLoaded сообщает, загружен ли чанк с позицией.
	IsLoaded(pos vec.Vec3) bool
}

// TickScheduler определяет планирование отложенных тиков.
// Тик с задержкой меньше 1 срабатывает не раньше следующего игрового тика.
type TickScheduler interface {
	// ScheduleBlockTick планирует тик для типа блока.
	ScheduleBlockTick(pos vec.Vec3, t *Type, delay int)

	// ScheduleFluidTick планирует тик для жидкости.
	ScheduleFluidTick(pos vec.Vec3, f FluidID, delay int)

	// HasBlockTick проверяет, есть ли уже тик для типа в позиции.
	// Используется для идемпотентного планирования.
	HasBlockTick(pos vec.Vec3, t *Type) bool

	// HasFluidTick проверяет, есть ли уже тик для жидкости в позиции.
	HasFluidTick(pos vec.Vec3, f FluidID) bool
}

// ShapeLevel передаётся в UpdateShape: чтение и планирование тиков, без записи.
type ShapeLevel interface {
	WorldView
	TickScheduler

	// Registry возвращает реестр, в котором зарегистрированы блоки мира.
	Registry() *Registry

	// GameTime возвращает текущее игровое время.
	GameTime() int64
}

// Level полный доступ к миру для тиков и обработчиков соседей.
type Level interface {
	ShapeLevel

	// Set устанавливает состояние и возвращает предыдущее.
	// Вызов во время распространения обновлений ставится в очередь фронта.
	Set(pos vec.Vec3, s *State, flags UpdateFlags) *State
}
