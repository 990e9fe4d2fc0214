package world

import (
	"github.com/annel0/blockworld/internal/vec"
	"github.com/annel0/blockworld/internal/world/block"
)

// BlockChange событие изменения блока
type BlockChange struct {
	Pos       vec.Vec3
	Old       *block.State
	New       *block.State
	Flags     block.UpdateFlags
	Destroyed bool  // Блок разрушен (не выжил или удалён Destroy)
	Tick      int64 // Игровое время изменения
}

// Listener получает изменения синхронно в потоке симуляции.
// Реализации не должны блокироваться и не должны менять мир.
type Listener interface {
	OnBlockChange(change BlockChange)
}

// ListenerFunc адаптер функции к Listener
type ListenerFunc func(change BlockChange)

// OnBlockChange вызывает функцию
func (f ListenerFunc) OnBlockChange(change BlockChange) { f(change) }

// AddListener подписывает слушателя на изменения блоков
func (w *World) AddListener(l Listener) {
	w.listeners = append(w.listeners, l)
}

func (w *World) emit(change BlockChange) {
	for _, l := range w.listeners {
		l.OnBlockChange(change)
	}
}
