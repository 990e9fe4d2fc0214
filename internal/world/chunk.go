package world

import (
	"github.com/annel0/blockworld/internal/vec"
	"github.com/annel0/blockworld/internal/world/block"
)

// ChunkSize длина ребра чанка в блоках
const ChunkSize = 16

// ChunkVolume количество блоков в чанке
const ChunkVolume = ChunkSize * ChunkSize * ChunkSize

// Chunk представляет участок мира размером 16x16x16 блоков.
// Состояния хранятся как StateID; нулевое значение это air.
// Чанк принадлежит потоку симуляции и не защищён мьютексом.
type Chunk struct {
	Coords vec.Vec3 // Координаты чанка в мире

	states [ChunkVolume]block.StateID
	nonAir int

	dirty         bool // Есть несохранённые изменения
	ChangeCounter int  // Счетчик изменений
}

// NewChunk создаёт пустой чанк (только воздух)
func NewChunk(coords vec.Vec3) *Chunk {
	return &Chunk{Coords: coords}
}

// localIndex индекс блока внутри чанка: x, затем z, затем y
func localIndex(local vec.Vec3) int {
	return local.X + local.Z*ChunkSize + local.Y*ChunkSize*ChunkSize
}

func localFromIndex(i int) vec.Vec3 {
	return vec.Vec3{X: i % ChunkSize, Z: (i / ChunkSize) % ChunkSize, Y: i / (ChunkSize * ChunkSize)}
}

// StateID возвращает идентификатор состояния по локальным координатам
func (c *Chunk) StateID(local vec.Vec3) block.StateID {
	return c.states[localIndex(local)]
}

// SetStateID устанавливает состояние и возвращает предыдущее
func (c *Chunk) SetStateID(local vec.Vec3, id block.StateID, airID block.StateID) block.StateID {
	i := localIndex(local)
	old := c.states[i]
	if old == id {
		return old
	}
	c.states[i] = id
	switch {
	case old == airID && id != airID:
		c.nonAir++
	case old != airID && id == airID:
		c.nonAir--
	}
	c.dirty = true
	c.ChangeCounter++
	return old
}

// IsEmpty возвращает true, если в чанке только воздух
func (c *Chunk) IsEmpty() bool { return c.nonAir == 0 }

// HasChanges проверяет, есть ли несохранённые изменения
func (c *Chunk) HasChanges() bool { return c.dirty }

// MarkChanged помечает чанк несохранённым без изменения блоков
func (c *Chunk) MarkChanged() { c.dirty = true }

// ClearChanges сбрасывает флаг изменений после сохранения
func (c *Chunk) ClearChanges() { c.dirty = false }

// Origin мировые координаты блока (0,0,0) чанка
func (c *Chunk) Origin() vec.Vec3 { return c.Coords.ChunkOrigin() }

// recount пересчитывает количество непустых блоков после загрузки
func (c *Chunk) recount(airID block.StateID) {
	c.nonAir = 0
	for _, id := range c.states {
		if id != airID {
			c.nonAir++
		}
	}
}
