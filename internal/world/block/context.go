package block

import "github.com/annel0/blockworld/internal/vec"

// PlaceContext контекст установки блока
type PlaceContext struct {
	Pos         vec.Vec3
	ClickedFace vec.Direction
	Level       WorldView
}

// Neighbor возвращает состояние соседа в направлении dir
func (c PlaceContext) Neighbor(dir vec.Direction) *State {
	return c.Level.Get(c.Pos.Offset(dir))
}
