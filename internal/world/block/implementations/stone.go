package implementations

import (
	"github.com/annel0/blockworld/internal/world/block"
)

// stoneType обычный твёрдый блок: поведение по умолчанию
func stoneType() block.Type {
	return block.Type{Name: StoneName}
}

// glassType стекло: полная форма, решётки соединяются с ним
func glassType() block.Type {
	return block.Type{Name: GlassName, Connectable: true}
}
