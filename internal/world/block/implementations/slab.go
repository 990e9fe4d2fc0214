package implementations

import (
	"github.com/annel0/blockworld/internal/world/block"
	"github.com/annel0/blockworld/internal/world/shape"
)

// bottomSlabType нижняя плита: полная нижняя грань, верх не является опорой
func bottomSlabType() block.Type {
	return block.Type{
		Name: BottomSlabName,
		Behavior: block.Behavior{
			Shape: block.FixedShape(shape.Box(0, 0, 0, 16, 8, 16)),
		},
	}
}
