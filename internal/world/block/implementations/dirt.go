package implementations

import (
	"github.com/annel0/blockworld/internal/world/block"
)

func dirtType() block.Type {
	return block.Type{Name: DirtName}
}
