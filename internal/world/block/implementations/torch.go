package implementations

import (
	"github.com/annel0/blockworld/internal/vec"
	"github.com/annel0/blockworld/internal/world/block"
	"github.com/annel0/blockworld/internal/world/shape"
)

// torchType факел стоит на центральной опоре снизу и питает лампы рядом
func torchType() block.Type {
	survive := block.SurviveOn(vec.Down, shape.SupportCenter)
	return block.Type{
		Name: TorchName,
		Behavior: block.Behavior{
			Placement:      placeIfSurvives,
			CanSurvive:     survive,
			Shape:          block.FixedShape(shape.Box(6, 0, 6, 10, 10, 10)),
			CollisionShape: block.FixedShape(shape.Empty()),
		},
	}
}

// placeIfSurvives возвращает состояние по умолчанию, если оно выживает в позиции
func placeIfSurvives(t *block.Type, ctx block.PlaceContext) *block.State {
	s := t.DefaultState()
	if !s.CanSurvive(ctx.Level, ctx.Pos) {
		return nil
	}
	return s
}
