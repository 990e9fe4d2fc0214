package physics

import (
	"math"

	"github.com/annel0/blockworld/internal/vec"
	"github.com/annel0/blockworld/internal/world/block"
	"github.com/annel0/blockworld/internal/world/shape"
)

// epsilon зазор для проверки опоры под ногами
const epsilon = 1e-4

// AABB ось-ориентированный параллелепипед в мировых единицах (1 = блок)
type AABB struct {
	MinX, MinY, MinZ float64
	MaxX, MaxY, MaxZ float64
}

// NewAABB создаёт параллелепипед; границы упорядочиваются
func NewAABB(x1, y1, z1, x2, y2, z2 float64) AABB {
	return AABB{
		MinX: math.Min(x1, x2), MinY: math.Min(y1, y2), MinZ: math.Min(z1, z2),
		MaxX: math.Max(x1, x2), MaxY: math.Max(y1, y2), MaxZ: math.Max(z1, z2),
	}
}

// EntityBox коробка сущности шириной width и высотой height,
// стоящей ногами в точке (x, y, z)
func EntityBox(x, y, z, width, height float64) AABB {
	h := width / 2
	return AABB{MinX: x - h, MinY: y, MinZ: z - h, MaxX: x + h, MaxY: y + height, MaxZ: z + h}
}

// Intersects пересекаются ли коробки с ненулевым объёмом (касание не считается)
func (a AABB) Intersects(b AABB) bool {
	return a.MinX < b.MaxX && a.MaxX > b.MinX &&
		a.MinY < b.MaxY && a.MaxY > b.MinY &&
		a.MinZ < b.MaxZ && a.MaxZ > b.MinZ
}

// Offset сдвигает коробку
func (a AABB) Offset(dx, dy, dz float64) AABB {
	return AABB{
		MinX: a.MinX + dx, MinY: a.MinY + dy, MinZ: a.MinZ + dz,
		MaxX: a.MaxX + dx, MaxY: a.MaxY + dy, MaxZ: a.MaxZ + dz,
	}
}

// FromShapeBox переводит коробку формы блока в позиции pos в мировые единицы
func FromShapeBox(pos vec.Vec3, b shape.Cuboid) AABB {
	const r = float64(shape.Resolution)
	return AABB{
		MinX: float64(pos.X) + float64(b.MinX)/r,
		MinY: float64(pos.Y) + float64(b.MinY)/r,
		MinZ: float64(pos.Z) + float64(b.MinZ)/r,
		MaxX: float64(pos.X) + float64(b.MaxX)/r,
		MaxY: float64(pos.Y) + float64(b.MaxY)/r,
		MaxZ: float64(pos.Z) + float64(b.MaxZ)/r,
	}
}

// BlockBoxes коробки столкновений блока в позиции pos.
// Незагруженные позиции (void_air) считаются сплошными.
func BlockBoxes(view block.WorldView, pos vec.Vec3) []AABB {
	s := view.Get(pos)
	if s.Type().Name == block.VoidAirName {
		return []AABB{FromShapeBox(pos, shape.Cuboid{MaxX: shape.Resolution, MaxY: shape.Resolution, MaxZ: shape.Resolution})}
	}
	col := s.CollisionShape()
	if col.IsEmpty() {
		return nil
	}
	boxes := col.Boxes()
	out := make([]AABB, len(boxes))
	for i, b := range boxes {
		out[i] = FromShapeBox(pos, b)
	}
	return out
}

// Collides пересекается ли коробка с формами столкновений блоков
func Collides(view block.WorldView, box AABB) bool {
	minX, maxX := int(math.Floor(box.MinX)), int(math.Ceil(box.MaxX))
	minY, maxY := int(math.Floor(box.MinY)), int(math.Ceil(box.MaxY))
	minZ, maxZ := int(math.Floor(box.MinZ)), int(math.Ceil(box.MaxZ))
	for y := minY; y < maxY; y++ {
		for z := minZ; z < maxZ; z++ {
			for x := minX; x < maxX; x++ {
				for _, b := range BlockBoxes(view, vec.Vec3{X: x, Y: y, Z: z}) {
					if b.Intersects(box) {
						return true
					}
				}
			}
		}
	}
	return false
}

// CanStandAt может ли сущность размером width×height стоять в центре блока pos:
// коробка свободна и сразу под ногами есть опора.
func CanStandAt(view block.WorldView, pos vec.Vec3, width, height float64) bool {
	box := EntityBox(float64(pos.X)+0.5, float64(pos.Y), float64(pos.Z)+0.5, width, height)
	if Collides(view, box) {
		return false
	}
	return Collides(view, box.Offset(0, -epsilon, 0))
}

// SurfaceHeight высота верхней грани опоры под коробкой в пределах одного
// блока вниз; ok == false, если опоры нет.
func SurfaceHeight(view block.WorldView, box AABB) (float64, bool) {
	probe := AABB{MinX: box.MinX, MinY: box.MinY - 1, MinZ: box.MinZ, MaxX: box.MaxX, MaxY: box.MinY, MaxZ: box.MaxZ}
	best, ok := math.Inf(-1), false
	minX, maxX := int(math.Floor(probe.MinX)), int(math.Ceil(probe.MaxX))
	minZ, maxZ := int(math.Floor(probe.MinZ)), int(math.Ceil(probe.MaxZ))
	for y := int(math.Floor(probe.MinY)); y < int(math.Ceil(probe.MaxY)); y++ {
		for z := minZ; z < maxZ; z++ {
			for x := minX; x < maxX; x++ {
				for _, b := range BlockBoxes(view, vec.Vec3{X: x, Y: y, Z: z}) {
					if b.Intersects(probe) && b.MaxY <= box.MinY && b.MaxY > best {
						best, ok = b.MaxY, true
					}
				}
			}
		}
	}
	return best, ok
}
