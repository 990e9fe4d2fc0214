package shape

import (
	"math/bits"

	"github.com/annel0/blockworld/internal/vec"
)

// Face проекция формы на грань блока: 16x16 ячеек.
// Индекс ячейки u + v*16, где (u, v) две оси, перпендикулярные нормали:
// для граней по Y это (x, z), по Z это (x, y), по X это (z, y).
type Face [4]uint64

var fullFace = Face{^uint64(0), ^uint64(0), ^uint64(0), ^uint64(0)}

func faceCoords(axis vec.Axis, u, v, depth int) (x, y, z int) {
	switch axis {
	case vec.AxisY:
		return u, depth, v
	case vec.AxisZ:
		return u, v, depth
	default:
		return depth, v, u
	}
}

func (f *Face) set(u, v int) {
	i := u + v*Resolution
	f[i>>6] |= 1 << (i & 63)
}

// Get сообщает, покрыта ли ячейка (u, v)
func (f Face) Get(u, v int) bool {
	if u < 0 || v < 0 || u >= Resolution || v >= Resolution {
		return false
	}
	i := u + v*Resolution
	return f[i>>6]&(1<<(i&63)) != 0
}

// IsFull возвращает true, если грань покрыта полностью
func (f Face) IsFull() bool { return f == fullFace }

// IsEmpty возвращает true для пустой грани
func (f Face) IsEmpty() bool { return f == Face{} }

// Covers проверяет, что f покрывает все ячейки other
func (f Face) Covers(other Face) bool {
	for i := range f {
		if other[i]&^f[i] != 0 {
			return false
		}
	}
	return true
}

// Or объединяет две грани
func (f Face) Or(other Face) Face {
	for i := range f {
		f[i] |= other[i]
	}
	return f
}

// Area количество покрытых ячеек
func (f Face) Area() int {
	n := 0
	for _, w := range f {
		n += bits.OnesCount64(w)
	}
	return n
}

// FaceShape возвращает слой формы, прилегающий к грани dir.
// Ячейки, не касающиеся границы блока, в грань не попадают.
func FaceShape(s Shape, dir vec.Direction) Face {
	depth := 0
	if dir.Positive() {
		depth = Resolution - 1
	}
	axis := dir.Axis()
	if axis == vec.AxisY {
		// слой по y уже лежит в памяти как 4 подряд идущих слова
		var f Face
		copy(f[:], s.bits[depth*4:depth*4+4])
		return f
	}
	var f Face
	for v := 0; v < Resolution; v++ {
		for u := 0; u < Resolution; u++ {
			x, y, z := faceCoords(axis, u, v, depth)
			if s.Contains(x, y, z) {
				f.set(u, v)
			}
		}
	}
	return f
}

// Project проецирует всю форму вдоль оси
func Project(s Shape, axis vec.Axis) Face {
	var f Face
	for v := 0; v < Resolution; v++ {
		for u := 0; u < Resolution; u++ {
			for d := 0; d < Resolution; d++ {
				x, y, z := faceCoords(axis, u, v, d)
				if s.Contains(x, y, z) {
					f.set(u, v)
					break
				}
			}
		}
	}
	return f
}

// IsFaceFull проверяет, закрывает ли форма грань dir целиком
func IsFaceFull(s Shape, dir vec.Direction) bool {
	return FaceShape(s, dir).IsFull()
}

// FaceOccludes сообщает, закрыта ли общая грань двух соседних блоков:
// a смотрит на b в направлении dir, вместе их слои должны покрыть грань.
func FaceOccludes(a, b Shape, dir vec.Direction) bool {
	if a.IsFull() || b.IsFull() {
		return true
	}
	return FaceShape(a, dir).Or(FaceShape(b, dir.Opposite())).IsFull()
}
