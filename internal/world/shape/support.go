package shape

import "github.com/annel0/blockworld/internal/vec"

// SupportType вид опоры, который блок требует от грани соседа
type SupportType uint8

const (
	// SupportFull грань должна быть закрыта полностью
	SupportFull SupportType = iota
	// SupportCenter достаточно центральной колонны 2x2
	SupportCenter
	// SupportRigid грань должна содержать рамку шириной 2 ячейки
	SupportRigid
)

var (
	centerSupport = Column(2, 0, 10)
	rigidSupport  = Join(Block(), Column(12, 0, 16), OnlyFirst)
)

func (t SupportType) shape() Shape {
	switch t {
	case SupportCenter:
		return centerSupport
	case SupportRigid:
		return rigidSupport
	default:
		return Block()
	}
}

// IsFaceSturdy проверяет, может ли грань dir формы s служить опорой типа t
func IsFaceSturdy(s Shape, dir vec.Direction, t SupportType) bool {
	required := Project(t.shape(), dir.Axis())
	return FaceShape(s, dir).Covers(required)
}

func (t SupportType) String() string {
	switch t {
	case SupportCenter:
		return "center"
	case SupportRigid:
		return "rigid"
	default:
		return "full"
	}
}
