// Package shape реализует геометрию блока на сетке 1/16.
//
// Форма хранится как битовая маска 16x16x16 ячеек. Это значение, а не
// указатель: формы сравниваются оператором == и годятся как ключи карты.
package shape

import (
	"math/bits"

	"github.com/annel0/blockworld/internal/vec"
)

// Resolution количество ячеек сетки на ребро блока
const Resolution = 16

const words = Resolution * Resolution * Resolution / 64

// Shape неизменяемый объём внутри одного блока
type Shape struct {
	bits [words]uint64
}

// Cuboid прямоугольный параллелепипед в единицах сетки, Max не включается
type Cuboid struct {
	MinX, MinY, MinZ int
	MaxX, MaxY, MaxZ int
}

// Op операция поячеечного объединения двух форм
type Op uint8

const (
	And Op = iota
	Or
	OnlyFirst
	OnlySecond
	NotSame
)

func (op Op) apply(a, b uint64) uint64 {
	switch op {
	case And:
		return a & b
	case Or:
		return a | b
	case OnlyFirst:
		return a &^ b
	case OnlySecond:
		return b &^ a
	case NotSame:
		return a ^ b
	}
	return 0
}

func (op Op) String() string {
	switch op {
	case And:
		return "and"
	case Or:
		return "or"
	case OnlyFirst:
		return "only_first"
	case OnlySecond:
		return "only_second"
	case NotSame:
		return "not_same"
	}
	return "unknown"
}

// index: x меняется быстрее всего, затем z, затем y.
// Одно 64-битное слово хранит четыре ряда по x.
func index(x, y, z int) int {
	return x + z*Resolution + y*Resolution*Resolution
}

var (
	empty Shape
	block = Box(0, 0, 0, 16, 16, 16)
)

// Empty возвращает пустую форму
func Empty() Shape { return empty }

// Block возвращает полный куб
func Block() Shape { return block }

// Box строит форму из одного бокса. Координаты зажимаются в [0,16].
func Box(minX, minY, minZ, maxX, maxY, maxZ int) Shape {
	minX, maxX = clamp(minX), clamp(maxX)
	minY, maxY = clamp(minY), clamp(maxY)
	minZ, maxZ = clamp(minZ), clamp(maxZ)

	var s Shape
	if minX >= maxX || minY >= maxY || minZ >= maxZ {
		return s
	}
	row := (uint64(1)<<(maxX-minX) - 1) << minX
	for y := minY; y < maxY; y++ {
		for z := minZ; z < maxZ; z++ {
			i := index(0, y, z)
			s.bits[i>>6] |= row << (i & 63)
		}
	}
	return s
}

// FromCuboid строит форму из Cuboid
func FromCuboid(b Cuboid) Shape {
	return Box(b.MinX, b.MinY, b.MinZ, b.MaxX, b.MaxY, b.MaxZ)
}

// Column вертикальная колонна шириной size, отцентрированная по x и z
func Column(size, minY, maxY int) Shape {
	lo := (Resolution - size) / 2
	return Box(lo, minY, lo, lo+size, maxY, lo+size)
}

func clamp(v int) int {
	if v < 0 {
		return 0
	}
	if v > Resolution {
		return Resolution
	}
	return v
}

// Union объединяет формы
func Union(a Shape, rest ...Shape) Shape {
	for _, b := range rest {
		a = Join(a, b, Or)
	}
	return a
}

// Join применяет операцию к каждой ячейке
func Join(a, b Shape, op Op) Shape {
	var out Shape
	for i := range out.bits {
		out.bits[i] = op.apply(a.bits[i], b.bits[i])
	}
	return out
}

// JoinIsNotEmpty проверяет, что результат Join(a, b, op) не пуст,
// не строя саму форму.
func JoinIsNotEmpty(a, b Shape, op Op) bool {
	for i := range a.bits {
		if op.apply(a.bits[i], b.bits[i]) != 0 {
			return true
		}
	}
	return false
}

// Contains сообщает, занята ли ячейка
func (s Shape) Contains(x, y, z int) bool {
	if x < 0 || y < 0 || z < 0 || x >= Resolution || y >= Resolution || z >= Resolution {
		return false
	}
	i := index(x, y, z)
	return s.bits[i>>6]&(1<<(i&63)) != 0
}

// IsEmpty возвращает true для формы без ячеек
func (s Shape) IsEmpty() bool {
	return s == empty
}

// IsFull возвращает true для полного куба
func (s Shape) IsFull() bool {
	return s == block
}

// Volume количество занятых ячеек
func (s Shape) Volume() int {
	n := 0
	for _, w := range s.bits {
		n += bits.OnesCount64(w)
	}
	return n
}

// Bounds возвращает ограничивающий бокс. ok == false для пустой формы.
func (s Shape) Bounds() (b Cuboid, ok bool) {
	if s.IsEmpty() {
		return Cuboid{}, false
	}
	b = Cuboid{MinX: Resolution, MinY: Resolution, MinZ: Resolution}
	for y := 0; y < Resolution; y++ {
		for z := 0; z < Resolution; z++ {
			for x := 0; x < Resolution; x++ {
				if !s.Contains(x, y, z) {
					continue
				}
				b.MinX, b.MaxX = min(b.MinX, x), max(b.MaxX, x+1)
				b.MinY, b.MaxY = min(b.MinY, y), max(b.MaxY, y+1)
				b.MinZ, b.MaxZ = min(b.MinZ, z), max(b.MaxZ, z+1)
			}
		}
	}
	return b, true
}

// Max возвращает верхнюю границу формы вдоль оси (0 для пустой)
func (s Shape) Max(axis vec.Axis) int {
	b, ok := s.Bounds()
	if !ok {
		return 0
	}
	switch axis {
	case vec.AxisX:
		return b.MaxX
	case vec.AxisY:
		return b.MaxY
	default:
		return b.MaxZ
	}
}

// Min возвращает нижнюю границу формы вдоль оси (0 для пустой)
func (s Shape) Min(axis vec.Axis) int {
	b, ok := s.Bounds()
	if !ok {
		return 0
	}
	switch axis {
	case vec.AxisX:
		return b.MinX
	case vec.AxisY:
		return b.MinY
	default:
		return b.MinZ
	}
}

// Boxes жадно раскладывает форму на непересекающиеся боксы.
// Обход идёт по y, z, x, поэтому результат детерминирован.
func (s Shape) Boxes() []Cuboid {
	if s.IsEmpty() {
		return nil
	}
	var boxes []Cuboid
	rest := s
	for y := 0; y < Resolution; y++ {
		for z := 0; z < Resolution; z++ {
			for x := 0; x < Resolution; x++ {
				if !rest.Contains(x, y, z) {
					continue
				}
				b := rest.grow(x, y, z)
				rest = Join(rest, FromCuboid(b), OnlyFirst)
				boxes = append(boxes, b)
			}
		}
	}
	return boxes
}

// grow расширяет бокс от ячейки сначала по x, затем по z, затем по y
func (s Shape) grow(x, y, z int) Cuboid {
	maxX := x + 1
	for maxX < Resolution && s.Contains(maxX, y, z) {
		maxX++
	}
	maxZ := z + 1
	for maxZ < Resolution && s.filled(x, maxX, y, y+1, maxZ, maxZ+1) {
		maxZ++
	}
	maxY := y + 1
	for maxY < Resolution && s.filled(x, maxX, maxY, maxY+1, z, maxZ) {
		maxY++
	}
	return Cuboid{MinX: x, MinY: y, MinZ: z, MaxX: maxX, MaxY: maxY, MaxZ: maxZ}
}

func (s Shape) filled(minX, maxX, minY, maxY, minZ, maxZ int) bool {
	for y := minY; y < maxY; y++ {
		for z := minZ; z < maxZ; z++ {
			for x := minX; x < maxX; x++ {
				if !s.Contains(x, y, z) {
					return false
				}
			}
		}
	}
	return true
}
