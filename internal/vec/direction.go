package vec

import "strings"

// Direction описывает одну из шести граней блока.
// Порядок констант канонический и используется при обходе соседей:
// вниз, вверх, север, юг, запад, восток.
type Direction uint8

const (
	Down Direction = iota
	Up
	North
	South
	West
	East
)

// Axis определяет ось координат
type Axis uint8

const (
	AxisX Axis = iota
	AxisY
	AxisZ
)

// Directions перечисляет направления в каноническом порядке
var Directions = [6]Direction{Down, Up, North, South, West, East}

// Horizontal перечисляет горизонтальные направления
var Horizontal = [4]Direction{North, South, West, East}

var directionOffsets = [6]Vec3{
	Down:  {X: 0, Y: -1, Z: 0},
	Up:    {X: 0, Y: 1, Z: 0},
	North: {X: 0, Y: 0, Z: -1},
	South: {X: 0, Y: 0, Z: 1},
	West:  {X: -1, Y: 0, Z: 0},
	East:  {X: 1, Y: 0, Z: 0},
}

var directionNames = [6]string{"down", "up", "north", "south", "west", "east"}

// Offset возвращает единичный вектор направления
func (d Direction) Offset() Vec3 {
	return directionOffsets[d]
}

// Opposite возвращает противоположное направление
func (d Direction) Opposite() Direction {
	return d ^ 1
}

// Axis возвращает ось направления
func (d Direction) Axis() Axis {
	switch d {
	case Down, Up:
		return AxisY
	case North, South:
		return AxisZ
	default:
		return AxisX
	}
}

// Positive возвращает true для направлений вдоль положительной полуоси
func (d Direction) Positive() bool {
	return d == Up || d == South || d == East
}

// IsHorizontal возвращает true для сторон света
func (d Direction) IsHorizontal() bool {
	return d.Axis() != AxisY
}

func (d Direction) String() string {
	if int(d) < len(directionNames) {
		return directionNames[d]
	}
	return "unknown"
}

// ParseDirection разбирает имя направления ("up", "north"...)
func ParseDirection(name string) (Direction, bool) {
	name = strings.ToLower(strings.TrimSpace(name))
	for i, n := range directionNames {
		if n == name {
			return Direction(i), true
		}
	}
	return 0, false
}
