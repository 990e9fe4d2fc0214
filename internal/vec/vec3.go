package vec

import "fmt"

// Vec3 представляет трехмерный вектор с целочисленными координатами.
// Используется как координата блока в мире; сравним и пригоден как ключ карты.
type Vec3 struct {
	X int `json:"x"`
	Y int `json:"y"`
	Z int `json:"z"`
}

// Add складывает два вектора
func (v Vec3) Add(other Vec3) Vec3 {
	return Vec3{
		X: v.X + other.X,
		Y: v.Y + other.Y,
		Z: v.Z + other.Z,
	}
}

// Sub вычитает вектор
func (v Vec3) Sub(other Vec3) Vec3 {
	return Vec3{
		X: v.X - other.X,
		Y: v.Y - other.Y,
		Z: v.Z - other.Z,
	}
}

// Offset возвращает соседнюю координату в указанном направлении
func (v Vec3) Offset(d Direction) Vec3 {
	return v.Add(d.Offset())
}

// Above возвращает координату над блоком
func (v Vec3) Above() Vec3 { return v.Offset(Up) }

// Below возвращает координату под блоком
func (v Vec3) Below() Vec3 { return v.Offset(Down) }

// Neighbors возвращает шесть соседей в каноническом порядке направлений
func (v Vec3) Neighbors() [6]Vec3 {
	var out [6]Vec3
	for i, d := range Directions {
		out[i] = v.Offset(d)
	}
	return out
}

// ToChunkCoords преобразует координаты блока в координаты чанка 16x16x16
func (v Vec3) ToChunkCoords() Vec3 {
	return Vec3{X: v.X >> 4, Y: v.Y >> 4, Z: v.Z >> 4} // Деление на 16
}

// LocalInChunk возвращает локальные координаты внутри чанка
func (v Vec3) LocalInChunk() Vec3 {
	return Vec3{X: v.X & 0xF, Y: v.Y & 0xF, Z: v.Z & 0xF} // Модуль 16
}

// ChunkOrigin возвращает координату блока в углу чанка (v - координаты чанка)
func (v Vec3) ChunkOrigin() Vec3 {
	return Vec3{X: v.X << 4, Y: v.Y << 4, Z: v.Z << 4}
}

// DistanceSq возвращает квадрат расстояния до другого вектора
func (v Vec3) DistanceSq(other Vec3) int {
	dx := v.X - other.X
	dy := v.Y - other.Y
	dz := v.Z - other.Z
	return dx*dx + dy*dy + dz*dz
}

// Less задаёт детерминированный порядок (Y, Z, X) для сортировки координат
func (v Vec3) Less(other Vec3) bool {
	if v.Y != other.Y {
		return v.Y < other.Y
	}
	if v.Z != other.Z {
		return v.Z < other.Z
	}
	return v.X < other.X
}

func (v Vec3) String() string {
	return fmt.Sprintf("(%d,%d,%d)", v.X, v.Y, v.Z)
}
