package world

import (
	"math"

	"github.com/annel0/blockworld/internal/util"
	"github.com/annel0/blockworld/internal/vec"
	"github.com/annel0/blockworld/internal/world/block"
)

// Generator заполняет новый чанк, которого нет в хранилище.
// Генерация детерминирована координатами чанка и сидом.
type Generator interface {
	Generate(c *Chunk, set func(local vec.Vec3, s *block.State))
}

// GeneratorFunc адаптер функции к Generator
type GeneratorFunc func(c *Chunk, set func(local vec.Vec3, s *block.State))

// Generate вызывает функцию
func (f GeneratorFunc) Generate(c *Chunk, set func(local vec.Vec3, s *block.State)) { f(c, set) }

// FlatGenerator плоский мир: слои снизу вверх начиная с высоты BaseY
type FlatGenerator struct {
	BaseY  int
	Layers []*block.State
}

// Generate заполняет чанк слоями
func (g FlatGenerator) Generate(c *Chunk, set func(local vec.Vec3, s *block.State)) {
	origin := c.Origin()
	for ly := 0; ly < ChunkSize; ly++ {
		i := origin.Y + ly - g.BaseY
		if i < 0 || i >= len(g.Layers) || g.Layers[i] == nil {
			continue
		}
		for lz := 0; lz < ChunkSize; lz++ {
			for lx := 0; lx < ChunkSize; lx++ {
				set(vec.Vec3{X: lx, Y: ly, Z: lz}, g.Layers[i])
			}
		}
	}
}

// TerrainGenerator ландшафт по карте высот из шума Перлина:
// камень, слой земли, трава сверху, песок и вода ниже уровня моря.
type TerrainGenerator struct {
	noise *util.Noise

	NoiseScale float64 // Масштаб шума (сглаженность ландшафта)
	BaseHeight int     // Средняя высота поверхности
	Amplitude  int     // Перепад высот
	SeaLevel   int     // Уровень воды
	DirtDepth  int     // Толщина слоя земли

	Stone, Dirt, Grass, Sand, Water *block.State
}

// NewTerrainGenerator создаёт генератор ландшафта.
// Блоки берутся из реестра по именам; отсутствующие блоки пропускаются.
func NewTerrainGenerator(seed int64, reg *block.Registry) *TerrainGenerator {
	state := func(name string) *block.State {
		if t, ok := reg.ByName(name); ok {
			return t.DefaultState()
		}
		return nil
	}
	return &TerrainGenerator{
		noise:      util.NewNoise(seed),
		NoiseScale: 0.05,
		BaseHeight: 0,
		Amplitude:  16,
		SeaLevel:   -2,
		DirtDepth:  3,
		Stone:      state("stone"),
		Dirt:       state("dirt"),
		Grass:      state("grass"),
		Sand:       state("sand"),
		Water:      state("water"),
	}
}

// Height возвращает высоту поверхности в колонне (x, z)
func (g *TerrainGenerator) Height(x, z int) int {
	n := g.noise.Noise2D(float64(x)*g.NoiseScale, float64(z)*g.NoiseScale)
	return g.BaseHeight + int(math.Round((n-0.5)*2*float64(g.Amplitude)))
}

// Generate заполняет чанк
func (g *TerrainGenerator) Generate(c *Chunk, set func(local vec.Vec3, s *block.State)) {
	origin := c.Origin()
	for lz := 0; lz < ChunkSize; lz++ {
		for lx := 0; lx < ChunkSize; lx++ {
			height := g.Height(origin.X+lx, origin.Z+lz)
			for ly := 0; ly < ChunkSize; ly++ {
				y := origin.Y + ly
				if s := g.stateAt(y, height); s != nil {
					set(vec.Vec3{X: lx, Y: ly, Z: lz}, s)
				}
			}
		}
	}
}

func (g *TerrainGenerator) stateAt(y, height int) *block.State {
	beach := height <= g.SeaLevel+1
	switch {
	case y > height:
		if y <= g.SeaLevel {
			return g.Water
		}
		return nil
	case y == height && beach:
		return g.Sand
	case y == height:
		return g.Grass
	case y > height-g.DirtDepth:
		if beach {
			return g.Sand
		}
		return g.Dirt
	default:
		return g.Stone
	}
}
