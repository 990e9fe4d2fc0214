package implementations

import (
	"fmt"

	"github.com/annel0/blockworld/internal/world/block"
)

// Имена блоков стандартного набора
const (
	StoneName      = "stone"
	DirtName       = "dirt"
	GrassName      = "grass"
	GlassName      = "glass"
	SandName       = "sand"
	TorchName      = "torch"
	LanternName    = "lantern"
	IronBarsName   = "iron_bars"
	BottomSlabName = "bottom_slab"
	WaterName      = "water"
	LampName       = "lamp"
)

// Blocks зарегистрированные типы стандартного набора
type Blocks struct {
	Stone      *block.Type
	Dirt       *block.Type
	Grass      *block.Type
	Glass      *block.Type
	Sand       *block.Type
	Torch      *block.Type
	Lantern    *block.Type
	IronBars   *block.Type
	BottomSlab *block.Type
	Water      *block.Type
	Lamp       *block.Type
}

// RegisterDefaults регистрирует стандартный набор блоков и жидкость воды.
// Реестр не замораживается: вызывающий код может добавить свои типы.
func RegisterDefaults(reg *block.Registry) (*Blocks, error) {
	b := &Blocks{}
	var err error

	register := func(dst **block.Type, t block.Type) {
		if err != nil {
			return
		}
		*dst, err = reg.Register(t)
	}

	// Базовые блоки
	register(&b.Stone, stoneType())
	register(&b.Dirt, dirtType())
	register(&b.Glass, glassType())
	register(&b.BottomSlab, bottomSlabType())
	if err == nil {
		register(&b.Grass, grassType(b.Dirt))
	}

	// Блоки с опорой и связностью
	register(&b.Sand, sandType())
	register(&b.Torch, torchType())
	register(&b.Lantern, lanternType())
	register(&b.IronBars, ironBarsType())

	// Жидкости
	register(&b.Water, waterType())
	if err == nil {
		err = reg.RegisterFluid(waterFluid())
	}

	// Сигнальные блоки
	if err == nil {
		register(&b.Lamp, lampType(b.Torch))
	}

	if err != nil {
		return nil, fmt.Errorf("ошибка регистрации стандартных блоков: %w", err)
	}
	return b, nil
}

// NewDefaultRegistry создаёт замороженный реестр со стандартным набором
func NewDefaultRegistry() (*block.Registry, *Blocks, error) {
	reg := block.NewRegistry()
	b, err := RegisterDefaults(reg)
	if err != nil {
		return nil, nil, err
	}
	reg.Freeze()
	return reg, b, nil
}
