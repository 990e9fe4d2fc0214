package world

import (
	"context"
	"fmt"

	"github.com/annel0/blockworld/internal/vec"
	"github.com/annel0/blockworld/internal/world/block"
	"github.com/annel0/blockworld/internal/world/tick"
)

// ChunkData сохраняемое представление чанка. Состояния записываются
// строками через палитру, поэтому формат не зависит от порядка регистрации
// блоков. Тики хранятся с задержкой относительно момента сохранения.
type ChunkData struct {
	Coords     vec.Vec3             `json:"coords"`
	Palette    []string             `json:"palette"`
	Blocks     []uint16             `json:"blocks,omitempty"` // пусто, если в палитре одно состояние
	BlockTicks []tick.Saved[string] `json:"block_ticks,omitempty"`
	FluidTicks []tick.Saved[string] `json:"fluid_ticks,omitempty"`
	GameTime   int64                `json:"game_time"`
}

// ChunkStore хранилище чанков
type ChunkStore interface {
	// LoadChunk возвращает nil, nil, если чанк не сохранялся.
	LoadChunk(ctx context.Context, coords vec.Vec3) (*ChunkData, error)
	SaveChunk(ctx context.Context, data *ChunkData) error
}

// encodeChunk строит ChunkData из чанка и его тиков
func (w *World) encodeChunk(c *Chunk) *ChunkData {
	data := &ChunkData{Coords: c.Coords, GameTime: w.gameTime}

	index := make(map[block.StateID]uint16)
	blocks := make([]uint16, ChunkVolume)
	for i, id := range c.states {
		p, ok := index[id]
		if !ok {
			p = uint16(len(data.Palette))
			index[id] = p
			s, _ := w.reg.StateByID(id)
			data.Palette = append(data.Palette, s.String())
		}
		blocks[i] = p
	}
	if len(data.Palette) > 1 {
		data.Blocks = blocks
	}

	inChunk := func(pos vec.Vec3) bool { return pos.ToChunkCoords() == c.Coords }
	for _, s := range w.blockTicks.Snapshot(func(e tick.Entry[block.ID]) bool { return inChunk(e.Pos) }) {
		t, _ := w.reg.ByID(s.Target)
		data.BlockTicks = append(data.BlockTicks, tick.Saved[string]{
			Pos: s.Pos, Target: t.Name, Delay: s.Delay, Priority: s.Priority,
		})
	}
	for _, s := range w.fluidTicks.Snapshot(func(e tick.Entry[block.FluidID]) bool { return inChunk(e.Pos) }) {
		data.FluidTicks = append(data.FluidTicks, tick.Saved[string]{
			Pos: s.Pos, Target: s.Target.String(), Delay: s.Delay, Priority: s.Priority,
		})
	}
	return data
}

// decodeChunk восстанавливает чанк. Тики возвращаются отдельно и
// добавляются в очереди только после успешного разбора всего чанка.
func (w *World) decodeChunk(data *ChunkData) (*Chunk, []tick.Saved[block.ID], []tick.Saved[block.FluidID], error) {
	if len(data.Palette) == 0 {
		return nil, nil, nil, fmt.Errorf("чанк %v: пустая палитра", data.Coords)
	}
	palette := make([]block.StateID, len(data.Palette))
	for i, text := range data.Palette {
		s, err := w.reg.ParseState(text)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("чанк %v: %w", data.Coords, err)
		}
		palette[i] = s.ID()
	}

	c := NewChunk(data.Coords)
	switch len(data.Blocks) {
	case 0:
		for i := range c.states {
			c.states[i] = palette[0]
		}
	case ChunkVolume:
		for i, p := range data.Blocks {
			if int(p) >= len(palette) {
				return nil, nil, nil, fmt.Errorf("чанк %v: индекс палитры %d вне диапазона", data.Coords, p)
			}
			c.states[i] = palette[p]
		}
	default:
		return nil, nil, nil, fmt.Errorf("чанк %v: ожидалось %d блоков, получено %d", data.Coords, ChunkVolume, len(data.Blocks))
	}
	c.recount(w.reg.Air().ID())

	var blockTicks []tick.Saved[block.ID]
	for _, s := range data.BlockTicks {
		t, ok := w.reg.ByName(s.Target)
		if !ok {
			w.logger.Warn("чанк %v: тик неизвестного блока %q пропущен", data.Coords, s.Target)
			continue
		}
		blockTicks = append(blockTicks, tick.Saved[block.ID]{Pos: s.Pos, Target: t.ID(), Delay: s.Delay, Priority: s.Priority})
	}
	var fluidTicks []tick.Saved[block.FluidID]
	for _, s := range data.FluidTicks {
		f, ok := block.ParseFluid(s.Target)
		if !ok {
			w.logger.Warn("чанк %v: тик неизвестной жидкости %q пропущен", data.Coords, s.Target)
			continue
		}
		fluidTicks = append(fluidTicks, tick.Saved[block.FluidID]{Pos: s.Pos, Target: f, Delay: s.Delay, Priority: s.Priority})
	}
	return c, blockTicks, fluidTicks, nil
}
