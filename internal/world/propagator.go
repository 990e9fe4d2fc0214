package world

import (
	"github.com/annel0/blockworld/internal/vec"
	"github.com/annel0/blockworld/internal/world/block"
)

// update элемент фронта распространения: позиция, состояние которой изменилось
type update struct {
	pos    vec.Vec3
	source *block.Type
	flags  block.UpdateFlags
	depth  int
}

// propagator обходит соседей изменённых позиций через явную очередь (фронт)
// вместо рекурсии. Set, вызванный во время прохода, только добавляет элемент
// во фронт; внешний Set разбирает фронт до конца перед возвратом.
type propagator struct {
	world    *World
	frontier []update
	head     int
	active   bool
	depth    int // глубина обрабатываемого элемента
	visits   int // посещения соседей в текущем проходе
}

// childDepth глубина для Set, вызванного сейчас
func (p *propagator) childDepth() int {
	if !p.active {
		return 0
	}
	return p.depth + 1
}

// acquire открывает проход распространения, если он ещё не открыт.
// Вернувший true владеет проходом и обязан вызвать release.
func (p *propagator) acquire() bool {
	if p.active {
		return false
	}
	p.active = true
	p.visits = 0
	return true
}

// release разбирает фронт и закрывает проход
func (p *propagator) release() {
	defer func() {
		p.active = false
		p.depth = 0
		clear(p.frontier)
		p.frontier = p.frontier[:0]
		p.head = 0
	}()
	p.drain()
}

func (p *propagator) enqueue(u update) {
	p.frontier = append(p.frontier, u)
}

// drain разбирает фронт в порядке FIFO. Элементы глубже MaxUpdateDepth
// отбрасываются; после MaxUpdatesPerPass посещений остаток фронта
// отбрасывается целиком.
func (p *propagator) drain() {
	w := p.world
	for p.head < len(p.frontier) {
		u := p.frontier[p.head]
		p.frontier[p.head] = update{}
		p.head++

		if u.depth > w.cfg.MaxUpdateDepth {
			w.metrics.UpdatesDropped.WithLabelValues("depth").Inc()
			w.logger.Debug("обновление %v отброшено: глубина %d > %d", u.pos, u.depth, w.cfg.MaxUpdateDepth)
			continue
		}
		p.depth = u.depth

		if !p.process(u) {
			rest := len(p.frontier) - p.head + 1
			w.metrics.UpdatesDropped.WithLabelValues("budget").Add(float64(rest))
			w.logger.Debug("проход распространения прерван на %v: исчерпан бюджет %d, отброшено %d",
				u.pos, w.cfg.MaxUpdatesPerPass, rest)
			return
		}
	}
}

// visit учитывает одно посещение соседа; false если бюджет исчерпан
func (p *propagator) visit() bool {
	if p.visits >= p.world.cfg.MaxUpdatesPerPass {
		return false
	}
	p.visits++
	p.world.metrics.NeighborUpdates.Inc()
	return true
}

// process обрабатывает один элемент фронта: сначала пересчёт форм соседей,
// затем уведомления NeighborChanged. Возвращает false при исчерпании бюджета.
func (p *propagator) process(u update) bool {
	w := p.world
	void := w.reg.VoidAir()

	if !u.flags.Has(block.SkipNeighborShapeUpdates) {
		view := shapeView{w}
		for _, dir := range vec.Directions {
			if !p.visit() {
				return false
			}
			n := u.pos.Offset(dir)
			current := w.Get(n)
			if current == void {
				continue
			}
			// Состояние в C берётся текущее: оно могло смениться после постановки в очередь.
			source := w.Get(u.pos)
			next := current.UpdateShape(view, n, dir.Opposite(), u.pos, source, w.rnd)

			destroyed := false
			if !next.IsAir() && !next.CanSurvive(w, n) {
				next = w.reg.Air()
				destroyed = true
			}
			if next == current {
				continue
			}
			w.setBlock(n, next, u.flags, u.depth+1, destroyed)
		}
	}

	for _, dir := range vec.Directions {
		if !p.visit() {
			return false
		}
		n := u.pos.Offset(dir)
		current := w.Get(n)
		if current == void || current.IsAir() {
			continue
		}
		current.NeighborChanged(w, n, u.source, u.pos)
	}
	return true
}

// shapeView ограничивает доступ UpdateShape чтением и планированием тиков
type shapeView struct {
	w *World
}

func (v shapeView) Get(pos vec.Vec3) *block.State            { return v.w.Get(pos) }
func (v shapeView) FluidState(pos vec.Vec3) block.FluidState { return v.w.FluidState(pos) }
func (v shapeView) IsLoaded(pos vec.Vec3) bool               { return v.w.IsLoaded(pos) }
func (v shapeView) Registry() *block.Registry                { return v.w.reg }
func (v shapeView) GameTime() int64                          { return v.w.gameTime }

func (v shapeView) ScheduleBlockTick(pos vec.Vec3, t *block.Type, delay int) {
	v.w.ScheduleBlockTick(pos, t, delay)
}

func (v shapeView) ScheduleFluidTick(pos vec.Vec3, f block.FluidID, delay int) {
	v.w.ScheduleFluidTick(pos, f, delay)
}

func (v shapeView) HasBlockTick(pos vec.Vec3, t *block.Type) bool {
	return v.w.HasBlockTick(pos, t)
}

func (v shapeView) HasFluidTick(pos vec.Vec3, f block.FluidID) bool {
	return v.w.HasFluidTick(pos, f)
}
