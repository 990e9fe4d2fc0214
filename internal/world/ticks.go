package world

import (
	"time"
)

// TickStats итог одного игрового тика
type TickStats struct {
	GameTime     int64
	BlockTicks   int
	FluidTicks   int
	Discarded    int
	RandomTicks  int
	PendingTicks int
}

// Tick продвигает игровое время на один тик: выполняет наступившие тики
// блоков, затем тики жидкостей, затем случайные тики загруженных чанков.
// Тик, цель которого больше не совпадает с блоком или жидкостью в позиции,
// молча отбрасывается.
func (w *World) Tick() TickStats {
	start := time.Now()
	w.gameTime++
	w.blockTicks.SetTime(w.gameTime)
	w.fluidTicks.SetTime(w.gameTime)

	stats := TickStats{GameTime: w.gameTime}

	for e := range w.blockTicks.PollDue(w.gameTime) {
		w.touchTicks(e.Pos)
		s := w.Get(e.Pos)
		if s.Type().ID() != e.Target {
			stats.Discarded++
			w.metrics.TicksDiscarded.WithLabelValues(kindBlock).Inc()
			continue
		}
		s.Tick(w, e.Pos, w.rnd)
		stats.BlockTicks++
	}
	w.metrics.TicksExecuted.WithLabelValues(kindBlock).Add(float64(stats.BlockTicks))

	for e := range w.fluidTicks.PollDue(w.gameTime) {
		w.touchTicks(e.Pos)
		fs := w.FluidState(e.Pos)
		f := w.reg.Fluid(e.Target)
		if fs.Fluid != e.Target || f == nil || f.Tick == nil {
			stats.Discarded++
			w.metrics.TicksDiscarded.WithLabelValues(kindFluid).Inc()
			continue
		}
		f.Tick(w, e.Pos, fs, w.rnd)
		stats.FluidTicks++
	}
	w.metrics.TicksExecuted.WithLabelValues(kindFluid).Add(float64(stats.FluidTicks))

	stats.RandomTicks = w.randomTicks()
	stats.PendingTicks = w.blockTicks.Len() + w.fluidTicks.Len()
	w.updatePendingGauge()
	w.metrics.TickDuration.Observe(time.Since(start).Seconds())
	return stats
}

// randomTicks выбирает RandomTickSpeed случайных позиций в каждом
// непустом чанке. Чанки обходятся в отсортированном порядке, поэтому
// при одинаковом сиде последовательность одинакова.
func (w *World) randomTicks() int {
	speed := w.cfg.RandomTickSpeed
	if speed <= 0 {
		return 0
	}
	n := 0
	for _, coords := range w.LoadedChunks() {
		c, ok := w.chunks[coords]
		if !ok || c.IsEmpty() {
			continue
		}
		origin := c.Origin()
		for i := 0; i < speed; i++ {
			local := localFromIndex(w.rnd.Intn(ChunkVolume))
			pos := origin.Add(local)
			if !w.inRange(pos) {
				continue
			}
			s := w.Get(pos)
			if !s.Type().RandomTicks {
				continue
			}
			s.RandomTick(w, pos, w.rnd)
			n++
		}
	}
	return n
}

func (w *World) updatePendingGauge() {
	w.metrics.TicksPending.WithLabelValues(kindBlock).Set(float64(w.blockTicks.Len()))
	w.metrics.TicksPending.WithLabelValues(kindFluid).Set(float64(w.fluidTicks.Len()))
}

// RunTicks выполняет n игровых тиков подряд
func (w *World) RunTicks(n int) {
	for i := 0; i < n; i++ {
		w.Tick()
	}
}
