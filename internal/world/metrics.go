package world

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics Prometheus-метрики мира.
//
// Метрики:
// * blockworld_neighbor_updates_total: посещения соседей распространителем
// * blockworld_block_changes_total: успешные изменения блоков
// * blockworld_updates_dropped_total{reason}: отброшенные обновления (depth/budget)
// * blockworld_ticks_scheduled_total{kind}, _executed_total{kind}, _discarded_total{kind}
// * blockworld_ticks_pending{kind}: gauge
// * blockworld_chunks_loaded: gauge
// * blockworld_chunk_loads_total{source}, blockworld_chunk_saves_total
// * blockworld_tick_duration_seconds: histogram
type Metrics struct {
	NeighborUpdates prometheus.Counter
	BlockChanges    prometheus.Counter
	UpdatesDropped  *prometheus.CounterVec
	TicksScheduled  *prometheus.CounterVec
	TicksExecuted   *prometheus.CounterVec
	TicksDiscarded  *prometheus.CounterVec
	TicksPending    *prometheus.GaugeVec
	ChunksLoaded    prometheus.Gauge
	ChunkLoads      *prometheus.CounterVec
	ChunkSaves      prometheus.Counter
	TickDuration    prometheus.Histogram
}

// Метки типов тиков
const (
	kindBlock = "block"
	kindFluid = "fluid"
)

// NewMetrics создаёт метрики и регистрирует их в reg.
// При reg == nil метрики работают, но никуда не экспортируются.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	const ns = "blockworld"
	m := &Metrics{
		NeighborUpdates: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: ns,
			Name:      "neighbor_updates_total",
			Help:      "Посещения соседей при распространении обновлений.",
		}),
		BlockChanges: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: ns,
			Name:      "block_changes_total",
			Help:      "Успешные изменения состояний блоков.",
		}),
		UpdatesDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns,
			Name:      "updates_dropped_total",
			Help:      "Обновления, отброшенные ограничением глубины или бюджета.",
		}, []string{"reason"}),
		TicksScheduled: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns,
			Name:      "ticks_scheduled_total",
			Help:      "Запланированные тики.",
		}, []string{"kind"}),
		TicksExecuted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns,
			Name:      "ticks_executed_total",
			Help:      "Выполненные тики.",
		}, []string{"kind"}),
		TicksDiscarded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns,
			Name:      "ticks_discarded_total",
			Help:      "Тики, цель которых к моменту срабатывания сменилась.",
		}, []string{"kind"}),
		TicksPending: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: ns,
			Name:      "ticks_pending",
			Help:      "Тики в очереди.",
		}, []string{"kind"}),
		ChunksLoaded: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: ns,
			Name:      "chunks_loaded",
			Help:      "Загруженные чанки.",
		}),
		ChunkLoads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns,
			Name:      "chunk_loads_total",
			Help:      "Загрузки чанков по источнику (storage/generator/empty).",
		}, []string{"source"}),
		ChunkSaves: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: ns,
			Name:      "chunk_saves_total",
			Help:      "Сохранения чанков.",
		}),
		TickDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: ns,
			Name:      "tick_duration_seconds",
			Help:      "Длительность игрового тика.",
			Buckets:   []float64{0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1},
		}),
	}
	if reg != nil {
		reg.MustRegister(
			m.NeighborUpdates, m.BlockChanges, m.UpdatesDropped,
			m.TicksScheduled, m.TicksExecuted, m.TicksDiscarded, m.TicksPending,
			m.ChunksLoaded, m.ChunkLoads, m.ChunkSaves, m.TickDuration,
		)
	}
	return m
}
