package sim

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/annel0/blockworld/internal/logging"
	"github.com/annel0/blockworld/internal/observability"
	"github.com/annel0/blockworld/internal/world"
)

// ErrStopped симуляция остановлена
var ErrStopped = errors.New("симуляция остановлена")

// Options параметры цикла симуляции
type Options struct {
	TickInterval     time.Duration // 0: 50ms (20 тиков в секунду)
	AutosaveInterval time.Duration // 0: без автосохранения
	Tracer           trace.Tracer  // nil: глобальный трассировщик
	Logger           *logging.Logger
	Paused           bool // Стартовать на паузе; тики только через Step
}

// command задача, выполняемая в потоке симуляции
type command struct {
	ctx  context.Context
	fn   func(*world.World) error
	done chan error
}

// Simulation владеет миром: все изменения выполняются в её горутине,
// остальные горутины передают задачи через Do.
type Simulation struct {
	w        *world.World
	interval time.Duration
	autosave time.Duration
	tracer   trace.Tracer
	logger   *logging.Logger

	cmds     chan command
	stop     chan struct{}
	stopOnce sync.Once
	done     chan struct{}
	paused   atomic.Bool

	statsMu sync.RWMutex
	stats   world.TickStats
}

// New создаёт симуляцию для мира. Цикл запускается Run.
func New(w *world.World, opts Options) *Simulation {
	if opts.TickInterval <= 0 {
		opts.TickInterval = 50 * time.Millisecond
	}
	if opts.Tracer == nil {
		opts.Tracer = observability.Tracer()
	}
	if opts.Logger == nil {
		opts.Logger = logging.GetSimLogger()
	}
	s := &Simulation{
		w:        w,
		interval: opts.TickInterval,
		autosave: opts.AutosaveInterval,
		tracer:   opts.Tracer,
		logger:   opts.Logger,
		cmds:     make(chan command),
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
	s.paused.Store(opts.Paused)
	return s
}

// Run выполняет цикл до отмены ctx или Stop. Перед выходом мир сохраняется.
func (s *Simulation) Run(ctx context.Context) error {
	defer close(s.done)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	var autosave <-chan time.Time
	if s.autosave > 0 {
		t := time.NewTicker(s.autosave)
		defer t.Stop()
		autosave = t.C
	}

	s.logger.Info("симуляция запущена: тик %v, автосохранение %v", s.interval, s.autosave)

	for {
		select {
		case <-ctx.Done():
			s.shutdown()
			return ctx.Err()
		case <-s.stop:
			s.shutdown()
			return nil
		case cmd := <-s.cmds:
			cmd.done <- s.execute(cmd)
		case <-ticker.C:
			if !s.paused.Load() {
				s.step(ctx)
			}
		case <-autosave:
			s.save(ctx)
		}
	}
}

// step выполняет один игровой тик в отдельном span
func (s *Simulation) step(ctx context.Context) world.TickStats {
	_, span := s.tracer.Start(ctx, "sim.tick")
	defer span.End()

	stats := s.w.Tick()
	span.SetAttributes(
		attribute.Int64("game_time", stats.GameTime),
		attribute.Int("block_ticks", stats.BlockTicks),
		attribute.Int("fluid_ticks", stats.FluidTicks),
		attribute.Int("discarded", stats.Discarded),
		attribute.Int("random_ticks", stats.RandomTicks),
		attribute.Int("pending", stats.PendingTicks),
	)

	s.statsMu.Lock()
	s.stats = stats
	s.statsMu.Unlock()
	return stats
}

func (s *Simulation) save(ctx context.Context) {
	ctx, span := s.tracer.Start(ctx, "sim.autosave")
	defer span.End()

	start := time.Now()
	if err := s.w.SaveAll(ctx); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		s.logger.Error("ошибка автосохранения: %v", err)
		return
	}
	s.logger.Debug("автосохранение за %v", time.Since(start))
}

func (s *Simulation) shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	s.save(ctx)
	s.logger.Info("симуляция остановлена на тике %d", s.w.GameTime())
}

// execute выполняет задачу; паника задачи превращается в ошибку
func (s *Simulation) execute(cmd command) (err error) {
	if cmd.ctx.Err() != nil {
		return cmd.ctx.Err()
	}
	_, span := s.tracer.Start(cmd.ctx, "sim.command")
	defer span.End()
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("паника в задаче симуляции: %v", r)
			s.logger.Error("%v", err)
		}
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
	}()
	return cmd.fn(s.w)
}

// Do выполняет fn в потоке симуляции и дожидается результата
func (s *Simulation) Do(ctx context.Context, fn func(*world.World) error) error {
	cmd := command{ctx: ctx, fn: fn, done: make(chan error, 1)}
	select {
	case s.cmds <- cmd:
	case <-ctx.Done():
		return ctx.Err()
	case <-s.done:
		return ErrStopped
	}
	select {
	case err := <-cmd.done:
		return err
	case <-s.done:
		return ErrStopped
	}
}

// Step выполняет n тиков вне расписания (в том числе на паузе)
func (s *Simulation) Step(ctx context.Context, n int) (world.TickStats, error) {
	var last world.TickStats
	err := s.Do(ctx, func(*world.World) error {
		for i := 0; i < n; i++ {
			last = s.step(ctx)
		}
		return nil
	})
	return last, err
}

// Pause останавливает плановые тики
func (s *Simulation) Pause() { s.paused.Store(true) }

// Resume возобновляет плановые тики
func (s *Simulation) Resume() { s.paused.Store(false) }

// Paused на паузе ли симуляция
func (s *Simulation) Paused() bool { return s.paused.Load() }

// Stats итог последнего тика
func (s *Simulation) Stats() world.TickStats {
	s.statsMu.RLock()
	defer s.statsMu.RUnlock()
	return s.stats
}

// Stop завершает Run и дожидается выхода
func (s *Simulation) Stop() {
	s.stopOnce.Do(func() { close(s.stop) })
	<-s.done
}

// Done закрывается после выхода из Run
func (s *Simulation) Done() <-chan struct{} { return s.done }
