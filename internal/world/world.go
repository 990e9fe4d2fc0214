package world

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"math/rand"
	"sort"

	"github.com/annel0/blockworld/internal/logging"
	"github.com/annel0/blockworld/internal/vec"
	"github.com/annel0/blockworld/internal/world/block"
	"github.com/annel0/blockworld/internal/world/tick"
)

// World хранилище состояний блоков загруженных чанков с очередями тиков
// и распространителем обновлений соседей.
//
// World не потокобезопасен: им владеет один поток симуляции
// (см. пакет sim), все изменения выполняются в нём.
type World struct {
	reg       *block.Registry
	cfg       Config
	chunks    map[vec.Vec3]*Chunk
	store     ChunkStore
	generator Generator
	logger    *logging.Logger
	metrics   *Metrics
	listeners []Listener

	blockTicks *tick.Queue[block.ID]
	fluidTicks *tick.Queue[block.FluidID]
	gameTime   int64
	rnd        *rand.Rand

	prop propagator
}

var _ block.Level = (*World)(nil)

// Option настраивает World при создании
type Option func(*World)

// WithStore задаёт хранилище чанков
func WithStore(store ChunkStore) Option {
	return func(w *World) { w.store = store }
}

// WithGenerator задаёт генератор новых чанков
func WithGenerator(g Generator) Option {
	return func(w *World) { w.generator = g }
}

// WithLogger задаёт логгер
func WithLogger(l *logging.Logger) Option {
	return func(w *World) { w.logger = l }
}

// WithMetrics задаёт метрики
func WithMetrics(m *Metrics) Option {
	return func(w *World) { w.metrics = m }
}

// WithListener подписывает слушателя изменений
func WithListener(l Listener) Option {
	return func(w *World) { w.listeners = append(w.listeners, l) }
}

// New создаёт мир. Реестр замораживается: после запуска мира типы блоков
// не регистрируются.
func New(reg *block.Registry, cfg Config, opts ...Option) *World {
	reg.Freeze()
	cfg = cfg.withDefaults()
	w := &World{
		reg:        reg,
		cfg:        cfg,
		chunks:     make(map[vec.Vec3]*Chunk),
		blockTicks: tick.NewQueue[block.ID](),
		fluidTicks: tick.NewQueue[block.FluidID](),
		rnd:        rand.New(rand.NewSource(cfg.Seed)),
	}
	w.blockTicks.MaxPerDrain = cfg.MaxTicksPerDrain
	w.fluidTicks.MaxPerDrain = cfg.MaxTicksPerDrain
	for _, opt := range opts {
		opt(w)
	}
	if w.logger == nil {
		w.logger = logging.Default()
	}
	if w.metrics == nil {
		w.metrics = NewMetrics(nil)
	}
	w.prop.world = w
	return w
}

// Registry возвращает реестр блоков
func (w *World) Registry() *block.Registry { return w.reg }

// Config возвращает конфигурацию мира
func (w *World) Config() Config { return w.cfg }

// GameTime возвращает текущее игровое время
func (w *World) GameTime() int64 { return w.gameTime }

// SetGameTime восстанавливает игровое время из метаданных мира.
// Вызывается до загрузки чанков: задержки сохранённых тиков отсчитываются от него.
func (w *World) SetGameTime(t int64) {
	w.gameTime = t
	w.blockTicks.SetTime(t)
	w.fluidTicks.SetTime(t)
}

func (w *World) inRange(pos vec.Vec3) bool {
	return pos.Y >= w.cfg.MinY && pos.Y <= w.cfg.MaxY
}

func (w *World) chunkAt(pos vec.Vec3) *Chunk {
	if !w.inRange(pos) {
		return nil
	}
	return w.chunks[pos.ToChunkCoords()]
}

// touchTicks помечает чанк позиции изменённым: его сохранённые тики устарели
func (w *World) touchTicks(pos vec.Vec3) {
	if c := w.chunkAt(pos); c != nil {
		c.MarkChanged()
	}
}

// IsLoaded сообщает, загружен ли чанк с позицией и лежит ли она в границах мира
func (w *World) IsLoaded(pos vec.Vec3) bool {
	return w.chunkAt(pos) != nil
}

// Get возвращает состояние в позиции; void_air для незагруженных координат
func (w *World) Get(pos vec.Vec3) *block.State {
	c := w.chunkAt(pos)
	if c == nil {
		return w.reg.VoidAir()
	}
	s, _ := w.reg.StateByID(c.StateID(pos.LocalInChunk()))
	return s
}

// FluidState возвращает жидкость в позиции
func (w *World) FluidState(pos vec.Vec3) block.FluidState {
	return w.Get(pos).FluidState()
}

// Set устанавливает состояние и возвращает предыдущее.
// Для незагруженных координат ничего не делает и возвращает void_air.
func (w *World) Set(pos vec.Vec3, s *block.State, flags block.UpdateFlags) *block.State {
	return w.setBlock(pos, s, flags, w.prop.childDepth(), false)
}

// setBlock общая реализация Set. depth глубина цепочки распространения,
// destroyed помечает событие как разрушение блока.
func (w *World) setBlock(pos vec.Vec3, s *block.State, flags block.UpdateFlags, depth int, destroyed bool) *block.State {
	c := w.chunkAt(pos)
	if c == nil || s == nil {
		return w.reg.VoidAir()
	}
	local := pos.LocalInChunk()
	old, _ := w.reg.StateByID(c.StateID(local))
	if old == s {
		return old
	}
	c.SetStateID(local, s.ID(), w.reg.Air().ID())
	w.metrics.BlockChanges.Inc()

	if w.prop.acquire() {
		defer w.prop.release()
	}

	// Обработчики могут сами вызывать Set; их вложенность ограничена глубиной.
	if old.Type() != s.Type() && !flags.Has(block.MoveByPiston) {
		if depth <= w.cfg.MaxUpdateDepth {
			saved := w.prop.depth
			w.prop.depth = depth
			old.OnRemove(w, pos, s)
			s.OnPlace(w, pos, old)
			w.prop.depth = saved
		} else {
			w.metrics.UpdatesDropped.WithLabelValues("depth").Inc()
		}
	}

	report := flags.Has(block.NotifyClients) || flags.Has(block.ForceReRender)
	if destroyed && flags.Has(block.SuppressDrops) {
		destroyed = false
	}
	if report || destroyed {
		w.emit(BlockChange{Pos: pos, Old: old, New: s, Flags: flags, Destroyed: destroyed, Tick: w.gameTime})
	}

	if flags.Has(block.NotifyNeighbors) {
		w.prop.enqueue(update{pos: pos, source: s.Type(), flags: flags, depth: depth})
	}
	return old
}

// Place ставит блок типа t так, как это делает игрок: позиция должна быть
// заменяемой, состояние берётся из StateForPlacement и должно выживать.
func (w *World) Place(pos vec.Vec3, t *block.Type, face vec.Direction) (*block.State, bool) {
	if !w.IsLoaded(pos) || !w.Get(pos).IsReplaceable() {
		return nil, false
	}
	s := t.StateForPlacement(block.PlaceContext{Pos: pos, ClickedFace: face, Level: w})
	if s == nil || !s.CanSurvive(w, pos) {
		return nil, false
	}
	w.Set(pos, s, block.UpdateAll)
	return s, true
}

// Destroy разрушает блок, заменяя его воздухом, и сообщает событие Destroyed
func (w *World) Destroy(pos vec.Vec3) bool {
	cur := w.Get(pos)
	if cur.IsAir() {
		return false
	}
	w.setBlock(pos, w.reg.Air(), block.UpdateAll, w.prop.childDepth(), true)
	return true
}

// ScheduleBlockTick планирует тик блока. Для незагруженных позиций игнорируется.
func (w *World) ScheduleBlockTick(pos vec.Vec3, t *block.Type, delay int) {
	w.ScheduleBlockTickWithPriority(pos, t, delay, tick.PriorityNormal)
}

// ScheduleBlockTickWithPriority планирует тик блока с приоритетом
func (w *World) ScheduleBlockTickWithPriority(pos vec.Vec3, t *block.Type, delay int, p tick.Priority) {
	if !w.IsLoaded(pos) {
		return
	}
	w.blockTicks.ScheduleWithPriority(pos, t.ID(), delay, p)
	w.touchTicks(pos)
	w.metrics.TicksScheduled.WithLabelValues(kindBlock).Inc()
}

// ScheduleFluidTick планирует тик жидкости
func (w *World) ScheduleFluidTick(pos vec.Vec3, f block.FluidID, delay int) {
	if !w.IsLoaded(pos) {
		return
	}
	w.fluidTicks.Schedule(pos, f, delay)
	w.touchTicks(pos)
	w.metrics.TicksScheduled.WithLabelValues(kindFluid).Inc()
}

// HasBlockTick проверяет наличие тика блока
func (w *World) HasBlockTick(pos vec.Vec3, t *block.Type) bool {
	return w.blockTicks.Has(pos, t.ID())
}

// HasFluidTick проверяет наличие тика жидкости
func (w *World) HasFluidTick(pos vec.Vec3, f block.FluidID) bool {
	return w.fluidTicks.Has(pos, f)
}

// PendingTick описание тика для внешнего API
type PendingTick struct {
	Pos      vec.Vec3 `json:"pos"`
	Target   string   `json:"target"`
	Kind     string   `json:"kind"`
	Due      int64    `json:"due"`
	Priority int      `json:"priority"`
}

// PendingTicks возвращает тики в чанке (или все при chunk == nil) в порядке срабатывания
func (w *World) PendingTicks(chunk *vec.Vec3) []PendingTick {
	match := func(pos vec.Vec3) bool { return chunk == nil || pos.ToChunkCoords() == *chunk }
	var out []PendingTick
	for _, e := range w.blockTicks.Pending(func(e tick.Entry[block.ID]) bool { return match(e.Pos) }) {
		t, _ := w.reg.ByID(e.Target)
		out = append(out, PendingTick{Pos: e.Pos, Target: t.Name, Kind: kindBlock, Due: e.Due, Priority: int(e.Priority)})
	}
	for _, e := range w.fluidTicks.Pending(func(e tick.Entry[block.FluidID]) bool { return match(e.Pos) }) {
		out = append(out, PendingTick{Pos: e.Pos, Target: e.Target.String(), Kind: kindFluid, Due: e.Due, Priority: int(e.Priority)})
	}
	return out
}

// LoadedChunks возвращает координаты загруженных чанков в детерминированном порядке
func (w *World) LoadedChunks() []vec.Vec3 {
	coords := make([]vec.Vec3, 0, len(w.chunks))
	for c := range w.chunks {
		coords = append(coords, c)
	}
	sort.Slice(coords, func(i, j int) bool { return coords[i].Less(coords[j]) })
	return coords
}

// LoadChunk загружает чанк из хранилища или генерирует его
func (w *World) LoadChunk(ctx context.Context, coords vec.Vec3) error {
	if _, ok := w.chunks[coords]; ok {
		return nil
	}
	origin := coords.ChunkOrigin()
	if origin.Y+ChunkSize-1 < w.cfg.MinY || origin.Y > w.cfg.MaxY {
		return fmt.Errorf("чанк %v вне вертикальных границ мира", coords)
	}

	if w.store != nil {
		data, err := w.store.LoadChunk(ctx, coords)
		if err != nil {
			return fmt.Errorf("ошибка загрузки чанка %v: %w", coords, err)
		}
		if data != nil {
			c, blockTicks, fluidTicks, err := w.decodeChunk(data)
			if err != nil {
				return err
			}
			w.chunks[coords] = c
			w.blockTicks.Restore(blockTicks)
			w.fluidTicks.Restore(fluidTicks)
			w.metrics.ChunkLoads.WithLabelValues("storage").Inc()
			w.afterLoad()
			w.logger.Debug("чанк %v загружен из хранилища (%d тиков)", coords, len(blockTicks)+len(fluidTicks))
			return nil
		}
	}

	c := NewChunk(coords)
	source := "empty"
	if w.generator != nil {
		airID := w.reg.Air().ID()
		w.generator.Generate(c, func(local vec.Vec3, s *block.State) {
			c.SetStateID(local, s.ID(), airID)
		})
		c.ClearChanges()
		source = "generator"
	}
	w.chunks[coords] = c
	w.metrics.ChunkLoads.WithLabelValues(source).Inc()
	w.afterLoad()
	w.logger.Trace("чанк %v создан (%s)", coords, source)
	return nil
}

// LoadArea загружает все чанки, покрывающие блоки от from до to включительно
func (w *World) LoadArea(ctx context.Context, from, to vec.Vec3) error {
	lo, hi := from.ToChunkCoords(), to.ToChunkCoords()
	for y := lo.Y; y <= hi.Y; y++ {
		for z := lo.Z; z <= hi.Z; z++ {
			for x := lo.X; x <= hi.X; x++ {
				if err := w.LoadChunk(ctx, vec.Vec3{X: x, Y: y, Z: z}); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

func (w *World) afterLoad() {
	w.metrics.ChunksLoaded.Set(float64(len(w.chunks)))
	w.updatePendingGauge()
}

// UnloadChunk сохраняет чанк вместе с его тиками и выгружает его.
// Тики чанка удаляются из очередей в памяти.
func (w *World) UnloadChunk(ctx context.Context, coords vec.Vec3) error {
	c, ok := w.chunks[coords]
	if !ok {
		return nil
	}
	if err := w.saveChunk(ctx, c, true); err != nil {
		return err
	}
	inChunk := func(pos vec.Vec3) bool { return pos.ToChunkCoords() == coords }
	removed := w.blockTicks.RemoveIf(func(e tick.Entry[block.ID]) bool { return inChunk(e.Pos) })
	removed += w.fluidTicks.RemoveIf(func(e tick.Entry[block.FluidID]) bool { return inChunk(e.Pos) })
	delete(w.chunks, coords)
	w.afterLoad()
	w.logger.Debug("чанк %v выгружен, снято тиков: %d", coords, removed)
	return nil
}

// SaveAll сохраняет все изменённые чанки
func (w *World) SaveAll(ctx context.Context) error {
	for _, coords := range w.LoadedChunks() {
		if err := w.saveChunk(ctx, w.chunks[coords], false); err != nil {
			return err
		}
	}
	return nil
}

// saveChunk сохраняет чанк, если он изменён или (при выгрузке) имеет тики
func (w *World) saveChunk(ctx context.Context, c *Chunk, unloading bool) error {
	if w.store == nil {
		return nil
	}
	data := w.encodeChunk(c)
	hasTicks := len(data.BlockTicks)+len(data.FluidTicks) > 0
	if !c.HasChanges() && !(unloading && hasTicks) {
		return nil
	}
	if err := w.store.SaveChunk(ctx, data); err != nil {
		return fmt.Errorf("ошибка сохранения чанка %v: %w", c.Coords, err)
	}
	c.ClearChanges()
	w.metrics.ChunkSaves.Inc()
	return nil
}

// ChunkSnapshot возвращает сериализуемое представление загруженного чанка
func (w *World) ChunkSnapshot(coords vec.Vec3) (*ChunkData, bool) {
	c, ok := w.chunks[coords]
	if !ok {
		return nil, false
	}
	return w.encodeChunk(c), true
}

// StateDigest хеш состояния мира: чанки, игровое время и очереди тиков.
// Два мира с одинаковой историей имеют одинаковый хеш.
func (w *World) StateDigest() string {
	h := sha256.New()
	var buf [8]byte
	writeInt := func(v int64) {
		binary.LittleEndian.PutUint64(buf[:], uint64(v))
		h.Write(buf[:])
	}
	writeInt(w.gameTime)
	for _, coords := range w.LoadedChunks() {
		writeInt(int64(coords.X))
		writeInt(int64(coords.Y))
		writeInt(int64(coords.Z))
		for _, id := range w.chunks[coords].states {
			binary.LittleEndian.PutUint32(buf[:4], uint32(id))
			h.Write(buf[:4])
		}
	}
	for _, t := range w.PendingTicks(nil) {
		fmt.Fprintf(h, "%v|%s|%s|%d|%d;", t.Pos, t.Kind, t.Target, t.Due, t.Priority)
	}
	return hex.EncodeToString(h.Sum(nil))
}
