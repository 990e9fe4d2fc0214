package eventbus

import (
	"context"
	"encoding/json"
	"sync/atomic"

	"github.com/annel0/blockworld/internal/logging"
	"github.com/annel0/blockworld/internal/vec"
	"github.com/annel0/blockworld/internal/world"
)

// Типы событий мира
const (
	EventBlockChange = "BlockChange"
	EventBlockBreak  = "BlockBreak"
)

// BlockChangeEvent полезная нагрузка событий изменения блока
type BlockChangeEvent struct {
	Pos       vec.Vec3 `json:"pos"`
	Old       string   `json:"old"`
	New       string   `json:"new"`
	Flags     string   `json:"flags"`
	Destroyed bool     `json:"destroyed,omitempty"`
	Tick      int64    `json:"tick"`
}

// NewBlockChangeEvent переводит изменение мира в сериализуемое событие
func NewBlockChangeEvent(c world.BlockChange) BlockChangeEvent {
	return BlockChangeEvent{
		Pos:       c.Pos,
		Old:       c.Old.String(),
		New:       c.New.String(),
		Flags:     c.Flags.String(),
		Destroyed: c.Destroyed,
		Tick:      c.Tick,
	}
}

// BlockChangePublisher слушатель мира, публикующий изменения блоков в шину.
// OnBlockChange вызывается в потоке симуляции и не блокируется: события
// складываются в буфер, при переполнении отбрасываются. Публикацию
// выполняет Run в отдельной горутине.
type BlockChangePublisher struct {
	bus     EventBus
	source  string
	events  chan BlockChangeEvent
	dropped uint64
	logger  *logging.Logger
}

var _ world.Listener = (*BlockChangePublisher)(nil)

// NewBlockChangePublisher создаёт издателя с буфером на buffer событий
func NewBlockChangePublisher(bus EventBus, source string, buffer int) *BlockChangePublisher {
	if buffer <= 0 {
		buffer = 1024
	}
	return &BlockChangePublisher{
		bus:    bus,
		source: source,
		events: make(chan BlockChangeEvent, buffer),
		logger: logging.GetEventBusLogger(),
	}
}

// OnBlockChange реализует world.Listener
func (p *BlockChangePublisher) OnBlockChange(c world.BlockChange) {
	select {
	case p.events <- NewBlockChangeEvent(c):
	default:
		atomic.AddUint64(&p.dropped, 1)
	}
}

// Dropped число событий, отброшенных из-за переполнения буфера
func (p *BlockChangePublisher) Dropped() uint64 {
	return atomic.LoadUint64(&p.dropped)
}

// Run публикует события до отмены ctx. Оставшиеся в буфере события
// публикуются перед выходом.
func (p *BlockChangePublisher) Run(ctx context.Context) {
	for {
		select {
		case ev := <-p.events:
			p.publish(ctx, ev)
		case <-ctx.Done():
			for {
				select {
				case ev := <-p.events:
					p.publish(context.Background(), ev)
				default:
					return
				}
			}
		}
	}
}

func (p *BlockChangePublisher) publish(ctx context.Context, ev BlockChangeEvent) {
	payload, err := json.Marshal(ev)
	if err != nil {
		p.logger.Error("ошибка сериализации события %v: %v", ev.Pos, err)
		return
	}
	env := NewEnvelope(p.source, EventBlockChange, payload)
	if ev.Destroyed {
		env.EventType = EventBlockBreak
		env.Priority = 5
	}
	if err := p.bus.Publish(ctx, env); err != nil {
		p.logger.Warn("не удалось опубликовать %s %v: %v", env.EventType, ev.Pos, err)
	}
}
