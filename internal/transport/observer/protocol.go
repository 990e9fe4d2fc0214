package observer

import (
	"github.com/annel0/blockworld/internal/vec"
	"github.com/annel0/blockworld/internal/world"
	"github.com/annel0/blockworld/internal/world/block"
)

// ProtocolVersion версия протокола наблюдателя
const ProtocolVersion = 1

// Типы сообщений
const (
	MsgSubscribe = "SUBSCRIBE"
	MsgHello     = "HELLO"
	MsgBlock     = "BLOCK"
)

// Ограничения подписки
const (
	DefaultRadius = 4
	MaxRadius     = 32
)

// SubscribeMsg подписка клиента на изменения вокруг чанка Center.
// Radius в чанках по горизонтали; отрицательный радиус означает весь мир.
type SubscribeMsg struct {
	Type            string   `json:"type"`
	ProtocolVersion int      `json:"protocol_version"`
	Center          vec.Vec3 `json:"center"`
	Radius          int      `json:"radius"`
}

// HelloMsg ответ на первую подписку
type HelloMsg struct {
	Type            string `json:"type"`
	ProtocolVersion int    `json:"protocol_version"`
	Session         string `json:"session"`
}

// BlockMsg изменение блока
type BlockMsg struct {
	Type      string   `json:"type"`
	Pos       vec.Vec3 `json:"pos"`
	Old       string   `json:"old"`
	New       string   `json:"new"`
	Destroyed bool     `json:"destroyed,omitempty"`
	Rerender  bool     `json:"rerender,omitempty"`
	Tick      int64    `json:"tick"`
}

func blockMsg(change world.BlockChange) BlockMsg {
	return BlockMsg{
		Type:      MsgBlock,
		Pos:       change.Pos,
		Old:       change.Old.String(),
		New:       change.New.String(),
		Destroyed: change.Destroyed,
		Rerender:  change.Flags.Has(block.ForceReRender),
		Tick:      change.Tick,
	}
}

func normalizeSubscribe(sub *SubscribeMsg) {
	if sub.Radius == 0 {
		sub.Radius = DefaultRadius
	}
	if sub.Radius > MaxRadius {
		sub.Radius = MaxRadius
	}
}

// subscription область, изменения в которой получает сессия
type subscription struct {
	center vec.Vec3
	radius int
}

func (s subscription) contains(pos vec.Vec3) bool {
	if s.radius < 0 {
		return true
	}
	c := pos.ToChunkCoords()
	dx, dz := c.X-s.center.X, c.Z-s.center.Z
	return dx >= -s.radius && dx <= s.radius && dz >= -s.radius && dz <= s.radius
}
