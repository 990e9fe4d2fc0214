package block

import (
	"fmt"
	"strings"
)

// UpdateFlags набор флагов, управляющих побочными эффектами Set
type UpdateFlags uint16

const (
	// NotifyNeighbors запускает обновление соседей
	NotifyNeighbors UpdateFlags = 1 << iota
	// NotifyClients отправляет изменение слушателям
	NotifyClients
	// ForceReRender отправляет изменение слушателям с пометкой перерисовки
	ForceReRender
	// MoveByPiston изменение из логики перемещения: без OnPlace/OnRemove
	MoveByPiston
	// SkipBlockEntityPreservation не переносить данные блока.
	// Блочных сущностей в мире нет, поэтому Set флаг не читает; он только
	// принимается в API и наследуется вложенными изменениями.
	SkipBlockEntityPreservation
	// SuppressDrops разрушение без события Destroyed
	SuppressDrops
	// SkipNeighborShapeUpdates только уведомления соседей, без UpdateShape
	SkipNeighborShapeUpdates

	// UpdateNone без побочных эффектов
	UpdateNone UpdateFlags = 0
	// UpdateAll стандартный набор для игровых изменений
	UpdateAll = NotifyNeighbors | NotifyClients
)

var flagNames = []string{
	"notify_neighbors",
	"notify_clients",
	"force_rerender",
	"move_by_piston",
	"skip_block_entity",
	"suppress_drops",
	"skip_shape_updates",
}

// Has проверяет наличие всех флагов f
func (u UpdateFlags) Has(f UpdateFlags) bool { return u&f == f }

func (u UpdateFlags) String() string {
	if u == 0 {
		return "none"
	}
	var parts []string
	for i, name := range flagNames {
		if u&(1<<i) != 0 {
			parts = append(parts, name)
		}
	}
	return strings.Join(parts, "|")
}

// ParseUpdateFlags разбирает строку вида "notify_neighbors|notify_clients".
// Поддерживаются также "none" и "all" (UpdateAll, а не все флаги).
func ParseUpdateFlags(text string) (UpdateFlags, error) {
	text = strings.TrimSpace(text)
	switch text {
	case "", "none":
		return UpdateNone, nil
	case "all":
		return UpdateAll, nil
	}
	var out UpdateFlags
	for _, part := range strings.Split(text, "|") {
		part = strings.TrimSpace(part)
		found := false
		for i, name := range flagNames {
			if name == part {
				out |= 1 << i
				found = true
				break
			}
		}
		if !found {
			return 0, fmt.Errorf("неизвестный флаг обновления %q", part)
		}
	}
	return out, nil
}
