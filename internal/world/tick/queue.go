// Package tick содержит очередь отложенных тиков, привязанных к координатам.
package tick

import (
	"container/heap"
	"iter"
	"sort"

	"github.com/annel0/blockworld/internal/vec"
)

// Priority приоритет тика при равном времени срабатывания (меньше = раньше)
type Priority int8

const (
	PriorityExtremelyHigh Priority = -3
	PriorityVeryHigh      Priority = -2
	PriorityHigh          Priority = -1
	PriorityNormal        Priority = 0
	PriorityLow           Priority = 1
	PriorityVeryLow       Priority = 2
	PriorityExtremelyLow  Priority = 3
)

// Entry запланированный тик
type Entry[T comparable] struct {
	Pos      vec.Vec3
	Target   T
	Due      int64
	Priority Priority
	Seq      uint64
}

// Saved тик в виде для сохранения: время задаётся относительно текущего
type Saved[T comparable] struct {
	Pos      vec.Vec3 `json:"pos"`
	Target   T        `json:"target"`
	Delay    int64    `json:"delay"`
	Priority Priority `json:"priority,omitempty"`
}

type key[T comparable] struct {
	pos    vec.Vec3
	target T
}

// Queue очередь тиков, упорядоченная по (Due, Priority, Seq).
// Очередь основана на вставках: два Schedule для одной пары дают два тика.
// Не потокобезопасна, владеет ей поток симуляции.
type Queue[T comparable] struct {
	entries entryHeap[T]
	counts  map[key[T]]int
	seq     uint64
	now     int64

	// MaxPerDrain ограничивает число тиков за один PollDue (0 = без ограничения)
	MaxPerDrain int
}

// NewQueue создаёт пустую очередь
func NewQueue[T comparable]() *Queue[T] {
	return &Queue[T]{counts: make(map[key[T]]int)}
}

// SetTime задаёт текущее игровое время, от которого считается задержка
func (q *Queue[T]) SetTime(now int64) { q.now = now }

// Time текущее игровое время очереди
func (q *Queue[T]) Time() int64 { return q.now }

// Schedule планирует тик через delay игровых тиков с обычным приоритетом
func (q *Queue[T]) Schedule(pos vec.Vec3, target T, delay int) {
	q.ScheduleWithPriority(pos, target, delay, PriorityNormal)
}

// ScheduleWithPriority планирует тик с приоритетом.
// Задержка меньше 1 считается равной 1: тик никогда не срабатывает в том же проходе.
func (q *Queue[T]) ScheduleWithPriority(pos vec.Vec3, target T, delay int, p Priority) {
	if delay < 1 {
		delay = 1
	}
	q.push(Entry[T]{Pos: pos, Target: target, Due: q.now + int64(delay), Priority: p})
}

func (q *Queue[T]) push(e Entry[T]) {
	q.seq++
	e.Seq = q.seq
	heap.Push(&q.entries, e)
	q.counts[key[T]{e.Pos, e.Target}]++
}

// Has сообщает, есть ли в очереди тик для пары (pos, target)
func (q *Queue[T]) Has(pos vec.Vec3, target T) bool {
	return q.counts[key[T]{pos, target}] > 0
}

// Len количество тиков в очереди
func (q *Queue[T]) Len() int { return len(q.entries) }

// PollDue возвращает ленивую одноразовую последовательность тиков с Due <= current.
// Каждый тик удаляется из очереди в момент выдачи. Тики, запланированные
// во время обхода, получают Due > current и в этот обход не попадают.
func (q *Queue[T]) PollDue(current int64) iter.Seq[Entry[T]] {
	used := false
	return func(yield func(Entry[T]) bool) {
		if used {
			return
		}
		used = true
		n := 0
		for len(q.entries) > 0 && q.entries[0].Due <= current {
			if q.MaxPerDrain > 0 && n >= q.MaxPerDrain {
				return
			}
			e := heap.Pop(&q.entries).(Entry[T])
			q.release(e)
			n++
			if !yield(e) {
				return
			}
		}
	}
}

func (q *Queue[T]) release(e Entry[T]) {
	k := key[T]{e.Pos, e.Target}
	if c := q.counts[k]; c > 1 {
		q.counts[k] = c - 1
	} else {
		delete(q.counts, k)
	}
}

// RemoveIf удаляет все тики, для которых pred вернул true, и возвращает их число
func (q *Queue[T]) RemoveIf(pred func(Entry[T]) bool) int {
	kept := q.entries[:0]
	removed := 0
	for _, e := range q.entries {
		if pred(e) {
			q.release(e)
			removed++
			continue
		}
		kept = append(kept, e)
	}
	clear(q.entries[len(kept):])
	q.entries = kept
	heap.Init(&q.entries)
	return removed
}

// Pending возвращает копии тиков в порядке срабатывания, для которых pred
// вернул true (nil = все).
func (q *Queue[T]) Pending(pred func(Entry[T]) bool) []Entry[T] {
	var out []Entry[T]
	for _, e := range q.entries {
		if pred == nil || pred(e) {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].less(out[j]) })
	return out
}

// Snapshot сохраняет выбранные тики с задержкой относительно текущего времени
func (q *Queue[T]) Snapshot(pred func(Entry[T]) bool) []Saved[T] {
	pending := q.Pending(pred)
	out := make([]Saved[T], 0, len(pending))
	for _, e := range pending {
		out = append(out, Saved[T]{
			Pos:      e.Pos,
			Target:   e.Target,
			Delay:    e.Due - q.now,
			Priority: e.Priority,
		})
	}
	return out
}

// Restore возвращает сохранённые тики в очередь в исходном порядке
func (q *Queue[T]) Restore(saved []Saved[T]) {
	for _, s := range saved {
		delay := s.Delay
		if delay < 1 {
			delay = 1
		}
		q.push(Entry[T]{Pos: s.Pos, Target: s.Target, Due: q.now + delay, Priority: s.Priority})
	}
}

func (e Entry[T]) less(o Entry[T]) bool {
	if e.Due != o.Due {
		return e.Due < o.Due
	}
	if e.Priority != o.Priority {
		return e.Priority < o.Priority
	}
	return e.Seq < o.Seq
}

// entryHeap реализация heap.Interface
type entryHeap[T comparable] []Entry[T]

func (h entryHeap[T]) Len() int           { return len(h) }
func (h entryHeap[T]) Less(i, j int) bool { return h[i].less(h[j]) }
func (h entryHeap[T]) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }

func (h *entryHeap[T]) Push(x any) {
	*h = append(*h, x.(Entry[T]))
}

func (h *entryHeap[T]) Pop() any {
	old := *h
	n := len(old)
	e := old[n-1]
	old[n-1] = Entry[T]{}
	*h = old[:n-1]
	return e
}
