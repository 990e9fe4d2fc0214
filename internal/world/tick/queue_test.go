package tick

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/annel0/blockworld/internal/vec"
)

func drain[T comparable](q *Queue[T], now int64) []Entry[T] {
	var out []Entry[T]
	for e := range q.PollDue(now) {
		out = append(out, e)
	}
	return out
}

func TestQueue_HasAfterScheduleAndPoll(t *testing.T) {
	q := NewQueue[string]()
	pos := vec.Vec3{X: 1, Y: 2, Z: 3}

	q.Schedule(pos, "sand", 2)
	assert.True(t, q.Has(pos, "sand"), "тик должен быть найден сразу после планирования")
	assert.False(t, q.Has(pos, "water"))

	assert.Empty(t, drain(q, 1), "тик на время 2 не должен срабатывать в 1")
	assert.True(t, q.Has(pos, "sand"))

	got := drain(q, 2)
	require.Len(t, got, 1)
	assert.Equal(t, int64(2), got[0].Due)
	assert.False(t, q.Has(pos, "sand"), "после выдачи тик должен исчезнуть")
	assert.Equal(t, 0, q.Len())
}

func TestQueue_DuplicatesFireTwice(t *testing.T) {
	q := NewQueue[string]()
	pos := vec.Vec3{}

	q.Schedule(pos, "lamp", 4)
	q.Schedule(pos, "lamp", 4)
	assert.Equal(t, 2, q.Len())

	got := drain(q, 4)
	assert.Len(t, got, 2, "очередь основана на вставках и не дедуплицирует")
	assert.False(t, q.Has(pos, "lamp"))
}

func TestQueue_HasCountsRemaining(t *testing.T) {
	q := NewQueue[int]()
	pos := vec.Vec3{}
	q.Schedule(pos, 1, 1)
	q.Schedule(pos, 1, 5)

	drain(q, 1)
	assert.True(t, q.Has(pos, 1), "второй тик ещё в очереди")
	drain(q, 5)
	assert.False(t, q.Has(pos, 1))
}

func TestQueue_OrderIsStable(t *testing.T) {
	q := NewQueue[int]()
	for i := 0; i < 10; i++ {
		q.Schedule(vec.Vec3{X: i}, i, 3)
	}
	q.ScheduleWithPriority(vec.Vec3{X: 99}, 99, 3, PriorityHigh)
	q.Schedule(vec.Vec3{X: 100}, 100, 1)

	got := drain(q, 3)
	require.Len(t, got, 12)
	assert.Equal(t, 100, got[0].Target, "раньше срабатывает меньшее время")
	assert.Equal(t, 99, got[1].Target, "при равном времени выше приоритет")
	for i := 0; i < 10; i++ {
		assert.Equal(t, i, got[i+2].Target, "при равных времени и приоритете порядок вставки")
	}
}

func TestQueue_ZeroDelayNotInCurrentDrain(t *testing.T) {
	q := NewQueue[int]()
	q.SetTime(10)
	q.Schedule(vec.Vec3{}, 1, 0)

	var fired int
	for e := range q.PollDue(10) {
		fired++
		_ = e
	}
	assert.Equal(t, 0, fired)

	q.SetTime(10)
	q.Schedule(vec.Vec3{}, 2, 1)
	n := 0
	for range q.PollDue(11) {
		n++
		// планирование во время обхода попадает только в будущие проходы
		q.SetTime(11)
		q.Schedule(vec.Vec3{}, 3, 0)
	}
	assert.Equal(t, 2, n, "тики 1 и 2 срабатывают в 11, новый тик нет")
	assert.True(t, q.Has(vec.Vec3{}, 3))
}

func TestQueue_PollDueIsOneShot(t *testing.T) {
	q := NewQueue[int]()
	q.Schedule(vec.Vec3{}, 1, 1)
	seq := q.PollDue(1)
	for range seq {
	}
	q.Schedule(vec.Vec3{}, 2, 1)
	n := 0
	for range seq {
		n++
	}
	assert.Equal(t, 0, n, "повторный обход последовательности ничего не выдаёт")
	assert.Equal(t, 1, q.Len())
}

func TestQueue_EarlyBreakKeepsRest(t *testing.T) {
	q := NewQueue[int]()
	for i := 0; i < 5; i++ {
		q.Schedule(vec.Vec3{X: i}, i, 1)
	}
	for range q.PollDue(1) {
		break
	}
	assert.Equal(t, 4, q.Len())
	assert.False(t, q.Has(vec.Vec3{X: 0}, 0))
	assert.True(t, q.Has(vec.Vec3{X: 1}, 1))
}

func TestQueue_MaxPerDrain(t *testing.T) {
	q := NewQueue[int]()
	q.MaxPerDrain = 3
	for i := 0; i < 5; i++ {
		q.Schedule(vec.Vec3{X: i}, i, 1)
	}
	assert.Len(t, drain(q, 1), 3)
	assert.Len(t, drain(q, 1), 2, "остаток остаётся в очереди до следующего прохода")
}

func TestQueue_RemoveIfAndSnapshot(t *testing.T) {
	q := NewQueue[string]()
	q.SetTime(100)
	q.Schedule(vec.Vec3{X: 1}, "a", 5)
	q.Schedule(vec.Vec3{X: 20}, "b", 3)
	q.ScheduleWithPriority(vec.Vec3{X: 2}, "c", 5, PriorityLow)

	inFirstChunk := func(e Entry[string]) bool { return e.Pos.ToChunkCoords() == vec.Vec3{} }
	saved := q.Snapshot(inFirstChunk)
	require.Len(t, saved, 2)
	assert.Equal(t, Saved[string]{Pos: vec.Vec3{X: 1}, Target: "a", Delay: 5}, saved[0])
	assert.Equal(t, PriorityLow, saved[1].Priority)

	assert.Equal(t, 2, q.RemoveIf(inFirstChunk))
	assert.False(t, q.Has(vec.Vec3{X: 1}, "a"))
	assert.Equal(t, 1, q.Len())

	q.SetTime(200)
	q.Restore(saved)
	got := drain(q, 205)
	require.Len(t, got, 3)
	assert.Equal(t, "b", got[0].Target)
	assert.Equal(t, "a", got[1].Target)
	assert.Equal(t, int64(205), got[1].Due)
	assert.Equal(t, "c", got[2].Target)
}
