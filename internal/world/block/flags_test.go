package block

import "testing"

func TestUpdateFlags(t *testing.T) {
	if !UpdateAll.Has(NotifyNeighbors) || !UpdateAll.Has(NotifyClients) {
		t.Errorf("UpdateAll должен включать уведомления соседей и клиентов")
	}
	if UpdateAll.Has(SuppressDrops) {
		t.Errorf("UpdateAll не должен подавлять дроп")
	}
	if got := (NotifyNeighbors | SuppressDrops).String(); got != "notify_neighbors|suppress_drops" {
		t.Errorf("неожиданное имя флагов: %s", got)
	}
	if UpdateNone.String() != "none" {
		t.Errorf("пустой набор флагов должен называться none")
	}
}

func TestParseUpdateFlags(t *testing.T) {
	cases := map[string]UpdateFlags{
		"":                                 UpdateNone,
		"none":                             UpdateNone,
		"all":                              UpdateAll,
		"notify_neighbors|suppress_drops":  NotifyNeighbors | SuppressDrops,
		" notify_clients | force_rerender": NotifyClients | ForceReRender,
	}
	for text, want := range cases {
		got, err := ParseUpdateFlags(text)
		if err != nil {
			t.Fatalf("%q: %v", text, err)
		}
		if got != want {
			t.Errorf("%q: получено %v, ожидалось %v", text, got, want)
		}
	}
	if _, err := ParseUpdateFlags("notify_everyone"); err == nil {
		t.Errorf("ожидалась ошибка для неизвестного флага")
	}
	if got, _ := ParseUpdateFlags(UpdateAll.String()); got != UpdateAll {
		t.Errorf("String и ParseUpdateFlags должны быть согласованы")
	}
}

func TestParseUpdateFlagsAllIsStandardSet(t *testing.T) {
	got, err := ParseUpdateFlags("all")
	if err != nil {
		t.Fatal(err)
	}
	if got != NotifyNeighbors|NotifyClients {
		t.Errorf("all: получено %v", got)
	}
	if got.Has(SuppressDrops) || got.Has(SkipNeighborShapeUpdates) {
		t.Errorf("all не должен подавлять дропы и обновления формы: %v", got)
	}
}
