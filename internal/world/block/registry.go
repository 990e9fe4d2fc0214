package block

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrDuplicateName тип с таким именем уже зарегистрирован
	ErrDuplicateName = errors.New("блок с таким именем уже зарегистрирован")
	// ErrFrozen реестр заморожен и не принимает новые типы
	ErrFrozen = errors.New("реестр заморожен")
	// ErrUnknownBlock тип блока не найден
	ErrUnknownBlock = errors.New("неизвестный блок")
	// ErrInvalidState строка состояния не соответствует свойствам типа
	ErrInvalidState = errors.New("некорректное состояние блока")
	// ErrTooManyStates произведение значений свойств больше MaxStatesPerType
	ErrTooManyStates = errors.New("слишком много состояний у типа блока")
)

// Имена встроенных типов
const (
	AirName     = "air"
	VoidAirName = "void_air"
)

// Type описывает тип блока. Заполняется вызывающим кодом и передаётся в
// Registry.Register, который возвращает зарегистрированную копию.
type Type struct {
	Name       string
	Properties []Property
	Behavior   Behavior

	// RandomTicks включает вызов RandomTick случайным сэмплером чанка.
	RandomTicks bool
	// Replaceable блок может быть заменён при установке другого блока.
	Replaceable bool
	// Air отмечает воздух: пустая форма, всегда заменяем.
	Air bool
	// Connectable решётки соединяются с блоком независимо от формы.
	Connectable bool
	// Default донастраивает состояние по умолчанию (все индексы 0).
	Default func(base *State) *State

	id       ID
	firstID  StateID
	def      *StateDefinition
	defState *State
}

// ID возвращает идентификатор типа
func (t *Type) ID() ID { return t.id }

// Definition возвращает определение состояний типа
func (t *Type) Definition() *StateDefinition { return t.def }

// DefaultState возвращает состояние по умолчанию
func (t *Type) DefaultState() *State { return t.defState }

// StateForPlacement вычисляет состояние при установке; nil означает отказ
func (t *Type) StateForPlacement(ctx PlaceContext) *State {
	return t.Behavior.Placement(t, ctx)
}

func (t *Type) String() string { return t.Name }

// Registry реестр типов блоков и жидкостей.
// Создаётся явно, заполняется при старте и замораживается перед запуском мира.
// После Freeze реестр только читается и безопасен для конкурентного чтения.
type Registry struct {
	types  []*Type
	byName map[string]*Type
	states []*State
	fluids map[FluidID]*Fluid
	frozen bool

	air     *State
	voidAir *State
}

// NewRegistry создаёт реестр с предустановленными air и void_air
func NewRegistry() *Registry {
	r := &Registry{
		byName: make(map[string]*Type),
		fluids: make(map[FluidID]*Fluid),
	}
	airBehavior := Behavior{Shape: emptyShape}

	air, _ := r.Register(Type{Name: AirName, Air: true, Behavior: airBehavior})
	voidAir, _ := r.Register(Type{Name: VoidAirName, Air: true, Behavior: airBehavior})
	r.air = air.DefaultState()
	r.voidAir = voidAir.DefaultState()

	_ = r.RegisterFluid(Fluid{ID: FluidEmpty, Name: "empty"})
	return r
}

// Register регистрирует тип блока и перечисляет все его состояния
func (r *Registry) Register(t Type) (*Type, error) {
	if r.frozen {
		return nil, fmt.Errorf("регистрация %q: %w", t.Name, ErrFrozen)
	}
	if t.Name == "" {
		return nil, fmt.Errorf("регистрация блока: пустое имя")
	}
	if _, exists := r.byName[t.Name]; exists {
		return nil, fmt.Errorf("регистрация %q: %w", t.Name, ErrDuplicateName)
	}
	seen := make(map[string]bool, len(t.Properties))
	for _, p := range t.Properties {
		if seen[p.Name()] {
			return nil, fmt.Errorf("регистрация %q: свойство %q объявлено дважды", t.Name, p.Name())
		}
		seen[p.Name()] = true
	}
	if n, ok := stateCount(t.Properties); !ok {
		return nil, fmt.Errorf("регистрация %q: больше %d состояний: %w", t.Name, MaxStatesPerType, ErrTooManyStates)
	} else if n == 0 {
		return nil, fmt.Errorf("регистрация %q: свойство без значений", t.Name)
	}

	typ := new(Type)
	*typ = t
	typ.id = ID(len(r.types))
	typ.firstID = StateID(len(r.states))
	typ.Behavior = t.Behavior.withDefaults()
	typ.def = newDefinition(typ, t.Properties)
	for _, s := range typ.def.states {
		s.id = typ.firstID + StateID(s.local)
		r.states = append(r.states, s)
	}

	typ.defState = typ.def.states[0]
	if t.Default != nil {
		if s := t.Default(typ.defState); s != nil && s.typ == typ {
			typ.defState = s
		}
	}

	r.types = append(r.types, typ)
	r.byName[typ.Name] = typ
	return typ, nil
}

// MustRegister как Register, но паникует при ошибке. Для статичного контента.
func (r *Registry) MustRegister(t Type) *Type {
	typ, err := r.Register(t)
	if err != nil {
		panic(err)
	}
	return typ
}

// RegisterFluid регистрирует жидкость
func (r *Registry) RegisterFluid(f Fluid) error {
	if r.frozen {
		return fmt.Errorf("регистрация жидкости %q: %w", f.Name, ErrFrozen)
	}
	if _, exists := r.fluids[f.ID]; exists {
		return fmt.Errorf("регистрация жидкости %q: %w", f.Name, ErrDuplicateName)
	}
	fl := f
	r.fluids[f.ID] = &fl
	return nil
}

// Freeze закрывает реестр для регистрации и кеширует формы всех состояний
func (r *Registry) Freeze() {
	if r.frozen {
		return
	}
	for _, s := range r.states {
		s.cacheShapes()
	}
	r.frozen = true
}

// Frozen сообщает, заморожен ли реестр
func (r *Registry) Frozen() bool { return r.frozen }

// Air возвращает состояние воздуха
func (r *Registry) Air() *State { return r.air }

// VoidAir возвращает состояние для незагруженных координат
func (r *Registry) VoidAir() *State { return r.voidAir }

// ByID возвращает тип по идентификатору
func (r *Registry) ByID(id ID) (*Type, bool) {
	if int(id) >= len(r.types) {
		return nil, false
	}
	return r.types[id], true
}

// ByName возвращает тип по имени
func (r *Registry) ByName(name string) (*Type, bool) {
	t, ok := r.byName[name]
	return t, ok
}

// StateByID возвращает состояние по глобальному идентификатору
func (r *Registry) StateByID(id StateID) (*State, bool) {
	if int(id) >= len(r.states) {
		return nil, false
	}
	return r.states[id], true
}

// Types возвращает все типы в порядке регистрации
func (r *Registry) Types() []*Type {
	return append([]*Type(nil), r.types...)
}

// StateCount общее количество состояний
func (r *Registry) StateCount() int { return len(r.states) }

// Fluid возвращает зарегистрированную жидкость или nil
func (r *Registry) Fluid(id FluidID) *Fluid {
	return r.fluids[id]
}

// ParseState разбирает запись вида "lantern[waterlogged=true]".
// Не указанные свойства берутся из состояния по умолчанию.
func (r *Registry) ParseState(text string) (*State, error) {
	text = strings.TrimSpace(text)
	name, rest, hasProps := strings.Cut(text, "[")
	t, ok := r.byName[name]
	if !ok {
		return nil, fmt.Errorf("%q: %w", name, ErrUnknownBlock)
	}
	s := t.DefaultState()
	if !hasProps {
		return s, nil
	}
	body, ok := strings.CutSuffix(rest, "]")
	if !ok {
		return nil, fmt.Errorf("%q: нет закрывающей скобки: %w", text, ErrInvalidState)
	}
	if body == "" {
		return s, nil
	}
	for _, pair := range strings.Split(body, ",") {
		key, value, ok := strings.Cut(pair, "=")
		if !ok {
			return nil, fmt.Errorf("%q: ожидалось имя=значение: %w", pair, ErrInvalidState)
		}
		p, ok := t.def.Property(strings.TrimSpace(key))
		if !ok {
			return nil, fmt.Errorf("%s: нет свойства %q: %w", name, key, ErrInvalidState)
		}
		idx, ok := p.Parse(strings.TrimSpace(value))
		if !ok {
			return nil, fmt.Errorf("%s: значение %q недопустимо для %s: %w", name, value, key, ErrInvalidState)
		}
		s = s.With(p, idx)
	}
	return s, nil
}
