package block

import (
	"strings"

	"github.com/annel0/blockworld/internal/vec"
	"github.com/annel0/blockworld/internal/world/shape"
)

// ID идентификатор типа блока внутри реестра
type ID uint16

// StateID идентификатор состояния, уникальный в пределах реестра.
// Используется для компактного хранения состояний в чанках.
type StateID uint32

// MaxStatesPerType предел числа состояний одного типа
const MaxStatesPerType = 4096

// stateCount число состояний типа; false, если оно больше MaxStatesPerType
func stateCount(props []Property) (int, bool) {
	n := 1
	for _, p := range props {
		n *= p.Len()
		if n > MaxStatesPerType {
			return n, false
		}
	}
	return n, true
}

// StateDefinition набор свойств типа и все его состояния.
// Состояния перечисляются заранее (декартово произведение значений),
// поэтому два состояния с одинаковыми значениями это один и тот же указатель.
type StateDefinition struct {
	properties []Property
	strides    []int
	index      map[Property]int
	states     []*State
}

func newDefinition(t *Type, props []Property) *StateDefinition {
	def := &StateDefinition{
		properties: append([]Property(nil), props...),
		strides:    make([]int, len(props)),
		index:      make(map[Property]int, len(props)),
	}
	total := 1
	for i := len(props) - 1; i >= 0; i-- {
		def.strides[i] = total
		total *= props[i].Len()
		def.index[props[i]] = i
	}

	def.states = make([]*State, total)
	for local := range def.states {
		values := make([]uint8, len(props))
		rest := local
		for i := range props {
			values[i] = uint8(rest / def.strides[i])
			rest %= def.strides[i]
		}
		def.states[local] = &State{typ: t, local: local, values: values}
	}
	return def
}

// Properties возвращает свойства в порядке объявления
func (d *StateDefinition) Properties() []Property {
	return append([]Property(nil), d.properties...)
}

// Property ищет свойство по имени
func (d *StateDefinition) Property(name string) (Property, bool) {
	for _, p := range d.properties {
		if p.Name() == name {
			return p, true
		}
	}
	return nil, false
}

// States возвращает все состояния типа
func (d *StateDefinition) States() []*State {
	return append([]*State(nil), d.states...)
}

// State неизменяемое состояние блока: тип плюс значения свойств.
// Сравнение состояний выполняется сравнением указателей.
type State struct {
	typ    *Type
	id     StateID
	local  int
	values []uint8

	shape     shape.Shape
	collision shape.Shape
	cached    bool
}

// Type возвращает тип блока
func (s *State) Type() *Type { return s.typ }

// ID возвращает глобальный идентификатор состояния
func (s *State) ID() StateID { return s.id }

// Is проверяет принадлежность состояния типу
func (s *State) Is(t *Type) bool { return s.typ == t }

// IsAir возвращает true для air и void_air
func (s *State) IsAir() bool { return s.typ.Air }

// IsReplaceable сообщает, можно ли поставить блок на место этого состояния
func (s *State) IsReplaceable() bool { return s.typ.Air || s.typ.Replaceable }

// Value возвращает индекс значения свойства, ok == false если у типа нет свойства
func (s *State) Value(p Property) (int, bool) {
	i, ok := s.typ.def.index[p]
	if !ok {
		return 0, false
	}
	return int(s.values[i]), true
}

// Has сообщает, объявлено ли свойство у типа
func (s *State) Has(p Property) bool {
	_, ok := s.typ.def.index[p]
	return ok
}

// With возвращает состояние с другим значением свойства.
// Для отсутствующего свойства или индекса вне диапазона возвращается s.
func (s *State) With(p Property, index int) *State {
	def := s.typ.def
	i, ok := def.index[p]
	if !ok || index < 0 || index >= p.Len() {
		return s
	}
	return def.states[s.local+(index-int(s.values[i]))*def.strides[i]]
}

// Bool возвращает значение логического свойства (false если его нет)
func (s *State) Bool(p *BoolProperty) bool {
	v, _ := s.Value(p)
	return v == 1
}

// WithBool устанавливает логическое свойство
func (s *State) WithBool(p *BoolProperty, v bool) *State {
	return s.With(p, p.Index(v))
}

// Int возвращает значение целочисленного свойства (Min если его нет)
func (s *State) Int(p *IntProperty) int {
	v, _ := s.Value(p)
	return p.Min + v
}

// WithInt устанавливает целочисленное свойство
func (s *State) WithInt(p *IntProperty, v int) *State {
	i, ok := p.Index(v)
	if !ok {
		return s
	}
	return s.With(p, i)
}

// Enum возвращает значение перечисления ("" если его нет)
func (s *State) Enum(p *EnumProperty) string {
	v, ok := s.Value(p)
	if !ok {
		return ""
	}
	return p.ValueName(v)
}

// WithEnum устанавливает значение перечисления
func (s *State) WithEnum(p *EnumProperty, v string) *State {
	i, ok := p.Parse(v)
	if !ok {
		return s
	}
	return s.With(p, i)
}

// Shape возвращает форму блока (кешируется при Freeze)
func (s *State) Shape() shape.Shape {
	if s.cached {
		return s.shape
	}
	return s.typ.Behavior.Shape(s)
}

// CollisionShape возвращает форму для столкновений
func (s *State) CollisionShape() shape.Shape {
	if s.cached {
		return s.collision
	}
	return s.typ.Behavior.CollisionShape(s)
}

// IsFaceSturdy проверяет, может ли грань служить опорой
func (s *State) IsFaceSturdy(dir vec.Direction, support shape.SupportType) bool {
	return shape.IsFaceSturdy(s.Shape(), dir, support)
}

// FluidState возвращает жидкость, содержащуюся в состоянии
func (s *State) FluidState() FluidState {
	return s.typ.Behavior.FluidState(s)
}

func (s *State) cacheShapes() {
	s.shape = s.typ.Behavior.Shape(s)
	s.collision = s.typ.Behavior.CollisionShape(s)
	s.cached = true
}

// String возвращает запись вида name[prop=value,...]
func (s *State) String() string {
	if len(s.values) == 0 {
		return s.typ.Name
	}
	var b strings.Builder
	b.WriteString(s.typ.Name)
	b.WriteByte('[')
	for i, p := range s.typ.def.properties {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(p.Name())
		b.WriteByte('=')
		b.WriteString(p.ValueName(int(s.values[i])))
	}
	b.WriteByte(']')
	return b.String()
}
