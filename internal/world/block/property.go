package block

import (
	"fmt"
	"strconv"
)

// Property описывает свойство состояния блока с конечным набором значений.
// Значение хранится как индекс в списке значений свойства.
type Property interface {
	// Name возвращает имя свойства, например "waterlogged".
	Name() string
	// Len возвращает количество допустимых значений.
	Len() int
	// ValueName возвращает строковое представление значения по индексу.
	ValueName(index int) string
	// Parse находит индекс значения по строке.
	Parse(value string) (int, bool)
}

// BoolProperty логическое свойство: индекс 0 = false, 1 = true
type BoolProperty struct {
	name string
}

// NewBool создаёт логическое свойство
func NewBool(name string) *BoolProperty {
	return &BoolProperty{name: name}
}

func (p *BoolProperty) Name() string { return p.name }
func (p *BoolProperty) Len() int     { return 2 }

func (p *BoolProperty) ValueName(index int) string {
	return strconv.FormatBool(index == 1)
}

func (p *BoolProperty) Parse(value string) (int, bool) {
	v, err := strconv.ParseBool(value)
	if err != nil {
		return 0, false
	}
	return p.Index(v), true
}

// Index возвращает индекс логического значения
func (p *BoolProperty) Index(v bool) int {
	if v {
		return 1
	}
	return 0
}

// IntProperty целочисленное свойство в диапазоне [Min, Max]
type IntProperty struct {
	name     string
	Min, Max int
}

// NewInt создаёт целочисленное свойство. Паникует при max < min:
// свойства объявляются при инициализации пакета с блоками.
func NewInt(name string, lo, hi int) *IntProperty {
	if hi < lo {
		panic(fmt.Sprintf("свойство %s: max %d < min %d", name, hi, lo))
	}
	return &IntProperty{name: name, Min: lo, Max: hi}
}

func (p *IntProperty) Name() string { return p.name }
func (p *IntProperty) Len() int     { return p.Max - p.Min + 1 }

func (p *IntProperty) ValueName(index int) string {
	return strconv.Itoa(p.Min + index)
}

func (p *IntProperty) Parse(value string) (int, bool) {
	v, err := strconv.Atoi(value)
	if err != nil {
		return 0, false
	}
	return p.Index(v)
}

// Index возвращает индекс значения, ok == false вне диапазона
func (p *IntProperty) Index(v int) (int, bool) {
	if v < p.Min || v > p.Max {
		return 0, false
	}
	return v - p.Min, true
}

// EnumProperty перечисление с закрытым набором имён
type EnumProperty struct {
	name   string
	values []string
}

// NewEnum создаёт свойство-перечисление
func NewEnum(name string, values ...string) *EnumProperty {
	if len(values) == 0 {
		panic(fmt.Sprintf("свойство %s: пустой список значений", name))
	}
	return &EnumProperty{name: name, values: append([]string(nil), values...)}
}

func (p *EnumProperty) Name() string               { return p.name }
func (p *EnumProperty) Len() int                   { return len(p.values) }
func (p *EnumProperty) ValueName(index int) string { return p.values[index] }

func (p *EnumProperty) Parse(value string) (int, bool) {
	for i, v := range p.values {
		if v == value {
			return i, true
		}
	}
	return 0, false
}

// Values возвращает список значений
func (p *EnumProperty) Values() []string {
	return append([]string(nil), p.values...)
}

// Общие свойства, используемые несколькими типами блоков
var (
	Waterlogged = NewBool("waterlogged")
	Lit         = NewBool("lit")
	North       = NewBool("north")
	South       = NewBool("south")
	West        = NewBool("west")
	East        = NewBool("east")
	Hanging     = NewBool("hanging")
	LiquidLevel = NewInt("level", 0, 15)
)
