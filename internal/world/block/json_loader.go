package block

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/annel0/blockworld/internal/vec"
	"github.com/annel0/blockworld/internal/world/shape"
)

//go:embed block.schema.json
var blockSchemaJSON string

var blockSchema = jsonschema.MustCompileString("block.schema.json", blockSchemaJSON)

// JSONBlock описание простого блока, задаваемого данными
type JSONBlock struct {
	Name       string         `json:"name"`
	Properties []JSONProperty `json:"properties"`
	Boxes      [][6]int       `json:"boxes"`
	Collision  *bool          `json:"collision"`

	RequiresSupport  string `json:"requires_support"`
	SupportDirection string `json:"support_direction"`

	Replaceable bool `json:"replaceable"`
	Connectable bool `json:"connectable"`
	RandomTicks bool `json:"random_ticks"`
}

// JSONProperty описание свойства блока
type JSONProperty struct {
	Name   string   `json:"name"`
	Type   string   `json:"type"`
	Min    int      `json:"min"`
	Max    int      `json:"max"`
	Values []string `json:"values"`
}

// LoadJSONBlocks загружает все *.json из каталога в порядке имён файлов
func LoadJSONBlocks(dir string, r *Registry) ([]*Type, error) {
	matches, err := filepath.Glob(filepath.Join(dir, "*.json"))
	if err != nil {
		return nil, fmt.Errorf("ошибка поиска описаний блоков: %w", err)
	}
	sort.Strings(matches)

	types := make([]*Type, 0, len(matches))
	for _, path := range matches {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("ошибка чтения %s: %w", path, err)
		}
		t, err := LoadJSONBlock(data, r)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", filepath.Base(path), err)
		}
		types = append(types, t)
	}
	return types, nil
}

// LoadJSONBlock проверяет описание по схеме и регистрирует тип
func LoadJSONBlock(data []byte, r *Registry) (*Type, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var raw any
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("ошибка разбора JSON: %w", err)
	}
	if err := blockSchema.Validate(raw); err != nil {
		return nil, fmt.Errorf("описание блока не соответствует схеме: %w", err)
	}

	var def JSONBlock
	if err := json.Unmarshal(data, &def); err != nil {
		return nil, fmt.Errorf("ошибка разбора описания блока: %w", err)
	}
	t, err := def.toType()
	if err != nil {
		return nil, err
	}
	return r.Register(t)
}

func (d JSONBlock) toType() (Type, error) {
	t := Type{
		Name:        d.Name,
		Replaceable: d.Replaceable,
		Connectable: d.Connectable,
		RandomTicks: d.RandomTicks,
	}

	waterloggable := false
	for _, p := range d.Properties {
		switch {
		case p.Name == Waterlogged.Name() && p.Type == "bool":
			waterloggable = true
			t.Properties = append(t.Properties, Waterlogged)
		case p.Type == "bool":
			t.Properties = append(t.Properties, NewBool(p.Name))
		case p.Type == "int":
			if p.Max < p.Min {
				return Type{}, fmt.Errorf("свойство %s: max < min", p.Name)
			}
			t.Properties = append(t.Properties, NewInt(p.Name, p.Min, p.Max))
		case p.Type == "enum":
			if len(p.Values) == 0 {
				return Type{}, fmt.Errorf("свойство %s: нет значений", p.Name)
			}
			t.Properties = append(t.Properties, NewEnum(p.Name, p.Values...))
		}
	}

	if _, ok := stateCount(t.Properties); !ok {
		return Type{}, fmt.Errorf("блок %s: больше %d состояний: %w", d.Name, MaxStatesPerType, ErrTooManyStates)
	}

	s := shape.Block()
	if d.Boxes != nil {
		s = shape.Empty()
		for _, b := range d.Boxes {
			s = shape.Union(s, shape.Box(b[0], b[1], b[2], b[3], b[4], b[5]))
		}
	}
	t.Behavior.Shape = FixedShape(s)
	if d.Collision != nil && !*d.Collision {
		t.Behavior.CollisionShape = FixedShape(shape.Empty())
	}

	if d.RequiresSupport != "" {
		dir := vec.Down
		if d.SupportDirection != "" {
			dir, _ = vec.ParseDirection(d.SupportDirection)
		}
		t.Behavior.CanSurvive = SurviveOn(dir, parseSupport(d.RequiresSupport))
		// установка без опоры запрещена
		t.Behavior.Placement = func(typ *Type, ctx PlaceContext) *State {
			st := typ.DefaultState()
			if !st.CanSurvive(ctx.Level, ctx.Pos) {
				return nil
			}
			return st
		}
	}
	if waterloggable {
		t.Behavior = Waterloggable(t.Behavior)
	}
	return t, nil
}

func parseSupport(name string) shape.SupportType {
	switch strings.ToLower(name) {
	case "center":
		return shape.SupportCenter
	case "rigid":
		return shape.SupportRigid
	default:
		return shape.SupportFull
	}
}
