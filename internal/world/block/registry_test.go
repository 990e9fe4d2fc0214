package block

import (
	"errors"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/annel0/blockworld/internal/vec"
	"github.com/annel0/blockworld/internal/world/shape"
)

// mockLevel простая реализация ShapeLevel для тестов
type mockLevel struct {
	reg        *Registry
	blocks     map[vec.Vec3]*State
	fluidTicks map[vec.Vec3][]FluidID
}

func newMockLevel(reg *Registry) *mockLevel {
	return &mockLevel{
		reg:        reg,
		blocks:     make(map[vec.Vec3]*State),
		fluidTicks: make(map[vec.Vec3][]FluidID),
	}
}

func (m *mockLevel) Get(pos vec.Vec3) *State {
	if s, ok := m.blocks[pos]; ok {
		return s
	}
	return m.reg.Air()
}

func (m *mockLevel) FluidState(pos vec.Vec3) FluidState { return m.Get(pos).FluidState() }
func (m *mockLevel) IsLoaded(vec.Vec3) bool             { return true }
func (m *mockLevel) Registry() *Registry                { return m.reg }
func (m *mockLevel) GameTime() int64                    { return 0 }

func (m *mockLevel) ScheduleBlockTick(vec.Vec3, *Type, int) {}
func (m *mockLevel) HasBlockTick(vec.Vec3, *Type) bool      { return false }

func (m *mockLevel) ScheduleFluidTick(pos vec.Vec3, f FluidID, _ int) {
	m.fluidTicks[pos] = append(m.fluidTicks[pos], f)
}

func (m *mockLevel) HasFluidTick(pos vec.Vec3, f FluidID) bool {
	for _, id := range m.fluidTicks[pos] {
		if id == f {
			return true
		}
	}
	return false
}

var (
	testAge   = NewInt("age", 0, 3)
	testColor = NewEnum("color", "red", "green", "blue")
)

func TestRegistry_Builtins(t *testing.T) {
	reg := NewRegistry()

	air, ok := reg.ByName(AirName)
	require.True(t, ok)
	assert.Equal(t, ID(0), air.ID())
	assert.True(t, reg.Air().IsAir())
	assert.True(t, reg.VoidAir().IsAir())
	assert.NotSame(t, reg.Air(), reg.VoidAir())
	assert.True(t, reg.Air().Shape().IsEmpty())
	assert.True(t, reg.Fluid(FluidEmpty) != nil)
}

func TestRegistry_Errors(t *testing.T) {
	reg := NewRegistry()
	_, err := reg.Register(Type{Name: "stone"})
	require.NoError(t, err)

	_, err = reg.Register(Type{Name: "stone"})
	assert.True(t, errors.Is(err, ErrDuplicateName), "ожидалась ошибка дубликата, получено %v", err)

	_, err = reg.Register(Type{Name: "twice", Properties: []Property{Lit, Lit}})
	assert.Error(t, err)

	reg.Freeze()
	_, err = reg.Register(Type{Name: "late"})
	assert.True(t, errors.Is(err, ErrFrozen))
	assert.True(t, errors.Is(reg.RegisterFluid(Fluid{ID: FluidLava, Name: "lava"}), ErrFrozen))
}

func TestState_Interning(t *testing.T) {
	reg := NewRegistry()
	typ := reg.MustRegister(Type{
		Name:       "thing",
		Properties: []Property{Lit, testAge, testColor},
		Default:    func(s *State) *State { return s.WithEnum(testColor, "green") },
	})

	assert.Len(t, typ.Definition().States(), 2*4*3)
	def := typ.DefaultState()
	assert.Equal(t, "green", def.Enum(testColor))
	assert.Equal(t, "thing[lit=false,age=0,color=green]", def.String())

	a := def.WithBool(Lit, true).WithInt(testAge, 2)
	b := def.WithInt(testAge, 2).WithBool(Lit, true)
	assert.Same(t, a, b, "одинаковые значения свойств дают один и тот же указатель")
	assert.True(t, a.Bool(Lit))
	assert.Equal(t, 2, a.Int(testAge))
	assert.Same(t, def, a.WithBool(Lit, false).WithInt(testAge, 0))

	assert.Same(t, a, a.WithInt(testAge, 99), "значение вне диапазона не меняет состояние")
	assert.Same(t, a, a.WithBool(Waterlogged, true), "чужое свойство не меняет состояние")

	byID, ok := reg.StateByID(a.ID())
	require.True(t, ok)
	assert.Same(t, a, byID)

	seen := make(map[StateID]bool)
	for _, s := range typ.Definition().States() {
		assert.False(t, seen[s.ID()], "идентификаторы состояний уникальны")
		seen[s.ID()] = true
	}
}

func TestRegistry_ParseState(t *testing.T) {
	reg := NewRegistry()
	reg.MustRegister(Type{Name: "thing", Properties: []Property{Lit, testAge}})

	s, err := reg.ParseState("thing[age=3, lit=true]")
	require.NoError(t, err)
	assert.Equal(t, "thing[lit=true,age=3]", s.String())

	s, err = reg.ParseState("air")
	require.NoError(t, err)
	assert.Same(t, reg.Air(), s)

	_, err = reg.ParseState("nothing")
	assert.ErrorIs(t, err, ErrUnknownBlock)
	_, err = reg.ParseState("thing[age=9]")
	assert.ErrorIs(t, err, ErrInvalidState)
	_, err = reg.ParseState("thing[size=1]")
	assert.ErrorIs(t, err, ErrInvalidState)
	_, err = reg.ParseState("thing[lit=true")
	assert.ErrorIs(t, err, ErrInvalidState)
}

func TestFreeze_CachesShapes(t *testing.T) {
	reg := NewRegistry()
	calls := 0
	typ := reg.MustRegister(Type{
		Name: "slab",
		Behavior: Behavior{Shape: func(*State) shape.Shape {
			calls++
			return shape.Box(0, 0, 0, 16, 8, 16)
		}},
	})
	reg.Freeze()
	after := calls
	for i := 0; i < 5; i++ {
		_ = typ.DefaultState().Shape()
		_ = typ.DefaultState().CollisionShape()
	}
	assert.Equal(t, after, calls, "после Freeze формы берутся из кеша")
	assert.False(t, typ.DefaultState().IsFaceSturdy(vec.Up, shape.SupportCenter))
	assert.True(t, typ.DefaultState().IsFaceSturdy(vec.Down, shape.SupportFull))
}

func TestWaterloggable(t *testing.T) {
	reg := NewRegistry()
	water := reg.MustRegister(Type{
		Name:        "water",
		Replaceable: true,
		Behavior: Behavior{
			Shape:      emptyShape,
			FluidState: func(*State) FluidState { return SourceOf(FluidWater) },
		},
	})
	require.NoError(t, reg.RegisterFluid(Fluid{
		ID: FluidWater, Name: "water", TickDelay: 5,
		Tick: func(Level, vec.Vec3, FluidState, *rand.Rand) {},
	}))
	post := reg.MustRegister(Type{
		Name:       "post",
		Properties: []Property{Waterlogged},
		Behavior:   Waterloggable(Behavior{Shape: FixedShape(shape.Column(4, 0, 16))}),
	})
	reg.Freeze()

	level := newMockLevel(reg)
	pos := vec.Vec3{X: 1}
	level.blocks[pos] = water.DefaultState()

	placed := post.StateForPlacement(PlaceContext{Pos: pos, Level: level})
	require.NotNil(t, placed)
	assert.True(t, placed.Bool(Waterlogged), "установка в источник воды затапливает блок")
	assert.Equal(t, SourceOf(FluidWater), placed.FluidState())

	dry := post.StateForPlacement(PlaceContext{Pos: vec.Vec3{X: 5}, Level: level})
	assert.False(t, dry.Bool(Waterlogged))
	assert.True(t, dry.FluidState().IsEmpty())

	placed.UpdateShape(level, pos, vec.Up, pos.Above(), reg.Air(), rand.New(rand.NewSource(1)))
	assert.True(t, level.HasFluidTick(pos, FluidWater), "затопленный блок планирует тик воды")
	dry.UpdateShape(level, vec.Vec3{X: 5}, vec.Up, vec.Vec3{X: 5, Y: 1}, reg.Air(), rand.New(rand.NewSource(1)))
	assert.False(t, level.HasFluidTick(vec.Vec3{X: 5}, FluidWater))
}

func TestSurviveOn(t *testing.T) {
	reg := NewRegistry()
	stone := reg.MustRegister(Type{Name: "stone"})
	torch := reg.MustRegister(Type{
		Name:     "torch",
		Behavior: Behavior{CanSurvive: SurviveOn(vec.Down, shape.SupportCenter)},
	})
	reg.Freeze()

	level := newMockLevel(reg)
	pos := vec.Vec3{Y: 1}
	assert.False(t, torch.DefaultState().CanSurvive(level, pos))
	level.blocks[vec.Vec3{}] = stone.DefaultState()
	assert.True(t, torch.DefaultState().CanSurvive(level, pos))
}

func TestLoadJSONBlocks(t *testing.T) {
	dir, err := os.MkdirTemp("", "blocks_test")
	require.NoError(t, err)
	defer os.RemoveAll(dir)

	write := func(name, body string) {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644))
	}
	write("a_candle.json", `{
		"name": "candle",
		"properties": [
			{"name": "lit", "type": "bool"},
			{"name": "candles", "type": "int", "min": 1, "max": 4},
			{"name": "waterlogged", "type": "bool"}
		],
		"boxes": [[7, 0, 7, 9, 6, 9]],
		"requires_support": "center"
	}`)
	write("b_mesh.json", `{"name": "mesh", "collision": false, "connectable": true}`)

	reg := NewRegistry()
	types, err := LoadJSONBlocks(dir, reg)
	require.NoError(t, err)
	require.Len(t, types, 2)

	candle := types[0]
	assert.Equal(t, "candle", candle.Name)
	assert.Len(t, candle.Definition().States(), 2*4*2)
	assert.True(t, candle.DefaultState().Has(Waterlogged))
	assert.Equal(t, shape.Box(7, 0, 7, 9, 6, 9), candle.DefaultState().Shape())

	level := newMockLevel(reg)
	assert.Nil(t, candle.StateForPlacement(PlaceContext{Pos: vec.Vec3{Y: 1}, Level: level}), "без опоры установка запрещена")

	mesh := types[1]
	assert.True(t, mesh.Connectable)
	assert.True(t, mesh.DefaultState().CollisionShape().IsEmpty())
	assert.True(t, mesh.DefaultState().Shape().IsFull())

	write("c_bad.json", `{"name": "Bad Name", "boxes": [[0, 0, 0, 17, 1, 1]]}`)
	_, err = LoadJSONBlocks(dir, NewRegistry())
	assert.Error(t, err, "описание, нарушающее схему, должно отклоняться")
}

func TestLoadJSONBlock_TooManyStates(t *testing.T) {
	var props []string
	for i := 0; i < 16; i++ {
		props = append(props, fmt.Sprintf(`{"name": "p%d", "type": "int", "min": 0, "max": 255}`, i))
	}
	body := `{"name": "huge", "properties": [` + strings.Join(props, ",") + `]}`

	reg := NewRegistry()
	_, err := LoadJSONBlock([]byte(body), reg)
	assert.True(t, errors.Is(err, ErrTooManyStates), "получено %v", err)
	_, ok := reg.ByName("huge")
	assert.False(t, ok)

	_, err = reg.Register(Type{Name: "wide", Properties: []Property{NewInt("a", 0, 63), NewInt("b", 0, 64)}})
	assert.True(t, errors.Is(err, ErrTooManyStates))
	_, err = reg.Register(Type{Name: "edge", Properties: []Property{NewInt("a", 0, 63), NewInt("b", 0, 63)}})
	assert.NoError(t, err)
}
