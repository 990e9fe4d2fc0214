package world

// Config параметры симуляции мира
type Config struct {
	Seed int64

	// Вертикальные границы мира (включительно)
	MinY int
	MaxY int

	// RandomTickSpeed количество случайных тиков на чанк за игровой тик
	RandomTickSpeed int

	// MaxUpdateDepth глубина цепочки обновлений соседей
	MaxUpdateDepth int
	// MaxUpdatesPerPass предел посещений соседей за один проход распространения
	MaxUpdatesPerPass int
	// MaxTicksPerDrain предел выполненных тиков каждой очереди за игровой тик
	MaxTicksPerDrain int
}

// Значения по умолчанию
const (
	DefaultMinY              = -64
	DefaultMaxY              = 319
	DefaultRandomTickSpeed   = 3
	DefaultMaxUpdateDepth    = 512
	DefaultMaxUpdatesPerPass = 65536
	DefaultMaxTicksPerDrain  = 65536
)

// DefaultConfig возвращает конфигурацию по умолчанию
func DefaultConfig() Config {
	return Config{
		MinY:              DefaultMinY,
		MaxY:              DefaultMaxY,
		RandomTickSpeed:   DefaultRandomTickSpeed,
		MaxUpdateDepth:    DefaultMaxUpdateDepth,
		MaxUpdatesPerPass: DefaultMaxUpdatesPerPass,
		MaxTicksPerDrain:  DefaultMaxTicksPerDrain,
	}
}

// withDefaults заполняет нулевые поля значениями по умолчанию
func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.MinY == 0 && c.MaxY == 0 {
		c.MinY, c.MaxY = d.MinY, d.MaxY
	}
	if c.RandomTickSpeed < 0 {
		c.RandomTickSpeed = 0
	}
	if c.MaxUpdateDepth <= 0 {
		c.MaxUpdateDepth = d.MaxUpdateDepth
	}
	if c.MaxUpdatesPerPass <= 0 {
		c.MaxUpdatesPerPass = d.MaxUpdatesPerPass
	}
	if c.MaxTicksPerDrain < 0 {
		c.MaxTicksPerDrain = 0
	}
	return c
}
