package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/annel0/blockworld/internal/world"
)

// EnvConfigPath переменная окружения с путём к конфигурации
const EnvConfigPath = "BLOCKWORLD_CONFIG"

// Config корневая структура конфигурации приложения
type Config struct {
	World     WorldConfig     `yaml:"world"`
	Storage   StorageConfig   `yaml:"storage"`
	Server    ServerConfig    `yaml:"server"`
	EventBus  EventBusConfig  `yaml:"eventbus"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// WorldConfig параметры симуляции
type WorldConfig struct {
	Seed              int64  `yaml:"seed"`
	MinY              int    `yaml:"min_y"`
	MaxY              int    `yaml:"max_y"`
	RandomTickSpeed   *int   `yaml:"random_tick_speed"`
	MaxUpdateDepth    int    `yaml:"max_update_depth"`
	MaxUpdatesPerPass int    `yaml:"max_updates_per_pass"`
	MaxTicksPerDrain  int    `yaml:"max_ticks_per_drain"`
	TickRate          int    `yaml:"tick_rate"`        // Игровых тиков в секунду
	Generator         string `yaml:"generator"`        // terrain | flat | none
	BlocksDir         string `yaml:"blocks_dir"`       // Каталог JSON-описаний блоков
	PreloadRadius     int    `yaml:"preload_radius"`   // Радиус предзагрузки в чанках
	AutosaveSeconds   int    `yaml:"autosave_seconds"` // Период автосохранения
}

// StorageConfig хранилище чанков
type StorageConfig struct {
	Path             string `yaml:"path"`
	CompressionLevel int    `yaml:"compression_level"`
	RedisURL         string `yaml:"redis_url"` // Пусто: без кеша
	RedisPassword    string `yaml:"redis_password"`
	RedisDB          int    `yaml:"redis_db"`
	CacheTTLSeconds  int    `yaml:"cache_ttl_seconds"`
}

// ServerConfig внешние интерфейсы
type ServerConfig struct {
	RESTPort     int    `yaml:"rest_port"`
	MetricsPort  int    `yaml:"metrics_port"`
	JWTSecret    string `yaml:"jwt_secret"`
	EnableAuth   bool   `yaml:"enable_auth"`
	EnableStream bool   `yaml:"enable_observer"`
}

// EventBusConfig шина событий изменений блоков
type EventBusConfig struct {
	URL       string `yaml:"url"` // Пусто: шина в памяти
	Stream    string `yaml:"stream"`
	Retention int    `yaml:"retention_hours"`
	Buffer    int    `yaml:"buffer"`
}

// TelemetryConfig трассировка OpenTelemetry
type TelemetryConfig struct {
	Enabled     bool    `yaml:"enabled"`
	ServiceName string  `yaml:"service_name"`
	Endpoint    string  `yaml:"endpoint"`
	SampleRatio float64 `yaml:"sample_ratio"`
}

// LoggingConfig уровни логирования
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// Default возвращает конфигурацию по умолчанию
func Default() *Config {
	speed := world.DefaultRandomTickSpeed
	return &Config{
		World: WorldConfig{
			MinY:              world.DefaultMinY,
			MaxY:              world.DefaultMaxY,
			RandomTickSpeed:   &speed,
			MaxUpdateDepth:    world.DefaultMaxUpdateDepth,
			MaxUpdatesPerPass: world.DefaultMaxUpdatesPerPass,
			MaxTicksPerDrain:  world.DefaultMaxTicksPerDrain,
			TickRate:          20,
			Generator:         "terrain",
			PreloadRadius:     2,
			AutosaveSeconds:   60,
		},
		Storage: StorageConfig{
			Path:            "data",
			CacheTTLSeconds: 600,
		},
		EventBus: EventBusConfig{
			Stream:    "BLOCKWORLD",
			Retention: 24,
			Buffer:    1024,
		},
		Telemetry: TelemetryConfig{
			ServiceName: "blockworld",
			SampleRatio: 1,
		},
		Logging: LoggingConfig{Level: "INFO"},
	}
}

// WorldParams переводит секцию world в параметры мира
func (c *WorldConfig) WorldParams() world.Config {
	cfg := world.Config{
		Seed:              c.Seed,
		MinY:              c.MinY,
		MaxY:              c.MaxY,
		RandomTickSpeed:   world.DefaultRandomTickSpeed,
		MaxUpdateDepth:    c.MaxUpdateDepth,
		MaxUpdatesPerPass: c.MaxUpdatesPerPass,
		MaxTicksPerDrain:  c.MaxTicksPerDrain,
	}
	if c.RandomTickSpeed != nil {
		cfg.RandomTickSpeed = *c.RandomTickSpeed
	}
	return cfg
}

// TickInterval длительность игрового тика
func (c *WorldConfig) TickInterval() time.Duration {
	rate := c.TickRate
	if rate <= 0 {
		rate = 20
	}
	return time.Second / time.Duration(rate)
}

// Validate проверяет согласованность значений
func (c *Config) Validate() error {
	if c.World.MinY > c.World.MaxY {
		return fmt.Errorf("world.min_y (%d) больше world.max_y (%d)", c.World.MinY, c.World.MaxY)
	}
	switch c.World.Generator {
	case "", "terrain", "flat", "none":
	default:
		return fmt.Errorf("неизвестный генератор %q", c.World.Generator)
	}
	if c.Server.EnableAuth && c.Server.JWTSecret == "" {
		return fmt.Errorf("server.enable_auth требует server.jwt_secret")
	}
	if c.Storage.CompressionLevel < 0 || c.Storage.CompressionLevel > 22 {
		return fmt.Errorf("storage.compression_level вне диапазона 0..22: %d", c.Storage.CompressionLevel)
	}
	return nil
}

// GetRESTPort возвращает REST API порт с поддержкой fallback значений
func (s *ServerConfig) GetRESTPort() int {
	return getPortWithEnvFallback(s.RESTPort, "BLOCKWORLD_REST_PORT", 8088)
}

// GetMetricsPort возвращает Prometheus метрики порт с поддержкой fallback значений
func (s *ServerConfig) GetMetricsPort() int {
	return getPortWithEnvFallback(s.MetricsPort, "BLOCKWORLD_METRICS_PORT", 2112)
}

// getPortWithEnvFallback возвращает порт с приоритетом: config -> env -> default
func getPortWithEnvFallback(configPort int, envVar string, defaultPort int) int {
	// Если порт задан в конфиге и больше 0, используем его
	if configPort > 0 {
		return configPort
	}

	// Пробуем прочитать из environment variable
	if envVal := os.Getenv(envVar); envVal != "" {
		if port, err := strconv.Atoi(envVal); err == nil && port > 0 {
			return port
		}
	}

	// Используем дефолтное значение
	return defaultPort
}

// Load читает YAML файл конфигурации поверх значений по умолчанию.
// Если path == "", путь берётся из BLOCKWORLD_CONFIG; если и он пуст,
// возвращаются значения по умолчанию.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		path = os.Getenv(EnvConfigPath)
		if path == "" {
			return cfg, nil
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения конфигурации %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("ошибка разбора конфигурации %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("некорректная конфигурация %s: %w", path, err)
	}
	return cfg, nil
}
