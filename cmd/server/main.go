package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/annel0/blockworld/internal/api"
	"github.com/annel0/blockworld/internal/auth"
	"github.com/annel0/blockworld/internal/config"
	"github.com/annel0/blockworld/internal/eventbus"
	"github.com/annel0/blockworld/internal/logging"
	"github.com/annel0/blockworld/internal/observability"
	"github.com/annel0/blockworld/internal/sim"
	"github.com/annel0/blockworld/internal/storage"
	"github.com/annel0/blockworld/internal/transport/observer"
	"github.com/annel0/blockworld/internal/vec"
	"github.com/annel0/blockworld/internal/world"
	"github.com/annel0/blockworld/internal/world/block"
	"github.com/annel0/blockworld/internal/world/block/implementations"
)

// компоненты с собственными логгерами
var components = []string{"world", "storage", "api", "sim", "eventbus", "observer"}

func main() {
	configPath := flag.String("config", "", "путь к YAML-конфигурации (по умолчанию $"+config.EnvConfigPath+")")
	flag.Parse()

	if err := logging.InitDefaultLogger("server"); err != nil {
		log.Fatalf("❌ Ошибка инициализации логирования: %v", err)
	}
	defer logging.CloseDefaultLogger()

	if err := run(*configPath); err != nil {
		logging.Error("❌ %v", err)
		logging.CloseDefaultLogger()
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	applyLogLevel(cfg.Logging.Level)
	defer func() { _ = logging.GetLoggerManager().CloseAll() }()

	logging.Info("🧱 Запуск blockworld: seed=%d, генератор=%s, %d тиков/с", cfg.World.Seed, cfg.World.Generator, cfg.World.TickRate)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// === ТЕЛЕМЕТРИЯ ===
	if cfg.Telemetry.Enabled {
		shutdown, err := observability.InitTelemetry(ctx, observability.Settings{
			ServiceName: cfg.Telemetry.ServiceName,
			Endpoint:    cfg.Telemetry.Endpoint,
			SampleRatio: cfg.Telemetry.SampleRatio,
		})
		if err != nil {
			return fmt.Errorf("ошибка инициализации телеметрии: %w", err)
		}
		defer func() { _ = shutdown(context.Background()) }()
	}

	promReg := prometheus.NewRegistry()
	promReg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	// === РЕЕСТР БЛОКОВ ===
	reg := block.NewRegistry()
	if _, err := implementations.RegisterDefaults(reg); err != nil {
		return fmt.Errorf("ошибка регистрации блоков: %w", err)
	}
	if dir := cfg.World.BlocksDir; dir != "" {
		if _, err := os.Stat(dir); errors.Is(err, os.ErrNotExist) {
			logging.Warn("каталог блоков %s не найден", dir)
		} else {
			types, err := block.LoadJSONBlocks(dir, reg)
			if err != nil {
				return fmt.Errorf("ошибка загрузки JSON-блоков: %w", err)
			}
			logging.Info("загружено JSON-блоков: %d", len(types))
		}
	}
	reg.Freeze()
	logging.Info("реестр: %d типов, %d состояний", len(reg.Types()), reg.StateCount())

	// === ХРАНИЛИЩЕ ===
	ws, err := storage.NewWorldStorage(cfg.Storage.Path, storage.Options{CompressionLevel: cfg.Storage.CompressionLevel})
	if err != nil {
		return err
	}
	defer ws.Close()

	meta, found, err := ws.LoadMeta()
	if err != nil {
		return err
	}
	if found && meta.Seed != cfg.World.Seed {
		logging.Warn("seed из конфигурации (%d) заменён сохранённым (%d)", cfg.World.Seed, meta.Seed)
		cfg.World.Seed = meta.Seed
	}

	var store world.ChunkStore = ws
	if cfg.Storage.RedisURL != "" {
		codec, err := storage.NewCodec(cfg.Storage.CompressionLevel)
		if err != nil {
			return err
		}
		cache, err := storage.NewRedisCache(storage.CacheConfig{
			RedisURL:      cfg.Storage.RedisURL,
			RedisPassword: cfg.Storage.RedisPassword,
			RedisDB:       cfg.Storage.RedisDB,
			TTL:           time.Duration(cfg.Storage.CacheTTLSeconds) * time.Second,
		}, ws, codec)
		if err != nil {
			// без кеша мир работает напрямую с badger
			logging.Warn("Redis недоступен, кеш чанков отключён: %v", err)
			codec.Close()
		} else {
			defer cache.Close()
			store = cache
		}
	}

	// === ШИНА СОБЫТИЙ ===
	var bus eventbus.EventBus
	if cfg.EventBus.URL != "" {
		bus, err = eventbus.NewJetStreamBus(cfg.EventBus.URL, cfg.EventBus.Stream, time.Duration(cfg.EventBus.Retention)*time.Hour)
		if err != nil {
			return fmt.Errorf("ошибка подключения к NATS: %w", err)
		}
	} else {
		bus = eventbus.NewMemoryBus(cfg.EventBus.Buffer)
	}
	defer bus.Close()

	busMetrics := eventbus.NewMetricsExporter(bus, promReg)
	busMetrics.Start(5 * time.Second)
	defer busMetrics.Stop()

	if logging.GetEventBusLogger().Enabled(logging.TRACE) {
		if sub, err := eventbus.StartLoggingListener(ctx, bus); err == nil {
			defer sub.Unsubscribe()
		}
	}

	publisher := eventbus.NewBlockChangePublisher(bus, "blockworld", cfg.EventBus.Buffer)
	pubCtx, pubCancel := context.WithCancel(context.Background())
	defer pubCancel()
	pubDone := make(chan struct{})
	go func() {
		defer close(pubDone)
		publisher.Run(pubCtx)
	}()

	// === МИР ===
	opts := []world.Option{
		world.WithStore(store),
		world.WithMetrics(world.NewMetrics(promReg)),
		world.WithListener(publisher),
	}
	if gen := newGenerator(cfg.World, reg); gen != nil {
		opts = append(opts, world.WithGenerator(gen))
	}

	var obs *observer.Server
	if cfg.Server.EnableStream {
		obs = observer.NewServer(observer.Options{Buffer: cfg.EventBus.Buffer, Registerer: promReg})
		opts = append(opts, world.WithListener(obs))
	}

	w := world.New(reg, cfg.World.WorldParams(), opts...)
	if found {
		w.SetGameTime(meta.GameTime)
	}
	if err := preload(ctx, w, cfg.World); err != nil {
		return err
	}
	logging.Info("загружено чанков: %d, игровое время %d", len(w.LoadedChunks()), w.GameTime())

	// === СИМУЛЯЦИЯ ===
	simulation := sim.New(w, sim.Options{
		TickInterval:     cfg.World.TickInterval(),
		AutosaveInterval: time.Duration(cfg.World.AutosaveSeconds) * time.Second,
	})
	simErr := make(chan error, 1)
	go func() { simErr <- simulation.Run(ctx) }()

	// === REST API ===
	var signer *auth.Signer
	if cfg.Server.EnableAuth {
		if signer, err = auth.NewSigner(cfg.Server.JWTSecret, 0); err != nil {
			return fmt.Errorf("ошибка настройки JWT: %w", err)
		}
		if cfg.Server.JWTSecret == "" {
			// случайный ключ: других способов получить токен нет
			token, err := signer.Issue("admin", true)
			if err != nil {
				return err
			}
			logging.Warn("jwt_secret не задан, временный токен администратора: %s", token)
		}
	}

	restPort := cfg.Server.GetRESTPort()
	rest := api.NewRestServer(api.Config{
		Port:       fmt.Sprintf(":%d", restPort),
		Sim:        simulation,
		Registry:   reg,
		Signer:     signer,
		Registerer: promReg,
		Gatherer:   promReg,
	})
	if obs != nil {
		rest.Mount("/observer", obs.Handler())
	}
	restErr := make(chan error, 1)
	go func() { restErr <- rest.Start() }()

	metricsPort := cfg.Server.GetMetricsPort()
	metricsSrv := &http.Server{
		Addr:              fmt.Sprintf(":%d", metricsPort),
		Handler:           promhttp.HandlerFor(promReg, promhttp.HandlerOpts{}),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logging.Error("ошибка сервера метрик: %v", err)
		}
	}()

	logging.Info("✅ Все сервисы запущены")
	logging.Info("   🌐 REST API: http://localhost:%d/api", restPort)
	logging.Info("   ❤️  Health check: http://localhost:%d/health", restPort)
	logging.Info("   📊 Метрики: http://localhost:%d/metrics", metricsPort)
	if obs != nil {
		logging.Info("   👀 Наблюдатели: ws://localhost:%d/observer", restPort)
	}

	// === ОЖИДАНИЕ ЗАВЕРШЕНИЯ ===
	var runErr error
	select {
	case <-ctx.Done():
		logging.Info("📡 Получен сигнал завершения")
	case err := <-restErr:
		runErr = fmt.Errorf("REST API остановлен: %w", err)
	case err := <-simErr:
		runErr = fmt.Errorf("симуляция остановлена: %w", err)
	}

	// === GRACEFUL SHUTDOWN ===
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := rest.Stop(shutdownCtx); err != nil {
		logging.Error("ошибка остановки REST API: %v", err)
	}
	_ = metricsSrv.Shutdown(shutdownCtx)

	// Stop сохраняет мир; после него к миру обращаться безопасно
	simulation.Stop()
	if err := ws.SaveMeta(storage.WorldMeta{Seed: cfg.World.Seed, GameTime: w.GameTime()}); err != nil {
		logging.Error("ошибка сохранения метаданных мира: %v", err)
	}

	pubCancel()
	<-pubDone
	if d := publisher.Dropped(); d > 0 {
		logging.Warn("шина событий: отброшено изменений %d", d)
	}

	logging.Info("👋 Сервер остановлен на тике %d", w.GameTime())
	return runErr
}

func applyLogLevel(name string) {
	level := logging.ParseLevel(name)
	logging.Default().SetLevels(level, logging.TRACE)
	lm := logging.GetLoggerManager()
	for _, c := range components {
		lm.MustGetLogger(c)
		_ = lm.SetLogLevel(c, level, logging.TRACE)
	}
}

func newGenerator(cfg config.WorldConfig, reg *block.Registry) world.Generator {
	switch cfg.Generator {
	case "none":
		return nil
	case "flat":
		layers := make([]*block.State, 0, 4)
		for _, name := range []string{
			implementations.StoneName,
			implementations.DirtName,
			implementations.DirtName,
			implementations.GrassName,
		} {
			t, _ := reg.ByName(name)
			layers = append(layers, t.DefaultState())
		}
		return world.FlatGenerator{BaseY: 0, Layers: layers}
	default:
		return world.NewTerrainGenerator(cfg.Seed, reg)
	}
}

// preload загружает чанки в радиусе PreloadRadius вокруг начала координат
// от нижней границы мира до высоты 127.
func preload(ctx context.Context, w *world.World, cfg config.WorldConfig) error {
	if cfg.PreloadRadius < 0 {
		return nil
	}
	r := cfg.PreloadRadius * world.ChunkSize
	top := min(cfg.MaxY, 127)
	from := vec.Vec3{X: -r, Y: max(cfg.MinY, 0), Z: -r}
	to := vec.Vec3{X: r + world.ChunkSize - 1, Y: top, Z: r + world.ChunkSize - 1}
	if err := w.LoadArea(ctx, from, to); err != nil {
		return fmt.Errorf("ошибка предзагрузки мира: %w", err)
	}
	return nil
}
