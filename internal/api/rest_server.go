package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/annel0/blockworld/internal/auth"
	"github.com/annel0/blockworld/internal/logging"
	"github.com/annel0/blockworld/internal/middleware"
	"github.com/annel0/blockworld/internal/sim"
	"github.com/annel0/blockworld/internal/world/block"
)

// ServiceName имя сервиса в трассировке и метриках
const ServiceName = "blockworld_api"

// RestServer отладочный и административный REST API мира
type RestServer struct {
	router   *gin.Engine
	server   *http.Server
	sim      *sim.Simulation
	registry *block.Registry
	signer   *auth.Signer
	metrics  *ServerMetrics
	logger   *logging.Logger
	port     string
}

// Config содержит конфигурацию для REST сервера
type Config struct {
	Port       string                // адрес для запуска сервера, например ":8088"
	Sim        *sim.Simulation       // владелец мира; все обращения идут через Do
	Registry   *block.Registry       // реестр блоков для разбора состояний
	Signer     *auth.Signer          // nil отключает авторизацию
	Registerer prometheus.Registerer // регистр HTTP-метрик; nil без регистрации
	Gatherer   prometheus.Gatherer   // источник /metrics; nil глобальный регистр
	Logger     *logging.Logger
}

// GenericResponse общий ответ API
type GenericResponse struct {
	Success bool        `json:"success"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

// NewRestServer создает новый REST API сервер
func NewRestServer(cfg Config) *RestServer {
	if cfg.Port == "" {
		cfg.Port = ":8088"
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.GetAPILogger()
	}

	gin.SetMode(gin.ReleaseMode)

	router := gin.New() // без стандартного logger
	router.Use(gin.Recovery())
	router.Use(otelgin.Middleware(ServiceName))
	router.Use(middleware.NewRequestLogger(cfg.Logger).Handler())

	promMw := middleware.NewPrometheusMiddleware(ServiceName, cfg.Registerer)
	router.Use(promMw.Handler())
	promMw.RegisterMetricsEndpoint(router, cfg.Gatherer)

	rs := &RestServer{
		router:   router,
		sim:      cfg.Sim,
		registry: cfg.Registry,
		signer:   cfg.Signer,
		metrics:  NewServerMetrics(),
		logger:   cfg.Logger,
		port:     cfg.Port,
	}
	rs.setupRoutes()
	rs.server = &http.Server{
		Addr:              cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return rs
}

// setupRoutes настраивает маршруты REST API
func (rs *RestServer) setupRoutes() {
	rs.router.Use(func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, Authorization")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	})

	rs.router.GET("/health", rs.handleHealth)

	api := rs.router.Group("/api")
	if rs.signer != nil {
		api.Use(rs.jwtMiddleware(), rs.adminMiddleware())
	}

	blocks := api.Group("/blocks/:x/:y/:z")
	{
		blocks.GET("", rs.handleGetBlock)
		blocks.PUT("", rs.handleSetBlock)
		blocks.POST("/place", rs.handlePlaceBlock)
		blocks.POST("/destroy", rs.handleDestroyBlock)
	}

	api.GET("/ticks", rs.handleGetTicks)
	api.POST("/ticks", rs.handleScheduleTick)

	api.GET("/chunks", rs.handleGetChunks)
	chunks := api.Group("/chunks/:x/:y/:z")
	{
		chunks.GET("", rs.handleGetChunk)
		chunks.POST("/load", rs.handleLoadChunk)
		chunks.POST("/unload", rs.handleUnloadChunk)
	}

	api.GET("/registry", rs.handleGetRegistry)

	simGroup := api.Group("/sim")
	{
		simGroup.GET("", rs.handleSimStatus)
		simGroup.POST("/step", rs.handleSimStep)
		simGroup.POST("/pause", rs.handleSimPause)
		simGroup.POST("/resume", rs.handleSimResume)
		simGroup.POST("/save", rs.handleSimSave)
	}
}

// Mount подключает внешний обработчик GET (например, поток наблюдателей).
// Маршрут не проходит через JWT-проверку группы /api.
func (rs *RestServer) Mount(path string, h http.Handler) {
	rs.router.GET(path, gin.WrapH(h))
}

// Handler возвращает http.Handler сервера (для тестов и встраивания)
func (rs *RestServer) Handler() http.Handler { return rs.router }

// Start запускает HTTP-сервер и блокируется до остановки
func (rs *RestServer) Start() error {
	rs.logger.Info("REST API слушает %s", rs.port)
	if err := rs.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Stop корректно останавливает сервер
func (rs *RestServer) Stop(ctx context.Context) error {
	return rs.server.Shutdown(ctx)
}

func (rs *RestServer) handleHealth(c *gin.Context) {
	data := gin.H{
		"uptime":    rs.metrics.GetUptime(),
		"memory_mb": rs.metrics.GetMemoryUsage(),
		"memory":    rs.metrics.GetDetailedMemoryStats(),
		"paused":    rs.sim.Paused(),
		"game_time": rs.sim.Stats().GameTime,
	}
	if cpu, err := rs.metrics.GetCPUUsage(); err == nil {
		data["cpu_percent"] = cpu
	}
	if hostMem, err := rs.metrics.GetHostMemoryPercent(); err == nil {
		data["host_memory_percent"] = hostMem
	}

	status := "ok"
	select {
	case <-rs.sim.Done():
		status = "stopped"
	default:
	}
	data["status"] = status

	code := http.StatusOK
	if status != "ok" {
		code = http.StatusServiceUnavailable
	}
	c.JSON(code, GenericResponse{Success: status == "ok", Data: data})
}
