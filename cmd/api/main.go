package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"hallbook/internal/api"
	"hallbook/internal/booking"
	"hallbook/internal/config"
	"hallbook/internal/database"
	"hallbook/internal/domain"
	"hallbook/internal/events"
	"hallbook/internal/google"
	"hallbook/internal/logging"
	"hallbook/internal/metrics"
	"hallbook/internal/models"
	"hallbook/internal/repository"
	"hallbook/internal/service"
	"hallbook/internal/worker"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v2"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("Fatal error: %v", err)
	}
}

// storage связывает хранилище бронирований и каталог залов выбранного драйвера.
type storage struct {
	bookings domain.BookingStore
	catalog  domain.HallAdmin
	db       *database.DB // nil для драйвера memory
}

func run() error {
	cfg, logger, closer, err := loadConfigAndLogger()
	if err != nil {
		return err
	}
	if closer != nil {
		defer (func() { _ = closer.Close() })()
	}

	halls, err := loadHalls(&logger)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := initStorage(ctx, cfg, halls, &logger)
	if err != nil {
		return err
	}
	if store.db != nil {
		defer store.db.Close()
		backups := database.NewBackupService(store.db, cfg.Backup, logging.Component(&logger, "backup"))
		go backups.Start(ctx)
	}

	redisClient := initRedis(ctx, cfg, &logger)
	if redisClient != nil {
		defer (func() { _ = repository.Close(redisClient) })()
	}

	var limiter domain.IntakeLimiter = repository.NewMemoryIntakeLimiter()
	catalog := store.catalog
	if redisClient != nil {
		limiter = repository.NewFailoverIntakeLimiter(repository.NewRedisIntakeLimiter(redisClient), limiter, &logger)
		catalog = repository.NewCachedHallCatalog(catalog, redisClient, time.Duration(cfg.Booking.CacheTTL)*time.Second)
	}

	bus := events.NewEventBus(logging.Component(&logger, "events"))
	if forwarder := initBroker(cfg, &logger); forwarder != nil {
		defer (func() { _ = forwarder.Close() })()
		forwarder.Attach(bus)
	}

	bookingService, err := newBookingService(cfg, store.bookings, catalog, limiter, bus, &logger)
	if err != nil {
		return err
	}
	hallService := service.NewHallService(catalog, bus, logging.Component(&logger, "halls"))

	initSheets(ctx, cfg, bookingService, bus, redisClient, &logger)

	if !cfg.API.Enabled {
		logger.Warn().Msg("API is disabled in config, but starting API application. Check your config.")
	}

	grpcServer, err := api.NewGRPCServer(&cfg.API, api.NewAvailabilityService(bookingService, hallService), &logger)
	if err != nil {
		logger.Error().Err(err).Msg("create grpc server")
		return err
	}

	httpServer := api.NewHTTPServer(cfg.API, bookingService, hallService, newIdentity(cfg, &logger), &logger)
	if store.db != nil {
		httpServer.AddReadinessCheck("database", store.db.PingContext)
	}
	if redisClient != nil {
		httpServer.AddReadinessCheck("redis", func(ctx context.Context) error {
			return repository.Ping(ctx, redisClient)
		})
	}

	startMetrics(ctx, cfg, &logger)

	return startServers(ctx, grpcServer, httpServer, cfg, &logger)
}

func loadConfigAndLogger() (*config.Config, zerolog.Logger, io.Closer, error) {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "configs/config.yaml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, zerolog.Logger{}, nil, fmt.Errorf("load config: %w", err)
	}

	baseLogger, closer, err := logging.New(cfg.Logging, cfg.App)
	if err != nil {
		return nil, zerolog.Logger{}, nil, fmt.Errorf("init logger: %w", err)
	}
	logger := baseLogger.With().Str("component", "api-main").Logger()

	return cfg, logger, closer, nil
}

func loadHalls(logger *zerolog.Logger) ([]models.Hall, error) {
	hallsPath := os.Getenv("HALLS_PATH")
	if hallsPath == "" {
		hallsPath = "configs/halls.yaml"
	}
	hallsData, err := os.ReadFile(hallsPath)
	if err != nil {
		logger.Error().Err(err).Str("halls_path", hallsPath).Msg("read halls")
		return nil, err
	}

	var hallsConfig struct {
		Halls []models.Hall `yaml:"halls"`
	}
	if err := yaml.Unmarshal(hallsData, &hallsConfig); err != nil {
		logger.Error().Err(err).Str("halls_path", hallsPath).Msg("parse halls")
		return nil, err
	}
	if err := config.ValidateHalls(hallsConfig.Halls); err != nil {
		return nil, fmt.Errorf("validate halls: %w", err)
	}

	logger.Info().Int("halls", len(hallsConfig.Halls)).Msg("hall catalog loaded")
	return hallsConfig.Halls, nil
}

func initStorage(ctx context.Context, cfg *config.Config, halls []models.Hall, logger *zerolog.Logger) (*storage, error) {
	if cfg.Database.Driver == database.DriverMemory {
		logger.Warn().Msg("memory driver: bookings are lost on restart")
		return &storage{
			bookings: repository.NewMemoryBookingStore(),
			catalog:  repository.NewMemoryHallCatalog(halls...),
		}, nil
	}

	db, err := database.Open(cfg.Database, logger)
	if err != nil {
		logger.Error().Err(err).Str("driver", cfg.Database.Driver).Msg("init database")
		return nil, err
	}
	if err := db.SeedHalls(ctx, halls); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("seed halls: %w", err)
	}
	return &storage{bookings: db, catalog: db, db: db}, nil
}

func initRedis(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) *redis.Client {
	if cfg.Redis.Address == "" {
		return nil
	}

	redisClient := repository.NewRedisClient(cfg.Redis)
	if err := repository.Ping(ctx, redisClient); err != nil {
		logger.Warn().Err(err).Msg("redis connection failed, continuing without redis")
		_ = repository.Close(redisClient)
		return nil
	}

	logger.Info().Str("addr", cfg.Redis.Address).Msg("redis connected")
	return redisClient
}

func initBroker(cfg *config.Config, logger *zerolog.Logger) *events.AMQPForwarder {
	if cfg.Broker.URL == "" {
		return nil
	}

	forwarder, err := events.NewAMQPForwarder(cfg.Broker.URL, cfg.Broker.Exchange, logging.Component(logger, "amqp"))
	if err != nil {
		logger.Warn().Err(err).Msg("rabbitmq init failed, continuing without broker")
		return nil
	}

	logger.Info().Str("exchange", cfg.Broker.Exchange).Msg("rabbitmq connected")
	return forwarder
}

func newBookingService(
	cfg *config.Config,
	store domain.BookingStore,
	catalog domain.HallCatalog,
	limiter domain.IntakeLimiter,
	bus *events.EventBus,
	logger *zerolog.Logger,
) (*service.BookingService, error) {
	loc, err := cfg.Booking.Location()
	if err != nil {
		return nil, err
	}

	return service.NewBookingService(service.BookingServiceDeps{
		Store:    store,
		Catalog:  catalog,
		Limiter:  limiter,
		EventBus: bus,
		Clock:    booking.SystemClock{Location: loc},
		Intake: booking.IntakeConfig{
			MinNameLength:  cfg.Booking.MinNameLength,
			PhonePattern:   cfg.Booking.PhonePattern,
			MaxBookingDays: cfg.Booking.Horizon(),
		},
		Limit: service.IntakeLimit{
			Limit:  cfg.Booking.IntakeLimit,
			Window: time.Duration(cfg.Booking.IntakeWindow) * time.Second,
		},
	}, logging.Component(logger, "bookings"))
}

// initSheets зеркалирует бронирования в Google Sheets: полная сверка при
// старте, дальше воркер по событиям.
func initSheets(
	ctx context.Context,
	cfg *config.Config,
	bookings *service.BookingService,
	bus *events.EventBus,
	redisClient *redis.Client,
	logger *zerolog.Logger,
) {
	if cfg.Google.GoogleCredentialsFile == "" || cfg.Google.BookingSpreadSheetID == "" {
		return
	}

	mirror, err := google.NewSheetsMirror(ctx, cfg.Google.GoogleCredentialsFile, cfg.Google.BookingSpreadSheetID)
	if err != nil {
		logger.Warn().Err(err).Msg("google sheets init failed, continuing without sheets")
		return
	}
	if err := mirror.TestConnection(ctx); err != nil {
		logger.Warn().Err(err).Msg("google sheets unreachable, continuing without sheets")
		return
	}

	views, err := bookings.Scoped(ctx, &models.User{Role: models.RoleAdmin})
	if err != nil {
		logger.Warn().Err(err).Msg("load bookings for sheets resync")
	} else {
		all := make([]models.Booking, 0, len(views))
		for _, v := range views {
			all = append(all, v.Booking)
		}
		if err := mirror.ReplaceBookings(ctx, all); err != nil {
			logger.Warn().Err(err).Msg("sheets resync failed")
		}
	}

	sheetsWorker := worker.NewSheetsWorker(mirror, redisClient, worker.RetryPolicy{}, logging.Component(logger, "sheets-worker"))
	bus.Subscribe(events.EventBookingCreated, sheetsWorker.HandleEvent)
	bus.Subscribe(events.EventBookingCancelled, sheetsWorker.HandleEvent)
	go sheetsWorker.Start(ctx)

	logger.Info().Int("bookings", len(views)).Msg("google sheets connected")
}

// newIdentity: JWT при включенной авторизации, иначе доверяем заголовкам шлюза.
func newIdentity(cfg *config.Config, logger *zerolog.Logger) domain.IdentityProvider {
	if cfg.API.Auth.Enabled {
		return api.NewTokenIdentity(cfg.API.Auth.JWTSecret)
	}
	logger.Warn().Msg("api auth disabled, trusting X-User-Id/X-User-Role headers")
	return api.HeaderIdentity{}
}

func startMetrics(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) {
	if !cfg.Monitoring.PrometheusEnabled {
		return
	}

	metrics.Register()
	port := cfg.Monitoring.PrometheusPort
	if port == 0 {
		port = 9090
	}
	go startMetricsServer(ctx, port, logger)
}

func startServers(
	ctx context.Context,
	grpcServer *api.GRPCServer,
	httpServer *api.HTTPServer,
	cfg *config.Config,
	logger *zerolog.Logger,
) error {
	go func() {
		if !cfg.API.GRPC.Enabled {
			return
		}
		if err := grpcServer.Serve(); err != nil {
			logger.Error().Err(err).Msg("grpc server stopped")
		}
	}()

	go func() {
		if !cfg.API.HTTP.Enabled {
			return
		}
		if err := httpServer.Start(); err != nil {
			logger.Error().Err(err).Msg("http server stopped")
		}
	}()

	logger.Info().Str("grpc_addr", grpcServer.Addr()).Int("http_port", cfg.API.HTTP.Port).Msg("API server started")

	<-ctx.Done()
	logger.Info().Msg("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	grpcServer.Shutdown(shutdownCtx)
	_ = httpServer.Shutdown(shutdownCtx)

	logger.Info().Msg("API server stopped")
	return nil
}

func startMetricsServer(ctx context.Context, port int, logger *zerolog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctxShutdown)
	}()
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error().Err(err).Msg("metrics server error")
	}
}
