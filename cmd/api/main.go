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

	"halltime/internal/api"
	"halltime/internal/config"
	"halltime/internal/database"
	"halltime/internal/domain"
	"halltime/internal/events"
	"halltime/internal/google"
	"halltime/internal/logging"
	"halltime/internal/metrics"
	"halltime/internal/models"
	"halltime/internal/notify"
	"halltime/internal/repository"
	"halltime/internal/service"
	"halltime/internal/worker"

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

func run() error {
	cfg, logger, closer, err := loadConfigAndLogger()
	if err != nil {
		return err
	}
	if closer != nil {
		defer (func() { _ = closer.Close() })()
	}

	db, err := initDatabase(cfg, &logger)
	if err != nil {
		return err
	}
	defer db.Close()

	redisClient := initRedis(cfg, &logger)
	if redisClient != nil {
		defer redisClient.Close()
	}

	slotStore := initSlotStore(redisClient, &logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	eventBus := events.NewEventBus()
	initTelegram(cfg, eventBus, &logger)

	syncWorker := initSheetsWorker(ctx, cfg, db, redisClient, &logger)

	if cfg.Backup.Enabled {
		backup := database.NewBackupService(cfg.Database.Path, cfg.Backup, &logger)
		go backup.Start(ctx)
	}

	startMetrics(ctx, cfg, &logger)

	clock := domain.ClockFunc(time.Now)
	hallService := service.NewHallService(db, &logger)
	availabilityService, err := service.NewAvailabilityService(db, clock, cfg.Booking.Timezone, &logger)
	if err != nil {
		return fmt.Errorf("init availability service: %w", err)
	}
	bookingService := service.NewBookingService(
		db,
		eventBus,
		syncWorker,
		slotStore,
		slotStore,
		clock,
		time.Duration(cfg.Booking.SlotLengthMinutes)*time.Minute,
		&logger,
	)

	httpServer := api.NewHTTPServer(cfg.API, hallService, availabilityService, bookingService, &logger)

	return startServer(ctx, httpServer, cfg, &logger)
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

// loadHalls merges the halls listed inline in the config with the optional
// halls file.
func loadHalls(cfg *config.Config, logger *zerolog.Logger) ([]models.Hall, error) {
	halls := append([]models.Hall(nil), cfg.Halls...)

	hallsPath := os.Getenv("HALLS_PATH")
	if hallsPath == "" {
		hallsPath = cfg.HallsFile
	}
	if hallsPath != "" {
		data, err := os.ReadFile(hallsPath)
		if err != nil {
			logger.Error().Err(err).Str("halls_path", hallsPath).Msg("read halls")
			return nil, err
		}

		var hallsConfig struct {
			Halls []models.Hall `yaml:"halls"`
		}
		if err := yaml.Unmarshal(data, &hallsConfig); err != nil {
			logger.Error().Err(err).Str("halls_path", hallsPath).Msg("parse halls")
			return nil, err
		}
		halls = append(halls, hallsConfig.Halls...)
	}

	if err := config.ValidateHalls(halls); err != nil {
		return nil, err
	}
	return halls, nil
}

func initDatabase(cfg *config.Config, logger *zerolog.Logger) (*database.DB, error) {
	db, err := database.NewDB(cfg.Database.Path, logger)
	if err != nil {
		logger.Error().Err(err).Str("db_path", cfg.Database.Path).Msg("init database")
		return nil, err
	}

	halls, err := loadHalls(cfg, logger)
	if err != nil {
		db.Close()
		return nil, err
	}
	if len(halls) > 0 {
		if err := db.SeedHalls(context.Background(), halls); err != nil {
			db.Close()
			return nil, err
		}
		logger.Info().Int("halls", len(halls)).Msg("halls seeded")
	}
	return db, nil
}

func initRedis(cfg *config.Config, logger *zerolog.Logger) *redis.Client {
	if !cfg.Redis.Enabled || cfg.Redis.Address == "" {
		return nil
	}

	redisClient := repository.NewRedisClient(cfg.Redis)
	if _, err := redisClient.Ping(context.Background()).Result(); err != nil {
		logger.Warn().Err(err).Msg("redis connection failed, continuing without redis")
		return nil
	}

	logger.Info().Str("addr", cfg.Redis.Address).Msg("redis connected")
	return redisClient
}

// initSlotStore builds the slot cache and rate limiter: Redis with an
// in-memory fallback when Redis is configured, memory only otherwise.
func initSlotStore(redisClient *redis.Client, logger *zerolog.Logger) repository.SlotStore {
	memory := repository.NewMemorySlotStore()
	if redisClient == nil {
		return memory
	}
	return repository.NewFailoverSlotStore(repository.NewRedisSlotStore(redisClient), memory, logger)
}

func initTelegram(cfg *config.Config, bus *events.EventBus, logger *zerolog.Logger) {
	if !cfg.Telegram.Enabled {
		return
	}

	notifier, err := notify.NewTelegramNotifier(cfg.Telegram.BotToken, cfg.Telegram.Chats, logger)
	if err != nil {
		logger.Warn().Err(err).Msg("telegram init failed, continuing without notifications")
		return
	}
	notifier.Register(bus)
	logger.Info().Int("chats", len(cfg.Telegram.Chats)).Msg("telegram notifications enabled")
}

func initSheetsWorker(ctx context.Context, cfg *config.Config, db *database.DB, redisClient *redis.Client, logger *zerolog.Logger) domain.SyncWorker {
	if !cfg.Google.Enabled {
		return nil
	}

	sheetsService, err := google.NewSheetsService(cfg.Google.GoogleCredentialsFile, cfg.Google.ScheduleSpreadSheetID)
	if err != nil {
		logger.Warn().Err(err).Msg("google sheets init failed, continuing without schedule mirror")
		return nil
	}
	logger.Info().Msg("google sheets connected")

	sheetsWorker := worker.NewSheetsWorker(db, sheetsService, redisClient, worker.RetryPolicy{}, nil)
	go sheetsWorker.Start(ctx)
	return sheetsWorker
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

func startServer(ctx context.Context, httpServer *api.HTTPServer, cfg *config.Config, logger *zerolog.Logger) error {
	go func() {
		if err := httpServer.Start(); err != nil {
			logger.Error().Err(err).Msg("http server stopped")
		}
	}()

	logger.Info().Int("http_port", cfg.API.HTTP.Port).Msg("API server started")

	<-ctx.Done()
	logger.Info().Msg("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_ = httpServer.Shutdown(shutdownCtx)

	logger.Info().Msg("API server stopped")
	return nil
}

func startMetricsServer(ctx context.Context, port int, logger *zerolog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: mux}
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
