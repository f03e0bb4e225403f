package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gespadel/gespadel/config"
	"github.com/gespadel/gespadel/db"
	"github.com/gespadel/gespadel/feed"
	"github.com/gespadel/gespadel/handlers"
	"github.com/gespadel/gespadel/live"
	"github.com/gespadel/gespadel/mirror"
	"github.com/gespadel/gespadel/repositories"
	api "github.com/gespadel/gespadel/routes"
	"github.com/gespadel/gespadel/services"
	"github.com/gespadel/gespadel/storage"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

const shutdownTimeout = 15 * time.Second

type store struct {
	players       repositories.PlayerRepository
	tournaments   repositories.TournamentRepository
	registrations repositories.RegistrationRepository
	tx            repositories.Transactor
	close         func() error
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", slog.Any("error", err))
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.SlogLevel()}))
	slog.SetDefault(logger)
	logger.Info("configuration loaded", slog.Int("port", cfg.ServerPort), slog.String("store", cfg.Store))

	if err := run(cfg, logger); err != nil {
		logger.Error("application failed", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("application exited")
}

func run(cfg *config.Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rules, err := config.LoadRules(cfg.RulesFile)
	if err != nil {
		return err
	}
	logger.Info("registration rules loaded",
		slog.Int("max_unavailable_slots", rules.MaxUnavailableSlots), slog.Any("slot_hours", rules.SlotHours))

	st, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := st.close(); err != nil {
			logger.Error("failed to close store", slog.Any("error", err))
		} else {
			logger.Info("store closed")
		}
	}()

	uploader, err := newUploader(ctx, cfg, logger)
	if err != nil {
		return err
	}

	// Change feed: the local broker always receives events; Redis fans
	// them out to other instances and Kafka keeps an audit trail.
	broker := feed.NewBroker()
	publishers := feed.MultiPublisher{broker}

	if cfg.RedisAddr != "" {
		client, err := feed.NewRedisClient(ctx, feed.RedisConfig{
			Addr:         cfg.RedisAddr,
			Password:     cfg.RedisPassword,
			DB:           cfg.RedisDB,
			Channel:      cfg.RedisChannel,
			DialTimeout:  5 * time.Second,
			ReadTimeout:  3 * time.Second,
			WriteTimeout: 3 * time.Second,
		})
		if err != nil {
			return err
		}
		defer client.Close()

		bus := feed.NewRedisBus(client, cfg.RedisChannel, uuid.NewString(), broker, logger)
		publishers = append(publishers, bus)
		go func() {
			if err := bus.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("redis feed stopped", slog.Any("error", err))
			}
		}()
		logger.Info("redis feed enabled", slog.String("channel", cfg.RedisChannel))
	}

	if len(cfg.KafkaBrokers) > 0 {
		sink, err := feed.NewKafkaSink(cfg.KafkaBrokers, cfg.KafkaTopic)
		if err != nil {
			return err
		}
		defer sink.Close()
		publishers = append(publishers, sink)
		logger.Info("kafka audit sink enabled", slog.String("topic", cfg.KafkaTopic))
	}

	// Mirror and websocket hub follow the local broker.
	view := mirror.New(logger)
	if err := view.Load(ctx, st.players, st.tournaments, st.registrations); err != nil {
		return err
	}
	broker.Subscribe(view.Handle)

	wsHub := live.NewHub(logger)
	go wsHub.Run(ctx)
	broker.Subscribe(wsHub.Handle)
	logger.Info("websocket hub started")

	go resyncMirror(ctx, view, st, cfg.MirrorResyncInterval, logger)

	identityService := services.NewIdentityService(st.players, publishers, logger)
	playerService := services.NewPlayerService(st.players, uploader, publishers, logger)
	tournamentService := services.NewTournamentService(st.tournaments, st.registrations, st.tx, uploader, publishers, logger)
	registrationService := services.NewRegistrationService(st.tournaments, st.registrations, st.players, st.tx, rules, publishers, logger)
	dashboardService := services.NewDashboardService(view)
	logger.Info("services initialized")

	playerHandler := handlers.NewPlayerHandler(identityService, playerService, registrationService)
	tournamentHandler := handlers.NewTournamentHandler(identityService, tournamentService, rules)
	registrationHandler := handlers.NewRegistrationHandler(identityService, registrationService)
	dashboardHandler := handlers.NewDashboardHandler(identityService, dashboardService)
	webSocketHandler := handlers.NewWebSocketHandler(wsHub, tournamentService, cfg.CORSAllowedOrigins, logger)

	router := chi.NewRouter()
	api.SetupRoutes(
		router,
		logger,
		[]byte(cfg.JWTSecretKey),
		cfg.CORSAllowedOrigins,
		playerHandler,
		tournamentHandler,
		registrationHandler,
		dashboardHandler,
		webSocketHandler,
	)
	if mem, ok := uploader.(*storage.MemoryUploader); ok {
		router.Get("/files/*", handlers.MemoryFilesHandler(mem))
	}
	logger.Info("routes configured")

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.ServerPort),
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 35 * time.Second,
		IdleTimeout:  120 * time.Second,
		ErrorLog:     slog.NewLogLogger(logger.Handler(), slog.LevelError),
	}

	serverErrors := make(chan error, 1)
	go func() {
		logger.Info("starting server", slog.String("address", server.Addr))
		serverErrors <- server.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		logger.Info("server stopped gracefully")
	case <-ctx.Done():
		logger.Info("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		logger.Info("shutting down server", slog.Duration("timeout", shutdownTimeout))
		if err := server.Shutdown(shutdownCtx); err != nil {
			closeErr := server.Close()
			return errors.Join(fmt.Errorf("graceful shutdown failed: %w", err), closeErr)
		}
		logger.Info("server shutdown complete")
	}
	return nil
}

func openStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*store, error) {
	if cfg.Store == config.StoreMemory {
		logger.Warn("using in-memory store, data is lost on exit")
		mem := repositories.NewMemoryStore()
		return &store{
			players:       mem.Players(),
			tournaments:   mem.Tournaments(),
			registrations: mem.Registrations(),
			tx:            mem,
			close:         func() error { return nil },
		}, nil
	}

	dbConn, err := db.Connect(cfg.DatabaseURL, 5*time.Second)
	if err != nil {
		return nil, err
	}
	if err := db.Migrate(ctx, dbConn); err != nil {
		return nil, errors.Join(err, dbConn.Close())
	}
	logger.Info("database connection established")

	return &store{
		players:       repositories.NewPostgresPlayerRepository(dbConn),
		tournaments:   repositories.NewPostgresTournamentRepository(dbConn),
		registrations: repositories.NewPostgresRegistrationRepository(dbConn),
		tx:            repositories.NewSQLTransactor(dbConn, logger),
		close:         dbConn.Close,
	}, nil
}

func newUploader(ctx context.Context, cfg *config.Config, logger *slog.Logger) (storage.FileUploader, error) {
	r2 := storage.CloudflareR2UploaderConfig{
		AccountID:       cfg.R2AccountID,
		AccessKeyID:     cfg.R2AccessKeyID,
		SecretAccessKey: cfg.R2SecretAccessKey,
		BucketName:      cfg.R2BucketName,
		PublicBaseURL:   cfg.R2PublicBaseURL,
	}
	if !r2.Complete() {
		logger.Warn("R2 is not configured, uploads are kept in memory")
		return storage.NewMemoryUploader(fmt.Sprintf("http://localhost:%d/files", cfg.ServerPort)), nil
	}
	uploader, err := storage.NewCloudflareR2Uploader(ctx, r2, logger)
	if err != nil {
		return nil, err
	}
	logger.Info("Cloudflare R2 uploader initialized")
	return uploader, nil
}

// resyncMirror reloads the mirror periodically so events missed while a
// peer was unreachable do not linger.
func resyncMirror(ctx context.Context, view *mirror.Mirror, st *store, interval time.Duration, logger *slog.Logger) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	logger.Info("mirror resync scheduler started", slog.Duration("interval", interval))

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := view.Load(ctx, st.players, st.tournaments, st.registrations); err != nil {
				logger.Error("mirror resync failed", slog.Any("error", err))
			}
		}
	}
}
