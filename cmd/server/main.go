package main

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/forgo/marquee/api/internal/authz"
	"github.com/forgo/marquee/api/internal/config"
	"github.com/forgo/marquee/api/internal/database"
	"github.com/forgo/marquee/api/internal/handler"
	"github.com/forgo/marquee/api/internal/jobs"
	"github.com/forgo/marquee/api/internal/messaging"
	"github.com/forgo/marquee/api/internal/metrics"
	"github.com/forgo/marquee/api/internal/middleware"
	"github.com/forgo/marquee/api/internal/notify"
	"github.com/forgo/marquee/api/internal/repository"
	"github.com/forgo/marquee/api/internal/service"
	"github.com/forgo/marquee/api/internal/storage"
	"github.com/forgo/marquee/api/migrations"
	"github.com/forgo/marquee/api/pkg/jwt"
)

func main() {
	// Initialize structured logging
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	// A missing .env is normal outside local development
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.Warn("failed to read .env", slog.String("error", err.Error()))
	}

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}
	if cfg.IsDevelopment() {
		logger = slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
			Level: slog.LevelDebug,
		}))
		slog.SetDefault(logger)
	}
	if !jwt.SecretStrongEnough(cfg.JWT.Secret) {
		slog.Warn("JWT_SECRET is shorter than 32 bytes")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Initialize database connection
	db := database.NewSurrealDB(database.Config{
		Host:      cfg.Database.Host,
		Port:      cfg.Database.Port,
		User:      cfg.Database.User,
		Password:  cfg.Database.Password,
		Namespace: cfg.Database.Namespace,
		Database:  cfg.Database.Database,
	})

	connectCtx, cancelConnect := context.WithTimeout(ctx, 30*time.Second)
	err = db.Connect(connectCtx)
	if err == nil {
		err = migrations.Apply(connectCtx, db)
	}
	cancelConnect()
	if err != nil {
		slog.Error("failed to prepare database", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer func() { _ = db.Close() }()

	slog.Info("connected to database",
		slog.String("host", cfg.Database.Host),
		slog.String("namespace", cfg.Database.Namespace),
		slog.String("database", cfg.Database.Database),
	)

	// Embedded image store
	imageStore, err := storage.Open(storage.Config{
		Path:     cfg.Storage.Path,
		InMemory: cfg.Storage.InMemory,
	})
	if err != nil {
		slog.Error("failed to open image store", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer func() { _ = imageStore.Close() }()

	// Initialize JWT service
	jwtService, err := jwt.NewService(jwt.Config{
		Secret:         cfg.JWT.Secret,
		Issuer:         cfg.JWT.Issuer,
		ExpirationMins: cfg.JWT.ExpirationMins,
	})
	if err != nil {
		slog.Error("failed to initialize JWT service", slog.String("error", err.Error()))
		os.Exit(1)
	}

	enforcer, err := authz.NewEnforcer()
	if err != nil {
		slog.Error("failed to initialize authorization", slog.String("error", err.Error()))
		os.Exit(1)
	}

	bus := messaging.NewBus(logger)

	// Initialize repositories
	userRepo := repository.NewUserRepository(db)
	eventRepo := repository.NewEventRepository(db)
	ticketRepo := repository.NewTicketRepository(db)
	tokenRepo := repository.NewTokenRepository(db)
	statsRepo := repository.NewStatsRepository(db)

	// Initialize services
	imageService := service.NewImageService(service.ImageServiceConfig{
		Store:    imageStore,
		MaxBytes: cfg.Storage.UploadMaxBytes,
		BaseURL:  cfg.Server.PublicBaseURL,
	})

	tokenService := service.NewTokenService(service.TokenServiceConfig{
		JWTService:      jwtService,
		TokenRepo:       tokenRepo,
		RefreshDuration: time.Duration(cfg.JWT.RefreshDays) * 24 * time.Hour,
	})

	activity := service.NewActivityTracker(bus, 0)

	authService := service.NewAuthService(service.AuthServiceConfig{
		UserRepo:     userRepo,
		TokenService: tokenService,
		Activity:     activity,
	})

	eventService := service.NewEventService(service.EventServiceConfig{
		EventRepo:  eventRepo,
		TicketRepo: ticketRepo,
		Images:     imageService,
		Publisher:  bus,
	})

	var payments service.PaymentProcessor = service.LocalPaymentProcessor{}
	if cfg.PaymentsEnabled() {
		payments = service.NewStripePaymentProcessor(cfg.Payments.StripeSecretKey, cfg.Payments.Currency)
		slog.Info("stripe payments enabled", slog.String("currency", cfg.Payments.Currency))
	}

	ticketService := service.NewTicketService(service.TicketServiceConfig{
		TicketRepo: ticketRepo,
		EventRepo:  eventRepo,
		UserRepo:   userRepo,
		Payments:   payments,
		Publisher:  bus,
		Currency:   cfg.Payments.Currency,
	})

	userService := service.NewUserService(service.UserServiceConfig{
		UserRepo:  userRepo,
		StatsRepo: statsRepo,
		Images:    imageService,
	})

	adminService := service.NewAdminService(service.AdminServiceConfig{
		UserRepo:     userRepo,
		EventRepo:    eventRepo,
		StatsRepo:    statsRepo,
		TokenService: tokenService,
		Images:       imageService,
	})

	seederService := service.NewSeederService(service.SeederServiceConfig{
		UserRepo:    userRepo,
		EventRepo:   eventRepo,
		TicketRepo:  ticketRepo,
		Environment: cfg.Server.Env,
	})

	// Domain event subscribers
	var mailer notify.Mailer = notify.NewLogMailer(logger)
	if cfg.MailEnabled() {
		mailer = notify.NewMailerSend(cfg.Mail.MailerSendAPIKey, cfg.Mail.FromEmail, cfg.Mail.FromName)
	}
	notifier := notify.NewTicketNotifier(mailer, cfg.Server.PublicBaseURL)

	subscriptions := map[string]messaging.HandlerFunc{
		messaging.TopicUserActive: messaging.Decode(func(ctx context.Context, e messaging.UserActive) error {
			return userRepo.TouchLastActive(ctx, e.UserID, e.At)
		}),
		messaging.TopicTicketPurchased: messaging.Decode(notifier.TicketPurchased),
		messaging.TopicEventDeleted: messaging.Decode(func(ctx context.Context, e messaging.EventDeleted) error {
			slog.InfoContext(ctx, "event deleted",
				slog.String("event_id", e.EventID),
				slog.String("deleted_by", e.DeletedBy),
				slog.Int("tickets", e.Tickets),
			)
			return nil
		}),
	}
	for topic, fn := range subscriptions {
		if err := bus.Subscribe(ctx, topic, fn); err != nil {
			slog.Error("failed to subscribe", slog.String("topic", topic), slog.String("error", err.Error()))
			os.Exit(1)
		}
	}

	// Background jobs
	supervisor := jobs.NewSupervisor(logger, jobs.SupervisorConfig{})
	supervisor.Add(jobs.NewEventStatusJob(eventService, cfg.Jobs.EventStatusInterval))
	supervisor.Add(jobs.NewTokenCleanupJob(tokenService, cfg.Jobs.TokenCleanupInterval))
	supervisor.Add(jobs.NewImageGCJob(imageStore, 0))
	jobsDone := supervisor.ServeBackground(ctx)

	// Middleware state
	rateLimiter := middleware.NewRateLimiter(middleware.RateLimitConfig{
		Rate:   int(math.Round(cfg.RateLimit.RequestsPerSecond * 60)),
		Window: time.Minute,
		Burst:  cfg.RateLimit.Burst,
	})
	defer rateLimiter.Stop()

	idempotencyStore := middleware.NewIdempotencyStore(middleware.IdempotencyConfig{
		TTL:     24 * time.Hour,
		Cleanup: time.Hour,
	})
	defer idempotencyStore.Stop()

	rt := &routes{
		auth: handler.NewAuthHandler(authService),
		events: handler.NewEventHandler(handler.EventHandlerConfig{
			Events:    eventService,
			Tickets:   ticketService,
			MaxUpload: cfg.Storage.UploadMaxBytes,
		}),
		users: handler.NewUserHandler(handler.UserHandlerConfig{
			Users:     userService,
			Tickets:   ticketService,
			Events:    eventService,
			Passwords: authService,
			MaxUpload: cfg.Storage.UploadMaxBytes,
		}),
		admin: handler.NewAdminHandler(handler.AdminHandlerConfig{
			Admin:   adminService,
			Events:  eventService,
			Tickets: ticketService,
			Seeder:  seederService,
		}),
		uploads:     handler.NewUploadHandler(imageService),
		health:      handler.NewHealthHandler(db, imageStore),
		metrics:     promhttp.Handler(),
		authn:       middleware.Auth(authService, userRepo, activity),
		permissions: enforcer,
		authLimit:   middleware.LimitByIP(cfg.RateLimit.AuthPerMinute, time.Minute),
		idempotency: idempotencyStore,
	}

	// Apply global middleware; metrics wraps the mux directly to see route patterns
	wrapped := middleware.Chain(
		rt.mux(),
		middleware.RequestID,
		middleware.Logger,
		middleware.Recovery,
		middleware.CORS(cfg.Server.AllowedOrigins),
		middleware.RateLimit(rateLimiter),
		middleware.Compress,
		metrics.Middleware,
	)

	// Create HTTP server
	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      wrapped,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  120 * time.Second,
	}

	// Start server in goroutine
	go func() {
		slog.Info("starting server",
			slog.String("port", cfg.Server.Port),
			slog.String("env", cfg.Server.Env),
			slog.Bool("payments", cfg.PaymentsEnabled()),
			slog.Bool("mail", cfg.MailEnabled()),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server error", slog.String("error", err.Error()))
			stop()
		}
	}()

	// Graceful shutdown
	<-ctx.Done()
	slog.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("server forced to shutdown", slog.String("error", err.Error()))
	}

	select {
	case <-jobsDone:
	case <-shutdownCtx.Done():
		slog.Warn("background jobs did not stop in time")
	}

	if err := bus.Close(); err != nil {
		slog.Error("failed to close message bus", slog.String("error", err.Error()))
	}

	slog.Info("server exited")
}
