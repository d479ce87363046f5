package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "smartcrm/docs"
	"smartcrm/internal/bootstrap"
	"smartcrm/internal/config"
	"smartcrm/internal/database"
	"smartcrm/internal/handlers"
	"smartcrm/internal/logger"
	"smartcrm/internal/middleware"
	"smartcrm/internal/notify"
	"smartcrm/internal/pdf"
	"smartcrm/internal/repositories"
	"smartcrm/internal/routes"
	"smartcrm/internal/scheduler"
	"smartcrm/internal/services"
	"smartcrm/internal/session"
	"smartcrm/internal/storage"
)

const (
	defaultConfigPath = "config/config.yaml"
	fontPath          = "assets/fonts/DejaVuSans.ttf"
	shutdownTimeout   = 15 * time.Second
)

func Run() {
	cfgPath := os.Getenv("SMARTCRM_CONFIG")
	if cfgPath == "" {
		if _, err := os.Stat(defaultConfigPath); err == nil {
			cfgPath = defaultConfigPath
		}
	}
	cfg := config.MustLoad(cfgPath)
	logger.Init(cfg.LogLevel, cfg.Server.Mode == gin.DebugMode)
	gin.SetMode(cfg.Server.Mode)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// === DB ===
	db, err := database.Open(cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("Ошибка подключения к БД")
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error().Err(err).Msg("Ошибка закрытия БД")
		}
	}()
	if err := database.Migrate(ctx, db); err != nil {
		log.Fatal().Err(err).Msg("migration failed")
	}

	// === Sessions & files ===
	sessions, closeSessions := newSessionStore(ctx, cfg)
	defer closeSessions()

	files, err := storage.New(ctx, cfg.Storage)
	if err != nil {
		log.Fatal().Err(err).Str("driver", cfg.Storage.Driver).Msg("storage init failed")
	}

	// === Repos ===
	userRepo := repositories.NewUserRepository(db)
	permRepo := repositories.NewPermissionRepository(db)
	designationRepo := repositories.NewDesignationRepository(db)
	settingsRepo := repositories.NewSettingsRepository(db)
	leadRepo := repositories.NewLeadRepository(db)
	reportRepo := repositories.NewReportRepository(db)
	targetRepo := repositories.NewTargetRepository(db)
	dashRepo := repositories.NewDashboardRepository(db)
	auditRepo := repositories.NewAuditRepository(db)

	// === Notifications ===
	var messenger notify.Messenger
	if tg := notify.NewTelegramService(cfg.Telegram.BotToken); tg != nil {
		messenger = tg
	}
	mail := notify.NewEmailService(
		cfg.Email.SMTPHost,
		cfg.Email.SMTPPort,
		cfg.Email.SMTPUser,
		cfg.Email.SMTPPassword,
		cfg.Email.FromEmail,
	)
	notifier := notify.New(mail, messenger)

	// === Services ===
	settingsService := services.NewSettingsService(settingsRepo)
	permissionService := services.NewPermissionService(db, userRepo, permRepo)
	authService := services.NewAuthService(userRepo, permissionService, sessions, cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)
	userService := services.NewUserService(userRepo, permRepo, designationRepo, sessions, files, notifier)
	leadService := services.NewLeadService(db, leadRepo, reportRepo, userRepo, settingsService, files,
		pdf.NewDossierGenerator(fontPath), notifier)
	reportService := services.NewReportService(reportRepo, leadRepo, files)
	targetService := services.NewTargetService(targetRepo, userRepo)
	dashboardService := services.NewDashboardService(dashRepo, leadRepo, targetRepo, settingsService)
	auditService := services.NewAuditService(auditRepo)

	if err := bootstrap.NewSeeder(db, userRepo, permRepo, settingsService).Run(ctx, cfg.Bootstrap); err != nil {
		log.Fatal().Err(err).Msg("seed failed")
	}

	// === Handlers ===
	authHandler := handlers.NewAuthHandler(authService, userService, auditService, cfg.Auth.CookieSecure)
	userHandler := handlers.NewUserHandler(userService, auditService)
	permissionHandler := handlers.NewPermissionHandler(permissionService, auditService)
	settingsHandler := handlers.NewSettingsHandler(settingsService, auditService)
	leadHandler := handlers.NewLeadHandler(leadService, auditService)
	reportHandler := handlers.NewReportHandler(leadHandler, reportService, auditService)
	dashboardHandler := handlers.NewDashboardHandler(dashboardService)
	targetHandler := handlers.NewTargetHandler(targetService, auditService)
	auditHandler := handlers.NewAuditHandler(auditService)

	loginLimiter := middleware.NewRateLimiter(cfg.Auth.LoginRPS, cfg.Auth.LoginBurst)
	go loginLimiter.Run(ctx.Done())

	// === Gin ===
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(logger.GinLogger())
	router.Use(corsMiddleware(cfg.Server.CORSOrigins))
	router.MaxMultipartMemory = services.MaxReportSize + 1<<20

	// Swagger
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	router.GET("/healthz", healthz(db))

	routes.SetupRoutes(
		router,
		middleware.Auth(authService, permissionService),
		loginLimiter,
		authHandler,
		userHandler,
		permissionHandler,
		settingsHandler,
		leadHandler,
		reportHandler,
		dashboardHandler,
		targetHandler,
		auditHandler,
	)

	// === Scheduler ===
	var jobs *scheduler.Scheduler
	if cfg.Scheduler.Enabled {
		jobs = scheduler.New(targetService, leadRepo, userRepo, settingsService, notifier, sessions)
		if err := jobs.Register(cfg.Scheduler); err != nil {
			log.Fatal().Err(err).Msg("scheduler init failed")
		}
		jobs.Start()
	}

	// === Run ===
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		log.Info().Str("addr", srv.Addr).Msg("Сервер запущен")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Ошибка запуска сервера")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if jobs != nil {
		jobs.Stop(shutdownCtx)
	}
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("graceful shutdown failed")
	}
}

// newSessionStore uses Redis when an address is configured.
func newSessionStore(ctx context.Context, cfg *config.Config) (session.Store, func()) {
	if cfg.Redis.Address == "" {
		log.Info().Msg("[session] in-memory store")
		return session.NewMemoryStore(cfg.Auth.SessionTimeout), func() {}
	}
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Address,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		log.Fatal().Err(err).Str("addr", cfg.Redis.Address).Msg("redis unavailable")
	}
	log.Info().Str("addr", cfg.Redis.Address).Msg("[session] redis store")
	return session.NewRedisStore(rdb, cfg.Auth.SessionTimeout), func() { _ = rdb.Close() }
}

// @Summary   Проверка живости
// @Tags      System
// @Success   200  {object}  map[string]string
// @Failure   503  {object}  map[string]string
// @Router    /healthz [get]
func healthz(db *sql.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if err := db.PingContext(ctx); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "down", "error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	}
}

func corsMiddleware(origins []string) gin.HandlerFunc {
	allowed := make(map[string]bool, len(origins))
	for _, o := range origins {
		allowed[o] = true
	}
	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		switch {
		case origin != "" && allowed[origin]:
			c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
			c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
			c.Writer.Header().Add("Vary", "Origin")
		case allowed["*"]:
			c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		}
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Origin, Content-Type, Authorization")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}
