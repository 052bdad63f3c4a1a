// Package server
//
// @title mediad API
// @version 1.0
// @description Media library API
// @host localhost:8000
// @BasePath /
package server

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"reflect"
	"strings"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"github.com/go-playground/validator/v10"
	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/bodhini-dev/mediadmin/internal/auth"
	"github.com/bodhini-dev/mediadmin/internal/config"
	"github.com/bodhini-dev/mediadmin/internal/mailer"
	"github.com/bodhini-dev/mediadmin/internal/models"
	"github.com/bodhini-dev/mediadmin/internal/storage"
	"github.com/bodhini-dev/mediadmin/internal/workers"
)

// Server represents the HTTP server
type Server struct {
	router      *gin.Engine
	db          *gorm.DB
	config      *config.Config
	logger      zerolog.Logger
	validator   *validator.Validate
	signer      *auth.Signer
	store       storage.Storage
	asynqClient *asynq.Client // nil without Redis
	purger      workers.Purger
	contacts    workers.ContactDelivery
	version     string
}

// New creates a new server instance
func New(cfg *config.Config, zlog zerolog.Logger, version string) (*Server, error) {
	// Initialize database with production settings
	db, err := InitDatabase(cfg, zlog)
	if err != nil {
		return nil, err
	}

	// Run database migrations
	if err := models.AutoMigrate(db); err != nil {
		return nil, err
	}

	// Load the JWT secret, generating it on first boot
	appConfig, err := models.EnsureConfig(db)
	if err != nil {
		return nil, err
	}
	signer, err := auth.NewSigner(appConfig.JWTSecret, cfg.Auth.TokenTTL)
	if err != nil {
		return nil, err
	}

	store, err := storage.New(context.Background(), cfg.Storage)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	// Initialize Asynq client for enqueueing tasks
	var asynqClient *asynq.Client
	if cfg.Redis.Address != "" {
		asynqClient = asynq.NewClient(asynq.RedisClientOpt{
			Addr: cfg.Redis.Address,
		})
	} else {
		zlog.Info().Msg("REDIS_ADDRESS not set - media files will be purged and contact mail sent inline")
	}

	server := &Server{
		db:          db,
		config:      cfg,
		logger:      zlog,
		validator:   newValidator(),
		signer:      signer,
		store:       store,
		asynqClient: asynqClient,
		purger:      workers.NewPurger(asynqClient, store, zlog),
		contacts:    workers.NewContactDelivery(asynqClient, db, mailer.New(cfg.Mail, zlog), zlog),
		version:     version,
	}

	// Setup router
	server.setupRouter()

	return server, nil
}

func newValidator() *validator.Validate {
	validate := validator.New()

	// Report fields by their JSON name so errors match the request body
	validate.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "" || name == "-" {
			name, _, _ = strings.Cut(f.Tag.Get("form"), ",")
		}
		if name == "-" {
			return ""
		}
		return name
	})
	return validate
}

// InitDatabase opens PostgreSQL when DATABASE_URL is a postgres:// URL and
// a tuned SQLite file otherwise
func InitDatabase(cfg *config.Config, zlog zerolog.Logger) (*gorm.DB, error) {
	gormConfig := &gorm.Config{
		Logger: logger.New(
			log.New(os.Stdout, "\r\n", log.LstdFlags),
			logger.Config{
				LogLevel:                  logger.Error,
				IgnoreRecordNotFoundError: true,
				SlowThreshold:             200 * time.Millisecond,
			},
		),
	}

	if cfg.Database.UsesPostgres() {
		db, err := gorm.Open(postgres.Open(cfg.Database.URL), gormConfig)
		if err != nil {
			return nil, fmt.Errorf("failed to open database: %w", err)
		}
		zlog.Debug().Msg("Connected to PostgreSQL")
		return db, nil
	}

	const (
		maxOpenConns      = 8     // Reduced for SQLite efficiency
		maxIdleConns      = 4     // Reduced proportionally
		connMaxLifetime   = 300   // 5 minutes
		busyTimeout       = 5000  // 5 seconds
		cacheSize         = 10000 // 10MB
		walAutocheckpoint = 1000  // WAL auto-checkpoint pages
	)

	db, err := gorm.Open(sqlite.Open(cfg.Database.URL), gormConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Get underlying sql.DB to configure connection pool
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	sqlDB.SetMaxOpenConns(maxOpenConns)
	sqlDB.SetMaxIdleConns(maxIdleConns)
	sqlDB.SetConnMaxLifetime(time.Duration(connMaxLifetime) * time.Second)

	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	// WAL mode must be set first for optimal concurrency
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		fmt.Sprintf("PRAGMA wal_autocheckpoint=%d", walAutocheckpoint),
		fmt.Sprintf("PRAGMA busy_timeout=%d", busyTimeout),
		fmt.Sprintf("PRAGMA cache_size=-%d", cacheSize),
		"PRAGMA foreign_keys=1",
		"PRAGMA temp_store=2",
	}

	for _, pragma := range pragmas {
		if err := db.Exec(pragma).Error; err != nil {
			zlog.Warn().Str("pragma", pragma).Err(err).Msg("Failed to apply pragma")
		}
	}

	return db, nil
}

// setupRouter configures the Gin router with routes and middleware
func (s *Server) setupRouter() {
	gin.SetMode(gin.ReleaseMode)

	s.router = gin.New()
	s.router.RedirectTrailingSlash = false

	s.router.Use(gin.Recovery())
	s.router.Use(s.loggingMiddleware())

	// Without origins there are no browser consoles to serve, and cors
	// refuses an empty allow list
	if len(s.config.Server.CORSOrigins) > 0 {
		s.router.Use(cors.New(cors.Config{
			AllowOrigins:     s.config.Server.CORSOrigins,
			AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "HEAD", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Length", "Content-Type", "Authorization", csrfHeader},
			ExposeHeaders:    []string{"Content-Length"},
			AllowCredentials: true,
			MaxAge:           12 * time.Hour,
		}))
	}

	// Token login is exempt: clients have no cookie before their first response
	s.router.Use(CSRFMiddleware(s.logger, "/api/auth/token/"))

	// Health check endpoint (no auth required)
	s.router.GET("/health", s.healthCheck)

	if local, ok := s.store.(*storage.Local); ok {
		s.router.Static(strings.TrimSuffix(storage.FilesPrefix, "/"), local.Root())
	}

	api := s.router.Group("/api")
	api.Use(TokenAuthMiddleware(s.db, s.signer, s.logger))
	{
		// Public endpoints
		api.POST("/setup/", s.setupFirstAdmin)
		api.POST("/auth/token/", s.obtainToken)
		api.POST("/auth/register/", s.register)
		api.POST("/validate-email/", s.validateEmail)

		// Reading the library is public, changing it is staff only
		api.GET("/media/", s.listMedia)
		api.GET("/media/:id/", s.getMedia)
		api.GET("/media/events/", s.listEvents)
		api.POST("/media/submit-contact/", s.submitContact)

		staff := api.Group("")
		staff.Use(StaffOnlyMiddleware(s.logger))
		{
			staff.POST("/media/", s.createMedia)
			staff.PUT("/media/:id/", s.updateMedia)
			staff.PATCH("/media/:id/", s.updateMedia)
			staff.DELETE("/media/:id/", s.deleteMedia)
			staff.POST("/media/events/create/", s.createEvent)
			staff.GET("/system/info/", s.getSystemInfo)
		}
	}
}

// loggingMiddleware creates a custom logging middleware using zerolog
func (s *Server) loggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		duration := time.Since(start)

		s.logger.Info().
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Dur("duration", duration).
			Str("client_ip", c.ClientIP()).
			Msg("HTTP request")
	}
}

// @Router /health [get]
// @Success 200 {object} map[string]interface{}
func (s *Server) healthCheck(c *gin.Context) {
	status := "online"
	code := http.StatusOK
	if sqlDB, err := s.db.DB(); err != nil || sqlDB.PingContext(c.Request.Context()) != nil {
		status = "degraded"
		code = http.StatusServiceUnavailable
	}

	c.JSON(code, gin.H{
		"status":    status,
		"timestamp": time.Now().UTC(),
		"service":   "mediad",
		"version":   s.version,
	})
}

// GetDB returns the database connection for use by workers
func (s *Server) GetDB() *gorm.DB {
	return s.db
}

// Storage returns the file storage backend
func (s *Server) Storage() storage.Storage {
	return s.store
}

// Handler exposes the router, mainly for in-process tests
func (s *Server) Handler() http.Handler {
	return s.router
}

// Close releases the queue client and database connection
func (s *Server) Close() error {
	if s.asynqClient != nil {
		if err := s.asynqClient.Close(); err != nil {
			s.logger.Warn().Err(err).Msg("Error closing Asynq client")
		}
	}
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Start starts the HTTP server and blocks until SIGINT or SIGTERM
func (s *Server) Start() error {
	addr := ":" + s.config.Server.Port

	// Setup signal handling for graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	srv := &http.Server{
		Addr:    addr,
		Handler: s.router,
		// Uploads of large video files need generous timeouts
		ReadTimeout:       10 * time.Minute,
		WriteTimeout:      10 * time.Minute,
		ReadHeaderTimeout: 30 * time.Second,
		IdleTimeout:       300 * time.Second,
	}

	errChan := make(chan error, 1)
	go func() {
		s.logger.Info().Str("addr", addr).Msg("Starting HTTP server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- err
		}
	}()

	select {
	case <-sigChan:
		s.logger.Info().Msg("Received shutdown signal, shutting down gracefully...")
	case err := <-errChan:
		s.logger.Error().Err(err).Msg("HTTP server error")
		return err
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	s.logger.Info().Msg("Shutting down HTTP server...")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		s.logger.Error().Err(err).Msg("Error shutting down HTTP server")
		return err
	}

	// Close database connection to flush WAL writes
	if err := s.Close(); err != nil {
		s.logger.Error().Err(err).Msg("Error closing database")
	}

	s.logger.Info().Msg("Server shutdown complete")
	return nil
}
