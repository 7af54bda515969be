package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/aman-churiwal/secure-api/internal/config"
	"github.com/aman-churiwal/secure-api/internal/handler"
	"github.com/aman-churiwal/secure-api/internal/healthcheck"
	"github.com/aman-churiwal/secure-api/internal/metrics"
	"github.com/aman-churiwal/secure-api/internal/middleware"
	"github.com/aman-churiwal/secure-api/internal/models"
	"github.com/aman-churiwal/secure-api/internal/ratelimit"
	"github.com/aman-churiwal/secure-api/internal/repository"
	"github.com/aman-churiwal/secure-api/internal/security"
	"github.com/aman-churiwal/secure-api/internal/service"
	"github.com/aman-churiwal/secure-api/internal/storage"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

const maxBodyBytes = 1 << 20

// Deps are the connections the server is built on. Redis and Postgres may be
// nil: without Redis every limit is per process, without Postgres the auth,
// API key and admin routes are not registered.
type Deps struct {
	Config   *config.Config
	Logger   logrus.FieldLogger
	Store    *storage.FallbackStore
	Redis    *storage.RedisClient
	Postgres *storage.Postgres
}

type Server struct {
	router     *gin.Engine
	config     *config.Config
	log        logrus.FieldLogger
	limiter    *ratelimit.Limiter
	events     *service.EventRecorder
	health     *healthcheck.Checker
	httpServer *http.Server

	auth      *service.AuthService
	apiKeys   *service.APIKeyService
	analytics *service.AnalyticsService
	tokens    *security.TokenManager
	csrf      *security.CSRFManager
	cipher    *security.Encryptor
	store     *storage.FallbackStore
}

func New(deps Deps) (*Server, error) {
	cfg := deps.Config
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	if err := router.SetTrustedProxies(cfg.Server.TrustedProxies); err != nil {
		return nil, fmt.Errorf("invalid trusted proxies: %w", err)
	}

	policies, err := ratelimit.PoliciesFromConfig(cfg.RateLimitPolicies)
	if err != nil {
		return nil, err
	}

	s := &Server{
		router:  router,
		config:  cfg,
		log:     deps.Logger,
		store:   deps.Store,
		limiter: ratelimit.NewLimiter(deps.Store, policies, deps.Logger),
		csrf:    security.NewCSRFManager(deps.Store, time.Duration(cfg.Security.CSRFTokenTTLMin)*time.Minute),
	}

	if err := s.initializeSecurity(); err != nil {
		return nil, err
	}
	if deps.Postgres != nil {
		if err := s.initializeServices(deps.Postgres); err != nil {
			return nil, err
		}
	}
	s.initializeHealth(deps)

	s.setupMiddleware()
	s.setupRoutes()

	return s, nil
}

func (s *Server) initializeSecurity() error {
	sec := s.config.Security

	tokens, err := security.NewTokenManager(security.TokenConfig{
		AccessSecret:  sec.JWTSecret,
		RefreshSecret: sec.JWTRefreshSecret,
		AccessTTL:     time.Duration(sec.AccessTokenTTLMin) * time.Minute,
		RefreshTTL:    time.Duration(sec.RefreshTokenTTLHours) * time.Hour,
		Issuer:        sec.Issuer,
		Audience:      sec.Audience,
	}, s.log)
	if err != nil {
		return fmt.Errorf("failed to initialize token manager: %w", err)
	}
	s.tokens = tokens

	cipher, err := security.NewEncryptor(sec.EncryptionKey)
	if err != nil {
		return fmt.Errorf("failed to initialize encryptor: %w", err)
	}
	s.cipher = cipher

	return nil
}

func (s *Server) initializeServices(postgres *storage.Postgres) error {
	signer, err := security.NewAPIKeySigner(s.config.Security.APIKeySecret)
	if err != nil {
		return fmt.Errorf("failed to initialize api key signer: %w", err)
	}

	eventRepo := repository.NewSecurityEventRepository(postgres)
	s.events = service.NewEventRecorder(eventRepo, service.EventRecorderOptions{
		BufferSize:    s.config.Events.BufferSize,
		BatchSize:     s.config.Events.BatchSize,
		FlushInterval: time.Duration(s.config.Events.FlushIntervalMs) * time.Millisecond,
	}, s.log)
	s.analytics = service.NewAnalyticsService(eventRepo)

	hasher := security.NewPasswordHasher(s.config.Server.Environment)
	s.auth = service.NewAuthService(repository.NewUserRepository(postgres), s.tokens, hasher, s.log)
	s.apiKeys = service.NewAPIKeyService(repository.NewAPIKeyRepository(postgres), signer, s.store, s.log)

	return nil
}

func (s *Server) initializeHealth(deps Deps) {
	var probes []healthcheck.Probe
	if deps.Redis != nil {
		probes = append(probes, healthcheck.Probe{Name: "redis", Check: deps.Redis.Ping})
	}
	if deps.Postgres != nil {
		probes = append(probes, healthcheck.Probe{Name: "database", Check: deps.Postgres.Ping, Critical: true})
	}

	hc := s.config.HealthCheck
	s.health = healthcheck.NewChecker(&healthcheck.Config{
		Probes:      probes,
		Interval:    time.Duration(hc.IntervalSec) * time.Second,
		Timeout:     time.Duration(hc.TimeoutSec) * time.Second,
		MaxFailures: hc.FailureThreshold,
		Logger:      s.log,
	})
}

// Security events are only persisted when a database is configured
func (s *Server) eventRecorder() middleware.EventRecorder {
	if s.events == nil {
		return nil
	}
	return s.events
}

func (s *Server) setupMiddleware() {
	s.router.Use(middleware.Recovery(s.log))
	s.router.Use(middleware.RequestID())
	s.router.Use(middleware.Logger(s.log))
	s.router.Use(middleware.SecurityHeaders(s.config.IsProduction()))
	s.router.Use(middleware.CORS(s.config.Server.AllowedOrigins))
	s.router.Use(middleware.BodyLimit(maxBodyBytes))
}

func (s *Server) rateLimit(policy string) gin.HandlerFunc {
	return middleware.RateLimit(s.limiter, policy, s.eventRecorder(), s.log)
}

func (s *Server) setupRoutes() {
	events := s.eventRecorder()

	healthHandler := handler.NewHealthHandler(s.health, s.store)
	s.router.GET("/health", healthHandler.Health)
	s.router.GET("/metrics", gin.WrapH(metrics.Handler()))

	securityHandler := handler.NewSecurityHandler(s.csrf, s.limiter, events, handler.SecurityHandlerConfig{
		MaxInputLength: s.config.Security.MaxInputLength,
		MaxPromptChars: s.config.Security.AIPromptMaxLength,
	}, s.log)

	auth := s.router.Group("/auth")
	{
		auth.GET("/csrf", s.rateLimit(ratelimit.PolicyPublic), securityHandler.IssueCSRF)
	}

	api := s.router.Group("/api")
	{
		api.POST("/validate", s.rateLimit(ratelimit.PolicyPublic), securityHandler.Validate)
		api.POST("/ai/screen", s.rateLimit(ratelimit.PolicyAIChat), securityHandler.ScreenPrompt)
		api.GET("/ratelimit/:policy", s.rateLimit(ratelimit.PolicyPublic), securityHandler.RateLimitInfo)
	}

	if s.auth == nil {
		s.log.Warn("No database configured, auth, API key and admin routes are disabled")
		return
	}

	authHandler := handler.NewAuthHandler(s.auth, events, s.log)
	login := s.rateLimit(ratelimit.PolicyLogin)
	auth.POST("/login", login, authHandler.Login)
	auth.POST("/refresh", login, authHandler.Refresh)
	auth.GET("/me", middleware.RequireAuth(s.tokens, events), s.rateLimit(ratelimit.PolicyAPI), authHandler.Me)

	cryptoHandler := handler.NewCryptoHandler(s.cipher, s.log)
	secure := api.Group("/secure")
	secure.Use(middleware.RequireAPIKey(s.apiKeys, events, s.log))
	secure.Use(middleware.RateLimitForAPIKey(s.limiter, ratelimit.PolicyAPI, events, s.log))
	{
		secure.POST("/encrypt", cryptoHandler.Encrypt)
		secure.POST("/decrypt", cryptoHandler.Decrypt)
	}

	apiKeyHandler := handler.NewAPIKeyHandler(s.apiKeys, s.limiter, s.log)
	analyticsHandler := handler.NewAnalyticsHandler(s.analytics, s.log)
	systemHandler := handler.NewSystemHandler(s.store, s.limiter, s.log)

	admin := s.router.Group("/admin")
	admin.Use(middleware.RequireAuth(s.tokens, events))
	admin.Use(middleware.RequireRole(models.RoleAdmin))
	admin.Use(s.rateLimit(ratelimit.PolicyAdmin))
	admin.Use(middleware.RequireCSRF(s.csrf, events))
	{
		admin.GET("/status", systemHandler.Status)
		admin.POST("/ratelimit/reset", systemHandler.ResetRateLimit)
		admin.POST("/circuit-breaker/reset", systemHandler.ResetCircuitBreaker)

		admin.GET("/users", authHandler.ListUsers)
		admin.POST("/users", authHandler.Register)

		admin.POST("/keys", apiKeyHandler.Create)
		admin.GET("/keys", apiKeyHandler.List)
		admin.GET("/keys/:id", apiKeyHandler.Get)
		admin.PATCH("/keys/:id", apiKeyHandler.Update)
		admin.DELETE("/keys/:id", apiKeyHandler.Delete)

		admin.GET("/events", analyticsHandler.GetEvents)
		admin.GET("/events/summary", analyticsHandler.GetSummary)
		admin.DELETE("/events", analyticsHandler.Cleanup)
	}
}

// Starts the background workers and blocks serving HTTP until Shutdown
func (s *Server) Run(addr string) error {
	if s.events != nil {
		s.events.Start()
	}
	s.health.Start()

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  time.Duration(s.config.Server.ReadTimeoutSec) * time.Second,
		WriteTimeout: time.Duration(s.config.Server.WriteTimeoutSec) * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	s.log.WithFields(logrus.Fields{
		"addr":        addr,
		"environment": s.config.Server.Environment,
	}).Info("Starting secure API")

	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Stops accepting requests, then flushes pending security events
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info("Shutting down server...")

	var errs []error
	if s.httpServer != nil {
		errs = append(errs, s.httpServer.Shutdown(ctx))
	}
	s.health.Stop()
	if s.events != nil {
		errs = append(errs, s.events.Close(ctx))
	}

	return errors.Join(errs...)
}

func (s *Server) GetRouter() *gin.Engine {
	return s.router
}
