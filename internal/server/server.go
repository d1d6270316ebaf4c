// Package server wires the HTTP routes, middleware and handlers of the site.
package server

import (
	"context"
	"fmt"
	"time"

	_ "yatube/docs" // swagger docs
	"yatube/internal/bootstrap"
	"yatube/internal/config"
	"yatube/internal/database"
	"yatube/internal/featureflags"
	"yatube/internal/middleware"
	"yatube/internal/notifications"
	"yatube/internal/repository"
	"yatube/internal/service"
	"yatube/internal/views"

	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/gofiber/swagger"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

const (
	loginURL         = "/auth/login/"
	indexCachePrefix = "index_page"
)

// Server holds all dependencies and provides handlers
type Server struct {
	config         *config.Config
	db             *gorm.DB
	redis          *redis.Client
	app            *fiber.App
	promMiddleware *fiberprometheus.FiberPrometheus
	shutdownCtx    context.Context
	shutdownFn     context.CancelFunc
	sessions       *middleware.SessionManager
	userRepo       repository.UserRepository
	groupRepo      repository.GroupRepository
	postRepo       repository.PostRepository
	commentRepo    repository.CommentRepository
	followRepo     repository.FollowRepository
	notifier       *notifications.Notifier
	hub            *notifications.Hub
	featureFlags   *featureflags.Manager
	feedService    *service.FeedService
	postService    *service.PostService
	commentService *service.CommentService
	followService  *service.FollowService
	userService    *service.UserService
}

// NewServer connects to the database and Redis and creates a server.
func NewServer(cfg *config.Config) (*Server, error) {
	db, redisClient, err := bootstrap.InitRuntime(context.Background(), cfg, bootstrap.Options{SeedGroups: cfg.SeedGroups})
	if err != nil {
		return nil, err
	}

	return NewServerWithDeps(cfg, db, redisClient)
}

// NewServerWithDeps creates a Server using already-initialized dependencies.
// redisClient may be nil: page caching, rate limiting and notifications are then disabled.
func NewServerWithDeps(cfg *config.Config, db *gorm.DB, redisClient *redis.Client) (*Server, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if db == nil {
		return nil, fmt.Errorf("database is required")
	}

	s := &Server{
		config:         cfg,
		db:             db,
		redis:          redisClient,
		promMiddleware: middleware.InitMetrics("yatube"),
		userRepo:       repository.NewUserRepository(db),
		groupRepo:      repository.NewGroupRepository(db),
		postRepo:       repository.NewPostRepository(db),
		commentRepo:    repository.NewCommentRepository(db),
		followRepo:     repository.NewFollowRepository(db),
		notifier:       notifications.NewNotifier(redisClient),
		featureFlags:   featureflags.NewManager(cfg.FeatureFlags),
		sessions: middleware.NewSessionManager(middleware.SessionConfig{
			Secret:     cfg.SessionSecret,
			CookieName: cfg.SessionCookie,
			TTL:        cfg.SessionTTL(),
			Secure:     cfg.IsProduction(),
			Redis:      redisClient,
		}),
	}
	if redisClient != nil {
		s.hub = notifications.NewHub()
	}

	s.feedService = service.NewFeedService(s.postRepo, s.groupRepo, s.userRepo, s.followRepo, s.commentRepo, cfg.PostsPerPage)
	s.postService = service.NewPostService(s.postRepo, s.groupRepo, service.NewImageService(cfg), s.notifier, s.featureFlags)
	s.commentService = service.NewCommentService(s.commentRepo, s.postRepo, s.notifier, s.featureFlags)
	s.followService = service.NewFollowService(s.userRepo, s.followRepo, s.notifier, s.featureFlags)
	s.userService = service.NewUserService(s.userRepo)

	middleware.Logger.Info("feature flags", "flags", s.featureFlags.String())
	return s, nil
}

// App builds the Fiber application with middleware and routes. It is built once.
func (s *Server) App() *fiber.App {
	if s.app != nil {
		return s.app
	}

	app := fiber.New(fiber.Config{
		AppName:      "yatube",
		Views:        views.New(),
		ErrorHandler: s.errorHandler,
		BodyLimit:    (s.config.ImageMaxUploadSizeMB + 1) * 1024 * 1024,
	})
	s.SetupMiddleware(app)
	s.SetupRoutes(app)
	s.app = app
	return app
}

// SetupMiddleware configures middleware for the Fiber app
func (s *Server) SetupMiddleware(app *fiber.App) {
	app.Use(recover.New())
	app.Use(requestid.New())
	app.Use(middleware.TracingMiddleware())
	app.Use(middleware.ContextMiddleware())

	if s.promMiddleware != nil {
		app.Use(middleware.MetricsMiddleware(s.promMiddleware))
	}

	app.Use(helmet.New())
	app.Use(middleware.StructuredLogger())

	// Global in-memory limit; per-route Redis limits guard the write paths.
	app.Use(limiter.New(limiter.Config{
		Max:        100,
		Expiration: 1 * time.Minute,
		Next: func(c *fiber.Ctx) bool {
			return !s.config.IsProduction()
		},
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).SendString("Too many requests, please try again later.")
		},
	}))

	app.Use(s.sessions.Identify())
}

// SetupRoutes configures all routes for the application
func (s *Server) SetupRoutes(app *fiber.App) {
	app.Get("/health/live", s.LivenessCheck)
	app.Get("/health/ready", s.ReadinessCheck)
	app.Get("/swagger/*", swagger.HandlerDefault)
	if s.promMiddleware != nil {
		s.promMiddleware.RegisterAt(app, "/metrics")
	}

	loginRequired := middleware.LoginRequired(loginURL, s.signedIn)

	app.Get("/", middleware.PageCache(middleware.PageCacheConfig{
		Redis:      s.redis,
		TTL:        s.config.CacheTTL(),
		Prefix:     indexCachePrefix,
		CookieName: s.sessions.CookieName(),
	}), s.Index)
	app.Get("/group/:slug", s.GroupPosts)
	app.Get("/follow", loginRequired, s.FollowIndex)

	create := app.Group("/create", loginRequired)
	create.Get("/", s.CreatePostForm)
	create.Post("/", s.rateLimit("create_post", 10, time.Minute), s.CreatePost)

	profile := app.Group("/profile/:username")
	profile.Get("/follow", loginRequired, s.ProfileFollow)
	profile.Get("/unfollow", loginRequired, s.ProfileUnfollow)
	profile.Get("/", s.Profile)

	posts := app.Group("/posts/:id")
	posts.Get("/edit", loginRequired, s.EditPostForm)
	posts.Post("/edit", loginRequired, s.EditPost)
	posts.Post("/comment", loginRequired,
		s.rateLimit("create_comment", 10, time.Minute), s.AddComment)
	posts.Get("/", s.PostDetail)

	auth := app.Group("/auth")
	auth.Get("/login", s.LoginForm)
	auth.Post("/login", s.rateLimit("login", 10, 5*time.Minute), s.Login)
	auth.Get("/logout", s.Logout)

	about := app.Group("/about")
	about.Get("/author", s.staticPage("about/author"))
	about.Get("/tech", s.staticPage("about/tech"))

	app.Get("/ws/notifications", loginRequired, s.requireUpgrade, s.NotificationsHandler())
}

// rateLimit guards a write route. Limits are off in development and tests.
func (s *Server) rateLimit(name string, limit int, window time.Duration) fiber.Handler {
	return middleware.RateLimit(middleware.RateLimitConfig{
		Redis:   s.redis,
		Name:    name,
		Limit:   limit,
		Window:  window,
		Enabled: middleware.RateLimitEnabled(s.config.Env),
	})
}

// LivenessCheck handles liveness check requests
// @Summary Liveness check
// @Tags health
// @Produce json
// @Success 200 {object} object{status=string,time=string}
// @Router /health/live [get]
func (s *Server) LivenessCheck(c *fiber.Ctx) error {
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"status": "up",
		"time":   time.Now(),
	})
}

// ReadinessCheck pings the database and, when configured, Redis.
func (s *Server) ReadinessCheck(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), 5*time.Second)
	defer cancel()

	dbStatus := "healthy"
	if err := database.Ping(ctx, s.db); err != nil {
		dbStatus = "unhealthy"
	}

	redisStatus := "disabled"
	if s.redis != nil {
		redisStatus = "healthy"
		if err := s.redis.Ping(ctx).Err(); err != nil {
			redisStatus = "unhealthy"
		}
	}

	status := fiber.StatusOK
	overallStatus := "healthy"
	if dbStatus == "unhealthy" || redisStatus == "unhealthy" {
		status = fiber.StatusServiceUnavailable
		overallStatus = "unhealthy"
	}

	return c.Status(status).JSON(fiber.Map{
		"status": overallStatus,
		"checks": fiber.Map{
			"database": dbStatus,
			"redis":    redisStatus,
		},
		"time": time.Now(),
	})
}

// StartWiring connects the notification hub to Redis pub/sub. It is a no-op without Redis.
func (s *Server) StartWiring(ctx context.Context) error {
	if s.hub == nil {
		return nil
	}
	return s.hub.StartWiring(ctx, s.notifier)
}

// Start starts the server
func (s *Server) Start() error {
	ctx, cancel := context.WithCancel(context.Background())
	s.shutdownCtx = ctx
	s.shutdownFn = cancel

	app := s.App()

	if err := s.StartWiring(s.shutdownCtx); err != nil {
		middleware.Logger.Error("failed to start notification wiring", "error", err)
	}

	middleware.Logger.Info("server starting", "port", s.config.Port, "env", s.config.Env)
	return app.Listen(":" + s.config.Port)
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	if s.shutdownFn != nil {
		s.shutdownFn()
	}

	if s.app != nil {
		if err := s.app.ShutdownWithContext(ctx); err != nil {
			middleware.Logger.Error("error shutting down HTTP server", "error", err)
		}
	}

	if s.hub != nil {
		if err := s.hub.Shutdown(ctx); err != nil {
			middleware.Logger.Error("error shutting down hub", "hub", s.hub.Name(), "error", err)
		}
	}

	if sqlDB, err := s.db.DB(); err == nil {
		if cerr := sqlDB.Close(); cerr != nil {
			middleware.Logger.Error("error closing sql DB", "error", cerr)
		}
	}

	if s.redis != nil {
		if rerr := s.redis.Close(); rerr != nil {
			middleware.Logger.Error("error closing redis", "error", rerr)
		}
	}

	middleware.Logger.Info("server shutdown complete")
	return nil
}
