package http

import (
	"context"
	"fmt"
	"log"
	stdhttp "net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"microblog/internal/avatar"
	"microblog/internal/cache"
	"microblog/internal/config"
	"microblog/internal/database"
	"microblog/internal/handler"
	"microblog/internal/queue"
	"microblog/internal/redis"
	"microblog/internal/repository"
	"microblog/internal/security"
	"microblog/internal/service"
	"microblog/internal/validation"
	"microblog/internal/worker"
)

const (
	shutdownTimeout = 10 * time.Second

	// Expired refresh tokens are swept daily, kept for a day past expiry so
	// a just-expired token still reports "expired" instead of "not found".
	tokenCleanupInterval = 24 * time.Hour
	tokenCleanupGrace    = 24 * time.Hour
)

// Run wires the whole application together and blocks until shutdown.
func Run() error {
	// 1. Load Configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// 2. Connect to Database
	db, err := database.Connect(cfg)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer db.Close()

	// 3. Connect to Redis
	redisClient, err := redis.NewClient(cfg.RedisURL)
	if err != nil {
		return fmt.Errorf("failed to create redis client: %w", err)
	}
	defer redisClient.Close()

	if err := redisClient.Ping(context.Background()); err != nil {
		return fmt.Errorf("failed to connect to redis: %w", err)
	}
	log.Println("Connected to Redis successfully")

	// 4. Repositories
	userRepo := repository.NewUserRepository(db)
	postRepo := repository.NewPostRepository(db)
	followRepo := repository.NewFollowRepository(db)
	refreshTokenRepo := repository.NewRefreshTokenRepository(db)

	// 5. Shared infrastructure
	avatars := avatar.New(cfg.AvatarBaseURL, nil)
	hasher := security.NewBcryptHasher(0)
	feedCache := cache.NewFeedCache(redisClient.Client)
	publisher := queue.NewPublisher(redisClient.Client)
	consumer := queue.NewConsumer(redisClient.Client)

	// 6. Services
	userService := service.NewUserService(userRepo, followRepo, hasher, avatars)
	authService := service.NewAuthService(refreshTokenRepo, cfg)
	postService := service.NewPostService(postRepo, userRepo, publisher, avatars)
	followService := service.NewFollowService(followRepo, userRepo, db, publisher, avatars)
	feedService := service.NewFeedService(feedCache, postRepo, followRepo, userRepo, avatars)

	// 7. Form validation
	forms := validation.NewForms(userRepo)

	// 8. Feed worker pool
	workerHandler := worker.NewHandler(feedCache, followRepo, postRepo)
	workerManager := worker.NewManager(consumer, workerHandler, worker.ManagerConfig{})
	if err := workerManager.Start(context.Background()); err != nil {
		return fmt.Errorf("failed to start feed workers: %w", err)
	}
	defer workerManager.Stop()

	cleanupCtx, cancelCleanup := context.WithCancel(context.Background())
	defer cancelCleanup()
	go runTokenCleanup(cleanupCtx, authService)

	// 9. HTTP handlers and router
	authHandler := handler.NewAuthHandler(userService, authService, forms)
	userHandler := handler.NewUserHandler(userService, forms)
	postHandler := handler.NewPostHandler(postService, forms)
	followHandler := handler.NewFollowHandler(followService)
	feedHandler := handler.NewFeedHandler(feedService)

	// Touch last_seen on every authenticated request; a failed touch never
	// fails the request.
	sessionHook := func(ctx context.Context, userID int64) {
		if err := userService.TouchLastSeen(ctx, userID); err != nil {
			log.Printf("[Server] Failed to touch last_seen: user=%d err=%v", userID, err)
		}
	}

	router := NewRouter(RouterConfig{
		AuthHandler:   authHandler,
		UserHandler:   userHandler,
		FollowHandler: followHandler,
		FeedHandler:   feedHandler,
		PostHandler:   postHandler,
		JWTSecret:     cfg.JWTSecret,
		SessionHook:   sessionHook,
	})

	server := &stdhttp.Server{
		Addr:    ":" + cfg.ServerPort,
		Handler: router,
	}

	// 10. Serve until interrupted, then drain
	errCh := make(chan error, 1)
	go func() {
		log.Printf("Starting server on :%s", cfg.ServerPort)
		if err := server.ListenAndServe(); err != nil && err != stdhttp.ErrServerClosed {
			errCh <- err
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case sig := <-stop:
		log.Printf("Received signal %s, shutting down", sig)
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	log.Println("Server stopped")
	return nil
}

// runTokenCleanup sweeps expired refresh tokens on a fixed interval until
// the context is cancelled.
func runTokenCleanup(ctx context.Context, authService *service.AuthService) {
	ticker := time.NewTicker(tokenCleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			deleted, err := authService.CleanupExpiredTokens(ctx, tokenCleanupGrace)
			if err != nil {
				log.Printf("[Server] Token cleanup failed: %v", err)
				continue
			}
			if deleted > 0 {
				log.Printf("[Server] Token cleanup: removed=%d", deleted)
			}
		}
	}
}
