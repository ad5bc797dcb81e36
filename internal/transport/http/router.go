package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"microblog/internal/handler"
	"microblog/internal/httputil"
	authmw "microblog/internal/transport/http/middleware"
)

// RouterConfig holds the dependencies needed to create routes
type RouterConfig struct {
	AuthHandler   *handler.AuthHandler
	UserHandler   *handler.UserHandler
	FollowHandler *handler.FollowHandler
	FeedHandler   *handler.FeedHandler
	PostHandler   *handler.PostHandler
	JWTSecret     string
	SessionHook   authmw.SessionHook
}

// NewRouter creates and configures a new Chi router with all route groups
func NewRouter(cfg RouterConfig) chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)

	optionalAuth := authmw.OptionalAuthMiddleware(cfg.JWTSecret, cfg.SessionHook)

	// Health check endpoint (useful for deployment/monitoring)
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		httputil.WriteJSON(w, 200, map[string]string{"status": "ok"})
	})

	// Public routes - no authentication required
	r.Route("/auth", func(r chi.Router) {
		r.Post("/register", cfg.AuthHandler.Register)
		r.Post("/login", cfg.AuthHandler.Login)
		r.Post("/refresh", cfg.AuthHandler.Refresh)
		r.Post("/reset-password", cfg.AuthHandler.RequestPasswordReset)
		r.Post("/reset-password/confirm", cfg.AuthHandler.ResetPassword)
	})

	// Public user endpoints with optional authentication
	r.Route("/users", func(r chi.Router) {
		r.With(optionalAuth).Get("/{id}", cfg.UserHandler.GetProfile)
		r.With(optionalAuth).Get("/{id}/followers", cfg.FollowHandler.GetFollowers)
		r.With(optionalAuth).Get("/{id}/following", cfg.FollowHandler.GetFollowing)
		r.With(optionalAuth).Get("/{id}/posts", cfg.PostHandler.GetUserPosts)
	})

	// Public post endpoint with optional authentication
	r.With(optionalAuth).Get("/posts/{id}", cfg.PostHandler.GetByID)

	// Protected routes - require authentication
	r.Group(func(r chi.Router) {
		r.Use(authmw.AuthMiddleware(cfg.JWTSecret, cfg.SessionHook))

		// Current user endpoints
		r.Get("/me", cfg.AuthHandler.Me)
		r.Put("/me/profile", cfg.UserHandler.UpdateProfile)

		// Auth actions that require authentication
		r.Post("/auth/logout", cfg.AuthHandler.Logout)
		r.Post("/auth/logout-all", cfg.AuthHandler.LogoutAll)

		// Follow/unfollow actions require authentication
		r.Post("/users/{id}/follow", cfg.FollowHandler.Follow)
		r.Delete("/users/{id}/follow", cfg.FollowHandler.Unfollow)

		// Feed endpoint
		r.Get("/feed", cfg.FeedHandler.GetFeed)

		// Post endpoints
		r.Post("/posts", cfg.PostHandler.Create)
		r.Delete("/posts/{id}", cfg.PostHandler.Delete)
	})

	return r
}
