package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"microblog/internal/httputil"
	"microblog/internal/model"
)

// contextKey is a custom type for context keys to avoid collisions
type contextKey string

// UserIDKey is the context key for the authenticated user's ID
const UserIDKey contextKey = "user_id"

// SessionHook runs after a token is validated, with the authenticated
// user's id. Used to touch last_seen on every authenticated request;
// failures are the hook's problem, never the request's.
type SessionHook func(ctx context.Context, userID int64)

// AuthMiddleware validates JWT access tokens. Checks the Authorization
// header first, then falls back to an access_token cookie for browsers.
func AuthMiddleware(jwtSecret string, hook SessionHook) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenString := extractToken(r)
			if tokenString == "" {
				httputil.WriteUnauthorized(w, "Missing authentication token")
				return
			}

			userID, errCode := parseUserID(tokenString, jwtSecret)
			if errCode != "" {
				if errCode == model.CodeTokenExpired {
					httputil.WriteUnauthorizedWithCode(w, model.CodeTokenExpired, "Access token has expired")
					return
				}
				httputil.WriteUnauthorizedWithCode(w, model.CodeTokenInvalid, "Invalid authentication token")
				return
			}

			if hook != nil {
				hook(r.Context(), userID)
			}

			ctx := context.WithValue(r.Context(), UserIDKey, userID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// OptionalAuthMiddleware populates the user id when a valid token is
// present but lets anonymous requests through untouched.
func OptionalAuthMiddleware(jwtSecret string, hook SessionHook) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenString := extractToken(r)
			if tokenString == "" {
				next.ServeHTTP(w, r)
				return
			}

			userID, errCode := parseUserID(tokenString, jwtSecret)
			if errCode != "" {
				// Invalid token on an optional route degrades to anonymous
				next.ServeHTTP(w, r)
				return
			}

			if hook != nil {
				hook(r.Context(), userID)
			}

			ctx := context.WithValue(r.Context(), UserIDKey, userID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetUserIDFromContext extracts the user ID from the request context.
// Returns the user ID and true if found, or 0 and false if not found.
func GetUserIDFromContext(ctx context.Context) (int64, bool) {
	userID, ok := ctx.Value(UserIDKey).(int64)
	return userID, ok
}

func extractToken(r *http.Request) string {
	authHeader := r.Header.Get("Authorization")
	if authHeader != "" {
		// Expected format: "Bearer <token>"
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
			return parts[1]
		}
	}

	cookie, err := r.Cookie("access_token")
	if err == nil && cookie.Value != "" {
		return cookie.Value
	}
	return ""
}

// parseUserID validates the token and extracts the user_id claim.
// Returns a non-empty error code on failure.
func parseUserID(tokenString, jwtSecret string) (int64, string) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return []byte(jwtSecret), nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return 0, model.CodeTokenExpired
		}
		return 0, model.CodeTokenInvalid
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return 0, model.CodeTokenInvalid
	}

	userIDFloat, ok := claims["user_id"].(float64)
	if !ok {
		return 0, model.CodeTokenInvalid
	}

	return int64(userIDFloat), ""
}
