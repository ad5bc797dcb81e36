package handler

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"

	"microblog/internal/httputil"
	"microblog/internal/model"
	"microblog/internal/service"
	"microblog/internal/transport/http/middleware"
	"microblog/internal/validation"
)

// AuthHandler groups auth-related HTTP endpoints and their dependencies.
type AuthHandler struct {
	userService *service.UserService
	authService *service.AuthService
	forms       *validation.Forms
}

// NewAuthHandler wires dependencies for authentication endpoints.
func NewAuthHandler(userService *service.UserService, authService *service.AuthService, forms *validation.Forms) *AuthHandler {
	return &AuthHandler{
		userService: userService,
		authService: authService,
		forms:       forms,
	}
}

// Register handles POST /auth/register.
// Validates the signup form (shape + uniqueness) and creates the account.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var form validation.SignupForm
	if err := json.NewDecoder(r.Body).Decode(&form); err != nil {
		httputil.WriteBadRequest(w, "Invalid request body")
		return
	}

	fieldErrs, err := h.forms.Signup(r.Context(), form)
	if err != nil {
		log.Printf("[ERROR] Register validation: %v", err)
		httputil.WriteInternalError(w, "Failed to validate signup")
		return
	}
	if len(fieldErrs) > 0 {
		httputil.WriteValidationFailed(w, fieldErrs)
		return
	}

	user, err := h.userService.Register(r.Context(), &model.RegisterRequest{
		Username: form.Username,
		Email:    form.Email,
		Password: form.Password,
	})
	if err != nil {
		switch {
		case errors.Is(err, model.ErrUsernameTaken):
			// Lost the race between the form check and the insert
			httputil.WriteConflict(w, "Username already taken")
		case errors.Is(err, model.ErrEmailTaken):
			httputil.WriteConflict(w, "Email already registered")
		default:
			log.Printf("[ERROR] Register handler: %v", err)
			httputil.WriteInternalError(w, "Failed to register")
		}
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, user)
}

// Login handles POST /auth/login.
// The remember flag controls whether a long-lived refresh token is issued.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var form validation.LoginForm
	if err := json.NewDecoder(r.Body).Decode(&form); err != nil {
		httputil.WriteBadRequest(w, "Invalid request body")
		return
	}

	if fieldErrs := h.forms.Login(form); len(fieldErrs) > 0 {
		httputil.WriteValidationFailed(w, fieldErrs)
		return
	}

	user, err := h.userService.Login(r.Context(), &model.LoginRequest{
		Username: form.Username,
		Password: form.Password,
	})
	if err != nil {
		if errors.Is(err, model.ErrInvalidCredentials) {
			httputil.WriteUnauthorized(w, "Invalid username or password")
			return
		}
		log.Printf("[ERROR] Login handler: %v", err)
		httputil.WriteInternalError(w, "Failed to login")
		return
	}

	deviceInfo := r.Header.Get("User-Agent")
	ipAddress := clientIP(r)

	tokenPair, err := h.authService.GenerateTokenPair(r.Context(), user.ID, form.RememberMe, deviceInfo, ipAddress)
	if err != nil {
		log.Printf("[ERROR] Login token generation: %v", err)
		httputil.WriteInternalError(w, "Failed to generate tokens")
		return
	}

	httputil.WriteJSON(w, http.StatusOK, model.LoginResponse{
		User:         user,
		AccessToken:  tokenPair.AccessToken,
		RefreshToken: tokenPair.RefreshToken,
		ExpiresIn:    tokenPair.ExpiresIn,
	})
}

// Me handles GET /me, returning the currently authenticated user.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		httputil.WriteUnauthorized(w, "Not authenticated")
		return
	}

	user, err := h.userService.GetByID(r.Context(), userID)
	if err != nil {
		if errors.Is(err, model.ErrUserNotFound) {
			// Token outlived the account; session is just unauthenticated
			httputil.WriteUnauthorized(w, "Not authenticated")
			return
		}
		log.Printf("[ERROR] Me handler: %v", err)
		httputil.WriteInternalError(w, "Failed to get user")
		return
	}

	httputil.WriteJSON(w, http.StatusOK, user)
}

// Refresh handles POST /auth/refresh.
func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	var req model.RefreshRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteBadRequest(w, "Invalid request body")
		return
	}

	if req.RefreshToken == "" {
		httputil.WriteBadRequest(w, "Refresh token is required")
		return
	}

	tokenPair, _, err := h.authService.RefreshTokens(r.Context(), req.RefreshToken, r.Header.Get("User-Agent"), clientIP(r))
	if err != nil {
		switch {
		case errors.Is(err, model.ErrRefreshTokenNotFound):
			httputil.WriteUnauthorized(w, "Invalid refresh token")
		case errors.Is(err, model.ErrRefreshTokenExpired):
			httputil.WriteUnauthorizedWithCode(w, model.CodeTokenExpired, "Refresh token has expired")
		case errors.Is(err, model.ErrRefreshTokenReused):
			httputil.WriteUnauthorizedWithCode(w, model.CodeTokenReused, "Refresh token reuse detected. Please login again.")
		default:
			log.Printf("[ERROR] Refresh handler: %v", err)
			httputil.WriteInternalError(w, "Failed to refresh tokens")
		}
		return
	}

	httputil.WriteJSON(w, http.StatusOK, tokenPair)
}

// Logout handles POST /auth/logout.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	var req model.LogoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteBadRequest(w, "Invalid request body")
		return
	}

	if req.RefreshToken == "" {
		httputil.WriteBadRequest(w, "Refresh token is required")
		return
	}

	err := h.authService.RevokeRefreshToken(r.Context(), req.RefreshToken)
	if err != nil && !errors.Is(err, model.ErrRefreshTokenNotFound) {
		log.Printf("[ERROR] Logout handler: %v", err)
		httputil.WriteInternalError(w, "Failed to logout")
		return
	}

	// Already-revoked or unknown token still logs out successfully
	httputil.WriteJSON(w, http.StatusOK, map[string]string{
		"message": "Logged out successfully",
	})
}

// LogoutAll handles POST /auth/logout-all, revoking every refresh token
// for the authenticated user.
func (h *AuthHandler) LogoutAll(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		httputil.WriteUnauthorized(w, "Not authenticated")
		return
	}

	if err := h.authService.RevokeAllUserTokens(r.Context(), userID); err != nil {
		log.Printf("[ERROR] LogoutAll handler: %v", err)
		httputil.WriteInternalError(w, "Failed to logout from all devices")
		return
	}

	httputil.WriteJSON(w, http.StatusOK, map[string]string{
		"message": "Logged out from all devices",
	})
}

// RequestPasswordReset handles POST /auth/reset-password.
// The response never reveals whether the email is registered.
func (h *AuthHandler) RequestPasswordReset(w http.ResponseWriter, r *http.Request) {
	var form validation.ResetPasswordRequestForm
	if err := json.NewDecoder(r.Body).Decode(&form); err != nil {
		httputil.WriteBadRequest(w, "Invalid request body")
		return
	}

	if fieldErrs := h.forms.ResetPasswordRequest(form); len(fieldErrs) > 0 {
		httputil.WriteValidationFailed(w, fieldErrs)
		return
	}

	user, err := h.userService.GetByEmail(r.Context(), form.Email)
	if err == nil {
		token, err := h.authService.GenerateResetToken(user.ID)
		if err != nil {
			log.Printf("[ERROR] Reset token generation: user=%d err=%v", user.ID, err)
		} else {
			// Delivery channel (email) is wired by deployment; the token is
			// handed off here.
			log.Printf("[AuthHandler] Password reset token issued: user=%d token=%s", user.ID, token)
		}
	} else if !errors.Is(err, model.ErrUserNotFound) {
		log.Printf("[ERROR] RequestPasswordReset lookup: %v", err)
		httputil.WriteInternalError(w, "Failed to process reset request")
		return
	}

	httputil.WriteJSON(w, http.StatusOK, map[string]string{
		"message": "If that email is registered, a reset link has been sent",
	})
}

// ResetPassword handles POST /auth/reset-password/confirm, redeeming a
// reset token for a new password and invalidating existing sessions.
func (h *AuthHandler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	var req model.ResetPasswordConfirm
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteBadRequest(w, "Invalid request body")
		return
	}

	form := validation.ResetPasswordForm{Password: req.Password, Password2: req.Password2}
	if fieldErrs := h.forms.ResetPassword(form); len(fieldErrs) > 0 {
		httputil.WriteValidationFailed(w, fieldErrs)
		return
	}

	userID, err := h.authService.VerifyResetToken(req.Token)
	if err != nil {
		httputil.WriteUnauthorized(w, "Invalid or expired reset token")
		return
	}

	if err := h.userService.SetPassword(r.Context(), userID, req.Password); err != nil {
		if errors.Is(err, model.ErrUserNotFound) {
			httputil.WriteUnauthorized(w, "Invalid or expired reset token")
			return
		}
		log.Printf("[ERROR] ResetPassword handler: user=%d err=%v", userID, err)
		httputil.WriteInternalError(w, "Failed to reset password")
		return
	}

	if err := h.authService.RevokeAllUserTokens(r.Context(), userID); err != nil {
		log.Printf("[ERROR] ResetPassword revoke sessions: user=%d err=%v", userID, err)
	}

	httputil.WriteJSON(w, http.StatusOK, map[string]string{
		"message": "Password has been reset",
	})
}

// clientIP extracts the client IP, honoring proxy headers.
func clientIP(r *http.Request) string {
	xff := r.Header.Get("X-Forwarded-For")
	if xff != "" {
		ips := strings.Split(xff, ",")
		return strings.TrimSpace(ips[0])
	}

	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}

	// RemoteAddr is "IP:port"
	addr := r.RemoteAddr
	if idx := strings.LastIndex(addr, ":"); idx != -1 {
		return addr[:idx]
	}
	return addr
}
