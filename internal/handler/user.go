package handler

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"microblog/internal/httputil"
	"microblog/internal/model"
	"microblog/internal/service"
	"microblog/internal/transport/http/middleware"
	"microblog/internal/validation"
)

// UserHandler serves profile endpoints.
type UserHandler struct {
	userService *service.UserService
	forms       *validation.Forms
}

func NewUserHandler(userService *service.UserService, forms *validation.Forms) *UserHandler {
	return &UserHandler{
		userService: userService,
		forms:       forms,
	}
}

// GetProfile handles GET /users/{id}. Works for anonymous viewers; when a
// viewer is authenticated the response carries their follow status.
func (h *UserHandler) GetProfile(w http.ResponseWriter, r *http.Request) {
	userID, err := parseIDParam(r, "id")
	if err != nil {
		httputil.WriteBadRequest(w, "Invalid user ID")
		return
	}

	var viewerID *int64
	if id, ok := middleware.GetUserIDFromContext(r.Context()); ok {
		viewerID = &id
	}

	profile, err := h.userService.GetProfile(r.Context(), userID, viewerID)
	if err != nil {
		if errors.Is(err, model.ErrUserNotFound) {
			httputil.WriteNotFound(w, "User not found")
			return
		}
		log.Printf("[ERROR] GetProfile handler: user=%d err=%v", userID, err)
		httputil.WriteInternalError(w, "Failed to get profile")
		return
	}

	httputil.WriteJSON(w, http.StatusOK, profile)
}

// UpdateProfile handles PUT /me/profile. The username uniqueness check is
// skipped when the submitted username matches the caller's current one.
func (h *UserHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		httputil.WriteUnauthorized(w, "Not authenticated")
		return
	}

	var form validation.EditProfileForm
	if err := json.NewDecoder(r.Body).Decode(&form); err != nil {
		httputil.WriteBadRequest(w, "Invalid request body")
		return
	}

	current, err := h.userService.GetByID(r.Context(), userID)
	if err != nil {
		if errors.Is(err, model.ErrUserNotFound) {
			httputil.WriteUnauthorized(w, "Not authenticated")
			return
		}
		log.Printf("[ERROR] UpdateProfile lookup: user=%d err=%v", userID, err)
		httputil.WriteInternalError(w, "Failed to update profile")
		return
	}

	fieldErrs, err := h.forms.EditProfile(r.Context(), form, current.Username)
	if err != nil {
		log.Printf("[ERROR] UpdateProfile validation: user=%d err=%v", userID, err)
		httputil.WriteInternalError(w, "Failed to validate profile")
		return
	}
	if len(fieldErrs) > 0 {
		httputil.WriteValidationFailed(w, fieldErrs)
		return
	}

	updated, err := h.userService.UpdateProfile(r.Context(), userID, &model.UpdateProfileRequest{
		Username: form.Username,
		AboutMe:  &form.AboutMe,
	})
	if err != nil {
		switch {
		case errors.Is(err, model.ErrUsernameTaken):
			httputil.WriteConflict(w, "Username already taken")
		case errors.Is(err, model.ErrUserNotFound):
			httputil.WriteNotFound(w, "User not found")
		default:
			log.Printf("[ERROR] UpdateProfile handler: user=%d err=%v", userID, err)
			httputil.WriteInternalError(w, "Failed to update profile")
		}
		return
	}

	httputil.WriteJSON(w, http.StatusOK, updated)
}

// parseIDParam parses a positive int64 URL parameter.
func parseIDParam(r *http.Request, name string) (int64, error) {
	raw := chi.URLParam(r, name)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, errors.New("invalid id")
	}
	return id, nil
}
