package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"golang.org/x/crypto/bcrypt"

	"microblog/internal/avatar"
	"microblog/internal/model"
	"microblog/internal/security"
	"microblog/internal/service"
	"microblog/internal/transport/http/middleware"
	"microblog/internal/validation"
)

// stubUserRepository backs profile handler tests with a single in-memory
// user and records what UpdateProfile was called with.
type stubUserRepository struct {
	user *model.User

	updatedUsername string
	updatedAboutMe  *string
}

func (s *stubUserRepository) Create(ctx context.Context, u *model.User) error { return nil }

func (s *stubUserRepository) GetByID(ctx context.Context, id int64) (*model.User, error) {
	if s.user == nil || s.user.ID != id {
		return nil, model.ErrUserNotFound
	}
	return s.user, nil
}

func (s *stubUserRepository) GetByUsername(ctx context.Context, username string) (*model.User, error) {
	return nil, model.ErrUserNotFound
}

func (s *stubUserRepository) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	return nil, model.ErrUserNotFound
}

func (s *stubUserRepository) ExistsByUsername(ctx context.Context, username string) (bool, error) {
	return false, nil
}

func (s *stubUserRepository) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	return false, nil
}

func (s *stubUserRepository) UpdateProfile(ctx context.Context, id int64, username string, aboutMe *string) error {
	s.updatedUsername = username
	s.updatedAboutMe = aboutMe
	s.user.Username = username
	s.user.AboutMe = aboutMe
	return nil
}

func (s *stubUserRepository) UpdatePassword(ctx context.Context, id int64, passwordHash string) error {
	return nil
}

func (s *stubUserRepository) TouchLastSeen(ctx context.Context, id int64) error { return nil }

func (s *stubUserRepository) IncrementFollowerCount(ctx context.Context, tx *sqlx.Tx, userID int64, delta int) error {
	return nil
}

func (s *stubUserRepository) IncrementFollowingCount(ctx context.Context, tx *sqlx.Tx, userID int64, delta int) error {
	return nil
}

type stubFollowRepository struct{}

func (s *stubFollowRepository) Create(ctx context.Context, tx *sqlx.Tx, followerID, followedID int64) (bool, error) {
	return true, nil
}

func (s *stubFollowRepository) Delete(ctx context.Context, tx *sqlx.Tx, followerID, followedID int64) error {
	return nil
}

func (s *stubFollowRepository) Exists(ctx context.Context, followerID, followedID int64) (bool, error) {
	return false, nil
}

func (s *stubFollowRepository) GetFollowers(ctx context.Context, userID int64, cursor *time.Time, limit int) ([]model.UserSummary, *time.Time, error) {
	return nil, nil, nil
}

func (s *stubFollowRepository) GetFollowing(ctx context.Context, userID int64, cursor *time.Time, limit int) ([]model.UserSummary, *time.Time, error) {
	return nil, nil, nil
}

func (s *stubFollowRepository) CheckFollows(ctx context.Context, followerID int64, followedIDs []int64) (map[int64]bool, error) {
	return nil, nil
}

func (s *stubFollowRepository) GetFollowerIDs(ctx context.Context, userID int64) ([]int64, error) {
	return nil, nil
}

func (s *stubFollowRepository) GetFollowedIDs(ctx context.Context, userID int64) ([]int64, error) {
	return nil, nil
}

func newTestUserHandler(repo *stubUserRepository) *UserHandler {
	users := service.NewUserService(repo, &stubFollowRepository{}, security.NewBcryptHasher(bcrypt.MinCost), avatar.New("", nil))
	return NewUserHandler(users, validation.NewForms(repo))
}

func updateProfileRequest(t *testing.T, userID int64, payload map[string]string) *http.Request {
	t.Helper()

	body, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}

	req := httptest.NewRequest(http.MethodPut, "/me/profile", bytes.NewReader(body))
	return req.WithContext(context.WithValue(req.Context(), middleware.UserIDKey, userID))
}

func TestUserHandler_UpdateProfile_SavesBio(t *testing.T) {
	repo := &stubUserRepository{user: &model.User{ID: 1, Username: "susan", Email: "susan@example.com"}}
	h := newTestUserHandler(repo)

	rec := httptest.NewRecorder()
	h.UpdateProfile(rec, updateProfileRequest(t, 1, map[string]string{
		"username": "susan",
		"about_me": "Hello, world!",
	}))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d (body=%s)", rec.Code, http.StatusOK, rec.Body.String())
	}
	if repo.updatedUsername != "susan" {
		t.Errorf("stored username = %q, want %q", repo.updatedUsername, "susan")
	}
	if repo.updatedAboutMe == nil || *repo.updatedAboutMe != "Hello, world!" {
		t.Errorf("stored bio = %v, want %q", repo.updatedAboutMe, "Hello, world!")
	}

	var updated model.User
	if err := json.Unmarshal(rec.Body.Bytes(), &updated); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if updated.AboutMe == nil || *updated.AboutMe != "Hello, world!" {
		t.Errorf("response bio = %v, want %q", updated.AboutMe, "Hello, world!")
	}
}

func TestUserHandler_UpdateProfile_ClearsBio(t *testing.T) {
	bio := "old bio"
	repo := &stubUserRepository{user: &model.User{ID: 1, Username: "susan", Email: "susan@example.com", AboutMe: &bio}}
	h := newTestUserHandler(repo)

	rec := httptest.NewRecorder()
	h.UpdateProfile(rec, updateProfileRequest(t, 1, map[string]string{
		"username": "susan",
		"about_me": "",
	}))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d (body=%s)", rec.Code, http.StatusOK, rec.Body.String())
	}
	if repo.updatedAboutMe == nil || *repo.updatedAboutMe != "" {
		t.Errorf("stored bio = %v, want empty string", repo.updatedAboutMe)
	}
}

func TestUserHandler_UpdateProfile_BioTooLong(t *testing.T) {
	repo := &stubUserRepository{user: &model.User{ID: 1, Username: "susan", Email: "susan@example.com"}}
	h := newTestUserHandler(repo)

	rec := httptest.NewRecorder()
	h.UpdateProfile(rec, updateProfileRequest(t, 1, map[string]string{
		"username": "susan",
		"about_me": strings.Repeat("x", 141),
	}))

	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusUnprocessableEntity)
	}
	if repo.updatedAboutMe != nil || repo.updatedUsername != "" {
		t.Error("repository should not be updated when validation fails")
	}
}
