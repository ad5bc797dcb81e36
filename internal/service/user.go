package service

import (
	"context"
	"fmt"
	"strings"

	"microblog/internal/avatar"
	"microblog/internal/model"
	"microblog/internal/repository"
	"microblog/internal/security"
)

// Avatar sizes used in API responses.
const (
	ProfileAvatarSize = 128
	ListAvatarSize    = 36
)

// UserService handles business logic for user operations
type UserService struct {
	repo       repository.UserRepository
	followRepo repository.FollowRepository
	hasher     security.PasswordHasher
	avatars    *avatar.Service
}

func NewUserService(
	repo repository.UserRepository,
	followRepo repository.FollowRepository,
	hasher security.PasswordHasher,
	avatars *avatar.Service,
) *UserService {
	return &UserService{
		repo:       repo,
		followRepo: followRepo,
		hasher:     hasher,
		avatars:    avatars,
	}
}

// Register creates a new user account. The signup form has already checked
// uniqueness; the checks here are defense in depth, and the unique indexes
// catch whatever slips through a concurrent signup.
func (s *UserService) Register(ctx context.Context, req *model.RegisterRequest) (*model.User, error) {
	if strings.TrimSpace(req.Username) == "" {
		return nil, fmt.Errorf("username is required")
	}
	if strings.TrimSpace(req.Email) == "" {
		return nil, fmt.Errorf("email is required")
	}
	if req.Password == "" {
		return nil, fmt.Errorf("password is required")
	}

	exists, err := s.repo.ExistsByUsername(ctx, req.Username)
	if err != nil {
		return nil, fmt.Errorf("failed to check username: %w", err)
	}
	if exists {
		return nil, model.ErrUsernameTaken
	}

	exists, err = s.repo.ExistsByEmail(ctx, req.Email)
	if err != nil {
		return nil, fmt.Errorf("failed to check email: %w", err)
	}
	if exists {
		return nil, model.ErrEmailTaken
	}

	passwordHash, err := s.hasher.Hash(req.Password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &model.User{
		Username:     req.Username,
		Email:        req.Email,
		PasswordHash: passwordHash,
	}

	if err := s.repo.Create(ctx, user); err != nil {
		// ErrUsernameTaken / ErrEmailTaken from the unique index pass
		// through unchanged so the handler can report the right field.
		return nil, err
	}

	return user, nil
}

// Login authenticates a user with username and password.
func (s *UserService) Login(ctx context.Context, req *model.LoginRequest) (*model.User, error) {
	user, err := s.repo.GetByUsername(ctx, req.Username)
	if err != nil {
		// Don't reveal whether the username exists
		return nil, model.ErrInvalidCredentials
	}

	if !s.hasher.Check(user.PasswordHash, req.Password) {
		return nil, model.ErrInvalidCredentials
	}

	return user, nil
}

// GetByID retrieves a user by ID. Used by the session layer to rehydrate
// identity on every request: a missing id yields model.ErrUserNotFound,
// never a crash, so stale sessions degrade to unauthenticated.
func (s *UserService) GetByID(ctx context.Context, id int64) (*model.User, error) {
	return s.repo.GetByID(ctx, id)
}

// AvatarURL returns the identicon URL for a user at the requested size.
func (s *UserService) AvatarURL(user *model.User, size int) string {
	return s.avatars.URL(user.Email, size)
}

// GetProfile retrieves a user's profile with avatar URL and, when a viewer
// is known, their follow relationship to the profile. The follow lookup is
// best-effort: its failure doesn't block the profile.
func (s *UserService) GetProfile(ctx context.Context, userID int64, viewerID *int64) (*model.ProfileResponse, error) {
	user, err := s.repo.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	profile := &model.ProfileResponse{
		User:      user,
		AvatarURL: s.avatars.URL(user.Email, ProfileAvatarSize),
	}

	if viewerID != nil && *viewerID != userID {
		isFollowing, err := s.followRepo.Exists(ctx, *viewerID, userID)
		if err == nil {
			profile.IsFollowing = isFollowing
		}
	}

	return profile, nil
}

// UpdateProfile applies an edit-profile submission. The form layer has
// already validated shape and username uniqueness (skipping the check when
// the name is unchanged); the unique index still backstops the rename race.
func (s *UserService) UpdateProfile(ctx context.Context, userID int64, req *model.UpdateProfileRequest) (*model.User, error) {
	if err := s.repo.UpdateProfile(ctx, userID, req.Username, req.AboutMe); err != nil {
		return nil, err
	}
	return s.repo.GetByID(ctx, userID)
}

// SetPassword hashes and stores a new password for the user.
func (s *UserService) SetPassword(ctx context.Context, userID int64, rawPassword string) error {
	passwordHash, err := s.hasher.Hash(rawPassword)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}
	return s.repo.UpdatePassword(ctx, userID, passwordHash)
}

// GetByEmail retrieves a user by email (case-insensitive). Used by the
// password reset request flow.
func (s *UserService) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	return s.repo.GetByEmail(ctx, email)
}

// TouchLastSeen records request activity for the user. Failures are
// logged by callers at most; losing a last_seen update is harmless.
func (s *UserService) TouchLastSeen(ctx context.Context, userID int64) error {
	return s.repo.TouchLastSeen(ctx, userID)
}
