package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"microblog/internal/config"
	"microblog/internal/model"
	"microblog/internal/repository"
)

// AuthService handles authentication-related business logic with refresh
// token rotation and reuse detection, plus signed password reset tokens.
type AuthService struct {
	refreshTokenRepo repository.RefreshTokenRepository
	config           *config.Config
}

func NewAuthService(refreshTokenRepo repository.RefreshTokenRepository, cfg *config.Config) *AuthService {
	return &AuthService{
		refreshTokenRepo: refreshTokenRepo,
		config:           cfg,
	}
}

// GenerateTokenPair issues a new access token and, when remember is set,
// persists a refresh token. A plain session login gets only the
// short-lived access token.
func (s *AuthService) GenerateTokenPair(ctx context.Context, userID int64, remember bool, deviceInfo, ipAddress string) (*model.TokenPair, error) {
	accessToken, err := s.generateAccessToken(userID)
	if err != nil {
		return nil, fmt.Errorf("failed to generate access token: %w", err)
	}

	pair := &model.TokenPair{
		AccessToken: accessToken,
		ExpiresIn:   s.config.AccessTokenMaxAge,
	}

	if !remember {
		return pair, nil
	}

	refreshTokenRaw := uuid.New().String()

	refreshToken := &model.RefreshToken{
		UserID:    userID,
		TokenHash: s.hashToken(refreshTokenRaw),
		ExpiresAt: time.Now().Add(time.Duration(s.config.RefreshTokenMaxAge) * time.Second),
	}

	if deviceInfo != "" {
		refreshToken.DeviceInfo = &deviceInfo
	}
	if ipAddress != "" {
		refreshToken.IPAddress = &ipAddress
	}

	if err := s.refreshTokenRepo.Create(ctx, refreshToken); err != nil {
		return nil, fmt.Errorf("failed to store refresh token: %w", err)
	}

	pair.RefreshToken = refreshTokenRaw
	return pair, nil
}

// RefreshTokens validates the refresh token and rotates a new pair.
// Presenting a revoked token is treated as reuse and revokes the whole
// family for that user.
func (s *AuthService) RefreshTokens(ctx context.Context, refreshTokenRaw, deviceInfo, ipAddress string) (*model.TokenPair, int64, error) {
	token, err := s.refreshTokenRepo.FindByTokenHash(ctx, s.hashToken(refreshTokenRaw))
	if err != nil {
		return nil, 0, model.ErrRefreshTokenNotFound
	}

	if token.IsRevoked() {
		if err := s.refreshTokenRepo.RevokeAllForUser(ctx, token.UserID); err != nil {
			log.Printf("[AuthService] Failed to revoke token family: user=%d err=%v", token.UserID, err)
		}
		return nil, 0, model.ErrRefreshTokenReused
	}

	if token.IsExpired() {
		return nil, 0, model.ErrRefreshTokenExpired
	}

	newTokenPair, err := s.GenerateTokenPair(ctx, token.UserID, true, deviceInfo, ipAddress)
	if err != nil {
		return nil, 0, err
	}

	var replacedByID *string
	if newToken, err := s.refreshTokenRepo.FindByTokenHash(ctx, s.hashToken(newTokenPair.RefreshToken)); err == nil && newToken != nil {
		replacedByID = &newToken.ID
	}

	if err := s.refreshTokenRepo.Revoke(ctx, token.ID, replacedByID); err != nil {
		log.Printf("[AuthService] Failed to revoke rotated token: id=%s err=%v", token.ID, err)
	}

	return newTokenPair, token.UserID, nil
}

// RevokeRefreshToken revokes a single refresh token (logout).
func (s *AuthService) RevokeRefreshToken(ctx context.Context, refreshTokenRaw string) error {
	token, err := s.refreshTokenRepo.FindByTokenHash(ctx, s.hashToken(refreshTokenRaw))
	if err != nil {
		return err
	}
	return s.refreshTokenRepo.Revoke(ctx, token.ID, nil)
}

// RevokeAllUserTokens revokes every refresh token for a user (logout-all).
func (s *AuthService) RevokeAllUserTokens(ctx context.Context, userID int64) error {
	return s.refreshTokenRepo.RevokeAllForUser(ctx, userID)
}

// CleanupExpiredTokens deletes refresh tokens that expired more than grace
// ago. Rows are kept for the grace window so reuse of a just-expired token
// still surfaces as expired rather than not-found.
func (s *AuthService) CleanupExpiredTokens(ctx context.Context, grace time.Duration) (int64, error) {
	return s.refreshTokenRepo.DeleteExpired(ctx, grace)
}

// GenerateResetToken issues a short-lived signed token that authorizes a
// password reset for the given user. Delivery (email) is out of scope here.
func (s *AuthService) GenerateResetToken(userID int64) (string, error) {
	claims := jwt.MapClaims{
		"reset_password": userID,
		"exp":            time.Now().Add(time.Duration(s.config.ResetTokenMaxAge) * time.Second).Unix(),
		"iat":            time.Now().Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(s.config.JWTSecret))
	if err != nil {
		return "", fmt.Errorf("failed to sign reset token: %w", err)
	}
	return signed, nil
}

// VerifyResetToken validates a reset token and returns the user id it was
// issued for. Any parse, signature, or expiry problem maps to
// model.ErrInvalidResetToken.
func (s *AuthService) VerifyResetToken(tokenString string) (int64, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return []byte(s.config.JWTSecret), nil
	})
	if err != nil || !token.Valid {
		return 0, model.ErrInvalidResetToken
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return 0, model.ErrInvalidResetToken
	}

	userIDFloat, ok := claims["reset_password"].(float64)
	if !ok {
		return 0, model.ErrInvalidResetToken
	}

	return int64(userIDFloat), nil
}

func (s *AuthService) generateAccessToken(userID int64) (string, error) {
	claims := jwt.MapClaims{
		"user_id": userID,
		"exp":     time.Now().Add(time.Duration(s.config.AccessTokenMaxAge) * time.Second).Unix(),
		"iat":     time.Now().Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(s.config.JWTSecret))
}

func (s *AuthService) hashToken(token string) string {
	hash := sha256.Sum256([]byte(token))
	return hex.EncodeToString(hash[:])
}
