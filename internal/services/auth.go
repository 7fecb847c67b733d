package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gofrs/uuid"
	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"

	"todo-planner/internal/clock"
	"todo-planner/internal/models"
	"todo-planner/internal/repositories"
)

type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"`
}

type AuthService interface {
	LoginUser(ctx context.Context, email, password string) (*models.User, error)
	GenerateToken(ctx context.Context, userID uuid.UUID) (*TokenPair, error)
	// RefreshToken exchanges a refresh token for a new pair. The old refresh
	// token stops working.
	RefreshToken(ctx context.Context, refreshToken string) (*TokenPair, error)
	RevokeToken(ctx context.Context, refreshToken string) error
}

type AuthConfig struct {
	Secret          []byte
	Issuer          string
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration
}

type AuthServiceImpl struct {
	users  repositories.UserRepository
	tokens repositories.TokenRepository
	hasher *PasswordHasher
	clock  clock.Clock
	config AuthConfig
	log    zerolog.Logger
}

func NewAuthService(
	users repositories.UserRepository,
	tokens repositories.TokenRepository,
	hasher *PasswordHasher,
	c clock.Clock,
	config AuthConfig,
	log zerolog.Logger,
) *AuthServiceImpl {
	return &AuthServiceImpl{
		users:  users,
		tokens: tokens,
		hasher: hasher,
		clock:  c,
		config: config,
		log:    log,
	}
}

func (s *AuthServiceImpl) LoginUser(ctx context.Context, email, password string) (*models.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			s.log.Debug().Str("email", email).Msg("login for unknown email")
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	ok, err := s.hasher.Verify(user.PasswordHash, password)
	if err != nil {
		return nil, fmt.Errorf("failed to compare password: %w", err)
	}
	if !ok {
		s.log.Debug().Str("user_id", user.ID.String()).Msg("password mismatch")
		return nil, ErrInvalidCredentials
	}
	return user, nil
}

func (s *AuthServiceImpl) GenerateToken(ctx context.Context, userID uuid.UUID) (*TokenPair, error) {
	now := s.clock.Now().UTC()

	tokenID, err := uuid.NewV4()
	if err != nil {
		return nil, err
	}

	accessToken := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id": userID.String(),
		"iss":     s.config.Issuer,
		"jti":     tokenID.String(),
		"iat":     now.Unix(),
		"exp":     now.Add(s.config.AccessTokenTTL).Unix(),
	})
	accessTokenString, err := accessToken.SignedString(s.config.Secret)
	if err != nil {
		return nil, fmt.Errorf("failed to sign token: %w", err)
	}

	refreshTokenUUID, err := uuid.NewV4()
	if err != nil {
		return nil, err
	}

	token := models.Token{
		UserId:       userID,
		RefreshToken: refreshTokenUUID,
		ExpiresAt:    now.Add(s.config.RefreshTokenTTL),
		CreatedAt:    now,
	}
	if err := s.tokens.Create(ctx, &token); err != nil {
		return nil, err
	}

	return &TokenPair{
		AccessToken:  accessTokenString,
		RefreshToken: refreshTokenUUID.String(),
		TokenType:    "Bearer",
		ExpiresIn:    int64(s.config.AccessTokenTTL.Seconds()),
	}, nil
}

func (s *AuthServiceImpl) RefreshToken(ctx context.Context, refreshToken string) (*TokenPair, error) {
	parsed, err := uuid.FromString(refreshToken)
	if err != nil {
		return nil, ErrInvalidRefreshToken
	}

	token, err := s.tokens.GetValid(ctx, parsed, s.clock.Now().UTC())
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, ErrInvalidRefreshToken
		}
		return nil, err
	}

	// Deleting first means a token replayed concurrently loses the race
	// instead of minting a second pair.
	if err := s.tokens.Delete(ctx, parsed); err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, ErrInvalidRefreshToken
		}
		return nil, err
	}

	return s.GenerateToken(ctx, token.UserId)
}

func (s *AuthServiceImpl) RevokeToken(ctx context.Context, refreshToken string) error {
	parsed, err := uuid.FromString(refreshToken)
	if err != nil {
		return ErrInvalidRefreshToken
	}
	if err := s.tokens.Delete(ctx, parsed); err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return ErrInvalidRefreshToken
		}
		return err
	}
	return nil
}
