package user

import (
	"context"
	"errors"
	"strings"

	"gymflow/internal/auth"
	"gymflow/internal/logger"
)

var (
	ErrEmailExists        = errors.New("email already exists")
	ErrInvalidCredentials = errors.New("invalid credentials")
)

type Service interface {
	Register(ctx context.Context, req RegisterRequest) (*User, auth.TokenPair, error)
	Login(ctx context.Context, req LoginRequest) (*User, auth.TokenPair, error)
	GetByID(ctx context.Context, userID int) (*User, error)
	Refresh(ctx context.Context, refreshToken string) (string, *User, error)
}

type service struct {
	repo      Repository
	jwtSecret string
}

func NewService(repo Repository, jwtSecret string) Service {
	return &service{repo: repo, jwtSecret: jwtSecret}
}

// Register creates a member account. Staff roles are assigned by operators.
func (s *service) Register(ctx context.Context, req RegisterRequest) (*User, auth.TokenPair, error) {
	email := strings.ToLower(strings.TrimSpace(req.Email))

	exists, err := s.repo.EmailExists(ctx, email)
	if err != nil {
		return nil, auth.TokenPair{}, err
	}
	if exists {
		return nil, auth.TokenPair{}, ErrEmailExists
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		return nil, auth.TokenPair{}, err
	}

	u, err := s.repo.Create(ctx, strings.TrimSpace(req.Name), email, hash, auth.RoleMember)
	if err != nil {
		return nil, auth.TokenPair{}, err
	}

	tokens, err := auth.IssueTokens(u.Identity(), s.jwtSecret)
	if err != nil {
		return nil, auth.TokenPair{}, err
	}
	logger.Info("member registered", "user_id", u.ID)
	return u, tokens, nil
}

func (s *service) Login(ctx context.Context, req LoginRequest) (*User, auth.TokenPair, error) {
	u, err := s.repo.FindByEmail(ctx, strings.ToLower(strings.TrimSpace(req.Email)))
	if err != nil {
		return nil, auth.TokenPair{}, ErrInvalidCredentials
	}
	if !auth.CheckPassword(u.PasswordHash, req.Password) {
		return nil, auth.TokenPair{}, ErrInvalidCredentials
	}

	tokens, err := auth.IssueTokens(u.Identity(), s.jwtSecret)
	if err != nil {
		return nil, auth.TokenPair{}, err
	}
	return u, tokens, nil
}

func (s *service) GetByID(ctx context.Context, userID int) (*User, error) {
	return s.repo.FindByID(ctx, userID)
}

// Refresh issues a new access token carrying the user's current role.
func (s *service) Refresh(ctx context.Context, refreshToken string) (string, *User, error) {
	_, claims, err := auth.Refresh(refreshToken, s.jwtSecret)
	if err != nil {
		return "", nil, err
	}

	u, err := s.repo.FindByID(ctx, claims.UserID)
	if err != nil {
		return "", nil, ErrUserNotFound
	}

	access, err := auth.GenerateAccessToken(u.Identity(), s.jwtSecret)
	if err != nil {
		return "", nil, err
	}
	return access, u, nil
}
