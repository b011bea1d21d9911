package adstore

import (
	"context"
	"errors"
	"net/mail"
	"strings"

	"adwatch/internal/domain"
	"adwatch/internal/repository"

	"go.uber.org/zap"
)

// MinPasswordLength is the shortest accepted password
const MinPasswordLength = 8

// Register creates a member account
func (s *Service) Register(ctx context.Context, email, password, name string) (*domain.User, error) {
	return s.createUser(ctx, email, password, name, domain.RoleMember)
}

// EnsureAdmin creates an admin account when the user table is empty and
// reports whether it did
func (s *Service) EnsureAdmin(ctx context.Context, email, password string) (bool, error) {
	n, err := s.repos.Users.Count(ctx)
	if err != nil {
		return false, domain.Transient("count users", err)
	}
	if n > 0 {
		return false, nil
	}
	if _, err := s.createUser(ctx, email, password, "Administrator", domain.RoleAdmin); err != nil {
		return false, err
	}
	return true, nil
}

// Authenticate checks credentials and returns the user or domain.ErrAuth
func (s *Service) Authenticate(ctx context.Context, email, password string) (*domain.User, error) {
	u, err := s.repos.Users.GetByEmail(ctx, normalizeEmail(email))
	if err != nil {
		return nil, domain.Transient("get user", err)
	}
	if u == nil || !repository.CheckPassword(password, u.PasswordHash) {
		return nil, domain.ErrAuth
	}
	return u, nil
}

// GetUser returns the user with id, or domain.ErrAuth when it no longer exists
func (s *Service) GetUser(ctx context.Context, id int64) (*domain.User, error) {
	u, err := s.repos.Users.GetByID(ctx, id)
	if err != nil {
		return nil, domain.Transient("get user", err)
	}
	if u == nil {
		return nil, domain.ErrAuth
	}
	return u, nil
}

func (s *Service) createUser(ctx context.Context, email, password, name, role string) (*domain.User, error) {
	email = normalizeEmail(email)
	name = strings.TrimSpace(name)
	if _, err := mail.ParseAddress(email); err != nil || email == "" {
		return nil, &domain.FieldError{Field: "email", Message: "is not a valid address"}
	}
	if len(password) < MinPasswordLength {
		return nil, &domain.FieldError{Field: "password", Message: "is too short"}
	}
	if name == "" {
		name = email
	}

	hash, err := repository.HashPassword(password)
	if err != nil {
		return nil, err
	}
	u := &domain.User{Email: email, PasswordHash: hash, Name: name, Role: role, CreatedAt: s.now()}
	if err := s.repos.Users.Create(ctx, u); err != nil {
		if errors.Is(err, domain.ErrUserExists) {
			return nil, err
		}
		return nil, domain.Transient("create user", err)
	}
	s.log.Info("user registered", zap.Int64("user_id", u.ID), zap.String("role", role))
	return u, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
