// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package service

import (
	"context"
	"errors"
	"log/slog"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/olegiv/blockpress/internal/auth"
	"github.com/olegiv/blockpress/internal/model"
	"github.com/olegiv/blockpress/internal/store"
	"github.com/olegiv/blockpress/internal/validation"
)

// MinPasswordLength is the shortest password accepted for seeded accounts.
const MinPasswordLength = 8

// dummyHash is checked for unknown emails so they take as long as wrong passwords.
var dummyHash, _ = auth.HashPassword("blockpress-unknown-user")

// LoginResult is returned by a successful login.
type LoginResult struct {
	User  *model.User `json:"user"`
	Token string      `json:"token"`
}

// AuthService verifies credentials and issues session tokens.
type AuthService struct {
	users  UserRepository
	tokens *auth.TokenIssuer
	audit  *EventService
	logger *slog.Logger
	now    func() time.Time
}

// NewAuthService creates a new auth service.
func NewAuthService(users UserRepository, tokens *auth.TokenIssuer, logger *slog.Logger) *AuthService {
	if logger == nil {
		logger = slog.Default()
	}
	return &AuthService{users: users, tokens: tokens, logger: logger, now: time.Now}
}

// SetAuditLog records logins in the event log.
func (s *AuthService) SetAuditLog(events *EventService) { s.audit = events }

// TokenTTL returns how long issued tokens stay valid.
func (s *AuthService) TokenTTL() time.Duration { return s.tokens.TTL() }

// Login checks an email and password. Unknown emails and wrong passwords
// both yield ErrInvalidCredentials.
func (s *AuthService) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	password = strings.TrimSpace(password)

	var errs validation.Errors
	if email == "" {
		errs = append(errs, validation.FieldError{Field: "email", Message: "Email is required"})
	} else if _, err := mail.ParseAddress(email); err != nil {
		errs = append(errs, validation.FieldError{Field: "email", Message: "Email must be a valid email"})
	}
	if password == "" {
		errs = append(errs, validation.FieldError{Field: "password", Message: "Password is required"})
	}
	if err := newValidationError(errs); err != nil {
		return nil, err
	}

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			_, _ = auth.CheckPassword(password, dummyHash)
			s.logger.Debug("login attempt for non-existent user", "email", email)
			s.auditWarning(ctx, "Login failed: user not found", email)
			return nil, ErrInvalidCredentials
		}
		return nil, fromStore("get user", err)
	}

	valid, err := auth.CheckPassword(password, user.PasswordHash)
	if err != nil {
		s.logger.Error("password check error", "error", err, "user_id", user.ID)
		return nil, ErrInvalidCredentials
	}
	if !valid {
		s.auditWarning(ctx, "Login failed: invalid password", email)
		return nil, ErrInvalidCredentials
	}

	// Re-hash passwords stored with older parameters.
	if auth.NeedsRehash(user.PasswordHash) {
		if newHash, err := auth.HashPassword(password); err == nil {
			if err := s.users.UpdatePassword(ctx, user.ID, newHash, s.now()); err != nil {
				s.logger.Error("failed to re-hash password", "error", err, "user_id", user.ID)
			} else {
				user.PasswordHash = newHash
			}
		}
	}

	token, err := s.tokens.Issue(user)
	if err != nil {
		return nil, &UpstreamError{Op: "issue token", Err: err}
	}

	if s.audit != nil {
		_ = s.audit.LogInfo(ctx, model.EventCategoryAuth, "User logged in", map[string]any{"userId": user.ID})
	}
	return &LoginResult{User: user, Token: token}, nil
}

// Verify resolves a session token to its caller.
func (s *AuthService) Verify(token string) (*model.AuthUser, error) {
	if token == "" {
		return nil, ErrUnauthenticated
	}
	u, err := s.tokens.Verify(token)
	if err != nil {
		return nil, ErrUnauthenticated
	}
	return u, nil
}

// Me returns the stored account of the caller.
func (s *AuthService) Me(ctx context.Context, actor *model.AuthUser) (*model.User, error) {
	if actor == nil {
		return nil, ErrUnauthenticated
	}
	u, err := s.users.GetByID(ctx, actor.ID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrUnauthenticated
	}
	if err != nil {
		return nil, fromStore("get user", err)
	}
	return u, nil
}

// EnsureAdmin creates an admin account with the given credentials when no
// admin exists yet. It reports whether an account was created.
func (s *AuthService) EnsureAdmin(ctx context.Context, email, password string) (bool, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return false, nil
	}

	n, err := s.users.CountAdmins(ctx)
	if err != nil {
		return false, fromStore("count admins", err)
	}
	if n > 0 {
		return false, nil
	}

	if _, err := mail.ParseAddress(email); err != nil {
		return false, invalidField("email", "Email must be a valid email")
	}
	if len(password) < MinPasswordLength {
		return false, invalidField("password", "Password must be at least 8 characters long")
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return false, &UpstreamError{Op: "hash password", Err: err}
	}

	now := s.now().UTC()
	u := &model.User{
		ID:           uuid.NewString(),
		Email:        email,
		Name:         "Administrator",
		PasswordHash: hash,
		Role:         model.RoleAdmin,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.users.Create(ctx, u); err != nil {
		return false, fromStore("create admin", err)
	}

	s.logger.Info("created admin user", "email", email)
	return true, nil
}

func (s *AuthService) auditWarning(ctx context.Context, message, email string) {
	if s.audit != nil {
		_ = s.audit.LogWarning(ctx, model.EventCategoryAuth, message, map[string]any{"email": email})
	}
}
