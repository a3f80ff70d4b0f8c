package service

import (
	"context"
	"crypto/subtle"
	"strings"
	"time"

	"github.com/spec-kit/support-desk/internal/auth"
	"github.com/spec-kit/support-desk/internal/config"
	"github.com/spec-kit/support-desk/internal/domain"
	"github.com/spec-kit/support-desk/internal/repository"
	apperrors "github.com/spec-kit/support-desk/pkg/util/errorutil"
)

// AuthService coordinates registration and login flows.
type AuthService struct {
	users      repository.UserRepository
	tokenMgr   *auth.TokenManager
	bcryptCost int
	adminCode  string
}

// AuthDependencies encapsulates requirements for auth service.
type AuthDependencies struct {
	UserRepo     repository.UserRepository
	TokenManager *auth.TokenManager
}

// SignupInput carries registration fields.
type SignupInput struct {
	Name       string
	Email      string
	Password   string
	Role       domain.Role
	InviteCode string
}

// AuthResult is returned by signup and login.
type AuthResult struct {
	User      *domain.User
	Token     string
	ExpiresAt time.Time
}

// NewAuthService builds the service.
func NewAuthService(cfg config.AuthConfig, deps AuthDependencies) *AuthService {
	return &AuthService{
		users:      deps.UserRepo,
		tokenMgr:   deps.TokenManager,
		bcryptCost: cfg.BcryptCost,
		adminCode:  cfg.AdminSignupCode,
	}
}

// NormalizeEmail lower-cases and trims an address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Signup creates an account with the requested role and issues a token.
func (s *AuthService) Signup(ctx context.Context, in SignupInput) (*AuthResult, error) {
	name := strings.TrimSpace(in.Name)
	email := NormalizeEmail(in.Email)
	if name == "" || email == "" || in.Password == "" {
		return nil, apperrors.NewValidationError("name, email and password are required", nil)
	}
	if len(in.Password) > auth.MaxPasswordBytes {
		return nil, apperrors.NewValidationError("password must be at most 72 bytes", map[string]any{"password": "max"})
	}
	if !in.Role.Valid() {
		return nil, apperrors.NewValidationError("invalid role", map[string]any{"role": in.Role})
	}
	if in.Role == domain.RoleAdmin && s.adminCode != "" &&
		subtle.ConstantTimeCompare([]byte(in.InviteCode), []byte(s.adminCode)) != 1 {
		return nil, apperrors.NewForbidden("invalid admin invite code")
	}

	if _, err := s.users.GetByEmail(ctx, email); err == nil {
		return nil, apperrors.NewValidationError("User already exists", nil)
	} else if !apperrors.IsNotFound(err) {
		return nil, err
	}

	hash, err := auth.HashPassword(in.Password, s.bcryptCost)
	if err != nil {
		return nil, err
	}

	user := &domain.User{
		Name:         name,
		Email:        email,
		PasswordHash: hash,
		Role:         in.Role,
	}
	if err := s.users.Create(ctx, user); err != nil {
		if apperrors.IsUniqueViolation(err) {
			return nil, apperrors.NewValidationError("User already exists", nil)
		}
		return nil, err
	}

	return s.issue(user)
}

// Login authenticates an account through the user or admin entry point.
func (s *AuthService) Login(ctx context.Context, email, password string, role domain.Role) (*AuthResult, error) {
	email = NormalizeEmail(email)
	if email == "" || password == "" {
		return nil, apperrors.NewValidationError("email and password are required", nil)
	}

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if apperrors.IsNotFound(err) {
			return nil, apperrors.NewValidationError("Invalid email", nil)
		}
		return nil, err
	}
	if err := auth.ComparePassword(user.PasswordHash, password); err != nil {
		return nil, apperrors.NewValidationError("Invalid password", nil)
	}
	if role == domain.RoleAdmin && !user.IsAdmin() {
		return nil, apperrors.NewForbidden("admin account required")
	}

	return s.issue(user)
}

// ListAdmins returns every admin account.
func (s *AuthService) ListAdmins(ctx context.Context) ([]domain.User, error) {
	admins, err := s.users.ListByRole(ctx, domain.RoleAdmin)
	if err != nil {
		return nil, err
	}
	if admins == nil {
		admins = []domain.User{}
	}
	return admins, nil
}

func (s *AuthService) issue(user *domain.User) (*AuthResult, error) {
	token, exp, err := s.tokenMgr.GenerateToken(user)
	if err != nil {
		return nil, err
	}
	return &AuthResult{User: user, Token: token, ExpiresAt: exp}, nil
}

// TokenManager exposes the underlying token manager for middleware usage.
func (s *AuthService) TokenManager() *auth.TokenManager {
	return s.tokenMgr
}
