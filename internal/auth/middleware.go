package auth

import (
	"context"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/support-desk/internal/domain"
	"github.com/spec-kit/support-desk/internal/repository"
	apperrors "github.com/spec-kit/support-desk/pkg/util/errorutil"
)

// PrincipalKey is the Locals key holding the *Principal.
const PrincipalKey = "auth_principal"

// Principal represents the authenticated caller.
type Principal struct {
	User *domain.User
}

// AuthMiddleware validates bearer tokens and loads principals.
type AuthMiddleware struct {
	tokens *TokenManager
	users  repository.UserRepository
}

// NewAuthMiddleware constructs middleware.
func NewAuthMiddleware(tokens *TokenManager, users repository.UserRepository) *AuthMiddleware {
	return &AuthMiddleware{tokens: tokens, users: users}
}

// Handle enforces authentication for protected routes.
func (m *AuthMiddleware) Handle(c *fiber.Ctx) error {
	authHeader := c.Get("Authorization")
	if authHeader == "" {
		return apperrors.NewUnauthorized("missing authorization header")
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return apperrors.NewUnauthorized("invalid authorization header")
	}

	principal, err := m.Authenticate(c.UserContext(), strings.TrimSpace(parts[1]))
	if err != nil {
		return err
	}

	c.Locals(PrincipalKey, principal)
	return c.Next()
}

// HandleQueryToken authenticates WebSocket upgrades, which carry the token in
// the "token" query parameter because browsers cannot set headers on them.
func (m *AuthMiddleware) HandleQueryToken(c *fiber.Ctx) error {
	token := c.Query("token")
	if token == "" {
		return apperrors.NewUnauthorized("missing token")
	}

	principal, err := m.Authenticate(c.UserContext(), token)
	if err != nil {
		return err
	}

	c.Locals(PrincipalKey, principal)
	return c.Next()
}

// Authenticate resolves a raw token to the account it was issued for.
func (m *AuthMiddleware) Authenticate(ctx context.Context, token string) (*Principal, error) {
	claims, err := m.tokens.ParseToken(token)
	if err != nil {
		return nil, apperrors.NewUnauthorized("invalid token")
	}

	user, err := m.users.GetByID(ctx, claims.UserID)
	if err != nil {
		if apperrors.IsNotFound(err) {
			return nil, apperrors.NewUnauthorized("user not found")
		}
		return nil, apperrors.MapError(err)
	}
	return &Principal{User: user}, nil
}

// PrincipalFromContext retrieves the authenticated entity.
func PrincipalFromContext(c *fiber.Ctx) (*Principal, bool) {
	return PrincipalFromValue(c.Locals(PrincipalKey))
}

// PrincipalFromValue unwraps a value read from Locals, including the copy a
// WebSocket connection keeps after the upgrade.
func PrincipalFromValue(val any) (*Principal, bool) {
	principal, ok := val.(*Principal)
	return principal, ok && principal != nil && principal.User != nil
}
