package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/support-desk/internal/api/dto"
	"github.com/spec-kit/support-desk/internal/domain"
	"github.com/spec-kit/support-desk/internal/service"
)

// AuthHandler exposes signup and login for users and admins.
type AuthHandler struct {
	auth *service.AuthService
}

// NewAuthHandler constructs handler.
func NewAuthHandler(authService *service.AuthService) *AuthHandler {
	return &AuthHandler{auth: authService}
}

// UserSignup handles POST /api/auth/user/signup.
func (h *AuthHandler) UserSignup(c *fiber.Ctx) error {
	return h.signup(c, domain.RoleUser)
}

// AdminSignup handles POST /api/auth/admin/signup.
func (h *AuthHandler) AdminSignup(c *fiber.Ctx) error {
	return h.signup(c, domain.RoleAdmin)
}

// UserLogin handles POST /api/auth/user/login.
func (h *AuthHandler) UserLogin(c *fiber.Ctx) error {
	return h.login(c, domain.RoleUser)
}

// AdminLogin handles POST /api/auth/admin/login.
func (h *AuthHandler) AdminLogin(c *fiber.Ctx) error {
	return h.login(c, domain.RoleAdmin)
}

// ListAdmins handles GET /api/auth/admin/all-admins and its aliases.
func (h *AuthHandler) ListAdmins(c *fiber.Ctx) error {
	admins, err := h.auth.ListAdmins(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewAdminSummaries(admins)})
}

func (h *AuthHandler) signup(c *fiber.Ctx, role domain.Role) error {
	var req dto.SignupRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}

	result, err := h.auth.Signup(c.UserContext(), service.SignupInput{
		Name:       req.Name,
		Email:      req.Email,
		Password:   req.Password,
		Role:       role,
		InviteCode: req.InviteCode,
	})
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": authResponse(result)})
}

func (h *AuthHandler) login(c *fiber.Ctx, role domain.Role) error {
	var req dto.LoginRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}

	result, err := h.auth.Login(c.UserContext(), req.Email, req.Password, role)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": authResponse(result)})
}

func authResponse(result *service.AuthResult) dto.AuthResponse {
	return dto.AuthResponse{
		Token:     result.Token,
		ExpiresAt: result.ExpiresAt,
		User:      dto.NewUserResponse(result.User),
	}
}
