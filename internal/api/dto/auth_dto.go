package dto

import (
	"time"

	"github.com/spec-kit/support-desk/internal/domain"
)

// SignupRequest payload for new accounts.
type SignupRequest struct {
	Name       string `json:"name" validate:"required,max=100"`
	Email      string `json:"email" validate:"required,email,max=254"`
	Password   string `json:"password" validate:"required,max=72"`
	InviteCode string `json:"invite_code"`
}

// LoginRequest payload for login.
type LoginRequest struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// UserResponse is the public view of an account.
type UserResponse struct {
	ID        string      `json:"id"`
	Name      string      `json:"name"`
	Email     string      `json:"email"`
	Role      domain.Role `json:"role"`
	CreatedAt time.Time   `json:"created_at"`
}

// AuthResponse standard response for auth endpoints.
type AuthResponse struct {
	Token     string       `json:"token"`
	ExpiresAt time.Time    `json:"expires_at"`
	User      UserResponse `json:"user"`
}

// AdminSummary lists an admin for assignment dropdowns.
type AdminSummary struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// NewUserResponse maps an account.
func NewUserResponse(u *domain.User) UserResponse {
	return UserResponse{
		ID:        u.ID,
		Name:      u.Name,
		Email:     u.Email,
		Role:      u.Role,
		CreatedAt: u.CreatedAt,
	}
}

// NewAdminSummaries maps admin accounts.
func NewAdminSummaries(users []domain.User) []AdminSummary {
	out := make([]AdminSummary, 0, len(users))
	for _, u := range users {
		out = append(out, AdminSummary{ID: u.ID, Name: u.Name, Email: u.Email})
	}
	return out
}
