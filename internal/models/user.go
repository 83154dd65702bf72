package models

import "time"

type Role string

const (
	RoleClient  Role = "client"
	RoleAdvisor Role = "advisor"
	RoleAdmin   Role = "admin"
)

func (r Role) IsValid() bool {
	switch r {
	case RoleClient, RoleAdvisor, RoleAdmin:
		return true
	}
	return false
}

type User struct {
	ID           string
	Name         string
	PasswordHash string
	Role         Role
	CreatedAt    time.Time
}

type RegisterRequest struct {
	Name     string `json:"name" validate:"required,min=2,max=64"`
	Password string `json:"password" validate:"required,min=6"`
}

type LoginRequest struct {
	Name     string `json:"name" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type CreateUserRequest struct {
	Name     string `json:"name" validate:"required,min=2,max=64"`
	Password string `json:"password" validate:"required,min=6"`
	Role     Role   `json:"role" validate:"required,oneof=client advisor admin"`
}

type UserResponse struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Role      Role   `json:"role"`
	CreatedAt string `json:"created_at"`
}

func NewUserResponse(u User) UserResponse {
	return UserResponse{
		ID:        u.ID,
		Name:      u.Name,
		Role:      u.Role,
		CreatedAt: u.CreatedAt.Format("2006-01-02 15:04:05"),
	}
}
