package models

import "time"

type User struct {
	ID             int             `json:"id"`
	Username       string          `json:"username"`
	PasswordHash   string          `json:"-"` // не отдаём наружу
	FirstName      *string         `json:"first_name"`
	LastName       *string         `json:"last_name"`
	FullName       string          `json:"full_name"`
	Email          string          `json:"email"`
	Designation    *string         `json:"designation"`
	MobileNo       *string         `json:"mobile_no"`
	DateOfBirth    *string         `json:"date_of_birth"`
	Photo          *string         `json:"photo"`
	Role           string          `json:"role"`
	Permissions    map[string]bool `json:"permissions"`
	IsActive       bool            `json:"is_active"`
	TelegramChatID *int64          `json:"telegram_chat_id,omitempty"`
	CreatedBy      *int            `json:"created_by"`
	CreatedAt      time.Time       `json:"created_at"`
	LastLogin      *time.Time      `json:"last_login"`

	// only filled by list queries
	CreatedByName   *string `json:"created_by_name,omitempty"`
	PermissionCount int     `json:"permission_count"`
}

type ActiveUser struct {
	ID       int    `json:"id"`
	Username string `json:"username"`
	FullName string `json:"full_name"`
	Role     string `json:"role"`
}

type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password" binding:"required"`
	NewPassword     string `json:"new_password" binding:"required,min=6"`
}

type UserCreate struct {
	Username       string          `json:"username" binding:"required"`
	Password       string          `json:"password" binding:"required,min=6"`
	FirstName      *string         `json:"first_name"`
	LastName       *string         `json:"last_name"`
	FullName       string          `json:"full_name" binding:"required"`
	Email          string          `json:"email" binding:"required,email"`
	Designation    *string         `json:"designation"`
	MobileNo       *string         `json:"mobile_no"`
	DateOfBirth    *string         `json:"date_of_birth"`
	Role           string          `json:"role"`
	Permissions    map[string]bool `json:"permissions"`
	TelegramChatID *int64          `json:"telegram_chat_id"`
}

// UserUpdate is a partial update; nil fields are left untouched.
type UserUpdate struct {
	FullName       *string         `json:"full_name"`
	FirstName      *string         `json:"first_name"`
	LastName       *string         `json:"last_name"`
	Email          *string         `json:"email"`
	Designation    *string         `json:"designation"`
	MobileNo       *string         `json:"mobile_no"`
	DateOfBirth    *string         `json:"date_of_birth"`
	Role           *string         `json:"role"`
	Permissions    map[string]bool `json:"permissions"`
	IsActive       *bool           `json:"is_active"`
	Password       *string         `json:"password"`
	TelegramChatID *int64          `json:"telegram_chat_id"`
}

type Designation struct {
	ID        int       `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}
