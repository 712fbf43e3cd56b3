package domain

import "time"

type UserRole string

const (
	RoleUser  UserRole = "user"
	RoleAdmin UserRole = "admin"
)

type User struct {
	ID           int64     `json:"id"`
	Email        string    `json:"email" gorm:"uniqueIndex;not null" validate:"required,email"`
	PasswordHash string    `json:"-"`
	GoogleID     string    `json:"-" gorm:"index"`
	Role         UserRole  `json:"role"`
	DisplayName  string    `json:"display_name"`
	FirstName    string    `json:"first_name,omitempty"`
	LastName     string    `json:"last_name,omitempty"`
	AvatarURL    string    `json:"avatar_url,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// HasPassword reports whether password login is possible for this account.
// Accounts provisioned through Google OAuth may have no local password.
func (u *User) HasPassword() bool {
	return u.PasswordHash != ""
}
