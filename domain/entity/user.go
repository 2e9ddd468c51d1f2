package entity

import (
	"time"
)

// Role is the authorization role carried by a user and its tokens.
type Role string

const (
	RoleAdmin    Role = "admin"
	RoleCustomer Role = "customer"
)

// ParseRole maps a caller-supplied role onto a known Role.
// An empty value falls back to RoleCustomer.
func ParseRole(value string) (Role, bool) {
	switch Role(value) {
	case "":
		return RoleCustomer, true
	case RoleAdmin, RoleCustomer:
		return Role(value), true
	default:
		return "", false
	}
}

func (r Role) IsAdmin() bool {
	return r == RoleAdmin
}

type User struct {
	ID           int64      `json:"id"`
	Email        string     `json:"email"`
	PasswordHash string     `json:"-"`
	Name         string     `json:"name"`
	Role         Role       `json:"role"`
	CreatedAt    time.Time  `json:"created_at"`
	LastLogin    *time.Time `json:"last_login,omitempty"`
}

// UserView is the public projection of a User. It never carries the
// credential hash.
type UserView struct {
	ID        int64      `json:"id"`
	Email     string     `json:"email"`
	Name      string     `json:"name"`
	Role      Role       `json:"role"`
	CreatedAt *time.Time `json:"createdAt,omitempty"`
	LastLogin *time.Time `json:"lastLogin,omitempty"`
}

func NewUser(email, passwordHash, name string, role Role) *User {
	return &User{
		Email:        email,
		PasswordHash: passwordHash,
		Name:         name,
		Role:         role,
	}
}

// View returns the public projection of the user.
func (u *User) View() UserView {
	view := UserView{
		ID:    u.ID,
		Email: u.Email,
		Name:  u.Name,
		Role:  u.Role,
	}
	if !u.CreatedAt.IsZero() {
		createdAt := u.CreatedAt
		view.CreatedAt = &createdAt
	}
	if u.LastLogin != nil {
		lastLogin := *u.LastLogin
		view.LastLogin = &lastLogin
	}
	return view
}

// Clone returns a deep copy so store internals are never aliased.
func (u *User) Clone() *User {
	clone := *u
	if u.LastLogin != nil {
		lastLogin := *u.LastLogin
		clone.LastLogin = &lastLogin
	}
	return &clone
}
