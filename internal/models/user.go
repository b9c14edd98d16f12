package models

import (
	"strings"
	"time"
)

// UserRole is the account role carried in access tokens.
type UserRole string

const (
	RoleAdmin   UserRole = "ADMIN"
	RoleFaculty UserRole = "FACULTY"
	RoleStudent UserRole = "STUDENT"
)

// ParseUserRole accepts a role name in any case.
func ParseUserRole(raw string) (UserRole, bool) {
	switch role := UserRole(strings.ToUpper(strings.TrimSpace(raw))); role {
	case RoleAdmin, RoleFaculty, RoleStudent:
		return role, true
	}
	return "", false
}

// User is a login account. Student accounts share their id with the students row, so
// YearOfStudy and AdvisorID are only set for them.
type User struct {
	ID           string     `db:"id"`
	Email        string     `db:"email"`
	PasswordHash string     `db:"password_hash"`
	FullName     string     `db:"full_name"`
	Role         UserRole   `db:"role"`
	Active       bool       `db:"active"`
	YearOfStudy  *int       `db:"year_of_study"`
	AdvisorID    *string    `db:"advisor_id"`
	LastLogin    *time.Time `db:"last_login"`
	CreatedAt    time.Time  `db:"created_at"`
	UpdatedAt    time.Time  `db:"updated_at"`
}

// Info is the public view of the account.
func (u *User) Info() UserInfo {
	return UserInfo{
		ID:          u.ID,
		Email:       u.Email,
		FullName:    u.FullName,
		Role:        u.Role,
		YearOfStudy: u.YearOfStudy,
		LastLogin:   u.LastLogin,
	}
}
