package models

import "time"

// User captures application-facing fields for an authenticated identity.
type User struct {
	ID           int64      `json:"id"`
	FirstName    string     `json:"first_name"`
	LastName     string     `json:"last_name"`
	Email        string     `json:"email"`
	Phone        string     `json:"phone,omitempty"`
	PasswordHash string     `json:"-"`
	Role         Role       `json:"role"`
	BranchID     *int64     `json:"branch_id"`
	BranchName   *string    `json:"branch_name"`
	Active       bool       `json:"active"`
	LastAccessAt *time.Time `json:"last_access_at,omitempty"`
}

// HasBranch reports whether the user is assigned to a branch.
func (u User) HasBranch() bool {
	return u.BranchID != nil
}
