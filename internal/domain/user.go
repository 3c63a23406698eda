package domain

import "time"

// UserProfile enumerates agent roles.
type UserProfile string

const (
	ProfileAdmin UserProfile = "admin"
	ProfileUser  UserProfile = "user"
)

// User models an agent who responds to tickets through the web UI.
type User struct {
	ID           int64
	CompanyID    int64
	Name         string
	Email        string
	PasswordHash string
	Profile      UserProfile
	Active       bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
