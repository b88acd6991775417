package domain

import (
	"strings"
	"time"
)

// User is an account able to raise or work tickets.
type User struct {
	ID           string
	Username     string
	PasswordHash string
	DisplayName  string
	Role         Role
	FirstLogin   bool
	Active       bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Actor returns the actor view of u.
func (u *User) Actor() Actor {
	return Actor{UserID: u.ID, Role: u.Role}
}

// NormalizeUsername lower-cases the name and strips all whitespace.
func NormalizeUsername(name string) string {
	return strings.ToLower(strings.Join(strings.Fields(name), ""))
}
