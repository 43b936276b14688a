package domain

import (
	"fmt"
	"net/mail"
	"time"
)

// User is the owner of documents and chat history.
type User struct {
	ID           string
	Email        string
	Name         string
	ProfileImage string
	Phone        string
	Location     string
	Bio          string
	IsActive     bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// NewUser creates an active User stamped with createdAt.
func NewUser(id, email, name string, createdAt time.Time) *User {
	return &User{
		ID:        id,
		Email:     email,
		Name:      name,
		IsActive:  true,
		CreatedAt: createdAt,
		UpdatedAt: createdAt,
	}
}

// ValidateUser validates a User instance
func ValidateUser(u *User) error {
	if u == nil {
		return fmt.Errorf("user cannot be nil")
	}

	if u.ID == "" {
		return fmt.Errorf("user ID is required")
	}

	if u.Email == "" {
		return fmt.Errorf("user Email is required")
	}

	if _, err := mail.ParseAddress(u.Email); err != nil {
		return ErrInvalidEmail
	}

	if u.Name == "" {
		return fmt.Errorf("user Name is required")
	}

	return nil
}

// Identity is what the auth layer resolves a bearer credential to.
type Identity struct {
	UID   string
	Email string
	Name  string
}
