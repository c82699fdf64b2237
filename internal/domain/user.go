package domain

import (
	"errors"
	"fmt"
	"strings"
)

// PlaceholderPassword is sent for every migrated account. Real credentials never leave the source system.
const PlaceholderPassword = "password"

// ErrInvalidResponse indicates the remote service replied with a body that does not match the account schema.
var ErrInvalidResponse = errors.New("invalid create user response")

// SourceUser is a row read from the legacy user table.
type SourceUser struct {
	ID       int64  `db:"id"`
	Email    string `db:"email"`
	Username string `db:"username"`
}

// CreateUserRequest is the body posted to the remote account service.
type CreateUserRequest struct {
	Email    string `json:"email"`
	Handle   string `json:"handle"`
	Password string `json:"password"`
}

// NewCreateUserRequest maps a source row onto a creation request.
func NewCreateUserRequest(src SourceUser, password string) CreateUserRequest {
	return CreateUserRequest{
		Email:    src.Email,
		Handle:   src.Username,
		Password: password,
	}
}

// CreatedUser is the identity assigned by the remote account service.
type CreatedUser struct {
	ID        string  `json:"id"`
	Email     *string `json:"email"`
	Handle    string  `json:"handle"`
	PublicKey string  `json:"publicKey"`
}

// Validate checks the fields the local mapping depends on.
func (u *CreatedUser) Validate() error {
	var missing []string
	if strings.TrimSpace(u.ID) == "" {
		missing = append(missing, "id")
	}
	if u.Email == nil {
		missing = append(missing, "email")
	}
	if strings.TrimSpace(u.Handle) == "" {
		missing = append(missing, "handle")
	}
	if strings.TrimSpace(u.PublicKey) == "" {
		missing = append(missing, "publicKey")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: missing %s", ErrInvalidResponse, strings.Join(missing, ", "))
	}
	return nil
}

// EmailValue returns the reported email or an empty string.
func (u *CreatedUser) EmailValue() string {
	if u.Email == nil {
		return ""
	}
	return *u.Email
}

// MigratedUser is one row of the local old-to-new id mapping.
type MigratedUser struct {
	ID        string
	NID       int64
	Email     string
	Username  string
	Password  string
	PublicKey string
}

// NewMigratedUser builds the mapping row for a source user and the account created for it.
// Email and username come from the remote reply, matching what the target system stored.
func NewMigratedUser(src SourceUser, created *CreatedUser, password string) *MigratedUser {
	return &MigratedUser{
		ID:        created.ID,
		NID:       src.ID,
		Email:     created.EmailValue(),
		Username:  created.Handle,
		Password:  password,
		PublicKey: created.PublicKey,
	}
}
