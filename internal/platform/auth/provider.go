package auth

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Roles known to the portal. New accounts always start as office staff and
// are promoted by an administrator.
const (
	RoleAdmin       = "ADMIN"
	RoleOfficeStaff = "OFFICE_STAFF"
	RolePrescriber  = "PRESCRIBER"
)

var (
	// ErrInvalidCredentials is returned for an unknown email or a wrong
	// password. Callers cannot tell which, deliberately.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrDuplicateEmail is returned when registering an email that already
	// has an account.
	ErrDuplicateEmail = errors.New("email already registered")

	// ErrUserNotFound is returned by user stores for missing accounts.
	ErrUserNotFound = errors.New("user not found")
)

// User is a portal account. PasswordHash never serializes.
type User struct {
	ID           uuid.UUID `db:"id" json:"id"`
	Email        string    `db:"email" json:"email"`
	PasswordHash string    `db:"password_hash" json:"-"`
	FirstName    string    `db:"first_name" json:"first_name"`
	LastName     string    `db:"last_name" json:"last_name"`
	Roles        []string  `db:"roles" json:"roles"`
	Active       bool      `db:"active" json:"active"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
}

// HasRole reports whether the user carries the given role.
func (u *User) HasRole(role string) bool {
	for _, r := range u.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// Provider is the authentication boundary. Everything that verifies
// credentials, mints tokens, or resolves a token back to an account sits
// behind it so the rest of the application never touches JWT or bcrypt
// directly.
type Provider interface {
	// Authenticate verifies an email/password pair and returns a signed
	// token. Unknown email and wrong password both return
	// ErrInvalidCredentials.
	Authenticate(ctx context.Context, email, password string) (string, error)

	// ValidateToken resolves a token to its account. Malformed, expired,
	// or otherwise unresolvable tokens return (nil, false); routine
	// authentication failure is not an error.
	ValidateToken(ctx context.Context, token string) (*User, bool)

	// RegisterUser creates an account with the default office-staff role.
	// Returns ErrDuplicateEmail when the address is taken.
	RegisterUser(ctx context.Context, email, password, firstName, lastName string) (*User, error)
}

// UserStore is the persistence boundary consumed by providers and the auth
// handler.
type UserStore interface {
	GetByEmail(ctx context.Context, email string) (*User, error)
	GetByID(ctx context.Context, id uuid.UUID) (*User, error)
	Create(ctx context.Context, u *User) error
	EmailExists(ctx context.Context, email string) (bool, error)
}
