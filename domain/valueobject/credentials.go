package valueobject

import (
	"strings"

	domainerr "github.com/cloudcommerce/user-service/domain/error"
	"github.com/cloudcommerce/user-service/domain/entity"
)

// Credentials is a login attempt. Email is matched exactly; it is only
// trimmed of surrounding whitespace.
type Credentials struct {
	email    string
	password string
}

func NewCredentials(email, password string) (*Credentials, error) {
	email = strings.TrimSpace(email)

	var missing []string
	if email == "" {
		missing = append(missing, "email")
	}
	if password == "" {
		missing = append(missing, "password")
	}
	if len(missing) > 0 {
		return nil, domainerr.ErrMissingFields(missing...)
	}

	return &Credentials{
		email:    email,
		password: password,
	}, nil
}

func (c *Credentials) Email() string {
	return c.email
}

func (c *Credentials) Password() string {
	return c.password
}

// Registration is a validated sign-up request.
type Registration struct {
	Credentials
	name string
	role entity.Role
}

func NewRegistration(name, email, password, role string) (*Registration, error) {
	name = strings.TrimSpace(name)
	email = strings.TrimSpace(email)

	var missing []string
	if name == "" {
		missing = append(missing, "name")
	}
	if email == "" {
		missing = append(missing, "email")
	}
	if password == "" {
		missing = append(missing, "password")
	}
	if len(missing) > 0 {
		return nil, domainerr.ErrMissingFields(missing...)
	}

	parsed, ok := entity.ParseRole(strings.TrimSpace(role))
	if !ok {
		return nil, domainerr.ErrInvalidRole(role)
	}

	return &Registration{
		Credentials: Credentials{email: email, password: password},
		name:        name,
		role:        parsed,
	}, nil
}

func (r *Registration) Name() string {
	return r.name
}

func (r *Registration) Role() entity.Role {
	return r.role
}
