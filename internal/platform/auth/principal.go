package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// Role is the closed set of account roles.
type Role string

const (
	RolePatient Role = "PATIENT"
	RoleDoctor  Role = "DOCTOR"
	RoleAdmin   Role = "ADMIN"
)

// ParseRole converts a stored or submitted role string to a Role.
func ParseRole(s string) (Role, error) {
	switch Role(s) {
	case RolePatient, RoleDoctor, RoleAdmin:
		return Role(s), nil
	}
	return "", fmt.Errorf("unknown role %q", s)
}

// Authority returns the role-derived authority string. Accounts hold exactly
// one role, so a principal carries exactly one authority.
func (r Role) Authority() string {
	return "ROLE_" + string(r)
}

// Principal is the resolved identity attached to a request after successful
// authentication. It is built fresh per request and lives only in that
// request's context.
type Principal struct {
	AccountID   uuid.UUID
	Email       string
	Role        Role
	Authorities []string
}

// ErrUnknownSubject is returned by a PrincipalResolver when no account
// exists for the token subject. The middleware treats it as an
// authentication failure, never as a server error.
var ErrUnknownSubject = errors.New("unknown subject")

// PrincipalResolver loads the account behind a validated token subject.
type PrincipalResolver interface {
	Resolve(ctx context.Context, email string) (*Principal, error)
}

type contextKey string

const principalKey contextKey = "principal"

// WithPrincipal returns a context carrying the given principal.
func WithPrincipal(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, principalKey, p)
}

// PrincipalFromContext retrieves the request principal, or nil when the
// request is unauthenticated.
func PrincipalFromContext(ctx context.Context) *Principal {
	p, _ := ctx.Value(principalKey).(*Principal)
	return p
}
