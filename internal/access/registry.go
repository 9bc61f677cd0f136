// Package access implements the privileged-role registry: Admin and
// Depositor role membership, mutated only by a current Admin.
//
// There is deliberately no protection against removing the last Admin. An
// Admin revoking their own Admin role locks out all future administration;
// this is a documented operational risk of the design, not a bug, and it
// must not be silently "fixed" with a safety rail.
package access

import (
	"context"
	"errors"
	"fmt"

	"github.com/openvault/fund-engine/internal/model"
	"github.com/openvault/fund-engine/internal/store"
)

// ErrUnauthorized is returned when the acting principal lacks the role
// required for the operation.
var ErrUnauthorized = errors.New("access: caller lacks required role")

var knownRoles = map[string]bool{
	model.RoleAdmin:     true,
	model.RoleDepositor: true,
}

// Registry is the access-control set, backed by the store. It is seeded
// with one Admin at construction and mutated only through Grant/Revoke.
type Registry struct {
	store store.Store
}

// NewRegistry creates a registry and seeds the initial Admin. Seeding
// bypasses the Admin check: at construction there is no Admin yet.
func NewRegistry(ctx context.Context, st store.Store, seedAdmin model.Principal) (*Registry, error) {
	if err := st.SetRole(ctx, seedAdmin, model.RoleAdmin, true); err != nil {
		return nil, fmt.Errorf("seed admin: %w", err)
	}
	return &Registry{store: st}, nil
}

// Grant adds a role to target. Fails with ErrUnauthorized unless actor is
// an Admin. Granting a role the target already holds is a no-op.
func (r *Registry) Grant(ctx context.Context, actor, target model.Principal, role string) error {
	if !knownRoles[role] {
		return fmt.Errorf("access: unknown role %q", role)
	}
	if err := r.RequireRole(ctx, actor, model.RoleAdmin); err != nil {
		return err
	}
	return r.store.SetRole(ctx, target, role, true)
}

// Revoke removes a role from target. Same authorization as Grant. An Admin
// may revoke any principal's roles, including their own Admin role.
func (r *Registry) Revoke(ctx context.Context, actor, target model.Principal, role string) error {
	if !knownRoles[role] {
		return fmt.Errorf("access: unknown role %q", role)
	}
	if err := r.RequireRole(ctx, actor, model.RoleAdmin); err != nil {
		return err
	}
	return r.store.SetRole(ctx, target, role, false)
}

// IsAuthorized reports whether principal currently holds role. Pure lookup.
func (r *Registry) IsAuthorized(ctx context.Context, principal model.Principal, role string) (bool, error) {
	return r.store.HasRole(ctx, principal, role)
}

// RequireRole returns ErrUnauthorized unless principal holds role.
func (r *Registry) RequireRole(ctx context.Context, principal model.Principal, role string) error {
	ok, err := r.store.HasRole(ctx, principal, role)
	if err != nil {
		return fmt.Errorf("access: role lookup: %w", err)
	}
	if !ok {
		return fmt.Errorf("%w: %s needs %s", ErrUnauthorized, principal, role)
	}
	return nil
}

// List returns every current role entry.
func (r *Registry) List(ctx context.Context) ([]model.RoleEntry, error) {
	return r.store.ListRoles(ctx)
}
