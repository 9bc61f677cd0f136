package access_test

import (
	"context"
	"errors"
	"testing"

	"github.com/openvault/fund-engine/internal/access"
	"github.com/openvault/fund-engine/internal/model"
	"github.com/openvault/fund-engine/internal/store"
)

func newRegistry(t *testing.T) *access.Registry {
	t.Helper()
	registry, err := access.NewRegistry(context.Background(), store.NewMemoryStore(), "root")
	if err != nil {
		t.Fatalf("registry: %v", err)
	}
	return registry
}

func TestNewRegistry_SeedsAdmin(t *testing.T) {
	r := newRegistry(t)
	ok, err := r.IsAuthorized(context.Background(), "root", model.RoleAdmin)
	if err != nil {
		t.Fatal(err)
	}
	if !ok {
		t.Error("seed principal should hold Admin")
	}
}

func TestGrant_RequiresAdmin(t *testing.T) {
	r := newRegistry(t)
	err := r.Grant(context.Background(), "mallory", "mallory", model.RoleAdmin)
	if !errors.Is(err, access.ErrUnauthorized) {
		t.Errorf("expected ErrUnauthorized, got %v", err)
	}
}

func TestGrant_Idempotent(t *testing.T) {
	ctx := context.Background()
	r := newRegistry(t)

	for i := 0; i < 2; i++ {
		if err := r.Grant(ctx, "root", "alice", model.RoleDepositor); err != nil {
			t.Fatalf("grant %d: %v", i, err)
		}
	}
	ok, _ := r.IsAuthorized(ctx, "alice", model.RoleDepositor)
	if !ok {
		t.Error("alice should be a depositor")
	}
}

func TestGrant_UnknownRole(t *testing.T) {
	r := newRegistry(t)
	if err := r.Grant(context.Background(), "root", "alice", "superuser"); err == nil {
		t.Error("expected error for unknown role")
	}
}

func TestRevoke_RequiresAdmin(t *testing.T) {
	r := newRegistry(t)
	err := r.Revoke(context.Background(), "mallory", "root", model.RoleAdmin)
	if !errors.Is(err, access.ErrUnauthorized) {
		t.Errorf("expected ErrUnauthorized, got %v", err)
	}
}

func TestGrantThenRevoke_NewAdmin(t *testing.T) {
	ctx := context.Background()
	r := newRegistry(t)

	if err := r.Grant(ctx, "root", "alice", model.RoleAdmin); err != nil {
		t.Fatal(err)
	}
	// The new admin can act.
	if err := r.Grant(ctx, "alice", "bob", model.RoleDepositor); err != nil {
		t.Fatalf("new admin grant: %v", err)
	}
	if err := r.Revoke(ctx, "root", "alice", model.RoleAdmin); err != nil {
		t.Fatal(err)
	}
	err := r.Grant(ctx, "alice", "carol", model.RoleDepositor)
	if !errors.Is(err, access.ErrUnauthorized) {
		t.Errorf("revoked admin should be unauthorized, got %v", err)
	}
}

// An admin can revoke their own Admin role, permanently locking out all
// administration. This is a deliberate, documented risk of the design;
// there is no last-admin protection.
func TestRevoke_SelfLockoutIsPossible(t *testing.T) {
	ctx := context.Background()
	r := newRegistry(t)

	if err := r.Revoke(ctx, "root", "root", model.RoleAdmin); err != nil {
		t.Fatalf("self-revocation should succeed: %v", err)
	}

	// No admin remains; every privileged operation is now rejected.
	err := r.Grant(ctx, "root", "root", model.RoleAdmin)
	if !errors.Is(err, access.ErrUnauthorized) {
		t.Errorf("lockout should be permanent, got %v", err)
	}
}
