package access

import (
	"context"
	"errors"
	"sort"
	"testing"
)

func TestUpsertAndLookup(t *testing.T) {
	s := NewInMemory()
	ctx := context.Background()

	caps := Capabilities{View: true, Create: true}
	if err := s.Upsert(ctx, "Nurse", "Inventory", caps); err != nil {
		t.Fatalf("Upsert: %v", err)
	}

	// Keys are normalised to lower case.
	got, found, err := s.ModulePermissions(ctx, "nurse", "inventory")
	if err != nil || !found {
		t.Fatalf("ModulePermissions: found=%v err=%v", found, err)
	}
	if got != caps {
		t.Fatalf("unexpected capabilities: %+v", got)
	}

	// Upsert rewrites all five flags, clearing the ones not set.
	if err := s.Upsert(ctx, "nurse", "inventory", Capabilities{Edit: true}); err != nil {
		t.Fatalf("second Upsert: %v", err)
	}
	got, _, _ = s.ModulePermissions(ctx, "nurse", "inventory")
	if got.View || got.Create || !got.Edit {
		t.Fatalf("upsert did not overwrite all flags: %+v", got)
	}
}

func TestMissingRowIsDeniedNotError(t *testing.T) {
	s := NewInMemory()
	ctx := context.Background()

	caps, found, err := s.ModulePermissions(ctx, "patient", "system")
	if err != nil {
		t.Fatalf("ModulePermissions: %v", err)
	}
	if found {
		t.Fatal("expected no row")
	}
	if caps != Denied {
		t.Fatalf("absent row must resolve to Denied, got %+v", caps)
	}

	matrix, err := s.Permissions(ctx, "patient")
	if err != nil {
		t.Fatalf("Permissions: %v", err)
	}
	if _, ok := matrix["system"]; ok {
		t.Fatal("absent module present in matrix")
	}
}

func TestAvailableListsAreSupersetsAndSorted(t *testing.T) {
	s := NewInMemory()
	ctx := context.Background()
	_ = s.Upsert(ctx, "auditor", "compliance", Capabilities{View: true})

	modules, err := s.AvailableModules(ctx)
	if err != nil {
		t.Fatalf("AvailableModules: %v", err)
	}
	roles, err := s.AvailableRoles(ctx)
	if err != nil {
		t.Fatalf("AvailableRoles: %v", err)
	}

	if !sort.StringsAreSorted(modules) || !sort.StringsAreSorted(roles) {
		t.Fatalf("lists not sorted: %v / %v", modules, roles)
	}
	assertContainsAll(t, modules, append([]string{"compliance"}, BaselineModules...))
	assertContainsAll(t, roles, append([]string{"auditor"}, BaselineRoles...))
}

func TestDelete(t *testing.T) {
	s := NewInMemory()
	ctx := context.Background()
	_ = s.Upsert(ctx, "staff", "billing", Capabilities{View: true})

	if err := s.Delete(ctx, "staff", "billing"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if err := s.Delete(ctx, "staff", "billing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound on second delete, got %v", err)
	}
}

func TestAllPermissionsGroupsByRole(t *testing.T) {
	s := NewInMemory()
	ctx := context.Background()
	_ = s.Upsert(ctx, "admin", "system", Capabilities{View: true, Create: true, Edit: true, Delete: true, Export: true})
	_ = s.Upsert(ctx, "admin", "reports", Capabilities{View: true, Export: true})
	_ = s.Upsert(ctx, "nurse", "patients", Capabilities{View: true})

	grouped, err := s.AllPermissions(ctx)
	if err != nil {
		t.Fatalf("AllPermissions: %v", err)
	}
	if len(grouped) != 2 || len(grouped["admin"]) != 2 || len(grouped["nurse"]) != 1 {
		t.Fatalf("unexpected grouping: %+v", grouped)
	}
}

func assertContainsAll(t *testing.T, got, want []string) {
	t.Helper()
	set := map[string]bool{}
	for _, v := range got {
		set[v] = true
	}
	for _, v := range want {
		if !set[v] {
			t.Fatalf("missing %q in %v", v, got)
		}
	}
}
