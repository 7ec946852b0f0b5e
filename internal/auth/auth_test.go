package auth

import (
	"context"
	"slices"
	"testing"
	"time"
)

func TestGenerateAndValidateToken(t *testing.T) {
	t.Setenv(secretEnvVariable, "test-secret")
	ResetSecretForTests()
	t.Cleanup(ResetSecretForTests)

	token, err := GenerateToken("user-42", []string{"Admin", "nurse", "admin"}, 30*time.Minute)
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}

	claims, err := ParseAndValidate(token)
	if err != nil {
		t.Fatalf("ParseAndValidate: %v", err)
	}
	if claims.Subject != "user-42" {
		t.Fatalf("unexpected subject: %s", claims.Subject)
	}
	if !slices.Contains(claims.Roles, "admin") || !slices.Contains(claims.Roles, "nurse") {
		t.Fatalf("roles not preserved: %v", claims.Roles)
	}
	if len(claims.Roles) != 2 {
		t.Fatalf("roles not deduplicated: %v", claims.Roles)
	}
}

func TestParseRejectsGarbage(t *testing.T) {
	t.Setenv(secretEnvVariable, "test-secret")
	ResetSecretForTests()
	t.Cleanup(ResetSecretForTests)

	for _, token := range []string{"", "not-a-jwt", "a.b.c"} {
		if _, err := ParseAndValidate(token); err == nil {
			t.Fatalf("expected failure for token %q", token)
		}
	}
}

func TestGenerateTokenValidation(t *testing.T) {
	t.Setenv(secretEnvVariable, "test-secret")
	ResetSecretForTests()
	t.Cleanup(ResetSecretForTests)

	if _, err := GenerateToken("", []string{"admin"}, time.Minute); err == nil {
		t.Fatal("expected error for empty user")
	}
	if _, err := GenerateToken("user-1", nil, 0); err == nil {
		t.Fatal("expected error for zero ttl")
	}
}

func TestContextHelpers(t *testing.T) {
	ctx := context.Background()
	ctx = ContextWithUser(ctx, "user-7", []string{"Admin", "Admin", "nurse"})

	id, ok := UserIDFromContext(ctx)
	if !ok || id != "user-7" {
		t.Fatalf("unexpected user id: %s, ok=%v", id, ok)
	}
	roles := RolesFromContext(ctx)
	if len(roles) != 2 {
		t.Fatalf("expected deduplicated roles, got %v", roles)
	}
	if !HasRole(ctx, "nurse") || !HasRole(ctx, "admin") {
		t.Fatalf("HasRole missing expected roles: %v", roles)
	}
	if HasRole(ctx, "doctor") {
		t.Fatal("unexpected role found")
	}
}
