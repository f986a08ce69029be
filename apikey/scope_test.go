package apikey

import (
	"errors"
	"testing"
)

func TestHasScopeExactMatch(t *testing.T) {
	granted := []string{"users:read", "users:write"}
	if !HasScope(granted, "users:read") {
		t.Fatalf("expected match for users:read")
	}
	if HasScope(granted, "Users:Read") {
		t.Fatalf("matching must be case-sensitive")
	}
	if HasScope(granted, "users:*") {
		t.Fatalf("no wildcard handling expected")
	}
}

func TestHasScopesAllAndAny(t *testing.T) {
	granted := []string{"a", "b"}

	if !HasScopes(granted, []string{"a", "b"}, RequireAll) {
		t.Fatalf("all: expected true when every scope granted")
	}
	if HasScopes(granted, []string{"a", "c"}, RequireAll) {
		t.Fatalf("all: expected false when one scope missing")
	}
	if !HasScopes(granted, []string{"c", "b"}, RequireAny) {
		t.Fatalf("any: expected true when one scope granted")
	}
	if HasScopes(granted, []string{"c", "d"}, RequireAny) {
		t.Fatalf("any: expected false when no scope granted")
	}
}

func TestHasScopesEmptyRequiredIsVacuouslyTrue(t *testing.T) {
	if !HasScopes([]string{}, []string{}, RequireAll) {
		t.Fatalf("all: empty required must be true")
	}
	if !HasScopes([]string{"x"}, nil, RequireAny) {
		t.Fatalf("any: empty required must be true")
	}
}

func TestHierarchyExpandTransitive(t *testing.T) {
	h := Hierarchy{
		"admin": {"users", "billing"},
		"users": {"users:read"},
	}

	expanded, errExpand := h.Expand([]string{"admin"})
	if errExpand != nil {
		t.Fatalf("expand: %v", errExpand)
	}
	for _, want := range []string{"admin", "users", "billing", "users:read"} {
		if !HasScope(expanded, want) {
			t.Fatalf("expanded set missing %q: %v", want, expanded)
		}
	}
}

func TestHierarchyExpandDetectsCycle(t *testing.T) {
	h := Hierarchy{
		"a": {"b"},
		"b": {"c"},
		"c": {"a"},
	}
	if _, errExpand := h.Expand([]string{"a"}); !errors.Is(errExpand, ErrScopeCycle) {
		t.Fatalf("expected ErrScopeCycle, got %v", errExpand)
	}
}

func TestHierarchyValidate(t *testing.T) {
	if errValidate := (Hierarchy{"a": {"b"}, "b": {"c"}}).Validate(); errValidate != nil {
		t.Fatalf("acyclic hierarchy rejected: %v", errValidate)
	}
	if errValidate := (Hierarchy{"a": {"a"}}).Validate(); !errors.Is(errValidate, ErrScopeCycle) {
		t.Fatalf("self-cycle not detected: %v", errValidate)
	}
}

func TestNewCheckerRejectsCyclicHierarchy(t *testing.T) {
	if _, errChecker := NewChecker(Hierarchy{"x": {"y"}, "y": {"x"}}); !errors.Is(errChecker, ErrScopeCycle) {
		t.Fatalf("expected ErrScopeCycle, got %v", errChecker)
	}
}

func TestCheckerExpandsBeforeMatching(t *testing.T) {
	checker, errChecker := NewChecker(Hierarchy{"admin": {"users:read"}})
	if errChecker != nil {
		t.Fatalf("new checker: %v", errChecker)
	}

	if HasScopes([]string{"admin"}, []string{"users:read"}, RequireAll) {
		t.Fatalf("plain check must not know the hierarchy")
	}
	if !checker.HasScopes([]string{"admin"}, []string{"users:read"}, RequireAll) {
		t.Fatalf("checker should satisfy users:read via admin")
	}
	if !checker.HasScope([]string{"admin"}, "users:read") {
		t.Fatalf("single-scope check should expand too")
	}
}

func TestCheckerMissing(t *testing.T) {
	checker, errChecker := NewChecker(Hierarchy{"admin": {"users:read"}})
	if errChecker != nil {
		t.Fatalf("new checker: %v", errChecker)
	}

	missing := checker.Missing([]string{"admin"}, []string{"users:read", "billing:write"})
	if len(missing) != 1 || missing[0] != "billing:write" {
		t.Fatalf("unexpected missing set: %v", missing)
	}
}
