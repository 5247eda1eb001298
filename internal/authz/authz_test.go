package authz

import (
	"context"
	"testing"
)

func TestAllowList(t *testing.T) {
	a := NewAllowList(" 1254080795 ", "", "42")
	if a.Len() != 2 {
		t.Fatalf("got %d ids, want 2", a.Len())
	}
	cases := map[string]bool{
		"1254080795": true,
		"42":         true,
		"43":         false,
		"":           false,
		" ":          false,
	}
	for id, want := range cases {
		if got := a.Authorized(context.Background(), id); got != want {
			t.Errorf("Authorized(%q) = %v, want %v", id, got, want)
		}
	}
}

func TestEmptyAllowListDeniesAll(t *testing.T) {
	if NewAllowList().Authorized(context.Background(), "1") {
		t.Error("empty allow list admitted a caller")
	}
}

func TestAuthorizerFunc(t *testing.T) {
	var a Authorizer = AuthorizerFunc(func(_ context.Context, id string) bool { return id == "root" })
	if !a.Authorized(context.Background(), "root") || a.Authorized(context.Background(), "guest") {
		t.Error("AuthorizerFunc did not delegate")
	}
}
