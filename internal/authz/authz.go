// Package authz decides whether a caller may use the operator surfaces.
package authz

import (
	"context"
	"strings"
)

type Authorizer interface {
	Authorized(ctx context.Context, callerID string) bool
}

// AuthorizerFunc adapts a function to Authorizer.
type AuthorizerFunc func(ctx context.Context, callerID string) bool

func (f AuthorizerFunc) Authorized(ctx context.Context, callerID string) bool {
	return f(ctx, callerID)
}

// AllowList admits a fixed set of operator ids. An empty list admits nobody.
type AllowList struct {
	ids map[string]struct{}
}

func NewAllowList(ids ...string) *AllowList {
	a := &AllowList{ids: make(map[string]struct{}, len(ids))}
	for _, id := range ids {
		if id = strings.TrimSpace(id); id != "" {
			a.ids[id] = struct{}{}
		}
	}
	return a
}

func (a *AllowList) Authorized(_ context.Context, callerID string) bool {
	_, ok := a.ids[strings.TrimSpace(callerID)]
	return ok && callerID != ""
}

func (a *AllowList) Len() int {
	return len(a.ids)
}

var _ Authorizer = (*AllowList)(nil)
