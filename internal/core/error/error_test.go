package errx

import (
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/redis/go-redis/v9"
)

func TestAppErrorMessage(t *testing.T) {
	cause := errors.New("dial tcp: timeout")
	err := Transient(cause)

	want := "inventory lookup failed: dial tcp: timeout"
	if got := err.Error(); got != want {
		t.Errorf("got %q, want %q", got, want)
	}
	if !errors.Is(err, cause) {
		t.Error("errors.Is should reach the cause")
	}
}

func TestKindOfWrapped(t *testing.T) {
	err := fmt.Errorf("append observation: %w", WrapRedis(errors.New("connection refused")))

	if got := KindOf(err); got != KindPersistence {
		t.Errorf("got %v, want %v", got, KindPersistence)
	}
	if got := StatusOf(err); got != http.StatusBadGateway {
		t.Errorf("got status %d, want %d", got, http.StatusBadGateway)
	}
}

func TestIsSentinelByKind(t *testing.T) {
	err := fmt.Errorf("get notification: %w", WrapSQL(sql.ErrNoRows))
	if !errors.Is(err, ErrNotFound) {
		t.Error("WrapSQL(sql.ErrNoRows) should match ErrNotFound")
	}
	if errors.Is(err, ErrUnauthorized) {
		t.Error("not found must not match ErrUnauthorized")
	}
}

func TestWrapRedisNil(t *testing.T) {
	if got := KindOf(WrapRedis(redis.Nil)); got != KindNotFound {
		t.Errorf("got %v, want %v", got, KindNotFound)
	}
	if WrapRedis(nil) != nil {
		t.Error("WrapRedis(nil) must be nil")
	}
}

func TestIsFetchFailure(t *testing.T) {
	cases := []struct {
		err  error
		want bool
	}{
		{Transient(errors.New("timeout")), true},
		{Malformed(errors.New("no stock field")), true},
		{WrapRedis(errors.New("down")), false},
		{errors.New("plain"), false},
		{nil, false},
	}
	for _, c := range cases {
		if got := IsFetchFailure(c.err); got != c.want {
			t.Errorf("IsFetchFailure(%v) = %v, want %v", c.err, got, c.want)
		}
	}
}

func TestMessageOfFallback(t *testing.T) {
	if got := MessageOf(errors.New("boom")); got != SystemErrorMessage {
		t.Errorf("got %q, want %q", got, SystemErrorMessage)
	}
	if got := MessageOf(ErrUnauthorized); got != AccessDeniedMessage {
		t.Errorf("got %q, want %q", got, AccessDeniedMessage)
	}
}
