package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
)

func TestConfigNewPings(t *testing.T) {
	srv := miniredis.RunT(t)
	cfg := Config{URL: "redis://" + srv.Addr() + "/0", ReadTimeout: 1, WriteTimeout: 1, DialTimeout: 1}

	client, err := cfg.New(context.Background())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer client.Close()

	if got := client.Options().ReadTimeout; got != time.Second {
		t.Errorf("got read timeout %v, want 1s", got)
	}
}

func TestConfigNewBadURL(t *testing.T) {
	cfg := Config{URL: "not-a-url", DialTimeout: 1}
	if _, err := cfg.New(context.Background()); err == nil {
		t.Fatal("expected error for invalid URL")
	}
}
