package cache

import (
	"context"
	"testing"
	"time"
)

func TestNoopCache_NeverHits(t *testing.T) {
	ctx := context.Background()
	var c Cache = NewNoop()

	if err := c.Set(ctx, "k", []byte("v"), time.Minute); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok, err := c.Get(ctx, "k"); ok || err != nil {
		t.Fatalf("expected miss without error, got ok=%v err=%v", ok, err)
	}
}

func TestNewRedisFromURL(t *testing.T) {
	c, err := NewRedisFromURL("redis://:secret@localhost:6379/2")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer c.Close()

	if _, err := NewRedisFromURL("http://localhost"); err == nil {
		t.Fatalf("expected error for non-redis scheme")
	}
}
