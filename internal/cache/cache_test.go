package cache

import (
	"context"
	"fmt"
	"testing"

	"github.com/clindocs/cdi-eval/internal/config"
	apperrors "github.com/clindocs/cdi-eval/internal/pkg/errors"
)

func TestMemory_GetSet(t *testing.T) {
	ctx := context.Background()
	c := NewMemory(10)

	if _, ok, _ := c.Get(ctx, "missing"); ok {
		t.Error("Get() on empty cache reported a hit")
	}

	if err := c.Set(ctx, "k1", "v1"); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	v, ok, err := c.Get(ctx, "k1")
	if err != nil || !ok || v != "v1" {
		t.Errorf("Get() = (%q, %v, %v), want (v1, true, nil)", v, ok, err)
	}

	// Overwrite keeps a single entry.
	c.Set(ctx, "k1", "v2")
	if v, _, _ := c.Get(ctx, "k1"); v != "v2" {
		t.Errorf("Get() after overwrite = %q, want v2", v)
	}
	if c.Len() != 1 {
		t.Errorf("Len() = %d, want 1", c.Len())
	}
}

func TestMemory_EvictsOldest(t *testing.T) {
	ctx := context.Background()
	c := NewMemory(3)
	for i := 0; i < 3; i++ {
		c.Set(ctx, fmt.Sprintf("k%d", i), "v")
	}

	// Touch k0 so k1 becomes the eviction candidate.
	c.Get(ctx, "k0")
	c.Set(ctx, "k3", "v")

	if _, ok, _ := c.Get(ctx, "k1"); ok {
		t.Error("k1 should have been evicted")
	}
	for _, k := range []string{"k0", "k2", "k3"} {
		if _, ok, _ := c.Get(ctx, k); !ok {
			t.Errorf("%s should still be cached", k)
		}
	}
}

func TestNop(t *testing.T) {
	ctx := context.Background()
	var c Cache = Nop{}
	if err := c.Set(ctx, "k", "v"); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	if _, ok, _ := c.Get(ctx, "k"); ok {
		t.Error("Nop cache should never hit")
	}
}

func TestNew(t *testing.T) {
	if c, err := New(config.CacheConfig{Type: "memory", Size: 5}); err != nil || c == nil {
		t.Errorf("New(memory) = (%v, %v)", c, err)
	}
	if c, err := New(config.CacheConfig{}); err != nil || c == nil {
		t.Errorf("New(default) = (%v, %v)", c, err)
	}
	if _, err := New(config.CacheConfig{Type: "bogus"}); !apperrors.IsValidation(err) {
		t.Errorf("New(bogus) error = %v, want Validation", err)
	}
}
