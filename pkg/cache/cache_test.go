package cache

import (
	"context"
	"testing"
	"time"
)

func TestNullCache(t *testing.T) {
	ctx := context.Background()
	c := NewNullCache()
	defer c.Close()

	// Get always returns miss
	data, hit, err := c.Get(ctx, "key")
	if err != nil {
		t.Fatalf("Get error: %v", err)
	}
	if hit {
		t.Error("NullCache.Get should always return miss")
	}
	if data != nil {
		t.Error("NullCache.Get should return nil data")
	}

	// Set does nothing (no error)
	if err := c.Set(ctx, "key", []byte("value"), time.Hour); err != nil {
		t.Errorf("Set error: %v", err)
	}

	// Still a miss after Set
	_, hit, _ = c.Get(ctx, "key")
	if hit {
		t.Error("NullCache should not store data")
	}

	// Delete does nothing (no error)
	if err := c.Delete(ctx, "key"); err != nil {
		t.Errorf("Delete error: %v", err)
	}
}

func TestFileCacheRoundTrip(t *testing.T) {
	ctx := context.Background()
	c, err := NewFileCache(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileCache: %v", err)
	}
	defer c.Close()

	if err := c.Set(ctx, "diagram:abc", []byte("flowchart TD"), time.Hour); err != nil {
		t.Fatalf("Set error: %v", err)
	}

	data, hit, err := c.Get(ctx, "diagram:abc")
	if err != nil {
		t.Fatalf("Get error: %v", err)
	}
	if !hit {
		t.Fatal("expected cache hit")
	}
	if string(data) != "flowchart TD" {
		t.Errorf("data = %q", data)
	}

	// Missing key is a miss, not an error
	_, hit, err = c.Get(ctx, "diagram:missing")
	if err != nil {
		t.Fatalf("Get error: %v", err)
	}
	if hit {
		t.Error("expected miss for unknown key")
	}

	// Delete then miss
	if err := c.Delete(ctx, "diagram:abc"); err != nil {
		t.Fatalf("Delete error: %v", err)
	}
	_, hit, _ = c.Get(ctx, "diagram:abc")
	if hit {
		t.Error("expected miss after delete")
	}

	// Deleting a missing key is fine
	if err := c.Delete(ctx, "diagram:abc"); err != nil {
		t.Errorf("Delete of missing key: %v", err)
	}
}

func TestFileCacheExpiry(t *testing.T) {
	ctx := context.Background()
	c, err := NewFileCache(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileCache: %v", err)
	}
	defer c.Close()

	// An already-expired entry reads as a miss
	if err := c.Set(ctx, "k", []byte("v"), -time.Second); err != nil {
		t.Fatalf("Set error: %v", err)
	}
	if _, hit, _ := c.Get(ctx, "k"); hit {
		t.Error("expired entry should be a miss")
	}

	// Zero TTL means no expiry
	if err := c.Set(ctx, "k2", []byte("v"), 0); err != nil {
		t.Fatalf("Set error: %v", err)
	}
	if _, hit, _ := c.Get(ctx, "k2"); !hit {
		t.Error("zero-TTL entry should not expire")
	}
}

func TestHash(t *testing.T) {
	// Test determinism
	h1 := Hash([]byte("hello"))
	h2 := Hash([]byte("hello"))
	if h1 != h2 {
		t.Error("Hash should be deterministic")
	}

	// Test different inputs produce different hashes
	h3 := Hash([]byte("world"))
	if h1 == h3 {
		t.Error("Different inputs should produce different hashes")
	}

	// Test hash length (SHA-256 produces 64 hex chars)
	if len(h1) != 64 {
		t.Errorf("Hash length should be 64, got %d", len(h1))
	}
}

func TestDefaultKeyer(t *testing.T) {
	k := NewDefaultKeyer()

	// Same inputs produce the same key
	k1 := k.DiagramKey("hash123", DiagramKeyOpts{Format: "mermaid", Prefix: "app", Direction: "TD"})
	k2 := k.DiagramKey("hash123", DiagramKeyOpts{Format: "mermaid", Prefix: "app", Direction: "TD"})
	if k1 != k2 {
		t.Error("DiagramKey should be deterministic")
	}

	// Options participate in the key
	k3 := k.DiagramKey("hash123", DiagramKeyOpts{Format: "svg", Prefix: "app", Direction: "TD"})
	if k1 == k3 {
		t.Error("Different formats should produce different keys")
	}
	k4 := k.DiagramKey("hash123", DiagramKeyOpts{Format: "mermaid", Prefix: "app", Direction: "LR"})
	if k1 == k4 {
		t.Error("Different directions should produce different keys")
	}

	// So does the render graph hash
	k5 := k.DiagramKey("hash456", DiagramKeyOpts{Format: "mermaid", Prefix: "app", Direction: "TD"})
	if k1 == k5 {
		t.Error("Different render hashes should produce different keys")
	}

	// Label options change the serialized bytes, so they change the key.
	k6 := k.DiagramKey("hash123", DiagramKeyOpts{Format: "mermaid", Prefix: "app", Direction: "TD", LabelMode: "full"})
	if k1 == k6 {
		t.Error("Different label modes should produce different keys")
	}
	k7 := k.DiagramKey("hash123", DiagramKeyOpts{Format: "mermaid", Prefix: "app", Direction: "TD", LabelDepth: 3})
	if k1 == k7 {
		t.Error("Different label depths should produce different keys")
	}
	k8 := k.DiagramKey("hash123", DiagramKeyOpts{Format: "mermaid", Prefix: "app", Direction: "TD", WrapLabels: true})
	if k1 == k8 {
		t.Error("Wrapped labels should produce a different key")
	}
}

func TestScopedKeyer(t *testing.T) {
	scoped := NewScopedKeyer(NewDefaultKeyer(), "svc:prod:")

	key := scoped.DiagramKey("hash123", DiagramKeyOpts{Format: "mermaid"})
	if len(key) < 9 || key[:9] != "svc:prod:" {
		t.Errorf("ScopedKeyer key should be prefixed: %s", key)
	}
}

func TestScopedKeyerNilInner(t *testing.T) {
	// Should use DefaultKeyer when inner is nil
	scoped := NewScopedKeyer(nil, "prefix:")
	key := scoped.DiagramKey("h", DiagramKeyOpts{})
	if len(key) < 7 || key[:7] != "prefix:" {
		t.Errorf("Unexpected key with nil inner: %s", key)
	}
}
