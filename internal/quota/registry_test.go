package quota

import (
	"testing"
	"time"
)

func TestRegistrySharesBucketForSameKey(t *testing.T) {
	r := NewRegistry()
	a := r.Bucket("replicate/key1", 5, 10)
	b := r.Bucket("replicate/key1", 5, 10)
	if a != b {
		t.Fatal("expected the same bucket for identical quota keys")
	}
}

func TestRegistrySeparatesDistinctKeys(t *testing.T) {
	r := NewRegistry()
	a := r.Bucket("replicate/key1", 5, 10)
	b := r.Bucket("replicate/key2", 5, 10)
	c := r.Bucket("replicate/key1", 2, 10)
	if a == b {
		t.Fatal("expected distinct buckets for distinct credentials")
	}
	if a == c {
		t.Fatal("expected distinct buckets for distinct rates")
	}
	if r.Len() != 3 {
		t.Fatalf("expected 3 buckets, got %d", r.Len())
	}
}

func TestRegistrySnapshot(t *testing.T) {
	r := NewRegistry()
	b := r.Bucket("fal", 5, 10)
	b.TryAcquire()
	b.TryAcquire()

	snap := r.Snapshot()
	if len(snap) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(snap))
	}
	for _, tokens := range snap {
		if tokens > 8.5 || tokens < 7.5 {
			t.Errorf("expected ~8 tokens, got %g", tokens)
		}
	}
}

func TestRegistrySweepDropsIdleBuckets(t *testing.T) {
	r := NewRegistry()
	b := r.Bucket("stale", 5, 10)

	// Backdate the bucket's last use.
	b.mu.Lock()
	b.lastUsed = time.Now().Add(-time.Hour)
	b.mu.Unlock()

	r.Bucket("fresh", 5, 10).TryAcquire()

	r.sweep(30 * time.Minute)
	if r.Len() != 1 {
		t.Fatalf("expected stale bucket swept, got %d remaining", r.Len())
	}
}
