package cache

import (
	"context"
	"fmt"
	"testing"
	"time"
)

func TestKey(t *testing.T) {
	t.Run("deterministic", func(t *testing.T) {
		k1 := Key("fitness", "US", "cred-a", "0")
		k2 := Key("fitness", "US", "cred-a", "0")
		if k1 != k2 {
			t.Errorf("Key not deterministic: %q != %q", k1, k2)
		}
	})

	t.Run("different inputs differ", func(t *testing.T) {
		k1 := Key("fitness", "US", "cred-a", "0")
		k2 := Key("fitness", "US", "cred-b", "0")
		if k1 == k2 {
			t.Errorf("different credential produced same key: %q", k1)
		}
	})

	t.Run("generation changes key", func(t *testing.T) {
		k1 := Key("fitness", "US", "cred-a", "0")
		k2 := Key("fitness", "US", "cred-a", "1")
		if k1 == k2 {
			t.Error("generation bump must change the key")
		}
	})

	t.Run("has prefix", func(t *testing.T) {
		if k := Key("x"); k[:4] != "yif:" {
			t.Errorf("expected yif: prefix, got %q", k[:4])
		}
	})
}

func TestGetSet(t *testing.T) {
	c := New("", time.Minute, 100)
	defer c.Close()
	ctx := context.Background()
	key := Key("round", "trip")

	if _, ok := c.Get(ctx, key); ok {
		t.Error("expected miss on empty cache")
	}

	c.Set(ctx, key, []byte(`[{"channelId":"UC1"}]`))

	got, ok := c.Get(ctx, key)
	if !ok {
		t.Fatal("expected hit after set")
	}
	if string(got) != `[{"channelId":"UC1"}]` {
		t.Errorf("payload mismatch: %s", got)
	}

	hits, misses := c.Stats()
	if hits != 1 || misses != 1 {
		t.Errorf("stats = (%d,%d), want (1,1)", hits, misses)
	}
}

func TestExpiry(t *testing.T) {
	c := New("", time.Millisecond, 100)
	defer c.Close()
	ctx := context.Background()
	key := Key("expiry")

	c.Set(ctx, key, []byte("temp"))
	time.Sleep(5 * time.Millisecond)

	if _, ok := c.Get(ctx, key); ok {
		t.Error("expected miss after TTL expiry")
	}
}

func TestInvalidate(t *testing.T) {
	c := New("", time.Minute, 100)
	defer c.Close()
	ctx := context.Background()
	key := Key("inv")

	c.Set(ctx, key, []byte("x"))
	c.Invalidate(ctx, key)
	if _, ok := c.Get(ctx, key); ok {
		t.Error("expected miss after invalidate")
	}
}

func TestFlush(t *testing.T) {
	c := New("", time.Minute, 100)
	defer c.Close()
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		c.Set(ctx, Key("flush", fmt.Sprintf("%d", i)), []byte("x"))
	}
	c.Flush(ctx)
	for i := 0; i < 5; i++ {
		if _, ok := c.Get(ctx, Key("flush", fmt.Sprintf("%d", i))); ok {
			t.Fatalf("entry %d survived flush", i)
		}
	}
}

func TestEviction(t *testing.T) {
	c := New("", time.Minute, 3)
	defer c.Close()
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		c.Set(ctx, Key("evict", fmt.Sprintf("%d", i)), []byte("x"))
	}

	c.mu.Lock()
	n := len(c.l1)
	c.mu.Unlock()
	if n > 3 {
		t.Errorf("L1 holds %d entries, max is 3", n)
	}
}

func TestNonPositiveTTLPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("expected panic on zero TTL")
		}
	}()
	New("", 0, 10)
}
