package redis

import (
	"context"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"
)

func TestSequencer_Next(t *testing.T) {
	addr := os.Getenv("REDIS_TEST_ADDR")
	if addr == "" {
		t.Skip("REDIS_TEST_ADDR not set")
	}

	ctx := context.Background()
	seq, err := Open(ctx, Config{Addr: addr, KeyPrefix: "chat:test:seq:"})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer seq.Close()

	conv := fmt.Sprintf("test-%d", time.Now().UnixNano())
	defer seq.client.Del(ctx, seq.key(conv))
	if err := seq.Ping(ctx); err != nil {
		t.Fatalf("ping: %v", err)
	}

	const n = 50
	var wg sync.WaitGroup
	seen := make(chan int64, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			v, err := seq.Next(ctx, conv)
			if err != nil {
				t.Errorf("next: %v", err)
				return
			}
			seen <- v
		}()
	}
	wg.Wait()
	close(seen)

	got := make(map[int64]bool, n)
	for v := range seen {
		if got[v] {
			t.Fatalf("duplicate sequence %d", v)
		}
		got[v] = true
	}
	for i := int64(1); i <= n; i++ {
		if !got[i] {
			t.Fatalf("missing sequence %d", i)
		}
	}
}

func TestSequencer_Key(t *testing.T) {
	s := NewSequencer(nil)
	if got := s.key("65f1c0ffee"); got != "chat:seq:65f1c0ffee" {
		t.Fatalf("unexpected key %q", got)
	}
}

func TestOpen_UnreachableServer(t *testing.T) {
	seq, err := Open(context.Background(), Config{Addr: "127.0.0.1:1", Timeout: 200 * time.Millisecond})
	if err == nil {
		_ = seq.Close()
		t.Fatalf("expected an error for an unreachable server")
	}
}
