package memory

import (
	"context"
	"testing"
	"time"
)

func TestSetGetDel(t *testing.T) {
	ctx := context.Background()
	p := New()

	in := []byte("abc")
	if ok, err := p.Set(ctx, "k", in, 1, 0); err != nil || !ok {
		t.Fatalf("Set ok=%v err=%v", ok, err)
	}
	in[0] = 'X' // caller reuse must not leak into the store

	got, ok, err := p.Get(ctx, "k")
	if err != nil || !ok || string(got) != "abc" {
		t.Fatalf("Get got=%q ok=%v err=%v", got, ok, err)
	}
	if err := p.Del(ctx, "k"); err != nil {
		t.Fatal(err)
	}
	if _, ok, _ := p.Get(ctx, "k"); ok {
		t.Fatalf("expected miss after Del")
	}
}

func TestExpiredEntryIsMissAndRemoved(t *testing.T) {
	ctx := context.Background()
	p := New()
	_, _ = p.Set(ctx, "k", []byte("v"), 1, time.Millisecond)
	time.Sleep(5 * time.Millisecond)
	if _, ok, _ := p.Get(ctx, "k"); ok {
		t.Fatalf("expected expired miss")
	}
	if p.Len() != 0 {
		t.Fatalf("expired entry should be removed, len=%d", p.Len())
	}
}
