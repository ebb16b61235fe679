package versions

import (
	"context"
	"errors"
	"testing"
)

func TestLocalRegisterIsIdempotentAndSorted(t *testing.T) {
	ctx := context.Background()
	r := NewLocal()
	t.Cleanup(func() { _ = r.Close(ctx) })

	for _, v := range []string{"v2", "v1", "v2"} {
		if err := r.Register(ctx, v); err != nil {
			t.Fatal(err)
		}
	}
	got, err := r.Versions(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 || got[0] != "v1" || got[1] != "v2" {
		t.Fatalf("got=%v want [v1 v2]", got)
	}
}

func TestLocalForgetKeepsGeneration(t *testing.T) {
	ctx := context.Background()
	r := NewLocal()

	_ = r.Register(ctx, "v1")
	_ = r.Track(ctx, "v1", "entry:a")
	if g, _ := r.Bump(ctx, "v1"); g != 1 {
		t.Fatalf("bump=%d want 1", g)
	}
	if err := r.Forget(ctx, "v1"); err != nil {
		t.Fatal(err)
	}

	vs, _ := r.Versions(ctx)
	if len(vs) != 0 {
		t.Fatalf("expected no versions, got %v", vs)
	}
	keys, _ := r.Keys(ctx, "v1")
	if len(keys) != 0 {
		t.Fatalf("expected key index cleared, got %v", keys)
	}
	if g, _ := r.Generation(ctx, "v1"); g != 1 {
		t.Fatalf("generation=%d want 1 after forget", g)
	}
}

func TestLocalUnknownVersion(t *testing.T) {
	ctx := context.Background()
	r := NewLocal()
	if g, err := r.Generation(ctx, "nope"); err != nil || g != 0 {
		t.Fatalf("gen=%d err=%v", g, err)
	}
	if keys, err := r.Keys(ctx, "nope"); err != nil || len(keys) != 0 {
		t.Fatalf("keys=%v err=%v", keys, err)
	}
	if err := r.Forget(ctx, "nope"); err != nil {
		t.Fatal(err)
	}
}

func TestLocalTrackDeduplicates(t *testing.T) {
	ctx := context.Background()
	r := NewLocal()
	_ = r.Register(ctx, "v1")
	_ = r.Track(ctx, "v1", "k")
	_ = r.Track(ctx, "v1", "k")
	keys, _ := r.Keys(ctx, "v1")
	if len(keys) != 1 {
		t.Fatalf("expected 1 key, got %v", keys)
	}
}

func TestLocalTrackSkipsUnregistered(t *testing.T) {
	ctx := context.Background()
	r := NewLocal()

	if err := r.Track(ctx, "v0", "k"); !errors.Is(err, ErrUnregistered) {
		t.Fatalf("unknown version: err=%v", err)
	}
	_ = r.Register(ctx, "v1")
	_ = r.Forget(ctx, "v1")
	if err := r.Track(ctx, "v1", "k"); !errors.Is(err, ErrUnregistered) {
		t.Fatalf("forgotten version: err=%v", err)
	}
	if keys, _ := r.Keys(ctx, "v1"); len(keys) != 0 {
		t.Fatalf("forgotten version must not index keys, got %v", keys)
	}
	if vs, _ := r.Versions(ctx); len(vs) != 0 {
		t.Fatalf("Track must not register, got %v", vs)
	}
}
