package asynchook

import (
	"errors"
	"sync"
	"testing"

	"go.uber.org/goleak"

	"github.com/unkn0wn-root/swcache"
)

type recorder struct {
	swcache.NopHooks
	mu     sync.Mutex
	events []string
}

func (r *recorder) add(s string) {
	r.mu.Lock()
	r.events = append(r.events, s)
	r.mu.Unlock()
}

func (r *recorder) CacheHit(v, u string)                { r.add("hit:" + v + ":" + u) }
func (r *recorder) SelfHeal(k, reason string)           { r.add("heal:" + reason) }
func (r *recorder) StorageFailure(op string, err error) { r.add("fail:" + op + ":" + err.Error()) }

func (r *recorder) snapshot() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.events...)
}

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestEventsDeliveredBeforeClose(t *testing.T) {
	rec := &recorder{}
	h := New(rec, 2, 16)

	h.CacheHit("v1", "/app.js")
	h.SelfHeal("k", "corrupt")
	h.StorageFailure("get", errors.New("down"))
	h.Close()

	got := rec.snapshot()
	if len(got) != 3 {
		t.Fatalf("expected 3 events, got %v", got)
	}
}

func TestEmitAfterCloseIsDropped(t *testing.T) {
	rec := &recorder{}
	h := New(rec, 1, 4)
	h.Close()
	h.Close()

	h.CacheHit("v1", "/late")
	if got := rec.snapshot(); len(got) != 0 {
		t.Fatalf("expected no events after close, got %v", got)
	}
}

func TestNilInnerIsNop(t *testing.T) {
	h := New(nil, 0, 0)
	h.Stored("v1", "/")
	h.Close()
}
