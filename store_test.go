package swcache

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/unkn0wn-root/swcache/capture"
	c "github.com/unkn0wn-root/swcache/codec"
	"github.com/unkn0wn-root/swcache/internal/keys"
	"github.com/unkn0wn-root/swcache/provider/memory"
	"github.com/unkn0wn-root/swcache/versions"
)

func newTestManager(t *testing.T, p *memory.Provider, mutate func(*ManagerOptions)) *Manager {
	t.Helper()
	opts := ManagerOptions{
		Namespace: "test",
		Provider:  p,
		Codec:     c.MustCBOR[capture.Capture](true),
	}
	if mutate != nil {
		mutate(&opts)
	}
	m, err := NewManager(opts)
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	return m
}

func okResponse(url, body string) *Response {
	return &Response{
		Status: http.StatusOK,
		Header: http.Header{"Content-Type": {"text/css"}},
		Body:   []byte(body),
		URL:    url,
	}
}

func TestStorePutGetExactKey(t *testing.T) {
	ctx := context.Background()
	m := newTestManager(t, memory.New(), nil)
	st, err := m.Open(ctx, "v1")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	req := NewRequest("GET", testOrigin+"/static/app.css")
	if err := st.Put(ctx, req, okResponse(req.URL, "body{}")); err != nil {
		t.Fatalf("Put: %v", err)
	}

	got, ok, err := st.Get(ctx, req)
	if err != nil || !ok {
		t.Fatalf("Get: ok=%v err=%v", ok, err)
	}
	if got.Status != 200 || string(got.Body) != "body{}" || got.Header.Get("Content-Type") != "text/css" {
		t.Fatalf("unexpected response %+v", got)
	}
	if got.Source != SourceCache {
		t.Fatalf("expected cache source, got %s", got.Source)
	}

	// query strings are part of the key
	if _, ok, _ := st.Get(ctx, NewRequest("GET", req.URL+"?v=2")); ok {
		t.Fatalf("query variant must miss")
	}
	if _, ok, _ := st.Get(ctx, NewRequest("HEAD", req.URL)); ok {
		t.Fatalf("HEAD must miss")
	}
}

func TestStoreRejectsNonGet(t *testing.T) {
	ctx := context.Background()
	p := memory.New()
	st, _ := newTestManager(t, p, nil).Open(ctx, "v1")

	err := st.Put(ctx, NewRequest("POST", testOrigin+"/api/x"), okResponse("", "x"))
	if !errors.Is(err, ErrNotCacheable) {
		t.Fatalf("expected ErrNotCacheable, got %v", err)
	}
	if p.Len() != 0 {
		t.Fatalf("provider must stay empty, has %d", p.Len())
	}
}

func TestStoreLastWriteWins(t *testing.T) {
	ctx := context.Background()
	st, _ := newTestManager(t, memory.New(), nil).Open(ctx, "v1")
	req := NewRequest("GET", testOrigin+"/static/a.js")

	_ = st.Put(ctx, req, okResponse(req.URL, "one"))
	_ = st.Put(ctx, req, okResponse(req.URL, "two"))

	got, ok, _ := st.Get(ctx, req)
	if !ok || string(got.Body) != "two" {
		t.Fatalf("expected last write, got ok=%v %+v", ok, got)
	}
}

func TestOpenIsIdempotent(t *testing.T) {
	ctx := context.Background()
	m := newTestManager(t, memory.New(), nil)
	req := NewRequest("GET", testOrigin+"/")

	st1, _ := m.Open(ctx, "v1")
	_ = st1.Put(ctx, req, okResponse(req.URL, "<html>"))

	st2, err := m.Open(ctx, "v1")
	if err != nil {
		t.Fatalf("second Open: %v", err)
	}
	got, ok, _ := st2.Get(ctx, req)
	if !ok || string(got.Body) != "<html>" {
		t.Fatalf("reopened store lost content: ok=%v", ok)
	}
	vs, _ := m.Versions(ctx)
	if len(vs) != 1 || vs[0] != "v1" {
		t.Fatalf("expected [v1], got %v", vs)
	}
}

func TestVersionsAreIsolated(t *testing.T) {
	ctx := context.Background()
	m := newTestManager(t, memory.New(), nil)
	req := NewRequest("GET", testOrigin+"/static/a.js")

	old, _ := m.Open(ctx, "v1")
	_ = old.Put(ctx, req, okResponse(req.URL, "old"))
	next, _ := m.Open(ctx, "v2")

	if _, ok, _ := next.Get(ctx, req); ok {
		t.Fatalf("v2 must not see v1 entries")
	}
}

func TestDeleteReclaimsVersion(t *testing.T) {
	ctx := context.Background()
	p := memory.New()
	hooks := newRecordingHooks()
	m := newTestManager(t, p, func(o *ManagerOptions) { o.Hooks = hooks })
	req := NewRequest("GET", testOrigin+"/static/a.js")

	st, _ := m.Open(ctx, "v1")
	_ = st.Put(ctx, req, okResponse(req.URL, "a"))
	_, _ = m.Open(ctx, "v2")

	if err := m.Delete(ctx, "v1"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if p.Len() != 0 {
		t.Fatalf("expected entries reclaimed, %d left", p.Len())
	}
	vs, _ := m.Versions(ctx)
	if len(vs) != 1 || vs[0] != "v2" {
		t.Fatalf("expected [v2], got %v", vs)
	}

	// reopening the deleted version starts empty
	st, _ = m.Open(ctx, "v1")
	if _, ok, _ := st.Get(ctx, req); ok {
		t.Fatalf("deleted version must come back empty")
	}
}

func TestSelfHealOnStaleGeneration(t *testing.T) {
	ctx := context.Background()
	p := memory.New()
	reg := versions.NewLocal()
	hooks := newRecordingHooks()
	m := newTestManager(t, p, func(o *ManagerOptions) {
		o.Registry = reg
		o.Hooks = hooks
	})
	req := NewRequest("GET", testOrigin+"/static/a.js")

	st, _ := m.Open(ctx, "v1")
	_ = st.Put(ctx, req, okResponse(req.URL, "a"))

	// simulate a delete whose provider Del was lost
	if _, err := reg.Bump(ctx, "v1"); err != nil {
		t.Fatalf("Bump: %v", err)
	}
	if _, ok, err := st.Get(ctx, req); ok || err != nil {
		t.Fatalf("expected stale miss, ok=%v err=%v", ok, err)
	}
	if p.Len() != 0 {
		t.Fatalf("stale entry must be deleted on read")
	}
	if len(hooks.heals) != 1 || hooks.heals[0] != "stale_version" {
		t.Fatalf("unexpected heals %v", hooks.heals)
	}
}

func TestSelfHealOnCorrupt(t *testing.T) {
	ctx := context.Background()
	p := memory.New()
	hooks := newRecordingHooks()
	m := newTestManager(t, p, func(o *ManagerOptions) { o.Hooks = hooks })
	st, _ := m.Open(ctx, "v1")
	req := NewRequest("GET", testOrigin+"/static/a.js")

	k := keys.Entry("test", "v1", "GET", req.URL)
	_, _ = p.Set(ctx, k, []byte("garbage"), 1, 0)

	if _, ok, err := st.Get(ctx, req); ok || err != nil {
		t.Fatalf("expected corrupt miss, ok=%v err=%v", ok, err)
	}
	if _, ok, _ := p.Get(ctx, k); ok {
		t.Fatalf("corrupt entry must be deleted")
	}
	if len(hooks.heals) != 1 || hooks.heals[0] != "corrupt" {
		t.Fatalf("unexpected heals %v", hooks.heals)
	}
}

func TestCodecMismatchIsCorrupt(t *testing.T) {
	ctx := context.Background()
	p := memory.New()
	req := NewRequest("GET", testOrigin+"/static/a.js")

	jsonM := newTestManager(t, p, func(o *ManagerOptions) { o.Codec = c.JSON[capture.Capture]{} })
	st, _ := jsonM.Open(ctx, "v1")
	_ = st.Put(ctx, req, okResponse(req.URL, "a"))

	cborM := newTestManager(t, p, nil)
	st, _ = cborM.Open(ctx, "v1")
	if _, ok, _ := st.Get(ctx, req); ok {
		t.Fatalf("entry written by another codec must not decode")
	}
}

func TestProviderFailureIsStorageError(t *testing.T) {
	ctx := context.Background()
	p := &failingProvider{Provider: memory.New(), getErr: errors.New("quota exceeded")}
	m, err := NewManager(ManagerOptions{Provider: p, Codec: c.JSON[capture.Capture]{}})
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	st, _ := m.Open(ctx, "v1")

	_, ok, err := st.Get(ctx, NewRequest("GET", testOrigin+"/"))
	var se *StorageError
	if ok || !errors.As(err, &se) || se.Op != "get" {
		t.Fatalf("expected get StorageError, ok=%v err=%v", ok, err)
	}
}

func TestDeleteReportsReclaimError(t *testing.T) {
	ctx := context.Background()
	p := &failingProvider{Provider: memory.New()}
	m, _ := NewManager(ManagerOptions{Provider: p, Codec: c.JSON[capture.Capture]{}})
	st, _ := m.Open(ctx, "v1")
	req := NewRequest("GET", testOrigin+"/static/a.js")
	_ = st.Put(ctx, req, okResponse(req.URL, "a"))

	p.delErr = errors.New("backend down")
	err := m.Delete(ctx, "v1")
	var re *ReclaimError
	if !errors.As(err, &re) || re.DelErr == nil || re.BumpErr != nil {
		t.Fatalf("expected delete ReclaimError, got %v", err)
	}
	if !errors.Is(err, p.delErr) {
		t.Fatalf("ReclaimError must unwrap the provider error")
	}

	// the surviving entry is stale: the generation was bumped
	p.delErr = nil
	st, _ = m.Open(ctx, "v1")
	if _, ok, _ := st.Get(ctx, req); ok {
		t.Fatalf("entry of a deleted version must not be served")
	}
}

func TestEntryTTLAndClock(t *testing.T) {
	ctx := context.Background()
	fixed := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	p := memory.New()
	m := newTestManager(t, p, func(o *ManagerOptions) {
		o.EntryTTL = time.Hour
		o.Clock = func() time.Time { return fixed }
		o.Codec = c.JSON[capture.Capture]{}
	})
	st, _ := m.Open(ctx, "v1")
	req := NewRequest("GET", testOrigin+"/static/a.js")
	_ = st.Put(ctx, req, okResponse(req.URL, "a"))

	raw, ok, _ := p.Get(ctx, keys.Entry("test", "v1", "GET", req.URL))
	if !ok {
		t.Fatalf("entry missing")
	}
	if !bytes.Contains(raw, []byte("2026-01-02T03:04:05Z")) {
		t.Fatalf("capture must carry the manager clock")
	}
}

func TestNewManagerRequiresProviderAndCodec(t *testing.T) {
	if _, err := NewManager(ManagerOptions{Codec: c.JSON[capture.Capture]{}}); err == nil {
		t.Fatalf("expected error without provider")
	}
	if _, err := NewManager(ManagerOptions{Provider: memory.New()}); err == nil {
		t.Fatalf("expected error without codec")
	}
}

func TestPutForDeletedVersionLeavesNoEntry(t *testing.T) {
	ctx := context.Background()
	p := memory.New()
	reg := versions.NewLocal()
	hooks := newRecordingHooks()
	m := newTestManager(t, p, func(o *ManagerOptions) {
		o.Registry = reg
		o.Hooks = hooks
	})
	st, _ := m.Open(ctx, "v1")
	_, _ = m.Open(ctx, "v2")

	// a write-back that lands after activation deleted its version
	if err := m.Delete(ctx, "v1"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	req := NewRequest("GET", testOrigin+"/static/a.js")
	if err := st.Put(ctx, req, okResponse(req.URL, "late")); err != nil {
		t.Fatalf("Put: %v", err)
	}

	if p.Len() != 0 {
		t.Fatalf("late write must not stay in the provider, %d entries", p.Len())
	}
	if keys, _ := reg.Keys(ctx, "v1"); len(keys) != 0 {
		t.Fatalf("deleted version must not be indexed again, got %v", keys)
	}
	if vs, _ := m.Versions(ctx); len(vs) != 1 || vs[0] != "v2" {
		t.Fatalf("expected [v2], got %v", vs)
	}
	if len(hooks.heals) != 1 || hooks.heals[0] != "unregistered_version" {
		t.Fatalf("unexpected heals %v", hooks.heals)
	}
}
