package swcache

import (
	"context"
	"strings"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// interceptor runs the per-request decision procedure. Requests are
// independent; there is no lock across them.
type interceptor struct {
	cfg        Config
	classifier Classifier
	fetcher    Fetcher
	fallback   *fallbackProvider
	log        Logger
	hooks      Hooks
	tracer     trace.Tracer

	writes sync.WaitGroup
}

// handle serves req. store is nil while the agent is not active, in which case
// the request goes to the network untouched.
func (i *interceptor) handle(ctx context.Context, store *Store, req Request) (*Response, error) {
	label := i.classifier.Classify(req)

	ctx, span := i.tracer.Start(ctx, "swcache.intercept", trace.WithAttributes(
		attribute.String("http.request.method", req.method()),
		attribute.String("url.full", req.URL),
		attribute.String("swcache.policy", label.String()),
	))
	defer span.End()

	resp, outcome, err := i.run(ctx, store, req, label)
	span.SetAttributes(attribute.String("swcache.outcome", outcome))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "fetch failed")
		return nil, err
	}
	span.SetAttributes(attribute.Int("http.response.status_code", resp.Status))
	return resp, nil
}

func (i *interceptor) run(ctx context.Context, store *Store, req Request, label PolicyLabel) (*Response, string, error) {
	// never-cache requests never touch the store, not even for fallback
	if label == NeverCache || store == nil {
		resp, err := i.fetcher.Fetch(ctx, req)
		if err != nil {
			return nil, "bypass_error", err
		}
		return resp, "bypass", nil
	}

	cached, ok, err := store.Get(ctx, req)
	if err != nil {
		i.storageFailure("get", err)
	}
	if ok {
		i.hooks.CacheHit(store.Version(), req.URL)
		return cached, "hit", nil
	}
	i.hooks.CacheMiss(store.Version(), req.URL)

	resp, err := i.fetcher.Fetch(ctx, req)
	if err != nil {
		return i.recover(ctx, store, req, err)
	}
	if label.Cacheable() && resp.Status == 200 && resp.Type == TypeBasic {
		i.writeBack(ctx, store, req, resp.Clone())
	}
	return resp, "network", nil
}

// recover turns a transport failure into a substitute response where one applies.
func (i *interceptor) recover(ctx context.Context, store *Store, req Request, fetchErr error) (*Response, string, error) {
	i.log.Info("network unavailable", Fields{"url": req.URL, "err": fetchErr})

	if req.Mode == ModeNavigate {
		resp, kind := i.fallback.page(ctx, store, req)
		i.hooks.FallbackServed(req.URL, kind)
		return resp, "fallback", nil
	}
	if strings.HasPrefix(req.path(), i.cfg.APIPrefix) {
		i.hooks.FallbackServed(req.URL, fallbackAPI)
		return i.fallback.api(req), "fallback", nil
	}
	return nil, "error", fetchErr
}

// writeBack stores snap without holding up the caller. It runs detached from
// the caller's context so an aborted request still completes its write.
func (i *interceptor) writeBack(ctx context.Context, store *Store, req Request, snap *Response) {
	wctx := context.WithoutCancel(ctx)
	i.writes.Add(1)
	go func() {
		defer i.writes.Done()
		if err := store.Put(wctx, req, snap); err != nil {
			i.storageFailure("put", err)
			return
		}
		i.hooks.Stored(store.Version(), req.URL)
	}()
}

func (i *interceptor) storageFailure(op string, err error) {
	i.hooks.StorageFailure(op, err)
	i.log.Warn("storage failure treated as miss", Fields{"op": op, "err": err})
}
