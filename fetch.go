package swcache

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

// Fetcher performs the network half of interception.
// A returned error means the request never produced a response; any HTTP
// status, including 5xx, is a successful fetch.
type Fetcher interface {
	Fetch(ctx context.Context, req Request) (*Response, error)
}

// FetcherFunc adapts a function to Fetcher.
type FetcherFunc func(ctx context.Context, req Request) (*Response, error)

func (f FetcherFunc) Fetch(ctx context.Context, req Request) (*Response, error) { return f(ctx, req) }

var errBodyTooLarge = errors.New("response body exceeds limit")

// HTTPFetcher fetches over net/http and buffers the body.
type HTTPFetcher struct {
	Client *http.Client // nil => http.DefaultClient
	// Origin of the application; relative URLs resolve against it and responses
	// from it are TypeBasic.
	Origin string
	// MaxBodyBytes caps buffered bodies; 0 means unlimited.
	MaxBodyBytes int64
}

func (f *HTTPFetcher) Fetch(ctx context.Context, req Request) (*Response, error) {
	cfg := Config{Origin: strings.TrimRight(f.Origin, "/")}
	target := cfg.resolve(req.URL)
	method := req.method()

	var body io.Reader
	if len(req.Body) > 0 {
		body = bytes.NewReader(req.Body)
	}
	hreq, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, &TransportError{Method: method, URL: target, Err: err}
	}
	for k, vs := range req.Header {
		hreq.Header[k] = append([]string(nil), vs...)
	}

	client := f.Client
	if client == nil {
		client = http.DefaultClient
	}
	hresp, err := client.Do(hreq)
	if err != nil {
		return nil, &TransportError{Method: method, URL: target, Err: err}
	}
	defer hresp.Body.Close()

	var r io.Reader = hresp.Body
	if f.MaxBodyBytes > 0 {
		r = io.LimitReader(hresp.Body, f.MaxBodyBytes+1)
	}
	b, err := io.ReadAll(r)
	if err != nil {
		return nil, &TransportError{Method: method, URL: target, Err: fmt.Errorf("read body: %w", err)}
	}
	if f.MaxBodyBytes > 0 && int64(len(b)) > f.MaxBodyBytes {
		return nil, &TransportError{Method: method, URL: target, Err: errBodyTooLarge}
	}

	return &Response{
		Status: hresp.StatusCode,
		Header: hresp.Header.Clone(),
		Body:   b,
		URL:    finalURL(hresp, target),
		Type:   responseType(cfg, target, req.Mode),
		Source: SourceNetwork,
	}, nil
}

func finalURL(hresp *http.Response, fallback string) string {
	if hresp.Request != nil && hresp.Request.URL != nil {
		return hresp.Request.URL.String()
	}
	return fallback
}

func responseType(cfg Config, target string, mode Mode) ResponseType {
	if u, err := url.Parse(target); err == nil && u.Host != "" && cfg.Origin != "" && cfg.sameOrigin(target) {
		return TypeBasic
	}
	if mode == ModeNoCORS {
		return TypeOpaque
	}
	return TypeCORS
}
