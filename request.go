package swcache

import (
	"bytes"
	"net/http"
	"net/url"
	"strings"
)

// Mode is the request mode as seen by the agent.
type Mode string

const (
	ModeNavigate   Mode = "navigate" // full page load
	ModeSameOrigin Mode = "same-origin"
	ModeCORS       Mode = "cors"
	ModeNoCORS     Mode = "no-cors"
)

// Request is one intercepted request. It is not modified by the agent.
type Request struct {
	Method string
	URL    string
	Mode   Mode
	Header http.Header // optional
	Body   []byte      // optional, forwarded for mutating methods
}

func NewRequest(method, rawURL string) Request {
	return Request{Method: method, URL: rawURL, Mode: ModeCORS}
}

// Navigate builds a full-page navigation request.
func Navigate(rawURL string) Request {
	return Request{Method: http.MethodGet, URL: rawURL, Mode: ModeNavigate}
}

func (r Request) method() string {
	if r.Method == "" {
		return http.MethodGet
	}
	return strings.ToUpper(r.Method)
}

// path returns the URL path, or the raw URL up to the query when it does not parse.
func (r Request) path() string {
	if u, err := url.Parse(r.URL); err == nil {
		return u.Path
	}
	p := r.URL
	if i := strings.IndexAny(p, "?#"); i >= 0 {
		p = p[:i]
	}
	return p
}

// ResponseType mirrors the origin relation of a response.
type ResponseType int

const (
	TypeBasic  ResponseType = iota // same origin
	TypeCORS                       // cross origin, readable
	TypeOpaque                     // cross origin, unreadable; never stored
)

// Source tells where a response came from.
type Source int

const (
	SourceNetwork Source = iota
	SourceCache
	SourceFallback
)

func (s Source) String() string {
	switch s {
	case SourceCache:
		return "cache"
	case SourceFallback:
		return "fallback"
	default:
		return "network"
	}
}

// Response is a fully buffered response.
type Response struct {
	Status int
	Header http.Header
	Body   []byte
	URL    string
	Type   ResponseType
	Source Source
}

// Clone returns a deep copy. Write-back stores a clone so the caller's
// response is never shared with the store.
func (r *Response) Clone() *Response {
	if r == nil {
		return nil
	}
	cp := *r
	cp.Header = r.Header.Clone()
	cp.Body = bytes.Clone(r.Body)
	return &cp
}
