package proxy

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/unkn0wn-root/swcache"
)

// SourceHeader tells clients whether a response came from the network, the
// store or the offline fallback.
const SourceHeader = "X-SWCache-Source"

// hop-by-hop headers are never forwarded in either direction
var hopHeaders = []string{
	"Connection",
	"Keep-Alive",
	"Proxy-Authenticate",
	"Proxy-Authorization",
	"Proxy-Connection",
	"Te",
	"Trailer",
	"Transfer-Encoding",
	"Upgrade",
}

// Handler serves every request through an Agent and exposes a small control
// surface under /__swcache/ for the host application.
type Handler struct {
	agent   *swcache.Agent
	log     swcache.Logger
	maxBody int64
	mux     *http.ServeMux
}

func NewHandler(agent *swcache.Agent, log swcache.Logger, maxBody int64) *Handler {
	h := &Handler{agent: agent, log: log, maxBody: maxBody, mux: http.NewServeMux()}
	h.mux.HandleFunc("GET /__swcache/status", h.status)
	h.mux.HandleFunc("POST /__swcache/sync/{tag}", h.queueSync)
	h.mux.HandleFunc("POST /__swcache/online", h.online)
	h.mux.HandleFunc("POST /__swcache/push", h.push)
	h.mux.HandleFunc("POST /__swcache/notification/click", h.click)
	h.mux.HandleFunc("/", h.intercept)
	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) { h.mux.ServeHTTP(w, r) }

func (h *Handler) intercept(w http.ResponseWriter, r *http.Request) {
	var body []byte
	if r.Body != nil && r.Method != http.MethodGet && r.Method != http.MethodHead {
		rd := io.Reader(r.Body)
		if h.maxBody > 0 {
			rd = http.MaxBytesReader(w, r.Body, h.maxBody)
		}
		b, err := io.ReadAll(rd)
		if err != nil {
			var mbe *http.MaxBytesError
			if errors.As(err, &mbe) {
				http.Error(w, "request body too large", http.StatusRequestEntityTooLarge)
				return
			}
			http.Error(w, "read request body", http.StatusBadRequest)
			return
		}
		body = b
	}

	header := r.Header.Clone()
	stripHop(header)
	resp, err := h.agent.Intercept(r.Context(), swcache.Request{
		Method: r.Method,
		URL:    r.URL.RequestURI(),
		Mode:   requestMode(r),
		Header: header,
		Body:   body,
	})
	if err != nil {
		h.log.Warn("intercept failed", swcache.Fields{"method": r.Method, "url": r.URL.RequestURI(), "err": err})
		http.Error(w, "upstream unavailable", http.StatusBadGateway)
		return
	}
	writeResponse(w, r, resp)
}

// requestMode derives the request mode. Browsers send Sec-Fetch-Mode; older
// clients are recognised as navigations by a GET accepting HTML.
func requestMode(r *http.Request) swcache.Mode {
	switch m := swcache.Mode(strings.ToLower(r.Header.Get("Sec-Fetch-Mode"))); m {
	case swcache.ModeNavigate, swcache.ModeSameOrigin, swcache.ModeCORS, swcache.ModeNoCORS:
		return m
	}
	if r.Method == http.MethodGet && strings.Contains(r.Header.Get("Accept"), "text/html") {
		return swcache.ModeNavigate
	}
	return swcache.ModeSameOrigin
}

func writeResponse(w http.ResponseWriter, r *http.Request, resp *swcache.Response) {
	dst := w.Header()
	for k, vs := range resp.Header {
		dst[k] = append([]string(nil), vs...)
	}
	stripHop(dst)
	dst.Del("Content-Length")
	dst.Set("Content-Length", strconv.Itoa(len(resp.Body)))
	dst.Set(SourceHeader, resp.Source.String())
	w.WriteHeader(resp.Status)
	if r.Method != http.MethodHead {
		_, _ = w.Write(resp.Body)
	}
}

func stripHop(h http.Header) {
	for _, k := range hopHeaders {
		h.Del(k)
	}
}

type statusBody struct {
	State       string   `json:"state"`
	Version     string   `json:"version"`
	Versions    []string `json:"versions"`
	PendingSync []string `json:"pending_sync"`
}

func (h *Handler) status(w http.ResponseWriter, r *http.Request) {
	vs, err := h.agent.Manager().Versions(r.Context())
	if err != nil {
		h.log.Warn("list versions failed", swcache.Fields{"err": err})
	}
	pending := []string{}
	for _, t := range h.agent.PendingSync() {
		pending = append(pending, t.Tag)
	}
	writeJSON(w, http.StatusOK, statusBody{
		State:       h.agent.State().String(),
		Version:     h.agent.Config().Version,
		Versions:    vs,
		PendingSync: pending,
	})
}

func (h *Handler) queueSync(w http.ResponseWriter, r *http.Request) {
	h.agent.QueueSync(r.PathValue("tag"))
	w.WriteHeader(http.StatusAccepted)
}

func (h *Handler) online(w http.ResponseWriter, r *http.Request) {
	if err := h.agent.ConnectivityRestored(r.Context()); err != nil {
		http.Error(w, err.Error(), http.StatusConflict)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) push(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(io.LimitReader(r.Body, 4<<10))
	if err != nil {
		http.Error(w, "read payload", http.StatusBadRequest)
		return
	}
	if err := h.agent.Push(r.Context(), payload); err != nil {
		http.Error(w, err.Error(), http.StatusConflict)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) click(w http.ResponseWriter, r *http.Request) {
	if err := h.agent.NotificationClicked(r.Context()); err != nil {
		http.Error(w, err.Error(), http.StatusConflict)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
