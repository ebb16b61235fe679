package swcache

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"

	"github.com/a-h/templ"
	"golang.org/x/text/language"
)

const (
	fallbackCachedDocument = "cached_document"
	fallbackOfflinePage    = "offline_page"
	fallbackAPI            = "offline_api"
)

// offlineCopy is the user-facing text of the offline responses.
type offlineCopy struct {
	Lang    string
	Title   string
	Heading string
	Message string
	Retry   string
	APIErr  string
}

var (
	supportedLanguages = []language.Tag{language.English, language.Russian}
	languageMatcher    = language.NewMatcher(supportedLanguages)

	offlineCopies = []offlineCopy{
		{
			Lang:    "en",
			Title:   "Offline",
			Heading: "No internet connection",
			Message: "The app is running offline. Some features may be unavailable.",
			Retry:   "Try again",
			APIErr:  "No internet connection",
		},
		{
			Lang:    "ru",
			Title:   "Офлайн",
			Heading: "Нет подключения к интернету",
			Message: "Приложение работает в офлайн режиме. Некоторые функции могут быть недоступны.",
			Retry:   "Попробовать снова",
			APIErr:  "Нет подключения к интернету",
		},
	}
)

// minimalOfflineHTML is served if rendering the offline page ever fails.
const minimalOfflineHTML = `<!DOCTYPE html><html><head><meta charset="UTF-8"><title>Offline</title></head>` +
	`<body><h1>Offline</h1><button onclick="window.location.reload()">Retry</button></body></html>`

// fallbackProvider produces substitute responses when both store and network fail.
// It never fails.
type fallbackProvider struct {
	root    string
	appName string
	lang    language.Tag
	log     Logger
}

func newFallbackProvider(cfg Config, log Logger) *fallbackProvider {
	tag, err := language.Parse(cfg.Language)
	if err != nil {
		tag = language.English
	}
	return &fallbackProvider{
		root:    cfg.resolve(cfg.RootDocument),
		appName: cfg.AppName,
		lang:    tag,
		log:     log,
	}
}

// copyFor picks the offline text for req, preferring its Accept-Language.
func (f *fallbackProvider) copyFor(req Request) offlineCopy {
	prefs := []language.Tag{f.lang}
	if accept := req.Header.Get("Accept-Language"); accept != "" {
		if tags, _, err := language.ParseAcceptLanguage(accept); err == nil && len(tags) > 0 {
			prefs = append(tags, f.lang)
		}
	}
	_, idx, _ := languageMatcher.Match(prefs...)
	return offlineCopies[idx]
}

// page returns the cached root document or, failing that, a synthesized
// offline document. kind names which one was produced.
func (f *fallbackProvider) page(ctx context.Context, store *Store, req Request) (*Response, string) {
	if store != nil {
		cached, ok, err := store.Get(ctx, Navigate(f.root))
		if err != nil {
			f.log.Warn("offline page lookup failed", Fields{"url": f.root, "err": err})
		}
		if ok {
			cached.Source = SourceFallback
			return cached, fallbackCachedDocument
		}
	}

	body := minimalOfflineHTML
	var buf bytes.Buffer
	if err := offlinePage(f.appName, f.copyFor(req)).Render(ctx, &buf); err != nil {
		f.log.Error("render offline page", Fields{"err": err})
	} else {
		body = buf.String()
	}
	return &Response{
		Status: http.StatusOK,
		Header: http.Header{"Content-Type": {"text/html; charset=utf-8"}},
		Body:   []byte(body),
		URL:    f.root,
		Type:   TypeBasic,
		Source: SourceFallback,
	}, fallbackOfflinePage
}

type offlineAPIBody struct {
	Error   string `json:"error"`
	Offline bool   `json:"offline"`
}

// api returns the synthetic 503 for API requests made while offline.
func (f *fallbackProvider) api(req Request) *Response {
	b, err := json.Marshal(offlineAPIBody{Error: f.copyFor(req).APIErr, Offline: true})
	if err != nil {
		b = []byte(`{"error":"offline","offline":true}`)
	}
	return &Response{
		Status: http.StatusServiceUnavailable,
		Header: http.Header{"Content-Type": {"application/json"}},
		Body:   b,
		URL:    req.URL,
		Type:   TypeBasic,
		Source: SourceFallback,
	}
}

func offlinePage(appName string, c offlineCopy) templ.Component {
	return templ.ComponentFunc(func(_ context.Context, w io.Writer) error {
		_, err := io.WriteString(w, `<!DOCTYPE html>
<html lang="`+templ.EscapeString(c.Lang)+`">
<head>
<meta charset="UTF-8">
<meta name="viewport" content="width=device-width, initial-scale=1.0">
<title>`+templ.EscapeString(c.Title+" - "+appName)+`</title>
<style>
body { font-family: Arial, sans-serif; text-align: center; padding: 50px; background: #f5f5f5; }
.offline { background: white; padding: 40px; border-radius: 10px; max-width: 500px; margin: 0 auto; }
h1 { color: #333; } p { color: #666; }
button { background: #2196F3; color: white; padding: 10px 20px; border: none; border-radius: 5px; cursor: pointer; margin-top: 20px; }
</style>
</head>
<body>
<div class="offline">
<h1>`+templ.EscapeString(c.Heading)+`</h1>
<p>`+templ.EscapeString(c.Message)+`</p>
<button onclick="window.location.reload()">`+templ.EscapeString(c.Retry)+`</button>
</div>
</body>
</html>
`)
		return err
	})
}
