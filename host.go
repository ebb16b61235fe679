package swcache

import (
	"context"
	"time"
)

// Host is the application side of lifecycle effects.
type Host interface {
	// SkipWaiting lets a freshly installed version take over immediately.
	SkipWaiting(ctx context.Context) error
	// ClaimClients puts already-open sessions under the active agent without a reload.
	ClaimClients(ctx context.Context) error
}

type NopHost struct{}

func (NopHost) SkipWaiting(context.Context) error  { return nil }
func (NopHost) ClaimClients(context.Context) error { return nil }

// Notification is what a push message is shown as.
type Notification struct {
	Title     string
	Body      string
	Icon      string
	Badge     string
	Vibrate   []int
	ArrivedAt time.Time
	Key       int
}

// Notifier displays notifications and opens application windows.
type Notifier interface {
	Show(ctx context.Context, n Notification) error
	Dismiss(ctx context.Context) error
	OpenWindow(ctx context.Context, url string) error
}

type NopNotifier struct{}

func (NopNotifier) Show(context.Context, Notification) error { return nil }
func (NopNotifier) Dismiss(context.Context) error            { return nil }
func (NopNotifier) OpenWindow(context.Context, string) error { return nil }

// SyncFunc runs the deferred work queued under one tag. It is attempted once.
type SyncFunc func(ctx context.Context, tag string) error

// PendingSyncTask is deferred work queued while offline.
type PendingSyncTask struct {
	Tag string
}

const defaultPushBody = "New notification"

func newNotification(appName string, payload []byte, now time.Time) Notification {
	body := string(payload)
	if len(payload) == 0 {
		body = defaultPushBody
	}
	return Notification{
		Title:     appName,
		Body:      body,
		Icon:      "/icons/icon-192x192.png",
		Badge:     "/icons/icon-72x72.png",
		Vibrate:   []int{100, 50, 100},
		ArrivedAt: now,
		Key:       1,
	}
}
