// Package provider runs one source strategy per request, off the caller's
// goroutine, and reports progress and the single terminal result to a
// Listener. Strategies are interchangeable; exactly one is authoritative
// per request.
package provider

import (
	"context"
	"net/http"
	"time"

	"github.com/mmathieum/montransit/pkg/events"
	"github.com/mmathieum/montransit/pkg/transit"
)

// ProgressFunc receives localized progress notices while a strategy works.
type ProgressFunc func(message string)

// NopProgress discards progress notices.
func NopProgress(string) {}

// Strategy is one source-specific fetch/parse implementation. Fetch never
// returns nil and never panics out: every failure is mapped to an
// error-tagged result carrying a localized message.
type Strategy interface {
	SourceName() string
	Fetch(ctx context.Context, env *Env, q transit.Query, progress ProgressFunc) *transit.Result
}

// OfflineAvailability describes whether the offline schedule store can
// answer queries, so online strategies can mention the fallback when the
// network is down.
type OfflineAvailability int

const (
	OfflineNotInstalled OfflineAvailability = iota
	OfflineStorageUnmounted
	OfflineReady
)

// Env is the execution environment handed to every strategy: the HTTP
// client, the localized message catalog, the analytics sink and the offline
// store availability probe.
type Env struct {
	Client    *http.Client
	Messages  Catalog
	Events    events.Sink
	Offline   func() OfflineAvailability
	UserAgent string
}

func (e *Env) HTTPClient() *http.Client {
	if e.Client != nil {
		return e.Client
	}

	return &http.Client{Timeout: 30 * time.Second}
}

func (e *Env) sink() events.Sink {
	if e.Events != nil {
		return e.Events
	}

	return events.LogSink{}
}

// TrackEvent forwards to the configured sink. Fire and forget.
func (e *Env) TrackEvent(category string, action string, label string, value int) {
	e.sink().TrackEvent(category, action, label, value)
}

// OfflineAvailability reports the offline store state, defaulting to "not
// installed" when no probe is wired in.
func (e *Env) OfflineAvailability() OfflineAvailability {
	if e.Offline == nil {
		return OfflineNotInstalled
	}

	return e.Offline()
}

// OfflineFallbackNote is the secondary note appended to every
// no-connectivity message.
func (e *Env) OfflineFallbackNote() string {
	switch e.OfflineAvailability() {
	case OfflineReady:
		return ""
	case OfflineStorageUnmounted:
		return e.Messages.NoOfflineScheduleCheckStorage()
	default:
		return e.Messages.NoOfflineSchedule()
	}
}
