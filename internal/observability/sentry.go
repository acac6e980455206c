package observability

import (
	"strings"
	"sync/atomic"
	"time"

	"github.com/getsentry/sentry-go"
)

var sentryEnabled atomic.Bool

// Options configures error reporting. An empty DSN disables it.
type Options struct {
	DSN         string
	Environment string
	Release     string
}

// InitSentry starts the Sentry client. The returned func flushes pending
// events and must be called before exit. Enabled reports the outcome.
func InitSentry(opts Options) (func(), error) {
	dsn := strings.TrimSpace(opts.DSN)
	if dsn == "" {
		sentryEnabled.Store(false)
		return func() {}, nil
	}

	options := sentry.ClientOptions{
		Dsn:              dsn,
		Environment:      strings.TrimSpace(opts.Environment),
		Release:          strings.TrimSpace(opts.Release),
		AttachStacktrace: true,
	}

	if err := sentry.Init(options); err != nil {
		sentryEnabled.Store(false)
		return func() {}, err
	}

	sentryEnabled.Store(true)
	return func() {
		sentry.Flush(2 * time.Second)
	}, nil
}

// CaptureError reports err with tags and extra context. It is a no-op while
// Sentry is disabled.
func CaptureError(err error, tags map[string]string, extra map[string]interface{}) {
	if err == nil || !sentryEnabled.Load() {
		return
	}
	sentry.WithScope(func(scope *sentry.Scope) {
		for key, value := range tags {
			scope.SetTag(key, value)
		}
		for key, value := range extra {
			scope.SetExtra(key, value)
		}
		sentry.CaptureException(err)
	})
}

// Enabled reports whether the last InitSentry call configured a client.
func Enabled() bool {
	return sentryEnabled.Load()
}
