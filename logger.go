package goldenpath

import "context"

type Logger interface {
	// Debug will be used for debug logs when in debug mode.
	Debug(ctx context.Context, msg string, meta MKV)
	// Error is used when writing errors to the logs.
	Error(ctx context.Context, err error)
}

// MKV is a multiple key value store for the logger to format into its output.
// It aliases map[string]string so any logger taking plain string maps
// satisfies Logger directly.
type MKV = map[string]string

// logger wraps the user provided Logger and gates Debug calls on debug mode so
// that the hot path stays quiet by default.
type logger struct {
	inner     Logger
	debugMode bool
}

func (l *logger) maybeDebug(ctx context.Context, msg string, meta MKV) {
	if l == nil || l.inner == nil || !l.debugMode {
		return
	}

	l.inner.Debug(ctx, msg, meta)
}

func (l *logger) Error(ctx context.Context, err error) {
	if l == nil || l.inner == nil {
		return
	}

	l.inner.Error(ctx, err)
}
