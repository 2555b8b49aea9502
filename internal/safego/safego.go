// Package safego launches fire-and-forget goroutines that survive panics.
// Sync report delivery and similar background work run detached from any
// request; a panic there would otherwise kill the goroutine with no trace.
package safego

import "log/slog"

// Go runs fn in a new goroutine, recovering and logging any panic instead of
// letting it take the process down.
func Go(fn func()) {
	go func() {
		defer func() {
			if r := recover(); r != nil {
				slog.Error("panic in background goroutine", "panic", r)
			}
		}()
		fn()
	}()
}
