// Package notify wraps the external SMS provider behind a small fallible
// interface so the alert coordinator never depends on provider specifics.
package notify

import "context"

// Notifier delivers one message to one destination, at most once. Failures
// are returned, never retried here.
type Notifier interface {
	Send(ctx context.Context, to, body string) error
}
