package notify

import "context"

// Provider delivers one composed message to one recipient. Implementations
// must bound each attempt with the context; retries belong to the
// Dispatcher, not the provider.
type Provider interface {
	Name() string
	Send(ctx context.Context, recipient, body string) (detail string, err error)
}
