package notify

import "context"

// Adapter delivers one message over one channel. Implementations must return
// (false, err) deterministically when their credentials are not configured;
// the drain loop's accounting depends on adapters never panicking.
type Adapter interface {
	Name() string
	Send(ctx context.Context, recipient, subject, body string) (bool, error)
}
