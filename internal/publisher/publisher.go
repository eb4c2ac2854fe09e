package publisher

import "context"

// Publisher delivers the final digest message to some destination.
type Publisher interface {
	Name() string
	Publish(ctx context.Context, text string) error
}
