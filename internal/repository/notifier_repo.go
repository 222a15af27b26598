package repository

import "context"

// Notifier delivers a message to the configured recipient.
type Notifier interface {
	// Send delivers subject and body. Transport failures are returned as DeliveryError.
	Send(ctx context.Context, subject, body string) error
}
