// Package notify delivers queued notifications to outbound channels.
package notify

import (
	"context"

	notifications "inventory-pulse/internal/notifications/domain"
)

// Channel is one delivery target for a notification.
type Channel interface {
	Send(ctx context.Context, n notifications.Notification) error
}

// ChannelFunc adapts a function to the Channel interface.
type ChannelFunc func(ctx context.Context, n notifications.Notification) error

// Send implements Channel.
func (f ChannelFunc) Send(ctx context.Context, n notifications.Notification) error {
	return f(ctx, n)
}
