// Package session ties the notification channel to the lifetime of a
// privileged (manager or admin) session.
package session

import (
	"context"

	"storefront-notify/internal/domain"
	"storefront-notify/pkg/logger"
)

// Guard holds the channel open for as long as ctx lives. Non-privileged roles
// never touch the channel and return immediately. For privileged roles the
// channel is disconnected on every exit path.
func Guard(ctx context.Context, channel domain.Channel, role domain.Role, log logger.Logger) error {
	if !role.Privileged() {
		log.Info("Session is not privileged, notifications stay off", "role", role.String())
		return nil
	}

	defer func() {
		channel.Disconnect()
		log.Info("Notification channel released", "role", role.String())
	}()

	if !channel.Connected() {
		channel.Connect()
	}
	log.Info("Notification channel acquired", "role", role.String())

	<-ctx.Done()
	return ctx.Err()
}

// Logout is the explicit end of a session. Privileged sessions drop the
// channel; others have nothing to release.
func Logout(channel domain.Channel, role domain.Role, log logger.Logger) {
	if !role.Privileged() {
		return
	}
	channel.Disconnect()
	log.Info("Logged out, notification channel closed", "role", role.String())
}
