package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"storefront-notify/internal/config"
	"storefront-notify/internal/domain"
	"storefront-notify/internal/notifications"
	"storefront-notify/internal/session"
	"storefront-notify/pkg/logger"
)

// consoleNotifier prints every notification to stdout and mirrors it into the log.
func consoleNotifier(log logger.Logger) domain.Notifier {
	return domain.NotifierFunc(func(message string, severity domain.Severity) {
		fmt.Printf("%s [%s] %s\n", time.Now().Format(time.TimeOnly), severity, message)
		switch severity {
		case domain.SeverityError:
			log.Error(message)
		case domain.SeverityWarning:
			log.Warn(message)
		default:
			log.Info(message, "severity", severity.String())
		}
	})
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "failed to load config:", err)
		os.Exit(1)
	}

	log := logger.NewWithLevel(cfg.Log.Level)

	role, err := domain.ParseRole(cfg.Notify.Role)
	if err != nil {
		log.Error("Invalid role", "role", cfg.Notify.Role, "error", err)
		os.Exit(1)
	}
	log.Info("Starting notification client", "url", cfg.Notify.URL, "role", role.String())

	manager := notifications.NewManager(
		cfg.Notify.URL,
		notifications.NewGorillaDialer(cfg.Notify.HandshakeTimeout, cfg.Notify.MaxMessageSize),
		consoleNotifier(log),
		log,
		notifications.WithBearerToken(cfg.Notify.Token),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	runCtx, cancelRun := context.WithCancel(context.Background())
	go func() {
		if err := manager.Run(runCtx); err != nil && !errors.Is(err, context.Canceled) {
			log.Error("Notification manager stopped", "error", err)
		}
	}()

	// Guard keeps the channel open for privileged roles until the session ends.
	if err := session.Guard(ctx, manager, role, log); err != nil && !errors.Is(err, context.Canceled) {
		log.Error("Session ended", "error", err)
	}

	// Run releases any socket still open when it returns
	cancelRun()
	<-manager.Done()

	log.Info("Notification client stopped")
}
