package domain

import (
	"context"
)

// KeepAliveScheduler periodically probes hub connections.
type KeepAliveScheduler interface {
	Start(ctx context.Context) error
	Stop() error
}
