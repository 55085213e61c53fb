package service

import (
	"fmt"

	jobqueue "github.com/okian/pacer/internal/adapters/mq/queue"
)

// Sentinel kinds for service errors. Both mean no job can be queued, so
// they match jobqueue.ErrClosed.
var (
	ErrNotStarted = fmt.Errorf("service not started: %w", jobqueue.ErrClosed)
	ErrStopped    = fmt.Errorf("service stopped: %w", jobqueue.ErrClosed)
)
