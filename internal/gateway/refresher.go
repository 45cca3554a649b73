package gateway

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Refresher renews the access token ahead of expiry: once at start, then on
// every tick and whenever the terminal comes back to the foreground.
// Failures are logged only; the next 401 takes the reactive path.
type Refresher struct {
	client   *Client
	interval time.Duration
	logger   *zap.Logger
	wake     chan struct{}
}

func NewRefresher(client *Client, interval time.Duration) *Refresher {
	if interval <= 0 {
		interval = 25 * time.Minute
	}
	return &Refresher{
		client:   client,
		interval: interval,
		logger:   client.logger.Named("refresher"),
		wake:     make(chan struct{}, 1),
	}
}

// Foreground requests an immediate refresh without blocking.
func (r *Refresher) Foreground() {
	select {
	case r.wake <- struct{}{}:
	default:
	}
}

// Run blocks until ctx is done.
func (r *Refresher) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	r.refresh(ctx, "start")
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.refresh(ctx, "interval")
		case <-r.wake:
			r.refresh(ctx, "foreground")
		}
	}
}

func (r *Refresher) refresh(ctx context.Context, trigger string) {
	if !r.client.session.Authenticated() {
		return
	}
	if err := r.client.Refresh(ctx); err != nil {
		if ctx.Err() != nil {
			return
		}
		r.logger.Warn("proactive refresh failed", zap.String("trigger", trigger), zap.Error(err))
	}
}
