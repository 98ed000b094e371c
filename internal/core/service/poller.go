package service

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/sewerwatch/portal/internal/core/domain"
)

const defaultPollInterval = 15 * time.Second

// CountsFetcher loads the unread counters of one client.
type CountsFetcher func(ctx context.Context) (domain.UnreadCounts, error)

// Poller periodically loads unread counters while a live client is
// connected. It is armed by Run and disarmed when ctx ends.
type Poller struct {
	interval time.Duration
	log      zerolog.Logger
}

func NewPoller(interval time.Duration, log zerolog.Logger) *Poller {
	if interval <= 0 {
		interval = defaultPollInterval
	}
	return &Poller{interval: interval, log: log}
}

// Run fetches immediately and then on every tick, sending counts to out
// whenever they change. It returns nil when ctx ends and
// domain.ErrSessionExpired once the session cannot be refreshed.
func (p *Poller) Run(ctx context.Context, fetch CountsFetcher, out chan<- domain.UnreadCounts) error {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	var (
		last    domain.UnreadCounts
		hasLast bool
	)
	for {
		counts, err := fetch(ctx)
		switch {
		case ctx.Err() != nil:
			return nil
		case errors.Is(err, domain.ErrSessionExpired), errors.Is(err, domain.ErrNoSession):
			return domain.ErrSessionExpired
		case err != nil:
			p.log.Warn().Err(err).Msg("unread counts poll failed")
		case !hasLast || counts != last:
			select {
			case out <- counts:
				last, hasLast = counts, true
			case <-ctx.Done():
				return nil
			}
		}

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}
