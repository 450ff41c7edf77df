package syncclient

import (
	"context"
	"errors"
	"time"

	"golang.org/x/time/rate"

	"github.com/xiaot623/negarena/internal/domain"
)

const (
	DefaultNegotiationInterval = 100 * time.Millisecond
	DefaultTournamentInterval  = 200 * time.Millisecond
	DefaultInitialBackoff      = 250 * time.Millisecond
	DefaultMaxBackoff          = 5 * time.Second
)

// PollerOptions configures a Poller. Zero values select the defaults.
type PollerOptions struct {
	// Interval fixes the poll interval. Zero picks it by session kind.
	Interval       time.Duration
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	// OnUpdate runs after every snapshot that changed the view.
	OnUpdate func(*View)
}

// Poller replicates a session by repeatedly reading snapshots with
// since = LastStep until the session is final.
type Poller struct {
	client  *Client
	id      string
	view    *View
	opts    PollerOptions
	limiter *rate.Limiter
}

// NewPoller creates a poller for session id.
func NewPoller(client *Client, id string, opts PollerOptions) *Poller {
	if opts.InitialBackoff <= 0 {
		opts.InitialBackoff = DefaultInitialBackoff
	}
	if opts.MaxBackoff <= 0 {
		opts.MaxBackoff = DefaultMaxBackoff
	}
	interval := opts.Interval
	if interval <= 0 {
		interval = DefaultNegotiationInterval
	}
	return &Poller{
		client:  client,
		id:      id,
		view:    NewView(),
		opts:    opts,
		limiter: rate.NewLimiter(rate.Every(interval), 1),
	}
}

// View returns the replica the poller maintains.
func (p *Poller) View() *View {
	return p.view
}

// Run polls until the session is final, ctx ends, or the session disappears.
// Transport errors are retried with capped exponential backoff.
func (p *Poller) Run(ctx context.Context) error {
	backoff := p.opts.InitialBackoff
	kindSet := p.opts.Interval > 0

	for {
		if err := p.limiter.Wait(ctx); err != nil {
			// Wait fails early when the deadline falls before the next slot.
			<-ctx.Done()
			return ctx.Err()
		}

		snap, err := p.client.Get(ctx, p.id, p.view.LastStep())
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if !retryable(err) {
				return err
			}
			if err := sleep(ctx, backoff); err != nil {
				return err
			}
			backoff *= 2
			if backoff > p.opts.MaxBackoff {
				backoff = p.opts.MaxBackoff
			}
			continue
		}
		backoff = p.opts.InitialBackoff

		if !kindSet {
			kindSet = true
			if snap.Kind == domain.SessionKindTournament {
				p.limiter.SetLimit(rate.Every(DefaultTournamentInterval))
			}
		}

		if p.view.Apply(snap) && p.opts.OnUpdate != nil {
			p.opts.OnUpdate(p.view)
		}
		if p.view.Final() {
			return nil
		}
	}
}

// retryable reports whether a failed read may succeed later. 4xx answers
// other than 429 will not.
func retryable(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode >= 500 || apiErr.StatusCode == 429
	}
	return true
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
