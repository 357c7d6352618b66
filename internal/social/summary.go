// Package social publishes a periodic plain-text summary of recent rounds
// and payouts over the event transport, ticking on a fixed interval the
// way a long-running reporting loop streams periodic status updates.
package social

import (
	"context"
	"fmt"
	"time"

	"github.com/chosanghyuk/dicezap"
	"github.com/sirupsen/logrus"
)

// Poster periodically summarizes recent activity and publishes it as a
// note from the "social" keypair.
type Poster struct {
	store     dicezap.Store
	transport dicezap.EventTransport
	npub      string
	interval  time.Duration
	window    time.Duration
	log       *logrus.Entry
}

// NewPoster builds a summary poster that checks in every interval and
// summarizes the trailing window of activity.
func NewPoster(store dicezap.Store, transport dicezap.EventTransport, npub string, interval, window time.Duration, log *logrus.Entry) *Poster {
	return &Poster{store: store, transport: transport, npub: npub, interval: interval, window: window, log: log}
}

// Run ticks every p.interval until ctx is canceled, publishing one
// summary note per tick. A failure to summarize or publish is logged and
// does not stop the loop — a missed summary is not worth crashing the
// service over.
func (p *Poster) Run(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := p.postOnce(ctx); err != nil {
				p.log.WithError(err).Warn("failed to post activity summary")
			}
		}
	}
}

func (p *Poster) postOnce(ctx context.Context) error {
	now := time.Now()
	bets, err := p.store.GetBetsInTimeWindow(ctx, now.Add(-p.window), now)
	if err != nil {
		return fmt.Errorf("failed to load bets for summary: %w", err)
	}

	summary := summarize(bets)
	event := dicezap.Event{
		PubKey:  p.npub,
		Kind:    1,
		Content: summary,
	}
	if _, err := p.transport.Publish(ctx, event); err != nil {
		return fmt.Errorf("failed to publish summary: %w", err)
	}
	p.log.WithField("bet_count", len(bets)).Debug("posted activity summary")
	return nil
}

// summarize renders a window of bets into the plain-text note content:
// total rolls, wins, losses, and total sats paid out.
func summarize(bets []dicezap.Bet) string {
	var (
		rolls, wins, losses int
		paidSat             uint64
	)
	for _, bet := range bets {
		switch bet.BetState {
		case dicezap.PaidWinner:
			rolls++
			wins++
		case dicezap.Loser:
			rolls++
			losses++
		default:
			continue
		}
	}
	for _, bet := range bets {
		if bet.BetState == dicezap.PaidWinner {
			paidSat += bet.AmountMsat / 1000
		}
	}
	return fmt.Sprintf("rolled %d bets in the last window: %d wins, %d losses, %d sats paid out to winners.",
		rolls, wins, losses, paidSat)
}
