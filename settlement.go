package dicezap

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
)

// settlementTimeout bounds each per-payment-hash settlement handler.
const settlementTimeout = 30 * time.Second

// Settlement reacts to Lightning invoice settlement events, transitions
// the anchored bet, publishes a zap receipt, and dispatches payout
// evaluation for game bets.
type Settlement struct {
	store     Store
	transport EventTransport
	payouts   *PayoutDispatcher
	log       *logrus.Entry
}

// NewSettlement constructs a settlement handler.
func NewSettlement(store Store, transport EventTransport, payouts *PayoutDispatcher, log *logrus.Entry) *Settlement {
	return &Settlement{store: store, transport: transport, payouts: payouts, log: log}
}

// Run consumes updates until the channel closes or ctx is canceled. Only
// Settled events are acted on; every other state is ignored. Each event
// is handled in its own goroutine, fire-and-forget relative to this
// loop.
func (s *Settlement) Run(ctx context.Context, updates <-chan InvoiceUpdate) {
	for {
		select {
		case <-ctx.Done():
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			if update.State != InvoiceSettled {
				continue
			}
			go s.handleSettled(update)
		}
	}
}

func (s *Settlement) handleSettled(update InvoiceUpdate) {
	ctx, cancel := context.WithTimeout(context.Background(), settlementTimeout)
	defer cancel()

	bet, ok, err := s.store.GetBet(ctx, update.PaymentHash)
	if err != nil {
		s.log.WithError(err).WithField("payment_hash", update.PaymentHash).Error("failed to load bet for settlement")
		return
	}
	if !ok {
		s.log.WithField("payment_hash", update.PaymentHash).Warn("settlement for unknown payment hash")
		return
	}

	switch bet.BetState {
	case ZapInvoiceRequested:
		s.publishZapReceipt(ctx, bet)
		// Donations have no further state transition.

	case GameZapInvoiceRequested:
		bet.BetState = ZapPaid
		if err := s.store.UpsertBet(ctx, bet); err != nil {
			s.log.WithError(err).WithField("payment_hash", update.PaymentHash).Error("failed to transition bet to ZapPaid")
			return
		}
		s.publishZapReceipt(ctx, bet)
		if s.payouts != nil {
			s.payouts.RollTheDie(ctx, bet)
		}

	default:
		s.log.WithField("payment_hash", update.PaymentHash).WithField("state", bet.BetState).
			Debug("settlement event for terminal or already-settled bet, ignoring")
	}
}

// publishZapReceipt announces the incoming payment that funded bet: a
// kind 9735 event referencing the settled invoice, using a deterministic
// synthetic preimage derived from the request event id so the receipt is
// reproducible on replay.
func (s *Settlement) publishZapReceipt(ctx context.Context, bet Bet) {
	receipt := Event{
		PubKey:  bet.Request.PubKey,
		Kind:    9735,
		Content: "",
		Tags: [][]string{
			{"bolt11", bet.Invoice},
			{"preimage", fmt.Sprintf("synthetic:%s", bet.Request.ID)},
			{"description", bet.Request.Content},
		},
	}
	if _, err := s.transport.Publish(ctx, receipt); err != nil {
		s.log.WithError(err).WithField("payment_hash", bet.PaymentHash).Warn("failed to publish zap receipt")
	}
}
