package dicezap

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"
)

// PayoutDispatcher computes the roll for every ZapPaid bet anchored to a
// round, once that round's nonce is revealed, and pays winners.
type PayoutDispatcher struct {
	store      Store
	transport  EventTransport
	multiplier *Multipliers
	log        *logrus.Entry
}

// NewPayoutDispatcher constructs a dispatcher. multiplier resolves a
// bet's multiplier_note_id back to its threshold/factor/label.
func NewPayoutDispatcher(store Store, transport EventTransport, multiplier *Multipliers, log *logrus.Entry) *PayoutDispatcher {
	return &PayoutDispatcher{
		store:      store,
		transport:  transport,
		multiplier: multiplier,
		log:        log,
	}
}

// SettleRound is the end-of-round payout entry point: it fetches every
// bet anchored to commitmentID and rolls each one. Called once a round's
// nonce has moved from active to (latest_)expired.
func (d *PayoutDispatcher) SettleRound(ctx context.Context, commitmentID string) {
	bets, err := d.store.GetBetsByCommitment(ctx, commitmentID)
	if err != nil {
		d.log.WithError(err).WithField("commitment_id", commitmentID).Error("failed to list bets for round settlement")
		return
	}
	for _, bet := range bets {
		if bet.BetState != ZapPaid {
			continue
		}
		d.RollTheDie(ctx, bet)
	}
}

// RollTheDie computes a bet's outcome and dispatches its payout. It is
// idempotent: replaying it on an already-terminal bet is a no-op.
func (d *PayoutDispatcher) RollTheDie(ctx context.Context, bet Bet) {
	if bet.BetState.IsTerminal() {
		return
	}
	if bet.BetState != ZapPaid {
		d.log.WithField("payment_hash", bet.PaymentHash).Warn("roll_the_die called on non-ZapPaid bet, ignoring")
		return
	}

	round, ok, err := d.store.GetRound(ctx, bet.NonceCommitmentID)
	if err != nil {
		d.log.WithError(err).WithField("payment_hash", bet.PaymentHash).Error("failed to load anchoring round")
		return
	}
	if !ok {
		d.log.WithField("payment_hash", bet.PaymentHash).Error("unknown anchoring nonce for bet, should not happen post-recovery")
		return
	}

	active, activeOK, err := d.store.GetActiveNonce(ctx)
	if err != nil {
		d.log.WithError(err).WithField("payment_hash", bet.PaymentHash).Error("failed to check active nonce")
		return
	}
	if activeOK && active.CommitmentID == bet.NonceCommitmentID {
		// Round is still accepting bets; postpone until it expires.
		return
	}

	note, ok := d.multiplier.GetByNoteID(bet.MultiplierNoteID)
	if !ok {
		d.log.WithField("payment_hash", bet.PaymentHash).Error("bet references unknown multiplier note id")
		return
	}

	roll := Roll(round.NonceHex(), bet.Roller, memoContent(bet), bet.Index)

	if !Wins(roll, note.Multiplier.Threshold()) {
		d.finish(ctx, bet, Loser, "Sorry, you rolled %d against a threshold of %d. Better luck next round!", roll, note.Multiplier.Threshold())
		return
	}

	payoutSat := CalculatePayoutSat(bet.AmountMsat, note.Multiplier.Factor())
	message := fmt.Sprintf("You won! Roll %d beat the threshold of %d, multiplying your wager into %d sats.", roll, note.Multiplier.Threshold(), payoutSat)
	sent, err := d.transport.Zap(ctx, bet.Roller, payoutSat, message)
	if err != nil || !sent {
		d.log.WithError(err).WithField("payment_hash", bet.PaymentHash).Error("outbound zap failed")
		d.finish(ctx, bet, ZapFailed, "You won (roll %d), but paying your %d sat prize failed. Please contact the operator.", roll, payoutSat)
		return
	}
	d.finish(ctx, bet, PaidWinner, "%s", message)
}

func (d *PayoutDispatcher) finish(ctx context.Context, bet Bet, state BetState, dmFormat string, args ...interface{}) {
	bet.BetState = state
	if err := d.store.UpsertBet(ctx, bet); err != nil {
		d.log.WithError(err).WithField("payment_hash", bet.PaymentHash).Error("failed to persist terminal bet state")
		return
	}
	message := fmt.Sprintf(dmFormat, args...)
	if err := d.transport.SendDirectMessage(ctx, bet.Roller, message); err != nil {
		d.log.WithError(err).WithField("payment_hash", bet.PaymentHash).Warn("failed to deliver outcome DM")
	}
}

// memoContent recovers the raw memo text used for the roll hash from the
// bet's original request event.
func memoContent(bet Bet) string {
	return bet.Request.Content
}
