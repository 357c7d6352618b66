package dicezap

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
)

// CommitmentTag is the structured event tag carrying a round's commitment
// hash, published alongside the commit event.
const CommitmentTag = "commitment"

// NonceManager owns the commit-reveal round lifecycle: generate, commit,
// accept bets, expire, reveal. It is the sole writer of nonce pointer
// state; only one instance of it should ever run against a given store.
type NonceManager struct {
	store       Store
	transport   EventTransport
	payouts     *PayoutDispatcher
	log         *logrus.Entry
	expireAfter time.Duration
	revealAfter time.Duration
	signerNpub  string
}

// NewNonceManager constructs a manager over store with the given round
// timing. signerNpub identifies the round-publishing keypair in published
// events.
func NewNonceManager(store Store, transport EventTransport, payouts *PayoutDispatcher, log *logrus.Entry, expireAfter, revealAfter time.Duration, signerNpub string) *NonceManager {
	return &NonceManager{
		store:       store,
		transport:   transport,
		payouts:     payouts,
		log:         log,
		expireAfter: expireAfter,
		revealAfter: revealAfter,
		signerNpub:  signerNpub,
	}
}

// Recover performs startup recovery: any round left dangling as active
// or merely expired-but-unrevealed from a prior process is revealed
// again. Reveal is idempotent, so replaying it is harmless.
func (m *NonceManager) Recover(ctx context.Context) error {
	if commitmentID, ok, err := m.store.ClearActiveNonce(ctx); err != nil {
		return NewDurabilityError("clear_active_nonce", err)
	} else if ok {
		if err := m.revealByCommitment(ctx, commitmentID); err != nil {
			m.log.WithError(err).WithField("commitment_id", commitmentID).Warn("failed to re-reveal active nonce on recovery")
		}
	}

	round, ok, err := m.store.GetLatestExpiredNonce(ctx)
	if err != nil {
		return NewDurabilityError("get_latest_expired_nonce", err)
	}
	if ok {
		if err := m.reveal(ctx, round); err != nil {
			m.log.WithError(err).WithField("commitment_id", round.CommitmentID).Warn("failed to re-reveal expired nonce on recovery")
		}
		if m.payouts != nil {
			m.payouts.SettleRound(ctx, round.CommitmentID)
		}
	}
	return nil
}

// Run executes the main commit/accept/expire/reveal loop until ctx is
// canceled.
func (m *NonceManager) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		commitmentID, round, err := m.commitNewRound(ctx)
		if err != nil {
			m.log.WithError(err).Warn("round commit failed, retrying")
			continue
		}

		select {
		case <-time.After(m.expireAfter):
			m.expireAndScheduleReveal(ctx, commitmentID, round)
		case <-ctx.Done():
			m.expireImmediatelyAndReveal(commitmentID, round)
			return
		}
	}
}

// commitNewRound implements steps 1-3 of the main loop: generate a nonce,
// publish its commitment, and persist it as active. If publishing fails,
// nothing is persisted. If set_active_nonce fails, active_nonce is
// cleared to restore a consistent pointer; the inserted nonces row stays.
func (m *NonceManager) commitNewRound(ctx context.Context) (string, Round, error) {
	var nonce [32]byte
	if _, err := rand.Read(nonce[:]); err != nil {
		return "", Round{}, NewFatalError("generate_nonce", err)
	}
	commitment := sha256.Sum256(nonce[:])

	event := Event{
		PubKey:    m.signerNpub,
		Kind:      1,
		Content:   fmt.Sprintf("New round committed: %s", hex.EncodeToString(commitment[:])),
		Tags:      [][]string{{CommitmentTag, hex.EncodeToString(commitment[:])}},
		CreatedAt: time.Now(),
	}
	commitmentID, err := m.transport.Publish(ctx, event)
	if err != nil {
		return "", Round{}, NewTransientError("publish_commitment", err)
	}

	if err := m.store.InsertNonce(ctx, commitmentID, nonce); err != nil {
		return "", Round{}, NewDurabilityError("insert_nonce", err)
	}
	if err := m.store.SetActiveNonce(ctx, commitmentID); err != nil {
		if _, _, clearErr := m.store.ClearActiveNonce(ctx); clearErr != nil {
			m.log.WithError(clearErr).Warn("failed to roll back active nonce after set failure")
		}
		return "", Round{}, NewDurabilityError("set_active_nonce", err)
	}

	round := Round{CommitmentID: commitmentID, Nonce: nonce}
	m.log.WithField("commitment_id", commitmentID).Info("round committed")
	return commitmentID, round, nil
}

// expireAndScheduleReveal handles normal round expiry: the pointer
// writes happen in a fixed order (see clearToExpired), then reveal is
// deferred by reveal_after so late payers can still settle.
func (m *NonceManager) expireAndScheduleReveal(ctx context.Context, commitmentID string, round Round) {
	m.clearToExpired(ctx, commitmentID)

	go func() {
		select {
		case <-time.After(m.revealAfter):
		case <-ctx.Done():
		}
		revealCtx := context.Background()
		if err := m.reveal(revealCtx, round); err != nil {
			m.log.WithError(err).WithField("commitment_id", commitmentID).Warn("reveal failed")
		}
		if m.payouts != nil {
			m.payouts.SettleRound(revealCtx, commitmentID)
		}
	}()
}

// expireImmediatelyAndReveal implements the shutdown path: reveal right
// away instead of waiting reveal_after, then the manager exits.
func (m *NonceManager) expireImmediatelyAndReveal(commitmentID string, round Round) {
	ctx := context.Background()
	m.clearToExpired(ctx, commitmentID)
	if err := m.reveal(ctx, round); err != nil {
		m.log.WithError(err).WithField("commitment_id", commitmentID).Warn("shutdown reveal failed")
	}
	if m.payouts != nil {
		m.payouts.SettleRound(ctx, commitmentID)
	}
}

// clearToExpired sets latest_expired_nonce then clears active_nonce, in
// that order, so the commitment is never unreferenced: active must be
// cleared before a reveal is allowed to proceed.
func (m *NonceManager) clearToExpired(ctx context.Context, commitmentID string) {
	if err := m.store.SetLatestExpiredNonce(ctx, commitmentID); err != nil {
		m.log.WithError(err).WithField("commitment_id", commitmentID).Error("failed to set latest expired nonce")
		return
	}
	if _, _, err := m.store.ClearActiveNonce(ctx); err != nil {
		m.log.WithError(err).WithField("commitment_id", commitmentID).Error("failed to clear active nonce")
	}
}

func (m *NonceManager) reveal(ctx context.Context, round Round) error {
	event := Event{
		PubKey:    m.signerNpub,
		Kind:      1,
		Content:   fmt.Sprintf("Round revealed: nonce=%s", round.NonceHex()),
		Tags:      [][]string{{CommitmentTag, hex.EncodeToString(round.Commitment()[:])}, {"e", round.CommitmentID}},
		CreatedAt: time.Now(),
	}
	if _, err := m.transport.Publish(ctx, event); err != nil {
		return NewTransientError("publish_reveal", err)
	}
	return nil
}

func (m *NonceManager) revealByCommitment(ctx context.Context, commitmentID string) error {
	round, ok, err := m.store.GetRound(ctx, commitmentID)
	if err != nil {
		return NewDurabilityError("get_round", err)
	}
	if !ok {
		return fmt.Errorf("no stored nonce for commitment %s", commitmentID)
	}
	return m.reveal(ctx, round)
}
