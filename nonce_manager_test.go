package dicezap

import (
	"context"
	"testing"
	"time"
)

func TestNonceManagerRecoverRevealsDanglingActiveNonce(t *testing.T) {
	ctx := context.Background()
	store := newMemoryStore()
	transport := newFakeTransport()
	multipliers := multipliersForTest()
	payouts := NewPayoutDispatcher(store, transport, multipliers, newTestLogger())
	manager := NewNonceManager(store, transport, payouts, newTestLogger(), time.Hour, time.Minute, "npub1operator")

	var nonce [32]byte
	store.InsertNonce(ctx, "dangling-active", nonce)
	store.SetActiveNonce(ctx, "dangling-active")

	if err := manager.Recover(ctx); err != nil {
		t.Fatalf("Recover: %v", err)
	}

	if _, ok, _ := store.GetActiveNonce(ctx); ok {
		t.Fatalf("expected active nonce to be cleared after recovery")
	}
	if len(transport.published) != 1 {
		t.Fatalf("expected exactly one reveal publish, got %d", len(transport.published))
	}
}

func TestNonceManagerRecoverRevealsDanglingExpiredNonce(t *testing.T) {
	ctx := context.Background()
	store := newMemoryStore()
	transport := newFakeTransport()
	multipliers := multipliersForTest()
	payouts := NewPayoutDispatcher(store, transport, multipliers, newTestLogger())
	manager := NewNonceManager(store, transport, payouts, newTestLogger(), time.Hour, time.Minute, "npub1operator")

	var nonce [32]byte
	store.InsertNonce(ctx, "dangling-expired", nonce)
	store.SetLatestExpiredNonce(ctx, "dangling-expired")

	if err := manager.Recover(ctx); err != nil {
		t.Fatalf("Recover: %v", err)
	}

	if len(transport.published) != 1 {
		t.Fatalf("expected exactly one reveal publish, got %d", len(transport.published))
	}
}

// TestNonceManagerCommitNewRoundPersistsBeforeActivating verifies that
// once commitNewRound returns, the nonce is stored in nonces and its
// commitment is the active one.
func TestNonceManagerCommitNewRoundPersistsBeforeActivating(t *testing.T) {
	ctx := context.Background()
	store := newMemoryStore()
	transport := newFakeTransport()
	multipliers := multipliersForTest()
	payouts := NewPayoutDispatcher(store, transport, multipliers, newTestLogger())
	manager := NewNonceManager(store, transport, payouts, newTestLogger(), time.Hour, time.Minute, "npub1operator")

	commitmentID, round, err := manager.commitNewRound(ctx)
	if err != nil {
		t.Fatalf("commitNewRound: %v", err)
	}

	stored, ok, err := store.GetRound(ctx, commitmentID)
	if err != nil || !ok {
		t.Fatalf("expected round to be persisted before returning: ok=%v err=%v", ok, err)
	}
	if stored.Nonce != round.Nonce {
		t.Fatalf("persisted nonce does not match returned round")
	}

	active, ok, err := store.GetActiveNonce(ctx)
	if err != nil || !ok || active.CommitmentID != commitmentID {
		t.Fatalf("expected commitmentID to be active: ok=%v err=%v active=%+v", ok, err, active)
	}
}

// TestNonceManagerExpiryOrdering verifies that the shutdown expiry path
// leaves latest_expired_nonce set and active_nonce cleared, and publishes
// a reveal after the commit.
func TestNonceManagerExpiryOrdering(t *testing.T) {
	ctx := context.Background()
	store := newMemoryStore()
	transport := newFakeTransport()
	manager := NewNonceManager(store, transport, nil, newTestLogger(), time.Hour, time.Minute, "npub1operator")

	commitmentID, round, err := manager.commitNewRound(ctx)
	if err != nil {
		t.Fatalf("commitNewRound: %v", err)
	}

	manager.expireImmediatelyAndReveal(commitmentID, round)

	if _, ok, _ := store.GetActiveNonce(ctx); ok {
		t.Fatalf("expected active nonce to be cleared")
	}
	expired, ok, err := store.GetLatestExpiredNonce(ctx)
	if err != nil || !ok || expired.CommitmentID != commitmentID {
		t.Fatalf("expected commitmentID to be latest expired: ok=%v err=%v", ok, err)
	}
	if len(transport.published) != 2 { // commit + reveal
		t.Fatalf("expected commit and reveal publishes, got %d", len(transport.published))
	}
}
