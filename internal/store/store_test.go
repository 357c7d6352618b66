package store

import (
	"context"
	"testing"
	"time"

	"github.com/chosanghyuk/dicezap"
)

func TestUpsertAndGetBetRoundTrip(t *testing.T) {
	// Exercised against a real in-memory sqlite file instead of sqlmock:
	// GORM's upsert (Save) generates driver-specific SQL that is brittle to
	// hand-written mock expectations, whereas a real in-memory database
	// verifies the actual round trip.
	s, err := Open(":memory:")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer s.Close()

	ctx := context.Background()
	bet := dicezap.Bet{
		PaymentHash:       "hash-abc",
		Roller:            "npub1roller",
		Invoice:           "lnbc1...",
		Request:           dicezap.Event{ID: "evt-1", PubKey: "npub1roller", Content: "bet memo", Tags: [][]string{{"e", "note1"}}},
		MultiplierNoteID:  "note1multiplier",
		NonceCommitmentID: "commit-1",
		BetState:          dicezap.GameZapInvoiceRequested,
		Index:             0,
		AmountMsat:        500_000,
		BetTimestamp:      time.Now().UTC().Truncate(time.Second),
	}

	if err := s.UpsertBet(ctx, bet); err != nil {
		t.Fatalf("UpsertBet: %v", err)
	}

	got, ok, err := s.GetBet(ctx, "hash-abc")
	if err != nil || !ok {
		t.Fatalf("GetBet: ok=%v err=%v", ok, err)
	}
	if got.Roller != bet.Roller || got.MultiplierNoteID != bet.MultiplierNoteID {
		t.Fatalf("round-tripped bet mismatch: %+v", got)
	}
	if len(got.Request.Tags) != 1 || got.Request.Tags[0][1] != "note1" {
		t.Fatalf("expected tags to round-trip, got %+v", got.Request.Tags)
	}

	bets, err := s.GetBetsByCommitment(ctx, "commit-1")
	if err != nil || len(bets) != 1 {
		t.Fatalf("GetBetsByCommitment: len=%d err=%v", len(bets), err)
	}

	count, err := s.CountBetsByRoller(ctx, "commit-1", "npub1roller")
	if err != nil || count != 1 {
		t.Fatalf("CountBetsByRoller: count=%d err=%v", count, err)
	}
}

func TestNoncePointerLifecycle(t *testing.T) {
	s, err := Open(":memory:")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer s.Close()

	ctx := context.Background()
	var nonce [32]byte
	nonce[0] = 0x42

	if err := s.InsertNonce(ctx, "commit-1", nonce); err != nil {
		t.Fatalf("InsertNonce: %v", err)
	}
	if err := s.SetActiveNonce(ctx, "commit-1"); err != nil {
		t.Fatalf("SetActiveNonce: %v", err)
	}

	active, ok, err := s.GetActiveNonce(ctx)
	if err != nil || !ok || active.CommitmentID != "commit-1" {
		t.Fatalf("GetActiveNonce: ok=%v err=%v active=%+v", ok, err, active)
	}

	cleared, ok, err := s.ClearActiveNonce(ctx)
	if err != nil || !ok || cleared != "commit-1" {
		t.Fatalf("ClearActiveNonce: cleared=%q ok=%v err=%v", cleared, ok, err)
	}

	if _, ok, _ := s.GetActiveNonce(ctx); ok {
		t.Fatalf("expected no active nonce after clearing")
	}

	if err := s.SetLatestExpiredNonce(ctx, "commit-1"); err != nil {
		t.Fatalf("SetLatestExpiredNonce: %v", err)
	}
	expired, ok, err := s.GetLatestExpiredNonce(ctx)
	if err != nil || !ok || expired.CommitmentID != "commit-1" || expired.Nonce != nonce {
		t.Fatalf("GetLatestExpiredNonce mismatch: ok=%v err=%v expired=%+v", ok, err, expired)
	}
}

func TestGetBetMissingReturnsNotFound(t *testing.T) {
	s, err := Open(":memory:")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer s.Close()

	_, ok, err := s.GetBet(context.Background(), "does-not-exist")
	if err != nil {
		t.Fatalf("expected no error for a missing bet, got %v", err)
	}
	if ok {
		t.Fatalf("expected ok=false for a missing bet")
	}
}
