package dicezap

import (
	"context"
	"strings"
	"testing"
	"time"
)

// Real zap requests carry a raw hex x-only pubkey (NIP-01 wire format),
// never a bech32 npub; these fixtures mirror that.
var (
	rollerHexPubkey = strings.Repeat("ab", 32)
	donorHexPubkey  = strings.Repeat("cd", 32)
)

func TestRequestGameInvoiceHappyPath(t *testing.T) {
	ctx := context.Background()
	store := newMemoryStore()
	lightning := newFakeLightning()
	multipliers := multipliersForTest()
	maxBet := MaxBetTable{X2: 1_000_000}
	intake := NewIntake(store, lightning, multipliers, maxBet, time.Hour, false)

	var nonce [32]byte
	store.InsertNonce(ctx, "commit-active", nonce)
	store.SetActiveNonce(ctx, "commit-active")

	request := Event{
		PubKey:  rollerHexPubkey,
		Content: "I bet big",
		Tags:    [][]string{{ZapRequestTag, "note-" + X2.Label()}},
	}

	pr, err := intake.RequestGameInvoice(ctx, 500_000, request)
	if err != nil {
		t.Fatalf("RequestGameInvoice: %v", err)
	}
	if pr == "" {
		t.Fatalf("expected a non-empty payment request")
	}

	bets, err := store.GetBetsByCommitment(ctx, "commit-active")
	if err != nil || len(bets) != 1 {
		t.Fatalf("expected exactly one persisted bet, got %d err=%v", len(bets), err)
	}
	if bets[0].BetState != GameZapInvoiceRequested {
		t.Fatalf("expected GameZapInvoiceRequested, got %v", bets[0].BetState)
	}
	if bets[0].Index != 0 {
		t.Fatalf("expected index 0 for first bet, got %d", bets[0].Index)
	}
}

// TestRequestGameInvoiceNoActiveNonce verifies intake rejects a bet
// when there is no active nonce, and persists nothing.
func TestRequestGameInvoiceNoActiveNonce(t *testing.T) {
	ctx := context.Background()
	store := newMemoryStore()
	lightning := newFakeLightning()
	multipliers := multipliersForTest()
	intake := NewIntake(store, lightning, multipliers, MaxBetTable{X2: 1_000_000}, time.Hour, false)

	request := Event{
		PubKey: rollerHexPubkey,
		Tags:   [][]string{{ZapRequestTag, "note-" + X2.Label()}},
	}

	_, err := intake.RequestGameInvoice(ctx, 500_000, request)
	if err != ErrNoActiveNonce {
		t.Fatalf("expected ErrNoActiveNonce, got %v", err)
	}

	bets, _ := store.GetBetsInTimeWindow(ctx, time.Time{}, time.Now().Add(time.Hour))
	if len(bets) != 0 {
		t.Fatalf("expected no bet to be persisted, got %d", len(bets))
	}
}

func TestRequestGameInvoiceUnknownMultiplier(t *testing.T) {
	ctx := context.Background()
	store := newMemoryStore()
	lightning := newFakeLightning()
	multipliers := multipliersForTest()
	intake := NewIntake(store, lightning, multipliers, MaxBetTable{}, time.Hour, false)

	var nonce [32]byte
	store.InsertNonce(ctx, "commit-active", nonce)
	store.SetActiveNonce(ctx, "commit-active")

	request := Event{
		PubKey: rollerHexPubkey,
		Tags:   [][]string{{ZapRequestTag, "note-does-not-exist"}},
	}

	_, err := intake.RequestGameInvoice(ctx, 500_000, request)
	if err != ErrUnknownMultiplier {
		t.Fatalf("expected ErrUnknownMultiplier, got %v", err)
	}
}

func TestRequestGameInvoiceAmountTooHigh(t *testing.T) {
	ctx := context.Background()
	store := newMemoryStore()
	lightning := newFakeLightning()
	multipliers := multipliersForTest()
	intake := NewIntake(store, lightning, multipliers, MaxBetTable{X2: 1000}, time.Hour, false)

	var nonce [32]byte
	store.InsertNonce(ctx, "commit-active", nonce)
	store.SetActiveNonce(ctx, "commit-active")

	request := Event{
		PubKey: rollerHexPubkey,
		Tags:   [][]string{{ZapRequestTag, "note-" + X2.Label()}},
	}

	_, err := intake.RequestGameInvoice(ctx, 2_000_000, request)
	if err != ErrAmountTooHigh {
		t.Fatalf("expected ErrAmountTooHigh, got %v", err)
	}
}

func TestRequestGameInvoiceIndexIncrementsPerRoller(t *testing.T) {
	ctx := context.Background()
	store := newMemoryStore()
	lightning := newFakeLightning()
	multipliers := multipliersForTest()
	intake := NewIntake(store, lightning, multipliers, MaxBetTable{X2: 10_000_000}, time.Hour, false)

	var nonce [32]byte
	store.InsertNonce(ctx, "commit-active", nonce)
	store.SetActiveNonce(ctx, "commit-active")

	request := Event{
		PubKey: rollerHexPubkey,
		Tags:   [][]string{{ZapRequestTag, "note-" + X2.Label()}},
	}

	if _, err := intake.RequestGameInvoice(ctx, 500_000, request); err != nil {
		t.Fatalf("first bet: %v", err)
	}
	if _, err := intake.RequestGameInvoice(ctx, 500_000, request); err != nil {
		t.Fatalf("second bet: %v", err)
	}

	bets, _ := store.GetBetsByCommitment(ctx, "commit-active")
	if len(bets) != 2 {
		t.Fatalf("expected two bets, got %d", len(bets))
	}
	seen := map[int]bool{}
	for _, b := range bets {
		seen[b.Index] = true
	}
	if !seen[0] || !seen[1] {
		t.Fatalf("expected indices 0 and 1, got %v", bets)
	}
}

func TestRequestDonationInvoice(t *testing.T) {
	ctx := context.Background()
	store := newMemoryStore()
	lightning := newFakeLightning()
	multipliers := multipliersForTest()
	intake := NewIntake(store, lightning, multipliers, MaxBetTable{}, time.Hour, false)

	request := Event{PubKey: donorHexPubkey, Content: "thanks for the fun"}
	pr, err := intake.RequestDonationInvoice(ctx, 10_000, request)
	if err != nil {
		t.Fatalf("RequestDonationInvoice: %v", err)
	}
	if pr == "" {
		t.Fatalf("expected a non-empty payment request")
	}

	bets, _ := store.GetBetsInTimeWindow(ctx, time.Time{}, time.Now().Add(time.Hour))
	if len(bets) != 1 {
		t.Fatalf("expected one persisted donation bet, got %d", len(bets))
	}
	if bets[0].BetState != ZapInvoiceRequested {
		t.Fatalf("expected ZapInvoiceRequested, got %v", bets[0].BetState)
	}
	if !bets[0].IsDonation() {
		t.Fatalf("expected IsDonation() to be true")
	}
}
