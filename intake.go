package dicezap

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sync"
	"time"
)

// ZapRequestTag is the event tag kind used to reference the note a zap
// request is directed at ("zapped_note_id").
const ZapRequestTag = "e"

// AmountTag carries the invoice amount in millisatoshis inside the
// player's zap request event, mirroring how zap requests encode their
// amount.
const AmountTag = "amount"

// Intake validates an incoming bet request, mints the Lightning invoice
// with its structured memo, and persists the pending bet.
type Intake struct {
	store         Store
	lightning     LightningClient
	multipliers   *Multipliers
	maxBet        MaxBetTable
	revealAfter   time.Duration
	useRouteHints bool

	mu    sync.Mutex // serializes per-(commitment_id, roller) index assignment
	index map[string]int
}

// NewIntake constructs an Intake handler. Minted invoices expire after
// revealAfter, the same delay the active round's nonce reveals on, and
// advertise private-channel route hints when useRouteHints is set.
func NewIntake(store Store, lightning LightningClient, multipliers *Multipliers, maxBet MaxBetTable, revealAfter time.Duration, useRouteHints bool) *Intake {
	return &Intake{
		store:         store,
		lightning:     lightning,
		multipliers:   multipliers,
		maxBet:        maxBet,
		revealAfter:   revealAfter,
		useRouteHints: useRouteHints,
		index:         make(map[string]int),
	}
}

// RequestGameInvoice validates a game bet request against the active
// round and the note's multiplier/max-bet limits, mints its invoice, and
// persists the pending bet.
func (in *Intake) RequestGameInvoice(ctx context.Context, amountMsat uint64, request Event) (string, error) {
	noteID, err := zappedNoteID(request)
	if err != nil {
		return "", NewValidationError("malformed zap request: %v", err)
	}

	note, ok := in.multipliers.GetByNoteID(noteID)
	if !ok {
		return "", ErrUnknownMultiplier
	}

	if amountMsat > in.maxBet.MaxBetSat(note.Multiplier)*1000 {
		return "", ErrAmountTooHigh
	}

	round, ok, err := in.store.GetActiveNonce(ctx)
	if err != nil {
		return "", NewDurabilityError("get_active_nonce", err)
	}
	if !ok {
		return "", ErrNoActiveNonce
	}

	rollerNpub, err := NpubFromHex(request.PubKey)
	if err != nil {
		return "", NewValidationError("malformed zap request: %v", err)
	}

	index, err := in.nextIndex(ctx, round.CommitmentID, rollerNpub)
	if err != nil {
		return "", err
	}

	commitment := round.Commitment()
	memo := BuildBetMemo(
		amountMsat/1000,
		note.Multiplier.Threshold(),
		note.Multiplier.Label(),
		EncodeCommitment(commitment),
		commitment,
		noteID,
		rollerNpub,
		request.Content,
		index,
	)

	expirySeconds := int64(in.revealAfter / time.Second)
	paymentRequest, paymentHash, err := in.lightning.AddInvoice(ctx, amountMsat, memo, expirySeconds, in.useRouteHints)
	if err != nil {
		return "", NewTransientError("add_invoice", err)
	}

	bet := Bet{
		PaymentHash:       paymentHash,
		Roller:            rollerNpub,
		Invoice:           paymentRequest,
		Request:           request,
		MultiplierNoteID:  noteID,
		NonceCommitmentID: round.CommitmentID,
		BetState:          GameZapInvoiceRequested,
		Index:             index,
		AmountMsat:        amountMsat,
		BetTimestamp:      time.Now().UTC(),
	}
	if err := in.store.UpsertBet(ctx, bet); err != nil {
		return "", NewDurabilityError("upsert_bet", err)
	}

	return paymentRequest, nil
}

// RequestDonationInvoice mints an invoice for a plain donation: same
// shape as a game bet but anchored to the sentinel nonce and no
// multiplier.
func (in *Intake) RequestDonationInvoice(ctx context.Context, amountMsat uint64, request Event) (string, error) {
	rollerNpub, err := NpubFromHex(request.PubKey)
	if err != nil {
		return "", NewValidationError("malformed zap request: %v", err)
	}

	memoHash := sha256.Sum256([]byte(request.Content))
	memo := fmt.Sprintf("Donation of %d sats. memo_hash: %s", amountMsat/1000, hex.EncodeToString(memoHash[:]))

	expirySeconds := int64(in.revealAfter / time.Second)
	paymentRequest, paymentHash, err := in.lightning.AddInvoice(ctx, amountMsat, memo, expirySeconds, in.useRouteHints)
	if err != nil {
		return "", NewTransientError("add_invoice", err)
	}

	bet := Bet{
		PaymentHash:       paymentHash,
		Roller:            rollerNpub,
		Invoice:           paymentRequest,
		Request:           request,
		NonceCommitmentID: hex.EncodeToString(ZeroHash[:]),
		BetState:          ZapInvoiceRequested,
		AmountMsat:        amountMsat,
		BetTimestamp:      time.Now().UTC(),
	}
	if err := in.store.UpsertBet(ctx, bet); err != nil {
		return "", NewDurabilityError("upsert_bet", err)
	}

	return paymentRequest, nil
}

// nextIndex computes the number of bets this roller already placed
// against commitmentID. An in-process mutex serializes the read-then-use
// pattern per (commitment_id, roller); a database-level atomic counter
// would be an alternative for a multi-instance deployment, but this
// engine is single-writer.
func (in *Intake) nextIndex(ctx context.Context, commitmentID, roller string) (int, error) {
	in.mu.Lock()
	defer in.mu.Unlock()

	count, err := in.store.CountBetsByRoller(ctx, commitmentID, roller)
	if err != nil {
		return 0, NewDurabilityError("count_bets_by_roller", err)
	}
	key := commitmentID + "|" + roller
	if inFlight, ok := in.index[key]; ok && inFlight >= count {
		count = inFlight + 1
	}
	in.index[key] = count
	return count, nil
}

// zappedNoteID extracts the first event-reference tag from a zap
// request.
func zappedNoteID(request Event) (string, error) {
	for _, tag := range request.Tags {
		if len(tag) >= 2 && tag[0] == ZapRequestTag {
			return tag[1], nil
		}
	}
	return "", fmt.Errorf("zap request has no %q tag", ZapRequestTag)
}
