package dicezap

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"regexp"
	"strconv"
)

// BuildBetMemo renders the byte-exact memo string embedded in the minted
// Lightning invoice. Its memo_hash field is the SHA-256 of the zap
// request's content, and the format must never change.
func BuildBetMemo(
	sats uint64,
	threshold uint16,
	label string,
	commitmentNoteID string,
	commitment [32]byte,
	multiplierNoteID string,
	rollerNpub string,
	requestContent string,
	index int,
) string {
	memoHash := sha256.Sum256([]byte(requestContent))
	return fmt.Sprintf(
		"Bet %d sats that you will roll a number smaller than %d, to multiply your wager by %s. "+
			"nonce_commitment_note_id: %s, nonce_commitment: %s, multiplier_note_id: %s, "+
			"roller_npub: %s, memo_hash: %s, index: %d",
		sats,
		threshold,
		label,
		commitmentNoteID,
		hex.EncodeToString(commitment[:]),
		multiplierNoteID,
		rollerNpub,
		hex.EncodeToString(memoHash[:]),
		index,
	)
}

// ParsedBetMemo is the set of semantic fields recoverable from a bet
// memo string.
type ParsedBetMemo struct {
	CommitmentNoteID string
	Commitment       string
	MultiplierNoteID string
	RollerNpub       string
	MemoHash         string
	Index            int
}

var betMemoPattern = regexp.MustCompile(
	`nonce_commitment_note_id: ([^,]+), nonce_commitment: ([0-9a-f]+), ` +
		`multiplier_note_id: ([^,]+), roller_npub: ([^,]+), memo_hash: ([0-9a-f]+), index: (\d+)`,
)

// ParseBetMemo recovers the five semantic fields (plus index) that went
// into BuildBetMemo, the inverse of memo construction.
func ParseBetMemo(memo string) (ParsedBetMemo, error) {
	m := betMemoPattern.FindStringSubmatch(memo)
	if m == nil {
		return ParsedBetMemo{}, fmt.Errorf("memo does not match expected bet memo format")
	}
	index, err := strconv.Atoi(m[6])
	if err != nil {
		return ParsedBetMemo{}, fmt.Errorf("invalid index in memo: %w", err)
	}
	return ParsedBetMemo{
		CommitmentNoteID: m[1],
		Commitment:       m[2],
		MultiplierNoteID: m[3],
		RollerNpub:       m[4],
		MemoHash:         m[5],
		Index:            index,
	}, nil
}
