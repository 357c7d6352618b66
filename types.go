package dicezap

import (
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// Hash is a generic 32-byte fixed-size identifier, used for the ZeroHash
// donation sentinel; payment hashes and commitment ids are carried as
// strings and nonce commitments as [32]byte. It is go-ethereum's
// common.Hash type, borrowed purely as a convenient [32]byte wrapper with
// Hex()/SetBytes helpers — nothing here has EVM semantics.
type Hash = common.Hash

// ZeroHash is the all-zeros sentinel used as nonce_commitment_id for
// donation bets, which are not anchored to any round.
var ZeroHash Hash

// BetState is the bet's position in its payment/settlement lifecycle.
type BetState string

const (
	GameZapInvoiceRequested BetState = "GameZapInvoiceRequested"
	ZapInvoiceRequested     BetState = "ZapInvoiceRequested"
	ZapPaid                 BetState = "ZapPaid"
	Loser                   BetState = "Loser"
	PaidWinner              BetState = "PaidWinner"
	ZapFailed               BetState = "ZapFailed"
)

// IsTerminal reports whether a bet in this state may never transition
// again.
func (s BetState) IsTerminal() bool {
	switch s {
	case Loser, PaidWinner, ZapFailed:
		return true
	default:
		return false
	}
}

// validTransitions enumerates the state machine's edges for P3
// (state monotonicity).
var validTransitions = map[BetState][]BetState{
	GameZapInvoiceRequested: {ZapPaid},
	ZapInvoiceRequested:     {},
	ZapPaid:                 {Loser, PaidWinner, ZapFailed},
	Loser:                   {},
	PaidWinner:              {},
	ZapFailed:               {},
}

// CanTransition reports whether moving from `from` to `to` is a valid edge
// of the bet state machine.
func CanTransition(from, to BetState) bool {
	for _, candidate := range validTransitions[from] {
		if candidate == to {
			return true
		}
	}
	return false
}

// Round is the tuple (nonce, commitment_id) during which bets are accepted
// against the commitment, and later against which payouts are resolved
// once revealed.
type Round struct {
	CommitmentID string
	Nonce        [32]byte
}

// Commitment returns SHA-256(nonce), the value published before bets are
// accepted.
func (r Round) Commitment() [32]byte {
	return sha256.Sum256(r.Nonce[:])
}

// NonceHex is the lowercase 64-char hex encoding of the nonce, used both in
// the roll function's hash input and the revealed message.
func (r Round) NonceHex() string {
	return hex.EncodeToString(r.Nonce[:])
}

// Event is the minimal shape of a signed social-event-protocol message
// this system publishes or receives: a commitment/reveal note, a player's
// zap request, or an outbound zap receipt. Full event validation and
// signing live in internal/transport; this is the narrow shape the core
// engine needs to read from and reason about.
type Event struct {
	ID        string
	PubKey    string
	Kind      int
	Content   string
	Tags      [][]string
	CreatedAt time.Time
	Sig       string
}

// Bet is one record per Lightning payment hash (a "zap").
type Bet struct {
	PaymentHash       string
	Roller            string // public identifier (npub) of the player
	Invoice           string // BOLT11, frozen at mint time
	Request           Event  // signed player-supplied event carrying the memo
	MultiplierNoteID  string
	NonceCommitmentID string // sentinel all-zeros hex for donations
	BetState          BetState
	Index             int
	AmountMsat        uint64
	BetTimestamp      time.Time
}

// IsDonation reports whether this bet is a non-game donation, identified by
// the sentinel all-zeros nonce_commitment_id.
func (b Bet) IsDonation() bool {
	return b.NonceCommitmentID == "" || b.NonceCommitmentID == hex.EncodeToString(ZeroHash[:])
}
