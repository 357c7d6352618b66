package dicezap

import (
	"context"
	"time"
)

// Store is the durable persistence capability required by the nonce
// manager, bet intake, settlement handler, and payout dispatcher. Every
// operation is atomic; a successful write must survive a crash.
type Store interface {
	UpsertBet(ctx context.Context, bet Bet) error
	GetBet(ctx context.Context, paymentHash string) (Bet, bool, error)
	GetBetsByCommitment(ctx context.Context, commitmentID string) ([]Bet, error)
	GetBetsInTimeWindow(ctx context.Context, t0, t1 time.Time) ([]Bet, error)
	CountBetsByRoller(ctx context.Context, commitmentID string, roller string) (int, error)

	InsertNonce(ctx context.Context, commitmentID string, nonce [32]byte) error
	SetActiveNonce(ctx context.Context, commitmentID string) error
	ClearActiveNonce(ctx context.Context) (string, bool, error)
	SetLatestExpiredNonce(ctx context.Context, commitmentID string) error
	GetLatestExpiredNonce(ctx context.Context) (Round, bool, error)
	GetActiveNonce(ctx context.Context) (Round, bool, error)
	GetRound(ctx context.Context, commitmentID string) (Round, bool, error)
}
