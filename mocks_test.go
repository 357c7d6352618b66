package dicezap

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// memoryStore is an in-memory Store used across this package's tests. It
// mirrors the full Store interface without any real durability guarantee
// (sufficient for single-process unit tests).
type memoryStore struct {
	mu            sync.Mutex
	bets          map[string]Bet
	nonces        map[string][32]byte
	activeID      string
	hasActive     bool
	expiredID     string
	hasExpired    bool
}

func newMemoryStore() *memoryStore {
	return &memoryStore{
		bets:   make(map[string]Bet),
		nonces: make(map[string][32]byte),
	}
}

func (s *memoryStore) UpsertBet(ctx context.Context, bet Bet) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bets[bet.PaymentHash] = bet
	return nil
}

func (s *memoryStore) GetBet(ctx context.Context, paymentHash string) (Bet, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.bets[paymentHash]
	return b, ok, nil
}

func (s *memoryStore) GetBetsByCommitment(ctx context.Context, commitmentID string) ([]Bet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Bet
	for _, b := range s.bets {
		if b.NonceCommitmentID == commitmentID {
			out = append(out, b)
		}
	}
	return out, nil
}

func (s *memoryStore) GetBetsInTimeWindow(ctx context.Context, t0, t1 time.Time) ([]Bet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Bet
	for _, b := range s.bets {
		if !b.BetTimestamp.Before(t0) && !b.BetTimestamp.After(t1) {
			out = append(out, b)
		}
	}
	return out, nil
}

func (s *memoryStore) CountBetsByRoller(ctx context.Context, commitmentID string, roller string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	count := 0
	for _, b := range s.bets {
		if b.NonceCommitmentID == commitmentID && b.Roller == roller {
			count++
		}
	}
	return count, nil
}

func (s *memoryStore) InsertNonce(ctx context.Context, commitmentID string, nonce [32]byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nonces[commitmentID] = nonce
	return nil
}

func (s *memoryStore) SetActiveNonce(ctx context.Context, commitmentID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.activeID = commitmentID
	s.hasActive = true
	return nil
}

func (s *memoryStore) ClearActiveNonce(ctx context.Context) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.hasActive {
		return "", false, nil
	}
	id := s.activeID
	s.hasActive = false
	s.activeID = ""
	return id, true, nil
}

func (s *memoryStore) SetLatestExpiredNonce(ctx context.Context, commitmentID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.expiredID = commitmentID
	s.hasExpired = true
	return nil
}

func (s *memoryStore) GetLatestExpiredNonce(ctx context.Context) (Round, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.hasExpired {
		return Round{}, false, nil
	}
	return Round{CommitmentID: s.expiredID, Nonce: s.nonces[s.expiredID]}, true, nil
}

func (s *memoryStore) GetActiveNonce(ctx context.Context) (Round, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.hasActive {
		return Round{}, false, nil
	}
	return Round{CommitmentID: s.activeID, Nonce: s.nonces[s.activeID]}, true, nil
}

func (s *memoryStore) GetRound(ctx context.Context, commitmentID string) (Round, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	nonce, ok := s.nonces[commitmentID]
	if !ok {
		return Round{}, false, nil
	}
	return Round{CommitmentID: commitmentID, Nonce: nonce}, true, nil
}

// fakeLightning is a scripted LightningClient for tests.
type fakeLightning struct {
	mu            sync.Mutex
	nextHash      int
	invoices      map[string]uint64
	failSend      bool
	sentInvoices  []string
}

func newFakeLightning() *fakeLightning {
	return &fakeLightning{invoices: make(map[string]uint64)}
}

func (f *fakeLightning) AddInvoice(ctx context.Context, amountMsat uint64, memo string, expirySeconds int64, privateRouteHints bool) (string, string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextHash++
	hash := fmt.Sprintf("hash-%d", f.nextHash)
	pr := fmt.Sprintf("lnbc-%d", f.nextHash)
	f.invoices[hash] = amountMsat
	return pr, hash, nil
}

func (f *fakeLightning) SubscribeInvoices(ctx context.Context, sinceAddIndex uint64) (<-chan InvoiceUpdate, error) {
	ch := make(chan InvoiceUpdate)
	close(ch)
	return ch, nil
}

func (f *fakeLightning) SendPayment(ctx context.Context, paymentRequest string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sentInvoices = append(f.sentInvoices, paymentRequest)
	if f.failSend {
		return fmt.Errorf("simulated payment failure")
	}
	return nil
}

// zapPayout is one outbound Zap call recorded by fakeTransport.
type zapPayout struct {
	RecipientPubkey string
	AmountSat       uint64
	Message         string
}

// fakeTransport is a scripted EventTransport for tests.
type fakeTransport struct {
	mu         sync.Mutex
	nextID     int
	published  []Event
	zaps       []zapPayout
	failZap    bool
	directMsgs []string
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{}
}

func (f *fakeTransport) Publish(ctx context.Context, event Event) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	event.ID = fmt.Sprintf("event-%d", f.nextID)
	f.published = append(f.published, event)
	return event.ID, nil
}

func (f *fakeTransport) Zap(ctx context.Context, recipientPubkey string, amountSat uint64, message string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failZap {
		return false, fmt.Errorf("simulated zap failure")
	}
	f.zaps = append(f.zaps, zapPayout{RecipientPubkey: recipientPubkey, AmountSat: amountSat, Message: message})
	return true, nil
}

func (f *fakeTransport) SendDirectMessage(ctx context.Context, recipientPubkey string, content string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.directMsgs = append(f.directMsgs, content)
	return nil
}
