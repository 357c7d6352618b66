// Package transport implements dicezap.EventTransport, the narrow
// capability used to publish commitments/reveals/receipts, pay a roller
// directly by pubkey, and send direct messages over the social-event
// protocol.
package transport

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sync"

	"github.com/chosanghyuk/dicezap"
	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/decred/dcrd/dcrec/secp256k1/v4/schnorr"
	"github.com/sirupsen/logrus"
)

// PayoutRecord is one outbound Zap attempt, kept for test assertions.
type PayoutRecord struct {
	RecipientPubkey string
	AmountSat       uint64
	Message         string
}

// MemoryTransport is a single-relay-suitable EventTransport: it signs
// every published event with a configured keypair and records it
// in-process. Zap and DM delivery stand in for a real wallet-connected
// relay client — they log and succeed rather than moving real sats or
// delivering an encrypted message.
type MemoryTransport struct {
	mu        sync.Mutex
	key       *secp256k1.PrivateKey
	published []dicezap.Event
	payouts   []PayoutRecord
	log       *logrus.Entry
}

// NewMemoryTransport constructs a transport that signs outgoing events
// with signingKey (the "nonce" or "social" keypair).
func NewMemoryTransport(signingKey *secp256k1.PrivateKey, log *logrus.Entry) *MemoryTransport {
	return &MemoryTransport{key: signingKey, log: log}
}

// eventID is the id assigned to a signed event: the SHA-256 of its
// serialized content, mirroring how the social-event protocol derives
// note ids from event content.
func eventID(event dicezap.Event) string {
	h := sha256.New()
	h.Write([]byte(event.PubKey))
	h.Write([]byte(event.Content))
	for _, tag := range event.Tags {
		for _, field := range tag {
			h.Write([]byte(field))
		}
	}
	return hex.EncodeToString(h.Sum(nil))
}

// Publish signs event with the transport's keypair, assigns it an id, and
// records it. It implements dicezap.EventTransport.
func (t *MemoryTransport) Publish(ctx context.Context, event dicezap.Event) (string, error) {
	id := eventID(event)
	// id is the hex form of the 32-byte digest schnorr.Sign expects.
	digest, _ := hex.DecodeString(id)
	sig, err := schnorr.Sign(t.key, digest)
	if err != nil {
		return "", fmt.Errorf("failed to sign event %s: %w", id, err)
	}
	event.ID = id
	event.Sig = hex.EncodeToString(sig.Serialize())

	t.mu.Lock()
	t.published = append(t.published, event)
	t.mu.Unlock()

	t.log.WithField("event_id", id).Debug("published event")
	return id, nil
}

// Zap pays amountSat to recipientPubkey, the outbound payout path for a
// round's winners. A full implementation would resolve recipientPubkey
// to an LNURL or NWC wallet connection and send over Lightning; this
// stand-in records the attempt and reports success, the same fidelity
// SendDirectMessage already offers for DM delivery.
func (t *MemoryTransport) Zap(ctx context.Context, recipientPubkey string, amountSat uint64, message string) (bool, error) {
	t.mu.Lock()
	t.payouts = append(t.payouts, PayoutRecord{
		RecipientPubkey: recipientPubkey,
		AmountSat:       amountSat,
		Message:         message,
	})
	t.mu.Unlock()

	t.log.WithFields(logrus.Fields{
		"recipient":  recipientPubkey,
		"amount_sat": amountSat,
	}).Info("sent zap")
	return true, nil
}

// SendDirectMessage delivers an encrypted message to recipientPubkey.
// This adapter logs the delivery rather than encrypting it, suitable for
// tests and a single-relay deployment that routes DMs through Publish in
// a full implementation.
func (t *MemoryTransport) SendDirectMessage(ctx context.Context, recipientPubkey string, content string) error {
	t.log.WithField("recipient", recipientPubkey).Debug("sent direct message")
	return nil
}

// Published returns every event recorded so far, for test assertions.
func (t *MemoryTransport) Published() []dicezap.Event {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]dicezap.Event, len(t.published))
	copy(out, t.published)
	return out
}

// Payouts returns every Zap call recorded so far, for test assertions.
func (t *MemoryTransport) Payouts() []PayoutRecord {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]PayoutRecord, len(t.payouts))
	copy(out, t.payouts)
	return out
}

var _ dicezap.EventTransport = (*MemoryTransport)(nil)
