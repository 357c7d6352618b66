package dicezap

import (
	"encoding/hex"
	"fmt"

	"github.com/decred/dcrd/bech32"
)

// Bech32 HRPs used across the social-event protocol's identifiers.
const (
	hrpPublicKey  = "npub"
	hrpSecretKey  = "nsec"
	hrpNoteID     = "note"
	hrpCommitment = "ncmt"
)

// encodeBech32 bech32-encodes raw bytes under the given human-readable
// part, e.g. a 32-byte schnorr public key under "npub".
func encodeBech32(hrp string, data []byte) (string, error) {
	return bech32.EncodeFromBase256(hrp, data)
}

// decodeBech32 recovers the raw bytes and HRP from a bech32 string.
func decodeBech32(s string) (hrp string, data []byte, err error) {
	return bech32.DecodeToBase256(s)
}

// EncodePublicKey renders a 32-byte x-only public key as an "npub1..."
// bech32 string.
func EncodePublicKey(pubkey [32]byte) string {
	s, err := encodeBech32(hrpPublicKey, pubkey[:])
	if err != nil {
		// bech32 encoding of a fixed 32-byte value cannot fail.
		panic(err)
	}
	return s
}

// NpubFromHex converts a 64-character hex-encoded x-only public key, the
// wire format a zap request's pubkey field arrives in, to its "npub1..."
// bech32 form.
func NpubFromHex(hexPubkey string) (string, error) {
	raw, err := hex.DecodeString(hexPubkey)
	if err != nil {
		return "", fmt.Errorf("malformed hex public key: %w", err)
	}
	if len(raw) != 32 {
		return "", fmt.Errorf("public key must be 32 bytes, got %d", len(raw))
	}
	var pubkey [32]byte
	copy(pubkey[:], raw)
	return EncodePublicKey(pubkey), nil
}

// EncodeNoteID renders a 32-byte event id as a "note1..." bech32 string.
func EncodeNoteID(id [32]byte) string {
	s, err := encodeBech32(hrpNoteID, id[:])
	if err != nil {
		panic(err)
	}
	return s
}

// EncodeCommitment renders a 32-byte commitment hash as an "ncmt1..."
// bech32 string, used only in the human-readable bet memo.
func EncodeCommitment(commitment [32]byte) string {
	s, err := encodeBech32(hrpCommitment, commitment[:])
	if err != nil {
		panic(err)
	}
	return s
}

// EncodeSecretKey renders a 32-byte private key as an "nsec1..." bech32
// string, used for on-disk keypair storage.
func EncodeSecretKey(secret [32]byte) string {
	s, err := encodeBech32(hrpSecretKey, secret[:])
	if err != nil {
		panic(err)
	}
	return s
}

// DecodeSecretKey recovers the HRP and raw bytes from an "nsec1..."
// bech32 string.
func DecodeSecretKey(s string) (hrp string, secret []byte, err error) {
	return decodeBech32(s)
}
