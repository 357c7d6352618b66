// Package keys manages the three secp256k1 signing keypairs this service
// uses to publish social-event-protocol messages: "main" (LNURL/profile
// identity), "nonce" (round commit/reveal), and "social" (summary poster).
package keys

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/chosanghyuk/dicezap"
	"github.com/decred/dcrd/dcrec/secp256k1/v4"
)

// fileFormat is the on-disk shape of a key file: {"server_key": "<bech32 nsec>"}.
type fileFormat struct {
	ServerKey string `json:"server_key"`
}

// Keypair bundles a private key with its public identifier.
type Keypair struct {
	Private *secp256k1.PrivateKey
	Npub    string
}

// Load reads a keypair from path, generating and persisting a fresh one
// with 0600 permissions if the file does not exist.
func Load(path string) (Keypair, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return generateAndSave(path)
	}
	if err != nil {
		return Keypair{}, fmt.Errorf("failed to read key file %s: %w", path, err)
	}

	var stored fileFormat
	if err := json.Unmarshal(data, &stored); err != nil {
		return Keypair{}, fmt.Errorf("failed to parse key file %s: %w", path, err)
	}

	_, raw, err := dicezap.DecodeSecretKey(stored.ServerKey)
	if err != nil {
		return Keypair{}, fmt.Errorf("failed to decode nsec in %s: %w", path, err)
	}
	return keypairFromSecret(raw)
}

func generateAndSave(path string) (Keypair, error) {
	priv, err := secp256k1.GeneratePrivateKey()
	if err != nil {
		return Keypair{}, fmt.Errorf("failed to generate keypair: %w", err)
	}

	var secret [32]byte
	copy(secret[:], priv.Serialize())

	stored := fileFormat{ServerKey: dicezap.EncodeSecretKey(secret)}
	data, err := json.Marshal(stored)
	if err != nil {
		return Keypair{}, fmt.Errorf("failed to marshal key file: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return Keypair{}, fmt.Errorf("failed to write key file %s: %w", path, err)
	}

	return keypairFromSecret(secret[:])
}

func keypairFromSecret(raw []byte) (Keypair, error) {
	if len(raw) != 32 {
		return Keypair{}, fmt.Errorf("secret key must be 32 bytes, got %d", len(raw))
	}
	priv := secp256k1.PrivKeyFromBytes(raw)
	var pub [32]byte
	copy(pub[:], priv.PubKey().SerializeCompressed()[1:])
	return Keypair{Private: priv, Npub: dicezap.EncodePublicKey(pub)}, nil
}
