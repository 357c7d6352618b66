package dicezap

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"
)

// Roll computes the deterministic u16 outcome of one bet:
//
//	roll = u16_from_hex(first_4_hex_chars(SHA256(
//	         hex(nonce) || bech32(roller_pubkey) || memo || decimal_string(index))))
//
// All concatenations are over the raw UTF-8 bytes of the listed strings.
// nonceHex must be the lowercase 64-char hex encoding of the 32-byte nonce.
// rollerNpub is the roller's bech32-encoded public identifier. index is
// rendered with no leading zeros. Roll is a pure function: identical
// inputs always produce the identical output.
func Roll(nonceHex string, rollerNpub string, memo string, index int) uint16 {
	h := sha256.New()
	h.Write([]byte(nonceHex))
	h.Write([]byte(rollerNpub))
	h.Write([]byte(memo))
	h.Write([]byte(strconv.Itoa(index)))
	sum := h.Sum(nil)

	// The outcome is the unsigned big-endian interpretation of the first
	// two bytes of the hash, equivalently the first 4 hex characters
	// parsed as a base-16 integer.
	hexDigest := hex.EncodeToString(sum)
	n, err := strconv.ParseUint(hexDigest[0:4], 16, 16)
	if err != nil {
		// sha256 hex digest is always well-formed; this cannot happen.
		panic(err)
	}
	return uint16(n)
}

// Wins reports whether roll beats the multiplier's threshold: a bet wins
// when roll < threshold.
func Wins(roll uint16, threshold uint16) bool {
	return roll < threshold
}
