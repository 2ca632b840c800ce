// Package idgen generates short hash-based identifiers such as "fb-a3f8e9".
package idgen

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math/big"
	"strings"
	"time"
)

// Prefixes for generated identifiers.
const (
	PrefixFeedback      = "fb"
	PrefixCodingRule    = "rule"
	PrefixRuleExample   = "ex"
	PrefixClassTemplate = "tpl"
	PrefixChecklistItem = "chk"
)

// DefaultLength is the number of base36 characters after the prefix.
const DefaultLength = 8

// base36Alphabet is the character set for base36 encoding (0-9, a-z).
const base36Alphabet = "0123456789abcdefghijklmnopqrstuvwxyz"

// EncodeBase36 converts a byte slice to a base36 string of specified length.
func EncodeBase36(data []byte, length int) string {
	num := new(big.Int).SetBytes(data)

	var result strings.Builder
	base := big.NewInt(36)
	zero := big.NewInt(0)
	mod := new(big.Int)

	// Build the string in reverse
	chars := make([]byte, 0, length)
	for num.Cmp(zero) > 0 {
		num.DivMod(num, base, mod)
		chars = append(chars, base36Alphabet[mod.Int64()])
	}

	for i := len(chars) - 1; i >= 0; i-- {
		result.WriteByte(chars[i])
	}

	// Pad with zeros if needed
	str := result.String()
	if len(str) < length {
		str = strings.Repeat("0", length-len(str)) + str
	}

	// Truncate to exact length if needed (keep least significant digits)
	if len(str) > length {
		str = str[len(str)-length:]
	}

	return str
}

// GenerateHashID derives a deterministic ID from the seed content, the
// timestamp and a nonce. Callers bump the nonce to resolve collisions.
// The length parameter is expected to be 4-12; other values fall back to 8.
func GenerateHashID(prefix, seed string, timestamp time.Time, length, nonce int) string {
	if length < 4 || length > 12 {
		length = DefaultLength
	}

	content := fmt.Sprintf("%s|%d|%d", seed, timestamp.UnixNano(), nonce)
	hash := sha256.Sum256([]byte(content))

	// ~5.17 bits per base36 char; take enough bytes to fill length chars.
	numBytes := (length*517)/800 + 1
	shortHash := EncodeBase36(hash[:numBytes], length)

	return fmt.Sprintf("%s-%s", prefix, shortHash)
}

// New returns a fresh random ID with the given prefix. The seed mixes in
// crypto/rand output so two calls in the same nanosecond still differ.
func New(prefix string) string {
	var salt [8]byte
	if _, err := rand.Read(salt[:]); err != nil {
		// crypto/rand does not fail on supported platforms; fall back to the clock.
		return GenerateHashID(prefix, prefix, time.Now(), DefaultLength, 0)
	}
	return GenerateHashID(prefix, hex.EncodeToString(salt[:]), time.Now(), DefaultLength, 0)
}

// HasPrefix reports whether id was generated with prefix.
func HasPrefix(id, prefix string) bool {
	return strings.HasPrefix(id, prefix+"-")
}
