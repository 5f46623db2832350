package token

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math/big"
	"strings"
)

// resetSep joins the account id and the random part of a reset secret so the
// secret alone identifies the account it belongs to.
const resetSep = "."

// NewRandomHex returns n cryptographically random bytes, hex encoded.
func NewRandomHex(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate random token: %w", err)
	}
	return hex.EncodeToString(b), nil
}

// NewNumericCode returns a uniformly random decimal code of the given length,
// zero padded.
func NewNumericCode(digits int) (string, error) {
	limit := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(digits)), nil)
	n, err := rand.Int(rand.Reader, limit)
	if err != nil {
		return "", fmt.Errorf("generate numeric code: %w", err)
	}
	return fmt.Sprintf("%0*d", digits, n.Int64()), nil
}

// NewResetSecret returns "<accountID>.<64 hex chars>" carrying 256 bits of entropy.
func NewResetSecret(accountID string) (string, error) {
	r, err := NewRandomHex(32)
	if err != nil {
		return "", err
	}
	return accountID + resetSep + r, nil
}

// SplitResetSecret extracts the account id from a reset secret.
func SplitResetSecret(secret string) (accountID string, ok bool) {
	accountID, rest, found := strings.Cut(secret, resetSep)
	if !found || accountID == "" || rest == "" {
		return "", false
	}
	return accountID, true
}

// Digest is the stored form of a one-time secret.
func Digest(secret string) string {
	sum := sha256.Sum256([]byte(secret))
	return hex.EncodeToString(sum[:])
}
