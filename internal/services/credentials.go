package services

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"math/big"
	"strings"

	"github.com/google/uuid"
)

const (
	codeMin  = 100000
	codeSpan = 900000
	anonLen  = 16
)

// GenerateCode returns a 6-digit numeric passcode drawn uniformly from
// [100000, 999999] using a cryptographically strong source.
func GenerateCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(codeSpan))
	if err != nil {
		return "", err
	}
	v := codeMin + n.Int64()
	digits := [6]byte{}
	for i := 5; i >= 0; i-- {
		digits[i] = byte('0' + v%10)
		v /= 10
	}
	return string(digits[:]), nil
}

// Anonymize derives a stable pseudonymous token for an identifier. The same
// identifier and salt always yield the same token, and the token reveals
// nothing about the input.
func Anonymize(identifier, salt string) string {
	sum := sha256.Sum256([]byte(salt + "\x00" + identifier))
	return hex.EncodeToString(sum[:])[:anonLen]
}

func shortID(n int) string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:n]
}
