package watch

import (
	"crypto/rand"
	"fmt"
	"io"
	"math/big"
)

// CodeLength is the number of characters of a verification code
const CodeLength = 6

// Codes are upper-case only and compared exactly as issued.
const codeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// CodeGenerator issues verification codes
type CodeGenerator interface {
	Generate() (string, error)
}

// RandomCodes draws codes from a cryptographically secure source.
// A nil Reader means crypto/rand.
type RandomCodes struct {
	Reader io.Reader
}

// Generate returns CodeLength characters of codeAlphabet
func (g RandomCodes) Generate() (string, error) {
	src := g.Reader
	if src == nil {
		src = rand.Reader
	}
	max := big.NewInt(int64(len(codeAlphabet)))
	buf := make([]byte, CodeLength)
	for i := range buf {
		v, err := rand.Int(src, max)
		if err != nil {
			return "", fmt.Errorf("generate verification code: %w", err)
		}
		buf[i] = codeAlphabet[v.Int64()]
	}
	return string(buf), nil
}

// IsWellFormedCode reports whether s could have been issued by RandomCodes
func IsWellFormedCode(s string) bool {
	if len(s) != CodeLength {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if !(c >= 'A' && c <= 'Z' || c >= '0' && c <= '9') {
			return false
		}
	}
	return true
}
