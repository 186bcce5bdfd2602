// Package backup generates and verifies single-use recovery codes.
//
// Codes are short human-typable strings of the form XXXX-XXXX. Only bcrypt
// hashes are ever persisted; the plaintext batch is shown to the user once.
package backup

import (
	"crypto/rand"
	"encoding/hex"
	"regexp"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// MinCost is the lowest bcrypt cost accepted for hashing recovery codes.
const MinCost = 10

var codePattern = regexp.MustCompile(`^[A-Z0-9]{4}-[A-Z0-9]{4}$`)

// Generate returns n random codes in XXXX-XXXX form. Each code carries 32
// bits of entropy, which makes intra-batch collisions vanishingly unlikely.
func Generate(n int) ([]string, error) {
	codes := make([]string, 0, n)
	for i := 0; i < n; i++ {
		raw := make([]byte, 4)
		if _, err := rand.Read(raw); err != nil {
			return nil, err
		}
		enc := strings.ToUpper(hex.EncodeToString(raw))
		codes = append(codes, enc[:4]+"-"+enc[4:])
	}
	return codes, nil
}

// Hash bcrypt-hashes each code in the batch at the given cost.
func Hash(codes []string, cost int) ([]string, error) {
	if cost < MinCost {
		cost = MinCost
	}
	hashes := make([]string, 0, len(codes))
	for _, code := range codes {
		h, err := bcrypt.GenerateFromPassword([]byte(code), cost)
		if err != nil {
			return nil, err
		}
		hashes = append(hashes, string(h))
	}
	return hashes, nil
}

// Verify reports whether code matches the stored hash. Malformed hashes and
// mismatches both return false.
func Verify(code, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(code)) == nil
}

// IsCodeFormat reports whether s has the XXXX-XXXX recovery-code shape.
// Callers should canonicalize with Canonicalize first.
func IsCodeFormat(s string) bool {
	return codePattern.MatchString(s)
}

// Canonicalize trims and uppercases user input before classification.
func Canonicalize(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}
