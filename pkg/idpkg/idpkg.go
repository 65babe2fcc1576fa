// Package idpkg generates the human-readable identifiers used across the ledger.
//
// Identifiers have the form <prefix><10 characters of [0-9A-Z]>. The random part carries
// about 51 bits of entropy from crypto/rand; uniqueness is finally enforced by the store,
// which reports a collision as a conflict so the caller can retry with a fresh identifier.
package idpkg

import (
	"crypto/rand"
	"math/big"
	"strings"
)

// Identifier prefixes.
const (
	AccountPrefix     = "ACC"
	TransactionPrefix = "TXN"
	TransferPrefix    = "TRF"
)

// Length is the number of random characters following the prefix.
const Length = 10

const (
	alphabet      = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ"
	digits        = "0123456789"
	cardLength    = 16
	cardLeadDigit = '4'
)

// Generate returns prefix followed by Length random uppercase alphanumeric characters.
func Generate(prefix string) string {
	return prefix + random(alphabet, Length)
}

// AccountNumber returns a new account number.
func AccountNumber() string { return Generate(AccountPrefix) }

// TransactionID returns a new transaction id.
func TransactionID() string { return Generate(TransactionPrefix) }

// TransferID returns a new transfer id.
func TransferID() string { return Generate(TransferPrefix) }

// CardNumber returns a 16 digit card number with a fixed leading digit.
func CardNumber() string {
	return string(cardLeadDigit) + random(digits, cardLength-1)
}

// Valid reports whether id has the given prefix followed by Length characters of the alphabet.
func Valid(prefix, id string) bool {
	if !strings.HasPrefix(id, prefix) {
		return false
	}

	rest := id[len(prefix):]
	if len(rest) != Length {
		return false
	}

	for i := 0; i < len(rest); i++ {
		if strings.IndexByte(alphabet, rest[i]) < 0 {
			return false
		}
	}

	return true
}

func random(set string, n int) string {
	var sb strings.Builder

	sb.Grow(n)

	max := big.NewInt(int64(len(set)))

	for i := 0; i < n; i++ {
		idx, err := rand.Int(rand.Reader, max)
		if err != nil {
			// crypto/rand only fails when the OS entropy source is unavailable.
			panic(err)
		}

		_ = sb.WriteByte(set[idx.Int64()]) // The returned err is always nil.
	}

	return sb.String()
}
