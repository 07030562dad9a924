package room

import (
	"math/rand/v2"
	"strings"
)

const (
	idAlphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz"
	// IDLength is the length of every session id.
	IDLength = 5
)

// IDGenerator produces candidate session ids. Uniqueness is enforced by the
// registry, not the generator.
type IDGenerator func() string

// RandomID returns IDLength characters drawn uniformly from idAlphabet.
func RandomID() string {
	var b strings.Builder
	b.Grow(IDLength)
	for range IDLength {
		b.WriteByte(idAlphabet[rand.IntN(len(idAlphabet))])
	}
	return b.String()
}

// ValidID reports whether id could have been produced by RandomID.
func ValidID(id string) bool {
	if len(id) != IDLength {
		return false
	}
	for i := 0; i < len(id); i++ {
		if strings.IndexByte(idAlphabet, id[i]) < 0 {
			return false
		}
	}
	return true
}
