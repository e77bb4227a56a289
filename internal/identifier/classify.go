package identifier

import (
	"filippo.io/edwards25519"
	"github.com/mr-tron/base58"
)

// Shape describes what a candidate decodes to.
type Shape struct {
	// Base58 is true if the candidate decodes to exactly 32 bytes.
	Base58 bool
	// OnCurve is true if the decoded bytes are a valid ed25519 point
	// (a keypair address rather than a program derived address).
	OnCurve bool
}

// LikelyAddress reports whether the candidate looks like a real account
// address. Program derived addresses are off-curve but still valid.
func (s Shape) LikelyAddress() bool {
	return s.Base58
}

// Classify decodes candidate as a Solana public key.
func Classify(candidate string) Shape {
	raw, err := base58.Decode(candidate)
	if err != nil || len(raw) != 32 {
		return Shape{}
	}
	shape := Shape{Base58: true}
	if _, err := new(edwards25519.Point).SetBytes(raw); err == nil {
		shape.OnCurve = true
	}
	return shape
}
