// Package identifier validates and extracts token contract identifiers
// from free-form chat text.
package identifier

// Length bounds of a Solana address in base58.
const (
	MinLength = 32
	MaxLength = 44
)

// Valid reports whether s has a plausible address shape: 32 to 44 ASCII
// letters or digits.
func Valid(s string) bool {
	if len(s) < MinLength || len(s) > MaxLength {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= 'a' && c <= 'z':
		case c >= 'A' && c <= 'Z':
		case c >= '0' && c <= '9':
		default:
			return false
		}
	}
	return true
}
