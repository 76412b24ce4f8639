package pump

import (
	"filippo.io/edwards25519"

	"github.com/mr-tron/base58"
)

// ValidateAddress reports whether s is a well-formed Solana address,
// a 32-byte value in base58.
func ValidateAddress(s string) bool {
	raw, err := base58.Decode(s)
	return err == nil && len(raw) == 32
}

// IsOnCurve reports whether the address decodes to a valid ed25519
// curve point. Wallet keys are on the curve; program-derived addresses
// such as bonding-curve accounts are not.
func IsOnCurve(address string) bool {
	raw, err := base58.Decode(address)
	if err != nil || len(raw) != 32 {
		return false
	}
	_, err = new(edwards25519.Point).SetBytes(raw)
	return err == nil
}
