package types

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// NormalizeIdentity validates a wallet address and returns its checksummed form.
func NormalizeIdentity(identity string) (string, error) {
	identity = strings.TrimSpace(identity)
	if identity == "" {
		return "", fmt.Errorf("%w: empty identity", ErrInvalidIdentity)
	}
	if !common.IsHexAddress(identity) {
		return "", fmt.Errorf("%w: %q is not a hex address", ErrInvalidIdentity, identity)
	}
	addr := common.HexToAddress(identity)
	if addr == (common.Address{}) {
		return "", fmt.Errorf("%w: zero address", ErrInvalidIdentity)
	}
	return addr.Hex(), nil
}

// IsEmptyIdentity reports whether identity is the empty-slot sentinel.
// The pool returns the zero address for unfilled referral slots.
func IsEmptyIdentity(identity string) bool {
	identity = strings.TrimSpace(identity)
	if identity == "" {
		return true
	}
	return common.IsHexAddress(identity) && common.HexToAddress(identity) == (common.Address{})
}

// ShortIdentity renders an address as 0x1234...abcd.
func ShortIdentity(identity string) string {
	if len(identity) <= 10 {
		return identity
	}
	return identity[:6] + "..." + identity[len(identity)-4:]
}

// ReferralLink builds the invitation link for a sponsor.
func ReferralLink(origin, identity string) string {
	return strings.TrimRight(origin, "/") + "/?ref=" + identity
}
