package bounty

import (
	"fmt"

	"github.com/holiman/uint256"
)

const (
	// BasisPoints is the denominator of every cut rate: 10000 = 100%.
	BasisPoints uint32 = 10_000
	// DefaultCutBps is the finder's share of a payout at deployment.
	DefaultCutBps uint32 = 9_800
)

// ValidateCutBps ensures rate is within [0, BasisPoints].
func ValidateCutBps(rate uint32) error {
	if rate > BasisPoints {
		return fmt.Errorf("%w: %d > %d", ErrCutOutOfRange, rate, BasisPoints)
	}
	return nil
}

// Cut returns floor(amount*rateBps/10000). The product is computed at 256-bit
// width so amounts near the top of uint64 do not wrap.
func Cut(amount uint64, rateBps uint32) (uint64, error) {
	if err := ValidateCutBps(rateBps); err != nil {
		return 0, err
	}
	if amount == 0 || rateBps == 0 {
		return 0, nil
	}
	x := uint256.NewInt(amount)
	y := uint256.NewInt(uint64(rateBps))
	d := uint256.NewInt(uint64(BasisPoints))
	z, overflow := new(uint256.Int).MulDivOverflow(x, y, d)
	if overflow || !z.IsUint64() {
		return 0, ErrCutOverflow
	}
	return z.Uint64(), nil
}

// Split divides amount into the finder payout and the remainder retained by
// the platform contract.
func Split(amount uint64, rateBps uint32) (payout, remainder uint64, err error) {
	payout, err = Cut(amount, rateBps)
	if err != nil {
		return 0, 0, err
	}
	return payout, amount - payout, nil
}
