package channel

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/perun-network/perun-client-go/pkg/errs"
)

// maxBal is the largest representable balance (2^256 - 1); balances travel as
// fixed 32-byte big-endian values.
var maxBal = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(1))

// Allocation assigns the channel's single asset to the two participants.
// Sub-allocations (locked funds) are not supported and always empty.
type Allocation struct {
	// Asset is the address of the asset holder contract.
	Asset common.Address
	// Balances holds one balance per participant, indexed like
	// Params.Participants.
	Balances [NumParts]*big.Int
}

// NewAllocation validates and builds an allocation. Balances must be
// non-negative and fit into 256 bits.
func NewAllocation(asset common.Address, balances [NumParts]*big.Int) (*Allocation, error) {
	for i, bal := range balances {
		if bal == nil {
			return nil, errs.New(errs.Internal, "balance %d is nil", i)
		}
		if bal.Sign() < 0 {
			return nil, errs.New(errs.BalanceConservation, "balance %d is negative", i)
		}
		if bal.Cmp(maxBal) > 0 {
			return nil, errs.New(errs.BalanceConservation, "balance %d exceeds 256 bits", i)
		}
	}
	return &Allocation{
		Asset:    asset,
		Balances: [NumParts]*big.Int{new(big.Int).Set(balances[0]), new(big.Int).Set(balances[1])},
	}, nil
}

// Sum returns the total of both balances.
func (a *Allocation) Sum() *big.Int {
	return new(big.Int).Add(a.Balances[0], a.Balances[1])
}

// Clone returns a deep copy of the allocation.
func (a *Allocation) Clone() *Allocation {
	return &Allocation{
		Asset:    a.Asset,
		Balances: [NumParts]*big.Int{new(big.Int).Set(a.Balances[0]), new(big.Int).Set(a.Balances[1])},
	}
}

// Equal reports whether both allocations assign the same asset and balances.
func (a *Allocation) Equal(b *Allocation) bool {
	return a.Asset == b.Asset &&
		a.Balances[0].Cmp(b.Balances[0]) == 0 &&
		a.Balances[1].Cmp(b.Balances[1]) == 0
}

// Transfer returns a fresh allocation with amount moved from participant
// `from` to the other participant. Underflow of the sender's balance is
// rejected as a balance-conservation violation.
func (a *Allocation) Transfer(from uint16, amount *big.Int) (*Allocation, error) {
	if from >= NumParts {
		return nil, errs.New(errs.Internal, "participant index %d out of range", from)
	}
	if amount == nil || amount.Sign() < 0 {
		return nil, errs.New(errs.BalanceConservation, "transfer amount must be non-negative")
	}
	to := 1 - from
	next := a.Clone()
	next.Balances[from].Sub(next.Balances[from], amount)
	next.Balances[to].Add(next.Balances[to], amount)
	if next.Balances[from].Sign() < 0 {
		return nil, errs.New(errs.BalanceConservation, "balance of participant %d underflows by %s", from,
			new(big.Int).Neg(next.Balances[from]).String())
	}
	return next, nil
}
