package channel

import (
	"bytes"
	"math"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/perun-network/perun-client-go/pkg/errs"
)

// State is the mutable, versioned record of a channel: who owns what, and
// whether the channel is final. States are value-like; mutators return fresh
// validated copies.
type State struct {
	// ID is the channel identifier this state belongs to.
	ID ID
	// Version strictly increases with each accepted update.
	Version uint64
	// App is the application address, copied from Params.
	App common.Address
	// Allocation assigns the asset to the participants.
	Allocation Allocation
	// Data is the opaque application payload.
	Data []byte
	// IsFinal marks the state as the agreed last one; no updates may follow.
	IsFinal bool
}

// NewInitialState builds the version-0 state for the given parameters. The
// allocation sum must equal total, which pins the channel's funding target.
func NewInitialState(params *Params, alloc *Allocation, data []byte, total *big.Int) (*State, error) {
	if total == nil || alloc.Sum().Cmp(total) != 0 {
		return nil, errs.New(errs.BalanceConservation, "allocation sum %s does not match funding total", alloc.Sum().String())
	}
	return &State{
		ID:         params.ID(),
		Version:    0,
		App:        params.App,
		Allocation: *alloc.Clone(),
		Data:       bytes.Clone(data),
		IsFinal:    false,
	}, nil
}

// Clone returns a deep copy of the state.
func (s *State) Clone() *State {
	return &State{
		ID:         s.ID,
		Version:    s.Version,
		App:        s.App,
		Allocation: *s.Allocation.Clone(),
		Data:       bytes.Clone(s.Data),
		IsFinal:    s.IsFinal,
	}
}

// Equal reports deep equality of two states.
func (s *State) Equal(o *State) bool {
	return s.ID == o.ID &&
		s.Version == o.Version &&
		s.App == o.App &&
		s.Allocation.Equal(&o.Allocation) &&
		bytes.Equal(s.Data, o.Data) &&
		s.IsFinal == o.IsFinal
}

// Hash returns the signing digest of the state: keccak256 over the canonical
// encoding.
func (s *State) Hash() common.Hash {
	return crypto.Keccak256Hash(EncodeState(s))
}

// Transfer derives the successor state with amount moved from participant
// `from` to the other side and the version incremented. Deriving a successor
// of a final state fails with AlreadyFinal; a version past the uint64 range
// saturates with VersionGap.
func (s *State) Transfer(from uint16, amount *big.Int) (*State, error) {
	if s.IsFinal {
		return nil, errs.New(errs.AlreadyFinal, "state at version %d is final", s.Version)
	}
	if s.Version == math.MaxUint64 {
		return nil, errs.New(errs.VersionGap, "version space exhausted")
	}
	alloc, err := s.Allocation.Transfer(from, amount)
	if err != nil {
		return nil, err
	}
	next := s.Clone()
	next.Version++
	next.Allocation = *alloc
	return next, nil
}

// Finalize derives the successor state with IsFinal set and the version
// incremented, leaving balances untouched.
func (s *State) Finalize() (*State, error) {
	if s.IsFinal {
		return nil, errs.New(errs.AlreadyFinal, "state at version %d is already final", s.Version)
	}
	if s.Version == math.MaxUint64 {
		return nil, errs.New(errs.VersionGap, "version space exhausted")
	}
	next := s.Clone()
	next.Version++
	next.IsFinal = true
	return next, nil
}

// ValidTransition checks that `next` is an acceptable successor of s under
// the given parameters: same channel, version incremented by exactly one,
// balance sum conserved, and s not final. The returned error kind tells the
// caller which rule failed.
func ValidTransition(params *Params, s, next *State) error {
	if next.ID != s.ID {
		return errs.New(errs.InvalidChannelID, "transition changes channel id")
	}
	if derived := params.ID(); next.ID != derived {
		return errs.New(errs.InvalidChannelID, "state id %s does not match params id %s", next.ID.Hex(), derived.Hex())
	}
	if s.IsFinal {
		return errs.New(errs.AlreadyFinal, "no transitions from a final state")
	}
	if next.Version <= s.Version {
		return errs.New(errs.OutdatedVersion, "version %d not after %d", next.Version, s.Version)
	}
	if next.Version != s.Version+1 {
		return errs.New(errs.VersionGap, "version %d skips %d", next.Version, s.Version+1)
	}
	if next.App != params.App {
		return errs.New(errs.InvalidMessage, "transition changes app address")
	}
	if next.Allocation.Asset != s.Allocation.Asset {
		return errs.New(errs.BalanceConservation, "transition changes asset")
	}
	for i, bal := range next.Allocation.Balances {
		if bal == nil || bal.Sign() < 0 {
			return errs.New(errs.BalanceConservation, "balance %d is negative", i)
		}
	}
	if next.Allocation.Sum().Cmp(s.Allocation.Sum()) != 0 {
		return errs.New(errs.BalanceConservation, "balance sum %s differs from %s",
			next.Allocation.Sum().String(), s.Allocation.Sum().String())
	}
	return nil
}
