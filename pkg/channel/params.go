package channel

import (
	"crypto/rand"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/perun-network/perun-client-go/pkg/errs"
)

// NumParts is the number of channel participants. The whole data model is
// sized by this bound.
const NumParts = 2

// ID is the 32-byte channel identifier, derived deterministically from the
// channel parameters.
type ID = common.Hash

// NonceShare is one party's 32-byte contribution to the joint channel nonce.
type NonceShare [32]byte

// NewRandomNonceShare draws a fresh share from crypto/rand.
func NewRandomNonceShare() (NonceShare, error) {
	var share NonceShare
	if _, err := rand.Read(share[:]); err != nil {
		return NonceShare{}, errs.Wrap(errs.Internal, err, "reading random nonce share")
	}
	return share, nil
}

// CalcNonce combines both parties' shares into the joint channel nonce:
// keccak256 over the shares concatenated in participant index order.
func CalcNonce(shares [NumParts]NonceShare) [32]byte {
	var nonce [32]byte
	copy(nonce[:], crypto.Keccak256(shares[0][:], shares[1][:]))
	return nonce
}

// Params are the immutable parameters of a channel. Hashing their canonical
// encoding yields the channel ID.
type Params struct {
	// Participants is the ordered pair of participant addresses.
	Participants [NumParts]common.Address
	// ChallengeDuration is the on-chain dispute window in seconds.
	ChallengeDuration uint64
	// Nonce is the jointly chosen 32-byte channel nonce.
	Nonce [32]byte
	// App is the application contract address; all-zero for a pure payment
	// channel.
	App common.Address
	// LedgerChannel is always true for channels funded directly on-chain.
	LedgerChannel bool
	// VirtualChannel is always false; virtual channels are not supported.
	VirtualChannel bool
}

// NewParams validates and builds channel parameters. Duplicate participants
// and a zero challenge duration are rejected.
func NewParams(participants [NumParts]common.Address, challengeDuration uint64, nonce [32]byte, app common.Address) (*Params, error) {
	if participants[0] == participants[1] {
		return nil, errs.New(errs.Internal, "duplicate participant %s", participants[0].Hex())
	}
	if challengeDuration == 0 {
		return nil, errs.New(errs.Internal, "challenge duration must be positive")
	}
	return &Params{
		Participants:      participants,
		ChallengeDuration: challengeDuration,
		Nonce:             nonce,
		App:               app,
		LedgerChannel:     true,
		VirtualChannel:    false,
	}, nil
}

// ID derives the channel ID as keccak256 over the canonical Params encoding.
func (p *Params) ID() ID {
	return crypto.Keccak256Hash(EncodeParams(p))
}

// IndexOf returns the participant index of addr, or an error if addr is not
// a participant.
func (p *Params) IndexOf(addr common.Address) (uint16, error) {
	for i, part := range p.Participants {
		if part == addr {
			return uint16(i), nil
		}
	}
	return 0, errs.New(errs.Internal, "%s is not a channel participant", addr.Hex())
}

// Clone returns a copy of the parameters.
func (p *Params) Clone() *Params {
	q := *p
	return &q
}
