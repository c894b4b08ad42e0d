package wire

import (
	"bytes"
	"crypto/rand"

	"github.com/ethereum/go-ethereum/common"

	"github.com/perun-network/perun-client-go/pkg/channel"
	"github.com/perun-network/perun-client-go/pkg/errs"
	"github.com/perun-network/perun-client-go/pkg/wallet"
)

// Address is an opaque wire identity. The reference transport uses simple
// variable-length name strings.
type Address []byte

// Equal reports byte equality of two wire addresses.
func (a Address) Equal(b Address) bool { return bytes.Equal(a, b) }

// String renders the address for logs.
func (a Address) String() string { return string(a) }

// ProposalID pairs a channel proposal with its acceptance or rejection.
type ProposalID [32]byte

// NewRandomProposalID draws a fresh proposal identifier.
func NewRandomProposalID() (ProposalID, error) {
	var id ProposalID
	if _, err := rand.Read(id[:]); err != nil {
		return ProposalID{}, errs.Wrap(errs.Internal, err, "reading random proposal id")
	}
	return id, nil
}

// MsgType discriminates the peer message union. The values double as the
// Envelope oneof field numbers.
type MsgType uint8

// Peer message types.
const (
	TypeProposal MsgType = iota + 3
	TypeProposalAcc
	TypeProposalRej
	TypeChannelUpdate
	TypeChannelUpdateAcc
	TypeChannelUpdateRej
	TypeChannelSync
	TypeError
)

// String returns the message name used in logs.
func (t MsgType) String() string {
	switch t {
	case TypeProposal:
		return "ProposalMsg"
	case TypeProposalAcc:
		return "ProposalAccMsg"
	case TypeProposalRej:
		return "ProposalRejMsg"
	case TypeChannelUpdate:
		return "ChannelUpdateMsg"
	case TypeChannelUpdateAcc:
		return "ChannelUpdateAccMsg"
	case TypeChannelUpdateRej:
		return "ChannelUpdateRejMsg"
	case TypeChannelSync:
		return "ChannelSyncMsg"
	case TypeError:
		return "MsgError"
	default:
		return "UnknownMsg"
	}
}

// Msg is one peer protocol message.
type Msg interface {
	Type() MsgType
}

// Envelope addresses one message between two wire identities.
type Envelope struct {
	Sender    Address
	Recipient Address
	Msg       Msg
}

// ProposalMsg opens a channel. It carries the proposer's half of the
// parameters: its nonce share, its participant address, and the initial
// allocation both sides are expected to fund.
type ProposalMsg struct {
	ProposalID        ProposalID
	NonceShare        channel.NonceShare
	Participant       common.Address
	ChallengeDuration uint64
	App               common.Address
	InitAlloc         *channel.Allocation
	Data              []byte
}

func (*ProposalMsg) Type() MsgType { return TypeProposal }

// ProposalAccMsg completes the parameters: the acceptor's nonce share and
// participant address, plus its signature on the version-0 state.
type ProposalAccMsg struct {
	ProposalID  ProposalID
	NonceShare  channel.NonceShare
	Participant common.Address
	InitialSig  wallet.Sig
}

func (*ProposalAccMsg) Type() MsgType { return TypeProposalAcc }

// ProposalRejMsg declines a proposal.
type ProposalRejMsg struct {
	ProposalID ProposalID
	Reason     string
}

func (*ProposalRejMsg) Type() MsgType { return TypeProposalRej }

// ChannelUpdateMsg proposes the next state, signed by the actor.
type ChannelUpdateMsg struct {
	Proposed *channel.State
	ActorIdx uint16
	Sig      wallet.Sig
}

func (*ChannelUpdateMsg) Type() MsgType { return TypeChannelUpdate }

// ChannelUpdateAccMsg returns the responder's signature on the proposed
// version.
type ChannelUpdateAccMsg struct {
	ChannelID channel.ID
	Version   uint64
	Sig       wallet.Sig
}

func (*ChannelUpdateAccMsg) Type() MsgType { return TypeChannelUpdateAcc }

// ChannelUpdateRejMsg declines a proposed version; the channel stays at the
// previous state.
type ChannelUpdateRejMsg struct {
	ChannelID channel.ID
	Version   uint64
	Reason    string
}

func (*ChannelUpdateRejMsg) Type() MsgType { return TypeChannelUpdateRej }

// ChannelSyncMsg carries the sender's current signed state so a reconnecting
// peer can converge on the newer fully-signed view.
type ChannelSyncMsg struct {
	Current *channel.SignedState
}

func (*ChannelSyncMsg) Type() MsgType { return TypeChannelSync }

// ErrorMsg transports an error envelope between peers.
type ErrorMsg struct {
	Err *errs.MsgError
}

func (*ErrorMsg) Type() MsgType { return TypeError }
