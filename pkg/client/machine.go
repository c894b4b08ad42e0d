package client

import (
	"github.com/ethereum/go-ethereum/common"

	"github.com/perun-network/perun-client-go/pkg/channel"
	"github.com/perun-network/perun-client-go/pkg/errs"
	"github.com/perun-network/perun-client-go/pkg/wallet"
	"github.com/perun-network/perun-client-go/pkg/wire"
)

// Phase is the lifecycle stage of a channel machine.
type Phase uint8

// Machine phases. Withdrawn and Failed are terminal.
const (
	Proposing Phase = iota + 1
	Accepting
	Funding
	Active
	Finalized
	Disputing
	Withdrawn
	Failed
)

// String returns the phase name.
func (p Phase) String() string {
	switch p {
	case Proposing:
		return "Proposing"
	case Accepting:
		return "Accepting"
	case Funding:
		return "Funding"
	case Active:
		return "Active"
	case Finalized:
		return "Finalized"
	case Disputing:
		return "Disputing"
	case Withdrawn:
		return "Withdrawn"
	case Failed:
		return "Failed"
	default:
		return "Unknown"
	}
}

// Terminal reports whether no further transitions are possible.
func (p Phase) Terminal() bool { return p == Withdrawn || p == Failed }

// pendingUpdate is a locally proposed state awaiting the peer's signature.
type pendingUpdate struct {
	state *channel.State
	sig   wallet.Sig
}

// proposalDraft holds the proposer-side data needed to finalize parameters
// once the acceptance arrives.
type proposalDraft struct {
	nonceShare        channel.NonceShare
	challengeDuration uint64
	app               common.Address
	initAlloc         *channel.Allocation
	data              []byte
}

// machine is the per-channel state. It is owned by the Client and holds no
// back-reference; cross-channel actions go through the Client.
type machine struct {
	phase Phase
	peer  wire.Address

	// idx is this participant's index in params.Participants.
	idx uint16

	// proposal pairing; kept after the channel id is known.
	proposalID wire.ProposalID
	draft      *proposalDraft
	// inbound holds the peer's proposal while the host decides (Accepting).
	inbound *wire.ProposalMsg

	params  *channel.Params
	current *channel.SignedState
	pending *pendingUpdate

	// forceClosePending marks an outstanding ForceCloseRequest; a final-state
	// acceptance pre-empts it.
	forceClosePending bool
}

// id returns the channel id, or the zero id while parameters are incomplete.
func (m *machine) id() channel.ID {
	if m.params == nil {
		return channel.ID{}
	}
	return m.params.ID()
}

// requirePhase guards operations against the wrong lifecycle stage.
func (m *machine) requirePhase(allowed ...Phase) error {
	for _, p := range allowed {
		if m.phase == p {
			return nil
		}
	}
	return errs.New(errs.PhaseViolation, "operation not allowed in phase %s", m.phase)
}

// installState replaces the current signed state. The caller has validated
// the transition and both signatures.
func (m *machine) installState(ss *channel.SignedState) {
	m.current = ss
	m.pending = nil
}

// version returns the current state version, or 0 before the initial state
// exists.
func (m *machine) version() uint64 {
	if m.current == nil {
		return 0
	}
	return m.current.State.Version
}
