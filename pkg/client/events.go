package client

import (
	"github.com/perun-network/perun-client-go/pkg/channel"
	"github.com/perun-network/perun-client-go/pkg/wire"
)

// Event is a host-facing notification produced by a client step.
type Event interface {
	event()
}

// ProposalReceivedEvent: a peer proposed a channel and no proposal policy is
// configured; the host decides with AcceptProposal / RejectProposal.
type ProposalReceivedEvent struct {
	ProposalID wire.ProposalID
	From       wire.Address
	Proposal   *wire.ProposalMsg
}

// OpenedEvent: funding completed; the channel is Active.
type OpenedEvent struct {
	ID channel.ID
}

// ProposalRejectedEvent: the peer declined our proposal; the machine failed.
type ProposalRejectedEvent struct {
	ProposalID wire.ProposalID
	Reason     string
}

// UpdatedEvent: a new two-signature state was installed.
type UpdatedEvent struct {
	ID      channel.ID
	Version uint64
}

// UpdateRejectedEvent: our proposed update was declined; the channel stays at
// the previous state.
type UpdateRejectedEvent struct {
	ID      channel.ID
	Version uint64
	Reason  string
}

// FinalizedEvent: a final state is mutually signed; no further updates.
type FinalizedEvent struct {
	ID      channel.ID
	Version uint64
}

// DisputedEvent: the channel is in on-chain dispute.
type DisputedEvent struct {
	ID      channel.ID
	Version uint64
}

// WithdrawnEvent: the outcome is settled on-chain; the machine is done.
type WithdrawnEvent struct {
	ID channel.ID
}

// FailedEvent: the machine reached its terminal error state.
type FailedEvent struct {
	ID         channel.ID
	ProposalID wire.ProposalID
	Err        error
}

// PeerErrorEvent: the peer sent an error envelope.
type PeerErrorEvent struct {
	Err error
}

// RemoteErrorEvent: the funder/watcher reported a failure that does not
// terminate the machine.
type RemoteErrorEvent struct {
	ID  channel.ID
	Err error
}

func (*ProposalReceivedEvent) event() {}
func (*OpenedEvent) event()           {}
func (*ProposalRejectedEvent) event() {}
func (*UpdatedEvent) event()          {}
func (*UpdateRejectedEvent) event()   {}
func (*FinalizedEvent) event()        {}
func (*DisputedEvent) event()         {}
func (*WithdrawnEvent) event()        {}
func (*FailedEvent) event()           {}
func (*PeerErrorEvent) event()        {}
func (*RemoteErrorEvent) event()      {}

// Output is the result of one client step: host events plus outbound frame
// payloads for the peer connection and the remote-service connection.
type Output struct {
	Events []Event
	// Peer holds encoded Envelope payloads for the peer connection.
	Peer [][]byte
	// Remote holds encoded Message payloads for the remote-service
	// connection.
	Remote [][]byte
}

func (o *Output) event(e Event)   { o.Events = append(o.Events, e) }
func (o *Output) peer(p []byte)   { o.Peer = append(o.Peer, p) }
func (o *Output) remote(p []byte) { o.Remote = append(o.Remote, p) }

func (o *Output) merge(other Output) {
	o.Events = append(o.Events, other.Events...)
	o.Peer = append(o.Peer, other.Peer...)
	o.Remote = append(o.Remote, other.Remote...)
}
