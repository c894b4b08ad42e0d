package client

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/perun-network/perun-client-go/pkg/channel"
	"github.com/perun-network/perun-client-go/pkg/config"
	"github.com/perun-network/perun-client-go/pkg/errs"
	"github.com/perun-network/perun-client-go/pkg/remote"
	"github.com/perun-network/perun-client-go/pkg/wallet"
	"github.com/perun-network/perun-client-go/pkg/wire"
)

// init configures a default global zap logger. Applications may replace it
// with zap.ReplaceGlobals(...) if they need custom logging.
func init() {
	c := zap.Config{
		Level:            zap.NewAtomicLevelAt(zap.InfoLevel),
		Development:      false,
		Encoding:         "console",
		EncoderConfig:    zap.NewDevelopmentEncoderConfig(),
		OutputPaths:      []string{"stdout"},
		ErrorOutputPaths: []string{"stderr"},
	}
	logger, err := c.Build()
	if err != nil {
		panic(err)
	}
	zap.ReplaceGlobals(logger)
}

// ProposalPolicy decides inbound channel proposals. Returning ok=false
// rejects the proposal with the given reason. Without a configured policy,
// inbound proposals surface as ProposalReceivedEvent and wait in Accepting
// until the host calls AcceptProposal or RejectProposal.
type ProposalPolicy func(proposal *wire.ProposalMsg) (ok bool, reason string)

// UpdatePolicy decides inbound state updates after the protocol rules have
// passed. self is this participant's index.
type UpdatePolicy func(current, proposed *channel.State, self uint16) (ok bool, reason string)

// defaultUpdatePolicy accepts an update iff it does not decrease this
// participant's balance; nobody may take funds unilaterally.
func defaultUpdatePolicy(current, proposed *channel.State, self uint16) (bool, string) {
	if proposed.Allocation.Balances[self].Cmp(current.Allocation.Balances[self]) < 0 {
		return false, "update decreases own balance"
	}
	return true, ""
}

// Option configures a Client.
type Option func(*Client)

// WithProposalPolicy installs the host's accept/reject decision for inbound
// proposals.
func WithProposalPolicy(p ProposalPolicy) Option {
	return func(c *Client) { c.proposalPolicy = p }
}

// WithUpdatePolicy installs the host's application predicate for inbound
// updates.
func WithUpdatePolicy(p UpdatePolicy) Option {
	return func(c *Client) { c.updatePolicy = p }
}

// Client owns all channel machines of one wire identity. It dispatches
// inbound envelopes to the owning machine and drives the remote
// funder/watcher client. All methods are synchronous steps; the host owns
// I/O and timers.
type Client struct {
	identity wire.Address
	signer   wallet.Signer
	receiver common.Address

	// auths is the pre-signed table handed to the remote watcher; it holds
	// one withdrawal authorization per installed fully-signed state.
	auths *wallet.PreSignedTable

	remote *remote.Client

	proposalPolicy ProposalPolicy
	updatePolicy   UpdatePolicy

	proposals map[wire.ProposalID]*machine
	channels  map[channel.ID]*machine
}

// NewClient builds a client from the validated configuration: the wire
// identity, the participant signing key, and the on-chain receiver address.
func NewClient(cfg *config.Config, opts ...Option) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, errs.Wrap(errs.Internal, err, "invalid configuration")
	}
	signer, err := cfg.Signer()
	if err != nil {
		return nil, err
	}
	c := &Client{
		identity:     wire.Address(cfg.WireIdentity),
		signer:       signer,
		receiver:     cfg.ReceiverAddress(),
		auths:        wallet.NewPreSignedTable(signer.Address()),
		remote:       remote.NewClient(),
		updatePolicy: defaultUpdatePolicy,
		proposals:    make(map[wire.ProposalID]*machine),
		channels:     make(map[channel.ID]*machine),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Address returns the participant address of this client's signer.
func (c *Client) Address() common.Address { return c.signer.Address() }

// Identity returns the client's wire identity.
func (c *Client) Identity() wire.Address { return c.identity }

// AuthTable returns the pre-signed withdrawal-authorization table. The host
// hands it (or a transport to it) to the remote watcher.
func (c *Client) AuthTable() *wallet.PreSignedTable { return c.auths }

// ProposalSpec describes a channel to propose.
type ProposalSpec struct {
	// Peer is the acceptor's wire address.
	Peer wire.Address
	// Asset is the asset holder contract address.
	Asset common.Address
	// Balances funds participant 0 (the proposer) and participant 1.
	Balances [channel.NumParts]*big.Int
	// ChallengeDuration is the dispute window in seconds.
	ChallengeDuration uint64
	// App is the application address; zero for a pure payment channel.
	App common.Address
	// Data is the initial application payload.
	Data []byte
}

// Propose starts a channel as participant 0. It returns the proposal id used
// to pair the peer's answer and the outbound ProposalMsg.
func (c *Client) Propose(spec ProposalSpec) (wire.ProposalID, Output, error) {
	var out Output
	if spec.ChallengeDuration == 0 {
		return wire.ProposalID{}, out, errs.New(errs.Internal, "challenge duration must be positive")
	}
	alloc, err := channel.NewAllocation(spec.Asset, spec.Balances)
	if err != nil {
		return wire.ProposalID{}, out, err
	}
	pid, err := wire.NewRandomProposalID()
	if err != nil {
		return wire.ProposalID{}, out, err
	}
	share, err := channel.NewRandomNonceShare()
	if err != nil {
		return wire.ProposalID{}, out, err
	}

	m := &machine{
		phase:      Proposing,
		peer:       spec.Peer,
		idx:        0,
		proposalID: pid,
		draft: &proposalDraft{
			nonceShare:        share,
			challengeDuration: spec.ChallengeDuration,
			app:               spec.App,
			initAlloc:         alloc,
			data:              append([]byte(nil), spec.Data...),
		},
	}
	c.proposals[pid] = m

	payload, err := c.envelope(spec.Peer, &wire.ProposalMsg{
		ProposalID:        pid,
		NonceShare:        share,
		Participant:       c.signer.Address(),
		ChallengeDuration: spec.ChallengeDuration,
		App:               spec.App,
		InitAlloc:         alloc,
		Data:              m.draft.data,
	})
	if err != nil {
		delete(c.proposals, pid)
		return wire.ProposalID{}, out, err
	}
	out.peer(payload)
	zap.L().Info("proposed channel",
		zap.String("proposal", common.Hash(pid).Hex()),
		zap.String("peer", spec.Peer.String()))
	return pid, out, nil
}

// HandlePeer consumes one inbound envelope payload from the peer connection.
// Invalid payloads are reported as errors and dropped; the client keeps
// serving other channels.
func (c *Client) HandlePeer(payload []byte) (Output, error) {
	var out Output
	env, err := wire.UnmarshalEnvelope(payload)
	if err != nil {
		return out, err
	}
	if len(c.identity) > 0 && !env.Recipient.Equal(c.identity) {
		return out, errs.New(errs.InvalidMessage, "envelope for %s, this client is %s", env.Recipient, c.identity)
	}

	switch msg := env.Msg.(type) {
	case *wire.ProposalMsg:
		return c.handleProposal(env.Sender, msg)
	case *wire.ProposalAccMsg:
		return c.handleProposalAcc(msg)
	case *wire.ProposalRejMsg:
		return c.handleProposalRej(msg)
	case *wire.ChannelUpdateMsg:
		return c.handleUpdate(env.Sender, msg)
	case *wire.ChannelUpdateAccMsg:
		return c.handleUpdateAcc(msg)
	case *wire.ChannelUpdateRejMsg:
		return c.handleUpdateRej(msg)
	case *wire.ChannelSyncMsg:
		return c.handleSync(msg)
	case *wire.ErrorMsg:
		out.event(&PeerErrorEvent{Err: msg.Err.AsError()})
		return out, nil
	default:
		return out, errs.New(errs.InvalidMessage, "unhandled message %s", env.Msg.Type())
	}
}

// handleProposal either asks the host (no policy configured: the machine
// waits in Accepting) or applies the policy immediately.
func (c *Client) handleProposal(sender wire.Address, msg *wire.ProposalMsg) (Output, error) {
	var out Output
	if msg.Participant == c.signer.Address() {
		return out, errs.New(errs.InvalidMessage, "proposal from own participant address")
	}
	if _, exists := c.proposals[msg.ProposalID]; exists {
		return out, errs.New(errs.InvalidMessage, "duplicate proposal id")
	}

	if c.proposalPolicy == nil {
		c.proposals[msg.ProposalID] = &machine{
			phase:      Accepting,
			peer:       sender,
			idx:        1,
			proposalID: msg.ProposalID,
			inbound:    msg,
		}
		out.event(&ProposalReceivedEvent{ProposalID: msg.ProposalID, From: sender, Proposal: msg})
		return out, nil
	}

	if ok, reason := c.proposalPolicy(msg); !ok {
		payload, err := c.envelope(sender, &wire.ProposalRejMsg{ProposalID: msg.ProposalID, Reason: reason})
		if err != nil {
			return out, err
		}
		out.peer(payload)
		zap.L().Info("rejected proposal",
			zap.String("proposal", common.Hash(msg.ProposalID).Hex()),
			zap.String("reason", reason))
		return out, nil
	}
	return c.acceptProposal(sender, msg)
}

// AcceptProposal resolves a proposal waiting in Accepting: finalize the
// parameters, sign the initial state and request funding.
func (c *Client) AcceptProposal(pid wire.ProposalID) (Output, error) {
	m, ok := c.proposals[pid]
	if !ok {
		return Output{}, errs.New(errs.UnknownChannel, "no proposal %s", common.Hash(pid).Hex())
	}
	if err := m.requirePhase(Accepting); err != nil {
		return Output{}, err
	}
	delete(c.proposals, pid)
	return c.acceptProposal(m.peer, m.inbound)
}

// RejectProposal declines a proposal waiting in Accepting.
func (c *Client) RejectProposal(pid wire.ProposalID, reason string) (Output, error) {
	var out Output
	m, ok := c.proposals[pid]
	if !ok {
		return out, errs.New(errs.UnknownChannel, "no proposal %s", common.Hash(pid).Hex())
	}
	if err := m.requirePhase(Accepting); err != nil {
		return out, err
	}
	delete(c.proposals, pid)
	payload, err := c.envelope(m.peer, &wire.ProposalRejMsg{ProposalID: pid, Reason: reason})
	if err != nil {
		return out, err
	}
	out.peer(payload)
	return out, nil
}

// acceptProposal finalizes the parameters as participant 1, signs the
// initial state, answers the proposer and requests funding.
func (c *Client) acceptProposal(sender wire.Address, msg *wire.ProposalMsg) (Output, error) {
	var out Output
	share, err := channel.NewRandomNonceShare()
	if err != nil {
		return out, err
	}
	params, err := channel.NewParams(
		[channel.NumParts]common.Address{msg.Participant, c.signer.Address()},
		msg.ChallengeDuration,
		channel.CalcNonce([channel.NumParts]channel.NonceShare{msg.NonceShare, share}),
		msg.App,
	)
	if err != nil {
		return out, err
	}
	state, err := channel.NewInitialState(params, msg.InitAlloc, msg.Data, msg.InitAlloc.Sum())
	if err != nil {
		return out, err
	}
	ss := channel.NewSignedState(state)
	sig, err := ss.Sign(params, 1, c.signer)
	if err != nil {
		return out, err
	}

	m := &machine{
		phase:      Funding,
		peer:       sender,
		idx:        1,
		proposalID: msg.ProposalID,
		params:     params,
		current:    ss,
	}
	c.channels[params.ID()] = m

	if _, err := channel.SignWithdrawalAuth(c.signer, c.auths, params, state, c.receiver); err != nil {
		return out, err
	}

	payload, err := c.envelope(sender, &wire.ProposalAccMsg{
		ProposalID:  msg.ProposalID,
		NonceShare:  share,
		Participant: c.signer.Address(),
		InitialSig:  sig,
	})
	if err != nil {
		return out, err
	}
	out.peer(payload)

	fund, err := c.remote.Fund(params, state, 1, state.Allocation.Clone())
	if err != nil {
		return out, err
	}
	out.remote(fund)
	zap.L().Info("accepted proposal",
		zap.String("channel", params.ID().Hex()),
		zap.String("peer", sender.String()))
	return out, nil
}

// handleProposalAcc finalizes a proposed channel: combine nonce shares,
// derive the channel id, collect both initial signatures, request funding.
func (c *Client) handleProposalAcc(msg *wire.ProposalAccMsg) (Output, error) {
	var out Output
	m, ok := c.proposals[msg.ProposalID]
	if !ok {
		return out, errs.New(errs.UnknownChannel, "no proposal %s", common.Hash(msg.ProposalID).Hex())
	}
	if err := m.requirePhase(Proposing); err != nil {
		return out, err
	}

	params, err := channel.NewParams(
		[channel.NumParts]common.Address{c.signer.Address(), msg.Participant},
		m.draft.challengeDuration,
		channel.CalcNonce([channel.NumParts]channel.NonceShare{m.draft.nonceShare, msg.NonceShare}),
		m.draft.app,
	)
	if err != nil {
		return out, err
	}
	state, err := channel.NewInitialState(params, m.draft.initAlloc, m.draft.data, m.draft.initAlloc.Sum())
	if err != nil {
		return out, err
	}
	ss := channel.NewSignedState(state)
	if err := ss.AddSig(params, 1, msg.InitialSig); err != nil {
		return out, err
	}
	if _, err := ss.Sign(params, 0, c.signer); err != nil {
		return out, err
	}

	m.params = params
	m.current = ss
	m.draft = nil
	m.phase = Funding
	delete(c.proposals, msg.ProposalID)
	c.channels[params.ID()] = m

	if _, err := channel.SignWithdrawalAuth(c.signer, c.auths, params, state, c.receiver); err != nil {
		return out, err
	}

	fund, err := c.remote.Fund(params, state, 0, state.Allocation.Clone())
	if err != nil {
		return out, err
	}
	out.remote(fund)
	zap.L().Info("proposal accepted",
		zap.String("channel", params.ID().Hex()),
		zap.Uint64("version", state.Version))
	return out, nil
}

func (c *Client) handleProposalRej(msg *wire.ProposalRejMsg) (Output, error) {
	var out Output
	m, ok := c.proposals[msg.ProposalID]
	if !ok {
		return out, errs.New(errs.UnknownChannel, "no proposal %s", common.Hash(msg.ProposalID).Hex())
	}
	m.phase = Failed
	delete(c.proposals, msg.ProposalID)
	out.event(&ProposalRejectedEvent{ProposalID: msg.ProposalID, Reason: msg.Reason})
	zap.L().Info("proposal rejected by peer", zap.String("reason", msg.Reason))
	return out, nil
}

// lookup returns the machine owning id.
func (c *Client) lookup(id channel.ID) (*machine, error) {
	m, ok := c.channels[id]
	if !ok {
		return nil, errs.New(errs.UnknownChannel, "no channel %s", id.Hex())
	}
	return m, nil
}

// envelope wraps msg for the peer connection.
func (c *Client) envelope(peer wire.Address, msg wire.Msg) ([]byte, error) {
	return wire.MarshalEnvelope(&wire.Envelope{Sender: c.identity, Recipient: peer, Msg: msg})
}

// reject builds a ChannelUpdateRejMsg to the machine's peer.
func (c *Client) reject(m *machine, version uint64, reason string) ([]byte, error) {
	return c.envelope(m.peer, &wire.ChannelUpdateRejMsg{ChannelID: m.id(), Version: version, Reason: reason})
}

// handleUpdate validates an inbound update proposal against the protocol
// rules and the host policy, then answers with acceptance or rejection.
func (c *Client) handleUpdate(sender wire.Address, msg *wire.ChannelUpdateMsg) (Output, error) {
	var out Output
	m, err := c.lookup(msg.Proposed.ID)
	if err != nil {
		return out, err
	}
	if err := m.requirePhase(Active); err != nil {
		return out, err
	}
	if msg.ActorIdx == m.idx {
		return out, errs.New(errs.InvalidMessage, "update claims this participant as actor")
	}

	// Concurrent proposals for the same version: lower index wins.
	if m.pending != nil && m.pending.state.Version == msg.Proposed.Version {
		if m.idx < msg.ActorIdx {
			payload, err := c.reject(m, msg.Proposed.Version, "lost tie-break to lower index")
			if err != nil {
				return out, err
			}
			out.peer(payload)
			return out, nil
		}
		// Peer wins; our pending proposal is implicitly rejected.
		out.event(&UpdateRejectedEvent{ID: m.id(), Version: m.pending.state.Version, Reason: "superseded by lower index"})
		m.pending = nil
	}

	if err := channel.ValidTransition(m.params, m.current.State, msg.Proposed); err != nil {
		payload, perr := c.reject(m, msg.Proposed.Version, errs.KindOf(err).String())
		if perr != nil {
			return out, perr
		}
		out.peer(payload)
		zap.L().Warn("rejected update", zap.Error(err))
		return out, nil
	}
	if err := wallet.VerifySignature(msg.Proposed.Hash(), msg.Sig, m.params.Participants[msg.ActorIdx]); err != nil {
		payload, perr := c.reject(m, msg.Proposed.Version, errs.InvalidSignature.String())
		if perr != nil {
			return out, perr
		}
		out.peer(payload)
		return out, nil
	}
	if ok, reason := c.updatePolicy(m.current.State, msg.Proposed, m.idx); !ok {
		payload, err := c.reject(m, msg.Proposed.Version, reason)
		if err != nil {
			return out, err
		}
		out.peer(payload)
		return out, nil
	}

	ss := channel.NewSignedState(msg.Proposed)
	if err := ss.AddSig(m.params, msg.ActorIdx, msg.Sig); err != nil {
		return out, err
	}
	sig, err := ss.Sign(m.params, m.idx, c.signer)
	if err != nil {
		return out, err
	}
	m.installState(ss)
	if _, err := channel.SignWithdrawalAuth(c.signer, c.auths, m.params, ss.State, c.receiver); err != nil {
		return out, err
	}

	payload, err := c.envelope(sender, &wire.ChannelUpdateAccMsg{
		ChannelID: m.id(),
		Version:   msg.Proposed.Version,
		Sig:       sig,
	})
	if err != nil {
		return out, err
	}
	out.peer(payload)
	out.event(&UpdatedEvent{ID: m.id(), Version: msg.Proposed.Version})
	out.merge(c.afterInstall(m))
	return out, nil
}

// afterInstall applies finalization semantics after a new two-signature
// state is in place.
func (c *Client) afterInstall(m *machine) Output {
	var out Output
	if m.current.State.IsFinal && m.phase != Finalized {
		m.phase = Finalized
		// A mutually-signed final state pre-empts any pending force close.
		if m.forceClosePending {
			c.remote.Cancel(remote.TypeForceCloseResp)
			m.forceClosePending = false
		}
		out.event(&FinalizedEvent{ID: m.id(), Version: m.current.State.Version})
		zap.L().Info("channel finalized",
			zap.String("channel", m.id().Hex()),
			zap.Uint64("version", m.current.State.Version))
	}
	return out
}

func (c *Client) handleUpdateAcc(msg *wire.ChannelUpdateAccMsg) (Output, error) {
	var out Output
	m, err := c.lookup(msg.ChannelID)
	if err != nil {
		return out, err
	}
	if err := m.requirePhase(Active); err != nil {
		return out, err
	}
	if m.pending == nil || m.pending.state.Version != msg.Version {
		return out, errs.New(errs.OutdatedVersion, "no pending update at version %d", msg.Version)
	}

	ss := channel.NewSignedState(m.pending.state)
	if err := ss.AddSig(m.params, 1-m.idx, msg.Sig); err != nil {
		return out, err
	}
	ss.Sigs[m.idx] = m.pending.sig
	m.installState(ss)
	if _, err := channel.SignWithdrawalAuth(c.signer, c.auths, m.params, ss.State, c.receiver); err != nil {
		return out, err
	}

	out.event(&UpdatedEvent{ID: m.id(), Version: msg.Version})
	out.merge(c.afterInstall(m))
	return out, nil
}

func (c *Client) handleUpdateRej(msg *wire.ChannelUpdateRejMsg) (Output, error) {
	var out Output
	m, err := c.lookup(msg.ChannelID)
	if err != nil {
		return out, err
	}
	if m.pending == nil || m.pending.state.Version != msg.Version {
		zap.L().Warn("rejection for unknown update", zap.Uint64("version", msg.Version))
		return out, nil
	}
	m.pending = nil
	out.event(&UpdateRejectedEvent{ID: m.id(), Version: msg.Version, Reason: msg.Reason})
	return out, nil
}

// handleSync converges two views of a channel after a reconnect. The newer
// fully-signed state wins; otherwise the machine answers with its own view
// when that view is newer or carries signatures the requester lacks.
func (c *Client) handleSync(msg *wire.ChannelSyncMsg) (Output, error) {
	var out Output
	theirs := msg.Current
	m, err := c.lookup(theirs.State.ID)
	if err != nil {
		return out, err
	}
	if m.phase.Terminal() {
		return out, errs.New(errs.PhaseViolation, "sync on %s channel", m.phase)
	}
	if err := theirs.Verify(m.params, false); err != nil {
		return out, err
	}

	ours := m.current
	adopt := theirs.Complete() &&
		(theirs.State.Version > ours.State.Version ||
			(theirs.State.Version == ours.State.Version && !ours.Complete()))
	if adopt {
		m.installState(theirs.Clone())
		if _, err := channel.SignWithdrawalAuth(c.signer, c.auths, m.params, theirs.State, c.receiver); err != nil {
			return out, err
		}
		out.event(&UpdatedEvent{ID: m.id(), Version: theirs.State.Version})
		out.merge(c.afterInstall(m))
		out.merge(c.startWatchingIfReady(m))
		return out, nil
	}

	// Reply only when we hold something the requester lacks: a newer
	// version, or the missing signatures at the same version. Equal version
	// with matching completeness is deliberately a no-op — both views agree,
	// and answering would have two in-sync peers echo syncs at each other
	// indefinitely.
	if ours.State.Version > theirs.State.Version || (ours.Complete() && !theirs.Complete()) {
		payload, err := c.envelope(m.peer, &wire.ChannelSyncMsg{Current: ours.Clone()})
		if err != nil {
			return out, err
		}
		out.peer(payload)
	}
	return out, nil
}

// Sync emits a ChannelSyncMsg carrying this client's current view, used
// after a reconnect.
func (c *Client) Sync(id channel.ID) (Output, error) {
	var out Output
	m, err := c.lookup(id)
	if err != nil {
		return out, err
	}
	if m.current == nil || m.phase.Terminal() {
		return out, errs.New(errs.PhaseViolation, "nothing to sync in phase %s", m.phase)
	}
	payload, err := c.envelope(m.peer, &wire.ChannelSyncMsg{Current: m.current.Clone()})
	if err != nil {
		return out, err
	}
	out.peer(payload)
	return out, nil
}

// ProposeUpdate derives the successor state with mutate and sends it to the
// peer for signing. One update may be in flight per channel.
func (c *Client) ProposeUpdate(id channel.ID, mutate func(*channel.State) (*channel.State, error)) (Output, error) {
	var out Output
	m, err := c.lookup(id)
	if err != nil {
		return out, err
	}
	if err := m.requirePhase(Active); err != nil {
		return out, err
	}
	if m.pending != nil {
		return out, errs.New(errs.PhaseViolation, "update at version %d already in flight", m.pending.state.Version)
	}

	next, err := mutate(m.current.State.Clone())
	if err != nil {
		return out, err
	}
	if err := channel.ValidTransition(m.params, m.current.State, next); err != nil {
		return out, err
	}
	sig, err := c.signer.SignHash(next.Hash())
	if err != nil {
		return out, err
	}
	m.pending = &pendingUpdate{state: next, sig: sig}

	payload, err := c.envelope(m.peer, &wire.ChannelUpdateMsg{Proposed: next, ActorIdx: m.idx, Sig: sig})
	if err != nil {
		m.pending = nil
		return out, err
	}
	out.peer(payload)
	return out, nil
}

// Transfer proposes an update paying amount from this participant to the
// peer.
func (c *Client) Transfer(id channel.ID, amount *big.Int) (Output, error) {
	m, err := c.lookup(id)
	if err != nil {
		return Output{}, err
	}
	return c.ProposeUpdate(id, func(s *channel.State) (*channel.State, error) {
		return s.Transfer(m.idx, amount)
	})
}

// Finalize proposes the closing update: the current balances marked final.
func (c *Client) Finalize(id channel.ID) (Output, error) {
	return c.ProposeUpdate(id, func(s *channel.State) (*channel.State, error) {
		return s.Finalize()
	})
}

// ForceClose instructs the watcher to dispute with the latest
// mutually-signed state.
func (c *Client) ForceClose(id channel.ID) (Output, error) {
	var out Output
	m, err := c.lookup(id)
	if err != nil {
		return out, err
	}
	if err := m.requirePhase(Active, Finalized, Disputing); err != nil {
		return out, err
	}
	if !m.current.Complete() {
		return out, errs.New(errs.InvalidSignature, "latest state is not mutually signed")
	}
	payload, err := c.remote.ForceClose(id, m.current.Clone())
	if err != nil {
		return out, err
	}
	m.forceClosePending = true
	out.remote(payload)
	return out, nil
}

// startWatchingIfReady hands the fully-signed state to the watcher once the
// channel is active and both signatures are present.
func (c *Client) startWatchingIfReady(m *machine) Output {
	var out Output
	if m.phase != Active || !m.current.Complete() {
		return out
	}
	payload, err := c.remote.StartWatching(m.params, m.current.Clone())
	if err != nil {
		zap.L().Error("starting watch failed", zap.Error(err))
		return out
	}
	out.remote(payload)
	return out
}

// HandleRemote consumes one inbound frame payload from the remote-service
// connection.
func (c *Client) HandleRemote(payload []byte) (Output, error) {
	ev, err := c.remote.HandleInbound(payload)
	if err != nil {
		return Output{}, err
	}
	if ev == nil {
		return Output{}, nil
	}
	return c.OnRemoteEvent(ev)
}

// OnRemoteEvent applies one funder/watcher event to the owning machine.
func (c *Client) OnRemoteEvent(ev remote.Event) (Output, error) {
	var out Output
	switch e := ev.(type) {
	case *remote.FundingCompleteEvent:
		m, err := c.lookup(e.ID)
		if err != nil {
			return out, err
		}
		if err := m.requirePhase(Funding); err != nil {
			return out, err
		}
		if e.Err != nil {
			m.phase = Failed
			out.event(&FailedEvent{ID: e.ID, Err: e.Err.AsError()})
			return out, nil
		}
		m.phase = Active
		out.event(&OpenedEvent{ID: e.ID})
		if m.current.Complete() {
			out.merge(c.startWatchingIfReady(m))
		} else {
			// The acceptor holds only its own initial signature; converge via
			// channel sync before watching.
			sync, err := c.envelope(m.peer, &wire.ChannelSyncMsg{Current: m.current.Clone()})
			if err != nil {
				return out, err
			}
			out.peer(sync)
		}
		return out, nil

	case *remote.DisputeEvent:
		m, err := c.lookup(e.ID)
		if err != nil {
			return out, err
		}
		if m.phase.Terminal() {
			return out, errs.New(errs.PhaseViolation, "dispute on %s channel", m.phase)
		}
		if m.phase != Disputing {
			m.phase = Disputing
			out.event(&DisputedEvent{ID: e.ID, Version: e.Version})
		}
		// Answer with our latest mutually-signed state so the watcher can
		// refute a stale registration.
		if m.current != nil && m.current.Complete() {
			payload, err := c.remote.ForceClose(e.ID, m.current.Clone())
			if err != nil {
				return out, err
			}
			m.forceClosePending = true
			out.remote(payload)
		}
		return out, nil

	case *remote.ForceCloseDoneEvent:
		m, err := c.lookup(e.ID)
		if err != nil {
			return out, err
		}
		m.forceClosePending = false
		if e.Err != nil || !e.Success {
			reason := "force close failed"
			if e.Err != nil {
				reason = e.Err.Error()
			}
			out.event(&RemoteErrorEvent{ID: e.ID, Err: errs.New(errs.RemoteError, "%s", reason)})
			return out, nil
		}
		if m.phase == Active {
			m.phase = Disputing
			out.event(&DisputedEvent{ID: e.ID, Version: m.version()})
		}
		return out, nil

	case *remote.ChannelRegisteredEvent:
		m, err := c.lookup(e.ID)
		if err != nil {
			return out, err
		}
		if m.phase == Active {
			m.phase = Disputing
			out.event(&DisputedEvent{ID: e.ID, Version: e.Version})
		}
		return out, nil

	case *remote.ChannelProgressedEvent:
		// Informational; the watcher already reacts on-chain.
		zap.L().Debug("channel progressed on-chain",
			zap.String("channel", e.ID.Hex()), zap.Uint64("version", e.Version))
		return out, nil

	case *remote.ChannelConcludedEvent:
		m, err := c.lookup(e.ID)
		if err != nil {
			return out, err
		}
		if err := m.requirePhase(Finalized, Disputing); err != nil {
			return out, err
		}
		m.phase = Withdrawn
		out.event(&WithdrawnEvent{ID: e.ID})
		stop, err := c.remote.StopWatching(e.ID)
		if err != nil {
			return out, err
		}
		out.remote(stop)
		return out, nil

	case *remote.WatchStoppedEvent:
		return out, nil

	case *remote.WatchFailedEvent:
		out.event(&RemoteErrorEvent{ID: e.ID, Err: e.Err.AsError()})
		return out, nil

	case *remote.ServiceErrorEvent:
		out.event(&RemoteErrorEvent{Err: e.Err.AsError()})
		return out, nil

	default:
		return out, errs.New(errs.Internal, "unhandled remote event %T", ev)
	}
}

// Timeout applies the phase's timeout rule to a channel: Funding fails the
// machine, a pending Active update reverts, Disputing reports the error.
func (c *Client) Timeout(id channel.ID) (Output, error) {
	var out Output
	m, err := c.lookup(id)
	if err != nil {
		return out, err
	}
	switch m.phase {
	case Funding:
		m.phase = Failed
		c.remote.Cancel(remote.TypeFundResp)
		out.event(&FailedEvent{ID: id, Err: errs.New(errs.Timeout, "funding timed out")})
	case Active:
		if m.pending != nil {
			version := m.pending.state.Version
			m.pending = nil
			out.event(&UpdateRejectedEvent{ID: id, Version: version, Reason: errs.Timeout.String()})
		}
	case Disputing:
		out.event(&RemoteErrorEvent{ID: id, Err: errs.New(errs.Timeout, "dispute resolution timed out")})
	default:
		return out, errs.New(errs.PhaseViolation, "no timeout rule in phase %s", m.phase)
	}
	return out, nil
}

// TimeoutProposal fails a proposal whose answer never arrived.
func (c *Client) TimeoutProposal(pid wire.ProposalID) (Output, error) {
	var out Output
	m, ok := c.proposals[pid]
	if !ok {
		return out, errs.New(errs.UnknownChannel, "no proposal %s", common.Hash(pid).Hex())
	}
	m.phase = Failed
	delete(c.proposals, pid)
	out.event(&FailedEvent{ProposalID: pid, Err: errs.New(errs.Timeout, "proposal timed out")})
	return out, nil
}

// ChannelInfo is a host-facing snapshot of one machine.
type ChannelInfo struct {
	ID       channel.ID
	Phase    Phase
	Idx      uint16
	Version  uint64
	Balances [channel.NumParts]*big.Int
	IsFinal  bool
}

// Channel returns a snapshot of the machine owning id.
func (c *Client) Channel(id channel.ID) (ChannelInfo, error) {
	m, err := c.lookup(id)
	if err != nil {
		return ChannelInfo{}, err
	}
	return snapshot(m), nil
}

// Channels lists snapshots of all machines with a derived channel id.
func (c *Client) Channels() []ChannelInfo {
	infos := make([]ChannelInfo, 0, len(c.channels))
	for _, m := range c.channels {
		infos = append(infos, snapshot(m))
	}
	return infos
}

func snapshot(m *machine) ChannelInfo {
	info := ChannelInfo{
		ID:    m.id(),
		Phase: m.phase,
		Idx:   m.idx,
	}
	if m.current != nil {
		info.Version = m.current.State.Version
		info.IsFinal = m.current.State.IsFinal
		info.Balances = [channel.NumParts]*big.Int{
			new(big.Int).Set(m.current.State.Allocation.Balances[0]),
			new(big.Int).Set(m.current.State.Allocation.Balances[1]),
		}
	}
	return info
}
