package remote

import (
	"go.uber.org/zap"

	"github.com/perun-network/perun-client-go/pkg/channel"
	"github.com/perun-network/perun-client-go/pkg/errs"
	"github.com/perun-network/perun-client-go/pkg/wallet"
)

// Event is the host-facing result of one inbound service message.
type Event interface {
	// Channel returns the channel the event belongs to; the zero ID for
	// connection-level errors.
	Channel() channel.ID
}

// FundingCompleteEvent resolves a Fund request. Err is nil on success.
type FundingCompleteEvent struct {
	ID  channel.ID
	Err *errs.MsgError
}

func (e *FundingCompleteEvent) Channel() channel.ID { return e.ID }

// ChannelRegisteredEvent surfaces an on-chain registration from the watch stream.
type ChannelRegisteredEvent struct {
	ID      channel.ID
	Version uint64
}

func (e *ChannelRegisteredEvent) Channel() channel.ID { return e.ID }

// ChannelProgressedEvent surfaces an on-chain state replacement.
type ChannelProgressedEvent struct {
	ID      channel.ID
	Version uint64
}

func (e *ChannelProgressedEvent) Channel() channel.ID { return e.ID }

// ChannelConcludedEvent surfaces outcome settlement; funds are withdrawable.
type ChannelConcludedEvent struct {
	ID channel.ID
}

func (e *ChannelConcludedEvent) Channel() channel.ID { return e.ID }

// WatchFailedEvent surfaces a watch-stream error.
type WatchFailedEvent struct {
	ID  channel.ID
	Err *errs.MsgError
}

func (e *WatchFailedEvent) Channel() channel.ID { return e.ID }

// ForceCloseDoneEvent resolves a ForceClose request.
type ForceCloseDoneEvent struct {
	ID      channel.ID
	Success bool
	Err     *errs.MsgError
}

func (e *ForceCloseDoneEvent) Channel() channel.ID { return e.ID }

// WatchStoppedEvent resolves a StopWatching request.
type WatchStoppedEvent struct {
	ID  channel.ID
	Err *errs.MsgError
}

func (e *WatchStoppedEvent) Channel() channel.ID { return e.ID }

// DisputeEvent surfaces a dispute registered by the other party.
type DisputeEvent struct {
	ID      channel.ID
	Version uint64
}

func (e *DisputeEvent) Channel() channel.ID { return e.ID }

// ServiceErrorEvent surfaces a bare error envelope from the service.
type ServiceErrorEvent struct {
	Err *errs.MsgError
}

func (e *ServiceErrorEvent) Channel() channel.ID { return channel.ID{} }

// pendingReq records one outstanding request on the connection.
type pendingReq struct {
	resp MsgType
	id   channel.ID
}

// Client is the request/response side of the funder/watcher connection. It
// is step-style and never blocks: request methods return the outbound frame
// payload, HandleInbound consumes one inbound payload and yields the
// resulting Event.
//
// Responses are correlated to requests by FIFO order, matching the service's
// in-order processing over a single connection. Watch streams and dispute
// notifications are not correlated; they may arrive at any time.
type Client struct {
	pending []pendingReq
	// watched tracks channels with an active watch stream so late stream
	// elements after StopWatching are dropped.
	watched map[channel.ID]bool
}

// NewClient creates a service client for one connection.
func NewClient() *Client {
	return &Client{watched: make(map[channel.ID]bool)}
}

// Fund builds a FundReq frame payload asking the funder to deposit
// participant idx's share of agreement for the given initial state.
func (c *Client) Fund(params *channel.Params, state *channel.State, idx uint16, agreement *channel.Allocation) ([]byte, error) {
	payload, err := Marshal(&FundReq{Params: params, State: state, Idx: idx, Agreement: agreement})
	if err != nil {
		return nil, err
	}
	c.pending = append(c.pending, pendingReq{resp: TypeFundResp, id: state.ID})
	return payload, nil
}

// StartWatching builds a StartWatchingLedgerChannelReq frame payload handing
// the watcher the fully-signed state ss. The watcher answers with a stream
// surfaced as Registered/Progressed/Concluded events.
func (c *Client) StartWatching(params *channel.Params, ss *channel.SignedState) ([]byte, error) {
	if !ss.Complete() {
		return nil, errs.New(errs.InvalidSignature, "watch requires both signatures")
	}
	var sigs [channel.NumParts]wallet.Sig
	copy(sigs[:], ss.Sigs[:])
	payload, err := Marshal(&StartWatchingReq{Params: params, State: ss.State, Sigs: sigs})
	if err != nil {
		return nil, err
	}
	c.watched[ss.State.ID] = true
	return payload, nil
}

// ForceClose builds a ForceCloseRequestMsg frame payload disputing with the
// latest mutually-signed state.
func (c *Client) ForceClose(id channel.ID, latest *channel.SignedState) ([]byte, error) {
	payload, err := Marshal(&ForceCloseReq{ChannelID: id, Latest: latest})
	if err != nil {
		return nil, err
	}
	c.pending = append(c.pending, pendingReq{resp: TypeForceCloseResp, id: id})
	return payload, nil
}

// StopWatching builds a StopWatchingReq frame payload releasing watcher
// resources for the channel.
func (c *Client) StopWatching(id channel.ID) ([]byte, error) {
	payload, err := Marshal(&StopWatchingReq{ChannelID: id})
	if err != nil {
		return nil, err
	}
	c.pending = append(c.pending, pendingReq{resp: TypeStopWatchingResp, id: id})
	delete(c.watched, id)
	return payload, nil
}

// Cancel drops the oldest outstanding request of the given response type.
// A response arriving for a cancelled request is later dropped as late.
func (c *Client) Cancel(resp MsgType) {
	for i, p := range c.pending {
		if p.resp == resp {
			c.pending = append(c.pending[:i], c.pending[i+1:]...)
			return
		}
	}
}

// HandleInbound consumes one inbound frame payload from the service
// connection and returns the resulting event, or nil when the message was
// dropped (late responses, stopped watch streams).
func (c *Client) HandleInbound(payload []byte) (Event, error) {
	msg, err := Unmarshal(payload)
	if err != nil {
		return nil, err
	}
	switch m := msg.(type) {
	case *FundResp:
		req, ok := c.popPending(TypeFundResp)
		if !ok {
			zap.L().Warn("dropping late funding response")
			return nil, nil
		}
		return &FundingCompleteEvent{ID: req.id, Err: m.Error}, nil
	case *ForceCloseResp:
		req, ok := c.popPending(TypeForceCloseResp)
		if !ok {
			zap.L().Warn("dropping late force-close response")
			return nil, nil
		}
		return &ForceCloseDoneEvent{ID: req.id, Success: m.Success, Err: m.Error}, nil
	case *StopWatchingResp:
		req, ok := c.popPending(TypeStopWatchingResp)
		if !ok {
			zap.L().Warn("dropping late stop-watching response")
			return nil, nil
		}
		return &WatchStoppedEvent{ID: req.id, Err: m.Error}, nil
	case *StartWatchingResp:
		return c.handleWatchElement(m)
	case *DisputeNotification:
		return &DisputeEvent{ID: m.ChannelID, Version: m.Version}, nil
	case *ErrorMsg:
		return &ServiceErrorEvent{Err: m.Err}, nil
	default:
		return nil, errs.New(errs.InvalidMessage, "unexpected service message %s", msg.Type())
	}
}

// popPending removes and returns the oldest outstanding request if it awaits
// the given response type.
func (c *Client) popPending(resp MsgType) (pendingReq, bool) {
	if len(c.pending) == 0 || c.pending[0].resp != resp {
		return pendingReq{}, false
	}
	req := c.pending[0]
	c.pending = c.pending[1:]
	return req, true
}

func (c *Client) handleWatchElement(m *StartWatchingResp) (Event, error) {
	switch {
	case m.Registered != nil:
		if !c.watched[m.Registered.ChannelID] {
			zap.L().Warn("dropping watch element for stopped channel", zap.String("channel", m.Registered.ChannelID.Hex()))
			return nil, nil
		}
		return &ChannelRegisteredEvent{ID: m.Registered.ChannelID, Version: m.Registered.Version}, nil
	case m.Progressed != nil:
		if !c.watched[m.Progressed.ChannelID] {
			zap.L().Warn("dropping watch element for stopped channel", zap.String("channel", m.Progressed.ChannelID.Hex()))
			return nil, nil
		}
		return &ChannelProgressedEvent{ID: m.Progressed.ChannelID, Version: m.Progressed.Version}, nil
	case m.Concluded != nil:
		if !c.watched[m.Concluded.ChannelID] {
			zap.L().Warn("dropping watch element for stopped channel", zap.String("channel", m.Concluded.ChannelID.Hex()))
			return nil, nil
		}
		delete(c.watched, m.Concluded.ChannelID)
		return &ChannelConcludedEvent{ID: m.Concluded.ChannelID}, nil
	case m.Error != nil:
		return &WatchFailedEvent{Err: m.Error}, nil
	default:
		return nil, errs.New(errs.InvalidMessage, "empty watch response")
	}
}
