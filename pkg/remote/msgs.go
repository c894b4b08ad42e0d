package remote

import (
	"google.golang.org/protobuf/encoding/protowire"

	"github.com/perun-network/perun-client-go/internal/pb"
	"github.com/perun-network/perun-client-go/pkg/channel"
	"github.com/perun-network/perun-client-go/pkg/errs"
	"github.com/perun-network/perun-client-go/pkg/wallet"
	"github.com/perun-network/perun-client-go/pkg/wire"
)

// MsgType discriminates the remote-service message union. The values double
// as the Message oneof field numbers.
type MsgType uint8

// Remote-service message types. Tags 3–6 belong to the deprecated one-shot
// register/withdraw flow and are decoded only to be rejected.
const (
	TypeFundReq MsgType = iota + 1
	TypeFundResp
	TypeRegisterReq
	TypeRegisterResp
	TypeWithdrawReq
	TypeWithdrawResp
	TypeStartWatchingReq
	TypeStartWatchingResp
	TypeStopWatchingReq
	TypeStopWatchingResp
	TypeForceCloseReq
	TypeForceCloseResp
	TypeDisputeNotification
	TypeError
)

// String returns the message name used in logs.
func (t MsgType) String() string {
	switch t {
	case TypeFundReq:
		return "FundReq"
	case TypeFundResp:
		return "FundResp"
	case TypeRegisterReq:
		return "RegisterReq"
	case TypeRegisterResp:
		return "RegisterResp"
	case TypeWithdrawReq:
		return "WithdrawReq"
	case TypeWithdrawResp:
		return "WithdrawResp"
	case TypeStartWatchingReq:
		return "StartWatchingLedgerChannelReq"
	case TypeStartWatchingResp:
		return "StartWatchingLedgerChannelResp"
	case TypeStopWatchingReq:
		return "StopWatchingReq"
	case TypeStopWatchingResp:
		return "StopWatchingResp"
	case TypeForceCloseReq:
		return "ForceCloseRequestMsg"
	case TypeForceCloseResp:
		return "ForceCloseResponseMsg"
	case TypeDisputeNotification:
		return "DisputeNotification"
	case TypeError:
		return "MsgError"
	default:
		return "UnknownMsg"
	}
}

// Msg is one remote-service protocol message.
type Msg interface {
	Type() MsgType
}

// FundReq asks the funder to deposit this participant's share on-chain.
type FundReq struct {
	Params    *channel.Params
	State     *channel.State
	Idx       uint16
	Agreement *channel.Allocation
}

func (*FundReq) Type() MsgType { return TypeFundReq }

// FundResp reports funding completion; a nil Error means success.
type FundResp struct {
	Error *errs.MsgError
}

func (*FundResp) Type() MsgType { return TypeFundResp }

// StartWatchingReq hands the watcher the fully-signed initial state.
type StartWatchingReq struct {
	Params *channel.Params
	State  *channel.State
	Sigs   [channel.NumParts]wallet.Sig
}

func (*StartWatchingReq) Type() MsgType { return TypeStartWatchingReq }

// StartWatchingResp is one element of the watcher's response stream.
// Exactly one member is set.
type StartWatchingResp struct {
	Registered *RegisteredEvent
	Progressed *ProgressedEvent
	Concluded  *ConcludedEvent
	Error      *errs.MsgError
}

func (*StartWatchingResp) Type() MsgType { return TypeStartWatchingResp }

// RegisteredEvent reports an on-chain state registration.
type RegisteredEvent struct {
	ChannelID channel.ID
	Version   uint64
}

// ProgressedEvent reports an on-chain state replacement.
type ProgressedEvent struct {
	ChannelID channel.ID
	Version   uint64
}

// ConcludedEvent reports settlement of the channel outcome.
type ConcludedEvent struct {
	ChannelID channel.ID
}

// StopWatchingReq releases watcher resources for a channel.
type StopWatchingReq struct {
	ChannelID channel.ID
}

func (*StopWatchingReq) Type() MsgType { return TypeStopWatchingReq }

// StopWatchingResp acknowledges StopWatchingReq; a nil Error means success.
type StopWatchingResp struct {
	Error *errs.MsgError
}

func (*StopWatchingResp) Type() MsgType { return TypeStopWatchingResp }

// ForceCloseReq instructs the watcher to dispute with the latest
// mutually-signed state.
type ForceCloseReq struct {
	ChannelID channel.ID
	Latest    *channel.SignedState
}

func (*ForceCloseReq) Type() MsgType { return TypeForceCloseReq }

// ForceCloseResp reports the dispute submission outcome.
type ForceCloseResp struct {
	Success bool
	Error   *errs.MsgError
}

func (*ForceCloseResp) Type() MsgType { return TypeForceCloseResp }

// DisputeNotification reports a registration by the other party.
type DisputeNotification struct {
	ChannelID channel.ID
	Version   uint64
}

func (*DisputeNotification) Type() MsgType { return TypeDisputeNotification }

// ErrorMsg transports a bare error envelope from the service.
type ErrorMsg struct {
	Err *errs.MsgError
}

func (*ErrorMsg) Type() MsgType { return TypeError }

// Marshal encodes one message wrapped in the top-level Message union.
func Marshal(msg Msg) ([]byte, error) {
	inner, err := marshalMsg(msg)
	if err != nil {
		return nil, err
	}
	var b []byte
	b = protowire.AppendTag(b, protowire.Number(msg.Type()), protowire.BytesType)
	b = protowire.AppendBytes(b, inner)
	return b, nil
}

// Unmarshal decodes one top-level Message union payload.
func Unmarshal(data []byte) (Msg, error) {
	var msg Msg
	err := pb.WalkFields(data, func(num protowire.Number, payload []byte, _ uint64) error {
		if msg != nil {
			return errs.New(errs.InvalidMessage, "message union carries more than one member")
		}
		m, err := unmarshalMsg(MsgType(num), payload)
		if err != nil {
			return err
		}
		msg = m
		return nil
	})
	if err != nil {
		return nil, err
	}
	if msg == nil {
		return nil, errs.New(errs.InvalidMessage, "empty message union")
	}
	return msg, nil
}

func marshalMsg(msg Msg) ([]byte, error) {
	switch m := msg.(type) {
	case *FundReq:
		var b []byte
		b = pb.AppendMessageField(b, 1, wire.MarshalParams(m.Params))
		b = pb.AppendMessageField(b, 2, wire.MarshalState(m.State))
		b = pb.AppendUintField(b, 3, uint64(m.Idx))
		b = pb.AppendMessageField(b, 4, wire.MarshalAllocation(m.Agreement))
		return b, nil
	case *FundResp:
		var b []byte
		if m.Error != nil {
			b = pb.AppendMessageField(b, 1, wire.MarshalMsgError(m.Error))
		}
		return b, nil
	case *StartWatchingReq:
		var b []byte
		b = pb.AppendMessageField(b, 1, wire.MarshalParams(m.Params))
		b = pb.AppendMessageField(b, 2, wire.MarshalState(m.State))
		for _, sig := range m.Sigs {
			b = pb.AppendBytesEntry(b, 3, sig)
		}
		return b, nil
	case *StartWatchingResp:
		var b []byte
		switch {
		case m.Registered != nil:
			b = pb.AppendMessageField(b, 1, marshalChannelEvent(m.Registered.ChannelID, m.Registered.Version))
		case m.Progressed != nil:
			b = pb.AppendMessageField(b, 2, marshalChannelEvent(m.Progressed.ChannelID, m.Progressed.Version))
		case m.Concluded != nil:
			b = pb.AppendMessageField(b, 3, marshalChannelEvent(m.Concluded.ChannelID, 0))
		case m.Error != nil:
			b = pb.AppendMessageField(b, 4, wire.MarshalMsgError(m.Error))
		default:
			return nil, errs.New(errs.Internal, "empty watch response")
		}
		return b, nil
	case *StopWatchingReq:
		return pb.AppendBytesField(nil, 1, m.ChannelID[:]), nil
	case *StopWatchingResp:
		var b []byte
		if m.Error != nil {
			b = pb.AppendMessageField(b, 1, wire.MarshalMsgError(m.Error))
		}
		return b, nil
	case *ForceCloseReq:
		var b []byte
		b = pb.AppendBytesField(b, 1, m.ChannelID[:])
		b = pb.AppendMessageField(b, 2, wire.MarshalSignedState(m.Latest))
		return b, nil
	case *ForceCloseResp:
		var b []byte
		b = pb.AppendBoolField(b, 1, m.Success)
		if m.Error != nil {
			b = pb.AppendMessageField(b, 2, wire.MarshalMsgError(m.Error))
		}
		return b, nil
	case *DisputeNotification:
		return marshalChannelEvent(m.ChannelID, m.Version), nil
	case *ErrorMsg:
		return wire.MarshalMsgError(m.Err), nil
	default:
		return nil, errs.New(errs.Internal, "unknown message type %T", msg)
	}
}

func marshalChannelEvent(id channel.ID, version uint64) []byte {
	var b []byte
	b = pb.AppendBytesField(b, 1, id[:])
	b = pb.AppendUintField(b, 2, version)
	return b
}

func unmarshalChannelEvent(data []byte) (channel.ID, uint64, error) {
	var id channel.ID
	var version uint64
	err := pb.WalkFields(data, func(num protowire.Number, payload []byte, uval uint64) error {
		switch num {
		case 1:
			return pb.FixedBytes(id[:], payload, "channel id")
		case 2:
			version = uval
		}
		return nil
	})
	return id, version, err
}

func unmarshalMsg(typ MsgType, data []byte) (Msg, error) {
	switch typ {
	case TypeFundReq:
		return unmarshalFundReq(data)
	case TypeFundResp:
		e, err := unmarshalOptionalError(data)
		if err != nil {
			return nil, err
		}
		return &FundResp{Error: e}, nil
	case TypeRegisterReq, TypeRegisterResp, TypeWithdrawReq, TypeWithdrawResp:
		return nil, errs.New(errs.InvalidMessage, "deprecated message %s", typ)
	case TypeStartWatchingReq:
		return unmarshalStartWatchingReq(data)
	case TypeStartWatchingResp:
		return unmarshalStartWatchingResp(data)
	case TypeStopWatchingReq:
		id, _, err := unmarshalChannelEvent(data)
		if err != nil {
			return nil, err
		}
		return &StopWatchingReq{ChannelID: id}, nil
	case TypeStopWatchingResp:
		e, err := unmarshalOptionalError(data)
		if err != nil {
			return nil, err
		}
		return &StopWatchingResp{Error: e}, nil
	case TypeForceCloseReq:
		return unmarshalForceCloseReq(data)
	case TypeForceCloseResp:
		return unmarshalForceCloseResp(data)
	case TypeDisputeNotification:
		id, version, err := unmarshalChannelEvent(data)
		if err != nil {
			return nil, err
		}
		return &DisputeNotification{ChannelID: id, Version: version}, nil
	case TypeError:
		e, err := wire.UnmarshalMsgError(data)
		if err != nil {
			return nil, err
		}
		return &ErrorMsg{Err: e}, nil
	default:
		return nil, errs.New(errs.InvalidMessage, "unknown message union field %d", typ)
	}
}

func unmarshalOptionalError(data []byte) (*errs.MsgError, error) {
	var e *errs.MsgError
	err := pb.WalkFields(data, func(num protowire.Number, payload []byte, _ uint64) error {
		if num == 1 {
			m, err := wire.UnmarshalMsgError(payload)
			if err != nil {
				return err
			}
			e = m
		}
		return nil
	})
	return e, err
}

func unmarshalFundReq(data []byte) (*FundReq, error) {
	var m FundReq
	err := pb.WalkFields(data, func(num protowire.Number, payload []byte, uval uint64) error {
		switch num {
		case 1:
			p, err := wire.UnmarshalParams(payload)
			if err != nil {
				return err
			}
			m.Params = p
		case 2:
			s, err := wire.UnmarshalState(payload)
			if err != nil {
				return err
			}
			m.State = s
		case 3:
			if uval >= channel.NumParts {
				return errs.New(errs.InvalidMessage, "participant index %d out of range", uval)
			}
			m.Idx = uint16(uval)
		case 4:
			a, err := wire.UnmarshalAllocation(payload)
			if err != nil {
				return err
			}
			m.Agreement = a
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if m.Params == nil || m.State == nil || m.Agreement == nil {
		return nil, errs.New(errs.InvalidMessage, "fund request misses params, state or agreement")
	}
	return &m, nil
}

func unmarshalStartWatchingReq(data []byte) (*StartWatchingReq, error) {
	var m StartWatchingReq
	nsigs := 0
	err := pb.WalkFields(data, func(num protowire.Number, payload []byte, _ uint64) error {
		switch num {
		case 1:
			p, err := wire.UnmarshalParams(payload)
			if err != nil {
				return err
			}
			m.Params = p
		case 2:
			s, err := wire.UnmarshalState(payload)
			if err != nil {
				return err
			}
			m.State = s
		case 3:
			if nsigs >= channel.NumParts {
				return errs.New(errs.InvalidMessage, "more than %d signatures", channel.NumParts)
			}
			if len(payload) != wallet.SigLen {
				return errs.New(errs.InvalidMessage, "signature is %d bytes, want %d", len(payload), wallet.SigLen)
			}
			m.Sigs[nsigs] = append(wallet.Sig{}, payload...)
			nsigs++
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if m.Params == nil || m.State == nil || nsigs != channel.NumParts {
		return nil, errs.New(errs.InvalidMessage, "watch request misses params, state or signatures")
	}
	return &m, nil
}

func unmarshalStartWatchingResp(data []byte) (*StartWatchingResp, error) {
	var m StartWatchingResp
	members := 0
	err := pb.WalkFields(data, func(num protowire.Number, payload []byte, _ uint64) error {
		members++
		switch num {
		case 1:
			id, v, err := unmarshalChannelEvent(payload)
			if err != nil {
				return err
			}
			m.Registered = &RegisteredEvent{ChannelID: id, Version: v}
		case 2:
			id, v, err := unmarshalChannelEvent(payload)
			if err != nil {
				return err
			}
			m.Progressed = &ProgressedEvent{ChannelID: id, Version: v}
		case 3:
			id, _, err := unmarshalChannelEvent(payload)
			if err != nil {
				return err
			}
			m.Concluded = &ConcludedEvent{ChannelID: id}
		case 4:
			e, err := wire.UnmarshalMsgError(payload)
			if err != nil {
				return err
			}
			m.Error = e
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if members != 1 {
		return nil, errs.New(errs.InvalidMessage, "watch response carries %d members, want 1", members)
	}
	return &m, nil
}

func unmarshalForceCloseReq(data []byte) (*ForceCloseReq, error) {
	var m ForceCloseReq
	err := pb.WalkFields(data, func(num protowire.Number, payload []byte, _ uint64) error {
		switch num {
		case 1:
			return pb.FixedBytes(m.ChannelID[:], payload, "channel id")
		case 2:
			ss, err := wire.UnmarshalSignedState(payload)
			if err != nil {
				return err
			}
			m.Latest = ss
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if m.Latest == nil {
		return nil, errs.New(errs.InvalidMessage, "force close request carries no state")
	}
	return &m, nil
}

func unmarshalForceCloseResp(data []byte) (*ForceCloseResp, error) {
	var m ForceCloseResp
	err := pb.WalkFields(data, func(num protowire.Number, payload []byte, uval uint64) error {
		switch num {
		case 1:
			m.Success = uval != 0
		case 2:
			e, err := wire.UnmarshalMsgError(payload)
			if err != nil {
				return err
			}
			m.Error = e
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &m, nil
}
