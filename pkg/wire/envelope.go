package wire

import (
	"google.golang.org/protobuf/encoding/protowire"

	"github.com/perun-network/perun-client-go/internal/pb"
	"github.com/perun-network/perun-client-go/pkg/errs"
	"github.com/perun-network/perun-client-go/pkg/wallet"
)

// MarshalEnvelope encodes an envelope with its inner message union.
func MarshalEnvelope(env *Envelope) ([]byte, error) {
	if env.Msg == nil {
		return nil, errs.New(errs.Internal, "envelope carries no message")
	}
	inner, err := marshalMsg(env.Msg)
	if err != nil {
		return nil, err
	}
	var b []byte
	b = pb.AppendBytesField(b, 1, env.Sender)
	b = pb.AppendBytesField(b, 2, env.Recipient)
	b = pb.AppendMessageField(b, protowire.Number(env.Msg.Type()), inner)
	return b, nil
}

// UnmarshalEnvelope decodes an envelope. Exactly one union member must be
// present.
func UnmarshalEnvelope(data []byte) (*Envelope, error) {
	var env Envelope
	err := pb.WalkFields(data, func(num protowire.Number, payload []byte, _ uint64) error {
		switch num {
		case 1:
			env.Sender = append(Address{}, payload...)
		case 2:
			env.Recipient = append(Address{}, payload...)
		default:
			if env.Msg != nil {
				return errs.New(errs.InvalidMessage, "envelope carries more than one message")
			}
			msg, err := unmarshalMsg(MsgType(num), payload)
			if err != nil {
				return err
			}
			env.Msg = msg
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if env.Msg == nil {
		return nil, errs.New(errs.InvalidMessage, "envelope carries no message")
	}
	return &env, nil
}

func marshalMsg(msg Msg) ([]byte, error) {
	switch m := msg.(type) {
	case *ProposalMsg:
		var b []byte
		b = pb.AppendBytesField(b, 1, m.ProposalID[:])
		b = pb.AppendBytesField(b, 2, m.NonceShare[:])
		b = pb.AppendBytesField(b, 3, m.Participant[:])
		b = pb.AppendUintField(b, 4, m.ChallengeDuration)
		b = pb.AppendBytesField(b, 5, m.App[:])
		b = pb.AppendMessageField(b, 6, MarshalAllocation(m.InitAlloc))
		b = pb.AppendBytesField(b, 7, m.Data)
		return b, nil
	case *ProposalAccMsg:
		var b []byte
		b = pb.AppendBytesField(b, 1, m.ProposalID[:])
		b = pb.AppendBytesField(b, 2, m.NonceShare[:])
		b = pb.AppendBytesField(b, 3, m.Participant[:])
		b = pb.AppendBytesField(b, 4, m.InitialSig)
		return b, nil
	case *ProposalRejMsg:
		var b []byte
		b = pb.AppendBytesField(b, 1, m.ProposalID[:])
		b = pb.AppendStringField(b, 2, m.Reason)
		return b, nil
	case *ChannelUpdateMsg:
		var b []byte
		b = pb.AppendMessageField(b, 1, MarshalState(m.Proposed))
		b = pb.AppendUintField(b, 2, uint64(m.ActorIdx))
		b = pb.AppendBytesField(b, 3, m.Sig)
		return b, nil
	case *ChannelUpdateAccMsg:
		var b []byte
		b = pb.AppendBytesField(b, 1, m.ChannelID[:])
		b = pb.AppendUintField(b, 2, m.Version)
		b = pb.AppendBytesField(b, 3, m.Sig)
		return b, nil
	case *ChannelUpdateRejMsg:
		var b []byte
		b = pb.AppendBytesField(b, 1, m.ChannelID[:])
		b = pb.AppendUintField(b, 2, m.Version)
		b = pb.AppendStringField(b, 3, m.Reason)
		return b, nil
	case *ChannelSyncMsg:
		var b []byte
		b = pb.AppendMessageField(b, 1, MarshalSignedState(m.Current))
		return b, nil
	case *ErrorMsg:
		return MarshalMsgError(m.Err), nil
	default:
		return nil, errs.New(errs.Internal, "unknown message type %T", msg)
	}
}

func unmarshalMsg(typ MsgType, data []byte) (Msg, error) {
	switch typ {
	case TypeProposal:
		return unmarshalProposal(data)
	case TypeProposalAcc:
		return unmarshalProposalAcc(data)
	case TypeProposalRej:
		return unmarshalProposalRej(data)
	case TypeChannelUpdate:
		return unmarshalChannelUpdate(data)
	case TypeChannelUpdateAcc:
		return unmarshalChannelUpdateAcc(data)
	case TypeChannelUpdateRej:
		return unmarshalChannelUpdateRej(data)
	case TypeChannelSync:
		return unmarshalChannelSync(data)
	case TypeError:
		e, err := UnmarshalMsgError(data)
		if err != nil {
			return nil, err
		}
		return &ErrorMsg{Err: e}, nil
	default:
		return nil, errs.New(errs.InvalidMessage, "unknown envelope field %d", typ)
	}
}

func unmarshalProposal(data []byte) (*ProposalMsg, error) {
	var m ProposalMsg
	err := pb.WalkFields(data, func(num protowire.Number, payload []byte, uval uint64) error {
		switch num {
		case 1:
			return pb.FixedBytes(m.ProposalID[:], payload, "proposal id")
		case 2:
			return pb.FixedBytes(m.NonceShare[:], payload, "nonce share")
		case 3:
			return pb.FixedBytes(m.Participant[:], payload, "participant address")
		case 4:
			m.ChallengeDuration = uval
		case 5:
			return pb.FixedBytes(m.App[:], payload, "app address")
		case 6:
			alloc, err := UnmarshalAllocation(payload)
			if err != nil {
				return err
			}
			m.InitAlloc = alloc
		case 7:
			m.Data = append([]byte(nil), payload...)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if m.InitAlloc == nil {
		return nil, errs.New(errs.InvalidMessage, "proposal carries no initial allocation")
	}
	if m.ChallengeDuration == 0 {
		return nil, errs.New(errs.InvalidMessage, "proposal carries zero challenge duration")
	}
	return &m, nil
}

func unmarshalProposalAcc(data []byte) (*ProposalAccMsg, error) {
	var m ProposalAccMsg
	err := pb.WalkFields(data, func(num protowire.Number, payload []byte, _ uint64) error {
		switch num {
		case 1:
			return pb.FixedBytes(m.ProposalID[:], payload, "proposal id")
		case 2:
			return pb.FixedBytes(m.NonceShare[:], payload, "nonce share")
		case 3:
			return pb.FixedBytes(m.Participant[:], payload, "participant address")
		case 4:
			if len(payload) != wallet.SigLen {
				return errs.New(errs.InvalidMessage, "initial signature is %d bytes, want %d", len(payload), wallet.SigLen)
			}
			m.InitialSig = append(wallet.Sig{}, payload...)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if m.InitialSig == nil {
		return nil, errs.New(errs.InvalidMessage, "proposal acceptance carries no signature")
	}
	return &m, nil
}

func unmarshalProposalRej(data []byte) (*ProposalRejMsg, error) {
	var m ProposalRejMsg
	err := pb.WalkFields(data, func(num protowire.Number, payload []byte, _ uint64) error {
		switch num {
		case 1:
			return pb.FixedBytes(m.ProposalID[:], payload, "proposal id")
		case 2:
			m.Reason = string(payload)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func unmarshalChannelUpdate(data []byte) (*ChannelUpdateMsg, error) {
	var m ChannelUpdateMsg
	err := pb.WalkFields(data, func(num protowire.Number, payload []byte, uval uint64) error {
		switch num {
		case 1:
			state, err := UnmarshalState(payload)
			if err != nil {
				return err
			}
			m.Proposed = state
		case 2:
			if uval >= 2 {
				return errs.New(errs.InvalidMessage, "actor index %d out of range", uval)
			}
			m.ActorIdx = uint16(uval)
		case 3:
			if len(payload) != wallet.SigLen {
				return errs.New(errs.InvalidMessage, "signature is %d bytes, want %d", len(payload), wallet.SigLen)
			}
			m.Sig = append(wallet.Sig{}, payload...)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if m.Proposed == nil || m.Sig == nil {
		return nil, errs.New(errs.InvalidMessage, "channel update misses state or signature")
	}
	return &m, nil
}

func unmarshalChannelUpdateAcc(data []byte) (*ChannelUpdateAccMsg, error) {
	var m ChannelUpdateAccMsg
	err := pb.WalkFields(data, func(num protowire.Number, payload []byte, uval uint64) error {
		switch num {
		case 1:
			return pb.FixedBytes(m.ChannelID[:], payload, "channel id")
		case 2:
			m.Version = uval
		case 3:
			if len(payload) != wallet.SigLen {
				return errs.New(errs.InvalidMessage, "signature is %d bytes, want %d", len(payload), wallet.SigLen)
			}
			m.Sig = append(wallet.Sig{}, payload...)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if m.Sig == nil {
		return nil, errs.New(errs.InvalidMessage, "update acceptance carries no signature")
	}
	return &m, nil
}

func unmarshalChannelUpdateRej(data []byte) (*ChannelUpdateRejMsg, error) {
	var m ChannelUpdateRejMsg
	err := pb.WalkFields(data, func(num protowire.Number, payload []byte, uval uint64) error {
		switch num {
		case 1:
			return pb.FixedBytes(m.ChannelID[:], payload, "channel id")
		case 2:
			m.Version = uval
		case 3:
			m.Reason = string(payload)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func unmarshalChannelSync(data []byte) (*ChannelSyncMsg, error) {
	var m ChannelSyncMsg
	err := pb.WalkFields(data, func(num protowire.Number, payload []byte, _ uint64) error {
		if num == 1 {
			ss, err := UnmarshalSignedState(payload)
			if err != nil {
				return err
			}
			m.Current = ss
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if m.Current == nil {
		return nil, errs.New(errs.InvalidMessage, "channel sync carries no state")
	}
	return &m, nil
}
