package wire

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"google.golang.org/protobuf/encoding/protowire"

	"github.com/perun-network/perun-client-go/internal/pb"
	"github.com/perun-network/perun-client-go/pkg/channel"
	"github.com/perun-network/perun-client-go/pkg/errs"
	"github.com/perun-network/perun-client-go/pkg/wallet"
)

// Protobuf mapping of the channel entities. These encoders are shared by the
// peer wire and the remote-service wire.

// MarshalParams encodes channel parameters.
func MarshalParams(p *channel.Params) []byte {
	var b []byte
	for i := range p.Participants {
		b = pb.AppendBytesEntry(b, 1, p.Participants[i][:])
	}
	b = pb.AppendUintField(b, 2, p.ChallengeDuration)
	b = pb.AppendBytesField(b, 3, p.Nonce[:])
	b = pb.AppendBytesField(b, 4, p.App[:])
	b = pb.AppendBoolField(b, 5, p.LedgerChannel)
	b = pb.AppendBoolField(b, 6, p.VirtualChannel)
	return b
}

// UnmarshalParams decodes and validates channel parameters. Ledger-channel
// and no-virtual-channel flags are enforced; this core supports nothing else.
func UnmarshalParams(data []byte) (*channel.Params, error) {
	var p channel.Params
	nparts := 0
	err := pb.WalkFields(data, func(num protowire.Number, payload []byte, uval uint64) error {
		switch num {
		case 1:
			if nparts >= channel.NumParts {
				return errs.New(errs.InvalidMessage, "more than %d participants", channel.NumParts)
			}
			if err := pb.FixedBytes(p.Participants[nparts][:], payload, "participant address"); err != nil {
				return err
			}
			nparts++
		case 2:
			p.ChallengeDuration = uval
		case 3:
			return pb.FixedBytes(p.Nonce[:], payload, "nonce")
		case 4:
			return pb.FixedBytes(p.App[:], payload, "app address")
		case 5:
			p.LedgerChannel = uval != 0
		case 6:
			p.VirtualChannel = uval != 0
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if nparts != channel.NumParts {
		return nil, errs.New(errs.InvalidMessage, "params carry %d participants, want %d", nparts, channel.NumParts)
	}
	if p.Participants[0] == p.Participants[1] {
		return nil, errs.New(errs.InvalidMessage, "duplicate participant")
	}
	if p.ChallengeDuration == 0 {
		return nil, errs.New(errs.InvalidMessage, "zero challenge duration")
	}
	if !p.LedgerChannel || p.VirtualChannel {
		return nil, errs.New(errs.InvalidMessage, "only ledger channels are supported")
	}
	return &p, nil
}

// MarshalAllocation encodes an allocation; balances travel as fixed 32-byte
// big-endian values.
func MarshalAllocation(a *channel.Allocation) []byte {
	var b []byte
	b = pb.AppendBytesField(b, 1, a.Asset[:])
	for _, bal := range a.Balances {
		h := common.BigToHash(bal)
		b = pb.AppendBytesEntry(b, 2, h[:])
	}
	return b
}

// UnmarshalAllocation decodes an allocation.
func UnmarshalAllocation(data []byte) (*channel.Allocation, error) {
	var asset common.Address
	var balances [channel.NumParts]*big.Int
	nbals := 0
	err := pb.WalkFields(data, func(num protowire.Number, payload []byte, _ uint64) error {
		switch num {
		case 1:
			return pb.FixedBytes(asset[:], payload, "asset address")
		case 2:
			if nbals >= channel.NumParts {
				return errs.New(errs.InvalidMessage, "more than %d balances", channel.NumParts)
			}
			if len(payload) != 32 {
				return errs.New(errs.InvalidMessage, "balance is %d bytes, want 32", len(payload))
			}
			balances[nbals] = new(big.Int).SetBytes(payload)
			nbals++
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if nbals != channel.NumParts {
		return nil, errs.New(errs.InvalidMessage, "allocation carries %d balances, want %d", nbals, channel.NumParts)
	}
	return channel.NewAllocation(asset, balances)
}

// MarshalState encodes a state.
func MarshalState(s *channel.State) []byte {
	var b []byte
	b = pb.AppendBytesField(b, 1, s.ID[:])
	b = pb.AppendUintField(b, 2, s.Version)
	b = pb.AppendBytesField(b, 3, s.App[:])
	b = pb.AppendMessageField(b, 4, MarshalAllocation(&s.Allocation))
	b = pb.AppendBytesField(b, 5, s.Data)
	b = pb.AppendBoolField(b, 6, s.IsFinal)
	return b
}

// UnmarshalState decodes a state.
func UnmarshalState(data []byte) (*channel.State, error) {
	var s channel.State
	haveAlloc := false
	err := pb.WalkFields(data, func(num protowire.Number, payload []byte, uval uint64) error {
		switch num {
		case 1:
			return pb.FixedBytes(s.ID[:], payload, "channel id")
		case 2:
			s.Version = uval
		case 3:
			return pb.FixedBytes(s.App[:], payload, "app address")
		case 4:
			alloc, err := UnmarshalAllocation(payload)
			if err != nil {
				return err
			}
			s.Allocation = *alloc
			haveAlloc = true
		case 5:
			s.Data = append([]byte(nil), payload...)
		case 6:
			s.IsFinal = uval != 0
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if !haveAlloc {
		return nil, errs.New(errs.InvalidMessage, "state carries no allocation")
	}
	return &s, nil
}

// MarshalSignedState encodes a signed state. Missing signatures travel as
// empty entries so the participant index of each slot is preserved.
func MarshalSignedState(ss *channel.SignedState) []byte {
	var b []byte
	b = pb.AppendMessageField(b, 1, MarshalState(ss.State))
	for _, sig := range ss.Sigs {
		b = pb.AppendBytesEntry(b, 2, sig)
	}
	return b
}

// UnmarshalSignedState decodes a signed state. Signature entries must be
// empty or exactly 65 bytes.
func UnmarshalSignedState(data []byte) (*channel.SignedState, error) {
	var ss channel.SignedState
	nsigs := 0
	err := pb.WalkFields(data, func(num protowire.Number, payload []byte, _ uint64) error {
		switch num {
		case 1:
			state, err := UnmarshalState(payload)
			if err != nil {
				return err
			}
			ss.State = state
		case 2:
			if nsigs >= channel.NumParts {
				return errs.New(errs.InvalidMessage, "more than %d signatures", channel.NumParts)
			}
			if len(payload) != 0 && len(payload) != wallet.SigLen {
				return errs.New(errs.InvalidMessage, "signature is %d bytes, want %d", len(payload), wallet.SigLen)
			}
			if len(payload) == wallet.SigLen {
				ss.Sigs[nsigs] = append(wallet.Sig{}, payload...)
			}
			nsigs++
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if ss.State == nil {
		return nil, errs.New(errs.InvalidMessage, "signed state carries no state")
	}
	return &ss, nil
}

// MarshalMsgError encodes an error envelope.
func MarshalMsgError(e *errs.MsgError) []byte {
	var b []byte
	b = pb.AppendUintField(b, 1, uint64(e.Category))
	b = pb.AppendUintField(b, 2, uint64(e.Code))
	b = pb.AppendStringField(b, 3, e.Message)
	for k, v := range e.AddInfo {
		var entry []byte
		entry = pb.AppendStringField(entry, 1, k)
		entry = pb.AppendStringField(entry, 2, v)
		b = pb.AppendMessageField(b, 4, entry)
	}
	return b
}

// UnmarshalMsgError decodes an error envelope.
func UnmarshalMsgError(data []byte) (*errs.MsgError, error) {
	var e errs.MsgError
	err := pb.WalkFields(data, func(num protowire.Number, payload []byte, uval uint64) error {
		switch num {
		case 1:
			e.Category = errs.Category(uval)
		case 2:
			e.Code = uint32(uval)
		case 3:
			e.Message = string(payload)
		case 4:
			var k, v string
			if err := pb.WalkFields(payload, func(n protowire.Number, p []byte, _ uint64) error {
				switch n {
				case 1:
					k = string(p)
				case 2:
					v = string(p)
				}
				return nil
			}); err != nil {
				return err
			}
			if e.AddInfo == nil {
				e.AddInfo = make(map[string]string)
			}
			e.AddInfo[k] = v
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &e, nil
}
