package channel

import (
	"bytes"
	"encoding/binary"

	"github.com/ethereum/go-ethereum/common"
)

// Canonical encodings for hashing and signing. All integers are big-endian,
// balances are fixed 32 bytes, booleans are a single 0/1 byte. The layouts
// here are the compatibility contract with the remote funder/watcher; field
// order and widths must not change.

func boolByte(b bool) byte {
	if b {
		return 1
	}
	return 0
}

// EncodeParams returns the canonical encoding of the channel parameters:
//
//	participants[0] ‖ participants[1] ‖ challenge_duration (u64 BE) ‖
//	nonce ‖ app ‖ ledger_channel (1 byte) ‖ virtual_channel (1 byte)
func EncodeParams(p *Params) []byte {
	var buf bytes.Buffer
	buf.Grow(2*common.AddressLength + 8 + 32 + common.AddressLength + 2)
	buf.Write(p.Participants[0][:])
	buf.Write(p.Participants[1][:])
	var dur [8]byte
	binary.BigEndian.PutUint64(dur[:], p.ChallengeDuration)
	buf.Write(dur[:])
	buf.Write(p.Nonce[:])
	buf.Write(p.App[:])
	buf.WriteByte(boolByte(p.LedgerChannel))
	buf.WriteByte(boolByte(p.VirtualChannel))
	return buf.Bytes()
}

// EncodeAllocation returns the canonical encoding of an allocation:
//
//	count_assets (u16) ‖ asset ‖ count_parts (u16) ‖ balances (32 bytes each) ‖
//	count_locked (u16 = 0)
func EncodeAllocation(a *Allocation) []byte {
	var buf bytes.Buffer
	buf.Grow(2 + common.AddressLength + 2 + NumParts*32 + 2)
	var u16 [2]byte
	binary.BigEndian.PutUint16(u16[:], 1) // single asset
	buf.Write(u16[:])
	buf.Write(a.Asset[:])
	binary.BigEndian.PutUint16(u16[:], NumParts)
	buf.Write(u16[:])
	for _, bal := range a.Balances {
		h := common.BigToHash(bal)
		buf.Write(h[:])
	}
	binary.BigEndian.PutUint16(u16[:], 0) // no sub-allocations
	buf.Write(u16[:])
	return buf.Bytes()
}

// EncodeState returns the canonical encoding of a state:
//
//	id ‖ version (u64 BE) ‖ app ‖ allocation ‖ data ‖ is_final (1 byte)
func EncodeState(s *State) []byte {
	alloc := EncodeAllocation(&s.Allocation)
	var buf bytes.Buffer
	buf.Grow(32 + 8 + common.AddressLength + len(alloc) + len(s.Data) + 1)
	buf.Write(s.ID[:])
	var ver [8]byte
	binary.BigEndian.PutUint64(ver[:], s.Version)
	buf.Write(ver[:])
	buf.Write(s.App[:])
	buf.Write(alloc)
	buf.Write(s.Data)
	buf.WriteByte(boolByte(s.IsFinal))
	return buf.Bytes()
}
