// Package pb holds the low-level protowire helpers shared by the peer-wire
// and remote-service codecs. Encoders follow proto3 presence rules: scalar
// zero values are omitted, submessages are emitted when non-nil.
package pb

import (
	"google.golang.org/protobuf/encoding/protowire"

	"github.com/perun-network/perun-client-go/pkg/errs"
)

// AppendBytesField emits a length-delimited field, omitting empty payloads.
func AppendBytesField(b []byte, num protowire.Number, v []byte) []byte {
	if len(v) == 0 {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendBytes(b, v)
}

// AppendBytesEntry emits the field even when v is empty, for repeated fields
// where the entry count is meaningful (signature slots).
func AppendBytesEntry(b []byte, num protowire.Number, v []byte) []byte {
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendBytes(b, v)
}

// AppendStringField emits a string field, omitting empty strings.
func AppendStringField(b []byte, num protowire.Number, v string) []byte {
	if v == "" {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendString(b, v)
}

// AppendUintField emits a varint field, omitting zero.
func AppendUintField(b []byte, num protowire.Number, v uint64) []byte {
	if v == 0 {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, v)
}

// AppendBoolField emits a bool field, omitting false.
func AppendBoolField(b []byte, num protowire.Number, v bool) []byte {
	if !v {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, 1)
}

// AppendMessageField emits a nested message, omitting nil encodings.
func AppendMessageField(b []byte, num protowire.Number, enc []byte) []byte {
	if enc == nil {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendBytes(b, enc)
}

// FieldVisitor receives one field per call. Length-delimited payloads arrive
// in payload; varint fields arrive in uval.
type FieldVisitor func(num protowire.Number, payload []byte, uval uint64) error

// WalkFields iterates the fields of one encoded message, dispatching
// length-delimited and varint fields to visit and skipping any other wire
// type (fixed32/fixed64 never appear in this schema but must not derail the
// decoder).
func WalkFields(data []byte, visit FieldVisitor) error {
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return errs.New(errs.InvalidMessage, "malformed field tag")
		}
		data = data[n:]
		switch typ {
		case protowire.BytesType:
			v, m := protowire.ConsumeBytes(data)
			if m < 0 {
				return errs.New(errs.InvalidMessage, "malformed length-delimited field %d", num)
			}
			if err := visit(num, v, 0); err != nil {
				return err
			}
			data = data[m:]
		case protowire.VarintType:
			v, m := protowire.ConsumeVarint(data)
			if m < 0 {
				return errs.New(errs.InvalidMessage, "malformed varint field %d", num)
			}
			if err := visit(num, nil, v); err != nil {
				return err
			}
			data = data[m:]
		default:
			m := protowire.ConsumeFieldValue(num, typ, data)
			if m < 0 {
				return errs.New(errs.InvalidMessage, "malformed field %d", num)
			}
			data = data[m:]
		}
	}
	return nil
}

// FixedBytes copies a length-delimited payload into dst after checking the
// exact expected width.
func FixedBytes(dst []byte, payload []byte, what string) error {
	if len(payload) != len(dst) {
		return errs.New(errs.InvalidMessage, "%s is %d bytes, want %d", what, len(payload), len(dst))
	}
	copy(dst, payload)
	return nil
}
