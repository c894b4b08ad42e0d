package wire

import (
	"encoding/binary"
	"io"

	"github.com/perun-network/perun-client-go/pkg/errs"
)

// MaxFrameLen is the largest payload a single frame can carry; the length
// prefix is an unsigned 16-bit big-endian integer.
const MaxFrameLen = 1<<16 - 1

// EncodeFrame prefixes payload with its 2-byte big-endian length.
func EncodeFrame(payload []byte) ([]byte, error) {
	if len(payload) > MaxFrameLen {
		return nil, errs.New(errs.InvalidMessage, "payload of %d bytes exceeds frame limit", len(payload))
	}
	out := make([]byte, 2+len(payload))
	binary.BigEndian.PutUint16(out, uint16(len(payload)))
	copy(out[2:], payload)
	return out, nil
}

// SplitFrame consumes one complete frame from buf, returning the payload and
// the unconsumed remainder. When buf does not yet hold a complete frame it
// returns (nil, buf, nil) so step-style hosts can retry after reading more
// bytes.
func SplitFrame(buf []byte) (payload, rest []byte, err error) {
	if len(buf) < 2 {
		return nil, buf, nil
	}
	n := int(binary.BigEndian.Uint16(buf))
	if len(buf) < 2+n {
		return nil, buf, nil
	}
	return buf[2 : 2+n], buf[2+n:], nil
}

// WriteFrame writes one length-prefixed frame to w.
func WriteFrame(w io.Writer, payload []byte) error {
	frame, err := EncodeFrame(payload)
	if err != nil {
		return err
	}
	if _, err := w.Write(frame); err != nil {
		return errs.Wrap(errs.Internal, err, "writing frame")
	}
	return nil
}

// ReadFrame reads one length-prefixed frame from r.
func ReadFrame(r io.Reader) ([]byte, error) {
	var prefix [2]byte
	if _, err := io.ReadFull(r, prefix[:]); err != nil {
		if err == io.EOF {
			return nil, err
		}
		return nil, errs.Wrap(errs.InvalidMessage, err, "reading frame length")
	}
	payload := make([]byte, binary.BigEndian.Uint16(prefix[:]))
	if _, err := io.ReadFull(r, payload); err != nil {
		return nil, errs.Wrap(errs.InvalidMessage, err, "reading frame payload")
	}
	return payload, nil
}
