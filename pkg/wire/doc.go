// Package wire implements the peer-to-peer message protocol: the Envelope
// union, the canonical protobuf encoding of every message and channel entity,
// and the length-prefix framing contract.
//
// Framing: each frame is a 2-byte big-endian length followed by exactly that
// many bytes of an encoded Envelope. The codec is hand-rolled on
// protobuf/encoding/protowire so the exact same byte layout runs on hosts and
// on heapless embedded targets; the authoritative schema lives in wire.proto
// and watching.proto next to this package and is compiled at runtime by the
// schema manager for hosts that want descriptors.
//
// The package is transport-agnostic: EncodeFrame/SplitFrame work on byte
// slices for step-style hosts, ReadFrame/WriteFrame adapt any io.Reader/
// io.Writer.
package wire
