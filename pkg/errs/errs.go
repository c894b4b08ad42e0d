package errs

import (
	"errors"
	"fmt"
)

// Kind identifies a class of protocol failure. Kinds are comparable and work
// as errors.Is targets for any *Error produced by this module.
type Kind int

// Protocol error kinds.
const (
	// InvalidMessage marks malformed frames or undecodable protobuf payloads.
	InvalidMessage Kind = iota + 1
	// InvalidChannelID marks a state whose id does not match its params.
	InvalidChannelID
	// InvalidSignature marks a signature whose recovered address differs from
	// the claimed signer.
	InvalidSignature
	// OutdatedVersion marks an update at or below the current version.
	OutdatedVersion
	// VersionGap marks an update that skips versions.
	VersionGap
	// BalanceConservation marks an update that changes the balance sum or
	// drives a balance below zero.
	BalanceConservation
	// AlreadyFinal marks an update against a finalized state.
	AlreadyFinal
	// UnknownChannel marks a message for a channel this client does not hold.
	UnknownChannel
	// PhaseViolation marks an operation not allowed in the machine's phase.
	PhaseViolation
	// RemoteError wraps an error envelope received from the remote service.
	RemoteError
	// Timeout marks an expired host-configured deadline.
	Timeout
	// UnanticipatedSignatureRequest marks a pre-signed table miss.
	UnanticipatedSignatureRequest
	// Internal marks a bug or an unclassifiable failure.
	Internal
)

var kindNames = map[Kind]string{
	InvalidMessage:                "InvalidMessage",
	InvalidChannelID:              "InvalidChannelID",
	InvalidSignature:              "InvalidSignature",
	OutdatedVersion:               "OutdatedVersion",
	VersionGap:                    "VersionGap",
	BalanceConservation:           "BalanceConservationViolation",
	AlreadyFinal:                  "AlreadyFinal",
	UnknownChannel:                "UnknownChannel",
	PhaseViolation:                "PhaseViolation",
	RemoteError:                   "RemoteError",
	Timeout:                       "Timeout",
	UnanticipatedSignatureRequest: "UnanticipatedSignatureRequest",
	Internal:                      "Internal",
}

// String returns the canonical kind name.
func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Error implements error so a bare Kind can be used as an errors.Is target.
func (k Kind) Error() string { return k.String() }

// Error is the concrete error type returned by the client. It carries a Kind,
// a human-readable message and an optional wrapped cause.
type Error struct {
	Kind  Kind
	Msg   string
	Cause error
}

// New builds an *Error of the given kind with a formatted message.
func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// Wrap builds an *Error of the given kind wrapping cause. A nil cause yields
// a plain New.
func Wrap(kind Kind, cause error, format string, args ...any) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...), Cause: cause}
}

// Error renders "Kind: message" with the cause appended when present.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Msg, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

// Unwrap exposes the cause to errors.Is/As chains.
func (e *Error) Unwrap() error { return e.Cause }

// Is reports kind equality, so errors.Is(err, errs.Timeout) matches any
// *Error with Kind == Timeout.
func (e *Error) Is(target error) bool {
	if k, ok := target.(Kind); ok {
		return e.Kind == k
	}
	var other *Error
	if errors.As(target, &other) {
		return e.Kind == other.Kind
	}
	return false
}

// KindOf extracts the Kind from err, or Internal if err carries none.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	var k Kind
	if errors.As(err, &k) {
		return k
	}
	return Internal
}
