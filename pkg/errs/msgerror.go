package errs

import "fmt"

// Category groups wire errors by the party responsible for them.
type Category int32

// Wire error categories.
const (
	ParticipantError Category = iota + 1
	ClientError
	ProtocolError
	InternalError
)

// String returns the canonical category name.
func (c Category) String() string {
	switch c {
	case ParticipantError:
		return "ParticipantError"
	case ClientError:
		return "ClientError"
	case ProtocolError:
		return "ProtocolError"
	case InternalError:
		return "InternalError"
	default:
		return fmt.Sprintf("Category(%d)", int32(c))
	}
}

// Stable wire error codes. The numeric values are part of the protocol and
// shared with the remote funder/watcher service; never renumber.
const (
	CodePeerRequestTimeout  uint32 = 101
	CodePeerRejected        uint32 = 102
	CodePeerNotFunded       uint32 = 103
	CodeUserResponseTimeout uint32 = 104

	CodeResourceNotFound uint32 = 201
	CodeResourceExists   uint32 = 202
	CodeInvalidArgument  uint32 = 203
	CodeFailedPrecond    uint32 = 204
	CodeInvalidConfig    uint32 = 205
	CodeInvalidContracts uint32 = 206

	CodeTxTimedOut        uint32 = 301
	CodeChainNotReachable uint32 = 302

	CodeUnknownInternal uint32 = 401
)

// MsgError is the wire error envelope. It travels inside both the peer and
// the remote-service message unions.
type MsgError struct {
	Category Category
	Code     uint32
	Message  string
	AddInfo  map[string]string
}

// Error renders the envelope as "category/code: message".
func (m *MsgError) Error() string {
	return fmt.Sprintf("%s/%d: %s", m.Category, m.Code, m.Message)
}

// AsError wraps the envelope into a RemoteError *Error for host consumption.
func (m *MsgError) AsError() *Error {
	return &Error{Kind: RemoteError, Msg: m.Error(), Cause: m}
}

// categoryOf maps a stable code to its category by numeric range.
func categoryOf(code uint32) Category {
	switch {
	case code >= 100 && code < 200:
		return ParticipantError
	case code >= 200 && code < 300:
		return ClientError
	case code >= 300 && code < 400:
		return ProtocolError
	default:
		return InternalError
	}
}

// NewMsgError builds an envelope for the given stable code, deriving the
// category from the code's numeric range.
func NewMsgError(code uint32, format string, args ...any) *MsgError {
	return &MsgError{
		Category: categoryOf(code),
		Code:     code,
		Message:  fmt.Sprintf(format, args...),
	}
}
