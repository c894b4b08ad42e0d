package errs

import (
	"errors"
	"fmt"
	"testing"
)

func TestError_Is(t *testing.T) {
	err := New(OutdatedVersion, "update at version %d", 4)

	if !errors.Is(err, OutdatedVersion) {
		t.Fatal("expected errors.Is to match the kind")
	}
	if errors.Is(err, VersionGap) {
		t.Fatal("kind must not match a different kind")
	}

	wrapped := fmt.Errorf("handling update: %w", err)
	if !errors.Is(wrapped, OutdatedVersion) {
		t.Fatal("expected match through wrapping")
	}
}

func TestWrap_PreservesCause(t *testing.T) {
	cause := errors.New("short read")
	err := Wrap(InvalidMessage, cause, "decoding envelope")

	if !errors.Is(err, cause) {
		t.Fatal("expected cause to survive wrapping")
	}
	if KindOf(err) != InvalidMessage {
		t.Fatalf("unexpected kind: %v", KindOf(err))
	}
}

func TestKindOf_Fallback(t *testing.T) {
	if KindOf(errors.New("plain")) != Internal {
		t.Fatal("untyped errors must map to Internal")
	}
}

func TestNewMsgError_Categories(t *testing.T) {
	cases := []struct {
		code uint32
		want Category
	}{
		{CodePeerRejected, ParticipantError},
		{CodeResourceNotFound, ClientError},
		{CodeTxTimedOut, ProtocolError},
		{CodeUnknownInternal, InternalError},
	}
	for _, c := range cases {
		if got := NewMsgError(c.code, "x").Category; got != c.want {
			t.Fatalf("code %d: category %v, want %v", c.code, got, c.want)
		}
	}
}

func TestMsgError_AsError(t *testing.T) {
	m := NewMsgError(CodeChainNotReachable, "rpc down")
	err := m.AsError()

	if !errors.Is(err, RemoteError) {
		t.Fatal("expected RemoteError kind")
	}
	var back *MsgError
	if !errors.As(err, &back) || back.Code != CodeChainNotReachable {
		t.Fatal("expected the original envelope as cause")
	}
}
