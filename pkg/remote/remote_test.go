package remote

import (
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"

	"github.com/perun-network/perun-client-go/pkg/channel"
	"github.com/perun-network/perun-client-go/pkg/errs"
	"github.com/perun-network/perun-client-go/pkg/wallet"
)

func remoteFixture(t *testing.T) (*channel.Params, *channel.SignedState) {
	t.Helper()
	var signers [channel.NumParts]*wallet.LocalSigner
	var parts [channel.NumParts]common.Address
	for i := range signers {
		s, err := wallet.GenerateLocalSigner()
		if err != nil {
			t.Fatalf("GenerateLocalSigner: %v", err)
		}
		signers[i] = s
		parts[i] = s.Address()
	}
	var nonce [32]byte
	nonce[5] = 3
	params, err := channel.NewParams(parts, 60, nonce, common.Address{})
	if err != nil {
		t.Fatalf("NewParams: %v", err)
	}
	alloc, err := channel.NewAllocation(
		common.HexToAddress("0xA55E7000000000000000000000000000000000AA"),
		[channel.NumParts]*big.Int{big.NewInt(100_000), big.NewInt(100_000)},
	)
	if err != nil {
		t.Fatalf("NewAllocation: %v", err)
	}
	state, err := channel.NewInitialState(params, alloc, nil, big.NewInt(200_000))
	if err != nil {
		t.Fatalf("NewInitialState: %v", err)
	}
	ss := channel.NewSignedState(state)
	for i, s := range signers {
		if _, err := ss.Sign(params, uint16(i), s); err != nil {
			t.Fatalf("Sign(%d): %v", i, err)
		}
	}
	return params, ss
}

func TestFundReq_RoundTrip(t *testing.T) {
	params, ss := remoteFixture(t)
	req := &FundReq{Params: params, State: ss.State, Idx: 1, Agreement: ss.State.Allocation.Clone()}

	data, err := Marshal(req)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	msg, err := Unmarshal(data)
	if err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	got, ok := msg.(*FundReq)
	if !ok {
		t.Fatalf("decoded %T", msg)
	}
	if *got.Params != *params || !got.State.Equal(ss.State) || got.Idx != 1 {
		t.Fatal("fund request corrupted")
	}
	if !got.Agreement.Equal(&ss.State.Allocation) {
		t.Fatal("agreement corrupted")
	}
}

func TestStartWatchingReq_RoundTrip(t *testing.T) {
	params, ss := remoteFixture(t)
	var sigs [channel.NumParts]wallet.Sig
	copy(sigs[:], ss.Sigs[:])

	data, err := Marshal(&StartWatchingReq{Params: params, State: ss.State, Sigs: sigs})
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	msg, err := Unmarshal(data)
	if err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	got := msg.(*StartWatchingReq)
	for i := range got.Sigs {
		if err := wallet.VerifySignature(got.State.Hash(), got.Sigs[i], params.Participants[i]); err != nil {
			t.Fatalf("signature %d corrupted: %v", i, err)
		}
	}
}

func TestUnmarshal_DeprecatedTags(t *testing.T) {
	// A RegisterReq (tag 3) must be rejected as deprecated.
	payload := []byte{0x1A, 0x00} // field 3, empty message
	if _, err := Unmarshal(payload); !errors.Is(err, errs.InvalidMessage) {
		t.Fatalf("expected InvalidMessage for deprecated tag, got %v", err)
	}
}

func TestClient_FundFIFO(t *testing.T) {
	params, ss := remoteFixture(t)
	c := NewClient()

	if _, err := c.Fund(params, ss.State, 0, ss.State.Allocation.Clone()); err != nil {
		t.Fatalf("Fund: %v", err)
	}

	resp, err := Marshal(&FundResp{})
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	ev, err := c.HandleInbound(resp)
	if err != nil {
		t.Fatalf("HandleInbound: %v", err)
	}
	done, ok := ev.(*FundingCompleteEvent)
	if !ok {
		t.Fatalf("event %T", ev)
	}
	if done.ID != ss.State.ID || done.Err != nil {
		t.Fatal("funding event corrupted")
	}

	// A second, unrequested response is late and dropped.
	ev, err = c.HandleInbound(resp)
	if err != nil {
		t.Fatalf("HandleInbound: %v", err)
	}
	if ev != nil {
		t.Fatalf("late response yielded event %T", ev)
	}
}

func TestClient_CancelDropsResponse(t *testing.T) {
	params, ss := remoteFixture(t)
	c := NewClient()

	if _, err := c.Fund(params, ss.State, 0, ss.State.Allocation.Clone()); err != nil {
		t.Fatalf("Fund: %v", err)
	}
	c.Cancel(TypeFundResp)

	resp, _ := Marshal(&FundResp{Error: errs.NewMsgError(errs.CodePeerNotFunded, "peer missing")})
	ev, err := c.HandleInbound(resp)
	if err != nil {
		t.Fatalf("HandleInbound: %v", err)
	}
	if ev != nil {
		t.Fatalf("cancelled request yielded event %T", ev)
	}
}

func TestClient_WatchStream(t *testing.T) {
	params, ss := remoteFixture(t)
	c := NewClient()

	if _, err := c.StartWatching(params, ss); err != nil {
		t.Fatalf("StartWatching: %v", err)
	}

	reg, _ := Marshal(&StartWatchingResp{Registered: &RegisteredEvent{ChannelID: ss.State.ID, Version: 7}})
	ev, err := c.HandleInbound(reg)
	if err != nil {
		t.Fatalf("HandleInbound: %v", err)
	}
	if got := ev.(*ChannelRegisteredEvent); got.ID != ss.State.ID || got.Version != 7 {
		t.Fatal("registered event corrupted")
	}

	conc, _ := Marshal(&StartWatchingResp{Concluded: &ConcludedEvent{ChannelID: ss.State.ID}})
	ev, err = c.HandleInbound(conc)
	if err != nil {
		t.Fatalf("HandleInbound: %v", err)
	}
	if _, ok := ev.(*ChannelConcludedEvent); !ok {
		t.Fatalf("event %T", ev)
	}

	// The stream ended with Concluded; further elements are dropped.
	ev, err = c.HandleInbound(reg)
	if err != nil {
		t.Fatalf("HandleInbound: %v", err)
	}
	if ev != nil {
		t.Fatalf("element after conclusion yielded event %T", ev)
	}
}

func TestClient_StartWatchingRequiresBothSigs(t *testing.T) {
	params, ss := remoteFixture(t)
	ss.Sigs[1] = nil
	c := NewClient()
	if _, err := c.StartWatching(params, ss); !errors.Is(err, errs.InvalidSignature) {
		t.Fatalf("expected InvalidSignature, got %v", err)
	}
}

func TestClient_ForceCloseAndDispute(t *testing.T) {
	params, ss := remoteFixture(t)
	_ = params
	c := NewClient()

	if _, err := c.ForceClose(ss.State.ID, ss); err != nil {
		t.Fatalf("ForceClose: %v", err)
	}
	resp, _ := Marshal(&ForceCloseResp{Success: true})
	ev, err := c.HandleInbound(resp)
	if err != nil {
		t.Fatalf("HandleInbound: %v", err)
	}
	if got := ev.(*ForceCloseDoneEvent); !got.Success || got.ID != ss.State.ID {
		t.Fatal("force-close event corrupted")
	}

	note, _ := Marshal(&DisputeNotification{ChannelID: ss.State.ID, Version: 4})
	ev, err = c.HandleInbound(note)
	if err != nil {
		t.Fatalf("HandleInbound: %v", err)
	}
	if got := ev.(*DisputeEvent); got.Version != 4 {
		t.Fatal("dispute event corrupted")
	}
}
