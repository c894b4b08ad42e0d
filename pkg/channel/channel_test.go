package channel

import (
	"bytes"
	"errors"
	"math"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/perun-network/perun-client-go/pkg/errs"
)

func testParams(t *testing.T) *Params {
	t.Helper()
	var nonce [32]byte
	nonce[31] = 7
	p, err := NewParams(
		[NumParts]common.Address{
			common.HexToAddress("0x0A00000000000000000000000000000000000001"),
			common.HexToAddress("0x0B00000000000000000000000000000000000002"),
		},
		60, nonce, common.Address{},
	)
	if err != nil {
		t.Fatalf("NewParams: %v", err)
	}
	return p
}

func testState(t *testing.T, p *Params) *State {
	t.Helper()
	alloc, err := NewAllocation(
		common.HexToAddress("0xA55E7000000000000000000000000000000000AA"),
		[NumParts]*big.Int{big.NewInt(100_000), big.NewInt(100_000)},
	)
	if err != nil {
		t.Fatalf("NewAllocation: %v", err)
	}
	s, err := NewInitialState(p, alloc, nil, big.NewInt(200_000))
	if err != nil {
		t.Fatalf("NewInitialState: %v", err)
	}
	return s
}

func TestNewParams_Rejections(t *testing.T) {
	dup := common.HexToAddress("0x0A00000000000000000000000000000000000001")
	if _, err := NewParams([NumParts]common.Address{dup, dup}, 60, [32]byte{}, common.Address{}); err == nil {
		t.Fatal("expected duplicate participants to be rejected")
	}

	other := common.HexToAddress("0x0B00000000000000000000000000000000000002")
	if _, err := NewParams([NumParts]common.Address{dup, other}, 0, [32]byte{}, common.Address{}); err == nil {
		t.Fatal("expected zero challenge duration to be rejected")
	}
}

func TestParams_IDDependsOnEveryField(t *testing.T) {
	base := testParams(t)
	id := base.ID()

	if base.ID() != id {
		t.Fatal("derivation is not deterministic")
	}

	mutations := []func(*Params){
		func(p *Params) { p.Participants[1] = common.HexToAddress("0x0C00000000000000000000000000000000000003") },
		func(p *Params) { p.ChallengeDuration++ },
		func(p *Params) { p.Nonce[0] ^= 1 },
		func(p *Params) { p.App = common.HexToAddress("0x0D00000000000000000000000000000000000004") },
		func(p *Params) { p.LedgerChannel = !p.LedgerChannel },
		func(p *Params) { p.VirtualChannel = !p.VirtualChannel },
	}
	for i, mutate := range mutations {
		q := base.Clone()
		mutate(q)
		if q.ID() == id {
			t.Fatalf("mutation %d did not change the channel id", i)
		}
	}
}

func TestCalcNonce(t *testing.T) {
	var a, b NonceShare
	for i := range a {
		a[i] = 0x11
		b[i] = 0x22
	}
	got := CalcNonce([NumParts]NonceShare{a, b})
	want := crypto.Keccak256(a[:], b[:])
	if !bytes.Equal(got[:], want) {
		t.Fatalf("nonce mismatch: %x vs %x", got, want)
	}
}

func TestEncodeParams_Layout(t *testing.T) {
	p := testParams(t)
	enc := EncodeParams(p)

	wantLen := 20 + 20 + 8 + 32 + 20 + 1 + 1
	if len(enc) != wantLen {
		t.Fatalf("encoded length %d, want %d", len(enc), wantLen)
	}
	if !bytes.Equal(enc[:20], p.Participants[0][:]) {
		t.Fatal("participant 0 not first")
	}
	// challenge_duration is big-endian at offset 40.
	if enc[40+7] != 60 {
		t.Fatalf("challenge duration byte: %d", enc[40+7])
	}
	// trailing flags: ledger=1, virtual=0.
	if enc[wantLen-2] != 1 || enc[wantLen-1] != 0 {
		t.Fatalf("flag bytes: % x", enc[wantLen-2:])
	}
}

func TestEncodeAllocation_Layout(t *testing.T) {
	p := testParams(t)
	s := testState(t, p)
	enc := EncodeAllocation(&s.Allocation)

	wantLen := 2 + 20 + 2 + 2*32 + 2
	if len(enc) != wantLen {
		t.Fatalf("encoded length %d, want %d", len(enc), wantLen)
	}
	if enc[0] != 0 || enc[1] != 1 {
		t.Fatal("asset count prefix != 1")
	}
	if enc[22] != 0 || enc[23] != 2 {
		t.Fatal("participant count prefix != 2")
	}
	// last u16 must be the empty locked list.
	if enc[wantLen-2] != 0 || enc[wantLen-1] != 0 {
		t.Fatal("locked count suffix != 0")
	}
	// balance 0 is 100000 = 0x0186A0 right-aligned in 32 bytes.
	bal0 := enc[24 : 24+32]
	if bal0[29] != 0x01 || bal0[30] != 0x86 || bal0[31] != 0xA0 {
		t.Fatalf("balance 0 bytes: % x", bal0[29:])
	}
}

func TestState_HashChangesWithVersion(t *testing.T) {
	p := testParams(t)
	s := testState(t, p)

	h := s.Hash()
	next, err := s.Transfer(0, big.NewInt(100))
	if err != nil {
		t.Fatalf("Transfer: %v", err)
	}
	if next.Hash() == h {
		t.Fatal("hash did not change across transition")
	}
	if next.Version != 1 {
		t.Fatalf("version %d, want 1", next.Version)
	}
}

func TestAllocation_TransferUnderflow(t *testing.T) {
	p := testParams(t)
	s := testState(t, p)

	if _, err := s.Transfer(0, big.NewInt(100_001)); !errors.Is(err, errs.BalanceConservation) {
		t.Fatalf("expected BalanceConservation, got %v", err)
	}
}

func TestValidTransition(t *testing.T) {
	p := testParams(t)
	s := testState(t, p)

	next, err := s.Transfer(0, big.NewInt(100))
	if err != nil {
		t.Fatalf("Transfer: %v", err)
	}
	if err := ValidTransition(p, s, next); err != nil {
		t.Fatalf("valid transition rejected: %v", err)
	}

	// Outdated version.
	stale := next.Clone()
	stale.Version = s.Version
	if err := ValidTransition(p, s, stale); !errors.Is(err, errs.OutdatedVersion) {
		t.Fatalf("expected OutdatedVersion, got %v", err)
	}

	// Version gap.
	gap := next.Clone()
	gap.Version = s.Version + 2
	if err := ValidTransition(p, s, gap); !errors.Is(err, errs.VersionGap) {
		t.Fatalf("expected VersionGap, got %v", err)
	}

	// Sum violation.
	bad := next.Clone()
	bad.Allocation.Balances[1] = big.NewInt(90_000)
	if err := ValidTransition(p, s, bad); !errors.Is(err, errs.BalanceConservation) {
		t.Fatalf("expected BalanceConservation, got %v", err)
	}

	// Wrong channel id.
	foreign := next.Clone()
	foreign.ID[0] ^= 1
	if err := ValidTransition(p, s, foreign); !errors.Is(err, errs.InvalidChannelID) {
		t.Fatalf("expected InvalidChannelID, got %v", err)
	}

	// No transition from a final state.
	final, err := s.Finalize()
	if err != nil {
		t.Fatalf("Finalize: %v", err)
	}
	after := final.Clone()
	after.Version++
	if err := ValidTransition(p, final, after); !errors.Is(err, errs.AlreadyFinal) {
		t.Fatalf("expected AlreadyFinal, got %v", err)
	}
}

func TestState_VersionSaturation(t *testing.T) {
	p := testParams(t)
	s := testState(t, p)
	s.Version = math.MaxUint64

	if _, err := s.Transfer(0, big.NewInt(1)); !errors.Is(err, errs.VersionGap) {
		t.Fatalf("expected VersionGap at version ceiling, got %v", err)
	}
	if _, err := s.Finalize(); !errors.Is(err, errs.VersionGap) {
		t.Fatalf("expected VersionGap at version ceiling, got %v", err)
	}
}

func TestNewInitialState_TotalMismatch(t *testing.T) {
	p := testParams(t)
	alloc, err := NewAllocation(common.Address{}, [NumParts]*big.Int{big.NewInt(1), big.NewInt(2)})
	if err != nil {
		t.Fatalf("NewAllocation: %v", err)
	}
	if _, err := NewInitialState(p, alloc, nil, big.NewInt(4)); !errors.Is(err, errs.BalanceConservation) {
		t.Fatalf("expected BalanceConservation, got %v", err)
	}
}
