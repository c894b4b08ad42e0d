package wire

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/dynamicpb"

	"github.com/perun-network/perun-client-go/pkg/channel"
)

func TestSchemaManager_Compiles(t *testing.T) {
	files, err := NewSchemaManager().Files()
	if err != nil {
		t.Fatalf("Files: %v", err)
	}
	for _, name := range []string{"perun.wire.Envelope", "perun.watching.Message", "perun.watching.FundReq"} {
		if _, err := FindMessage(files, name); err != nil {
			t.Fatalf("FindMessage(%s): %v", name, err)
		}
	}
}

func TestSchemaManager_SaveAndGet(t *testing.T) {
	m := NewSchemaManager()
	if got := m.Get(); got["wire.proto"] == "" || got["watching.proto"] == "" {
		t.Fatal("embedded schemas missing")
	}

	dir := t.TempDir()
	if err := m.Save(dir); err != nil {
		t.Fatalf("Save: %v", err)
	}
}

// TestCodec_MatchesSchema cross-checks the hand-rolled codec against the
// compiled .proto schema: bytes produced by MarshalEnvelope must decode as a
// perun.wire.Envelope via protobuf reflection with the same field values.
func TestCodec_MatchesSchema(t *testing.T) {
	files, err := NewSchemaManager().Files()
	if err != nil {
		t.Fatalf("Files: %v", err)
	}
	md, err := FindMessage(files, "perun.wire.Envelope")
	if err != nil {
		t.Fatalf("FindMessage: %v", err)
	}

	alloc, err := channel.NewAllocation(
		common.HexToAddress("0xA55E7000000000000000000000000000000000AA"),
		[channel.NumParts]*big.Int{big.NewInt(1), big.NewInt(2)},
	)
	if err != nil {
		t.Fatalf("NewAllocation: %v", err)
	}
	var pid ProposalID
	pid[31] = 0x42
	env := &Envelope{
		Sender:    Address("alice"),
		Recipient: Address("bob"),
		Msg: &ProposalMsg{
			ProposalID:        pid,
			Participant:       common.HexToAddress("0x0A00000000000000000000000000000000000001"),
			ChallengeDuration: 60,
			InitAlloc:         alloc,
		},
	}
	data, err := MarshalEnvelope(env)
	if err != nil {
		t.Fatalf("MarshalEnvelope: %v", err)
	}

	dyn := dynamicpb.NewMessage(md)
	if err := proto.Unmarshal(data, dyn); err != nil {
		t.Fatalf("schema-driven decode failed: %v", err)
	}

	fields := md.Fields()
	if got := dyn.Get(fields.ByName("sender")).Bytes(); string(got) != "alice" {
		t.Fatalf("sender: %q", got)
	}
	proposalField := fields.ByName("proposal")
	if !dyn.Has(proposalField) {
		t.Fatal("proposal member not set in oneof")
	}
	proposal := dyn.Get(proposalField).Message()
	pd := proposalField.Message().Fields()
	if got := proposal.Get(pd.ByName("challenge_duration")).Uint(); got != 60 {
		t.Fatalf("challenge_duration: %d", got)
	}
	if got := proposal.Get(pd.ByName("proposal_id")).Bytes(); len(got) != 32 || got[31] != 0x42 {
		t.Fatalf("proposal_id: %x", got)
	}
}
