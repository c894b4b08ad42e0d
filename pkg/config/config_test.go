package config

import (
	"encoding/hex"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

func testKeyHex(t *testing.T) (string, common.Address) {
	t.Helper()
	key, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	return hex.EncodeToString(crypto.FromECDSA(key)), crypto.PubkeyToAddress(key.PublicKey)
}

// TestConfigValidate_AppliesDefaults verifies that Validate applies default
// values for ChallengeDuration and Timeouts when they are not explicitly set.
func TestConfigValidate_AppliesDefaults(t *testing.T) {
	keyHex, _ := testKeyHex(t)
	cfg := &Config{WireIdentity: "alice", PrivateKey: keyHex}

	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate returned error: %v", err)
	}
	if cfg.ChallengeDuration != 60 {
		t.Fatalf("unexpected ChallengeDuration: %d", cfg.ChallengeDuration)
	}
	if cfg.Timeouts.Funding != 120*time.Second {
		t.Fatalf("Funding default mismatch: %v", cfg.Timeouts.Funding)
	}
}

// TestConfigValidate_Requireds verifies that Validate rejects a missing wire
// identity or private key.
func TestConfigValidate_Requireds(t *testing.T) {
	keyHex, _ := testKeyHex(t)

	if err := (&Config{PrivateKey: keyHex}).Validate(); err == nil {
		t.Fatal("expected error for missing wire identity")
	}
	if err := (&Config{WireIdentity: "alice"}).Validate(); err == nil {
		t.Fatal("expected error for missing private key")
	}
}

// TestTimeoutsWithDefaults verifies that WithDefaults preserves explicitly
// set timeout values and fills in defaults for zero values.
func TestTimeoutsWithDefaults(t *testing.T) {
	in := Timeouts{
		UpdateResponse: time.Second,
		Conclude:       42 * time.Second,
	}

	out := in.WithDefaults()

	// Provided values should be kept.
	if out.UpdateResponse != time.Second {
		t.Fatalf("UpdateResponse overwritten: got %v", out.UpdateResponse)
	}
	if out.Conclude != 42*time.Second {
		t.Fatalf("Conclude overwritten: got %v", out.Conclude)
	}

	// Zero values filled with defaults.
	if out.ProposalResponse != 30*time.Second {
		t.Fatalf("ProposalResponse default mismatch: %v", out.ProposalResponse)
	}
	if out.RemoteCall != 30*time.Second {
		t.Fatalf("RemoteCall default mismatch: %v", out.RemoteCall)
	}
}

func TestConfig_SignerAndReceiver(t *testing.T) {
	keyHex, addr := testKeyHex(t)
	cfg := &Config{WireIdentity: "alice", PrivateKey: "0x" + keyHex}

	signer, err := cfg.Signer()
	if err != nil {
		t.Fatalf("Signer: %v", err)
	}
	if signer.Address() != addr {
		t.Fatalf("signer address %s, want %s", signer.Address().Hex(), addr.Hex())
	}

	// Receiver falls back to the participant address.
	if cfg.ReceiverAddress() != addr {
		t.Fatalf("receiver fallback mismatch: %s", cfg.ReceiverAddress().Hex())
	}

	other := common.HexToAddress("0xCCCCCCCCCCCCCCCCCCCCCCCCCCCCCCCCCCCCCCCC")
	cfg.Receiver = other.Hex()
	if cfg.ReceiverAddress() != other {
		t.Fatalf("explicit receiver mismatch: %s", cfg.ReceiverAddress().Hex())
	}
}

func TestConfig_SignerInvalidKey(t *testing.T) {
	cfg := &Config{WireIdentity: "alice", PrivateKey: "zz"}
	if _, err := cfg.Signer(); err == nil {
		t.Fatal("expected error for invalid key")
	}
}
