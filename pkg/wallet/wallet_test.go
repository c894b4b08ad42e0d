package wallet

import (
	"encoding/hex"
	"errors"
	"testing"

	"github.com/ethereum/go-ethereum/crypto"

	"github.com/perun-network/perun-client-go/pkg/errs"
)

func mustSigner(t *testing.T) *LocalSigner {
	t.Helper()
	s, err := GenerateLocalSigner()
	if err != nil {
		t.Fatalf("GenerateLocalSigner: %v", err)
	}
	return s
}

func TestLocalSigner_SignAndRecover(t *testing.T) {
	s := mustSigner(t)
	digest := crypto.Keccak256Hash([]byte("channel state"))

	sig, err := s.SignHash(digest)
	if err != nil {
		t.Fatalf("SignHash: %v", err)
	}
	if len(sig) != SigLen {
		t.Fatalf("signature length %d, want %d", len(sig), SigLen)
	}

	recovered, err := RecoverSigner(digest, sig)
	if err != nil {
		t.Fatalf("RecoverSigner: %v", err)
	}
	if recovered != s.Address() {
		t.Fatalf("recovered %s, want %s", recovered.Hex(), s.Address().Hex())
	}

	if err := VerifySignature(digest, sig, s.Address()); err != nil {
		t.Fatalf("VerifySignature: %v", err)
	}
}

func TestVerifySignature_WrongSigner(t *testing.T) {
	a, b := mustSigner(t), mustSigner(t)
	digest := crypto.Keccak256Hash([]byte("payload"))

	sig, err := a.SignHash(digest)
	if err != nil {
		t.Fatalf("SignHash: %v", err)
	}

	err = VerifySignature(digest, sig, b.Address())
	if !errors.Is(err, errs.InvalidSignature) {
		t.Fatalf("expected InvalidSignature, got %v", err)
	}
}

func TestRecoverSigner_BadLength(t *testing.T) {
	digest := crypto.Keccak256Hash([]byte("x"))
	if _, err := RecoverSigner(digest, make([]byte, 64)); !errors.Is(err, errs.InvalidSignature) {
		t.Fatalf("expected InvalidSignature for short signature, got %v", err)
	}
}

func TestNewLocalSignerHex(t *testing.T) {
	s := mustSigner(t)
	hexKey := "0x" + hex.EncodeToString(crypto.FromECDSA(s.key))

	parsed, err := NewLocalSignerHex(hexKey)
	if err != nil {
		t.Fatalf("NewLocalSignerHex: %v", err)
	}
	if parsed.Address() != s.Address() {
		t.Fatalf("address mismatch: %s vs %s", parsed.Address().Hex(), s.Address().Hex())
	}

	if _, err := NewLocalSignerHex("zz"); err == nil {
		t.Fatal("expected error for invalid key")
	}
}

func TestPreSignedTable(t *testing.T) {
	s := mustSigner(t)
	table := NewPreSignedTable(s.Address())

	known := crypto.Keccak256Hash([]byte("withdrawal auth"))
	sig, err := s.SignHash(known)
	if err != nil {
		t.Fatalf("SignHash: %v", err)
	}
	if err := table.Put(known, sig); err != nil {
		t.Fatalf("Put: %v", err)
	}

	got, err := table.SignHash(known)
	if err != nil {
		t.Fatalf("SignHash on known digest: %v", err)
	}
	if err := VerifySignature(known, got, s.Address()); err != nil {
		t.Fatalf("stored signature invalid: %v", err)
	}

	unknown := crypto.Keccak256Hash([]byte("never anticipated"))
	if _, err := table.SignHash(unknown); !errors.Is(err, errs.UnanticipatedSignatureRequest) {
		t.Fatalf("expected UnanticipatedSignatureRequest, got %v", err)
	}
	if table.Contains(unknown) {
		t.Fatal("unknown digest reported as contained")
	}
}

func TestPreSignedTable_RejectsForeignSignature(t *testing.T) {
	owner, other := mustSigner(t), mustSigner(t)
	table := NewPreSignedTable(owner.Address())

	digest := crypto.Keccak256Hash([]byte("auth"))
	sig, err := other.SignHash(digest)
	if err != nil {
		t.Fatalf("SignHash: %v", err)
	}
	if err := table.Put(digest, sig); !errors.Is(err, errs.InvalidSignature) {
		t.Fatalf("expected InvalidSignature, got %v", err)
	}
}
