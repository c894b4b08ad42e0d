package wallet

import (
	"bytes"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/perun-network/perun-client-go/pkg/errs"
)

// SigLen is the length of a serialized secp256k1 signature: r (32 bytes),
// s (32 bytes) and the recovery id v (1 byte).
const SigLen = 65

// Sig is a 65-byte r‖s‖v ECDSA signature.
type Sig = []byte

// Signer is the capability handed to the channel machinery: it knows one
// participant address and can produce signatures over 32-byte digests on its
// behalf. Implementations are LocalSigner and PreSignedTable.
type Signer interface {
	// Address returns the participant address signatures recover to.
	Address() common.Address
	// SignHash signs the given 32-byte digest and returns a 65-byte r‖s‖v
	// signature.
	SignHash(digest common.Hash) (Sig, error)
}

// RecoverSigner recovers the address that produced sig over digest.
func RecoverSigner(digest common.Hash, sig Sig) (common.Address, error) {
	if len(sig) != SigLen {
		return common.Address{}, errs.New(errs.InvalidSignature, "signature is %d bytes, want %d", len(sig), SigLen)
	}
	pub, err := crypto.Ecrecover(digest[:], sig)
	if err != nil {
		return common.Address{}, errs.Wrap(errs.InvalidSignature, err, "recovering public key")
	}
	// Address = low 20 bytes of keccak256 over the 64-byte uncompressed key.
	var addr common.Address
	copy(addr[:], crypto.Keccak256(pub[1:])[12:])
	return addr, nil
}

// VerifySignature checks that sig over digest recovers to signer. A mismatch
// is reported as errs.InvalidSignature.
func VerifySignature(digest common.Hash, sig Sig, signer common.Address) error {
	recovered, err := RecoverSigner(digest, sig)
	if err != nil {
		return err
	}
	if !bytes.Equal(recovered[:], signer[:]) {
		return errs.New(errs.InvalidSignature, "signature recovers to %s, want %s", recovered.Hex(), signer.Hex())
	}
	return nil
}
