package wallet

import (
	"crypto/ecdsa"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/perun-network/perun-client-go/pkg/errs"
)

// LocalSigner signs with an in-memory secp256k1 private key. This is the
// backend used by a participant that holds its own key.
type LocalSigner struct {
	key  *ecdsa.PrivateKey
	addr common.Address
}

// NewLocalSigner wraps the given private key.
func NewLocalSigner(key *ecdsa.PrivateKey) (*LocalSigner, error) {
	if key == nil {
		return nil, errs.New(errs.Internal, "nil private key")
	}
	pub, ok := key.Public().(*ecdsa.PublicKey)
	if !ok {
		return nil, errs.New(errs.Internal, "private key has no ECDSA public key")
	}
	return &LocalSigner{key: key, addr: crypto.PubkeyToAddress(*pub)}, nil
}

// NewLocalSignerHex parses a hex-encoded private key, with or without the
// "0x" prefix, and wraps it.
func NewLocalSignerHex(keyHex string) (*LocalSigner, error) {
	keyHex = strings.TrimPrefix(keyHex, "0x")
	if len(keyHex) != 64 {
		return nil, errs.New(errs.Internal, "private key must be 32 bytes (64 hex characters), got %d", len(keyHex))
	}
	key, err := crypto.HexToECDSA(keyHex)
	if err != nil {
		return nil, errs.Wrap(errs.Internal, err, "parsing hex private key")
	}
	return NewLocalSigner(key)
}

// GenerateLocalSigner creates a signer with a fresh random key. Intended for
// tests and examples.
func GenerateLocalSigner() (*LocalSigner, error) {
	key, err := crypto.GenerateKey()
	if err != nil {
		return nil, errs.Wrap(errs.Internal, err, "generating key")
	}
	return NewLocalSigner(key)
}

// Address returns the Ethereum address derived from the key.
func (s *LocalSigner) Address() common.Address { return s.addr }

// SignHash signs the digest with the wrapped key.
func (s *LocalSigner) SignHash(digest common.Hash) (Sig, error) {
	sig, err := crypto.Sign(digest[:], s.key)
	if err != nil {
		return nil, errs.Wrap(errs.Internal, err, "signing digest %s", digest.Hex())
	}
	return sig, nil
}
