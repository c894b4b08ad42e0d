package wallet

import (
	"github.com/ethereum/go-ethereum/common"

	"github.com/perun-network/perun-client-go/pkg/errs"
)

// PreSignedTable is a Signer backed by a fixed digest→signature mapping. It
// is populated by the key holder at channel-open time (and after updates)
// with the withdrawal-authorization digests, then handed to the remote
// watcher so it can submit withdrawals without the key.
//
// SignHash on an unknown digest fails with errs.UnanticipatedSignatureRequest
// and never produces a signature.
type PreSignedTable struct {
	addr common.Address
	sigs map[common.Hash]Sig
}

// NewPreSignedTable creates an empty table claiming the given participant
// address.
func NewPreSignedTable(addr common.Address) *PreSignedTable {
	return &PreSignedTable{addr: addr, sigs: make(map[common.Hash]Sig)}
}

// Address returns the participant address the stored signatures recover to.
func (t *PreSignedTable) Address() common.Address { return t.addr }

// Put stores sig for digest after checking it actually recovers to the
// table's address. Re-inserting a digest replaces the previous signature.
func (t *PreSignedTable) Put(digest common.Hash, sig Sig) error {
	if err := VerifySignature(digest, sig, t.addr); err != nil {
		return err
	}
	stored := make(Sig, len(sig))
	copy(stored, sig)
	t.sigs[digest] = stored
	return nil
}

// SignHash returns the stored signature for digest, or fails with
// errs.UnanticipatedSignatureRequest when the digest was never anticipated.
func (t *PreSignedTable) SignHash(digest common.Hash) (Sig, error) {
	sig, ok := t.sigs[digest]
	if !ok {
		return nil, errs.New(errs.UnanticipatedSignatureRequest, "no pre-signed signature for digest %s", digest.Hex())
	}
	out := make(Sig, len(sig))
	copy(out, sig)
	return out, nil
}

// Contains reports whether a signature for digest is stored.
func (t *PreSignedTable) Contains(digest common.Hash) bool {
	_, ok := t.sigs[digest]
	return ok
}

// Len returns the number of stored authorizations.
func (t *PreSignedTable) Len() int { return len(t.sigs) }
