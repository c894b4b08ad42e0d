package channel

import (
	"github.com/perun-network/perun-client-go/pkg/errs"
	"github.com/perun-network/perun-client-go/pkg/wallet"
)

// SignedState is a State together with one signature per participant over
// the state's canonical digest.
type SignedState struct {
	State *State
	// Sigs is indexed like Params.Participants. A nil entry means that
	// participant has not signed yet.
	Sigs [NumParts]wallet.Sig
}

// NewSignedState wraps state with no signatures yet.
func NewSignedState(state *State) *SignedState {
	return &SignedState{State: state.Clone()}
}

// Clone returns a deep copy.
func (ss *SignedState) Clone() *SignedState {
	out := &SignedState{State: ss.State.Clone()}
	for i, sig := range ss.Sigs {
		if sig != nil {
			out.Sigs[i] = append(wallet.Sig{}, sig...)
		}
	}
	return out
}

// AddSig verifies sig against participant idx of params and stores it.
func (ss *SignedState) AddSig(params *Params, idx uint16, sig wallet.Sig) error {
	if idx >= NumParts {
		return errs.New(errs.Internal, "participant index %d out of range", idx)
	}
	if err := wallet.VerifySignature(ss.State.Hash(), sig, params.Participants[idx]); err != nil {
		return err
	}
	ss.Sigs[idx] = append(wallet.Sig{}, sig...)
	return nil
}

// Sign produces and stores this participant's signature using signer, which
// must hold the key of params.Participants[idx].
func (ss *SignedState) Sign(params *Params, idx uint16, signer wallet.Signer) (wallet.Sig, error) {
	if idx >= NumParts {
		return nil, errs.New(errs.Internal, "participant index %d out of range", idx)
	}
	if signer.Address() != params.Participants[idx] {
		return nil, errs.New(errs.InvalidSignature, "signer %s is not participant %d", signer.Address().Hex(), idx)
	}
	sig, err := signer.SignHash(ss.State.Hash())
	if err != nil {
		return nil, err
	}
	ss.Sigs[idx] = append(wallet.Sig{}, sig...)
	return sig, nil
}

// Complete reports whether both participants have signed.
func (ss *SignedState) Complete() bool {
	return ss.Sigs[0] != nil && ss.Sigs[1] != nil
}

// Verify checks every present signature against the corresponding
// participant; requireAll additionally demands that both are present.
func (ss *SignedState) Verify(params *Params, requireAll bool) error {
	digest := ss.State.Hash()
	for i, sig := range ss.Sigs {
		if sig == nil {
			if requireAll {
				return errs.New(errs.InvalidSignature, "missing signature of participant %d", i)
			}
			continue
		}
		if err := wallet.VerifySignature(digest, sig, params.Participants[i]); err != nil {
			return err
		}
	}
	return nil
}
