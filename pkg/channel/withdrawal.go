package channel

import (
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/perun-network/perun-client-go/pkg/errs"
	"github.com/perun-network/perun-client-go/pkg/wallet"
)

// ABI datatypes for the withdrawal authorization tuple.
var (
	abiBytes32, _ = abi.NewType("bytes32", "", nil)
	abiAddress, _ = abi.NewType("address", "", nil)
	abiUint256, _ = abi.NewType("uint256", "", nil)

	withdrawalArgs = abi.Arguments{
		{Type: abiBytes32},
		{Type: abiAddress},
		{Type: abiAddress},
		{Type: abiUint256},
	}
)

// WithdrawalAuthDigest computes the digest of an on-chain withdrawal
// authorization: keccak256 over the ABI encoding of
// (channel_id bytes32, participant address, receiver address, amount uint256).
// The adjudicator contract verifies participant signatures over exactly this
// digest when funds are withdrawn.
func WithdrawalAuthDigest(id ID, participant, receiver common.Address, amount *big.Int) (common.Hash, error) {
	var id32 [32]byte
	copy(id32[:], id[:])
	enc, err := withdrawalArgs.Pack(id32, participant, receiver, new(big.Int).Set(amount))
	if err != nil {
		return common.Hash{}, errs.Wrap(errs.Internal, err, "packing withdrawal authorization")
	}
	return crypto.Keccak256Hash(enc), nil
}

// SignWithdrawalAuth signs the withdrawal-auth digest for this participant's
// balance in state and deposits the signature into table. Called whenever a
// new fully-signed state is installed, so the table always authorizes a
// withdrawal of the latest balance without needing the key again.
func SignWithdrawalAuth(signer wallet.Signer, table *wallet.PreSignedTable, params *Params, state *State, receiver common.Address) (common.Hash, error) {
	idx, err := params.IndexOf(signer.Address())
	if err != nil {
		return common.Hash{}, err
	}
	digest, err := WithdrawalAuthDigest(state.ID, params.Participants[idx], receiver, state.Allocation.Balances[idx])
	if err != nil {
		return common.Hash{}, err
	}
	sig, err := signer.SignHash(digest)
	if err != nil {
		return common.Hash{}, err
	}
	if err := table.Put(digest, sig); err != nil {
		return common.Hash{}, err
	}
	return digest, nil
}
