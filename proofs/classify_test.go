package proofs

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/tos-network/rollupsync/common"
	"github.com/tos-network/rollupsync/types"
)

func TestClassifyJoinSplitExtractsBothViewingKeys(t *testing.T) {
	payload, err := types.EncodeJoinSplitPayload(&types.JoinSplitOffchainPayload{
		ViewingKey1: []byte("vk1"),
		ViewingKey2: []byte("vk2"),
	})
	require.NoError(t, err)

	proof := types.InnerProof{
		ProofId:         types.ProofDeposit,
		NoteCommitment1: common.Hash32{1},
		NoteCommitment2: common.Hash32{2},
		Nullifier1:      common.Hash32{3},
		Nullifier2:      common.Hash32{4},
		PublicValue:     big.NewInt(1000),
	}

	c, err := Classify(proof, payload)
	require.NoError(t, err)
	require.Len(t, c.JoinSplitDecrypt, 2)
	require.Equal(t, []byte("vk1"), c.JoinSplitDecrypt[0].Ciphertext)
	require.Equal(t, []byte("vk2"), c.JoinSplitDecrypt[1].Ciphertext)
	require.Equal(t, proof.NoteCommitment1, c.JoinSplitDecrypt[0].Commitment)
}

func TestClassifyAccountExtractsPayload(t *testing.T) {
	payload, err := types.EncodeAccountPayload(&types.AccountOffchainPayload{
		AccountPublicKey: common.Key32{9},
		AccountAliasId:   types.AliasId{AliasHash: common.Hash32{7}, Nonce: 2},
	})
	require.NoError(t, err)

	c, err := Classify(types.InnerProof{ProofId: types.ProofAccount}, payload)
	require.NoError(t, err)
	require.NotNil(t, c.Account)
	require.Equal(t, uint32(2), c.Account.AccountAliasId.Nonce)
}

func TestClassifyDefiDepositQueuesOnlySecondCommitment(t *testing.T) {
	payload, err := types.EncodeDefiDepositPayload(&types.DefiDepositOffchainPayload{
		ViewingKey:   []byte("vk"),
		DepositValue: big.NewInt(100),
	})
	require.NoError(t, err)

	proof := types.InnerProof{
		ProofId:         types.ProofDefiDeposit,
		NoteCommitment1: common.Hash32{1},
		NoteCommitment2: common.Hash32{2},
		Nullifier2:      common.Hash32{5},
	}
	c, err := Classify(proof, payload)
	require.NoError(t, err)
	require.NotNil(t, c.DefiDepositDecrypt)
	require.Equal(t, proof.NoteCommitment2, c.DefiDepositDecrypt.Commitment)
	require.Equal(t, proof.Nullifier2, c.DefiDepositDecrypt.InputNullifier)
}

func TestClassifyDefiClaimHasNoPayload(t *testing.T) {
	c, err := Classify(types.InnerProof{ProofId: types.ProofDefiClaim, Nullifier1: common.Hash32{1}}, nil)
	require.NoError(t, err)
	require.Nil(t, c.Account)
	require.Nil(t, c.DefiDeposit)
	require.Empty(t, c.JoinSplitDecrypt)
}

func TestClassifyPaddingSkipped(t *testing.T) {
	c, err := Classify(types.InnerProof{ProofId: types.ProofPadding}, nil)
	require.NoError(t, err)
	require.Equal(t, types.ProofPadding, c.Kind)
}
