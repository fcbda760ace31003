package userstate

import (
	"context"
	"crypto/rand"
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/tos-network/rollupsync/common"
	"github.com/tos-network/rollupsync/noteprim"
	"github.com/tos-network/rollupsync/provider"
	"github.com/tos-network/rollupsync/rollupdb"
	"github.com/tos-network/rollupsync/types"
)

func randomKey(t *testing.T) common.Key32 {
	t.Helper()
	var k common.Key32
	_, err := rand.Read(k[:])
	require.NoError(t, err)
	return k
}

func randomHash(t *testing.T) common.Hash32 {
	t.Helper()
	var h common.Hash32
	_, err := rand.Read(h[:])
	require.NoError(t, err)
	return h
}

func buildDepositBlock(t *testing.T, algo noteprim.NoteAlgorithms, id types.AccountId, assetId uint32, value int64) (*types.Block, common.Hash32) {
	t.Helper()
	note1 := &noteprim.TreeNote{
		Value:       big.NewInt(value),
		AssetId:     assetId,
		OwnerPubKey: id.PublicKey,
		OwnerNonce:  id.Nonce,
		Secret:      randomHash(t),
		Creator:     id.PublicKey,
	}
	commitment1 := algo.NoteCommitment(note1)
	viewingKey1, err := algo.EncryptViewingKey(id.PublicKey, note1)
	require.NoError(t, err)

	payloadBytes, err := types.EncodeJoinSplitPayload(&types.JoinSplitOffchainPayload{ViewingKey1: viewingKey1})
	require.NoError(t, err)

	txHash := randomHash(t)
	var proof types.InnerProof
	proof.ProofId = types.ProofDeposit
	proof.NoteCommitment1 = commitment1
	proof.PublicValue = big.NewInt(value)
	proof.AssetId[31] = byte(assetId)
	proof.TxId = txHash

	rpd := &types.RollupProofData{RollupId: 0, DataStartIndex: 0, InnerProofData: []types.InnerProof{proof}}
	block := &types.Block{
		RollupId:        0,
		RollupProofData: types.EncodeRollupProofData(rpd),
		OffchainTxData:  [][]byte{payloadBytes},
	}
	return block, txHash
}

func newTestUser(t *testing.T, db rollupdb.Database, algo noteprim.NoteAlgorithms) types.AccountId {
	t.Helper()
	priv := randomKey(t)
	pub := algo.DerivePublicKey(priv)
	id := types.AccountId{PublicKey: pub, Nonce: 0}
	require.NoError(t, db.UpdateUser(&types.UserData{
		Id: id, PublicKey: pub, PrivateKey: priv, Nonce: 0, SyncedToRollup: -1,
	}))
	return id
}

func TestStartSyncSettlesDeposit(t *testing.T) {
	algo := noteprim.New()
	db := rollupdb.NewMemoryDB()
	prov := provider.NewMemoryProvider()

	id := newTestUser(t, db, algo)
	block, txHash := buildDepositBlock(t, algo, id, 1, 100)
	prov.AddBlock(block)

	factory := NewFactory(Deps{DB: db, Provider: prov, Algorithms: algo})
	us, err := factory.New(context.Background(), id)
	require.NoError(t, err)

	require.NoError(t, us.StartSync(context.Background()))
	require.Equal(t, types.SyncMonitoring, us.State())
	require.Equal(t, 0, us.Balance(1).Cmp(big.NewInt(100)))

	tx, err := db.GetJoinSplitTx(txHash, id)
	require.NoError(t, err)
	require.NotNil(t, tx)
	require.Equal(t, 0, tx.PublicInput.Cmp(big.NewInt(100)))
	require.NotNil(t, tx.Settled)

	require.NoError(t, us.StopSync(true))
}

func TestHandleBlocksIsIdempotentAcrossRestart(t *testing.T) {
	algo := noteprim.New()
	db := rollupdb.NewMemoryDB()
	prov := provider.NewMemoryProvider()

	id := newTestUser(t, db, algo)
	block, _ := buildDepositBlock(t, algo, id, 1, 100)
	prov.AddBlock(block)

	factory := NewFactory(Deps{DB: db, Provider: prov, Algorithms: algo})
	ctx := context.Background()

	us1, err := factory.New(ctx, id)
	require.NoError(t, err)
	require.NoError(t, us1.StartSync(ctx))
	require.NoError(t, us1.StopSync(true))

	// Simulate a fresh process picking the same account back up: nothing
	// should double-apply since the block's RollupId <= SyncedToRollup.
	us2, err := factory.New(ctx, id)
	require.NoError(t, err)
	require.NoError(t, us2.StartSync(ctx))
	require.Equal(t, 0, us2.Balance(1).Cmp(big.NewInt(100)))
	require.NoError(t, us2.StopSync(true))
}

func TestSendToSelfRecordsUtilTx(t *testing.T) {
	algo := noteprim.New()
	db := rollupdb.NewMemoryDB()
	prov := provider.NewMemoryProvider()

	id := newTestUser(t, db, algo)

	// Seed a pre-existing confirmed note this account will spend.
	inputCommitment := randomHash(t)
	inputNullifier := algo.ValueNoteNullifier(inputCommitment, mustPrivateKey(t, db, id))
	require.NoError(t, db.AddNote(&types.Note{
		AssetId: 1, Value: big.NewInt(50), Commitment: inputCommitment,
		Nullifier: inputNullifier, Owner: id,
	}))

	recipientNote := &noteprim.TreeNote{
		Value: big.NewInt(30), AssetId: 1, OwnerPubKey: id.PublicKey, OwnerNonce: id.Nonce,
		Secret: randomHash(t), Creator: id.PublicKey,
	}
	changeNote := &noteprim.TreeNote{
		Value: big.NewInt(15), AssetId: 1, OwnerPubKey: id.PublicKey, OwnerNonce: id.Nonce,
		Secret: randomHash(t), Creator: id.PublicKey,
	}
	commitment1 := algo.NoteCommitment(recipientNote)
	commitment2 := algo.NoteCommitment(changeNote)
	vk1, err := algo.EncryptViewingKey(id.PublicKey, recipientNote)
	require.NoError(t, err)
	vk2, err := algo.EncryptViewingKey(id.PublicKey, changeNote)
	require.NoError(t, err)

	payloadBytes, err := types.EncodeJoinSplitPayload(&types.JoinSplitOffchainPayload{ViewingKey1: vk1, ViewingKey2: vk2})
	require.NoError(t, err)

	txHash := randomHash(t)
	var proof types.InnerProof
	proof.ProofId = types.ProofSend
	proof.NoteCommitment1 = commitment1
	proof.NoteCommitment2 = commitment2
	proof.Nullifier1 = inputNullifier
	proof.AssetId[31] = 1
	proof.TxId = txHash

	rpd := &types.RollupProofData{RollupId: 0, DataStartIndex: 0, InnerProofData: []types.InnerProof{proof}}
	block := &types.Block{RollupId: 0, RollupProofData: types.EncodeRollupProofData(rpd), OffchainTxData: [][]byte{payloadBytes}}
	prov.AddBlock(block)

	factory := NewFactory(Deps{DB: db, Provider: prov, Algorithms: algo})
	us, err := factory.New(context.Background(), id)
	require.NoError(t, err)
	require.NoError(t, us.StartSync(context.Background()))

	require.Equal(t, 0, us.Balance(1).Cmp(big.NewInt(45))) // 30 + 15

	forwardLink := algo.ValueNoteNullifier(commitment1, mustPrivateKey(t, db, id))
	utilTx, err := db.GetUtilTxByLink(forwardLink)
	require.NoError(t, err)
	require.NotNil(t, utilTx)
	require.Equal(t, 0, utilTx.TxFee.Cmp(big.NewInt(5))) // 50 - 30 - 15

	require.NoError(t, us.StopSync(true))
}

func mustPrivateKey(t *testing.T, db rollupdb.Database, id types.AccountId) common.Key32 {
	t.Helper()
	u, err := db.GetUser(id)
	require.NoError(t, err)
	require.NotNil(t, u)
	return u.PrivateKey
}

func TestReconcileRemovesAbandonedPendingState(t *testing.T) {
	algo := noteprim.New()
	db := rollupdb.NewMemoryDB()
	prov := provider.NewMemoryProvider()
	id := newTestUser(t, db, algo)

	pendingCommitment := randomHash(t)
	pendingNullifier := randomHash(t)
	require.NoError(t, db.AddNote(&types.Note{
		AssetId: 1, Value: big.NewInt(10), Commitment: pendingCommitment,
		Nullifier: pendingNullifier, Owner: id, Pending: true,
	}))
	staleTxHash := randomHash(t)
	require.NoError(t, db.AddJoinSplitTx(&types.UserJoinSplitTx{
		TxHash: staleTxHash, UserId: id, AssetId: 1,
		PublicInput: new(big.Int), PublicOutput: new(big.Int),
		PrivateInput: new(big.Int), PrivateOutputRecipient: new(big.Int), PrivateOutputSender: new(big.Int),
	}))

	// The provider reports no pending txs at all: the reconciler should
	// drop both the stale tx record and the orphaned pending note.
	prov.SetPendingTxs(nil)

	factory := NewFactory(Deps{DB: db, Provider: prov, Algorithms: algo})
	_, err := factory.New(context.Background(), id)
	require.NoError(t, err)

	unsettled, err := db.GetUnsettledUserTxs(id)
	require.NoError(t, err)
	require.Empty(t, unsettled)

	notes, err := db.GetUserPendingNotes(id)
	require.NoError(t, err)
	require.Empty(t, notes)
}
