package userstate

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/tos-network/rollupsync/common"
	"github.com/tos-network/rollupsync/noteprim"
	"github.com/tos-network/rollupsync/provider"
	"github.com/tos-network/rollupsync/rollupdb"
	"github.com/tos-network/rollupsync/types"
)

// buildAccountBlock encodes a single ACCOUNT proof registering spendingKey1
// (and, for a migration, a nonzero Nullifier1) under aliasHash.
func buildAccountBlock(t *testing.T, id types.AccountId, aliasHash common.Hash32, spendingKey1 common.Key32, migrated bool) (*types.Block, common.Hash32) {
	t.Helper()
	payloadBytes, err := types.EncodeAccountPayload(&types.AccountOffchainPayload{
		AccountPublicKey: id.PublicKey,
		AccountAliasId:   types.AliasId{AliasHash: aliasHash, Nonce: id.Nonce},
		SpendingKey1:     spendingKey1,
	})
	require.NoError(t, err)

	txHash := randomHash(t)
	var proof types.InnerProof
	proof.ProofId = types.ProofAccount
	proof.TxId = txHash
	if migrated {
		proof.Nullifier1 = randomHash(t)
	}

	rpd := &types.RollupProofData{RollupId: 0, DataStartIndex: 0, InnerProofData: []types.InnerProof{proof}}
	block := &types.Block{RollupId: 0, RollupProofData: types.EncodeRollupProofData(rpd), OffchainTxData: [][]byte{payloadBytes}}
	return block, txHash
}

func TestHandleAccountRegistersSigningKeyAndAlias(t *testing.T) {
	algo := noteprim.New()
	db := rollupdb.NewMemoryDB()
	prov := provider.NewMemoryProvider()

	id := newTestUser(t, db, algo)
	aliasHash := randomHash(t)
	spendingKey1 := randomKey(t)

	block, txHash := buildAccountBlock(t, id, aliasHash, spendingKey1, false)
	prov.AddBlock(block)

	factory := NewFactory(Deps{DB: db, Provider: prov, Algorithms: algo})
	us, err := factory.New(context.Background(), id)
	require.NoError(t, err)
	require.NoError(t, us.StartSync(context.Background()))

	tx, err := db.GetAccountTx(txHash)
	require.NoError(t, err)
	require.NotNil(t, tx)
	require.Equal(t, aliasHash, tx.AliasHash)
	require.False(t, tx.Migrated)
	require.NotNil(t, tx.NewSigningKey1)
	require.Equal(t, spendingKey1, *tx.NewSigningKey1)
	require.Nil(t, tx.NewSigningKey2)
	require.NotNil(t, tx.Settled) // first sighting of this tx on-chain: the recovered record is settled at this block

	keys, err := db.GetUserSigningKeys(id)
	require.NoError(t, err)
	require.Len(t, keys, 1)
	require.Equal(t, spendingKey1, keys[0].Key)
	require.Equal(t, id, keys[0].AccountId)
	require.Equal(t, uint32(0), keys[0].TreeIndex)

	u, err := db.GetUser(id)
	require.NoError(t, err)
	require.NotNil(t, u.AliasHash)
	require.Equal(t, aliasHash, *u.AliasHash)

	require.NoError(t, us.StopSync(true))
}

func TestHandleAccountMigrationRecordsMigratedTx(t *testing.T) {
	algo := noteprim.New()
	db := rollupdb.NewMemoryDB()
	prov := provider.NewMemoryProvider()

	id := newTestUser(t, db, algo)
	aliasHash := randomHash(t)
	spendingKey1 := randomKey(t)

	block, txHash := buildAccountBlock(t, id, aliasHash, spendingKey1, true)
	prov.AddBlock(block)

	factory := NewFactory(Deps{DB: db, Provider: prov, Algorithms: algo})
	us, err := factory.New(context.Background(), id)
	require.NoError(t, err)
	require.NoError(t, us.StartSync(context.Background()))

	tx, err := db.GetAccountTx(txHash)
	require.NoError(t, err)
	require.NotNil(t, tx)
	require.True(t, tx.Migrated)

	require.NoError(t, us.StopSync(true))
}
