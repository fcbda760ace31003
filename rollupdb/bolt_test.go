package rollupdb

import (
	"crypto/rand"
	"math/big"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/tos-network/rollupsync/common"
	"github.com/tos-network/rollupsync/types"
)

func randomKey32(t *testing.T) common.Key32 {
	t.Helper()
	var k common.Key32
	_, err := rand.Read(k[:])
	require.NoError(t, err)
	return k
}

func randomHash32(t *testing.T) common.Hash32 {
	t.Helper()
	var h common.Hash32
	_, err := rand.Read(h[:])
	require.NoError(t, err)
	return h
}

func randomAccountId(t *testing.T) types.AccountId {
	t.Helper()
	return types.AccountId{PublicKey: randomKey32(t), Nonce: 0}
}

func newBoltForTest(t *testing.T) *BoltDB {
	t.Helper()
	db, err := OpenBolt(filepath.Join(t.TempDir(), "rollupsync.db"))
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, db.Close()) })
	return db
}

// TestDatabaseImplementations runs the same note/tx/claim scenarios against
// both Database implementations, so BoltDB's msgpack-encoded bucket layout
// gets the coverage MemoryDB's plain maps already exercise indirectly
// through userstate's tests.
func TestDatabaseImplementations(t *testing.T) {
	backends := map[string]func(t *testing.T) Database{
		"memory": func(t *testing.T) Database { return NewMemoryDB() },
		"bolt":   func(t *testing.T) Database { return newBoltForTest(t) },
	}
	for name, newDB := range backends {
		t.Run(name, func(t *testing.T) {
			t.Run("UserAndNotes", func(t *testing.T) { testUserAndNotes(t, newDB(t)) })
			t.Run("JoinSplitTxLifecycle", func(t *testing.T) { testJoinSplitTxLifecycle(t, newDB(t)) })
			t.Run("AccountTxAndSigningKeys", func(t *testing.T) { testAccountTxAndSigningKeys(t, newDB(t)) })
			t.Run("DefiTxAndClaim", func(t *testing.T) { testDefiTxAndClaim(t, newDB(t)) })
			t.Run("UtilTxAndUnsettled", func(t *testing.T) { testUtilTxAndUnsettled(t, newDB(t)) })
			t.Run("RemoveUserTxRespectsOwnership", func(t *testing.T) { testRemoveUserTxRespectsOwnership(t, newDB(t)) })
		})
	}
}

func testUserAndNotes(t *testing.T, db Database) {
	id := randomAccountId(t)
	require.NoError(t, db.UpdateUser(&types.UserData{
		Id: id, PublicKey: id.PublicKey, PrivateKey: randomKey32(t), Nonce: id.Nonce, SyncedToRollup: -1,
	}))
	u, err := db.GetUser(id)
	require.NoError(t, err)
	require.NotNil(t, u)
	require.Equal(t, id.PublicKey, u.PublicKey)
	require.Equal(t, int64(-1), u.SyncedToRollup)

	confirmed := &types.Note{
		AssetId: 1, Value: big.NewInt(100), Commitment: randomHash32(t),
		Nullifier: randomHash32(t), Owner: id,
	}
	pending := &types.Note{
		AssetId: 1, Value: big.NewInt(30), Commitment: randomHash32(t),
		Nullifier: randomHash32(t), Owner: id, Pending: true,
	}
	require.NoError(t, db.AddNote(confirmed))
	require.NoError(t, db.AddNote(pending))

	confirmedNotes, err := db.GetUserNotes(id)
	require.NoError(t, err)
	require.Len(t, confirmedNotes, 1)
	require.Equal(t, 0, confirmedNotes[0].Value.Cmp(big.NewInt(100)))

	pendingNotes, err := db.GetUserPendingNotes(id)
	require.NoError(t, err)
	require.Len(t, pendingNotes, 1)

	require.NoError(t, db.NullifyNote(confirmed.Nullifier))
	got, err := db.GetNoteByNullifier(confirmed.Nullifier)
	require.NoError(t, err)
	require.NotNil(t, got)
	require.True(t, got.Nullified)

	require.NoError(t, db.RemoveNote(confirmed.Nullifier))
	got, err = db.GetNoteByNullifier(confirmed.Nullifier)
	require.NoError(t, err)
	require.Nil(t, got)
}

func testJoinSplitTxLifecycle(t *testing.T, db Database) {
	id := randomAccountId(t)
	tx := &types.UserJoinSplitTx{
		TxHash: randomHash32(t), UserId: id, AssetId: 1,
		PublicInput: new(big.Int), PublicOutput: new(big.Int),
		PrivateInput: big.NewInt(10), PrivateOutputRecipient: big.NewInt(6), PrivateOutputSender: big.NewInt(4),
		Created: time.Now(),
	}
	require.NoError(t, db.AddJoinSplitTx(tx))

	got, err := db.GetJoinSplitTx(tx.TxHash, id)
	require.NoError(t, err)
	require.NotNil(t, got)
	require.Equal(t, 0, got.PrivateInput.Cmp(big.NewInt(10)))
	require.Nil(t, got.Settled)

	settledAt := time.Now()
	require.NoError(t, db.SettleJoinSplitTx(tx.TxHash, id, settledAt))
	got, err = db.GetJoinSplitTx(tx.TxHash, id)
	require.NoError(t, err)
	require.NotNil(t, got.Settled)
}

func testAccountTxAndSigningKeys(t *testing.T, db Database) {
	id := randomAccountId(t)
	tx := &types.UserAccountTx{
		TxHash: randomHash32(t), UserId: id, AliasHash: randomHash32(t), Created: time.Now(),
	}
	require.NoError(t, db.AddAccountTx(tx))

	got, err := db.GetAccountTx(tx.TxHash)
	require.NoError(t, err)
	require.NotNil(t, got)
	require.Equal(t, tx.AliasHash, got.AliasHash)
	require.Nil(t, got.Settled)

	require.NoError(t, db.SettleAccountTx(tx.TxHash, time.Now()))
	got, err = db.GetAccountTx(tx.TxHash)
	require.NoError(t, err)
	require.NotNil(t, got.Settled)

	key := types.SigningKey{AccountId: id, Key: randomKey32(t), TreeIndex: 3}
	require.NoError(t, db.AddUserSigningKey(key))

	keys, err := db.GetUserSigningKeys(id)
	require.NoError(t, err)
	require.Len(t, keys, 1)
	require.Equal(t, key.Key, keys[0].Key)
	require.Equal(t, uint32(3), keys[0].TreeIndex)

	other, err := db.GetUserSigningKeys(randomAccountId(t))
	require.NoError(t, err)
	require.Empty(t, other)
}

func testDefiTxAndClaim(t *testing.T, db Database) {
	id := randomAccountId(t)
	bridge := types.BridgeId{Raw: randomHash32(t), InputAssetId: 1, OutputAssetIdA: 2, NumOutputAssets: 1}
	tx := &types.UserDefiTx{
		TxHash: randomHash32(t), UserId: id, BridgeId: bridge,
		DepositValue: big.NewInt(80), PartialStateSecret: randomHash32(t), TxFee: new(big.Int),
		Created: time.Now(), OutputValueA: new(big.Int), OutputValueB: new(big.Int),
	}
	require.NoError(t, db.AddDefiTx(tx))

	got, err := db.GetDefiTx(tx.TxHash)
	require.NoError(t, err)
	require.NotNil(t, got)
	require.True(t, got.BridgeId.Equal(bridge))
	require.Equal(t, 0, got.DepositValue.Cmp(big.NewInt(80)))

	require.NoError(t, db.UpdateDefiTx(tx.TxHash, big.NewInt(160), new(big.Int)))
	got, err = db.GetDefiTx(tx.TxHash)
	require.NoError(t, err)
	require.Equal(t, 0, got.OutputValueA.Cmp(big.NewInt(160)))

	require.NoError(t, db.SettleDefiTx(tx.TxHash, time.Now()))
	got, err = db.GetDefiTx(tx.TxHash)
	require.NoError(t, err)
	require.NotNil(t, got.Settled)

	claim := &types.Claim{TxHash: tx.TxHash, Secret: randomHash32(t), Nullifier: randomHash32(t), Owner: id}
	require.NoError(t, db.AddClaim(claim))
	gotClaim, err := db.GetClaim(claim.Nullifier)
	require.NoError(t, err)
	require.NotNil(t, gotClaim)
	require.Equal(t, claim.Secret, gotClaim.Secret)
	require.Equal(t, id, gotClaim.Owner)
}

func testUtilTxAndUnsettled(t *testing.T, db Database) {
	id := randomAccountId(t)
	utilTx := &types.UserUtilTx{
		TxHash: randomHash32(t), UserId: id, AssetId: 1, TxFee: big.NewInt(5), ForwardLink: randomHash32(t),
	}
	require.NoError(t, db.AddUtilTx(utilTx))

	got, err := db.GetUtilTxByLink(utilTx.ForwardLink)
	require.NoError(t, err)
	require.NotNil(t, got)
	require.Equal(t, utilTx.TxHash, got.TxHash)

	joinSplit := &types.UserJoinSplitTx{
		TxHash: randomHash32(t), UserId: id, AssetId: 1,
		PublicInput: new(big.Int), PublicOutput: new(big.Int),
		PrivateInput: new(big.Int), PrivateOutputRecipient: new(big.Int), PrivateOutputSender: new(big.Int),
	}
	require.NoError(t, db.AddJoinSplitTx(joinSplit))

	unsettled, err := db.GetUnsettledUserTxs(id)
	require.NoError(t, err)
	require.Len(t, unsettled, 1)
	require.Equal(t, joinSplit.TxHash, unsettled[0].TxHash)

	require.NoError(t, db.SettleJoinSplitTx(joinSplit.TxHash, id, time.Now()))
	unsettled, err = db.GetUnsettledUserTxs(id)
	require.NoError(t, err)
	require.Empty(t, unsettled)
}

func testRemoveUserTxRespectsOwnership(t *testing.T, db Database) {
	owner := randomAccountId(t)
	intruder := randomAccountId(t)

	accountTx := &types.UserAccountTx{TxHash: randomHash32(t), UserId: owner, AliasHash: randomHash32(t), Created: time.Now()}
	require.NoError(t, db.AddAccountTx(accountTx))

	defiTx := &types.UserDefiTx{
		TxHash: randomHash32(t), UserId: owner, BridgeId: types.BridgeId{Raw: randomHash32(t)},
		DepositValue: big.NewInt(1), PartialStateSecret: randomHash32(t), TxFee: new(big.Int),
		Created: time.Now(), OutputValueA: new(big.Int), OutputValueB: new(big.Int),
	}
	require.NoError(t, db.AddDefiTx(defiTx))

	// Removing under the wrong owner must be a no-op for both record kinds.
	require.NoError(t, db.RemoveUserTx(accountTx.TxHash, intruder))
	require.NoError(t, db.RemoveUserTx(defiTx.TxHash, intruder))

	got, err := db.GetAccountTx(accountTx.TxHash)
	require.NoError(t, err)
	require.NotNil(t, got)

	gotDefi, err := db.GetDefiTx(defiTx.TxHash)
	require.NoError(t, err)
	require.NotNil(t, gotDefi)

	// Removing under the true owner deletes it.
	require.NoError(t, db.RemoveUserTx(accountTx.TxHash, owner))
	require.NoError(t, db.RemoveUserTx(defiTx.TxHash, owner))

	got, err = db.GetAccountTx(accountTx.TxHash)
	require.NoError(t, err)
	require.Nil(t, got)

	gotDefi, err = db.GetDefiTx(defiTx.TxHash)
	require.NoError(t, err)
	require.Nil(t, gotDefi)
}
