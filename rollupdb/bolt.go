package rollupdb

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math/big"
	"time"

	"github.com/tos-network/rollupsync/common"
	"github.com/tos-network/rollupsync/types"
	"github.com/vmihailenco/msgpack/v5"
	bolt "go.etcd.io/bbolt"
)

var (
	bucketUsers        = []byte("users")
	bucketSigningKeys  = []byte("signing_keys")
	bucketNotes        = []byte("notes")
	bucketClaims       = []byte("claims")
	bucketJoinSplitTxs = []byte("join_split_txs")
	bucketAccountTxs   = []byte("account_txs")
	bucketDefiTxs      = []byte("defi_txs")
	bucketUtilTxs      = []byte("util_txs")
	bucketUtilByLink   = []byte("util_by_link")
)

var boltBuckets = [][]byte{
	bucketUsers, bucketSigningKeys, bucketNotes, bucketClaims,
	bucketJoinSplitTxs, bucketAccountTxs, bucketDefiTxs, bucketUtilTxs, bucketUtilByLink,
}

// BoltDB is a go.etcd.io/bbolt-backed Database, the durable analogue of the
// teacher's tosdb.Database over a leveldb file, chosen here because bbolt is
// a single-file embedded KV store well suited to one synchronizer process
// per user, without requiring an external server the way tosdb's leveldb
// backend still runs as an in-process engine but with a heavier write path.
type BoltDB struct {
	db *bolt.DB
}

func OpenBolt(path string) (*BoltDB, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("rollupdb: open bbolt at %s: %w", path, err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		for _, b := range boltBuckets {
			if _, err := tx.CreateBucketIfNotExists(b); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("rollupdb: init buckets: %w", err)
	}
	return &BoltDB{db: db}, nil
}

func (b *BoltDB) Close() error { return b.db.Close() }

// WithTx runs fn inside a single read-write bbolt transaction, letting a
// caller batch several raw bucket reads and writes atomically instead of
// paying a separate fsync per write. Every other method here opens its own
// single-operation transaction and cannot join fn's; calling a writing
// method from inside fn blocks on bbolt's single-writer lock.
func (b *BoltDB) WithTx(fn func(tx *bolt.Tx) error) error {
	return b.db.Update(fn)
}

func accountKey(id types.AccountId) []byte {
	buf := make([]byte, 36)
	copy(buf[:32], id.PublicKey[:])
	binary.BigEndian.PutUint32(buf[32:], id.Nonce)
	return buf
}

func joinSplitBoltKey(txHash common.Hash32, userId types.AccountId) []byte {
	return append(append([]byte{}, txHash[:]...), accountKey(userId)...)
}

func put(b *bolt.Bucket, key []byte, v interface{}) error {
	data, err := msgpack.Marshal(v)
	if err != nil {
		return err
	}
	return b.Put(key, data)
}

func get(b *bolt.Bucket, key []byte, v interface{}) (bool, error) {
	data := b.Get(key)
	if data == nil {
		return false, nil
	}
	if err := msgpack.Unmarshal(data, v); err != nil {
		return false, err
	}
	return true, nil
}

// wire mirrors for msgpack-friendly encoding of big.Int/time.Time fields.

type boltUser struct {
	PublicKey      []byte
	PrivateKey     []byte
	Nonce          uint32
	AliasHash      []byte
	SyncedToRollup int64
}

func (b *BoltDB) GetUser(id types.AccountId) (*types.UserData, error) {
	var out *types.UserData
	err := b.db.View(func(tx *bolt.Tx) error {
		var w boltUser
		ok, err := get(tx.Bucket(bucketUsers), accountKey(id), &w)
		if err != nil || !ok {
			return err
		}
		u := &types.UserData{
			Id:             id,
			PublicKey:      common.BytesToKey32(w.PublicKey),
			PrivateKey:     common.BytesToKey32(w.PrivateKey),
			Nonce:          w.Nonce,
			SyncedToRollup: w.SyncedToRollup,
		}
		if len(w.AliasHash) > 0 {
			h := common.BytesToHash32(w.AliasHash)
			u.AliasHash = &h
		}
		out = u
		return nil
	})
	return out, err
}

func (b *BoltDB) UpdateUser(u *types.UserData) error {
	return b.db.Update(func(tx *bolt.Tx) error {
		w := boltUser{
			PublicKey:      u.PublicKey.Bytes(),
			PrivateKey:     u.PrivateKey.Bytes(),
			Nonce:          u.Nonce,
			SyncedToRollup: u.SyncedToRollup,
		}
		if u.AliasHash != nil {
			w.AliasHash = u.AliasHash.Bytes()
		}
		return put(tx.Bucket(bucketUsers), accountKey(u.Id), &w)
	})
}

type boltSigningKey struct {
	AccountId []byte
	Key       []byte
	TreeIndex uint32
}

func (b *BoltDB) AddUserSigningKey(k types.SigningKey) error {
	return b.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(bucketSigningKeys)
		seq, _ := bucket.NextSequence()
		key := make([]byte, 8)
		binary.BigEndian.PutUint64(key, seq)
		return put(bucket, key, &boltSigningKey{accountKey(k.AccountId), k.Key.Bytes(), k.TreeIndex})
	})
}

func (b *BoltDB) GetUserSigningKeys(id types.AccountId) ([]types.SigningKey, error) {
	var out []types.SigningKey
	want := accountKey(id)
	err := b.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketSigningKeys).ForEach(func(_, v []byte) error {
			var w boltSigningKey
			if err := msgpack.Unmarshal(v, &w); err != nil {
				return err
			}
			if !bytes.Equal(w.AccountId, want) {
				return nil
			}
			var owner types.AccountId
			copy(owner.PublicKey[:], w.AccountId[:32])
			owner.Nonce = binary.BigEndian.Uint32(w.AccountId[32:])
			out = append(out, types.SigningKey{AccountId: owner, Key: common.BytesToKey32(w.Key), TreeIndex: w.TreeIndex})
			return nil
		})
	})
	return out, err
}

type boltNote struct {
	AssetId        uint32
	Value          []byte
	Commitment     []byte
	Secret         []byte
	Nullifier      []byte
	Nullified      bool
	Owner          []byte
	CreatorPubKey  []byte
	InputNullifier []byte
	Index          uint32
	AllowChain     bool
	Pending        bool
}

func toBoltNote(n *types.Note) *boltNote {
	return &boltNote{
		AssetId: n.AssetId, Value: n.Value.Bytes(), Commitment: n.Commitment.Bytes(),
		Secret: n.Secret.Bytes(), Nullifier: n.Nullifier.Bytes(), Nullified: n.Nullified,
		Owner: accountKey(n.Owner), CreatorPubKey: n.CreatorPubKey.Bytes(),
		InputNullifier: n.InputNullifier.Bytes(), Index: n.Index,
		AllowChain: n.AllowChain, Pending: n.Pending,
	}
}

func fromBoltNote(w *boltNote) *types.Note {
	var owner types.AccountId
	if len(w.Owner) == 36 {
		copy(owner.PublicKey[:], w.Owner[:32])
		owner.Nonce = binary.BigEndian.Uint32(w.Owner[32:])
	}
	return &types.Note{
		AssetId: w.AssetId, Value: new(big.Int).SetBytes(w.Value),
		Commitment: common.BytesToHash32(w.Commitment), Secret: common.BytesToHash32(w.Secret),
		Nullifier: common.BytesToHash32(w.Nullifier), Nullified: w.Nullified, Owner: owner,
		CreatorPubKey: common.BytesToKey32(w.CreatorPubKey), InputNullifier: common.BytesToHash32(w.InputNullifier),
		Index: w.Index, AllowChain: w.AllowChain, Pending: w.Pending,
	}
}

func (b *BoltDB) AddNote(n *types.Note) error {
	return b.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(bucketNotes)
		key := n.Nullifier.Bytes()
		var existing boltNote
		if ok, err := get(bucket, key, &existing); err != nil {
			return err
		} else if ok {
			existing.Index = n.Index
			existing.Pending = n.Pending
			existing.AllowChain = n.AllowChain
			existing.Value = n.Value.Bytes()
			return put(bucket, key, &existing)
		}
		return put(bucket, key, toBoltNote(n))
	})
}

func (b *BoltDB) NullifyNote(nullifier common.Hash32) error {
	return b.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(bucketNotes)
		var w boltNote
		ok, err := get(bucket, nullifier.Bytes(), &w)
		if err != nil || !ok {
			return err
		}
		w.Nullified = true
		return put(bucket, nullifier.Bytes(), &w)
	})
}

func (b *BoltDB) RemoveNote(nullifier common.Hash32) error {
	return b.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketNotes).Delete(nullifier.Bytes())
	})
}

func (b *BoltDB) GetNoteByNullifier(nullifier common.Hash32) (*types.Note, error) {
	var out *types.Note
	err := b.db.View(func(tx *bolt.Tx) error {
		var w boltNote
		ok, err := get(tx.Bucket(bucketNotes), nullifier.Bytes(), &w)
		if err != nil || !ok {
			return err
		}
		out = fromBoltNote(&w)
		return nil
	})
	return out, err
}

func (b *BoltDB) userNotes(id types.AccountId, pending bool) ([]*types.Note, error) {
	var out []*types.Note
	want := accountKey(id)
	err := b.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketNotes).ForEach(func(_, v []byte) error {
			var w boltNote
			if err := msgpack.Unmarshal(v, &w); err != nil {
				return err
			}
			if bytes.Equal(w.Owner, want) && w.Pending == pending {
				out = append(out, fromBoltNote(&w))
			}
			return nil
		})
	})
	return out, err
}

func (b *BoltDB) GetUserNotes(id types.AccountId) ([]*types.Note, error) { return b.userNotes(id, false) }
func (b *BoltDB) GetUserPendingNotes(id types.AccountId) ([]*types.Note, error) {
	return b.userNotes(id, true)
}

type boltClaim struct {
	TxHash    []byte
	Secret    []byte
	Nullifier []byte
	Owner     []byte
}

func (b *BoltDB) AddClaim(c *types.Claim) error {
	return b.db.Update(func(tx *bolt.Tx) error {
		return put(tx.Bucket(bucketClaims), c.Nullifier.Bytes(), &boltClaim{
			TxHash: c.TxHash.Bytes(), Secret: c.Secret.Bytes(), Nullifier: c.Nullifier.Bytes(), Owner: accountKey(c.Owner),
		})
	})
}

func (b *BoltDB) GetClaim(nullifier common.Hash32) (*types.Claim, error) {
	var out *types.Claim
	err := b.db.View(func(tx *bolt.Tx) error {
		var w boltClaim
		ok, err := get(tx.Bucket(bucketClaims), nullifier.Bytes(), &w)
		if err != nil || !ok {
			return err
		}
		var owner types.AccountId
		copy(owner.PublicKey[:], w.Owner[:32])
		owner.Nonce = binary.BigEndian.Uint32(w.Owner[32:])
		out = &types.Claim{
			TxHash: common.BytesToHash32(w.TxHash), Secret: common.BytesToHash32(w.Secret),
			Nullifier: common.BytesToHash32(w.Nullifier), Owner: owner,
		}
		return nil
	})
	return out, err
}

type boltJoinSplitTx struct {
	TxHash                 []byte
	UserId                 []byte
	AssetId                uint32
	PublicInput            []byte
	PublicOutput           []byte
	PrivateInput           []byte
	PrivateOutputRecipient []byte
	PrivateOutputSender    []byte
	InputOwner             []byte
	OutputOwner            []byte
	OwnedByMe              bool
	Created                int64
	Settled                int64 // 0 means unset
}

func bigBytes(v *big.Int) []byte {
	if v == nil {
		return nil
	}
	return v.Bytes()
}

func toBigInt(b []byte) *big.Int { return new(big.Int).SetBytes(b) }

func (b *BoltDB) AddJoinSplitTx(t *types.UserJoinSplitTx) error {
	return b.db.Update(func(tx *bolt.Tx) error {
		w := &boltJoinSplitTx{
			TxHash: t.TxHash.Bytes(), UserId: accountKey(t.UserId), AssetId: t.AssetId,
			PublicInput: bigBytes(t.PublicInput), PublicOutput: bigBytes(t.PublicOutput),
			PrivateInput: bigBytes(t.PrivateInput), PrivateOutputRecipient: bigBytes(t.PrivateOutputRecipient),
			PrivateOutputSender: bigBytes(t.PrivateOutputSender), OwnedByMe: t.OwnedByMe,
			Created: t.Created.UnixNano(),
		}
		if t.InputOwner != nil {
			w.InputOwner = t.InputOwner.Bytes()
		}
		if t.OutputOwner != nil {
			w.OutputOwner = t.OutputOwner.Bytes()
		}
		if t.Settled != nil {
			w.Settled = t.Settled.UnixNano()
		}
		return put(tx.Bucket(bucketJoinSplitTxs), joinSplitBoltKey(t.TxHash, t.UserId), w)
	})
}

func fromBoltJoinSplitTx(w *boltJoinSplitTx) *types.UserJoinSplitTx {
	var owner types.AccountId
	copy(owner.PublicKey[:], w.UserId[:32])
	owner.Nonce = binary.BigEndian.Uint32(w.UserId[32:])
	t := &types.UserJoinSplitTx{
		TxHash: common.BytesToHash32(w.TxHash), UserId: owner, AssetId: w.AssetId,
		PublicInput: toBigInt(w.PublicInput), PublicOutput: toBigInt(w.PublicOutput),
		PrivateInput: toBigInt(w.PrivateInput), PrivateOutputRecipient: toBigInt(w.PrivateOutputRecipient),
		PrivateOutputSender: toBigInt(w.PrivateOutputSender), OwnedByMe: w.OwnedByMe,
		Created: time.Unix(0, w.Created),
	}
	if len(w.InputOwner) > 0 {
		a := common.BytesToAddress(w.InputOwner)
		t.InputOwner = &a
	}
	if len(w.OutputOwner) > 0 {
		a := common.BytesToAddress(w.OutputOwner)
		t.OutputOwner = &a
	}
	if w.Settled != 0 {
		s := time.Unix(0, w.Settled)
		t.Settled = &s
	}
	return t
}

func (b *BoltDB) GetJoinSplitTx(txHash common.Hash32, userId types.AccountId) (*types.UserJoinSplitTx, error) {
	var out *types.UserJoinSplitTx
	err := b.db.View(func(tx *bolt.Tx) error {
		var w boltJoinSplitTx
		ok, err := get(tx.Bucket(bucketJoinSplitTxs), joinSplitBoltKey(txHash, userId), &w)
		if err != nil || !ok {
			return err
		}
		out = fromBoltJoinSplitTx(&w)
		return nil
	})
	return out, err
}

func (b *BoltDB) SettleJoinSplitTx(txHash common.Hash32, userId types.AccountId, settled time.Time) error {
	return b.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(bucketJoinSplitTxs)
		key := joinSplitBoltKey(txHash, userId)
		var w boltJoinSplitTx
		ok, err := get(bucket, key, &w)
		if err != nil || !ok {
			return err
		}
		if w.Settled == 0 {
			w.Settled = settled.UnixNano()
		}
		return put(bucket, key, &w)
	})
}

type boltAccountTx struct {
	TxHash         []byte
	UserId         []byte
	AliasHash      []byte
	NewSigningKey1 []byte
	NewSigningKey2 []byte
	Migrated       bool
	Created        int64
	Settled        int64
}

func (b *BoltDB) AddAccountTx(t *types.UserAccountTx) error {
	return b.db.Update(func(tx *bolt.Tx) error {
		w := &boltAccountTx{
			TxHash: t.TxHash.Bytes(), UserId: accountKey(t.UserId), AliasHash: t.AliasHash.Bytes(),
			Migrated: t.Migrated, Created: t.Created.UnixNano(),
		}
		if t.NewSigningKey1 != nil {
			w.NewSigningKey1 = t.NewSigningKey1.Bytes()
		}
		if t.NewSigningKey2 != nil {
			w.NewSigningKey2 = t.NewSigningKey2.Bytes()
		}
		if t.Settled != nil {
			w.Settled = t.Settled.UnixNano()
		}
		return put(tx.Bucket(bucketAccountTxs), t.TxHash.Bytes(), w)
	})
}

func (b *BoltDB) GetAccountTx(txHash common.Hash32) (*types.UserAccountTx, error) {
	var out *types.UserAccountTx
	err := b.db.View(func(tx *bolt.Tx) error {
		var w boltAccountTx
		ok, err := get(tx.Bucket(bucketAccountTxs), txHash.Bytes(), &w)
		if err != nil || !ok {
			return err
		}
		var owner types.AccountId
		copy(owner.PublicKey[:], w.UserId[:32])
		owner.Nonce = binary.BigEndian.Uint32(w.UserId[32:])
		t := &types.UserAccountTx{
			TxHash: common.BytesToHash32(w.TxHash), UserId: owner, AliasHash: common.BytesToHash32(w.AliasHash),
			Migrated: w.Migrated, Created: time.Unix(0, w.Created),
		}
		if len(w.NewSigningKey1) > 0 {
			k := common.BytesToKey32(w.NewSigningKey1)
			t.NewSigningKey1 = &k
		}
		if len(w.NewSigningKey2) > 0 {
			k := common.BytesToKey32(w.NewSigningKey2)
			t.NewSigningKey2 = &k
		}
		if w.Settled != 0 {
			s := time.Unix(0, w.Settled)
			t.Settled = &s
		}
		out = t
		return nil
	})
	return out, err
}

func (b *BoltDB) SettleAccountTx(txHash common.Hash32, settled time.Time) error {
	return b.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(bucketAccountTxs)
		var w boltAccountTx
		ok, err := get(bucket, txHash.Bytes(), &w)
		if err != nil || !ok {
			return err
		}
		if w.Settled == 0 {
			w.Settled = settled.UnixNano()
		}
		return put(bucket, txHash.Bytes(), &w)
	})
}

type boltDefiTx struct {
	TxHash             []byte
	UserId             []byte
	BridgeRaw          []byte
	InputAssetId       uint32
	OutputAssetIdA     uint32
	OutputAssetIdB     uint32
	NumOutputAssets    uint8
	DepositValue       []byte
	PartialStateSecret []byte
	TxFee              []byte
	Created            int64
	OutputValueA       []byte
	OutputValueB       []byte
	Settled            int64
}

func (b *BoltDB) AddDefiTx(t *types.UserDefiTx) error {
	return b.db.Update(func(tx *bolt.Tx) error {
		w := &boltDefiTx{
			TxHash: t.TxHash.Bytes(), UserId: accountKey(t.UserId), BridgeRaw: t.BridgeId.Raw.Bytes(),
			InputAssetId: t.BridgeId.InputAssetId, OutputAssetIdA: t.BridgeId.OutputAssetIdA,
			OutputAssetIdB: t.BridgeId.OutputAssetIdB, NumOutputAssets: t.BridgeId.NumOutputAssets,
			DepositValue: bigBytes(t.DepositValue), PartialStateSecret: t.PartialStateSecret.Bytes(),
			TxFee: bigBytes(t.TxFee), Created: t.Created.UnixNano(),
			OutputValueA: bigBytes(t.OutputValueA), OutputValueB: bigBytes(t.OutputValueB),
		}
		if t.Settled != nil {
			w.Settled = t.Settled.UnixNano()
		}
		return put(tx.Bucket(bucketDefiTxs), t.TxHash.Bytes(), w)
	})
}

func fromBoltDefiTx(w *boltDefiTx) *types.UserDefiTx {
	var owner types.AccountId
	copy(owner.PublicKey[:], w.UserId[:32])
	owner.Nonce = binary.BigEndian.Uint32(w.UserId[32:])
	t := &types.UserDefiTx{
		TxHash: common.BytesToHash32(w.TxHash), UserId: owner,
		BridgeId: types.BridgeId{
			Raw: common.BytesToHash32(w.BridgeRaw), InputAssetId: w.InputAssetId,
			OutputAssetIdA: w.OutputAssetIdA, OutputAssetIdB: w.OutputAssetIdB, NumOutputAssets: w.NumOutputAssets,
		},
		DepositValue: toBigInt(w.DepositValue), PartialStateSecret: common.BytesToHash32(w.PartialStateSecret),
		TxFee: toBigInt(w.TxFee), Created: time.Unix(0, w.Created),
		OutputValueA: toBigInt(w.OutputValueA), OutputValueB: toBigInt(w.OutputValueB),
	}
	if w.Settled != 0 {
		s := time.Unix(0, w.Settled)
		t.Settled = &s
	}
	return t
}

func (b *BoltDB) GetDefiTx(txHash common.Hash32) (*types.UserDefiTx, error) {
	var out *types.UserDefiTx
	err := b.db.View(func(tx *bolt.Tx) error {
		var w boltDefiTx
		ok, err := get(tx.Bucket(bucketDefiTxs), txHash.Bytes(), &w)
		if err != nil || !ok {
			return err
		}
		out = fromBoltDefiTx(&w)
		return nil
	})
	return out, err
}

func (b *BoltDB) UpdateDefiTx(txHash common.Hash32, outputValueA, outputValueB *big.Int) error {
	return b.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(bucketDefiTxs)
		var w boltDefiTx
		ok, err := get(bucket, txHash.Bytes(), &w)
		if err != nil || !ok {
			return err
		}
		w.OutputValueA = bigBytes(outputValueA)
		w.OutputValueB = bigBytes(outputValueB)
		return put(bucket, txHash.Bytes(), &w)
	})
}

func (b *BoltDB) SettleDefiTx(txHash common.Hash32, settled time.Time) error {
	return b.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(bucketDefiTxs)
		var w boltDefiTx
		ok, err := get(bucket, txHash.Bytes(), &w)
		if err != nil || !ok {
			return err
		}
		if w.Settled == 0 {
			w.Settled = settled.UnixNano()
		}
		return put(bucket, txHash.Bytes(), &w)
	})
}

type boltUtilTx struct {
	TxHash      []byte
	UserId      []byte
	AssetId     uint32
	TxFee       []byte
	ForwardLink []byte
}

func (b *BoltDB) AddUtilTx(t *types.UserUtilTx) error {
	return b.db.Update(func(tx *bolt.Tx) error {
		w := &boltUtilTx{
			TxHash: t.TxHash.Bytes(), UserId: accountKey(t.UserId), AssetId: t.AssetId,
			TxFee: bigBytes(t.TxFee), ForwardLink: t.ForwardLink.Bytes(),
		}
		if err := put(tx.Bucket(bucketUtilTxs), t.TxHash.Bytes(), w); err != nil {
			return err
		}
		return tx.Bucket(bucketUtilByLink).Put(t.ForwardLink.Bytes(), t.TxHash.Bytes())
	})
}

func (b *BoltDB) GetUtilTxByLink(nullifier common.Hash32) (*types.UserUtilTx, error) {
	var out *types.UserUtilTx
	err := b.db.View(func(tx *bolt.Tx) error {
		txHash := tx.Bucket(bucketUtilByLink).Get(nullifier.Bytes())
		if txHash == nil {
			return nil
		}
		var w boltUtilTx
		ok, err := get(tx.Bucket(bucketUtilTxs), txHash, &w)
		if err != nil || !ok {
			return err
		}
		var owner types.AccountId
		copy(owner.PublicKey[:], w.UserId[:32])
		owner.Nonce = binary.BigEndian.Uint32(w.UserId[32:])
		out = &types.UserUtilTx{
			TxHash: common.BytesToHash32(w.TxHash), UserId: owner, AssetId: w.AssetId,
			TxFee: toBigInt(w.TxFee), ForwardLink: common.BytesToHash32(w.ForwardLink),
		}
		return nil
	})
	return out, err
}

func (b *BoltDB) GetUnsettledUserTxs(userId types.AccountId) ([]types.UnsettledTx, error) {
	var out []types.UnsettledTx
	want := accountKey(userId)
	err := b.db.View(func(tx *bolt.Tx) error {
		if err := tx.Bucket(bucketJoinSplitTxs).ForEach(func(_, v []byte) error {
			var w boltJoinSplitTx
			if err := msgpack.Unmarshal(v, &w); err != nil {
				return err
			}
			if bytes.Equal(w.UserId, want) && w.Settled == 0 {
				out = append(out, types.UnsettledTx{TxHash: common.BytesToHash32(w.TxHash), UserId: userId})
			}
			return nil
		}); err != nil {
			return err
		}
		if err := tx.Bucket(bucketAccountTxs).ForEach(func(_, v []byte) error {
			var w boltAccountTx
			if err := msgpack.Unmarshal(v, &w); err != nil {
				return err
			}
			if bytes.Equal(w.UserId, want) && w.Settled == 0 {
				out = append(out, types.UnsettledTx{TxHash: common.BytesToHash32(w.TxHash), UserId: userId})
			}
			return nil
		}); err != nil {
			return err
		}
		return tx.Bucket(bucketDefiTxs).ForEach(func(_, v []byte) error {
			var w boltDefiTx
			if err := msgpack.Unmarshal(v, &w); err != nil {
				return err
			}
			if bytes.Equal(w.UserId, want) && w.Settled == 0 {
				out = append(out, types.UnsettledTx{TxHash: common.BytesToHash32(w.TxHash), UserId: userId})
			}
			return nil
		})
	})
	return out, err
}

func (b *BoltDB) RemoveUserTx(txHash common.Hash32, userId types.AccountId) error {
	want := accountKey(userId)
	return b.db.Update(func(tx *bolt.Tx) error {
		if err := tx.Bucket(bucketJoinSplitTxs).Delete(joinSplitBoltKey(txHash, userId)); err != nil {
			return err
		}
		accountBucket := tx.Bucket(bucketAccountTxs)
		var accountTx boltAccountTx
		if ok, err := get(accountBucket, txHash.Bytes(), &accountTx); err != nil {
			return err
		} else if ok && bytes.Equal(accountTx.UserId, want) {
			if err := accountBucket.Delete(txHash.Bytes()); err != nil {
				return err
			}
		}
		defiBucket := tx.Bucket(bucketDefiTxs)
		var defiTx boltDefiTx
		if ok, err := get(defiBucket, txHash.Bytes(), &defiTx); err != nil {
			return err
		} else if ok && bytes.Equal(defiTx.UserId, want) {
			if err := defiBucket.Delete(txHash.Bytes()); err != nil {
				return err
			}
		}
		return nil
	})
}
