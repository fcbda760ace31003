// Package rollupdb defines the persistent storage contract spec.md §6
// requires (note/tx/claim store) and provides two implementations: an
// in-memory reference used by tests and a go.etcd.io/bbolt-backed store for
// real deployments, mirroring the teacher's own pluggable tosdb.Database
// interface (tosdb/leveldb, tosdb/memorydb).
package rollupdb

import (
	"errors"
	"math/big"
	"time"

	"github.com/tos-network/rollupsync/common"
	"github.com/tos-network/rollupsync/types"
)

// ErrNotFound is declared for users of the Database contract, but neither
// MemoryDB nor BoltDB returns it: every lookup, GetUser included, reports a
// miss as a nil result with a nil error, and callers treat that nil result
// as the normal recovery path.
var ErrNotFound = errors.New("rollupdb: not found")

// Database is the storage contract the userstate package depends on.
type Database interface {
	GetUser(id types.AccountId) (*types.UserData, error)
	UpdateUser(u *types.UserData) error
	AddUserSigningKey(k types.SigningKey) error
	GetUserSigningKeys(id types.AccountId) ([]types.SigningKey, error)

	AddNote(n *types.Note) error
	NullifyNote(nullifier common.Hash32) error
	RemoveNote(nullifier common.Hash32) error
	GetNoteByNullifier(nullifier common.Hash32) (*types.Note, error)
	GetUserNotes(id types.AccountId) ([]*types.Note, error)
	GetUserPendingNotes(id types.AccountId) ([]*types.Note, error)

	AddClaim(c *types.Claim) error
	GetClaim(nullifier common.Hash32) (*types.Claim, error)

	AddJoinSplitTx(tx *types.UserJoinSplitTx) error
	GetJoinSplitTx(txHash common.Hash32, userId types.AccountId) (*types.UserJoinSplitTx, error)
	SettleJoinSplitTx(txHash common.Hash32, userId types.AccountId, settled time.Time) error

	AddAccountTx(tx *types.UserAccountTx) error
	GetAccountTx(txHash common.Hash32) (*types.UserAccountTx, error)
	SettleAccountTx(txHash common.Hash32, settled time.Time) error

	AddDefiTx(tx *types.UserDefiTx) error
	GetDefiTx(txHash common.Hash32) (*types.UserDefiTx, error)
	UpdateDefiTx(txHash common.Hash32, outputValueA, outputValueB *big.Int) error
	SettleDefiTx(txHash common.Hash32, settled time.Time) error

	AddUtilTx(tx *types.UserUtilTx) error
	GetUtilTxByLink(nullifier common.Hash32) (*types.UserUtilTx, error)

	GetUnsettledUserTxs(userId types.AccountId) ([]types.UnsettledTx, error)
	RemoveUserTx(txHash common.Hash32, userId types.AccountId) error

	Close() error
}
