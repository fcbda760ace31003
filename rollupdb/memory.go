package rollupdb

import (
	"math/big"
	"sync"
	"time"

	"github.com/tos-network/rollupsync/common"
	"github.com/tos-network/rollupsync/types"
)

type joinSplitKey struct {
	txHash common.Hash32
	userId types.AccountId
}

// MemoryDB is an in-process reference Database, used by tests and by any
// deployment that does not need durability across restarts.
type MemoryDB struct {
	mu sync.Mutex

	users       map[types.AccountId]*types.UserData
	signingKeys []types.SigningKey

	notesByNullifier  map[common.Hash32]*types.Note
	notesByCommitment map[common.Hash32]common.Hash32 // commitment -> nullifier

	claims map[common.Hash32]*types.Claim

	joinSplitTxs map[joinSplitKey]*types.UserJoinSplitTx
	accountTxs   map[common.Hash32]*types.UserAccountTx
	defiTxs      map[common.Hash32]*types.UserDefiTx
	utilTxs      map[common.Hash32]*types.UserUtilTx
	utilByLink   map[common.Hash32]common.Hash32 // forwardLink -> txHash
}

func NewMemoryDB() *MemoryDB {
	return &MemoryDB{
		users:             make(map[types.AccountId]*types.UserData),
		notesByNullifier:  make(map[common.Hash32]*types.Note),
		notesByCommitment: make(map[common.Hash32]common.Hash32),
		claims:            make(map[common.Hash32]*types.Claim),
		joinSplitTxs:      make(map[joinSplitKey]*types.UserJoinSplitTx),
		accountTxs:        make(map[common.Hash32]*types.UserAccountTx),
		defiTxs:           make(map[common.Hash32]*types.UserDefiTx),
		utilTxs:           make(map[common.Hash32]*types.UserUtilTx),
		utilByLink:        make(map[common.Hash32]common.Hash32),
	}
}

func (m *MemoryDB) GetUser(id types.AccountId) (*types.UserData, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return nil, nil
	}
	cp := *u
	return &cp, nil
}

func (m *MemoryDB) UpdateUser(u *types.UserData) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *u
	m.users[u.Id] = &cp
	return nil
}

func (m *MemoryDB) AddUserSigningKey(k types.SigningKey) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.signingKeys = append(m.signingKeys, k)
	return nil
}

func (m *MemoryDB) GetUserSigningKeys(id types.AccountId) ([]types.SigningKey, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []types.SigningKey
	for _, k := range m.signingKeys {
		if k.AccountId.Equal(id) {
			out = append(out, k)
		}
	}
	return out, nil
}

func (m *MemoryDB) AddNote(n *types.Note) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if existing, ok := m.notesByNullifier[n.Nullifier]; ok {
		// Pending note upgraded to confirmed by matching commitment/nullifier.
		existing.Index = n.Index
		existing.Pending = n.Pending
		existing.AllowChain = n.AllowChain
		existing.Value = n.Value
		return nil
	}
	m.notesByNullifier[n.Nullifier] = n.Clone()
	m.notesByCommitment[n.Commitment] = n.Nullifier
	return nil
}

func (m *MemoryDB) NullifyNote(nullifier common.Hash32) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if n, ok := m.notesByNullifier[nullifier]; ok {
		n.Nullified = true
	}
	return nil
}

func (m *MemoryDB) RemoveNote(nullifier common.Hash32) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if n, ok := m.notesByNullifier[nullifier]; ok {
		delete(m.notesByCommitment, n.Commitment)
		delete(m.notesByNullifier, nullifier)
	}
	return nil
}

func (m *MemoryDB) GetNoteByNullifier(nullifier common.Hash32) (*types.Note, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n, ok := m.notesByNullifier[nullifier]
	if !ok {
		return nil, nil
	}
	return n.Clone(), nil
}

func (m *MemoryDB) GetUserNotes(id types.AccountId) ([]*types.Note, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*types.Note
	for _, n := range m.notesByNullifier {
		if n.Owner.Equal(id) && !n.Pending {
			out = append(out, n.Clone())
		}
	}
	return out, nil
}

func (m *MemoryDB) GetUserPendingNotes(id types.AccountId) ([]*types.Note, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*types.Note
	for _, n := range m.notesByNullifier {
		if n.Owner.Equal(id) && n.Pending {
			out = append(out, n.Clone())
		}
	}
	return out, nil
}

func (m *MemoryDB) AddClaim(c *types.Claim) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *c
	m.claims[c.Nullifier] = &cp
	return nil
}

func (m *MemoryDB) GetClaim(nullifier common.Hash32) (*types.Claim, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.claims[nullifier]
	if !ok {
		return nil, nil
	}
	cp := *c
	return &cp, nil
}

func (m *MemoryDB) AddJoinSplitTx(tx *types.UserJoinSplitTx) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *tx
	m.joinSplitTxs[joinSplitKey{tx.TxHash, tx.UserId}] = &cp
	return nil
}

func (m *MemoryDB) GetJoinSplitTx(txHash common.Hash32, userId types.AccountId) (*types.UserJoinSplitTx, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	tx, ok := m.joinSplitTxs[joinSplitKey{txHash, userId}]
	if !ok {
		return nil, nil
	}
	cp := *tx
	return &cp, nil
}

func (m *MemoryDB) SettleJoinSplitTx(txHash common.Hash32, userId types.AccountId, settled time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	tx, ok := m.joinSplitTxs[joinSplitKey{txHash, userId}]
	if !ok {
		return nil
	}
	if tx.Settled == nil {
		s := settled
		tx.Settled = &s
	}
	return nil
}

func (m *MemoryDB) AddAccountTx(tx *types.UserAccountTx) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *tx
	m.accountTxs[tx.TxHash] = &cp
	return nil
}

func (m *MemoryDB) GetAccountTx(txHash common.Hash32) (*types.UserAccountTx, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	tx, ok := m.accountTxs[txHash]
	if !ok {
		return nil, nil
	}
	cp := *tx
	return &cp, nil
}

func (m *MemoryDB) SettleAccountTx(txHash common.Hash32, settled time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	tx, ok := m.accountTxs[txHash]
	if !ok {
		return nil
	}
	if tx.Settled == nil {
		s := settled
		tx.Settled = &s
	}
	return nil
}

func (m *MemoryDB) AddDefiTx(tx *types.UserDefiTx) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *tx
	m.defiTxs[tx.TxHash] = &cp
	return nil
}

func (m *MemoryDB) GetDefiTx(txHash common.Hash32) (*types.UserDefiTx, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	tx, ok := m.defiTxs[txHash]
	if !ok {
		return nil, nil
	}
	cp := *tx
	return &cp, nil
}

func (m *MemoryDB) UpdateDefiTx(txHash common.Hash32, outputValueA, outputValueB *big.Int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	tx, ok := m.defiTxs[txHash]
	if !ok {
		return nil
	}
	tx.OutputValueA = outputValueA
	tx.OutputValueB = outputValueB
	return nil
}

func (m *MemoryDB) SettleDefiTx(txHash common.Hash32, settled time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	tx, ok := m.defiTxs[txHash]
	if !ok {
		return nil
	}
	if tx.Settled == nil {
		s := settled
		tx.Settled = &s
	}
	return nil
}

func (m *MemoryDB) AddUtilTx(tx *types.UserUtilTx) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *tx
	m.utilTxs[tx.TxHash] = &cp
	m.utilByLink[tx.ForwardLink] = tx.TxHash
	return nil
}

func (m *MemoryDB) GetUtilTxByLink(nullifier common.Hash32) (*types.UserUtilTx, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	txHash, ok := m.utilByLink[nullifier]
	if !ok {
		return nil, nil
	}
	tx := m.utilTxs[txHash]
	cp := *tx
	return &cp, nil
}

func (m *MemoryDB) GetUnsettledUserTxs(userId types.AccountId) ([]types.UnsettledTx, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []types.UnsettledTx
	for k, tx := range m.joinSplitTxs {
		if k.userId.Equal(userId) && tx.Settled == nil {
			out = append(out, types.UnsettledTx{TxHash: tx.TxHash, UserId: userId})
		}
	}
	for _, tx := range m.accountTxs {
		if tx.UserId.Equal(userId) && tx.Settled == nil {
			out = append(out, types.UnsettledTx{TxHash: tx.TxHash, UserId: userId})
		}
	}
	for _, tx := range m.defiTxs {
		if tx.UserId.Equal(userId) && tx.Settled == nil {
			out = append(out, types.UnsettledTx{TxHash: tx.TxHash, UserId: userId})
		}
	}
	return out, nil
}

func (m *MemoryDB) RemoveUserTx(txHash common.Hash32, userId types.AccountId) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.joinSplitTxs, joinSplitKey{txHash, userId})
	if tx, ok := m.accountTxs[txHash]; ok && tx.UserId.Equal(userId) {
		delete(m.accountTxs, txHash)
	}
	if tx, ok := m.defiTxs[txHash]; ok && tx.UserId.Equal(userId) {
		delete(m.defiTxs, txHash)
	}
	return nil
}

func (m *MemoryDB) Close() error { return nil }
