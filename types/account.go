package types

import "github.com/tos-network/rollupsync/common"

// AccountId identifies a rollup account by its spending public key and the
// nonce of the alias registration that produced it (an alias may be
// re-registered, bumping the nonce and producing a fresh AccountId over the
// same public key).
type AccountId struct {
	PublicKey common.Key32
	Nonce     uint32
}

func (a AccountId) Equal(o AccountId) bool {
	return a.PublicKey == o.PublicKey && a.Nonce == o.Nonce
}

func (a AccountId) IsZero() bool {
	return a.PublicKey.IsZero() && a.Nonce == 0
}

// UserData is the locally persisted record of the account this
// synchronizer instance tracks.
type UserData struct {
	Id             AccountId
	PublicKey      common.Key32
	PrivateKey     common.Key32
	Nonce          uint32
	AliasHash      *common.Hash32
	SyncedToRollup int64 // -1 before any block has been applied
}
