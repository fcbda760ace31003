package types

import (
	"math/big"
	"time"

	"github.com/tos-network/rollupsync/common"
)

// ProofKind is the closed set of inner-proof kinds a rollup block can carry.
// Modeled as a closed sum type (a single Go int-based enum) rather than an
// open class hierarchy, per the classification design note.
type ProofKind uint8

const (
	ProofDeposit ProofKind = iota
	ProofWithdraw
	ProofSend
	ProofAccount
	ProofDefiDeposit
	ProofDefiClaim
	ProofPadding
)

func (k ProofKind) String() string {
	switch k {
	case ProofDeposit:
		return "DEPOSIT"
	case ProofWithdraw:
		return "WITHDRAW"
	case ProofSend:
		return "SEND"
	case ProofAccount:
		return "ACCOUNT"
	case ProofDefiDeposit:
		return "DEFI_DEPOSIT"
	case ProofDefiClaim:
		return "DEFI_CLAIM"
	case ProofPadding:
		return "PADDING"
	default:
		return "UNKNOWN"
	}
}

// BridgeId identifies a DeFi interaction's input/output asset types. Real
// rollup wire formats pack this into a single field; Raw preserves that
// identity for equality/lookup while the sub-fields are exposed for the
// handlers that need them.
type BridgeId struct {
	Raw             common.Hash32
	InputAssetId    uint32
	OutputAssetIdA  uint32
	OutputAssetIdB  uint32
	NumOutputAssets uint8
}

func (b BridgeId) Equal(o BridgeId) bool { return b.Raw == o.Raw }

// UserJoinSplitTx records a DEPOSIT/WITHDRAW/SEND transaction.
type UserJoinSplitTx struct {
	TxHash                 common.Hash32
	UserId                 AccountId
	AssetId                uint32
	PublicInput            *big.Int
	PublicOutput           *big.Int
	PrivateInput           *big.Int
	PrivateOutputRecipient *big.Int
	PrivateOutputSender    *big.Int
	InputOwner             *common.Address
	OutputOwner            *common.Address
	OwnedByMe              bool
	Created                time.Time
	Settled                *time.Time
}

// UserAccountTx records an ACCOUNT transaction.
type UserAccountTx struct {
	TxHash         common.Hash32
	UserId         AccountId
	AliasHash      common.Hash32
	NewSigningKey1 *common.Key32
	NewSigningKey2 *common.Key32
	Migrated       bool
	Created        time.Time
	Settled        *time.Time
}

// UserDefiTx records a DEFI_DEPOSIT transaction.
type UserDefiTx struct {
	TxHash             common.Hash32
	UserId             AccountId
	BridgeId           BridgeId
	DepositValue       *big.Int
	PartialStateSecret common.Hash32
	TxFee              *big.Int
	Created            time.Time
	OutputValueA       *big.Int
	OutputValueB       *big.Int
	Settled            *time.Time
}

// UserUtilTx records a join-split created solely to feed a subsequent DeFi
// deposit. ForwardLink is the nullifier of its first output note; the
// consuming UserDefiTx is found by matching that value against the
// Nullifier1 of its DEFI_DEPOSIT proof.
type UserUtilTx struct {
	TxHash      common.Hash32
	UserId      AccountId
	AssetId     uint32
	TxFee       *big.Int
	ForwardLink common.Hash32
}

// SigningKey is an account's registered spending key, added by an ACCOUNT
// transaction.
type SigningKey struct {
	AccountId AccountId
	Key       common.Key32
	TreeIndex uint32
}

// UnsettledTx is the minimal reference the pending reconciler needs to
// decide whether a local record has been abandoned upstream.
type UnsettledTx struct {
	TxHash common.Hash32
	UserId AccountId
}
