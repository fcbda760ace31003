package userstate

import (
	"fmt"
	"math/big"
	"time"

	"github.com/tos-network/rollupsync/common"
	"github.com/tos-network/rollupsync/noteprim"
	"github.com/tos-network/rollupsync/types"
)

// ProofOutput is a locally-constructed transaction not yet observed
// on-chain, produced by the (out-of-scope) proof constructor and handed to
// AddProof so its pending notes and tx record become visible to
// NotePicker/balance queries ahead of settlement (spec.md §4.G).
type ProofOutput struct {
	TxHash      common.Hash32
	Kind        types.ProofKind
	Commitment1 common.Hash32
	Commitment2 common.Hash32
	OutputNotes [2]*noteprim.TreeNote

	PrivateInput           *big.Int
	PrivateOutputRecipient *big.Int
	PrivateOutputSender    *big.Int

	AssetId     uint32
	PublicInput *big.Int
	PublicOutput *big.Int
	InputOwner  *common.Address
	OutputOwner *common.Address

	AliasHash      common.Hash32
	NewSigningKey1 *common.Key32
	NewSigningKey2 *common.Key32
	Migrated       bool

	BridgeId           types.BridgeId
	DepositValue       *big.Int
	PartialStateSecret common.Hash32
	TxFee              *big.Int

	// ParentProof is walked depth-first before this proof so ancestors are
	// persisted before descendants (spec.md §4.G).
	ParentProof *ProofOutput
	// BackwardLink is informational only; the provider's pending-nullifier
	// set, not this field, excludes in-flight notes from selection.
	BackwardLink *common.Hash32
}

func ownedByThis(n *noteprim.TreeNote, id types.AccountId) bool {
	return n != nil && n.OwnerPubKey == id.PublicKey && n.OwnerNonce == id.Nonce
}

func zeroIfNil(v *big.Int) *big.Int {
	if v == nil {
		return new(big.Int)
	}
	return v
}

// AddProof walks po.ParentProof depth-first, persisting each ancestor's tx
// record and pending output notes before po's own.
func (us *UserState) AddProof(po *ProofOutput) error {
	if po == nil {
		return nil
	}
	if po.ParentProof != nil {
		if err := us.AddProof(po.ParentProof); err != nil {
			return err
		}
	}
	if err := us.persistPendingTx(po); err != nil {
		return err
	}
	return us.persistPendingNotes(po)
}

func (us *UserState) persistPendingTx(po *ProofOutput) error {
	note1 := po.OutputNotes[0]
	if po.Kind == types.ProofSend && ownedByThis(note1, us.id) {
		forwardLink := us.algo.ValueNoteNullifier(po.Commitment1, us.user.PrivateKey)
		fee := new(big.Int).Set(zeroIfNil(po.PrivateInput))
		fee.Sub(fee, zeroIfNil(po.PrivateOutputRecipient))
		fee.Sub(fee, zeroIfNil(po.PrivateOutputSender))
		return us.db.AddUtilTx(&types.UserUtilTx{
			TxHash: po.TxHash, UserId: us.id, AssetId: po.AssetId, TxFee: fee, ForwardLink: forwardLink,
		})
	}

	switch po.Kind {
	case types.ProofDeposit, types.ProofWithdraw, types.ProofSend:
		return us.db.AddJoinSplitTx(&types.UserJoinSplitTx{
			TxHash: po.TxHash, UserId: us.id, AssetId: po.AssetId,
			PublicInput: zeroIfNil(po.PublicInput), PublicOutput: zeroIfNil(po.PublicOutput),
			PrivateInput: zeroIfNil(po.PrivateInput), PrivateOutputRecipient: zeroIfNil(po.PrivateOutputRecipient),
			PrivateOutputSender: zeroIfNil(po.PrivateOutputSender),
			InputOwner:          po.InputOwner, OutputOwner: po.OutputOwner,
			OwnedByMe: po.OutputNotes[1] != nil, Created: time.Now(),
		})
	case types.ProofAccount:
		return us.db.AddAccountTx(&types.UserAccountTx{
			TxHash: po.TxHash, UserId: us.id, AliasHash: po.AliasHash,
			NewSigningKey1: po.NewSigningKey1, NewSigningKey2: po.NewSigningKey2,
			Migrated: po.Migrated, Created: time.Now(),
		})
	case types.ProofDefiDeposit:
		return us.db.AddDefiTx(&types.UserDefiTx{
			TxHash: po.TxHash, UserId: us.id, BridgeId: po.BridgeId,
			DepositValue: zeroIfNil(po.DepositValue), PartialStateSecret: po.PartialStateSecret,
			TxFee: zeroIfNil(po.TxFee), Created: time.Now(),
			OutputValueA: new(big.Int), OutputValueB: new(big.Int),
		})
	default:
		return fmt.Errorf("userstate: addProof: unsupported pending proof kind %s", po.Kind)
	}
}

func (us *UserState) persistPendingNotes(po *ProofOutput) error {
	commitments := [2]common.Hash32{po.Commitment1, po.Commitment2}
	touched := make(map[uint32]struct{})
	added := 0
	for i, candidate := range po.OutputNotes {
		allowChain := candidate != nil && candidate.AllowChain
		note, err := us.processNewNote(0, commitments[i], candidate, allowChain, true)
		if err != nil {
			return err
		}
		if note != nil && note.Value.Sign() > 0 {
			added++
			touched[note.AssetId] = struct{}{}
		}
	}
	if added > 0 {
		for assetId := range touched {
			if err := us.refreshPicker(assetId); err != nil {
				return err
			}
		}
	}
	return nil
}
