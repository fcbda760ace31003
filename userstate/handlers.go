package userstate

import (
	"fmt"
	"math/big"

	"github.com/tos-network/rollupsync/common"
	"github.com/tos-network/rollupsync/noteprim"
	"github.com/tos-network/rollupsync/proofs"
	"github.com/tos-network/rollupsync/types"
)

// processNewNote admits candidate as index's output note if it exists and
// its owner matches this UserState's account (spec.md §4.D "Common:
// processNewNote"). The note is persisted only when its value is positive;
// the record is always returned (even unpersisted) so callers can recover
// fee/amount figures from a zero-value or not-ours candidate.
func (us *UserState) processNewNote(index uint32, commitment common.Hash32, candidate *noteprim.TreeNote, allowChain, pending bool) (*types.Note, error) {
	if candidate == nil {
		return nil, nil
	}
	owner := types.AccountId{PublicKey: candidate.OwnerPubKey, Nonce: candidate.OwnerNonce}
	if !owner.Equal(us.id) {
		return nil, nil
	}
	nullifier := us.algo.ValueNoteNullifier(commitment, us.user.PrivateKey)
	value := candidate.Value
	if value == nil {
		value = new(big.Int)
	}
	note := &types.Note{
		AssetId:        candidate.AssetId,
		Value:          value,
		Commitment:     commitment,
		Secret:         candidate.Secret,
		Nullifier:      nullifier,
		Owner:          owner,
		CreatorPubKey:  candidate.Creator,
		InputNullifier: candidate.InputNullifier,
		Index:          index,
		AllowChain:     allowChain,
		Pending:        pending,
	}
	if value.Sign() > 0 {
		if err := us.db.AddNote(note); err != nil {
			return nil, fmt.Errorf("userstate: persist note: %w", err)
		}
	}
	return note, nil
}

// nullifyNote destroys the note owned by this account under nullifier, if
// any, returning it so callers can recover its value for fee accounting
// (spec.md §4.D "Common: nullifyNote").
func (us *UserState) nullifyNote(nullifier common.Hash32) (*types.Note, error) {
	n, err := us.db.GetNoteByNullifier(nullifier)
	if err != nil {
		return nil, fmt.Errorf("userstate: lookup note by nullifier: %w", err)
	}
	if n == nil || !n.Owner.Equal(us.id) {
		return nil, nil
	}
	if err := us.db.NullifyNote(nullifier); err != nil {
		return nil, fmt.Errorf("userstate: nullify note: %w", err)
	}
	n.Nullified = true
	return n, nil
}

func valueOf(n *types.Note) *big.Int {
	if n == nil {
		return new(big.Int)
	}
	return n.Value
}

func (us *UserState) handleJoinSplit(block *types.Block, proof types.InnerProof, startIndex uint32, decrypted map[common.Hash32]*noteprim.TreeNote) error {
	note1, err := us.processNewNote(startIndex, proof.NoteCommitment1, decrypted[proof.NoteCommitment1], false, false)
	if err != nil {
		return err
	}
	note2, err := us.processNewNote(startIndex+1, proof.NoteCommitment2, decrypted[proof.NoteCommitment2], false, false)
	if err != nil {
		return err
	}
	if note1 == nil && note2 == nil {
		return nil
	}

	in1, err := us.nullifyNote(proof.Nullifier1)
	if err != nil {
		return err
	}
	in2, err := us.nullifyNote(proof.Nullifier2)
	if err != nil {
		return err
	}

	if note1 != nil {
		if err := us.refreshPicker(note1.AssetId); err != nil {
			return err
		}
	}
	if note2 != nil && (note1 == nil || note1.AssetId != note2.AssetId) {
		if err := us.refreshPicker(note2.AssetId); err != nil {
			return err
		}
	}

	// Send-to-self: both output notes ours means this join-split exists
	// only to feed a later DeFi deposit (spec.md §4.D step 5).
	if proof.ProofId == types.ProofSend && note1 != nil && note2 != nil {
		privateInput := new(big.Int).Add(valueOf(in1), valueOf(in2))
		fee := new(big.Int).Sub(privateInput, note1.Value)
		fee.Sub(fee, note2.Value)
		return us.db.AddUtilTx(&types.UserUtilTx{
			TxHash: proof.TxId, UserId: us.id, AssetId: note1.AssetId, TxFee: fee, ForwardLink: note1.Nullifier,
		})
	}

	existing, err := us.db.GetJoinSplitTx(proof.TxId, us.id)
	if err != nil {
		return fmt.Errorf("userstate: lookup join-split tx: %w", err)
	}
	if existing != nil {
		return us.db.SettleJoinSplitTx(proof.TxId, us.id, block.Created)
	}

	publicValue := proofs.PublicValue(proof)
	settled := block.Created
	tx := &types.UserJoinSplitTx{
		TxHash:                 proof.TxId,
		UserId:                 us.id,
		AssetId:                proof.AssetIdU32(),
		PublicInput:            new(big.Int),
		PublicOutput:           new(big.Int),
		PrivateInput:           new(big.Int).Add(valueOf(in1), valueOf(in2)),
		PrivateOutputRecipient: valueOf(note1),
		PrivateOutputSender:    valueOf(note2),
		OwnedByMe:              note2 != nil,
		Created:                block.Created,
		Settled:                &settled,
	}
	switch proof.ProofId {
	case types.ProofDeposit:
		tx.PublicInput = publicValue
		owner := proof.PublicOwner
		tx.InputOwner = &owner
	case types.ProofWithdraw:
		tx.PublicOutput = publicValue
		owner := proof.PublicOwner
		tx.OutputOwner = &owner
	}
	return us.db.AddJoinSplitTx(tx)
}

func (us *UserState) handleAccount(block *types.Block, proof types.InnerProof, startIndex uint32, payload *types.AccountOffchainPayload) error {
	if payload == nil {
		return nil
	}
	userId := types.AccountId{PublicKey: payload.AccountPublicKey, Nonce: payload.AccountAliasId.Nonce}
	if !userId.Equal(us.id) {
		return nil
	}

	keys := [2]common.Key32{payload.SpendingKey1, payload.SpendingKey2}
	for i, key := range keys {
		if key.IsZero() {
			continue
		}
		if err := us.db.AddUserSigningKey(types.SigningKey{
			AccountId: userId, Key: key, TreeIndex: startIndex + uint32(i),
		}); err != nil {
			return fmt.Errorf("userstate: add signing key: %w", err)
		}
	}

	if us.user.AliasHash == nil || *us.user.AliasHash != payload.AccountAliasId.AliasHash {
		aliasHash := payload.AccountAliasId.AliasHash
		us.user.AliasHash = &aliasHash
		if err := us.db.UpdateUser(us.user); err != nil {
			return fmt.Errorf("userstate: persist alias hash update: %w", err)
		}
	}

	existing, err := us.db.GetAccountTx(proof.TxId)
	if err != nil {
		return fmt.Errorf("userstate: lookup account tx: %w", err)
	}
	if existing != nil {
		return us.db.SettleAccountTx(proof.TxId, block.Created)
	}

	settled := block.Created
	tx := &types.UserAccountTx{
		TxHash:    proof.TxId,
		UserId:    us.id,
		AliasHash: payload.AccountAliasId.AliasHash,
		Migrated:  !proof.Nullifier1.IsZero(),
		Created:   block.Created,
		Settled:   &settled,
	}
	if !payload.SpendingKey1.IsZero() {
		k := payload.SpendingKey1
		tx.NewSigningKey1 = &k
	}
	if !payload.SpendingKey2.IsZero() {
		k := payload.SpendingKey2
		tx.NewSigningKey2 = &k
	}
	return us.db.AddAccountTx(tx)
}

func (us *UserState) handleDefiDeposit(block *types.Block, proof types.InnerProof, startIndex uint32, payload *types.DefiDepositOffchainPayload, decrypted map[common.Hash32]*noteprim.TreeNote) error {
	if payload == nil {
		return nil
	}
	changeNote, err := us.processNewNote(startIndex+1, proof.NoteCommitment2, decrypted[proof.NoteCommitment2], false, false)
	if err != nil {
		return err
	}
	if changeNote == nil {
		return nil
	}

	var interaction *types.InteractionResult
	for i := range block.InteractionResult {
		if block.InteractionResult[i].BridgeId.Equal(payload.BridgeId) {
			interaction = &block.InteractionResult[i]
			break
		}
	}
	if interaction == nil {
		return fmt.Errorf("userstate: rollup %d bridge %s: %w", block.RollupId, payload.BridgeId.Raw.Hex(), ErrInconsistentInteractionResult)
	}

	outputValueA := new(big.Int)
	outputValueB := new(big.Int)
	if interaction.Result && interaction.TotalInputValue.Sign() > 0 {
		outputValueA.Mul(interaction.TotalOutputValueA, payload.DepositValue)
		outputValueA.Div(outputValueA, interaction.TotalInputValue)
		outputValueB.Mul(interaction.TotalOutputValueB, payload.DepositValue)
		outputValueB.Div(outputValueB, interaction.TotalInputValue)
	}

	partialStateSecret := us.algo.DerivePartialStateSecret(payload.PartialStateSecretEphPubKey, us.user.PrivateKey)
	claim := &types.Claim{
		TxHash:    proof.TxId,
		Secret:    partialStateSecret,
		Nullifier: us.algo.ClaimNoteNullifier(proof.NoteCommitment1),
		Owner:     us.id,
	}
	if err := us.db.AddClaim(claim); err != nil {
		return fmt.Errorf("userstate: add claim: %w", err)
	}

	in1, err := us.nullifyNote(proof.Nullifier1)
	if err != nil {
		return err
	}
	in2, err := us.nullifyNote(proof.Nullifier2)
	if err != nil {
		return err
	}
	if err := us.refreshPicker(changeNote.AssetId); err != nil {
		return err
	}

	existing, err := us.db.GetDefiTx(proof.TxId)
	if err != nil {
		return fmt.Errorf("userstate: lookup defi tx: %w", err)
	}
	if existing != nil {
		return us.db.UpdateDefiTx(proof.TxId, outputValueA, outputValueB)
	}

	utilTx, err := us.db.GetUtilTxByLink(proof.Nullifier1)
	if err != nil {
		return fmt.Errorf("userstate: lookup linked util tx: %w", err)
	}
	privateInput := new(big.Int).Add(valueOf(in1), valueOf(in2))
	fee := new(big.Int).Sub(privateInput, changeNote.Value)
	fee.Sub(fee, payload.DepositValue)
	if utilTx != nil {
		fee.Add(fee, utilTx.TxFee)
	}

	return us.db.AddDefiTx(&types.UserDefiTx{
		TxHash:             proof.TxId,
		UserId:             us.id,
		BridgeId:           payload.BridgeId,
		DepositValue:       payload.DepositValue,
		PartialStateSecret: partialStateSecret,
		TxFee:              fee,
		Created:            block.Created,
		OutputValueA:       outputValueA,
		OutputValueB:       outputValueB,
	})
}

func (us *UserState) handleDefiClaim(block *types.Block, proof types.InnerProof, startIndex uint32) error {
	claim, err := us.db.GetClaim(proof.Nullifier1)
	if err != nil {
		return fmt.Errorf("userstate: lookup claim: %w", err)
	}
	if claim == nil || !claim.Owner.Equal(us.id) {
		return nil
	}
	defiTx, err := us.db.GetDefiTx(claim.TxHash)
	if err != nil {
		return fmt.Errorf("userstate: lookup defi tx for claim: %w", err)
	}
	if defiTx == nil {
		return fmt.Errorf("userstate: claim tx %s: %w", claim.TxHash.Hex(), ErrMissingDefiTx)
	}

	both := defiTx.OutputValueA.Sign() == 0 && defiTx.OutputValueB.Sign() == 0
	touchedAssets := make(map[uint32]struct{})
	switch {
	case both:
		note := &noteprim.TreeNote{
			Value: defiTx.DepositValue, AssetId: defiTx.BridgeId.InputAssetId,
			OwnerPubKey: us.user.PublicKey, OwnerNonce: us.user.Nonce, InputNullifier: proof.Nullifier1,
		}
		if n, err := us.processNewNote(startIndex, proof.NoteCommitment1, note, false, false); err != nil {
			return err
		} else if n != nil {
			touchedAssets[n.AssetId] = struct{}{}
		}
	default:
		if defiTx.OutputValueA.Sign() > 0 {
			note := &noteprim.TreeNote{
				Value: defiTx.OutputValueA, AssetId: defiTx.BridgeId.OutputAssetIdA,
				OwnerPubKey: us.user.PublicKey, OwnerNonce: us.user.Nonce, InputNullifier: proof.Nullifier1,
			}
			if n, err := us.processNewNote(startIndex, proof.NoteCommitment1, note, false, false); err != nil {
				return err
			} else if n != nil {
				touchedAssets[n.AssetId] = struct{}{}
			}
		}
		if defiTx.OutputValueB.Sign() > 0 {
			note := &noteprim.TreeNote{
				Value: defiTx.OutputValueB, AssetId: defiTx.BridgeId.OutputAssetIdB,
				OwnerPubKey: us.user.PublicKey, OwnerNonce: us.user.Nonce, InputNullifier: proof.Nullifier2,
			}
			if n, err := us.processNewNote(startIndex+1, proof.NoteCommitment2, note, false, false); err != nil {
				return err
			} else if n != nil {
				touchedAssets[n.AssetId] = struct{}{}
			}
		}
	}
	for assetId := range touchedAssets {
		if err := us.refreshPicker(assetId); err != nil {
			return err
		}
	}
	return us.db.SettleDefiTx(claim.TxHash, block.Created)
}
