package types

import (
	"fmt"
	"math/big"

	"github.com/tos-network/rollupsync/common"
	"github.com/vmihailenco/msgpack/v5"
)

// AliasId pairs an alias hash with the nonce of the registration that
// produced it.
type AliasId struct {
	AliasHash common.Hash32
	Nonce     uint32
}

// JoinSplitOffchainPayload carries the two output notes' viewing-key
// ciphertexts for a DEPOSIT/WITHDRAW/SEND proof.
type JoinSplitOffchainPayload struct {
	ViewingKey1 []byte
	ViewingKey2 []byte
}

// AccountOffchainPayload carries the material needed to apply an ACCOUNT
// proof: the account's public key, its current alias binding, and up to two
// new spending keys.
type AccountOffchainPayload struct {
	AccountPublicKey common.Key32
	AccountAliasId   AliasId
	SpendingKey1     common.Key32
	SpendingKey2     common.Key32
}

// DefiDepositOffchainPayload carries the change-note viewing key and the
// bridge interaction parameters for a DEFI_DEPOSIT proof.
type DefiDepositOffchainPayload struct {
	ViewingKey                  []byte
	BridgeId                    BridgeId
	DepositValue                *big.Int
	PartialStateSecretEphPubKey common.Key32
}

// wireBridgeId and friends give msgpack a plain-old-data shape to encode; the
// fixed-size array fields are marshalled as raw byte slices.
type wireAliasId struct {
	AliasHash []byte
	Nonce     uint32
}

type wireBridgeId struct {
	Raw             []byte
	InputAssetId    uint32
	OutputAssetIdA  uint32
	OutputAssetIdB  uint32
	NumOutputAssets uint8
}

type wireJoinSplitPayload struct {
	ViewingKey1 []byte
	ViewingKey2 []byte
}

type wireAccountPayload struct {
	AccountPublicKey []byte
	AccountAliasId   wireAliasId
	SpendingKey1     []byte
	SpendingKey2     []byte
}

type wireDefiDepositPayload struct {
	ViewingKey                  []byte
	BridgeId                    wireBridgeId
	DepositValue                []byte
	PartialStateSecretEphPubKey []byte
}

// EncodeJoinSplitPayload/DecodeJoinSplitPayload etc. define the off-chain
// payload envelope exchanged between the (out-of-scope) proof constructor
// and this synchronizer, using msgpack the way the teacher's peer protocol
// uses RLP: a compact wire codec at a network boundary.

func EncodeJoinSplitPayload(p *JoinSplitOffchainPayload) ([]byte, error) {
	return msgpack.Marshal(&wireJoinSplitPayload{ViewingKey1: p.ViewingKey1, ViewingKey2: p.ViewingKey2})
}

func DecodeJoinSplitPayload(raw []byte) (*JoinSplitOffchainPayload, error) {
	var w wireJoinSplitPayload
	if err := msgpack.Unmarshal(raw, &w); err != nil {
		return nil, fmt.Errorf("types: decode join-split payload: %w", err)
	}
	return &JoinSplitOffchainPayload{ViewingKey1: w.ViewingKey1, ViewingKey2: w.ViewingKey2}, nil
}

func EncodeAccountPayload(p *AccountOffchainPayload) ([]byte, error) {
	return msgpack.Marshal(&wireAccountPayload{
		AccountPublicKey: p.AccountPublicKey.Bytes(),
		AccountAliasId:   wireAliasId{AliasHash: p.AccountAliasId.AliasHash.Bytes(), Nonce: p.AccountAliasId.Nonce},
		SpendingKey1:     p.SpendingKey1.Bytes(),
		SpendingKey2:     p.SpendingKey2.Bytes(),
	})
}

func DecodeAccountPayload(raw []byte) (*AccountOffchainPayload, error) {
	var w wireAccountPayload
	if err := msgpack.Unmarshal(raw, &w); err != nil {
		return nil, fmt.Errorf("types: decode account payload: %w", err)
	}
	return &AccountOffchainPayload{
		AccountPublicKey: common.BytesToKey32(w.AccountPublicKey),
		AccountAliasId: AliasId{
			AliasHash: common.BytesToHash32(w.AccountAliasId.AliasHash),
			Nonce:     w.AccountAliasId.Nonce,
		},
		SpendingKey1: common.BytesToKey32(w.SpendingKey1),
		SpendingKey2: common.BytesToKey32(w.SpendingKey2),
	}, nil
}

func EncodeDefiDepositPayload(p *DefiDepositOffchainPayload) ([]byte, error) {
	dv := p.DepositValue
	if dv == nil {
		dv = new(big.Int)
	}
	return msgpack.Marshal(&wireDefiDepositPayload{
		ViewingKey: p.ViewingKey,
		BridgeId: wireBridgeId{
			Raw:             p.BridgeId.Raw.Bytes(),
			InputAssetId:    p.BridgeId.InputAssetId,
			OutputAssetIdA:  p.BridgeId.OutputAssetIdA,
			OutputAssetIdB:  p.BridgeId.OutputAssetIdB,
			NumOutputAssets: p.BridgeId.NumOutputAssets,
		},
		DepositValue:                dv.Bytes(),
		PartialStateSecretEphPubKey: p.PartialStateSecretEphPubKey.Bytes(),
	})
}

func DecodeDefiDepositPayload(raw []byte) (*DefiDepositOffchainPayload, error) {
	var w wireDefiDepositPayload
	if err := msgpack.Unmarshal(raw, &w); err != nil {
		return nil, fmt.Errorf("types: decode defi-deposit payload: %w", err)
	}
	return &DefiDepositOffchainPayload{
		ViewingKey: w.ViewingKey,
		BridgeId: BridgeId{
			Raw:             common.BytesToHash32(w.BridgeId.Raw),
			InputAssetId:    w.BridgeId.InputAssetId,
			OutputAssetIdA:  w.BridgeId.OutputAssetIdA,
			OutputAssetIdB:  w.BridgeId.OutputAssetIdB,
			NumOutputAssets: w.BridgeId.NumOutputAssets,
		},
		DepositValue:                new(big.Int).SetBytes(w.DepositValue),
		PartialStateSecretEphPubKey: common.BytesToKey32(w.PartialStateSecretEphPubKey),
	}, nil
}
