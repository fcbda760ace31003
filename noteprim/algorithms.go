package noteprim

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"

	"github.com/tos-network/rollupsync/common"
	"github.com/vmihailenco/msgpack/v5"
	"golang.org/x/crypto/blake2b"
	"golang.org/x/crypto/curve25519"
	"golang.org/x/crypto/nacl/box"
)

const (
	nonceSize     = 24
	ephemeralSize = 32
)

var (
	ErrShortCiphertext = errors.New("noteprim: ciphertext shorter than envelope header")
	ErrDecryptFailed   = errors.New("noteprim: box open failed")
)

// NoteAlgorithms is the interface the synchronizer core depends on for
// commitment/nullifier hashing and batched trial decryption. It is the Go
// analogue of the out-of-scope note-algorithms/curve library named in
// spec.md §6.
type NoteAlgorithms interface {
	NoteCommitment(n *TreeNote) common.Hash32
	ValueNoteNullifier(commitment common.Hash32, privateKey common.Key32) common.Hash32
	ClaimNoteNullifier(commitment common.Hash32) common.Hash32
	DerivePublicKey(privateKey common.Key32) common.Key32
	DerivePartialStateSecret(ephPubKey common.Key32, privateKey common.Key32) common.Hash32
	EncryptViewingKey(recipientPubKey common.Key32, n *TreeNote) ([]byte, error)
	// BatchDecrypt trial-decrypts every ciphertext in the batch against
	// privateKey in one call, returning a result slice aligned 1:1 with
	// ciphertexts. A nil entry means the ciphertext was not addressed to
	// this key (the expected majority case, per spec.md §7(i)).
	BatchDecrypt(ctx context.Context, privateKey common.Key32, ciphertexts [][]byte) []*TreeNote
}

type algorithms struct{}

// New returns the reference NoteAlgorithms implementation.
func New() NoteAlgorithms { return algorithms{} }

func domainHash(tag string, parts ...[]byte) common.Hash32 {
	h, err := blake2b.New256([]byte(tag))
	if err != nil {
		// blake2b.New256 only errors on an over-long key; our tags never are.
		panic(err)
	}
	for _, p := range parts {
		h.Write(p)
	}
	var out common.Hash32
	copy(out[:], h.Sum(nil))
	return out
}

func (algorithms) NoteCommitment(n *TreeNote) common.Hash32 {
	valBytes := make([]byte, 32)
	n.valueOrZero().FillBytes(valBytes)
	assetIdBytes := make([]byte, 4)
	assetIdBytes[0] = byte(n.AssetId >> 24)
	assetIdBytes[1] = byte(n.AssetId >> 16)
	assetIdBytes[2] = byte(n.AssetId >> 8)
	assetIdBytes[3] = byte(n.AssetId)
	nonceBytes := make([]byte, 4)
	nonceBytes[0] = byte(n.OwnerNonce >> 24)
	nonceBytes[1] = byte(n.OwnerNonce >> 16)
	nonceBytes[2] = byte(n.OwnerNonce >> 8)
	nonceBytes[3] = byte(n.OwnerNonce)
	return domainHash("rollupsync/note-commitment/v1",
		valBytes, assetIdBytes, n.OwnerPubKey.Bytes(), nonceBytes,
		n.Secret.Bytes(), n.Creator.Bytes(), n.InputNullifier.Bytes())
}

func (algorithms) ValueNoteNullifier(commitment common.Hash32, privateKey common.Key32) common.Hash32 {
	return domainHash("rollupsync/value-note-nullifier/v1", commitment.Bytes(), privateKey.Bytes())
}

func (algorithms) ClaimNoteNullifier(commitment common.Hash32) common.Hash32 {
	return domainHash("rollupsync/claim-note-nullifier/v1", commitment.Bytes())
}

func (algorithms) DerivePublicKey(privateKey common.Key32) common.Key32 {
	var priv, pub [32]byte
	copy(priv[:], privateKey[:])
	curve25519.ScalarBaseMult(&pub, &priv)
	return common.Key32(pub)
}

// DerivePartialStateSecret derives the DeFi claim's redemption secret from
// the partial-state ephemeral public key and this user's private key, using
// the same Curve25519 ECDH construction as the viewing-key envelope.
func (algorithms) DerivePartialStateSecret(ephPubKey common.Key32, privateKey common.Key32) common.Hash32 {
	var priv, pub, shared [32]byte
	copy(priv[:], privateKey[:])
	copy(pub[:], ephPubKey[:])
	curve25519.ScalarMult(&shared, &priv, &pub)
	return domainHash("rollupsync/partial-state-secret/v1", shared[:])
}

type envelopePlaintext struct {
	Value          []byte
	AssetId        uint32
	OwnerPubKey    []byte
	OwnerNonce     uint32
	Secret         []byte
	Creator        []byte
	InputNullifier []byte
	AllowChain     bool
}

func (algorithms) EncryptViewingKey(recipientPubKey common.Key32, n *TreeNote) ([]byte, error) {
	ephPub, ephPriv, err := box.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("noteprim: generate ephemeral key: %w", err)
	}
	var nonce [nonceSize]byte
	if _, err := rand.Read(nonce[:]); err != nil {
		return nil, fmt.Errorf("noteprim: generate nonce: %w", err)
	}
	plain, err := msgpack.Marshal(&envelopePlaintext{
		Value:          n.valueOrZero().Bytes(),
		AssetId:        n.AssetId,
		OwnerPubKey:    n.OwnerPubKey.Bytes(),
		OwnerNonce:     n.OwnerNonce,
		Secret:         n.Secret.Bytes(),
		Creator:        n.Creator.Bytes(),
		InputNullifier: n.InputNullifier.Bytes(),
		AllowChain:     n.AllowChain,
	})
	if err != nil {
		return nil, fmt.Errorf("noteprim: marshal note: %w", err)
	}
	var recipient [32]byte
	copy(recipient[:], recipientPubKey[:])
	sealed := box.Seal(nil, plain, &nonce, &recipient, ephPriv)

	out := make([]byte, 0, ephemeralSize+nonceSize+len(sealed))
	out = append(out, ephPub[:]...)
	out = append(out, nonce[:]...)
	out = append(out, sealed...)
	return out, nil
}

func decryptOne(privateKey common.Key32, ciphertext []byte) (*TreeNote, error) {
	if len(ciphertext) < ephemeralSize+nonceSize {
		return nil, ErrShortCiphertext
	}
	var ephPub, priv [32]byte
	var nonce [nonceSize]byte
	copy(ephPub[:], ciphertext[:ephemeralSize])
	copy(nonce[:], ciphertext[ephemeralSize:ephemeralSize+nonceSize])
	copy(priv[:], privateKey[:])

	sealed := ciphertext[ephemeralSize+nonceSize:]
	plain, ok := box.Open(nil, sealed, &nonce, &ephPub, &priv)
	if !ok {
		return nil, ErrDecryptFailed
	}
	var w envelopePlaintext
	if err := msgpack.Unmarshal(plain, &w); err != nil {
		return nil, fmt.Errorf("noteprim: unmarshal note: %w", err)
	}
	return &TreeNote{
		Value:          new(big.Int).SetBytes(w.Value),
		AssetId:        w.AssetId,
		OwnerPubKey:    common.BytesToKey32(w.OwnerPubKey),
		OwnerNonce:     w.OwnerNonce,
		Secret:         common.BytesToHash32(w.Secret),
		Creator:        common.BytesToKey32(w.Creator),
		InputNullifier: common.BytesToHash32(w.InputNullifier),
		AllowChain:     w.AllowChain,
	}, nil
}

func (algorithms) BatchDecrypt(ctx context.Context, privateKey common.Key32, ciphertexts [][]byte) []*TreeNote {
	// A single call covers the whole block-batch, per spec.md §4.C; the
	// scalar multiplications still run one ciphertext at a time and nothing
	// is precomputed across them, since each note carries a distinct
	// ephemeral key and there is no shared basepoint.
	out := make([]*TreeNote, len(ciphertexts))
	for i, ct := range ciphertexts {
		select {
		case <-ctx.Done():
			return out
		default:
		}
		if ct == nil {
			continue
		}
		n, err := decryptOne(privateKey, ct)
		if err != nil {
			continue
		}
		out[i] = n
	}
	return out
}
