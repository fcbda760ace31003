package types

import (
	"encoding/binary"
	"fmt"
	"math/big"
	"time"

	"github.com/tos-network/rollupsync/common"
)

// InnerProof is one user transaction within a rollup batch.
type InnerProof struct {
	ProofId         ProofKind
	NoteCommitment1 common.Hash32
	NoteCommitment2 common.Hash32
	Nullifier1      common.Hash32
	Nullifier2      common.Hash32
	PublicValue     *big.Int
	PublicOwner     common.Address
	AssetId         [32]byte // asset id lives in the last 4 bytes, big-endian
	TxId            common.Hash32
}

// AssetIdU32 extracts the big-endian u32 asset id packed into the last four
// bytes of the 32-byte AssetId field.
func (p InnerProof) AssetIdU32() uint32 {
	return binary.BigEndian.Uint32(p.AssetId[28:32])
}

// InteractionResult reports the aggregate outcome of one DeFi bridge
// interaction settled in a block.
type InteractionResult struct {
	BridgeId          BridgeId
	TotalInputValue   *big.Int
	TotalOutputValueA *big.Int
	TotalOutputValueB *big.Int
	Result            bool
}

// RollupProofData is the decoded form of a Block's raw rollupProofData
// bytes.
type RollupProofData struct {
	RollupId       uint32
	DataStartIndex uint32
	InnerProofData []InnerProof
}

// Block is a rollup batch as consumed by the synchronizer core.
type Block struct {
	RollupId          uint32
	RollupProofData   []byte
	OffchainTxData    [][]byte
	InteractionResult []InteractionResult
	Created           time.Time
}

// NoteStartIndex returns the tree index of the first output note of the
// i-th inner proof within a rollup whose data section starts at
// dataStartIndex, per the fixed two-notes-per-proof layout.
func NoteStartIndex(dataStartIndex uint32, i int) uint32 {
	return dataStartIndex + uint32(i)*2
}

// DecodeRollupProofData parses the fixed-width wire encoding produced by the
// (out-of-scope) rollup provider: a 4-byte rollupId, a 4-byte
// dataStartIndex, a 4-byte inner-proof count, followed by that many
// fixed-width InnerProof records.
func DecodeRollupProofData(raw []byte) (*RollupProofData, error) {
	const headerLen = 12
	if len(raw) < headerLen {
		return nil, fmt.Errorf("types: rollup proof data too short: %d bytes", len(raw))
	}
	out := &RollupProofData{
		RollupId:       binary.BigEndian.Uint32(raw[0:4]),
		DataStartIndex: binary.BigEndian.Uint32(raw[4:8]),
	}
	count := binary.BigEndian.Uint32(raw[8:12])
	off := headerLen
	for i := uint32(0); i < count; i++ {
		p, next, err := decodeInnerProof(raw, off)
		if err != nil {
			return nil, fmt.Errorf("types: inner proof %d: %w", i, err)
		}
		out.InnerProofData = append(out.InnerProofData, p)
		off = next
	}
	return out, nil
}

const innerProofWireLen = 1 + 32*4 + 32 + 20 + 32 + 32

func decodeInnerProof(raw []byte, off int) (InnerProof, int, error) {
	if off+innerProofWireLen > len(raw) {
		return InnerProof{}, 0, fmt.Errorf("truncated inner proof at offset %d", off)
	}
	var p InnerProof
	p.ProofId = ProofKind(raw[off])
	off++
	off = readHash32(raw, off, &p.NoteCommitment1)
	off = readHash32(raw, off, &p.NoteCommitment2)
	off = readHash32(raw, off, &p.Nullifier1)
	off = readHash32(raw, off, &p.Nullifier2)
	p.PublicValue = new(big.Int).SetBytes(raw[off : off+32])
	off += 32
	copy(p.PublicOwner[:], raw[off:off+20])
	off += 20
	copy(p.AssetId[:], raw[off:off+32])
	off += 32
	off = readHash32(raw, off, &p.TxId)
	return p, off, nil
}

func readHash32(raw []byte, off int, out *common.Hash32) int {
	copy(out[:], raw[off:off+32])
	return off + 32
}

// EncodeRollupProofData is the inverse of DecodeRollupProofData, used by
// tests to build synthetic blocks.
func EncodeRollupProofData(d *RollupProofData) []byte {
	out := make([]byte, 12)
	binary.BigEndian.PutUint32(out[0:4], d.RollupId)
	binary.BigEndian.PutUint32(out[4:8], d.DataStartIndex)
	binary.BigEndian.PutUint32(out[8:12], uint32(len(d.InnerProofData)))
	for _, p := range d.InnerProofData {
		buf := make([]byte, innerProofWireLen)
		pos := 0
		buf[pos] = byte(p.ProofId)
		pos++
		pos = writeHash32(buf, pos, p.NoteCommitment1)
		pos = writeHash32(buf, pos, p.NoteCommitment2)
		pos = writeHash32(buf, pos, p.Nullifier1)
		pos = writeHash32(buf, pos, p.Nullifier2)
		val := p.PublicValue
		if val == nil {
			val = new(big.Int)
		}
		valBytes := val.Bytes()
		copy(buf[pos+32-len(valBytes):pos+32], valBytes)
		pos += 32
		copy(buf[pos:pos+20], p.PublicOwner[:])
		pos += 20
		copy(buf[pos:pos+32], p.AssetId[:])
		pos += 32
		writeHash32(buf, pos, p.TxId)
		out = append(out, buf...)
	}
	return out
}

func writeHash32(buf []byte, pos int, h common.Hash32) int {
	copy(buf[pos:pos+32], h[:])
	return pos + 32
}
