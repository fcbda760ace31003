// Package common contains fixed-size byte types shared across the rollup
// synchronizer, mirroring the teacher's own common.Hash/common.Address
// convention.
package common

import (
	"encoding/hex"
	"fmt"
)

// Hash32 is a 32-byte value: a note commitment, a nullifier, an alias hash,
// a secret or a tx hash. The concrete meaning is carried by the field name,
// not the type.
type Hash32 [32]byte

func (h Hash32) Bytes() []byte { return h[:] }

func (h Hash32) Hex() string { return "0x" + hex.EncodeToString(h[:]) }

func (h Hash32) String() string { return h.Hex() }

func (h Hash32) IsZero() bool { return h == Hash32{} }

func BytesToHash32(b []byte) Hash32 {
	var h Hash32
	copy(h[32-len(b):], b)
	return h
}

// Address is an L1-style 20-byte account address, used for the publicOwner
// of a deposit/withdraw join-split.
type Address [20]byte

func (a Address) Bytes() []byte { return a[:] }

func (a Address) Hex() string { return "0x" + hex.EncodeToString(a[:]) }

func (a Address) String() string { return a.Hex() }

func (a Address) IsZero() bool { return a == Address{} }

func BytesToAddress(b []byte) Address {
	var a Address
	copy(a[20-len(b):], b)
	return a
}

// Key32 is a 32-byte public/private key or scalar.
type Key32 [32]byte

func (k Key32) Bytes() []byte { return k[:] }

func (k Key32) Hex() string { return "0x" + hex.EncodeToString(k[:]) }

func (k Key32) IsZero() bool { return k == Key32{} }

func BytesToKey32(b []byte) Key32 {
	var k Key32
	copy(k[32-len(b):], b)
	return k
}

// MustDecodeHex is a test/config helper; it panics on malformed input the
// way the teacher's own hexutil helpers do for compile-time constants.
func MustDecodeHex(s string) []byte {
	if len(s) >= 2 && s[0] == '0' && (s[1] == 'x' || s[1] == 'X') {
		s = s[2:]
	}
	b, err := hex.DecodeString(s)
	if err != nil {
		panic(fmt.Sprintf("common: invalid hex string %q: %v", s, err))
	}
	return b
}
