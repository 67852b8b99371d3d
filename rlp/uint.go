package rlp

import "github.com/holiman/uint256"

// maxUintBytes caps integer fields at 128 bits. The conservation
// arithmetic never needs more, and a wider field is a malformed
// transaction rather than a value to truncate.
const maxUintBytes = 16

// Uint interprets the string token at index i as a big-endian unsigned
// integer of at most 16 bytes. Empty fields and fields with a leading
// zero byte are rejected: the canonical encoding of zero is the empty
// string prefix 0x80 and integers carry no zero padding, so neither
// shape is a value this codec accepts.
func Uint(src []byte, a *Arena, i int) (*uint256.Int, error) {
	if i < 0 || i >= a.Len() {
		return nil, ErrBadIndex
	}
	t := a.tokens[i]
	if t.kind != String {
		return nil, ErrExpectedString
	}
	if t.StringLen() > maxUintBytes {
		return nil, ErrValueTooLarge
	}
	payload, err := t.Bytes(src)
	if err != nil {
		return nil, ErrInvalidValue
	}
	if len(payload) == 0 || payload[0] == 0 {
		return nil, ErrInvalidValue
	}
	return new(uint256.Int).SetBytes(payload), nil
}
