// Package types provides a decoded view of the Ethereum-style
// transactions embedded in lock witnesses, for off-chain tooling that
// needs the fields and the recovered sender rather than a verdict.
package types

import (
	"errors"
	"fmt"

	"github.com/holiman/uint256"

	"github.com/nervosnetwork/polyjuice-old/common"
	"github.com/nervosnetwork/polyjuice-old/crypto"
	"github.com/nervosnetwork/polyjuice-old/params"
	"github.com/nervosnetwork/polyjuice-old/rlp"
)

// ErrMalformed wraps all decoding failures of a raw transaction.
var ErrMalformed = errors.New("types: malformed transaction")

// ErrValueRange is returned when a wei amount does not fit the 64-bit
// capacity range after conversion.
var ErrValueRange = errors.New("types: exceeds maximum capacity range")

// Transaction is a decoded transfer instruction. The sender address is
// recovered from the signature at decode time, so a Transaction value
// always carries a provably attributed origin.
type Transaction struct {
	Nonce    uint64
	GasPrice *uint256.Int
	GasLimit *uint256.Int
	To       *common.Address
	Value    *uint256.Int
	Data     []byte
	V        uint64
	R        *uint256.Int
	S        *uint256.Int

	from common.Address
	raw  []byte
}

// DecodeRaw parses a serialized 9-field transaction and recovers its
// sender from the replay-protected signing hash.
func DecodeRaw(raw []byte) (*Transaction, error) {
	arena := rlp.NewArena(params.MaxTokens)
	if _, err := rlp.Parse(raw, arena); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if arena.Len() == 0 {
		return nil, fmt.Errorf("%w: empty input", ErrMalformed)
	}
	root := arena.Token(0)
	if !root.IsList() || root.ListLen() != 9 {
		return nil, fmt.Errorf("%w: want 9 fields, have %d", ErrMalformed, root.ListLen())
	}
	first, _ := root.Children()

	fields := make([][]byte, 9)
	for i := range fields {
		tok := arena.Token(first + i)
		payload, err := tok.Bytes(raw)
		if err != nil {
			return nil, fmt.Errorf("%w: field %d is not a string", ErrMalformed, i)
		}
		fields[i] = payload
	}
	if len(fields[7]) != 32 {
		return nil, fmt.Errorf("%w: invalid r length %d", ErrMalformed, len(fields[7]))
	}
	if len(fields[8]) != 32 {
		return nil, fmt.Errorf("%w: invalid s length %d", ErrMalformed, len(fields[8]))
	}

	nonce, err := bytesToUint64(fields[0])
	if err != nil {
		return nil, err
	}
	gasPrice, err := bytesToU256(fields[1])
	if err != nil {
		return nil, err
	}
	gasLimit, err := bytesToU256(fields[2])
	if err != nil {
		return nil, err
	}
	value, err := bytesToU256(fields[4])
	if err != nil {
		return nil, err
	}
	v, err := bytesToUint64(fields[6])
	if err != nil {
		return nil, err
	}
	r, _ := bytesToU256(fields[7])
	s, _ := bytesToU256(fields[8])

	tx := &Transaction{
		Nonce:    nonce,
		GasPrice: gasPrice,
		GasLimit: gasLimit,
		Value:    value,
		V:        v,
		R:        r,
		S:        s,
		raw:      raw,
	}
	if len(fields[3]) > 0 {
		to := common.BytesToAddress(fields[3])
		tx.To = &to
	}
	if len(fields[5]) > 0 {
		tx.Data = fields[5]
	}
	tx.from, err = recoverSender(raw, arena, first, v, fields[7], fields[8])
	if err != nil {
		return nil, err
	}
	return tx, nil
}

// From returns the recovered sender address.
func (tx *Transaction) From() common.Address { return tx.from }

// Raw returns the serialized form the transaction was decoded from.
func (tx *Transaction) Raw() []byte { return tx.raw }

// Hash returns the Keccak-256 digest of the serialized transaction.
func (tx *Transaction) Hash() common.Hash {
	return crypto.Keccak256Hash(tx.raw)
}

// Fees returns gasPrice × gasLimit in wei.
func (tx *Transaction) Fees() (*uint256.Int, error) {
	fees, overflow := new(uint256.Int).MulOverflow(tx.GasPrice, tx.GasLimit)
	if overflow {
		return nil, fmt.Errorf("%w: fee multiplication overflow", ErrMalformed)
	}
	return fees, nil
}

// ValueInCapacity converts the transferred value to cell capacity units.
func (tx *Transaction) ValueInCapacity() (uint64, error) {
	return weiToCapacity(tx.Value)
}

// FeesInCapacity converts the maximum fee to cell capacity units.
func (tx *Transaction) FeesInCapacity() (uint64, error) {
	fees, err := tx.Fees()
	if err != nil {
		return 0, err
	}
	return weiToCapacity(fees)
}

// recoverSender rebuilds the replay-protected signing payload from the
// decoded token tree and recovers the signer address.
func recoverSender(raw []byte, arena *rlp.Arena, first int, v uint64, r, s []byte) (common.Address, error) {
	boundary := 2*params.ChainID + 35
	if v < boundary || v > boundary+1 {
		return common.Address{}, fmt.Errorf("%w: invalid recovery value %d", ErrMalformed, v)
	}
	signable := make([]byte, len(raw), len(raw)+1)
	copy(signable, raw)
	signable = append(signable, byte(params.ChainID))
	arena.Set(first+6, rlp.StringToken(len(raw), len(raw)+1))
	arena.Set(first+7, rlp.StringToken(0, 0))
	arena.Set(first+8, rlp.StringToken(0, 0))
	size, err := rlp.AssembledSize(signable, arena, 0)
	if err != nil {
		return common.Address{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	unsigned := make([]byte, size)
	if _, err := rlp.Assemble(signable, arena, 0, unsigned); err != nil {
		return common.Address{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	digest := crypto.Keccak256(unsigned)

	sig := make([]byte, crypto.SignatureLength)
	copy(sig[:32], r)
	copy(sig[32:64], s)
	sig[crypto.RecoveryIDOffset] = byte(v - boundary)
	pub, err := crypto.SigToPub(digest, sig)
	if err != nil {
		return common.Address{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return crypto.PubkeyToAddress(pub), nil
}

// bytesToUint64 reads a big-endian integer of at most 8 bytes. Unlike
// the lock's strict extraction, the view accepts empty and zero-padded
// fields: off-chain callers want the value, not canonicality.
func bytesToUint64(b []byte) (uint64, error) {
	if len(b) > 8 {
		return 0, fmt.Errorf("%w: invalid field length %d", ErrMalformed, len(b))
	}
	var v uint64
	for _, c := range b {
		v = v<<8 | uint64(c)
	}
	return v, nil
}

// bytesToU256 reads a big-endian integer of at most 32 bytes.
func bytesToU256(b []byte) (*uint256.Int, error) {
	if len(b) > 32 {
		return nil, fmt.Errorf("%w: invalid field length %d", ErrMalformed, len(b))
	}
	return new(uint256.Int).SetBytes(b), nil
}

// weiToCapacity converts a wei amount to capacity units at the fixed
// exchange rate, rejecting amounts beyond the 64-bit capacity range.
func weiToCapacity(wei *uint256.Int) (uint64, error) {
	q := new(uint256.Int).Div(wei, uint256.NewInt(params.CapacityToWei))
	if !q.IsUint64() {
		return 0, ErrValueRange
	}
	return q.Uint64(), nil
}
