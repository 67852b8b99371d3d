package lock

import (
	"bytes"
	"encoding/binary"
	"errors"

	"github.com/holiman/uint256"

	"github.com/nervosnetwork/polyjuice-old/common"
	"github.com/nervosnetwork/polyjuice-old/crypto"
	"github.com/nervosnetwork/polyjuice-old/params"
	"github.com/nervosnetwork/polyjuice-old/rlp"
)

// Transaction field positions within the 9-element list.
const (
	fieldNonce = iota
	fieldGasPrice
	fieldGasLimit
	fieldTo
	fieldValue
	fieldData
	fieldV
	fieldR
	fieldS
	numTxFields
)

// Validator authorizes one proposed transition. It owns its token arena
// and derived scalars for the duration of a single Verify call and keeps
// no state across calls: a Validator over the same ledger view always
// returns the same verdict.
type Validator struct {
	ledger   Ledger
	expected common.Address
}

// NewValidator returns a validator checking transitions against the
// given ledger view and expected sender address.
func NewValidator(ledger Ledger, expected common.Address) *Validator {
	return &Validator{ledger: ledger, expected: expected}
}

// Verify runs the full authorization state machine and returns nil if
// the transition is authorized. The first failing step aborts the call
// with its specific rejection; use VerdictCode for the numeric form.
func (v *Validator) Verify() error {
	scriptHash, err := v.ledger.ScriptHash()
	if err != nil {
		return ErrLoadScript
	}

	inputNonce, hasMain, fromCap, otherCap, err := v.validateInputCells(scriptHash)
	if err != nil {
		return err
	}

	// The witness of the first input carries the serialized transaction.
	// Its size ceiling reserves one byte for the replay tag appended
	// before the signing hash is recomputed.
	data, err := v.loadWitness(0)
	if err != nil {
		return err
	}

	if data[0] == params.BypassSentinel {
		// Bypass mode: skip transaction semantics entirely and check a
		// signature over the ledger transaction hash itself. This is
		// the escape hatch for moving value out of the lock's model.
		if len(data) != params.BypassWitnessSize {
			return ErrDataLength
		}
		txHash, err := v.ledger.TxHash()
		if err != nil {
			return ErrLoadTxHash
		}
		return v.verifySignature(txHash[:], data[2:], data[1])
	}

	outputNonce, changeCap, sentCap, err := v.validateOutputCells(scriptHash)
	if err != nil {
		return err
	}

	// An account with a prior main cell must advance its nonce by one;
	// a fresh account starts at zero.
	targetNonce := uint64(0)
	if hasMain {
		targetNonce = inputNonce + 1
	}
	if outputNonce != targetNonce {
		return ErrInvalidNonce
	}

	arena := rlp.NewArena(params.MaxTokens)
	if _, err := rlp.Parse(data, arena); err != nil {
		return err
	}
	root := arena.Token(0)
	if !root.IsList() || root.ListLen() != numTxFields {
		return ErrRLP
	}
	fields, _ := root.Children()

	// The embedded nonce must match the ledger's new nonce exactly.
	txNonce, err := rlp.Uint(data, arena, fields+fieldNonce)
	if err != nil {
		return err
	}
	if !txNonce.Eq(uint256.NewInt(outputNonce)) {
		return ErrInvalidNonce
	}

	// Check value and fee against the capacities moved by the ledger
	// transition, so the signed transaction cannot be replayed against
	// a different transfer.
	gasPrice, err := rlp.Uint(data, arena, fields+fieldGasPrice)
	if err != nil {
		return err
	}
	gasLimit, err := rlp.Uint(data, arena, fields+fieldGasLimit)
	if err != nil {
		return err
	}
	value, err := rlp.Uint(data, arena, fields+fieldValue)
	if err != nil {
		return err
	}
	gasWei, overflow := new(uint256.Int).MulOverflow(gasPrice, gasLimit)
	if overflow {
		return ErrOverflow
	}
	fromWei := capacityToWei(fromCap)
	changeWei := capacityToWei(changeCap)
	spent := new(uint256.Int).Add(changeWei, gasWei)
	spent.Add(spent, value)
	if !fromWei.Eq(spent) {
		return ErrInvalidCapacity
	}
	inWei := new(uint256.Int).Add(fromWei, capacityToWei(otherCap))
	outWei := new(uint256.Int).Add(gasWei, changeWei)
	outWei.Add(outWei, capacityToWei(sentCap))
	if !inWei.Eq(outWei) {
		return ErrInvalidCapacity
	}

	if err := v.validateArgs(); err != nil {
		return err
	}

	vTok := arena.Token(fields + fieldV)
	rTok := arena.Token(fields + fieldR)
	sTok := arena.Token(fields + fieldS)
	if !vTok.IsString() || vTok.StringLen() != 1 {
		return ErrRLP
	}
	if !rTok.IsString() || rTok.StringLen() != 32 {
		return ErrRLP
	}
	if !sTok.IsString() || sTok.StringLen() != 32 {
		return ErrRLP
	}
	vBytes, err := vTok.Bytes(data)
	if err != nil {
		return ErrRLP
	}
	rBytes, err := rTok.Bytes(data)
	if err != nil {
		return ErrRLP
	}
	sBytes, err := sTok.Bytes(data)
	if err != nil {
		return ErrRLP
	}

	// Rebuild the replay-protected signing payload: the chain tag
	// becomes the v field, r and s collapse to empty strings, and the
	// whole list is re-encoded in canonical form.
	if params.ChainID > 0xFF {
		return ErrChainIDNotFit
	}
	signable := make([]byte, len(data), len(data)+1)
	copy(signable, data)
	signable = append(signable, byte(params.ChainID))
	arena.Set(fields+fieldV, rlp.StringToken(len(data), len(data)+1))
	arena.Set(fields+fieldR, rlp.StringToken(0, 0))
	arena.Set(fields+fieldS, rlp.StringToken(0, 0))

	unsigned := make([]byte, params.MaxWitnessSize)
	n, err := rlp.Assemble(signable, arena, 0, unsigned)
	if err != nil {
		return err
	}
	digest := crypto.Keccak256(unsigned[:n])

	recid := vBytes[0]
	if boundary := byte(2*params.ChainID + 35); recid >= boundary {
		recid -= boundary
	} else {
		recid -= 27
	}
	if recid > 1 {
		return ErrInvalidV
	}

	sig := make([]byte, 0, 64)
	sig = append(sig, rBytes...)
	sig = append(sig, sBytes...)
	return v.verifySignature(digest, sig, recid)
}

// validateInputCells scans the consumed side. Cells owned by the
// executing lock must form one contiguous run from index zero; at most
// one of them, the main cell, may carry a nonce payload. Remaining
// inputs belong to other owners and only contribute capacity.
func (v *Validator) validateInputCells(scriptHash common.Hash) (nonce uint64, hasMain bool, fromCap, otherCap uint64, err error) {
	i := 0
	for {
		hash, ferr := v.ledger.CellField(i, SourceInput, FieldLockHash)
		if errors.Is(ferr, ErrIndexOutOfBound) {
			break
		}
		if ferr != nil || len(hash) != common.HashLength {
			return 0, false, 0, 0, ErrLoadScript
		}
		if !bytes.Equal(hash, scriptHash[:]) {
			break
		}
		data, ferr := v.ledger.CellField(i, SourceInput, FieldData)
		if ferr != nil {
			return 0, false, 0, 0, ErrLoadData
		}
		if len(data) >= params.MainCellDataSize {
			if hasMain {
				return 0, false, 0, 0, ErrTooManyMainCells
			}
			nonce = binary.LittleEndian.Uint64(data[1:9])
			hasMain = true
		}
		capacity, ferr := v.capacity(i, SourceInput)
		if ferr != nil {
			return 0, false, 0, 0, ErrLoadCapacity
		}
		fromCap += capacity
		i++
	}
	if i == 0 {
		// The first input must belong to the executing lock, otherwise
		// this script has no business validating the transition.
		return 0, false, 0, 0, ErrInvalidScript
	}
	for {
		hash, ferr := v.ledger.CellField(i, SourceInput, FieldLockHash)
		if errors.Is(ferr, ErrIndexOutOfBound) {
			break
		}
		if ferr != nil || len(hash) != common.HashLength {
			return 0, false, 0, 0, ErrLoadScript
		}
		if bytes.Equal(hash, scriptHash[:]) {
			// Owned cells must stay grouped at the front.
			return 0, false, 0, 0, ErrInvalidScript
		}
		capacity, ferr := v.capacity(i, SourceInput)
		if ferr != nil {
			return 0, false, 0, 0, ErrLoadCapacity
		}
		otherCap += capacity
		i++
	}
	return nonce, hasMain, fromCap, otherCap, nil
}

// validateOutputCells checks the produced side: output zero is the
// account's new main cell carrying the advanced nonce and the change
// capacity, and the owner hash must not reappear afterwards.
func (v *Validator) validateOutputCells(scriptHash common.Hash) (nonce, changeCap, sentCap uint64, err error) {
	hash, ferr := v.ledger.CellField(0, SourceOutput, FieldLockHash)
	if ferr != nil || len(hash) != common.HashLength {
		return 0, 0, 0, ErrLoadScript
	}
	if !bytes.Equal(hash, scriptHash[:]) {
		return 0, 0, 0, ErrInvalidScript
	}
	data, ferr := v.ledger.CellField(0, SourceOutput, FieldData)
	if ferr != nil || len(data) < params.MainCellDataSize {
		return 0, 0, 0, ErrLoadData
	}
	nonce = binary.LittleEndian.Uint64(data[1:9])
	changeCap, ferr = v.capacity(0, SourceOutput)
	if ferr != nil {
		return 0, 0, 0, ErrLoadCapacity
	}
	for i := 1; ; i++ {
		capacity, ferr := v.capacity(i, SourceOutput)
		if errors.Is(ferr, ErrIndexOutOfBound) {
			break
		}
		if ferr != nil {
			return 0, 0, 0, ferr
		}
		hash, herr := v.ledger.CellField(i, SourceOutput, FieldLockHash)
		if herr != nil || len(hash) != common.HashLength {
			return 0, 0, 0, ErrLoadScript
		}
		if bytes.Equal(hash, scriptHash[:]) {
			return 0, 0, 0, ErrInvalidScript
		}
		sentCap += capacity
	}
	return nonce, changeCap, sentCap, nil
}

// loadWitness returns the single byte-string element of the witness
// envelope at the given input, enforcing the size ceiling.
func (v *Validator) loadWitness(index int) ([]byte, error) {
	elems, err := v.ledger.Witness(index)
	if err != nil || len(elems) != 1 {
		return nil, ErrLoadWitness
	}
	data := elems[0]
	if len(data) > params.MaxWitnessSize {
		return nil, ErrBufferNotEnough
	}
	// One byte of the ceiling is reserved for the replay tag, and an
	// empty witness cannot carry either path's payload.
	if len(data) == 0 || len(data) >= params.MaxWitnessSize {
		return nil, ErrDataLength
	}
	return data, nil
}

// validateArgs checks that the executing lock carries exactly one
// 20-byte argument naming the expected sender address.
//
// TODO: validate the transaction's to field once the contract calling
// convention is settled.
func (v *Validator) validateArgs() error {
	args, err := v.ledger.ScriptArgs()
	if err != nil {
		return ErrLoadScript
	}
	if len(args) != 1 {
		return ErrInvalidScript
	}
	if len(args[0]) != params.AddressArgSize {
		return ErrInvalidScript
	}
	if !bytes.Equal(args[0], v.expected[:]) {
		return ErrInvalidScript
	}
	return nil
}

// verifySignature recovers the signer of digest from the 64-byte
// compact signature plus recovery id and compares the derived address
// against the expected one.
func (v *Validator) verifySignature(digest, compactSig []byte, recid byte) error {
	if len(compactSig) != crypto.SignatureLength-1 {
		return ErrSignatureParse
	}
	if recid > 1 {
		return ErrSignatureParse
	}
	sig := make([]byte, crypto.SignatureLength)
	copy(sig, compactSig)
	sig[crypto.RecoveryIDOffset] = recid
	pub, err := crypto.Ecrecover(digest, sig)
	if err != nil {
		if errors.Is(err, crypto.ErrInvalidSignature) {
			return ErrSignatureParse
		}
		return ErrRecoverPubkey
	}
	if len(pub) != 65 {
		return ErrSerializePubkey
	}
	addr := common.BytesToAddress(crypto.Keccak256(pub[1:])[12:])
	if addr != v.expected {
		return ErrPubkeyHashMismatch
	}
	return nil
}

// capacity loads one cell's native balance.
func (v *Validator) capacity(index int, source Source) (uint64, error) {
	b, err := v.ledger.CellField(index, source, FieldCapacity)
	if err != nil {
		if errors.Is(err, ErrIndexOutOfBound) {
			return 0, err
		}
		return 0, ErrLoadCapacity
	}
	if len(b) != 8 {
		return 0, ErrLoadCapacity
	}
	return binary.LittleEndian.Uint64(b), nil
}

// capacityToWei converts a cell capacity to the transaction's value
// unit at the fixed exchange rate.
func capacityToWei(capacity uint64) *uint256.Int {
	w := uint256.NewInt(capacity)
	return w.Mul(w, uint256.NewInt(params.CapacityToWei))
}
