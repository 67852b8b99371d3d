// Package lock implements the transfer-authorization engine: it decides
// whether a proposed ledger transition over an account's cells is
// authorized by the Ethereum-style signed transaction embedded in the
// transition's witness.
package lock

import (
	"errors"

	"github.com/nervosnetwork/polyjuice-old/common"
)

// Source selects the consumed or produced side of the ledger
// transaction when querying cells.
type Source int

const (
	SourceInput Source = iota
	SourceOutput
)

// CellField selects a field of a cell.
type CellField int

const (
	// FieldLockHash is the 32-byte hash identifying the cell's owner lock.
	FieldLockHash CellField = iota
	// FieldData is the cell's data payload.
	FieldData
	// FieldCapacity is the cell's native balance, 8 bytes little-endian.
	FieldCapacity
)

// ErrIndexOutOfBound is returned by a Ledger when a cell or witness
// index is past the end of its side. It terminates the validator's
// scan loops and is not itself a rejection.
var ErrIndexOutOfBound = errors.New("lock: index out of bound")

// Ledger is the read-only view of the candidate ledger transaction the
// lock executes against. Implementations wrap the ambient execution
// environment; every method reflects a single load of current state and
// must be stable for the duration of one validation call.
type Ledger interface {
	// CellField returns one field of the cell at index on the given
	// side, or ErrIndexOutOfBound past the last cell.
	CellField(index int, source Source, field CellField) ([]byte, error)

	// ScriptHash returns the identity hash of the currently executing
	// lock script.
	ScriptHash() (common.Hash, error)

	// TxHash returns the hash of the ledger transaction itself.
	TxHash() (common.Hash, error)

	// Witness returns the byte-string elements of the witness envelope
	// attached to the input at index. The lock expects exactly one
	// element carrying the serialized transaction.
	Witness(index int) ([][]byte, error)

	// ScriptArgs returns the argument byte-strings of the executing
	// lock script. The lock expects exactly one 20-byte address.
	ScriptArgs() ([][]byte, error)
}
