package lock

import (
	"encoding/binary"

	"github.com/nervosnetwork/polyjuice-old/common"
)

// Cell is one owner-tagged value record of a ledger transaction.
type Cell struct {
	LockHash common.Hash
	Data     []byte
	Capacity uint64
}

// MemLedger is an in-memory Ledger over a single candidate transaction,
// used by the command harness and tests in place of the on-chain
// execution environment.
type MemLedger struct {
	Inputs    []Cell
	Outputs   []Cell
	Witnesses [][][]byte // envelope elements per input
	Args      [][]byte   // arguments of the executing lock script
	Script    common.Hash
	Hash      common.Hash
}

// CellField implements Ledger.
func (m *MemLedger) CellField(index int, source Source, field CellField) ([]byte, error) {
	cells := m.Inputs
	if source == SourceOutput {
		cells = m.Outputs
	}
	if index < 0 || index >= len(cells) {
		return nil, ErrIndexOutOfBound
	}
	cell := cells[index]
	switch field {
	case FieldLockHash:
		return cell.LockHash.Bytes(), nil
	case FieldData:
		return cell.Data, nil
	case FieldCapacity:
		b := make([]byte, 8)
		binary.LittleEndian.PutUint64(b, cell.Capacity)
		return b, nil
	default:
		return nil, ErrIndexOutOfBound
	}
}

// ScriptHash implements Ledger.
func (m *MemLedger) ScriptHash() (common.Hash, error) { return m.Script, nil }

// TxHash implements Ledger.
func (m *MemLedger) TxHash() (common.Hash, error) { return m.Hash, nil }

// Witness implements Ledger.
func (m *MemLedger) Witness(index int) ([][]byte, error) {
	if index < 0 || index >= len(m.Witnesses) {
		return nil, ErrIndexOutOfBound
	}
	return m.Witnesses[index], nil
}

// ScriptArgs implements Ledger.
func (m *MemLedger) ScriptArgs() ([][]byte, error) { return m.Args, nil }
