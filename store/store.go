// Package store persists the account state derived from authorized
// transitions: the per-address nonce and capacity, and the pointer to
// the last block the index has processed.
package store

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/syndtr/goleveldb/leveldb"

	"github.com/nervosnetwork/polyjuice-old/common"
)

// ErrNotFound is returned when the requested record does not exist.
var ErrNotFound = errors.New("store: not found")

// Account is the indexed state of one address.
type Account struct {
	Nonce    uint64
	Capacity uint64
}

// Store is a LevelDB-backed account index.
type Store struct {
	db *leveldb.DB
}

// Open opens or creates the index at path.
func Open(path string) (*Store, error) {
	db, err := leveldb.OpenFile(path, nil)
	if err != nil {
		return nil, fmt.Errorf("store: open %s: %w", path, err)
	}
	return &Store{db: db}, nil
}

// Close releases the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// PutAccount stores the state of addr.
func (s *Store) PutAccount(addr common.Address, acct Account) error {
	var record [16]byte
	binary.LittleEndian.PutUint64(record[:8], acct.Nonce)
	binary.LittleEndian.PutUint64(record[8:], acct.Capacity)
	return s.db.Put(accountKey(addr), record[:], nil)
}

// Account returns the stored state of addr.
func (s *Store) Account(addr common.Address) (Account, error) {
	record, err := s.db.Get(accountKey(addr), nil)
	if err != nil {
		if errors.Is(err, leveldb.ErrNotFound) {
			return Account{}, ErrNotFound
		}
		return Account{}, err
	}
	if len(record) != 16 {
		return Account{}, fmt.Errorf("store: corrupt account record of %d bytes", len(record))
	}
	return Account{
		Nonce:    binary.LittleEndian.Uint64(record[:8]),
		Capacity: binary.LittleEndian.Uint64(record[8:]),
	}, nil
}

// DeleteAccount removes the state of addr. Deleting a missing account
// is not an error.
func (s *Store) DeleteAccount(addr common.Address) error {
	return s.db.Delete(accountKey(addr), nil)
}

// PutLastBlock records the last indexed block.
func (s *Store) PutLastBlock(number uint64, hash common.Hash) error {
	record := make([]byte, 8+common.HashLength)
	binary.LittleEndian.PutUint64(record[:8], number)
	copy(record[8:], hash.Bytes())
	return s.db.Put(lastBlockKey, record, nil)
}

// LastBlock returns the last indexed block, or ErrNotFound before the
// first update.
func (s *Store) LastBlock() (uint64, common.Hash, error) {
	record, err := s.db.Get(lastBlockKey, nil)
	if err != nil {
		if errors.Is(err, leveldb.ErrNotFound) {
			return 0, common.Hash{}, ErrNotFound
		}
		return 0, common.Hash{}, err
	}
	if len(record) != 8+common.HashLength {
		return 0, common.Hash{}, fmt.Errorf("store: corrupt block record of %d bytes", len(record))
	}
	return binary.LittleEndian.Uint64(record[:8]), common.BytesToHash(record[8:]), nil
}
