package store

import "github.com/nervosnetwork/polyjuice-old/common"

// Database key layout. Single-byte prefixes keep per-address records in
// one contiguous key range.
var (
	lastBlockKey = []byte("LastBlock") // last indexed block number + hash

	accountPrefix = []byte("a") // accountPrefix + address -> account record
)

// accountKey = accountPrefix + address
func accountKey(addr common.Address) []byte {
	return append(append(make([]byte, 0, len(accountPrefix)+common.AddressLength), accountPrefix...), addr.Bytes()...)
}
