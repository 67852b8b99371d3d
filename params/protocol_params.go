package params

const (
	// ChainID is the replay-protection tag appended to the transaction
	// body before the signing hash is recomputed. The lock only supports
	// single-byte tags; validation rejects anything above 0xFF.
	ChainID uint64 = 1

	// CapacityToWei is the fixed exchange rate between one unit of cell
	// capacity (a shannon) and the wei-denominated fields of the embedded
	// transaction.
	CapacityToWei uint64 = 10_000_000_000

	// MaxWitnessSize bounds the witness payload carrying the serialized
	// transaction. The final byte of the buffer is reserved for the
	// appended ChainID tag, so the payload itself must stay strictly
	// below this limit.
	MaxWitnessSize = 32768

	// MaxTokens is the capacity of the token arena used to decode the
	// embedded transaction. A 9-field transaction needs ten tokens.
	MaxTokens = 16

	// MaxScriptSize bounds the serialized lock script loaded when
	// checking the destination argument.
	MaxScriptSize = 1024

	// AddressArgSize is the byte length of the script argument holding
	// the expected sender address.
	AddressArgSize = 20
)

const (
	// MainCellDataSize is the minimum data length for a cell to count as
	// an account's main cell: one reserved byte followed by the
	// little-endian 64-bit nonce.
	MainCellDataSize = 9

	// BypassSentinel marks a witness that skips transaction validation
	// and checks a signature directly against the ledger transaction
	// hash, allowing value to leave the lock's model.
	BypassSentinel = 0xFF

	// BypassWitnessSize is the exact witness length in bypass mode: the
	// sentinel, a recovery id, and a 64-byte compact signature.
	BypassWitnessSize = 66
)
