package lock

import (
	"encoding/binary"
	"testing"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nervosnetwork/polyjuice-old/common"
	"github.com/nervosnetwork/polyjuice-old/crypto"
	"github.com/nervosnetwork/polyjuice-old/params"
)

var (
	testScriptHash = common.HexToHash("0x6d95cd1f4a2b68d5cba2f0dc8b04b9dc9b5ed8c80f8ab60b6ab94cb4d2c9f2aa")
	testOtherHash  = common.HexToHash("0x2f1c5a8e03a6cd7f96c31995ad2f82f0d43b1f6aa2683adfa35e1c3f3d07d11b")
	testTxHash     = common.HexToHash("0x98d3ae02c9f1b42a6e33b51672a23ba4cf6cd19c5b1d2c8f5e84b0a3d1d9f044")
	testToArg      = common.HexToAddress("0x1234567890abcdef1234567890abcdef12345678")
)

func testKey(t *testing.T) *secp256k1.PrivateKey {
	t.Helper()
	var seed [32]byte
	copy(seed[:], "polyjuice lock validator tests")
	seed[31] = 1
	return secp256k1.PrivKeyFromBytes(seed[:])
}

// rlpStr returns the canonical encoding of one byte string.
func rlpStr(b []byte) []byte {
	if len(b) == 1 && b[0] < 0x80 {
		return []byte{b[0]}
	}
	if len(b) >= 56 {
		panic("test strings stay short")
	}
	return append([]byte{0x80 + byte(len(b))}, b...)
}

// rlpList returns the canonical encoding of a list of encoded elements.
func rlpList(elems ...[]byte) []byte {
	var payload []byte
	for _, e := range elems {
		payload = append(payload, e...)
	}
	if len(payload) < 56 {
		return append([]byte{0xC0 + byte(len(payload))}, payload...)
	}
	if len(payload) > 255 {
		panic("test lists stay short")
	}
	return append([]byte{0xF8, byte(len(payload))}, payload...)
}

// beBytes strips a value to its minimal big-endian form.
func beBytes(v uint64) []byte {
	if v == 0 {
		return nil
	}
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], v)
	i := 0
	for b[i] == 0 {
		i++
	}
	return b[i:]
}

// mainData builds a main cell payload: reserved byte plus LE nonce.
func mainData(nonce uint64) []byte {
	data := make([]byte, params.MainCellDataSize)
	binary.LittleEndian.PutUint64(data[1:], nonce)
	return data
}

type txFields struct {
	nonce    uint64
	gasPrice uint64
	gasLimit uint64
	to       []byte
	value    uint64
	data     []byte
}

// signedTx serializes and signs a 9-field transaction over the
// replay-protected digest.
func signedTx(t *testing.T, key *secp256k1.PrivateKey, f txFields) []byte {
	t.Helper()
	base := [][]byte{
		rlpStr(beBytes(f.nonce)),
		rlpStr(beBytes(f.gasPrice)),
		rlpStr(beBytes(f.gasLimit)),
		rlpStr(f.to),
		rlpStr(beBytes(f.value)),
		rlpStr(f.data),
	}
	unsigned := rlpList(append(base, rlpStr([]byte{byte(params.ChainID)}), rlpStr(nil), rlpStr(nil))...)
	sig, err := crypto.Sign(crypto.Keccak256(unsigned), key)
	require.NoError(t, err)
	v := byte(2*params.ChainID+35) + sig[crypto.RecoveryIDOffset]
	return rlpList(append(base, rlpStr([]byte{v}), rlpStr(sig[:32]), rlpStr(sig[32:64]))...)
}

// defaultFields is the balanced scenario: one main input of 1000
// capacity at nonce 5 becomes a 900 change cell at nonce 6, 60 go to
// another owner and 40 cover the fee.
func defaultFields() txFields {
	return txFields{
		nonce:    6,
		gasPrice: 2_000_000_000_0, // 20 Gwei-equivalent at the fixed rate
		gasLimit: 20,
		to:       testToArg.Bytes(),
		value:    60 * params.CapacityToWei,
	}
}

// testLedger builds the matching ledger view for defaultFields.
func testLedger(key *secp256k1.PrivateKey, tx []byte) *MemLedger {
	addr := crypto.PubkeyToAddress(key.PubKey())
	return &MemLedger{
		Script: testScriptHash,
		Hash:   testTxHash,
		Inputs: []Cell{
			{LockHash: testScriptHash, Data: mainData(5), Capacity: 1000},
		},
		Outputs: []Cell{
			{LockHash: testScriptHash, Data: mainData(6), Capacity: 900},
			{LockHash: testOtherHash, Capacity: 60},
		},
		Witnesses: [][][]byte{{tx}},
		Args:      [][]byte{addr.Bytes()},
	}
}

func TestVerifyAuthorized(t *testing.T) {
	key := testKey(t)
	tx := signedTx(t, key, defaultFields())
	ledger := testLedger(key, tx)

	v := NewValidator(ledger, crypto.PubkeyToAddress(key.PubKey()))
	err := v.Verify()
	require.NoError(t, err)
	assert.Equal(t, 0, VerdictCode(err))
}

func TestVerifyEmbeddedNonceMismatch(t *testing.T) {
	key := testKey(t)
	f := defaultFields()
	f.nonce = 7 // ledger says 6
	tx := signedTx(t, key, f)
	ledger := testLedger(key, tx)

	err := NewValidator(ledger, crypto.PubkeyToAddress(key.PubKey())).Verify()
	assert.ErrorIs(t, err, ErrInvalidNonce)
	assert.Equal(t, 22, VerdictCode(err))
}

func TestVerifyNonceProgression(t *testing.T) {
	key := testKey(t)
	tx := signedTx(t, key, defaultFields())

	for _, nonce := range []uint64{5, 7, 42} {
		ledger := testLedger(key, tx)
		ledger.Outputs[0].Data = mainData(nonce)
		err := NewValidator(ledger, crypto.PubkeyToAddress(key.PubKey())).Verify()
		assert.ErrorIs(t, err, ErrInvalidNonce, "output nonce %d", nonce)
	}
}

func TestVerifyFreshAccountStartsAtZero(t *testing.T) {
	key := testKey(t)
	tx := signedTx(t, key, defaultFields())
	ledger := testLedger(key, tx)
	// No main cell on the input side: prior nonce is "none".
	ledger.Inputs[0].Data = nil

	err := NewValidator(ledger, crypto.PubkeyToAddress(key.PubKey())).Verify()
	// Output nonce 6 against required 0.
	assert.ErrorIs(t, err, ErrInvalidNonce)
}

func TestVerifyConservation(t *testing.T) {
	key := testKey(t)
	tx := signedTx(t, key, defaultFields())

	perturb := []func(*MemLedger){
		func(m *MemLedger) { m.Inputs[0].Capacity += 1 },
		func(m *MemLedger) { m.Outputs[0].Capacity -= 1 },
		func(m *MemLedger) { m.Outputs[1].Capacity += 1 },
		func(m *MemLedger) {
			// Extra foreign input breaks the second equation only.
			m.Inputs = append(m.Inputs, Cell{LockHash: testOtherHash, Capacity: 5})
		},
	}
	for i, mutate := range perturb {
		ledger := testLedger(key, tx)
		mutate(ledger)
		err := NewValidator(ledger, crypto.PubkeyToAddress(key.PubKey())).Verify()
		assert.ErrorIs(t, err, ErrInvalidCapacity, "perturbation %d", i)
	}
}

func TestVerifyBalancedWithOtherInputs(t *testing.T) {
	key := testKey(t)
	tx := signedTx(t, key, defaultFields())
	ledger := testLedger(key, tx)
	// A foreign input adds 10 capacity; route it to the foreign output
	// so both equations still balance.
	ledger.Inputs = append(ledger.Inputs, Cell{LockHash: testOtherHash, Capacity: 10})
	ledger.Outputs[1].Capacity += 10

	err := NewValidator(ledger, crypto.PubkeyToAddress(key.PubKey())).Verify()
	assert.NoError(t, err)
}

func TestVerifyInputLayout(t *testing.T) {
	key := testKey(t)
	tx := signedTx(t, key, defaultFields())

	t.Run("first input foreign", func(t *testing.T) {
		ledger := testLedger(key, tx)
		ledger.Inputs[0].LockHash = testOtherHash
		err := NewValidator(ledger, crypto.PubkeyToAddress(key.PubKey())).Verify()
		assert.ErrorIs(t, err, ErrInvalidScript)
	})
	t.Run("owner after foreign run", func(t *testing.T) {
		ledger := testLedger(key, tx)
		ledger.Inputs = append(ledger.Inputs,
			Cell{LockHash: testOtherHash, Capacity: 1},
			Cell{LockHash: testScriptHash, Capacity: 1},
		)
		err := NewValidator(ledger, crypto.PubkeyToAddress(key.PubKey())).Verify()
		assert.ErrorIs(t, err, ErrInvalidScript)
	})
	t.Run("two main cells", func(t *testing.T) {
		ledger := testLedger(key, tx)
		ledger.Inputs = append(ledger.Inputs,
			Cell{LockHash: testScriptHash, Data: mainData(9), Capacity: 1},
		)
		err := NewValidator(ledger, crypto.PubkeyToAddress(key.PubKey())).Verify()
		assert.ErrorIs(t, err, ErrTooManyMainCells)
	})
}

func TestVerifyOutputLayout(t *testing.T) {
	key := testKey(t)
	tx := signedTx(t, key, defaultFields())

	t.Run("change cell not first", func(t *testing.T) {
		ledger := testLedger(key, tx)
		ledger.Outputs[0].LockHash = testOtherHash
		err := NewValidator(ledger, crypto.PubkeyToAddress(key.PubKey())).Verify()
		assert.ErrorIs(t, err, ErrInvalidScript)
	})
	t.Run("owner reappears", func(t *testing.T) {
		ledger := testLedger(key, tx)
		ledger.Outputs[1].LockHash = testScriptHash
		err := NewValidator(ledger, crypto.PubkeyToAddress(key.PubKey())).Verify()
		assert.ErrorIs(t, err, ErrInvalidScript)
	})
	t.Run("missing nonce payload", func(t *testing.T) {
		ledger := testLedger(key, tx)
		ledger.Outputs[0].Data = []byte{0, 1, 2}
		err := NewValidator(ledger, crypto.PubkeyToAddress(key.PubKey())).Verify()
		assert.ErrorIs(t, err, ErrLoadData)
	})
}

func TestVerifyWitnessShape(t *testing.T) {
	key := testKey(t)
	tx := signedTx(t, key, defaultFields())

	t.Run("no elements", func(t *testing.T) {
		ledger := testLedger(key, tx)
		ledger.Witnesses = [][][]byte{{}}
		err := NewValidator(ledger, crypto.PubkeyToAddress(key.PubKey())).Verify()
		assert.ErrorIs(t, err, ErrLoadWitness)
	})
	t.Run("two elements", func(t *testing.T) {
		ledger := testLedger(key, tx)
		ledger.Witnesses = [][][]byte{{tx, tx}}
		err := NewValidator(ledger, crypto.PubkeyToAddress(key.PubKey())).Verify()
		assert.ErrorIs(t, err, ErrLoadWitness)
	})
	t.Run("missing witness", func(t *testing.T) {
		ledger := testLedger(key, tx)
		ledger.Witnesses = nil
		err := NewValidator(ledger, crypto.PubkeyToAddress(key.PubKey())).Verify()
		assert.ErrorIs(t, err, ErrLoadWitness)
	})
	t.Run("oversized witness", func(t *testing.T) {
		ledger := testLedger(key, tx)
		ledger.Witnesses = [][][]byte{{make([]byte, params.MaxWitnessSize)}}
		err := NewValidator(ledger, crypto.PubkeyToAddress(key.PubKey())).Verify()
		assert.ErrorIs(t, err, ErrDataLength)
	})
}

func TestVerifyArguments(t *testing.T) {
	key := testKey(t)
	tx := signedTx(t, key, defaultFields())
	addr := crypto.PubkeyToAddress(key.PubKey())

	t.Run("address mismatch", func(t *testing.T) {
		ledger := testLedger(key, tx)
		ledger.Args = [][]byte{testToArg.Bytes()}
		err := NewValidator(ledger, addr).Verify()
		assert.ErrorIs(t, err, ErrInvalidScript)
	})
	t.Run("wrong arg count", func(t *testing.T) {
		ledger := testLedger(key, tx)
		ledger.Args = [][]byte{addr.Bytes(), addr.Bytes()}
		err := NewValidator(ledger, addr).Verify()
		assert.ErrorIs(t, err, ErrInvalidScript)
	})
	t.Run("wrong arg length", func(t *testing.T) {
		ledger := testLedger(key, tx)
		ledger.Args = [][]byte{addr.Bytes()[:19]}
		err := NewValidator(ledger, addr).Verify()
		assert.ErrorIs(t, err, ErrInvalidScript)
	})
}

func TestVerifyTransactionShape(t *testing.T) {
	key := testKey(t)
	addr := crypto.PubkeyToAddress(key.PubKey())

	t.Run("eight fields", func(t *testing.T) {
		f := defaultFields()
		tx := rlpList(
			rlpStr(beBytes(f.nonce)),
			rlpStr(beBytes(f.gasPrice)),
			rlpStr(beBytes(f.gasLimit)),
			rlpStr(f.to),
			rlpStr(beBytes(f.value)),
			rlpStr(nil),
			rlpStr([]byte{37}),
			rlpStr(make([]byte, 32)),
		)
		ledger := testLedger(key, tx)
		err := NewValidator(ledger, addr).Verify()
		assert.ErrorIs(t, err, ErrRLP)
	})
	t.Run("short r", func(t *testing.T) {
		f := defaultFields()
		tx := rlpList(
			rlpStr(beBytes(f.nonce)),
			rlpStr(beBytes(f.gasPrice)),
			rlpStr(beBytes(f.gasLimit)),
			rlpStr(f.to),
			rlpStr(beBytes(f.value)),
			rlpStr(nil),
			rlpStr([]byte{37}),
			rlpStr(make([]byte, 31)),
			rlpStr(make([]byte, 32)),
		)
		ledger := testLedger(key, tx)
		err := NewValidator(ledger, addr).Verify()
		assert.ErrorIs(t, err, ErrRLP)
	})
	t.Run("not a list", func(t *testing.T) {
		ledger := testLedger(key, signedTx(t, key, defaultFields()))
		ledger.Witnesses = [][][]byte{{{0x82, 0x01, 0x02}}}
		err := NewValidator(ledger, addr).Verify()
		assert.ErrorIs(t, err, ErrRLP)
	})
}

func TestVerifyInvalidRecoveryValue(t *testing.T) {
	key := testKey(t)
	addr := crypto.PubkeyToAddress(key.PubKey())
	f := defaultFields()
	base := [][]byte{
		rlpStr(beBytes(f.nonce)),
		rlpStr(beBytes(f.gasPrice)),
		rlpStr(beBytes(f.gasLimit)),
		rlpStr(f.to),
		rlpStr(beBytes(f.value)),
		rlpStr(nil),
	}
	// v = 40 maps to recovery id 3 under the replay-tag rule.
	tx := rlpList(append(base, rlpStr([]byte{40}), rlpStr(make([]byte, 32)), rlpStr(make([]byte, 32)))...)
	ledger := testLedger(key, tx)
	err := NewValidator(ledger, addr).Verify()
	assert.ErrorIs(t, err, ErrInvalidV)
}

func TestVerifyWrongSigner(t *testing.T) {
	key := testKey(t)
	addr := crypto.PubkeyToAddress(key.PubKey())

	var seed [32]byte
	seed[0] = 0x42
	seed[31] = 0x24
	other := secp256k1.PrivKeyFromBytes(seed[:])

	tx := signedTx(t, other, defaultFields())
	ledger := testLedger(key, tx)
	// Ledger layout and args still name the expected address; only the
	// signature comes from someone else.
	err := NewValidator(ledger, addr).Verify()
	assert.ErrorIs(t, err, ErrPubkeyHashMismatch)
	assert.Equal(t, 18, VerdictCode(err))
}

func TestVerifyBypass(t *testing.T) {
	key := testKey(t)
	addr := crypto.PubkeyToAddress(key.PubKey())

	sig, err := crypto.Sign(testTxHash.Bytes(), key)
	require.NoError(t, err)
	witness := append([]byte{params.BypassSentinel, sig[crypto.RecoveryIDOffset]}, sig[:64]...)

	ledger := testLedger(key, nil)
	ledger.Witnesses = [][][]byte{{witness}}
	// Bypass mode ignores outputs entirely.
	ledger.Outputs = nil

	require.NoError(t, NewValidator(ledger, addr).Verify())

	t.Run("wrong length", func(t *testing.T) {
		ledger := testLedger(key, nil)
		ledger.Witnesses = [][][]byte{{witness[:65]}}
		err := NewValidator(ledger, addr).Verify()
		assert.ErrorIs(t, err, ErrDataLength)
	})
	t.Run("wrong signer", func(t *testing.T) {
		ledger := testLedger(key, nil)
		ledger.Witnesses = [][][]byte{{witness}}
		// Args are not checked on the bypass path; the recovered address
		// simply differs from the expected one.
		err := NewValidator(ledger, testToArg).Verify()
		assert.ErrorIs(t, err, ErrPubkeyHashMismatch)
	})
}

func TestVerdictCodes(t *testing.T) {
	assert.Equal(t, 0, VerdictCode(nil))
	assert.Equal(t, 8, VerdictCode(ErrInvalidScript))
	assert.Equal(t, 10, VerdictCode(ErrTooManyMainCells))
	assert.Equal(t, 24, VerdictCode(ErrInvalidCapacity))
	assert.Equal(t, 27, VerdictCode(ErrOverflow))
}
