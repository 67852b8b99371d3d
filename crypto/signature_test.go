// Copyright 2017 The go-ethereum Authors
// This file is part of the go-ethereum library.
//
// The go-ethereum library is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// The go-ethereum library is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with the go-ethereum library. If not, see <http://www.gnu.org/licenses/>.

package crypto

import (
	"bytes"
	"encoding/hex"
	"testing"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"

	"github.com/nervosnetwork/polyjuice-old/common"
)

var (
	testPrivHex = "289c2857d4598e37fb9647507e47a309d6133539bf21a8b9cb6df88fd5232032"
	testAddrHex = "0x970e8128ab834e8eac17ab8e3812f010678cf791"
)

func testKey(t *testing.T) *secp256k1.PrivateKey {
	t.Helper()
	b, err := hex.DecodeString(testPrivHex)
	if err != nil {
		t.Fatal(err)
	}
	return secp256k1.PrivKeyFromBytes(b)
}

func TestPubkeyToAddress(t *testing.T) {
	key := testKey(t)
	addr := PubkeyToAddress(key.PubKey())
	if addr != common.HexToAddress(testAddrHex) {
		t.Fatalf("address: got %s, want %s", addr.Hex(), testAddrHex)
	}
}

func TestSignRecover(t *testing.T) {
	key := testKey(t)
	digest := Keccak256([]byte("transfer authorization digest"))

	sig, err := Sign(digest, key)
	if err != nil {
		t.Fatal(err)
	}
	if len(sig) != SignatureLength {
		t.Fatalf("signature length: got %d, want %d", len(sig), SignatureLength)
	}
	if v := sig[RecoveryIDOffset]; v != 0 && v != 1 {
		t.Fatalf("recovery id: got %d, want 0 or 1", v)
	}

	pub, err := Ecrecover(digest, sig)
	if err != nil {
		t.Fatal(err)
	}
	want := key.PubKey().SerializeUncompressed()
	if !bytes.Equal(pub, want) {
		t.Fatalf("recovered key mismatch: got %x, want %x", pub, want)
	}
	if got := common.BytesToAddress(Keccak256(pub[1:])[12:]); got != common.HexToAddress(testAddrHex) {
		t.Fatalf("derived address: got %s, want %s", got.Hex(), testAddrHex)
	}
}

func TestEcrecoverRejectsMalformed(t *testing.T) {
	key := testKey(t)
	digest := Keccak256([]byte("transfer authorization digest"))
	sig, err := Sign(digest, key)
	if err != nil {
		t.Fatal(err)
	}

	if _, err := Ecrecover(digest, sig[:64]); err == nil {
		t.Error("short signature accepted")
	}
	bad := make([]byte, SignatureLength)
	copy(bad, sig)
	bad[RecoveryIDOffset] = 2
	if _, err := Ecrecover(digest, bad); err == nil {
		t.Error("out-of-range recovery id accepted")
	}
	// Recovering against a different digest yields a different key.
	other := Keccak256([]byte("another digest"))
	pub, err := Ecrecover(other, sig)
	if err == nil && bytes.Equal(pub, key.PubKey().SerializeUncompressed()) {
		t.Error("signature recovered to the same key over a different digest")
	}
}

func TestKeccak256(t *testing.T) {
	// Keccak-256 of the empty input, the classic sanity vector.
	want := "c5d2460186f7233c927e7db2dcc703c0e500b653ca82273b7bfad8045d85a470"
	got := hex.EncodeToString(Keccak256(nil))
	if got != want {
		t.Fatalf("Keccak256(nil) = %s, want %s", got, want)
	}
}
