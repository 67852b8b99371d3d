// Copyright 2015 The go-ethereum Authors
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

package common

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashSetBytes(t *testing.T) {
	var h Hash
	h.SetBytes([]byte{1, 2, 3})
	assert.Equal(t, byte(3), h[31])
	assert.Equal(t, byte(0), h[0])

	// Oversized input is cropped from the left.
	long := make([]byte, 40)
	long[8] = 0xAA
	h.SetBytes(long)
	assert.Equal(t, byte(0xAA), h[0])
}

func TestHashHexRoundTrip(t *testing.T) {
	hex := "0x6d95cd1f4a2b68d5cba2f0dc8b04b9dc9b5ed8c80f8ab60b6ab94cb4d2c9f2aa"
	h := HexToHash(hex)
	assert.Equal(t, hex, h.Hex())

	var back Hash
	require.NoError(t, back.UnmarshalText([]byte(hex)))
	assert.Equal(t, h, back)
}

func TestAddressHexRoundTrip(t *testing.T) {
	hex := "0x970e8128ab834e8eac17ab8e3812f010678cf791"
	a := HexToAddress(hex)
	assert.Equal(t, hex, a.Hex())

	var back Address
	require.NoError(t, back.UnmarshalText([]byte(hex)))
	assert.Equal(t, a, back)

	assert.Error(t, back.UnmarshalText([]byte("0x1234")))
	assert.Error(t, back.UnmarshalText([]byte("970e8128ab834e8eac17ab8e3812f010678cf791")))
}

func TestAddressJSON(t *testing.T) {
	a := HexToAddress("0x1234567890abcdef1234567890abcdef12345678")
	out, err := json.Marshal(a)
	require.NoError(t, err)
	assert.Equal(t, `"0x1234567890abcdef1234567890abcdef12345678"`, string(out))

	var back Address
	require.NoError(t, json.Unmarshal(out, &back))
	assert.Equal(t, a, back)
}
