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
	"errors"
	"fmt"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	decred_ecdsa "github.com/decred/dcrd/dcrec/secp256k1/v4/ecdsa"
)

var (
	// ErrInvalidSignature is returned for a signature that is not 64
	// bytes of r‖s followed by a 0/1 recovery id.
	ErrInvalidSignature = errors.New("invalid signature")

	// ErrRecoverFailed is returned when no valid public key can be
	// recovered from a well-formed signature.
	ErrRecoverFailed = errors.New("signature recovery failed")
)

// Ecrecover returns the uncompressed public key that created the given
// signature. The signature must be in [R || S || V] format with the
// recovery id V as 0 or 1 in the final byte.
func Ecrecover(hash, sig []byte) ([]byte, error) {
	pub, err := sigToPub(hash, sig)
	if err != nil {
		return nil, err
	}
	bytes := pub.SerializeUncompressed()
	if len(bytes) != 65 {
		return nil, fmt.Errorf("%w: bad serialized key length %d", ErrRecoverFailed, len(bytes))
	}
	return bytes, nil
}

// SigToPub returns the public key that created the given signature.
func SigToPub(hash, sig []byte) (*secp256k1.PublicKey, error) {
	return sigToPub(hash, sig)
}

func sigToPub(hash, sig []byte) (*secp256k1.PublicKey, error) {
	if len(sig) != SignatureLength {
		return nil, ErrInvalidSignature
	}
	if v := sig[RecoveryIDOffset]; v != 0 && v != 1 {
		return nil, ErrInvalidSignature
	}
	// Convert to the compact format with the recovery id at the
	// beginning, offset by 27 as RecoverCompact expects.
	btcsig := make([]byte, SignatureLength)
	btcsig[0] = sig[RecoveryIDOffset] + 27
	copy(btcsig[1:], sig)

	pub, _, err := decred_ecdsa.RecoverCompact(btcsig, hash)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRecoverFailed, err)
	}
	return pub, nil
}

// Sign calculates a recoverable ECDSA signature over the given digest.
//
// This function is susceptible to chosen plaintext attacks that can leak
// information about the private key that is used for signing. Callers
// must hash any input before signing it.
//
// The produced signature is in the [R || S || V] format where V is 0 or 1.
func Sign(hash []byte, prv *secp256k1.PrivateKey) ([]byte, error) {
	if len(hash) != DigestLength {
		return nil, fmt.Errorf("hash is required to be exactly %d bytes (%d)", DigestLength, len(hash))
	}
	if prv.Key.IsZero() {
		return nil, errors.New("invalid private key")
	}
	sig := decred_ecdsa.SignCompact(prv, hash, false) // ref uncompressed pubkey
	// Convert to Ethereum signature format with 'recovery id' v at the end.
	v := sig[0] - 27
	copy(sig, sig[1:])
	sig[RecoveryIDOffset] = v
	return sig, nil
}

// GenerateKey generates a new secp256k1 private key.
func GenerateKey() (*secp256k1.PrivateKey, error) {
	return secp256k1.GeneratePrivateKey()
}
