/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package hrac derives the identifier that binds a policy to its publisher, its recipient and its label.
package hrac

import (
	"encoding/hex"
	"fmt"

	"github.com/btcsuite/btcutil/base58"

	"github.com/trustbloc/prenet/pkg/crypto"
)

// Size is the length of an HRAC in bytes.
const Size = 16

const (
	// ErrInvalidLength is returned when decoding bytes of the wrong size.
	ErrInvalidLength = hracError("HRAC must be exactly 16 bytes")
	// ErrNotBase58Encoded is returned when the text form of an HRAC isn't base58.
	ErrNotBase58Encoded = hracError("HRAC text must be a base58-encoded value")
)

type hracError string

func (e hracError) Error() string { return string(e) }

// HRAC is a policy identifier: the first 16 bytes of keccak256(publisher_vk || recipient_vk || label).
// It is comparable and can be used directly as a map key.
type HRAC [Size]byte

// Derive computes the HRAC for a publisher, a recipient and a label.
func Derive(publisherVerifyingKey, recipientVerifyingKey crypto.PublicKey, label []byte) HRAC {
	var h HRAC

	copy(h[:], crypto.Keccak256(publisherVerifyingKey.Bytes(), recipientVerifyingKey.Bytes(), label)[:Size])

	return h
}

// FromBytes decodes an HRAC, rejecting any length other than Size.
func FromBytes(b []byte) (HRAC, error) {
	var h HRAC

	if len(b) != Size {
		return h, fmt.Errorf("%w: got %d", ErrInvalidLength, len(b))
	}

	copy(h[:], b)

	return h, nil
}

// FromBase58 decodes the base58 text form of an HRAC.
func FromBase58(s string) (HRAC, error) {
	decoded := base58.Decode(s)
	if len(decoded) == 0 {
		return HRAC{}, ErrNotBase58Encoded
	}

	return FromBytes(decoded)
}

// Bytes returns a copy of the HRAC bytes.
func (h HRAC) Bytes() []byte {
	b := make([]byte, Size)
	copy(b, h[:])

	return b
}

// Base58 returns the base58 text form used in storage keys and REST responses.
func (h HRAC) Base58() string {
	return base58.Encode(h[:])
}

func (h HRAC) String() string {
	return hex.EncodeToString(h[:])
}
