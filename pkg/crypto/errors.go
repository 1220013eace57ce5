/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package crypto

const (
	// ErrMalformedKey is returned when key bytes don't decode to a group element.
	ErrMalformedKey = cryptoError("malformed key")
	// ErrMalformedSignature is returned when signature bytes have the wrong length.
	ErrMalformedSignature = cryptoError("malformed signature")
	// ErrInvalidSignature is returned when a signature doesn't verify against the expected key.
	ErrInvalidSignature = cryptoError("invalid signature")
	// ErrDecryptionFailed is returned when a ciphertext can't be opened with the given key.
	ErrDecryptionFailed = cryptoError("decryption failed")
	// ErrMalformedMessageKit is returned when message kit bytes are too short to be one.
	ErrMalformedMessageKit = cryptoError("malformed message kit")
	// ErrInvalidAddress is returned when a string is not a 20-byte hex address.
	ErrInvalidAddress = cryptoError("invalid checksum address")
)

type cryptoError string

// Error returns the associated error message.
// This satisfies the built-in error interface.
func (e cryptoError) Error() string { return string(e) }
