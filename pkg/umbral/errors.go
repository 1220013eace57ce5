/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package umbral

const (
	// ErrMalformed is returned when capsule or fragment bytes can't be decoded.
	ErrMalformed = umbralError("malformed umbral object")
	// ErrKeyFragVerification is returned when a key fragment isn't signed by the expected author.
	ErrKeyFragVerification = umbralError("key fragment verification failed")
	// ErrInvalidThreshold is returned when threshold and shares don't describe a valid split.
	ErrInvalidThreshold = umbralError("threshold must be between 1 and the number of shares")
	// ErrMismatchedFragments is returned when capsule fragments come from different key splits.
	ErrMismatchedFragments = umbralError("capsule fragments were produced by different key fragment sets")
	// ErrNoFragments is returned when decryption is attempted without capsule fragments.
	ErrNoFragments = umbralError("no capsule fragments")
	// ErrDecryptionFailed is returned when the recovered key doesn't open the ciphertext.
	ErrDecryptionFailed = umbralError("decryption failed")
)

type umbralError string

// Error returns the associated error message.
// This satisfies the built-in error interface.
func (e umbralError) Error() string { return string(e) }
