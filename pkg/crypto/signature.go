/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package crypto

import (
	"encoding/hex"
	"fmt"

	"go.dedis.ch/kyber/v3/sign/schnorr"
)

// SignatureSize is the serialized size of a Signature.
const SignatureSize = 64

// Signature is a Schnorr signature over the network group.
type Signature [SignatureSize]byte

// SignatureFromBytes parses a serialized signature.
func SignatureFromBytes(b []byte) (Signature, error) {
	var sig Signature

	if len(b) != SignatureSize {
		return sig, fmt.Errorf("%w: expected %d bytes, got %d", ErrMalformedSignature, SignatureSize, len(b))
	}

	copy(sig[:], b)

	return sig, nil
}

// Bytes returns a copy of the signature bytes.
func (s Signature) Bytes() []byte {
	b := make([]byte, SignatureSize)
	copy(b, s[:])

	return b
}

func (s Signature) String() string {
	return hex.EncodeToString(s[:])
}

// Verify checks s over message against the verifying key.
func (s Signature) Verify(message []byte, verifyingKey PublicKey) error {
	if verifyingKey.IsZero() {
		return fmt.Errorf("%w: no verifying key", ErrInvalidSignature)
	}

	if err := schnorr.Verify(Suite, verifyingKey.Point(), message, s[:]); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidSignature, err)
	}

	return nil
}

// Signer signs messages on behalf of a character. Its public half is the character's verifying key,
// from which the character's checksum address is also derived.
type Signer struct {
	secret       SecretKey
	verifyingKey PublicKey
}

// NewSigner returns a signer for the given secret key.
func NewSigner(secret SecretKey) *Signer {
	return &Signer{secret: secret, verifyingKey: secret.PublicKey()}
}

// VerifyingKey returns the public key signatures made by s verify against.
func (s *Signer) VerifyingKey() PublicKey {
	return s.verifyingKey
}

// Sign signs message.
func (s *Signer) Sign(message []byte) (Signature, error) {
	raw, err := schnorr.Sign(Suite, s.secret.Scalar(), message)
	if err != nil {
		return Signature{}, fmt.Errorf("sign message: %w", err)
	}

	return SignatureFromBytes(raw)
}
