/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package umbral implements threshold proxy re-encryption on the network group.
//
// A data key is encapsulated to a delegating public key A as a capsule E = rG with key material rA.
// The delegator splits a re-encryption key into shares of a polynomial whose constant term is a/d,
// where d binds an ephemeral precursor X to the receiving key B. Each proxy turns the capsule into a
// capsule fragment rk_i E; any threshold of fragments interpolate to (a/d) E, which the receiver
// scales by d = H(X, B, bX) to recover rA.
package umbral

import (
	"crypto/rand"
	"crypto/sha256"
	"fmt"

	"go.dedis.ch/kyber/v3"
	"golang.org/x/crypto/chacha20poly1305"

	"github.com/trustbloc/prenet/pkg/crypto"
)

// CapsuleSize is the serialized size of a Capsule.
const CapsuleSize = crypto.PublicKeySize

// Capsule carries the encapsulated data key of a ciphertext.
type Capsule struct {
	point kyber.Point
}

// CapsuleFromBytes parses a serialized capsule.
func CapsuleFromBytes(b []byte) (*Capsule, error) {
	if len(b) != CapsuleSize {
		return nil, fmt.Errorf("%w: capsule must be %d bytes, got %d", ErrMalformed, CapsuleSize, len(b))
	}

	p := crypto.Suite.Point()

	if err := p.UnmarshalBinary(b); err != nil {
		return nil, fmt.Errorf("%w: capsule: %s", ErrMalformed, err)
	}

	return &Capsule{point: p}, nil
}

// Bytes serializes the capsule.
func (c *Capsule) Bytes() []byte {
	return marshal(c.point)
}

// Equal reports whether both capsules encapsulate the same key.
func (c *Capsule) Equal(other *Capsule) bool {
	return other != nil && c.point.Equal(other.point)
}

// Encrypt encrypts plaintext under the delegating public key.
func Encrypt(delegating crypto.PublicKey, plaintext []byte) (*Capsule, []byte, error) {
	r := crypto.Suite.Scalar().Pick(crypto.Suite.RandomStream())

	capsule := &Capsule{point: crypto.Suite.Point().Mul(r, nil)}
	shared := crypto.Suite.Point().Mul(r, delegating.Point())

	ciphertext, err := seal(shared, capsule, plaintext)
	if err != nil {
		return nil, nil, err
	}

	return capsule, ciphertext, nil
}

// DecryptOriginal opens a ciphertext with the delegating secret key, without any re-encryption.
func DecryptOriginal(delegating crypto.SecretKey, capsule *Capsule, ciphertext []byte) ([]byte, error) {
	shared := crypto.Suite.Point().Mul(delegating.Scalar(), capsule.point)

	return open(shared, capsule, ciphertext)
}

func dataKey(shared kyber.Point) []byte {
	sum := sha256.Sum256(marshal(shared))

	return sum[:]
}

// seal produces nonce || chacha20poly1305(plaintext) with the capsule bound as associated data.
func seal(shared kyber.Point, capsule *Capsule, plaintext []byte) ([]byte, error) {
	aead, err := chacha20poly1305.New(dataKey(shared))
	if err != nil {
		return nil, fmt.Errorf("create cipher: %w", err)
	}

	nonce := make([]byte, aead.NonceSize(), aead.NonceSize()+len(plaintext)+aead.Overhead())

	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("generate nonce: %w", err)
	}

	return aead.Seal(nonce, nonce, plaintext, capsule.Bytes()), nil
}

func open(shared kyber.Point, capsule *Capsule, ciphertext []byte) ([]byte, error) {
	aead, err := chacha20poly1305.New(dataKey(shared))
	if err != nil {
		return nil, fmt.Errorf("create cipher: %w", err)
	}

	if len(ciphertext) < aead.NonceSize()+aead.Overhead() {
		return nil, fmt.Errorf("%w: ciphertext too short", ErrDecryptionFailed)
	}

	plaintext, err := aead.Open(nil, ciphertext[:aead.NonceSize()], ciphertext[aead.NonceSize():], capsule.Bytes())
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrDecryptionFailed, err)
	}

	return plaintext, nil
}

type binaryMarshaler interface {
	MarshalBinary() ([]byte, error)
}

func marshal(m binaryMarshaler) []byte {
	b, err := m.MarshalBinary()
	if err != nil {
		panic(fmt.Sprintf("marshal group element: %s", err))
	}

	return b
}
