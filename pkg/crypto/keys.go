/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package crypto holds the key, signature and envelope primitives shared by every character of the network.
// All group operations happen on edwards25519 through kyber.
package crypto

import (
	"encoding/hex"
	"fmt"

	"go.dedis.ch/kyber/v3"
	"go.dedis.ch/kyber/v3/group/edwards25519"
)

const (
	// PublicKeySize is the serialized size of a PublicKey.
	PublicKeySize = 32
	// SecretKeySize is the serialized size of a SecretKey.
	SecretKeySize = 32
)

// Suite is the group every key in the network lives in.
var Suite = edwards25519.NewBlakeSHA256Ed25519()

// SecretKey is a scalar on the network group.
type SecretKey struct {
	scalar kyber.Scalar
}

// GenerateSecretKey returns a fresh random secret key.
func GenerateSecretKey() SecretKey {
	return SecretKey{scalar: Suite.Scalar().Pick(Suite.RandomStream())}
}

// SecretKeyFromSeed deterministically derives a secret key from seed.
func SecretKeyFromSeed(seed []byte) SecretKey {
	return SecretKey{scalar: Suite.Scalar().Pick(Suite.XOF(seed))}
}

// SecretKeyFromBytes parses a serialized secret key.
func SecretKeyFromBytes(b []byte) (SecretKey, error) {
	if len(b) != SecretKeySize {
		return SecretKey{}, fmt.Errorf("%w: secret key must be %d bytes, got %d", ErrMalformedKey, SecretKeySize, len(b))
	}

	s := Suite.Scalar()

	if err := s.UnmarshalBinary(b); err != nil {
		return SecretKey{}, fmt.Errorf("%w: %s", ErrMalformedKey, err)
	}

	return SecretKey{scalar: s}, nil
}

// Scalar exposes the underlying scalar.
func (k SecretKey) Scalar() kyber.Scalar {
	return k.scalar
}

// PublicKey returns the public key matching k.
func (k SecretKey) PublicKey() PublicKey {
	return PublicKey{point: Suite.Point().Mul(k.scalar, nil)}
}

// Bytes serializes the secret key.
func (k SecretKey) Bytes() []byte {
	return mustMarshal(k.scalar)
}

// PublicKey is a point on the network group. It is used both as a verifying key and as an encrypting key.
type PublicKey struct {
	point kyber.Point
}

// NewPublicKey wraps a group point.
func NewPublicKey(p kyber.Point) PublicKey {
	return PublicKey{point: p}
}

// PublicKeyFromBytes parses a serialized public key.
func PublicKeyFromBytes(b []byte) (PublicKey, error) {
	if len(b) != PublicKeySize {
		return PublicKey{}, fmt.Errorf("%w: public key must be %d bytes, got %d", ErrMalformedKey, PublicKeySize, len(b))
	}

	p := Suite.Point()

	if err := p.UnmarshalBinary(b); err != nil {
		return PublicKey{}, fmt.Errorf("%w: %s", ErrMalformedKey, err)
	}

	return PublicKey{point: p}, nil
}

// Point exposes the underlying group point.
func (k PublicKey) Point() kyber.Point {
	return k.point
}

// IsZero reports whether k was never set.
func (k PublicKey) IsZero() bool {
	return k.point == nil
}

// Bytes serializes the public key.
func (k PublicKey) Bytes() []byte {
	if k.point == nil {
		return make([]byte, PublicKeySize)
	}

	return mustMarshal(k.point)
}

// Equal reports whether both keys encode the same point.
func (k PublicKey) Equal(other PublicKey) bool {
	if k.point == nil || other.point == nil {
		return k.point == nil && other.point == nil
	}

	return k.point.Equal(other.point)
}

// String returns the hex form of the key.
func (k PublicKey) String() string {
	return hex.EncodeToString(k.Bytes())
}

// MarshalText implements encoding.TextMarshaler.
func (k PublicKey) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *PublicKey) UnmarshalText(text []byte) error {
	b, err := hex.DecodeString(string(text))
	if err != nil {
		return fmt.Errorf("%w: %s", ErrMalformedKey, err)
	}

	parsed, err := PublicKeyFromBytes(b)
	if err != nil {
		return err
	}

	*k = parsed

	return nil
}

type binaryMarshaler interface {
	MarshalBinary() ([]byte, error)
}

// kyber only fails to marshal uninitialized values, which this package never hands out.
func mustMarshal(m binaryMarshaler) []byte {
	b, err := m.MarshalBinary()
	if err != nil {
		panic(fmt.Sprintf("marshal group element: %s", err))
	}

	return b
}
