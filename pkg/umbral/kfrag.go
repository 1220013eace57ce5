/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package umbral

import (
	"encoding/binary"
	"fmt"

	"go.dedis.ch/kyber/v3"
	"go.dedis.ch/kyber/v3/share"

	"github.com/trustbloc/prenet/pkg/crypto"
)

const (
	idSize     = 4
	scalarSize = 32
	pointSize  = crypto.PublicKeySize

	// KeyFragSize is the serialized size of a KeyFrag: id || key || precursor || signature.
	KeyFragSize = idSize + scalarSize + pointSize + crypto.SignatureSize
)

// KeyFrag is one share of a re-encryption key, signed by the delegator.
type KeyFrag struct {
	ID        uint32
	key       kyber.Scalar
	precursor kyber.Point
	signature crypto.Signature
}

// KeyFragFromBytes parses a serialized key fragment. The result is unverified.
func KeyFragFromBytes(b []byte) (*KeyFrag, error) {
	if len(b) != KeyFragSize {
		return nil, fmt.Errorf("%w: key fragment must be %d bytes, got %d", ErrMalformed, KeyFragSize, len(b))
	}

	key := crypto.Suite.Scalar()
	if err := key.UnmarshalBinary(b[idSize : idSize+scalarSize]); err != nil {
		return nil, fmt.Errorf("%w: key fragment key: %s", ErrMalformed, err)
	}

	precursor := crypto.Suite.Point()
	if err := precursor.UnmarshalBinary(b[idSize+scalarSize : idSize+scalarSize+pointSize]); err != nil {
		return nil, fmt.Errorf("%w: key fragment precursor: %s", ErrMalformed, err)
	}

	sig, err := crypto.SignatureFromBytes(b[idSize+scalarSize+pointSize:])
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrMalformed, err)
	}

	return &KeyFrag{
		ID:        binary.BigEndian.Uint32(b[:idSize]),
		key:       key,
		precursor: precursor,
		signature: sig,
	}, nil
}

// Bytes serializes the key fragment.
func (k *KeyFrag) Bytes() []byte {
	out := make([]byte, idSize, KeyFragSize)
	binary.BigEndian.PutUint32(out, k.ID)
	out = append(out, marshal(k.key)...)
	out = append(out, marshal(k.precursor)...)

	return append(out, k.signature[:]...)
}

// Verify checks that the fragment was signed by author.
func (k *KeyFrag) Verify(author crypto.PublicKey) (*VerifiedKeyFrag, error) {
	commitment := crypto.Suite.Point().Mul(k.key, nil)

	if err := k.signature.Verify(kfragMessage(k.ID, commitment, k.precursor), author); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrKeyFragVerification, err)
	}

	return &VerifiedKeyFrag{kfrag: k}, nil
}

// VerifiedKeyFrag is a key fragment whose author signature has been checked.
type VerifiedKeyFrag struct {
	kfrag *KeyFrag
}

// KeyFrag returns the underlying fragment.
func (v *VerifiedKeyFrag) KeyFrag() *KeyFrag {
	return v.kfrag
}

// Bytes serializes the underlying fragment.
func (v *VerifiedKeyFrag) Bytes() []byte {
	return v.kfrag.Bytes()
}

// GenerateKFrags splits the re-encryption key from delegating to receiving into shares fragments,
// any threshold of which suffice to re-encrypt. Every fragment is signed by signer.
func GenerateKFrags(delegating crypto.SecretKey, receiving crypto.PublicKey, signer *crypto.Signer,
	threshold, shares int) ([]*VerifiedKeyFrag, error) {
	if threshold < 1 || threshold > shares {
		return nil, fmt.Errorf("%w: threshold %d, shares %d", ErrInvalidThreshold, threshold, shares)
	}

	x := crypto.Suite.Scalar().Pick(crypto.Suite.RandomStream())
	precursor := crypto.Suite.Point().Mul(x, nil)
	dh := crypto.Suite.Point().Mul(x, receiving.Point())

	d := bindingScalar(precursor, receiving.Point(), dh)
	secret := crypto.Suite.Scalar().Div(delegating.Scalar(), d)

	poly := share.NewPriPoly(crypto.Suite, threshold, secret, crypto.Suite.RandomStream())

	kfrags := make([]*VerifiedKeyFrag, 0, shares)

	for _, s := range poly.Shares(shares) {
		id := uint32(s.I)
		commitment := crypto.Suite.Point().Mul(s.V, nil)

		sig, err := signer.Sign(kfragMessage(id, commitment, precursor))
		if err != nil {
			return nil, err
		}

		kfrags = append(kfrags, &VerifiedKeyFrag{kfrag: &KeyFrag{
			ID:        id,
			key:       s.V,
			precursor: precursor,
			signature: sig,
		}})
	}

	return kfrags, nil
}

func kfragMessage(id uint32, commitment, precursor kyber.Point) []byte {
	msg := make([]byte, idSize, idSize+2*pointSize)
	binary.BigEndian.PutUint32(msg, id)
	msg = append(msg, marshal(commitment)...)

	return append(msg, marshal(precursor)...)
}

// bindingScalar is d = H(X || B || dh), shared by the delegator (dh = xB) and the receiver (dh = bX).
func bindingScalar(precursor, receiving, dh kyber.Point) kyber.Scalar {
	h := crypto.Suite.Hash()
	_, _ = h.Write(marshal(precursor))
	_, _ = h.Write(marshal(receiving))
	_, _ = h.Write(marshal(dh))

	return crypto.Suite.Scalar().SetBytes(h.Sum(nil))
}
