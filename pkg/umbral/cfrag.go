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

// CapsuleFragSize is the serialized size of a CapsuleFrag: id || e1 || precursor.
const CapsuleFragSize = idSize + pointSize + pointSize

// CapsuleFrag is a capsule partially re-encrypted by one key fragment.
type CapsuleFrag struct {
	ID        uint32
	e1        kyber.Point
	precursor kyber.Point
}

// CapsuleFragFromBytes parses a serialized capsule fragment.
func CapsuleFragFromBytes(b []byte) (*CapsuleFrag, error) {
	if len(b) != CapsuleFragSize {
		return nil, fmt.Errorf("%w: capsule fragment must be %d bytes, got %d", ErrMalformed, CapsuleFragSize, len(b))
	}

	e1 := crypto.Suite.Point()
	if err := e1.UnmarshalBinary(b[idSize : idSize+pointSize]); err != nil {
		return nil, fmt.Errorf("%w: capsule fragment: %s", ErrMalformed, err)
	}

	precursor := crypto.Suite.Point()
	if err := precursor.UnmarshalBinary(b[idSize+pointSize:]); err != nil {
		return nil, fmt.Errorf("%w: capsule fragment precursor: %s", ErrMalformed, err)
	}

	return &CapsuleFrag{ID: binary.BigEndian.Uint32(b[:idSize]), e1: e1, precursor: precursor}, nil
}

// Bytes serializes the capsule fragment.
func (c *CapsuleFrag) Bytes() []byte {
	out := make([]byte, idSize, CapsuleFragSize)
	binary.BigEndian.PutUint32(out, c.ID)
	out = append(out, marshal(c.e1)...)

	return append(out, marshal(c.precursor)...)
}

// Reencrypt applies one verified key fragment to a capsule.
func Reencrypt(capsule *Capsule, kfrag *VerifiedKeyFrag) *CapsuleFrag {
	k := kfrag.KeyFrag()

	return &CapsuleFrag{
		ID:        k.ID,
		e1:        crypto.Suite.Point().Mul(k.key, capsule.point),
		precursor: k.precursor,
	}
}

// DecryptReencrypted combines capsule fragments into the data key and opens ciphertext.
// All fragments must come from the same key split; at least the split's threshold of distinct
// fragments is needed, otherwise the recovered key is wrong and ErrDecryptionFailed is returned.
func DecryptReencrypted(receiving crypto.SecretKey, capsule *Capsule, cfrags []*CapsuleFrag,
	ciphertext []byte) ([]byte, error) {
	if len(cfrags) == 0 {
		return nil, ErrNoFragments
	}

	precursor := cfrags[0].precursor
	seen := make(map[uint32]struct{}, len(cfrags))
	shares := make([]*share.PubShare, 0, len(cfrags))

	for _, cf := range cfrags {
		if !cf.precursor.Equal(precursor) {
			return nil, ErrMismatchedFragments
		}

		if _, dup := seen[cf.ID]; dup {
			continue
		}

		seen[cf.ID] = struct{}{}
		shares = append(shares, &share.PubShare{I: int(cf.ID), V: cf.e1})
	}

	// ids come off the wire; n only sizes a buffer, so it is bounded by the share count
	combined, err := share.RecoverCommit(crypto.Suite, shares, len(shares), len(shares))
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrDecryptionFailed, err)
	}

	receivingPoint := crypto.Suite.Point().Mul(receiving.Scalar(), nil)
	dh := crypto.Suite.Point().Mul(receiving.Scalar(), precursor)
	d := bindingScalar(precursor, receivingPoint, dh)

	return open(crypto.Suite.Point().Mul(d, combined), capsule, ciphertext)
}
