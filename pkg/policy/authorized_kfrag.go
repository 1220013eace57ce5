/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package policy

import (
	"bytes"
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	"github.com/trustbloc/prenet/pkg/crypto"
	"github.com/trustbloc/prenet/pkg/hrac"
	"github.com/trustbloc/prenet/pkg/umbral"
)

const (
	kfragChecksumSize = 32

	// AuthorizedKeyFragSize is the serialized size of an AuthorizedKeyFrag.
	AuthorizedKeyFragSize = hrac.Size + kfragChecksumSize + crypto.SignatureSize + umbral.KeyFragSize

	// EncryptedSize is the serialized size of a MessageKit carrying an AuthorizedKeyFrag to a node.
	EncryptedSize = crypto.PublicKeySize + crypto.EncryptionOverhead + crypto.SignatureSize + AuthorizedKeyFragSize
)

// AuthorizedKeyFrag is a key fragment together with the publisher's writ authorizing one node to use it
// for one policy.
//
// Layout: hrac(16) || kfrag_checksum(32) || writ_signature(64) || kfrag.
type AuthorizedKeyFrag struct {
	HRAC           hrac.HRAC
	KFragChecksum  []byte
	WritSignature  crypto.Signature
	KFrag          *umbral.KeyFrag
	serializedFrag []byte
}

// writ is hrac || node canonical address || kfrag checksum.
func writ(h hrac.HRAC, nodeAddress common.Address, checksum []byte) []byte {
	w := make([]byte, 0, hrac.Size+crypto.CanonicalAddressSize+kfragChecksumSize)
	w = append(w, h[:]...)
	w = append(w, nodeAddress.Bytes()...)

	return append(w, checksum...)
}

// ConstructAuthorizedKeyFrag has the publisher authorize kfrag for the node at nodeAddress under h.
func ConstructAuthorizedKeyFrag(h hrac.HRAC, nodeAddress string, kfrag *umbral.VerifiedKeyFrag,
	publisher *crypto.Signer) (*AuthorizedKeyFrag, error) {
	canonical, err := crypto.ToCanonicalAddress(nodeAddress)
	if err != nil {
		return nil, err
	}

	serialized := kfrag.Bytes()
	checksum := crypto.Keccak256(serialized)

	sig, err := publisher.Sign(writ(h, canonical, checksum))
	if err != nil {
		return nil, fmt.Errorf("sign writ: %w", err)
	}

	return &AuthorizedKeyFrag{
		HRAC:           h,
		KFragChecksum:  checksum,
		WritSignature:  sig,
		KFrag:          kfrag.KeyFrag(),
		serializedFrag: serialized,
	}, nil
}

// AuthorizedKeyFragFromBytes decodes an authorization payload.
func AuthorizedKeyFragFromBytes(b []byte) (*AuthorizedKeyFrag, error) {
	if len(b) != AuthorizedKeyFragSize {
		return nil, fmt.Errorf("%w: expected %d bytes, got %d", ErrMalformedAuthorizedKeyFrag,
			AuthorizedKeyFragSize, len(b))
	}

	offset := 0
	next := func(n int) []byte {
		field := b[offset : offset+n]
		offset += n

		return field
	}

	h, err := hrac.FromBytes(next(hrac.Size))
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrMalformedAuthorizedKeyFrag, err)
	}

	checksum := append([]byte(nil), next(kfragChecksumSize)...)

	sig, err := crypto.SignatureFromBytes(next(crypto.SignatureSize))
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrMalformedAuthorizedKeyFrag, err)
	}

	serialized := append([]byte(nil), next(umbral.KeyFragSize)...)

	kfrag, err := umbral.KeyFragFromBytes(serialized)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrMalformedAuthorizedKeyFrag, err)
	}

	return &AuthorizedKeyFrag{
		HRAC:           h,
		KFragChecksum:  checksum,
		WritSignature:  sig,
		KFrag:          kfrag,
		serializedFrag: serialized,
	}, nil
}

// Bytes serializes the authorization payload.
func (a *AuthorizedKeyFrag) Bytes() []byte {
	out := make([]byte, 0, AuthorizedKeyFragSize)
	out = append(out, a.HRAC[:]...)
	out = append(out, a.KFragChecksum...)
	out = append(out, a.WritSignature[:]...)

	return append(out, a.serializedFrag...)
}

// VerifyWrit checks that the publisher authorized exactly this fragment for the node at nodeAddress.
func (a *AuthorizedKeyFrag) VerifyWrit(publisher crypto.PublicKey, nodeAddress string) error {
	canonical, err := crypto.ToCanonicalAddress(nodeAddress)
	if err != nil {
		return err
	}

	if !bytes.Equal(a.KFragChecksum, crypto.Keccak256(a.serializedFrag)) {
		return fmt.Errorf("%w: key fragment checksum mismatch", ErrUnauthorized)
	}

	if err := a.WritSignature.Verify(writ(a.HRAC, canonical, a.KFragChecksum), publisher); err != nil {
		return fmt.Errorf("%w: writ: %s", ErrUnauthorized, err)
	}

	return nil
}

// ParseEncryptedKeyFrag decodes the MessageKit that carries an AuthorizedKeyFrag to a node.
// Any length other than EncryptedSize is rejected.
func ParseEncryptedKeyFrag(b []byte) (*crypto.MessageKit, error) {
	if len(b) != EncryptedSize {
		return nil, fmt.Errorf("%w: encrypted key fragment must be %d bytes, got %d",
			ErrMalformedAuthorizedKeyFrag, EncryptedSize, len(b))
	}

	kit, err := crypto.MessageKitFromBytes(b)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrMalformedAuthorizedKeyFrag, err)
	}

	return kit, nil
}

// EncryptKeyFrag encrypts an authorization payload to a node, signed by the publisher.
func EncryptKeyFrag(akf *AuthorizedKeyFrag, nodeEncryptingKey crypto.PublicKey,
	publisher *crypto.Signer) (*crypto.MessageKit, error) {
	return crypto.EncryptAndSign(nodeEncryptingKey, akf.Bytes(), publisher)
}
