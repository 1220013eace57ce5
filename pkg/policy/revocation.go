/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package policy

import (
	"bytes"
	"fmt"

	"github.com/trustbloc/prenet/pkg/crypto"
)

// RevocationPrefix marks revocation payloads.
const RevocationPrefix = "REVOKE-"

// RevocationSize is the serialized size of a Revocation.
const RevocationSize = len(RevocationPrefix) + crypto.CanonicalAddressSize + EncryptedSize + crypto.SignatureSize

// Revocation asks one node to stop serving the key fragment it holds for a policy.
//
// Layout: "REVOKE-"(7) || canonical_address(20) || encrypted_kfrag || signature(64).
type Revocation struct {
	// NodeAddress is the checksum address of the node being asked to revoke.
	NodeAddress    string
	EncryptedKFrag *crypto.MessageKit
	Signature      crypto.Signature

	canonical []byte
}

// NewRevocation builds a revocation for the node at nodeAddress. Exactly one of signer and signature
// must be given: a signer signs the payload, a signature is attached as is.
func NewRevocation(nodeAddress string, encryptedKFrag *crypto.MessageKit, signer *crypto.Signer,
	signature *crypto.Signature) (*Revocation, error) {
	if (signer == nil) == (signature == nil) {
		return nil, ErrSignerXorSignature
	}

	if encryptedKFrag == nil {
		return nil, ErrMissingEncryptedKFrag
	}

	canonical, err := crypto.ToCanonicalAddress(nodeAddress)
	if err != nil {
		return nil, err
	}

	r := &Revocation{
		NodeAddress:    canonical.Hex(),
		EncryptedKFrag: encryptedKFrag,
		canonical:      canonical.Bytes(),
	}

	if signature != nil {
		r.Signature = *signature

		return r, nil
	}

	sig, err := signer.Sign(r.Payload())
	if err != nil {
		return nil, fmt.Errorf("sign revocation: %w", err)
	}

	r.Signature = sig

	return r, nil
}

// Payload is the signed part of the revocation: prefix || canonical address || encrypted kfrag.
func (r *Revocation) Payload() []byte {
	kfrag := r.EncryptedKFrag.Bytes()

	out := make([]byte, 0, len(RevocationPrefix)+len(r.canonical)+len(kfrag))
	out = append(out, RevocationPrefix...)
	out = append(out, r.canonical...)

	return append(out, kfrag...)
}

// Bytes serializes the revocation.
func (r *Revocation) Bytes() []byte {
	return append(r.Payload(), r.Signature[:]...)
}

// Equal reports whether both revocations serialize identically.
func (r *Revocation) Equal(other *Revocation) bool {
	return other != nil && bytes.Equal(r.Bytes(), other.Bytes())
}

// VerifySignature checks the revocation signature against the policy owner's verifying key.
func (r *Revocation) VerifySignature(ownerVerifyingKey crypto.PublicKey) error {
	return r.Signature.Verify(r.Payload(), ownerVerifyingKey)
}

// RevocationFromBytes decodes a revocation.
func RevocationFromBytes(b []byte) (*Revocation, error) {
	if len(b) != RevocationSize {
		return nil, fmt.Errorf("%w: expected %d bytes, got %d", ErrMalformedRevocation, RevocationSize, len(b))
	}

	prefixEnd := len(RevocationPrefix)
	addressEnd := prefixEnd + crypto.CanonicalAddressSize
	kfragEnd := addressEnd + EncryptedSize

	if string(b[:prefixEnd]) != RevocationPrefix {
		return nil, fmt.Errorf("%w: missing %q prefix", ErrMalformedRevocation, RevocationPrefix)
	}

	address, err := crypto.ToChecksumAddress(b[prefixEnd:addressEnd])
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrMalformedRevocation, err)
	}

	kit, err := ParseEncryptedKeyFrag(b[addressEnd:kfragEnd])
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrMalformedRevocation, err)
	}

	sig, err := crypto.SignatureFromBytes(b[kfragEnd:])
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrMalformedRevocation, err)
	}

	return NewRevocation(address, kit, nil, &sig)
}
