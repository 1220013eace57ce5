/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package characters

import (
	"github.com/trustbloc/prenet/pkg/crypto"
)

// Enrico is a data source encrypting under a policy encrypting key.
type Enrico struct {
	policyKey crypto.PublicKey
	signer    *crypto.Signer
}

// NewEnrico returns a data source for policyKey. A nil signer gets a fresh random one.
func NewEnrico(policyKey crypto.PublicKey, signer *crypto.Signer) *Enrico {
	if signer == nil {
		signer = crypto.NewSigner(crypto.GenerateSecretKey())
	}

	return &Enrico{policyKey: policyKey, signer: signer}
}

// EnricoFromAlice returns a data source signing as alice and encrypting under her key for label.
func EnricoFromAlice(alice *Alice, label []byte) *Enrico {
	return NewEnrico(alice.GetPolicyEncryptingKeyFromLabel(label), alice.keys.signer)
}

// PolicyEncryptingKey returns the key Enrico encrypts to.
func (e *Enrico) PolicyEncryptingKey() crypto.PublicKey {
	return e.policyKey
}

// VerifyingKey returns the key Enrico's messages are signed with.
func (e *Enrico) VerifyingKey() crypto.PublicKey {
	return e.signer.VerifyingKey()
}

// EncryptMessage signs plaintext and encrypts it under the policy key.
func (e *Enrico) EncryptMessage(plaintext []byte) (*MessageKit, error) {
	return sealMessage(e.policyKey, plaintext, e.signer)
}
