/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package characters holds the parties of the protocol that aren't nodes: Alice grants and revokes
// access to data encrypted under her policy keys, Bob retrieves and decrypts it, and Enrico encrypts it.
package characters

import (
	"github.com/trustbloc/edge-core/pkg/log"

	"github.com/trustbloc/prenet/pkg/crypto"
)

var logger = log.New("prenet/characters")

const (
	// ErrMissingExpiration is returned when a grant doesn't say when the policy ends.
	ErrMissingExpiration = characterError("policy expiration must be specified")
	// ErrExpirationInPast is returned when a grant's expiration isn't in the future.
	ErrExpirationInPast = characterError("policy expiration must be in the future")
	// ErrPolicyExists is returned when a policy for the same recipient and label is already active.
	ErrPolicyExists = characterError("policy already exists in active policies")
	// ErrUnknownPolicy is returned when no active policy matches a label and recipient.
	ErrUnknownPolicy = characterError("no active policy for label and recipient")
	// ErrUnknownNode is returned when a policy names a node the character doesn't know.
	ErrUnknownNode = characterError("unknown node")
)

type characterError string

func (e characterError) Error() string { return string(e) }

// PublicKeys is what other parties need to know about a character.
type PublicKeys struct {
	VerifyingKey  crypto.PublicKey
	EncryptingKey crypto.PublicKey
}

type keyring struct {
	root      []byte
	signer    *crypto.Signer
	decrypter *crypto.Decrypter
}

// newKeyring derives every key of a character from seed. A nil seed yields random keys.
func newKeyring(seed []byte) *keyring {
	if seed == nil {
		seed = crypto.GenerateSecretKey().Bytes()
	}

	root := crypto.Keccak256(seed)

	return &keyring{
		root:      root,
		signer:    crypto.NewSigner(crypto.SecretKeyFromSeed(crypto.Keccak256([]byte("signing"), root))),
		decrypter: crypto.NewDecrypter(crypto.SecretKeyFromSeed(crypto.Keccak256([]byte("decrypting"), root))),
	}
}

func (k *keyring) delegatingKey(label []byte) crypto.SecretKey {
	return crypto.SecretKeyFromSeed(crypto.Keccak256([]byte("delegating"), k.root, label))
}

func (k *keyring) publicKeys() PublicKeys {
	return PublicKeys{VerifyingKey: k.signer.VerifyingKey(), EncryptingKey: k.decrypter.EncryptingKey()}
}
