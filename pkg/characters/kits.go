/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package characters

import (
	"fmt"

	"github.com/trustbloc/prenet/pkg/crypto"
	"github.com/trustbloc/prenet/pkg/umbral"
)

// ErrMalformedMessageKit is returned when policy message kit bytes can't be decoded.
const ErrMalformedMessageKit = characterError("malformed policy message kit")

const minMessageKitSize = crypto.PublicKeySize + umbral.CapsuleSize

// MessageKit is data encrypted under a policy encrypting key. The plaintext is signed by the data source
// and the signature is sealed together with it.
//
// Layout: sender_verifying_key(32) || capsule(32) || ciphertext.
type MessageKit struct {
	SenderVerifyingKey crypto.PublicKey
	Capsule            *umbral.Capsule
	Ciphertext         []byte
}

// Bytes serializes the kit.
func (m *MessageKit) Bytes() []byte {
	out := make([]byte, 0, minMessageKitSize+len(m.Ciphertext))
	out = append(out, m.SenderVerifyingKey.Bytes()...)
	out = append(out, m.Capsule.Bytes()...)

	return append(out, m.Ciphertext...)
}

// MessageKitFromBytes parses a serialized kit.
func MessageKitFromBytes(b []byte) (*MessageKit, error) {
	if len(b) <= minMessageKitSize {
		return nil, fmt.Errorf("%w: %d bytes", ErrMalformedMessageKit, len(b))
	}

	sender, err := crypto.PublicKeyFromBytes(b[:crypto.PublicKeySize])
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrMalformedMessageKit, err)
	}

	capsule, err := umbral.CapsuleFromBytes(b[crypto.PublicKeySize:minMessageKitSize])
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrMalformedMessageKit, err)
	}

	ciphertext := make([]byte, len(b)-minMessageKitSize)
	copy(ciphertext, b[minMessageKitSize:])

	return &MessageKit{SenderVerifyingKey: sender, Capsule: capsule, Ciphertext: ciphertext}, nil
}

func sealMessage(policyKey crypto.PublicKey, plaintext []byte, signer *crypto.Signer) (*MessageKit, error) {
	sig, err := signer.Sign(plaintext)
	if err != nil {
		return nil, err
	}

	sealed := make([]byte, 0, crypto.SignatureSize+len(plaintext))
	sealed = append(sealed, sig.Bytes()...)
	sealed = append(sealed, plaintext...)

	capsule, ciphertext, err := umbral.Encrypt(policyKey, sealed)
	if err != nil {
		return nil, err
	}

	return &MessageKit{SenderVerifyingKey: signer.VerifyingKey(), Capsule: capsule, Ciphertext: ciphertext}, nil
}

// openMessage checks the data source's signature over an opened kit and strips it.
func openMessage(kit *MessageKit, sealed []byte) ([]byte, error) {
	if len(sealed) < crypto.SignatureSize {
		return nil, fmt.Errorf("%w: sealed payload is %d bytes", ErrMalformedMessageKit, len(sealed))
	}

	sig, err := crypto.SignatureFromBytes(sealed[:crypto.SignatureSize])
	if err != nil {
		return nil, err
	}

	plaintext := sealed[crypto.SignatureSize:]

	if err := sig.Verify(plaintext, kit.SenderVerifyingKey); err != nil {
		return nil, err
	}

	return plaintext, nil
}
