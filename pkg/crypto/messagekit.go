/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package crypto

import (
	"crypto/sha256"
	"fmt"

	"go.dedis.ch/kyber/v3/encrypt/ecies"
)

// EncryptionOverhead is the number of bytes ECIES adds to a plaintext: the ephemeral point and the AEAD tag.
const EncryptionOverhead = PublicKeySize + 16

// minMessageKitSize covers the sender key, the encryption overhead and the embedded signature.
const minMessageKitSize = PublicKeySize + EncryptionOverhead + SignatureSize

// MessageKit is a sign-then-encrypt envelope. The payload is signed by the sender and the signature
// together with the payload is encrypted to the recipient's encrypting key.
//
// Layout: sender_verifying_key(32) || ecies(signature(64) || payload).
type MessageKit struct {
	SenderVerifyingKey PublicKey
	Ciphertext         []byte
}

// EncryptAndSign signs plaintext with signer and encrypts signature and plaintext to recipient.
func EncryptAndSign(recipient PublicKey, plaintext []byte, signer *Signer) (*MessageKit, error) {
	sig, err := signer.Sign(plaintext)
	if err != nil {
		return nil, err
	}

	sealed := make([]byte, 0, SignatureSize+len(plaintext))
	sealed = append(sealed, sig[:]...)
	sealed = append(sealed, plaintext...)

	ciphertext, err := ecies.Encrypt(Suite, recipient.Point(), sealed, sha256.New)
	if err != nil {
		return nil, fmt.Errorf("encrypt message kit: %w", err)
	}

	return &MessageKit{SenderVerifyingKey: signer.VerifyingKey(), Ciphertext: ciphertext}, nil
}

// MessageKitFromBytes parses a serialized MessageKit.
func MessageKitFromBytes(b []byte) (*MessageKit, error) {
	if len(b) < minMessageKitSize {
		return nil, fmt.Errorf("%w: %d bytes is shorter than the minimum %d", ErrMalformedMessageKit,
			len(b), minMessageKitSize)
	}

	sender, err := PublicKeyFromBytes(b[:PublicKeySize])
	if err != nil {
		return nil, fmt.Errorf("%w: sender verifying key: %s", ErrMalformedMessageKit, err)
	}

	ciphertext := make([]byte, len(b)-PublicKeySize)
	copy(ciphertext, b[PublicKeySize:])

	return &MessageKit{SenderVerifyingKey: sender, Ciphertext: ciphertext}, nil
}

// Bytes serializes the MessageKit.
func (m *MessageKit) Bytes() []byte {
	out := make([]byte, 0, PublicKeySize+len(m.Ciphertext))
	out = append(out, m.SenderVerifyingKey.Bytes()...)

	return append(out, m.Ciphertext...)
}

// Decrypter opens ciphertexts addressed to a character's encrypting key.
type Decrypter struct {
	secret        SecretKey
	encryptingKey PublicKey
}

// NewDecrypter returns a decrypter for the given secret key.
func NewDecrypter(secret SecretKey) *Decrypter {
	return &Decrypter{secret: secret, encryptingKey: secret.PublicKey()}
}

// EncryptingKey returns the public key senders encrypt to.
func (d *Decrypter) EncryptingKey() PublicKey {
	return d.encryptingKey
}

// SecretKey exposes the decrypting secret, which also serves as the receiving key for re-encrypted capsules.
func (d *Decrypter) SecretKey() SecretKey {
	return d.secret
}

// Decrypt opens a message kit and returns the payload without checking its signature.
// The returned signature must be verified by the caller against the expected sender.
func (d *Decrypter) Decrypt(kit *MessageKit) (Signature, []byte, error) {
	sealed, err := ecies.Decrypt(Suite, d.secret.Scalar(), kit.Ciphertext, sha256.New)
	if err != nil {
		return Signature{}, nil, fmt.Errorf("%w: %s", ErrDecryptionFailed, err)
	}

	if len(sealed) < SignatureSize {
		return Signature{}, nil, fmt.Errorf("%w: payload shorter than a signature", ErrDecryptionFailed)
	}

	sig, err := SignatureFromBytes(sealed[:SignatureSize])
	if err != nil {
		return Signature{}, nil, err
	}

	return sig, sealed[SignatureSize:], nil
}

// DecryptFrom opens a message kit and verifies that its payload was signed by sender.
func (d *Decrypter) DecryptFrom(kit *MessageKit, sender PublicKey) ([]byte, error) {
	sig, payload, err := d.Decrypt(kit)
	if err != nil {
		return nil, err
	}

	if err := sig.Verify(payload, sender); err != nil {
		return nil, err
	}

	return payload, nil
}
