/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package retrieval

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/trustbloc/prenet/pkg/crypto"
	"github.com/trustbloc/prenet/pkg/hrac"
	"github.com/trustbloc/prenet/pkg/policy"
	"github.com/trustbloc/prenet/pkg/umbral"
)

const (
	lengthPrefixSize = 4

	// MaxCapsulesPerRequest is the most capsules one re-encryption request may carry.
	MaxCapsulesPerRequest = 1024
	// MaxRequestSize is the size of a request carrying MaxCapsulesPerRequest capsules.
	MaxRequestSize = hrac.Size + 2*crypto.PublicKeySize + lengthPrefixSize + policy.EncryptedSize +
		MaxCapsulesPerRequest*umbral.CapsuleSize
)

var (
	// ErrMalformedRequest is returned when re-encryption request bytes can't be decoded.
	ErrMalformedRequest = errors.New("malformed re-encryption request")
	// ErrMalformedResponse is returned when re-encryption response bytes can't be decoded.
	ErrMalformedResponse = errors.New("malformed re-encryption response")
)

// ReencryptionRequest asks a node to re-encrypt capsules with the fragment authorized by EncryptedKFrag.
//
// Layout: hrac(16) || alice_vk(32) || bob_vk(32) || uint32be(len(ekfrag)) || ekfrag || capsule(32)*N, N >= 1.
type ReencryptionRequest struct {
	HRAC              hrac.HRAC
	AliceVerifyingKey crypto.PublicKey
	BobVerifyingKey   crypto.PublicKey
	EncryptedKFrag    *crypto.MessageKit
	Capsules          []*umbral.Capsule
}

// Bytes serializes the request.
func (r *ReencryptionRequest) Bytes() []byte {
	ekfrag := r.EncryptedKFrag.Bytes()

	out := make([]byte, 0, hrac.Size+2*crypto.PublicKeySize+lengthPrefixSize+len(ekfrag)+
		len(r.Capsules)*umbral.CapsuleSize)
	out = append(out, r.HRAC[:]...)
	out = append(out, r.AliceVerifyingKey.Bytes()...)
	out = append(out, r.BobVerifyingKey.Bytes()...)

	var prefix [lengthPrefixSize]byte
	binary.BigEndian.PutUint32(prefix[:], uint32(len(ekfrag)))
	out = append(out, prefix[:]...)
	out = append(out, ekfrag...)

	for _, c := range r.Capsules {
		out = append(out, c.Bytes()...)
	}

	return out
}

// ReencryptionRequestFromBytes decodes a request.
func ReencryptionRequestFromBytes(b []byte) (*ReencryptionRequest, error) {
	headerSize := hrac.Size + 2*crypto.PublicKeySize + lengthPrefixSize
	if len(b) < headerSize {
		return nil, fmt.Errorf("%w: too short", ErrMalformedRequest)
	}

	h, err := hrac.FromBytes(b[:hrac.Size])
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrMalformedRequest, err)
	}

	alice, err := crypto.PublicKeyFromBytes(b[hrac.Size : hrac.Size+crypto.PublicKeySize])
	if err != nil {
		return nil, fmt.Errorf("%w: alice verifying key: %s", ErrMalformedRequest, err)
	}

	bob, err := crypto.PublicKeyFromBytes(b[hrac.Size+crypto.PublicKeySize : hrac.Size+2*crypto.PublicKeySize])
	if err != nil {
		return nil, fmt.Errorf("%w: bob verifying key: %s", ErrMalformedRequest, err)
	}

	ekfragSize := int(binary.BigEndian.Uint32(b[headerSize-lengthPrefixSize : headerSize]))
	rest := b[headerSize:]

	if ekfragSize > len(rest) {
		return nil, fmt.Errorf("%w: encrypted key fragment length %d exceeds payload", ErrMalformedRequest, ekfragSize)
	}

	ekfrag, err := policy.ParseEncryptedKeyFrag(rest[:ekfragSize])
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrMalformedRequest, err)
	}

	capsules, err := splitCapsules(rest[ekfragSize:])
	if err != nil {
		return nil, err
	}

	return &ReencryptionRequest{
		HRAC:              h,
		AliceVerifyingKey: alice,
		BobVerifyingKey:   bob,
		EncryptedKFrag:    ekfrag,
		Capsules:          capsules,
	}, nil
}

func splitCapsules(b []byte) ([]*umbral.Capsule, error) {
	if len(b) == 0 || len(b)%umbral.CapsuleSize != 0 {
		return nil, fmt.Errorf("%w: %d bytes is not a non-empty list of capsules", ErrMalformedRequest, len(b))
	}

	capsules := make([]*umbral.Capsule, 0, len(b)/umbral.CapsuleSize)

	for i := 0; i < len(b); i += umbral.CapsuleSize {
		c, err := umbral.CapsuleFromBytes(b[i : i+umbral.CapsuleSize])
		if err != nil {
			return nil, fmt.Errorf("%w: %s", ErrMalformedRequest, err)
		}

		capsules = append(capsules, c)
	}

	return capsules, nil
}

// ReencryptionResponse carries the capsule fragments a node produced, signed by the node.
//
// Layout: signature(64) || cfrag(68)*N, N >= 1. The signature covers capsules || cfrags.
type ReencryptionResponse struct {
	Signature crypto.Signature
	CFrags    []*umbral.CapsuleFrag
}

// ConstructReencryptionResponse signs cfrags, which must be the re-encryptions of capsules in order.
func ConstructReencryptionResponse(signer *crypto.Signer, capsules []*umbral.Capsule,
	cfrags []*umbral.CapsuleFrag) (*ReencryptionResponse, error) {
	sig, err := signer.Sign(responseMessage(capsules, cfrags))
	if err != nil {
		return nil, err
	}

	return &ReencryptionResponse{Signature: sig, CFrags: cfrags}, nil
}

// Verify checks the response answers capsules and was signed by the node.
func (r *ReencryptionResponse) Verify(capsules []*umbral.Capsule, nodeVerifyingKey crypto.PublicKey) error {
	if len(r.CFrags) != len(capsules) {
		return fmt.Errorf("%w: %d capsule fragments for %d capsules", ErrMalformedResponse, len(r.CFrags),
			len(capsules))
	}

	return r.Signature.Verify(responseMessage(capsules, r.CFrags), nodeVerifyingKey)
}

func responseMessage(capsules []*umbral.Capsule, cfrags []*umbral.CapsuleFrag) []byte {
	msg := make([]byte, 0, len(capsules)*umbral.CapsuleSize+len(cfrags)*umbral.CapsuleFragSize)

	for _, c := range capsules {
		msg = append(msg, c.Bytes()...)
	}

	for _, cf := range cfrags {
		msg = append(msg, cf.Bytes()...)
	}

	return msg
}

// Bytes serializes the response.
func (r *ReencryptionResponse) Bytes() []byte {
	out := make([]byte, 0, crypto.SignatureSize+len(r.CFrags)*umbral.CapsuleFragSize)
	out = append(out, r.Signature[:]...)

	for _, cf := range r.CFrags {
		out = append(out, cf.Bytes()...)
	}

	return out
}

// ReencryptionResponseFromBytes decodes a response.
func ReencryptionResponseFromBytes(b []byte) (*ReencryptionResponse, error) {
	if len(b) < crypto.SignatureSize+umbral.CapsuleFragSize {
		return nil, fmt.Errorf("%w: too short", ErrMalformedResponse)
	}

	body := b[crypto.SignatureSize:]
	if len(body)%umbral.CapsuleFragSize != 0 {
		return nil, fmt.Errorf("%w: %d bytes is not a list of capsule fragments", ErrMalformedResponse, len(body))
	}

	sig, err := crypto.SignatureFromBytes(b[:crypto.SignatureSize])
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrMalformedResponse, err)
	}

	cfrags := make([]*umbral.CapsuleFrag, 0, len(body)/umbral.CapsuleFragSize)

	for i := 0; i < len(body); i += umbral.CapsuleFragSize {
		cf, err := umbral.CapsuleFragFromBytes(body[i : i+umbral.CapsuleFragSize])
		if err != nil {
			return nil, fmt.Errorf("%w: %s", ErrMalformedResponse, err)
		}

		cfrags = append(cfrags, cf)
	}

	return &ReencryptionResponse{Signature: sig, CFrags: cfrags}, nil
}
