/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package policy

const (
	// ErrMalformedAuthorizedKeyFrag is returned when an authorization payload can't be decoded.
	ErrMalformedAuthorizedKeyFrag = policyError("malformed authorized key fragment")
	// ErrUnauthorized is returned when a key fragment's writ doesn't authorize it for this node and policy.
	ErrUnauthorized = policyError("unauthorized key fragment")
	// ErrSignerXorSignature is returned when a revocation is built with both or neither of a signer and a signature.
	ErrSignerXorSignature = policyError("either pass a signer or a signature, not both")
	// ErrMissingEncryptedKFrag is returned when a revocation is built without the encrypted fragment it revokes.
	ErrMissingEncryptedKFrag = policyError("revocation requires an encrypted key fragment")
	// ErrMalformedRevocation is returned when revocation bytes can't be decoded.
	ErrMalformedRevocation = policyError("malformed revocation")
	// ErrConfirmationsNotImplemented is returned by RevocationKit.AddConfirmation.
	ErrConfirmationsNotImplemented = policyError("revocation confirmations are not implemented")
	// ErrMalformedTreasureMap is returned when treasure map bytes can't be decoded.
	ErrMalformedTreasureMap = policyError("malformed treasure map")
	// ErrMalformedArrangement is returned when arrangement bytes can't be decoded.
	ErrMalformedArrangement = policyError("malformed arrangement")
	// ErrNotEnoughNodes is returned when fewer nodes than the number of shares accept a policy.
	ErrNotEnoughNodes = policyError("not enough nodes accepted the policy")

	// ErrUnpaid is returned by payment oracles when the policy exists but this node wasn't paid.
	ErrUnpaid = policyError("policy is unpaid")
	// ErrUnknownPolicy is returned by payment oracles when the policy doesn't exist.
	ErrUnknownPolicy = policyError("policy is unknown")
	// ErrInactive is returned by activity oracles when the policy was disabled.
	ErrInactive = policyError("policy is inactive")
	// ErrExpired is returned by activity oracles when the policy's expiration has passed.
	ErrExpired = policyError("policy is expired")
	// ErrInsufficientStake is returned by stake oracles when a node's stake ends before a policy does.
	ErrInsufficientStake = policyError("stake does not cover the policy duration")
)

type policyError string

// Error returns the associated error message.
// This satisfies the built-in error interface.
func (e policyError) Error() string { return string(e) }
