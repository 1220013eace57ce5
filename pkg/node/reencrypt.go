/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package node

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/trustbloc/prenet/pkg/crypto"
	"github.com/trustbloc/prenet/pkg/datastore"
	"github.com/trustbloc/prenet/pkg/hrac"
	"github.com/trustbloc/prenet/pkg/policy"
	"github.com/trustbloc/prenet/pkg/retrieval"
	"github.com/trustbloc/prenet/pkg/umbral"
)

// HandleReencryption runs a re-encryption request through the node's checks and, if they all pass,
// re-encrypts every capsule and records an audit receipt. remoteAddr only identifies the requester in logs.
//
// The checks run in order: revocation, sender signature and decryption of the authorization, its
// parsing, its binding to the policy, payment and policy activity. The last two are skipped on a
// federated node.
func (u *Ursula) HandleReencryption(ctx context.Context, data []byte, remoteAddr string) *Result {
	request, err := retrieval.ReencryptionRequestFromBytes(data)
	if err != nil {
		logger.Debugf("Rejected re-encryption request from %s: %s", remoteAddr, err)

		return reject(StatusBadRequest, ReasonMalformedRequest, err.Error())
	}

	h := request.HRAC
	bob := request.BobVerifyingKey

	logger.Infof("Work order from Bob(%s) for policy %s", bob, h)

	if u.session.RevokedPolicies.Contains(h) {
		return reject(StatusUnauthorized, ReasonRevoked, fmt.Sprintf("policy %s is revoked", h))
	}

	alice := request.AliceVerifyingKey
	publisher := request.EncryptedKFrag.SenderVerifyingKey
	bobIdentity := fmt.Sprintf("[%s] Bob(%s)", remoteAddr, bob)

	signature, payload, err := u.decrypter.Decrypt(request.EncryptedKFrag)
	if err != nil {
		return reject(StatusForbidden, ReasonDecryptionFailed, "key fragment decryption failed")
	}

	if err := signature.Verify(payload, alice); err != nil {
		return reject(StatusUnauthorized, ReasonInvalidSender, "invalid key fragment sender")
	}

	akf, err := policy.AuthorizedKeyFragFromBytes(payload)
	if err != nil {
		message := bobIdentity + " Invalid AuthorizedKeyFrag."
		logger.Infof("%s", message)
		u.session.SuspiciousActivities.LogUnauthorized(message)

		return reject(StatusBadRequest, ReasonMalformedAuthorization, message)
	}

	vkfrag, err := u.VerifyKFragAuthorization(h, alice, publisher, akf)
	if err != nil {
		message := bobIdentity + " Unauthorized work order."
		logger.Infof("%s", message)
		u.session.SuspiciousActivities.LogUnauthorized(message)

		return reject(StatusUnauthorized, ReasonUnauthorizedWorkOrder, message)
	}

	if !u.federatedOnly {
		if result := u.verifyPayment(ctx, h, publisher, bobIdentity); result != nil {
			return result
		}

		if result := u.verifyActivity(ctx, h, bobIdentity); result != nil {
			return result
		}
	}

	cfrags := make([]*umbral.CapsuleFrag, 0, len(request.Capsules))
	for _, capsule := range request.Capsules {
		cfrags = append(cfrags, umbral.Reencrypt(capsule, vkfrag))
	}

	response, err := retrieval.ConstructReencryptionResponse(u.signer, request.Capsules, cfrags)
	if err != nil {
		return reject(StatusInternalError, ReasonSigningFailed, err.Error())
	}

	if err := u.audit(h, bob, len(request.Capsules)); err != nil {
		logger.Errorf("Failed to record work order from %s: %s", bobIdentity, err)

		return reject(StatusInternalError, ReasonAuditFailed, "failed to record work order")
	}

	logger.Infof("Re-encrypted %d capsules for %s under policy %s", len(cfrags), bobIdentity, h)

	return ok(ReasonReencrypted, response.Bytes())
}

// VerifyKFragAuthorization checks that akf was issued by publisher to this node for policy h, that its
// fragment was generated by author and that h isn't revoked. Any failure is policy.ErrUnauthorized.
func (u *Ursula) VerifyKFragAuthorization(h hrac.HRAC, author, publisher crypto.PublicKey,
	akf *policy.AuthorizedKeyFrag) (*umbral.VerifiedKeyFrag, error) {
	if err := akf.VerifyWrit(publisher, u.address); err != nil {
		return nil, err
	}

	if akf.HRAC != h {
		return nil, fmt.Errorf("%w: fragment authorized for policy %s, not %s", policy.ErrUnauthorized, akf.HRAC, h)
	}

	vkfrag, err := akf.KFrag.Verify(author)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", policy.ErrUnauthorized, err)
	}

	if u.session.RevokedPolicies.Contains(akf.HRAC) {
		return nil, fmt.Errorf("%w: policy %s is revoked", policy.ErrUnauthorized, akf.HRAC)
	}

	return vkfrag, nil
}

func (u *Ursula) verifyPayment(ctx context.Context, h hrac.HRAC, publisher crypto.PublicKey,
	bobIdentity string) *Result {
	ctx, cancel := u.oracleContext(ctx)
	defer cancel()

	err := u.paymentVerifier.VerifyPolicyPayment(ctx, h, u.address)

	switch {
	case err == nil:
		return nil
	case errors.Is(err, policy.ErrUnpaid):
		message := fmt.Sprintf("%s Policy %s is unpaid.", bobIdentity, h)
		logger.Infof("%s", message)
		u.session.SuspiciousActivities.LogFreerider(publisher, message)

		return reject(StatusPaymentRequired, ReasonUnpaid, message)
	case errors.Is(err, policy.ErrUnknownPolicy):
		return reject(StatusNotFound, ReasonUnknownPolicy,
			fmt.Sprintf("%s Policy %s is not a published policy.", bobIdentity, h))
	default:
		logger.Warnf("Payment of policy %s could not be verified: %s", h, err)

		return reject(StatusPaymentRequired, ReasonPaymentUnverified,
			fmt.Sprintf("%s Payment of policy %s could not be verified.", bobIdentity, h))
	}
}

func (u *Ursula) verifyActivity(ctx context.Context, h hrac.HRAC, bobIdentity string) *Result {
	ctx, cancel := u.oracleContext(ctx)
	defer cancel()

	err := u.activityVerifier.VerifyActivePolicy(ctx, h)

	switch {
	case err == nil:
		return nil
	case errors.Is(err, policy.ErrInactive):
		return reject(StatusForbidden, ReasonInactive, fmt.Sprintf("%s Policy %s is not active.", bobIdentity, h))
	case errors.Is(err, policy.ErrExpired):
		return reject(StatusForbidden, ReasonExpired, fmt.Sprintf("%s Policy %s is expired.", bobIdentity, h))
	default:
		logger.Warnf("Activity of policy %s could not be verified: %s", h, err)

		return reject(StatusForbidden, ReasonActivityUnverified,
			fmt.Sprintf("%s Activity of policy %s could not be verified.", bobIdentity, h))
	}
}

func (u *Ursula) audit(h hrac.HRAC, bob crypto.PublicKey, capsules int) error {
	record := &datastore.ReencryptionRequest{}

	return u.datastore.Describe(record, uuid.New().String(), true, func() error {
		record.BobVerifyingKey = bob.String()
		record.HRAC = h.Base58()
		record.Capsules = capsules
		record.Timestamp = u.now()

		return nil
	})
}
