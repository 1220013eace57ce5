/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package node

import (
	"context"
	"fmt"

	"github.com/trustbloc/prenet/pkg/datastore"
	"github.com/trustbloc/prenet/pkg/policy"
)

// HandleRevocation applies a publisher's revocation addressed to this node. The revocation must be
// signed by the publisher of the authorization it carries, and that authorization must be one this node
// was issued. The policy is then refused from now on and its arrangement record is dropped.
func (u *Ursula) HandleRevocation(_ context.Context, data []byte) *Result {
	revocation, err := policy.RevocationFromBytes(data)
	if err != nil {
		logger.Debugf("Rejected revocation: %s", err)

		return reject(StatusBadRequest, ReasonMalformedRequest, err.Error())
	}

	if revocation.NodeAddress != u.address {
		return reject(StatusForbidden, ReasonMisaddressed,
			fmt.Sprintf("revocation is addressed to %s", revocation.NodeAddress))
	}

	publisher := revocation.EncryptedKFrag.SenderVerifyingKey

	if err := revocation.VerifySignature(publisher); err != nil {
		return reject(StatusUnauthorized, ReasonInvalidSender, "invalid revocation signature")
	}

	payload, err := u.decrypter.DecryptFrom(revocation.EncryptedKFrag, publisher)
	if err != nil {
		return reject(StatusForbidden, ReasonDecryptionFailed, "key fragment decryption failed")
	}

	akf, err := policy.AuthorizedKeyFragFromBytes(payload)
	if err != nil {
		return reject(StatusBadRequest, ReasonMalformedAuthorization, err.Error())
	}

	if err := akf.VerifyWrit(publisher, u.address); err != nil {
		return reject(StatusUnauthorized, ReasonUnauthorizedWorkOrder, "revocation carries a foreign authorization")
	}

	u.session.RevokedPolicies.Add(akf.HRAC)

	if err := u.datastore.Delete(datastore.PolicyArrangementKind, akf.HRAC.Base58()); err != nil {
		logger.Warnf("Failed to delete arrangement of revoked policy %s: %s", akf.HRAC, err)
	}

	logger.Infof("Revoked policy %s on request of its publisher %s", akf.HRAC, publisher)

	return ok(ReasonRevoked, nil)
}
