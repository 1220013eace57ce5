/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package node

import (
	"context"
	"errors"
	"fmt"

	"github.com/trustbloc/prenet/pkg/datastore"
	"github.com/trustbloc/prenet/pkg/policy"
)

// ConsiderArrangement decides whether the node takes part in a policy. A federated node accepts any
// arrangement that hasn't expired; otherwise the node's stake must last until the arrangement expires.
// An accepted arrangement is recorded and the node's signature over it is returned as the body.
func (u *Ursula) ConsiderArrangement(ctx context.Context, data []byte) *Result {
	arrangement, err := policy.ArrangementFromBytes(data)
	if err != nil {
		logger.Debugf("Rejected arrangement: %s", err)

		return reject(StatusBadRequest, ReasonMalformedRequest, err.Error())
	}

	if !arrangement.Expiration.After(u.now()) {
		return reject(StatusForbidden, ReasonExpired,
			fmt.Sprintf("arrangement for policy %s expired at %s", arrangement.HRAC, arrangement.Expiration))
	}

	if !u.federatedOnly {
		if result := u.verifyStake(ctx, arrangement); result != nil {
			return result
		}
	}

	signature, err := u.signer.Sign(arrangement.Bytes())
	if err != nil {
		return reject(StatusInternalError, ReasonSigningFailed, err.Error())
	}

	record := &datastore.PolicyArrangement{}

	err = u.datastore.Describe(record, arrangement.HRAC.Base58(), true, func() error {
		record.PublisherVerifyingKey = arrangement.PublisherVerifyingKey.String()
		record.Expiration = arrangement.Expiration
		record.NodeSignature = signature.String()

		return nil
	})
	if err != nil {
		logger.Errorf("Failed to record arrangement for policy %s: %s", arrangement.HRAC, err)

		return reject(StatusInternalError, ReasonAuditFailed, "failed to record arrangement")
	}

	logger.Infof("Accepted arrangement for policy %s until %s", arrangement.HRAC, arrangement.Expiration)

	return ok(ReasonAccepted, signature.Bytes())
}

func (u *Ursula) verifyStake(ctx context.Context, arrangement *policy.Arrangement) *Result {
	ctx, cancel := u.oracleContext(ctx)
	defer cancel()

	err := u.stakeVerifier.StakeCovers(ctx, u.address, arrangement.Expiration)
	if err == nil {
		return nil
	}

	if !errors.Is(err, policy.ErrInsufficientStake) {
		logger.Warnf("Stake for arrangement %s could not be verified: %s", arrangement.HRAC, err)
	}

	return reject(StatusForbidden, ReasonInsufficientStake,
		fmt.Sprintf("stake doesn't cover arrangement for policy %s", arrangement.HRAC))
}
