/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package policy holds the objects a publisher creates to delegate decryption rights: authorized key
// fragments, treasure maps, arrangements and revocations, together with the strategies used to publish
// and enact a policy.
package policy

import (
	"context"
	"fmt"
	"time"

	"github.com/trustbloc/edge-core/pkg/log"

	"github.com/trustbloc/prenet/pkg/crypto"
	"github.com/trustbloc/prenet/pkg/hrac"
	"github.com/trustbloc/prenet/pkg/network"
	"github.com/trustbloc/prenet/pkg/umbral"
)

var logger = log.New("prenet/policy")

// Policy describes a delegation from a publisher to a recipient under a label.
type Policy struct {
	HRAC      hrac.HRAC
	Label     []byte
	Threshold int
	Shares    int
	// PublicKey is the policy encrypting key data sources encrypt to.
	PublicKey              crypto.PublicKey
	PublisherVerifyingKey  crypto.PublicKey
	RecipientVerifyingKey  crypto.PublicKey
	RecipientEncryptingKey crypto.PublicKey
	Expiration             time.Time
	// Value is the total amount paid for the policy, split between its nodes.
	Value uint64
}

// Arrangement returns the proposal sent to candidate nodes.
func (p *Policy) Arrangement() *Arrangement {
	return &Arrangement{PublisherVerifyingKey: p.PublisherVerifyingKey, HRAC: p.HRAC, Expiration: p.Expiration}
}

// EnactedPolicy is a policy whose fragments have been placed with nodes.
type EnactedPolicy struct {
	*Policy
	Nodes                []*network.NodeInfo
	TreasureMap          *TreasureMap
	EncryptedTreasureMap *crypto.MessageKit
	RevocationKit        *RevocationKit
}

// Publisher records a policy with whatever backs payment and activity checks.
type Publisher interface {
	Publish(ctx context.Context, p *Policy, nodes []*network.NodeInfo) error
	Revoke(ctx context.Context, h hrac.HRAC) error
}

// Enactor places a policy with nodes.
type Enactor interface {
	// ProposeArrangements asks candidates to hold a fragment and returns the ones that accepted.
	ProposeArrangements(ctx context.Context, p *Policy, candidates []*network.NodeInfo,
		client network.Client) ([]*network.NodeInfo, error)
	// BuildTreasureMap authorizes each fragment for the node at the same position.
	BuildTreasureMap(p *Policy, nodes []*network.NodeInfo, kfrags []*umbral.VerifiedKeyFrag,
		publisher *crypto.Signer) (*TreasureMap, error)
}

// FederatedPublisher publishes nowhere. Federated nodes don't check payment or activity.
type FederatedPublisher struct{}

// Publish implements Publisher.
func (FederatedPublisher) Publish(context.Context, *Policy, []*network.NodeInfo) error {
	return nil
}

// Revoke implements Publisher.
func (FederatedPublisher) Revoke(context.Context, hrac.HRAC) error {
	return nil
}

// StandardEnactor proposes arrangements one node at a time until enough nodes accepted, and builds the
// treasure map with genuine authorizations.
type StandardEnactor struct{}

// ProposeArrangements implements Enactor. A node accepts by returning its signature over the arrangement.
func (StandardEnactor) ProposeArrangements(ctx context.Context, p *Policy, candidates []*network.NodeInfo,
	client network.Client) ([]*network.NodeInfo, error) {
	arrangement := p.Arrangement().Bytes()
	accepted := make([]*network.NodeInfo, 0, p.Shares)

	for _, node := range candidates {
		if len(accepted) == p.Shares {
			break
		}

		if err := ctx.Err(); err != nil {
			return nil, err
		}

		response, err := client.ConsiderArrangement(ctx, node, arrangement)
		if err != nil {
			logger.Infof("Node %s declined arrangement for policy %s: %s", node.ChecksumAddress, p.HRAC, err)
			continue
		}

		sig, err := crypto.SignatureFromBytes(response)
		if err == nil {
			err = sig.Verify(arrangement, node.VerifyingKey)
		}

		if err != nil {
			logger.Warnf("Node %s sent an invalid arrangement acceptance for policy %s: %s",
				node.ChecksumAddress, p.HRAC, err)
			continue
		}

		accepted = append(accepted, node)
	}

	if len(accepted) < p.Shares {
		return nil, fmt.Errorf("%w: %d of %d", ErrNotEnoughNodes, len(accepted), p.Shares)
	}

	return accepted, nil
}

// BuildTreasureMap implements Enactor.
func (StandardEnactor) BuildTreasureMap(p *Policy, nodes []*network.NodeInfo, kfrags []*umbral.VerifiedKeyFrag,
	publisher *crypto.Signer) (*TreasureMap, error) {
	return ConstructTreasureMap(p.HRAC, p.Threshold, nodes, kfrags, publisher)
}
