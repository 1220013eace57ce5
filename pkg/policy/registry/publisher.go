/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package registry

import (
	"context"

	"github.com/trustbloc/prenet/pkg/crypto"
	"github.com/trustbloc/prenet/pkg/hrac"
	"github.com/trustbloc/prenet/pkg/network"
	"github.com/trustbloc/prenet/pkg/policy"
)

// Publisher pays for policies by recording them in a Registry, naming the enacted nodes as payees.
type Publisher struct {
	registry *Registry
}

// NewPublisher returns a publisher writing to r.
func NewPublisher(r *Registry) *Publisher {
	return &Publisher{registry: r}
}

// Publish implements policy.Publisher.
func (p *Publisher) Publish(ctx context.Context, pol *policy.Policy, nodes []*network.NodeInfo) error {
	payees := make([]string, 0, len(nodes))
	for _, node := range nodes {
		payees = append(payees, node.ChecksumAddress)
	}

	return p.registry.CreatePolicy(ctx, pol.HRAC, crypto.ChecksumAddress(pol.PublisherVerifyingKey), payees,
		pol.Value, pol.Expiration)
}

// Revoke implements policy.Publisher.
func (p *Publisher) Revoke(ctx context.Context, h hrac.HRAC) error {
	return p.registry.RevokePolicy(ctx, h)
}
