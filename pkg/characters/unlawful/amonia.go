/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package unlawful holds hostile characters. They behave the way an attacker would and exist so that
// tests can show nodes refuse them.
package unlawful

import (
	"context"
	"fmt"

	"github.com/trustbloc/edge-core/pkg/log"

	"github.com/trustbloc/prenet/pkg/characters"
	"github.com/trustbloc/prenet/pkg/crypto"
	"github.com/trustbloc/prenet/pkg/hrac"
	"github.com/trustbloc/prenet/pkg/network"
	"github.com/trustbloc/prenet/pkg/policy"
	"github.com/trustbloc/prenet/pkg/policy/registry"
	"github.com/trustbloc/prenet/pkg/retrieval"
	"github.com/trustbloc/prenet/pkg/umbral"
)

const cdnSegments = 50

var logger = log.New("prenet/characters/unlawful")

// Amonia is an owner who wants nodes to work without being paid.
type Amonia struct {
	*characters.Alice

	registry *registry.Registry
}

// NewAmonia turns alice into Amonia. reg is where she pays, when she pays at all.
func NewAmonia(alice *characters.Alice, reg *registry.Registry) *Amonia {
	return &Amonia{Alice: alice, registry: reg}
}

// GrantWithoutPaying enacts a policy but never publishes it.
func (a *Amonia) GrantWithoutPaying(ctx context.Context, bob characters.PublicKeys, label []byte,
	params *characters.GrantParams) (*policy.EnactedPolicy, error) {
	return a.WithStrategies(freeloader{}, nil).Grant(ctx, bob, label, params)
}

// CircumventSafeguardsAndGrantWithoutPaying enacts a policy on nodes whether they agreed or not and never
// publishes it.
func (a *Amonia) CircumventSafeguardsAndGrantWithoutPaying(ctx context.Context, bob characters.PublicKeys,
	label []byte, params *characters.GrantParams) (*policy.EnactedPolicy, error) {
	return a.WithStrategies(freeloader{}, rammingEnactor{}).Grant(ctx, bob, label, params)
}

// GrantWhilePayingTheWrongNodes enacts a policy on trickInto but registers payment to payInstead.
func (a *Amonia) GrantWhilePayingTheWrongNodes(ctx context.Context, trickInto, payInstead []*network.NodeInfo,
	bob characters.PublicKeys, label []byte, params *characters.GrantParams) (*policy.EnactedPolicy, error) {
	handpicked := *params
	handpicked.Handpicked = trickInto

	publisher := &wrongPayeePublisher{registry: a.registry, payees: payInstead}

	return a.WithStrategies(publisher, nil).Grant(ctx, bob, label, &handpicked)
}

// UseUrsulaAsAnInvoluntaryCDN sends sucker segments of unrelated data under HRACs that differ from the
// paid policy's in the last byte, hoping the node serves them as part of that policy. It returns what the
// node answered for every segment.
func (a *Amonia) UseUrsulaAsAnInvoluntaryCDN(ctx context.Context, enacted *policy.EnactedPolicy,
	bob characters.PublicKeys, sucker *network.NodeInfo, client network.Client) []error {
	ekfrag, ok := enacted.TreasureMap.Get(sucker.ChecksumAddress)
	if !ok {
		return []error{fmt.Errorf("%w: %s", characters.ErrUnknownNode, sucker.ChecksumAddress)}
	}

	answers := make([]error, 0, cdnSegments)

	for i := 0; i < cdnSegments; i++ {
		segment := append([]byte("Not the bees!"), byte(i>>24), byte(i>>16), byte(i>>8), byte(i))

		capsule, _, err := umbral.Encrypt(enacted.PublicKey, segment)
		if err != nil {
			answers = append(answers, err)

			continue
		}

		badHRAC := enacted.HRAC
		badHRAC[hrac.Size-1] = byte(i)

		if badHRAC == enacted.HRAC {
			badHRAC[hrac.Size-1]++
		}

		request := &retrieval.ReencryptionRequest{
			HRAC:              badHRAC,
			AliceVerifyingKey: a.PublicKeys().VerifyingKey,
			BobVerifyingKey:   bob.VerifyingKey,
			EncryptedKFrag:    ekfrag,
			Capsules:          []*umbral.Capsule{capsule},
		}

		_, err = client.Reencrypt(ctx, sucker, request.Bytes())
		if err == nil {
			logger.Warnf("Node %s took segment %d under policy %s", sucker.ChecksumAddress, i, badHRAC)
		}

		answers = append(answers, err)
	}

	return answers
}

// freeloader publishes nothing.
type freeloader struct{}

func (freeloader) Publish(context.Context, *policy.Policy, []*network.NodeInfo) error {
	return nil
}

func (freeloader) Revoke(context.Context, hrac.HRAC) error {
	return nil
}

// rammingEnactor proposes to the first candidates and keeps them whatever they answer.
type rammingEnactor struct {
	policy.StandardEnactor
}

func (rammingEnactor) ProposeArrangements(ctx context.Context, p *policy.Policy, candidates []*network.NodeInfo,
	client network.Client) ([]*network.NodeInfo, error) {
	if len(candidates) < p.Shares {
		return nil, fmt.Errorf("%w: %d of %d", policy.ErrNotEnoughNodes, len(candidates), p.Shares)
	}

	arrangement := p.Arrangement().Bytes()
	nodes := candidates[:p.Shares]

	for _, node := range nodes {
		if _, err := client.ConsiderArrangement(ctx, node, arrangement); err != nil {
			logger.Debugf("Ignoring refusal of %s: %s", node.ChecksumAddress, err)
		}
	}

	return nodes, nil
}

// wrongPayeePublisher registers a valid, paid policy that names other nodes as payees.
type wrongPayeePublisher struct {
	registry *registry.Registry
	payees   []*network.NodeInfo
}

func (w *wrongPayeePublisher) Publish(ctx context.Context, p *policy.Policy, _ []*network.NodeInfo) error {
	payees := make([]string, 0, len(w.payees))
	for _, node := range w.payees {
		payees = append(payees, node.ChecksumAddress)
	}

	return w.registry.CreatePolicy(ctx, p.HRAC, crypto.ChecksumAddress(p.PublisherVerifyingKey), payees, p.Value,
		p.Expiration)
}

func (w *wrongPayeePublisher) Revoke(ctx context.Context, h hrac.HRAC) error {
	return w.registry.RevokePolicy(ctx, h)
}
