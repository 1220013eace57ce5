/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package characters

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/trustbloc/prenet/pkg/crypto"
	"github.com/trustbloc/prenet/pkg/hrac"
	"github.com/trustbloc/prenet/pkg/network"
	"github.com/trustbloc/prenet/pkg/policy"
	"github.com/trustbloc/prenet/pkg/umbral"
)

// AliceConfig configures a data owner. Publisher defaults to policy.FederatedPublisher and Enactor to
// policy.StandardEnactor. Threshold and Shares are the defaults for grants that don't set their own.
type AliceConfig struct {
	Seed          []byte
	Nodes         []*network.NodeInfo
	Client        network.Client
	Publisher     policy.Publisher
	Enactor       policy.Enactor
	FederatedOnly bool
	Threshold     int
	Shares        int
	Now           func() time.Time
}

// GrantParams describes one grant. Zero Threshold or Shares fall back to the owner's defaults.
// Handpicked nodes are proposed to before any other known node.
type GrantParams struct {
	Threshold  int
	Shares     int
	Expiration time.Time
	Value      uint64
	Handpicked []*network.NodeInfo
}

type activePolicies struct {
	mu       sync.Mutex
	policies map[hrac.HRAC]*policy.EnactedPolicy
}

// Alice owns data and delegates access to it.
type Alice struct {
	keys          *keyring
	nodes         []*network.NodeInfo
	client        network.Client
	publisher     policy.Publisher
	enactor       policy.Enactor
	federatedOnly bool
	threshold     int
	shares        int
	now           func() time.Time
	active        *activePolicies
}

// NewAlice returns a data owner whose keys derive from cfg.Seed.
func NewAlice(cfg *AliceConfig) (*Alice, error) {
	if cfg.Client == nil {
		return nil, errors.New("alice requires a network client")
	}

	a := &Alice{
		keys:          newKeyring(cfg.Seed),
		nodes:         cfg.Nodes,
		client:        cfg.Client,
		publisher:     cfg.Publisher,
		enactor:       cfg.Enactor,
		federatedOnly: cfg.FederatedOnly,
		threshold:     cfg.Threshold,
		shares:        cfg.Shares,
		now:           cfg.Now,
		active:        &activePolicies{policies: make(map[hrac.HRAC]*policy.EnactedPolicy)},
	}

	if a.publisher == nil {
		a.publisher = policy.FederatedPublisher{}
	}

	if a.enactor == nil {
		a.enactor = policy.StandardEnactor{}
	}

	if a.now == nil {
		a.now = time.Now
	}

	return a, nil
}

// WithStrategies returns an Alice sharing this one's keys and active policies but publishing and enacting
// with the given strategies. A nil strategy keeps the current one.
func (a *Alice) WithStrategies(publisher policy.Publisher, enactor policy.Enactor) *Alice {
	clone := *a

	if publisher != nil {
		clone.publisher = publisher
	}

	if enactor != nil {
		clone.enactor = enactor
	}

	return &clone
}

// PublicKeys returns Alice's verifying and encrypting keys.
func (a *Alice) PublicKeys() PublicKeys {
	return a.keys.publicKeys()
}

// Stamp returns Alice's signer.
func (a *Alice) Stamp() *crypto.Signer {
	return a.keys.signer
}

// GetPolicyEncryptingKeyFromLabel returns the key data sources encrypt to for label.
func (a *Alice) GetPolicyEncryptingKeyFromLabel(label []byte) crypto.PublicKey {
	return a.keys.delegatingKey(label).PublicKey()
}

// GenerateKFrags splits the re-encryption key from the label's policy key to bob.
func (a *Alice) GenerateKFrags(bob PublicKeys, label []byte, threshold,
	shares int) (crypto.PublicKey, []*umbral.VerifiedKeyFrag, error) {
	delegating := a.keys.delegatingKey(label)

	kfrags, err := umbral.GenerateKFrags(delegating, bob.EncryptingKey, a.keys.signer, threshold, shares)
	if err != nil {
		return crypto.PublicKey{}, nil, err
	}

	return delegating.PublicKey(), kfrags, nil
}

// CreatePolicy builds, without enacting it, a policy giving bob access to everything under label.
func (a *Alice) CreatePolicy(bob PublicKeys, label []byte, params *GrantParams) (*policy.Policy,
	[]*umbral.VerifiedKeyFrag, error) {
	threshold, shares := params.Threshold, params.Shares

	if threshold == 0 {
		threshold = a.threshold
	}

	if shares == 0 {
		shares = a.shares
	}

	if params.Expiration.IsZero() {
		return nil, nil, ErrMissingExpiration
	}

	if !params.Expiration.After(a.now()) {
		return nil, nil, fmt.Errorf("%w: %s", ErrExpirationInPast, params.Expiration)
	}

	publicKey, kfrags, err := a.GenerateKFrags(bob, label, threshold, shares)
	if err != nil {
		return nil, nil, err
	}

	return &policy.Policy{
		HRAC:                   hrac.Derive(a.keys.signer.VerifyingKey(), bob.VerifyingKey, label),
		Label:                  label,
		Threshold:              threshold,
		Shares:                 shares,
		PublicKey:              publicKey,
		PublisherVerifyingKey:  a.keys.signer.VerifyingKey(),
		RecipientVerifyingKey:  bob.VerifyingKey,
		RecipientEncryptingKey: bob.EncryptingKey,
		Expiration:             params.Expiration,
		Value:                  params.Value,
	}, kfrags, nil
}

// Grant creates a policy for bob under label and places it with nodes: arrangements are proposed, the
// policy is published, and the treasure map is built and encrypted for bob.
func (a *Alice) Grant(ctx context.Context, bob PublicKeys, label []byte,
	params *GrantParams) (*policy.EnactedPolicy, error) {
	p, kfrags, err := a.CreatePolicy(bob, label, params)
	if err != nil {
		return nil, err
	}

	if a.isActive(p.HRAC) {
		return nil, fmt.Errorf("%w: %s", ErrPolicyExists, p.HRAC)
	}

	logger.Debugf("Enacting policy %s with threshold %d of %d", p.HRAC, p.Threshold, p.Shares)

	nodes, err := a.enactor.ProposeArrangements(ctx, p, a.candidates(params.Handpicked), a.client)
	if err != nil {
		return nil, fmt.Errorf("enact policy %s: %w", p.HRAC, err)
	}

	if err := a.publisher.Publish(ctx, p, nodes); err != nil {
		return nil, fmt.Errorf("publish policy %s: %w", p.HRAC, err)
	}

	tm, err := a.enactor.BuildTreasureMap(p, nodes, kfrags, a.keys.signer)
	if err != nil {
		return nil, fmt.Errorf("build treasure map for policy %s: %w", p.HRAC, err)
	}

	encrypted, err := policy.EncryptTreasureMap(tm, bob.EncryptingKey, a.keys.signer)
	if err != nil {
		return nil, fmt.Errorf("encrypt treasure map for policy %s: %w", p.HRAC, err)
	}

	kit, err := policy.NewRevocationKit(tm, a.keys.signer)
	if err != nil {
		return nil, fmt.Errorf("build revocation kit for policy %s: %w", p.HRAC, err)
	}

	enacted := &policy.EnactedPolicy{
		Policy:               p,
		Nodes:                nodes,
		TreasureMap:          tm,
		EncryptedTreasureMap: encrypted,
		RevocationKit:        kit,
	}

	if err := a.addActivePolicy(enacted); err != nil {
		return nil, err
	}

	logger.Infof("Granted policy %s to %s on %d nodes", p.HRAC, bob.VerifyingKey, len(nodes))

	return enacted, nil
}

// Revoke disables the policy with the publisher, unless federated, and sends every node of the policy its
// revocation. Nodes that couldn't be reached or refused are returned with the error they caused.
func (a *Alice) Revoke(ctx context.Context, p *policy.EnactedPolicy) (map[string]error, error) {
	if !a.federatedOnly {
		if err := a.publisher.Revoke(ctx, p.HRAC); err != nil {
			return nil, fmt.Errorf("revoke policy %s with publisher: %w", p.HRAC, err)
		}
	}

	nodes := network.NewNodes(p.Nodes...)
	failed := make(map[string]error)

	for _, revocation := range p.RevocationKit.Revocations() {
		node, ok := nodes[revocation.NodeAddress]
		if !ok {
			failed[revocation.NodeAddress] = ErrUnknownNode

			continue
		}

		if err := a.client.RevokeArrangement(ctx, node, revocation.Bytes()); err != nil {
			logger.Warnf("Node %s didn't accept revocation of policy %s: %s", node.ChecksumAddress, p.HRAC, err)

			failed[revocation.NodeAddress] = err
		}
	}

	return failed, nil
}

// RevokeByLabel revokes the active policy for label and bob. Nodes that no longer know the policy don't
// count as failures. The policy stops being active unless more than shares - threshold + 1 nodes failed.
// It returns the number of failed revocations.
func (a *Alice) RevokeByLabel(ctx context.Context, label []byte, bobVerifyingKey crypto.PublicKey) (int, error) {
	h := hrac.Derive(a.keys.signer.VerifyingKey(), bobVerifyingKey, label)

	p, ok := a.ActivePolicy(h)
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrUnknownPolicy, h)
	}

	failed, err := a.Revoke(ctx, p)
	if err != nil {
		return 0, err
	}

	for address, reason := range failed {
		if errors.Is(reason, network.ErrNodeNotFound) {
			delete(failed, address)
		}
	}

	// TODO: a threshold of unreachable nodes can still re-encrypt; compare against shares - threshold instead.
	if len(failed) <= p.Shares-p.Threshold+1 {
		a.removeActivePolicy(h)
	}

	return len(failed), nil
}

// DecryptMessageKit opens data Alice's own policy key for label was used for.
func (a *Alice) DecryptMessageKit(kit *MessageKit, label []byte) ([]byte, error) {
	sealed, err := umbral.DecryptOriginal(a.keys.delegatingKey(label), kit.Capsule, kit.Ciphertext)
	if err != nil {
		return nil, err
	}

	return openMessage(kit, sealed)
}

// ActivePolicy returns the enacted policy h, if it is still active.
func (a *Alice) ActivePolicy(h hrac.HRAC) (*policy.EnactedPolicy, bool) {
	a.active.mu.Lock()
	defer a.active.mu.Unlock()

	p, ok := a.active.policies[h]

	return p, ok
}

func (a *Alice) isActive(h hrac.HRAC) bool {
	_, ok := a.ActivePolicy(h)

	return ok
}

func (a *Alice) addActivePolicy(p *policy.EnactedPolicy) error {
	a.active.mu.Lock()
	defer a.active.mu.Unlock()

	if _, ok := a.active.policies[p.HRAC]; ok {
		return fmt.Errorf("%w: %s", ErrPolicyExists, p.HRAC)
	}

	a.active.policies[p.HRAC] = p

	return nil
}

func (a *Alice) removeActivePolicy(h hrac.HRAC) {
	a.active.mu.Lock()
	defer a.active.mu.Unlock()

	delete(a.active.policies, h)
}

// candidates lists handpicked nodes first, then the other known nodes in random order.
func (a *Alice) candidates(handpicked []*network.NodeInfo) []*network.NodeInfo {
	seen := make(map[string]struct{}, len(handpicked)+len(a.nodes))
	out := make([]*network.NodeInfo, 0, len(handpicked)+len(a.nodes))

	for _, node := range handpicked {
		if _, dup := seen[node.ChecksumAddress]; !dup {
			seen[node.ChecksumAddress] = struct{}{}
			out = append(out, node)
		}
	}

	rest := make([]*network.NodeInfo, 0, len(a.nodes))

	for _, node := range a.nodes {
		if _, dup := seen[node.ChecksumAddress]; !dup {
			seen[node.ChecksumAddress] = struct{}{}
			rest = append(rest, node)
		}
	}

	rand.Shuffle(len(rest), func(i, j int) { rest[i], rest[j] = rest[j], rest[i] }) //nolint: gosec

	return append(out, rest...)
}
