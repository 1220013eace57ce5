/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package retrieval holds the re-encryption request and response messages and the recipient side of
// collecting capsule fragments from the nodes of a treasure map.
package retrieval

import (
	"context"
	"errors"
	"fmt"

	"github.com/trustbloc/edge-core/pkg/log"
	"golang.org/x/sync/errgroup"

	"github.com/trustbloc/prenet/pkg/crypto"
	"github.com/trustbloc/prenet/pkg/network"
	"github.com/trustbloc/prenet/pkg/policy"
	"github.com/trustbloc/prenet/pkg/umbral"
)

var logger = log.New("prenet/retrieval")

// ErrNotEnoughFragments is returned when the nodes of a treasure map can't provide a threshold of
// capsule fragments for every capsule.
var ErrNotEnoughFragments = errors.New("not enough capsule fragments")

// Client collects capsule fragments from nodes.
type Client struct {
	network network.Client
	nodes   network.Nodes
}

// NewClient returns a retrieval client that reaches the given nodes through c.
func NewClient(c network.Client, nodes network.Nodes) *Client {
	return &Client{network: c, nodes: nodes}
}

type orderOutcome struct {
	order  *WorkOrder
	cfrags []*umbral.CapsuleFrag
	err    error
}

// RetrieveCFrags asks the treasure map's nodes for capsule fragments until every capsule has a threshold
// of them. Each round sends work orders to as many nodes as fragments are still missing, concurrently.
// It returns the fragments per kit, in kit order.
func (c *Client) RetrieveCFrags(ctx context.Context, tm *policy.TreasureMap, kits []*RetrievalKit,
	aliceVerifyingKey, bobVerifyingKey crypto.PublicKey) ([][]*umbral.CapsuleFrag, error) {
	plan, err := NewPlan(tm, kits)
	if err != nil {
		return nil, err
	}

	capsules := plan.Capsules()
	failures := make(map[string]error)

	for !plan.IsComplete() {
		orders := plan.NextWorkOrders(plan.Missing())
		if len(orders) == 0 {
			break
		}

		outcomes := make([]orderOutcome, len(orders))
		g, gctx := errgroup.WithContext(ctx)

		for i, order := range orders {
			i, order := i, order

			g.Go(func() error {
				cfrags, err := c.reencrypt(gctx, tm, order, capsules, aliceVerifyingKey, bobVerifyingKey)
				outcomes[i] = orderOutcome{order: order, cfrags: cfrags, err: err}

				return ctx.Err()
			})
		}

		if err := g.Wait(); err != nil {
			return nil, err
		}

		for _, outcome := range outcomes {
			if outcome.err != nil {
				logger.Debugf("Node %s failed a work order: %s", outcome.order.Address, outcome.err)
				failures[outcome.order.Address] = outcome.err

				continue
			}

			if err := plan.Update(outcome.order, outcome.cfrags); err != nil {
				failures[outcome.order.Address] = err
			}
		}
	}

	if !plan.IsComplete() {
		return nil, fmt.Errorf("%w: %d more needed, node failures: %v", ErrNotEnoughFragments, plan.Missing(),
			failures)
	}

	return plan.Results(), nil
}

func (c *Client) reencrypt(ctx context.Context, tm *policy.TreasureMap, order *WorkOrder,
	capsules []*umbral.Capsule, aliceVerifyingKey, bobVerifyingKey crypto.PublicKey) ([]*umbral.CapsuleFrag, error) {
	node, ok := c.nodes[order.Address]
	if !ok {
		return nil, fmt.Errorf("%w: %s is not a known node", network.ErrNodeNotFound, order.Address)
	}

	requested := make([]*umbral.Capsule, len(order.CapsuleIndices))
	for i, index := range order.CapsuleIndices {
		requested[i] = capsules[index]
	}

	request := &ReencryptionRequest{
		HRAC:              tm.HRAC,
		AliceVerifyingKey: aliceVerifyingKey,
		BobVerifyingKey:   bobVerifyingKey,
		EncryptedKFrag:    order.EncryptedKFrag,
		Capsules:          requested,
	}

	responseBytes, err := c.network.Reencrypt(ctx, node, request.Bytes())
	if err != nil {
		return nil, err
	}

	response, err := ReencryptionResponseFromBytes(responseBytes)
	if err != nil {
		return nil, err
	}

	if err := response.Verify(requested, node.VerifyingKey); err != nil {
		return nil, fmt.Errorf("invalid response from %s: %w", order.Address, err)
	}

	return response.CFrags, nil
}
