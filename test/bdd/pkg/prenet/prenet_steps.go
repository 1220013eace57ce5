/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package prenet

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cucumber/godog"

	"github.com/trustbloc/prenet/pkg/characters"
	"github.com/trustbloc/prenet/pkg/node"
	"github.com/trustbloc/prenet/pkg/policy"
	"github.com/trustbloc/prenet/pkg/retrieval"
	"github.com/trustbloc/prenet/test/bdd/pkg/common"
	bddctx "github.com/trustbloc/prenet/test/bdd/pkg/context"
)

const policyDuration = time.Hour

// Steps is steps for re-encryption network BDD tests
type Steps struct {
	bddContext *bddctx.BDDContext
}

// NewSteps returns BDD test steps for a re-encryption network
func NewSteps(ctx *bddctx.BDDContext) *Steps {
	return &Steps{bddContext: ctx}
}

// RegisterSteps registers re-encryption network test steps
func (e *Steps) RegisterSteps(s *godog.Suite) {
	s.Step(`^a network of (\d+) federated nodes$`, e.federatedNetwork)
	s.Step(`^a network of (\d+) staked nodes$`, e.stakedNetwork)
	s.Step(`^Alice and Bob join the network$`, e.charactersJoin)
	s.Step(`^Alice grants Bob access to "([^"]*)" with threshold (\d+) of (\d+)$`, e.grant)
	s.Step(`^Alice fails to grant Bob access to "([^"]*)" with threshold (\d+) of (\d+)$`, e.grantFails)
	s.Step(`^(\d+) nodes hold an arrangement$`, e.nodesHoldArrangements)
	s.Step(`^Enrico encrypts "([^"]*)" under "([^"]*)"$`, e.encrypt)
	s.Step(`^Bob retrieves the messages under "([^"]*)"$`, e.retrieve)
	s.Step(`^Bob reads "([^"]*)"$`, e.bobReads)
	s.Step(`^Bob is refused$`, e.bobIsRefused)
	s.Step(`^node (\d+) goes down$`, e.nodeGoesDown)
	s.Step(`^Alice revokes the policy for "([^"]*)"$`, e.revoke)
	s.Step(`^(\d+) nodes report a revoked policy$`, e.nodesReportRevocations)
}

func (e *Steps) federatedNetwork(count int) error {
	return e.bddContext.StartNetwork(count, true)
}

func (e *Steps) stakedNetwork(count int) error {
	return e.bddContext.StartNetwork(count, false)
}

func (e *Steps) charactersJoin() error {
	infos, err := e.bddContext.NodeInfos()
	if err != nil {
		return fmt.Errorf("learn nodes: %w", err)
	}

	e.bddContext.Alice, err = characters.NewAlice(&characters.AliceConfig{
		Nodes:         infos,
		Client:        e.bddContext.Client,
		Publisher:     e.bddContext.Publisher(),
		FederatedOnly: e.bddContext.Registry == nil,
	})
	if err != nil {
		return err
	}

	e.bddContext.Bob, err = characters.NewBob(&characters.BobConfig{
		Nodes:  infos,
		Client: e.bddContext.Client,
	})

	return err
}

func (e *Steps) doGrant(label string, threshold, shares int) (*policy.EnactedPolicy, error) {
	return e.bddContext.Alice.Grant(context.Background(), e.bddContext.Bob.PublicKeys(), []byte(label),
		&characters.GrantParams{
			Threshold:  threshold,
			Shares:     shares,
			Expiration: time.Now().Add(policyDuration),
			Value:      1,
		})
}

func (e *Steps) grant(label string, threshold, shares int) error {
	enacted, err := e.doGrant(label, threshold, shares)
	if err != nil {
		return fmt.Errorf("grant %q: %w", label, err)
	}

	e.bddContext.Policies[label] = enacted

	return nil
}

func (e *Steps) grantFails(label string, threshold, shares int) error {
	_, err := e.doGrant(label, threshold, shares)
	if !errors.Is(err, policy.ErrNotEnoughNodes) {
		return common.UnexpectedValueError(policy.ErrNotEnoughNodes.Error(), fmt.Sprint(err))
	}

	return nil
}

func (e *Steps) nodesHoldArrangements(expected int) error {
	return e.countNodes("nodes holding an arrangement", expected, func(status *node.NodeStatus) bool {
		return status.Arrangements > 0
	})
}

func (e *Steps) nodesReportRevocations(expected int) error {
	return e.countNodes("nodes with a revoked policy", expected, func(status *node.NodeStatus) bool {
		return status.RevokedPolicies > 0
	})
}

func (e *Steps) countNodes(what string, expected int, match func(*node.NodeStatus) bool) error {
	count := 0

	for _, n := range e.bddContext.Nodes {
		status, err := e.bddContext.Client.Status(context.Background(), n.Server.URL)
		if err != nil {
			return err
		}

		if match(status) {
			count++
		}
	}

	if count != expected {
		return common.UnexpectedCountError(what, expected, count)
	}

	return nil
}

func (e *Steps) encrypt(message, label string) error {
	kit, err := characters.EnricoFromAlice(e.bddContext.Alice, []byte(label)).EncryptMessage([]byte(message))
	if err != nil {
		return err
	}

	e.bddContext.Kits[label] = append(e.bddContext.Kits[label], kit)

	return nil
}

func (e *Steps) retrieve(label string) error {
	enacted, ok := e.bddContext.Policies[label]
	if !ok {
		return fmt.Errorf("no policy was granted for %q", label)
	}

	e.bddContext.Result, e.bddContext.LastErr = e.bddContext.Bob.RetrieveAndDecrypt(context.Background(),
		e.bddContext.Kits[label], e.bddContext.Alice.PublicKeys().VerifyingKey, enacted.EncryptedTreasureMap)

	return nil
}

func (e *Steps) bobReads(expected string) error {
	if e.bddContext.LastErr != nil {
		return fmt.Errorf("retrieval failed: %w", e.bddContext.LastErr)
	}

	for _, plaintext := range e.bddContext.Result {
		if bytes.Equal(plaintext, []byte(expected)) {
			return nil
		}
	}

	return common.UnexpectedValueError(expected, fmt.Sprintf("%q", e.bddContext.Result))
}

func (e *Steps) bobIsRefused() error {
	if !errors.Is(e.bddContext.LastErr, retrieval.ErrNotEnoughFragments) {
		return common.UnexpectedValueError(retrieval.ErrNotEnoughFragments.Error(), fmt.Sprint(e.bddContext.LastErr))
	}

	return nil
}

func (e *Steps) nodeGoesDown(index int) error {
	if index < 1 || index > len(e.bddContext.Nodes) {
		return fmt.Errorf("no node %d in a network of %d", index, len(e.bddContext.Nodes))
	}

	e.bddContext.Nodes[index-1].Server.Close()

	return nil
}

func (e *Steps) revoke(label string) error {
	enacted, ok := e.bddContext.Policies[label]
	if !ok {
		return fmt.Errorf("no policy was granted for %q", label)
	}

	failed, err := e.bddContext.Alice.Revoke(context.Background(), enacted)
	if err != nil {
		return err
	}

	if len(failed) > 0 {
		return fmt.Errorf("%d revocations failed: %v", len(failed), failed)
	}

	return nil
}
