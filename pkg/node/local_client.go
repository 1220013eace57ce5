/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package node

import (
	"context"
	"fmt"

	"github.com/trustbloc/prenet/pkg/network"
)

const localRemoteAddr = "local"

// LocalClient reaches nodes running in the same process.
type LocalClient struct {
	nodes map[string]*Ursula
}

// NewLocalClient returns a client for the given nodes.
func NewLocalClient(nodes ...*Ursula) *LocalClient {
	c := &LocalClient{nodes: make(map[string]*Ursula, len(nodes))}
	for _, n := range nodes {
		c.nodes[n.ChecksumAddress()] = n
	}

	return c
}

// ConsiderArrangement implements network.Client.
func (c *LocalClient) ConsiderArrangement(ctx context.Context, node *network.NodeInfo,
	arrangement []byte) ([]byte, error) {
	u, err := c.node(node)
	if err != nil {
		return nil, err
	}

	return resultBody(u.ConsiderArrangement(ctx, arrangement))
}

// Reencrypt implements network.Client.
func (c *LocalClient) Reencrypt(ctx context.Context, node *network.NodeInfo, request []byte) ([]byte, error) {
	u, err := c.node(node)
	if err != nil {
		return nil, err
	}

	return resultBody(u.HandleReencryption(ctx, request, localRemoteAddr))
}

// RevokeArrangement implements network.Client.
func (c *LocalClient) RevokeArrangement(ctx context.Context, node *network.NodeInfo, revocation []byte) error {
	u, err := c.node(node)
	if err != nil {
		return err
	}

	_, err = resultBody(u.HandleRevocation(ctx, revocation))

	return err
}

func (c *LocalClient) node(info *network.NodeInfo) (*Ursula, error) {
	u, ok := c.nodes[info.ChecksumAddress]
	if !ok {
		return nil, fmt.Errorf("%w: %s", network.ErrNodeSeemsToBeDown, info.ChecksumAddress)
	}

	return u, nil
}

func resultBody(result *Result) ([]byte, error) {
	if result.Status != StatusOK {
		return nil, &network.UnexpectedResponseError{
			StatusCode: result.Status.HTTPCode(),
			Message:    fmt.Sprintf("%s: %s", result.Reason, result.Message),
		}
	}

	return result.Body, nil
}
