/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package network describes how characters reach nodes. It holds the node metadata callers are
// configured with and the transport contract that the HTTP client and the in-process client implement.
package network

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/trustbloc/prenet/pkg/crypto"
)

// ErrNodeNotFound is returned when a node answers that the requested resource doesn't exist.
var ErrNodeNotFound = errors.New("node returned not found")

// ErrNodeSeemsToBeDown is returned when a node can't be reached at all.
var ErrNodeSeemsToBeDown = errors.New("node seems to be down")

// UnexpectedResponseError is returned when a node answers with a non-success status.
type UnexpectedResponseError struct {
	StatusCode int
	Message    string
}

func (e *UnexpectedResponseError) Error() string {
	return fmt.Sprintf("node returned status code %d: %s", e.StatusCode, e.Message)
}

// Is reports a 404 answer as ErrNodeNotFound.
func (e *UnexpectedResponseError) Is(target error) bool {
	return target == ErrNodeNotFound && e.StatusCode == http.StatusNotFound
}

// StatusCode extracts the status code of an UnexpectedResponseError, or 0.
func StatusCode(err error) int {
	var unexpected *UnexpectedResponseError
	if errors.As(err, &unexpected) {
		return unexpected.StatusCode
	}

	return 0
}

// NodeInfo is what a character needs to know about a node to talk to it.
type NodeInfo struct {
	ChecksumAddress string           `json:"checksum_address"`
	VerifyingKey    crypto.PublicKey `json:"verifying_key"`
	EncryptingKey   crypto.PublicKey `json:"encrypting_key"`
	URL             string           `json:"url,omitempty"`
}

// Client carries serialized protocol messages to nodes.
type Client interface {
	ConsiderArrangement(ctx context.Context, node *NodeInfo, arrangement []byte) ([]byte, error)
	Reencrypt(ctx context.Context, node *NodeInfo, request []byte) ([]byte, error)
	RevokeArrangement(ctx context.Context, node *NodeInfo, revocation []byte) error
}

// Nodes indexes known nodes by checksum address.
type Nodes map[string]*NodeInfo

// NewNodes indexes the given nodes.
func NewNodes(nodes ...*NodeInfo) Nodes {
	n := make(Nodes, len(nodes))
	for _, node := range nodes {
		n[node.ChecksumAddress] = node
	}

	return n
}
