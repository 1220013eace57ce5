/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package context

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"time"

	"github.com/gorilla/mux"
	"github.com/hyperledger/aries-framework-go/component/storageutil/mem"
	"github.com/trustbloc/edge-core/pkg/log"

	"github.com/trustbloc/prenet/pkg/characters"
	"github.com/trustbloc/prenet/pkg/client"
	"github.com/trustbloc/prenet/pkg/crypto"
	"github.com/trustbloc/prenet/pkg/datastore"
	"github.com/trustbloc/prenet/pkg/network"
	"github.com/trustbloc/prenet/pkg/node"
	"github.com/trustbloc/prenet/pkg/policy"
	"github.com/trustbloc/prenet/pkg/policy/registry"
	"github.com/trustbloc/prenet/pkg/restapi"
	"github.com/trustbloc/prenet/pkg/restapi/operation"
)

var logger = log.New("prenet-bdd/context")

const stakeDuration = 24 * time.Hour

// Node is an Ursula served over HTTP on a loopback address.
type Node struct {
	Ursula *node.Ursula
	Server *httptest.Server
}

// BDDContext is the state shared by the steps of a scenario.
type BDDContext struct {
	Client   *client.Client
	Nodes    []*Node
	Registry *registry.Registry
	Alice    *characters.Alice
	Bob      *characters.Bob
	Policies map[string]*policy.EnactedPolicy
	Kits     map[string][]*characters.MessageKit
	Result   [][]byte
	LastErr  error
}

// NewBDDContext returns an empty context talking to nodes with the REST client.
func NewBDDContext() *BDDContext {
	return &BDDContext{
		Client:   client.New(client.WithTimeout(5*time.Second), client.WithMaxRetries(1)),
		Policies: make(map[string]*policy.EnactedPolicy),
		Kits:     make(map[string][]*characters.MessageKit),
	}
}

// StartNetwork stops any running nodes and starts count new ones. Nodes that aren't federated check
// payment, activity and stake against a shared registry.
func (c *BDDContext) StartNetwork(count int, federated bool) error {
	c.Close()

	c.Registry = nil
	c.Alice = nil
	c.Bob = nil
	c.Policies = make(map[string]*policy.EnactedPolicy)
	c.Kits = make(map[string][]*characters.MessageKit)
	c.Result = nil
	c.LastErr = nil

	if !federated {
		reg, err := registry.New(mem.NewProvider())
		if err != nil {
			return fmt.Errorf("create registry: %w", err)
		}

		c.Registry = reg
	}

	for i := 0; i < count; i++ {
		n, err := c.startNode()
		if err != nil {
			return fmt.Errorf("start node %d: %w", i, err)
		}

		c.Nodes = append(c.Nodes, n)
	}

	logger.Infof("Started %d nodes (federated: %t)", count, federated)

	return nil
}

// NodeInfos returns what the network advertises about its nodes, learned over HTTP.
func (c *BDDContext) NodeInfos() ([]*network.NodeInfo, error) {
	infos := make([]*network.NodeInfo, len(c.Nodes))

	for i, n := range c.Nodes {
		info, err := c.Client.PublicInformation(context.Background(), n.Server.URL)
		if err != nil {
			return nil, err
		}

		infos[i] = info
	}

	return infos, nil
}

// Publisher returns the policy publisher matching the network's mode.
func (c *BDDContext) Publisher() policy.Publisher {
	if c.Registry == nil {
		return policy.FederatedPublisher{}
	}

	return registry.NewPublisher(c.Registry)
}

// Close stops every running node.
func (c *BDDContext) Close() {
	for _, n := range c.Nodes {
		n.Server.Close()
	}

	c.Nodes = nil
}

func (c *BDDContext) startNode() (*Node, error) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return nil, err
	}

	ds, err := datastore.New(mem.NewProvider(), 0)
	if err != nil {
		return nil, err
	}

	cfg := &node.Config{
		Signer:        crypto.NewSigner(crypto.GenerateSecretKey()),
		Decrypter:     crypto.NewDecrypter(crypto.GenerateSecretKey()),
		Datastore:     ds,
		URL:           "http://" + listener.Addr().String(),
		FederatedOnly: c.Registry == nil,
	}

	if c.Registry != nil {
		cfg.PaymentVerifier = c.Registry
		cfg.ActivityVerifier = c.Registry
		cfg.StakeVerifier = c.Registry
	}

	ursula, err := node.New(cfg)
	if err != nil {
		return nil, err
	}

	if c.Registry != nil {
		err = c.Registry.SetStake(context.Background(), ursula.ChecksumAddress(), time.Now().Add(stakeDuration))
		if err != nil {
			return nil, err
		}
	}

	nodeService, err := restapi.New(&operation.Config{Node: ursula})
	if err != nil {
		return nil, err
	}

	router := mux.NewRouter()
	router.UseEncodedPath()

	for _, handler := range nodeService.GetOperations() {
		router.HandleFunc(handler.Path(), handler.Handle()).Methods(handler.Method())
	}

	srv := &httptest.Server{Listener: listener, Config: &http.Server{Handler: router}} //nolint:gosec
	srv.Start()

	return &Node{Ursula: ursula, Server: srv}, nil
}
