/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package node is the node side of the network: it checks that re-encryption requests are authorized,
// paid for and active before re-encrypting, and it accepts arrangements and revocations from publishers.
package node

import (
	"context"
	"errors"
	"time"

	"github.com/trustbloc/edge-core/pkg/log"

	"github.com/trustbloc/prenet/pkg/crypto"
	"github.com/trustbloc/prenet/pkg/datastore"
	"github.com/trustbloc/prenet/pkg/hrac"
	"github.com/trustbloc/prenet/pkg/network"
)

const defaultOracleTimeout = 5 * time.Second

var logger = log.New("prenet/node")

// PaymentVerifier confirms a policy was paid for with nodeAddress among its payees.
// It returns policy.ErrUnpaid or policy.ErrUnknownPolicy on failure.
type PaymentVerifier interface {
	VerifyPolicyPayment(ctx context.Context, h hrac.HRAC, nodeAddress string) error
}

// ActivityVerifier confirms a policy is still active.
// It returns policy.ErrInactive or policy.ErrExpired on failure.
type ActivityVerifier interface {
	VerifyActivePolicy(ctx context.Context, h hrac.HRAC) error
}

// StakeVerifier confirms a node's stake lasts at least until expiration.
type StakeVerifier interface {
	StakeCovers(ctx context.Context, nodeAddress string, expiration time.Time) error
}

// Config holds everything a node needs. Oracles are only required when FederatedOnly is false.
// OracleTimeout bounds every oracle call and defaults to 5 seconds. Session defaults to a fresh one
// and Now to time.Now.
type Config struct {
	Signer           *crypto.Signer
	Decrypter        *crypto.Decrypter
	Datastore        *datastore.Datastore
	URL              string
	FederatedOnly    bool
	PaymentVerifier  PaymentVerifier
	ActivityVerifier ActivityVerifier
	StakeVerifier    StakeVerifier
	OracleTimeout    time.Duration
	Session          *Session
	Now              func() time.Time
}

// Ursula is a node.
type Ursula struct {
	signer           *crypto.Signer
	decrypter        *crypto.Decrypter
	datastore        *datastore.Datastore
	url              string
	address          string
	federatedOnly    bool
	paymentVerifier  PaymentVerifier
	activityVerifier ActivityVerifier
	stakeVerifier    StakeVerifier
	oracleTimeout    time.Duration
	session          *Session
	now              func() time.Time
}

// New returns a node configured by cfg.
func New(cfg *Config) (*Ursula, error) {
	if cfg.Signer == nil || cfg.Decrypter == nil {
		return nil, errors.New("node requires a signer and a decrypter")
	}

	if cfg.Datastore == nil {
		return nil, errors.New("node requires a datastore")
	}

	if !cfg.FederatedOnly && (cfg.PaymentVerifier == nil || cfg.ActivityVerifier == nil || cfg.StakeVerifier == nil) {
		return nil, errors.New("node requires payment, activity and stake verifiers unless federated only")
	}

	u := &Ursula{
		signer:           cfg.Signer,
		decrypter:        cfg.Decrypter,
		datastore:        cfg.Datastore,
		url:              cfg.URL,
		address:          crypto.ChecksumAddress(cfg.Signer.VerifyingKey()),
		federatedOnly:    cfg.FederatedOnly,
		paymentVerifier:  cfg.PaymentVerifier,
		activityVerifier: cfg.ActivityVerifier,
		stakeVerifier:    cfg.StakeVerifier,
		oracleTimeout:    cfg.OracleTimeout,
		session:          cfg.Session,
		now:              cfg.Now,
	}

	if u.oracleTimeout <= 0 {
		u.oracleTimeout = defaultOracleTimeout
	}

	if u.session == nil {
		u.session = NewSession()
	}

	if u.now == nil {
		u.now = time.Now
	}

	return u, nil
}

// ChecksumAddress returns the node's address.
func (u *Ursula) ChecksumAddress() string {
	return u.address
}

// Session returns the node's shared request state.
func (u *Ursula) Session() *Session {
	return u.session
}

// PublicInformation returns what callers need to reach and verify the node.
func (u *Ursula) PublicInformation() *network.NodeInfo {
	return &network.NodeInfo{
		ChecksumAddress: u.address,
		VerifyingKey:    u.signer.VerifyingKey(),
		EncryptingKey:   u.decrypter.EncryptingKey(),
		URL:             u.url,
	}
}

// NodeStatus summarizes a node's state.
type NodeStatus struct {
	ChecksumAddress string `json:"checksum_address"`
	URL             string `json:"url,omitempty"`
	FederatedOnly   bool   `json:"federated_only"`
	RevokedPolicies int    `json:"revoked_policies"`
	Unauthorized    int    `json:"unauthorized"`
	Freeriders      int    `json:"freeriders"`
	AuditRecords    int    `json:"audit_records"`
	Arrangements    int    `json:"arrangements"`
}

// Status reports the node's counters.
func (u *Ursula) Status() (*NodeStatus, error) {
	audits, err := u.datastore.Count(datastore.ReencryptionRequestKind,
		func() datastore.Record { return &datastore.ReencryptionRequest{} })
	if err != nil {
		return nil, err
	}

	arrangements, err := u.datastore.Count(datastore.PolicyArrangementKind,
		func() datastore.Record { return &datastore.PolicyArrangement{} })
	if err != nil {
		return nil, err
	}

	return &NodeStatus{
		ChecksumAddress: u.address,
		URL:             u.url,
		FederatedOnly:   u.federatedOnly,
		RevokedPolicies: u.session.RevokedPolicies.Len(),
		Unauthorized:    len(u.session.SuspiciousActivities.Unauthorized()),
		Freeriders:      len(u.session.SuspiciousActivities.Freeriders()),
		AuditRecords:    audits,
		Arrangements:    arrangements,
	}, nil
}

// PruneDatastore deletes arrangements that expired before now.
func (u *Ursula) PruneDatastore(now time.Time) (int, error) {
	return u.datastore.PruneExpiredArrangements(now)
}

func (u *Ursula) oracleContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, u.oracleTimeout)
}
