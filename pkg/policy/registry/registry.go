/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package registry keeps the shared record of published policies, the payees of each policy and the
// stake of each node. Nodes consult it to decide whether a policy is paid for and still active, and
// publishers write to it when a policy is granted or revoked. Any aries storage provider can back it,
// so several nodes can share one MongoDB instance.
package registry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/hyperledger/aries-framework-go/spi/storage"
	"github.com/trustbloc/edge-core/pkg/log"

	"github.com/trustbloc/prenet/pkg/hrac"
	"github.com/trustbloc/prenet/pkg/policy"
)

const (
	policyStoreName = "policy_registry"
	stakeStoreName  = "stake_registry"
)

// ErrPolicyExists is returned when a policy is published twice.
var ErrPolicyExists = errors.New("policy already exists")

var logger = log.New("prenet/registry")

// Record is what the registry knows about one policy.
type Record struct {
	HRAC       string    `json:"hrac"`
	Owner      string    `json:"owner"`
	Payees     []string  `json:"payees"`
	Value      uint64    `json:"value"`
	Expiration time.Time `json:"expiration"`
	Disabled   bool      `json:"disabled"`
}

type stakeRecord struct {
	Until time.Time `json:"until"`
}

// Registry is a storage-backed policy and stake registry.
type Registry struct {
	policies storage.Store
	stakes   storage.Store
	now      func() time.Time
	mu       sync.Mutex
}

// Option configures a Registry.
type Option func(r *Registry)

// WithClock replaces the clock used for expiration checks.
func WithClock(now func() time.Time) Option {
	return func(r *Registry) {
		r.now = now
	}
}

// New opens the registry stores on provider.
func New(provider storage.Provider, opts ...Option) (*Registry, error) {
	policies, err := provider.OpenStore(policyStoreName)
	if err != nil {
		return nil, fmt.Errorf("failed to open policy registry store: %w", err)
	}

	stakes, err := provider.OpenStore(stakeStoreName)
	if err != nil {
		return nil, fmt.Errorf("failed to open stake registry store: %w", err)
	}

	r := &Registry{policies: policies, stakes: stakes, now: time.Now}

	for _, opt := range opts {
		opt(r)
	}

	return r, nil
}

// CreatePolicy records a paid policy.
func (r *Registry) CreatePolicy(ctx context.Context, h hrac.HRAC, owner string, payees []string, value uint64,
	expiration time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	_, err := r.policies.Get(h.Base58())
	if err == nil {
		return fmt.Errorf("%w: %s", ErrPolicyExists, h)
	}

	if !errors.Is(err, storage.ErrDataNotFound) {
		return fmt.Errorf("failed to look up policy %s: %w", h, err)
	}

	logger.Infof("Registering policy %s owned by %s with %d payees", h, owner, len(payees))

	return r.put(&Record{
		HRAC:       h.Base58(),
		Owner:      owner,
		Payees:     payees,
		Value:      value,
		Expiration: expiration.UTC(),
	})
}

// RevokePolicy disables a policy.
func (r *Registry) RevokePolicy(ctx context.Context, h hrac.HRAC) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	record, err := r.get(h)
	if err != nil {
		return err
	}

	record.Disabled = true

	logger.Infof("Disabling policy %s", h)

	return r.put(record)
}

// Policy returns the record for h, or policy.ErrUnknownPolicy.
func (r *Registry) Policy(ctx context.Context, h hrac.HRAC) (*Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	return r.get(h)
}

// VerifyPolicyPayment returns nil when the policy exists and nodeAddress is one of its paid payees.
func (r *Registry) VerifyPolicyPayment(ctx context.Context, h hrac.HRAC, nodeAddress string) error {
	record, err := r.Policy(ctx, h)
	if err != nil {
		return err
	}

	if record.Value == 0 {
		return policy.ErrUnpaid
	}

	for _, payee := range record.Payees {
		if payee == nodeAddress {
			return nil
		}
	}

	return policy.ErrUnpaid
}

// VerifyActivePolicy returns nil when the policy is neither disabled nor expired.
func (r *Registry) VerifyActivePolicy(ctx context.Context, h hrac.HRAC) error {
	record, err := r.Policy(ctx, h)
	if err != nil {
		return err
	}

	if record.Disabled {
		return policy.ErrInactive
	}

	if r.now().After(record.Expiration) {
		return policy.ErrExpired
	}

	return nil
}

// SetStake records that nodeAddress is staked until the given time.
func (r *Registry) SetStake(ctx context.Context, nodeAddress string, until time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	b, err := json.Marshal(stakeRecord{Until: until.UTC()})
	if err != nil {
		return fmt.Errorf("failed to marshal stake: %w", err)
	}

	return r.stakes.Put(nodeAddress, b)
}

// StakeCovers returns nil when nodeAddress is staked at least until expiration.
func (r *Registry) StakeCovers(ctx context.Context, nodeAddress string, expiration time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	b, err := r.stakes.Get(nodeAddress)
	if err != nil {
		if errors.Is(err, storage.ErrDataNotFound) {
			return fmt.Errorf("%w: %s has no stake", policy.ErrInsufficientStake, nodeAddress)
		}

		return fmt.Errorf("failed to look up stake for %s: %w", nodeAddress, err)
	}

	var stake stakeRecord
	if err := json.Unmarshal(b, &stake); err != nil {
		return fmt.Errorf("failed to unmarshal stake for %s: %w", nodeAddress, err)
	}

	if stake.Until.Before(expiration) {
		return fmt.Errorf("%w: staked until %s", policy.ErrInsufficientStake, stake.Until.Format(time.RFC3339))
	}

	return nil
}

func (r *Registry) get(h hrac.HRAC) (*Record, error) {
	b, err := r.policies.Get(h.Base58())
	if err != nil {
		if errors.Is(err, storage.ErrDataNotFound) {
			return nil, policy.ErrUnknownPolicy
		}

		return nil, fmt.Errorf("failed to look up policy %s: %w", h, err)
	}

	var record Record
	if err := json.Unmarshal(b, &record); err != nil {
		return nil, fmt.Errorf("failed to unmarshal policy %s: %w", h, err)
	}

	return &record, nil
}

func (r *Registry) put(record *Record) error {
	b, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to marshal policy record: %w", err)
	}

	return r.policies.Put(record.HRAC, b)
}
