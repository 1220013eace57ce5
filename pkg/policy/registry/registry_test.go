/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package registry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/hyperledger/aries-framework-go/component/storageutil/mem"
	"github.com/hyperledger/aries-framework-go/spi/storage"
	"github.com/stretchr/testify/require"

	"github.com/trustbloc/prenet/pkg/crypto"
	"github.com/trustbloc/prenet/pkg/hrac"
	"github.com/trustbloc/prenet/pkg/network"
	"github.com/trustbloc/prenet/pkg/policy"
)

var now = time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)

func newRegistry(t *testing.T) *Registry {
	t.Helper()

	r, err := New(mem.NewProvider(), WithClock(func() time.Time { return now }))
	require.NoError(t, err)

	return r
}

func randomHRAC() hrac.HRAC {
	return hrac.Derive(crypto.GenerateSecretKey().PublicKey(), crypto.GenerateSecretKey().PublicKey(), []byte("l"))
}

func randomAddress() string {
	return crypto.ChecksumAddress(crypto.GenerateSecretKey().PublicKey())
}

func TestRegistry_Payment(t *testing.T) {
	r := newRegistry(t)
	ctx := context.Background()
	payee := randomAddress()
	h := randomHRAC()

	require.NoError(t, r.CreatePolicy(ctx, h, randomAddress(), []string{payee}, 100, now.Add(time.Hour)))

	t.Run("paid", func(t *testing.T) {
		require.NoError(t, r.VerifyPolicyPayment(ctx, h, payee))
	})
	t.Run("node not among payees", func(t *testing.T) {
		require.Equal(t, policy.ErrUnpaid, r.VerifyPolicyPayment(ctx, h, randomAddress()))
	})
	t.Run("no value", func(t *testing.T) {
		free := randomHRAC()
		require.NoError(t, r.CreatePolicy(ctx, free, randomAddress(), []string{payee}, 0, now.Add(time.Hour)))
		require.Equal(t, policy.ErrUnpaid, r.VerifyPolicyPayment(ctx, free, payee))
	})
	t.Run("unknown", func(t *testing.T) {
		require.Equal(t, policy.ErrUnknownPolicy, r.VerifyPolicyPayment(ctx, randomHRAC(), payee))
	})
	t.Run("duplicate", func(t *testing.T) {
		err := r.CreatePolicy(ctx, h, randomAddress(), nil, 1, now)
		require.True(t, errors.Is(err, ErrPolicyExists))
	})
}

func TestRegistry_Activity(t *testing.T) {
	r := newRegistry(t)
	ctx := context.Background()

	active := randomHRAC()
	expired := randomHRAC()

	require.NoError(t, r.CreatePolicy(ctx, active, randomAddress(), nil, 1, now.Add(time.Hour)))
	require.NoError(t, r.CreatePolicy(ctx, expired, randomAddress(), nil, 1, now.Add(-time.Second)))

	require.NoError(t, r.VerifyActivePolicy(ctx, active))
	require.Equal(t, policy.ErrExpired, r.VerifyActivePolicy(ctx, expired))

	require.NoError(t, r.RevokePolicy(ctx, active))
	require.Equal(t, policy.ErrInactive, r.VerifyActivePolicy(ctx, active))

	record, err := r.Policy(ctx, active)
	require.NoError(t, err)
	require.True(t, record.Disabled)

	require.Equal(t, policy.ErrUnknownPolicy, r.RevokePolicy(ctx, randomHRAC()))
	require.Equal(t, policy.ErrUnknownPolicy, r.VerifyActivePolicy(ctx, randomHRAC()))
}

func TestRegistry_Stake(t *testing.T) {
	r := newRegistry(t)
	ctx := context.Background()
	node := randomAddress()

	err := r.StakeCovers(ctx, node, now)
	require.True(t, errors.Is(err, policy.ErrInsufficientStake))

	require.NoError(t, r.SetStake(ctx, node, now.Add(24*time.Hour)))
	require.NoError(t, r.StakeCovers(ctx, node, now.Add(time.Hour)))

	err = r.StakeCovers(ctx, node, now.Add(48*time.Hour))
	require.True(t, errors.Is(err, policy.ErrInsufficientStake))
}

func TestRegistry_Cancelled(t *testing.T) {
	r := newRegistry(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	require.Equal(t, context.Canceled, r.CreatePolicy(ctx, randomHRAC(), "", nil, 1, now))
	require.Equal(t, context.Canceled, r.VerifyPolicyPayment(ctx, randomHRAC(), ""))
	require.Equal(t, context.Canceled, r.StakeCovers(ctx, "", now))
}

func TestPublisher(t *testing.T) {
	r := newRegistry(t)
	ctx := context.Background()
	publisher := NewPublisher(r)

	owner := crypto.GenerateSecretKey().PublicKey()
	nodes := []*network.NodeInfo{{ChecksumAddress: randomAddress()}, {ChecksumAddress: randomAddress()}}
	p := &policy.Policy{HRAC: randomHRAC(), PublisherVerifyingKey: owner, Value: 10, Expiration: now.Add(time.Hour)}

	require.NoError(t, publisher.Publish(ctx, p, nodes))

	record, err := r.Policy(ctx, p.HRAC)
	require.NoError(t, err)
	require.Equal(t, crypto.ChecksumAddress(owner), record.Owner)
	require.Equal(t, []string{nodes[0].ChecksumAddress, nodes[1].ChecksumAddress}, record.Payees)

	require.NoError(t, r.VerifyPolicyPayment(ctx, p.HRAC, nodes[1].ChecksumAddress))
	require.NoError(t, publisher.Revoke(ctx, p.HRAC))
	require.Equal(t, policy.ErrInactive, r.VerifyActivePolicy(ctx, p.HRAC))
}

type failingProvider struct {
	storage.Provider
	failOn string
}

func (p *failingProvider) OpenStore(name string) (storage.Store, error) {
	if name == p.failOn {
		return nil, errors.New("open failure")
	}

	return p.Provider.OpenStore(name)
}

func TestNew_OpenStoreFailure(t *testing.T) {
	for _, name := range []string{policyStoreName, stakeStoreName} {
		_, err := New(&failingProvider{Provider: mem.NewProvider(), failOn: name})
		require.EqualError(t, err, "failed to open "+map[string]string{
			policyStoreName: "policy registry",
			stakeStoreName:  "stake registry",
		}[name]+" store: open failure")
	}
}
