/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package node

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/hyperledger/aries-framework-go/component/storageutil/mem"
	"github.com/hyperledger/aries-framework-go/spi/storage"
	"github.com/stretchr/testify/require"

	"github.com/trustbloc/prenet/pkg/crypto"
	"github.com/trustbloc/prenet/pkg/datastore"
	"github.com/trustbloc/prenet/pkg/hrac"
	"github.com/trustbloc/prenet/pkg/network"
	"github.com/trustbloc/prenet/pkg/policy"
	"github.com/trustbloc/prenet/pkg/retrieval"
	"github.com/trustbloc/prenet/pkg/umbral"
)

var now = time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)

type oracle struct {
	paymentErr  error
	activityErr error
	stakeErr    error
	block       bool
	calls       int32
}

func (o *oracle) wait(ctx context.Context, err error) error {
	atomic.AddInt32(&o.calls, 1)

	if o.block {
		<-ctx.Done()

		return ctx.Err()
	}

	return err
}

func (o *oracle) VerifyPolicyPayment(ctx context.Context, _ hrac.HRAC, _ string) error {
	return o.wait(ctx, o.paymentErr)
}

func (o *oracle) VerifyActivePolicy(ctx context.Context, _ hrac.HRAC) error {
	return o.wait(ctx, o.activityErr)
}

func (o *oracle) StakeCovers(ctx context.Context, _ string, _ time.Time) error {
	return o.wait(ctx, o.stakeErr)
}

type failingStoreProvider struct {
	storage.Provider
	errPut error
}

func (p *failingStoreProvider) OpenStore(name string) (storage.Store, error) {
	store, err := p.Provider.OpenStore(name)
	if err != nil || p.errPut == nil {
		return store, err
	}

	return &failingPutStore{Store: store, errPut: p.errPut}, nil
}

type failingPutStore struct {
	storage.Store
	errPut error
}

func (s *failingPutStore) Put(string, []byte, ...storage.Tag) error {
	return s.errPut
}

func newNode(t *testing.T, configure func(cfg *Config)) *Ursula {
	t.Helper()

	ds, err := datastore.New(mem.NewProvider(), 0)
	require.NoError(t, err)

	o := &oracle{}
	cfg := &Config{
		Signer:           crypto.NewSigner(crypto.GenerateSecretKey()),
		Decrypter:        crypto.NewDecrypter(crypto.GenerateSecretKey()),
		Datastore:        ds,
		URL:              "http://localhost:9101",
		PaymentVerifier:  o,
		ActivityVerifier: o,
		StakeVerifier:    o,
		Now:              func() time.Time { return now },
	}

	if configure != nil {
		configure(cfg)
	}

	u, err := New(cfg)
	require.NoError(t, err)

	return u
}

type grant struct {
	alice       *crypto.Signer
	delegating  crypto.SecretKey
	bob         *crypto.Decrypter
	bobSigner   *crypto.Signer
	hrac        hrac.HRAC
	nodes       []*Ursula
	kfrags      []*umbral.VerifiedKeyFrag
	treasureMap *policy.TreasureMap
}

func newGrant(t *testing.T, threshold, shares int, configure func(cfg *Config)) *grant {
	t.Helper()

	g := &grant{
		alice:      crypto.NewSigner(crypto.GenerateSecretKey()),
		delegating: crypto.GenerateSecretKey(),
		bob:        crypto.NewDecrypter(crypto.GenerateSecretKey()),
		bobSigner:  crypto.NewSigner(crypto.GenerateSecretKey()),
	}
	g.hrac = hrac.Derive(g.alice.VerifyingKey(), g.bobSigner.VerifyingKey(), []byte("label"))

	var err error

	g.kfrags, err = umbral.GenerateKFrags(g.delegating, g.bob.EncryptingKey(), g.alice, threshold, shares)
	require.NoError(t, err)

	infos := make([]*network.NodeInfo, 0, shares)

	for i := 0; i < shares; i++ {
		u := newNode(t, configure)
		g.nodes = append(g.nodes, u)
		infos = append(infos, u.PublicInformation())
	}

	g.treasureMap, err = policy.ConstructTreasureMap(g.hrac, threshold, infos, g.kfrags, g.alice)
	require.NoError(t, err)

	return g
}

func (g *grant) encrypt(t *testing.T, plaintext string) (*umbral.Capsule, []byte) {
	t.Helper()

	capsule, ciphertext, err := umbral.Encrypt(g.delegating.PublicKey(), []byte(plaintext))
	require.NoError(t, err)

	return capsule, ciphertext
}

func (g *grant) ekfrag(t *testing.T, node int) *crypto.MessageKit {
	t.Helper()

	ekfrag, ok := g.treasureMap.Get(g.nodes[node].ChecksumAddress())
	require.True(t, ok)

	return ekfrag
}

func (g *grant) request(ekfrag *crypto.MessageKit, capsules ...*umbral.Capsule) *retrieval.ReencryptionRequest {
	return &retrieval.ReencryptionRequest{
		HRAC:              g.hrac,
		AliceVerifyingKey: g.alice.VerifyingKey(),
		BobVerifyingKey:   g.bobSigner.VerifyingKey(),
		EncryptedKFrag:    ekfrag,
		Capsules:          capsules,
	}
}

// tamperedWrit authorizes the node's fragment but breaks the writ signature.
func (g *grant) tamperedWrit(t *testing.T, node int) *crypto.MessageKit {
	t.Helper()

	akf, err := policy.ConstructAuthorizedKeyFrag(g.hrac, g.nodes[node].ChecksumAddress(), g.kfrags[node], g.alice)
	require.NoError(t, err)

	akf.WritSignature[0] ^= 0x01

	ekfrag, err := policy.EncryptKeyFrag(akf, g.nodes[node].decrypter.EncryptingKey(), g.alice)
	require.NoError(t, err)

	return ekfrag
}

// malformedAuthorization has the right size but its fragment precursor is not a curve point.
func malformedAuthorization() []byte {
	payload := make([]byte, policy.AuthorizedKeyFragSize)
	payload[hrac.Size+32+crypto.SignatureSize+4+32] = 0x02

	return payload
}

func auditRecords(t *testing.T, u *Ursula) []*datastore.ReencryptionRequest {
	t.Helper()

	var records []*datastore.ReencryptionRequest

	err := u.datastore.Query(datastore.ReencryptionRequestKind,
		func() datastore.Record { return &datastore.ReencryptionRequest{} },
		func(_ string, record datastore.Record) error {
			records = append(records, record.(*datastore.ReencryptionRequest))

			return nil
		})
	require.NoError(t, err)

	return records
}

func TestNew(t *testing.T) {
	ds, err := datastore.New(mem.NewProvider(), 0)
	require.NoError(t, err)

	signer := crypto.NewSigner(crypto.GenerateSecretKey())
	decrypter := crypto.NewDecrypter(crypto.GenerateSecretKey())

	t.Run("missing keys", func(t *testing.T) {
		_, err := New(&Config{Datastore: ds, FederatedOnly: true})
		require.EqualError(t, err, "node requires a signer and a decrypter")
	})
	t.Run("missing datastore", func(t *testing.T) {
		_, err := New(&Config{Signer: signer, Decrypter: decrypter, FederatedOnly: true})
		require.EqualError(t, err, "node requires a datastore")
	})
	t.Run("missing oracles", func(t *testing.T) {
		_, err := New(&Config{Signer: signer, Decrypter: decrypter, Datastore: ds})
		require.Error(t, err)
	})
	t.Run("defaults", func(t *testing.T) {
		u, err := New(&Config{Signer: signer, Decrypter: decrypter, Datastore: ds, FederatedOnly: true})
		require.NoError(t, err)
		require.Equal(t, defaultOracleTimeout, u.oracleTimeout)
		require.NotNil(t, u.Session())
		require.NotNil(t, u.now)
		require.Equal(t, crypto.ChecksumAddress(signer.VerifyingKey()), u.ChecksumAddress())

		info := u.PublicInformation()
		require.True(t, info.VerifyingKey.Equal(signer.VerifyingKey()))
		require.True(t, info.EncryptingKey.Equal(decrypter.EncryptingKey()))
	})
}

func TestHandleReencryption_Success(t *testing.T) {
	g := newGrant(t, 2, 3, nil)
	capsule, ciphertext := g.encrypt(t, "attack at dawn")

	var cfrags []*umbral.CapsuleFrag

	for _, i := range []int{0, 2} {
		result := g.nodes[i].HandleReencryption(context.Background(), g.request(g.ekfrag(t, i), capsule).Bytes(),
			"127.0.0.1")
		require.Equal(t, StatusOK, result.Status, result.Message)
		require.Equal(t, ReasonReencrypted, result.Reason)

		response, err := retrieval.ReencryptionResponseFromBytes(result.Body)
		require.NoError(t, err)
		require.Len(t, response.CFrags, 1)
		require.NoError(t, response.Verify([]*umbral.Capsule{capsule}, g.nodes[i].PublicInformation().VerifyingKey))

		cfrags = append(cfrags, response.CFrags...)

		records := auditRecords(t, g.nodes[i])
		require.Len(t, records, 1)
		require.Equal(t, g.bobSigner.VerifyingKey().String(), records[0].BobVerifyingKey)
		require.Equal(t, g.hrac.Base58(), records[0].HRAC)
		require.Equal(t, 1, records[0].Capsules)
		require.True(t, now.Equal(records[0].Timestamp))
	}

	plaintext, err := umbral.DecryptReencrypted(g.bob.SecretKey(), capsule, cfrags, ciphertext)
	require.NoError(t, err)
	require.Equal(t, "attack at dawn", string(plaintext))

	require.Empty(t, g.nodes[0].Session().SuspiciousActivities.Unauthorized())
	require.Empty(t, g.nodes[0].Session().SuspiciousActivities.Freeriders())
}

func TestHandleReencryption_ResultsFollowCapsuleOrder(t *testing.T) {
	g := newGrant(t, 1, 1, nil)

	var (
		capsules    []*umbral.Capsule
		ciphertexts [][]byte
	)

	for _, pt := range []string{"one", "two", "three"} {
		capsule, ciphertext := g.encrypt(t, pt)
		capsules = append(capsules, capsule)
		ciphertexts = append(ciphertexts, ciphertext)
	}

	result := g.nodes[0].HandleReencryption(context.Background(), g.request(g.ekfrag(t, 0), capsules...).Bytes(), "")
	require.Equal(t, StatusOK, result.Status, result.Message)

	response, err := retrieval.ReencryptionResponseFromBytes(result.Body)
	require.NoError(t, err)
	require.Len(t, response.CFrags, 3)

	for i, want := range []string{"one", "two", "three"} {
		pt, err := umbral.DecryptReencrypted(g.bob.SecretKey(), capsules[i], response.CFrags[i:i+1], ciphertexts[i])
		require.NoError(t, err)
		require.Equal(t, want, string(pt))
	}
}

func TestHandleReencryption_Rejections(t *testing.T) {
	ctx := context.Background()

	t.Run("malformed request", func(t *testing.T) {
		g := newGrant(t, 1, 1, nil)

		result := g.nodes[0].HandleReencryption(ctx, []byte("garbage"), "")
		require.Equal(t, StatusBadRequest, result.Status)
		require.Equal(t, ReasonMalformedRequest, result.Reason)
	})
	t.Run("revoked policy is refused before any verification", func(t *testing.T) {
		g := newGrant(t, 1, 1, nil)
		capsule, _ := g.encrypt(t, "x")
		g.nodes[0].Session().RevokedPolicies.Add(g.hrac)

		result := g.nodes[0].HandleReencryption(ctx, g.request(g.tamperedWrit(t, 0), capsule).Bytes(), "")
		require.Equal(t, StatusUnauthorized, result.Status)
		require.Equal(t, ReasonRevoked, result.Reason)
		require.Empty(t, g.nodes[0].Session().SuspiciousActivities.Unauthorized())
		require.Empty(t, auditRecords(t, g.nodes[0]))
	})
	t.Run("fragment for another node", func(t *testing.T) {
		g := newGrant(t, 2, 2, nil)
		capsule, _ := g.encrypt(t, "x")

		result := g.nodes[1].HandleReencryption(ctx, g.request(g.ekfrag(t, 0), capsule).Bytes(), "")
		require.Equal(t, StatusForbidden, result.Status)
		require.Equal(t, ReasonDecryptionFailed, result.Reason)
		require.Empty(t, g.nodes[1].Session().SuspiciousActivities.Unauthorized())
	})
	t.Run("invalid sender", func(t *testing.T) {
		g := newGrant(t, 1, 1, nil)
		capsule, _ := g.encrypt(t, "x")

		request := g.request(g.ekfrag(t, 0), capsule)
		request.AliceVerifyingKey = crypto.GenerateSecretKey().PublicKey()

		result := g.nodes[0].HandleReencryption(ctx, request.Bytes(), "")
		require.Equal(t, StatusUnauthorized, result.Status)
		require.Equal(t, ReasonInvalidSender, result.Reason)
	})
	t.Run("malformed authorization is logged", func(t *testing.T) {
		g := newGrant(t, 1, 1, nil)
		capsule, _ := g.encrypt(t, "x")

		ekfrag, err := crypto.EncryptAndSign(g.nodes[0].decrypter.EncryptingKey(), malformedAuthorization(), g.alice)
		require.NoError(t, err)

		result := g.nodes[0].HandleReencryption(ctx, g.request(ekfrag, capsule).Bytes(), "10.0.0.1")
		require.Equal(t, StatusBadRequest, result.Status)
		require.Equal(t, ReasonMalformedAuthorization, result.Reason)

		logged := g.nodes[0].Session().SuspiciousActivities.Unauthorized()
		require.Len(t, logged, 1)
		require.Contains(t, logged[0], "[10.0.0.1]")
	})
	t.Run("tampered writ is logged exactly once", func(t *testing.T) {
		g := newGrant(t, 1, 1, nil)
		capsule, _ := g.encrypt(t, "x")

		result := g.nodes[0].HandleReencryption(ctx, g.request(g.tamperedWrit(t, 0), capsule).Bytes(), "")
		require.Equal(t, StatusUnauthorized, result.Status)
		require.Equal(t, ReasonUnauthorizedWorkOrder, result.Reason)
		require.Len(t, g.nodes[0].Session().SuspiciousActivities.Unauthorized(), 1)
		require.Empty(t, g.nodes[0].Session().SuspiciousActivities.Freeriders())
		require.Empty(t, auditRecords(t, g.nodes[0]))
	})
	t.Run("policy identifier doesn't match the authorization", func(t *testing.T) {
		g := newGrant(t, 1, 1, nil)
		capsule, _ := g.encrypt(t, "x")

		request := g.request(g.ekfrag(t, 0), capsule)
		request.HRAC[hrac.Size-1] ^= 0x01

		result := g.nodes[0].HandleReencryption(ctx, request.Bytes(), "")
		require.Equal(t, StatusUnauthorized, result.Status)
		require.Equal(t, ReasonUnauthorizedWorkOrder, result.Reason)
		require.Len(t, g.nodes[0].Session().SuspiciousActivities.Unauthorized(), 1)
	})
}

func TestHandleReencryption_Oracles(t *testing.T) {
	ctx := context.Background()

	run := func(t *testing.T, o *oracle, timeout time.Duration) (*grant, *Result) {
		t.Helper()

		g := newGrant(t, 1, 1, func(cfg *Config) {
			cfg.PaymentVerifier = o
			cfg.ActivityVerifier = o
			cfg.OracleTimeout = timeout
		})
		capsule, _ := g.encrypt(t, "x")

		return g, g.nodes[0].HandleReencryption(ctx, g.request(g.ekfrag(t, 0), capsule).Bytes(), "")
	}

	t.Run("unpaid records the publisher as a freerider", func(t *testing.T) {
		g, result := run(t, &oracle{paymentErr: policy.ErrUnpaid}, 0)
		require.Equal(t, StatusPaymentRequired, result.Status)
		require.Equal(t, ReasonUnpaid, result.Reason)

		freeriders := g.nodes[0].Session().SuspiciousActivities.Freeriders()
		require.Len(t, freeriders, 1)
		require.True(t, freeriders[0].Publisher.Equal(g.alice.VerifyingKey()))
		require.Contains(t, freeriders[0].Message, "is unpaid")
		require.Empty(t, g.nodes[0].Session().SuspiciousActivities.Unauthorized())
	})
	t.Run("unknown policy is not a freerider", func(t *testing.T) {
		g, result := run(t, &oracle{paymentErr: policy.ErrUnknownPolicy}, 0)
		require.Equal(t, StatusNotFound, result.Status)
		require.Equal(t, ReasonUnknownPolicy, result.Reason)
		require.Empty(t, g.nodes[0].Session().SuspiciousActivities.Freeriders())
	})
	t.Run("payment oracle failure", func(t *testing.T) {
		g, result := run(t, &oracle{paymentErr: errors.New("chain unreachable")}, 0)
		require.Equal(t, StatusPaymentRequired, result.Status)
		require.Equal(t, ReasonPaymentUnverified, result.Reason)
		require.Empty(t, g.nodes[0].Session().SuspiciousActivities.Freeriders())
	})
	t.Run("payment oracle timeout", func(t *testing.T) {
		_, result := run(t, &oracle{block: true}, 20*time.Millisecond)
		require.Equal(t, StatusPaymentRequired, result.Status)
		require.Equal(t, ReasonPaymentUnverified, result.Reason)
	})
	t.Run("inactive", func(t *testing.T) {
		_, result := run(t, &oracle{activityErr: policy.ErrInactive}, 0)
		require.Equal(t, StatusForbidden, result.Status)
		require.Equal(t, ReasonInactive, result.Reason)
	})
	t.Run("expired", func(t *testing.T) {
		_, result := run(t, &oracle{activityErr: policy.ErrExpired}, 0)
		require.Equal(t, StatusForbidden, result.Status)
		require.Equal(t, ReasonExpired, result.Reason)
	})
	t.Run("activity oracle failure", func(t *testing.T) {
		_, result := run(t, &oracle{activityErr: errors.New("chain unreachable")}, 0)
		require.Equal(t, StatusForbidden, result.Status)
		require.Equal(t, ReasonActivityUnverified, result.Reason)
	})
	t.Run("federated nodes don't consult oracles", func(t *testing.T) {
		o := &oracle{paymentErr: policy.ErrUnpaid, activityErr: policy.ErrExpired}
		g := newGrant(t, 1, 1, func(cfg *Config) {
			cfg.FederatedOnly = true
			cfg.PaymentVerifier = o
			cfg.ActivityVerifier = o
		})
		capsule, _ := g.encrypt(t, "x")

		result := g.nodes[0].HandleReencryption(ctx, g.request(g.ekfrag(t, 0), capsule).Bytes(), "")
		require.Equal(t, StatusOK, result.Status, result.Message)
		require.Equal(t, int32(0), atomic.LoadInt32(&o.calls))
	})
}

func TestHandleReencryption_AuditFailure(t *testing.T) {
	provider := &failingStoreProvider{Provider: mem.NewProvider()}

	g := newGrant(t, 1, 1, func(cfg *Config) {
		ds, err := datastore.New(provider, 0)
		require.NoError(t, err)

		cfg.Datastore = ds
	})
	capsule, _ := g.encrypt(t, "x")

	provider.errPut = errors.New("disk full")

	result := g.nodes[0].HandleReencryption(context.Background(), g.request(g.ekfrag(t, 0), capsule).Bytes(), "")
	require.Equal(t, StatusInternalError, result.Status)
	require.Equal(t, ReasonAuditFailed, result.Reason)
	require.Nil(t, result.Body)
}

func TestHandleReencryption_Concurrent(t *testing.T) {
	g := newGrant(t, 1, 1, nil)
	u := g.nodes[0]

	const requests = 20

	valid := g.request(g.ekfrag(t, 0))
	tampered := g.request(g.tamperedWrit(t, 0))

	capsules := make([]*umbral.Capsule, requests)
	for i := range capsules {
		capsules[i], _ = g.encrypt(t, "x")
	}

	results := make([]*Result, requests)

	var wg sync.WaitGroup

	for i := 0; i < requests; i++ {
		wg.Add(1)

		go func(i int) {
			defer wg.Done()

			request := *valid
			if i%2 == 1 {
				request = *tampered
			}

			request.Capsules = []*umbral.Capsule{capsules[i]}
			results[i] = u.HandleReencryption(context.Background(), request.Bytes(), "")
		}(i)
	}

	wg.Wait()

	for i, result := range results {
		if i%2 == 1 {
			require.Equal(t, StatusUnauthorized, result.Status)
		} else {
			require.Equal(t, StatusOK, result.Status, result.Message)
		}
	}

	require.Len(t, u.Session().SuspiciousActivities.Unauthorized(), requests/2)
	require.Len(t, auditRecords(t, u), requests/2)
}

func TestVerifyKFragAuthorization(t *testing.T) {
	g := newGrant(t, 1, 1, nil)
	u := g.nodes[0]

	akf, err := policy.ConstructAuthorizedKeyFrag(g.hrac, u.ChecksumAddress(), g.kfrags[0], g.alice)
	require.NoError(t, err)

	t.Run("authorized", func(t *testing.T) {
		vkfrag, err := u.VerifyKFragAuthorization(g.hrac, g.alice.VerifyingKey(), g.alice.VerifyingKey(), akf)
		require.NoError(t, err)
		require.Equal(t, g.kfrags[0].Bytes(), vkfrag.Bytes())
	})
	t.Run("wrong publisher", func(t *testing.T) {
		_, err := u.VerifyKFragAuthorization(g.hrac, g.alice.VerifyingKey(), crypto.GenerateSecretKey().PublicKey(), akf)
		require.True(t, errors.Is(err, policy.ErrUnauthorized))
	})
	t.Run("wrong policy", func(t *testing.T) {
		other := hrac.Derive(g.alice.VerifyingKey(), g.bobSigner.VerifyingKey(), []byte("other"))
		_, err := u.VerifyKFragAuthorization(other, g.alice.VerifyingKey(), g.alice.VerifyingKey(), akf)
		require.True(t, errors.Is(err, policy.ErrUnauthorized))
	})
	t.Run("fragment from another author", func(t *testing.T) {
		_, err := u.VerifyKFragAuthorization(g.hrac, crypto.GenerateSecretKey().PublicKey(), g.alice.VerifyingKey(), akf)
		require.True(t, errors.Is(err, policy.ErrUnauthorized))
	})
	t.Run("issued to another node", func(t *testing.T) {
		other := newNode(t, nil)
		_, err := other.VerifyKFragAuthorization(g.hrac, g.alice.VerifyingKey(), g.alice.VerifyingKey(), akf)
		require.True(t, errors.Is(err, policy.ErrUnauthorized))
	})
	t.Run("revoked", func(t *testing.T) {
		u.Session().RevokedPolicies.Add(g.hrac)
		_, err := u.VerifyKFragAuthorization(g.hrac, g.alice.VerifyingKey(), g.alice.VerifyingKey(), akf)
		require.True(t, errors.Is(err, policy.ErrUnauthorized))
	})
}

func TestConsiderArrangement(t *testing.T) {
	ctx := context.Background()
	publisher := crypto.NewSigner(crypto.GenerateSecretKey())
	h := hrac.Derive(publisher.VerifyingKey(), crypto.GenerateSecretKey().PublicKey(), []byte("label"))
	arrangement := &policy.Arrangement{PublisherVerifyingKey: publisher.VerifyingKey(), HRAC: h,
		Expiration: now.Add(time.Hour)}

	t.Run("accepted and recorded", func(t *testing.T) {
		u := newNode(t, nil)

		result := u.ConsiderArrangement(ctx, arrangement.Bytes())
		require.Equal(t, StatusOK, result.Status, result.Message)
		require.Equal(t, ReasonAccepted, result.Reason)

		sig, err := crypto.SignatureFromBytes(result.Body)
		require.NoError(t, err)
		require.NoError(t, sig.Verify(arrangement.Bytes(), u.PublicInformation().VerifyingKey))

		record := &datastore.PolicyArrangement{}
		require.NoError(t, u.datastore.Describe(record, h.Base58(), false, func() error { return nil }))
		require.Equal(t, publisher.VerifyingKey().String(), record.PublisherVerifyingKey)
		require.Equal(t, sig.String(), record.NodeSignature)
		require.True(t, arrangement.Expiration.Equal(record.Expiration))
	})
	t.Run("stake doesn't cover the arrangement", func(t *testing.T) {
		u := newNode(t, func(cfg *Config) { cfg.StakeVerifier = &oracle{stakeErr: policy.ErrInsufficientStake} })

		result := u.ConsiderArrangement(ctx, arrangement.Bytes())
		require.Equal(t, StatusForbidden, result.Status)
		require.Equal(t, ReasonInsufficientStake, result.Reason)
	})
	t.Run("stake oracle failure", func(t *testing.T) {
		u := newNode(t, func(cfg *Config) { cfg.StakeVerifier = &oracle{stakeErr: errors.New("unreachable")} })

		result := u.ConsiderArrangement(ctx, arrangement.Bytes())
		require.Equal(t, StatusForbidden, result.Status)
	})
	t.Run("federated nodes don't check stake", func(t *testing.T) {
		u := newNode(t, func(cfg *Config) {
			cfg.FederatedOnly = true
			cfg.StakeVerifier = &oracle{stakeErr: policy.ErrInsufficientStake}
		})

		require.Equal(t, StatusOK, u.ConsiderArrangement(ctx, arrangement.Bytes()).Status)
	})
	t.Run("expired", func(t *testing.T) {
		u := newNode(t, nil)
		expired := *arrangement
		expired.Expiration = now.Add(-time.Hour)

		result := u.ConsiderArrangement(ctx, expired.Bytes())
		require.Equal(t, StatusForbidden, result.Status)
		require.Equal(t, ReasonExpired, result.Reason)
	})
	t.Run("malformed", func(t *testing.T) {
		result := newNode(t, nil).ConsiderArrangement(ctx, []byte("short"))
		require.Equal(t, StatusBadRequest, result.Status)
	})
}

func TestHandleRevocation(t *testing.T) {
	ctx := context.Background()

	t.Run("revoked policies are refused afterwards", func(t *testing.T) {
		g := newGrant(t, 2, 2, nil)
		u := g.nodes[0]
		arrangement := &policy.Arrangement{PublisherVerifyingKey: g.alice.VerifyingKey(), HRAC: g.hrac,
			Expiration: now.Add(time.Hour)}
		require.Equal(t, StatusOK, u.ConsiderArrangement(ctx, arrangement.Bytes()).Status)

		capsule, _ := g.encrypt(t, "x")
		request := g.request(g.ekfrag(t, 0), capsule).Bytes()
		require.Equal(t, StatusOK, u.HandleReencryption(ctx, request, "").Status)

		kit, err := policy.NewRevocationKit(g.treasureMap, g.alice)
		require.NoError(t, err)

		revocation, ok := kit.Get(u.ChecksumAddress())
		require.True(t, ok)

		result := u.HandleRevocation(ctx, revocation.Bytes())
		require.Equal(t, StatusOK, result.Status, result.Message)
		require.True(t, u.Session().RevokedPolicies.Contains(g.hrac))

		status, err := u.Status()
		require.NoError(t, err)
		require.Equal(t, 0, status.Arrangements)
		require.Equal(t, 1, status.RevokedPolicies)

		replayed := u.HandleReencryption(ctx, request, "")
		require.Equal(t, StatusUnauthorized, replayed.Status)
		require.Equal(t, ReasonRevoked, replayed.Reason)
		require.Empty(t, u.Session().SuspiciousActivities.Unauthorized())

		other := g.nodes[1].HandleReencryption(ctx, g.request(g.ekfrag(t, 1), capsule).Bytes(), "")
		require.Equal(t, StatusOK, other.Status)
	})
	t.Run("misaddressed", func(t *testing.T) {
		g := newGrant(t, 2, 2, nil)
		kit, err := policy.NewRevocationKit(g.treasureMap, g.alice)
		require.NoError(t, err)

		revocation, _ := kit.Get(g.nodes[1].ChecksumAddress())

		result := g.nodes[0].HandleRevocation(ctx, revocation.Bytes())
		require.Equal(t, StatusForbidden, result.Status)
		require.Equal(t, ReasonMisaddressed, result.Reason)
		require.False(t, g.nodes[0].Session().RevokedPolicies.Contains(g.hrac))
	})
	t.Run("forged signature", func(t *testing.T) {
		g := newGrant(t, 1, 1, nil)
		u := g.nodes[0]

		revocation, err := policy.NewRevocation(u.ChecksumAddress(), g.ekfrag(t, 0),
			crypto.NewSigner(crypto.GenerateSecretKey()), nil)
		require.NoError(t, err)

		result := u.HandleRevocation(ctx, revocation.Bytes())
		require.Equal(t, StatusUnauthorized, result.Status)
		require.Equal(t, ReasonInvalidSender, result.Reason)
		require.False(t, u.Session().RevokedPolicies.Contains(g.hrac))
	})
	t.Run("authorization from another publisher", func(t *testing.T) {
		g := newGrant(t, 1, 1, nil)
		u := g.nodes[0]
		mallory := crypto.NewSigner(crypto.GenerateSecretKey())

		payload, err := u.decrypter.DecryptFrom(g.ekfrag(t, 0), g.alice.VerifyingKey())
		require.NoError(t, err)

		rewrapped, err := crypto.EncryptAndSign(u.decrypter.EncryptingKey(), payload, mallory)
		require.NoError(t, err)

		revocation, err := policy.NewRevocation(u.ChecksumAddress(), rewrapped, mallory, nil)
		require.NoError(t, err)

		result := u.HandleRevocation(ctx, revocation.Bytes())
		require.Equal(t, StatusUnauthorized, result.Status)
		require.Equal(t, ReasonUnauthorizedWorkOrder, result.Reason)
		require.False(t, u.Session().RevokedPolicies.Contains(g.hrac))
	})
	t.Run("malformed", func(t *testing.T) {
		result := newNode(t, nil).HandleRevocation(ctx, []byte(policy.RevocationPrefix))
		require.Equal(t, StatusBadRequest, result.Status)
	})
}

func TestStatusAndPrune(t *testing.T) {
	u := newNode(t, nil)
	publisher := crypto.GenerateSecretKey().PublicKey()

	for i, expiration := range []time.Time{now.Add(time.Hour), now.Add(3 * time.Hour)} {
		h := hrac.Derive(publisher, crypto.GenerateSecretKey().PublicKey(), []byte{byte(i)})
		arrangement := &policy.Arrangement{PublisherVerifyingKey: publisher, HRAC: h, Expiration: expiration}
		require.Equal(t, StatusOK, u.ConsiderArrangement(context.Background(), arrangement.Bytes()).Status)
	}

	u.Session().SuspiciousActivities.LogUnauthorized("one")
	u.Session().SuspiciousActivities.LogFreerider(publisher, "two")

	status, err := u.Status()
	require.NoError(t, err)
	require.Equal(t, &NodeStatus{
		ChecksumAddress: u.ChecksumAddress(),
		URL:             "http://localhost:9101",
		Unauthorized:    1,
		Freeriders:      1,
		Arrangements:    2,
	}, status)

	pruned, err := u.PruneDatastore(now.Add(2 * time.Hour))
	require.NoError(t, err)
	require.Equal(t, 1, pruned)

	status, err = u.Status()
	require.NoError(t, err)
	require.Equal(t, 1, status.Arrangements)
}

func TestStatusCodes(t *testing.T) {
	for status, code := range map[Status]int{
		StatusOK:              http.StatusOK,
		StatusBadRequest:      http.StatusBadRequest,
		StatusUnauthorized:    http.StatusUnauthorized,
		StatusPaymentRequired: http.StatusPaymentRequired,
		StatusForbidden:       http.StatusForbidden,
		StatusNotFound:        http.StatusNotFound,
		StatusInternalError:   http.StatusInternalServerError,
	} {
		require.Equal(t, code, status.HTTPCode())
		require.Equal(t, http.StatusText(code), status.String())
	}
}

func TestLocalClient(t *testing.T) {
	ctx := context.Background()
	g := newGrant(t, 1, 1, func(cfg *Config) { cfg.PaymentVerifier = &oracle{paymentErr: policy.ErrUnknownPolicy} })
	client := NewLocalClient(g.nodes...)
	info := g.nodes[0].PublicInformation()

	t.Run("unknown node", func(t *testing.T) {
		_, err := client.Reencrypt(ctx, &network.NodeInfo{ChecksumAddress: "0x0"}, nil)
		require.True(t, errors.Is(err, network.ErrNodeSeemsToBeDown))

		require.True(t, errors.Is(client.RevokeArrangement(ctx, &network.NodeInfo{}, nil), network.ErrNodeSeemsToBeDown))

		_, err = client.ConsiderArrangement(ctx, &network.NodeInfo{}, nil)
		require.True(t, errors.Is(err, network.ErrNodeSeemsToBeDown))
	})
	t.Run("rejections carry the status", func(t *testing.T) {
		capsule, _ := g.encrypt(t, "x")

		_, err := client.Reencrypt(ctx, info, g.request(g.ekfrag(t, 0), capsule).Bytes())
		require.True(t, errors.Is(err, network.ErrNodeNotFound))
		require.Equal(t, http.StatusNotFound, network.StatusCode(err))

		err = client.RevokeArrangement(ctx, info, []byte("bad"))
		require.Equal(t, http.StatusBadRequest, network.StatusCode(err))
	})
	t.Run("arrangement", func(t *testing.T) {
		arrangement := &policy.Arrangement{PublisherVerifyingKey: g.alice.VerifyingKey(), HRAC: g.hrac,
			Expiration: now.Add(time.Hour)}

		body, err := client.ConsiderArrangement(ctx, info, arrangement.Bytes())
		require.NoError(t, err)
		require.Len(t, body, crypto.SignatureSize)
	})
}
