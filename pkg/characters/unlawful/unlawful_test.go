/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package unlawful

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/hyperledger/aries-framework-go/component/storageutil/mem"
	"github.com/stretchr/testify/require"

	"github.com/trustbloc/prenet/pkg/characters"
	"github.com/trustbloc/prenet/pkg/crypto"
	"github.com/trustbloc/prenet/pkg/datastore"
	"github.com/trustbloc/prenet/pkg/network"
	"github.com/trustbloc/prenet/pkg/node"
	"github.com/trustbloc/prenet/pkg/policy"
	"github.com/trustbloc/prenet/pkg/policy/registry"
	"github.com/trustbloc/prenet/pkg/retrieval"
	"github.com/trustbloc/prenet/pkg/umbral"
)

type testNetwork struct {
	nodes      []*node.Ursula
	decrypters []*crypto.Decrypter
	infos      []*network.NodeInfo
	local      *node.LocalClient
}

// newTestNetwork starts n nodes. With a registry they check payment and activity, and are staked only when
// staked is set.
func newTestNetwork(t *testing.T, n int, reg *registry.Registry, staked bool) *testNetwork {
	t.Helper()

	tn := &testNetwork{}

	for i := 0; i < n; i++ {
		cfg := &node.Config{
			Signer:        crypto.NewSigner(crypto.GenerateSecretKey()),
			Decrypter:     crypto.NewDecrypter(crypto.GenerateSecretKey()),
			Datastore:     newDatastore(t),
			URL:           fmt.Sprintf("http://node-%d", i),
			FederatedOnly: reg == nil,
		}

		if reg != nil {
			cfg.PaymentVerifier = reg
			cfg.ActivityVerifier = reg
			cfg.StakeVerifier = reg
		}

		ursula, err := node.New(cfg)
		require.NoError(t, err)

		if reg != nil && staked {
			require.NoError(t, reg.SetStake(context.Background(), ursula.ChecksumAddress(),
				time.Now().Add(24*time.Hour)))
		}

		tn.nodes = append(tn.nodes, ursula)
		tn.decrypters = append(tn.decrypters, cfg.Decrypter)
		tn.infos = append(tn.infos, ursula.PublicInformation())
	}

	tn.local = node.NewLocalClient(tn.nodes...)

	return tn
}

func newDatastore(t *testing.T) *datastore.Datastore {
	t.Helper()

	ds, err := datastore.New(mem.NewProvider(), 0)
	require.NoError(t, err)

	return ds
}

func newRegistry(t *testing.T) *registry.Registry {
	t.Helper()

	reg, err := registry.New(mem.NewProvider())
	require.NoError(t, err)

	return reg
}

func newAlice(t *testing.T, tn *testNetwork, client network.Client, reg *registry.Registry) *characters.Alice {
	t.Helper()

	cfg := &characters.AliceConfig{
		Nodes:         tn.infos,
		Client:        client,
		FederatedOnly: reg == nil,
		Threshold:     2,
		Shares:        3,
	}

	if reg != nil {
		cfg.Publisher = registry.NewPublisher(reg)
	}

	alice, err := characters.NewAlice(cfg)
	require.NoError(t, err)

	return alice
}

func newBob(t *testing.T, tn *testNetwork, client network.Client, seed []byte) *characters.Bob {
	t.Helper()

	bob, err := characters.NewBob(&characters.BobConfig{Seed: seed, Nodes: tn.infos, Client: client})
	require.NoError(t, err)

	return bob
}

func grantParams() *characters.GrantParams {
	return &characters.GrantParams{Expiration: time.Now().Add(time.Hour), Value: 1}
}

// workOrder builds the request bob would send to info for one fresh capsule under the policy.
func workOrder(t *testing.T, enacted *policy.EnactedPolicy, alice, bob crypto.PublicKey,
	info *network.NodeInfo) []byte {
	t.Helper()

	ekfrag, ok := enacted.TreasureMap.Get(info.ChecksumAddress)
	require.True(t, ok)

	capsule, _, err := umbral.Encrypt(enacted.PublicKey, []byte("data"))
	require.NoError(t, err)

	request := &retrieval.ReencryptionRequest{
		HRAC:              enacted.HRAC,
		AliceVerifyingKey: alice,
		BobVerifyingKey:   bob,
		EncryptedKFrag:    ekfrag,
		Capsules:          []*umbral.Capsule{capsule},
	}

	return request.Bytes()
}

func requireRefusal(t *testing.T, err error, statusCode int, reason node.Reason) {
	t.Helper()

	require.Error(t, err)
	require.Equal(t, statusCode, network.StatusCode(err))
	require.Contains(t, err.Error(), string(reason))
}

func TestAmonia_GrantWithoutPaying(t *testing.T) {
	reg := newRegistry(t)
	tn := newTestNetwork(t, 3, reg, true)
	amonia := NewAmonia(newAlice(t, tn, tn.local, reg), reg)
	bob := newBob(t, tn, tn.local, nil)

	enacted, err := amonia.GrantWithoutPaying(context.Background(), bob.PublicKeys(), []byte("free"), grantParams())
	require.NoError(t, err)

	_, err = reg.Policy(context.Background(), enacted.HRAC)
	require.True(t, errors.Is(err, policy.ErrUnknownPolicy))

	for _, info := range enacted.Nodes {
		_, err := tn.local.Reencrypt(context.Background(), info,
			workOrder(t, enacted, amonia.PublicKeys().VerifyingKey, bob.PublicKeys().VerifyingKey, info))
		requireRefusal(t, err, http.StatusNotFound, node.ReasonUnknownPolicy)
	}

	kit, err := characters.EnricoFromAlice(amonia.Alice, []byte("free")).EncryptMessage([]byte("for free"))
	require.NoError(t, err)

	_, err = bob.RetrieveAndDecrypt(context.Background(), []*characters.MessageKit{kit},
		amonia.PublicKeys().VerifyingKey, enacted.EncryptedTreasureMap)
	require.True(t, errors.Is(err, retrieval.ErrNotEnoughFragments))
}

func TestAmonia_CircumventSafeguardsAndGrantWithoutPaying(t *testing.T) {
	reg := newRegistry(t)
	tn := newTestNetwork(t, 3, reg, false)
	alice := newAlice(t, tn, tn.local, reg)
	amonia := NewAmonia(alice, reg)
	bob := newBob(t, tn, tn.local, nil).PublicKeys()

	t.Run("Unstaked nodes refuse a lawful grant", func(t *testing.T) {
		_, err := alice.Grant(context.Background(), bob, []byte("lawful"), grantParams())
		require.True(t, errors.Is(err, policy.ErrNotEnoughNodes))
	})
	t.Run("Rammed policy is still refused", func(t *testing.T) {
		enacted, err := amonia.CircumventSafeguardsAndGrantWithoutPaying(context.Background(), bob,
			[]byte("rammed"), grantParams())
		require.NoError(t, err)
		require.Len(t, enacted.Nodes, 3)

		for _, info := range enacted.Nodes {
			_, err := tn.local.Reencrypt(context.Background(), info,
				workOrder(t, enacted, amonia.PublicKeys().VerifyingKey, bob.VerifyingKey, info))
			requireRefusal(t, err, http.StatusNotFound, node.ReasonUnknownPolicy)
		}
	})
	t.Run("Not enough candidates to ram", func(t *testing.T) {
		params := grantParams()
		params.Shares = 4

		_, err := amonia.CircumventSafeguardsAndGrantWithoutPaying(context.Background(), bob, []byte("too many"),
			params)
		require.True(t, errors.Is(err, policy.ErrNotEnoughNodes))
	})
}

func TestAmonia_GrantWhilePayingTheWrongNodes(t *testing.T) {
	reg := newRegistry(t)
	tn := newTestNetwork(t, 5, reg, true)
	amonia := NewAmonia(newAlice(t, tn, tn.local, reg), reg)
	bob := newBob(t, tn, tn.local, nil).PublicKeys()

	trickInto := tn.infos[:3]
	payInstead := tn.infos[3:]

	enacted, err := amonia.GrantWhilePayingTheWrongNodes(context.Background(), trickInto, payInstead, bob,
		[]byte("wrong payees"), grantParams())
	require.NoError(t, err)
	require.Equal(t, trickInto, enacted.Nodes)

	record, err := reg.Policy(context.Background(), enacted.HRAC)
	require.NoError(t, err)
	require.Equal(t, []string{tn.infos[3].ChecksumAddress, tn.infos[4].ChecksumAddress}, record.Payees)

	for i, info := range trickInto {
		_, err := tn.local.Reencrypt(context.Background(), info,
			workOrder(t, enacted, amonia.PublicKeys().VerifyingKey, bob.VerifyingKey, info))
		requireRefusal(t, err, http.StatusPaymentRequired, node.ReasonUnpaid)

		freeriders := tn.nodes[i].Session().SuspiciousActivities.Freeriders()
		require.Len(t, freeriders, 1)
		require.True(t, freeriders[0].Publisher.Equal(amonia.PublicKeys().VerifyingKey))
	}
}

func TestAmonia_UseUrsulaAsAnInvoluntaryCDN(t *testing.T) {
	reg := newRegistry(t)
	tn := newTestNetwork(t, 3, reg, true)
	amonia := NewAmonia(newAlice(t, tn, tn.local, reg), reg)
	bob := newBob(t, tn, tn.local, nil).PublicKeys()

	enacted, err := amonia.Grant(context.Background(), bob, []byte("paid once"), grantParams())
	require.NoError(t, err)

	sucker := enacted.Nodes[0]

	answers := amonia.UseUrsulaAsAnInvoluntaryCDN(context.Background(), enacted, bob, sucker, tn.local)
	require.Len(t, answers, cdnSegments)

	for _, err := range answers {
		requireRefusal(t, err, http.StatusUnauthorized, node.ReasonUnauthorizedWorkOrder)
	}

	var suckerNode *node.Ursula

	for _, ursula := range tn.nodes {
		if ursula.ChecksumAddress() == sucker.ChecksumAddress {
			suckerNode = ursula
		}
	}

	require.NotNil(t, suckerNode)
	require.Len(t, suckerNode.Session().SuspiciousActivities.Unauthorized(), cdnSegments)

	t.Run("Node outside the policy", func(t *testing.T) {
		stranger := &network.NodeInfo{ChecksumAddress: crypto.ChecksumAddress(crypto.GenerateSecretKey().PublicKey())}

		answers := amonia.UseUrsulaAsAnInvoluntaryCDN(context.Background(), enacted, bob, stranger, tn.local)
		require.Len(t, answers, 1)
		require.True(t, errors.Is(answers[0], characters.ErrUnknownNode))
	})
}

func TestVladimir(t *testing.T) {
	tn := newTestNetwork(t, 3, nil, false)
	alice := newAlice(t, tn, tn.local, nil)
	bob := newBob(t, tn, tn.local, []byte("bob"))
	label := []byte("impersonated")

	enacted, err := alice.Grant(context.Background(), bob.PublicKeys(), label, grantParams())
	require.NoError(t, err)

	target := enacted.Nodes[0]

	targetIndex := -1

	for i, info := range tn.infos {
		if info.ChecksumAddress == target.ChecksumAddress {
			targetIndex = i
		}
	}

	require.NotEqual(t, -1, targetIndex)

	request := workOrder(t, enacted, alice.PublicKeys().VerifyingKey, bob.PublicKeys().VerifyingKey, target)

	t.Run("Claims the target's identity", func(t *testing.T) {
		vladimir, err := FromTargetUrsula(target, newDatastore(t))
		require.NoError(t, err)
		require.Equal(t, target, vladimir.PublicInformation())
		require.NotEqual(t, target.ChecksumAddress, vladimir.ChecksumAddress())
	})
	t.Run("Can't open the target's authorizations", func(t *testing.T) {
		vladimir, err := FromTargetUrsula(target, newDatastore(t))
		require.NoError(t, err)

		_, err = vladimir.Intercept(tn.local).Reencrypt(context.Background(), target, request)
		requireRefusal(t, err, http.StatusForbidden, node.ReasonDecryptionFailed)
	})
	t.Run("Stolen decrypting key doesn't make him the addressee", func(t *testing.T) {
		vladimir, err := FromTargetUrsula(target, newDatastore(t), WithStolenDecrypter(tn.decrypters[targetIndex]))
		require.NoError(t, err)

		_, err = vladimir.Intercept(tn.local).Reencrypt(context.Background(), target, request)
		requireRefusal(t, err, http.StatusUnauthorized, node.ReasonUnauthorizedWorkOrder)
		require.Len(t, vladimir.Session().SuspiciousActivities.Unauthorized(), 1)
	})
	t.Run("Bob still reaches a threshold around him", func(t *testing.T) {
		vladimir, err := FromTargetUrsula(target, newDatastore(t))
		require.NoError(t, err)

		victim := newBob(t, tn, vladimir.Intercept(tn.local), []byte("bob"))

		kit, err := characters.EnricoFromAlice(alice, label).EncryptMessage([]byte("still readable"))
		require.NoError(t, err)

		plaintexts, err := victim.RetrieveAndDecrypt(context.Background(), []*characters.MessageKit{kit},
			alice.PublicKeys().VerifyingKey, enacted.EncryptedTreasureMap)
		require.NoError(t, err)
		require.Equal(t, [][]byte{[]byte("still readable")}, plaintexts)
	})
	t.Run("Arrangements he signs are rejected", func(t *testing.T) {
		vladimir, err := FromTargetUrsula(target, newDatastore(t))
		require.NoError(t, err)

		fooled := newAlice(t, tn, vladimir.Intercept(tn.local), nil)

		_, err = fooled.Grant(context.Background(), bob.PublicKeys(), []byte("all three"), grantParams())
		require.True(t, errors.Is(err, policy.ErrNotEnoughNodes))
	})
	t.Run("Revocations meant for the target reach him", func(t *testing.T) {
		vladimir, err := FromTargetUrsula(target, newDatastore(t))
		require.NoError(t, err)

		revocation, ok := enacted.RevocationKit.Get(target.ChecksumAddress)
		require.True(t, ok)

		err = vladimir.Intercept(tn.local).RevokeArrangement(context.Background(), target, revocation.Bytes())
		requireRefusal(t, err, http.StatusForbidden, node.ReasonMisaddressed)
	})
}
