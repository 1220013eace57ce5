/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package characters

import (
	"context"
	"errors"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/trustbloc/prenet/pkg/crypto"
	"github.com/trustbloc/prenet/pkg/network"
	"github.com/trustbloc/prenet/pkg/policy"
	"github.com/trustbloc/prenet/pkg/retrieval"
	"github.com/trustbloc/prenet/pkg/umbral"
)

const defaultTreasureMapCacheSize = 128

// BobConfig configures a recipient.
type BobConfig struct {
	Seed                 []byte
	Nodes                []*network.NodeInfo
	Client               network.Client
	TreasureMapCacheSize int
}

// Bob retrieves and decrypts data a policy gave him access to.
type Bob struct {
	keys      *keyring
	retrieval *retrieval.Client
	maps      *lru.Cache[string, *policy.TreasureMap]
}

// NewBob returns a recipient whose keys derive from cfg.Seed.
func NewBob(cfg *BobConfig) (*Bob, error) {
	if cfg.Client == nil {
		return nil, errors.New("bob requires a network client")
	}

	size := cfg.TreasureMapCacheSize
	if size <= 0 {
		size = defaultTreasureMapCacheSize
	}

	maps, err := lru.New[string, *policy.TreasureMap](size)
	if err != nil {
		return nil, fmt.Errorf("create treasure map cache: %w", err)
	}

	return &Bob{
		keys:      newKeyring(cfg.Seed),
		retrieval: retrieval.NewClient(cfg.Client, network.NewNodes(cfg.Nodes...)),
		maps:      maps,
	}, nil
}

// PublicKeys returns Bob's verifying and encrypting keys.
func (b *Bob) PublicKeys() PublicKeys {
	return b.keys.publicKeys()
}

// Decrypter returns Bob's decrypter.
func (b *Bob) Decrypter() *crypto.Decrypter {
	return b.keys.decrypter
}

// TreasureMap opens an encrypted treasure map published by alice. Opened maps are cached.
func (b *Bob) TreasureMap(encrypted *crypto.MessageKit, aliceVerifyingKey crypto.PublicKey) (*policy.TreasureMap,
	error) {
	key := string(crypto.Keccak256(aliceVerifyingKey.Bytes(), encrypted.Bytes()))

	if tm, ok := b.maps.Get(key); ok {
		return tm, nil
	}

	tm, err := policy.DecryptTreasureMap(encrypted, b.keys.decrypter, aliceVerifyingKey)
	if err != nil {
		return nil, err
	}

	b.maps.Add(key, tm)

	return tm, nil
}

// Retrieve collects a threshold of capsule fragments for every message kit from the nodes of the map.
func (b *Bob) Retrieve(ctx context.Context, kits []*MessageKit, aliceVerifyingKey crypto.PublicKey,
	encryptedTreasureMap *crypto.MessageKit) ([][]*umbral.CapsuleFrag, error) {
	tm, err := b.TreasureMap(encryptedTreasureMap, aliceVerifyingKey)
	if err != nil {
		return nil, err
	}

	retrievalKits := make([]*retrieval.RetrievalKit, len(kits))
	for i, kit := range kits {
		retrievalKits[i] = retrieval.NewRetrievalKit(kit.Capsule)
	}

	return b.retrieval.RetrieveCFrags(ctx, tm, retrievalKits, aliceVerifyingKey, b.keys.signer.VerifyingKey())
}

// RetrieveAndDecrypt retrieves fragments for kits and returns their plaintexts in kit order.
func (b *Bob) RetrieveAndDecrypt(ctx context.Context, kits []*MessageKit, aliceVerifyingKey crypto.PublicKey,
	encryptedTreasureMap *crypto.MessageKit) ([][]byte, error) {
	cfrags, err := b.Retrieve(ctx, kits, aliceVerifyingKey, encryptedTreasureMap)
	if err != nil {
		return nil, err
	}

	plaintexts := make([][]byte, len(kits))

	for i, kit := range kits {
		sealed, err := umbral.DecryptReencrypted(b.keys.decrypter.SecretKey(), kit.Capsule, cfrags[i], kit.Ciphertext)
		if err != nil {
			return nil, fmt.Errorf("decrypt message %d: %w", i, err)
		}

		plaintexts[i], err = openMessage(kit, sealed)
		if err != nil {
			return nil, fmt.Errorf("open message %d: %w", i, err)
		}
	}

	return plaintexts, nil
}
