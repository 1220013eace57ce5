/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package policy

import (
	"encoding/binary"
	"fmt"

	"github.com/trustbloc/prenet/pkg/crypto"
	"github.com/trustbloc/prenet/pkg/hrac"
	"github.com/trustbloc/prenet/pkg/network"
	"github.com/trustbloc/prenet/pkg/umbral"
)

const (
	treasureMapHeaderSize = hrac.Size + 1 + 2
	destinationSize       = crypto.CanonicalAddressSize + EncryptedSize
)

// Destination pairs a node with the encrypted authorization it must be shown.
type Destination struct {
	Address        string
	EncryptedKFrag *crypto.MessageKit
}

// TreasureMap tells the recipient which nodes hold fragments of a policy and carries, per node,
// the encrypted authorization to present with every re-encryption request. Destinations keep
// insertion order.
//
// Layout: hrac(16) || threshold(1) || count(2) || (canonical_address(20) || encrypted_kfrag)*count.
type TreasureMap struct {
	HRAC      hrac.HRAC
	Threshold int

	destinations []Destination
	index        map[string]int
}

// NewTreasureMap returns an empty map for the policy h.
func NewTreasureMap(h hrac.HRAC, threshold int) *TreasureMap {
	return &TreasureMap{HRAC: h, Threshold: threshold, index: make(map[string]int)}
}

// ConstructTreasureMap authorizes each fragment for its node and encrypts the authorization to that node.
// nodes and kfrags are paired by position.
func ConstructTreasureMap(h hrac.HRAC, threshold int, nodes []*network.NodeInfo, kfrags []*umbral.VerifiedKeyFrag,
	publisher *crypto.Signer) (*TreasureMap, error) {
	if len(nodes) != len(kfrags) {
		return nil, fmt.Errorf("%d nodes for %d key fragments", len(nodes), len(kfrags))
	}

	tm := NewTreasureMap(h, threshold)

	for i, node := range nodes {
		akf, err := ConstructAuthorizedKeyFrag(h, node.ChecksumAddress, kfrags[i], publisher)
		if err != nil {
			return nil, fmt.Errorf("authorize key fragment for %s: %w", node.ChecksumAddress, err)
		}

		ekfrag, err := EncryptKeyFrag(akf, node.EncryptingKey, publisher)
		if err != nil {
			return nil, fmt.Errorf("encrypt key fragment for %s: %w", node.ChecksumAddress, err)
		}

		if err := tm.AddDestination(node.ChecksumAddress, ekfrag); err != nil {
			return nil, err
		}
	}

	return tm, nil
}

// AddDestination appends a node. Adding the same node twice is an error.
func (t *TreasureMap) AddDestination(address string, ekfrag *crypto.MessageKit) error {
	canonical, err := crypto.ToCanonicalAddress(address)
	if err != nil {
		return err
	}

	checksum := canonical.Hex()

	if _, exists := t.index[checksum]; exists {
		return fmt.Errorf("%w: duplicate destination %s", ErrMalformedTreasureMap, checksum)
	}

	t.index[checksum] = len(t.destinations)
	t.destinations = append(t.destinations, Destination{Address: checksum, EncryptedKFrag: ekfrag})

	return nil
}

// Destinations returns the destinations in insertion order.
func (t *TreasureMap) Destinations() []Destination {
	return append([]Destination(nil), t.destinations...)
}

// Get returns the encrypted authorization for the node at address.
func (t *TreasureMap) Get(address string) (*crypto.MessageKit, bool) {
	i, ok := t.index[address]
	if !ok {
		return nil, false
	}

	return t.destinations[i].EncryptedKFrag, true
}

// Len returns the number of destinations.
func (t *TreasureMap) Len() int {
	return len(t.destinations)
}

// Bytes serializes the map.
func (t *TreasureMap) Bytes() []byte {
	out := make([]byte, treasureMapHeaderSize, treasureMapHeaderSize+len(t.destinations)*destinationSize)
	copy(out, t.HRAC[:])
	out[hrac.Size] = byte(t.Threshold)
	binary.BigEndian.PutUint16(out[hrac.Size+1:], uint16(len(t.destinations)))

	for _, d := range t.destinations {
		canonical, _ := crypto.ToCanonicalAddress(d.Address) //nolint:errcheck // validated in AddDestination
		out = append(out, canonical.Bytes()...)
		out = append(out, d.EncryptedKFrag.Bytes()...)
	}

	return out
}

// TreasureMapFromBytes decodes a map.
func TreasureMapFromBytes(b []byte) (*TreasureMap, error) {
	if len(b) < treasureMapHeaderSize {
		return nil, fmt.Errorf("%w: too short", ErrMalformedTreasureMap)
	}

	h, err := hrac.FromBytes(b[:hrac.Size])
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrMalformedTreasureMap, err)
	}

	count := int(binary.BigEndian.Uint16(b[hrac.Size+1 : treasureMapHeaderSize]))
	body := b[treasureMapHeaderSize:]

	if len(body) != count*destinationSize {
		return nil, fmt.Errorf("%w: %d destinations don't fit %d bytes", ErrMalformedTreasureMap, count, len(body))
	}

	tm := NewTreasureMap(h, int(b[hrac.Size]))

	for i := 0; i < count; i++ {
		entry := body[i*destinationSize : (i+1)*destinationSize]

		address, err := crypto.ToChecksumAddress(entry[:crypto.CanonicalAddressSize])
		if err != nil {
			return nil, fmt.Errorf("%w: %s", ErrMalformedTreasureMap, err)
		}

		kit, err := ParseEncryptedKeyFrag(entry[crypto.CanonicalAddressSize:])
		if err != nil {
			return nil, fmt.Errorf("%w: %s", ErrMalformedTreasureMap, err)
		}

		if err := tm.AddDestination(address, kit); err != nil {
			return nil, err
		}
	}

	return tm, nil
}

// EncryptTreasureMap signs the map as the publisher and encrypts it to the recipient.
func EncryptTreasureMap(tm *TreasureMap, recipientEncryptingKey crypto.PublicKey,
	publisher *crypto.Signer) (*crypto.MessageKit, error) {
	return crypto.EncryptAndSign(recipientEncryptingKey, tm.Bytes(), publisher)
}

// DecryptTreasureMap opens an encrypted map and checks it was signed by the publisher.
func DecryptTreasureMap(kit *crypto.MessageKit, recipient *crypto.Decrypter,
	publisherVerifyingKey crypto.PublicKey) (*TreasureMap, error) {
	plaintext, err := recipient.DecryptFrom(kit, publisherVerifyingKey)
	if err != nil {
		return nil, fmt.Errorf("open treasure map: %w", err)
	}

	return TreasureMapFromBytes(plaintext)
}
