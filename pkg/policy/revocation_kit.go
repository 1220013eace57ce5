/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package policy

import (
	"github.com/trustbloc/prenet/pkg/crypto"
)

// RevocationKit holds one signed revocation per node of a treasure map, in the map's order.
type RevocationKit struct {
	revocations []*Revocation
	index       map[string]int
}

// NewRevocationKit signs a revocation for every destination of tm.
func NewRevocationKit(tm *TreasureMap, signer *crypto.Signer) (*RevocationKit, error) {
	kit := &RevocationKit{index: make(map[string]int, tm.Len())}

	for _, d := range tm.Destinations() {
		r, err := NewRevocation(d.Address, d.EncryptedKFrag, signer, nil)
		if err != nil {
			return nil, err
		}

		kit.index[r.NodeAddress] = len(kit.revocations)
		kit.revocations = append(kit.revocations, r)
	}

	return kit, nil
}

// Len returns the number of revocations.
func (k *RevocationKit) Len() int {
	return len(k.revocations)
}

// Revocations returns the revocations in treasure-map order.
func (k *RevocationKit) Revocations() []*Revocation {
	return append([]*Revocation(nil), k.revocations...)
}

// Get returns the revocation for the node at address, given in checksum or lowercase form.
func (k *RevocationKit) Get(address string) (*Revocation, bool) {
	canonical, err := crypto.ToCanonicalAddress(address)
	if err != nil {
		return nil, false
	}

	i, ok := k.index[canonical.Hex()]
	if !ok {
		return nil, false
	}

	return k.revocations[i], true
}

// RevokableAddresses returns the set of node addresses the kit can revoke.
func (k *RevocationKit) RevokableAddresses() map[string]struct{} {
	addresses := make(map[string]struct{}, len(k.revocations))
	for _, r := range k.revocations {
		addresses[r.NodeAddress] = struct{}{}
	}

	return addresses
}

// AddConfirmation would record a node's receipt for its revocation. Receipts aren't part of the
// protocol yet, so this always fails.
func (k *RevocationKit) AddConfirmation(address string, receipt []byte) error {
	return ErrConfirmationsNotImplemented
}
