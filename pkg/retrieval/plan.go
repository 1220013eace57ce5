/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package retrieval

import (
	"fmt"
	"math/rand"
	"sort"

	"github.com/trustbloc/prenet/pkg/crypto"
	"github.com/trustbloc/prenet/pkg/policy"
	"github.com/trustbloc/prenet/pkg/umbral"
)

// RetrievalKit is what a recipient keeps to fetch capsule fragments for one ciphertext.
// QueriedAddresses holds the nodes already asked for this capsule, which are tried last.
type RetrievalKit struct {
	Capsule          *umbral.Capsule
	QueriedAddresses map[string]struct{}
}

// NewRetrievalKit returns a kit for capsule with no queried nodes.
func NewRetrievalKit(capsule *umbral.Capsule) *RetrievalKit {
	return &RetrievalKit{Capsule: capsule, QueriedAddresses: make(map[string]struct{})}
}

// WorkOrder is a batch of capsules to be re-encrypted by a single node.
type WorkOrder struct {
	Address        string
	EncryptedKFrag *crypto.MessageKit
	// CapsuleIndices are positions in the plan's capsule list, ascending.
	CapsuleIndices []int
}

// Plan tracks which nodes to ask next and the capsule fragments collected so far for a set of capsules
// under one treasure map.
type Plan struct {
	treasureMap *policy.TreasureMap
	threshold   int
	kits        []*RetrievalKit
	addresses   []string
	next        int
	results     []map[uint32]*umbral.CapsuleFrag
}

// NewPlan orders the treasure map's nodes randomly, putting nodes already queried for every capsule last.
func NewPlan(tm *policy.TreasureMap, kits []*RetrievalKit) (*Plan, error) {
	if len(kits) == 0 {
		return nil, fmt.Errorf("%w: no capsules to retrieve", ErrMalformedRequest)
	}

	if len(kits) > MaxCapsulesPerRequest {
		return nil, fmt.Errorf("%w: %d capsules, at most %d per request", ErrMalformedRequest, len(kits),
			MaxCapsulesPerRequest)
	}

	if tm.Threshold < 1 || tm.Threshold > tm.Len() {
		return nil, fmt.Errorf("%w: threshold %d with %d destinations", policy.ErrMalformedTreasureMap,
			tm.Threshold, tm.Len())
	}

	addresses := make([]string, 0, tm.Len())
	for _, d := range tm.Destinations() {
		addresses = append(addresses, d.Address)
	}

	rand.Shuffle(len(addresses), func(i, j int) { addresses[i], addresses[j] = addresses[j], addresses[i] })

	queriedByAll := func(address string) bool {
		for _, kit := range kits {
			if _, ok := kit.QueriedAddresses[address]; !ok {
				return false
			}
		}

		return true
	}

	sort.SliceStable(addresses, func(i, j int) bool {
		return !queriedByAll(addresses[i]) && queriedByAll(addresses[j])
	})

	results := make([]map[uint32]*umbral.CapsuleFrag, len(kits))
	for i := range results {
		results[i] = make(map[uint32]*umbral.CapsuleFrag)
	}

	return &Plan{
		treasureMap: tm,
		threshold:   tm.Threshold,
		kits:        kits,
		addresses:   addresses,
		results:     results,
	}, nil
}

// Capsules returns the capsules of the plan in order.
func (p *Plan) Capsules() []*umbral.Capsule {
	capsules := make([]*umbral.Capsule, len(p.kits))
	for i, kit := range p.kits {
		capsules[i] = kit.Capsule
	}

	return capsules
}

// NextWorkOrders returns up to n work orders for nodes that haven't been tried yet. Each order holds
// the capsules still short of the threshold.
func (p *Plan) NextWorkOrders(n int) []*WorkOrder {
	var orders []*WorkOrder

	for p.next < len(p.addresses) && len(orders) < n {
		address := p.addresses[p.next]
		p.next++

		var indices []int

		for i := range p.kits {
			if len(p.results[i]) < p.threshold {
				indices = append(indices, i)
			}
		}

		if len(indices) == 0 {
			break
		}

		ekfrag, _ := p.treasureMap.Get(address)

		orders = append(orders, &WorkOrder{Address: address, EncryptedKFrag: ekfrag, CapsuleIndices: indices})
	}

	return orders
}

// Update records the fragments a node returned for a work order, in the order's capsule order.
// The first fragment recorded under an id is kept.
func (p *Plan) Update(order *WorkOrder, cfrags []*umbral.CapsuleFrag) error {
	if len(cfrags) != len(order.CapsuleIndices) {
		return fmt.Errorf("%w: %d capsule fragments for %d capsules", ErrMalformedResponse, len(cfrags),
			len(order.CapsuleIndices))
	}

	for i, index := range order.CapsuleIndices {
		if _, ok := p.results[index][cfrags[i].ID]; !ok {
			p.results[index][cfrags[i].ID] = cfrags[i]
		}

		p.kits[index].QueriedAddresses[order.Address] = struct{}{}
	}

	return nil
}

// Exhausted is true once every node of the treasure map has been handed out in a work order.
func (p *Plan) Exhausted() bool {
	return p.next >= len(p.addresses)
}

// IsComplete is true once every capsule has at least threshold distinct fragments.
func (p *Plan) IsComplete() bool {
	for _, r := range p.results {
		if len(r) < p.threshold {
			return false
		}
	}

	return true
}

// Missing returns how many more fragments the neediest capsule requires.
func (p *Plan) Missing() int {
	missing := 0

	for _, r := range p.results {
		if m := p.threshold - len(r); m > missing {
			missing = m
		}
	}

	return missing
}

// Results returns the collected fragments per capsule, sorted by fragment id.
func (p *Plan) Results() [][]*umbral.CapsuleFrag {
	out := make([][]*umbral.CapsuleFrag, len(p.results))

	for i, r := range p.results {
		cfrags := make([]*umbral.CapsuleFrag, 0, len(r))
		for _, cf := range r {
			cfrags = append(cfrags, cf)
		}

		sort.Slice(cfrags, func(a, b int) bool { return cfrags[a].ID < cfrags[b].ID })

		out[i] = cfrags
	}

	return out
}
