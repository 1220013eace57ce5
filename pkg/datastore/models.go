/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package datastore

import (
	"fmt"
	"time"
)

const (
	// ReencryptionRequestKind is the kind of ReencryptionRequest records.
	ReencryptionRequestKind = "reencryption_request"
	// PolicyArrangementKind is the kind of PolicyArrangement records.
	PolicyArrangementKind = "policy_arrangement"
)

// ReencryptionRequest is the audit receipt a node keeps for every re-encryption it performs.
type ReencryptionRequest struct {
	BobVerifyingKey string    `json:"bob_verifying_key"`
	HRAC            string    `json:"hrac"`
	Capsules        int       `json:"capsules"`
	Timestamp       time.Time `json:"timestamp"`
}

// Kind implements Record.
func (*ReencryptionRequest) Kind() string { return ReencryptionRequestKind }

// PolicyArrangement is an arrangement a node accepted, keyed by the policy's base58 HRAC.
type PolicyArrangement struct {
	PublisherVerifyingKey string    `json:"publisher_verifying_key"`
	Expiration            time.Time `json:"expiration"`
	NodeSignature         string    `json:"node_signature"`
}

// Kind implements Record.
func (*PolicyArrangement) Kind() string { return PolicyArrangementKind }

// PruneExpiredArrangements deletes every accepted arrangement that expired before now and returns how many
// were removed.
func (d *Datastore) PruneExpiredArrangements(now time.Time) (int, error) {
	var expired []string

	err := d.Query(PolicyArrangementKind, func() Record { return &PolicyArrangement{} },
		func(id string, record Record) error {
			if arrangement, ok := record.(*PolicyArrangement); ok && arrangement.Expiration.Before(now) {
				expired = append(expired, id)
			}

			return nil
		})
	if err != nil {
		return 0, err
	}

	for _, id := range expired {
		if err := d.Delete(PolicyArrangementKind, id); err != nil {
			return 0, fmt.Errorf("failed to delete expired arrangement %s: %w", id, err)
		}
	}

	if len(expired) > 0 {
		logger.Infof("Pruned %d expired policy arrangements", len(expired))
	}

	return len(expired), nil
}
