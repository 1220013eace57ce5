/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package node

import (
	"sync"

	"github.com/trustbloc/prenet/pkg/crypto"
	"github.com/trustbloc/prenet/pkg/hrac"
)

// RevokedPolicies is the set of policies a node has been told are revoked. It only grows.
type RevokedPolicies struct {
	mu       sync.RWMutex
	policies map[hrac.HRAC]struct{}
}

// NewRevokedPolicies returns an empty set.
func NewRevokedPolicies() *RevokedPolicies {
	return &RevokedPolicies{policies: make(map[hrac.HRAC]struct{})}
}

// Add marks h as revoked.
func (r *RevokedPolicies) Add(h hrac.HRAC) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.policies[h] = struct{}{}
}

// Contains reports whether h is revoked.
func (r *RevokedPolicies) Contains(h hrac.HRAC) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, ok := r.policies[h]

	return ok
}

// Len returns the number of revoked policies.
func (r *RevokedPolicies) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.policies)
}

// Freerider records a publisher whose policy was used without payment.
type Freerider struct {
	Publisher crypto.PublicKey
	Message   string
}

// SuspiciousActivities is the append-only log of security-relevant events a node witnessed.
type SuspiciousActivities struct {
	mu           sync.Mutex
	unauthorized []string
	freeriders   []Freerider
}

// NewSuspiciousActivities returns an empty log.
func NewSuspiciousActivities() *SuspiciousActivities {
	return &SuspiciousActivities{}
}

// LogUnauthorized appends an unauthorized work order.
func (s *SuspiciousActivities) LogUnauthorized(message string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.unauthorized = append(s.unauthorized, message)
}

// LogFreerider appends an unpaid work order attributed to publisher.
func (s *SuspiciousActivities) LogFreerider(publisher crypto.PublicKey, message string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.freeriders = append(s.freeriders, Freerider{Publisher: publisher, Message: message})
}

// Unauthorized returns a copy of the unauthorized log.
func (s *SuspiciousActivities) Unauthorized() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	return append([]string(nil), s.unauthorized...)
}

// Freeriders returns a copy of the freerider log.
func (s *SuspiciousActivities) Freeriders() []Freerider {
	s.mu.Lock()
	defer s.mu.Unlock()

	return append([]Freerider(nil), s.freeriders...)
}

// Session is the mutable state shared by every request a node handles.
type Session struct {
	RevokedPolicies      *RevokedPolicies
	SuspiciousActivities *SuspiciousActivities
}

// NewSession returns a session with no revoked policies and an empty activity log.
func NewSession() *Session {
	return &Session{
		RevokedPolicies:      NewRevokedPolicies(),
		SuspiciousActivities: NewSuspiciousActivities(),
	}
}
