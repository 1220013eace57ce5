/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package node

import "net/http"

// Status is the caller-visible outcome class of a request handled by a node.
type Status int

// Outcome classes.
const (
	StatusOK Status = iota
	StatusBadRequest
	StatusUnauthorized
	StatusPaymentRequired
	StatusForbidden
	StatusNotFound
	StatusInternalError
)

// HTTPCode maps the status to the HTTP status code the REST surface answers with.
func (s Status) HTTPCode() int {
	switch s {
	case StatusOK:
		return http.StatusOK
	case StatusBadRequest:
		return http.StatusBadRequest
	case StatusUnauthorized:
		return http.StatusUnauthorized
	case StatusPaymentRequired:
		return http.StatusPaymentRequired
	case StatusForbidden:
		return http.StatusForbidden
	case StatusNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func (s Status) String() string {
	return http.StatusText(s.HTTPCode())
}

// Reason distinguishes outcomes that share a status.
type Reason string

// Outcome reasons.
const (
	ReasonRevoked                Reason = "revoked"
	ReasonInvalidSender          Reason = "invalid-sender"
	ReasonDecryptionFailed       Reason = "decryption-failed"
	ReasonMalformedAuthorization Reason = "malformed-authorization"
	ReasonUnauthorizedWorkOrder  Reason = "unauthorized-work-order"
	ReasonUnpaid                 Reason = "unpaid"
	ReasonUnknownPolicy          Reason = "unknown-policy"
	ReasonPaymentUnverified      Reason = "payment-unverified"
	ReasonInactive               Reason = "inactive"
	ReasonExpired                Reason = "expired"
	ReasonActivityUnverified     Reason = "activity-unverified"
	ReasonMalformedRequest       Reason = "malformed-request"
	ReasonAuditFailed            Reason = "audit-failed"
	ReasonSigningFailed          Reason = "signing-failed"
	ReasonReencrypted            Reason = "reencrypted"
	ReasonMisaddressed           Reason = "misaddressed"
	ReasonInsufficientStake      Reason = "insufficient-stake"
	ReasonAccepted               Reason = "accepted"
)

// Result is what a node answers to a request. Body is only set on success.
type Result struct {
	Status  Status
	Reason  Reason
	Message string
	Body    []byte
}

func reject(status Status, reason Reason, message string) *Result {
	return &Result{Status: status, Reason: reason, Message: message}
}

func ok(reason Reason, body []byte) *Result {
	return &Result{Status: StatusOK, Reason: reason, Body: body}
}
