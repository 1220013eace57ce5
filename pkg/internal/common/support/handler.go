/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package support

import (
	"net/http"
)

// NewHTTPHandler returns an HTTPHandler serving method requests on path.
func NewHTTPHandler(path, method string, handle http.HandlerFunc) *HTTPHandler {
	return &HTTPHandler{path: path, method: method, handle: handle}
}

// HTTPHandler holds what a router needs to route requests for a path.
type HTTPHandler struct {
	path   string
	method string
	handle http.HandlerFunc
}

// Path returns the request path.
func (h *HTTPHandler) Path() string {
	return h.path
}

// Method returns the request method.
func (h *HTTPHandler) Method() string {
	return h.method
}

// Handle returns the handler function.
func (h *HTTPHandler) Handle() http.HandlerFunc {
	return h.handle
}
