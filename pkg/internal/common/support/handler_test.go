/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package support

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewHTTPHandler(t *testing.T) {
	handler := NewHTTPHandler("/status", http.MethodGet, func(rw http.ResponseWriter, _ *http.Request) {
		rw.WriteHeader(http.StatusTeapot)
	})

	require.Equal(t, "/status", handler.Path())
	require.Equal(t, http.MethodGet, handler.Method())

	rr := httptest.NewRecorder()
	handler.Handle()(rr, httptest.NewRequest(http.MethodGet, "/status", nil))
	require.Equal(t, http.StatusTeapot, rr.Code)
}
