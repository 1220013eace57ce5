/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package network

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/trustbloc/prenet/pkg/crypto"
)

func TestUnexpectedResponseError(t *testing.T) {
	t.Run("not found", func(t *testing.T) {
		err := fmt.Errorf("revoke: %w", &UnexpectedResponseError{StatusCode: http.StatusNotFound, Message: "gone"})
		require.True(t, errors.Is(err, ErrNodeNotFound))
		require.Equal(t, http.StatusNotFound, StatusCode(err))
		require.EqualError(t, err, "revoke: node returned status code 404: gone")
	})
	t.Run("other status", func(t *testing.T) {
		err := &UnexpectedResponseError{StatusCode: http.StatusForbidden}
		require.False(t, errors.Is(err, ErrNodeNotFound))
		require.Equal(t, http.StatusForbidden, StatusCode(err))
	})
	t.Run("not a response error", func(t *testing.T) {
		require.Equal(t, 0, StatusCode(ErrNodeSeemsToBeDown))
	})
}

func TestNodeInfo(t *testing.T) {
	vk := crypto.GenerateSecretKey().PublicKey()
	ek := crypto.GenerateSecretKey().PublicKey()

	info := &NodeInfo{
		ChecksumAddress: crypto.ChecksumAddress(vk),
		VerifyingKey:    vk,
		EncryptingKey:   ek,
		URL:             "http://localhost:9101",
	}

	b, err := json.Marshal(info)
	require.NoError(t, err)

	decoded := &NodeInfo{}
	require.NoError(t, json.Unmarshal(b, decoded))
	require.Equal(t, info.ChecksumAddress, decoded.ChecksumAddress)
	require.True(t, vk.Equal(decoded.VerifyingKey))
	require.True(t, ek.Equal(decoded.EncryptingKey))
	require.Equal(t, info.URL, decoded.URL)

	nodes := NewNodes(info)
	require.Len(t, nodes, 1)
	require.Equal(t, info, nodes[info.ChecksumAddress])
}
