/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package datastore

import (
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/hyperledger/aries-framework-go-ext/component/storage/mongodb"
	"github.com/ory/dockertest/v3"
	"github.com/stretchr/testify/require"
)

const (
	mongoDBTestsEnvKey = "PRENET_MONGODB_TESTS"
	mongoDBImage       = "mongo"
	mongoDBTag         = "4.0.0"
)

func startMongoDB(t *testing.T) string {
	t.Helper()

	pool, err := dockertest.NewPool("")
	require.NoError(t, err)

	resource, err := pool.Run(mongoDBImage, mongoDBTag, nil)
	require.NoError(t, err)

	t.Cleanup(func() {
		if purgeErr := pool.Purge(resource); purgeErr != nil {
			t.Logf("failed to purge mongodb container: %s", purgeErr)
		}
	})

	url := fmt.Sprintf("mongodb://localhost:%s", resource.GetPort("27017/tcp"))

	pool.MaxWait = time.Minute

	require.NoError(t, pool.Retry(func() error {
		provider, err := mongodb.NewProvider(url, mongodb.WithTimeout(time.Second))
		if err != nil {
			return err
		}

		defer provider.Close() //nolint:errcheck

		return provider.Ping()
	}))

	return url
}

func TestMongoDBDatastore(t *testing.T) {
	if os.Getenv(mongoDBTestsEnvKey) == "" {
		t.Skipf("set %s to run against a mongodb container", mongoDBTestsEnvKey)
	}

	url := startMongoDB(t)

	provider, err := mongodb.NewProvider(url, mongodb.WithDBPrefix("prenet_test"))
	require.NoError(t, err)

	ds, err := New(provider, 2)
	require.NoError(t, err)

	now := time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)

	for i, expiration := range []time.Time{now.Add(-time.Hour), now.Add(-time.Minute), now.Add(time.Hour)} {
		arrangement := &PolicyArrangement{}
		id := fmt.Sprintf("hrac-%d", i)

		require.NoError(t, ds.Describe(arrangement, id, true, func() error {
			arrangement.PublisherVerifyingKey = "alice"
			arrangement.Expiration = expiration

			return nil
		}))
	}

	count, err := ds.Count(PolicyArrangementKind, func() Record { return &PolicyArrangement{} })
	require.NoError(t, err)
	require.Equal(t, 3, count)

	pruned, err := ds.PruneExpiredArrangements(now)
	require.NoError(t, err)
	require.Equal(t, 2, pruned)

	stored := &PolicyArrangement{}
	require.NoError(t, ds.Describe(stored, "hrac-2", false, func() error { return nil }))
	require.Equal(t, "alice", stored.PublisherVerifyingKey)
}
