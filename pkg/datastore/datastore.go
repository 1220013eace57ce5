/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package datastore keeps a node's own records: audit receipts of re-encryptions it performed and the
// policy arrangements it accepted. It wraps an Aries storage provider, one store per record kind.
package datastore

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/hyperledger/aries-framework-go/spi/storage"
	"github.com/trustbloc/edge-core/pkg/log"
)

const (
	logModuleName = "prenet/datastore"

	defaultRetrievalPageSize = 100
)

var logger = log.New(logModuleName)

// ErrRecordNotFound is returned when a read-only description targets a record that doesn't exist.
var ErrRecordNotFound = errors.New("record not found")

// Record is a model the datastore can describe.
type Record interface {
	// Kind names the store the record lives in. It is also the tag every record of the kind carries.
	Kind() string
}

// Datastore is a node's record store.
type Datastore struct {
	coreProvider      storage.Provider
	retrievalPageSize uint
	writeLock         sync.Mutex
}

// New opens the stores of the given record kinds on ariesProvider and configures their tags.
// retrievalPageSize is used for query paging. It may be ignored if ariesProvider doesn't support paging.
func New(ariesProvider storage.Provider, retrievalPageSize uint, kinds ...string) (*Datastore, error) {
	if len(kinds) == 0 {
		kinds = []string{ReencryptionRequestKind, PolicyArrangementKind}
	}

	for _, kind := range kinds {
		// The store must be open before its configuration can be set.
		if _, err := ariesProvider.OpenStore(kind); err != nil {
			return nil, fmt.Errorf("failed to open %s store: %w", kind, err)
		}

		err := ariesProvider.SetStoreConfig(kind, storage.StoreConfiguration{TagNames: []string{kind}})
		if err != nil {
			return nil, fmt.Errorf("failed to set %s store configuration: %w", kind, err)
		}
	}

	if retrievalPageSize == 0 {
		retrievalPageSize = defaultRetrievalPageSize
	}

	return &Datastore{coreProvider: ariesProvider, retrievalPageSize: retrievalPageSize}, nil
}

// Describe scopes an operation on the record stored under id.
//
// An existing record is loaded into record before fn runs. When writeable is true a missing record
// starts empty and, if fn succeeds, the record is persisted; if fn fails nothing is written. When
// writeable is false a missing record yields ErrRecordNotFound and fn's changes are discarded.
// Writeable descriptions are serialized.
func (d *Datastore) Describe(record Record, id string, writeable bool, fn func() error) error {
	if writeable {
		d.writeLock.Lock()
		defer d.writeLock.Unlock()
	}

	store, err := d.coreProvider.OpenStore(record.Kind())
	if err != nil {
		return fmt.Errorf("failed to open %s store: %w", record.Kind(), err)
	}

	existing, err := store.Get(id)

	switch {
	case err == nil:
		if errUnmarshal := json.Unmarshal(existing, record); errUnmarshal != nil {
			return fmt.Errorf("failed to unmarshal %s %s: %w", record.Kind(), id, errUnmarshal)
		}
	case errors.Is(err, storage.ErrDataNotFound):
		if !writeable {
			return fmt.Errorf("%w: %s %s", ErrRecordNotFound, record.Kind(), id)
		}
	default:
		return fmt.Errorf("failed to read %s %s: %w", record.Kind(), id, err)
	}

	if err := fn(); err != nil {
		return err
	}

	if !writeable {
		return nil
	}

	recordBytes, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to marshal %s %s: %w", record.Kind(), id, err)
	}

	err = store.Put(id, recordBytes, storage.Tag{Name: record.Kind()})
	if err != nil {
		return fmt.Errorf("failed to store %s %s: %w", record.Kind(), id, err)
	}

	logger.Debugf("Stored %s %s", record.Kind(), id)

	return nil
}

// Delete removes the record of the given kind stored under id.
func (d *Datastore) Delete(kind, id string) error {
	d.writeLock.Lock()
	defer d.writeLock.Unlock()

	store, err := d.coreProvider.OpenStore(kind)
	if err != nil {
		return fmt.Errorf("failed to open %s store: %w", kind, err)
	}

	return store.Delete(id)
}

// Query calls fn for every record of the given kind. newRecord must return an empty record to decode into.
func (d *Datastore) Query(kind string, newRecord func() Record, fn func(id string, record Record) error) error {
	store, err := d.coreProvider.OpenStore(kind)
	if err != nil {
		return fmt.Errorf("failed to open %s store: %w", kind, err)
	}

	iterator, err := store.Query(kind, storage.WithPageSize(int(d.retrievalPageSize)))
	if err != nil {
		return fmt.Errorf("failed to query %s store: %w", kind, err)
	}

	defer storage.Close(iterator, logger)

	moreEntries, err := iterator.Next()
	if err != nil {
		return err
	}

	for moreEntries {
		key, keyErr := iterator.Key()
		if keyErr != nil {
			return keyErr
		}

		value, valueErr := iterator.Value()
		if valueErr != nil {
			return valueErr
		}

		record := newRecord()

		if err := json.Unmarshal(value, record); err != nil {
			return fmt.Errorf("failed to unmarshal %s %s: %w", kind, key, err)
		}

		if err := fn(key, record); err != nil {
			return err
		}

		moreEntries, err = iterator.Next()
		if err != nil {
			return err
		}
	}

	return nil
}

// Count returns the number of records of the given kind.
func (d *Datastore) Count(kind string, newRecord func() Record) (int, error) {
	count := 0

	err := d.Query(kind, newRecord, func(string, Record) error {
		count++

		return nil
	})

	return count, err
}
