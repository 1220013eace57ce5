/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package policy

import (
	"encoding/binary"
	"fmt"
	"time"

	"github.com/trustbloc/prenet/pkg/crypto"
	"github.com/trustbloc/prenet/pkg/hrac"
)

// ArrangementSize is the serialized size of an Arrangement.
const ArrangementSize = crypto.PublicKeySize + hrac.Size + 8

// Arrangement is a publisher's proposal that a node hold a fragment of a policy until Expiration.
//
// Layout: publisher_vk(32) || hrac(16) || expiration_unix_seconds(8).
type Arrangement struct {
	PublisherVerifyingKey crypto.PublicKey
	HRAC                  hrac.HRAC
	Expiration            time.Time
}

// Bytes serializes the arrangement.
func (a *Arrangement) Bytes() []byte {
	out := make([]byte, 0, ArrangementSize)
	out = append(out, a.PublisherVerifyingKey.Bytes()...)
	out = append(out, a.HRAC[:]...)

	var expiration [8]byte
	binary.BigEndian.PutUint64(expiration[:], uint64(a.Expiration.Unix()))

	return append(out, expiration[:]...)
}

// ArrangementFromBytes decodes an arrangement.
func ArrangementFromBytes(b []byte) (*Arrangement, error) {
	if len(b) != ArrangementSize {
		return nil, fmt.Errorf("%w: expected %d bytes, got %d", ErrMalformedArrangement, ArrangementSize, len(b))
	}

	publisher, err := crypto.PublicKeyFromBytes(b[:crypto.PublicKeySize])
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrMalformedArrangement, err)
	}

	h, err := hrac.FromBytes(b[crypto.PublicKeySize : crypto.PublicKeySize+hrac.Size])
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrMalformedArrangement, err)
	}

	seconds := binary.BigEndian.Uint64(b[crypto.PublicKeySize+hrac.Size:])

	return &Arrangement{
		PublisherVerifyingKey: publisher,
		HRAC:                  h,
		Expiration:            time.Unix(int64(seconds), 0).UTC(),
	}, nil
}
