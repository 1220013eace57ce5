/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package operation

import (
	"github.com/trustbloc/prenet/pkg/network"
	"github.com/trustbloc/prenet/pkg/node"
	"github.com/trustbloc/prenet/pkg/restapi/models"
)

// genericError model
//
// swagger:response genericError
type genericError struct { // nolint: unused,deadcode
	// in: body
	ErrMsg string
}

// emptyRes model
//
// swagger:response emptyRes
type emptyRes struct{} // nolint: unused,deadcode

// reencryptReq model
//
// swagger:parameters reencryptReq
type reencryptReq struct { // nolint: unused,deadcode
	// Serialized re-encryption request.
	//
	// in: body
	Request []byte
}

// reencryptRes model
//
// swagger:response reencryptRes
type reencryptRes struct { // nolint: unused,deadcode
	// Node signature followed by one capsule fragment per capsule.
	//
	// in: body
	Response []byte
}

// revokeReq model
//
// swagger:parameters revokeReq
type revokeReq struct { // nolint: unused,deadcode
	// in: body
	Revocation []byte
}

// considerArrangementReq model
//
// swagger:parameters considerArrangementReq
type considerArrangementReq struct { // nolint: unused,deadcode
	// in: body
	Arrangement []byte
}

// considerArrangementRes model
//
// swagger:response considerArrangementRes
type considerArrangementRes struct { // nolint: unused,deadcode
	// Node signature over the arrangement.
	//
	// in: body
	Signature []byte
}

// publicInformationRes model
//
// swagger:response publicInformationRes
type publicInformationRes struct { // nolint: unused,deadcode
	// in: body
	Info network.NodeInfo
}

// statusRes model
//
// swagger:response statusRes
type statusRes struct { // nolint: unused,deadcode
	// in: body
	Status node.NodeStatus
}

// changeLogSpecReq model
//
// swagger:parameters changeLogSpecReq
type changeLogSpecReq struct { // nolint: unused,deadcode
	// The new log specification.
	//
	// in: body
	Spec models.LogSpec
}

// getLogSpecRes model
//
// swagger:response getLogSpecRes
type getLogSpecRes struct { // nolint: unused,deadcode
	// in: body
	Spec models.LogSpec
}
