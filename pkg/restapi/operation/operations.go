/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package operation

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/trustbloc/edge-core/pkg/log"

	"github.com/trustbloc/prenet/pkg/internal/common/support"
	"github.com/trustbloc/prenet/pkg/network"
	"github.com/trustbloc/prenet/pkg/node"
	"github.com/trustbloc/prenet/pkg/policy"
	"github.com/trustbloc/prenet/pkg/restapi/messages"
	"github.com/trustbloc/prenet/pkg/restapi/models"
	"github.com/trustbloc/prenet/pkg/retrieval"
)

const (
	logModuleName = "prenet/restapi"

	// ReencryptEndpoint receives serialized re-encryption requests.
	ReencryptEndpoint = "/reencrypt"
	// RevokeEndpoint receives serialized revocations.
	RevokeEndpoint = "/revoke"
	// ConsiderArrangementEndpoint receives serialized arrangements.
	ConsiderArrangementEndpoint = "/consider_arrangement"
	// PublicInformationEndpoint serves the node's identity.
	PublicInformationEndpoint = "/public_information"
	// StatusEndpoint serves the node's counters.
	StatusEndpoint = "/status"
	// LogSpecEndpoint reads and changes log levels.
	LogSpecEndpoint = "/logspec"

	reencryptRequestName   = "re-encryption"
	revocationRequestName  = "revocation"
	arrangementRequestName = "arrangement"
	logSpecRequestName     = "log spec"

	maxLogSpecSize = 4096
)

var logger = log.New(logModuleName)

// DefaultLogModules are the modules reported by GET /logspec.
var DefaultLogModules = []string{
	"prenet/node", "prenet/restapi", "prenet/client", "prenet/retrieval",
	"prenet/characters", "prenet/datastore", "prenet/registry", "prenet/ursula-rest",
}

// Node is the node behind the REST surface.
type Node interface {
	HandleReencryption(ctx context.Context, data []byte, remoteAddr string) *node.Result
	HandleRevocation(ctx context.Context, data []byte) *node.Result
	ConsiderArrangement(ctx context.Context, data []byte) *node.Result
	PublicInformation() *network.NodeInfo
	Status() (*node.NodeStatus, error)
}

// Handler represents an HTTP handler for each controller API endpoint.
type Handler interface {
	Path() string
	Method() string
	Handle() http.HandlerFunc
}

// Config defines configuration for node operations. LogModules defaults to DefaultLogModules.
type Config struct {
	Node       Node
	LogModules []string
}

// Operation defines handler logic for the node service.
type Operation struct {
	handlers   []Handler
	node       Node
	logModules []string
}

// New returns a new node operations instance.
func New(config *Config) (*Operation, error) {
	if config.Node == nil {
		return nil, errors.New("node operations require a node")
	}

	svc := &Operation{node: config.Node, logModules: config.LogModules}

	if len(svc.logModules) == 0 {
		svc.logModules = DefaultLogModules
	}

	svc.registerHandler()

	return svc, nil
}

func (c *Operation) registerHandler() {
	c.handlers = []Handler{
		support.NewHTTPHandler(ReencryptEndpoint, http.MethodPost, c.reencryptHandler),
		support.NewHTTPHandler(RevokeEndpoint, http.MethodPost, c.revokeHandler),
		support.NewHTTPHandler(ConsiderArrangementEndpoint, http.MethodPost, c.considerArrangementHandler),
		support.NewHTTPHandler(PublicInformationEndpoint, http.MethodGet, c.publicInformationHandler),
		support.NewHTTPHandler(StatusEndpoint, http.MethodGet, c.statusHandler),
		support.NewHTTPHandler(LogSpecEndpoint, http.MethodGet, c.getLogSpecHandler),
		support.NewHTTPHandler(LogSpecEndpoint, http.MethodPut, c.changeLogSpecHandler),
	}
}

// GetRESTHandlers gets all controller API handler available for this service.
func (c *Operation) GetRESTHandlers() []Handler {
	return c.handlers
}

// Re-encrypt swagger:route POST /reencrypt reencryptReq
//
// Re-encrypts capsules under an authorized key fragment.
//
// Responses:
//    default: genericError
//        200: reencryptRes
func (c *Operation) reencryptHandler(rw http.ResponseWriter, req *http.Request) {
	requestBody, ok := readRequestBody(rw, req, reencryptRequestName, int64(retrieval.MaxRequestSize))
	if !ok {
		return
	}

	writeResult(rw, reencryptRequestName, c.node.HandleReencryption(req.Context(), requestBody, req.RemoteAddr))
}

// Revoke swagger:route POST /revoke revokeReq
//
// Revokes a policy on this node.
//
// Responses:
//    default: genericError
//        200: emptyRes
func (c *Operation) revokeHandler(rw http.ResponseWriter, req *http.Request) {
	requestBody, ok := readRequestBody(rw, req, revocationRequestName, int64(policy.RevocationSize))
	if !ok {
		return
	}

	writeResult(rw, revocationRequestName, c.node.HandleRevocation(req.Context(), requestBody))
}

// Consider arrangement swagger:route POST /consider_arrangement considerArrangementReq
//
// Asks the node to take part in a policy.
//
// Responses:
//    default: genericError
//        200: considerArrangementRes
func (c *Operation) considerArrangementHandler(rw http.ResponseWriter, req *http.Request) {
	requestBody, ok := readRequestBody(rw, req, arrangementRequestName, int64(policy.ArrangementSize))
	if !ok {
		return
	}

	writeResult(rw, arrangementRequestName, c.node.ConsiderArrangement(req.Context(), requestBody))
}

// Public information swagger:route GET /public_information publicInformationReq
//
// Returns the node's address and public keys.
//
// Responses:
//    default: genericError
//        200: publicInformationRes
func (c *Operation) publicInformationHandler(rw http.ResponseWriter, _ *http.Request) {
	infoBytes, err := json.Marshal(c.node.PublicInformation())
	if err != nil {
		writeErrorWithStatus(rw, http.StatusInternalServerError, messages.PublicInformationFailure, err)

		return
	}

	writeJSON(rw, infoBytes)
}

// Status swagger:route GET /status statusReq
//
// Returns the node's counters.
//
// Responses:
//    default: genericError
//        200: statusRes
func (c *Operation) statusHandler(rw http.ResponseWriter, _ *http.Request) {
	status, err := c.node.Status()
	if err != nil {
		writeErrorWithStatus(rw, http.StatusInternalServerError, messages.StatusFailure, err)

		return
	}

	statusBytes, err := json.Marshal(status)
	if err != nil {
		writeErrorWithStatus(rw, http.StatusInternalServerError, messages.StatusFailure, err)

		return
	}

	writeJSON(rw, statusBytes)
}

// Get log spec swagger:route GET /logspec getLogSpecReq
//
// Gets the current log levels.
//
// Responses:
//    default: genericError
//        200: getLogSpecRes
func (c *Operation) getLogSpecHandler(rw http.ResponseWriter, _ *http.Request) {
	specBytes, err := json.Marshal(models.LogSpec{Spec: currentLogSpec(c.logModules)})
	if err != nil {
		writeErrorWithStatus(rw, http.StatusInternalServerError, messages.GetLogSpecPrepareErrMsg, err)

		return
	}

	writeJSON(rw, specBytes)
}

// Change log spec swagger:route PUT /logspec changeLogSpecReq
//
// Changes the current log levels. Format: ModuleName1=Level1:ModuleName2=Level2:DefaultLevel.
//
// Responses:
//    default: genericError
//        200: emptyRes
func (c *Operation) changeLogSpecHandler(rw http.ResponseWriter, req *http.Request) {
	requestBody, err := io.ReadAll(http.MaxBytesReader(rw, req.Body, maxLogSpecSize))
	if err != nil {
		writeReadFailure(rw, logSpecRequestName, err)

		return
	}

	var spec models.LogSpec

	if err := json.Unmarshal(requestBody, &spec); err != nil {
		writeInvalidLogSpec(rw, err, requestBody)

		return
	}

	if err := applyLogSpec(spec.Spec); err != nil {
		writeInvalidLogSpec(rw, err, requestBody)

		return
	}

	writePutLogSpecSuccess(rw, requestBody)
}

func readRequestBody(rw http.ResponseWriter, req *http.Request, requestName string,
	limit int64) ([]byte, bool) {
	requestBody, err := io.ReadAll(http.MaxBytesReader(rw, req.Body, limit))
	if err != nil {
		writeReadFailure(rw, requestName, err)

		return nil, false
	}

	if len(requestBody) == 0 {
		writeErrorWithStatus(rw, http.StatusBadRequest, messages.FailReadRequestBody,
			requestName, messages.ErrEmptyRequestBody)

		return nil, false
	}

	return requestBody, true
}

func writeReadFailure(rw http.ResponseWriter, requestName string, err error) {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		writeErrorWithStatus(rw, http.StatusRequestEntityTooLarge, messages.RequestTooLarge, requestName,
			tooLarge.Limit)

		return
	}

	writeErrorWithStatus(rw, http.StatusInternalServerError, messages.FailReadRequestBody, requestName, err)
}
