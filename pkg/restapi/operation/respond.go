/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package operation

import (
	"fmt"
	"io"
	"net/http"

	"github.com/trustbloc/prenet/pkg/node"
	"github.com/trustbloc/prenet/pkg/restapi/messages"
)

const (
	contentTypeHeader = "Content-Type"
	contentTypeJSON   = "application/json"
	contentTypeBinary = "application/octet-stream"
)

func writeResult(rw http.ResponseWriter, requestName string, result *node.Result) {
	if result.Status != node.StatusOK {
		message := fmt.Sprintf(messages.RequestRejected, requestName, result.Reason, result.Message)

		if result.Status == node.StatusInternalError {
			logger.Errorf("%s", message)
		} else {
			logger.Debugf("%s", message)
		}

		rw.WriteHeader(result.Status.HTTPCode())

		if _, errWrite := rw.Write([]byte(message)); errWrite != nil {
			logger.Errorf(messages.RequestRejected+messages.FailWriteResponse,
				requestName, result.Reason, result.Message, errWrite)
		}

		return
	}

	logger.Debugf(messages.RequestAccepted, requestName, result.Reason)

	rw.Header().Set(contentTypeHeader, contentTypeBinary)

	if _, errWrite := rw.Write(result.Body); errWrite != nil {
		logger.Errorf(messages.RequestAccepted+messages.FailWriteResponse, requestName, result.Reason, errWrite)
	}
}

func writeErrorWithStatus(rw http.ResponseWriter, status int, format string, args ...interface{}) {
	message := fmt.Sprintf(format, args...)

	logger.Errorf("%s", message)

	rw.WriteHeader(status)

	if _, errWrite := rw.Write([]byte(message)); errWrite != nil {
		logger.Errorf("%s"+messages.FailWriteResponse, message, errWrite)
	}
}

func writeJSON(rw http.ResponseWriter, body []byte) {
	rw.Header().Set(contentTypeHeader, contentTypeJSON)

	if _, errWrite := rw.Write(body); errWrite != nil {
		logger.Errorf("Failed to write JSON response: %s", errWrite)
	}
}

// Always prints out full debug data at the "error" level, since the method that calls this one is the one
// that allows log levels to be updated.
func writeInvalidLogSpec(rw http.ResponseWriter, err error, receivedData []byte) {
	logger.Errorf(messages.DebugLogEventWithReceivedData, fmt.Sprintf(messages.InvalidLogSpec, err), receivedData)

	rw.WriteHeader(http.StatusBadRequest)

	_, errWrite := rw.Write([]byte(fmt.Sprintf(messages.InvalidLogSpec, err)))
	if errWrite != nil {
		logger.Errorf(messages.DebugLogEventWithReceivedData,
			fmt.Sprintf(messages.InvalidLogSpec+messages.FailWriteResponse, err, errWrite), receivedData)
	}
}

func writePutLogSpecSuccess(rw io.Writer, requestBody []byte) {
	_, errWrite := rw.Write([]byte(messages.SetLogSpecSuccess))
	if errWrite != nil {
		logger.Errorf(messages.SetLogSpecSuccess+messages.FailWriteResponse, errWrite)
		logger.Debugf(messages.DebugLogEventWithReceivedData,
			fmt.Sprintf(messages.SetLogSpecSuccess+messages.FailWriteResponse, errWrite), requestBody)
	}
}
