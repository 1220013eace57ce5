/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package messages

const (
	// ErrEmptyRequestBody is returned when a protocol endpoint receives no payload.
	ErrEmptyRequestBody = restError("request body is empty")

	// FailWriteResponse is logged when a ResponseWriter fails to write.
	FailWriteResponse = ` Failed to write response back to sender: %s.`

	// DebugLogEventWithReceivedData is used for logging debug events along with the data the sender provided.
	DebugLogEventWithReceivedData = `%s Received data: %s`

	// RequestTooLarge is used when a request body exceeds what the endpoint accepts.
	RequestTooLarge = "Received %s request larger than %d bytes."

	// FailReadRequestBody is used when the incoming request body can't be read.
	// This should not happen during normal operation.
	FailReadRequestBody = "Received %s request, but failed to read the request body: %s."

	// RequestRejected is used when the node refuses a request.
	RequestRejected = "Node refused %s request (%s): %s"
	// RequestAccepted is used when the node serves a request.
	RequestAccepted = "Node served %s request (%s)."

	// PublicInformationFailure is used when the node's public information can't be marshalled.
	// This should not happen during normal operation.
	PublicInformationFailure = "Failed to prepare public information: %s."
	// StatusFailure is used when the node status can't be computed.
	StatusFailure = "Failed to prepare node status: %s."

	// InvalidLogSpec is used when a request is made to change the current log specification
	// but it is in an invalid format.
	InvalidLogSpec = `Invalid log spec: %s. It needs to be in the following format: ` +
		`ModuleName1=Level1:ModuleName2=Level2:ModuleNameN=LevelN:AllOtherModuleDefaultLevel
Valid log levels: critical,error,warning,info,debug`
	// SetLogSpecSuccess is used when the current log specification is successfully changed.
	SetLogSpecSuccess = "Successfully set log level(s)."
	// GetLogSpecPrepareErrMsg is used when an error occurs while preparing the
	// list of current log levels for the sender. This should not happen during normal operation.
	GetLogSpecPrepareErrMsg = "Failure while preparing log level response: %s"
)

type restError string

func (e restError) Error() string { return string(e) }
