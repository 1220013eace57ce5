/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package models

// LogSpec is the body of the log spec endpoints.
type LogSpec struct {
	Spec string `json:"spec"`
}
