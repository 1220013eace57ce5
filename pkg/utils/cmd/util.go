/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package cmd

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"
)

// GetUserSetVarFromString returns values either command line flag or environment variable.
// An optional variable that is set nowhere is returned empty without error.
func GetUserSetVarFromString(cmd *cobra.Command, flagName, envKey string, isOptional bool) (string, error) {
	if cmd.Flags().Changed(flagName) {
		value, err := cmd.Flags().GetString(flagName)
		if err != nil {
			return "", fmt.Errorf(flagName+" flag not found: %s", err)
		}

		if value == "" {
			return "", fmt.Errorf("%s value is empty", flagName)
		}

		return value, nil
	}

	value, isSet := os.LookupEnv(envKey)

	if isSet {
		if value == "" {
			return "", fmt.Errorf("%s value is empty", envKey)
		}

		return value, nil
	}

	if isOptional {
		return "", nil
	}

	return "", fmt.Errorf("Neither %s (command line flag) nor %s (environment variable) have been set.", //nolint: stylecheck,golint,lll
		flagName, envKey)
}

// GetUserSetVarFromBool is GetUserSetVarFromString for boolean variables. Unset means false.
func GetUserSetVarFromBool(cmd *cobra.Command, flagName, envKey string) (bool, error) {
	if cmd.Flags().Changed(flagName) {
		return cmd.Flags().GetBool(flagName)
	}

	value, isSet := os.LookupEnv(envKey)
	if !isSet {
		return false, nil
	}

	b, err := strconv.ParseBool(value)
	if err != nil {
		return false, fmt.Errorf("invalid value for %s: %w", envKey, err)
	}

	return b, nil
}

// GetDuration returns an optional duration variable, or defaultValue when it isn't set.
func GetDuration(cmd *cobra.Command, flagName, envKey string, defaultValue time.Duration) (time.Duration, error) {
	value, err := GetUserSetVarFromString(cmd, flagName, envKey, true)
	if err != nil {
		return 0, err
	}

	if value == "" {
		return defaultValue, nil
	}

	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid value for %s: %w", flagName, err)
	}

	return d, nil
}
