/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package operation

import (
	"fmt"
	"strings"

	"github.com/trustbloc/edge-core/pkg/log"
)

const (
	logSpecModuleSeparator = ":"
	logSpecLevelSeparator  = "="
)

// applyLogSpec parses ModuleName1=Level1:ModuleName2=Level2:DefaultLevel. Nothing is changed unless the
// whole spec parses. The default level, if given, must come last.
func applyLogSpec(spec string) error {
	if strings.TrimSpace(spec) == "" {
		return fmt.Errorf("empty log spec")
	}

	levels := make(map[string]log.Level)

	entries := strings.Split(spec, logSpecModuleSeparator)

	for i, entry := range entries {
		parts := strings.Split(entry, logSpecLevelSeparator)

		switch len(parts) {
		case 1:
			if i != len(entries)-1 {
				return fmt.Errorf("default level %q must be the last entry", entry)
			}

			level, err := log.ParseLevel(parts[0])
			if err != nil {
				return fmt.Errorf("default level %q: %w", parts[0], err)
			}

			levels[""] = level
		case 2:
			if parts[0] == "" {
				return fmt.Errorf("entry %q names no module", entry)
			}

			level, err := log.ParseLevel(parts[1])
			if err != nil {
				return fmt.Errorf("level of module %s: %w", parts[0], err)
			}

			levels[parts[0]] = level
		default:
			return fmt.Errorf("malformed entry %q", entry)
		}
	}

	for module, level := range levels {
		log.SetLevel(module, level)
	}

	return nil
}

func currentLogSpec(modules []string) string {
	entries := make([]string, 0, len(modules)+1)

	for _, module := range modules {
		entries = append(entries, module+logSpecLevelSeparator+log.ParseString(log.GetLevel(module)))
	}

	entries = append(entries, log.ParseString(log.GetLevel("")))

	return strings.Join(entries, logSpecModuleSeparator)
}
