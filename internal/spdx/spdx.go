// Package spdx provides a minimal, embedded table of SPDX license
// identifiers for publish-time manifest validation (spec section 4.F
// step 1: "license identifier (when given) parses against an SPDX
// list"). There is no SPDX-parsing library anywhere in the example
// pack, and the full SPDX list changes independently of this tool's
// release cadence, so this carries the common subset actually seen on
// registries rather than vendoring the complete upstream list.
package spdx

import "strings"

// knownIDs is not exhaustive; it covers the identifiers that show up in
// the overwhelming majority of published open-source packages.
var knownIDs = map[string]bool{
	"MIT":          true,
	"Apache-2.0":   true,
	"BSD-2-Clause": true,
	"BSD-3-Clause": true,
	"ISC":          true,
	"MPL-2.0":      true,
	"GPL-2.0-only": true,
	"GPL-2.0-or-later": true,
	"GPL-3.0-only": true,
	"GPL-3.0-or-later": true,
	"LGPL-2.1-only": true,
	"LGPL-2.1-or-later": true,
	"LGPL-3.0-only": true,
	"LGPL-3.0-or-later": true,
	"AGPL-3.0-only": true,
	"AGPL-3.0-or-later": true,
	"Unlicense":    true,
	"CC0-1.0":      true,
	"Zlib":         true,
	"BSL-1.0":      true,
	"WTFPL":        true,
}

// Valid reports whether id is a recognized SPDX license identifier, or a
// valid "OR"/"AND" compound expression of recognized identifiers (the
// common subset of SPDX expression syntax actually used in package
// manifests).
func Valid(id string) bool {
	if id == "" {
		return false
	}
	for _, part := range strings.FieldsFunc(id, func(r rune) bool {
		return r == ' ' || r == '(' || r == ')'
	}) {
		switch part {
		case "OR", "AND", "WITH":
			continue
		default:
			if !knownIDs[part] {
				return false
			}
		}
	}
	return true
}
