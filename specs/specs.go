// Package specs bundles the ASTERIX category specifications shipped with
// the codec. Each XML file describes one category; see internal/schema for
// the document format.
package specs

import "embed"

// Files holds the embedded category specification documents.
//
//go:embed *.xml
var Files embed.FS
