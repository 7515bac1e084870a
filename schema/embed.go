package schema

import _ "embed"

// ManifestV1Schema contains the JSON schema for tickwatch manifests.
//
//go:embed tickwatch.v1.json
var ManifestV1Schema []byte
