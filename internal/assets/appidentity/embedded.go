package appidentityassets

import _ "embed"

// YAML is the embedded copy of `.fulmen/app.yaml` used when the binary runs
// outside a checkout and no identity file can be discovered.
//
//go:embed app.yaml
var YAML []byte
