package replay

import _ "embed"

// DemoScript is the built-in demonstration session used by cmd/demo
//
//go:embed scripts/demo.yaml
var DemoScript []byte
