// Package configs provides the embedded configuration template.
//
// The template is embedded at build time so 'tradesearch init' can write a
// commented starter config regardless of how the binary was installed.
package configs

import _ "embed"

//go:embed tradesearch.example.yaml
var ExampleConfig string
