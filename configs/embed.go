// Package configs provides embedded configuration templates for idxstore.
//
// The user template is written by `idxstore config init` to
// ~/.config/idxstore/config.yaml. Values left commented out fall back to the
// defaults in internal/config NewConfig().
package configs

import _ "embed"

// UserConfigTemplate is the template for user/machine-level configuration.
//
//go:embed user-config.example.yaml
var UserConfigTemplate string
