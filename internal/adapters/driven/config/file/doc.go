// Package file provides file-based implementations of driven port interfaces.
//
// Adapters:
//   - ConfigStore: TOML or YAML configuration file, read-only
//   - LoadEnv: .env files merged into the process environment
package file
