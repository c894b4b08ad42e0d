// Package config defines the runtime configuration for the channel client:
// the wire identity, the participant signing key, the on-chain receiver
// address, and per-operation timeouts. It also provides validation and
// defaulting helpers.
package config
