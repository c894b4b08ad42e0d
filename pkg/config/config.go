package config

import (
	"errors"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/perun-network/perun-client-go/pkg/wallet"
)

// Config holds all settings required to initialize a channel client.
// Use Validate to fill implicit defaults and to check for required fields.
type Config struct {
	// WireIdentity is this client's opaque peer-wire address (required).
	// The reference transport uses simple name strings.
	WireIdentity string `json:"wire_identity" yaml:"wire_identity"`
	// PrivateKey is the hex-encoded ECDSA participant key used for channel
	// signatures (required). Both "0x"-prefixed and bare forms are accepted.
	PrivateKey string `json:"private_key" yaml:"private_key"`
	// Receiver is the on-chain address withdrawals are authorized to. When
	// empty it defaults to the address of PrivateKey.
	Receiver string `json:"receiver" yaml:"receiver"`
	// ChallengeDuration is a default dispute window in seconds. Default: 60.
	// The client does not apply it to proposals: Client.Propose takes the
	// window from ProposalSpec.ChallengeDuration and rejects zero.
	ChallengeDuration uint64 `json:"challenge_duration" yaml:"challenge_duration"`
	// Debug is not read by the client; the logger installed by the client
	// package logs at Info level whatever its value.
	Debug bool `json:"debug" yaml:"debug"`
	// Timeouts configures per-operation deadlines the host enforces. See
	// Timeouts.WithDefaults for defaults.
	Timeouts Timeouts `json:"timeouts" yaml:"timeouts"`

	// signer is the parsed participant key (lazy-loaded on first access).
	signer *wallet.LocalSigner
}

// Timeouts controls the deadlines the host applies to inter-party
// operations. The client itself never blocks; on expiry the host calls
// Client.Timeout / Client.TimeoutProposal.
// Zero values will be replaced by sane defaults in WithDefaults.
type Timeouts struct {
	ProposalResponse time.Duration // peer answer to ProposalMsg
	UpdateResponse   time.Duration // peer answer to ChannelUpdateMsg
	Funding          time.Duration // funder deposit confirmation
	Conclude         time.Duration // watcher conclusion after finalize/dispute
	RemoteCall       time.Duration // any other remote-service request
}

// Validate normalizes the configuration by applying implicit defaults for
// ChallengeDuration and Timeouts and verifies that WireIdentity and
// PrivateKey are provided.
func (c *Config) Validate() error {
	if c.WireIdentity == "" {
		return errors.New("wire identity is required")
	}
	if c.PrivateKey == "" {
		return errors.New("private key is required")
	}
	if c.ChallengeDuration == 0 {
		c.ChallengeDuration = 60
	}
	c.Timeouts = c.Timeouts.WithDefaults()
	return nil
}

// WithDefaults returns a copy of t with zero values replaced by defaults:
//
//	ProposalResponse: 30s
//	UpdateResponse:   15s
//	Funding:          120s
//	Conclude:         300s
//	RemoteCall:       30s
func (t Timeouts) WithDefaults() Timeouts {
	tt := t
	if tt.ProposalResponse == 0 {
		tt.ProposalResponse = 30 * time.Second
	}
	if tt.UpdateResponse == 0 {
		tt.UpdateResponse = 15 * time.Second
	}
	if tt.Funding == 0 {
		tt.Funding = 120 * time.Second
	}
	if tt.Conclude == 0 {
		tt.Conclude = 300 * time.Second
	}
	if tt.RemoteCall == 0 {
		tt.RemoteCall = 30 * time.Second
	}
	return tt
}

// Signer returns the participant signer backed by PrivateKey.
// It parses the hex string on first call and caches the result.
func (c *Config) Signer() (*wallet.LocalSigner, error) {
	if c.signer != nil {
		return c.signer, nil
	}
	signer, err := wallet.NewLocalSignerHex(c.PrivateKey)
	if err != nil {
		return nil, err
	}
	c.signer = signer
	return c.signer, nil
}

// ReceiverAddress returns the configured withdrawal receiver, falling back
// to the participant address when unset or when the key cannot be parsed.
func (c *Config) ReceiverAddress() common.Address {
	if c.Receiver != "" {
		return common.HexToAddress(c.Receiver)
	}
	if signer, err := c.Signer(); err == nil {
		return signer.Address()
	}
	return common.Address{}
}
