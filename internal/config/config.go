// Package config resolves the server's startup configuration from CLI
// flags with an optional TOML overlay, matching the CLI surface spec
// defines: a required store path and VDF difficulty, a TLS group
// mutually exclusive with an insecure flag, and a handful of optional
// paths and ports.
package config

import (
	"errors"

	"github.com/BurntSushi/toml"
)

// Defaults for the optional port flags, per spec's CLI surface.
const (
	DefaultBeneficiaryPort = 4949
	DefaultTestatorPort    = 4950
)

// ErrTLSConfigIncomplete is returned when any one of cert/key/testator-ca
// is set without the other two, and insecure mode wasn't requested.
var ErrTLSConfigIncomplete = errors.New("config: cert, key and testator-ca must all be set together")

// ErrTLSAndInsecureConflict is returned when both a TLS flag and
// --insecure are given.
var ErrTLSAndInsecureConflict = errors.New("config: TLS flags and --insecure are mutually exclusive")

// Config is the fully resolved startup configuration for the custodian
// server.
type Config struct {
	StorePath  string
	Difficulty uint64

	CertPath       string
	KeyPath        string
	TestatorCAPath string
	Insecure       bool

	VDFParamsPath   string
	BeneficiaryPort int
	TestatorPort    int
}

// overlay is the shape of an optional TOML config file: every field is
// optional and only fills in flags the caller didn't set on the command
// line (CLI flags always win — see Merge).
type overlay struct {
	StorePath       string `toml:"store_path"`
	Difficulty      uint64 `toml:"difficulty"`
	CertPath        string `toml:"cert"`
	KeyPath         string `toml:"key"`
	TestatorCAPath  string `toml:"testator_ca"`
	Insecure        bool   `toml:"insecure"`
	VDFParamsPath   string `toml:"vdf_params"`
	BeneficiaryPort int    `toml:"beneficiary_api_port"`
	TestatorPort    int    `toml:"testator_api_port"`
}

// LoadOverlay parses a TOML file at path into a Config, leaving
// zero-valued fields for anything absent.
func LoadOverlay(path string) (Config, error) {
	var o overlay
	if _, err := toml.DecodeFile(path, &o); err != nil {
		return Config{}, err
	}
	return Config{
		StorePath:       o.StorePath,
		Difficulty:      o.Difficulty,
		CertPath:        o.CertPath,
		KeyPath:         o.KeyPath,
		TestatorCAPath:  o.TestatorCAPath,
		Insecure:        o.Insecure,
		VDFParamsPath:   o.VDFParamsPath,
		BeneficiaryPort: o.BeneficiaryPort,
		TestatorPort:    o.TestatorPort,
	}, nil
}

// Merge fills zero-valued fields of cli from overlay, giving CLI flags
// priority over the TOML file.
func Merge(cli, overlay Config) Config {
	merged := cli
	if merged.StorePath == "" {
		merged.StorePath = overlay.StorePath
	}
	if merged.Difficulty == 0 {
		merged.Difficulty = overlay.Difficulty
	}
	if merged.CertPath == "" {
		merged.CertPath = overlay.CertPath
	}
	if merged.KeyPath == "" {
		merged.KeyPath = overlay.KeyPath
	}
	if merged.TestatorCAPath == "" {
		merged.TestatorCAPath = overlay.TestatorCAPath
	}
	if !merged.Insecure {
		merged.Insecure = overlay.Insecure
	}
	if merged.VDFParamsPath == "" {
		merged.VDFParamsPath = overlay.VDFParamsPath
	}
	if merged.BeneficiaryPort == 0 {
		merged.BeneficiaryPort = overlay.BeneficiaryPort
	}
	if merged.TestatorPort == 0 {
		merged.TestatorPort = overlay.TestatorPort
	}
	return merged
}

// ApplyDefaults fills the port fields with their documented defaults if
// still unset.
func (c Config) ApplyDefaults() Config {
	if c.BeneficiaryPort == 0 {
		c.BeneficiaryPort = DefaultBeneficiaryPort
	}
	if c.TestatorPort == 0 {
		c.TestatorPort = DefaultTestatorPort
	}
	return c
}

// Validate checks the TLS-group/insecure mutual exclusion rule.
func (c Config) Validate() error {
	tlsFieldsSet := c.CertPath != "" || c.KeyPath != "" || c.TestatorCAPath != ""
	if c.Insecure && tlsFieldsSet {
		return ErrTLSAndInsecureConflict
	}
	if !c.Insecure {
		allSet := c.CertPath != "" && c.KeyPath != "" && c.TestatorCAPath != ""
		if tlsFieldsSet && !allSet {
			return ErrTLSConfigIncomplete
		}
		if !tlsFieldsSet {
			return ErrTLSConfigIncomplete
		}
	}
	return nil
}
