/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package config loads the suite configuration: where the harness
// listens, which wallet it uses, which tests run and how the agent under
// test is reached.
package config

import (
	"fmt"
	"net"
	"os"
	"strconv"

	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"
)

// Wallet configures the harness key store.
type Wallet struct {
	Name       string `yaml:"name"`
	Passphrase string `yaml:"passphrase"`
	// Ephemeral wallets are discarded when the process exits; named
	// non-ephemeral wallets keep their keys for the process lifetime.
	Ephemeral bool `yaml:"ephemeral"`
}

// Transport is one inbound transport block. Options are
// transport-specific and decoded by the transport's own option struct.
type Transport struct {
	Name    string                 `yaml:"name"`
	Options map[string]interface{} `yaml:"options"`
}

// DecodeOptions maps the raw option block onto a transport option
// struct.
func (t Transport) DecodeOptions(out interface{}) error {
	if err := mapstructure.Decode(t.Options, out); err != nil {
		return fmt.Errorf("transport %q options: %w", t.Name, err)
	}

	return nil
}

// Subject identifies and locates the agent under test.
type Subject struct {
	Name     string `yaml:"name"`
	Version  string `yaml:"version"`
	Endpoint string `yaml:"endpoint"`
	// VerKey is the subject's base58 verification key, for tests that
	// message the subject before a connection protocol has run.
	VerKey string `yaml:"verkey"`
}

// Suite is the full suite configuration.
type Suite struct {
	Host      string      `yaml:"host"`
	Port      int         `yaml:"port"`
	Endpoint  string      `yaml:"endpoint"`
	Wallet    Wallet      `yaml:"wallet"`
	Tests     []string    `yaml:"tests"`
	Transport []Transport `yaml:"transport"`
	Subject   Subject     `yaml:"subject"`
}

// Default is the configuration used when the file leaves a key unset.
func Default() *Suite {
	return &Suite{
		Host: "localhost",
		Port: 3000,
		Wallet: Wallet{
			Name:      "apts",
			Ephemeral: true,
		},
		Transport: []Transport{{Name: "http"}},
	}
}

// Load reads a YAML configuration file over the defaults.
func Load(path string) (*Suite, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %q: %w", path, err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %q: %w", path, err)
	}

	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Addr is the listen address of the harness transports.
func (c *Suite) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

func (c *Suite) applyDefaults() {
	if c.Endpoint == "" {
		c.Endpoint = "http://" + c.Addr()
	}

	if len(c.Transport) == 0 {
		c.Transport = []Transport{{Name: "http"}}
	}
}

// Validate rejects configurations the harness cannot start with.
func (c *Suite) Validate() error {
	if c.Host == "" {
		return fmt.Errorf("config: host is mandatory")
	}

	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("config: invalid port %d", c.Port)
	}

	for _, tr := range c.Transport {
		switch tr.Name {
		case "http", "ws", "http+ws", "stdio":
		default:
			return fmt.Errorf("config: unknown transport %q", tr.Name)
		}
	}

	return nil
}
