/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "config.yml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	return path
}

func TestLoad(t *testing.T) {
	t.Run("test load - full configuration", func(t *testing.T) {
		cfg, err := Load(writeConfig(t, `
host: 0.0.0.0
port: 3001
endpoint: http://suite.example.com:3001
wallet:
  name: suite-wallet
  passphrase: secret
  ephemeral: false
tests:
  - connections
  - trust_ping,1.0
transport:
  - name: http+ws
  - name: stdio
subject:
  name: subject-agent
  version: 0.9.1
  endpoint: http://localhost:3002
`))
		require.NoError(t, err)
		require.Equal(t, "0.0.0.0:3001", cfg.Addr())
		require.Equal(t, "http://suite.example.com:3001", cfg.Endpoint)
		require.Equal(t, "suite-wallet", cfg.Wallet.Name)
		require.False(t, cfg.Wallet.Ephemeral)
		require.Equal(t, []string{"connections", "trust_ping,1.0"}, cfg.Tests)
		require.Len(t, cfg.Transport, 2)
		require.Equal(t, "subject-agent", cfg.Subject.Name)
	})

	t.Run("test load - defaults fill the gaps", func(t *testing.T) {
		cfg, err := Load(writeConfig(t, `
subject:
  endpoint: http://localhost:3002
`))
		require.NoError(t, err)
		require.Equal(t, "localhost", cfg.Host)
		require.Equal(t, 3000, cfg.Port)
		require.Equal(t, "http://localhost:3000", cfg.Endpoint)
		require.True(t, cfg.Wallet.Ephemeral)
		require.Equal(t, []Transport{{Name: "http"}}, cfg.Transport)
	})

	t.Run("test load - missing file", func(t *testing.T) {
		_, err := Load("does-not-exist.yml")
		require.Error(t, err)
	})

	t.Run("test load - invalid yaml", func(t *testing.T) {
		_, err := Load(writeConfig(t, "host: [unclosed"))
		require.Error(t, err)
	})

	t.Run("test load - invalid port", func(t *testing.T) {
		_, err := Load(writeConfig(t, "port: 70000"))
		require.Error(t, err)
		require.Contains(t, err.Error(), "invalid port")
	})

	t.Run("test load - unknown transport", func(t *testing.T) {
		_, err := Load(writeConfig(t, `
transport:
  - name: carrier-pigeon
`))
		require.Error(t, err)
		require.Contains(t, err.Error(), `unknown transport "carrier-pigeon"`)
	})
}

func TestDecodeOptions(t *testing.T) {
	t.Run("test decode options - maps onto the option struct", func(t *testing.T) {
		cfg, err := Load(writeConfig(t, `
transport:
  - name: http
    options:
      external_addr: http://suite.example.com:3000
      timeout_seconds: 15
`))
		require.NoError(t, err)

		var opts struct {
			ExternalAddr   string `mapstructure:"external_addr"`
			TimeoutSeconds int    `mapstructure:"timeout_seconds"`
		}

		require.NoError(t, cfg.Transport[0].DecodeOptions(&opts))
		require.Equal(t, "http://suite.example.com:3000", opts.ExternalAddr)
		require.Equal(t, 15, opts.TimeoutSeconds)
	})

	t.Run("test decode options - type mismatch", func(t *testing.T) {
		tr := Transport{Name: "http", Options: map[string]interface{}{"timeout_seconds": "soon"}}

		var opts struct {
			TimeoutSeconds int `mapstructure:"timeout_seconds"`
		}

		require.Error(t, tr.DecodeOptions(&opts))
	})
}
