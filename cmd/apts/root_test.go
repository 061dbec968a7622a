/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hyperledger-archives/aries-protocol-test-suite/pkg/config"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()

	cmd := newRootCmd()

	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)

	err := cmd.Execute()

	return out.String(), err
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "config.yml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	return path
}

func TestListFlag(t *testing.T) {
	t.Run("test list - non-manual tests by default", func(t *testing.T) {
		out, err := execute(t, "-L")
		require.NoError(t, err)
		require.Contains(t, out, "trust_ping,1.0,receiver,responds-to-ping")
		require.NotContains(t, out, "basicmessage")
	})

	t.Run("test list - manual tests opt in", func(t *testing.T) {
		out, err := execute(t, "-L", "--manual")
		require.NoError(t, err)
		require.Contains(t, out, "basicmessage,1.0,receiver,delivers-to-operator [manual]")
		require.Contains(t, out, "basicmessage,1.0,sender,sends-well-formed-message [manual]")
	})

	t.Run("test list - filtered by selection", func(t *testing.T) {
		out, err := execute(t, "-L", "-S", "basicmessage", "--manual")
		require.NoError(t, err)
		require.NotContains(t, out, "trust_ping")
		require.Contains(t, out, "basicmessage")
	})

	t.Run("test list - honors configured tests patterns", func(t *testing.T) {
		cfgPath := writeConfig(t, `
tests:
  - basicmessage
`)

		out, err := execute(t, "-L", "--manual", "-c", cfgPath)
		require.NoError(t, err)
		require.NotContains(t, out, "trust_ping")
		require.Contains(t, out, "basicmessage")
	})

	t.Run("test list - invalid config file", func(t *testing.T) {
		cfgPath := writeConfig(t, `
transport:
  - name: carrier-pigeon
`)

		_, err := execute(t, "-L", "-c", cfgPath)
		require.Error(t, err)
	})
}

func TestRun(t *testing.T) {
	t.Run("test run - empty selection is an error", func(t *testing.T) {
		cfgPath := writeConfig(t, `
subject:
  endpoint: http://localhost:3002
`)

		_, err := execute(t, "-c", cfgPath, "-S", "no-such-protocol")
		require.Error(t, err)
		require.Contains(t, err.Error(), "no tests selected")
	})

	t.Run("test run - missing config file", func(t *testing.T) {
		_, err := execute(t, "-c", "no-such-config.yml")
		require.Error(t, err)
	})

	t.Run("test run - bad log level", func(t *testing.T) {
		_, err := execute(t, "--log-level", "verbose")
		require.Error(t, err)
		require.Contains(t, err.Error(), "invalid log level")
	})
}

func TestNewInbound(t *testing.T) {
	cfg := config.Default()
	cfg.Endpoint = "http://localhost:3000"

	t.Run("test new inbound - configured variants", func(t *testing.T) {
		for _, name := range []string{"http", "ws", "http+ws", "stdio"} {
			in, err := newInbound(name, inboundOptions{Addr: "localhost:3000"}, cfg)
			require.NoError(t, err, name)
			require.NotNil(t, in, name)
		}
	})

	t.Run("test new inbound - external address override", func(t *testing.T) {
		in, err := newInbound("ws", inboundOptions{
			Addr:         "localhost:3000",
			ExternalAddr: "ws://suite.example.com:3000",
		}, cfg)
		require.NoError(t, err)
		require.Equal(t, "ws://suite.example.com:3000", in.Endpoint())
	})

	t.Run("test new inbound - unknown name", func(t *testing.T) {
		_, err := newInbound("carrier-pigeon", inboundOptions{Addr: "localhost:3000"}, cfg)
		require.Error(t, err)
	})
}

func TestTransportOpts(t *testing.T) {
	t.Run("test transport opts - builds all configured transports", func(t *testing.T) {
		cfg := config.Default()
		cfg.Endpoint = "http://localhost:3000"
		cfg.Transport = []config.Transport{
			{Name: "http+ws"},
			{Name: "stdio"},
		}

		opts, err := transportOpts(cfg)
		require.NoError(t, err)
		// three outbound transports plus two inbound ones
		require.Len(t, opts, 5)
	})

	t.Run("test transport opts - bad option type", func(t *testing.T) {
		cfg := config.Default()
		cfg.Transport = []config.Transport{
			{Name: "http", Options: map[string]interface{}{"addr": 42}},
		}

		_, err := transportOpts(cfg)
		require.Error(t, err)
	})
}
