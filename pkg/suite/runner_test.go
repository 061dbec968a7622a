/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package suite

import (
	"net"
	"os"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"

	"github.com/hyperledger-archives/aries-protocol-test-suite/pkg/agent"
	"github.com/hyperledger-archives/aries-protocol-test-suite/pkg/kms/legacykms"
)

func newRunnerFixture(t *testing.T) (*Runner, *Registry) {
	t.Helper()

	a, err := agent.New(legacykms.New())
	require.NoError(t, err)

	return NewRunner(&Context{Agent: a}), NewRegistry()
}

func outcomes(results []Result) []Outcome {
	out := make([]Outcome, 0, len(results))
	for _, r := range results {
		out = append(out, r.Outcome)
	}

	return out
}

func TestRunner(t *testing.T) {
	t.Run("test runner - outcome per test", func(t *testing.T) {
		runner, registry := newRunnerFixture(t)

		require.NoError(t, registry.Register(desc("connections", "inviter", "passes"),
			func(*Context) error { return nil }))
		require.NoError(t, registry.Register(desc("connections", "inviter", "fails"),
			func(*Context) error { return errors.New("subject replied with the wrong state") }))
		require.NoError(t, registry.Register(desc("connections", "inviter", "skips"),
			func(*Context) error { return errors.Wrap(ErrSkip, "feature not configured") }))
		require.NoError(t, registry.Register(desc("connections", "inviter", "panics"),
			func(*Context) error { panic("boom") }))

		selected, err := registry.Select(nil, false)
		require.NoError(t, err)

		results, err := runner.Run(selected)
		require.NoError(t, err)
		require.Equal(t, []Outcome{Passed, Failed, Skipped, Errored}, outcomes(results))

		require.Equal(t, "subject replied with the wrong state", results[1].Reason)
		require.Contains(t, results[2].Reason, "feature not configured")
		require.Contains(t, results[3].Reason, "panic: boom")
	})

	t.Run("test runner - failing test does not stop the run", func(t *testing.T) {
		runner, registry := newRunnerFixture(t)

		require.NoError(t, registry.Register(desc("trust_ping", "sender", "fails"),
			func(*Context) error { return errors.New("no response") }))
		require.NoError(t, registry.Register(desc("trust_ping", "sender", "passes"),
			func(*Context) error { return nil }))

		selected, err := registry.Select(nil, false)
		require.NoError(t, err)

		results, err := runner.Run(selected)
		require.NoError(t, err)
		require.Equal(t, []Outcome{Failed, Passed}, outcomes(results))
	})

	t.Run("test runner - unsolicited traffic fails a passing test", func(t *testing.T) {
		runner, registry := newRunnerFixture(t)

		require.NoError(t, registry.Register(desc("trust_ping", "sender", "leaks-traffic"),
			func(ctx *Context) error {
				ctx.Agent.InboundMessageHandler()([]byte("garbage"), nil)
				return nil
			}))
		require.NoError(t, registry.Register(desc("trust_ping", "sender", "clean"),
			func(ctx *Context) error { return ctx.Agent.OK() }))

		selected, err := registry.Select(nil, false)
		require.NoError(t, err)

		results, err := runner.Run(selected)
		require.NoError(t, err)
		require.Equal(t, []Outcome{Failed, Passed}, outcomes(results))
		require.Contains(t, results[0].Reason, "agent not ok")
	})

	t.Run("test runner - subject probe succeeds against a listener", func(t *testing.T) {
		listener, err := net.Listen("tcp", "127.0.0.1:0")
		require.NoError(t, err)

		defer func() {
			require.NoError(t, listener.Close())
		}()

		runner, registry := newRunnerFixture(t)
		runner.ctx.Subject = Subject{Endpoint: "http://" + listener.Addr().String()}

		require.NoError(t, registry.Register(desc("trust_ping", "sender", "passes"),
			func(*Context) error { return nil }))

		selected, err := registry.Select(nil, false)
		require.NoError(t, err)

		results, err := runner.Run(selected)
		require.NoError(t, err)
		require.Len(t, results, 1)
	})

	t.Run("test runner - unreachable subject aborts the run", func(t *testing.T) {
		runner, _ := newRunnerFixture(t)
		runner.ctx.Subject = Subject{Endpoint: "http://localhost:1"}
		runner.probeTimeout = 300 * time.Millisecond

		_, err := runner.Run(nil)
		require.Error(t, err)
		require.Contains(t, err.Error(), "is not reachable")
	})
}

func TestDialableAddr(t *testing.T) {
	t.Run("test dialable addr", func(t *testing.T) {
		require.Equal(t, "localhost:8080", dialableAddr("http://localhost:8080"))
		require.Equal(t, "localhost:8081", dialableAddr("ws://localhost:8081/path"))
		require.Equal(t, "example.com:80", dialableAddr("http://example.com"))
		require.Equal(t, "example.com:443", dialableAddr("wss://example.com"))
		require.Empty(t, dialableAddr("stdio"))
		require.Empty(t, dialableAddr(""))
	})
}

func TestReport(t *testing.T) {
	results := []Result{
		{Descriptor: desc("connections", "inviter", "passes"), Outcome: Passed, Duration: time.Second},
		{Descriptor: desc("connections", "inviter", "fails"), Outcome: Failed, Reason: "wrong state"},
		{Descriptor: desc("trust_ping", "sender", "skips"), Outcome: Skipped},
	}

	t.Run("test report - interop profile fields", func(t *testing.T) {
		report := NewReport(Subject{Name: "subject-agent", Version: "0.9.1"}, results)

		require.Equal(t, InteropProfileType, report.Type)
		require.Equal(t, "subject-agent", report.UnderTestName)
		require.Equal(t, "0.9.1", report.UnderTestVersion)
		require.Len(t, report.Results, 3)

		require.Equal(t, "connections,1.0,inviter,passes", report.Results[0].Name)
		require.True(t, report.Results[0].Pass)
		require.False(t, report.Results[1].Pass)
		require.Equal(t, "wrong state", report.Results[1].Reason)
		require.True(t, report.Results[2].Pass)

		require.False(t, report.AllPassed())
		require.Equal(t, "3 tests: 1 passed, 1 failed, 0 error, 1 skipped", report.Summary())
	})

	t.Run("test report - write file", func(t *testing.T) {
		report := NewReport(Subject{Name: "subject-agent"}, results[:1])

		path := t.TempDir() + "/report.json"
		require.NoError(t, report.WriteFile(path))

		written, err := os.ReadFile(path)
		require.NoError(t, err)
		require.Contains(t, string(written), InteropProfileType)
		require.Contains(t, string(written), `"pass": true`)
	})
}
