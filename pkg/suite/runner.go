/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package suite

import (
	"fmt"
	"net"
	"net/url"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/pkg/errors"

	"github.com/hyperledger-archives/aries-protocol-test-suite/pkg/common/log"
)

var logger = log.New("apts/suite")

// Outcome classifies how a test finished.
type Outcome string

// Test outcomes.
const (
	Passed  Outcome = "passed"
	Failed  Outcome = "failed"
	Errored Outcome = "error"
	Skipped Outcome = "skipped"
)

// Result is the outcome of one executed test.
type Result struct {
	Descriptor Descriptor
	Outcome    Outcome
	Reason     string
	Duration   time.Duration
}

// Pass reports whether the result counts as conformant.
func (r Result) Pass() bool {
	return r.Outcome == Passed || r.Outcome == Skipped
}

// Runner executes selected tests sequentially against one context.
type Runner struct {
	ctx *Context

	// probeTimeout bounds the subject readiness wait before the run.
	probeTimeout time.Duration
}

// NewRunner creates a runner for the given context.
func NewRunner(ctx *Context) *Runner {
	return &Runner{ctx: ctx, probeTimeout: 30 * time.Second}
}

// Run probes the subject and executes the entries in order. A failing
// test never stops the run; the suite reports every result.
func (r *Runner) Run(entries []*Entry) ([]Result, error) {
	if err := r.waitForSubject(); err != nil {
		return nil, err
	}

	results := make([]Result, 0, len(entries))

	for _, e := range entries {
		logger.Infof("running %s", e.Descriptor.FlatName())

		res := r.runOne(e)
		results = append(results, res)

		if res.Reason == "" {
			logger.Infof("%s: %s (%s)", e.Descriptor.FlatName(), res.Outcome, res.Duration)
		} else {
			logger.Warnf("%s: %s (%s): %s", e.Descriptor.FlatName(), res.Outcome, res.Duration, res.Reason)
		}
	}

	return results, nil
}

// runOne executes a single test with panic isolation and per-test
// teardown of the agent's expectation state.
func (r *Runner) runOne(e *Entry) (res Result) {
	res.Descriptor = e.Descriptor
	start := time.Now()

	defer func() {
		res.Duration = time.Since(start)

		if p := recover(); p != nil {
			res.Outcome = Errored
			res.Reason = fmt.Sprintf("panic: %v", p)
		}

		// leftover expectations or traffic must not leak into the next
		// test
		if r.ctx.Agent != nil {
			if err := r.ctx.Agent.OK(); err != nil && res.Outcome == Passed {
				res.Outcome = Failed
				res.Reason = err.Error()
			}

			r.ctx.Agent.Reset()
		}
	}()

	err := e.Fn(r.ctx)

	switch {
	case err == nil:
		res.Outcome = Passed
	case errors.Is(err, ErrSkip):
		res.Outcome = Skipped
		res.Reason = skipReason(err)
	default:
		res.Outcome = Failed
		res.Reason = err.Error()
	}

	return res
}

func skipReason(err error) string {
	if err.Error() == ErrSkip.Error() {
		return ""
	}

	return err.Error()
}

// waitForSubject blocks until the subject endpoint accepts connections,
// backing off exponentially. Endpoints without a dialable address (for
// example stdio) are assumed ready.
func (r *Runner) waitForSubject() error {
	addr := dialableAddr(r.ctx.Subject.Endpoint)
	if addr == "" {
		return nil
	}

	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = r.probeTimeout

	probe := func() error {
		conn, err := net.DialTimeout("tcp", addr, 2*time.Second)
		if err != nil {
			logger.Debugf("subject %s not ready: %v", addr, err)
			return err
		}

		return conn.Close()
	}

	if err := backoff.Retry(probe, bo); err != nil {
		return errors.Wrapf(err, "subject %q is not reachable", r.ctx.Subject.Endpoint)
	}

	return nil
}

// dialableAddr extracts host:port from an http/ws endpoint URL, empty
// when the endpoint has no network address.
func dialableAddr(endpoint string) string {
	u, err := url.Parse(endpoint)
	if err != nil || u.Host == "" {
		return ""
	}

	if u.Port() != "" {
		return u.Host
	}

	switch u.Scheme {
	case "http", "ws":
		return net.JoinHostPort(u.Hostname(), "80")
	case "https", "wss":
		return net.JoinHostPort(u.Hostname(), "443")
	}

	return ""
}
