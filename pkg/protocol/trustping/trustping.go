/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package trustping contains the trust ping conformance tests.
package trustping

import (
	"time"

	"github.com/pkg/errors"

	"github.com/hyperledger-archives/aries-protocol-test-suite/pkg/agent"
	"github.com/hyperledger-archives/aries-protocol-test-suite/pkg/didcomm/message"
	"github.com/hyperledger-archives/aries-protocol-test-suite/pkg/suite"
)

// Trust ping message types.
const (
	PingType         = "did:sov:BzCbsNYhMrjHiqZDTUASHg;spec/trust_ping/1.0/ping"
	PingResponseType = "did:sov:BzCbsNYhMrjHiqZDTUASHg;spec/trust_ping/1.0/ping_response"
)

const responseTimeout = 30 * time.Second

const pingResponseSchema = `{
	"$schema": "http://json-schema.org/draft-04/schema#",
	"type": "object",
	"properties": {
		"@type": {"type": "string"},
		"@id": {"type": "string"},
		"~thread": {
			"type": "object",
			"properties": {"thid": {"type": "string"}},
			"required": ["thid"]
		},
		"comment": {"type": "string"}
	},
	"required": ["@type", "~thread"]
}`

// Register adds the trust ping tests to the registry.
func Register(r *suite.Registry) error {
	return r.Register(suite.Descriptor{
		Protocol:    "trust_ping",
		Version:     "1.0",
		Role:        "receiver",
		Name:        "responds-to-ping",
		Description: "The subject, pinged by the suite, answers with a threaded ping response",
		Features:    []string{"core.trustping"},
		Priority:    10,
	}, respondsToPing)
}

func respondsToPing(ctx *suite.Context) error {
	if ctx.Subject.VerKey == "" {
		return errors.Wrap(suite.ErrSkip, "subject verkey is not configured")
	}

	myKey, err := ctx.Agent.CreateKey()
	if err != nil {
		return errors.Wrap(err, "create sender key")
	}

	ping, err := message.New(map[string]interface{}{
		message.TypeKey:      PingType,
		"response_requested": true,
		"comment":            "conformance ping",
		message.TransportKey: map[string]interface{}{"return_route": "all"},
	})
	if err != nil {
		return err
	}

	svc := &agent.Service{
		Endpoint:      ctx.Subject.Endpoint,
		RecipientKeys: []string{ctx.Subject.VerKey},
	}

	// register before sending so a fast subject cannot race the wait
	wait := ctx.Agent.ExpectMessageAsync(PingResponseType, responseTimeout)

	if err := ctx.Agent.Send(ping, ctx.Subject.VerKey, agent.WithFromKey(myKey), agent.WithService(svc)); err != nil {
		return errors.Wrap(err, "send ping")
	}

	resp, err := wait()
	if err != nil {
		return errors.Wrap(err, "subject did not answer the ping")
	}

	if err := message.Validate(resp, pingResponseSchema); err != nil {
		return err
	}

	if resp.ThreadID() != ping.ID() {
		return errors.Errorf("ping response thread %q does not reference the ping id %q",
			resp.ThreadID(), ping.ID())
	}

	// a completed exchange establishes the pairwise relationship
	ctx.Agent.AddRelationship(&agent.Relationship{
		MyVerKey:    myKey,
		TheirVerKey: ctx.Subject.VerKey,
		Service:     *svc,
	})

	return nil
}
