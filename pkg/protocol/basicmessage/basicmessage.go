/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package basicmessage contains the basic message conformance tests.
// Both roles need an operator on the subject side, so the tests are
// manual.
package basicmessage

import (
	"time"

	"github.com/pkg/errors"

	"github.com/hyperledger-archives/aries-protocol-test-suite/pkg/agent"
	"github.com/hyperledger-archives/aries-protocol-test-suite/pkg/didcomm/message"
	"github.com/hyperledger-archives/aries-protocol-test-suite/pkg/suite"
)

// MessageType is the basic message type URI.
const MessageType = "did:sov:BzCbsNYhMrjHiqZDTUASHg;spec/basicmessage/1.0/message"

const receiveTimeout = 60 * time.Second

const messageSchema = `{
	"$schema": "http://json-schema.org/draft-04/schema#",
	"type": "object",
	"properties": {
		"@type": {"type": "string"},
		"@id": {"type": "string"},
		"sent_time": {"type": "string"},
		"content": {"type": "string"}
	},
	"required": ["@type", "@id", "sent_time", "content"]
}`

// Register adds the basic message tests to the registry.
func Register(r *suite.Registry) error {
	if err := r.Register(suite.Descriptor{
		Protocol:    "basicmessage",
		Version:     "1.0",
		Role:        "receiver",
		Name:        "delivers-to-operator",
		Description: "The suite sends a basic message; the subject operator confirms delivery",
		Features:    []string{"core.basicmessage"},
		Manual:      true,
	}, deliversToOperator); err != nil {
		return err
	}

	return r.Register(suite.Descriptor{
		Protocol:    "basicmessage",
		Version:     "1.0",
		Role:        "sender",
		Name:        "sends-well-formed-message",
		Description: "The subject operator sends a basic message; the suite checks its shape",
		Features:    []string{"core.basicmessage"},
		Manual:      true,
	}, sendsWellFormedMessage)
}

func deliversToOperator(ctx *suite.Context) error {
	if ctx.Subject.VerKey == "" {
		return errors.Wrap(suite.ErrSkip, "subject verkey is not configured")
	}

	myKey, err := ctx.Agent.CreateKey()
	if err != nil {
		return errors.Wrap(err, "create sender key")
	}

	msg, err := message.New(map[string]interface{}{
		message.TypeKey: MessageType,
		"sent_time":     time.Now().UTC().Format(time.RFC3339),
		"content":       "Hello from the test suite. Please confirm receipt.",
	})
	if err != nil {
		return err
	}

	err = ctx.Agent.Send(msg, ctx.Subject.VerKey, agent.WithFromKey(myKey), agent.WithService(&agent.Service{
		Endpoint:      ctx.Subject.Endpoint,
		RecipientKeys: []string{ctx.Subject.VerKey},
	}))

	return errors.Wrap(err, "send basic message")
}

func sendsWellFormedMessage(ctx *suite.Context) error {
	msg, err := ctx.Agent.ExpectMessage(MessageType, receiveTimeout)
	if err != nil {
		return errors.Wrap(err, "subject did not send a basic message")
	}

	if err := message.Validate(msg, messageSchema); err != nil {
		return err
	}

	if _, err := time.Parse(time.RFC3339, msg["sent_time"].(string)); err != nil {
		return errors.Wrapf(err, "sent_time %q is not a valid timestamp", msg["sent_time"])
	}

	return nil
}
