/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package message defines the agent message model: a JSON document with a
// required message type URI and an id, plus accessors for the common
// decorators used by the protocol tests.
package message

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"

	"github.com/google/uuid"
)

// Reserved message keys.
const (
	TypeKey      = "@type"
	IDKey        = "@id"
	ThreadKey    = "~thread"
	TransportKey = "~transport"
)

// mturiRE matches a message type URI of the form
// <doc-uri><protocol>/<version>/<name>.
var mturiRE = regexp.MustCompile(`(.*?)([a-z0-9._-]+)/(\d[^/]*)/([a-z0-9._-]+)$`)

// ErrInvalidType is returned when a message type URI is malformed.
var ErrInvalidType = errors.New("invalid message type")

// Message is a decoded protocol message body.
type Message map[string]interface{}

// TypeInfo holds the parsed parts of a message type URI.
type TypeInfo struct {
	DocURI   string
	Protocol string
	Version  string
	Name     string
}

// QualifiedProtocol is the doc URI and protocol name joined, identifying
// the protocol independent of version.
func (t TypeInfo) QualifiedProtocol() string {
	return t.DocURI + t.Protocol
}

// ParseTypeInfo parses a message type URI.
func ParseTypeInfo(msgType string) (TypeInfo, error) {
	matches := mturiRE.FindStringSubmatch(msgType)
	if matches == nil {
		return TypeInfo{}, fmt.Errorf("%w: %q", ErrInvalidType, msgType)
	}

	return TypeInfo{
		DocURI:   matches[1],
		Protocol: matches[2],
		Version:  matches[3],
		Name:     matches[4],
	}, nil
}

// New builds a Message from the given fields. The type must be a valid
// message type URI; an id is generated when absent.
func New(fields map[string]interface{}) (Message, error) {
	msg := Message{}
	for k, v := range fields {
		msg[k] = v
	}

	if _, err := ParseTypeInfo(msg.Type()); err != nil {
		return nil, err
	}

	if msg.ID() == "" {
		msg[IDKey] = uuid.New().String()
	}

	return msg, nil
}

// Unmarshal decodes a message from its JSON serialization.
func Unmarshal(data []byte) (Message, error) {
	var fields map[string]interface{}

	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, fmt.Errorf("unmarshal message: %w", err)
	}

	return New(fields)
}

// Marshal encodes the message to JSON.
func (m Message) Marshal() ([]byte, error) {
	return json.Marshal(map[string]interface{}(m))
}

// Type returns the message type URI, empty when absent.
func (m Message) Type() string {
	s, _ := m[TypeKey].(string)
	return s
}

// ID returns the message id, empty when absent.
func (m Message) ID() string {
	s, _ := m[IDKey].(string)
	return s
}

// TypeInfo parses the message type URI.
func (m Message) TypeInfo() (TypeInfo, error) {
	return ParseTypeInfo(m.Type())
}

// ThreadID returns ~thread.thid, falling back to the message id when the
// thread decorator is absent.
func (m Message) ThreadID() string {
	if thread, ok := m[ThreadKey].(map[string]interface{}); ok {
		if thid, ok := thread["thid"].(string); ok && thid != "" {
			return thid
		}
	}

	return m.ID()
}

// ReturnRoute returns the ~transport.return_route value, empty when the
// decorator is absent.
func (m Message) ReturnRoute() string {
	if trans, ok := m[TransportKey].(map[string]interface{}); ok {
		if rr, ok := trans["return_route"].(string); ok {
			return rr
		}
	}

	return ""
}

// Copy returns a shallow copy a test is free to mutate.
func (m Message) Copy() Message {
	cp := make(Message, len(m))
	for k, v := range m {
		cp[k] = v
	}

	return cp
}
