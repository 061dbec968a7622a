/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package transport defines the pluggable wire transports moving raw
// envelope bytes between the suite and the agent under test.
package transport

import "fmt"

// CommContentType is the content type of agent wire messages over HTTP.
const CommContentType = "application/ssi-agent-wire"

// ReplyChannel sends a reply over the same connection an inbound envelope
// arrived on. Transports hand a nil ReplyChannel to the inbound handler
// when return routing is not available on that connection.
type ReplyChannel interface {
	Send(data []byte) error
}

// InboundMessageHandler handles inbound envelope bytes. The transport
// does not unpack the payload; decrypting and routing happen behind this
// handler.
type InboundMessageHandler func(envelope []byte, reply ReplyChannel)

// Provider supplies the handler inbound transports feed.
type Provider interface {
	InboundMessageHandler() InboundMessageHandler
}

// InboundTransport accepts inbound envelope bytes from the network.
type InboundTransport interface {
	// Start the transport, feeding accepted envelopes to the provider's
	// inbound message handler.
	Start(prov Provider) error
	// Stop the transport, releasing the listener.
	Stop() error
	// Endpoint returns the externally reachable address of this
	// transport.
	Endpoint() string
}

// OutboundTransport delivers envelope bytes to a destination endpoint.
// Transports do not retry; retry policy belongs to the caller.
type OutboundTransport interface {
	// Send delivers data to the destination URL.
	Send(data []byte, destination string) error
	// Accept reports whether this transport serves the given URL scheme.
	Accept(url string) bool
}

// Error is a network-level delivery failure.
type Error struct {
	Destination string
	Err         error
}

// NewError wraps a delivery failure for the given destination.
func NewError(destination string, err error) *Error {
	return &Error{Destination: destination, Err: err}
}

func (e *Error) Error() string {
	return fmt.Sprintf("transport error [%s]: %v", e.Destination, e.Err)
}

// Unwrap returns the underlying failure.
func (e *Error) Unwrap() error {
	return e.Err
}
