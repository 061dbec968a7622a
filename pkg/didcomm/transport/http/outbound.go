/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package http

import (
	"bytes"
	"crypto/tls"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/hyperledger-archives/aries-protocol-test-suite/pkg/didcomm/transport"
)

const httpScheme = "http"

// outboundOpts holds options for the HTTP outbound transport.
type outboundOpts struct {
	client *http.Client
}

// OutboundOpt is an outbound HTTP transport option.
type OutboundOpt func(opts *outboundOpts)

// WithOutboundHTTPClient option is for creating an outbound HTTP
// transport using a custom http.Client instance.
func WithOutboundHTTPClient(client *http.Client) OutboundOpt {
	return func(opts *outboundOpts) {
		opts.client = client
	}
}

// WithOutboundTimeout option is for creating an outbound HTTP transport
// using a client timeout value.
func WithOutboundTimeout(timeout time.Duration) OutboundOpt {
	return func(opts *outboundOpts) {
		opts.client.Timeout = timeout
	}
}

// WithOutboundTLSConfig option is for creating an outbound HTTP transport
// using a tls.Config instance.
func WithOutboundTLSConfig(tlsConfig *tls.Config) OutboundOpt {
	return func(opts *outboundOpts) {
		opts.client = &http.Client{
			Transport: &http.Transport{
				TLSClientConfig: tlsConfig,
			},
		}
	}
}

// OutboundClient is the outbound HTTP transport: it POSTs envelopes to
// other agents.
type OutboundClient struct {
	client *http.Client
}

// NewOutbound creates a new outbound HTTP transport.
func NewOutbound(opts ...OutboundOpt) *OutboundClient {
	clOpts := &outboundOpts{client: &http.Client{}}

	for _, opt := range opts {
		opt(clOpts)
	}

	return &OutboundClient{client: clOpts.client}
}

// Send posts an envelope to the destination URL. A connection failure,
// timeout or non-success HTTP status is a transport error; there are no
// retries at this layer.
func (cs *OutboundClient) Send(data []byte, destination string) error {
	if destination == "" {
		return transport.NewError(destination, errMissingDestination)
	}

	resp, err := cs.client.Post(destination, transport.CommContentType, bytes.NewReader(data))
	if err != nil {
		return transport.NewError(destination, err)
	}

	defer func() {
		if e := resp.Body.Close(); e != nil {
			logger.Errorf("error closing response body: %v", e)
		}
	}()

	if resp.StatusCode != http.StatusAccepted && resp.StatusCode != http.StatusOK {
		return transport.NewError(destination,
			fmt.Errorf("received non success POST HTTP status: %s", resp.Status))
	}

	return nil
}

// Accept checks for the url scheme.
func (cs *OutboundClient) Accept(url string) bool {
	return strings.HasPrefix(url, httpScheme)
}

var errMissingDestination = errors.New("destination is mandatory")
