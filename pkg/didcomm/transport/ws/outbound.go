/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package ws

import (
	"context"
	"strings"

	"nhooyr.io/websocket"

	"github.com/hyperledger-archives/aries-protocol-test-suite/pkg/didcomm/transport"
)

const webSocketScheme = "ws"

// OutboundClient is the outbound WebSocket transport. Connections are
// kept open per destination; envelopes the remote agent pushes back over
// an open socket are fed to the inbound handler with a reply channel, so
// return routing works in both directions.
type OutboundClient struct {
	pool    *connPool
	handler transport.InboundMessageHandler
}

// NewOutbound creates the outbound WebSocket transport. The handler
// receives envelopes arriving on outbound-opened sockets; it may be nil
// when inbound traffic on those sockets is not expected.
func NewOutbound(handler transport.InboundMessageHandler) *OutboundClient {
	return &OutboundClient{pool: newConnPool(), handler: handler}
}

// Send delivers an envelope over a WebSocket connection to the
// destination, dialing and caching a connection on first use.
func (cs *OutboundClient) Send(data []byte, destination string) error {
	conn, err := cs.connection(destination)
	if err != nil {
		return transport.NewError(destination, err)
	}

	if err := conn.Write(context.Background(), websocket.MessageText, data); err != nil {
		// the socket is no longer usable, drop it so the next send
		// re-dials
		cs.pool.remove(conn)
		closeConn(conn)

		return transport.NewError(destination, err)
	}

	return nil
}

// Accept checks for the url scheme.
func (cs *OutboundClient) Accept(url string) bool {
	return strings.HasPrefix(url, webSocketScheme)
}

// Close closes all open connections.
func (cs *OutboundClient) Close() {
	cs.pool.closeAll()
}

func (cs *OutboundClient) connection(destination string) (*websocket.Conn, error) {
	if conn := cs.pool.fetch(destination); conn != nil {
		return conn, nil
	}

	conn, _, err := websocket.Dial(context.Background(), destination, nil)
	if err != nil {
		return nil, err
	}

	cs.pool.addDest(destination, conn)

	if cs.handler != nil {
		go func() {
			listener(conn, cs.handler)
			cs.pool.remove(conn)
		}()
	}

	return conn, nil
}
