/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package httpws

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"nhooyr.io/websocket"

	"github.com/hyperledger-archives/aries-protocol-test-suite/pkg/didcomm/transport"
	"github.com/hyperledger-archives/aries-protocol-test-suite/pkg/internal/test/transportutil"
)

type mockProvider struct {
	handler transport.InboundMessageHandler
}

func (p *mockProvider) InboundMessageHandler() transport.InboundMessageHandler {
	return p.handler
}

type inboundRecord struct {
	envelope []byte
	hasReply bool
}

func TestInboundTransport(t *testing.T) {
	t.Run("test inbound transport - with missing address", func(t *testing.T) {
		_, err := NewInbound("", "")
		require.EqualError(t, err, "http+ws address is mandatory")
	})

	t.Run("test inbound transport - start with nil provider", func(t *testing.T) {
		in, err := NewInbound("localhost:8092", "")
		require.NoError(t, err)
		require.Error(t, in.Start(nil))
	})

	t.Run("test inbound transport - dispatches plain POST and upgrade", func(t *testing.T) {
		addr := fmt.Sprintf("localhost:%d", transportutil.GetRandomPort(3))

		in, err := NewInbound(addr, "http://"+addr)
		require.NoError(t, err)
		require.Equal(t, "http://"+addr, in.Endpoint())

		received := make(chan inboundRecord, 2)

		require.NoError(t, in.Start(&mockProvider{handler: func(envelope []byte, reply transport.ReplyChannel) {
			received <- inboundRecord{envelope: envelope, hasReply: reply != nil}

			if reply != nil {
				if err := reply.Send([]byte("pong")); err != nil {
					t.Errorf("reply send failed: %v", err)
				}
			}
		}}))

		transportutil.VerifyListener(t, addr)

		// plain HTTP POST, no return route on the connection
		resp, err := http.Post("http://"+addr, transport.CommContentType, bytes.NewBufferString("over http"))
		require.NoError(t, err)
		require.NoError(t, resp.Body.Close())
		require.Equal(t, http.StatusAccepted, resp.StatusCode)

		select {
		case rec := <-received:
			require.Equal(t, "over http", string(rec.envelope))
			require.False(t, rec.hasReply)
		case <-time.After(2 * time.Second):
			t.Fatal("http envelope was not received")
		}

		// WebSocket upgrade on the same port, with return routing
		conn, _, err := websocket.Dial(context.Background(), "ws://"+addr, nil)
		require.NoError(t, err)

		require.NoError(t, conn.Write(context.Background(), websocket.MessageText, []byte("over ws")))

		select {
		case rec := <-received:
			require.Equal(t, "over ws", string(rec.envelope))
			require.True(t, rec.hasReply)
		case <-time.After(2 * time.Second):
			t.Fatal("websocket envelope was not received")
		}

		_, reply, err := conn.Read(context.Background())
		require.NoError(t, err)
		require.Equal(t, "pong", string(reply))

		require.NoError(t, conn.Close(websocket.StatusNormalClosure, "done"))
		require.NoError(t, in.Stop())
	})
}
