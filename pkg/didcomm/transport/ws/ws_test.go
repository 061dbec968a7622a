/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package ws

import (
	"context"
	"errors"
	"fmt"
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

func TestInboundTransport(t *testing.T) {
	t.Run("test inbound transport - with missing address", func(t *testing.T) {
		_, err := NewInbound("", "")
		require.EqualError(t, err, "websocket address is mandatory")
	})

	t.Run("test inbound transport - endpoint", func(t *testing.T) {
		in, err := NewInbound("localhost:8091", "ws://example.com:8091")
		require.NoError(t, err)
		require.Equal(t, "ws://example.com:8091", in.Endpoint())
	})

	t.Run("test inbound transport - start with nil provider", func(t *testing.T) {
		in, err := NewInbound("localhost:8091", "")
		require.NoError(t, err)
		require.Error(t, in.Start(nil))
		require.Error(t, in.Start(&mockProvider{}))
	})

	t.Run("test inbound transport - receive and reply on same socket", func(t *testing.T) {
		addr := fmt.Sprintf("localhost:%d", transportutil.GetRandomPort(3))

		in, err := NewInbound(addr, "ws://"+addr)
		require.NoError(t, err)

		received := make(chan []byte, 1)
		replyErr := make(chan error, 1)

		require.NoError(t, in.Start(&mockProvider{handler: func(envelope []byte, reply transport.ReplyChannel) {
			received <- envelope
			replyErr <- reply.Send([]byte("pong"))
		}}))

		transportutil.VerifyListener(t, addr)

		conn, _, err := websocket.Dial(context.Background(), "ws://"+addr, nil)
		require.NoError(t, err)

		require.NoError(t, conn.Write(context.Background(), websocket.MessageText, []byte("ping")))

		select {
		case envelope := <-received:
			require.Equal(t, "ping", string(envelope))
		case <-time.After(2 * time.Second):
			t.Fatal("inbound transport did not receive the envelope")
		}

		require.NoError(t, <-replyErr)

		_, resp, err := conn.Read(context.Background())
		require.NoError(t, err)
		require.Equal(t, "pong", string(resp))

		require.NoError(t, conn.Close(websocket.StatusNormalClosure, "done"))
		require.NoError(t, in.Stop())
	})
}

func TestOutboundClient(t *testing.T) {
	t.Run("test outbound client - accept", func(t *testing.T) {
		client := NewOutbound(nil)
		require.True(t, client.Accept("ws://example.com"))
		require.True(t, client.Accept("wss://example.com"))
		require.False(t, client.Accept("http://example.com"))
	})

	t.Run("test outbound client - dial failure", func(t *testing.T) {
		err := NewOutbound(nil).Send([]byte("envelope"), "ws://localhost:1")
		require.Error(t, err)

		var terr *transport.Error
		require.True(t, errors.As(err, &terr))
		require.Equal(t, "ws://localhost:1", terr.Destination)
	})

	t.Run("test outbound client - send and receive pushed reply", func(t *testing.T) {
		addr := fmt.Sprintf("localhost:%d", transportutil.GetRandomPort(3))

		in, err := NewInbound(addr, "ws://"+addr)
		require.NoError(t, err)

		// the remote side answers every envelope over the inbound socket
		require.NoError(t, in.Start(&mockProvider{handler: func(envelope []byte, reply transport.ReplyChannel) {
			if err := reply.Send(append([]byte("reply to "), envelope...)); err != nil {
				t.Errorf("reply send failed: %v", err)
			}
		}}))

		transportutil.VerifyListener(t, addr)

		pushed := make(chan []byte, 1)
		client := NewOutbound(func(envelope []byte, _ transport.ReplyChannel) {
			pushed <- envelope
		})
		defer client.Close()

		require.NoError(t, client.Send([]byte("ping"), "ws://"+addr))

		select {
		case envelope := <-pushed:
			require.Equal(t, "reply to ping", string(envelope))
		case <-time.After(2 * time.Second):
			t.Fatal("outbound client did not receive the pushed reply")
		}

		// the cached connection is reused for subsequent sends
		require.NoError(t, client.Send([]byte("ping again"), "ws://"+addr))

		select {
		case envelope := <-pushed:
			require.Equal(t, "reply to ping again", string(envelope))
		case <-time.After(2 * time.Second):
			t.Fatal("outbound client did not receive the second reply")
		}

		require.NoError(t, in.Stop())
	})
}

func TestConnPool(t *testing.T) {
	t.Run("test conn pool - remove clears destination entries", func(t *testing.T) {
		pool := newConnPool()
		conn := &websocket.Conn{}

		pool.addDest("ws://example.com", conn)
		require.Equal(t, conn, pool.fetch("ws://example.com"))

		pool.remove(conn)
		require.Nil(t, pool.fetch("ws://example.com"))
	})
}
