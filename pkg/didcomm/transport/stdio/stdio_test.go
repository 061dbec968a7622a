/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package stdio

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/hyperledger-archives/aries-protocol-test-suite/pkg/didcomm/transport"
)

type mockProvider struct {
	handler transport.InboundMessageHandler
}

func (p *mockProvider) InboundMessageHandler() transport.InboundMessageHandler {
	return p.handler
}

func TestInbound(t *testing.T) {
	t.Run("test stdio inbound - reads one envelope per line", func(t *testing.T) {
		in := NewInbound(strings.NewReader("first\n\nsecond\n"))
		require.Equal(t, Scheme, in.Endpoint())

		received := make(chan []byte, 2)
		require.NoError(t, in.Start(&mockProvider{handler: func(envelope []byte, reply transport.ReplyChannel) {
			require.Nil(t, reply)
			received <- envelope
		}}))

		for _, want := range []string{"first", "second"} {
			select {
			case envelope := <-received:
				require.Equal(t, want, string(envelope))
			case <-time.After(2 * time.Second):
				t.Fatalf("envelope %q was not received", want)
			}
		}

		require.NoError(t, in.Stop())
		require.NoError(t, in.Stop())
	})

	t.Run("test stdio inbound - start with nil provider", func(t *testing.T) {
		in := NewInbound(strings.NewReader(""))
		require.Error(t, in.Start(nil))
		require.Error(t, in.Start(&mockProvider{}))
	})
}

type failWriter struct{}

func (failWriter) Write([]byte) (int, error) {
	return 0, errors.New("broken pipe")
}

func TestOutbound(t *testing.T) {
	t.Run("test stdio outbound - writes envelope and newline", func(t *testing.T) {
		var buf bytes.Buffer

		out := NewOutbound(&buf)
		require.NoError(t, out.Send([]byte("envelope"), Scheme))
		require.Equal(t, "envelope\n", buf.String())
	})

	t.Run("test stdio outbound - write failure", func(t *testing.T) {
		err := NewOutbound(failWriter{}).Send([]byte("envelope"), Scheme)
		require.Error(t, err)

		var terr *transport.Error
		require.True(t, errors.As(err, &terr))
	})

	t.Run("test stdio outbound - accept", func(t *testing.T) {
		out := NewOutbound(nil)
		require.True(t, out.Accept("stdio"))
		require.False(t, out.Accept("http://example.com"))
	})
}
