/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package ws implements the WebSocket inbound and outbound transports.
// Connections are persistent and support return routing: an envelope can
// be answered on the socket it arrived on.
package ws

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"nhooyr.io/websocket"

	"github.com/hyperledger-archives/aries-protocol-test-suite/pkg/common/log"
	"github.com/hyperledger-archives/aries-protocol-test-suite/pkg/didcomm/transport"
)

var logger = log.New("apts/transport/ws")

// Inbound is the WebSocket inbound transport.
type Inbound struct {
	externalAddr string
	server       *http.Server
	pool         *connPool
}

// NewInbound creates a new WebSocket inbound transport instance.
func NewInbound(internalAddr, externalAddr string) (*Inbound, error) {
	if internalAddr == "" {
		return nil, errors.New("websocket address is mandatory")
	}

	if externalAddr == "" {
		externalAddr = internalAddr
	}

	return &Inbound{
		externalAddr: externalAddr,
		server:       &http.Server{Addr: internalAddr},
		pool:         newConnPool(),
	}, nil
}

// Start the WebSocket server.
func (i *Inbound) Start(prov transport.Provider) error {
	handler, err := newInboundHandler(prov, i.pool)
	if err != nil {
		return fmt.Errorf("websocket server start failed: %w", err)
	}

	i.server.Handler = handler

	go func() {
		if err := i.server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("websocket server start with address [%s] failed, cause: %s", i.server.Addr, err)
		}
	}()

	return nil
}

// Stop the WebSocket server, closing any open connections.
func (i *Inbound) Stop() error {
	i.pool.closeAll()

	if err := i.server.Shutdown(context.Background()); err != nil {
		return fmt.Errorf("websocket server shutdown failed: %w", err)
	}

	return nil
}

// Endpoint provides the WebSocket connection details.
func (i *Inbound) Endpoint() string {
	return i.externalAddr
}

// NewInboundHandler creates an http.Handler upgrading requests to
// WebSocket and feeding received envelopes to the provider's inbound
// message handler. Shared with the combined HTTP+WS transport.
func NewInboundHandler(prov transport.Provider) (http.Handler, error) {
	return newInboundHandler(prov, newConnPool())
}

func newInboundHandler(prov transport.Provider, pool *connPool) (http.Handler, error) {
	if prov == nil || prov.InboundMessageHandler() == nil {
		logger.Errorf("creating an inbound handler failed: message handler is nil")
		return nil, errors.New("creation of inbound handler failed")
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		processRequest(w, r, prov.InboundMessageHandler(), pool)
	}), nil
}

func processRequest(w http.ResponseWriter, r *http.Request, handler transport.InboundMessageHandler, pool *connPool) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{InsecureSkipVerify: true})
	if err != nil {
		logger.Errorf("failed to upgrade the connection: %v", err)
		return
	}

	pool.add(conn)
	defer pool.remove(conn)

	listener(conn, handler)
}

// listener reads envelopes off the connection until it closes. Each
// envelope is handed to the inbound handler together with a reply channel
// bound to this connection, enabling return routing.
func listener(conn *websocket.Conn, handler transport.InboundMessageHandler) {
	defer closeConn(conn)

	reply := &connReply{conn: conn}

	for {
		_, envelope, err := conn.Read(context.Background())
		if err != nil {
			if websocket.CloseStatus(err) != websocket.StatusNormalClosure {
				logger.Errorf("error reading request message: %v", err)
			}

			break
		}

		handler(envelope, reply)
	}
}

// connReply sends replies back over the connection an envelope arrived
// on.
type connReply struct {
	conn *websocket.Conn
}

func (r *connReply) Send(data []byte) error {
	if err := r.conn.Write(context.Background(), websocket.MessageText, data); err != nil {
		return transport.NewError("ws return route", err)
	}

	return nil
}

func closeConn(conn *websocket.Conn) {
	err := conn.Close(websocket.StatusNormalClosure, "closing the connection")
	if err != nil && websocket.CloseStatus(err) != websocket.StatusNormalClosure {
		logger.Debugf("connection close error: %v", err)
	}
}
