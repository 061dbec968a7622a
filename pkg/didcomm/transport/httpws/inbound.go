/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package httpws implements the combined HTTP+WebSocket inbound
// transport: a single listening port serving plain envelope POSTs and
// WebSocket upgrades, dispatched on the Upgrade header.
package httpws

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/hyperledger-archives/aries-protocol-test-suite/pkg/common/log"
	"github.com/hyperledger-archives/aries-protocol-test-suite/pkg/didcomm/transport"
	transporthttp "github.com/hyperledger-archives/aries-protocol-test-suite/pkg/didcomm/transport/http"
	"github.com/hyperledger-archives/aries-protocol-test-suite/pkg/didcomm/transport/ws"
)

var logger = log.New("apts/transport/httpws")

// Inbound is the combined HTTP+WS inbound transport.
type Inbound struct {
	externalAddr string
	server       *http.Server
}

// NewInbound creates a new combined HTTP+WS inbound transport instance.
func NewInbound(internalAddr, externalAddr string) (*Inbound, error) {
	if internalAddr == "" {
		return nil, errors.New("http+ws address is mandatory")
	}

	if externalAddr == "" {
		externalAddr = internalAddr
	}

	return &Inbound{externalAddr: externalAddr, server: &http.Server{Addr: internalAddr}}, nil
}

// Start the combined server.
func (i *Inbound) Start(prov transport.Provider) error {
	httpHandler, err := transporthttp.NewInboundHandler(prov)
	if err != nil {
		return fmt.Errorf("http+ws server start failed: %w", err)
	}

	wsHandler, err := ws.NewInboundHandler(prov)
	if err != nil {
		return fmt.Errorf("http+ws server start failed: %w", err)
	}

	i.server.Handler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if isWebSocketUpgrade(r) {
			wsHandler.ServeHTTP(w, r)
			return
		}

		httpHandler.ServeHTTP(w, r)
	})

	go func() {
		if err := i.server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("http+ws server start with address [%s] failed, cause: %s", i.server.Addr, err)
		}
	}()

	return nil
}

// Stop the combined server.
func (i *Inbound) Stop() error {
	if err := i.server.Shutdown(context.Background()); err != nil {
		return fmt.Errorf("http+ws server shutdown failed: %w", err)
	}

	return nil
}

// Endpoint provides the connection details.
func (i *Inbound) Endpoint() string {
	return i.externalAddr
}

func isWebSocketUpgrade(r *http.Request) bool {
	return strings.EqualFold(r.Header.Get("Upgrade"), "websocket") &&
		strings.Contains(strings.ToLower(r.Header.Get("Connection")), "upgrade")
}
