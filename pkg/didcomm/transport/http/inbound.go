/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package http implements the HTTP inbound and outbound transports:
// envelopes are POSTed between agents as application/ssi-agent-wire.
package http

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/hyperledger-archives/aries-protocol-test-suite/pkg/common/log"
	"github.com/hyperledger-archives/aries-protocol-test-suite/pkg/didcomm/transport"
)

var logger = log.New("apts/transport/http")

// Inbound is the HTTP inbound transport: a server accepting POSTed
// envelopes.
type Inbound struct {
	externalAddr string
	server       *http.Server
}

// NewInbound creates a new HTTP inbound transport instance.
func NewInbound(internalAddr, externalAddr string) (*Inbound, error) {
	if internalAddr == "" {
		return nil, errors.New("http address is mandatory")
	}

	if externalAddr == "" {
		externalAddr = internalAddr
	}

	return &Inbound{externalAddr: externalAddr, server: &http.Server{Addr: internalAddr}}, nil
}

// Start the HTTP server.
func (i *Inbound) Start(prov transport.Provider) error {
	handler, err := NewInboundHandler(prov)
	if err != nil {
		return fmt.Errorf("http server start failed: %w", err)
	}

	router := mux.NewRouter()
	router.PathPrefix("/").Handler(handler).Methods(http.MethodPost)

	i.server.Handler = router

	go func() {
		if err := i.server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("http server start with address [%s] failed, cause: %s", i.server.Addr, err)
		}
	}()

	return nil
}

// Stop the HTTP server.
func (i *Inbound) Stop() error {
	if err := i.server.Shutdown(context.Background()); err != nil {
		return fmt.Errorf("http server shutdown failed: %w", err)
	}

	return nil
}

// Endpoint provides the HTTP connection details.
func (i *Inbound) Endpoint() string {
	return i.externalAddr
}

// NewInboundHandler creates an http.Handler enforcing the agent wire
// transport rules, routing accepted payloads to the provider's inbound
// message handler. Shared with the combined HTTP+WS transport.
func NewInboundHandler(prov transport.Provider) (http.Handler, error) {
	if prov == nil || prov.InboundMessageHandler() == nil {
		logger.Errorf("creating an inbound handler failed: message handler is nil")
		return nil, errors.New("creation of inbound handler failed")
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		processPOSTRequest(w, r, prov.InboundMessageHandler())
	}), nil
}

func processPOSTRequest(w http.ResponseWriter, r *http.Request, messageHandler transport.InboundMessageHandler) {
	if valid := validateHTTPMethod(w, r); !valid {
		return
	}

	if valid := validatePayload(r, w); !valid {
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		logger.Errorf("error reading request body: %s", err)
		http.Error(w, "Failed to read payload", http.StatusInternalServerError)

		return
	}

	w.WriteHeader(http.StatusAccepted)

	// HTTP has no return route on the request connection
	go messageHandler(body, nil)
}

// validatePayload validate and get the payload from the request.
func validatePayload(r *http.Request, w http.ResponseWriter) bool {
	if r.ContentLength == 0 { // empty payload should not be accepted
		http.Error(w, "Empty payload", http.StatusBadRequest)
		return false
	}

	return true
}

// validateHTTPMethod validate HTTP method and content-type.
func validateHTTPMethod(w http.ResponseWriter, r *http.Request) bool {
	if r.Method != http.MethodPost {
		http.Error(w, "HTTP Method not allowed", http.StatusMethodNotAllowed)
		return false
	}

	if ct := r.Header.Get("Content-type"); ct != transport.CommContentType {
		http.Error(w, fmt.Sprintf("Unsupported Content-type %q", ct), http.StatusUnsupportedMediaType)
		return false
	}

	return true
}
