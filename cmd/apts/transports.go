/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package main

import (
	"fmt"
	"sync"

	"github.com/hyperledger-archives/aries-protocol-test-suite/pkg/agent"
	"github.com/hyperledger-archives/aries-protocol-test-suite/pkg/config"
	"github.com/hyperledger-archives/aries-protocol-test-suite/pkg/didcomm/transport"
	transporthttp "github.com/hyperledger-archives/aries-protocol-test-suite/pkg/didcomm/transport/http"
	"github.com/hyperledger-archives/aries-protocol-test-suite/pkg/didcomm/transport/httpws"
	"github.com/hyperledger-archives/aries-protocol-test-suite/pkg/didcomm/transport/stdio"
	"github.com/hyperledger-archives/aries-protocol-test-suite/pkg/didcomm/transport/ws"
)

// inboundOptions are the per-transport option block keys.
type inboundOptions struct {
	// Addr overrides the listen address for this transport, so several
	// inbound transports can share one process on different ports.
	Addr string `mapstructure:"addr"`
	// ExternalAddr is the address advertised to the subject when it
	// differs from the listen address.
	ExternalAddr string `mapstructure:"external_addr"`
}

// pushHandler forwards envelopes arriving on outbound-opened sockets to
// the agent once it exists. The ws outbound transport is constructed
// before the agent, hence the late binding.
var (
	pushMtx   sync.RWMutex
	pushAgent *agent.Agent
)

func bindPushHandler(a *agent.Agent) {
	pushMtx.Lock()
	defer pushMtx.Unlock()

	pushAgent = a
}

func pushHandler(envelope []byte, reply transport.ReplyChannel) {
	pushMtx.RLock()
	a := pushAgent
	pushMtx.RUnlock()

	if a == nil {
		logger.Warnf("dropping pushed envelope, agent not ready")
		return
	}

	a.InboundMessageHandler()(envelope, reply)
}

// transportOpts builds the agent transport options from the configured
// transport blocks. Outbound transports for every scheme are always
// registered.
func transportOpts(cfg *config.Suite) ([]agent.Opt, error) {
	opts := []agent.Opt{
		agent.WithOutboundTransport(transporthttp.NewOutbound()),
		agent.WithOutboundTransport(ws.NewOutbound(pushHandler)),
		agent.WithOutboundTransport(stdio.NewOutbound(nil)),
	}

	for _, tr := range cfg.Transport {
		var inOpts inboundOptions
		if err := tr.DecodeOptions(&inOpts); err != nil {
			return nil, err
		}

		if inOpts.Addr == "" {
			inOpts.Addr = cfg.Addr()
		}

		in, err := newInbound(tr.Name, inOpts, cfg)
		if err != nil {
			return nil, err
		}

		opts = append(opts, agent.WithInboundTransport(in))
	}

	return opts, nil
}

func newInbound(name string, inOpts inboundOptions, cfg *config.Suite) (transport.InboundTransport, error) {
	switch name {
	case "http":
		external := inOpts.ExternalAddr
		if external == "" {
			external = cfg.Endpoint
		}

		return transporthttp.NewInbound(inOpts.Addr, external)
	case "ws":
		external := inOpts.ExternalAddr
		if external == "" {
			external = "ws://" + inOpts.Addr
		}

		return ws.NewInbound(inOpts.Addr, external)
	case "http+ws":
		external := inOpts.ExternalAddr
		if external == "" {
			external = cfg.Endpoint
		}

		return httpws.NewInbound(inOpts.Addr, external)
	case "stdio":
		return stdio.NewInbound(nil), nil
	default:
		return nil, fmt.Errorf("unknown transport %q", name)
	}
}
