/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package stdio implements a diagnostic transport reading envelopes from
// standard input (one per line) and writing outbound envelopes to
// standard output. Not suitable for concurrent multi-peer testing.
package stdio

import (
	"bufio"
	"errors"
	"io"
	"os"
	"sync"

	"github.com/hyperledger-archives/aries-protocol-test-suite/pkg/common/log"
	"github.com/hyperledger-archives/aries-protocol-test-suite/pkg/didcomm/transport"
)

var logger = log.New("apts/transport/stdio")

// Scheme is the destination accepted by the stdio outbound transport.
const Scheme = "stdio"

// Inbound reads envelopes from a reader, one envelope per line.
type Inbound struct {
	in      io.Reader
	stopped chan struct{}
	once    sync.Once
}

// NewInbound creates a stdio inbound transport. A nil reader defaults to
// os.Stdin.
func NewInbound(in io.Reader) *Inbound {
	if in == nil {
		in = os.Stdin
	}

	return &Inbound{in: in, stopped: make(chan struct{})}
}

// Start reading envelopes.
func (i *Inbound) Start(prov transport.Provider) error {
	if prov == nil || prov.InboundMessageHandler() == nil {
		return errors.New("creation of inbound handler failed")
	}

	handler := prov.InboundMessageHandler()

	go func() {
		scanner := bufio.NewScanner(i.in)
		scanner.Buffer(make([]byte, 0, 1024), 1024*1024)

		for scanner.Scan() {
			select {
			case <-i.stopped:
				return
			default:
			}

			envelope := make([]byte, len(scanner.Bytes()))
			copy(envelope, scanner.Bytes())

			if len(envelope) == 0 {
				continue
			}

			handler(envelope, nil)
		}

		if err := scanner.Err(); err != nil {
			logger.Errorf("error reading standard input: %v", err)
		}
	}()

	return nil
}

// Stop reading. The pending read on the underlying reader is abandoned,
// not interrupted.
func (i *Inbound) Stop() error {
	i.once.Do(func() { close(i.stopped) })
	return nil
}

// Endpoint provides the transport address.
func (i *Inbound) Endpoint() string {
	return Scheme
}

// Outbound writes envelopes to a writer, one envelope per line.
type Outbound struct {
	mtx sync.Mutex
	out io.Writer
}

// NewOutbound creates a stdio outbound transport. A nil writer defaults
// to os.Stdout.
func NewOutbound(out io.Writer) *Outbound {
	if out == nil {
		out = os.Stdout
	}

	return &Outbound{out: out}
}

// Send writes an envelope followed by a newline.
func (o *Outbound) Send(data []byte, destination string) error {
	o.mtx.Lock()
	defer o.mtx.Unlock()

	if _, err := o.out.Write(append(data, '\n')); err != nil {
		return transport.NewError(destination, err)
	}

	return nil
}

// Accept checks for the stdio scheme.
func (o *Outbound) Accept(url string) bool {
	return url == Scheme
}
