/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package dispatcher routes unpacked inbound messages to waiting
// expectations. Tests declare which message type they expect next; the
// dispatcher fulfills the oldest matching wait, records everything else
// in an unsolicited log, and guarantees that a message arriving at the
// deadline beats the timeout.
package dispatcher

import (
	"fmt"
	"sync"
	"time"

	"github.com/btcsuite/btcutil/base58"

	"github.com/hyperledger-archives/aries-protocol-test-suite/pkg/common/log"
	"github.com/hyperledger-archives/aries-protocol-test-suite/pkg/didcomm/message"
	"github.com/hyperledger-archives/aries-protocol-test-suite/pkg/didcomm/packer"
	"github.com/hyperledger-archives/aries-protocol-test-suite/pkg/didcomm/transport"
)

var logger = log.New("apts/dispatcher")

// Inbound is a received message together with its envelope metadata.
type Inbound struct {
	Message      message.Message
	SenderKey    []byte // nil for anon-crypted envelopes
	RecipientKey []byte
	ReceivedAt   time.Time
}

// TimeoutError is returned when no message of the expected type arrived
// within the wait window.
type TimeoutError struct {
	MsgType string
	Waited  time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("timed out after %s waiting for message of type %q", e.Waited, e.MsgType)
}

// expectation is one pending wait. Its channel is buffered so delivery
// under the registry lock never blocks on the waiter.
type expectation struct {
	msgType string
	ch      chan *Inbound
}

// Dispatcher unpacks inbound envelopes and matches messages against
// pending expectations, FIFO per message type.
type Dispatcher struct {
	packer *packer.Packer

	mtx         sync.Mutex
	pending     map[string][]*expectation
	unsolicited []*Inbound
	faults      []error
	replies     map[string]transport.ReplyChannel
}

// New creates a Dispatcher unpacking envelopes with the given packer.
func New(p *packer.Packer) *Dispatcher {
	return &Dispatcher{
		packer:  p,
		pending: make(map[string][]*expectation),
		replies: make(map[string]transport.ReplyChannel),
	}
}

// HandleInbound is the transport.InboundMessageHandler fed by every
// inbound transport: it unpacks the envelope, registers the reply channel
// when the message requests return routing, and dispatches the message.
func (d *Dispatcher) HandleInbound(envelope []byte, reply transport.ReplyChannel) {
	env, err := d.packer.Unpack(envelope)
	if err != nil {
		d.recordFault(fmt.Errorf("unpack inbound envelope: %w", err))
		return
	}

	msg, err := message.Unmarshal(env.Message)
	if err != nil {
		d.recordFault(fmt.Errorf("decode inbound message: %w", err))
		return
	}

	if reply != nil && msg.ReturnRoute() == "all" && len(env.FromVerKey) > 0 {
		d.setReply(base58.Encode(env.FromVerKey), reply)
	}

	d.deliver(&Inbound{
		Message:      msg,
		SenderKey:    env.FromVerKey,
		RecipientKey: env.ToVerKey,
		ReceivedAt:   time.Now(),
	})
}

// Expect blocks until a message of msgType arrives or the timeout
// elapses. Multiple concurrent expectations of the same type are
// fulfilled oldest first.
func (d *Dispatcher) Expect(msgType string, timeout time.Duration) (*Inbound, error) {
	return d.ExpectAsync(msgType, timeout)()
}

// ExpectAsync registers the expectation immediately and returns the
// function that waits for it. Registering before triggering the subject
// closes the window where a fast reply would land as unsolicited.
func (d *Dispatcher) ExpectAsync(msgType string, timeout time.Duration) func() (*Inbound, error) {
	exp := &expectation{msgType: msgType, ch: make(chan *Inbound, 1)}

	d.mtx.Lock()
	d.pending[msgType] = append(d.pending[msgType], exp)
	d.mtx.Unlock()

	return func() (*Inbound, error) {
		timer := time.NewTimer(timeout)
		defer timer.Stop()

		select {
		case in := <-exp.ch:
			return in, nil
		case <-timer.C:
			// delivery may have raced the timer; a message that reached
			// the channel before the expectation is withdrawn wins
			d.mtx.Lock()
			defer d.mtx.Unlock()

			select {
			case in := <-exp.ch:
				return in, nil
			default:
			}

			d.withdraw(exp)

			return nil, &TimeoutError{MsgType: msgType, Waited: timeout}
		}
	}
}

// Drain returns and clears the unsolicited message log and any inbound
// processing faults accumulated since the last drain.
func (d *Dispatcher) Drain() ([]*Inbound, []error) {
	d.mtx.Lock()
	defer d.mtx.Unlock()

	unsolicited, faults := d.unsolicited, d.faults
	d.unsolicited, d.faults = nil, nil

	return unsolicited, faults
}

// ReplyFor returns the return-route reply channel registered for the
// given base58 verkey, nil when the peer has none open.
func (d *Dispatcher) ReplyFor(verKey string) transport.ReplyChannel {
	d.mtx.Lock()
	defer d.mtx.Unlock()

	return d.replies[verKey]
}

// Reset clears pending expectations, the unsolicited log and the reply
// registry. Intended between test cases; live waiters are left to time
// out.
func (d *Dispatcher) Reset() {
	d.mtx.Lock()
	defer d.mtx.Unlock()

	d.pending = make(map[string][]*expectation)
	d.unsolicited = nil
	d.faults = nil
	d.replies = make(map[string]transport.ReplyChannel)
}

func (d *Dispatcher) deliver(in *Inbound) {
	d.mtx.Lock()
	defer d.mtx.Unlock()

	msgType := in.Message.Type()

	if queue := d.pending[msgType]; len(queue) > 0 {
		exp := queue[0]

		if len(queue) == 1 {
			delete(d.pending, msgType)
		} else {
			d.pending[msgType] = queue[1:]
		}

		exp.ch <- in

		return
	}

	logger.Warnf("unsolicited message of type %q", msgType)
	d.unsolicited = append(d.unsolicited, in)
}

func (d *Dispatcher) withdraw(exp *expectation) {
	queue := d.pending[exp.msgType]

	for i, e := range queue {
		if e == exp {
			queue = append(queue[:i], queue[i+1:]...)
			break
		}
	}

	if len(queue) == 0 {
		delete(d.pending, exp.msgType)
	} else {
		d.pending[exp.msgType] = queue
	}
}

func (d *Dispatcher) recordFault(err error) {
	logger.Errorf("%v", err)

	d.mtx.Lock()
	defer d.mtx.Unlock()

	d.faults = append(d.faults, err)
}

func (d *Dispatcher) setReply(verKey string, reply transport.ReplyChannel) {
	d.mtx.Lock()
	defer d.mtx.Unlock()

	d.replies[verKey] = reply
}
