/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package agent implements the test harness's peer agent: a wallet,
// relationship store and transport registry behind a small façade the
// protocol tests drive. The agent packs and sends messages, waits for
// expected replies and flags any traffic the running test did not ask
// for.
package agent

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/bluele/gcache"
	"github.com/btcsuite/btcutil/base58"

	"github.com/hyperledger-archives/aries-protocol-test-suite/pkg/common/log"
	"github.com/hyperledger-archives/aries-protocol-test-suite/pkg/didcomm/dispatcher"
	"github.com/hyperledger-archives/aries-protocol-test-suite/pkg/didcomm/message"
	"github.com/hyperledger-archives/aries-protocol-test-suite/pkg/didcomm/packer"
	"github.com/hyperledger-archives/aries-protocol-test-suite/pkg/didcomm/transport"
	"github.com/hyperledger-archives/aries-protocol-test-suite/pkg/kms/legacykms"
)

var logger = log.New("apts/agent")

// ErrRecipientNotFound is returned by Send when no service endpoint can
// be resolved for the destination.
var ErrRecipientNotFound = errors.New("recipient not found")

var errNoTransport = errors.New("no outbound transport for endpoint")

// serviceCacheSize bounds the resolved-service LRU.
const serviceCacheSize = 128

// Service describes where and how a peer receives messages.
type Service struct {
	Endpoint      string
	RecipientKeys []string
	RoutingKeys   []string
}

// Relationship is an established pairwise connection with the agent
// under test.
type Relationship struct {
	MyVerKey    string
	TheirVerKey string
	TheirDID    string
	Service     Service
}

// Agent is the harness peer agent.
type Agent struct {
	kms        legacykms.KeyManager
	packer     *packer.Packer
	dispatcher *dispatcher.Dispatcher
	endpoint   string

	inbounds  []transport.InboundTransport
	outbounds []transport.OutboundTransport

	relMtx     sync.RWMutex
	byTheirKey map[string]*Relationship
	byTheirDID map[string]*Relationship

	serviceCache gcache.Cache
}

// Opt configures the agent.
type Opt func(a *Agent)

// WithInboundTransport adds an inbound transport started by Start. The
// first inbound transport's endpoint becomes the agent endpoint unless
// WithEndpoint overrides it.
func WithInboundTransport(in transport.InboundTransport) Opt {
	return func(a *Agent) {
		a.inbounds = append(a.inbounds, in)

		if a.endpoint == "" {
			a.endpoint = in.Endpoint()
		}
	}
}

// WithOutboundTransport adds an outbound transport to the registry.
func WithOutboundTransport(out transport.OutboundTransport) Opt {
	return func(a *Agent) {
		a.outbounds = append(a.outbounds, out)
	}
}

// WithEndpoint overrides the externally reachable agent endpoint.
func WithEndpoint(endpoint string) Opt {
	return func(a *Agent) {
		a.endpoint = endpoint
	}
}

// New creates an agent over the given wallet. The dispatcher unpacks
// with the same wallet's keys.
func New(km legacykms.KeyManager, opts ...Opt) (*Agent, error) {
	p, err := packer.New(km)
	if err != nil {
		return nil, fmt.Errorf("create agent: %w", err)
	}

	a := &Agent{
		kms:          km,
		packer:       p,
		dispatcher:   dispatcher.New(p),
		byTheirKey:   make(map[string]*Relationship),
		byTheirDID:   make(map[string]*Relationship),
		serviceCache: gcache.New(serviceCacheSize).LRU().Build(),
	}

	for _, opt := range opts {
		opt(a)
	}

	return a, nil
}

// InboundMessageHandler makes the agent a transport.Provider; all
// inbound transports feed the dispatcher.
func (a *Agent) InboundMessageHandler() transport.InboundMessageHandler {
	return a.dispatcher.HandleInbound
}

// Start brings up the inbound transports.
func (a *Agent) Start() error {
	for _, in := range a.inbounds {
		if err := in.Start(a); err != nil {
			return fmt.Errorf("start inbound transport: %w", err)
		}
	}

	return nil
}

// Stop shuts down the transports. Wallet and relationship state survive
// for the next test.
func (a *Agent) Stop() error {
	for _, in := range a.inbounds {
		if err := in.Stop(); err != nil {
			return fmt.Errorf("stop inbound transport: %w", err)
		}
	}

	for _, out := range a.outbounds {
		if closer, ok := out.(interface{ Close() }); ok {
			closer.Close()
		}
	}

	return nil
}

// Endpoint is the address the agent under test should send to.
func (a *Agent) Endpoint() string {
	return a.endpoint
}

// CreateKey adds a fresh signing key to the wallet and returns its
// base58 verification key.
func (a *Agent) CreateKey() (string, error) {
	return a.kms.CreateKeySet()
}

// sendOpts collects the destination options of Send.
type sendOpts struct {
	fromKey string
	toDID   string
	service *Service
}

// SendOpt adjusts how Send resolves and packs a message.
type SendOpt func(o *sendOpts)

// WithFromKey auth-crypts the message, attributing it to the given
// wallet verkey. Without it the message goes anon-crypted.
func WithFromKey(verKey string) SendOpt {
	return func(o *sendOpts) {
		o.fromKey = verKey
	}
}

// WithToDID resolves the destination through the relationship stored for
// the given DID.
func WithToDID(did string) SendOpt {
	return func(o *sendOpts) {
		o.toDID = did
	}
}

// WithService sends to an explicit service, bypassing the relationship
// store. Highest-priority resolution.
func WithService(svc *Service) SendOpt {
	return func(o *sendOpts) {
		o.service = svc
	}
}

// Send packs msg for the destination and delivers it. Resolution order:
// explicit service, then DID relationship, then verkey relationship. A
// peer that opened a return route gets the message on its live socket
// instead of a fresh outbound connection.
func (a *Agent) Send(msg message.Message, toKey string, opts ...SendOpt) error {
	o := &sendOpts{}
	for _, opt := range opts {
		opt(o)
	}

	svc, err := a.resolveService(o, toKey)
	if err != nil {
		return err
	}

	recipientKeys := svc.RecipientKeys
	if len(recipientKeys) == 0 {
		if toKey == "" {
			return fmt.Errorf("%w: service has no recipient keys", ErrRecipientNotFound)
		}

		recipientKeys = []string{toKey}
	}

	payload, err := msg.Marshal()
	if err != nil {
		return fmt.Errorf("send: marshal message: %w", err)
	}

	rawKeys := make([][]byte, 0, len(recipientKeys))
	for _, k := range recipientKeys {
		rawKeys = append(rawKeys, base58.Decode(k))
	}

	envelope, err := a.packer.Pack(payload, rawKeys, o.fromKey)
	if err != nil {
		return fmt.Errorf("send: pack message: %w", err)
	}

	if reply := a.dispatcher.ReplyFor(recipientKeys[0]); reply != nil {
		logger.Debugf("sending %s over the peer's return route", msg.Type())
		return reply.Send(envelope)
	}

	out, err := a.outboundFor(svc.Endpoint)
	if err != nil {
		return err
	}

	return out.Send(envelope, svc.Endpoint)
}

// ExpectMessage blocks until a message of msgType arrives or the timeout
// elapses.
func (a *Agent) ExpectMessage(msgType string, timeout time.Duration) (message.Message, error) {
	in, err := a.dispatcher.Expect(msgType, timeout)
	if err != nil {
		return nil, err
	}

	return in.Message, nil
}

// ExpectMessageAsync registers the expectation now and returns the wait
// function. Use it when the expected message is a reply to something
// about to be sent, so a fast subject cannot race the registration.
func (a *Agent) ExpectMessageAsync(msgType string, timeout time.Duration) func() (message.Message, error) {
	wait := a.dispatcher.ExpectAsync(msgType, timeout)

	return func() (message.Message, error) {
		in, err := wait()
		if err != nil {
			return nil, err
		}

		return in.Message, nil
	}
}

// ExpectInbound is ExpectMessage with the envelope metadata (sender and
// recipient keys) preserved.
func (a *Agent) ExpectInbound(msgType string, timeout time.Duration) (*dispatcher.Inbound, error) {
	return a.dispatcher.Expect(msgType, timeout)
}

// OK checks that no unsolicited traffic or inbound faults accumulated;
// a clean agent stays clean across repeated calls.
func (a *Agent) OK() error {
	unsolicited, faults := a.dispatcher.Drain()

	if len(unsolicited) == 0 && len(faults) == 0 {
		return nil
	}

	var parts []string
	for _, in := range unsolicited {
		parts = append(parts, fmt.Sprintf("unsolicited message of type %q", in.Message.Type()))
	}

	for _, fault := range faults {
		parts = append(parts, fault.Error())
	}

	return fmt.Errorf("agent not ok: %s", strings.Join(parts, "; "))
}

// Reset drops pending expectations and logged traffic between tests.
func (a *Agent) Reset() {
	a.dispatcher.Reset()
}

// AddRelationship stores an established pairwise connection, indexed by
// the peer's verkey and DID. Existing entries for the same peer are
// replaced; relationships are never implicitly removed.
func (a *Agent) AddRelationship(rel *Relationship) {
	a.relMtx.Lock()
	defer a.relMtx.Unlock()

	if rel.TheirVerKey != "" {
		a.byTheirKey[rel.TheirVerKey] = rel
		a.serviceCache.Remove(rel.TheirVerKey)
	}

	if rel.TheirDID != "" {
		a.byTheirDID[rel.TheirDID] = rel
		a.serviceCache.Remove(rel.TheirDID)
	}
}

// RelationshipByKey looks up a relationship by the peer's verkey.
func (a *Agent) RelationshipByKey(verKey string) (*Relationship, bool) {
	a.relMtx.RLock()
	defer a.relMtx.RUnlock()

	rel, ok := a.byTheirKey[verKey]

	return rel, ok
}

// RelationshipByDID looks up a relationship by the peer's DID.
func (a *Agent) RelationshipByDID(did string) (*Relationship, bool) {
	a.relMtx.RLock()
	defer a.relMtx.RUnlock()

	rel, ok := a.byTheirDID[did]

	return rel, ok
}

// resolveService finds the destination service: explicit service wins,
// then the DID relationship, then the verkey relationship. Resolved
// services are cached in front of the relationship store.
func (a *Agent) resolveService(o *sendOpts, toKey string) (*Service, error) {
	if o.service != nil {
		return o.service, nil
	}

	cacheKey := o.toDID
	if cacheKey == "" {
		cacheKey = toKey
	}

	if cacheKey == "" {
		return nil, fmt.Errorf("%w: no destination given", ErrRecipientNotFound)
	}

	if cached, err := a.serviceCache.Get(cacheKey); err == nil {
		return cached.(*Service), nil
	}

	var (
		rel *Relationship
		ok  bool
	)

	if o.toDID != "" {
		rel, ok = a.RelationshipByDID(o.toDID)
	} else {
		rel, ok = a.RelationshipByKey(toKey)
	}

	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrRecipientNotFound, cacheKey)
	}

	svc := rel.Service
	if err := a.serviceCache.Set(cacheKey, &svc); err != nil {
		logger.Warnf("service cache set failed: %v", err)
	}

	return &svc, nil
}

func (a *Agent) outboundFor(endpoint string) (transport.OutboundTransport, error) {
	for _, out := range a.outbounds {
		if out.Accept(endpoint) {
			return out, nil
		}
	}

	return nil, transport.NewError(endpoint, errNoTransport)
}
