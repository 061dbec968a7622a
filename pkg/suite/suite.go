/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package suite holds the conformance test collection: descriptors
// tagging each test with protocol, version, role and name, regex
// selection over the flat names, the sequential runner and the interop
// profile report.
package suite

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"sync"

	"github.com/pkg/errors"

	"github.com/hyperledger-archives/aries-protocol-test-suite/pkg/agent"
)

// ErrSkip is returned by a test function to mark the test skipped
// instead of failed.
var ErrSkip = errors.New("test skipped")

// Descriptor tags a conformance test with the protocol coordinates it
// exercises.
type Descriptor struct {
	Protocol    string
	Version     string
	Role        string
	Name        string
	Description string
	Features    []string
	// Priority orders execution, highest first. Ties run in
	// registration order.
	Priority int
	// Manual tests need operator interaction and run only when
	// explicitly enabled.
	Manual bool
}

// FlatName is the fully qualified selection name:
// protocol,version,role,name.
func (d Descriptor) FlatName() string {
	return strings.Join([]string{d.Protocol, d.Version, d.Role, d.Name}, ",")
}

// Subject identifies the agent under test. VerKey is the subject's
// configured verification key, used by tests that start an exchange
// before any connection protocol has run.
type Subject struct {
	Name     string
	Version  string
	Endpoint string
	VerKey   string
}

// Context is handed to every test function.
type Context struct {
	Agent   *agent.Agent
	Subject Subject
}

// TestFunc is one conformance test. A nil return passes; ErrSkip skips;
// any other error fails the test.
type TestFunc func(ctx *Context) error

// Entry is a registered test.
type Entry struct {
	Descriptor Descriptor
	Fn         TestFunc
}

// Registry collects registered conformance tests.
type Registry struct {
	mtx     sync.Mutex
	entries []*Entry
	byName  map[string]struct{}
}

// NewRegistry creates an empty test registry.
func NewRegistry() *Registry {
	return &Registry{byName: make(map[string]struct{})}
}

// Register adds a test. Descriptors must carry all four coordinates and
// flat names must be unique.
func (r *Registry) Register(desc Descriptor, fn TestFunc) error {
	if desc.Protocol == "" || desc.Version == "" || desc.Role == "" || desc.Name == "" {
		return errors.Errorf("incomplete descriptor %q", desc.FlatName())
	}

	if fn == nil {
		return errors.Errorf("test %q has no function", desc.FlatName())
	}

	r.mtx.Lock()
	defer r.mtx.Unlock()

	flat := desc.FlatName()
	if _, exists := r.byName[flat]; exists {
		return errors.Errorf("test %q registered twice", flat)
	}

	r.byName[flat] = struct{}{}
	r.entries = append(r.entries, &Entry{Descriptor: desc, Fn: fn})

	return nil
}

// MustRegister is Register panicking on error, for package init blocks.
func (r *Registry) MustRegister(desc Descriptor, fn TestFunc) {
	if err := r.Register(desc, fn); err != nil {
		panic(err)
	}
}

// Descriptors lists every registered descriptor in registration order.
func (r *Registry) Descriptors() []Descriptor {
	r.mtx.Lock()
	defer r.mtx.Unlock()

	descs := make([]Descriptor, 0, len(r.entries))
	for _, e := range r.entries {
		descs = append(descs, e.Descriptor)
	}

	return descs
}

// Select picks the tests to run. Each pattern is a regular expression
// matched anywhere in the flat name; with no patterns every test is a
// candidate. Manual tests are excluded unless includeManual is set.
// The result is ordered by priority, highest first, stable over
// registration order.
func (r *Registry) Select(patterns []string, includeManual bool) ([]*Entry, error) {
	regexps := make([]*regexp.Regexp, 0, len(patterns))

	for _, p := range patterns {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, errors.Wrapf(err, "bad selection pattern %q", p)
		}

		regexps = append(regexps, re)
	}

	r.mtx.Lock()
	defer r.mtx.Unlock()

	var selected []*Entry

	for _, e := range r.entries {
		if e.Descriptor.Manual && !includeManual {
			continue
		}

		if matches(regexps, e.Descriptor.FlatName()) {
			selected = append(selected, e)
		}
	}

	sort.SliceStable(selected, func(i, j int) bool {
		return selected[i].Descriptor.Priority > selected[j].Descriptor.Priority
	})

	return selected, nil
}

func matches(regexps []*regexp.Regexp, flat string) bool {
	if len(regexps) == 0 {
		return true
	}

	for _, re := range regexps {
		if re.MatchString(flat) {
			return true
		}
	}

	return false
}

// String renders a descriptor for -L listings.
func (d Descriptor) String() string {
	flags := ""
	if d.Manual {
		flags = " [manual]"
	}

	return fmt.Sprintf("%s%s: %s", d.FlatName(), flags, d.Description)
}
