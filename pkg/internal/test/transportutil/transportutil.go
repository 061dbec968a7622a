/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package transportutil contains helpers for transport tests.
package transportutil

import (
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// GetRandomPort returns a free TCP port, trying up to n times.
func GetRandomPort(n int) int {
	for i := 0; i < n; i++ {
		port, err := getRandomPort()
		if err != nil {
			continue
		}

		return port
	}

	panic("cannot acquire a random port")
}

func getRandomPort() (int, error) {
	const network = "tcp"

	addr, err := net.ResolveTCPAddr(network, "localhost:0")
	if err != nil {
		return 0, err
	}

	listener, err := net.ListenTCP(network, addr)
	if err != nil {
		return 0, err
	}

	if err := listener.Close(); err != nil {
		return 0, err
	}

	return listener.Addr().(*net.TCPAddr).Port, nil
}

// VerifyListener blocks until addr accepts TCP connections or the test
// fails after ~2.5s.
func VerifyListener(t *testing.T, addr string) {
	t.Helper()

	for i := 0; i < 50; i++ {
		conn, err := net.Dial("tcp", addr)
		if err == nil {
			require.NoError(t, conn.Close())
			return
		}

		time.Sleep(50 * time.Millisecond)
	}

	t.Fatalf("listener on %s did not come up", addr)
}
