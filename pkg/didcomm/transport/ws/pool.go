/*
Copyright SecureKey Technologies Inc. All Rights Reserved.
SPDX-License-Identifier: Apache-2.0
*/

package ws

import (
	"sync"

	"nhooyr.io/websocket"
)

// connPool tracks the open connections of a transport so persistent
// sockets can be reused by destination and closed on shutdown.
type connPool struct {
	sync.RWMutex
	conns  map[*websocket.Conn]struct{}
	byDest map[string]*websocket.Conn
}

func newConnPool() *connPool {
	return &connPool{
		conns:  make(map[*websocket.Conn]struct{}),
		byDest: make(map[string]*websocket.Conn),
	}
}

func (p *connPool) add(conn *websocket.Conn) {
	p.Lock()
	defer p.Unlock()

	p.conns[conn] = struct{}{}
}

func (p *connPool) addDest(destination string, conn *websocket.Conn) {
	p.Lock()
	defer p.Unlock()

	p.conns[conn] = struct{}{}
	p.byDest[destination] = conn
}

func (p *connPool) fetch(destination string) *websocket.Conn {
	p.RLock()
	defer p.RUnlock()

	return p.byDest[destination]
}

func (p *connPool) remove(conn *websocket.Conn) {
	p.Lock()
	defer p.Unlock()

	delete(p.conns, conn)

	for dest, c := range p.byDest {
		if c == conn {
			delete(p.byDest, dest)
		}
	}
}

func (p *connPool) closeAll() {
	p.Lock()
	defer p.Unlock()

	for conn := range p.conns {
		closeConn(conn)
	}

	p.conns = make(map[*websocket.Conn]struct{})
	p.byDest = make(map[string]*websocket.Conn)
}
