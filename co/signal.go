// Copyright (c) 2025 The RockPool developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package co

import (
	"sync"
)

// Signal is a channel-based rendezvous point. Goroutines wait on it while
// others announce that something happened. Unlike sync.Cond, a waiter can
// select on the wake channel together with other channels.
type Signal struct {
	mu sync.Mutex
	ch chan bool
}

// channel returns the current wake channel, allocating it on first use so
// the zero Signal is ready to go.
func (s *Signal) channel() chan bool {
	if s.ch == nil {
		s.ch = make(chan bool, 1)
	}
	return s.ch
}

// Signal wakes one waiter. The wake is merged into a pending one, so
// signaling an already signaled Signal is a no-op.
func (s *Signal) Signal() {
	s.mu.Lock()
	defer s.mu.Unlock()

	select {
	case s.channel() <- true:
	default:
	}
}

// Broadcast wakes all waiters. Broadcast wakes read false from the channel,
// Signal wakes read true.
func (s *Signal) Broadcast() {
	s.mu.Lock()
	defer s.mu.Unlock()

	close(s.channel())
	s.ch = make(chan bool, 1)
}

// Waiter carries the channel a wake arrives on.
type Waiter interface {
	C() <-chan bool
}

// NewWaiter binds a Waiter to s. C returns the channel picked up by the
// previous call, so a loop calling C once per turn never misses a broadcast
// that lands between two turns.
func (s *Signal) NewWaiter() Waiter {
	s.mu.Lock()
	defer s.mu.Unlock()

	return &waiter{sig: s, ch: s.channel()}
}

type waiter struct {
	sig *Signal
	ch  chan bool
}

func (w *waiter) C() <-chan bool {
	ch := w.ch

	w.sig.mu.Lock()
	w.ch = w.sig.channel()
	w.sig.mu.Unlock()

	return ch
}
