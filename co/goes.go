// Copyright (c) 2025 The RockPool developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package co provides small concurrency helpers shared across the daemon's
// long-running loops.
package co

import (
	"sync"
)

// Goes tracks goroutines so their owner can block until every one of them
// has returned. The zero value is ready to use.
type Goes struct {
	wg sync.WaitGroup
}

// Go runs f in a new tracked goroutine.
func (g *Goes) Go(f func()) {
	g.wg.Add(1)
	go func() {
		defer g.wg.Done()
		f()
	}()
}

// Wait blocks until every tracked goroutine has returned.
func (g *Goes) Wait() {
	g.wg.Wait()
}
