// Copyright (c) 2025 The RockPool developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package cache provides caching primitives shared across the daemon.
package cache

import "sync/atomic"

// Stats counts cache lookups and tells whether the hit rate moved since it
// was last read. The zero value is ready to use.
type Stats struct {
	hit, miss atomic.Int64
	// the hit rate in tenths of a percent, as of the last Stats call
	rate atomic.Int32
}

// Hit records a hit and returns the hit count so far.
func (s *Stats) Hit() int64 { return s.hit.Add(1) }

// Miss records a miss and returns the miss count so far.
func (s *Stats) Miss() int64 { return s.miss.Add(1) }

// Stats returns the hit and miss counts, preceded by whether the hit rate
// changed since the previous call.
func (s *Stats) Stats() (bool, int64, int64) {
	hit := s.hit.Load()
	miss := s.miss.Load()

	var rate int32
	if total := hit + miss; total > 0 {
		rate = int32(hit * 1000 / total)
	}
	return s.rate.Swap(rate) != rate, hit, miss
}
