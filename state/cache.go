// Copyright (c) 2025 The RockPool developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package state

import (
	"fmt"
	"slices"
	"sync/atomic"
	"time"

	"github.com/ethereum/go-ethereum/rlp"
	"github.com/qianbin/directcache"
	"github.com/rockpool-labs/rockpool/cache"
)

// Cache is the read-through cache of committed storage values.
type Cache interface {
	GetValue(key []byte) (rlp.RawValue, bool)
	AddValue(key []byte, val rlp.RawValue)
}

// readCache caches committed values keyed by pool address and slot.
type readCache struct {
	values      *directcache.Cache
	stats       cache.Stats
	lastLogTime atomic.Int64
}

// newReadCache creates a read cache with the given size.
func newReadCache(sizeMB int) *readCache {
	c := &readCache{
		values: directcache.New(sizeMB * 1024 * 1024),
	}
	c.lastLogTime.Store(time.Now().UnixNano())
	return c
}

func (c *readCache) log() {
	now := time.Now().UnixNano()
	last := c.lastLogTime.Swap(now)

	if now-last > int64(time.Second*20) {
		changed, hit, miss := c.stats.Stats()
		if changed {
			logStats("storage cache stats", hit, miss)
		}

		// metrics reported every 20 seconds at most
		metricCacheHitMiss().SetWithLabel(hit, map[string]string{"event": "hit"})
		metricCacheHitMiss().SetWithLabel(miss, map[string]string{"event": "miss"})
	} else {
		c.lastLogTime.CompareAndSwap(now, last)
	}
}

// GetValue returns the cached value. Empty values are cached too, so the
// second return value tells presence apart from emptiness.
func (c *readCache) GetValue(key []byte) (val rlp.RawValue, ok bool) {
	if c.values.AdvGet(key, func(v []byte) {
		val = slices.Clone(v)
	}, false) {
		if c.stats.Hit()%2000 == 0 {
			c.log()
		}
		return val, true
	}
	c.stats.Miss()
	return nil, false
}

// AddValue adds a committed value into the cache.
func (c *readCache) AddValue(key []byte, val rlp.RawValue) {
	_ = c.values.Set(key, val)
}

func logStats(msg string, hit, miss int64) {
	lookups := hit + miss
	var str string
	if lookups > 0 {
		str = fmt.Sprintf("%.3f", float64(hit)/float64(lookups))
	} else {
		str = "n/a"
	}

	logger.Info(msg,
		"lookups", lookups,
		"hitrate", str,
	)
}

type dummyCache struct{}

// GetValue always returns not found.
func (*dummyCache) GetValue(_ []byte) (rlp.RawValue, bool) { return nil, false }

// AddValue is a no-op.
func (*dummyCache) AddValue(_ []byte, _ rlp.RawValue) {}
